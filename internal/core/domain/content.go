package domain

import (
	"strings"
	"time"
)

type ProviderID string
type SessionID string
type ModeratorID string

type ContentType string

const (
	ContentTypeMessage ContentType = "message"
	ContentTypeChat    ContentType = "chat"
)

// ContentID is the identity of one ingested item. It never changes after
// ingestion; Timestamp is only a display sort key.
type ContentID struct {
	Provider   ProviderID `json:"provider"`
	ProviderID string     `json:"provider_id"`
}

type Author struct {
	DisplayName     string `json:"display_name"`
	UserName        string `json:"user_name"`
	ProfileURI      string `json:"profile_uri"`
	ProfileImageURI string `json:"profile_image_uri"`
}

type Content struct {
	Provider      ProviderID  `json:"provider"`
	ProviderID    string      `json:"provider_id"`
	Author        Author      `json:"author"`
	Text          string      `json:"text"`
	Type          ContentType `json:"type"`
	Timestamp     time.Time   `json:"timestamp"`
	SourceURI     string      `json:"source_uri"`
	HashtagSought string      `json:"hashtag_sought"`

	// Filterable marks content from a Moderated-blocked author: admitted to
	// the log and visible to moderation review, excluded from the default
	// public filter.
	Filterable bool `json:"filterable,omitempty"`
}

func (c *Content) ID() ContentID {
	return ContentID{Provider: c.Provider, ProviderID: c.ProviderID}
}

// SortKey orders the tag-scoped content log by source timestamp, with
// identity as the deterministic tie-break.
func (c *Content) SortKey() string {
	return c.Timestamp.UTC().Format("20060102150405.000000000") + string(c.Provider) + c.ProviderID
}

// NormalizeTag strips a leading '#' and lowercases the tag so that
// "#GoLang" and "golang" name the same aggregation scope.
func NormalizeTag(tag string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(tag), "#"))
}
