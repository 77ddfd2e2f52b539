package domain

import (
	"strings"
	"time"
)

type ModerationState int

const (
	ModerationStatePending ModerationState = iota
	ModerationStateApproved
	ModerationStateRejected
)

func (s ModerationState) String() string {
	switch s {
	case ModerationStatePending:
		return "pending"
	case ModerationStateApproved:
		return "approved"
	case ModerationStateRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// ModerationAction is the moderation lifecycle of one content identity.
// An identity without an action is implicitly pending.
type ModerationAction struct {
	Provider            ProviderID      `json:"provider"`
	ProviderID          string          `json:"provider_id"`
	State               ModerationState `json:"state"`
	Moderator           ModeratorID     `json:"moderator"`
	ModerationTimestamp time.Time       `json:"moderation_timestamp"`
}

type BlockedUserCapabilities int

const (
	// BlockedUserModerated content still reaches moderation review but is
	// excluded from the default public filter.
	BlockedUserModerated BlockedUserCapabilities = iota
	// BlockedUserHidden content is excluded from every query, including
	// moderation review.
	BlockedUserHidden
)

// BlockedUser suppresses a (provider, username) pair. A nil ExpiresAt means
// the block is indefinite.
type BlockedUser struct {
	Provider     ProviderID              `json:"provider"`
	UserName     string                  `json:"user_name"`
	BlockedBy    ModeratorID             `json:"blocked_by"`
	Capabilities BlockedUserCapabilities `json:"capabilities"`
	ExpiresAt    *time.Time              `json:"expires_at,omitempty"`
}

func (b *BlockedUser) Expired(now time.Time) bool {
	return b.ExpiresAt != nil && now.After(*b.ExpiresAt)
}

// Matches reports whether the block applies to the given author on the
// given provider. Comparison is case-insensitive on both parts.
func (b *BlockedUser) Matches(provider ProviderID, userName string) bool {
	return strings.EqualFold(string(b.Provider), string(provider)) &&
		strings.EqualFold(b.UserName, userName)
}

// Moderator is a presence record for one connected moderator.
type Moderator struct {
	ID          ModeratorID `json:"id"`
	DisplayName string      `json:"display_name"`
	AvatarURI   string      `json:"avatar_uri,omitempty"`
}
