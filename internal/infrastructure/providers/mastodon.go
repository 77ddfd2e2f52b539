// Package providers holds the social media adapters behind the
// ports.SocialMediaProvider interface.
package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"tagfall/internal/core/domain"
	"tagfall/pkg/errors"

	"go.uber.org/zap"
)

const ProviderMastodon domain.ProviderID = "MASTODON"

// MastodonConfig configures one Mastodon instance connection.
type MastodonConfig struct {
	Server       string
	Token        string
	Enabled      bool
	PollInterval time.Duration
}

// MastodonProvider polls the public hashtag timeline of a single Mastodon
// instance. It pages forward with since_id so each fetch returns only
// statuses not seen before.
type MastodonProvider struct {
	config MastodonConfig
	client *http.Client
	logger *zap.SugaredLogger

	mu      sync.Mutex
	sinceID map[string]string
	lastErr error
}

type mastodonAccount struct {
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	URL         string `json:"url"`
	Avatar      string `json:"avatar"`
}

type mastodonStatus struct {
	ID        string          `json:"id"`
	CreatedAt time.Time       `json:"created_at"`
	Content   string          `json:"content"`
	URL       string          `json:"url"`
	Account   mastodonAccount `json:"account"`
}

func NewMastodonProvider(config MastodonConfig, logger *zap.SugaredLogger) *MastodonProvider {
	return &MastodonProvider{
		config:  config,
		client:  &http.Client{Timeout: 15 * time.Second},
		logger:  logger,
		sinceID: make(map[string]string),
	}
}

func (p *MastodonProvider) ID() domain.ProviderID { return ProviderMastodon }
func (p *MastodonProvider) DisplayName() string   { return "Mastodon" }
func (p *MastodonProvider) Enabled() bool         { return p.config.Enabled }

func (p *MastodonProvider) PollInterval() time.Duration {
	if p.config.PollInterval > 0 {
		return p.config.PollInterval
	}
	return time.Minute
}

func (p *MastodonProvider) FetchNew(ctx context.Context, tag string, since time.Time) ([]domain.Content, error) {
	p.mu.Lock()
	sinceID := p.sinceID[tag]
	p.mu.Unlock()

	endpoint := fmt.Sprintf("%s/api/v1/timelines/tag/%s", p.config.Server, url.PathEscape(tag))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, p.fail(err)
	}

	query := req.URL.Query()
	query.Set("limit", "40")
	if sinceID != "" {
		query.Set("since_id", sinceID)
	}
	req.URL.RawQuery = query.Encode()

	if p.config.Token != "" {
		req.Header.Set("Authorization", "Bearer "+p.config.Token)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, p.fail(errors.NewAdapterFailureError("MASTODON", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, p.fail(errors.NewAdapterFailureError("MASTODON",
			fmt.Errorf("unexpected status %d from %s", resp.StatusCode, p.config.Server)))
	}

	var statuses []mastodonStatus
	if err := json.NewDecoder(resp.Body).Decode(&statuses); err != nil {
		return nil, p.fail(errors.NewAdapterFailureError("MASTODON", err))
	}

	items := make([]domain.Content, 0, len(statuses))
	maxID := sinceID
	for _, status := range statuses {
		if status.CreatedAt.Before(since) && sinceID == "" {
			continue
		}
		items = append(items, p.mapStatus(status, tag))
		if statusIDLess(maxID, status.ID) {
			maxID = status.ID
		}
	}

	p.mu.Lock()
	if maxID != "" {
		p.sinceID[tag] = maxID
	}
	p.lastErr = nil
	p.mu.Unlock()

	return items, nil
}

// statusIDLess orders Mastodon status ids numerically. The ids are decimal
// strings of varying length, so a plain string compare would let "99" beat
// "100"; shorter ids are always smaller.
func statusIDLess(a, b string) bool {
	if a == "" {
		return b != ""
	}
	if len(a) != len(b) {
		return len(a) < len(b)
	}
	return a < b
}

func (p *MastodonProvider) mapStatus(status mastodonStatus, tag string) domain.Content {
	return domain.Content{
		Provider:   ProviderMastodon,
		ProviderID: status.ID,
		Author: domain.Author{
			DisplayName:     status.Account.DisplayName,
			UserName:        status.Account.Username,
			ProfileURI:      status.Account.URL,
			ProfileImageURI: status.Account.Avatar,
		},
		Text:          status.Content,
		Type:          domain.ContentTypeMessage,
		Timestamp:     status.CreatedAt,
		SourceURI:     status.URL,
		HashtagSought: tag,
	}
}

func (p *MastodonProvider) Health() domain.ProviderHealth {
	p.mu.Lock()
	defer p.mu.Unlock()

	health := domain.ProviderHealth{
		Provider:  ProviderMastodon,
		Status:    domain.ProviderStatusHealthy,
		CheckedAt: time.Now(),
	}
	if !p.config.Enabled {
		health.Status = domain.ProviderStatusDisabled
		health.Message = "provider disabled"
	} else if p.lastErr != nil {
		health.Status = domain.ProviderStatusUnhealthy
		health.Message = p.lastErr.Error()
	}
	return health
}

func (p *MastodonProvider) fail(err error) error {
	p.mu.Lock()
	p.lastErr = err
	p.mu.Unlock()
	return err
}
