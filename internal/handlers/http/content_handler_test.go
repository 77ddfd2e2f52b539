package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"tagfall/internal/core/domain"
	"tagfall/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubMessaging struct {
	lastTag    string
	lastFilter ports.ContentFilter
	items      []*domain.Content
}

func (s *stubMessaging) Ingest(context.Context, []domain.Content) error { return nil }
func (s *stubMessaging) TagsTracked() []string                          { return []string{"tagfall"} }

func (s *stubMessaging) Query(_ context.Context, tag string, filter ports.ContentFilter) ([]*domain.Content, error) {
	s.lastTag = tag
	s.lastFilter = filter
	return s.items, nil
}

type stubModeration struct{ blockedCount int }

func (s *stubModeration) SetStatus(context.Context, domain.ContentID, domain.ModerationState, domain.ModeratorID) error {
	return nil
}
func (s *stubModeration) BlockUser(context.Context, domain.ProviderID, string, domain.ModeratorID, *time.Time, domain.BlockedUserCapabilities) error {
	return nil
}
func (s *stubModeration) BlockedUserCount(context.Context) (int, error) { return s.blockedCount, nil }
func (s *stubModeration) StateOf(context.Context, domain.ContentID) (domain.ModerationState, error) {
	return domain.ModerationStatePending, nil
}
func (s *stubModeration) AddToQueue(context.Context, domain.ContentID, string) error { return nil }
func (s *stubModeration) MarkQueueItemCompleted(context.Context, domain.ContentID) error {
	return nil
}
func (s *stubModeration) QueueItems(context.Context, bool) ([]*domain.QueueItem, error) {
	return nil, nil
}

type stubPresence struct{ moderators []domain.Moderator }

func (s *stubPresence) Join(domain.SessionID, domain.Moderator) {}
func (s *stubPresence) Leave(domain.SessionID)                  {}
func (s *stubPresence) Current() []domain.Moderator             { return s.moderators }

type stubDirectory struct{ providers []domain.AvailableProvider }

func (s *stubDirectory) AvailableProviders() []domain.AvailableProvider { return s.providers }

func newTestRouter(messaging *stubMessaging) (*gin.Engine, *ContentHandler) {
	gin.SetMode(gin.TestMode)
	handler := NewContentHandler(
		messaging,
		&stubModeration{blockedCount: 2},
		&stubPresence{moderators: []domain.Moderator{{ID: "mod-1", DisplayName: "Mod One"}}},
		&stubDirectory{providers: []domain.AvailableProvider{{ID: "MASTODON", DisplayName: "Mastodon"}}},
	)
	router := gin.New()
	handler.SetupRoutes(router)
	return router, handler
}

func TestGetContent_FilterParsing(t *testing.T) {
	messaging := &stubMessaging{items: []*domain.Content{{Provider: "MASTODON", ProviderID: "m1"}}}
	router, _ := newTestRouter(messaging)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/api/v1/content/tagfall?providers=MASTODON,CHATRELAY&limit=5", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "tagfall", messaging.lastTag)
	assert.Equal(t, []domain.ProviderID{"MASTODON", "CHATRELAY"}, messaging.lastFilter.Providers)
	assert.Equal(t, 5, messaging.lastFilter.Limit)

	var body struct {
		Tag   string `json:"tag"`
		Count int    `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "tagfall", body.Tag)
	assert.Equal(t, 1, body.Count)
}

func TestGetContent_BadLimitRejected(t *testing.T) {
	router, _ := newTestRouter(&stubMessaging{})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/api/v1/content/tagfall?limit=nope", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReadSideMirrors(t *testing.T) {
	router, _ := newTestRouter(&stubMessaging{})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/api/v1/providers", nil)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "MASTODON")

	w = httptest.NewRecorder()
	req, _ = http.NewRequest(http.MethodGet, "/api/v1/moderators", nil)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Mod One")

	w = httptest.NewRecorder()
	req, _ = http.NewRequest(http.MethodGet, "/api/v1/blocked/count", nil)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"blocked_count":2`)
}
