package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tagfall/internal/core/domain"
	"tagfall/internal/core/ports"
	"tagfall/internal/infrastructure/repositories/memory"
)

func newTestMessaging(t *testing.T) (ports.MessagingService, ports.ModerationRepository, *recordingDispatcher) {
	t.Helper()
	contentRepo := memory.NewMemoryContentRepository()
	moderationRepo := memory.NewMemoryModerationRepository()
	dispatcher := &recordingDispatcher{}
	svc := NewMessagingService(contentRepo, moderationRepo, dispatcher, []string{"#TagFall"}, zap.NewNop().Sugar(), nil)
	return svc, moderationRepo, dispatcher
}

func testContent(providerID, userName string, ts time.Time) domain.Content {
	return domain.Content{
		Provider:      "MASTODON",
		ProviderID:    providerID,
		Author:        domain.Author{UserName: userName, DisplayName: userName},
		Text:          "hello #tagfall",
		Type:          domain.ContentTypeMessage,
		Timestamp:     ts,
		HashtagSought: "tagfall",
	}
}

func TestIngest_Idempotent(t *testing.T) {
	svc, _, dispatcher := newTestMessaging(t)
	ctx := context.Background()

	t1 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)

	first := testContent("123", "@alice", t1)
	redelivered := testContent("123", "@alice", t2)

	require.NoError(t, svc.Ingest(ctx, []domain.Content{first}))
	require.NoError(t, svc.Ingest(ctx, []domain.Content{redelivered}))

	results, err := svc.Query(ctx, "tagfall", ports.ContentFilter{Limit: 10})
	require.NoError(t, err)
	require.Len(t, results, 1, "redelivery must not create a second entry")

	// First write wins: the original timestamp survives.
	assert.Equal(t, t1, results[0].Timestamp)
	assert.Equal(t, 1, dispatcher.CountByType(domain.EventNewMessage))
}

func TestIngest_TagNormalization(t *testing.T) {
	svc, _, dispatcher := newTestMessaging(t)
	ctx := context.Background()

	c := testContent("1", "@alice", time.Now())
	c.HashtagSought = "#TagFall"
	require.NoError(t, svc.Ingest(ctx, []domain.Content{c}))

	results, err := svc.Query(ctx, "TAGFALL", ports.ContentFilter{})
	require.NoError(t, err)
	require.Len(t, results, 1)

	events := dispatcher.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "tagfall", events[0].Tag)
}

func TestIngest_HiddenBlockedUserDroppedSilently(t *testing.T) {
	svc, moderationRepo, dispatcher := newTestMessaging(t)
	ctx := context.Background()

	require.NoError(t, moderationRepo.BlockUser(ctx, &domain.BlockedUser{
		Provider:     "MASTODON",
		UserName:     "@alice",
		Capabilities: domain.BlockedUserHidden,
	}))

	for i := 0; i < 5; i++ {
		c := testContent(string(rune('a'+i)), "@alice", time.Now().Add(time.Duration(i)*time.Second))
		require.NoError(t, svc.Ingest(ctx, []domain.Content{c}))
	}

	results, err := svc.Query(ctx, "tagfall", ports.ContentFilter{Limit: 200})
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Equal(t, 0, dispatcher.CountByType(domain.EventNewMessage))

	// Hidden authors stay invisible for every explicit state filter too.
	results, err = svc.Query(ctx, "tagfall", ports.ContentFilter{
		States: []domain.ModerationState{domain.ModerationStatePending, domain.ModerationStateApproved, domain.ModerationStateRejected},
	})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestIngest_ModeratedBlockedUserFilterable(t *testing.T) {
	svc, moderationRepo, _ := newTestMessaging(t)
	ctx := context.Background()

	require.NoError(t, moderationRepo.BlockUser(ctx, &domain.BlockedUser{
		Provider:     "MASTODON",
		UserName:     "@alice",
		Capabilities: domain.BlockedUserModerated,
	}))

	require.NoError(t, svc.Ingest(ctx, []domain.Content{testContent("1", "@alice", time.Now())}))

	// Absent from the default public filter.
	results, err := svc.Query(ctx, "tagfall", ports.ContentFilter{})
	require.NoError(t, err)
	assert.Empty(t, results)

	// Present when explicitly reviewing pending content.
	results, err = svc.Query(ctx, "tagfall", ports.ContentFilter{
		States: []domain.ModerationState{domain.ModerationStatePending},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].Filterable)
}

func TestIngest_BlockNotRetroactive(t *testing.T) {
	svc, moderationRepo, _ := newTestMessaging(t)
	ctx := context.Background()

	require.NoError(t, svc.Ingest(ctx, []domain.Content{testContent("1", "@alice", time.Now())}))

	require.NoError(t, moderationRepo.BlockUser(ctx, &domain.BlockedUser{
		Provider:     "MASTODON",
		UserName:     "@alice",
		Capabilities: domain.BlockedUserHidden,
	}))

	// Hidden applies on read: earlier items disappear from queries.
	results, err := svc.Query(ctx, "tagfall", ports.ContentFilter{Limit: 200})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestQuery_NewestFirstWithLimit(t *testing.T) {
	svc, _, _ := newTestMessaging(t)
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		c := testContent(string(rune('a'+i)), "@bob", base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, svc.Ingest(ctx, []domain.Content{c}))
	}

	results, err := svc.Query(ctx, "tagfall", ports.ContentFilter{Limit: 2})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "e", results[0].ProviderID)
	assert.Equal(t, "d", results[1].ProviderID)
}

func TestQuery_ProviderFilter(t *testing.T) {
	svc, _, _ := newTestMessaging(t)
	ctx := context.Background()

	mastodon := testContent("1", "@alice", time.Now())
	relay := testContent("2", "@bob", time.Now().Add(time.Second))
	relay.Provider = "CHATRELAY"
	require.NoError(t, svc.Ingest(ctx, []domain.Content{mastodon, relay}))

	results, err := svc.Query(ctx, "tagfall", ports.ContentFilter{
		Providers: []domain.ProviderID{"CHATRELAY"},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, domain.ProviderID("CHATRELAY"), results[0].Provider)
}
