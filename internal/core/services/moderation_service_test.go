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

type moderationFixture struct {
	messaging  ports.MessagingService
	moderation ports.ModerationService
	dispatcher *recordingDispatcher
	modRepo    ports.ModerationRepository
}

func newModerationFixture(t *testing.T) *moderationFixture {
	t.Helper()
	contentRepo := memory.NewMemoryContentRepository()
	moderationRepo := memory.NewMemoryModerationRepository()
	queueRepo := memory.NewMemoryQueueRepository()
	dispatcher := &recordingDispatcher{}
	logger := zap.NewNop().Sugar()

	return &moderationFixture{
		messaging:  NewMessagingService(contentRepo, moderationRepo, dispatcher, []string{"tagfall"}, logger, nil),
		moderation: NewModerationService(contentRepo, moderationRepo, queueRepo, dispatcher, logger),
		dispatcher: dispatcher,
		modRepo:    moderationRepo,
	}
}

func (f *moderationFixture) ingest(t *testing.T, providerID string) domain.ContentID {
	t.Helper()
	c := testContent(providerID, "@alice", time.Now())
	require.NoError(t, f.messaging.Ingest(context.Background(), []domain.Content{c}))
	return domain.ContentID{Provider: "MASTODON", ProviderID: providerID}
}

func TestSetStatus_UnknownIdentity(t *testing.T) {
	f := newModerationFixture(t)
	err := f.moderation.SetStatus(context.Background(), domain.ContentID{Provider: "MASTODON", ProviderID: "nope"}, domain.ModerationStateApproved, "mod1")
	assert.ErrorIs(t, err, domain.ErrContentNotFound)
}

func TestSetStatus_EmitsExactlyOneEvent(t *testing.T) {
	f := newModerationFixture(t)
	id := f.ingest(t, "1")
	ctx := context.Background()

	require.NoError(t, f.moderation.SetStatus(ctx, id, domain.ModerationStateApproved, "mod1"))

	assert.Equal(t, 1, f.dispatcher.CountByType(domain.EventApproved))
	events := f.dispatcher.Events()
	last := events[len(events)-1]
	assert.Equal(t, "tagfall", last.Tag)
	require.NotNil(t, last.Action)
	assert.Equal(t, domain.ModerationStateApproved, last.Action.State)
	assert.Equal(t, domain.ModeratorID("mod1"), last.Action.Moderator)
}

func TestSetStatus_NoOpTransition(t *testing.T) {
	f := newModerationFixture(t)
	id := f.ingest(t, "1")
	ctx := context.Background()

	require.NoError(t, f.moderation.SetStatus(ctx, id, domain.ModerationStateApproved, "mod1"))
	first, err := f.modRepo.GetAction(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, first)

	// A duplicate click replays the same state: zero events, timestamp
	// untouched.
	require.NoError(t, f.moderation.SetStatus(ctx, id, domain.ModerationStateApproved, "mod2"))

	assert.Equal(t, 1, f.dispatcher.CountByType(domain.EventApproved))
	second, err := f.modRepo.GetAction(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, first.ModerationTimestamp, second.ModerationTimestamp)
	assert.Equal(t, first.Moderator, second.Moderator)
}

func TestSetStatus_ModeratorOverride(t *testing.T) {
	f := newModerationFixture(t)
	id := f.ingest(t, "1")
	ctx := context.Background()

	require.NoError(t, f.moderation.SetStatus(ctx, id, domain.ModerationStateApproved, "mod1"))
	require.NoError(t, f.moderation.SetStatus(ctx, id, domain.ModerationStateRejected, "mod2"))

	assert.Equal(t, 1, f.dispatcher.CountByType(domain.EventApproved))
	assert.Equal(t, 1, f.dispatcher.CountByType(domain.EventRejected))

	state, err := f.moderation.StateOf(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.ModerationStateRejected, state)
}

func TestSetStatus_ImplicitPendingBaseline(t *testing.T) {
	f := newModerationFixture(t)
	id := f.ingest(t, "1")
	ctx := context.Background()

	// Setting pending on a never-moderated item changes nothing.
	require.NoError(t, f.moderation.SetStatus(ctx, id, domain.ModerationStatePending, "mod1"))
	assert.Empty(t, f.dispatcher.CountByType(domain.EventApproved))
	assert.Empty(t, f.dispatcher.CountByType(domain.EventRejected))

	state, err := f.moderation.StateOf(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.ModerationStatePending, state)
}

func TestBlockUser_EmitsCount(t *testing.T) {
	f := newModerationFixture(t)
	ctx := context.Background()

	require.NoError(t, f.moderation.BlockUser(ctx, "MASTODON", "@alice", "mod1", nil, domain.BlockedUserHidden))

	events := f.dispatcher.Events()
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventBlockedCountChange, events[0].Type)
	assert.Equal(t, 1, events[0].BlockedCount)
	assert.True(t, events[0].Broadcast())

	count, err := f.moderation.BlockedUserCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestBlockUser_ExpiryHonored(t *testing.T) {
	f := newModerationFixture(t)
	ctx := context.Background()

	expired := time.Now().Add(-time.Hour)
	require.NoError(t, f.moderation.BlockUser(ctx, "MASTODON", "@alice", "mod1", &expired, domain.BlockedUserHidden))

	count, err := f.moderation.BlockedUserCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count, "expired blocks are not counted")

	// Expired block no longer filters ingestion.
	require.NoError(t, f.messaging.Ingest(ctx, []domain.Content{testContent("9", "@alice", time.Now())}))
	results, err := f.messaging.Query(ctx, "tagfall", ports.ContentFilter{})
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestQueue_UpsertUpdatesNotes(t *testing.T) {
	f := newModerationFixture(t)
	id := f.ingest(t, "1")
	ctx := context.Background()

	require.NoError(t, f.moderation.AddToQueue(ctx, id, "first notes"))
	require.NoError(t, f.moderation.AddToQueue(ctx, id, "updated notes"))

	items, err := f.moderation.QueueItems(ctx, true)
	require.NoError(t, err)
	require.Len(t, items, 1, "re-adding must not duplicate")
	assert.Equal(t, "updated notes", items[0].SpeakerNotes)
	assert.Equal(t, 2, f.dispatcher.CountByType(domain.EventQueueItemAdded))
}

func TestQueue_CompleteUnknownItem(t *testing.T) {
	f := newModerationFixture(t)
	err := f.moderation.MarkQueueItemCompleted(context.Background(), domain.ContentID{Provider: "MASTODON", ProviderID: "nope"})
	assert.ErrorIs(t, err, domain.ErrQueueItemNotFound)
}

func TestQueue_CompletedFiltered(t *testing.T) {
	f := newModerationFixture(t)
	ctx := context.Background()
	id1 := f.ingest(t, "1")
	id2 := f.ingest(t, "2")

	require.NoError(t, f.moderation.AddToQueue(ctx, id1, ""))
	require.NoError(t, f.moderation.AddToQueue(ctx, id2, ""))
	require.NoError(t, f.moderation.MarkQueueItemCompleted(ctx, id1))

	incomplete, err := f.moderation.QueueItems(ctx, false)
	require.NoError(t, err)
	require.Len(t, incomplete, 1)
	assert.Equal(t, "2", incomplete[0].Content.ProviderID)

	all, err := f.moderation.QueueItems(ctx, true)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestQueue_CompletedEventCarriesTag(t *testing.T) {
	f := newModerationFixture(t)
	ctx := context.Background()
	id := f.ingest(t, "1")

	require.NoError(t, f.moderation.AddToQueue(ctx, id, ""))
	require.NoError(t, f.moderation.MarkQueueItemCompleted(ctx, id))

	events := f.dispatcher.Events()
	require.NotEmpty(t, events)
	last := events[len(events)-1]
	require.Equal(t, domain.EventQueueItemCompleted, last.Type)
	assert.Equal(t, "tagfall", last.Tag, "completion must stay routable to the tag group")
	assert.False(t, last.Broadcast())
}

func TestPresence_JoinLeave(t *testing.T) {
	dispatcher := &recordingDispatcher{}
	presence := NewPresenceService(dispatcher)

	mod := domain.Moderator{ID: "mod1", DisplayName: "Mod One"}
	presence.Join("session-a", mod)
	presence.Join("session-b", mod)

	assert.Len(t, presence.Current(), 1, "same moderator counted once")
	assert.Equal(t, 1, dispatcher.CountByType(domain.EventModeratorJoined))

	presence.Leave("session-a")
	assert.Equal(t, 0, dispatcher.CountByType(domain.EventModeratorLeft), "still connected elsewhere")

	presence.Leave("session-b")
	assert.Equal(t, 1, dispatcher.CountByType(domain.EventModeratorLeft))
	assert.Empty(t, presence.Current())
}
