package poller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"tagfall/internal/core/domain"
	"tagfall/internal/core/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type captureMessaging struct {
	mu    sync.Mutex
	items []domain.Content
}

func (m *captureMessaging) Ingest(_ context.Context, items []domain.Content) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = append(m.items, items...)
	return nil
}

func (m *captureMessaging) Query(context.Context, string, ports.ContentFilter) ([]*domain.Content, error) {
	return nil, nil
}

func (m *captureMessaging) TagsTracked() []string { return []string{"tagfall"} }

func (m *captureMessaging) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

type fakeProvider struct {
	id       domain.ProviderID
	enabled  bool
	interval time.Duration
	fetchErr error
	health   domain.ProviderStatus

	mu      sync.Mutex
	fetches int
}

func (p *fakeProvider) ID() domain.ProviderID { return p.id }
func (p *fakeProvider) DisplayName() string   { return string(p.id) }
func (p *fakeProvider) Enabled() bool         { return p.enabled }

func (p *fakeProvider) PollInterval() time.Duration { return p.interval }

func (p *fakeProvider) FetchNew(_ context.Context, _ string, _ time.Time) ([]domain.Content, error) {
	p.mu.Lock()
	p.fetches++
	n := p.fetches
	p.mu.Unlock()

	if p.fetchErr != nil {
		return nil, p.fetchErr
	}
	return []domain.Content{{
		Provider:      p.id,
		ProviderID:    string(p.id) + "-" + time.Now().Add(time.Duration(n)).Format("150405.000000000"),
		Author:        domain.Author{UserName: "tester"},
		Text:          "hello",
		Timestamp:     time.Now(),
		HashtagSought: "tagfall",
	}}, nil
}

func (p *fakeProvider) Health() domain.ProviderHealth {
	return domain.ProviderHealth{Provider: p.id, Status: p.health}
}

func (p *fakeProvider) fetchCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fetches
}

func healthFor(t *testing.T, s *Scheduler, id domain.ProviderID) domain.ProviderHealth {
	t.Helper()
	for _, h := range s.Health() {
		if h.Provider == id {
			return h
		}
	}
	t.Fatalf("no health entry for %s", id)
	return domain.ProviderHealth{}
}

func TestScheduler_FailingProviderDoesNotStallOthers(t *testing.T) {
	messaging := &captureMessaging{}
	s := NewScheduler(messaging, zap.NewNop().Sugar(), nil)

	broken := &fakeProvider{id: "BROKEN", enabled: true, interval: 20 * time.Millisecond, fetchErr: errors.New("upstream 500")}
	healthy := &fakeProvider{id: "HEALTHY", enabled: true, interval: 20 * time.Millisecond}
	s.Register(broken)
	s.Register(healthy)

	s.Start()
	time.Sleep(600 * time.Millisecond)
	s.Stop()

	assert.GreaterOrEqual(t, healthy.fetchCount(), 5, "healthy provider should keep its cadence")
	assert.Positive(t, messaging.count())

	assert.Equal(t, domain.ProviderStatusUnhealthy, healthFor(t, s, "BROKEN").Status)
	assert.Equal(t, domain.ProviderStatusHealthy, healthFor(t, s, "HEALTHY").Status)
}

func TestScheduler_DisabledProviderNotScheduled(t *testing.T) {
	messaging := &captureMessaging{}
	s := NewScheduler(messaging, zap.NewNop().Sugar(), nil)

	disabled := &fakeProvider{id: "OFF", enabled: false, interval: 10 * time.Millisecond}
	s.Register(disabled)

	s.Start()
	time.Sleep(80 * time.Millisecond)
	s.Stop()

	assert.Zero(t, disabled.fetchCount())
	assert.Equal(t, domain.ProviderStatusDisabled, healthFor(t, s, "OFF").Status)
	assert.Empty(t, s.AvailableProviders())
}

func TestScheduler_DegradedProviderStillIngestsFetchedItems(t *testing.T) {
	messaging := &captureMessaging{}
	s := NewScheduler(messaging, zap.NewNop().Sugar(), nil)

	relay := &fakeProvider{id: "RELAY", enabled: true, interval: time.Hour, health: domain.ProviderStatusDegraded}
	s.Register(relay)

	state := s.providers["RELAY"]
	window := time.Now().Add(-time.Hour)
	state.mu.Lock()
	state.lastFetch = window
	state.mu.Unlock()

	s.tick(context.Background(), state)

	assert.Positive(t, messaging.count(), "a successful drain must not be dropped on a degraded health report")
	assert.Equal(t, domain.ProviderStatusDegraded, healthFor(t, s, "RELAY").Status)

	state.mu.Lock()
	defer state.mu.Unlock()
	assert.Equal(t, window, state.lastFetch, "since window must hold until a healthy fetch")
}

func TestScheduler_StopProviderLeavesOthersRunning(t *testing.T) {
	messaging := &captureMessaging{}
	s := NewScheduler(messaging, zap.NewNop().Sugar(), nil)

	first := &fakeProvider{id: "FIRST", enabled: true, interval: 20 * time.Millisecond}
	second := &fakeProvider{id: "SECOND", enabled: true, interval: 20 * time.Millisecond}
	s.Register(first)
	s.Register(second)

	s.Start()
	time.Sleep(100 * time.Millisecond)
	s.StopProvider("FIRST")
	stoppedAt := first.fetchCount()
	time.Sleep(200 * time.Millisecond)
	s.Stop()

	require.LessOrEqual(t, first.fetchCount(), stoppedAt+1, "stopped provider must not keep fetching")
	assert.Greater(t, second.fetchCount(), stoppedAt)
}
