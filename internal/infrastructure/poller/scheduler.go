// Package poller drives each provider adapter on its own cadence. One
// adapter's latency or failure never affects another's schedule: every
// provider runs in its own goroutine behind a retry wrapper and a circuit
// breaker.
package poller

import (
	"context"
	"sync"
	"time"

	"tagfall/internal/core/domain"
	"tagfall/internal/core/ports"
	"tagfall/pkg/circuitbreaker"
	"tagfall/pkg/retry"

	"go.uber.org/zap"
)

// PollMetrics receives scheduler counters; nil disables them.
type PollMetrics interface {
	ObserveFetch(provider domain.ProviderID, duration time.Duration, err error)
	SetProviderHealth(provider domain.ProviderID, status domain.ProviderStatus)
}

type pollState struct {
	provider ports.SocialMediaProvider
	breaker  *circuitbreaker.CircuitBreaker
	cancel   context.CancelFunc

	mu        sync.Mutex
	health    domain.ProviderHealth
	lastFetch time.Time
}

type Scheduler struct {
	messaging ports.MessagingService
	retryCfg  retry.Config
	logger    *zap.SugaredLogger
	metrics   PollMetrics

	mu        sync.RWMutex
	providers map[domain.ProviderID]*pollState

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewScheduler(messaging ports.MessagingService, logger *zap.SugaredLogger, metrics PollMetrics) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		messaging: messaging,
		retryCfg:  retry.DefaultConfig(),
		logger:    logger,
		metrics:   metrics,
		providers: make(map[domain.ProviderID]*pollState),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Register adds a provider adapter. Disabled providers are kept for health
// reporting but never scheduled.
func (s *Scheduler) Register(provider ports.SocialMediaProvider) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := &pollState{
		provider: provider,
		breaker:  circuitbreaker.New(circuitbreaker.DefaultConfig()),
		health:   provider.Health(),
	}
	if !provider.Enabled() {
		state.health = domain.ProviderHealth{
			Provider:  provider.ID(),
			Status:    domain.ProviderStatusDisabled,
			Message:   "provider disabled",
			CheckedAt: time.Now(),
		}
	}
	s.providers[provider.ID()] = state
}

// Start launches one polling loop per enabled provider.
func (s *Scheduler) Start() {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, state := range s.providers {
		if !state.provider.Enabled() {
			continue
		}
		loopCtx, loopCancel := context.WithCancel(s.ctx)
		state.cancel = loopCancel
		s.wg.Add(1)
		go s.pollLoop(loopCtx, state)
	}
}

// Stop cancels all polling loops and waits for in-flight fetches to drain.
// Fetches are not interrupted mid-call, only not rescheduled.
func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
}

// StopProvider stops one provider's loop, for disable/reconfigure, leaving
// the others untouched.
func (s *Scheduler) StopProvider(id domain.ProviderID) {
	s.mu.RLock()
	state, ok := s.providers[id]
	s.mu.RUnlock()
	if ok && state.cancel != nil {
		state.cancel()
	}
}

// Health returns the last observed health of every registered provider.
func (s *Scheduler) Health() []domain.ProviderHealth {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.ProviderHealth, 0, len(s.providers))
	for _, state := range s.providers {
		state.mu.Lock()
		result = append(result, state.health)
		state.mu.Unlock()
	}
	return result
}

// AvailableProviders lists enabled providers for client filter UIs.
func (s *Scheduler) AvailableProviders() []domain.AvailableProvider {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.AvailableProvider, 0, len(s.providers))
	for _, state := range s.providers {
		if !state.provider.Enabled() {
			continue
		}
		result = append(result, domain.AvailableProvider{
			ID:          state.provider.ID(),
			DisplayName: state.provider.DisplayName(),
		})
	}
	return result
}

func (s *Scheduler) pollLoop(ctx context.Context, state *pollState) {
	defer s.wg.Done()

	provider := state.provider
	interval := provider.PollInterval()
	if interval <= 0 {
		interval = 30 * time.Second
	}

	s.logger.Infow("provider polling started",
		"provider", provider.ID(),
		"interval", interval,
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Prime the first window so a fresh start picks up recent history.
	state.mu.Lock()
	state.lastFetch = time.Now().Add(-time.Hour)
	state.mu.Unlock()

	for {
		select {
		case <-ctx.Done():
			s.logger.Infow("provider polling stopped", "provider", provider.ID())
			return
		case <-ticker.C:
			s.tick(ctx, state)
		}
	}
}

// tick fetches every tracked tag once. A failure is recorded and skipped;
// the next tick is scheduled normally.
func (s *Scheduler) tick(ctx context.Context, state *pollState) {
	provider := state.provider

	state.mu.Lock()
	since := state.lastFetch
	state.mu.Unlock()

	fetchStart := time.Now()
	var fetched []domain.Content

	err := state.breaker.Execute(func() error {
		return retry.Do(ctx, s.retryCfg, func() error {
			fetched = fetched[:0]
			for _, tag := range s.messaging.TagsTracked() {
				items, err := provider.FetchNew(ctx, tag, since)
				if err != nil {
					return err
				}
				fetched = append(fetched, items...)
			}
			return nil
		})
	})

	if s.metrics != nil {
		s.metrics.ObserveFetch(provider.ID(), time.Since(fetchStart), err)
	}

	if err != nil {
		s.recordHealth(state, domain.ProviderHealth{
			Provider:  provider.ID(),
			Status:    domain.ProviderStatusUnhealthy,
			Message:   err.Error(),
			CheckedAt: time.Now(),
		})
		s.logger.Warnw("provider fetch failed, tick skipped",
			"provider", provider.ID(),
			"error", err,
		)
		return
	}

	health := provider.Health()
	health.CheckedAt = time.Now()
	s.recordHealth(state, health)

	// A degraded adapter may still have handed back items; they are ingested
	// either way. Only the since window stays put so the next healthy fetch
	// re-covers the gap.
	if health.Status == domain.ProviderStatusUnhealthy || health.Status == domain.ProviderStatusDegraded {
		s.logger.Warnw("provider reported degraded health, since window held",
			"provider", provider.ID(),
			"status", health.Status.String(),
			"message", health.Message,
		)
	} else {
		state.mu.Lock()
		state.lastFetch = fetchStart
		state.mu.Unlock()
	}

	if len(fetched) == 0 {
		return
	}

	if err := s.messaging.Ingest(ctx, fetched); err != nil {
		s.logger.Errorw("ingest failed",
			"provider", provider.ID(),
			"items", len(fetched),
			"error", err,
		)
	}
}

func (s *Scheduler) recordHealth(state *pollState, health domain.ProviderHealth) {
	state.mu.Lock()
	state.health = health
	state.mu.Unlock()

	if s.metrics != nil {
		s.metrics.SetProviderHealth(health.Provider, health.Status)
	}
}
