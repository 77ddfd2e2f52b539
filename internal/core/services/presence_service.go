package services

import (
	"sync"

	"tagfall/internal/core/domain"
	"tagfall/internal/core/ports"
)

// presenceService owns the moderator presence table. Lifecycle is tied to
// session connect/disconnect; the same moderator may hold several sessions
// and stays present until the last one leaves.
type presenceService struct {
	mu         sync.RWMutex
	bySession  map[domain.SessionID]domain.Moderator
	dispatcher ports.Dispatcher
}

func NewPresenceService(dispatcher ports.Dispatcher) ports.PresenceService {
	return &presenceService{
		bySession:  make(map[domain.SessionID]domain.Moderator),
		dispatcher: dispatcher,
	}
}

func (s *presenceService) Join(sessionID domain.SessionID, moderator domain.Moderator) {
	s.mu.Lock()
	alreadyPresent := false
	for _, m := range s.bySession {
		if m.ID == moderator.ID {
			alreadyPresent = true
			break
		}
	}
	s.bySession[sessionID] = moderator
	s.mu.Unlock()

	if !alreadyPresent {
		s.dispatcher.Publish(domain.Event{
			Type:      domain.EventModeratorJoined,
			Moderator: &moderator,
		})
	}
}

func (s *presenceService) Leave(sessionID domain.SessionID) {
	s.mu.Lock()
	moderator, ok := s.bySession[sessionID]
	if ok {
		delete(s.bySession, sessionID)
	}
	stillPresent := false
	for _, m := range s.bySession {
		if m.ID == moderator.ID {
			stillPresent = true
			break
		}
	}
	s.mu.Unlock()

	if ok && !stillPresent {
		s.dispatcher.Publish(domain.Event{
			Type:      domain.EventModeratorLeft,
			Moderator: &moderator,
		})
	}
}

func (s *presenceService) Current() []domain.Moderator {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[domain.ModeratorID]bool, len(s.bySession))
	result := make([]domain.Moderator, 0, len(s.bySession))
	for _, m := range s.bySession {
		if seen[m.ID] {
			continue
		}
		seen[m.ID] = true
		result = append(result, m)
	}
	return result
}
