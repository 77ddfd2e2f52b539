// Package dispatch fans domain events out to live websocket sessions.
package dispatch

import (
	"sync"

	"tagfall/internal/core/domain"

	"go.uber.org/zap"
)

// DispatchMetrics receives hub counters; nil disables them.
type DispatchMetrics interface {
	EventDispatched(eventType domain.EventType)
	EventDropped()
	SetSessions(count int)
}

// Session is one live subscriber. Events arrive on the buffered channel;
// when the buffer is full new events are dropped for this session only.
type Session struct {
	ID          domain.SessionID
	Tags        []string
	IsModerator bool
	Moderator   domain.Moderator
	Events      chan domain.Event

	// done is closed on Unsubscribe. The events channel itself is never
	// closed, so a publish racing an unsubscribe cannot panic.
	done chan struct{}
}

// Done is closed when the session is unsubscribed.
func (s *Session) Done() <-chan struct{} { return s.done }

// subscribedTo reports whether the session's tag group contains the tag.
// Tags are stored normalized, so this is a plain lookup.
func (s *Session) subscribedTo(tag string) bool {
	normalized := domain.NormalizeTag(tag)
	for _, t := range s.Tags {
		if t == normalized {
			return true
		}
	}
	return false
}

// Hub routes events to sessions: tag-scoped events go to sessions whose tag
// group contains the event's tag, broadcast events go to everyone. Delivery
// is at-most-once per live connection; there is no replay.
type Hub struct {
	mu       sync.RWMutex
	sessions map[domain.SessionID]*Session

	bufferSize int
	logger     *zap.SugaredLogger
	metrics    DispatchMetrics
}

func NewHub(bufferSize int, logger *zap.SugaredLogger, metrics DispatchMetrics) *Hub {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	return &Hub{
		sessions:   make(map[domain.SessionID]*Session),
		bufferSize: bufferSize,
		logger:     logger,
		metrics:    metrics,
	}
}

// Subscribe registers a session for the given tags. The caller owns the
// returned session's lifecycle and must Unsubscribe when the connection ends.
func (h *Hub) Subscribe(id domain.SessionID, tags []string, isModerator bool) *Session {
	normalized := make([]string, 0, len(tags))
	for _, tag := range tags {
		if t := domain.NormalizeTag(tag); t != "" {
			normalized = append(normalized, t)
		}
	}

	session := &Session{
		ID:          id,
		Tags:        normalized,
		IsModerator: isModerator,
		Events:      make(chan domain.Event, h.bufferSize),
		done:        make(chan struct{}),
	}

	h.mu.Lock()
	h.sessions[id] = session
	count := len(h.sessions)
	h.mu.Unlock()

	if h.metrics != nil {
		h.metrics.SetSessions(count)
	}
	h.logger.Infow("session subscribed", "session_id", id, "tags", normalized, "moderator", isModerator)
	return session
}

func (h *Hub) Unsubscribe(id domain.SessionID) {
	h.mu.Lock()
	session, ok := h.sessions[id]
	if ok {
		delete(h.sessions, id)
	}
	count := len(h.sessions)
	h.mu.Unlock()

	if !ok {
		return
	}
	close(session.done)

	if h.metrics != nil {
		h.metrics.SetSessions(count)
	}
	h.logger.Infow("session unsubscribed", "session_id", id)
}

// Publish implements ports.Dispatcher. Sends never block: a slow subscriber
// loses events instead of stalling the mutation path.
func (h *Hub) Publish(event domain.Event) {
	h.mu.RLock()
	targets := make([]*Session, 0, len(h.sessions))
	for _, session := range h.sessions {
		if event.Broadcast() || session.subscribedTo(event.Tag) {
			targets = append(targets, session)
		}
	}
	h.mu.RUnlock()

	for _, session := range targets {
		select {
		case session.Events <- event:
			if h.metrics != nil {
				h.metrics.EventDispatched(event.Type)
			}
		default:
			if h.metrics != nil {
				h.metrics.EventDropped()
			}
			h.logger.Warnw("session buffer full, event dropped",
				"session_id", session.ID,
				"event_type", event.Type,
			)
		}
	}
}

// SessionCount returns the number of live sessions.
func (h *Hub) SessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}
