package services

import (
	"sync"

	"tagfall/internal/core/domain"
)

// recordingDispatcher captures published events for assertions.
type recordingDispatcher struct {
	mu     sync.Mutex
	events []domain.Event
}

func (d *recordingDispatcher) Publish(event domain.Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, event)
}

func (d *recordingDispatcher) Events() []domain.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]domain.Event, len(d.events))
	copy(out, d.events)
	return out
}

func (d *recordingDispatcher) CountByType(t domain.EventType) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, ev := range d.events {
		if ev.Type == t {
			n++
		}
	}
	return n
}
