// Package viewer implements the client-side rendered view of one subscriber
// session: live events apply immediately, paused events accumulate in a
// buffer that flushes in arrival order on resume, without dropping or
// duplicating any item.
package viewer

import (
	"sort"
	"sync"
	"time"

	"tagfall/internal/core/domain"
)

// RenderedItem is one content item as currently shown, together with its
// observed moderation state.
type RenderedItem struct {
	Content             domain.Content
	State               domain.ModerationState
	ModerationTimestamp time.Time
}

// View is the per-session pause/resume state machine. All methods are safe
// for concurrent use; state is owned by the session and never shared.
type View struct {
	mu       sync.Mutex
	paused   bool
	rendered map[domain.ContentID]*RenderedItem

	// buffer holds events that arrived while paused, in arrival order.
	// bufferIdx maps an identity to its buffer slot so a later event for
	// the same identity replaces the earlier one in place instead of
	// appending a duplicate.
	buffer    []domain.Event
	bufferIdx map[domain.ContentID]int
}

func New() *View {
	return &View{
		rendered:  make(map[domain.ContentID]*RenderedItem),
		bufferIdx: make(map[domain.ContentID]int),
	}
}

func (v *View) Paused() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.paused
}

// BufferedCount is the running counter exposed to the pause button UI.
func (v *View) BufferedCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.buffer)
}

// SetPaused toggles the pause state. Resuming flushes every buffered event
// in original arrival order, then clears the buffer and resets the counter.
func (v *View) SetPaused(paused bool) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.paused == paused {
		return
	}
	v.paused = paused
	if paused {
		return
	}

	for _, ev := range v.buffer {
		v.applyNow(ev)
	}
	v.buffer = nil
	v.bufferIdx = make(map[domain.ContentID]int)
}

// Apply routes one inbound event through the pause discipline. Removals
// bypass the buffer and take effect immediately regardless of pause state.
func (v *View) Apply(ev domain.Event) {
	v.mu.Lock()
	defer v.mu.Unlock()

	switch ev.Type {
	case domain.EventRemoved:
		id := domain.ContentID{Provider: ev.Provider, ProviderID: ev.ProviderID}
		delete(v.rendered, id)
		v.dropBuffered(id)
		return
	case domain.EventNewMessage, domain.EventApproved, domain.EventRejected:
	default:
		return
	}

	if ev.Content == nil {
		return
	}

	if !v.paused {
		v.applyNow(ev)
		return
	}

	id := ev.Content.ID()
	if _, ok := v.rendered[id]; ok {
		// Already on screen: mutate in place rather than buffering a
		// duplicate for the resume flush.
		v.applyNow(ev)
		return
	}
	if idx, ok := v.bufferIdx[id]; ok {
		v.buffer[idx] = ev
		return
	}
	v.bufferIdx[id] = len(v.buffer)
	v.buffer = append(v.buffer, ev)
}

// applyNow applies an event to the rendered view. Caller holds the lock.
func (v *View) applyNow(ev domain.Event) {
	id := ev.Content.ID()
	state := domain.ModerationStatePending
	var moderatedAt time.Time
	switch ev.Type {
	case domain.EventApproved:
		state = domain.ModerationStateApproved
	case domain.EventRejected:
		state = domain.ModerationStateRejected
	}
	if ev.Action != nil {
		moderatedAt = ev.Action.ModerationTimestamp
	}

	existing, ok := v.rendered[id]
	if !ok {
		v.rendered[id] = &RenderedItem{
			Content:             *ev.Content,
			State:               state,
			ModerationTimestamp: moderatedAt,
		}
		return
	}

	if existing.State == state {
		return
	}
	existing.State = state
	existing.ModerationTimestamp = moderatedAt
}

// dropBuffered removes a buffered event for the identity, if any, and
// reindexes the remainder. Caller holds the lock.
func (v *View) dropBuffered(id domain.ContentID) {
	idx, ok := v.bufferIdx[id]
	if !ok {
		return
	}
	v.buffer = append(v.buffer[:idx], v.buffer[idx+1:]...)
	delete(v.bufferIdx, id)
	for i := idx; i < len(v.buffer); i++ {
		v.bufferIdx[v.buffer[i].Content.ID()] = i
	}
}

// Get returns the rendered copy for an identity, if on screen.
func (v *View) Get(id domain.ContentID) (RenderedItem, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	item, ok := v.rendered[id]
	if !ok {
		return RenderedItem{}, false
	}
	return *item, true
}

// Rendered returns the on-screen items ordered by the content sort key,
// oldest first.
func (v *View) Rendered() []RenderedItem {
	v.mu.Lock()
	defer v.mu.Unlock()

	items := make([]RenderedItem, 0, len(v.rendered))
	for _, item := range v.rendered {
		items = append(items, *item)
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].Content.SortKey() < items[j].Content.SortKey()
	})
	return items
}
