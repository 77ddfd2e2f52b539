package domain

type EventType string

const (
	EventNewMessage         EventType = "new_message"
	EventApproved           EventType = "approved"
	EventRejected           EventType = "rejected"
	EventRemoved            EventType = "removed"
	EventModeratorJoined    EventType = "moderator_joined"
	EventModeratorLeft      EventType = "moderator_left"
	EventBlockedCountChange EventType = "blocked_count_changed"
	EventQueueItemAdded     EventType = "queue_item_added"
	EventQueueItemCompleted EventType = "queue_item_completed"
)

// Event is the tagged variant carried from mutations to subscribers. Tag is
// empty for broadcast events (moderator presence, blocked count); only the
// fields relevant to the Type are populated.
type Event struct {
	Type EventType `json:"type"`
	Tag  string    `json:"tag,omitempty"`

	Content *Content          `json:"content,omitempty"`
	Action  *ModerationAction `json:"action,omitempty"`

	Provider   ProviderID `json:"provider,omitempty"`
	ProviderID string     `json:"provider_id,omitempty"`

	Moderator    *Moderator `json:"moderator,omitempty"`
	BlockedCount int        `json:"blocked_count,omitempty"`

	QueueItem *QueueItem `json:"queue_item,omitempty"`
}

// Broadcast reports whether the event goes to every session instead of one
// tag group.
func (e Event) Broadcast() bool {
	switch e.Type {
	case EventModeratorJoined, EventModeratorLeft, EventBlockedCountChange:
		return true
	default:
		return false
	}
}
