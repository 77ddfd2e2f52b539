package domain

// QueueItem is an item promoted to the manual "on-screen next" queue.
// At most one queue item exists per content identity; OrderBy ties are
// broken by insertion order.
type QueueItem struct {
	Content      Content `json:"content"`
	SpeakerNotes string  `json:"speaker_notes"`
	OrderBy      int     `json:"order_by"`
	IsCompleted  bool    `json:"is_completed"`
}
