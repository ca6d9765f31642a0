package domain

// SnapshotNextLimit caps the waiting tickets shown on displays.
const SnapshotNextLimit = 5

// QueueSnapshot is the derived "now serving + next" view of a queue.
type QueueSnapshot struct {
	QueueID string   `json:"queueId"`
	Current *Ticket  `json:"current"`
	Next    []Ticket `json:"next"`
}
