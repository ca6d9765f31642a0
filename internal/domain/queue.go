package domain

import "time"

// Organization is a tenant owning queues and users.
type Organization struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// Queue is an ordered waiting line scoped to one organization.
type Queue struct {
	ID         string
	OrgID      string
	Name       string
	NextNumber int
	CreatedAt  time.Time
	Services   []Service
}

// Service is an optional classification for tickets within a queue.
type Service struct {
	ID        string
	QueueID   string
	Name      string
	CreatedAt time.Time
}

// RoomName is the realtime channel scope for a queue.
func RoomName(queueID string) string {
	return "queue:" + queueID
}
