package events

import (
	"encoding/json"
	"time"

	"github.com/walkinq/queue-service/internal/domain"
)

// Broadcast event names on a queue's channel.
const (
	EventSubscribed      = "subscribed"
	EventQueueSnapshot   = "queue.snapshot"
	EventTicketCalled    = "ticket.called"
	EventTicketServing   = "ticket.serving"
	EventTicketCompleted = "ticket.completed"
	EventTicketNoShow    = "ticket.no_show"
)

// Message is one broadcast delivered to every subscriber of Room.
type Message struct {
	Room      string          `json:"room"`
	QueueID   string          `json:"queueId"`
	Event     string          `json:"event"`
	Data      json.RawMessage `json:"data"`
	EmittedAt time.Time       `json:"emittedAt"`
}

// TicketEventPayload is the data of ticket.* broadcasts.
type TicketEventPayload struct {
	QueueID string         `json:"queueId"`
	Ticket  *domain.Ticket `json:"ticket"`
}

// NewMessage encodes data for the queue's room.
func NewMessage(queueID, event string, data any) (Message, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Message{}, err
	}
	return Message{
		Room:      domain.RoomName(queueID),
		QueueID:   queueID,
		Event:     event,
		Data:      raw,
		EmittedAt: time.Now().UTC(),
	}, nil
}
