package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// TicketEventKind identifies the transition an event records.
type TicketEventKind string

const (
	EventCreated     TicketEventKind = "CREATED"
	EventCalled      TicketEventKind = "CALLED"
	EventRecalled    TicketEventKind = "RECALLED"
	EventServing     TicketEventKind = "SERVING"
	EventCompleted   TicketEventKind = "COMPLETED"
	EventNoShow      TicketEventKind = "NO_SHOW"
	EventTransferred TicketEventKind = "TRANSFERRED"
)

// EventMeta is the kind-specific payload attached to an event.
type EventMeta interface {
	Kind() TicketEventKind
}

// CalledMeta records the counter a ticket was called to.
type CalledMeta struct {
	CounterNumber *string `json:"counterNumber"`
}

func (CalledMeta) Kind() TicketEventKind { return EventCalled }

// TransferredMeta records the counter a ticket was moved to. Nil clears it.
type TransferredMeta struct {
	CounterNumber *string `json:"counterNumber"`
}

func (TransferredMeta) Kind() TicketEventKind { return EventTransferred }

// TicketEvent is an immutable record of one lifecycle transition.
type TicketEvent struct {
	ID        string          `json:"id"`
	TicketID  string          `json:"ticketId"`
	QueueID   string          `json:"queueId"`
	Kind      TicketEventKind `json:"type"`
	ActorID   string          `json:"actorId"`
	Meta      EventMeta       `json:"meta,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

// NewTicketEvent builds the event for a transition applied to ticket.
func NewTicketEvent(ticket *Ticket, kind TicketEventKind, actorID string, meta EventMeta) *TicketEvent {
	return &TicketEvent{
		TicketID: ticket.ID,
		QueueID:  ticket.QueueID,
		Kind:     kind,
		ActorID:  actorID,
		Meta:     meta,
	}
}

// EncodeMeta serializes the metadata for storage. Kinds without metadata encode to nil.
func EncodeMeta(meta EventMeta) ([]byte, error) {
	if meta == nil {
		return nil, nil
	}
	return json.Marshal(meta)
}

// DecodeEventMeta restores the typed metadata stored for kind.
func DecodeEventMeta(kind TicketEventKind, raw []byte) (EventMeta, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	switch kind {
	case EventCalled:
		var m CalledMeta
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, fmt.Errorf("decode %s meta: %w", kind, err)
		}
		return m, nil
	case EventTransferred:
		var m TransferredMeta
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, fmt.Errorf("decode %s meta: %w", kind, err)
		}
		return m, nil
	default:
		return nil, fmt.Errorf("event kind %s carries no meta", kind)
	}
}

// statusAfter maps an event kind to the status it leaves the ticket in.
// TRANSFERRED keeps the previous status.
var statusAfter = map[TicketEventKind]TicketStatus{
	EventCreated:   TicketStatusWaiting,
	EventCalled:    TicketStatusCalled,
	EventRecalled:  TicketStatusCalled,
	EventServing:   TicketStatusServing,
	EventCompleted: TicketStatusCompleted,
	EventNoShow:    TicketStatusNoShow,
}

// ReplayStatus derives a ticket's status from its events in creation order.
// It returns false when the log has no CREATED event.
func ReplayStatus(events []TicketEvent) (TicketStatus, bool) {
	var (
		status  TicketStatus
		created bool
	)
	for _, ev := range events {
		if ev.Kind == EventCreated {
			created = true
		}
		if !created {
			continue
		}
		if next, ok := statusAfter[ev.Kind]; ok {
			status = next
		}
	}
	return status, created
}
