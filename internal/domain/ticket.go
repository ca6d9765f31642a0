package domain

import (
	"strings"
	"time"
)

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusWaiting   TicketStatus = "WAITING"
	TicketStatusCalled    TicketStatus = "CALLED"
	TicketStatusServing   TicketStatus = "SERVING"
	TicketStatusCompleted TicketStatus = "COMPLETED"
	TicketStatusNoShow    TicketStatus = "NO_SHOW"
)

// Valid reports whether s is a known status.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusWaiting, TicketStatusCalled, TicketStatusServing, TicketStatusCompleted, TicketStatusNoShow:
		return true
	}
	return false
}

// Terminal reports whether no further transition may change the status.
func (s TicketStatus) Terminal() bool {
	return s == TicketStatusCompleted || s == TicketStatusNoShow
}

// Active reports whether the ticket is at a counter.
func (s TicketStatus) Active() bool {
	return s == TicketStatusCalled || s == TicketStatusServing
}

// Ticket is a customer's numbered claim on a queue.
type Ticket struct {
	ID            string       `json:"id"`
	QueueID       string       `json:"queueId"`
	ServiceID     *string      `json:"serviceId"`
	Number        int          `json:"number"`
	Status        TicketStatus `json:"status"`
	CounterNumber *string      `json:"counterNumber"`
	AgentID       *string      `json:"agentId"`
	CreatedAt     time.Time    `json:"createdAt"`
	CalledAt      *time.Time   `json:"calledAt"`
	ServingAt     *time.Time   `json:"servingAt"`
	CompletedAt   *time.Time   `json:"completedAt"`
}

// LastStampedAt returns the most recent lifecycle timestamp.
func (t *Ticket) LastStampedAt() time.Time {
	last := t.CreatedAt
	for _, ts := range []*time.Time{t.CalledAt, t.ServingAt, t.CompletedAt} {
		if ts != nil && ts.After(last) {
			last = *ts
		}
	}
	return last
}

// Clone returns a deep copy so callers can mutate without aliasing stored state.
// String contents are copied too, so a clone never shares bytes with request buffers.
func (t *Ticket) Clone() *Ticket {
	if t == nil {
		return nil
	}
	c := *t
	c.ID = strings.Clone(t.ID)
	c.QueueID = strings.Clone(t.QueueID)
	c.ServiceID = cloneString(t.ServiceID)
	c.CounterNumber = cloneString(t.CounterNumber)
	c.AgentID = cloneString(t.AgentID)
	c.CalledAt = cloneTime(t.CalledAt)
	c.ServingAt = cloneTime(t.ServingAt)
	c.CompletedAt = cloneTime(t.CompletedAt)
	return &c
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.Clone(*s)
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
