package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/walkinq/queue-service/internal/domain"
	"github.com/walkinq/queue-service/internal/observability"
)

type stubSource struct {
	err error
}

func (s stubSource) Build(_ context.Context, queueID string) (*domain.QueueSnapshot, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &domain.QueueSnapshot{QueueID: queueID, Next: []domain.Ticket{}}, nil
}

type recordingSink struct {
	name string
	err  error

	mu       sync.Mutex
	messages []Message
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) Publish(_ context.Context, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
	return s.err
}

func (s *recordingSink) events() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.messages))
	for _, m := range s.messages {
		out = append(out, m.Event)
	}
	return out
}

func TestDispatcherPreservesPerQueueOrder(t *testing.T) {
	sink := &recordingSink{name: "rec"}
	d := NewAsyncDispatcher(stubSource{}, []Sink{sink}, DispatcherOptions{Workers: 4, Buffer: 16}, nil, observability.NewMetrics())
	d.Start(context.Background())

	ticket := &domain.Ticket{ID: "t1", QueueID: "q1", Number: 1, Status: domain.TicketStatusCalled}
	d.PublishSnapshot("q1")
	d.PublishEvent("q1", EventTicketCalled, ticket)
	d.PublishSnapshot("q1")
	d.PublishEvent("q1", EventTicketCompleted, ticket)
	d.Stop()

	assert.Equal(t, []string{EventQueueSnapshot, EventTicketCalled, EventQueueSnapshot, EventTicketCompleted}, sink.events())

	var payload TicketEventPayload
	require.NoError(t, json.Unmarshal(sink.messages[1].Data, &payload))
	assert.Equal(t, "q1", payload.QueueID)
	assert.Equal(t, "t1", payload.Ticket.ID)
	assert.Equal(t, "queue:q1", sink.messages[1].Room)
}

func TestDispatcherSinkFailureDoesNotStopOtherSinks(t *testing.T) {
	failing := &recordingSink{name: "redis", err: errors.New("connection refused")}
	ok := &recordingSink{name: "hub"}
	d := NewAsyncDispatcher(stubSource{}, []Sink{failing, ok}, DispatcherOptions{Workers: 1, Buffer: 4}, nil, nil)
	d.Start(context.Background())

	d.PublishSnapshot("q1")
	d.Stop()

	assert.Len(t, failing.events(), 1)
	assert.Equal(t, []string{EventQueueSnapshot}, ok.events())
}

func TestDispatcherDropsWhenBufferFull(t *testing.T) {
	sink := &recordingSink{name: "rec"}
	d := NewAsyncDispatcher(stubSource{}, []Sink{sink}, DispatcherOptions{Workers: 1, Buffer: 1}, nil, nil)

	// Workers are not running yet, so only the first job fits.
	d.PublishSnapshot("q1")
	d.PublishSnapshot("q1")
	d.PublishSnapshot("q1")

	d.Start(context.Background())
	d.Stop()

	assert.Len(t, sink.events(), 1)
}

func TestDispatcherSkipsFailedSnapshot(t *testing.T) {
	sink := &recordingSink{name: "rec"}
	d := NewAsyncDispatcher(stubSource{err: errors.New("db down")}, []Sink{sink}, DispatcherOptions{}, nil, nil)
	d.Start(context.Background())

	d.PublishSnapshot("q1")
	d.PublishEvent("q1", EventTicketServing, &domain.Ticket{ID: "t1", QueueID: "q1"})
	d.Stop()

	assert.Equal(t, []string{EventTicketServing}, sink.events())
}

func TestPublishAfterStopIsIgnored(t *testing.T) {
	sink := &recordingSink{name: "rec"}
	d := NewAsyncDispatcher(stubSource{}, []Sink{sink}, DispatcherOptions{}, nil, nil)
	d.Start(context.Background())
	d.Stop()
	d.Stop()

	assert.NotPanics(t, func() { d.PublishSnapshot("q1") })
	assert.Empty(t, sink.events())
}
