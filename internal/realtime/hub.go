package realtime

import (
	"context"
	"errors"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/walkinq/queue-service/internal/domain"
	"github.com/walkinq/queue-service/internal/events"
	"github.com/walkinq/queue-service/internal/observability"
)

// ErrHubClosed is returned when the hub loop has stopped.
var ErrHubClosed = errors.New("realtime hub closed")

var subscriberSeq atomic.Uint64

// Subscriber is one connected realtime client.
type Subscriber struct {
	ID   uint64
	send chan events.Message
}

// NewSubscriber creates a subscriber with a bounded outbound buffer.
func NewSubscriber(buffer int) *Subscriber {
	if buffer <= 0 {
		buffer = 32
	}
	return &Subscriber{ID: subscriberSeq.Add(1), send: make(chan events.Message, buffer)}
}

// Messages yields broadcasts for the rooms the subscriber joined. It is closed
// after LeaveAll or when the hub stops.
func (s *Subscriber) Messages() <-chan events.Message {
	return s.send
}

type membership struct {
	sub  *Subscriber
	room string
	done chan struct{}
}

// Hub owns room membership. All state is confined to the Run goroutine and
// mutated only through its channels.
type Hub struct {
	logger  *zap.Logger
	metrics *observability.Metrics

	join  chan membership
	leave chan *Subscriber
	emit  chan events.Message
	done  chan struct{}

	rooms   map[string]map[*Subscriber]struct{}
	members map[*Subscriber]map[string]struct{}
}

// NewHub creates a hub; Run must be started before use.
func NewHub(logger *zap.Logger, metrics *observability.Metrics) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		logger:  logger,
		metrics: metrics,
		join:    make(chan membership),
		leave:   make(chan *Subscriber),
		emit:    make(chan events.Message, 128),
		done:    make(chan struct{}),
		rooms:   make(map[string]map[*Subscriber]struct{}),
		members: make(map[*Subscriber]map[string]struct{}),
	}
}

// Run processes membership changes and broadcasts until ctx ends.
func (h *Hub) Run(ctx context.Context) {
	defer h.shutdown()
	for {
		select {
		case <-ctx.Done():
			return
		case m := <-h.join:
			h.add(m.sub, m.room)
			close(m.done)
		case sub := <-h.leave:
			h.remove(sub)
		case msg := <-h.emit:
			h.fanOut(msg)
		}
	}
}

// Join admits sub to the queue's room. Access checks happen before calling Join.
func (h *Hub) Join(ctx context.Context, sub *Subscriber, queueID string) error {
	m := membership{sub: sub, room: domain.RoomName(queueID), done: make(chan struct{})}
	select {
	case h.join <- m:
	case <-h.done:
		return ErrHubClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-m.done:
		return nil
	case <-h.done:
		return ErrHubClosed
	}
}

// LeaveAll removes sub from every room and closes its message channel.
func (h *Hub) LeaveAll(sub *Subscriber) {
	select {
	case h.leave <- sub:
	case <-h.done:
	}
}

// Emit queues msg for every subscriber of its room.
func (h *Hub) Emit(ctx context.Context, msg events.Message) error {
	select {
	case h.emit <- msg:
		return nil
	case <-h.done:
		return ErrHubClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Name implements events.Sink.
func (h *Hub) Name() string { return "hub" }

// Publish implements events.Sink.
func (h *Hub) Publish(ctx context.Context, msg events.Message) error {
	return h.Emit(ctx, msg)
}

func (h *Hub) add(sub *Subscriber, room string) {
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[*Subscriber]struct{})
	}
	h.rooms[room][sub] = struct{}{}
	if h.members[sub] == nil {
		h.members[sub] = make(map[string]struct{})
		h.metrics.AddStreamSubscribers(1)
	}
	h.members[sub][room] = struct{}{}
}

func (h *Hub) remove(sub *Subscriber) {
	rooms, ok := h.members[sub]
	if !ok {
		return
	}
	for room := range rooms {
		delete(h.rooms[room], sub)
		if len(h.rooms[room]) == 0 {
			delete(h.rooms, room)
		}
	}
	delete(h.members, sub)
	close(sub.send)
	h.metrics.AddStreamSubscribers(-1)
}

func (h *Hub) fanOut(msg events.Message) {
	for sub := range h.rooms[msg.Room] {
		select {
		case sub.send <- msg:
		default:
			// Slow subscribers miss messages and resync from the next snapshot.
			h.metrics.RecordBroadcastDropped("subscriber_slow")
			h.logger.Debug("subscriber buffer full", zap.Uint64("subscriber", sub.ID), zap.String("room", msg.Room))
		}
	}
}

func (h *Hub) shutdown() {
	close(h.done)
	for sub := range h.members {
		h.remove(sub)
	}
}
