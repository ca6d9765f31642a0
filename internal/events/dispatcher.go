package events

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/walkinq/queue-service/internal/domain"
	"github.com/walkinq/queue-service/internal/observability"
)

// Dispatcher publishes queue state to realtime subscribers. Calls never block
// on delivery and never report delivery failures to the caller.
type Dispatcher interface {
	PublishSnapshot(queueID string)
	PublishEvent(queueID, event string, ticket *domain.Ticket)
}

// SnapshotSource computes the current view of a queue.
type SnapshotSource interface {
	Build(ctx context.Context, queueID string) (*domain.QueueSnapshot, error)
}

// Sink delivers an encoded message to one transport.
type Sink interface {
	Name() string
	Publish(ctx context.Context, msg Message) error
}

// DispatcherOptions tunes the worker pool.
type DispatcherOptions struct {
	Workers        int
	Buffer         int
	PublishTimeout time.Duration
}

type job struct {
	queueID  string
	event    string
	ticket   *domain.Ticket
	snapshot bool
}

// AsyncDispatcher fans broadcasts out from worker goroutines. Jobs are sharded
// by queue id so each queue's broadcasts keep their publish order.
type AsyncDispatcher struct {
	source  SnapshotSource
	sinks   []Sink
	logger  *zap.Logger
	metrics *observability.Metrics
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	shards []chan job
	wg     sync.WaitGroup
}

// NewAsyncDispatcher creates a dispatcher; call Start before publishing.
func NewAsyncDispatcher(source SnapshotSource, sinks []Sink, opts DispatcherOptions, logger *zap.Logger, metrics *observability.Metrics) *AsyncDispatcher {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Buffer <= 0 {
		opts.Buffer = 64
	}
	if opts.PublishTimeout <= 0 {
		opts.PublishTimeout = 2 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	shards := make([]chan job, opts.Workers)
	for i := range shards {
		shards[i] = make(chan job, opts.Buffer)
	}
	return &AsyncDispatcher{
		source:  source,
		sinks:   sinks,
		logger:  logger,
		metrics: metrics,
		timeout: opts.PublishTimeout,
		shards:  shards,
	}
}

// Start launches one worker per shard.
func (d *AsyncDispatcher) Start(ctx context.Context) {
	for _, ch := range d.shards {
		d.wg.Add(1)
		go d.work(ctx, ch)
	}
}

// Stop stops accepting jobs and waits for queued ones to drain.
func (d *AsyncDispatcher) Stop() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for _, ch := range d.shards {
		close(ch)
	}
	d.mu.Unlock()
	d.wg.Wait()
}

// PublishSnapshot schedules a fresh snapshot broadcast for queueID.
func (d *AsyncDispatcher) PublishSnapshot(queueID string) {
	d.enqueue(job{queueID: queueID, snapshot: true})
}

// PublishEvent schedules a ticket lifecycle broadcast.
func (d *AsyncDispatcher) PublishEvent(queueID, event string, ticket *domain.Ticket) {
	d.enqueue(job{queueID: queueID, event: event, ticket: ticket.Clone()})
}

func (d *AsyncDispatcher) enqueue(j job) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.metrics.RecordBroadcastDropped("closed")
		return
	}
	select {
	case d.shards[shardFor(j.queueID, len(d.shards))] <- j:
	default:
		d.metrics.RecordBroadcastDropped("buffer_full")
		d.logger.Warn("broadcast buffer full; dropping",
			zap.String("queue_id", j.queueID),
			zap.String("event", j.event),
			zap.Bool("snapshot", j.snapshot))
	}
}

func (d *AsyncDispatcher) work(ctx context.Context, ch <-chan job) {
	defer d.wg.Done()
	for j := range ch {
		msg, err := d.render(ctx, j)
		if err != nil {
			d.metrics.RecordBroadcastDropped("render_failed")
			d.logger.Warn("broadcast render failed", zap.String("queue_id", j.queueID), zap.Error(err))
			continue
		}
		d.deliver(ctx, msg)
	}
}

func (d *AsyncDispatcher) render(ctx context.Context, j job) (Message, error) {
	if j.snapshot {
		buildCtx, cancel := context.WithTimeout(ctx, d.timeout)
		defer cancel()
		snapshot, err := d.source.Build(buildCtx, j.queueID)
		if err != nil {
			return Message{}, err
		}
		return NewMessage(j.queueID, EventQueueSnapshot, snapshot)
	}
	return NewMessage(j.queueID, j.event, TicketEventPayload{QueueID: j.queueID, Ticket: j.ticket})
}

func (d *AsyncDispatcher) deliver(ctx context.Context, msg Message) {
	for _, sink := range d.sinks {
		sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
		err := sink.Publish(sendCtx, msg)
		cancel()
		d.metrics.RecordBroadcast(sink.Name(), err)
		if err != nil {
			d.logger.Warn("broadcast delivery failed",
				zap.String("sink", sink.Name()),
				zap.String("room", msg.Room),
				zap.String("event", msg.Event),
				zap.Error(err))
		}
	}
}

func shardFor(queueID string, n int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(queueID))
	return int(h.Sum32() % uint32(n))
}
