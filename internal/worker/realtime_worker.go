package worker

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/walkinq/queue-service/internal/events"
	"github.com/walkinq/queue-service/internal/realtime"
)

// RealtimeWorker owns the background loops behind broadcasts: the hub, the
// optional Redis relay and the dispatcher pool.
type RealtimeWorker struct {
	hub        *realtime.Hub
	relay      *realtime.RedisRelay
	dispatcher *events.AsyncDispatcher
	logger     *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRealtimeWorker creates the worker. relay may be nil.
func NewRealtimeWorker(hub *realtime.Hub, relay *realtime.RedisRelay, dispatcher *events.AsyncDispatcher, logger *zap.Logger) *RealtimeWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RealtimeWorker{hub: hub, relay: relay, dispatcher: dispatcher, logger: logger}
}

// Start launches every loop. They run until Stop.
func (w *RealtimeWorker) Start(ctx context.Context) {
	loopCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.hub.Run(loopCtx)
	}()
	if w.relay != nil {
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			w.relay.Run(loopCtx)
		}()
	}
	// The dispatcher keeps its own context so queued jobs can drain on Stop.
	w.dispatcher.Start(context.WithoutCancel(ctx))
	w.logger.Info("realtime worker started", zap.Bool("redis_relay", w.relay != nil))
}

// Stop drains pending broadcasts, then stops the relay and the hub. Open
// subscriber streams end when the hub closes them.
func (w *RealtimeWorker) Stop() {
	w.dispatcher.Stop()
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
	w.logger.Info("realtime worker stopped")
}
