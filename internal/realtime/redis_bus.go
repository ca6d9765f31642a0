package realtime

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/walkinq/queue-service/internal/events"
)

// RedisPublisher sends broadcasts over Redis Pub/Sub so every instance's hub
// receives them through its RedisRelay.
type RedisPublisher struct {
	client *redis.Client
	prefix string
}

// NewRedisPublisher creates a publisher for channels under prefix.
func NewRedisPublisher(client *redis.Client, prefix string) *RedisPublisher {
	return &RedisPublisher{client: client, prefix: prefix}
}

// Name implements events.Sink.
func (p *RedisPublisher) Name() string { return "redis" }

// Publish implements events.Sink.
func (p *RedisPublisher) Publish(ctx context.Context, msg events.Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, channelName(p.prefix, msg.Room), payload).Err()
}

// RedisRelay forwards messages from Redis Pub/Sub into the local hub.
type RedisRelay struct {
	client *redis.Client
	prefix string
	hub    *Hub
	logger *zap.Logger
}

// NewRedisRelay creates a relay for channels under prefix.
func NewRedisRelay(client *redis.Client, prefix string, hub *Hub, logger *zap.Logger) *RedisRelay {
	return &RedisRelay{client: client, prefix: prefix, hub: hub, logger: logger}
}

// Run subscribes to every queue room and relays until ctx ends.
func (r *RedisRelay) Run(ctx context.Context) {
	pubsub := r.client.PSubscribe(ctx, channelName(r.prefix, "queue:*"))
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-ch:
			if !ok {
				return
			}
			r.relay(ctx, m.Payload)
		}
	}
}

func (r *RedisRelay) relay(ctx context.Context, payload string) {
	var msg events.Message
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		r.logger.Warn("discarding malformed relay message", zap.Error(err))
		return
	}
	if err := r.hub.Emit(ctx, msg); err != nil {
		r.logger.Debug("relay emit failed", zap.Error(err))
	}
}

func channelName(prefix, room string) string {
	if prefix == "" {
		return room
	}
	return prefix + ":" + room
}
