package realtime

import (
	"context"
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/walkinq/queue-service/internal/config"
	"github.com/walkinq/queue-service/internal/events"
)

// ConnectMQTT dials the broker used by display devices.
func ConnectMQTT(cfg config.MQTTConfig, logger *zap.Logger) (mqtt.Client, error) {
	if cfg.BrokerURL == "" {
		return nil, errors.New("MQTT broker URL is empty")
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "queue-service"
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.BrokerURL).
		SetClientID(cfg.ClientID).
		SetConnectTimeout(5 * time.Second).
		SetKeepAlive(30 * time.Second).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(2 * time.Second)

	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		logger.Warn("mqtt connection lost", zap.Error(err))
	}
	opts.OnConnect = func(_ mqtt.Client) {
		logger.Info("mqtt connected", zap.String("broker", cfg.BrokerURL), zap.String("client_id", cfg.ClientID))
	}

	c := mqtt.NewClient(opts)
	tok := c.Connect()
	tok.Wait()
	if err := tok.Error(); err != nil {
		return nil, err
	}
	return c, nil
}

// MQTTPublisher mirrors broadcasts to per-queue topics. Snapshots are retained
// so a display that connects late immediately receives the current view.
type MQTTPublisher struct {
	client mqtt.Client
	prefix string
}

// NewMQTTPublisher creates a publisher for topics under prefix.
func NewMQTTPublisher(client mqtt.Client, prefix string) *MQTTPublisher {
	return &MQTTPublisher{client: client, prefix: prefix}
}

// Name implements events.Sink.
func (p *MQTTPublisher) Name() string { return "mqtt" }

// Topic returns the topic a message for queueID and event is published on.
func (p *MQTTPublisher) Topic(queueID, event string) string {
	return fmt.Sprintf("%s/queues/%s/%s", p.prefix, queueID, event)
}

// Publish implements events.Sink.
func (p *MQTTPublisher) Publish(ctx context.Context, msg events.Message) error {
	retained := msg.Event == events.EventQueueSnapshot
	tok := p.client.Publish(p.Topic(msg.QueueID, msg.Event), 0, retained, []byte(msg.Data))
	select {
	case <-tok.Done():
		return tok.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}
