package handlers

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/walkinq/queue-service/internal/events"
	"github.com/walkinq/queue-service/internal/realtime"
	"github.com/walkinq/queue-service/internal/service"
)

// StreamHandler serves a queue's broadcasts as Server-Sent Events.
type StreamHandler struct {
	queues    *service.QueueService
	tickets   *service.TicketService
	hub       *realtime.Hub
	logger    *zap.Logger
	buffer    int
	keepAlive time.Duration
}

// NewStreamHandler constructs handler.
func NewStreamHandler(queues *service.QueueService, tickets *service.TicketService, hub *realtime.Hub, logger *zap.Logger, buffer int, keepAlive time.Duration) *StreamHandler {
	if keepAlive <= 0 {
		keepAlive = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StreamHandler{queues: queues, tickets: tickets, hub: hub, logger: logger, buffer: buffer, keepAlive: keepAlive}
}

// Subscribe GET /queues/:queueId/stream. The caller must have access to the
// queue; it then receives "subscribed", the current snapshot, and every later
// broadcast of the room.
func (h *StreamHandler) Subscribe(c *fiber.Ctx) error {
	principal, err := principalFrom(c)
	if err != nil {
		return err
	}
	queueID := c.Params("queueId")

	if _, err := h.queues.GetQueue(c.UserContext(), principal, queueID); err != nil {
		return err
	}
	sub := realtime.NewSubscriber(h.buffer)
	if err := h.hub.Join(c.UserContext(), sub, queueID); err != nil {
		return err
	}
	// Built after joining so no broadcast falls between the two.
	snapshot, err := h.tickets.GetSnapshot(c.UserContext(), principal, queueID)
	if err != nil {
		h.hub.LeaveAll(sub)
		return err
	}

	initial := make([]events.Message, 0, 2)
	for _, m := range []struct {
		event string
		data  any
	}{
		{events.EventSubscribed, fiber.Map{"queueId": queueID}},
		{events.EventQueueSnapshot, snapshot},
	} {
		msg, err := events.NewMessage(queueID, m.event, m.data)
		if err != nil {
			h.hub.LeaveAll(sub)
			return err
		}
		initial = append(initial, msg)
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer h.hub.LeaveAll(sub)

		for _, msg := range initial {
			if err := writeEvent(w, msg); err != nil {
				return
			}
		}

		ticker := time.NewTicker(h.keepAlive)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if _, err := w.WriteString(": keep-alive\n\n"); err != nil {
					return
				}
				if err := w.Flush(); err != nil {
					return
				}
			case msg, ok := <-sub.Messages():
				if !ok {
					return
				}
				if err := writeEvent(w, msg); err != nil {
					h.logger.Debug("stream closed", zap.Uint64("subscriber", sub.ID), zap.Error(err))
					return
				}
			}
		}
	}))
	return nil
}

func writeEvent(w *bufio.Writer, msg events.Message) error {
	data, err := json.Marshal(msg.Data)
	if err != nil {
		return err
	}
	data = bytes.ReplaceAll(data, []byte("\n"), nil)
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", msg.Event, data); err != nil {
		return err
	}
	return w.Flush()
}
