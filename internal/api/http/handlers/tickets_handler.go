package handlers

import (
	"context"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/walkinq/queue-service/internal/api/dto"
	"github.com/walkinq/queue-service/internal/domain"
	"github.com/walkinq/queue-service/internal/service"
	apperrors "github.com/walkinq/queue-service/pkg/util/errorutil"
)

// TicketsHandler exposes the ticket lifecycle.
type TicketsHandler struct {
	service *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{service: ticketService}
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	principal, err := principalFrom(c)
	if err != nil {
		return err
	}
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.QueueID == "" {
		return apperrors.NewValidationError("queueId required", map[string]any{"field": "queueId"})
	}

	ticket, err := h.service.CreateTicket(c.UserContext(), principal, service.TicketCreateInput{
		QueueID:   req.QueueID,
		ServiceID: req.ServiceID,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": ticket})
}

// ListTickets GET /tickets?queueId=&status=.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	queueID, err := requiredQuery(c, "queueId")
	if err != nil {
		return err
	}
	return h.list(c, queueID)
}

// ListQueueTickets GET /tickets/queue/:queueId?status=.
func (h *TicketsHandler) ListQueueTickets(c *fiber.Ctx) error {
	return h.list(c, c.Params("queueId"))
}

func (h *TicketsHandler) list(c *fiber.Ctx, queueID string) error {
	principal, err := principalFrom(c)
	if err != nil {
		return err
	}
	status, err := statusQuery(c)
	if err != nil {
		return err
	}
	tickets, err := h.service.ListTickets(c.UserContext(), principal, queueID, status)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": tickets})
}

// Player GET /tickets/player?queueId= returns the snapshot for display screens.
func (h *TicketsHandler) Player(c *fiber.Ctx) error {
	principal, err := principalFrom(c)
	if err != nil {
		return err
	}
	queueID, err := requiredQuery(c, "queueId")
	if err != nil {
		return err
	}
	snapshot, err := h.service.GetSnapshot(c.UserContext(), principal, queueID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": snapshot})
}

// CallNext POST /tickets/call-next.
func (h *TicketsHandler) CallNext(c *fiber.Ctx) error {
	principal, err := principalFrom(c)
	if err != nil {
		return err
	}
	var req dto.CallNextRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.QueueID == "" {
		return apperrors.NewValidationError("queueId required", map[string]any{"field": "queueId"})
	}
	ticket, err := h.service.CallNext(c.UserContext(), principal, req.QueueID, req.CounterNumber)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticket})
}

// Recall POST /tickets/:ticketId/recall.
func (h *TicketsHandler) Recall(c *fiber.Ctx) error {
	return h.apply(c, h.service.Recall)
}

// MarkServing POST /tickets/:ticketId/serving.
func (h *TicketsHandler) MarkServing(c *fiber.Ctx) error {
	return h.apply(c, h.service.MarkServing)
}

// Complete POST /tickets/:ticketId/complete.
func (h *TicketsHandler) Complete(c *fiber.Ctx) error {
	return h.apply(c, h.service.Complete)
}

// MarkNoShow POST /tickets/:ticketId/no-show.
func (h *TicketsHandler) MarkNoShow(c *fiber.Ctx) error {
	return h.apply(c, h.service.MarkNoShow)
}

// Transfer POST /tickets/:ticketId/transfer.
func (h *TicketsHandler) Transfer(c *fiber.Ctx) error {
	var req dto.TransferRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return apperrors.NewValidationError("invalid payload", nil)
		}
	}
	return h.apply(c, func(ctx context.Context, principal domain.Principal, ticketID string) (*domain.Ticket, error) {
		return h.service.Transfer(ctx, principal, ticketID, req.CounterNumber)
	})
}

// Events GET /tickets/:ticketId/events.
func (h *TicketsHandler) Events(c *fiber.Ctx) error {
	principal, err := principalFrom(c)
	if err != nil {
		return err
	}
	events, err := h.service.ListTicketEvents(c.UserContext(), principal, c.Params("ticketId"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": events})
}

type ticketOp func(ctx context.Context, principal domain.Principal, ticketID string) (*domain.Ticket, error)

func (h *TicketsHandler) apply(c *fiber.Ctx, op ticketOp) error {
	principal, err := principalFrom(c)
	if err != nil {
		return err
	}
	ticket, err := op(c.UserContext(), principal, c.Params("ticketId"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticket})
}
