package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/walkinq/queue-service/internal/api/dto"
	"github.com/walkinq/queue-service/internal/service"
	apperrors "github.com/walkinq/queue-service/pkg/util/errorutil"
)

// QueuesHandler manages queue endpoints.
type QueuesHandler struct {
	queues  *service.QueueService
	tickets *service.TicketService
}

// NewQueuesHandler constructs handler.
func NewQueuesHandler(queues *service.QueueService, tickets *service.TicketService) *QueuesHandler {
	return &QueuesHandler{queues: queues, tickets: tickets}
}

// Create POST /queues.
func (h *QueuesHandler) Create(c *fiber.Ctx) error {
	principal, err := principalFrom(c)
	if err != nil {
		return err
	}
	var req dto.CreateQueueRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	queue, err := h.queues.CreateQueue(c.UserContext(), principal, service.QueueCreateInput{Name: req.Name, OrgID: req.OrgID})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewQueueResponse(queue)})
}

// List GET /queues.
func (h *QueuesHandler) List(c *fiber.Ctx) error {
	principal, err := principalFrom(c)
	if err != nil {
		return err
	}
	var orgID *string
	if raw := c.Query("orgId"); raw != "" {
		orgID = &raw
	}
	queues, err := h.queues.ListQueues(c.UserContext(), principal, orgID)
	if err != nil {
		return err
	}
	items := make([]dto.QueueResponse, 0, len(queues))
	for i := range queues {
		items = append(items, dto.NewQueueResponse(&queues[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Get GET /queues/:queueId.
func (h *QueuesHandler) Get(c *fiber.Ctx) error {
	principal, err := principalFrom(c)
	if err != nil {
		return err
	}
	queue, err := h.queues.GetQueue(c.UserContext(), principal, c.Params("queueId"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewQueueResponse(queue)})
}

// AddService POST /queues/:queueId/services.
func (h *QueuesHandler) AddService(c *fiber.Ctx) error {
	principal, err := principalFrom(c)
	if err != nil {
		return err
	}
	var req dto.AddServiceRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	svc, err := h.queues.AddService(c.UserContext(), principal, c.Params("queueId"), req.Name)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewServiceResponse(svc)})
}

// Snapshot GET /queues/:queueId/snapshot.
func (h *QueuesHandler) Snapshot(c *fiber.Ctx) error {
	principal, err := principalFrom(c)
	if err != nil {
		return err
	}
	snapshot, err := h.tickets.GetSnapshot(c.UserContext(), principal, c.Params("queueId"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": snapshot})
}

// Events GET /queues/:queueId/events.
func (h *QueuesHandler) Events(c *fiber.Ctx) error {
	principal, err := principalFrom(c)
	if err != nil {
		return err
	}
	events, err := h.tickets.ListQueueEvents(c.UserContext(), principal, c.Params("queueId"), c.QueryInt("limit", 0))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": events})
}
