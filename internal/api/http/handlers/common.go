package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/walkinq/queue-service/internal/auth"
	"github.com/walkinq/queue-service/internal/domain"
	apperrors "github.com/walkinq/queue-service/pkg/util/errorutil"
)

func principalFrom(c *fiber.Ctx) (domain.Principal, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal == nil {
		return domain.Principal{}, apperrors.NewUnauthorized("authentication required")
	}
	return *principal, nil
}

func statusQuery(c *fiber.Ctx) (*domain.TicketStatus, error) {
	raw := c.Query("status")
	if raw == "" {
		return nil, nil
	}
	status := domain.TicketStatus(raw)
	if !status.Valid() {
		return nil, apperrors.NewValidationError("unknown status", map[string]any{"status": raw})
	}
	return &status, nil
}

func requiredQuery(c *fiber.Ctx, key string) (string, error) {
	value := c.Query(key)
	if value == "" {
		return "", apperrors.NewValidationError(key+" is required", map[string]any{"field": key})
	}
	return value, nil
}
