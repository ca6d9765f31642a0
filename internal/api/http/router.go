package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/walkinq/queue-service/internal/api/http/handlers"
	"github.com/walkinq/queue-service/internal/auth"
	"github.com/walkinq/queue-service/internal/domain"
	"github.com/walkinq/queue-service/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Queues         *handlers.QueuesHandler
	Tickets        *handlers.TicketsHandler
	Stream         *handlers.StreamHandler
	AuthMiddleware *auth.AuthMiddleware
	Metrics        *observability.Metrics
}

// AppConfig returns the fiber settings the service runs with. Values read from
// the request (params, queries, headers) are copied so handlers can hand them
// to stores and stream writers that outlive the request.
func AppConfig(name string) fiber.Config {
	return fiber.Config{AppName: name, Immutable: true}
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(cfg.Metrics.Registry(), promhttp.HandlerOpts{})))
	}

	app.Post("/auth/login", cfg.Auth.Login)

	var (
		anyRole  = auth.RequireAnyRole()
		admins   = auth.RequireRoles(domain.RoleSuperAdmin, domain.RoleAdmin)
		issuers  = auth.RequireRoles(domain.RoleSuperAdmin, domain.RoleAdmin, domain.RoleManager)
		agents   = auth.RequireRoles(domain.RoleAgent)
		movers   = auth.RequireRoles(domain.RoleAgent, domain.RoleManager)
		required = cfg.AuthMiddleware.Handle
	)

	queues := app.Group("/queues", required)
	queues.Get("/", anyRole, cfg.Queues.List)
	queues.Post("/", admins, cfg.Queues.Create)
	queues.Get("/:queueId", anyRole, cfg.Queues.Get)
	queues.Post("/:queueId/services", admins, cfg.Queues.AddService)
	queues.Get("/:queueId/snapshot", anyRole, cfg.Queues.Snapshot)
	queues.Get("/:queueId/events", anyRole, cfg.Queues.Events)
	queues.Get("/:queueId/stream", anyRole, cfg.Stream.Subscribe)

	tickets := app.Group("/tickets", required)
	tickets.Post("/", issuers, cfg.Tickets.CreateTicket)
	tickets.Get("/", anyRole, cfg.Tickets.ListTickets)
	tickets.Get("/queue/:queueId", anyRole, cfg.Tickets.ListQueueTickets)
	tickets.Get("/player", anyRole, cfg.Tickets.Player)
	tickets.Post("/call-next", agents, cfg.Tickets.CallNext)
	tickets.Post("/:ticketId/recall", agents, cfg.Tickets.Recall)
	tickets.Post("/:ticketId/serving", agents, cfg.Tickets.MarkServing)
	tickets.Post("/:ticketId/complete", agents, cfg.Tickets.Complete)
	tickets.Post("/:ticketId/no-show", agents, cfg.Tickets.MarkNoShow)
	tickets.Post("/:ticketId/transfer", movers, cfg.Tickets.Transfer)
	tickets.Get("/:ticketId/events", anyRole, cfg.Tickets.Events)
}
