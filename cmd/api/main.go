package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/walkinq/queue-service/internal/api/http"
	"github.com/walkinq/queue-service/internal/api/http/handlers"
	"github.com/walkinq/queue-service/internal/auth"
	"github.com/walkinq/queue-service/internal/config"
	"github.com/walkinq/queue-service/internal/events"
	"github.com/walkinq/queue-service/internal/observability"
	"github.com/walkinq/queue-service/internal/persistence"
	"github.com/walkinq/queue-service/internal/realtime"
	"github.com/walkinq/queue-service/internal/repository"
	"github.com/walkinq/queue-service/internal/service"
	"github.com/walkinq/queue-service/internal/worker"
)

type repositories struct {
	queues  repository.QueueRepository
	tickets repository.TicketRepository
	events  repository.TicketEventRepository
	users   repository.UserRepository
	orgs    repository.OrganizationRepository
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if _, err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	repos := buildRepositories(pg)
	metrics := observability.NewMetrics()

	hub := realtime.NewHub(logger, metrics)
	sinks, relay := buildSinks(cfg, redis, hub, logger)

	snapshots := service.NewSnapshotBuilder(repos.tickets)
	dispatcher := events.NewAsyncDispatcher(snapshots, sinks, events.DispatcherOptions{
		Workers:        cfg.Realtime.DispatchWorkers,
		Buffer:         cfg.Realtime.DispatchBuffer,
		PublishTimeout: cfg.Realtime.PublishTimeout(),
	}, logger, metrics)
	realtimeWorker := worker.NewRealtimeWorker(hub, relay, dispatcher, logger)
	realtimeWorker.Start(ctx)

	access := service.NewQueueAccess(repos.queues)
	queueService := service.NewQueueService(repos.queues, access)
	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo: repos.tickets,
		EventRepo:  repos.events,
		QueueRepo:  repos.queues,
		Access:     access,
		Snapshots:  snapshots,
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Logger:     logger,
	})
	authService := service.NewAuthService(*cfg, service.AuthDependencies{
		UserRepo: repos.users,
		OrgRepo:  repos.orgs,
		Logger:   logger,
	})
	if err := authService.EnsureBootstrap(ctx, cfg.Bootstrap); err != nil {
		logger.Fatal("failed to bootstrap accounts", zap.Error(err))
	}
	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), repos.users)

	app := fiber.New(httptransport.AppConfig(cfg.App.Name))
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Auth:           handlers.NewAuthHandler(authService),
		Queues:         handlers.NewQueuesHandler(queueService, ticketService),
		Tickets:        handlers.NewTicketsHandler(ticketService),
		Stream:         handlers.NewStreamHandler(queueService, ticketService, hub, logger, cfg.Realtime.SubscriberBuffer, cfg.Realtime.KeepAlive()),
		AuthMiddleware: authMiddleware,
		Metrics:        metrics,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	// Closing the hub ends open streams so the server can finish shutting down.
	realtimeWorker.Stop()
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("fiber shutdown", zap.Error(err))
	}
}

func buildRepositories(pg *persistence.Postgres) repositories {
	pool := pg.PoolHandle()
	if pool == nil {
		store := repository.NewMemoryStore()
		return repositories{
			queues:  store.Queues(),
			tickets: store.Tickets(),
			events:  store.Events(),
			users:   store.Users(),
			orgs:    store.Organizations(),
		}
	}
	return repositories{
		queues:  repository.NewQueueRepository(pool),
		tickets: repository.NewTicketRepository(pool),
		events:  repository.NewTicketEventRepository(pool),
		users:   repository.NewUserRepository(pool),
		orgs:    repository.NewOrganizationRepository(pool),
	}
}

// buildSinks routes broadcasts through Redis when it is configured, so every
// instance's hub receives them via its relay. MQTT mirrors them when enabled.
func buildSinks(cfg *config.Config, redis *persistence.Redis, hub *realtime.Hub, logger *zap.Logger) ([]events.Sink, *realtime.RedisRelay) {
	var (
		sinks []events.Sink
		relay *realtime.RedisRelay
	)
	if redis.Enabled() {
		sinks = append(sinks, realtime.NewRedisPublisher(redis.Client, cfg.Redis.ChannelPrefix))
		relay = realtime.NewRedisRelay(redis.Client, cfg.Redis.ChannelPrefix, hub, logger)
	} else {
		sinks = append(sinks, hub)
	}

	if cfg.MQTT.BrokerURL != "" {
		client, err := realtime.ConnectMQTT(cfg.MQTT, logger)
		if err != nil {
			logger.Warn("mqtt mirror disabled", zap.Error(err))
		} else {
			sinks = append(sinks, realtime.NewMQTTPublisher(client, cfg.MQTT.TopicPrefix))
		}
	}
	return sinks, relay
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
