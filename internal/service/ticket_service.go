package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/walkinq/queue-service/internal/domain"
	"github.com/walkinq/queue-service/internal/events"
	"github.com/walkinq/queue-service/internal/observability"
	"github.com/walkinq/queue-service/internal/repository"
)

// TicketService runs the ticket lifecycle: numbering, transitions, the event
// log and broadcasts.
type TicketService struct {
	tickets    repository.TicketRepository
	eventLog   repository.TicketEventRepository
	queues     repository.QueueRepository
	access     AccessControl
	snapshots  *SnapshotBuilder
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	now        func() time.Time
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo repository.TicketRepository
	EventRepo  repository.TicketEventRepository
	QueueRepo  repository.QueueRepository
	Access     AccessControl
	Snapshots  *SnapshotBuilder
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
	Clock      func() time.Time
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	QueueID   string
	ServiceID *string
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	s := &TicketService{
		tickets:    deps.TicketRepo,
		eventLog:   deps.EventRepo,
		queues:     deps.QueueRepo,
		access:     deps.Access,
		snapshots:  deps.Snapshots,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
		now:        deps.Clock,
	}
	if s.access == nil {
		s.access = NewQueueAccess(deps.QueueRepo)
	}
	if s.snapshots == nil {
		s.snapshots = NewSnapshotBuilder(deps.TicketRepo)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// CreateTicket issues the queue's next number as a WAITING ticket.
func (s *TicketService) CreateTicket(ctx context.Context, principal domain.Principal, input TicketCreateInput) (*domain.Ticket, error) {
	if _, err := s.access.Authorize(ctx, principal, input.QueueID); err != nil {
		return nil, err
	}
	if input.ServiceID != nil {
		svc, err := s.queues.GetService(ctx, *input.ServiceID)
		if err != nil {
			return nil, err
		}
		if svc.QueueID != input.QueueID {
			return nil, domain.ErrServiceNotFound
		}
	}

	ticket := &domain.Ticket{
		QueueID:   input.QueueID,
		ServiceID: input.ServiceID,
		Status:    domain.TicketStatusWaiting,
	}
	created := &domain.TicketEvent{
		QueueID: input.QueueID,
		Kind:    domain.EventCreated,
		ActorID: principal.UserID,
	}
	if err := s.tickets.CreateNumbered(ctx, ticket, created); err != nil {
		return nil, err
	}
	s.metrics.RecordTransition(string(domain.EventCreated))
	s.logger.Debug("ticket created",
		zap.String("queue_id", ticket.QueueID),
		zap.String("ticket_id", ticket.ID),
		zap.Int("number", ticket.Number),
	)
	s.broadcast(ticket, "")
	return ticket, nil
}

// ListTickets returns the queue's tickets, optionally filtered by status.
func (s *TicketService) ListTickets(ctx context.Context, principal domain.Principal, queueID string, status *domain.TicketStatus) ([]domain.Ticket, error) {
	if _, err := s.access.Authorize(ctx, principal, queueID); err != nil {
		return nil, err
	}
	return s.tickets.ListByQueue(ctx, queueID, status)
}

// GetTicket returns one ticket after checking its queue scope.
func (s *TicketService) GetTicket(ctx context.Context, principal domain.Principal, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if _, err := s.access.Authorize(ctx, principal, ticket.QueueID); err != nil {
		return nil, err
	}
	return ticket, nil
}

// CallNext claims the oldest WAITING ticket of the queue. A nil counter keeps
// whatever counter the ticket already carries.
func (s *TicketService) CallNext(ctx context.Context, principal domain.Principal, queueID string, counter *string) (*domain.Ticket, error) {
	if _, err := s.access.Authorize(ctx, principal, queueID); err != nil {
		return nil, err
	}
	ticket, ev, err := s.tickets.ClaimNextWaiting(ctx, queueID, func(t *domain.Ticket) (*domain.TicketEvent, error) {
		if t.Status != domain.TicketStatusWaiting {
			return nil, domain.ErrNoWaitingTickets
		}
		now := s.stamp(t)
		t.Status = domain.TicketStatusCalled
		t.CalledAt = &now
		if counter != nil {
			t.CounterNumber = counter
		}
		t.AgentID = &principal.UserID
		return domain.NewTicketEvent(t, domain.EventCalled, principal.UserID, domain.CalledMeta{CounterNumber: t.CounterNumber}), nil
	})
	if err != nil {
		return nil, err
	}
	return s.finish(ticket, ev, events.EventTicketCalled), nil
}

// Recall calls an already called or serving ticket again. calledAt is kept
// when present.
func (s *TicketService) Recall(ctx context.Context, principal domain.Principal, ticketID string) (*domain.Ticket, error) {
	return s.transition(ctx, principal, ticketID, events.EventTicketCalled, func(t *domain.Ticket) (*domain.TicketEvent, error) {
		if !t.Status.Active() {
			return nil, domain.ErrTicketNotCalled
		}
		s.setOnce(t, &t.CalledAt)
		t.Status = domain.TicketStatusCalled
		t.AgentID = &principal.UserID
		return domain.NewTicketEvent(t, domain.EventRecalled, principal.UserID, nil), nil
	})
}

// MarkServing moves a non-terminal ticket to SERVING.
func (s *TicketService) MarkServing(ctx context.Context, principal domain.Principal, ticketID string) (*domain.Ticket, error) {
	return s.transition(ctx, principal, ticketID, events.EventTicketServing, func(t *domain.Ticket) (*domain.TicketEvent, error) {
		s.setOnce(t, &t.ServingAt)
		t.Status = domain.TicketStatusServing
		t.AgentID = &principal.UserID
		return domain.NewTicketEvent(t, domain.EventServing, principal.UserID, nil), nil
	})
}

// Complete finishes a non-terminal ticket.
func (s *TicketService) Complete(ctx context.Context, principal domain.Principal, ticketID string) (*domain.Ticket, error) {
	return s.transition(ctx, principal, ticketID, events.EventTicketCompleted, func(t *domain.Ticket) (*domain.TicketEvent, error) {
		s.setOnce(t, &t.CompletedAt)
		t.Status = domain.TicketStatusCompleted
		t.AgentID = &principal.UserID
		return domain.NewTicketEvent(t, domain.EventCompleted, principal.UserID, nil), nil
	})
}

// MarkNoShow finishes a non-terminal ticket whose customer never arrived.
func (s *TicketService) MarkNoShow(ctx context.Context, principal domain.Principal, ticketID string) (*domain.Ticket, error) {
	return s.transition(ctx, principal, ticketID, events.EventTicketNoShow, func(t *domain.Ticket) (*domain.TicketEvent, error) {
		s.setOnce(t, &t.CompletedAt)
		t.Status = domain.TicketStatusNoShow
		t.AgentID = &principal.UserID
		return domain.NewTicketEvent(t, domain.EventNoShow, principal.UserID, nil), nil
	})
}

// Transfer sets the ticket's counter, or clears it when counter is nil.
// The status is unchanged.
func (s *TicketService) Transfer(ctx context.Context, principal domain.Principal, ticketID string, counter *string) (*domain.Ticket, error) {
	return s.transition(ctx, principal, ticketID, "", func(t *domain.Ticket) (*domain.TicketEvent, error) {
		t.CounterNumber = counter
		return domain.NewTicketEvent(t, domain.EventTransferred, principal.UserID, domain.TransferredMeta{CounterNumber: counter}), nil
	})
}

// GetSnapshot computes the queue's current view.
func (s *TicketService) GetSnapshot(ctx context.Context, principal domain.Principal, queueID string) (*domain.QueueSnapshot, error) {
	if _, err := s.access.Authorize(ctx, principal, queueID); err != nil {
		return nil, err
	}
	return s.snapshots.Build(ctx, queueID)
}

// ListTicketEvents returns a ticket's audit trail in creation order.
func (s *TicketService) ListTicketEvents(ctx context.Context, principal domain.Principal, ticketID string) ([]domain.TicketEvent, error) {
	if _, err := s.GetTicket(ctx, principal, ticketID); err != nil {
		return nil, err
	}
	return s.eventLog.ListByTicket(ctx, ticketID)
}

// ListQueueEvents returns the most recent events of a queue up to limit.
func (s *TicketService) ListQueueEvents(ctx context.Context, principal domain.Principal, queueID string, limit int) ([]domain.TicketEvent, error) {
	if _, err := s.access.Authorize(ctx, principal, queueID); err != nil {
		return nil, err
	}
	return s.eventLog.ListByQueue(ctx, queueID, limit)
}

// transition authorizes against the ticket's queue and applies fn under the
// ticket lock. Terminal tickets are rejected before fn runs.
func (s *TicketService) transition(ctx context.Context, principal domain.Principal, ticketID, broadcastEvent string, fn repository.TransitionFunc) (*domain.Ticket, error) {
	if _, err := s.GetTicket(ctx, principal, ticketID); err != nil {
		return nil, err
	}
	ticket, ev, err := s.tickets.Transition(ctx, ticketID, func(t *domain.Ticket) (*domain.TicketEvent, error) {
		if t.Status.Terminal() {
			return nil, domain.ErrTicketTerminal
		}
		return fn(t)
	})
	if err != nil {
		return nil, err
	}
	return s.finish(ticket, ev, broadcastEvent), nil
}

func (s *TicketService) finish(ticket *domain.Ticket, ev *domain.TicketEvent, broadcastEvent string) *domain.Ticket {
	if ev != nil {
		s.metrics.RecordTransition(string(ev.Kind))
		s.logger.Debug("ticket transition",
			zap.String("queue_id", ticket.QueueID),
			zap.String("ticket_id", ticket.ID),
			zap.String("kind", string(ev.Kind)),
			zap.String("status", string(ticket.Status)),
		)
	}
	s.broadcast(ticket, broadcastEvent)
	return ticket
}

// broadcast enqueues the snapshot and, when set, the lifecycle event. Both go
// to the same queue shard so subscribers see them in this order.
func (s *TicketService) broadcast(ticket *domain.Ticket, event string) {
	if s.dispatcher == nil {
		return
	}
	s.dispatcher.PublishSnapshot(ticket.QueueID)
	if event != "" {
		s.dispatcher.PublishEvent(ticket.QueueID, event, ticket)
	}
}

// stamp returns the current time, never earlier than the ticket's latest
// lifecycle timestamp.
func (s *TicketService) stamp(t *domain.Ticket) time.Time {
	now := s.now().UTC()
	if last := t.LastStampedAt(); now.Before(last) {
		return last
	}
	return now
}

func (s *TicketService) setOnce(t *domain.Ticket, field **time.Time) {
	if *field != nil {
		return
	}
	now := s.stamp(t)
	*field = &now
}
