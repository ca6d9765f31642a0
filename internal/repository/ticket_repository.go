package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/walkinq/queue-service/internal/domain"
)

// TransitionFunc mutates a locked ticket and returns the event recording the change.
// Returning an error aborts the transition without writing anything.
type TransitionFunc func(ticket *domain.Ticket) (*domain.TicketEvent, error)

// TicketRepository encapsulates ticket persistence. Every write that changes a
// ticket also appends its event in the same transaction.
type TicketRepository interface {
	// CreateNumbered reserves the queue's next number and inserts ticket with it.
	// created is stamped with the new ticket id and appended atomically.
	CreateNumbered(ctx context.Context, ticket *domain.Ticket, created *domain.TicketEvent) error
	// ClaimNextWaiting locks the oldest unclaimed WAITING ticket of queueID and applies fn.
	ClaimNextWaiting(ctx context.Context, queueID string, fn TransitionFunc) (*domain.Ticket, *domain.TicketEvent, error)
	// Transition locks ticket id and applies fn.
	Transition(ctx context.Context, id string, fn TransitionFunc) (*domain.Ticket, *domain.TicketEvent, error)
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	ListByQueue(ctx context.Context, queueID string, status *domain.TicketStatus) ([]domain.Ticket, error)
	// CurrentActive returns the CALLED/SERVING ticket with the latest
	// coalesce(servingAt, calledAt), or nil.
	CurrentActive(ctx context.Context, queueID string) (*domain.Ticket, error)
	ListWaiting(ctx context.Context, queueID string, limit int) ([]domain.Ticket, error)
}

const ticketColumns = `id, queue_id, service_id, number, status, counter_number, agent_id,
               created_at, called_at, serving_at, completed_at`

type ticketRepository struct {
	pool DB
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool DB) TicketRepository {
	return &ticketRepository{pool: pool}
}

func (r *ticketRepository) CreateNumbered(ctx context.Context, ticket *domain.Ticket, created *domain.TicketEvent) error {
	// The UPDATE takes the queue row lock, so creations on one queue serialize
	// while other queues proceed.
	const reserve = `
        UPDATE queues SET next_number = next_number + 1
        WHERE id=$1
        RETURNING next_number - 1`
	const insert = `
        INSERT INTO tickets (queue_id, service_id, number, status)
        VALUES ($1,$2,$3,$4)
        RETURNING id, created_at`

	return withTx(ctx, r.pool, func(tx pgx.Tx) error {
		var number int
		if err := tx.QueryRow(ctx, reserve, ticket.QueueID).Scan(&number); err != nil {
			return notFoundOr(err, domain.ErrQueueNotFound)
		}
		ticket.Number = number
		if err := tx.QueryRow(ctx, insert,
			ticket.QueueID,
			ticket.ServiceID,
			ticket.Number,
			ticket.Status,
		).Scan(&ticket.ID, &ticket.CreatedAt); err != nil {
			return storageErr(err)
		}
		if created == nil {
			return nil
		}
		created.TicketID = ticket.ID
		return appendEvent(ctx, tx, created)
	})
}

func (r *ticketRepository) ClaimNextWaiting(ctx context.Context, queueID string, fn TransitionFunc) (*domain.Ticket, *domain.TicketEvent, error) {
	const query = `
        SELECT ` + ticketColumns + `
        FROM tickets
        WHERE queue_id=$1 AND status='WAITING'
        ORDER BY created_at ASC, number ASC
        FOR UPDATE SKIP LOCKED
        LIMIT 1`
	return r.transition(ctx, fn, domain.ErrNoWaitingTickets, query, queueID)
}

func (r *ticketRepository) Transition(ctx context.Context, id string, fn TransitionFunc) (*domain.Ticket, *domain.TicketEvent, error) {
	const query = `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1 FOR UPDATE`
	return r.transition(ctx, fn, domain.ErrTicketNotFound, query, id)
}

func (r *ticketRepository) transition(ctx context.Context, fn TransitionFunc, notFound error, query string, arg any) (*domain.Ticket, *domain.TicketEvent, error) {
	var (
		ticket *domain.Ticket
		event  *domain.TicketEvent
	)
	err := withTx(ctx, r.pool, func(tx pgx.Tx) error {
		locked, err := scanTicket(tx.QueryRow(ctx, query, arg))
		if err != nil {
			return notFoundOr(err, notFound)
		}
		ev, err := fn(locked)
		if err != nil {
			return err
		}
		if err := updateTicket(ctx, tx, locked); err != nil {
			return err
		}
		if ev != nil {
			if err := appendEvent(ctx, tx, ev); err != nil {
				return err
			}
		}
		ticket, event = locked, ev
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return ticket, event, nil
}

func updateTicket(ctx context.Context, tx pgx.Tx, ticket *domain.Ticket) error {
	const query = `
        UPDATE tickets SET status=$1, counter_number=$2, agent_id=$3,
            called_at=$4, serving_at=$5, completed_at=$6
        WHERE id=$7`
	cmd, err := tx.Exec(ctx, query,
		ticket.Status,
		ticket.CounterNumber,
		ticket.AgentID,
		ticket.CalledAt,
		ticket.ServingAt,
		ticket.CompletedAt,
		ticket.ID,
	)
	if err != nil {
		return storageErr(err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrTicketNotFound
	}
	return nil
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	const query = `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1`
	ticket, err := scanTicket(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, notFoundOr(err, domain.ErrTicketNotFound)
	}
	return ticket, nil
}

func (r *ticketRepository) ListByQueue(ctx context.Context, queueID string, status *domain.TicketStatus) ([]domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE queue_id=$1`
	args := []any{queueID}
	if status != nil {
		args = append(args, *status)
		query += ` AND status=$2`
	}
	query += ` ORDER BY created_at ASC, number ASC`
	return r.query(ctx, query, args...)
}

func (r *ticketRepository) CurrentActive(ctx context.Context, queueID string) (*domain.Ticket, error) {
	const query = `
        SELECT ` + ticketColumns + `
        FROM tickets
        WHERE queue_id=$1 AND status IN ('CALLED','SERVING')
        ORDER BY COALESCE(serving_at, called_at) DESC NULLS LAST, created_at ASC
        LIMIT 1`
	ticket, err := scanTicket(r.pool.QueryRow(ctx, query, queueID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr(err)
	}
	return ticket, nil
}

func (r *ticketRepository) ListWaiting(ctx context.Context, queueID string, limit int) ([]domain.Ticket, error) {
	const query = `
        SELECT ` + ticketColumns + `
        FROM tickets
        WHERE queue_id=$1 AND status='WAITING'
        ORDER BY created_at ASC, number ASC
        LIMIT $2`
	if limit <= 0 {
		limit = domain.SnapshotNextLimit
	}
	return r.query(ctx, query, queueID, limit)
}

func (r *ticketRepository) query(ctx context.Context, query string, args ...any) ([]domain.Ticket, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, storageErr(err)
	}
	defer rows.Close()

	result := []domain.Ticket{}
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, storageErr(err)
		}
		result = append(result, *ticket)
	}
	return result, storageErr(rows.Err())
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := row.Scan(
		&ticket.ID,
		&ticket.QueueID,
		&ticket.ServiceID,
		&ticket.Number,
		&ticket.Status,
		&ticket.CounterNumber,
		&ticket.AgentID,
		&ticket.CreatedAt,
		&ticket.CalledAt,
		&ticket.ServingAt,
		&ticket.CompletedAt,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}
