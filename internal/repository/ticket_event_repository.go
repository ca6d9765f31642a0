package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/walkinq/queue-service/internal/domain"
)

// TicketEventRepository reads the append-only event log. Appends happen inside
// ticket transactions.
type TicketEventRepository interface {
	ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketEvent, error)
	// ListByQueue returns the latest limit events of a queue, oldest first.
	ListByQueue(ctx context.Context, queueID string, limit int) ([]domain.TicketEvent, error)
}

type ticketEventRepository struct {
	pool DB
}

// NewTicketEventRepository builds repository.
func NewTicketEventRepository(pool DB) TicketEventRepository {
	return &ticketEventRepository{pool: pool}
}

// appendEvent inserts ev and fills its id and timestamp.
func appendEvent(ctx context.Context, tx pgx.Tx, ev *domain.TicketEvent) error {
	const query = `
        INSERT INTO ticket_events (ticket_id, queue_id, type, actor_id, meta)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, created_at`
	meta, err := domain.EncodeMeta(ev.Meta)
	if err != nil {
		return err
	}
	var actor *string
	if ev.ActorID != "" {
		actor = &ev.ActorID
	}
	return storageErr(tx.QueryRow(ctx, query,
		ev.TicketID,
		ev.QueueID,
		ev.Kind,
		actor,
		meta,
	).Scan(&ev.ID, &ev.CreatedAt))
}

func (r *ticketEventRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketEvent, error) {
	const query = `
        SELECT id, ticket_id, queue_id, type, actor_id, meta, created_at
        FROM ticket_events WHERE ticket_id=$1 ORDER BY seq ASC`
	return r.list(ctx, query, ticketID)
}

func (r *ticketEventRepository) ListByQueue(ctx context.Context, queueID string, limit int) ([]domain.TicketEvent, error) {
	const query = `
        SELECT id, ticket_id, queue_id, type, actor_id, meta, created_at
        FROM (
            SELECT * FROM ticket_events WHERE queue_id=$1 ORDER BY seq DESC LIMIT $2
        ) recent
        ORDER BY seq ASC`
	if limit <= 0 {
		limit = 500
	}
	return r.list(ctx, query, queueID, limit)
}

func (r *ticketEventRepository) list(ctx context.Context, query string, args ...any) ([]domain.TicketEvent, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, storageErr(err)
	}
	defer rows.Close()

	result := []domain.TicketEvent{}
	for rows.Next() {
		var (
			ev    domain.TicketEvent
			actor *string
			meta  []byte
		)
		if err := rows.Scan(
			&ev.ID,
			&ev.TicketID,
			&ev.QueueID,
			&ev.Kind,
			&actor,
			&meta,
			&ev.CreatedAt,
		); err != nil {
			return nil, storageErr(err)
		}
		if actor != nil {
			ev.ActorID = *actor
		}
		if ev.Meta, err = domain.DecodeEventMeta(ev.Kind, meta); err != nil {
			return nil, storageErr(err)
		}
		result = append(result, ev)
	}
	return result, storageErr(rows.Err())
}
