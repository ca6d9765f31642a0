package service

import (
	"context"

	"github.com/walkinq/queue-service/internal/domain"
	"github.com/walkinq/queue-service/internal/repository"
)

// SnapshotBuilder derives the "now serving + next" view from persisted tickets.
type SnapshotBuilder struct {
	tickets repository.TicketRepository
}

// NewSnapshotBuilder constructs the builder.
func NewSnapshotBuilder(tickets repository.TicketRepository) *SnapshotBuilder {
	return &SnapshotBuilder{tickets: tickets}
}

// Build reads the queue's active and waiting tickets. It never caches.
func (b *SnapshotBuilder) Build(ctx context.Context, queueID string) (*domain.QueueSnapshot, error) {
	current, err := b.tickets.CurrentActive(ctx, queueID)
	if err != nil {
		return nil, err
	}
	next, err := b.tickets.ListWaiting(ctx, queueID, domain.SnapshotNextLimit)
	if err != nil {
		return nil, err
	}
	if next == nil {
		next = []domain.Ticket{}
	}
	return &domain.QueueSnapshot{QueueID: queueID, Current: current, Next: next}, nil
}
