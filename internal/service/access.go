package service

import (
	"context"

	"github.com/walkinq/queue-service/internal/domain"
	"github.com/walkinq/queue-service/internal/repository"
)

// AccessControl decides whether a principal may act on a queue.
type AccessControl interface {
	Authorize(ctx context.Context, principal domain.Principal, queueID string) (*domain.Queue, error)
}

// QueueAccess grants access to queues of the principal's organization.
// Super admins reach every organization.
type QueueAccess struct {
	queues repository.QueueRepository
}

// NewQueueAccess constructs the access checker.
func NewQueueAccess(queues repository.QueueRepository) *QueueAccess {
	return &QueueAccess{queues: queues}
}

// Authorize resolves the queue and checks organization scope.
func (a *QueueAccess) Authorize(ctx context.Context, principal domain.Principal, queueID string) (*domain.Queue, error) {
	queue, err := a.queues.GetByID(ctx, queueID)
	if err != nil {
		return nil, err
	}
	if !principal.CanAccessOrg(queue.OrgID) {
		return nil, domain.ErrForbidden
	}
	return queue, nil
}
