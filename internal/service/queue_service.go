package service

import (
	"context"
	"strings"

	"github.com/walkinq/queue-service/internal/domain"
	"github.com/walkinq/queue-service/internal/repository"
	apperrors "github.com/walkinq/queue-service/pkg/util/errorutil"
)

// QueueService manages queues and their service classifications.
type QueueService struct {
	queues repository.QueueRepository
	access AccessControl
}

// NewQueueService constructs the service.
func NewQueueService(queues repository.QueueRepository, access AccessControl) *QueueService {
	if access == nil {
		access = NewQueueAccess(queues)
	}
	return &QueueService{queues: queues, access: access}
}

// QueueCreateInput describes queue creation payload. OrgID is required only
// for super admins, who belong to no organization.
type QueueCreateInput struct {
	Name  string
	OrgID *string
}

// CreateQueue creates a queue in the principal's organization.
func (s *QueueService) CreateQueue(ctx context.Context, principal domain.Principal, input QueueCreateInput) (*domain.Queue, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperrors.NewValidationError("name is required", map[string]any{"field": "name"})
	}
	orgID, err := s.resolveOrg(principal, input.OrgID)
	if err != nil {
		return nil, err
	}
	queue := &domain.Queue{OrgID: orgID, Name: name}
	if err := s.queues.Create(ctx, queue); err != nil {
		return nil, err
	}
	return queue, nil
}

// ListQueues lists the queues of an organization.
func (s *QueueService) ListQueues(ctx context.Context, principal domain.Principal, orgID *string) ([]domain.Queue, error) {
	resolved, err := s.resolveOrg(principal, orgID)
	if err != nil {
		return nil, err
	}
	return s.queues.ListByOrg(ctx, resolved)
}

// GetQueue returns a queue the principal may access.
func (s *QueueService) GetQueue(ctx context.Context, principal domain.Principal, queueID string) (*domain.Queue, error) {
	return s.access.Authorize(ctx, principal, queueID)
}

// AddService attaches a named service classification to a queue.
func (s *QueueService) AddService(ctx context.Context, principal domain.Principal, queueID, name string) (*domain.Service, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.NewValidationError("name is required", map[string]any{"field": "name"})
	}
	if _, err := s.access.Authorize(ctx, principal, queueID); err != nil {
		return nil, err
	}
	svc := &domain.Service{QueueID: queueID, Name: name}
	if err := s.queues.AddService(ctx, svc); err != nil {
		return nil, err
	}
	return svc, nil
}

func (s *QueueService) resolveOrg(principal domain.Principal, requested *string) (string, error) {
	if requested != nil && *requested != "" {
		if !principal.CanAccessOrg(*requested) {
			return "", domain.ErrForbidden
		}
		return *requested, nil
	}
	if principal.OrgID == nil {
		return "", apperrors.NewValidationError("orgId is required", map[string]any{"field": "orgId"})
	}
	return *principal.OrgID, nil
}
