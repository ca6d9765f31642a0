package repository

import (
	"context"

	"github.com/walkinq/queue-service/internal/domain"
	apperrors "github.com/walkinq/queue-service/pkg/util/errorutil"
)

// QueueRepository encapsulates queue and service classification persistence.
type QueueRepository interface {
	Create(ctx context.Context, queue *domain.Queue) error
	GetByID(ctx context.Context, id string) (*domain.Queue, error)
	ListByOrg(ctx context.Context, orgID string) ([]domain.Queue, error)
	AddService(ctx context.Context, service *domain.Service) error
	GetService(ctx context.Context, id string) (*domain.Service, error)
}

type queueRepository struct {
	pool DB
}

// NewQueueRepository instantiates repository.
func NewQueueRepository(pool DB) QueueRepository {
	return &queueRepository{pool: pool}
}

func (r *queueRepository) Create(ctx context.Context, queue *domain.Queue) error {
	const query = `
        INSERT INTO queues (org_id, name)
        VALUES ($1,$2)
        RETURNING id, next_number, created_at`
	err := r.pool.QueryRow(ctx, query, queue.OrgID, queue.Name).
		Scan(&queue.ID, &queue.NextNumber, &queue.CreatedAt)
	if hasPgCode(err, pgForeignKeyViolation) || hasPgCode(err, pgInvalidTextRepresentation) {
		return apperrors.NewNotFound("organization", map[string]any{"orgId": queue.OrgID})
	}
	if err != nil {
		return storageErr(err)
	}
	queue.Services = []domain.Service{}
	return nil
}

func (r *queueRepository) GetByID(ctx context.Context, id string) (*domain.Queue, error) {
	const query = `
        SELECT id, org_id, name, next_number, created_at
        FROM queues WHERE id=$1`
	var queue domain.Queue
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&queue.ID,
		&queue.OrgID,
		&queue.Name,
		&queue.NextNumber,
		&queue.CreatedAt,
	); err != nil {
		return nil, notFoundOr(err, domain.ErrQueueNotFound)
	}
	services, err := r.listServices(ctx, queue.ID)
	if err != nil {
		return nil, err
	}
	queue.Services = services
	return &queue, nil
}

func (r *queueRepository) ListByOrg(ctx context.Context, orgID string) ([]domain.Queue, error) {
	const query = `
        SELECT id, org_id, name, next_number, created_at
        FROM queues WHERE org_id=$1 ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, query, orgID)
	if err != nil {
		return nil, storageErr(err)
	}
	defer rows.Close()

	var result []domain.Queue
	for rows.Next() {
		var queue domain.Queue
		if err := rows.Scan(&queue.ID, &queue.OrgID, &queue.Name, &queue.NextNumber, &queue.CreatedAt); err != nil {
			return nil, storageErr(err)
		}
		result = append(result, queue)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(err)
	}
	for i := range result {
		services, err := r.listServices(ctx, result[i].ID)
		if err != nil {
			return nil, err
		}
		result[i].Services = services
	}
	return result, nil
}

func (r *queueRepository) AddService(ctx context.Context, service *domain.Service) error {
	const query = `
        INSERT INTO queue_services (queue_id, name)
        VALUES ($1,$2)
        RETURNING id, created_at`
	err := r.pool.QueryRow(ctx, query, service.QueueID, service.Name).
		Scan(&service.ID, &service.CreatedAt)
	if hasPgCode(err, pgForeignKeyViolation) {
		return domain.ErrQueueNotFound
	}
	return storageErr(err)
}

func (r *queueRepository) GetService(ctx context.Context, id string) (*domain.Service, error) {
	const query = `SELECT id, queue_id, name, created_at FROM queue_services WHERE id=$1`
	var service domain.Service
	if err := r.pool.QueryRow(ctx, query, id).Scan(&service.ID, &service.QueueID, &service.Name, &service.CreatedAt); err != nil {
		return nil, notFoundOr(err, domain.ErrServiceNotFound)
	}
	return &service, nil
}

func (r *queueRepository) listServices(ctx context.Context, queueID string) ([]domain.Service, error) {
	const query = `
        SELECT id, queue_id, name, created_at
        FROM queue_services WHERE queue_id=$1 ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, query, queueID)
	if err != nil {
		return nil, storageErr(err)
	}
	defer rows.Close()

	services := []domain.Service{}
	for rows.Next() {
		var service domain.Service
		if err := rows.Scan(&service.ID, &service.QueueID, &service.Name, &service.CreatedAt); err != nil {
			return nil, storageErr(err)
		}
		services = append(services, service)
	}
	return services, storageErr(rows.Err())
}
