package dto

import (
	"time"

	"github.com/walkinq/queue-service/internal/domain"
)

// CreateQueueRequest payload. OrgID is needed only for super admins.
type CreateQueueRequest struct {
	Name  string  `json:"name"`
	OrgID *string `json:"orgId"`
}

// AddServiceRequest payload.
type AddServiceRequest struct {
	Name string `json:"name"`
}

// ServiceResponse describes a queue's service classification.
type ServiceResponse struct {
	ID        string    `json:"id"`
	QueueID   string    `json:"queueId"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// QueueResponse describes a queue.
type QueueResponse struct {
	ID         string            `json:"id"`
	OrgID      string            `json:"orgId"`
	Name       string            `json:"name"`
	NextNumber int               `json:"nextNumber"`
	CreatedAt  time.Time         `json:"createdAt"`
	Services   []ServiceResponse `json:"services"`
}

// NewServiceResponse maps a service.
func NewServiceResponse(svc *domain.Service) ServiceResponse {
	return ServiceResponse{ID: svc.ID, QueueID: svc.QueueID, Name: svc.Name, CreatedAt: svc.CreatedAt}
}

// NewQueueResponse maps a queue with its services.
func NewQueueResponse(queue *domain.Queue) QueueResponse {
	services := make([]ServiceResponse, 0, len(queue.Services))
	for i := range queue.Services {
		services = append(services, NewServiceResponse(&queue.Services[i]))
	}
	return QueueResponse{
		ID:         queue.ID,
		OrgID:      queue.OrgID,
		Name:       queue.Name,
		NextNumber: queue.NextNumber,
		CreatedAt:  queue.CreatedAt,
		Services:   services,
	}
}
