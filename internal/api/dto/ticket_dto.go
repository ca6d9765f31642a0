package dto

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	QueueID   string  `json:"queueId"`
	ServiceID *string `json:"serviceId"`
}

// CallNextRequest payload. A missing counter keeps the ticket's counter.
type CallNextRequest struct {
	QueueID       string  `json:"queueId"`
	CounterNumber *string `json:"counterNumber"`
}

// TransferRequest payload. A missing counter clears it.
type TransferRequest struct {
	CounterNumber *string `json:"counterNumber"`
}
