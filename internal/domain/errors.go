package domain

import (
	apperrors "github.com/walkinq/queue-service/pkg/util/errorutil"
)

// Sentinel errors returned by the core. They are DomainErrors so transports can
// render them directly and callers can match them with errors.Is.
var (
	ErrQueueNotFound    = apperrors.NewNotFound("queue", nil)
	ErrTicketNotFound   = apperrors.NewNotFound("ticket", nil)
	ErrServiceNotFound  = apperrors.NewNotFound("service", nil)
	ErrUserNotFound     = apperrors.NewNotFound("user", nil)
	ErrForbidden        = apperrors.NewForbidden("forbidden")
	ErrNoWaitingTickets = apperrors.NewInvalidState("no waiting tickets", nil)
	ErrTicketTerminal   = apperrors.NewInvalidState("ticket already finished", nil)
	ErrTicketNotCalled  = apperrors.NewInvalidState("ticket has not been called", nil)
)
