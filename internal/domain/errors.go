package domain

import "errors"

var (
	ErrInvalidPriority     = errors.New("invalid priority")
	ErrInvalidStatus       = errors.New("invalid status")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrTransitionForbidden = errors.New("actor not allowed to perform transition")
	ErrTicketClosed        = errors.New("ticket is closed")
	ErrTechnicianRequired  = errors.New("ticket has no assigned technician")
	ErrInvalidTicket       = errors.New("invalid ticket")
)
