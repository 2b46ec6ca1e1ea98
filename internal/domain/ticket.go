package domain

import (
	"fmt"
	"strings"
	"time"
)

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen           TicketStatus = "open"
	TicketStatusWaitingAI      TicketStatus = "waiting_ai"
	TicketStatusAIResponded    TicketStatus = "ai_responded"
	TicketStatusAssignedToTech TicketStatus = "assigned_to_tech"
	TicketStatusInProgress     TicketStatus = "in_progress"
	TicketStatusResolved       TicketStatus = "resolved"
	TicketStatusClosed         TicketStatus = "closed"
)

// StatusDisplay is how a status is presented on the dashboard.
type StatusDisplay struct {
	Label string `json:"label"`
	Icon  string `json:"icon"`
}

var statusDisplay = map[TicketStatus]StatusDisplay{
	TicketStatusOpen:           {Label: "Aberto", Icon: "alert-circle"},
	TicketStatusWaitingAI:      {Label: "Aguardando IA", Icon: "bot"},
	TicketStatusAIResponded:    {Label: "Respondido pela IA", Icon: "message-circle"},
	TicketStatusAssignedToTech: {Label: "Atribuído a Técnico", Icon: "user-check"},
	TicketStatusInProgress:     {Label: "Em Andamento", Icon: "clock"},
	TicketStatusResolved:       {Label: "Resolvido", Icon: "check-circle"},
	TicketStatusClosed:         {Label: "Fechado", Icon: "lock"},
}

// ParseStatus converts raw input into a TicketStatus.
func ParseStatus(raw string) (TicketStatus, error) {
	status := TicketStatus(strings.ToLower(strings.TrimSpace(raw)))
	if !status.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
	}
	return status, nil
}

// Valid reports whether s is a declared status.
func (s TicketStatus) Valid() bool {
	_, ok := statusDisplay[s]
	return ok
}

// Display returns the label and icon for s.
func (s TicketStatus) Display() StatusDisplay {
	if d, ok := statusDisplay[s]; ok {
		return d
	}
	return StatusDisplay{Label: "Desconhecido", Icon: "alert-circle"}
}

// Terminal reports whether no further transitions are possible.
func (s TicketStatus) Terminal() bool {
	return s == TicketStatusClosed
}

// CreateTicketData is the payload collected by the intake form.
type CreateTicketData struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Priority    TicketPriority `json:"priority"`
}

// Ticket is the aggregate for support requests.
type Ticket struct {
	ID             string
	UserID         string
	Title          string
	Description    string
	Priority       TicketPriority
	Status         TicketStatus
	AssignedTechID *string
	AIAttempted    bool
	AIResolved     bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
	ResolvedAt     *time.Time
	ClosedAt       *time.Time
}

// Validate checks the structural invariants of a persisted ticket.
func (t *Ticket) Validate() error {
	switch {
	case strings.TrimSpace(t.UserID) == "":
		return fmt.Errorf("%w: missing owner", ErrInvalidTicket)
	case strings.TrimSpace(t.Title) == "":
		return fmt.Errorf("%w: missing title", ErrInvalidTicket)
	case strings.TrimSpace(t.Description) == "":
		return fmt.Errorf("%w: missing description", ErrInvalidTicket)
	case !t.Priority.Valid():
		return fmt.Errorf("%w: priority %q", ErrInvalidTicket, t.Priority)
	case !t.Status.Valid():
		return fmt.Errorf("%w: status %q", ErrInvalidTicket, t.Status)
	case t.UpdatedAt.Before(t.CreatedAt):
		return fmt.Errorf("%w: updated_at before created_at", ErrInvalidTicket)
	}
	if t.ResolvedAt != nil && t.ResolvedAt.Before(t.CreatedAt) {
		return fmt.Errorf("%w: resolved_at before created_at", ErrInvalidTicket)
	}
	if t.ClosedAt != nil {
		floor := t.CreatedAt
		if t.ResolvedAt != nil {
			floor = *t.ResolvedAt
		}
		if t.ClosedAt.Before(floor) {
			return fmt.Errorf("%w: closed_at before resolution", ErrInvalidTicket)
		}
	}
	return nil
}

// HasTechnician reports whether a technician is currently assigned.
func (t *Ticket) HasTechnician() bool {
	return t.AssignedTechID != nil && *t.AssignedTechID != ""
}

// IsAssignedTo reports whether techID is the assigned technician.
func (t *Ticket) IsAssignedTo(techID string) bool {
	return t.HasTechnician() && *t.AssignedTechID == techID
}
