package dto

import (
	"time"

	"github.com/spec-kit/support-desk/internal/domain"
)

// CreateTicketRequest is the intake payload, accepted as JSON or a form post.
type CreateTicketRequest struct {
	Title       string `json:"title" form:"title" validate:"required,max=500"`
	Description string `json:"description" form:"description" validate:"required,max=20000"`
	Priority    string `json:"priority" form:"priority" validate:"omitempty,oneof=low medium high"`
}

// CreateMessageRequest payload.
type CreateMessageRequest struct {
	Content string `json:"content" validate:"required,max=20000"`
}

// ChangeStatusRequest moves a ticket through its lifecycle.
type ChangeStatusRequest struct {
	Status  string `json:"status" validate:"required,oneof=open waiting_ai ai_responded assigned_to_tech in_progress resolved closed"`
	Comment string `json:"comment" validate:"max=2000"`
}

// AssignRequest names the technician; empty means the caller.
type AssignRequest struct {
	TechID string `json:"tech_id" validate:"omitempty,uuid"`
}

// TicketListQuery captures query filters for queue endpoints.
type TicketListQuery struct {
	Statuses       []domain.TicketStatus
	Priorities     []domain.TicketPriority
	AssignedTechID *string
	Unassigned     bool
	SearchTerm     *string
	CreatedFrom    *time.Time
	CreatedTo      *time.Time
	Page           int
	PageSize       int
}

// TicketSummary response.
type TicketSummary struct {
	ID             string                `json:"id"`
	UserID         string                `json:"user_id"`
	Title          string                `json:"title"`
	Status         domain.TicketStatus   `json:"status"`
	StatusLabel    string                `json:"status_label"`
	Priority       domain.TicketPriority `json:"priority"`
	PriorityLabel  string                `json:"priority_label"`
	AssignedTechID *string               `json:"assigned_tech_id"`
	CreatedAt      time.Time             `json:"created_at"`
	UpdatedAt      time.Time             `json:"updated_at"`
}

// TicketDetailResponse provides full ticket info.
type TicketDetailResponse struct {
	TicketSummary
	Description string                     `json:"description"`
	AIAttempted bool                       `json:"ai_attempted"`
	AIResolved  bool                       `json:"ai_resolved"`
	ResolvedAt  *time.Time                 `json:"resolved_at"`
	ClosedAt    *time.Time                 `json:"closed_at"`
	NextStatus  []domain.TicketStatus      `json:"next_statuses"`
	Messages    []TicketMessageResponse    `json:"messages"`
	Assignments []TicketAssignmentResponse `json:"assignments,omitempty"`
}

// TicketMessageResponse represents a thread message.
type TicketMessageResponse struct {
	ID          string             `json:"id"`
	TicketID    string             `json:"ticket_id"`
	SenderID    *string            `json:"sender_id"`
	MessageType domain.MessageType `json:"message_type"`
	Content     string             `json:"content"`
	CreatedAt   time.Time          `json:"created_at"`
}

// TicketAssignmentResponse is one entry of the assignment history.
type TicketAssignmentResponse struct {
	ID         string     `json:"id"`
	TechID     string     `json:"tech_id"`
	AssignedBy *string    `json:"assigned_by"`
	AssignedAt time.Time  `json:"assigned_at"`
	ReleasedAt *time.Time `json:"released_at"`
}

// NewTicketSummary maps a ticket for list responses.
func NewTicketSummary(t *domain.Ticket) TicketSummary {
	return TicketSummary{
		ID:             t.ID,
		UserID:         t.UserID,
		Title:          t.Title,
		Status:         t.Status,
		StatusLabel:    t.Status.Display().Label,
		Priority:       t.Priority,
		PriorityLabel:  t.Priority.Info().Label,
		AssignedTechID: t.AssignedTechID,
		CreatedAt:      t.CreatedAt,
		UpdatedAt:      t.UpdatedAt,
	}
}

// NewTicketSummaries maps a list.
func NewTicketSummaries(tickets []domain.Ticket) []TicketSummary {
	items := make([]TicketSummary, 0, len(tickets))
	for i := range tickets {
		items = append(items, NewTicketSummary(&tickets[i]))
	}
	return items
}

// NewTicketDetail maps a ticket with its thread and assignments.
func NewTicketDetail(t *domain.Ticket, messages []domain.TicketMessage, assignments []domain.TicketAssignment) TicketDetailResponse {
	msgs := make([]TicketMessageResponse, 0, len(messages))
	for i := range messages {
		msgs = append(msgs, NewTicketMessageResponse(&messages[i]))
	}
	history := make([]TicketAssignmentResponse, 0, len(assignments))
	for _, a := range assignments {
		history = append(history, TicketAssignmentResponse{
			ID:         a.ID,
			TechID:     a.TechID,
			AssignedBy: a.AssignedBy,
			AssignedAt: a.AssignedAt,
			ReleasedAt: a.ReleasedAt,
		})
	}
	return TicketDetailResponse{
		TicketSummary: NewTicketSummary(t),
		Description:   t.Description,
		AIAttempted:   t.AIAttempted,
		AIResolved:    t.AIResolved,
		ResolvedAt:    t.ResolvedAt,
		ClosedAt:      t.ClosedAt,
		NextStatus:    domain.NextStatuses(t.Status),
		Messages:      msgs,
		Assignments:   history,
	}
}

// NewTicketMessageResponse maps a message.
func NewTicketMessageResponse(m *domain.TicketMessage) TicketMessageResponse {
	return TicketMessageResponse{
		ID:          m.ID,
		TicketID:    m.TicketID,
		SenderID:    m.SenderID,
		MessageType: m.MessageType,
		Content:     m.Content,
		CreatedAt:   m.CreatedAt,
	}
}
