package service

import (
	"context"
	"strings"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/events"
	"github.com/spec-kit/support-desk/internal/repository"
	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

// AssignmentService handles ticket assignment operations.
type AssignmentService struct {
	ticketWriter
	assignments repository.TicketAssignmentRepository
	authz       *AuthorizationService
}

// AssignmentDependencies bundles repositories.
type AssignmentDependencies struct {
	Tickets        TicketDependencies
	AssignmentRepo repository.TicketAssignmentRepository
	Authorization  *AuthorizationService
}

// NewAssignmentService creates the service.
func NewAssignmentService(deps AssignmentDependencies) *AssignmentService {
	return &AssignmentService{
		ticketWriter: newTicketWriter(deps.Tickets),
		assignments:  deps.AssignmentRepo,
		authz:        deps.Authorization,
	}
}

// assignable statuses move to assigned_to_tech; in-flight ones keep theirs.
var assignmentMovesStatus = map[domain.TicketStatus]bool{
	domain.TicketStatusOpen:           true,
	domain.TicketStatusWaitingAI:      true,
	domain.TicketStatusAIResponded:    true,
	domain.TicketStatusAssignedToTech: false,
	domain.TicketStatusInProgress:     false,
}

// AssignTechnician puts techID on the ticket. Admins assign any technician;
// a technician may only take a ticket for themselves. An empty techID means
// the actor.
func (s *AssignmentService) AssignTechnician(ctx context.Context, actor domain.Actor, ticketID, techID string) (*domain.Ticket, error) {
	if !actor.IsStaff() {
		return nil, apperrors.NewForbidden("staff role required")
	}
	techID = strings.TrimSpace(techID)
	if techID == "" {
		techID = actor.ID
	}
	if !actor.IsAdmin() && techID != actor.ID {
		return nil, apperrors.NewForbidden("technicians may only assign themselves")
	}

	isTech, err := s.authz.IsTecnico(ctx, techID)
	if err != nil {
		return nil, err
	}
	if !isTech {
		return nil, apperrors.NewValidationError("assignee is not a technician", map[string]any{"tech_id": techID})
	}

	ticket, err := s.load(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	movesStatus, assignable := assignmentMovesStatus[ticket.Status]
	if !assignable {
		return nil, apperrors.NewConflict("ticket can no longer be assigned", map[string]any{"status": string(ticket.Status)})
	}
	if ticket.IsAssignedTo(techID) {
		return ticket, nil
	}

	assignment := &domain.TicketAssignment{
		TicketID:   ticket.ID,
		TechID:     techID,
		AssignedBy: actor.SenderID(),
	}
	previous, status := ticket.AssignedTechID, ticket.Status
	var changed events.Event
	err = s.inTx(ctx, func(ctx context.Context) error {
		if err := s.assignments.Assign(ctx, assignment); err != nil {
			return mapRepoError(err, "ticket", ticket.ID)
		}
		ticket.AssignedTechID = &techID
		if movesStatus {
			var err error
			changed, err = s.applyTransition(ctx, ticket, domain.TicketStatusAssignedToTech, actor, "")
			return err
		}
		if now := s.now(); now.After(ticket.UpdatedAt) {
			ticket.UpdatedAt = now
		}
		if err := s.tickets.Update(ctx, ticket, status); err != nil {
			return mapRepoError(err, "ticket", ticket.ID)
		}
		_, err := s.appendMessage(ctx, ticket.ID, actor, domain.MessageTypeSystem, "Chamado reatribuído a outro técnico")
		return err
	})
	if err != nil {
		return nil, err
	}

	if movesStatus {
		s.publish(ctx, changed)
	}
	s.publish(ctx, events.Event{
		Type:     events.EventTicketAssigned,
		TicketID: ticket.ID,
		Actor:    events.ActorFrom(actor),
		Payload: events.TicketAssignedPayload{
			TechID:         techID,
			PreviousTechID: previous,
			AssignedBy:     assignment.AssignedBy,
		},
	})
	return ticket, nil
}
