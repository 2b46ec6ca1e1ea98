package service

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/events"
	"github.com/spec-kit/support-desk/internal/observability"
	"github.com/spec-kit/support-desk/internal/repository"
	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

// TicketService coordinates ticket workflows.
type TicketService struct {
	ticketWriter
	assignments    repository.TicketAssignmentRepository
	idempotency    repository.IdempotencyRepository
	idempotencyTTL time.Duration
	maxTitle       int
	maxDescription int
}

// TicketDependencies bundles repositories for ticket service.
type TicketDependencies struct {
	Transactor      repository.Transactor
	TicketRepo      repository.TicketRepository
	MessageRepo     repository.TicketMessageRepository
	AssignmentRepo  repository.TicketAssignmentRepository
	IdempotencyRepo repository.IdempotencyRepository
	Dispatcher      events.Dispatcher
	Metrics         *observability.Metrics
	Logger          *zap.Logger
	Clock           func() time.Time

	IdempotencyTTL       time.Duration
	MaxTitleLength       int
	MaxDescriptionLength int
}

// TicketQueueFilter describes the staff queue listing.
type TicketQueueFilter struct {
	AssignedTechID *string
	Unassigned     bool
	Statuses       []domain.TicketStatus
	Priorities     []domain.TicketPriority
	SearchTerm     *string
	CreatedFrom    *time.Time
	CreatedTo      *time.Time
	Limit          int
	Offset         int
}

// TicketDetail is a ticket with its conversation and assignment history.
type TicketDetail struct {
	Ticket      *domain.Ticket
	Messages    []domain.TicketMessage
	Assignments []domain.TicketAssignment
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	return &TicketService{
		ticketWriter:   newTicketWriter(deps),
		assignments:    deps.AssignmentRepo,
		idempotency:    deps.IdempotencyRepo,
		idempotencyTTL: deps.IdempotencyTTL,
		maxTitle:       deps.MaxTitleLength,
		maxDescription: deps.MaxDescriptionLength,
	}
}

func newTicketWriter(deps TicketDependencies) ticketWriter {
	logger, clock := deps.Logger, deps.Clock
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	return ticketWriter{
		tx:         deps.Transactor,
		tickets:    deps.TicketRepo,
		messages:   deps.MessageRepo,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     logger,
		now:        clock,
	}
}

// CreateTicket opens a ticket for owner. When requestToken is set, retries
// carrying the same token and payload return the original ticket with
// replayed=true instead of creating a second one.
func (s *TicketService) CreateTicket(ctx context.Context, owner domain.Actor, data domain.CreateTicketData, requestToken string) (*domain.Ticket, bool, error) {
	if owner.System || owner.ID == "" {
		return nil, false, apperrors.NewUnauthorized("session required")
	}
	clean, err := s.normalize(data)
	if err != nil {
		return nil, false, err
	}

	requestToken = strings.TrimSpace(requestToken)
	key := ""
	if requestToken != "" && s.idempotency != nil {
		key = owner.ID + ":" + requestToken
		fingerprint := payloadFingerprint(clean)
		record, reserved, err := s.idempotency.Reserve(ctx, key, fingerprint, s.idempotencyTTL)
		if err != nil {
			return nil, false, apperrors.NewUnavailable("idempotency store unavailable", err)
		}
		if !reserved {
			return s.replay(ctx, record, fingerprint)
		}
	}

	ticket := &domain.Ticket{
		UserID:      owner.ID,
		Title:       clean.Title,
		Description: clean.Description,
		Priority:    clean.Priority,
		Status:      domain.TicketStatusOpen,
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		if key != "" {
			if releaseErr := s.idempotency.Release(ctx, key); releaseErr != nil {
				s.logger.Warn("release idempotency key", zap.String("key", key), zap.Error(releaseErr))
			}
		}
		return nil, false, apperrors.MapError(err)
	}
	if key != "" {
		if err := s.idempotency.Complete(ctx, key, payloadFingerprint(clean), ticket.ID, s.idempotencyTTL); err != nil {
			s.logger.Warn("complete idempotency key", zap.String("key", key), zap.Error(err))
		}
	}

	s.publish(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		Actor:    events.ActorFrom(owner),
		Payload: events.TicketCreatedPayload{
			OwnerID:  ticket.UserID,
			Priority: ticket.Priority,
			Title:    ticket.Title,
		},
	})
	return ticket, false, nil
}

func (s *TicketService) replay(ctx context.Context, record *repository.IdempotencyRecord, fingerprint string) (*domain.Ticket, bool, error) {
	if record.Fingerprint != fingerprint {
		return nil, false, apperrors.NewConflict("idempotency key reused with a different payload", nil)
	}
	if record.Pending() {
		return nil, false, apperrors.NewConflict("a request with this idempotency key is still in progress", nil)
	}
	ticket, err := s.load(ctx, record.TicketID)
	if err != nil {
		return nil, false, err
	}
	return ticket, true, nil
}

// normalize trims the text, applies the default priority and enforces limits.
// Text is stored as entered; views escape it on output.
func (s *TicketService) normalize(data domain.CreateTicketData) (domain.CreateTicketData, error) {
	out := domain.CreateTicketData{
		Title:       strings.TrimSpace(data.Title),
		Description: strings.TrimSpace(data.Description),
	}
	priority, err := domain.ParsePriority(string(data.Priority))
	if err != nil {
		return out, apperrors.NewValidationError("invalid priority", map[string]any{"priority": string(data.Priority)})
	}
	out.Priority = priority

	fields := map[string]any{}
	if out.Title == "" {
		fields["title"] = "required"
	} else if s.maxTitle > 0 && utf8.RuneCountInString(out.Title) > s.maxTitle {
		fields["title"] = fmt.Sprintf("max %d characters", s.maxTitle)
	}
	if out.Description == "" {
		fields["description"] = "required"
	} else if s.maxDescription > 0 && utf8.RuneCountInString(out.Description) > s.maxDescription {
		fields["description"] = fmt.Sprintf("max %d characters", s.maxDescription)
	}
	if len(fields) > 0 {
		return out, apperrors.NewValidationError("invalid ticket", fields)
	}
	return out, nil
}

func payloadFingerprint(data domain.CreateTicketData) string {
	sum := blake2b.Sum256([]byte(data.Title + "\x00" + data.Description + "\x00" + string(data.Priority)))
	return hex.EncodeToString(sum[:])
}

// ListUserTickets returns the owner's tickets, newest first.
func (s *TicketService) ListUserTickets(ctx context.Context, owner domain.Actor, limit, offset int) ([]domain.Ticket, error) {
	if owner.ID == "" {
		return nil, apperrors.NewUnauthorized("session required")
	}
	tickets, err := s.tickets.ListByUser(ctx, owner.ID, limit, offset)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return tickets, nil
}

// ListTickets returns the staff queue.
func (s *TicketService) ListTickets(ctx context.Context, actor domain.Actor, filter TicketQueueFilter) ([]domain.Ticket, error) {
	if !actor.System && !actor.IsStaff() {
		return nil, apperrors.NewForbidden("staff role required")
	}
	tickets, err := s.tickets.ListWithFilter(ctx, repository.TicketFilter{
		AssignedTechID: filter.AssignedTechID,
		Unassigned:     filter.Unassigned,
		Statuses:       filter.Statuses,
		Priorities:     filter.Priorities,
		SearchTerm:     filter.SearchTerm,
		CreatedFrom:    filter.CreatedFrom,
		CreatedTo:      filter.CreatedTo,
		Limit:          filter.Limit,
		Offset:         filter.Offset,
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return tickets, nil
}

// GetTicket returns the ticket with its thread to the owner or staff.
func (s *TicketService) GetTicket(ctx context.Context, actor domain.Actor, ticketID string) (*TicketDetail, error) {
	ticket, err := s.load(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if !canView(actor, ticket) {
		return nil, apperrors.NewForbidden("access denied")
	}
	msgs, err := s.messages.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	detail := &TicketDetail{Ticket: ticket, Messages: msgs, Assignments: []domain.TicketAssignment{}}
	if s.assignments != nil && (actor.System || actor.IsStaff()) {
		history, err := s.assignments.ListByTicket(ctx, ticket.ID)
		if err != nil {
			return nil, apperrors.MapError(err)
		}
		detail.Assignments = history
	}
	return detail, nil
}

// AppendMessage adds a message to the thread. The owner writes user
// messages, staff write tech messages. A reply from the owner to an AI answer
// on a ticket nobody has picked up sends it back to the AI.
func (s *TicketService) AppendMessage(ctx context.Context, actor domain.Actor, ticketID, content string) (*domain.TicketMessage, *domain.Ticket, error) {
	ticket, err := s.load(ctx, ticketID)
	if err != nil {
		return nil, nil, err
	}
	if actor.System || !canView(actor, ticket) {
		return nil, nil, apperrors.NewForbidden("access denied")
	}
	if ticket.Status.Terminal() {
		return nil, nil, mapDomainError(domain.ErrTicketClosed)
	}
	content, err = s.messageContent(content)
	if err != nil {
		return nil, nil, err
	}

	kind := domain.MessageTypeTech
	if actor.Owns(ticket) {
		kind = domain.MessageTypeUser
	}
	loopBack := kind == domain.MessageTypeUser && ticket.Status == domain.TicketStatusAIResponded && !ticket.HasTechnician()

	var (
		msg     *domain.TicketMessage
		changed events.Event
	)
	err = s.inTx(ctx, func(ctx context.Context) error {
		var err error
		if msg, err = s.appendMessage(ctx, ticket.ID, actor, kind, content); err != nil {
			return err
		}
		if loopBack {
			changed, err = s.applyTransition(ctx, ticket, domain.TicketStatusWaitingAI, actor, "")
		}
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	s.publishMessage(ctx, actor, msg)
	if loopBack {
		s.publish(ctx, changed)
	}
	return msg, ticket, nil
}

func (s *TicketService) messageContent(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", apperrors.NewValidationError("invalid message", map[string]any{"content": "required"})
	}
	if s.maxDescription > 0 && utf8.RuneCountInString(content) > s.maxDescription {
		return "", apperrors.NewValidationError("invalid message", map[string]any{"content": fmt.Sprintf("max %d characters", s.maxDescription)})
	}
	return content, nil
}

// ChangeStatus moves a ticket through the lifecycle on behalf of actor.
func (s *TicketService) ChangeStatus(ctx context.Context, actor domain.Actor, ticketID string, next domain.TicketStatus, comment string) (*domain.Ticket, error) {
	ticket, err := s.load(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if err := s.transition(ctx, ticket, next, actor, comment); err != nil {
		return nil, err
	}
	return ticket, nil
}

// RequestAIAssist hands an open ticket to the AI assistant.
func (s *TicketService) RequestAIAssist(ctx context.Context, actor domain.Actor, ticketID string) (*domain.Ticket, error) {
	return s.ChangeStatus(ctx, actor, ticketID, domain.TicketStatusWaitingAI, "")
}

// RecordAIResponse stores the assistant's answer and marks the ticket answered.
func (s *TicketService) RecordAIResponse(ctx context.Context, actor domain.Actor, ticketID, content string) (*domain.TicketMessage, *domain.Ticket, error) {
	ticket, err := s.load(ctx, ticketID)
	if err != nil {
		return nil, nil, err
	}
	content, err = s.messageContent(content)
	if err != nil {
		return nil, nil, err
	}

	var (
		msg     *domain.TicketMessage
		changed events.Event
	)
	err = s.inTx(ctx, func(ctx context.Context) error {
		var err error
		if changed, err = s.applyTransition(ctx, ticket, domain.TicketStatusAIResponded, actor, ""); err != nil {
			return err
		}
		msg, err = s.appendMessage(ctx, ticket.ID, actor, domain.MessageTypeAI, content)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	s.publish(ctx, changed)
	s.publishMessage(ctx, actor, msg)
	return msg, ticket, nil
}

// AcceptAIResolution lets the owner close the loop on an AI answer.
func (s *TicketService) AcceptAIResolution(ctx context.Context, actor domain.Actor, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.load(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.Status != domain.TicketStatusAIResponded {
		return nil, apperrors.NewConflict("ticket has no AI answer to accept", map[string]any{"status": string(ticket.Status)})
	}
	if err := s.transition(ctx, ticket, domain.TicketStatusResolved, actor, "Solução da IA aceita"); err != nil {
		return nil, err
	}
	return ticket, nil
}

const autoCloseBatch = 100

// AutoCloseResolved closes tickets resolved for longer than after. Failures
// on individual tickets are logged and skipped.
func (s *TicketService) AutoCloseResolved(ctx context.Context, after time.Duration) (int, error) {
	if after <= 0 {
		return 0, nil
	}
	cutoff := s.now().Add(-after)
	comment := fmt.Sprintf("Fechado automaticamente após %s sem retorno", formatHours(after))
	closed, offset := 0, 0

	for {
		batch, err := s.tickets.ListWithFilter(ctx, repository.TicketFilter{
			Statuses:       []domain.TicketStatus{domain.TicketStatusResolved},
			ResolvedBefore: &cutoff,
			Limit:          autoCloseBatch,
			Offset:         offset,
		})
		if err != nil {
			return closed, apperrors.MapError(err)
		}
		for i := range batch {
			ticket := &batch[i]
			if err := s.transition(ctx, ticket, domain.TicketStatusClosed, domain.SystemActor(), comment); err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return closed, ctxErr
				}
				// still resolved, so it keeps its place ahead of the next page
				s.logger.Warn("auto-close failed", zap.String("ticket_id", ticket.ID), zap.Error(err))
				offset++
				continue
			}
			closed++
		}
		if len(batch) < autoCloseBatch {
			return closed, nil
		}
	}
}

func formatHours(d time.Duration) string {
	hours := int(d.Round(time.Hour) / time.Hour)
	if hours == 1 {
		return "1 hora"
	}
	return fmt.Sprintf("%d horas", hours)
}
