package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/events"
	"github.com/spec-kit/support-desk/internal/observability"
	"github.com/spec-kit/support-desk/internal/repository"
	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
	"github.com/spec-kit/support-desk/pkg/util/textutil"
)

const messagePreviewRunes = 120

// ticketWriter applies lifecycle changes shared by the ticket and assignment
// services. Writes for one operation share a transaction; events are
// published after it commits.
type ticketWriter struct {
	tx         repository.Transactor
	tickets    repository.TicketRepository
	messages   repository.TicketMessageRepository
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	now        func() time.Time
}

func (w *ticketWriter) load(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	ticket, err := w.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, mapRepoError(err, "ticket", ticketID)
	}
	return ticket, nil
}

// inTx runs fn in a transaction when the writer has a Transactor.
func (w *ticketWriter) inTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if w.tx == nil {
		return fn(ctx)
	}
	return w.tx.RunInTx(ctx, fn)
}

// transition moves ticket to next, records the change and publishes it.
func (w *ticketWriter) transition(ctx context.Context, ticket *domain.Ticket, next domain.TicketStatus, actor domain.Actor, comment string) error {
	var event events.Event
	err := w.inTx(ctx, func(ctx context.Context) error {
		var err error
		event, err = w.applyTransition(ctx, ticket, next, actor, comment)
		return err
	})
	if err != nil {
		return err
	}
	w.publish(ctx, event)
	return nil
}

// applyTransition persists the move and its system message. The update only
// lands while the stored status is still the one ticket was loaded with.
func (w *ticketWriter) applyTransition(ctx context.Context, ticket *domain.Ticket, next domain.TicketStatus, actor domain.Actor, comment string) (events.Event, error) {
	previous := ticket.Status
	if err := ticket.Transition(next, actor, w.now()); err != nil {
		return events.Event{}, mapDomainError(err)
	}
	if err := w.tickets.Update(ctx, ticket, previous); err != nil {
		return events.Event{}, mapRepoError(err, "ticket", ticket.ID)
	}

	content := fmt.Sprintf("Status alterado: %s → %s", previous.Display().Label, next.Display().Label)
	if comment = strings.TrimSpace(comment); comment != "" {
		content += ". " + comment
	}
	if _, err := w.appendMessage(ctx, ticket.ID, domain.SystemActor(), domain.MessageTypeSystem, content); err != nil {
		return events.Event{}, err
	}

	return events.Event{
		Type:     events.EventTicketStatusChanged,
		TicketID: ticket.ID,
		Actor:    events.ActorFrom(actor),
		Payload: events.TicketStatusChangedPayload{
			OldStatus: previous,
			NewStatus: next,
			Comment:   comment,
		},
	}, nil
}

func (w *ticketWriter) appendMessage(ctx context.Context, ticketID string, sender domain.Actor, kind domain.MessageType, content string) (*domain.TicketMessage, error) {
	msg := &domain.TicketMessage{
		TicketID:    ticketID,
		SenderID:    sender.SenderID(),
		Content:     content,
		MessageType: kind,
	}
	if kind == domain.MessageTypeAI || kind == domain.MessageTypeSystem {
		msg.SenderID = nil
	}
	if err := w.messages.Create(ctx, msg); err != nil {
		return nil, mapRepoError(err, "ticket", ticketID)
	}
	return msg, nil
}

func (w *ticketWriter) publishMessage(ctx context.Context, actor domain.Actor, msg *domain.TicketMessage) {
	w.publish(ctx, events.Event{
		Type:     events.EventTicketMessageAdded,
		TicketID: msg.TicketID,
		Actor:    events.ActorFrom(actor),
		Payload: events.TicketMessageAddedPayload{
			MessageID:   msg.ID,
			MessageType: msg.MessageType,
			SenderID:    msg.SenderID,
			BodyPreview: textutil.Truncate(msg.Content, messagePreviewRunes),
		},
	})
}

func (w *ticketWriter) publish(ctx context.Context, event events.Event) {
	w.metrics.RecordTicketEvent(string(event.Type))
	if w.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = w.now()
	}
	if err := w.dispatcher.Publish(ctx, event); err != nil {
		w.logger.Warn("event handler failed",
			zap.String("event_type", string(event.Type)),
			zap.String("ticket_id", event.TicketID),
			zap.Error(err))
	}
}

func canView(actor domain.Actor, ticket *domain.Ticket) bool {
	return actor.System || actor.Owns(ticket) || actor.IsStaff()
}

// mapRepoError turns a missing row into NOT_FOUND and a lost status race
// into CONFLICT for resource, and maps the rest.
func mapRepoError(err error, resource, id string) error {
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return apperrors.NewNotFound(resource, map[string]any{resource + "_id": id})
	case errors.Is(err, repository.ErrStaleTicket):
		return apperrors.NewConflict("ticket was changed by another request, reload and try again", map[string]any{resource + "_id": id})
	}
	return apperrors.MapError(err)
}

// mapDomainError translates lifecycle and validation sentinels.
func mapDomainError(err error) error {
	switch {
	case errors.Is(err, domain.ErrTransitionForbidden):
		return apperrors.NewForbidden(err.Error())
	case errors.Is(err, domain.ErrTicketClosed),
		errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrTechnicianRequired):
		return apperrors.NewConflict(err.Error(), nil)
	case errors.Is(err, domain.ErrInvalidStatus),
		errors.Is(err, domain.ErrInvalidPriority),
		errors.Is(err, domain.ErrInvalidTicket):
		return apperrors.NewValidationError(err.Error(), nil)
	}
	return apperrors.MapError(err)
}
