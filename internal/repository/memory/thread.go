package memory

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/support-desk/internal/domain"
)

type messageRepo struct{ s *Store }

func (r messageRepo) Create(ctx context.Context, msg *domain.TicketMessage) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.tickets[msg.TicketID]; !ok {
		return pgx.ErrNoRows
	}
	msg.ID = uuid.NewString()
	msg.CreatedAt = r.s.now()
	r.s.messages[msg.TicketID] = append(r.s.messages[msg.TicketID], *msg)
	ticketID, id := msg.TicketID, msg.ID
	onRollback(ctx, func() {
		thread := r.s.messages[ticketID]
		for i := range thread {
			if thread[i].ID == id {
				r.s.messages[ticketID] = append(thread[:i:i], thread[i+1:]...)
				return
			}
		}
	})
	return nil
}

func (r messageRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.TicketMessage, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	result := make([]domain.TicketMessage, len(r.s.messages[ticketID]))
	copy(result, r.s.messages[ticketID])
	return result, nil
}

type assignmentRepo struct{ s *Store }

func (r assignmentRepo) Assign(ctx context.Context, a *domain.TicketAssignment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.tickets[a.TicketID]; !ok {
		return pgx.ErrNoRows
	}
	now := r.s.now()
	ticketID, previous := a.TicketID, r.s.assignments[a.TicketID]
	onRollback(ctx, func() { r.s.assignments[ticketID] = previous })
	history := make([]domain.TicketAssignment, len(previous), len(previous)+1)
	copy(history, previous)
	for i := range history {
		if history[i].ReleasedAt == nil {
			released := now
			history[i].ReleasedAt = &released
		}
	}
	a.ID = uuid.NewString()
	a.AssignedAt = now
	a.ReleasedAt = nil
	r.s.assignments[a.TicketID] = append(history, *a)
	return nil
}

func (r assignmentRepo) GetActive(_ context.Context, ticketID string) (*domain.TicketAssignment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, a := range r.s.assignments[ticketID] {
		if a.Active() {
			active := a
			return &active, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r assignmentRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.TicketAssignment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	result := make([]domain.TicketAssignment, len(r.s.assignments[ticketID]))
	copy(result, r.s.assignments[ticketID])
	return result, nil
}
