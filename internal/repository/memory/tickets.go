package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/repository"
)

type ticketRepo struct{ s *Store }

func (r ticketRepo) Create(ctx context.Context, t *domain.Ticket) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	now := r.s.now()
	t.ID = uuid.NewString()
	t.CreatedAt = now
	t.UpdatedAt = now
	r.s.seq++
	r.s.tickets[t.ID] = ticketRow{ticket: cloneTicket(*t), seq: r.s.seq}
	id := t.ID
	onRollback(ctx, func() { delete(r.s.tickets, id) })
	return nil
}

func (r ticketRepo) Update(ctx context.Context, t *domain.Ticket, expected domain.TicketStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	row, ok := r.s.tickets[t.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	if row.ticket.Status != expected {
		return repository.ErrStaleTicket
	}
	previous := row
	onRollback(ctx, func() { r.s.tickets[previous.ticket.ID] = previous })
	row.ticket = cloneTicket(*t)
	r.s.tickets[t.ID] = row
	return nil
}

func (r ticketRepo) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	row, ok := r.s.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	t := cloneTicket(row.ticket)
	return &t, nil
}

func (r ticketRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]domain.Ticket, error) {
	return r.ListWithFilter(ctx, repository.TicketFilter{UserID: &userID, Limit: limit, Offset: offset})
}

func (r ticketRepo) ListWithFilter(_ context.Context, f repository.TicketFilter) ([]domain.Ticket, error) {
	r.s.mu.RLock()
	rows := make([]ticketRow, 0, len(r.s.tickets))
	for _, row := range r.s.tickets {
		if matches(row.ticket, f) {
			rows = append(rows, row)
		}
	}
	r.s.mu.RUnlock()

	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if !a.ticket.CreatedAt.Equal(b.ticket.CreatedAt) {
			return a.ticket.CreatedAt.After(b.ticket.CreatedAt)
		}
		return a.seq > b.seq
	})

	limit := f.Limit
	if limit <= 0 {
		limit = repository.DefaultPageSize
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	result := []domain.Ticket{}
	for i := offset; i < len(rows) && len(result) < limit; i++ {
		result = append(result, cloneTicket(rows[i].ticket))
	}
	return result, nil
}
