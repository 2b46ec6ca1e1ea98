package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/support-desk/internal/domain"
)

// TicketAssignmentRepository records which technician works a ticket.
type TicketAssignmentRepository interface {
	// Assign releases the active assignment of the ticket, if any, and records
	// the new one atomically.
	Assign(ctx context.Context, assignment *domain.TicketAssignment) error
	GetActive(ctx context.Context, ticketID string) (*domain.TicketAssignment, error)
	ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketAssignment, error)
}

type ticketAssignmentRepository struct {
	pool *pgxpool.Pool
}

// NewTicketAssignmentRepository builds repository.
func NewTicketAssignmentRepository(pool *pgxpool.Pool) TicketAssignmentRepository {
	return &ticketAssignmentRepository{pool: pool}
}

func (r *ticketAssignmentRepository) Assign(ctx context.Context, assignment *domain.TicketAssignment) error {
	return pgx.BeginFunc(ctx, conn(ctx, r.pool), func(tx pgx.Tx) error {
		const release = `
            UPDATE ticket_assignments SET released_at = NOW()
            WHERE ticket_id=$1 AND released_at IS NULL`
		if _, err := tx.Exec(ctx, release, assignment.TicketID); err != nil {
			return err
		}
		const insert = `
            INSERT INTO ticket_assignments (ticket_id, tech_id, assigned_by)
            VALUES ($1,$2,$3)
            RETURNING id::text, assigned_at`
		return tx.QueryRow(ctx, insert,
			assignment.TicketID,
			assignment.TechID,
			assignment.AssignedBy,
		).Scan(&assignment.ID, &assignment.AssignedAt)
	})
}

func (r *ticketAssignmentRepository) GetActive(ctx context.Context, ticketID string) (*domain.TicketAssignment, error) {
	const query = `
        SELECT id::text, ticket_id::text, tech_id::text, assigned_by::text, assigned_at, released_at
        FROM ticket_assignments WHERE ticket_id=$1 AND released_at IS NULL`
	var a domain.TicketAssignment
	if err := conn(ctx, r.pool).QueryRow(ctx, query, ticketID).Scan(
		&a.ID, &a.TicketID, &a.TechID, &a.AssignedBy, &a.AssignedAt, &a.ReleasedAt,
	); err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *ticketAssignmentRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketAssignment, error) {
	const query = `
        SELECT id::text, ticket_id::text, tech_id::text, assigned_by::text, assigned_at, released_at
        FROM ticket_assignments WHERE ticket_id=$1 ORDER BY assigned_at ASC`
	rows, err := conn(ctx, r.pool).Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.TicketAssignment{}
	for rows.Next() {
		var a domain.TicketAssignment
		if err := rows.Scan(&a.ID, &a.TicketID, &a.TechID, &a.AssignedBy, &a.AssignedAt, &a.ReleasedAt); err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	return result, rows.Err()
}
