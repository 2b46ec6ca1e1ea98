package domain

import "time"

// Profile is the account record of an authenticated user.
type Profile struct {
	ID         string
	Name       string
	Email      string
	Phone      *string
	Department *string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// TicketAssignment associates a technician with a ticket.
// ReleasedAt is set when a later assignment supersedes this one.
type TicketAssignment struct {
	ID         string
	TicketID   string
	TechID     string
	AssignedBy *string
	AssignedAt time.Time
	ReleasedAt *time.Time
}

// Active reports whether the assignment is the current one for its ticket.
func (a *TicketAssignment) Active() bool {
	return a.ReleasedAt == nil
}
