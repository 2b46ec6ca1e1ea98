// Package memory provides in-process implementations of the repository
// interfaces. They back the service when no Postgres DSN is configured and
// in tests. Missing rows are reported with pgx.ErrNoRows so callers map
// errors the same way for both backends.
package memory

import (
	"strings"
	"sync"
	"time"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/repository"
)

// Store holds every table in maps guarded by one lock.
type Store struct {
	mu          sync.RWMutex
	now         func() time.Time
	seq         int64
	tickets     map[string]ticketRow
	messages    map[string][]domain.TicketMessage
	assignments map[string][]domain.TicketAssignment
	profiles    map[string]domain.Profile
	roles       map[string]map[domain.AppRole]struct{}
}

type ticketRow struct {
	ticket domain.Ticket
	seq    int64
}

// NewStore returns an empty store using the wall clock.
func NewStore() *Store {
	return NewStoreWithClock(func() time.Time { return time.Now().UTC() })
}

// NewStoreWithClock returns an empty store stamping rows with now.
func NewStoreWithClock(now func() time.Time) *Store {
	return &Store{
		now:         now,
		tickets:     map[string]ticketRow{},
		messages:    map[string][]domain.TicketMessage{},
		assignments: map[string][]domain.TicketAssignment{},
		profiles:    map[string]domain.Profile{},
		roles:       map[string]map[domain.AppRole]struct{}{},
	}
}

// Transactor exposes the store as a repository.Transactor.
func (s *Store) Transactor() repository.Transactor { return s }

// Tickets exposes the store as a TicketRepository.
func (s *Store) Tickets() repository.TicketRepository { return ticketRepo{s} }

// Messages exposes the store as a TicketMessageRepository.
func (s *Store) Messages() repository.TicketMessageRepository { return messageRepo{s} }

// Assignments exposes the store as a TicketAssignmentRepository.
func (s *Store) Assignments() repository.TicketAssignmentRepository { return assignmentRepo{s} }

// Profiles exposes the store as a ProfileRepository.
func (s *Store) Profiles() repository.ProfileRepository { return profileRepo{s} }

// Roles exposes the store as a UserRoleRepository.
func (s *Store) Roles() repository.UserRoleRepository { return roleRepo{s} }

func cloneTicket(t domain.Ticket) domain.Ticket {
	if t.AssignedTechID != nil {
		v := *t.AssignedTechID
		t.AssignedTechID = &v
	}
	if t.ResolvedAt != nil {
		v := *t.ResolvedAt
		t.ResolvedAt = &v
	}
	if t.ClosedAt != nil {
		v := *t.ClosedAt
		t.ClosedAt = &v
	}
	return t
}

func matches(t domain.Ticket, f repository.TicketFilter) bool {
	if f.UserID != nil && t.UserID != *f.UserID {
		return false
	}
	if f.AssignedTechID != nil && (t.AssignedTechID == nil || *t.AssignedTechID != *f.AssignedTechID) {
		return false
	}
	if f.Unassigned && t.AssignedTechID != nil {
		return false
	}
	if len(f.Statuses) > 0 && !containsStatus(f.Statuses, t.Status) {
		return false
	}
	if len(f.Priorities) > 0 && !containsPriority(f.Priorities, t.Priority) {
		return false
	}
	if f.CreatedFrom != nil && t.CreatedAt.Before(*f.CreatedFrom) {
		return false
	}
	if f.CreatedTo != nil && t.CreatedAt.After(*f.CreatedTo) {
		return false
	}
	if f.ResolvedBefore != nil && (t.ResolvedAt == nil || !t.ResolvedAt.Before(*f.ResolvedBefore)) {
		return false
	}
	if f.SearchTerm != nil {
		term := strings.ToLower(strings.TrimSpace(*f.SearchTerm))
		if term != "" &&
			!strings.Contains(strings.ToLower(t.Title), term) &&
			!strings.Contains(strings.ToLower(t.Description), term) {
			return false
		}
	}
	return true
}

func containsStatus(list []domain.TicketStatus, s domain.TicketStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func containsPriority(list []domain.TicketPriority, p domain.TicketPriority) bool {
	for _, v := range list {
		if v == p {
			return true
		}
	}
	return false
}

