package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	created = time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)
	owner   = Actor{ID: "user-1", Roles: []AppRole{RoleCliente}}
	tech    = Actor{ID: "tech-1", Roles: []AppRole{RoleTecnico}}
	other   = Actor{ID: "tech-2", Roles: []AppRole{RoleTecnico}}
	admin   = Actor{ID: "admin-1", Roles: []AppRole{RoleAdmin}}
)

func newTicket(status TicketStatus) *Ticket {
	return &Ticket{
		ID:          "t-1",
		UserID:      owner.ID,
		Title:       "Printer broken",
		Description: "The printer on floor 2 is down",
		Priority:    TicketPriorityHigh,
		Status:      status,
		CreatedAt:   created,
		UpdatedAt:   created,
	}
}

func withTech(t *Ticket, id string) *Ticket {
	t.AssignedTechID = &id
	return t
}

func TestCanTransitionTable(t *testing.T) {
	all := []TicketStatus{
		TicketStatusOpen, TicketStatusWaitingAI, TicketStatusAIResponded, TicketStatusAssignedToTech,
		TicketStatusInProgress, TicketStatusResolved, TicketStatusClosed,
	}
	allowed := map[[2]TicketStatus]bool{
		{TicketStatusOpen, TicketStatusWaitingAI}:                 true,
		{TicketStatusOpen, TicketStatusAssignedToTech}:            true,
		{TicketStatusWaitingAI, TicketStatusAIResponded}:          true,
		{TicketStatusWaitingAI, TicketStatusAssignedToTech}:       true,
		{TicketStatusAIResponded, TicketStatusWaitingAI}:          true,
		{TicketStatusAIResponded, TicketStatusAssignedToTech}:     true,
		{TicketStatusAIResponded, TicketStatusResolved}:           true,
		{TicketStatusAssignedToTech, TicketStatusInProgress}:      true,
		{TicketStatusInProgress, TicketStatusResolved}:            true,
		{TicketStatusResolved, TicketStatusClosed}:                true,
		{TicketStatusResolved, TicketStatusInProgress}:            true,
	}
	for _, from := range all {
		for _, to := range all {
			assert.Equal(t, allowed[[2]TicketStatus{from, to}], CanTransition(from, to), "%s -> %s", from, to)
		}
	}
	assert.Empty(t, NextStatuses(TicketStatusClosed))
}

func TestTransitionHappyPathThroughTechnician(t *testing.T) {
	ticket := withTech(newTicket(TicketStatusOpen), tech.ID)
	step := created

	next := func(status TicketStatus, actor Actor) {
		step = step.Add(time.Hour)
		require.NoError(t, ticket.Transition(status, actor, step))
		assert.Equal(t, status, ticket.Status)
		assert.Equal(t, step, ticket.UpdatedAt)
	}

	next(TicketStatusAssignedToTech, admin)
	next(TicketStatusInProgress, tech)
	next(TicketStatusResolved, tech)
	require.NotNil(t, ticket.ResolvedAt)
	assert.False(t, ticket.AIResolved)
	next(TicketStatusClosed, tech)
	require.NotNil(t, ticket.ClosedAt)
	assert.NoError(t, ticket.Validate())

	err := ticket.Transition(TicketStatusInProgress, admin, step.Add(time.Hour))
	assert.ErrorIs(t, err, ErrTicketClosed)
}

func TestTransitionAIFlow(t *testing.T) {
	ticket := newTicket(TicketStatusOpen)

	require.NoError(t, ticket.Transition(TicketStatusWaitingAI, owner, created.Add(time.Minute)))
	assert.True(t, ticket.AIAttempted)

	assert.ErrorIs(t, ticket.Transition(TicketStatusAIResponded, owner, created.Add(2*time.Minute)), ErrTransitionForbidden)
	require.NoError(t, ticket.Transition(TicketStatusAIResponded, SystemActor(), created.Add(2*time.Minute)))

	// loop back for another AI attempt
	require.NoError(t, ticket.Transition(TicketStatusWaitingAI, owner, created.Add(3*time.Minute)))
	require.NoError(t, ticket.Transition(TicketStatusAIResponded, SystemActor(), created.Add(4*time.Minute)))

	require.NoError(t, ticket.Transition(TicketStatusResolved, owner, created.Add(5*time.Minute)))
	assert.True(t, ticket.AIResolved)
	assert.Nil(t, ticket.AssignedTechID)
	assert.Equal(t, TicketStatusResolved, ticket.Status, "ai resolution does not force closed")
}

func TestTransitionGuards(t *testing.T) {
	later := created.Add(time.Hour)

	t.Run("assignment requires technician", func(t *testing.T) {
		ticket := newTicket(TicketStatusOpen)
		assert.ErrorIs(t, ticket.Transition(TicketStatusAssignedToTech, admin, later), ErrTechnicianRequired)
	})
	t.Run("owner cannot assign", func(t *testing.T) {
		ticket := withTech(newTicket(TicketStatusOpen), tech.ID)
		assert.ErrorIs(t, ticket.Transition(TicketStatusAssignedToTech, owner, later), ErrTransitionForbidden)
	})
	t.Run("only assigned tech starts work", func(t *testing.T) {
		ticket := withTech(newTicket(TicketStatusAssignedToTech), tech.ID)
		assert.ErrorIs(t, ticket.Transition(TicketStatusInProgress, other, later), ErrTransitionForbidden)
		assert.NoError(t, ticket.Transition(TicketStatusInProgress, admin, later))
	})
	t.Run("owner cannot close", func(t *testing.T) {
		ticket := withTech(newTicket(TicketStatusResolved), tech.ID)
		resolved := created
		ticket.ResolvedAt = &resolved
		assert.ErrorIs(t, ticket.Transition(TicketStatusClosed, owner, later), ErrTransitionForbidden)
		assert.NoError(t, ticket.Transition(TicketStatusClosed, SystemActor(), later))
	})
	t.Run("owner reopens resolved ticket", func(t *testing.T) {
		ticket := withTech(newTicket(TicketStatusResolved), tech.ID)
		resolved := created
		ticket.ResolvedAt = &resolved
		require.NoError(t, ticket.Transition(TicketStatusInProgress, owner, later))
		assert.Nil(t, ticket.ResolvedAt)
	})
	t.Run("reopen without technician", func(t *testing.T) {
		ticket := newTicket(TicketStatusResolved)
		assert.ErrorIs(t, ticket.Transition(TicketStatusInProgress, owner, later), ErrTechnicianRequired)
	})
	t.Run("table is checked before guards", func(t *testing.T) {
		ticket := newTicket(TicketStatusOpen)
		err := ticket.Transition(TicketStatusClosed, admin, later)
		assert.True(t, errors.Is(err, ErrInvalidTransition))
	})
	t.Run("unknown status", func(t *testing.T) {
		ticket := newTicket(TicketStatusOpen)
		assert.ErrorIs(t, ticket.Transition("archived", admin, later), ErrInvalidStatus)
	})
}

func TestTransitionClampsClock(t *testing.T) {
	ticket := newTicket(TicketStatusOpen)
	require.NoError(t, ticket.Transition(TicketStatusWaitingAI, owner, created.Add(-time.Hour)))
	assert.Equal(t, created, ticket.UpdatedAt)
	assert.NoError(t, ticket.Validate())
}
