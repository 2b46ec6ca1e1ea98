package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/repository"
)

type stepClock struct{ t time.Time }

func (c *stepClock) now() time.Time {
	c.t = c.t.Add(time.Minute)
	return c.t
}

func newTicket(userID, title string, priority domain.TicketPriority) *domain.Ticket {
	return &domain.Ticket{
		UserID:      userID,
		Title:       title,
		Description: "descrição de " + title,
		Priority:    priority,
		Status:      domain.TicketStatusOpen,
	}
}

func TestTicketsNewestFirstAndPaged(t *testing.T) {
	clock := &stepClock{t: time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)}
	store := NewStoreWithClock(clock.now)
	repo := store.Tickets()
	ctx := context.Background()

	for _, title := range []string{"first", "second", "third"} {
		require.NoError(t, repo.Create(ctx, newTicket("u1", title, domain.TicketPriorityMedium)))
	}
	require.NoError(t, repo.Create(ctx, newTicket("u2", "other", domain.TicketPriorityHigh)))

	list, err := repo.ListByUser(ctx, "u1", 0, 0)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "third", list[0].Title)
	assert.Equal(t, "first", list[2].Title)

	page, err := repo.ListByUser(ctx, "u1", 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "second", page[0].Title)
}

func TestTicketFilter(t *testing.T) {
	store := NewStore()
	repo := store.Tickets()
	ctx := context.Background()

	printer := newTicket("u1", "Impressora travada", domain.TicketPriorityHigh)
	vpn := newTicket("u1", "VPN lenta", domain.TicketPriorityLow)
	require.NoError(t, repo.Create(ctx, printer))
	require.NoError(t, repo.Create(ctx, vpn))

	tech := "tech-1"
	vpn.AssignedTechID = &tech
	vpn.Status = domain.TicketStatusAssignedToTech
	require.NoError(t, repo.Update(ctx, vpn, domain.TicketStatusOpen))

	term := "IMPRESSORA"
	found, err := repo.ListWithFilter(ctx, repository.TicketFilter{SearchTerm: &term})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, printer.ID, found[0].ID)

	found, err = repo.ListWithFilter(ctx, repository.TicketFilter{AssignedTechID: &tech})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, vpn.ID, found[0].ID)

	found, err = repo.ListWithFilter(ctx, repository.TicketFilter{Unassigned: true, Priorities: []domain.TicketPriority{domain.TicketPriorityHigh}})
	require.NoError(t, err)
	require.Len(t, found, 1)

	found, err = repo.ListWithFilter(ctx, repository.TicketFilter{Statuses: []domain.TicketStatus{domain.TicketStatusClosed}})
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestTicketCopiesAreIsolated(t *testing.T) {
	store := NewStore()
	repo := store.Tickets()
	ctx := context.Background()

	ticket := newTicket("u1", "x", domain.TicketPriorityMedium)
	require.NoError(t, repo.Create(ctx, ticket))

	loaded, err := repo.GetByID(ctx, ticket.ID)
	require.NoError(t, err)
	loaded.Title = "mutated"

	again, err := repo.GetByID(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, "x", again.Title)
}

func TestMissingRowsReportNoRows(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	_, err := store.Tickets().GetByID(ctx, "nope")
	assert.ErrorIs(t, err, pgx.ErrNoRows)
	assert.ErrorIs(t, store.Tickets().Update(ctx, &domain.Ticket{ID: "nope"}, domain.TicketStatusOpen), pgx.ErrNoRows)
	assert.ErrorIs(t, store.Messages().Create(ctx, &domain.TicketMessage{TicketID: "nope"}), pgx.ErrNoRows)
	_, err = store.Assignments().GetActive(ctx, "nope")
	assert.ErrorIs(t, err, pgx.ErrNoRows)
	_, err = store.Profiles().GetByID(ctx, "nope")
	assert.ErrorIs(t, err, pgx.ErrNoRows)
}

func TestAssignmentReleasesPrevious(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	ticket := newTicket("u1", "x", domain.TicketPriorityMedium)
	require.NoError(t, store.Tickets().Create(ctx, ticket))

	require.NoError(t, store.Assignments().Assign(ctx, &domain.TicketAssignment{TicketID: ticket.ID, TechID: "t1"}))
	require.NoError(t, store.Assignments().Assign(ctx, &domain.TicketAssignment{TicketID: ticket.ID, TechID: "t2"}))

	active, err := store.Assignments().GetActive(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, "t2", active.TechID)

	history, err := store.Assignments().ListByTicket(ctx, ticket.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.False(t, history[0].Active())
	assert.True(t, history[1].Active())
}

func TestRolesAndProfiles(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	require.NoError(t, store.Roles().Grant(ctx, "u1", domain.RoleTecnico))
	require.NoError(t, store.Roles().Grant(ctx, "u1", domain.RoleAdmin))
	require.NoError(t, store.Roles().Grant(ctx, "u1", domain.RoleAdmin))

	roles, err := store.Roles().ListByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []domain.AppRole{domain.RoleAdmin, domain.RoleTecnico}, roles)

	ok, err := store.Roles().HasRole(ctx, "u1", domain.RoleCliente)
	require.NoError(t, err)
	assert.False(t, ok)

	profile := &domain.Profile{ID: "u1", Name: "Ana", Email: "ana@example.com"}
	require.NoError(t, store.Profiles().Upsert(ctx, profile))
	created := profile.CreatedAt
	profile.Name = "Ana Souza"
	require.NoError(t, store.Profiles().Upsert(ctx, profile))
	assert.Equal(t, created, profile.CreatedAt)

	loaded, err := store.Profiles().GetByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Ana Souza", loaded.Name)
}

func TestUpdateRequiresExpectedStatus(t *testing.T) {
	store := NewStore()
	repo := store.Tickets()
	ctx := context.Background()
	ticket := newTicket("u1", "x", domain.TicketPriorityMedium)
	require.NoError(t, repo.Create(ctx, ticket))

	ticket.Status = domain.TicketStatusWaitingAI
	assert.ErrorIs(t, repo.Update(ctx, ticket, domain.TicketStatusResolved), repository.ErrStaleTicket)
	require.NoError(t, repo.Update(ctx, ticket, domain.TicketStatusOpen))
	assert.ErrorIs(t, repo.Update(ctx, ticket, domain.TicketStatusOpen), repository.ErrStaleTicket)

	stored, err := repo.GetByID(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusWaitingAI, stored.Status)
}

func TestRunInTxRevertsOnError(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	ticket := newTicket("u1", "x", domain.TicketPriorityMedium)
	require.NoError(t, store.Tickets().Create(ctx, ticket))
	require.NoError(t, store.Messages().Create(ctx, &domain.TicketMessage{TicketID: ticket.ID, Content: "kept"}))

	boom := errors.New("boom")
	err := store.RunInTx(ctx, func(ctx context.Context) error {
		moved := *ticket
		moved.Status = domain.TicketStatusWaitingAI
		if err := store.Tickets().Update(ctx, &moved, domain.TicketStatusOpen); err != nil {
			return err
		}
		if err := store.Messages().Create(ctx, &domain.TicketMessage{TicketID: ticket.ID, Content: "dropped"}); err != nil {
			return err
		}
		if err := store.Assignments().Assign(ctx, &domain.TicketAssignment{TicketID: ticket.ID, TechID: "t1"}); err != nil {
			return err
		}
		return store.RunInTx(ctx, func(context.Context) error { return boom })
	})
	assert.ErrorIs(t, err, boom)

	stored, err := store.Tickets().GetByID(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusOpen, stored.Status)
	thread, err := store.Messages().ListByTicket(ctx, ticket.ID)
	require.NoError(t, err)
	require.Len(t, thread, 1)
	assert.Equal(t, "kept", thread[0].Content)
	history, err := store.Assignments().ListByTicket(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestRunInTxKeepsCommittedWrites(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	ticket := newTicket("u1", "x", domain.TicketPriorityMedium)

	require.NoError(t, store.Transactor().RunInTx(ctx, func(ctx context.Context) error {
		if err := store.Tickets().Create(ctx, ticket); err != nil {
			return err
		}
		return store.Messages().Create(ctx, &domain.TicketMessage{TicketID: ticket.ID, Content: "oi"})
	}))

	thread, err := store.Messages().ListByTicket(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Len(t, thread, 1)
}
