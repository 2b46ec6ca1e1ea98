package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/events"
)

func TestCreateTicketStampsDefaults(t *testing.T) {
	f := newFixture(t)
	ticket, replayed, err := f.tickets.CreateTicket(context.Background(), owner, domain.CreateTicketData{
		Title:       "  Printer broken ",
		Description: "The printer on floor 2 shows <Error 0x61011bed>",
	}, "")
	require.NoError(t, err)
	assert.False(t, replayed)

	assert.NotEmpty(t, ticket.ID)
	assert.Equal(t, owner.ID, ticket.UserID)
	assert.Equal(t, domain.TicketStatusOpen, ticket.Status)
	assert.Equal(t, domain.TicketPriorityMedium, ticket.Priority)
	assert.Equal(t, "Printer broken", ticket.Title)
	assert.Equal(t, "The printer on floor 2 shows <Error 0x61011bed>", ticket.Description, "text is stored as entered")
	assert.Equal(t, f.clock.Now(), ticket.CreatedAt)
	assert.NoError(t, ticket.Validate())

	require.Len(t, f.published, 1)
	assert.Equal(t, events.EventTicketCreated, f.published[0].Type)
	assert.Equal(t, int64(1), f.metrics.Snapshot().Tickets["ticket_created"])
}

func TestCreateTicketValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cases := []struct {
		name string
		data domain.CreateTicketData
		code string
	}{
		{"blank title", domain.CreateTicketData{Title: "  ", Description: "valid text"}, "VALIDATION_FAILED"},
		{"blank description", domain.CreateTicketData{Title: "x", Description: ""}, "VALIDATION_FAILED"},
		{"oversized title", domain.CreateTicketData{Title: strings.Repeat("a", 201), Description: "x"}, "VALIDATION_FAILED"},
		{"bad priority", domain.CreateTicketData{Title: "x", Description: "y", Priority: "urgent"}, "VALIDATION_FAILED"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := f.tickets.CreateTicket(ctx, owner, tc.data, "")
			requireCode(t, err, tc.code)
		})
	}

	_, _, err := f.tickets.CreateTicket(ctx, domain.Actor{}, domain.CreateTicketData{Title: "x", Description: "y"}, "")
	requireCode(t, err, "UNAUTHORIZED")

	list, err := f.tickets.ListUserTickets(ctx, owner, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestCreateTicketIdempotentReplay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	data := domain.CreateTicketData{Title: "VPN", Description: "não conecta", Priority: domain.TicketPriorityLow}

	first, replayed, err := f.tickets.CreateTicket(ctx, owner, data, "req-1")
	require.NoError(t, err)
	assert.False(t, replayed)

	again, replayed, err := f.tickets.CreateTicket(ctx, owner, data, "req-1")
	require.NoError(t, err)
	assert.True(t, replayed)
	assert.Equal(t, first.ID, again.ID)

	_, _, err = f.tickets.CreateTicket(ctx, owner, domain.CreateTicketData{Title: "VPN", Description: "outra coisa"}, "req-1")
	requireCode(t, err, "CONFLICT")

	other, replayed, err := f.tickets.CreateTicket(ctx, stranger, data, "req-1")
	require.NoError(t, err, "tokens are scoped per user")
	assert.False(t, replayed)
	assert.NotEqual(t, first.ID, other.ID)

	list, err := f.tickets.ListUserTickets(ctx, owner, 0, 0)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestCreateTicketIdempotencyStoreDown(t *testing.T) {
	f := newFixture(t)
	f.redis.Close()

	_, _, err := f.tickets.CreateTicket(context.Background(), owner, domain.CreateTicketData{Title: "x", Description: "y"}, "req")
	requireCode(t, err, "UNAVAILABLE")

	_, _, err = f.tickets.CreateTicket(context.Background(), owner, domain.CreateTicketData{Title: "x", Description: "y"}, "")
	assert.NoError(t, err, "requests without a token do not need the store")
}

func TestListUserTicketsNewestFirst(t *testing.T) {
	f := newFixture(t)
	f.create(t, "first")
	f.create(t, "second")

	list, err := f.tickets.ListUserTickets(context.Background(), owner, 0, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "second", list[0].Title)

	mine, err := f.tickets.ListUserTickets(context.Background(), stranger, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, mine)
}

func TestGetTicketAccess(t *testing.T) {
	f := newFixture(t)
	ticket := f.create(t, "x")
	ctx := context.Background()

	detail, err := f.tickets.GetTicket(ctx, owner, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, ticket.ID, detail.Ticket.ID)

	_, err = f.tickets.GetTicket(ctx, tech, ticket.ID)
	assert.NoError(t, err)

	_, err = f.tickets.GetTicket(ctx, stranger, ticket.ID)
	requireCode(t, err, "FORBIDDEN")

	_, err = f.tickets.GetTicket(ctx, owner, "missing")
	requireCode(t, err, "NOT_FOUND")
}

func TestListTicketsRequiresStaff(t *testing.T) {
	f := newFixture(t)
	f.create(t, "x")

	_, err := f.tickets.ListTickets(context.Background(), owner, TicketQueueFilter{})
	requireCode(t, err, "FORBIDDEN")

	queue, err := f.tickets.ListTickets(context.Background(), tech, TicketQueueFilter{Unassigned: true})
	require.NoError(t, err)
	assert.Len(t, queue, 1)
}

func TestAIFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.create(t, "Outlook")

	ticket, err := f.tickets.RequestAIAssist(ctx, owner, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusWaitingAI, ticket.Status)
	assert.True(t, ticket.AIAttempted)

	_, _, err = f.tickets.RecordAIResponse(ctx, owner, ticket.ID, "tente reiniciar")
	requireCode(t, err, "FORBIDDEN")

	msg, ticket, err := f.tickets.RecordAIResponse(ctx, domain.SystemActor(), ticket.ID, "Tente reiniciar o Outlook.")
	require.NoError(t, err)
	assert.Equal(t, domain.MessageTypeAI, msg.MessageType)
	assert.Nil(t, msg.SenderID)
	assert.Equal(t, domain.TicketStatusAIResponded, ticket.Status)

	// owner follow-up goes back to the AI
	reply, ticket, err := f.tickets.AppendMessage(ctx, owner, ticket.ID, "não funcionou")
	require.NoError(t, err)
	assert.Equal(t, domain.MessageTypeUser, reply.MessageType)
	assert.Equal(t, domain.TicketStatusWaitingAI, ticket.Status)

	_, ticket, err = f.tickets.RecordAIResponse(ctx, admin, ticket.ID, "Limpe o cache.")
	require.NoError(t, err)

	ticket, err = f.tickets.AcceptAIResolution(ctx, owner, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusResolved, ticket.Status)
	assert.True(t, ticket.AIResolved)
	assert.NotNil(t, ticket.ResolvedAt)
	assert.Nil(t, ticket.ClosedAt, "AI resolution does not close the ticket")

	_, err = f.tickets.AcceptAIResolution(ctx, owner, ticket.ID)
	requireCode(t, err, "CONFLICT")
}

func TestChangeStatusWritesSystemMessage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.create(t, "x")

	_, err := f.tickets.ChangeStatus(ctx, tech, ticket.ID, domain.TicketStatusInProgress, "")
	requireCode(t, err, "CONFLICT")

	_, err = f.tickets.ChangeStatus(ctx, owner, ticket.ID, "bogus", "")
	requireCode(t, err, "VALIDATION_FAILED")

	f.clock.Advance(time.Minute)
	updated, err := f.tickets.ChangeStatus(ctx, owner, ticket.ID, domain.TicketStatusWaitingAI, "por favor")
	require.NoError(t, err)
	assert.Equal(t, f.clock.Now(), updated.UpdatedAt)

	msgs := f.messages(t, ticket.ID)
	require.Len(t, msgs, 1)
	assert.Equal(t, domain.MessageTypeSystem, msgs[0].MessageType)
	assert.Equal(t, "Status alterado: Aberto → Aguardando IA. por favor", msgs[0].Content)
	assert.Nil(t, msgs[0].SenderID)

	last := f.published[len(f.published)-1]
	assert.Equal(t, events.EventTicketStatusChanged, last.Type)
	payload := last.Payload.(events.TicketStatusChangedPayload)
	assert.Equal(t, domain.TicketStatusOpen, payload.OldStatus)
}

func TestAppendMessageRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.create(t, "x")

	_, _, err := f.tickets.AppendMessage(ctx, stranger, ticket.ID, "oi")
	requireCode(t, err, "FORBIDDEN")

	_, _, err = f.tickets.AppendMessage(ctx, owner, ticket.ID, "   ")
	requireCode(t, err, "VALIDATION_FAILED")

	msg, _, err := f.tickets.AppendMessage(ctx, tech, ticket.ID, "vou verificar")
	require.NoError(t, err)
	assert.Equal(t, domain.MessageTypeTech, msg.MessageType)
	require.NotNil(t, msg.SenderID)
	assert.Equal(t, tech.ID, *msg.SenderID)
}

func TestClosedTicketRejectsEverything(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.create(t, "x")

	_, err := f.assignments.AssignTechnician(ctx, tech, ticket.ID, "")
	require.NoError(t, err)
	_, err = f.tickets.ChangeStatus(ctx, tech, ticket.ID, domain.TicketStatusInProgress, "")
	require.NoError(t, err)
	_, err = f.tickets.ChangeStatus(ctx, tech, ticket.ID, domain.TicketStatusResolved, "trocado o toner")
	require.NoError(t, err)

	_, err = f.tickets.ChangeStatus(ctx, owner, ticket.ID, domain.TicketStatusClosed, "")
	requireCode(t, err, "FORBIDDEN")

	closed, err := f.tickets.ChangeStatus(ctx, tech, ticket.ID, domain.TicketStatusClosed, "")
	require.NoError(t, err)
	assert.NotNil(t, closed.ClosedAt)
	assert.NoError(t, closed.Validate())

	for _, next := range []domain.TicketStatus{domain.TicketStatusInProgress, domain.TicketStatusOpen, domain.TicketStatusClosed} {
		_, err = f.tickets.ChangeStatus(ctx, admin, ticket.ID, next, "")
		requireCode(t, err, "CONFLICT")
	}
	_, _, err = f.tickets.AppendMessage(ctx, owner, ticket.ID, "ainda está quebrado")
	requireCode(t, err, "CONFLICT")
}

func TestReopenResolvedTicket(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.create(t, "x")

	_, err := f.assignments.AssignTechnician(ctx, tech, ticket.ID, "")
	require.NoError(t, err)
	_, err = f.tickets.ChangeStatus(ctx, tech, ticket.ID, domain.TicketStatusInProgress, "")
	require.NoError(t, err)
	_, err = f.tickets.ChangeStatus(ctx, tech, ticket.ID, domain.TicketStatusResolved, "")
	require.NoError(t, err)

	reopened, err := f.tickets.ChangeStatus(ctx, owner, ticket.ID, domain.TicketStatusInProgress, "voltou a falhar")
	require.NoError(t, err)
	assert.Nil(t, reopened.ResolvedAt)
}

func TestAutoCloseResolved(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	stale := f.create(t, "stale")
	fresh := f.create(t, "fresh")
	for _, id := range []string{stale.ID, fresh.ID} {
		_, err := f.assignments.AssignTechnician(ctx, tech, id, "")
		require.NoError(t, err)
		_, err = f.tickets.ChangeStatus(ctx, tech, id, domain.TicketStatusInProgress, "")
		require.NoError(t, err)
	}
	_, err := f.tickets.ChangeStatus(ctx, tech, stale.ID, domain.TicketStatusResolved, "")
	require.NoError(t, err)
	f.clock.Advance(48 * time.Hour)
	_, err = f.tickets.ChangeStatus(ctx, tech, fresh.ID, domain.TicketStatusResolved, "")
	require.NoError(t, err)
	f.clock.Advance(25 * time.Hour)

	closed, err := f.tickets.AutoCloseResolved(ctx, 72*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, closed)

	got, err := f.store.Tickets().GetByID(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusClosed, got.Status)
	msgs := f.messages(t, stale.ID)
	assert.Contains(t, msgs[len(msgs)-1].Content, "Fechado automaticamente após 72 horas")

	got, err = f.store.Tickets().GetByID(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusResolved, got.Status)

	closed, err = f.tickets.AutoCloseResolved(ctx, 0)
	require.NoError(t, err)
	assert.Zero(t, closed, "zero disables auto-close")
}
