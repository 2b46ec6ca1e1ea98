package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/events"
	"github.com/spec-kit/support-desk/internal/observability"
	"github.com/spec-kit/support-desk/internal/repository"
	"github.com/spec-kit/support-desk/internal/repository/memory"
	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type fixture struct {
	store       *memory.Store
	clock       *fakeClock
	redis       *miniredis.Miniredis
	dispatcher  events.Dispatcher
	published   []events.Event
	metrics     *observability.Metrics
	tickets     *TicketService
	assignments *AssignmentService
	authz       *AuthorizationService
	dashboard   *DashboardService
	deps        TicketDependencies
}

var (
	owner    = domain.Actor{ID: "11111111-1111-1111-1111-111111111111", Roles: []domain.AppRole{domain.RoleCliente}}
	stranger = domain.Actor{ID: "22222222-2222-2222-2222-222222222222", Roles: []domain.AppRole{domain.RoleCliente}}
	tech     = domain.Actor{ID: "33333333-3333-3333-3333-333333333333", Roles: []domain.AppRole{domain.RoleTecnico}}
	tech2    = domain.Actor{ID: "44444444-4444-4444-4444-444444444444", Roles: []domain.AppRole{domain.RoleTecnico}}
	admin    = domain.Actor{ID: "55555555-5555-5555-5555-555555555555", Roles: []domain.AppRole{domain.RoleAdmin}}
)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})

	f := &fixture{
		clock:      &fakeClock{t: time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)},
		redis:      mr,
		dispatcher: events.NewInMemoryDispatcher(),
		metrics:    observability.NewMetrics(),
	}
	f.store = memory.NewStoreWithClock(f.clock.Now)
	for _, et := range []events.EventType{events.EventTicketCreated, events.EventTicketStatusChanged, events.EventTicketAssigned, events.EventTicketMessageAdded} {
		f.dispatcher.Subscribe(et, func(_ context.Context, e events.Event) error {
			f.published = append(f.published, e)
			return nil
		})
	}

	ctx := context.Background()
	for _, a := range []domain.Actor{owner, stranger, tech, tech2, admin} {
		for _, role := range a.Roles {
			require.NoError(t, f.store.Roles().Grant(ctx, a.ID, role))
		}
	}

	deps := TicketDependencies{
		Transactor:           f.store.Transactor(),
		TicketRepo:           f.store.Tickets(),
		MessageRepo:          f.store.Messages(),
		AssignmentRepo:       f.store.Assignments(),
		IdempotencyRepo:      repository.NewIdempotencyRepository(client),
		Dispatcher:           f.dispatcher,
		Metrics:              f.metrics,
		Clock:                f.clock.Now,
		IdempotencyTTL:       time.Hour,
		MaxTitleLength:       200,
		MaxDescriptionLength: 5000,
	}
	f.deps = deps
	f.tickets = NewTicketService(deps)
	f.authz = NewAuthorizationService(f.store.Roles())
	f.assignments = NewAssignmentService(AssignmentDependencies{
		Tickets:        deps,
		AssignmentRepo: f.store.Assignments(),
		Authorization:  f.authz,
	})
	f.dashboard = NewDashboardService(DashboardDependencies{
		ProfileRepo:          f.store.Profiles(),
		Tickets:              f.tickets,
		MaxTitleLength:       200,
		MaxDescriptionLength: 5000,
	})
	return f
}

func (f *fixture) create(t *testing.T, title string) *domain.Ticket {
	t.Helper()
	f.clock.Advance(time.Minute)
	ticket, _, err := f.tickets.CreateTicket(context.Background(), owner, domain.CreateTicketData{
		Title:       title,
		Description: "descrição de " + title,
		Priority:    domain.TicketPriorityHigh,
	}, "")
	require.NoError(t, err)
	return ticket
}

func (f *fixture) messages(t *testing.T, ticketID string) []domain.TicketMessage {
	t.Helper()
	msgs, err := f.store.Messages().ListByTicket(context.Background(), ticketID)
	require.NoError(t, err)
	return msgs
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var domainErr *apperrors.DomainError
	require.True(t, errors.As(err, &domainErr), "expected DomainError, got %T: %v", err, err)
	require.Equal(t, code, domainErr.Code, domainErr.Message)
}
