package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/repository"
)

type MockTicketRepository struct {
	mock.Mock
}

var _ repository.TicketRepository = (*MockTicketRepository)(nil)

func (m *MockTicketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	args := m.Called(ctx, ticket)
	return args.Error(0)
}

func (m *MockTicketRepository) Update(ctx context.Context, ticket *domain.Ticket, expected domain.TicketStatus) error {
	args := m.Called(ctx, ticket, expected)
	return args.Error(0)
}

func (m *MockTicketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Ticket), args.Error(1)
}

func (m *MockTicketRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]domain.Ticket, error) {
	args := m.Called(ctx, userID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Ticket), args.Error(1)
}

func (m *MockTicketRepository) ListWithFilter(ctx context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Ticket), args.Error(1)
}

type MockIdempotencyRepository struct {
	mock.Mock
}

var _ repository.IdempotencyRepository = (*MockIdempotencyRepository)(nil)

func (m *MockIdempotencyRepository) Reserve(ctx context.Context, key, fingerprint string, ttl time.Duration) (*repository.IdempotencyRecord, bool, error) {
	args := m.Called(ctx, key, fingerprint, ttl)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*repository.IdempotencyRecord), args.Bool(1), args.Error(2)
}

func (m *MockIdempotencyRepository) Complete(ctx context.Context, key, fingerprint, ticketID string, ttl time.Duration) error {
	args := m.Called(ctx, key, fingerprint, ticketID, ttl)
	return args.Error(0)
}

func (m *MockIdempotencyRepository) Release(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func newMockedTicketService(tickets *MockTicketRepository, idem *MockIdempotencyRepository) *TicketService {
	return NewTicketService(TicketDependencies{
		TicketRepo:      tickets,
		IdempotencyRepo: idem,
		IdempotencyTTL:  time.Hour,
	})
}

func TestCreateTicketReleasesKeyOnFailure(t *testing.T) {
	tickets := new(MockTicketRepository)
	idem := new(MockIdempotencyRepository)
	svc := newMockedTicketService(tickets, idem)
	ctx := context.Background()
	key := owner.ID + ":tok"

	idem.On("Reserve", ctx, key, mock.AnythingOfType("string"), time.Hour).Return(nil, true, nil).Once()
	tickets.On("Create", ctx, mock.AnythingOfType("*domain.Ticket")).Return(context.DeadlineExceeded).Once()
	idem.On("Release", ctx, key).Return(nil).Once()

	_, _, err := svc.CreateTicket(ctx, owner, domain.CreateTicketData{Title: "x", Description: "y"}, "tok")
	requireCode(t, err, "TIMEOUT")

	tickets.AssertExpectations(t)
	idem.AssertExpectations(t)
	idem.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateTicketPendingKeyConflicts(t *testing.T) {
	tickets := new(MockTicketRepository)
	idem := new(MockIdempotencyRepository)
	svc := newMockedTicketService(tickets, idem)
	ctx := context.Background()
	data := domain.CreateTicketData{Title: "x", Description: "y", Priority: domain.TicketPriorityMedium}

	idem.On("Reserve", ctx, owner.ID+":tok", payloadFingerprint(data), time.Hour).
		Return(&repository.IdempotencyRecord{Fingerprint: payloadFingerprint(data)}, false, nil).Once()

	_, _, err := svc.CreateTicket(ctx, owner, data, "tok")
	requireCode(t, err, "CONFLICT")
	tickets.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestRepositoryErrorsAreMapped(t *testing.T) {
	tickets := new(MockTicketRepository)
	svc := newMockedTicketService(tickets, nil)
	ctx := context.Background()

	tickets.On("GetByID", ctx, "gone").Return(nil, pgx.ErrNoRows)
	tickets.On("GetByID", ctx, "slow").Return(nil, context.DeadlineExceeded)
	tickets.On("ListByUser", ctx, owner.ID, 10, 0).Return(nil, errors.New("connection reset"))

	_, err := svc.GetTicket(ctx, owner, "gone")
	requireCode(t, err, "NOT_FOUND")

	_, err = svc.ChangeStatus(ctx, owner, "slow", domain.TicketStatusWaitingAI, "")
	requireCode(t, err, "TIMEOUT")

	_, err = svc.ListUserTickets(ctx, owner, 10, 0)
	requireCode(t, err, "INTERNAL_ERROR")
}

func TestUpdateFailureLeavesNoSystemMessage(t *testing.T) {
	tickets := new(MockTicketRepository)
	svc := newMockedTicketService(tickets, nil)
	ctx := context.Background()
	now := time.Now().UTC()

	tickets.On("GetByID", ctx, "t1").Return(&domain.Ticket{
		ID: "t1", UserID: owner.ID, Status: domain.TicketStatusOpen, Priority: domain.TicketPriorityLow,
		CreatedAt: now, UpdatedAt: now,
	}, nil)
	tickets.On("Update", ctx, mock.AnythingOfType("*domain.Ticket"), domain.TicketStatusOpen).Return(pgx.ErrNoRows)

	_, err := svc.RequestAIAssist(ctx, owner, "t1")
	requireCode(t, err, "NOT_FOUND")
	assert.Len(t, tickets.Calls, 2)
	require.True(t, tickets.AssertExpectations(t))
}

func TestStaleUpdateConflicts(t *testing.T) {
	tickets := new(MockTicketRepository)
	svc := newMockedTicketService(tickets, nil)
	ctx := context.Background()
	now := time.Now().UTC()

	tickets.On("GetByID", ctx, "t1").Return(&domain.Ticket{
		ID: "t1", UserID: owner.ID, Status: domain.TicketStatusOpen, Priority: domain.TicketPriorityLow,
		CreatedAt: now, UpdatedAt: now,
	}, nil)
	tickets.On("Update", ctx, mock.AnythingOfType("*domain.Ticket"), domain.TicketStatusOpen).Return(repository.ErrStaleTicket)

	_, err := svc.RequestAIAssist(ctx, owner, "t1")
	requireCode(t, err, "CONFLICT")
	tickets.AssertExpectations(t)
}
