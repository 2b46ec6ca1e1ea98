package service

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/support-desk/internal/dashboard"
	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/intake"
	"github.com/spec-kit/support-desk/internal/repository"
	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

const dashboardPageSize = 50

// DashboardService composes the requester dashboard.
type DashboardService struct {
	profiles       repository.ProfileRepository
	tickets        *TicketService
	submitDelay    time.Duration
	maxTitle       int
	maxDescription int
	previewRunes   int
}

// DashboardDependencies bundles collaborators of the dashboard.
type DashboardDependencies struct {
	ProfileRepo          repository.ProfileRepository
	Tickets              *TicketService
	SubmitDelay          time.Duration
	MaxTitleLength       int
	MaxDescriptionLength int
	PreviewRunes         int
}

// IntakeRequest is a submission of the intake form.
type IntakeRequest struct {
	Title        string
	Description  string
	Priority     string
	RequestToken string
}

// IntakeResult is the dashboard after a submission.
type IntakeResult struct {
	View     dashboard.View
	Ticket   *domain.Ticket
	Replayed bool
}

// NewDashboardService creates the service.
func NewDashboardService(deps DashboardDependencies) *DashboardService {
	return &DashboardService{
		profiles:       deps.ProfileRepo,
		tickets:        deps.Tickets,
		submitDelay:    deps.SubmitDelay,
		maxTitle:       deps.MaxTitleLength,
		maxDescription: deps.MaxDescriptionLength,
		previewRunes:   deps.PreviewRunes,
	}
}

// View renders the dashboard of the session user.
func (s *DashboardService) View(ctx context.Context, session *domain.Session, actor domain.Actor) (dashboard.View, error) {
	board, user, err := s.board(ctx, session, actor)
	if err != nil {
		return dashboard.View{}, err
	}
	faq, err := dashboard.FAQ()
	if err != nil {
		return dashboard.View{}, apperrors.NewInternalError(err)
	}
	return board.View(user, faq), nil
}

// SubmitIntake runs the intake form with the request fields and, once the
// ticket exists, returns the refreshed dashboard with a confirmation.
func (s *DashboardService) SubmitIntake(ctx context.Context, session *domain.Session, actor domain.Actor, req IntakeRequest) (*IntakeResult, error) {
	closed := false
	form := intake.NewForm(
		intake.WithDelay(s.submitDelay),
		intake.WithLimits(s.maxTitle, s.maxDescription),
		intake.WithOnClose(func() { closed = true }),
	)
	if err := form.SetPriority(req.Priority); err != nil {
		return nil, apperrors.NewValidationError("invalid priority", map[string]any{"priority": req.Priority})
	}
	if err := form.SetTitle(req.Title); err != nil {
		return nil, s.intakeError(err)
	}
	if err := form.SetDescription(req.Description); err != nil {
		return nil, s.intakeError(err)
	}

	var (
		created  *domain.Ticket
		replayed bool
	)
	err := form.Submit(ctx, func(ctx context.Context, data domain.CreateTicketData) error {
		ticket, wasReplay, err := s.tickets.CreateTicket(ctx, actor, data, req.RequestToken)
		if err != nil {
			return err
		}
		created, replayed = ticket, wasReplay
		return nil
	})
	if err != nil {
		return nil, s.intakeError(err)
	}
	form.Close()

	board, user, err := s.board(ctx, session, actor)
	if err != nil {
		return nil, err
	}
	board.Prepend(*created)
	faq, err := dashboard.FAQ()
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	view := board.View(user, faq)
	if closed {
		notice := dashboard.CreationNotice(created.ID)
		view.Notification = &notice
	}
	return &IntakeResult{View: view, Ticket: created, Replayed: replayed}, nil
}

func (s *DashboardService) intakeError(err error) error {
	switch {
	case errors.Is(err, intake.ErrIncomplete):
		return apperrors.NewValidationError("title and description are required", nil)
	case errors.Is(err, intake.ErrTooLong):
		return apperrors.NewValidationError("field exceeds maximum length", map[string]any{
			"title_max":       s.maxTitle,
			"description_max": s.maxDescription,
		})
	case errors.Is(err, intake.ErrBusy):
		return apperrors.NewConflict("a submission is already in progress", nil)
	}
	return err
}

func (s *DashboardService) board(ctx context.Context, session *domain.Session, actor domain.Actor) (*dashboard.Board, dashboard.UserView, error) {
	user, err := s.user(ctx, session)
	if err != nil {
		return nil, user, err
	}
	tickets, err := s.tickets.ListUserTickets(ctx, actor, dashboardPageSize, 0)
	if err != nil {
		return nil, user, err
	}
	return dashboard.NewBoard(tickets, s.previewRunes), user, nil
}

// user falls back to the session email when the profile is not provisioned yet.
func (s *DashboardService) user(ctx context.Context, session *domain.Session) (dashboard.UserView, error) {
	if session == nil || session.UserID == "" {
		return dashboard.UserView{}, apperrors.NewUnauthorized("session required")
	}
	view := dashboard.UserView{ID: session.UserID, Name: session.Email, Email: session.Email}
	profile, err := s.profiles.GetByID(ctx, session.UserID)
	if errors.Is(err, pgx.ErrNoRows) {
		return view, nil
	}
	if err != nil {
		return view, apperrors.MapError(err)
	}
	view.Name = profile.Name
	view.Email = profile.Email
	if profile.Department != nil {
		view.Department = *profile.Department
	}
	return view, nil
}
