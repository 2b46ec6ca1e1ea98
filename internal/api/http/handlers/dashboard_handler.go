package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/api/dto"
	"github.com/spec-kit/support-desk/internal/auth"
	"github.com/spec-kit/support-desk/internal/dashboard"
	"github.com/spec-kit/support-desk/internal/service"
	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

// DashboardHandler serves the requester dashboard and its intake form.
type DashboardHandler struct {
	service   *service.DashboardService
	sessions  auth.SessionProvider
	loginPath string
	logger    *zap.Logger
}

// NewDashboardHandler constructs handler.
func NewDashboardHandler(dashboardService *service.DashboardService, sessions auth.SessionProvider, loginPath string, logger *zap.Logger) *DashboardHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardHandler{
		service:   dashboardService,
		sessions:  sessions,
		loginPath: loginPath,
		logger:    logger,
	}
}

// Show GET /dashboard.
func (h *DashboardHandler) Show(c *fiber.Ctx) error {
	session, ok := auth.SessionFromContext(c)
	if !ok {
		return c.Redirect(h.loginPath, fiber.StatusFound)
	}
	actor, _ := auth.ActorFromContext(c)
	view, err := h.service.View(c.UserContext(), session, actor)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": view})
}

// SubmitTicket POST /dashboard/tickets.
func (h *DashboardHandler) SubmitTicket(c *fiber.Ctx) error {
	session, ok := auth.SessionFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("session required")
	}
	actor, _ := auth.ActorFromContext(c)
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := dto.Validate(req); err != nil {
		return err
	}

	result, err := h.service.SubmitIntake(c.UserContext(), session, actor, service.IntakeRequest{
		Title:        req.Title,
		Description:  req.Description,
		Priority:     req.Priority,
		RequestToken: c.Get(IdempotencyKeyHeader),
	})
	if err != nil {
		return err
	}
	status := fiber.StatusCreated
	if result.Replayed {
		c.Set(IdempotentReplayedHeader, "true")
		status = fiber.StatusOK
	}
	return c.Status(status).JSON(fiber.Map{"data": result.View})
}

// FAQ GET /api/v1/faq.
func (h *DashboardHandler) FAQ(c *fiber.Ctx) error {
	entries, err := dashboard.FAQ()
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	return c.JSON(fiber.Map{"data": entries})
}

// Logout POST /session/logout. The cookie is always cleared and the caller
// redirected, even when the token could not be revoked.
func (h *DashboardHandler) Logout(c *fiber.Ctx) error {
	if err := h.sessions.End(c); err != nil {
		h.logger.Warn("session revocation failed", zap.Error(err))
	}
	return c.Redirect(h.loginPath, fiber.StatusSeeOther)
}
