package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-desk/internal/api/dto"
	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/service"
	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

// TechTicketsHandler exposes the technician queue and workflow.
type TechTicketsHandler struct {
	tickets     *service.TicketService
	assignments *service.AssignmentService
}

// NewTechTicketsHandler constructs handler.
func NewTechTicketsHandler(tickets *service.TicketService, assignments *service.AssignmentService) *TechTicketsHandler {
	return &TechTicketsHandler{tickets: tickets, assignments: assignments}
}

// ListQueue GET /api/v1/tech/tickets.
func (h *TechTicketsHandler) ListQueue(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	query := parseTicketQuery(c)
	for _, s := range query.Statuses {
		if !s.Valid() {
			return apperrors.NewValidationError("invalid status filter", map[string]any{"status": string(s)})
		}
	}
	for _, p := range query.Priorities {
		if !p.Valid() {
			return apperrors.NewValidationError("invalid priority filter", map[string]any{"priority": string(p)})
		}
	}
	tickets, err := h.tickets.ListTickets(c.UserContext(), actor, service.TicketQueueFilter{
		AssignedTechID: query.AssignedTechID,
		Unassigned:     query.Unassigned,
		Statuses:       query.Statuses,
		Priorities:     query.Priorities,
		SearchTerm:     query.SearchTerm,
		CreatedFrom:    query.CreatedFrom,
		CreatedTo:      query.CreatedTo,
		Limit:          query.PageSize,
		Offset:         (query.Page - 1) * query.PageSize,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"data": dto.NewTicketSummaries(tickets),
		"meta": fiber.Map{"page": query.Page, "page_size": query.PageSize},
	})
}

// Assign POST /api/v1/tech/tickets/:id/assign.
func (h *TechTicketsHandler) Assign(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	var req dto.AssignRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return apperrors.NewValidationError("invalid payload", nil)
		}
	}
	if err := dto.Validate(req); err != nil {
		return err
	}
	ticket, err := h.assignments.AssignTechnician(c.UserContext(), actor, c.Params("id"), req.TechID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketSummary(ticket)})
}

// ChangeStatus POST /api/v1/tech/tickets/:id/status.
func (h *TechTicketsHandler) ChangeStatus(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	var req dto.ChangeStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := dto.Validate(req); err != nil {
		return err
	}
	ticket, err := h.tickets.ChangeStatus(c.UserContext(), actor, c.Params("id"), domain.TicketStatus(req.Status), req.Comment)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketSummary(ticket)})
}

// RecordAIResponse POST /api/v1/tech/tickets/:id/ai-response.
func (h *TechTicketsHandler) RecordAIResponse(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	var req dto.CreateMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := dto.Validate(req); err != nil {
		return err
	}
	msg, ticket, err := h.tickets.RecordAIResponse(c.UserContext(), actor, c.Params("id"), req.Content)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"data":   dto.NewTicketMessageResponse(msg),
		"ticket": dto.NewTicketSummary(ticket),
	})
}
