package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-desk/internal/api/http/handlers"
	"github.com/spec-kit/support-desk/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Dashboard      *handlers.DashboardHandler
	Tickets        *handlers.TicketsHandler
	TechTickets    *handlers.TechTicketsHandler
	AuthMiddleware *auth.AuthMiddleware
	LoginPath      string
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", cfg.Health.Metrics)

	app.Post("/session/logout", cfg.Dashboard.Logout)

	page := app.Group("/dashboard", cfg.AuthMiddleware.RedirectToLogin(cfg.LoginPath))
	page.Get("", cfg.Dashboard.Show)
	page.Post("/tickets", cfg.Dashboard.SubmitTicket)

	api := app.Group("/api/v1", cfg.AuthMiddleware.Handle)
	api.Get("/faq", cfg.Dashboard.FAQ)
	api.Get("/priorities", cfg.Tickets.Priorities)
	api.Get("/tickets", cfg.Tickets.ListTickets)
	api.Post("/tickets", cfg.Tickets.CreateTicket)
	api.Get("/tickets/:id", cfg.Tickets.GetTicket)
	api.Post("/tickets/:id/messages", cfg.Tickets.AddMessage)
	api.Post("/tickets/:id/ai-assist", cfg.Tickets.RequestAIAssist)
	api.Post("/tickets/:id/accept-resolution", cfg.Tickets.AcceptResolution)

	tech := api.Group("/tech", auth.RequireStaff())
	tech.Get("/tickets", cfg.TechTickets.ListQueue)
	tech.Post("/tickets/:id/assign", cfg.TechTickets.Assign)
	tech.Post("/tickets/:id/status", cfg.TechTickets.ChangeStatus)
	tech.Post("/tickets/:id/ai-response", auth.RequireAdmin(), cfg.TechTickets.RecordAIResponse)
}
