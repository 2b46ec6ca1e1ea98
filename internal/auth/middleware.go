package auth

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-desk/internal/domain"
	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

const (
	sessionKey = "auth_session"
	actorKey   = "auth_actor"
)

// ActorResolver turns a session into the actor performing ticket operations.
type ActorResolver interface {
	ActorFor(ctx context.Context, session *domain.Session) (domain.Actor, error)
}

// AuthMiddleware loads the session and actor for protected routes.
type AuthMiddleware struct {
	sessions SessionProvider
	actors   ActorResolver
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(sessions SessionProvider, actors ActorResolver) *AuthMiddleware {
	return &AuthMiddleware{sessions: sessions, actors: actors}
}

// Handle enforces authentication, answering 401 without a valid session.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	if err := m.load(c); err != nil {
		return err
	}
	return c.Next()
}

// RedirectToLogin is Handle for page routes: a missing or invalid session
// redirects to loginPath instead of failing.
func (m *AuthMiddleware) RedirectToLogin(loginPath string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := m.load(c); err != nil {
			var domainErr *apperrors.DomainError
			if errors.As(err, &domainErr) && domainErr.HTTPStatus == fiber.StatusUnauthorized {
				return c.Redirect(loginPath, fiber.StatusFound)
			}
			return err
		}
		return c.Next()
	}
}

func (m *AuthMiddleware) load(c *fiber.Ctx) error {
	session, err := m.sessions.Current(c)
	if err != nil {
		return err
	}
	actor, err := m.actors.ActorFor(c.UserContext(), session)
	if err != nil {
		return err
	}
	c.Locals(sessionKey, session)
	c.Locals(actorKey, actor)
	return nil
}

// SessionFromContext retrieves the authenticated session.
func SessionFromContext(c *fiber.Ctx) (*domain.Session, bool) {
	session, ok := c.Locals(sessionKey).(*domain.Session)
	return session, ok && session != nil
}

// ActorFromContext retrieves the actor resolved for the session.
func ActorFromContext(c *fiber.Ctx) (domain.Actor, bool) {
	actor, ok := c.Locals(actorKey).(domain.Actor)
	return actor, ok
}
