package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-desk/internal/domain"
	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

// RequireRole ensures the actor holds at least one of the allowed roles.
// Must run after AuthMiddleware.Handle.
func RequireRole(allowed ...domain.AppRole) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, ok := ActorFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("missing session")
		}
		for _, role := range allowed {
			if actor.HasRole(role) {
				return c.Next()
			}
		}
		return apperrors.NewForbidden("insufficient role")
	}
}

// RequireStaff admits technicians and admins.
func RequireStaff() fiber.Handler {
	return RequireRole(domain.RoleTecnico, domain.RoleAdmin)
}

// RequireAdmin admits admins only.
func RequireAdmin() fiber.Handler {
	return RequireRole(domain.RoleAdmin)
}
