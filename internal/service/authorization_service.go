package service

import (
	"context"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/repository"
	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

// AuthorizationService answers role questions through the backend's
// has_role function and builds request actors.
type AuthorizationService struct {
	roles repository.UserRoleRepository
}

// NewAuthorizationService creates the service.
func NewAuthorizationService(roles repository.UserRoleRepository) *AuthorizationService {
	return &AuthorizationService{roles: roles}
}

// HasRole reports whether userID holds role.
func (s *AuthorizationService) HasRole(ctx context.Context, userID string, role domain.AppRole) (bool, error) {
	ok, err := s.roles.HasRole(ctx, userID, role)
	if err != nil {
		return false, apperrors.MapError(err)
	}
	return ok, nil
}

// IsAdmin reports whether userID is an admin.
func (s *AuthorizationService) IsAdmin(ctx context.Context, userID string) (bool, error) {
	return s.HasRole(ctx, userID, domain.RoleAdmin)
}

// IsTecnico reports whether userID is a technician.
func (s *AuthorizationService) IsTecnico(ctx context.Context, userID string) (bool, error) {
	return s.HasRole(ctx, userID, domain.RoleTecnico)
}

// ActorFor loads the roles of the session user.
func (s *AuthorizationService) ActorFor(ctx context.Context, session *domain.Session) (domain.Actor, error) {
	if session == nil || session.UserID == "" {
		return domain.Actor{}, apperrors.NewUnauthorized("session required")
	}
	roles, err := s.roles.ListByUser(ctx, session.UserID)
	if err != nil {
		return domain.Actor{}, apperrors.MapError(err)
	}
	return domain.Actor{ID: session.UserID, Roles: roles}, nil
}
