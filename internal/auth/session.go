package auth

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/repository"
	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

// SessionProvider resolves the ambient session of a request. The dashboard
// and API only depend on this interface.
type SessionProvider interface {
	Current(c *fiber.Ctx) (*domain.Session, error)
	End(c *fiber.Ctx) error
}

// JWTSessionProvider reads the session JWT from the session cookie or a
// bearer header and rejects tokens revoked by logout.
type JWTSessionProvider struct {
	tokens     *TokenManager
	revoked    repository.SessionRepository
	cookieName string
}

// NewJWTSessionProvider constructs the provider.
func NewJWTSessionProvider(tokens *TokenManager, revoked repository.SessionRepository, cookieName string) *JWTSessionProvider {
	return &JWTSessionProvider{tokens: tokens, revoked: revoked, cookieName: cookieName}
}

func (p *JWTSessionProvider) rawToken(c *fiber.Ctx) (string, error) {
	if p.cookieName != "" {
		if v := c.Cookies(p.cookieName); v != "" {
			return v, nil
		}
	}

	authHeader := c.Get(fiber.HeaderAuthorization)
	if authHeader == "" {
		return "", apperrors.NewUnauthorized("missing session")
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", apperrors.NewUnauthorized("invalid authorization header")
	}
	return strings.TrimSpace(parts[1]), nil
}

// Current returns the session or an UNAUTHORIZED error. A revocation store
// failure surfaces as UNAVAILABLE.
func (p *JWTSessionProvider) Current(c *fiber.Ctx) (*domain.Session, error) {
	raw, err := p.rawToken(c)
	if err != nil {
		return nil, err
	}

	claims, err := p.tokens.ParseToken(raw)
	if err != nil {
		return nil, apperrors.NewUnauthorized("invalid or expired session")
	}

	if claims.ID != "" {
		revoked, err := p.revoked.IsRevoked(c.UserContext(), claims.ID)
		if err != nil {
			return nil, apperrors.NewUnavailable("session store unavailable", err)
		}
		if revoked {
			return nil, apperrors.NewUnauthorized("session revoked")
		}
	}

	session := &domain.Session{
		TokenID: claims.ID,
		UserID:  claims.Subject,
		Email:   claims.Email,
	}
	if claims.ExpiresAt != nil {
		session.ExpiresAt = claims.ExpiresAt.Time
	}
	return session, nil
}

// End revokes the current token, if any, and clears the session cookie.
// It never fails because of a missing or invalid session.
func (p *JWTSessionProvider) End(c *fiber.Ctx) error {
	defer p.clearCookie(c)

	raw, err := p.rawToken(c)
	if err != nil {
		return nil
	}
	claims, err := p.tokens.ParseToken(raw)
	if err != nil || claims.ID == "" || claims.ExpiresAt == nil {
		return nil
	}
	return p.revoke(c.UserContext(), claims.ID, time.Until(claims.ExpiresAt.Time))
}

func (p *JWTSessionProvider) revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	if err := p.revoked.Revoke(ctx, tokenID, ttl); err != nil {
		return apperrors.NewUnavailable("session store unavailable", err)
	}
	return nil
}

func (p *JWTSessionProvider) clearCookie(c *fiber.Ctx) {
	if p.cookieName == "" {
		return
	}
	c.Cookie(&fiber.Cookie{
		Name:     p.cookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}
