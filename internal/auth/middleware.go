package auth

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/agency-service/internal/domain"
	apperrors "github.com/spec-kit/agency-service/pkg/util/errorutil"
)

const callerKey = "auth_caller"

// RevocationChecker reports the instant before which an account's sessions
// are no longer accepted.
type RevocationChecker interface {
	TokensValidAfter(ctx context.Context, accountID string) (time.Time, error)
}

// AuthMiddleware validates bearer tokens and loads the caller.
type AuthMiddleware struct {
	tokens      *TokenManager
	revocations RevocationChecker
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens *TokenManager, revocations RevocationChecker) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, revocations: revocations}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return apperrors.NewUnauthorized("invalid authorization header")
	}

	claims, err := m.tokens.ParseToken(parts[1])
	if err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}

	if m.revocations != nil {
		validAfter, err := m.revocations.TokensValidAfter(c.UserContext(), claims.Subject)
		if err != nil {
			return apperrors.NewInternalError(err)
		}
		if claims.IssuedAt == nil || claims.IssuedAt.Unix() < validAfter.Unix() {
			return apperrors.NewUnauthorized("session revoked")
		}
	}

	c.Locals(callerKey, claims.Caller())
	return c.Next()
}

// CallerFromContext retrieves the authenticated caller.
func CallerFromContext(c *fiber.Ctx) (*domain.Caller, bool) {
	val := c.Locals(callerKey)
	if val == nil {
		return nil, false
	}
	caller, ok := val.(*domain.Caller)
	return caller, ok
}
