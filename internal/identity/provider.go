// Package identity is the account side of the orchestrators: account lookup
// and creation, claims, session revocation and credential reset links.
package identity

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spec-kit/agency-service/internal/domain"
)

var (
	// ErrAccountNotFound is the only provider error orchestrators recover from.
	ErrAccountNotFound = errors.New("account not found")
	// ErrEmailTaken is returned when another account already owns the email.
	ErrEmailTaken = errors.New("email already in use")
	// ErrInvalidCredentials covers unknown emails and wrong passwords alike.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrResetTokenInvalid is returned for unknown, used or expired reset tokens.
	ErrResetTokenInvalid = errors.New("reset token expired or used")
	// ErrAccountDisabled is returned when a disabled account signs in.
	ErrAccountDisabled = errors.New("account disabled")
)

// Provider manages identity accounts.
type Provider interface {
	GetAccount(ctx context.Context, accountID string) (*domain.Account, error)
	GetAccountByEmail(ctx context.Context, email string) (*domain.Account, error)
	CreateAccount(ctx context.Context, params domain.NewAccount) (*domain.Account, error)
	UpdateAccount(ctx context.Context, accountID string, update domain.AccountUpdate) (*domain.Account, error)
	// SetClaims replaces the account claims as a whole.
	SetClaims(ctx context.Context, accountID string, claims domain.Claims) error
	// RevokeSessions invalidates every session issued before now.
	RevokeSessions(ctx context.Context, accountID string) error
	DeleteAccount(ctx context.Context, accountID string) error
	GenerateResetLink(ctx context.Context, email string) (string, error)
}

// Credentials backs the session endpoints.
type Credentials interface {
	VerifyPassword(ctx context.Context, email, password string) (*domain.Account, error)
	ConfirmPasswordReset(ctx context.Context, token, newPassword string) error
}

// RevocationChecker reports the instant before which sessions are invalid.
type RevocationChecker interface {
	TokensValidAfter(ctx context.Context, accountID string) (time.Time, error)
}

// ResetLinkConfig configures generated reset links.
type ResetLinkConfig struct {
	BaseURL string
	TTL     time.Duration
}

// NormalizeEmail lower-cases and trims an email for lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func buildResetLink(base, token string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse reset link base: %w", err)
	}
	q := u.Query()
	q.Set("mode", "resetPassword")
	q.Set("oobCode", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
