package service

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/agency-service/internal/config"
	"github.com/spec-kit/agency-service/internal/domain"
	"github.com/spec-kit/agency-service/internal/identity"
	apperrors "github.com/spec-kit/agency-service/pkg/util/errorutil"
)

func newAuthFixture(t *testing.T) (*AuthService, *identity.MemoryProvider) {
	t.Helper()
	ids := identity.NewMemoryProvider(identity.ResetLinkConfig{BaseURL: "https://app.example.com/reset", TTL: time.Hour}, bcrypt.MinCost)
	cfg := config.Config{
		Auth:     config.AuthConfig{JWTSecret: "test-secret", AccessTokenTTLMinutes: 30},
		Identity: config.IdentityConfig{MinPasswordLength: 8},
	}
	return NewAuthService(cfg, AuthDependencies{Credentials: ids, Logger: zaptest.NewLogger(t)}), ids
}

func resetCode(t *testing.T, ids *identity.MemoryProvider, email string) string {
	t.Helper()
	link, err := ids.GenerateResetLink(context.Background(), email)
	require.NoError(t, err)
	u, err := url.Parse(link)
	require.NoError(t, err)
	return u.Query().Get("oobCode")
}

func TestAuthServiceResetThenLogin(t *testing.T) {
	svc, ids := newAuthFixture(t)
	ctx := context.Background()

	account, err := ids.CreateAccount(ctx, domain.NewAccount{Email: "Moussa@Example.com", DisplayName: "Moussa"})
	require.NoError(t, err)
	agencyID := "agency-1"
	require.NoError(t, ids.SetClaims(ctx, account.ID, domain.Claims{Role: domain.RoleBranchManager, CompanyID: "acme", AgencyID: &agencyID}))

	_, _, _, err = svc.Login(ctx, "moussa@example.com", "whatever-pass")
	requireCode(t, err, apperrors.CodeUnauthenticated)

	code := resetCode(t, ids, "moussa@example.com")
	requireCode(t, svc.ConfirmPasswordReset(ctx, code, "short"), apperrors.CodeInvalidArgument)
	require.NoError(t, svc.ConfirmPasswordReset(ctx, code, "correct-horse"))
	requireCode(t, svc.ConfirmPasswordReset(ctx, code, "correct-horse"), apperrors.CodeFailedPrecondition)

	got, token, exp, err := svc.Login(ctx, "MOUSSA@example.com", "correct-horse")
	require.NoError(t, err)
	assert.True(t, got.EmailVerified)
	assert.True(t, got.Claims.EmailVerified)
	assert.True(t, exp.After(time.Now()))

	claims, err := svc.TokenManager().ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, account.ID, claims.Subject)
	assert.Equal(t, domain.RoleBranchManager, claims.Caller().Claims.Role)
	assert.Equal(t, "acme", claims.Caller().Claims.CompanyID)

	_, _, _, err = svc.Login(ctx, "moussa@example.com", "wrong-password")
	requireCode(t, err, apperrors.CodeUnauthenticated)
}

func TestAuthServiceRejectsDisabledAccount(t *testing.T) {
	svc, ids := newAuthFixture(t)
	ctx := context.Background()

	account, err := ids.CreateAccount(ctx, domain.NewAccount{Email: "off@example.com"})
	require.NoError(t, err)
	require.NoError(t, svc.ConfirmPasswordReset(ctx, resetCode(t, ids, "off@example.com"), "correct-horse"))
	_, err = ids.UpdateAccount(ctx, account.ID, domain.AccountUpdate{Disabled: ptr(true)})
	require.NoError(t, err)

	_, _, _, err = svc.Login(ctx, "off@example.com", "correct-horse")
	requireCode(t, err, apperrors.CodePermissionDenied)
}

func TestAuthServiceUnknownResetToken(t *testing.T) {
	svc, _ := newAuthFixture(t)
	err := svc.ConfirmPasswordReset(context.Background(), "not-a-token", "correct-horse")
	requireCode(t, err, apperrors.CodeFailedPrecondition)
}
