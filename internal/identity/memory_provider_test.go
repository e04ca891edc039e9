package identity

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/agency-service/internal/domain"
)

func newTestProvider() *MemoryProvider {
	return NewMemoryProvider(ResetLinkConfig{BaseURL: "https://app.example.com/reset", TTL: time.Hour}, bcrypt.MinCost)
}

func TestMemoryProviderLookupIsCaseInsensitive(t *testing.T) {
	ctx := context.Background()
	p := newTestProvider()

	created, err := p.CreateAccount(ctx, domain.NewAccount{Email: " Awa@Example.com ", DisplayName: "Awa"})
	require.NoError(t, err)
	assert.False(t, created.EmailVerified)

	found, err := p.GetAccountByEmail(ctx, "awa@example.com")
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)

	_, err = p.CreateAccount(ctx, domain.NewAccount{Email: "AWA@example.com"})
	assert.ErrorIs(t, err, ErrEmailTaken)

	_, err = p.GetAccountByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestMemoryProviderSetClaimsReplaces(t *testing.T) {
	ctx := context.Background()
	p := newTestProvider()
	a, err := p.CreateAccount(ctx, domain.NewAccount{Email: "a@example.com"})
	require.NoError(t, err)

	agency := "ag1"
	require.NoError(t, p.SetClaims(ctx, a.ID, domain.Claims{Role: domain.RoleAgent, CompanyID: "acme", AgencyID: &agency}))
	require.NoError(t, p.SetClaims(ctx, a.ID, domain.Claims{CompanyID: "acme"}))

	got, err := p.GetAccount(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.Role(""), got.Claims.Role)
	assert.Nil(t, got.Claims.AgencyID)
}

func TestMemoryProviderResetFlow(t *testing.T) {
	ctx := context.Background()
	p := newTestProvider()
	a, err := p.CreateAccount(ctx, domain.NewAccount{Email: "a@example.com"})
	require.NoError(t, err)

	link, err := p.GenerateResetLink(ctx, "a@example.com")
	require.NoError(t, err)
	u, err := url.Parse(link)
	require.NoError(t, err)
	assert.Equal(t, "resetPassword", u.Query().Get("mode"))
	code := u.Query().Get("oobCode")
	require.NotEmpty(t, code)

	_, err = p.VerifyPassword(ctx, "a@example.com", "s3cret-pass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	require.NoError(t, p.ConfirmPasswordReset(ctx, code, "s3cret-pass"))
	assert.ErrorIs(t, p.ConfirmPasswordReset(ctx, code, "again"), ErrResetTokenInvalid)

	got, err := p.VerifyPassword(ctx, "a@example.com", "s3cret-pass")
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)
	assert.True(t, got.EmailVerified)
}

func TestMemoryProviderRevokeAndDisable(t *testing.T) {
	ctx := context.Background()
	p := newTestProvider()
	a, err := p.CreateAccount(ctx, domain.NewAccount{Email: "a@example.com"})
	require.NoError(t, err)

	before, err := p.TokensValidAfter(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, before.IsZero())

	require.NoError(t, p.RevokeSessions(ctx, a.ID))
	after, err := p.TokensValidAfter(ctx, a.ID)
	require.NoError(t, err)
	assert.False(t, after.IsZero())

	disabled := true
	_, err = p.UpdateAccount(ctx, a.ID, domain.AccountUpdate{Disabled: &disabled})
	require.NoError(t, err)
	_, err = p.VerifyPassword(ctx, "a@example.com", "whatever")
	assert.ErrorIs(t, err, ErrAccountDisabled)

	assert.ErrorIs(t, p.RevokeSessions(ctx, "missing"), ErrAccountNotFound)
}

func TestMemoryProviderFailHook(t *testing.T) {
	ctx := context.Background()
	p := newTestProvider()
	boom := errors.New("quota exceeded")
	p.Fail = func(op, subject string) error {
		if op == OpCreateAccount && subject == "bad@example.com" {
			return boom
		}
		return nil
	}

	_, err := p.CreateAccount(ctx, domain.NewAccount{Email: "bad@example.com"})
	assert.ErrorIs(t, err, boom)
	_, err = p.CreateAccount(ctx, domain.NewAccount{Email: "good@example.com"})
	assert.NoError(t, err)
}

func TestMemoryProviderUpdateEmailReindexes(t *testing.T) {
	ctx := context.Background()
	p := newTestProvider()
	a, err := p.CreateAccount(ctx, domain.NewAccount{Email: "old@example.com"})
	require.NoError(t, err)
	_, err = p.CreateAccount(ctx, domain.NewAccount{Email: "taken@example.com"})
	require.NoError(t, err)

	taken := "taken@example.com"
	_, err = p.UpdateAccount(ctx, a.ID, domain.AccountUpdate{Email: &taken})
	assert.ErrorIs(t, err, ErrEmailTaken)

	fresh := "new@example.com"
	_, err = p.UpdateAccount(ctx, a.ID, domain.AccountUpdate{Email: &fresh})
	require.NoError(t, err)
	_, err = p.GetAccountByEmail(ctx, "old@example.com")
	assert.ErrorIs(t, err, ErrAccountNotFound)
	got, err := p.GetAccountByEmail(ctx, "new@example.com")
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)
}
