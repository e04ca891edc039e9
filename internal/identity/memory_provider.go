package identity

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/agency-service/internal/domain"
)

// Provider operation names passed to MemoryProvider.Fail.
const (
	OpGetAccount        = "GetAccount"
	OpGetAccountByEmail = "GetAccountByEmail"
	OpCreateAccount     = "CreateAccount"
	OpUpdateAccount     = "UpdateAccount"
	OpSetClaims         = "SetClaims"
	OpRevokeSessions    = "RevokeSessions"
	OpDeleteAccount     = "DeleteAccount"
	OpGenerateResetLink = "GenerateResetLink"
)

// MemoryProvider is an in-process Provider used for local runs and tests.
type MemoryProvider struct {
	mu         sync.RWMutex
	accounts   map[string]domain.Account
	byEmail    map[string]string
	resets     map[string]ResetToken
	revocation RevocationStore
	links      ResetLinkConfig
	bcryptCost int
	now        func() time.Time

	// Fail, when set, is consulted before every provider operation; a
	// non-nil return is surfaced as that operation's error.
	Fail func(op, subject string) error
}

// NewMemoryProvider returns an empty provider.
func NewMemoryProvider(links ResetLinkConfig, bcryptCost int) *MemoryProvider {
	if links.TTL <= 0 {
		links.TTL = time.Hour
	}
	return &MemoryProvider{
		accounts:   make(map[string]domain.Account),
		byEmail:    make(map[string]string),
		resets:     make(map[string]ResetToken),
		revocation: NewMemoryRevocationStore(),
		links:      links,
		bcryptCost: bcryptCost,
		now:        time.Now,
	}
}

func (p *MemoryProvider) check(op, subject string) error {
	if p.Fail == nil {
		return nil
	}
	return p.Fail(op, subject)
}

func (p *MemoryProvider) GetAccount(_ context.Context, accountID string) (*domain.Account, error) {
	if err := p.check(OpGetAccount, accountID); err != nil {
		return nil, err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	a, ok := p.accounts[accountID]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return &a, nil
}

func (p *MemoryProvider) GetAccountByEmail(_ context.Context, email string) (*domain.Account, error) {
	email = NormalizeEmail(email)
	if err := p.check(OpGetAccountByEmail, email); err != nil {
		return nil, err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	id, ok := p.byEmail[email]
	if !ok {
		return nil, ErrAccountNotFound
	}
	a := p.accounts[id]
	return &a, nil
}

func (p *MemoryProvider) CreateAccount(_ context.Context, params domain.NewAccount) (*domain.Account, error) {
	email := NormalizeEmail(params.Email)
	if err := p.check(OpCreateAccount, email); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, taken := p.byEmail[email]; taken {
		return nil, ErrEmailTaken
	}
	now := p.now()
	a := domain.Account{
		ID:          uuid.NewString(),
		Email:       email,
		DisplayName: params.DisplayName,
		Phone:       params.Phone,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	p.accounts[a.ID] = a
	p.byEmail[email] = a.ID
	return &a, nil
}

func (p *MemoryProvider) UpdateAccount(_ context.Context, accountID string, update domain.AccountUpdate) (*domain.Account, error) {
	if err := p.check(OpUpdateAccount, accountID); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	a, ok := p.accounts[accountID]
	if !ok {
		return nil, ErrAccountNotFound
	}
	if update.Email != nil {
		email := NormalizeEmail(*update.Email)
		if owner, taken := p.byEmail[email]; taken && owner != accountID {
			return nil, ErrEmailTaken
		}
		delete(p.byEmail, a.Email)
		a.Email = email
		p.byEmail[email] = accountID
	}
	if update.DisplayName != nil {
		a.DisplayName = *update.DisplayName
	}
	if update.Phone != nil {
		a.Phone = *update.Phone
	}
	if update.EmailVerified != nil {
		a.EmailVerified = *update.EmailVerified
	}
	if update.Disabled != nil {
		a.Disabled = *update.Disabled
	}
	a.UpdatedAt = p.now()
	p.accounts[accountID] = a
	return &a, nil
}

func (p *MemoryProvider) SetClaims(_ context.Context, accountID string, claims domain.Claims) error {
	if err := p.check(OpSetClaims, accountID); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	a, ok := p.accounts[accountID]
	if !ok {
		return ErrAccountNotFound
	}
	if claims.AgencyID != nil {
		id := *claims.AgencyID
		claims.AgencyID = &id
	}
	a.Claims = claims
	p.accounts[accountID] = a
	return nil
}

func (p *MemoryProvider) RevokeSessions(ctx context.Context, accountID string) error {
	if err := p.check(OpRevokeSessions, accountID); err != nil {
		return err
	}
	p.mu.RLock()
	_, ok := p.accounts[accountID]
	p.mu.RUnlock()
	if !ok {
		return ErrAccountNotFound
	}
	return p.revocation.Revoke(ctx, accountID, p.now())
}

func (p *MemoryProvider) DeleteAccount(ctx context.Context, accountID string) error {
	if err := p.check(OpDeleteAccount, accountID); err != nil {
		return err
	}
	p.mu.Lock()
	a, ok := p.accounts[accountID]
	if ok {
		delete(p.accounts, accountID)
		delete(p.byEmail, a.Email)
	}
	p.mu.Unlock()
	if !ok {
		return ErrAccountNotFound
	}
	return p.revocation.Revoke(ctx, accountID, p.now())
}

func (p *MemoryProvider) GenerateResetLink(_ context.Context, email string) (string, error) {
	email = NormalizeEmail(email)
	if err := p.check(OpGenerateResetLink, email); err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	id, ok := p.byEmail[email]
	if !ok {
		return "", ErrAccountNotFound
	}
	now := p.now()
	token := ResetToken{
		ID:        uuid.NewString(),
		AccountID: id,
		Token:     uuid.NewString(),
		ExpiresAt: now.Add(p.links.TTL),
		CreatedAt: now,
	}
	p.resets[token.Token] = token
	return buildResetLink(p.links.BaseURL, token.Token)
}

func (p *MemoryProvider) VerifyPassword(ctx context.Context, email, password string) (*domain.Account, error) {
	account, err := p.GetAccountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if account.Disabled {
		return nil, ErrAccountDisabled
	}
	if account.PasswordHash == "" || bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	return account, nil
}

func (p *MemoryProvider) ConfirmPasswordReset(_ context.Context, tokenStr, newPassword string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), p.bcryptCost)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	token, ok := p.resets[tokenStr]
	if !ok || token.UsedAt != nil || p.now().After(token.ExpiresAt) {
		return ErrResetTokenInvalid
	}
	a, ok := p.accounts[token.AccountID]
	if !ok {
		return ErrAccountNotFound
	}
	a.PasswordHash = string(hash)
	a.EmailVerified = true
	a.Claims.EmailVerified = true
	a.UpdatedAt = p.now()
	p.accounts[a.ID] = a

	used := p.now()
	token.UsedAt = &used
	p.resets[tokenStr] = token
	return nil
}

func (p *MemoryProvider) TokensValidAfter(ctx context.Context, accountID string) (time.Time, error) {
	return p.revocation.TokensValidAfter(ctx, accountID)
}
