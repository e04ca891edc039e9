package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/agency-service/internal/domain"
)

const accountColumns = `id, email, display_name, phone, email_verified, disabled, password_hash, claims, created_at, updated_at`

// PostgresProvider stores accounts in Postgres and session cut-offs in the
// revocation store.
type PostgresProvider struct {
	pool       *pgxpool.Pool
	resets     ResetTokenRepository
	revocation RevocationStore
	links      ResetLinkConfig
	bcryptCost int
	now        func() time.Time
}

// PostgresDependencies bundles what the provider needs.
type PostgresDependencies struct {
	Pool       *pgxpool.Pool
	Revocation RevocationStore
	Links      ResetLinkConfig
	BcryptCost int
}

// NewPostgresProvider builds the provider.
func NewPostgresProvider(deps PostgresDependencies) *PostgresProvider {
	return &PostgresProvider{
		pool:       deps.Pool,
		resets:     NewResetTokenRepository(deps.Pool),
		revocation: deps.Revocation,
		links:      deps.Links,
		bcryptCost: deps.BcryptCost,
		now:        time.Now,
	}
}

func (p *PostgresProvider) GetAccount(ctx context.Context, accountID string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id=$1`
	return scanAccount(p.pool.QueryRow(ctx, query, accountID))
}

func (p *PostgresProvider) GetAccountByEmail(ctx context.Context, email string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE email=$1`
	return scanAccount(p.pool.QueryRow(ctx, query, NormalizeEmail(email)))
}

func (p *PostgresProvider) CreateAccount(ctx context.Context, params domain.NewAccount) (*domain.Account, error) {
	const query = `
        INSERT INTO accounts (id, email, display_name, phone, email_verified, disabled, password_hash, claims)
        VALUES ($1,$2,$3,$4,FALSE,FALSE,'','{}'::jsonb)
        RETURNING ` + accountColumns

	account, err := scanAccount(p.pool.QueryRow(ctx, query,
		uuid.NewString(),
		NormalizeEmail(params.Email),
		params.DisplayName,
		params.Phone,
	))
	if err != nil {
		return nil, err
	}
	return account, nil
}

func (p *PostgresProvider) UpdateAccount(ctx context.Context, accountID string, update domain.AccountUpdate) (*domain.Account, error) {
	var sets []string
	var args []any
	add := func(col string, val any) {
		args = append(args, val)
		sets = append(sets, fmt.Sprintf("%s=$%d", col, len(args)))
	}
	if update.Email != nil {
		add("email", NormalizeEmail(*update.Email))
	}
	if update.DisplayName != nil {
		add("display_name", *update.DisplayName)
	}
	if update.Phone != nil {
		add("phone", *update.Phone)
	}
	if update.EmailVerified != nil {
		add("email_verified", *update.EmailVerified)
	}
	if update.Disabled != nil {
		add("disabled", *update.Disabled)
	}
	if len(sets) == 0 {
		return p.GetAccount(ctx, accountID)
	}
	sets = append(sets, "updated_at=NOW()")
	args = append(args, accountID)

	query := fmt.Sprintf(`UPDATE accounts SET %s WHERE id=$%d RETURNING %s`, strings.Join(sets, ", "), len(args), accountColumns)
	return scanAccount(p.pool.QueryRow(ctx, query, args...))
}

func (p *PostgresProvider) SetClaims(ctx context.Context, accountID string, claims domain.Claims) error {
	payload, err := json.Marshal(claims)
	if err != nil {
		return fmt.Errorf("encode claims: %w", err)
	}
	cmd, err := p.pool.Exec(ctx, `UPDATE accounts SET claims=$1, updated_at=NOW() WHERE id=$2`, payload, accountID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (p *PostgresProvider) RevokeSessions(ctx context.Context, accountID string) error {
	if _, err := p.GetAccount(ctx, accountID); err != nil {
		return err
	}
	return p.revocation.Revoke(ctx, accountID, p.now())
}

func (p *PostgresProvider) DeleteAccount(ctx context.Context, accountID string) error {
	cmd, err := p.pool.Exec(ctx, `DELETE FROM accounts WHERE id=$1`, accountID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return p.revocation.Revoke(ctx, accountID, p.now())
}

func (p *PostgresProvider) GenerateResetLink(ctx context.Context, email string) (string, error) {
	account, err := p.GetAccountByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	token := &ResetToken{
		AccountID: account.ID,
		Token:     uuid.NewString(),
		ExpiresAt: p.now().Add(p.links.TTL),
	}
	if err := p.resets.Create(ctx, token); err != nil {
		return "", err
	}
	return buildResetLink(p.links.BaseURL, token.Token)
}

func (p *PostgresProvider) VerifyPassword(ctx context.Context, email, password string) (*domain.Account, error) {
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

func (p *PostgresProvider) ConfirmPasswordReset(ctx context.Context, tokenStr, newPassword string) error {
	token, err := p.resets.GetByToken(ctx, tokenStr)
	if err != nil {
		return err
	}
	if token.UsedAt != nil || p.now().After(token.ExpiresAt) {
		return ErrResetTokenInvalid
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), p.bcryptCost)
	if err != nil {
		return err
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	cmd, err := tx.Exec(ctx, `
        UPDATE accounts
        SET password_hash=$1, email_verified=TRUE,
            claims=jsonb_set(claims, '{email_verified}', 'true'::jsonb), updated_at=NOW()
        WHERE id=$2`, string(hash), token.AccountID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	if err := NewResetTokenRepository(tx).MarkUsed(ctx, token.ID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (p *PostgresProvider) TokensValidAfter(ctx context.Context, accountID string) (time.Time, error) {
	return p.revocation.TokensValidAfter(ctx, accountID)
}

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var a domain.Account
	var claims []byte
	if err := row.Scan(
		&a.ID,
		&a.Email,
		&a.DisplayName,
		&a.Phone,
		&a.EmailVerified,
		&a.Disabled,
		&a.PasswordHash,
		&claims,
		&a.CreatedAt,
		&a.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	if len(claims) > 0 {
		if err := json.Unmarshal(claims, &a.Claims); err != nil {
			return nil, fmt.Errorf("decode claims: %w", err)
		}
	}
	return &a, nil
}
