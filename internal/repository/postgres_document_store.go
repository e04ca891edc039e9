package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/agency-service/internal/domain"
	"github.com/spec-kit/agency-service/internal/projection"
)

const uniqueViolation = "23505"

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type postgresDocumentStore struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewPostgresDocumentStore builds a document store backed by Postgres.
func NewPostgresDocumentStore(pool *pgxpool.Pool) DocumentStore {
	return &postgresDocumentStore{pool: pool, now: time.Now}
}

const agencyColumns = `id, company_id, name, name_key, city, country, address, phone, status, is_head_office, created_at, updated_at`

const staffColumns = `account_id, company_id, agency_id, name, email, phone, role, status, created_at, updated_at`

func (s *postgresDocumentStore) CreateAgency(ctx context.Context, a *domain.Agency) error {
	const query = `
        INSERT INTO agencies (id, company_id, name, name_key, city, country, address, phone, status, is_head_office)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
        RETURNING created_at, updated_at`

	err := s.pool.QueryRow(ctx, query,
		a.ID,
		a.CompanyID,
		a.Name,
		a.NameKey,
		a.City,
		a.Country,
		a.Address,
		a.Phone,
		a.Status,
		a.IsHeadOffice,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	return mapPgError(err)
}

func (s *postgresDocumentStore) GetAgency(ctx context.Context, companyID, agencyID string) (*domain.Agency, error) {
	query := `SELECT ` + agencyColumns + ` FROM agencies WHERE company_id=$1 AND id=$2`
	return scanAgency(s.pool.QueryRow(ctx, query, companyID, agencyID))
}

func (s *postgresDocumentStore) FindAgencyByNameKey(ctx context.Context, companyID, nameKey string) (*domain.Agency, error) {
	query := `SELECT ` + agencyColumns + ` FROM agencies WHERE company_id=$1 AND name_key=$2`
	return scanAgency(s.pool.QueryRow(ctx, query, companyID, nameKey))
}

func (s *postgresDocumentStore) DeleteAgency(ctx context.Context, companyID, agencyID string) error {
	cmd, err := s.pool.Exec(ctx, `DELETE FROM agencies WHERE company_id=$1 AND id=$2`, companyID, agencyID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *postgresDocumentStore) ListAgencyStaff(ctx context.Context, companyID, agencyID string) ([]domain.StaffProjection, error) {
	query := `SELECT ` + staffColumns + ` FROM agency_staff WHERE company_id=$1 AND agency_id=$2 ORDER BY account_id`
	return scanStaffRows(s.pool.Query(ctx, query, companyID, agencyID))
}

func (s *postgresDocumentStore) FindAgencyRecords(ctx context.Context, companyID, accountID string) ([]domain.StaffProjection, error) {
	query := `SELECT ` + staffColumns + ` FROM agency_staff WHERE company_id=$1 AND account_id=$2 ORDER BY agency_id`
	return scanStaffRows(s.pool.Query(ctx, query, companyID, accountID))
}

func (s *postgresDocumentStore) GetDirectoryRecord(ctx context.Context, accountID string) (*domain.StaffProjection, error) {
	query := `SELECT ` + staffColumns + ` FROM staff_directory WHERE account_id=$1`
	return scanStaff(s.pool.QueryRow(ctx, query, accountID))
}

func (s *postgresDocumentStore) GetCompanyRecord(ctx context.Context, companyID, accountID string) (*domain.StaffProjection, error) {
	query := `SELECT ` + staffColumns + ` FROM company_staff WHERE company_id=$1 AND account_id=$2`
	return scanStaff(s.pool.QueryRow(ctx, query, companyID, accountID))
}

// Commit applies every staged operation inside one transaction.
func (s *postgresDocumentStore) Commit(ctx context.Context, batch *projection.Batch) error {
	ops, err := batch.Seal()
	if err != nil {
		return err
	}
	if len(ops) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	now := s.now().UTC()
	for i, op := range ops {
		if err := applyOp(ctx, tx, op, now); err != nil {
			return fmt.Errorf("apply op %d: %w", i, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func applyOp(ctx context.Context, db DBTX, op projection.Op, now time.Time) error {
	switch op.Kind {
	case projection.OpMergeStaff:
		query, args := mergeStaffQuery(op.Location, op.Fields, now)
		_, err := db.Exec(ctx, query, args...)
		return err
	case projection.OpDeleteStaff:
		query, args := deleteStaffQuery(op.Location)
		_, err := db.Exec(ctx, query, args...)
		return err
	case projection.OpUpdateAgency:
		return updateAgency(ctx, db, op.Agency, now)
	default:
		return fmt.Errorf("unknown op kind %d", op.Kind)
	}
}

func keyColumns(loc projection.Location) ([]string, []any) {
	switch loc.Kind {
	case projection.KindDirectory:
		return []string{"account_id"}, []any{loc.AccountID}
	case projection.KindCompany:
		return []string{"company_id", "account_id"}, []any{loc.CompanyID, loc.AccountID}
	default:
		return []string{"company_id", "agency_id", "account_id"}, []any{loc.CompanyID, loc.AgencyID, loc.AccountID}
	}
}

// mergeStaffQuery builds an upsert touching only the set fields. created_at is
// written on insert only; updated_at is refreshed on every merge.
func mergeStaffQuery(loc projection.Location, f projection.Fields, now time.Time) (string, []any) {
	keys, args := keyColumns(loc)
	cols := append([]string(nil), keys...)
	var updates []string

	add := func(col string, val any) {
		args = append(args, val)
		cols = append(cols, col)
		updates = append(updates, fmt.Sprintf("%s=EXCLUDED.%s", col, col))
	}

	if loc.Kind == projection.KindDirectory {
		add("company_id", loc.CompanyID)
	}
	if loc.Kind != projection.KindAgency {
		if f.ClearAgency {
			add("agency_id", nil)
		} else if f.AgencyID != nil {
			add("agency_id", *f.AgencyID)
		}
	}
	if f.Name != nil {
		add("name", *f.Name)
	}
	if f.Email != nil {
		add("email", *f.Email)
	}
	if f.Phone != nil {
		add("phone", *f.Phone)
	}
	if f.Role != nil {
		add("role", string(*f.Role))
	}
	if f.Status != nil {
		add("status", string(*f.Status))
	}

	args = append(args, now, now)
	cols = append(cols, "created_at", "updated_at")
	updates = append(updates, "updated_at=EXCLUDED.updated_at")

	placeholders := make([]string, len(cols))
	for i := range cols {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}

	query := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO UPDATE SET %s",
		loc.Kind,
		strings.Join(cols, ", "),
		strings.Join(placeholders, ", "),
		strings.Join(keys, ", "),
		strings.Join(updates, ", "),
	)
	return query, args
}

func deleteStaffQuery(loc projection.Location) (string, []any) {
	keys, args := keyColumns(loc)
	clauses := make([]string, len(keys))
	for i, k := range keys {
		clauses[i] = fmt.Sprintf("%s=$%d", k, i+1)
	}
	return fmt.Sprintf("DELETE FROM %s WHERE %s", loc.Kind, strings.Join(clauses, " AND ")), args
}

func updateAgency(ctx context.Context, db DBTX, a *domain.Agency, now time.Time) error {
	const query = `
        UPDATE agencies
        SET name=$1, name_key=$2, city=$3, country=$4, address=$5, phone=$6, status=$7, is_head_office=$8, updated_at=$9
        WHERE company_id=$10 AND id=$11`

	cmd, err := db.Exec(ctx, query,
		a.Name,
		a.NameKey,
		a.City,
		a.Country,
		a.Address,
		a.Phone,
		a.Status,
		a.IsHeadOffice,
		now,
		a.CompanyID,
		a.ID,
	)
	if err != nil {
		return mapPgError(err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanAgency(row pgx.Row) (*domain.Agency, error) {
	var a domain.Agency
	if err := row.Scan(
		&a.ID,
		&a.CompanyID,
		&a.Name,
		&a.NameKey,
		&a.City,
		&a.Country,
		&a.Address,
		&a.Phone,
		&a.Status,
		&a.IsHeadOffice,
		&a.CreatedAt,
		&a.UpdatedAt,
	); err != nil {
		return nil, mapPgError(err)
	}
	return &a, nil
}

func scanStaff(row pgx.Row) (*domain.StaffProjection, error) {
	var p domain.StaffProjection
	if err := row.Scan(
		&p.AccountID,
		&p.CompanyID,
		&p.AgencyID,
		&p.Name,
		&p.Email,
		&p.Phone,
		&p.Role,
		&p.Status,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		return nil, mapPgError(err)
	}
	return &p, nil
}

func scanStaffRows(rows pgx.Rows, err error) ([]domain.StaffProjection, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.StaffProjection
	for rows.Next() {
		p, err := scanStaff(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *p)
	}
	return result, rows.Err()
}

func mapPgError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", ErrDuplicate, pgErr.ConstraintName)
	}
	return err
}
