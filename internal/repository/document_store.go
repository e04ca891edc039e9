package repository

import (
	"context"
	"errors"

	"github.com/spec-kit/agency-service/internal/domain"
	"github.com/spec-kit/agency-service/internal/projection"
)

var (
	// ErrNotFound is returned when a document does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when an agency name key is already taken.
	ErrDuplicate = errors.New("duplicate record")
)

// AgencyRepository persists agency documents.
type AgencyRepository interface {
	CreateAgency(ctx context.Context, agency *domain.Agency) error
	GetAgency(ctx context.Context, companyID, agencyID string) (*domain.Agency, error)
	FindAgencyByNameKey(ctx context.Context, companyID, nameKey string) (*domain.Agency, error)
	DeleteAgency(ctx context.Context, companyID, agencyID string) error
}

// StaffProjectionRepository reads the denormalized staff views.
type StaffProjectionRepository interface {
	ListAgencyStaff(ctx context.Context, companyID, agencyID string) ([]domain.StaffProjection, error)
	FindAgencyRecords(ctx context.Context, companyID, accountID string) ([]domain.StaffProjection, error)
	GetDirectoryRecord(ctx context.Context, accountID string) (*domain.StaffProjection, error)
	GetCompanyRecord(ctx context.Context, companyID, accountID string) (*domain.StaffProjection, error)
}

// BatchCommitter applies a projection batch atomically.
type BatchCommitter interface {
	Commit(ctx context.Context, batch *projection.Batch) error
}

// DocumentStore is the document side of the orchestrators.
type DocumentStore interface {
	AgencyRepository
	StaffProjectionRepository
	BatchCommitter
}
