package service

import (
	"context"

	"github.com/spec-kit/agency-service/internal/auth"
	"github.com/spec-kit/agency-service/internal/domain"
	apperrors "github.com/spec-kit/agency-service/pkg/util/errorutil"
)

// GetAgency returns one agency of the company.
func (s *AgencyService) GetAgency(ctx context.Context, caller *domain.Caller, companyID, agencyID string) (*domain.Agency, error) {
	if err := auth.Authorize(caller, companyID); err != nil {
		return nil, err
	}
	return s.loadAgency(ctx, companyID, agencyID)
}

// ListAgencyStaff returns the agency roster.
func (s *AgencyService) ListAgencyStaff(ctx context.Context, caller *domain.Caller, companyID, agencyID string) ([]domain.StaffProjection, error) {
	if err := auth.Authorize(caller, companyID); err != nil {
		return nil, err
	}
	if _, err := s.loadAgency(ctx, companyID, agencyID); err != nil {
		return nil, err
	}
	staff, err := s.documents.ListAgencyStaff(ctx, companyID, agencyID)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	if staff == nil {
		staff = []domain.StaffProjection{}
	}
	return staff, nil
}
