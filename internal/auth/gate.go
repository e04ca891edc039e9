package auth

import (
	"github.com/spec-kit/agency-service/internal/domain"
	apperrors "github.com/spec-kit/agency-service/pkg/util/errorutil"
)

// Authorize decides whether caller may mutate companyID's data. Platform
// administrators pass for every company; company administrators only for the
// company named in their claims.
func Authorize(caller *domain.Caller, companyID string) error {
	if caller == nil || caller.AccountID == "" {
		return apperrors.NewUnauthorized("authentication required")
	}
	switch caller.Claims.Role {
	case domain.RolePlatformAdmin:
		return nil
	case domain.RoleCompanyAdmin:
		if caller.Claims.CompanyID != "" && caller.Claims.CompanyID == companyID {
			return nil
		}
	}
	return apperrors.NewForbidden("caller may not manage this company")
}
