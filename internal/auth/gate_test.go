package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spec-kit/agency-service/internal/domain"
	apperrors "github.com/spec-kit/agency-service/pkg/util/errorutil"
)

func TestAuthorize(t *testing.T) {
	cases := []struct {
		name   string
		caller *domain.Caller
		target string
		code   string
	}{
		{"no caller", nil, "acme", apperrors.CodeUnauthenticated},
		{"empty subject", &domain.Caller{}, "acme", apperrors.CodeUnauthenticated},
		{"platform admin any company", &domain.Caller{AccountID: "p", Claims: domain.Claims{Role: domain.RolePlatformAdmin}}, "globex", ""},
		{"company admin own company", &domain.Caller{AccountID: "c", Claims: domain.Claims{Role: domain.RoleCompanyAdmin, CompanyID: "acme"}}, "acme", ""},
		{"company admin other company", &domain.Caller{AccountID: "c", Claims: domain.Claims{Role: domain.RoleCompanyAdmin, CompanyID: "acme"}}, "globex", apperrors.CodePermissionDenied},
		{"company admin without company", &domain.Caller{AccountID: "c", Claims: domain.Claims{Role: domain.RoleCompanyAdmin}}, "", apperrors.CodePermissionDenied},
		{"branch manager", &domain.Caller{AccountID: "b", Claims: domain.Claims{Role: domain.RoleBranchManager, CompanyID: "acme"}}, "acme", apperrors.CodePermissionDenied},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.code, apperrors.CodeOf(Authorize(tc.caller, tc.target)))
		})
	}
}
