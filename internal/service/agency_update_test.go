package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/agency-service/internal/domain"
	apperrors "github.com/spec-kit/agency-service/pkg/util/errorutil"
)

func TestUpdateAgencyPatchRecomputesNameKey(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	agencyID, _ := h.createAgency(t, "acme", "Agence Nord", "nord@example.com")
	h.createAgency(t, "acme", "Agence Sud", "sud@example.com")

	res, err := h.svc.UpdateAgency(ctx, companyAdmin("acme"), UpdateAgencyInput{
		CompanyID: "acme",
		AgencyID:  agencyID,
		Agency:    &AgencyPatchInput{Name: ptr("  Agence  Nord-Est "), City: ptr("Gao"), Status: ptr(domain.AgencyStatusInactive)},
	})
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Nil(t, res.ResetLink)

	agency, err := h.docs.GetAgency(ctx, "acme", agencyID)
	require.NoError(t, err)
	assert.Equal(t, "Agence  Nord-Est", agency.Name)
	assert.Equal(t, "agence nord-est", agency.NameKey)
	assert.Equal(t, "Gao", agency.City)
	assert.Equal(t, domain.AgencyStatusInactive, agency.Status)

	_, err = h.svc.UpdateAgency(ctx, companyAdmin("acme"), UpdateAgencyInput{
		CompanyID: "acme",
		AgencyID:  agencyID,
		Agency:    &AgencyPatchInput{Name: ptr("agence sud")},
	})
	requireCode(t, err, apperrors.CodeAlreadyExists)
}

func TestUpdateAgencyGuards(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	agencyID, managerID := h.createAgency(t, "acme", "Agence Nord", "nord@example.com")

	_, err := h.svc.UpdateAgency(ctx, companyAdmin("globex"), UpdateAgencyInput{CompanyID: "acme", AgencyID: agencyID})
	requireCode(t, err, apperrors.CodePermissionDenied)

	_, err = h.svc.UpdateAgency(ctx, platformAdmin, UpdateAgencyInput{CompanyID: "acme", AgencyID: "missing"})
	requireCode(t, err, apperrors.CodeNotFound)

	_, err = h.svc.UpdateAgency(ctx, platformAdmin, UpdateAgencyInput{
		CompanyID: "acme",
		AgencyID:  agencyID,
		Manager:   &ManagerPatchInput{AccountID: managerID, MoveToAgencyID: ptr("missing")},
	})
	requireCode(t, err, apperrors.CodeNotFound)

	_, err = h.svc.UpdateAgency(ctx, platformAdmin, UpdateAgencyInput{
		CompanyID: "acme",
		AgencyID:  agencyID,
		Manager:   &ManagerPatchInput{AccountID: managerID, Email: ptr("not-an-email")},
	})
	requireCode(t, err, apperrors.CodeInvalidArgument)

	_, err = h.svc.UpdateAgency(ctx, platformAdmin, UpdateAgencyInput{
		CompanyID: "acme",
		AgencyID:  agencyID,
		Manager:   &ManagerPatchInput{AccountID: "nobody"},
	})
	requireCode(t, err, apperrors.CodeNotFound)

	account, err := h.ids.GetAccount(ctx, managerID)
	require.NoError(t, err)
	assert.Equal(t, "nord@example.com", account.Email)
}

func TestUpdateAgencyRejectsManagerOfAnotherCompany(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	agencyID, _ := h.createAgency(t, "acme", "Agence Nord", "nord@example.com")
	_, foreignID := h.createAgency(t, "globex", "Globex HQ", "boss@example.com")

	_, err := h.svc.UpdateAgency(ctx, companyAdmin("acme"), UpdateAgencyInput{
		CompanyID: "acme",
		AgencyID:  agencyID,
		Manager:   &ManagerPatchInput{AccountID: foreignID},
	})
	requireCode(t, err, apperrors.CodeNotFound)
}

func TestUpdateAgencyMovesManagerAcrossAgencies(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	nord, managerID := h.createAgency(t, "acme", "Agence Nord", "nord@example.com")
	sud, _ := h.createAgency(t, "acme", "Agence Sud", "sud@example.com")

	res, err := h.svc.UpdateAgency(ctx, companyAdmin("acme"), UpdateAgencyInput{
		CompanyID: "acme",
		AgencyID:  nord,
		Manager:   &ManagerPatchInput{AccountID: managerID, Name: ptr("Awa T."), MoveToAgencyID: ptr(sud)},
	})
	require.NoError(t, err)
	assert.Nil(t, res.ResetLink)

	records, err := h.docs.FindAgencyRecords(ctx, "acme", managerID)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, sud, *records[0].AgencyID)
	assert.Equal(t, "Awa T.", records[0].Name)
	assert.Equal(t, domain.RoleBranchManager, records[0].Role)
	assert.Equal(t, "nord@example.com", records[0].Email)

	dir, err := h.docs.GetDirectoryRecord(ctx, managerID)
	require.NoError(t, err)
	assert.Equal(t, sud, *dir.AgencyID)
	assert.Equal(t, "Awa T.", dir.Name)

	account, err := h.ids.GetAccount(ctx, managerID)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleBranchManager, account.Claims.Role)
	assert.Equal(t, sud, *account.Claims.AgencyID)
	assert.Equal(t, "Awa T.", account.DisplayName)
}

func TestUpdateAgencyEmailChangeIssuesResetLink(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	agencyID, managerID := h.createAgency(t, "acme", "Agence Nord", "nord@example.com")

	res, err := h.svc.UpdateAgency(ctx, companyAdmin("acme"), UpdateAgencyInput{
		CompanyID: "acme",
		AgencyID:  agencyID,
		Manager:   &ManagerPatchInput{AccountID: managerID, Email: ptr("Nord.Manager@Example.com"), Role: ptr(domain.RoleAgent)},
	})
	require.NoError(t, err)
	require.NotNil(t, res.ResetLink)
	assert.Contains(t, *res.ResetLink, "oobCode=")

	account, err := h.ids.GetAccount(ctx, managerID)
	require.NoError(t, err)
	assert.Equal(t, "nord.manager@example.com", account.Email)
	assert.False(t, account.EmailVerified)
	assert.False(t, account.Claims.EmailVerified)
	assert.Equal(t, domain.RoleAgent, account.Claims.Role)
	assert.Equal(t, agencyID, *account.Claims.AgencyID)

	company, err := h.docs.GetCompanyRecord(ctx, "acme", managerID)
	require.NoError(t, err)
	assert.Equal(t, "nord.manager@example.com", company.Email)
	assert.Equal(t, domain.RoleAgent, company.Role)

	// Same email in another case is not a change.
	res, err = h.svc.UpdateAgency(ctx, companyAdmin("acme"), UpdateAgencyInput{
		CompanyID: "acme",
		AgencyID:  agencyID,
		Manager:   &ManagerPatchInput{AccountID: managerID, Email: ptr("NORD.MANAGER@example.com")},
	})
	require.NoError(t, err)
	assert.Nil(t, res.ResetLink)
}

func TestUpdateAgencyDetachesManager(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	agencyID, managerID := h.createAgency(t, "acme", "Agence Nord", "nord@example.com")

	_, err := h.svc.UpdateAgency(ctx, companyAdmin("acme"), UpdateAgencyInput{
		CompanyID: "acme",
		AgencyID:  agencyID,
		Manager:   &ManagerPatchInput{AccountID: managerID, MoveToAgencyID: ptr("")},
	})
	require.NoError(t, err)

	roster, err := h.svc.ListAgencyStaff(ctx, platformAdmin, "acme", agencyID)
	require.NoError(t, err)
	assert.Empty(t, roster)

	dir, err := h.docs.GetDirectoryRecord(ctx, managerID)
	require.NoError(t, err)
	assert.Nil(t, dir.AgencyID)

	account, err := h.ids.GetAccount(ctx, managerID)
	require.NoError(t, err)
	assert.Nil(t, account.Claims.AgencyID)
	assert.Equal(t, domain.RoleBranchManager, account.Claims.Role)
}

func TestUpdateAgencyCombinesPatchAndManagerInOneCommit(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	agencyID, managerID := h.createAgency(t, "acme", "Agence Nord", "nord@example.com")

	_, err := h.svc.UpdateAgency(ctx, companyAdmin("acme"), UpdateAgencyInput{
		CompanyID: "acme",
		AgencyID:  agencyID,
		Agency:    &AgencyPatchInput{Phone: ptr("+223 20 00 00 00")},
		Manager:   &ManagerPatchInput{AccountID: managerID, Phone: ptr("+223 70 00 00 00")},
	})
	require.NoError(t, err)

	agency, err := h.docs.GetAgency(ctx, "acme", agencyID)
	require.NoError(t, err)
	assert.Equal(t, "+223 20 00 00 00", agency.Phone)

	roster, err := h.docs.ListAgencyStaff(ctx, "acme", agencyID)
	require.NoError(t, err)
	require.Len(t, roster, 1)
	assert.Equal(t, "+223 70 00 00 00", roster[0].Phone)
}
