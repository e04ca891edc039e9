package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/agency-service/internal/config"
	"github.com/spec-kit/agency-service/internal/domain"
	"github.com/spec-kit/agency-service/internal/events"
	"github.com/spec-kit/agency-service/internal/identity"
	"github.com/spec-kit/agency-service/internal/projection"
	apperrors "github.com/spec-kit/agency-service/pkg/util/errorutil"
)

func TestCreateAgencyReusesManagerAcrossAgencies(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	first, err := h.svc.CreateAgency(ctx, companyAdmin("acme"), CreateAgencyInput{
		CompanyID: "acme",
		Agency:    AgencyFields{Name: "Siège Bamako", City: "Bamako", Country: "Mali"},
		Manager:   ManagerFields{Name: "Awa Traoré", Email: "awa@example.com"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, first.AgencyID)
	assert.False(t, first.Manager.ReusedExisting)
	assert.NotEmpty(t, first.Manager.ResetLink)

	second, err := h.svc.CreateAgency(ctx, companyAdmin("acme"), CreateAgencyInput{
		CompanyID: "acme",
		Agency:    AgencyFields{Name: "Agence Kayes", City: "Kayes", Country: "Mali"},
		Manager:   ManagerFields{Name: "Awa Traoré", Email: "awa@example.com"},
	})
	require.NoError(t, err)
	assert.NotEqual(t, first.AgencyID, second.AgencyID)
	assert.True(t, second.Manager.ReusedExisting)
	assert.Equal(t, first.Manager.AccountID, second.Manager.AccountID)

	agency, err := h.docs.GetAgency(ctx, "acme", first.AgencyID)
	require.NoError(t, err)
	assert.Equal(t, "siege bamako", agency.NameKey)
	assert.Equal(t, domain.AgencyStatusActive, agency.Status)

	account, err := h.ids.GetAccount(ctx, first.Manager.AccountID)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleBranchManager, account.Claims.Role)
	assert.Equal(t, second.AgencyID, *account.Claims.AgencyID)

	assert.Contains(t, h.eventTypes(), events.EventAgencyCreated)
	assert.Contains(t, h.eventTypes(), events.EventStaffProvisioned)
	assert.Contains(t, h.eventTypes(), events.EventResetLinkIssued)
}

func TestCreateAgencyRejectsDuplicateNameKey(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.createAgency(t, "acme", "Agence Nord", "nord@example.com")

	for _, name := range []string{"agence   nord", "AGENCE NÖRD", " Agence Nord "} {
		_, err := h.svc.CreateAgency(ctx, platformAdmin, CreateAgencyInput{
			CompanyID: "acme",
			Agency:    AgencyFields{Name: name, City: "Mopti", Country: "Mali"},
			Manager:   ManagerFields{Name: "Other", Email: "other@example.com"},
		})
		requireCode(t, err, apperrors.CodeAlreadyExists)
	}

	// Another company may reuse the name.
	_, err := h.svc.CreateAgency(ctx, platformAdmin, CreateAgencyInput{
		CompanyID: "globex",
		Agency:    AgencyFields{Name: "Agence Nord", City: "Mopti", Country: "Mali"},
		Manager:   ManagerFields{Name: "Other", Email: "other@example.com"},
	})
	assert.NoError(t, err)
}

func TestCreateAgencyAuthorization(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	in := CreateAgencyInput{
		CompanyID: "globex",
		Agency:    AgencyFields{Name: "Agence Sud", City: "Sikasso", Country: "Mali"},
		Manager:   ManagerFields{Name: "Awa", Email: "awa@example.com"},
	}

	_, err := h.svc.CreateAgency(ctx, companyAdmin("acme"), in)
	requireCode(t, err, apperrors.CodePermissionDenied)

	_, err = h.svc.CreateAgency(ctx, nil, in)
	requireCode(t, err, apperrors.CodeUnauthenticated)

	manager := &domain.Caller{AccountID: "m1", Claims: domain.Claims{Role: domain.RoleBranchManager, CompanyID: "globex"}}
	_, err = h.svc.CreateAgency(ctx, manager, in)
	requireCode(t, err, apperrors.CodePermissionDenied)

	_, err = h.ids.GetAccountByEmail(ctx, "awa@example.com")
	assert.ErrorIs(t, err, identity.ErrAccountNotFound)
}

func TestCreateAgencyValidatesBeforeWriting(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	_, err := h.svc.CreateAgency(ctx, platformAdmin, CreateAgencyInput{
		CompanyID: "acme",
		Agency:    AgencyFields{Name: "Agence Est", Country: "Mali"},
		Manager:   ManagerFields{Name: "Awa", Email: "awa@example.com"},
	})
	requireCode(t, err, apperrors.CodeInvalidArgument)
	assert.Equal(t, "required", apperrors.ToDomainError(err).Details["agency.city"])

	for _, email := range []string{"awa", "awa@example", "awa@@example.com", "awa@example.c"} {
		_, err = h.svc.CreateAgency(ctx, platformAdmin, CreateAgencyInput{
			CompanyID: "acme",
			Agency:    AgencyFields{Name: "Agence Est", City: "Gao", Country: "Mali"},
			Manager:   ManagerFields{Name: "Awa", Email: email},
		})
		requireCode(t, err, apperrors.CodeInvalidArgument)
	}

	_, err = h.docs.FindAgencyByNameKey(ctx, "acme", "agence est")
	assert.Error(t, err)
}

func TestCreateAgencyRollsBackWhenProvisioningFails(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.ids.Fail = func(op, _ string) error {
		if op == identity.OpCreateAccount {
			return errors.New("provider rejected the account")
		}
		return nil
	}

	_, err := h.svc.CreateAgency(ctx, platformAdmin, CreateAgencyInput{
		CompanyID: "acme",
		Agency:    AgencyFields{Name: "Agence Ouest", City: "Kita", Country: "Mali"},
		Manager:   ManagerFields{Name: "Awa", Email: "awa@example.com"},
	})
	requireCode(t, err, apperrors.CodeInternal)

	_, err = h.docs.FindAgencyByNameKey(ctx, "acme", "agence ouest")
	assert.Error(t, err)

	// The name is free again once the provider recovers.
	h.ids.Fail = nil
	agencyID, _ := h.createAgency(t, "acme", "Agence Ouest", "awa@example.com")
	_, err = h.svc.GetAgency(ctx, platformAdmin, "acme", agencyID)
	assert.NoError(t, err)
}

func TestCreateAgencyRollbackLookupIsNotFound(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.svc.newID = func() string { return "agency-1" }
	h.docs.BeforeCommit = func([]projection.Op) error { return errors.New("batch rejected") }

	_, err := h.svc.CreateAgency(ctx, platformAdmin, CreateAgencyInput{
		CompanyID: "acme",
		Agency:    AgencyFields{Name: "Agence Centre", City: "Ségou", Country: "Mali"},
		Manager:   ManagerFields{Name: "Awa", Email: "awa@example.com"},
	})
	requireCode(t, err, apperrors.CodeInternal)

	_, err = h.svc.GetAgency(ctx, platformAdmin, "acme", "agency-1")
	requireCode(t, err, apperrors.CodeNotFound)
}

func TestCreateAgencyStrictEmailGate(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, func(cfg *config.Config) { cfg.Orchestrator.StrictEmailProvisioning = true })

	_, err := h.svc.CreateAgency(ctx, platformAdmin, CreateAgencyInput{
		CompanyID: "acme",
		Agency:    AgencyFields{Name: "Agence Nord", City: "Tombouctou", Country: "Mali"},
		Manager:   ManagerFields{Name: "Awa", Email: "awa@no-mx.example.org"},
	})
	requireCode(t, err, apperrors.CodeFailedPrecondition)

	_, err = h.svc.CreateAgency(ctx, platformAdmin, CreateAgencyInput{
		CompanyID: "acme",
		Agency:    AgencyFields{Name: "Agence Nord", City: "Tombouctou", Country: "Mali"},
		Manager:   ManagerFields{Name: "Awa", Email: "awa@example.com"},
	})
	assert.NoError(t, err)
}

func TestCreateAgencyResetLinkFailureLeavesNoRoster(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.svc.newID = func() string { return "agency-1" }
	h.ids.Fail = func(op, _ string) error {
		if op == identity.OpGenerateResetLink {
			return errors.New("link service down")
		}
		return nil
	}

	_, err := h.svc.CreateAgency(ctx, platformAdmin, CreateAgencyInput{
		CompanyID: "acme",
		Agency:    AgencyFields{Name: "Agence Centre", City: "Ségou", Country: "Mali"},
		Manager:   ManagerFields{Name: "Awa", Email: "awa@example.com"},
	})
	requireCode(t, err, apperrors.CodeInternal)
	h.ids.Fail = nil

	_, err = h.svc.GetAgency(ctx, platformAdmin, "acme", "agency-1")
	requireCode(t, err, apperrors.CodeNotFound)
	roster, err := h.docs.ListAgencyStaff(ctx, "acme", "agency-1")
	require.NoError(t, err)
	assert.Empty(t, roster)

	account, err := h.ids.GetAccountByEmail(ctx, "awa@example.com")
	require.NoError(t, err)
	_, err = h.docs.GetCompanyRecord(ctx, "acme", account.ID)
	assert.Error(t, err)
}
