package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/agency-service/internal/domain"
	"github.com/spec-kit/agency-service/internal/identity"
	"github.com/spec-kit/agency-service/internal/projection"
	"github.com/spec-kit/agency-service/internal/repository"
)

// ProvisionInput describes the staff member to provision.
type ProvisionInput struct {
	CompanyID string
	AgencyID  *string
	Name      string
	Email     string
	Phone     string
	Role      domain.Role
}

// ProvisionResult is returned by Provision.
type ProvisionResult struct {
	AccountID      string `json:"accountId"`
	ResetLink      string `json:"resetLink"`
	ReusedExisting bool   `json:"reusedExisting"`
}

// ProjectionStore is the part of the document store provisioning needs.
type ProjectionStore interface {
	repository.StaffProjectionRepository
	repository.BatchCommitter
}

// Provisioner resolves an identity account for an email and writes the
// member's staff projections.
type Provisioner struct {
	identity  identity.Provider
	documents ProjectionStore
	logger    *zap.Logger
}

// NewProvisioner builds a Provisioner.
func NewProvisioner(provider identity.Provider, documents ProjectionStore, logger *zap.Logger) *Provisioner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provisioner{identity: provider, documents: documents, logger: logger}
}

// Provision reuses the account owning in.Email or creates an unverified one,
// replaces its claims, revokes its sessions, issues a credential reset link
// and writes the three projection copies in one batch. A reused account is
// re-enabled and loses the roster copies of any company it previously
// belonged to.
//
// Provider errors other than a missing account are returned unchanged. A
// failed projection commit does not undo the identity steps; calling
// Provision again converges both systems.
func (p *Provisioner) Provision(ctx context.Context, in ProvisionInput) (*ProvisionResult, error) {
	email := identity.NormalizeEmail(in.Email)
	name := strings.TrimSpace(in.Name)

	account, reused, err := p.resolveAccount(ctx, email, name, in.Phone)
	if err != nil {
		return nil, err
	}

	prior := account.Claims
	if reused && account.Disabled {
		if _, err := p.identity.UpdateAccount(ctx, account.ID, domain.AccountUpdate{Disabled: ptr(false)}); err != nil {
			return nil, err
		}
	}

	claims := domain.Claims{
		Role:          in.Role,
		CompanyID:     in.CompanyID,
		AgencyID:      in.AgencyID,
		EmailVerified: false,
	}
	if err := p.identity.SetClaims(ctx, account.ID, claims); err != nil {
		return nil, err
	}
	if err := p.identity.RevokeSessions(ctx, account.ID); err != nil {
		return nil, err
	}

	batch := projection.NewBatch()
	if reused {
		// A reused member keeps a single agency roster record.
		records, err := p.documents.FindAgencyRecords(ctx, in.CompanyID, account.ID)
		if err != nil {
			return nil, fmt.Errorf("find agency records: %w", err)
		}
		for _, rec := range records {
			if rec.AgencyID == nil || (in.AgencyID != nil && *rec.AgencyID == *in.AgencyID) {
				continue
			}
			batch.Delete(projection.Agency(in.CompanyID, *rec.AgencyID, account.ID))
		}
		if prior.CompanyID != "" && prior.CompanyID != in.CompanyID {
			if err := p.stageLeavePriorCompany(ctx, batch, prior.CompanyID, account.ID); err != nil {
				return nil, err
			}
		}
	}
	projection.StageMember(batch, projection.Member{
		AccountID: account.ID,
		CompanyID: in.CompanyID,
		AgencyID:  in.AgencyID,
		Name:      name,
		Email:     email,
		Phone:     in.Phone,
		Role:      in.Role,
	})

	// The link is issued before the commit so that a provider failure
	// leaves no projection behind.
	link, err := p.identity.GenerateResetLink(ctx, email)
	if err != nil {
		return nil, err
	}
	if err := p.documents.Commit(ctx, batch); err != nil {
		return nil, fmt.Errorf("write staff projections: %w", err)
	}

	p.logger.Info("staff provisioned",
		zap.String("account_id", account.ID),
		zap.String("company_id", in.CompanyID),
		zap.Bool("reused_existing", reused))

	return &ProvisionResult{AccountID: account.ID, ResetLink: link, ReusedExisting: reused}, nil
}

// stageLeavePriorCompany removes the roster copies a company that no longer
// holds the account still keeps for it.
func (p *Provisioner) stageLeavePriorCompany(ctx context.Context, batch *projection.Batch, companyID, accountID string) error {
	records, err := p.documents.FindAgencyRecords(ctx, companyID, accountID)
	if err != nil {
		return fmt.Errorf("find prior company records: %w", err)
	}
	projection.StageLeaveCompany(batch, companyID, accountID, agencyIDs(records))
	return nil
}

func agencyIDs(records []domain.StaffProjection) []string {
	ids := make([]string, 0, len(records))
	for _, rec := range records {
		if rec.AgencyID != nil {
			ids = append(ids, *rec.AgencyID)
		}
	}
	return ids
}

func (p *Provisioner) resolveAccount(ctx context.Context, email, name, phone string) (*domain.Account, bool, error) {
	account, err := p.identity.GetAccountByEmail(ctx, email)
	if err == nil {
		return account, true, nil
	}
	if !errors.Is(err, identity.ErrAccountNotFound) {
		return nil, false, err
	}

	account, err = p.identity.CreateAccount(ctx, domain.NewAccount{Email: email, DisplayName: name, Phone: phone})
	if errors.Is(err, identity.ErrEmailTaken) {
		// Lost a race with a concurrent provisioning of the same email.
		account, err = p.identity.GetAccountByEmail(ctx, email)
		if err != nil {
			return nil, false, err
		}
		return account, true, nil
	}
	if err != nil {
		return nil, false, err
	}
	return account, false, nil
}
