package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/agency-service/internal/auth"
	"github.com/spec-kit/agency-service/internal/domain"
	"github.com/spec-kit/agency-service/internal/events"
	"github.com/spec-kit/agency-service/internal/repository"
	apperrors "github.com/spec-kit/agency-service/pkg/util/errorutil"
)

// AgencyFields are the agency attributes supplied on creation.
type AgencyFields struct {
	Name         string `json:"name" validate:"required,max=120"`
	City         string `json:"city" validate:"required,max=120"`
	Country      string `json:"country" validate:"required,max=120"`
	Address      string `json:"address" validate:"max=255"`
	Phone        string `json:"phone" validate:"max=32"`
	IsHeadOffice bool   `json:"isHeadOffice"`
}

// ManagerFields describe the agency manager to provision.
type ManagerFields struct {
	Name  string      `json:"name" validate:"required,max=120"`
	Email string      `json:"email" validate:"required"`
	Phone string      `json:"phone" validate:"max=32"`
	Role  domain.Role `json:"role" validate:"omitempty,oneof=company_admin branch_manager agent"`
}

// CreateAgencyInput is the creation request.
type CreateAgencyInput struct {
	CompanyID string        `json:"companyId" validate:"required"`
	Agency    AgencyFields  `json:"agency"`
	Manager   ManagerFields `json:"manager"`
}

// CreateAgencyResult is returned by CreateAgency.
type CreateAgencyResult struct {
	AgencyID string          `json:"agencyId"`
	Manager  ProvisionResult `json:"manager"`
}

func (in *CreateAgencyInput) normalize() {
	in.CompanyID = strings.TrimSpace(in.CompanyID)
	in.Agency.Name = strings.TrimSpace(in.Agency.Name)
	in.Agency.City = strings.TrimSpace(in.Agency.City)
	in.Agency.Country = strings.TrimSpace(in.Agency.Country)
	in.Agency.Address = strings.TrimSpace(in.Agency.Address)
	in.Agency.Phone = strings.TrimSpace(in.Agency.Phone)
	in.Manager.Name = strings.TrimSpace(in.Manager.Name)
	in.Manager.Email = strings.TrimSpace(in.Manager.Email)
	in.Manager.Phone = strings.TrimSpace(in.Manager.Phone)
	if in.Manager.Role == "" {
		in.Manager.Role = domain.RoleBranchManager
	}
}

// CreateAgency creates an agency and provisions its manager. The agency
// document is written first; if provisioning fails it is deleted again and
// the call fails with internal.
func (s *AgencyService) CreateAgency(ctx context.Context, caller *domain.Caller, in CreateAgencyInput) (result *CreateAgencyResult, err error) {
	defer func() { s.observe("create_agency", err) }()

	in.normalize()
	if err := auth.Authorize(caller, in.CompanyID); err != nil {
		return nil, err
	}
	if err := validateInput(in); err != nil {
		return nil, err
	}
	if err := s.checkManagerEmail(ctx, in.Manager.Email); err != nil {
		return nil, err
	}

	nameKey := domain.NameKey(in.Agency.Name)
	if _, err := s.documents.FindAgencyByNameKey(ctx, in.CompanyID, nameKey); err == nil {
		return nil, apperrors.NewConflict("an agency with this name already exists", map[string]any{"name": in.Agency.Name})
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewInternalError(err)
	}

	agency := &domain.Agency{
		ID:           s.newID(),
		CompanyID:    in.CompanyID,
		Name:         in.Agency.Name,
		NameKey:      nameKey,
		City:         in.Agency.City,
		Country:      in.Agency.Country,
		Address:      in.Agency.Address,
		Phone:        in.Agency.Phone,
		Status:       domain.AgencyStatusActive,
		IsHeadOffice: in.Agency.IsHeadOffice,
	}
	if err := s.documents.CreateAgency(ctx, agency); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.NewConflict("an agency with this name already exists", map[string]any{"name": in.Agency.Name})
		}
		return nil, apperrors.NewInternalError(err)
	}

	manager, err := s.provisioner.Provision(ctx, ProvisionInput{
		CompanyID: in.CompanyID,
		AgencyID:  ptr(agency.ID),
		Name:      in.Manager.Name,
		Email:     in.Manager.Email,
		Phone:     in.Manager.Phone,
		Role:      in.Manager.Role,
	})
	if err != nil {
		if delErr := s.documents.DeleteAgency(ctx, in.CompanyID, agency.ID); delErr != nil {
			s.logger.Warn("compensating agency delete failed",
				zap.String("company_id", in.CompanyID),
				zap.String("agency_id", agency.ID),
				zap.Error(delErr))
		}
		s.logger.Error("manager provisioning failed",
			zap.String("company_id", in.CompanyID),
			zap.String("agency_id", agency.ID),
			zap.Error(err))
		return nil, apperrors.NewInternalError(err)
	}

	s.publish(ctx, events.Event{
		Type:      events.EventAgencyCreated,
		CompanyID: in.CompanyID,
		AgencyID:  agency.ID,
		ActorID:   caller.AccountID,
		Payload:   agency,
	})
	s.publishProvisioned(ctx, caller, in.CompanyID, agency.ID, in.Manager.Email, in.Manager.Role, manager)

	return &CreateAgencyResult{AgencyID: agency.ID, Manager: *manager}, nil
}

func (s *AgencyService) publishProvisioned(ctx context.Context, caller *domain.Caller, companyID, agencyID, email string, role domain.Role, res *ProvisionResult) {
	s.publish(ctx, events.Event{
		Type:      events.EventStaffProvisioned,
		CompanyID: companyID,
		AgencyID:  agencyID,
		ActorID:   caller.AccountID,
		Payload: events.StaffProvisionedPayload{
			AccountID:      res.AccountID,
			Email:          email,
			Role:           string(role),
			ReusedExisting: res.ReusedExisting,
		},
	})
	s.publishResetLink(ctx, companyID, agencyID, res.AccountID, email, res.ResetLink)
}

func (s *AgencyService) publishResetLink(ctx context.Context, companyID, agencyID, accountID, email, link string) {
	s.publish(ctx, events.Event{
		Type:      events.EventResetLinkIssued,
		CompanyID: companyID,
		AgencyID:  agencyID,
		Payload: events.ResetLinkIssuedPayload{
			AccountID: accountID,
			Email:     email,
			ResetLink: link,
		},
	})
}
