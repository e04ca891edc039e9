package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/agency-service/internal/auth"
	"github.com/spec-kit/agency-service/internal/domain"
	"github.com/spec-kit/agency-service/internal/emailcheck"
	"github.com/spec-kit/agency-service/internal/events"
	"github.com/spec-kit/agency-service/internal/identity"
	"github.com/spec-kit/agency-service/internal/projection"
	"github.com/spec-kit/agency-service/internal/repository"
	apperrors "github.com/spec-kit/agency-service/pkg/util/errorutil"
)

// AgencyPatchInput carries optional agency field changes.
type AgencyPatchInput struct {
	Name         *string              `json:"name" validate:"omitempty,max=120"`
	City         *string              `json:"city" validate:"omitempty,max=120"`
	Country      *string              `json:"country" validate:"omitempty,max=120"`
	Address      *string              `json:"address" validate:"omitempty,max=255"`
	Phone        *string              `json:"phone" validate:"omitempty,max=32"`
	Status       *domain.AgencyStatus `json:"status" validate:"omitempty,oneof=active inactive"`
	IsHeadOffice *bool                `json:"isHeadOffice"`
}

// ManagerPatchInput reassigns or edits an existing staff member.
// MoveToAgencyID nil keeps the member in the updated agency; an empty string
// detaches the member from every agency.
type ManagerPatchInput struct {
	AccountID      string       `json:"accountId" validate:"required"`
	Name           *string      `json:"name" validate:"omitempty,max=120"`
	Email          *string      `json:"email"`
	Phone          *string      `json:"phone" validate:"omitempty,max=32"`
	Role           *domain.Role `json:"role" validate:"omitempty,oneof=company_admin branch_manager agent"`
	MoveToAgencyID *string      `json:"moveToAgencyId"`
}

// UpdateAgencyInput is the update request.
type UpdateAgencyInput struct {
	CompanyID string             `json:"companyId" validate:"required"`
	AgencyID  string             `json:"agencyId" validate:"required"`
	Agency    *AgencyPatchInput  `json:"agency"`
	Manager   *ManagerPatchInput `json:"manager"`
}

// UpdateAgencyResult is returned by UpdateAgency. ResetLink is set only when
// the manager's email changed.
type UpdateAgencyResult struct {
	OK        bool    `json:"ok"`
	ResetLink *string `json:"resetLink"`
}

func (p *AgencyPatchInput) patch() domain.AgencyPatch {
	trim := func(v *string) *string {
		if v == nil {
			return nil
		}
		return ptr(strings.TrimSpace(*v))
	}
	return domain.AgencyPatch{
		Name:         trim(p.Name),
		City:         trim(p.City),
		Country:      trim(p.Country),
		Address:      trim(p.Address),
		Phone:        trim(p.Phone),
		Status:       p.Status,
		IsHeadOffice: p.IsHeadOffice,
	}
}

// UpdateAgency patches an agency and optionally edits or relocates a staff
// member. All document writes land in one batch; identity calls happen
// before it and are safe to repeat.
func (s *AgencyService) UpdateAgency(ctx context.Context, caller *domain.Caller, in UpdateAgencyInput) (result *UpdateAgencyResult, err error) {
	defer func() { s.observe("update_agency", err) }()

	if err := auth.Authorize(caller, in.CompanyID); err != nil {
		return nil, err
	}
	if err := validateInput(in); err != nil {
		return nil, err
	}

	agency, err := s.loadAgency(ctx, in.CompanyID, in.AgencyID)
	if err != nil {
		return nil, err
	}

	var target *string
	if in.Manager != nil {
		target, err = s.resolveMoveTarget(ctx, in.CompanyID, in.AgencyID, in.Manager.MoveToAgencyID)
		if err != nil {
			return nil, err
		}
	}

	batch := projection.NewBatch()
	agencyPatched := false
	if in.Agency != nil {
		patch := in.Agency.patch()
		if patch.Name != nil && *patch.Name == "" {
			return nil, apperrors.NewValidationError("invalid input", map[string]any{"agency.name": "required"})
		}
		if !patch.IsEmpty() {
			if err := s.stageAgencyPatch(ctx, batch, agency, patch); err != nil {
				return nil, err
			}
			agencyPatched = true
		}
	}

	var newEmail string
	if in.Manager != nil {
		newEmail, err = s.stageManagerPatch(ctx, batch, in.CompanyID, *in.Manager, target)
		if err != nil {
			return nil, err
		}
	}

	if batch.Len() > 0 {
		if err := s.documents.Commit(ctx, batch); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return nil, apperrors.NewConflict("an agency with this name already exists", nil)
			}
			return nil, apperrors.NewInternalError(err)
		}
	}

	result = &UpdateAgencyResult{OK: true}
	if newEmail != "" {
		link, err := s.identity.GenerateResetLink(ctx, newEmail)
		if err != nil {
			return nil, apperrors.NewInternalError(err)
		}
		result.ResetLink = &link
		s.publishResetLink(ctx, in.CompanyID, in.AgencyID, in.Manager.AccountID, newEmail, link)
	}

	payload := events.AgencyUpdatedPayload{AgencyPatched: agencyPatched, EmailChanged: newEmail != ""}
	if in.Manager != nil {
		payload.ManagerID = in.Manager.AccountID
		if target != nil {
			payload.ManagerAgency = *target
		}
	}
	s.publish(ctx, events.Event{
		Type:      events.EventAgencyUpdated,
		CompanyID: in.CompanyID,
		AgencyID:  in.AgencyID,
		ActorID:   caller.AccountID,
		Payload:   payload,
	})
	return result, nil
}

// resolveMoveTarget returns the agency the manager ends up in, or nil when
// the manager is detached.
func (s *AgencyService) resolveMoveTarget(ctx context.Context, companyID, agencyID string, moveTo *string) (*string, error) {
	if moveTo == nil {
		return ptr(agencyID), nil
	}
	id := strings.TrimSpace(*moveTo)
	if id == "" {
		return nil, nil
	}
	if id != agencyID {
		if _, err := s.loadAgency(ctx, companyID, id); err != nil {
			return nil, err
		}
	}
	return &id, nil
}

func (s *AgencyService) stageAgencyPatch(ctx context.Context, batch *projection.Batch, agency *domain.Agency, patch domain.AgencyPatch) error {
	prevKey := agency.NameKey
	patch.Apply(agency)
	if agency.NameKey != prevKey {
		existing, err := s.documents.FindAgencyByNameKey(ctx, agency.CompanyID, agency.NameKey)
		switch {
		case err == nil && existing.ID != agency.ID:
			return apperrors.NewConflict("an agency with this name already exists", map[string]any{"name": agency.Name})
		case err != nil && !errors.Is(err, repository.ErrNotFound):
			return apperrors.NewInternalError(err)
		}
	}
	batch.UpdateAgency(*agency)
	return nil
}

// stageManagerPatch applies the identity side of a manager patch and stages
// the projection relocation. It returns the new email when it changed.
func (s *AgencyService) stageManagerPatch(ctx context.Context, batch *projection.Batch, companyID string, m ManagerPatchInput, target *string) (string, error) {
	account, err := s.identity.GetAccount(ctx, m.AccountID)
	if err != nil {
		if errors.Is(err, identity.ErrAccountNotFound) {
			return "", apperrors.NewNotFound("staff member", map[string]any{"accountId": m.AccountID})
		}
		return "", apperrors.NewInternalError(err)
	}
	if account.Claims.CompanyID != companyID {
		return "", apperrors.NewNotFound("staff member", map[string]any{"accountId": m.AccountID})
	}

	update := domain.AccountUpdate{Phone: m.Phone}
	changes := projection.Fields{Phone: m.Phone, Role: m.Role}
	if m.Name != nil {
		name := strings.TrimSpace(*m.Name)
		if name == "" {
			return "", apperrors.NewValidationError("invalid input", map[string]any{"manager.name": "required"})
		}
		update.DisplayName = &name
		changes.Name = &name
	}

	newEmail := ""
	if m.Email != nil {
		if err := emailcheck.CheckSyntax(*m.Email); err != nil {
			return "", err
		}
		email := identity.NormalizeEmail(*m.Email)
		if email != identity.NormalizeEmail(account.Email) {
			if s.strictEmail {
				if err := s.checkManagerEmail(ctx, email); err != nil {
					return "", err
				}
			}
			newEmail = email
			update.Email = &email
			update.EmailVerified = ptr(false)
			changes.Email = &email
		}
	}

	records, err := s.documents.FindAgencyRecords(ctx, companyID, m.AccountID)
	if err != nil {
		return "", apperrors.NewInternalError(err)
	}
	current, err := s.currentProjection(ctx, companyID, account, records)
	if err != nil {
		return "", err
	}

	if update.Email != nil || update.DisplayName != nil || update.Phone != nil {
		if _, err := s.identity.UpdateAccount(ctx, m.AccountID, update); err != nil {
			if errors.Is(err, identity.ErrEmailTaken) {
				return "", apperrors.NewConflict("email already in use", map[string]any{"email": newEmail})
			}
			return "", apperrors.NewInternalError(err)
		}
	}

	claims := mergeClaims(account.Claims, companyID, target, m.Role)
	if newEmail != "" {
		claims.EmailVerified = false
	}
	if err := s.identity.SetClaims(ctx, m.AccountID, claims); err != nil {
		return "", apperrors.NewInternalError(err)
	}
	if err := s.identity.RevokeSessions(ctx, m.AccountID); err != nil {
		return "", apperrors.NewInternalError(err)
	}

	from := make([]string, 0, len(records))
	for _, rec := range records {
		if rec.AgencyID != nil {
			from = append(from, *rec.AgencyID)
		}
	}
	projection.StageRelocate(batch, current, from, target, changes)

	s.logger.Info("manager updated",
		zap.String("company_id", companyID),
		zap.String("account_id", m.AccountID),
		zap.Strings("from_agencies", from),
		zap.Bool("detached", target == nil))
	return newEmail, nil
}

// currentProjection returns the most complete known projection of a member,
// falling back to the identity account when no copy exists yet.
func (s *AgencyService) currentProjection(ctx context.Context, companyID string, account *domain.Account, records []domain.StaffProjection) (domain.StaffProjection, error) {
	if len(records) > 0 {
		return records[0], nil
	}
	rec, err := s.documents.GetCompanyRecord(ctx, companyID, account.ID)
	if err == nil {
		return *rec, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return domain.StaffProjection{}, apperrors.NewInternalError(err)
	}
	status := domain.StaffStatusActive
	if account.Disabled {
		status = domain.StaffStatusDisabled
	}
	return domain.StaffProjection{
		AccountID: account.ID,
		CompanyID: companyID,
		Name:      account.DisplayName,
		Email:     account.Email,
		Phone:     account.Phone,
		Role:      account.Claims.Role,
		Status:    status,
	}, nil
}
