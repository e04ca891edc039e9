package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spec-kit/agency-service/internal/auth"
	"github.com/spec-kit/agency-service/internal/domain"
	"github.com/spec-kit/agency-service/internal/events"
	"github.com/spec-kit/agency-service/internal/identity"
	"github.com/spec-kit/agency-service/internal/projection"
	"github.com/spec-kit/agency-service/internal/repository"
	apperrors "github.com/spec-kit/agency-service/pkg/util/errorutil"
)

// DeleteAgencyInput is the deletion request.
type DeleteAgencyInput struct {
	CompanyID          string             `json:"companyId" validate:"required"`
	AgencyID           string             `json:"agencyId" validate:"required"`
	Disposition        domain.Disposition `json:"disposition" validate:"required,oneof=detach transfer disable delete"`
	TransferToAgencyID *string            `json:"transferToAgencyId"`
	AllowDeleteUsers   bool               `json:"allowDeleteUsers"`
}

// MemberFailure reports why one member could not be processed.
type MemberFailure struct {
	AccountID string `json:"accountId"`
	Code      string `json:"code"`
	Message   string `json:"message"`
}

// CascadeReport summarizes a deletion cascade. Every listed member appears
// in exactly one of the outcome lists.
type CascadeReport struct {
	StaffCount  int             `json:"staffCount"`
	Transferred []string        `json:"transferred"`
	Detached    []string        `json:"detached"`
	Disabled    []string        `json:"disabled"`
	Deleted     []string        `json:"deleted"`
	Failed      []MemberFailure `json:"failed"`
}

type cascadePlan struct {
	companyID   string
	agencyID    string
	disposition domain.Disposition
	target      string
	allowDelete bool
	batch       *projection.Batch
}

// DeleteAgency applies the disposition to every member of the agency, at
// most fanout members at a time, commits the staged projection changes in
// one batch and then removes the agency. Member failures are reported, not
// returned; the agency is removed regardless. If the batch cannot be
// committed the agency is kept and the call fails with internal.
func (s *AgencyService) DeleteAgency(ctx context.Context, caller *domain.Caller, in DeleteAgencyInput) (report *CascadeReport, err error) {
	defer func() { s.observe("delete_agency", err) }()

	if err := auth.Authorize(caller, in.CompanyID); err != nil {
		return nil, err
	}
	if err := validateInput(in); err != nil {
		return nil, err
	}
	if _, err := s.loadAgency(ctx, in.CompanyID, in.AgencyID); err != nil {
		return nil, err
	}

	plan := cascadePlan{
		companyID:   in.CompanyID,
		agencyID:    in.AgencyID,
		disposition: in.Disposition,
		allowDelete: in.AllowDeleteUsers,
		batch:       projection.NewBatch(),
	}
	if in.Disposition == domain.DispositionTransfer {
		if in.TransferToAgencyID == nil || strings.TrimSpace(*in.TransferToAgencyID) == "" {
			return nil, apperrors.NewValidationError("transferToAgencyId is required for transfer", nil)
		}
		plan.target = strings.TrimSpace(*in.TransferToAgencyID)
		if plan.target == in.AgencyID {
			return nil, apperrors.NewValidationError("cannot transfer staff to the agency being deleted", nil)
		}
		if _, err := s.loadAgency(ctx, in.CompanyID, plan.target); err != nil {
			return nil, err
		}
	}

	members, err := s.documents.ListAgencyStaff(ctx, in.CompanyID, in.AgencyID)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	outcomes := make([]error, len(members))
	var g errgroup.Group
	g.SetLimit(s.fanout)
	for i := range members {
		member := members[i]
		g.Go(func() error {
			outcomes[i] = s.cascadeMember(ctx, plan, member)
			return nil
		})
	}
	_ = g.Wait()

	report = &CascadeReport{
		StaffCount:  len(members),
		Transferred: []string{},
		Detached:    []string{},
		Disabled:    []string{},
		Deleted:     []string{},
		Failed:      []MemberFailure{},
	}
	for i, member := range members {
		if memberErr := outcomes[i]; memberErr != nil {
			derr := apperrors.ToDomainError(memberErr)
			message := derr.Message
			if derr.Code == apperrors.CodeInternal {
				message = memberErr.Error()
			}
			report.Failed = append(report.Failed, MemberFailure{AccountID: member.AccountID, Code: derr.Code, Message: message})
			s.metrics.RecordCascadeMember(string(in.Disposition), derr.Code)
			s.logger.Warn("cascade member failed",
				zap.String("company_id", in.CompanyID),
				zap.String("agency_id", in.AgencyID),
				zap.String("account_id", member.AccountID),
				zap.String("disposition", string(in.Disposition)),
				zap.Error(memberErr))
			continue
		}
		s.metrics.RecordCascadeMember(string(in.Disposition), "ok")
		switch in.Disposition {
		case domain.DispositionTransfer:
			report.Transferred = append(report.Transferred, member.AccountID)
		case domain.DispositionDetach:
			report.Detached = append(report.Detached, member.AccountID)
		case domain.DispositionDisable:
			report.Disabled = append(report.Disabled, member.AccountID)
		case domain.DispositionDelete:
			report.Deleted = append(report.Deleted, member.AccountID)
		}
	}

	if plan.batch.Len() > 0 {
		if err := s.documents.Commit(ctx, plan.batch); err != nil {
			s.logger.Error("cascade commit failed, agency kept",
				zap.String("company_id", in.CompanyID),
				zap.String("agency_id", in.AgencyID),
				zap.Error(err))
			return nil, apperrors.NewInternalError(err)
		}
	}

	if err := s.documents.DeleteAgency(ctx, in.CompanyID, in.AgencyID); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewInternalError(err)
	}

	s.logger.Info("agency deleted",
		zap.String("company_id", in.CompanyID),
		zap.String("agency_id", in.AgencyID),
		zap.String("disposition", string(in.Disposition)),
		zap.Int("staff_count", report.StaffCount),
		zap.Int("failed", len(report.Failed)))
	s.publish(ctx, events.Event{
		Type:      events.EventAgencyDeleted,
		CompanyID: in.CompanyID,
		AgencyID:  in.AgencyID,
		ActorID:   caller.AccountID,
		Payload: events.AgencyDeletedPayload{
			Disposition: string(in.Disposition),
			StaffCount:  report.StaffCount,
			Succeeded:   report.StaffCount - len(report.Failed),
			Failed:      len(report.Failed),
		},
	})
	return report, nil
}

// cascadeMember runs the identity side of one member's disposition and, only
// once it succeeded, stages the member's projection changes. Accounts whose
// claims name another company are never modified.
func (s *AgencyService) cascadeMember(ctx context.Context, plan cascadePlan, member domain.StaffProjection) error {
	if plan.disposition == domain.DispositionDelete {
		return s.deleteMember(ctx, plan, member)
	}

	account, err := s.identity.GetAccount(ctx, member.AccountID)
	if err != nil {
		if errors.Is(err, identity.ErrAccountNotFound) {
			return apperrors.NewNotFound("account", map[string]any{"accountId": member.AccountID})
		}
		return err
	}
	if account.Claims.CompanyID != plan.companyID {
		return s.releaseForeignMember(ctx, plan, member, account.Claims.CompanyID)
	}

	var target *string
	changes := projection.Fields{}
	if plan.disposition == domain.DispositionTransfer {
		target = ptr(plan.target)
	}

	if err := s.identity.SetClaims(ctx, member.AccountID, mergeClaims(account.Claims, plan.companyID, target, nil)); err != nil {
		return err
	}
	if plan.disposition == domain.DispositionDisable {
		if _, err := s.identity.UpdateAccount(ctx, member.AccountID, domain.AccountUpdate{Disabled: ptr(true)}); err != nil {
			return err
		}
		changes.Status = ptr(domain.StaffStatusDisabled)
	}
	if err := s.identity.RevokeSessions(ctx, member.AccountID); err != nil {
		return err
	}

	projection.StageRelocate(plan.batch, member, []string{plan.agencyID}, target, changes)
	return nil
}

func (s *AgencyService) deleteMember(ctx context.Context, plan cascadePlan, member domain.StaffProjection) error {
	if !plan.allowDelete {
		return apperrors.NewFailedPrecondition("deleting users requires allowDeleteUsers", map[string]any{"accountId": member.AccountID})
	}

	account, err := s.identity.GetAccount(ctx, member.AccountID)
	switch {
	case errors.Is(err, identity.ErrAccountNotFound):
	case err != nil:
		return err
	case account.Claims.CompanyID != plan.companyID:
		return s.releaseForeignMember(ctx, plan, member, account.Claims.CompanyID)
	}

	agencies, err := s.memberAgencies(ctx, plan, member.AccountID)
	if err != nil {
		return err
	}
	if err := s.identity.DeleteAccount(ctx, member.AccountID); err != nil && !errors.Is(err, identity.ErrAccountNotFound) {
		return err
	}
	projection.StageRemove(plan.batch, plan.companyID, member.AccountID, agencies)
	return nil
}

// releaseForeignMember handles a roster record left behind for an account
// that another company has since provisioned. The account is not touched;
// only this company's copies are removed and the member is reported.
func (s *AgencyService) releaseForeignMember(ctx context.Context, plan cascadePlan, member domain.StaffProjection, owner string) error {
	agencies, err := s.memberAgencies(ctx, plan, member.AccountID)
	if err != nil {
		return err
	}
	projection.StageLeaveCompany(plan.batch, plan.companyID, member.AccountID, agencies)
	s.logger.Warn("stale roster record for account held by another company",
		zap.String("account_id", member.AccountID),
		zap.String("company_id", plan.companyID),
		zap.String("owner_company_id", owner))
	return apperrors.NewFailedPrecondition("account belongs to another company", map[string]any{"accountId": member.AccountID})
}

// memberAgencies lists every agency of the company holding a roster record
// for the account, starting with the agency being deleted.
func (s *AgencyService) memberAgencies(ctx context.Context, plan cascadePlan, accountID string) ([]string, error) {
	records, err := s.documents.FindAgencyRecords(ctx, plan.companyID, accountID)
	if err != nil {
		return nil, err
	}
	agencies := []string{plan.agencyID}
	for _, rec := range records {
		if rec.AgencyID != nil && *rec.AgencyID != plan.agencyID {
			agencies = append(agencies, *rec.AgencyID)
		}
	}
	return agencies, nil
}
