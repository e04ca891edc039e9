package projection

import "github.com/spec-kit/agency-service/internal/domain"

// Member is the full set of staff attributes written when a member is
// provisioned.
type Member struct {
	AccountID string
	CompanyID string
	AgencyID  *string
	Name      string
	Email     string
	Phone     string
	Role      domain.Role
}

// StageMember merges all three copies of a member. The agency roster copy is
// only written when the member is attached to an agency.
func StageMember(b *Batch, m Member) {
	f := Fields{
		Name:   ptr(m.Name),
		Email:  ptr(m.Email),
		Phone:  ptr(m.Phone),
		Role:   ptr(m.Role),
		Status: ptr(domain.StaffStatusActive),
	}
	if m.AgencyID != nil {
		f.AgencyID = ptr(*m.AgencyID)
	} else {
		f.ClearAgency = true
	}
	b.Merge(Directory(m.CompanyID, m.AccountID), f)
	b.Merge(Company(m.CompanyID, m.AccountID), f)
	if m.AgencyID != nil {
		b.Merge(Agency(m.CompanyID, *m.AgencyID, m.AccountID), f)
	}
}

// StageRelocate moves a member's agency roster record. Every record in
// fromAgencies other than target is deleted; the target record, when target
// is non-nil, is rebuilt from current overlaid with changes. The directory and
// company copies receive changes plus the new agency id.
func StageRelocate(b *Batch, current domain.StaffProjection, fromAgencies []string, target *string, changes Fields) {
	moved := changes
	if target != nil {
		moved = moved.Overlay(Fields{AgencyID: ptr(*target)})
	} else {
		moved = moved.Overlay(Fields{ClearAgency: true})
	}

	for _, agencyID := range fromAgencies {
		if target != nil && agencyID == *target {
			continue
		}
		b.Delete(Agency(current.CompanyID, agencyID, current.AccountID))
	}
	if target != nil {
		b.Merge(Agency(current.CompanyID, *target, current.AccountID), FromProjection(current).Overlay(moved))
	}
	b.Merge(Directory(current.CompanyID, current.AccountID), moved)
	b.Merge(Company(current.CompanyID, current.AccountID), moved)
}

// StageRemove deletes every copy of a member.
func StageRemove(b *Batch, companyID, accountID string, agencyIDs []string) {
	StageLeaveCompany(b, companyID, accountID, agencyIDs)
	b.Delete(Directory(companyID, accountID))
}

// StageLeaveCompany deletes the company roster copy and the given agency
// roster copies of a member. The directory copy is account-wide and is left
// to whichever company now holds the account.
func StageLeaveCompany(b *Batch, companyID, accountID string, agencyIDs []string) {
	for _, agencyID := range agencyIDs {
		b.Delete(Agency(companyID, agencyID, accountID))
	}
	b.Delete(Company(companyID, accountID))
}
