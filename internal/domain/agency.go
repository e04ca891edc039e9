package domain

import "time"

// AgencyStatus enumerates agency lifecycle states.
type AgencyStatus string

const (
	AgencyStatusActive   AgencyStatus = "active"
	AgencyStatusInactive AgencyStatus = "inactive"
)

// Agency is a company branch. NameKey is unique per company.
type Agency struct {
	ID           string
	CompanyID    string
	Name         string
	NameKey      string
	City         string
	Country      string
	Address      string
	Phone        string
	Status       AgencyStatus
	IsHeadOffice bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// AgencyPatch carries optional agency field updates.
type AgencyPatch struct {
	Name         *string
	City         *string
	Country      *string
	Address      *string
	Phone        *string
	Status       *AgencyStatus
	IsHeadOffice *bool
}

// IsEmpty reports whether the patch changes nothing.
func (p AgencyPatch) IsEmpty() bool {
	return p.Name == nil && p.City == nil && p.Country == nil && p.Address == nil &&
		p.Phone == nil && p.Status == nil && p.IsHeadOffice == nil
}

// Apply merges the patch into the agency and recomputes NameKey on rename.
func (p AgencyPatch) Apply(a *Agency) {
	if p.Name != nil {
		a.Name = *p.Name
		a.NameKey = NameKey(*p.Name)
	}
	if p.City != nil {
		a.City = *p.City
	}
	if p.Country != nil {
		a.Country = *p.Country
	}
	if p.Address != nil {
		a.Address = *p.Address
	}
	if p.Phone != nil {
		a.Phone = *p.Phone
	}
	if p.Status != nil {
		a.Status = *p.Status
	}
	if p.IsHeadOffice != nil {
		a.IsHeadOffice = *p.IsHeadOffice
	}
}
