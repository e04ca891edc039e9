package projection

import "github.com/spec-kit/agency-service/internal/domain"

// Fields is a sparse set of staff projection columns. Nil pointers are left
// untouched by a merge. ClearAgency sets the denormalized agency id to null
// and wins over AgencyID.
type Fields struct {
	Name        *string
	Email       *string
	Phone       *string
	Role        *domain.Role
	Status      *domain.StaffStatus
	AgencyID    *string
	ClearAgency bool
}

// FromProjection captures every column of p.
func FromProjection(p domain.StaffProjection) Fields {
	f := Fields{
		Name:   ptr(p.Name),
		Email:  ptr(p.Email),
		Phone:  ptr(p.Phone),
		Role:   ptr(p.Role),
		Status: ptr(p.Status),
	}
	if p.AgencyID != nil {
		f.AgencyID = ptr(*p.AgencyID)
	} else {
		f.ClearAgency = true
	}
	return f
}

// Overlay returns f with every set field of o applied on top.
func (f Fields) Overlay(o Fields) Fields {
	if o.Name != nil {
		f.Name = o.Name
	}
	if o.Email != nil {
		f.Email = o.Email
	}
	if o.Phone != nil {
		f.Phone = o.Phone
	}
	if o.Role != nil {
		f.Role = o.Role
	}
	if o.Status != nil {
		f.Status = o.Status
	}
	if o.ClearAgency {
		f.AgencyID = nil
		f.ClearAgency = true
	} else if o.AgencyID != nil {
		f.AgencyID = o.AgencyID
		f.ClearAgency = false
	}
	return f
}

// ApplyTo merges the set fields into p.
func (f Fields) ApplyTo(p *domain.StaffProjection) {
	if f.Name != nil {
		p.Name = *f.Name
	}
	if f.Email != nil {
		p.Email = *f.Email
	}
	if f.Phone != nil {
		p.Phone = *f.Phone
	}
	if f.Role != nil {
		p.Role = *f.Role
	}
	if f.Status != nil {
		p.Status = *f.Status
	}
	if f.ClearAgency {
		p.AgencyID = nil
	} else if f.AgencyID != nil {
		id := *f.AgencyID
		p.AgencyID = &id
	}
}

func ptr[T any](v T) *T {
	return &v
}
