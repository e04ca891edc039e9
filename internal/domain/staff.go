package domain

import "time"

// StaffStatus describes the projection status of a staff member.
type StaffStatus string

const (
	StaffStatusActive   StaffStatus = "active"
	StaffStatusDisabled StaffStatus = "disabled"
)

// StaffProjection is one denormalized copy of a staff member. The same
// logical record lives in the global directory, the company roster and, when
// attached, the roster of exactly one agency.
type StaffProjection struct {
	AccountID string
	CompanyID string
	AgencyID  *string
	Name      string
	Email     string
	Phone     string
	Role      Role
	Status    StaffStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}
