package domain

import "time"

// Role is the claim that scopes what an account may administer.
type Role string

const (
	RolePlatformAdmin Role = "platform_admin"
	RoleCompanyAdmin  Role = "company_admin"
	RoleBranchManager Role = "branch_manager"
	RoleAgent         Role = "agent"
)

// Claims are embedded in issued session tokens. They are stored on the
// account and replaced as a whole on every write.
type Claims struct {
	Role          Role    `json:"role,omitempty"`
	CompanyID     string  `json:"companyId"`
	AgencyID      *string `json:"agencyId"`
	EmailVerified bool    `json:"email_verified"`
}

// Account is an identity provider account.
type Account struct {
	ID            string
	Email         string
	DisplayName   string
	Phone         string
	EmailVerified bool
	Disabled      bool
	PasswordHash  string
	Claims        Claims
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewAccount holds the fields needed to create an account.
type NewAccount struct {
	Email       string
	DisplayName string
	Phone       string
}

// AccountUpdate carries optional profile changes.
type AccountUpdate struct {
	Email         *string
	DisplayName   *string
	Phone         *string
	EmailVerified *bool
	Disabled      *bool
}

// Caller is the authenticated principal invoking an orchestrator.
type Caller struct {
	AccountID string
	Claims    Claims
}
