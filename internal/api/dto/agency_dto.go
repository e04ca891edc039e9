package dto

import (
	"time"

	"github.com/spec-kit/agency-service/internal/domain"
	"github.com/spec-kit/agency-service/internal/service"
)

// CreateAgencyRequest payload for POST /companies/:companyId/agencies.
type CreateAgencyRequest struct {
	Agency  service.AgencyFields  `json:"agency"`
	Manager service.ManagerFields `json:"manager"`
}

// UpdateAgencyRequest payload for PATCH /companies/:companyId/agencies/:agencyId.
type UpdateAgencyRequest struct {
	Agency  *service.AgencyPatchInput  `json:"agency"`
	Manager *service.ManagerPatchInput `json:"manager"`
}

// DeleteAgencyRequest payload for DELETE /companies/:companyId/agencies/:agencyId.
type DeleteAgencyRequest struct {
	Disposition        domain.Disposition `json:"disposition"`
	TransferToAgencyID *string            `json:"transferToAgencyId"`
	AllowDeleteUsers   bool               `json:"allowDeleteUsers"`
}

// AgencyResponse is the public shape of an agency.
type AgencyResponse struct {
	ID           string    `json:"id"`
	CompanyID    string    `json:"companyId"`
	Name         string    `json:"name"`
	NameKey      string    `json:"nameKey"`
	City         string    `json:"city"`
	Country      string    `json:"country"`
	Address      string    `json:"address"`
	Phone        string    `json:"phone"`
	Status       string    `json:"status"`
	IsHeadOffice bool      `json:"isHeadOffice"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// StaffResponse is the public shape of a staff projection.
type StaffResponse struct {
	AccountID string    `json:"accountId"`
	CompanyID string    `json:"companyId"`
	AgencyID  *string   `json:"agencyId"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Role      string    `json:"role"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewAgencyResponse converts a domain agency.
func NewAgencyResponse(a *domain.Agency) AgencyResponse {
	return AgencyResponse{
		ID:           a.ID,
		CompanyID:    a.CompanyID,
		Name:         a.Name,
		NameKey:      a.NameKey,
		City:         a.City,
		Country:      a.Country,
		Address:      a.Address,
		Phone:        a.Phone,
		Status:       string(a.Status),
		IsHeadOffice: a.IsHeadOffice,
		CreatedAt:    a.CreatedAt,
		UpdatedAt:    a.UpdatedAt,
	}
}

// NewStaffResponses converts a roster.
func NewStaffResponses(staff []domain.StaffProjection) []StaffResponse {
	out := make([]StaffResponse, 0, len(staff))
	for _, p := range staff {
		out = append(out, StaffResponse{
			AccountID: p.AccountID,
			CompanyID: p.CompanyID,
			AgencyID:  p.AgencyID,
			Name:      p.Name,
			Email:     p.Email,
			Phone:     p.Phone,
			Role:      string(p.Role),
			Status:    string(p.Status),
			CreatedAt: p.CreatedAt,
			UpdatedAt: p.UpdatedAt,
		})
	}
	return out
}
