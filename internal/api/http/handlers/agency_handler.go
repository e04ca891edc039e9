package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/agency-service/internal/api/dto"
	"github.com/spec-kit/agency-service/internal/auth"
	"github.com/spec-kit/agency-service/internal/service"
	apperrors "github.com/spec-kit/agency-service/pkg/util/errorutil"
)

// AgencyHandler exposes the agency orchestrators.
type AgencyHandler struct {
	agencies *service.AgencyService
}

// NewAgencyHandler constructs handler.
func NewAgencyHandler(agencies *service.AgencyService) *AgencyHandler {
	return &AgencyHandler{agencies: agencies}
}

// Create handles POST /companies/:companyId/agencies.
func (h *AgencyHandler) Create(c *fiber.Ctx) error {
	var req dto.CreateAgencyRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	caller, _ := auth.CallerFromContext(c)

	result, err := h.agencies.CreateAgency(c.UserContext(), caller, service.CreateAgencyInput{
		CompanyID: c.Params("companyId"),
		Agency:    req.Agency,
		Manager:   req.Manager,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": result})
}

// Get handles GET /companies/:companyId/agencies/:agencyId.
func (h *AgencyHandler) Get(c *fiber.Ctx) error {
	caller, _ := auth.CallerFromContext(c)
	agency, err := h.agencies.GetAgency(c.UserContext(), caller, c.Params("companyId"), c.Params("agencyId"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewAgencyResponse(agency)})
}

// Update handles PATCH /companies/:companyId/agencies/:agencyId.
func (h *AgencyHandler) Update(c *fiber.Ctx) error {
	var req dto.UpdateAgencyRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	caller, _ := auth.CallerFromContext(c)

	result, err := h.agencies.UpdateAgency(c.UserContext(), caller, service.UpdateAgencyInput{
		CompanyID: c.Params("companyId"),
		AgencyID:  c.Params("agencyId"),
		Agency:    req.Agency,
		Manager:   req.Manager,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": result})
}

// Delete handles DELETE /companies/:companyId/agencies/:agencyId.
func (h *AgencyHandler) Delete(c *fiber.Ctx) error {
	var req dto.DeleteAgencyRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return apperrors.NewValidationError("invalid payload", nil)
		}
	}
	caller, _ := auth.CallerFromContext(c)

	report, err := h.agencies.DeleteAgency(c.UserContext(), caller, service.DeleteAgencyInput{
		CompanyID:          c.Params("companyId"),
		AgencyID:           c.Params("agencyId"),
		Disposition:        req.Disposition,
		TransferToAgencyID: req.TransferToAgencyID,
		AllowDeleteUsers:   req.AllowDeleteUsers,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": report})
}

// ListStaff handles GET /companies/:companyId/agencies/:agencyId/staff.
func (h *AgencyHandler) ListStaff(c *fiber.Ctx) error {
	caller, _ := auth.CallerFromContext(c)
	staff, err := h.agencies.ListAgencyStaff(c.UserContext(), caller, c.Params("companyId"), c.Params("agencyId"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewStaffResponses(staff)})
}
