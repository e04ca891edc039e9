package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/agency-service/internal/api/dto"
	"github.com/spec-kit/agency-service/internal/emailcheck"
	apperrors "github.com/spec-kit/agency-service/pkg/util/errorutil"
)

// InvitationHandler vets invitation addresses.
type InvitationHandler struct {
	emails *emailcheck.Validator
}

// NewInvitationHandler constructs handler.
func NewInvitationHandler(emails *emailcheck.Validator) *InvitationHandler {
	return &InvitationHandler{emails: emails}
}

// Check handles POST /invitations/check.
func (h *InvitationHandler) Check(c *fiber.Ctx) error {
	var req dto.InvitationCheckRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	email := strings.TrimSpace(req.Email)
	if err := h.emails.Validate(c.UserContext(), email); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"ok": true, "email": email}})
}
