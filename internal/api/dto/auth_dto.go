package dto

import "time"

// LoginRequest payload.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// PasswordResetConfirmRequest payload for confirming reset. Token is the
// oobCode carried by the reset link.
type PasswordResetConfirmRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

// AuthResponse wraps issued session tokens.
type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// InvitationCheckRequest payload for POST /invitations/check.
type InvitationCheckRequest struct {
	Email string `json:"email"`
}
