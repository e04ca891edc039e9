package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/agency-service/internal/auth"
	"github.com/spec-kit/agency-service/internal/config"
	"github.com/spec-kit/agency-service/internal/domain"
	"github.com/spec-kit/agency-service/internal/identity"
	apperrors "github.com/spec-kit/agency-service/pkg/util/errorutil"
)

// AuthService issues sessions for identity accounts and completes the
// credential reset flow started by provisioning.
type AuthService struct {
	credentials    identity.Credentials
	tokenMgr       *auth.TokenManager
	minPasswordLen int
	logger         *zap.Logger
}

// AuthDependencies encapsulates collaborators for the auth service.
type AuthDependencies struct {
	Credentials identity.Credentials
	Logger      *zap.Logger
}

// NewAuthService builds the service.
func NewAuthService(cfg config.Config, deps AuthDependencies) *AuthService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		credentials:    deps.Credentials,
		tokenMgr:       auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes),
		minPasswordLen: cfg.Identity.MinPasswordLength,
		logger:         logger,
	}
}

// Login verifies credentials and returns a session token carrying the
// account's claims.
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.Account, string, time.Time, error) {
	account, err := s.credentials.VerifyPassword(ctx, email, password)
	if err != nil {
		switch {
		case errors.Is(err, identity.ErrInvalidCredentials):
			return nil, "", time.Time{}, apperrors.NewUnauthorized("invalid credentials")
		case errors.Is(err, identity.ErrAccountDisabled):
			return nil, "", time.Time{}, apperrors.NewForbidden("account disabled")
		}
		return nil, "", time.Time{}, apperrors.NewInternalError(err)
	}
	token, exp, err := s.tokenMgr.GenerateToken(account)
	if err != nil {
		return nil, "", time.Time{}, apperrors.NewInternalError(err)
	}
	return account, token, exp, nil
}

// ConfirmPasswordReset consumes a reset token and sets the new password.
func (s *AuthService) ConfirmPasswordReset(ctx context.Context, token, newPassword string) error {
	if len(newPassword) < s.minPasswordLen {
		return apperrors.NewValidationError("password too short", map[string]any{"minLength": s.minPasswordLen})
	}
	if err := s.credentials.ConfirmPasswordReset(ctx, token, newPassword); err != nil {
		if errors.Is(err, identity.ErrResetTokenInvalid) || errors.Is(err, identity.ErrAccountNotFound) {
			return apperrors.NewFailedPrecondition("reset token expired or used", nil)
		}
		return apperrors.NewInternalError(err)
	}
	s.logger.Info("password reset confirmed")
	return nil
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}
