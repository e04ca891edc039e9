package auth

import (
	"errors"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/spec-kit/agency-service/internal/domain"
)

// TokenManager handles issuing and validating JWT tokens.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenManager builds a new manager.
func NewTokenManager(secret string, ttlMinutes int) *TokenManager {
	if ttlMinutes <= 0 {
		ttlMinutes = 60
	}
	return &TokenManager{secret: []byte(secret), ttl: time.Duration(ttlMinutes) * time.Minute, now: time.Now}
}

// Claims describes the JWT payload: the account claims set plus registered claims.
type Claims struct {
	Role          domain.Role `json:"role,omitempty"`
	CompanyID     string      `json:"companyId"`
	AgencyID      *string     `json:"agencyId"`
	EmailVerified bool        `json:"email_verified"`
	jwt.RegisteredClaims
}

// Caller converts the token claims into the orchestrator principal.
func (c *Claims) Caller() *domain.Caller {
	return &domain.Caller{
		AccountID: c.Subject,
		Claims: domain.Claims{
			Role:          c.Role,
			CompanyID:     c.CompanyID,
			AgencyID:      c.AgencyID,
			EmailVerified: c.EmailVerified,
		},
	}
}

// GenerateToken builds and signs a JWT carrying the account's current claims.
func (tm *TokenManager) GenerateToken(account *domain.Account) (string, time.Time, error) {
	issuedAt := tm.now()
	expiresAt := issuedAt.Add(tm.ttl)
	claims := &Claims{
		Role:          account.Claims.Role,
		CompanyID:     account.Claims.CompanyID,
		AgencyID:      account.Claims.AgencyID,
		EmailVerified: account.EmailVerified,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   account.ID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(tm.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expiresAt, nil
}

// ParseToken validates and returns claims.
func (tm *TokenManager) ParseToken(tokenStr string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return tm.secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid token claims")
	}
	if claims.Subject == "" {
		return nil, errors.New("token without subject")
	}
	return claims, nil
}
