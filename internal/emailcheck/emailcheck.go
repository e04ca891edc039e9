// Package emailcheck vets invitation addresses before a person is invited.
package emailcheck

import (
	"context"
	"net"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/spec-kit/agency-service/pkg/util/errorutil"
)

var validate = validator.New()

// MXResolver looks up mail-exchange records. *net.Resolver satisfies it.
type MXResolver interface {
	LookupMX(ctx context.Context, name string) ([]*net.MX, error)
}

// Validator applies the syntax, disposable-domain and MX checks.
type Validator struct {
	resolver   MXResolver
	disposable map[string]struct{}
	timeout    time.Duration
}

// New builds a validator. extraDisposable extends the built-in denylist.
func New(resolver MXResolver, extraDisposable []string, timeout time.Duration) *Validator {
	if resolver == nil {
		resolver = net.DefaultResolver
	}
	deny := make(map[string]struct{}, len(disposableDomains)+len(extraDisposable))
	for _, d := range disposableDomains {
		deny[d] = struct{}{}
	}
	for _, d := range extraDisposable {
		deny[strings.ToLower(strings.TrimSpace(d))] = struct{}{}
	}
	return &Validator{resolver: resolver, disposable: deny, timeout: timeout}
}

// CheckSyntax reports invalid-argument unless email has the shape
// local@domain.tld.
func CheckSyntax(email string) error {
	email = strings.TrimSpace(email)
	if err := validate.Var(email, "required,email"); err != nil {
		return apperrors.NewValidationError("invalid email address", map[string]any{"email": email})
	}
	domain := Domain(email)
	dot := strings.LastIndex(domain, ".")
	if dot <= 0 || len(domain)-dot-1 < 2 {
		return apperrors.NewValidationError("email domain must include a top-level domain", map[string]any{"email": email})
	}
	return nil
}

// Domain returns the lower-cased part after the last '@'.
func Domain(email string) string {
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(email[at+1:]))
}

// Validate runs every check in order and returns the first failure.
func (v *Validator) Validate(ctx context.Context, email string) error {
	if err := CheckSyntax(email); err != nil {
		return err
	}
	domain := Domain(email)
	if v.IsDisposable(domain) {
		return apperrors.NewFailedPrecondition("disposable email domains are not accepted", map[string]any{"domain": domain})
	}

	if v.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, v.timeout)
		defer cancel()
	}
	records, err := v.resolver.LookupMX(ctx, domain)
	if err != nil || len(records) == 0 {
		details := map[string]any{"domain": domain}
		if err != nil {
			details["reason"] = err.Error()
		}
		return apperrors.NewFailedPrecondition("email domain cannot receive mail", details)
	}
	return nil
}

// IsDisposable reports whether domain or one of its parents is denylisted.
func (v *Validator) IsDisposable(domain string) bool {
	domain = strings.ToLower(domain)
	for domain != "" {
		if _, ok := v.disposable[domain]; ok {
			return true
		}
		dot := strings.Index(domain, ".")
		if dot < 0 {
			break
		}
		domain = domain[dot+1:]
	}
	return false
}
