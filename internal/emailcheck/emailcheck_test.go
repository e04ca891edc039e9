package emailcheck

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"

	apperrors "github.com/spec-kit/agency-service/pkg/util/errorutil"
)

type fakeResolver map[string][]*net.MX

func (f fakeResolver) LookupMX(_ context.Context, name string) ([]*net.MX, error) {
	records, ok := f[name]
	if !ok {
		return nil, &net.DNSError{Err: "no such host", Name: name, IsNotFound: true}
	}
	return records, nil
}

type erroringResolver struct{}

func (erroringResolver) LookupMX(context.Context, string) ([]*net.MX, error) {
	return nil, errors.New("i/o timeout")
}

func TestCheckSyntax(t *testing.T) {
	assert.NoError(t, CheckSyntax("awa@example.com"))
	assert.NoError(t, CheckSyntax("  awa.traore+ops@mail.example.ml "))

	for _, bad := range []string{"", "awa", "awa@", "@example.com", "awa@example", "awa@example.c", "a wa@example.com"} {
		assert.Equal(t, apperrors.CodeInvalidArgument, apperrors.CodeOf(CheckSyntax(bad)), bad)
	}
}

func TestValidate(t *testing.T) {
	resolver := fakeResolver{
		"example.com": {{Host: "mx.example.com.", Pref: 10}},
		"nomx.com":    {},
	}
	v := New(resolver, []string{"Burner.dev"}, 0)
	ctx := context.Background()

	assert.NoError(t, v.Validate(ctx, "awa@example.com"))
	assert.Equal(t, apperrors.CodeInvalidArgument, apperrors.CodeOf(v.Validate(ctx, "not-an-email")))
	assert.Equal(t, apperrors.CodeFailedPrecondition, apperrors.CodeOf(v.Validate(ctx, "x@mailinator.com")))
	assert.Equal(t, apperrors.CodeFailedPrecondition, apperrors.CodeOf(v.Validate(ctx, "x@eu.mailinator.com")))
	assert.Equal(t, apperrors.CodeFailedPrecondition, apperrors.CodeOf(v.Validate(ctx, "x@burner.dev")))
	assert.Equal(t, apperrors.CodeFailedPrecondition, apperrors.CodeOf(v.Validate(ctx, "x@nomx.com")))
	assert.Equal(t, apperrors.CodeFailedPrecondition, apperrors.CodeOf(v.Validate(ctx, "x@unknown.org")))
}

func TestValidateResolverError(t *testing.T) {
	v := New(erroringResolver{}, nil, 0)
	err := v.Validate(context.Background(), "awa@example.com")
	de := apperrors.ToDomainError(err)
	assert.Equal(t, apperrors.CodeFailedPrecondition, de.Code)
	assert.Equal(t, "i/o timeout", de.Details["reason"])
}

func TestDomain(t *testing.T) {
	assert.Equal(t, "example.com", Domain("Awa@Example.COM"))
	assert.Equal(t, "", Domain("nope"))
}
