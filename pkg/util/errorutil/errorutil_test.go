package errorutil

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstructorsCarryTaxonomy(t *testing.T) {
	cases := []struct {
		err    error
		code   string
		status int
	}{
		{NewValidationError("bad", nil), CodeInvalidArgument, http.StatusBadRequest},
		{NewNotFound("agency", nil), CodeNotFound, http.StatusNotFound},
		{NewUnauthorized("who"), CodeUnauthenticated, http.StatusUnauthorized},
		{NewForbidden("no"), CodePermissionDenied, http.StatusForbidden},
		{NewConflict("dup", nil), CodeAlreadyExists, http.StatusConflict},
		{NewFailedPrecondition("guard", nil), CodeFailedPrecondition, http.StatusPreconditionFailed},
		{NewInternalError(errors.New("boom")), CodeInternal, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		de := ToDomainError(tc.err)
		require.NotNil(t, de)
		assert.Equal(t, tc.code, de.Code)
		assert.Equal(t, tc.status, de.HTTPStatus)
	}
}

func TestToDomainErrorUnwrapsWrapped(t *testing.T) {
	wrapped := fmt.Errorf("create agency: %w", NewConflict("duplicate", nil))
	assert.Equal(t, CodeAlreadyExists, CodeOf(wrapped))
	assert.Equal(t, CodeInternal, CodeOf(errors.New("plain")))
	assert.Equal(t, "", CodeOf(nil))
	assert.Nil(t, MapError(nil))
}

func TestInternalErrorKeepsCause(t *testing.T) {
	cause := errors.New("tx aborted")
	err := NewInternalError(cause)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "tx aborted")
}
