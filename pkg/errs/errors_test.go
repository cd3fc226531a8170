package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidationWrapsSentinel(t *testing.T) {
	err := Validation("client_id", "client id cannot be empty", ErrEmptyClientID)

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEmptyClientID))
	assert.Equal(t, "validation failed for client_id: client id cannot be empty", err.Error())

	var vErr *ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, "client_id", vErr.Field)
}

func TestErrorFormatting(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "validation without field",
			err:  &ValidationError{Message: "bad input"},
			want: "validation failed: bad input",
		},
		{
			name: "authentication with status",
			err:  &AuthenticationError{StatusCode: 401, Message: "invalid credentials"},
			want: "authentication failed (HTTP 401): invalid credentials",
		},
		{
			name: "authentication without status",
			err:  &AuthenticationError{Message: "no token"},
			want: "authentication failed: no token",
		},
		{
			name: "network",
			err:  &NetworkError{Op: "upload", Message: "connection refused"},
			want: "network error during upload: connection refused",
		},
		{
			name: "core",
			err:  &CoreError{Code: CodeCore, Message: "unexpected"},
			want: "CORE_ERROR: unexpected",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.err.Error())
		})
	}
}

func TestUnwrapChains(t *testing.T) {
	cause := fmt.Errorf("root cause")
	tests := []struct {
		name string
		err  error
	}{
		{"validation", &ValidationError{Message: "m", Err: cause}},
		{"authentication", &AuthenticationError{Message: "m", Err: cause}},
		{"network", &NetworkError{Op: "op", Message: "m", Err: cause}},
		{"core", &CoreError{Code: CodeCore, Message: "m", Err: cause}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.True(t, errors.Is(tc.err, cause))
		})
	}
}
