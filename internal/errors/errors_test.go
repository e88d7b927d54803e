package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMapErrorToHTTP(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"unauthenticated", ErrUnauthenticated, http.StatusUnauthorized, "UNAUTHENTICATED"},
		{"wrapped unauthenticated", fmt.Errorf("resolve: %w", ErrUnauthenticated), http.StatusUnauthorized, "UNAUTHENTICATED"},
		{"forbidden", ErrForbidden, http.StatusForbidden, "FORBIDDEN"},
		{"invalid credentials", ErrInvalidCredentials, http.StatusUnauthorized, "INVALID_CREDENTIALS"},
		{"reset token", ErrInvalidOrExpiredToken, http.StatusBadRequest, "INVALID_OR_EXPIRED_TOKEN"},
		{"email delivery", ErrEmailDelivery, http.StatusInternalServerError, "EMAIL_DELIVERY_FAILED"},
		{"conflict", ErrUserAlreadyExists, http.StatusConflict, "USER_ALREADY_EXISTS"},
		{"demo", ErrDemoMode, http.StatusForbidden, "DEMO_MODE"},
		{"unknown", errors.New("db down"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapErrorToHTTP(tt.err)
			assert.Equal(t, tt.status, got.StatusCode)
			assert.Equal(t, tt.code, got.Code)
		})
	}
}

func TestMapErrorToHTTP_HidesInternalMessage(t *testing.T) {
	got := MapErrorToHTTP(errors.New("dial tcp 10.0.0.1:3306: connection refused"))
	assert.Equal(t, "internal server error", got.Message)
}

func TestMapErrorToHTTP_PassesThroughHTTPError(t *testing.T) {
	in := NewHTTPError(http.StatusTeapot, "teapot", "TEAPOT")
	assert.Same(t, in, MapErrorToHTTP(fmt.Errorf("wrap: %w", in)))
}
