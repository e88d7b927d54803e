package errors

import (
	"errors"
	"net/http"
)

var (
	// ErrUnauthenticated covers missing, invalid, expired or revoked tokens, deactivated users
	// and passwords changed after token issuance. All of them render the same 401.
	ErrUnauthenticated = errors.New("you are not logged in, please log in to get access")
	// ErrForbidden is returned when the resolved role is not allowed on a route.
	ErrForbidden = errors.New("you do not have permission to perform this action")
	// ErrInvalidCredentials is returned for unknown emails and wrong passwords alike.
	ErrInvalidCredentials = errors.New("incorrect email or password")
	// ErrInvalidOrExpiredToken is returned when a password reset token does not match or has expired.
	ErrInvalidOrExpiredToken = errors.New("token is invalid or has expired")
	// ErrEmailDelivery is returned when the reset email could not be dispatched.
	ErrEmailDelivery = errors.New("there was an error sending the email, try again later")
	// ErrUserAlreadyExists is returned when an email is already registered.
	ErrUserAlreadyExists = errors.New("user already exists")
	// ErrUserNotFound is returned when a user lookup by id fails.
	ErrUserNotFound = errors.New("no user found with that id")
	// ErrPasswordMismatch is returned when password and confirmation differ.
	ErrPasswordMismatch = errors.New("passwords do not match")
	// ErrPasswordFieldsNotAllowed is returned when a profile update carries password fields.
	ErrPasswordFieldsNotAllowed = errors.New("this route is not for password updates, use /updatePassword")
	// ErrDemoMode is returned for mutating routes while demo mode is on.
	ErrDemoMode = errors.New("this action is disabled in demo mode")
	// ErrInvalidRole is returned for roles outside the closed role set.
	ErrInvalidRole = errors.New("invalid role")
)

// ErrorResponse represents a standardized error response.
type ErrorResponse struct {
	Error  string `json:"error"`
	Code   string `json:"code"`
	Detail string `json:"detail,omitempty"`
}

// HTTPError represents an HTTP error with status code.
type HTTPError struct {
	StatusCode int
	Message    string
	Code       string
}

func (e *HTTPError) Error() string {
	return e.Message
}

// NewHTTPError creates a new HTTP error.
func NewHTTPError(statusCode int, message, code string) *HTTPError {
	return &HTTPError{
		StatusCode: statusCode,
		Message:    message,
		Code:       code,
	}
}

// ToErrorResponse converts an HTTPError to ErrorResponse.
func (e *HTTPError) ToErrorResponse() ErrorResponse {
	return ErrorResponse{
		Error: e.Message,
		Code:  e.Code,
	}
}

var mappings = []struct {
	err    error
	status int
	code   string
}{
	{ErrUnauthenticated, http.StatusUnauthorized, "UNAUTHENTICATED"},
	{ErrInvalidCredentials, http.StatusUnauthorized, "INVALID_CREDENTIALS"},
	{ErrForbidden, http.StatusForbidden, "FORBIDDEN"},
	{ErrDemoMode, http.StatusForbidden, "DEMO_MODE"},
	{ErrInvalidOrExpiredToken, http.StatusBadRequest, "INVALID_OR_EXPIRED_TOKEN"},
	{ErrPasswordMismatch, http.StatusBadRequest, "PASSWORD_MISMATCH"},
	{ErrPasswordFieldsNotAllowed, http.StatusBadRequest, "PASSWORD_FIELDS_NOT_ALLOWED"},
	{ErrInvalidRole, http.StatusBadRequest, "INVALID_ROLE"},
	{ErrUserAlreadyExists, http.StatusConflict, "USER_ALREADY_EXISTS"},
	{ErrUserNotFound, http.StatusNotFound, "USER_NOT_FOUND"},
	{ErrEmailDelivery, http.StatusInternalServerError, "EMAIL_DELIVERY_FAILED"},
}

// MapErrorToHTTP maps domain errors to HTTP errors. Wrapped errors are matched with errors.Is.
func MapErrorToHTTP(err error) *HTTPError {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr
	}
	for _, m := range mappings {
		if errors.Is(err, m.err) {
			return NewHTTPError(m.status, m.err.Error(), m.code)
		}
	}
	return NewHTTPError(http.StatusInternalServerError, "internal server error", "INTERNAL_ERROR")
}
