package handler

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"taskhub/internal/errors"
	"taskhub/internal/middleware"
	"taskhub/internal/model"
	"taskhub/internal/service"
)

// CookieOptions controls the session cookie.
type CookieOptions struct {
	MaxAge time.Duration
	// Secure forces the Secure attribute. Without it the attribute follows the request scheme.
	Secure bool
}

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	authService service.AuthService
	cookie      CookieOptions
	publicURL   string
	now         func() time.Time
}

// NewAuthHandler creates a new auth handler. Links in emails are built on publicURL; when it is
// empty they follow the request host, which config only allows in development.
func NewAuthHandler(authService service.AuthService, cookie CookieOptions, publicURL string) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		cookie:      cookie,
		publicURL:   strings.TrimRight(publicURL, "/"),
		now:         time.Now,
	}
}

// SignupRequest represents a self-service registration.
type SignupRequest struct {
	Name            string `json:"name" validate:"required,max=255"`
	Surname         string `json:"surname" validate:"required,max=255"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=8"`
	PasswordConfirm string `json:"passwordConfirm" validate:"required"`
}

// LoginRequest represents a user login request.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// ForgotPasswordRequest asks for a reset link.
type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ResetPasswordRequest sets a new password with a reset token.
type ResetPasswordRequest struct {
	Password        string `json:"password" validate:"required,min=8"`
	PasswordConfirm string `json:"passwordConfirm" validate:"required"`
}

// UpdatePasswordRequest changes the password of the logged in user.
type UpdatePasswordRequest struct {
	PasswordCurrent string `json:"passwordCurrent" validate:"required"`
	Password        string `json:"password" validate:"required,min=8"`
	PasswordConfirm string `json:"passwordConfirm" validate:"required"`
}

// UserData wraps a single user.
type UserData struct {
	User *model.User `json:"user"`
}

// AuthResponse is returned by every endpoint that logs a user in.
type AuthResponse struct {
	Status string   `json:"status"`
	Token  string   `json:"token"`
	Data   UserData `json:"data"`
}

// StatusResponse is a body-less success.
type StatusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// SessionsResponse lists users holding a live session.
type SessionsResponse struct {
	Status  string   `json:"status"`
	Results int      `json:"results"`
	UserIDs []string `json:"user_ids"`
}

// Signup godoc
// @Summary Register a new user
// @Tags auth
// @Accept json
// @Produce json
// @Param request body SignupRequest true "Registration data"
// @Success 201 {object} AuthResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 409 {object} errors.ErrorResponse
// @Router /signup [post]
func (h *AuthHandler) Signup(c echo.Context) error {
	var req SignupRequest
	if err := c.Bind(&req); err != nil {
		return invalidRequest(err)
	}
	if err := c.Validate(&req); err != nil {
		return validationFailed(err.Error(), err)
	}

	session, err := h.authService.Signup(c.Request().Context(), service.SignupInput{
		Name:            req.Name,
		Surname:         req.Surname,
		Email:           req.Email,
		Password:        req.Password,
		PasswordConfirm: req.PasswordConfirm,
	}, h.baseURL(c)+"/api/me")
	if err != nil {
		return fail(err)
	}
	return h.sendSession(c, http.StatusCreated, session)
}

// Login godoc
// @Summary Login user
// @Tags auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Login credentials"
// @Success 200 {object} AuthResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Router /login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return invalidRequest(err)
	}
	if err := c.Validate(&req); err != nil {
		return validationFailed("please provide email and password", err)
	}

	session, err := h.authService.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return fail(err)
	}
	return h.sendSession(c, http.StatusOK, session)
}

// Logout godoc
// @Summary Logout user
// @Description Clears the session cookie and revokes the presented token.
// @Tags auth
// @Produce json
// @Success 200 {object} StatusResponse
// @Router /logout [get]
func (h *AuthHandler) Logout(c echo.Context) error {
	if err := h.authService.Logout(c.Request().Context(), middleware.ExtractToken(c)); err != nil {
		return fail(err)
	}
	c.SetCookie(&http.Cookie{
		Name:     middleware.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   h.secure(c),
		SameSite: http.SameSiteLaxMode,
	})
	return c.JSON(http.StatusOK, StatusResponse{Status: "success"})
}

// ForgotPassword godoc
// @Summary Request a password reset link
// @Description Always succeeds for well-formed emails, registered or not.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body ForgotPasswordRequest true "Account email"
// @Success 200 {object} StatusResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /forgotPassword [post]
func (h *AuthHandler) ForgotPassword(c echo.Context) error {
	var req ForgotPasswordRequest
	if err := c.Bind(&req); err != nil {
		return invalidRequest(err)
	}
	if err := c.Validate(&req); err != nil {
		return validationFailed("please provide a valid email", err)
	}

	base := h.baseURL(c)
	resetURL := func(token string) string {
		return fmt.Sprintf("%s/api/resetPassword/%s", base, token)
	}
	if err := h.authService.ForgotPassword(c.Request().Context(), req.Email, resetURL); err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, StatusResponse{
		Status:  "success",
		Message: "if the email is registered, a reset link has been sent",
	})
}

// ResetPassword godoc
// @Summary Reset password with a token
// @Tags auth
// @Accept json
// @Produce json
// @Param token path string true "Reset token"
// @Param request body ResetPasswordRequest true "New password"
// @Success 200 {object} AuthResponse
// @Failure 400 {object} errors.ErrorResponse
// @Router /resetPassword/{token} [patch]
func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req ResetPasswordRequest
	if err := c.Bind(&req); err != nil {
		return invalidRequest(err)
	}
	if err := c.Validate(&req); err != nil {
		return validationFailed(err.Error(), err)
	}

	session, err := h.authService.ResetPassword(c.Request().Context(), c.Param("token"), req.Password, req.PasswordConfirm)
	if err != nil {
		return fail(err)
	}
	return h.sendSession(c, http.StatusOK, session)
}

// UpdatePassword godoc
// @Summary Change own password
// @Tags auth
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body UpdatePasswordRequest true "Current and new password"
// @Success 200 {object} AuthResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Router /updatePassword [patch]
func (h *AuthHandler) UpdatePassword(c echo.Context) error {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		return fail(errors.ErrUnauthenticated)
	}

	var req UpdatePasswordRequest
	if err := c.Bind(&req); err != nil {
		return invalidRequest(err)
	}
	if err := c.Validate(&req); err != nil {
		return validationFailed(err.Error(), err)
	}

	session, err := h.authService.UpdatePassword(c.Request().Context(), user.ID, req.PasswordCurrent, req.Password, req.PasswordConfirm)
	if err != nil {
		return fail(err)
	}
	return h.sendSession(c, http.StatusOK, session)
}

// Sessions godoc
// @Summary List users with a live session
// @Description Advisory; backed by the session presence store.
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} SessionsResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Router /sessions [get]
func (h *AuthHandler) Sessions(c echo.Context) error {
	ids, err := h.authService.ActiveSessions(c.Request().Context())
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, SessionsResponse{Status: "success", Results: len(ids), UserIDs: ids})
}

// sendSession sets the HttpOnly session cookie and returns the token and sanitized user.
func (h *AuthHandler) sendSession(c echo.Context, status int, session *service.Session) error {
	c.SetCookie(&http.Cookie{
		Name:     middleware.CookieName,
		Value:    session.Token,
		Path:     "/",
		Expires:  h.now().Add(h.cookie.MaxAge),
		MaxAge:   int(h.cookie.MaxAge.Seconds()),
		HttpOnly: true,
		Secure:   h.secure(c),
		SameSite: http.SameSiteLaxMode,
	})
	return c.JSON(status, AuthResponse{
		Status: "success",
		Token:  session.Token,
		Data:   UserData{User: session.User},
	})
}

func (h *AuthHandler) secure(c echo.Context) bool {
	return h.cookie.Secure || c.Scheme() == "https"
}

func (h *AuthHandler) baseURL(c echo.Context) string {
	if h.publicURL != "" {
		return h.publicURL
	}
	return c.Scheme() + "://" + c.Request().Host
}
