package handler

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"taskhub/internal/errors"
	"taskhub/internal/middleware"
	"taskhub/internal/repository"
	"taskhub/internal/service"
)

// UserHandler bundles HTTP handlers.
type UserHandler struct {
	svc service.UserService
}

// NewUserHandler creates a handler layer.
func NewUserHandler(svc service.UserService) *UserHandler {
	return &UserHandler{svc: svc}
}

// UpdateMeRequest is a partial profile update. Password fields are accepted only to be refused.
type UpdateMeRequest struct {
	Name            *string `json:"name" validate:"omitempty,min=1,max=255"`
	Surname         *string `json:"surname" validate:"omitempty,min=1,max=255"`
	Email           *string `json:"email" validate:"omitempty,email"`
	Password        string  `json:"password"`
	PasswordConfirm string  `json:"passwordConfirm"`
}

// CreateUserRequest is an administrator-created account.
type CreateUserRequest struct {
	Name            string `json:"name" validate:"required,max=255"`
	Surname         string `json:"surname" validate:"required,max=255"`
	Email           string `json:"email" validate:"required,email"`
	Role            string `json:"role" validate:"omitempty,oneof=user admin"`
	Password        string `json:"password" validate:"required,min=8"`
	PasswordConfirm string `json:"passwordConfirm" validate:"required"`
}

// UpdateUserRequest is an administrator profile change.
type UpdateUserRequest struct {
	Name     *string `json:"name" validate:"omitempty,min=1,max=255"`
	Surname  *string `json:"surname" validate:"omitempty,min=1,max=255"`
	Email    *string `json:"email" validate:"omitempty,email"`
	Role     *string `json:"role" validate:"omitempty,oneof=user admin"`
	Active   *bool   `json:"active"`
	Password string  `json:"password"`
}

// SetPasswordRequest replaces a user's password.
type SetPasswordRequest struct {
	Password        string `json:"password" validate:"required,min=8"`
	PasswordConfirm string `json:"passwordConfirm" validate:"required"`
}

// UserResponse wraps one user.
type UserResponse struct {
	Status string   `json:"status"`
	Data   UserData `json:"data"`
}

// UserListResponse wraps one page of users.
type UserListResponse struct {
	Status  string            `json:"status"`
	Results int               `json:"results"`
	Data    *service.UserPage `json:"data"`
}

// GetMe godoc
// @Summary Current user profile
// @Tags users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} UserResponse
// @Failure 401 {object} errors.ErrorResponse
// @Router /me [get]
func (h *UserHandler) GetMe(c echo.Context) error {
	me, ok := middleware.CurrentUser(c)
	if !ok {
		return fail(errors.ErrUnauthenticated)
	}
	user, err := h.svc.GetUser(c.Request().Context(), me.ID)
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, UserResponse{Status: "success", Data: UserData{User: user}})
}

// UpdateMe godoc
// @Summary Update own profile
// @Tags users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body UpdateMeRequest true "Profile fields"
// @Success 200 {object} UserResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 409 {object} errors.ErrorResponse
// @Router /me [patch]
func (h *UserHandler) UpdateMe(c echo.Context) error {
	me, ok := middleware.CurrentUser(c)
	if !ok {
		return fail(errors.ErrUnauthenticated)
	}

	var req UpdateMeRequest
	if err := c.Bind(&req); err != nil {
		return invalidRequest(err)
	}
	if err := c.Validate(&req); err != nil {
		return validationFailed(err.Error(), err)
	}

	user, err := h.svc.UpdateMe(c.Request().Context(), me.ID, service.ProfileUpdate{
		Name:            req.Name,
		Surname:         req.Surname,
		Email:           req.Email,
		Password:        req.Password,
		PasswordConfirm: req.PasswordConfirm,
	})
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, UserResponse{Status: "success", Data: UserData{User: user}})
}

// DeleteMe godoc
// @Summary Deactivate own account
// @Tags users
// @Security BearerAuth
// @Success 204
// @Failure 401 {object} errors.ErrorResponse
// @Router /me [delete]
func (h *UserHandler) DeleteMe(c echo.Context) error {
	me, ok := middleware.CurrentUser(c)
	if !ok {
		return fail(errors.ErrUnauthenticated)
	}
	if err := h.svc.DeactivateMe(c.Request().Context(), me.ID); err != nil {
		return fail(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ListUsers godoc
// @Summary List users
// @Tags users
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page, starting at 1"
// @Param limit query int false "Page size"
// @Param key query string false "Name filter"
// @Success 200 {object} UserListResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Router /users [get]
func (h *UserHandler) ListUsers(c echo.Context) error {
	var filter repository.ListFilter
	if err := echo.QueryParamsBinder(c).
		Int("page", &filter.Page).
		Int("limit", &filter.Limit).
		String("key", &filter.Key).
		BindError(); err != nil {
		return validationFailed("page and limit must be integers", err)
	}

	page, err := h.svc.ListUsers(c.Request().Context(), filter)
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, UserListResponse{Status: "success", Results: len(page.Users), Data: page})
}

// GetUser godoc
// @Summary Get user by id
// @Tags users
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Success 200 {object} UserResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /users/{id} [get]
func (h *UserHandler) GetUser(c echo.Context) error {
	id, err := userID(c)
	if err != nil {
		return err
	}
	user, err := h.svc.GetUser(c.Request().Context(), id)
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, UserResponse{Status: "success", Data: UserData{User: user}})
}

// CreateUser godoc
// @Summary Create user
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateUserRequest true "User payload"
// @Success 201 {object} UserResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 409 {object} errors.ErrorResponse
// @Router /users [post]
func (h *UserHandler) CreateUser(c echo.Context) error {
	var req CreateUserRequest
	if err := c.Bind(&req); err != nil {
		return invalidRequest(err)
	}
	if err := c.Validate(&req); err != nil {
		return validationFailed(err.Error(), err)
	}

	user, err := h.svc.CreateUser(c.Request().Context(), service.CreateUserInput{
		Name:            req.Name,
		Surname:         req.Surname,
		Email:           req.Email,
		Role:            req.Role,
		Password:        req.Password,
		PasswordConfirm: req.PasswordConfirm,
	})
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusCreated, UserResponse{Status: "success", Data: UserData{User: user}})
}

// UpdateUser godoc
// @Summary Update user
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Param request body UpdateUserRequest true "Fields to change"
// @Success 200 {object} UserResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /users/{id} [patch]
func (h *UserHandler) UpdateUser(c echo.Context) error {
	id, err := userID(c)
	if err != nil {
		return err
	}

	var req UpdateUserRequest
	if err := c.Bind(&req); err != nil {
		return invalidRequest(err)
	}
	if err := c.Validate(&req); err != nil {
		return validationFailed(err.Error(), err)
	}
	if req.Password != "" {
		return fail(errors.ErrPasswordFieldsNotAllowed)
	}

	user, err := h.svc.UpdateUser(c.Request().Context(), id, service.AdminUpdate{
		Name:    req.Name,
		Surname: req.Surname,
		Email:   req.Email,
		Role:    req.Role,
		Active:  req.Active,
	})
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, UserResponse{Status: "success", Data: UserData{User: user}})
}

// SetPassword godoc
// @Summary Set a user's password
// @Description Every token the user holds stops working.
// @Tags admin
// @Accept json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Param request body SetPasswordRequest true "New password"
// @Success 204
// @Failure 400 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /users/{id}/password [patch]
func (h *UserHandler) SetPassword(c echo.Context) error {
	id, err := userID(c)
	if err != nil {
		return err
	}

	var req SetPasswordRequest
	if err := c.Bind(&req); err != nil {
		return invalidRequest(err)
	}
	if err := c.Validate(&req); err != nil {
		return validationFailed(err.Error(), err)
	}

	if err := h.svc.SetPassword(c.Request().Context(), id, req.Password, req.PasswordConfirm); err != nil {
		return fail(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// DeleteUser godoc
// @Summary Deactivate user
// @Tags admin
// @Security BearerAuth
// @Param id path string true "User ID"
// @Success 204
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /users/{id} [delete]
func (h *UserHandler) DeleteUser(c echo.Context) error {
	id, err := userID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeactivateUser(c.Request().Context(), id); err != nil {
		return fail(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func userID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, validationFailed("invalid user id", err)
	}
	return id, nil
}
