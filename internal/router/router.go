package router

import (
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	echoSwagger "github.com/swaggo/echo-swagger"

	"taskhub/internal/config"
	"taskhub/internal/handler"
	"taskhub/internal/logger"
	"taskhub/internal/middleware"
	"taskhub/internal/model"
)

var (
	everyone   = model.NewRoleSet(model.RoleUser, model.RoleAdmin)
	adminsOnly = model.NewRoleSet(model.RoleAdmin)
)

// Register wires routes and middleware.
func Register(
	e *echo.Echo,
	cfg *config.Config,
	log *slog.Logger,
	gatherer prometheus.Gatherer,
	authenticator middleware.Authenticator,
	userHandler *handler.UserHandler,
	authHandler *handler.AuthHandler,
) {
	e.HTTPErrorHandler = handler.ErrorHandler(log, cfg.IsDevelopment())
	e.Use(echomw.RequestID())
	e.Use(logger.RequestLogger(log))
	e.Use(echomw.Recover())

	e.Validator = NewValidator()

	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	api := e.Group("/api")
	demo := middleware.DemoMode(cfg.DemoMode)

	// Public routes
	api.POST("/signup", authHandler.Signup, demo)
	api.POST("/login", authHandler.Login)
	api.GET("/logout", authHandler.Logout)
	api.POST("/forgotPassword", authHandler.ForgotPassword)
	api.PATCH("/resetPassword/:token", authHandler.ResetPassword)

	// Unknown /api paths must stay 404, so identity middleware goes on each route, not a group.
	signedIn := []echo.MiddlewareFunc{middleware.Protect(authenticator), middleware.RestrictTo(everyone)}
	admin := with(signedIn, middleware.RestrictTo(adminsOnly))

	// Any logged in user
	api.PATCH("/updatePassword", authHandler.UpdatePassword, signedIn...)
	api.GET("/me", userHandler.GetMe, signedIn...)
	api.PATCH("/me", userHandler.UpdateMe, with(signedIn, demo)...)
	api.DELETE("/me", userHandler.DeleteMe, with(signedIn, demo)...)
	api.GET("/users", userHandler.ListUsers, signedIn...)
	api.GET("/users/:id", userHandler.GetUser, signedIn...)

	// Administration
	api.GET("/sessions", authHandler.Sessions, admin...)
	api.POST("/users", userHandler.CreateUser, with(admin, demo)...)
	api.PATCH("/users/:id", userHandler.UpdateUser, with(admin, demo)...)
	api.PATCH("/users/:id/password", userHandler.SetPassword, with(admin, demo)...)
	api.DELETE("/users/:id", userHandler.DeleteUser, with(admin, demo)...)
}

// with returns base followed by extra, leaving base untouched.
func with(base []echo.MiddlewareFunc, extra ...echo.MiddlewareFunc) []echo.MiddlewareFunc {
	out := make([]echo.MiddlewareFunc, 0, len(base)+len(extra))
	return append(append(out, base...), extra...)
}

// CustomValidator wraps validator for Echo.
type CustomValidator struct {
	validator *validator.Validate
}

// NewValidator builds the request validator.
func NewValidator() *CustomValidator {
	return &CustomValidator{validator: validator.New(validator.WithRequiredStructEnabled())}
}

// Validate implements echo.Validator interface.
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}
