package middleware

import (
	"context"
	"fmt"

	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	apperrors "taskhub/internal/errors"
	"taskhub/internal/model"
)

// TokenLookup lists the token transports in precedence order. The first one present wins.
const TokenLookup = "header:" + echo.HeaderAuthorization + ":Bearer ,cookie:" + CookieName

// CookieName is the cookie carrying the session token.
const CookieName = "jwt"

const userContextKey = "user"

// Authenticator resolves a raw token to its user.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*model.User, error)
}

var tokenExtractors = mustCreateExtractors(TokenLookup)

func mustCreateExtractors(lookup string) []echomw.ValuesExtractor {
	extractors, err := echojwt.CreateExtractors(lookup)
	if err != nil {
		panic(fmt.Sprintf("token lookup %q: %v", lookup, err))
	}
	return extractors
}

// ExtractToken returns the request token, or "" when no transport carries one.
func ExtractToken(c echo.Context) string {
	for _, extract := range tokenExtractors {
		values, err := extract(c)
		if err != nil {
			continue
		}
		for _, v := range values {
			if v != "" {
				return v
			}
		}
	}
	return ""
}

// Protect resolves the request identity and stores it on the context. Requests without a
// resolvable identity fail with errors.ErrUnauthenticated.
func Protect(auth Authenticator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user, err := auth.Authenticate(c.Request().Context(), ExtractToken(c))
			if err != nil {
				return err
			}
			c.Set(userContextKey, user)
			return next(c)
		}
	}
}

// CurrentUser returns the identity attached by Protect.
func CurrentUser(c echo.Context) (*model.User, bool) {
	user, ok := c.Get(userContextKey).(*model.User)
	return user, ok && user != nil
}

// RestrictTo admits only identities whose role is in allowed. Stacking gates intersects them.
func RestrictTo(allowed model.RoleSet) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user, ok := CurrentUser(c)
			if !ok {
				return apperrors.ErrUnauthenticated
			}
			if !allowed.Contains(user.Role) {
				return apperrors.ErrForbidden
			}
			return next(c)
		}
	}
}

// DemoMode blocks the wrapped routes while enabled.
func DemoMode(enabled bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		if !enabled {
			return next
		}
		return func(c echo.Context) error {
			return apperrors.ErrDemoMode
		}
	}
}
