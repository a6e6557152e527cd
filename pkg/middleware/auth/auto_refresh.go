package middleware

import (
	"context"
	"errors"
	"net/http"
	"slices"

	jwthelp "github.com/Skotchmaster/storefront/pkg/jwt"
	"github.com/Skotchmaster/storefront/pkg/logging"
	"github.com/Skotchmaster/storefront/pkg/tokens"
	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

const (
	CtxUserID = "user_id"
	CtxRole   = "role"
)

// Refresher rotates a refresh token into a new token pair.
type Refresher interface {
	RefreshTokens(ctx context.Context, refreshToken string) (*tokens.Pair, error)
}

type AutoRefreshMiddleware struct {
	JWTSecret []byte
	Refresher Refresher
}

func NewAutoRefreshMiddleware(secret []byte, refresher Refresher) *AutoRefreshMiddleware {
	return &AutoRefreshMiddleware{
		JWTSecret: secret,
		Refresher: refresher,
	}
}

type ValidatorFunc func(claims *tokens.AccessClaims) error

func (m *AutoRefreshMiddleware) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return m.requireAuthWithValidator(next, nil)
}

func (m *AutoRefreshMiddleware) RequireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return m.RequireRole("admin")(next)
}

func (m *AutoRefreshMiddleware) RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return m.requireAuthWithValidator(next, func(claims *tokens.AccessClaims) error {
			if !slices.Contains(roles, claims.Role) {
				return echo.NewHTTPError(http.StatusForbidden, "insufficient role")
			}
			return nil
		})
	}
}

// AllowRoles narrows routes inside a group that already authenticated the
// caller. It reads the role set by the group middleware and never refreshes.
func AllowRoles(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			r, _ := c.Get(CtxRole).(string)
			if !slices.Contains(roles, r) {
				return echo.NewHTTPError(http.StatusForbidden, "insufficient role")
			}
			return next(c)
		}
	}
}

// OptionalAuth sets the user context when a valid (or refreshable) token is
// present and otherwise lets the request through anonymously.
func (m *AutoRefreshMiddleware) OptionalAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		claims, err := m.authenticate(c)
		if err == nil {
			setUserContext(c, claims)
		}
		return next(c)
	}
}

func (m *AutoRefreshMiddleware) requireAuthWithValidator(next echo.HandlerFunc, validator ValidatorFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		claims, err := m.authenticate(c)
		if err != nil {
			return err
		}
		if validator != nil {
			if validationErr := validator(claims); validationErr != nil {
				return validationErr
			}
		}

		setUserContext(c, claims)
		return next(c)
	}
}

func (m *AutoRefreshMiddleware) authenticate(c echo.Context) (*tokens.AccessClaims, error) {
	accessCookie, err := c.Cookie(jwthelp.AccessCookie)
	if err != nil || accessCookie.Value == "" {
		return m.refresh(c)
	}

	claims, err := tokens.AccessClaimsFromToken(accessCookie.Value, m.JWTSecret)
	if err == nil && claims != nil {
		return claims, nil
	}

	if !errors.Is(err, jwt.ErrTokenExpired) {
		clearAuthCookies(c)
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "invalid access token")
	}

	return m.refresh(c)
}

func (m *AutoRefreshMiddleware) refresh(c echo.Context) (*tokens.AccessClaims, error) {
	refreshCookie, rErr := c.Cookie(jwthelp.RefreshCookie)
	if rErr != nil || refreshCookie.Value == "" {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "missing access token")
	}
	if m.Refresher == nil {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "access token expired")
	}

	ctx := c.Request().Context()
	pair, refErr := m.Refresher.RefreshTokens(ctx, refreshCookie.Value)
	if refErr != nil {
		logging.FromContext(ctx).Info("token_refresh_failed", "error", refErr)
		clearAuthCookies(c)
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "refresh failed")
	}

	c.SetCookie(jwthelp.CreateCookie(jwthelp.AccessCookie, pair.AccessToken, "/", pair.AccessExp))
	c.SetCookie(jwthelp.CreateCookie(jwthelp.RefreshCookie, pair.RefreshToken, "/", pair.RefreshExp))

	newClaims, pErr := tokens.AccessClaimsFromToken(pair.AccessToken, m.JWTSecret)
	if pErr != nil || newClaims == nil {
		clearAuthCookies(c)
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "new access token invalid")
	}
	return newClaims, nil
}

func clearAuthCookies(c echo.Context) {
	c.SetCookie(jwthelp.DeleteCookie(jwthelp.AccessCookie, "/"))
	c.SetCookie(jwthelp.DeleteCookie(jwthelp.RefreshCookie, "/"))
}

func setUserContext(c echo.Context, claims *tokens.AccessClaims) {
	c.Set(CtxUserID, claims.Subject)
	c.Set(CtxRole, claims.Role)
}
