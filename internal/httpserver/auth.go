package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/storefront/internal/service"
	"github.com/Skotchmaster/storefront/internal/transport"
	jwthelp "github.com/Skotchmaster/storefront/pkg/jwt"
	"github.com/Skotchmaster/storefront/pkg/logging"
)

type AuthHTTP struct {
	Svc *service.AuthService
}

func (h *AuthHTTP) Register(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.register")

	var req transport.RegisterRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "register_error", "invalid body", err)
	}

	res, err := h.Svc.Register(ctx, req)
	if err != nil {
		return fail(l, "register_error", err)
	}

	markDegraded(c, res.Advisory)
	l.Info("register_success", "user_id", res.Value.ID)
	return c.JSON(http.StatusCreated, res.Value)
}

func (h *AuthHTTP) Login(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.login")

	var req transport.LoginRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "login_error", "invalid body", err)
	}

	sid := sessionID(c)
	res, err := h.Svc.Login(ctx, req, sid)
	if err != nil {
		return fail(l, "login_error", err)
	}

	setAuthCookies(c, res.AccessToken, res.RefreshToken, res.AccessExp, res.RefreshExp)
	if sid != "" {
		clearSessionCookie(c)
	}
	markDegraded(c, res.Advisory)
	l.Info("login_success", "user_id", res.User.ID)
	return c.JSON(http.StatusOK, res.User)
}

func (h *AuthHTTP) Refresh(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.refresh")

	ck, err := c.Cookie(jwthelp.RefreshCookie)
	if err != nil || ck.Value == "" {
		l.Warn("refresh_error", "status", http.StatusUnauthorized, "reason", "missing refresh token")
		return echo.NewHTTPError(http.StatusUnauthorized, "missing refresh token")
	}

	pair, err := h.Svc.RefreshTokens(ctx, ck.Value)
	if err != nil {
		clearAuthCookies(c)
		return fail(l, "refresh_error", err)
	}

	setAuthCookies(c, pair.AccessToken, pair.RefreshToken, pair.AccessExp, pair.RefreshExp)
	return c.JSON(http.StatusOK, transport.MessageResponse{Message: "tokens refreshed"})
}

func (h *AuthHTTP) Logout(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.logout")

	if ck, err := c.Cookie(jwthelp.RefreshCookie); err == nil {
		if err := h.Svc.Logout(ctx, ck.Value); err != nil {
			l.Error("logout_error", "status", http.StatusInternalServerError, "error", err)
		}
	}
	clearAuthCookies(c)
	return c.JSON(http.StatusOK, transport.MessageResponse{Message: "logged out"})
}

func (h *AuthHTTP) Me(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.me")

	uid, err := userID(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	u, err := h.Svc.Me(ctx, uid)
	if err != nil {
		return fail(l, "me_error", err)
	}
	return c.JSON(http.StatusOK, u)
}
