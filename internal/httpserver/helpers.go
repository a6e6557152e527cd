package httpserver

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/service"
	"github.com/Skotchmaster/storefront/internal/util"
	jwthelp "github.com/Skotchmaster/storefront/pkg/jwt"
	middleware "github.com/Skotchmaster/storefront/pkg/middleware/auth"
)

const (
	SessionCookie       = "cartSession"
	SessionHeader       = "X-Session-Id"
	SideEffectsHeader   = "X-Side-Effects-Failed"
	sessionCookieMaxAge = 30 * 24 * time.Hour
)

var errNoUser = errors.New("unauthorized")

func userID(c echo.Context) (uint, error) {
	s, ok := c.Get(middleware.CtxUserID).(string)
	if !ok || s == "" {
		return 0, errNoUser
	}
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil || id == 0 {
		return 0, errNoUser
	}
	return uint(id), nil
}

func role(c echo.Context) models.Role {
	s, _ := c.Get(middleware.CtxRole).(string)
	return models.Role(s)
}

func actor(c echo.Context) (service.Actor, error) {
	id, err := userID(c)
	if err != nil {
		return service.Actor{}, echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	return service.Actor{ID: id, Role: role(c)}, nil
}

func pathID(c echo.Context, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, errors.New("invalid " + name)
	}
	return uint(id), nil
}

func pageParams(c echo.Context) (int, int) {
	page := util.ParseIntDefault(c.QueryParam("page"), 1)
	size := util.ParseIntDefault(c.QueryParam("pageSize"), util.DefaultPageSize)
	return page, size
}

// markDegraded reports side effects that failed after the main write.
func markDegraded(c echo.Context, adv service.Advisory) {
	if adv.Degraded() {
		c.Response().Header().Set(SideEffectsHeader, strings.Join(adv.Effects(), ","))
	}
}

func sessionID(c echo.Context) string {
	if ck, err := c.Cookie(SessionCookie); err == nil && ck.Value != "" {
		return ck.Value
	}
	return strings.TrimSpace(c.Request().Header.Get(SessionHeader))
}

// cartOwner resolves the cart owner: the signed-in user, else the anonymous
// session. With create set, an anonymous caller without a session gets one.
func cartOwner(c echo.Context, create bool) models.CartOwner {
	if id, err := userID(c); err == nil {
		return models.CartOwner{UserID: id}
	}
	sid := sessionID(c)
	if sid == "" && create {
		sid = uuid.NewString()
		c.SetCookie(jwthelp.CreateCookie(SessionCookie, sid, "/", time.Now().Add(sessionCookieMaxAge)))
		c.Response().Header().Set(SessionHeader, sid)
	}
	return models.CartOwner{SessionID: sid}
}

func clearSessionCookie(c echo.Context) {
	c.SetCookie(jwthelp.DeleteCookie(SessionCookie, "/"))
}

func setAuthCookies(c echo.Context, access, refresh string, accessExp, refreshExp time.Time) {
	c.SetCookie(jwthelp.CreateCookie(jwthelp.AccessCookie, access, "/", accessExp))
	c.SetCookie(jwthelp.CreateCookie(jwthelp.RefreshCookie, refresh, "/", refreshExp))
}

func clearAuthCookies(c echo.Context) {
	c.SetCookie(jwthelp.DeleteCookie(jwthelp.AccessCookie, "/"))
	c.SetCookie(jwthelp.DeleteCookie(jwthelp.RefreshCookie, "/"))
}

func noContent(c echo.Context) error {
	return c.NoContent(http.StatusNoContent)
}
