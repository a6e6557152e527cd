package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	jwthelp "github.com/Skotchmaster/storefront/pkg/jwt"
	"github.com/Skotchmaster/storefront/pkg/tokens"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var secret = []byte("test-access-secret")

type stubRefresher struct {
	pair  *tokens.Pair
	err   error
	calls int
}

func (s *stubRefresher) RefreshTokens(_ context.Context, _ string) (*tokens.Pair, error) {
	s.calls++
	return s.pair, s.err
}

func accessToken(t *testing.T, role, sub string, exp time.Time) string {
	t.Helper()
	tok, err := tokens.SignAccess(role, sub, exp, secret)
	require.NoError(t, err)
	return tok
}

func run(t *testing.T, mw echo.MiddlewareFunc, cookies ...*http.Cookie) (*httptest.ResponseRecorder, echo.Context, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	err := mw(func(c echo.Context) error { return c.NoContent(http.StatusOK) })(c)
	return rec, c, err
}

func statusOf(t *testing.T, err error) int {
	t.Helper()
	var he *echo.HTTPError
	require.True(t, errors.As(err, &he), "expected echo.HTTPError, got %v", err)
	return he.Code
}

func TestRequireAuth_ValidToken(t *testing.T) {
	m := NewAutoRefreshMiddleware(secret, nil)
	tok := accessToken(t, "customer", "5", time.Now().Add(time.Minute))

	rec, c, err := run(t, m.RequireAuth, &http.Cookie{Name: jwthelp.AccessCookie, Value: tok})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "5", c.Get(CtxUserID))
	assert.Equal(t, "customer", c.Get(CtxRole))
}

func TestRequireAuth_MissingToken(t *testing.T) {
	m := NewAutoRefreshMiddleware(secret, nil)
	_, _, err := run(t, m.RequireAuth)
	assert.Equal(t, http.StatusUnauthorized, statusOf(t, err))
}

func TestRequireAuth_GarbageToken(t *testing.T) {
	m := NewAutoRefreshMiddleware(secret, nil)
	_, _, err := run(t, m.RequireAuth, &http.Cookie{Name: jwthelp.AccessCookie, Value: "garbage"})
	assert.Equal(t, http.StatusUnauthorized, statusOf(t, err))
}

func TestRequireAuth_ExpiredTokenRefreshes(t *testing.T) {
	fresh := accessToken(t, "customer", "9", time.Now().Add(15*time.Minute))
	ref := &stubRefresher{pair: &tokens.Pair{
		AccessToken:  fresh,
		RefreshToken: "new-refresh",
		AccessExp:    time.Now().Add(15 * time.Minute),
		RefreshExp:   time.Now().Add(24 * time.Hour),
	}}
	m := NewAutoRefreshMiddleware(secret, ref)
	expired := accessToken(t, "customer", "9", time.Now().Add(-time.Minute))

	rec, c, err := run(t, m.RequireAuth,
		&http.Cookie{Name: jwthelp.AccessCookie, Value: expired},
		&http.Cookie{Name: jwthelp.RefreshCookie, Value: "old-refresh"},
	)
	require.NoError(t, err)
	assert.Equal(t, 1, ref.calls)
	assert.Equal(t, "9", c.Get(CtxUserID))

	var names []string
	for _, ck := range rec.Result().Cookies() {
		names = append(names, ck.Name)
	}
	assert.ElementsMatch(t, []string{jwthelp.AccessCookie, jwthelp.RefreshCookie}, names)
}

func TestRequireAuth_RefreshFails(t *testing.T) {
	ref := &stubRefresher{err: errors.New("revoked")}
	m := NewAutoRefreshMiddleware(secret, ref)
	expired := accessToken(t, "customer", "9", time.Now().Add(-time.Minute))

	_, _, err := run(t, m.RequireAuth,
		&http.Cookie{Name: jwthelp.AccessCookie, Value: expired},
		&http.Cookie{Name: jwthelp.RefreshCookie, Value: "old-refresh"},
	)
	assert.Equal(t, http.StatusUnauthorized, statusOf(t, err))
}

func TestRequireRole(t *testing.T) {
	m := NewAutoRefreshMiddleware(secret, nil)

	tests := []struct {
		name string
		role string
		want int
	}{
		{"admin allowed", "admin", http.StatusOK},
		{"seller allowed", "seller", http.StatusOK},
		{"customer forbidden", "customer", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tok := accessToken(t, tt.role, "1", time.Now().Add(time.Minute))
			rec, _, err := run(t, m.RequireRole("admin", "seller"), &http.Cookie{Name: jwthelp.AccessCookie, Value: tok})
			if tt.want == http.StatusOK {
				require.NoError(t, err)
				assert.Equal(t, http.StatusOK, rec.Code)
				return
			}
			assert.Equal(t, tt.want, statusOf(t, err))
		})
	}
}

func TestOptionalAuth(t *testing.T) {
	m := NewAutoRefreshMiddleware(secret, nil)

	rec, c, err := run(t, m.OptionalAuth)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, c.Get(CtxUserID))

	tok := accessToken(t, "customer", "3", time.Now().Add(time.Minute))
	_, c, err = run(t, m.OptionalAuth, &http.Cookie{Name: jwthelp.AccessCookie, Value: tok})
	require.NoError(t, err)
	assert.Equal(t, "3", c.Get(CtxUserID))
}

func TestAllowRoles_NarrowsAuthenticatedGroup(t *testing.T) {
	refresher := &stubRefresher{}
	m := NewAutoRefreshMiddleware(secret, refresher)
	chain := func(next echo.HandlerFunc) echo.HandlerFunc {
		return m.RequireRole("admin", "seller")(AllowRoles("admin")(next))
	}

	tok := accessToken(t, "admin", "1", time.Now().Add(time.Minute))
	rec, _, err := run(t, chain, &http.Cookie{Name: jwthelp.AccessCookie, Value: tok})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)

	tok = accessToken(t, "seller", "2", time.Now().Add(time.Minute))
	_, _, err = run(t, chain, &http.Cookie{Name: jwthelp.AccessCookie, Value: tok})
	assert.Equal(t, http.StatusForbidden, statusOf(t, err))

	_, _, err = run(t, AllowRoles("admin"))
	assert.Equal(t, http.StatusForbidden, statusOf(t, err))
	assert.Zero(t, refresher.calls)
}
