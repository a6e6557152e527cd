package csrf

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
)

// ContextKey holds the verified token for handlers that render it.
const ContextKey = "csrf_token"

type Config struct {
	CookieName string
	HeaderName string
	FormField  string

	CookiePath string
	Domain     string
	Secure     bool
	SameSite   http.SameSite
	MaxAge     time.Duration

	// AllowCrossOrigin turns off the Origin/Referer check. The zero value
	// keeps it on.
	AllowCrossOrigin bool
	// TrustedOrigins are extra origins (scheme://host) accepted besides the
	// request's own host, e.g. the storefront SPA.
	TrustedOrigins []string

	// SkipRoutes are echo route patterns ("/api/auth/login",
	// "/api/orders/:id") exempt from the check.
	SkipRoutes []string
}

func DefaultConfig() Config {
	return Config{
		CookieName: "XSRF-TOKEN",
		HeaderName: "X-CSRF-Token",
		FormField:  "csrf_token",
		CookiePath: "/",
		Secure:     true,
		SameSite:   http.SameSiteLaxMode,
		MaxAge:     24 * time.Hour,
	}
}

func (cfg Config) withDefaults() Config {
	def := DefaultConfig()
	if cfg.CookieName == "" {
		cfg.CookieName = def.CookieName
	}
	if cfg.HeaderName == "" {
		cfg.HeaderName = def.HeaderName
	}
	if cfg.FormField == "" {
		cfg.FormField = def.FormField
	}
	if cfg.CookiePath == "" {
		cfg.CookiePath = def.CookiePath
	}
	if cfg.SameSite == 0 {
		cfg.SameSite = def.SameSite
	}
	if cfg.MaxAge == 0 {
		cfg.MaxAge = def.MaxAge
	}
	return cfg
}

type guard struct {
	cfg     Config
	skip    map[string]struct{}
	trusted []string
}

// Middleware implements the double-submit cookie pattern: unsafe methods must
// echo the cookie value in a header or form field and come from an allowed
// origin. It must run after routing (e.Use) so skip rules see route patterns.
func Middleware(cfg Config) echo.MiddlewareFunc {
	g := &guard{cfg: cfg.withDefaults(), skip: map[string]struct{}{}}
	for _, p := range cfg.SkipRoutes {
		g.skip[p] = struct{}{}
	}
	for _, o := range cfg.TrustedOrigins {
		g.trusted = append(g.trusted, strings.ToLower(strings.TrimRight(o, "/")))
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if g.skipped(c) {
				return next(c)
			}

			req := c.Request()
			token := readCookie(req, g.cfg.CookieName)
			if token == "" {
				var err error
				if token, err = newToken(32); err != nil {
					return echo.NewHTTPError(http.StatusInternalServerError, "failed to create CSRF token")
				}
				g.setCookie(c, token)
			}

			switch req.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				c.Response().Header().Set(g.cfg.HeaderName, token)
				return next(c)
			}

			if !g.cfg.AllowCrossOrigin && !g.originAllowed(req) {
				return echo.NewHTTPError(http.StatusForbidden, "invalid origin")
			}
			provided := g.providedToken(req)
			if provided == "" || subtle.ConstantTimeCompare([]byte(token), []byte(provided)) != 1 {
				return echo.NewHTTPError(http.StatusForbidden, "invalid CSRF token")
			}

			c.Set(ContextKey, token)
			return next(c)
		}
	}
}

func (g *guard) skipped(c echo.Context) bool {
	if _, ok := g.skip[c.Path()]; ok {
		return true
	}
	_, ok := g.skip[c.Request().URL.Path]
	return ok
}

func (g *guard) providedToken(req *http.Request) string {
	if v := req.Header.Get(g.cfg.HeaderName); v != "" {
		return v
	}
	if err := req.ParseForm(); err != nil {
		return ""
	}
	return req.FormValue(g.cfg.FormField)
}

func (g *guard) originAllowed(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		origin = r.Header.Get("Referer")
	}
	if origin == "" {
		return false
	}
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}
	if strings.EqualFold(u.Scheme, schemeOf(r)) && strings.EqualFold(u.Host, r.Host) {
		return true
	}
	return slices.Contains(g.trusted, strings.ToLower(u.Scheme+"://"+u.Host))
}

func (g *guard) setCookie(c echo.Context, token string) {
	c.SetCookie(&http.Cookie{
		Name:     g.cfg.CookieName,
		Value:    token,
		Path:     g.cfg.CookiePath,
		Domain:   g.cfg.Domain,
		Secure:   g.cfg.Secure,
		HttpOnly: false,
		MaxAge:   int(g.cfg.MaxAge.Seconds()),
		SameSite: g.cfg.SameSite,
	})
}

func newToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func readCookie(req *http.Request, name string) string {
	c, err := req.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}

func schemeOf(r *http.Request) string {
	if p := r.Header.Get("X-Forwarded-Proto"); p != "" {
		return p
	}
	if r.TLS != nil {
		return "https"
	}
	return "http"
}
