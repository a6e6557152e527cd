package idempotency

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/storefront/pkg/logging"
)

const (
	HeaderKey      = "Idempotency-Key"
	HeaderReplayed = "Idempotent-Replayed"
	maxKeyLength   = 255
)

type recorder struct {
	http.ResponseWriter
	buf    bytes.Buffer
	status int
}

func (r *recorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *recorder) Write(b []byte) (int, error) {
	r.buf.Write(b)
	return r.ResponseWriter.Write(b)
}

// Middleware scopes keys by the "user_id" set by the auth middleware, so it
// must run after it. Requests without the header pass straight through. A
// store outage disables deduplication rather than failing the request.
func Middleware(store Store) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(HeaderKey)
			if header == "" {
				return next(c)
			}
			if len(header) > maxKeyLength {
				return echo.NewHTTPError(http.StatusBadRequest, "Idempotency-Key too long")
			}

			ctx := c.Request().Context()
			l := logging.FromContext(ctx).With("middleware", "idempotency")
			key := fmt.Sprintf("%v:%s:%s", c.Get("user_id"), c.Request().URL.Path, header)

			cached, err := store.Begin(ctx, key)
			switch {
			case errors.Is(err, ErrInFlight):
				return echo.NewHTTPError(http.StatusConflict, "a request with this Idempotency-Key is still in progress")
			case err != nil:
				l.Warn("idempotency_unavailable", "error", err)
				return next(c)
			case cached != nil:
				c.Response().Header().Set(HeaderReplayed, "true")
				return c.Blob(cached.Status, cached.ContentType, cached.Body)
			}

			rec := &recorder{ResponseWriter: c.Response().Writer, status: http.StatusOK}
			c.Response().Writer = rec
			herr := next(c)
			c.Response().Writer = rec.ResponseWriter

			storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), DefaultPendingTTL)
			defer cancel()
			if herr != nil || rec.status < 200 || rec.status >= 300 {
				if err := store.Release(storeCtx, key); err != nil {
					l.Warn("idempotency_release_failed", "error", err)
				}
				return herr
			}
			resp := Response{
				Status:      rec.status,
				ContentType: c.Response().Header().Get(echo.HeaderContentType),
				Body:        rec.buf.Bytes(),
			}
			if err := store.Complete(storeCtx, key, resp); err != nil {
				l.Warn("idempotency_store_failed", "error", err)
			}
			return nil
		}
	}
}
