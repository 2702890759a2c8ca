package middleware

import (
	"log/slog"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/resource-api/internal/logging"
)

// RequestLogger puts a request-scoped logger into the request context and
// logs one line per request.  It must run after echo's RequestID middleware.
func RequestLogger(base *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()
			rid := c.Response().Header().Get(echo.HeaderXRequestID)
			l := base.With("request_id", rid, "method", req.Method, "path", c.Path())
			c.SetRequest(req.WithContext(logging.IntoContext(req.Context(), l)))

			err := next(c)
			if err != nil {
				c.Error(err)
			}
			status := c.Response().Status
			attrs := []any{"status", status, "latency_ms", time.Since(start).Milliseconds(), "ip", c.RealIP()}
			switch {
			case status >= 500:
				l.Error("http_request", attrs...)
			case status >= 400:
				l.Warn("http_request", attrs...)
			default:
				l.Info("http_request", attrs...)
			}
			return nil
		}
	}
}
