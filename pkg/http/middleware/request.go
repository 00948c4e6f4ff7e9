package middleware

import (
	"time"

	applogger "CoveredCall/pkg/logger"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const loggerKey = "logger"

// RequestLogger tags each request with an X-Request-ID (kept when the client sent one)
// and logs it once it completes. 5xx responses log at error level so they land in the
// log digests. Paths in skip are served but not logged.
func RequestLogger(l *applogger.Logger, skip ...string) echo.MiddlewareFunc {
	quiet := make(map[string]bool, len(skip))
	for _, p := range skip {
		quiet[p] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			id := req.Header.Get(echo.HeaderXRequestID)
			if id == "" {
				id = uuid.NewString()
			}
			c.Response().Header().Set(echo.HeaderXRequestID, id)
			rl := l.With(applogger.String("request_id", id))
			c.Set(loggerKey, rl)

			start := time.Now()
			if err := next(c); err != nil {
				c.Error(err)
			}
			if quiet[c.Path()] {
				return nil
			}

			status := c.Response().Status
			fields := []applogger.Field{
				applogger.String("method", req.Method),
				applogger.String("route", c.Path()),
				applogger.String("uri", req.RequestURI),
				applogger.String("remote", c.RealIP()),
				applogger.Int("status", status),
				applogger.Duration("latency", time.Since(start)),
			}
			if status >= 500 {
				rl.Error("http request failed", fields...)
			} else {
				rl.Info("http request", fields...)
			}
			return nil
		}
	}
}

// Logger returns the request-scoped logger, or fallback outside RequestLogger.
func Logger(c echo.Context, fallback *applogger.Logger) *applogger.Logger {
	if l, ok := c.Get(loggerKey).(*applogger.Logger); ok {
		return l
	}
	return fallback
}
