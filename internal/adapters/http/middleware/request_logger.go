package middleware

import (
	"errors"
	"time"

	"github.com/labstack/echo/v4"

	"citizen-portal/internal/ports"
)

type RequestRecorder interface {
	ObserveRequest(method, route string, status int, d time.Duration)
}

// RequestLogger logs every request and, when recorder is non-nil, records it
// as a metric under its route pattern.
func RequestLogger(logger ports.Logger, recorder RequestRecorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			started := time.Now()
			err := next(c)
			duration := time.Since(started)
			ctx := c.Request().Context()
			status := c.Response().Status
			if err != nil {
				var he *echo.HTTPError
				if errors.As(err, &he) {
					status = he.Code
				}
			}
			args := []any{
				"method", c.Request().Method,
				"path", c.Request().URL.Path,
				"route_pattern", c.Path(),
				"status", status,
				"duration", duration.String(),
			}
			if rid := c.Response().Header().Get(echo.HeaderXRequestID); rid != "" {
				args = append(args, "request_id", rid)
			}
			if user, ok := c.Get(ContextUserID).(string); ok && user != "" {
				args = append(args, "user_id", user)
			}
			if status >= 500 {
				logger.Error(ctx, "http request", args...)
			} else {
				logger.Info(ctx, "http request", args...)
			}
			if recorder != nil {
				recorder.ObserveRequest(c.Request().Method, c.Path(), status, duration)
			}
			return err
		}
	}
}
