package middleware

import (
	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/labstack/echo/v4"
)

// XRayMiddleware opens one segment per request and closes it with the
// handler's error so failed requests are flagged in the trace.
func XRayMiddleware(segmentName string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx, seg := xray.BeginSegment(c.Request().Context(), segmentName)
			req := c.Request().Clone(ctx)
			c.SetRequest(req)
			if seg != nil && seg.TraceID != "" {
				c.Response().Header().Set("X-Amzn-Trace-Id", "Root="+seg.TraceID)
			}
			err := next(c)
			if seg != nil {
				if status := c.Response().Status; status >= 500 {
					seg.Lock()
					seg.Fault = true
					seg.Unlock()
				}
				seg.Close(err)
			}
			return err
		}
	}
}
