package middleware

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const RequestIDHeader = "X-Request-ID"

// requestIDContextKey keeps the echo context entry private to this package;
// handlers and sibling middleware read the id through RequestIDFrom.
const requestIDContextKey = "middleware.request_id"

// RequestID attaches a request id to every request, honoring an inbound
// header when present so upstream proxies can correlate logs.
func RequestID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			rid := c.Request().Header.Get(RequestIDHeader)
			if rid == "" {
				rid = uuid.NewString()
			}
			c.Set(requestIDContextKey, rid)
			c.Response().Header().Set(RequestIDHeader, rid)
			return next(c)
		}
	}
}

// RequestIDFrom returns the id stamped by RequestID, or "" when the
// middleware did not run (direct handler tests, health probes).
func RequestIDFrom(c echo.Context) string {
	rid, _ := c.Get(requestIDContextKey).(string)
	return rid
}
