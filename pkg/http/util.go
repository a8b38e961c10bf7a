package http

import (
	"strings"

	"github.com/labstack/echo/v4"
)

// ClientKey identifies the caller for per-client limits.
func ClientKey(c echo.Context) string {
	ip := c.RealIP()
	if ip == "" {
		return "unknown"
	}
	return strings.TrimSpace(ip)
}
