package auth

import (
	"github.com/labstack/echo/v4"
)

// publicPaths lists endpoints that must stay reachable without credentials:
// health probes and the event discovery endpoint interface engines poll.
var publicPaths = map[string]bool{
	"/health":            true,
	"/health/db":         true,
	"/api/v1/hl7/status": true,
}

// Skipper reports whether the request path bypasses authentication.
func Skipper(c echo.Context) bool {
	return publicPaths[c.Path()]
}
