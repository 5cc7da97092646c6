package auth

import (
	"strings"

	"github.com/labstack/echo/v4"
)

// publicPaths lists URL paths that bypass authentication. These are
// infrastructure endpoints plus the session sign-in route.
var publicPaths = map[string]bool{
	"/health":          true,
	"/health/db":       true,
	"/api/v1/sessions": true,
}

// publicPrefixes lists path prefixes that bypass authentication: the
// patient-facing intake and signup routes, payment webhook deliveries, and
// signed file downloads carry no session token.
var publicPrefixes = []string{
	"/public/",
	"/webhooks/",
	"/files/",
}

// AuthSkipper returns true for requests whose path should skip
// authentication.
func AuthSkipper(c echo.Context) bool {
	return IsPublicPath(c.Request().URL.Path)
}

// IsPublicPath reports whether the given path is reachable without a
// session token.
func IsPublicPath(path string) bool {
	if publicPaths[path] {
		return true
	}
	for _, prefix := range publicPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}
