package middleware

// identity.go holds the helpers that turn the authenticated identity into
// the strings used for cache keys, rate-limit keys and request logs.

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

// userID returns the authenticated user ID stored by JWTAuth, or "guest"
// when the request is anonymous.
func userID(c echo.Context) string {
	switch v := c.Get(ContextUserID).(type) {
	case uint64:
		return strconv.FormatUint(v, 10)
	case string:
		if v != "" {
			return v
		}
	}
	return "guest"
}
