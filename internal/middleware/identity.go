package middleware

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

// userKey identifies the caller for rate-limit keys: the user id when an
// identity is attached, "anon" otherwise.
func userKey(c echo.Context) string {
	if id, ok := IdentityFrom(c); ok && id.UserID != 0 {
		return strconv.FormatUint(id.UserID, 10)
	}
	return "anon"
}
