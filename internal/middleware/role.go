package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// RequireAdmin rejects callers whose identity is not an admin.  It must run
// after JWTAuth.
func RequireAdmin() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, ok := IdentityFrom(c)
			if !ok || !id.IsAdmin() {
				return c.JSON(http.StatusForbidden, echo.Map{"message": "Admin only"})
			}
			return next(c)
		}
	}
}
