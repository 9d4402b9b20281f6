package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cliora-storefront/internal/model"
	"github.com/iliyamo/cliora-storefront/internal/utils"
)

const identityKey = "identity"

// bearer returns the token from "Authorization: Bearer <token>", or "".
func bearer(c echo.Context) string {
	auth := c.Request().Header.Get(echo.HeaderAuthorization)
	if !strings.HasPrefix(auth, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
}

// JWTAuth requires a valid access token and stores the caller's identity in
// the context.  Handlers read it back with IdentityFrom.
func JWTAuth(issuer *utils.TokenIssuer) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := bearer(c)
			if raw == "" {
				return c.JSON(http.StatusUnauthorized, echo.Map{"message": "Missing token"})
			}
			id, err := issuer.ParseAccess(raw)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"message": "Invalid or expired token"})
			}
			c.Set(identityKey, id)
			return next(c)
		}
	}
}

// OptionalJWT attaches the identity when a valid access token is present
// and otherwise lets the request through as anonymous.
func OptionalJWT(issuer *utils.TokenIssuer) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if raw := bearer(c); raw != "" {
				if id, err := issuer.ParseAccess(raw); err == nil {
					c.Set(identityKey, id)
				}
			}
			return next(c)
		}
	}
}

// IdentityFrom returns the identity set by JWTAuth or OptionalJWT.
func IdentityFrom(c echo.Context) (model.Identity, bool) {
	id, ok := c.Get(identityKey).(model.Identity)
	return id, ok
}
