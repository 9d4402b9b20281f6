package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cliora-storefront/internal/handler"
	"github.com/iliyamo/cliora-storefront/internal/middleware"
	"github.com/iliyamo/cliora-storefront/internal/utils"
)

// RegisterCustomer registers the shopper's endpoints.  Cart and order
// history need a signed-in user; checkout also serves guests, and the
// payment callback is authenticated by its signature instead of a token.
func RegisterCustomer(e *echo.Echo, cart *handler.CartHandler, co *handler.CheckoutHandler, orders *handler.OrderHandler, issuer *utils.TokenIssuer) {
	auth := middleware.JWTAuth(issuer)

	e.GET("/api/cart", cart.Get, auth)
	e.POST("/api/cart", cart.Upsert, auth)

	e.POST("/api/checkout/session", co.Session, middleware.OptionalJWT(issuer))
	e.POST("/api/stripe/webhook", co.Webhook)

	e.GET("/api/orders/me", orders.Mine, auth)
}
