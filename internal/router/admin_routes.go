package router

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/cliora-storefront/internal/handler"
	"github.com/iliyamo/cliora-storefront/internal/middleware"
	"github.com/iliyamo/cliora-storefront/internal/utils"
)

// RegisterAdmin registers catalogue mutations and order administration.
// Every route requires an access token whose role is admin.
func RegisterAdmin(e *echo.Echo, p *handler.ProductHandler, orders *handler.OrderHandler, issuer *utils.TokenIssuer) {
	// per route: a Group("/api") with middleware would also catch unmatched /api paths
	admin := []echo.MiddlewareFunc{middleware.JWTAuth(issuer), middleware.RequireAdmin()}
	// four images per product
	uploads := append(admin, echomw.BodyLimit("25M"))

	e.POST("/api/products", p.Create, uploads...)
	e.PUT("/api/products/:id", p.Update, uploads...)
	e.DELETE("/api/products/:id", p.Delete, admin...)

	e.GET("/api/orders", orders.List, admin...)
	e.PATCH("/api/orders/:id", orders.Update, admin...)
}
