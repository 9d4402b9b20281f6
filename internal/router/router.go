// Package router maps URLs onto handlers and attaches the middleware each
// group needs.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cliora-storefront/internal/handler"
	"github.com/iliyamo/cliora-storefront/internal/middleware"
	"github.com/iliyamo/cliora-storefront/internal/utils"
)

// RegisterRoutes registers the unauthenticated probes.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/", handler.Root)
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers /api/auth.  limit guards the credential endpoints
// against brute force; /me only needs a valid access token.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, issuer *utils.TokenIssuer, limit echo.MiddlewareFunc) {
	g := e.Group("/api/auth", limit)
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	g.POST("/logout", a.Logout)
	e.GET("/api/auth/me", a.Me, middleware.JWTAuth(issuer))
}

// RegisterCatalog registers the public catalogue reads behind the response
// cache.
func RegisterCatalog(e *echo.Echo, p *handler.ProductHandler, cache echo.MiddlewareFunc) {
	e.GET("/api/products", p.List, cache)
	e.GET("/api/products/:id", p.Get, cache)
	e.GET("/api/categories", p.Categories, cache)
}

// RegisterUploads serves locally stored product images.
func RegisterUploads(e *echo.Echo, dir string) {
	e.Static("/uploads", dir)
}
