package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cliora-storefront/internal/middleware"
	"github.com/iliyamo/cliora-storefront/internal/model"
	"github.com/iliyamo/cliora-storefront/internal/service"
)

type CartHandler struct {
	cart *service.CartService
}

func NewCartHandler(cart *service.CartService) *CartHandler { return &CartHandler{cart: cart} }

type cartLineReq struct {
	ProductID flexID  `json:"product_id"`
	Quantity  flexInt `json:"quantity"`
}

type cartReq struct {
	Items []cartLineReq `json:"items"`
}

func (h *CartHandler) Get(c echo.Context) error {
	id, _ := middleware.IdentityFrom(c)
	ctx, cancel := reqCtx(c)
	defer cancel()

	items, err := h.cart.Get(ctx, id.UserID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// Upsert handles POST /api/cart {items:[{product_id, quantity}]}.
func (h *CartHandler) Upsert(c echo.Context) error {
	var req cartReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if len(req.Items) == 0 {
		return c.JSON(http.StatusOK, echo.Map{"ok": true, "items": []model.CartItem{}})
	}
	lines := make([]model.CartLine, 0, len(req.Items))
	for _, it := range req.Items {
		lines = append(lines, model.CartLine{ProductID: uint64(it.ProductID), Quantity: int(it.Quantity)})
	}

	id, _ := middleware.IdentityFrom(c)
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.cart.Upsert(ctx, id.UserID, lines); err != nil {
		return fail(c, err)
	}
	return ok(c)
}
