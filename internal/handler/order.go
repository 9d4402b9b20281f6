package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cliora-storefront/internal/middleware"
	"github.com/iliyamo/cliora-storefront/internal/model"
	"github.com/iliyamo/cliora-storefront/internal/service"
)

type OrderHandler struct {
	orders *service.OrderService
}

func NewOrderHandler(orders *service.OrderService) *OrderHandler {
	return &OrderHandler{orders: orders}
}

// Mine handles GET /api/orders/me.
func (h *OrderHandler) Mine(c echo.Context) error {
	id, _ := middleware.IdentityFrom(c)
	ctx, cancel := reqCtx(c)
	defer cancel()

	orders, err := h.orders.ListMine(ctx, id.UserID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"orders": orders})
}

// List handles the admin GET /api/orders?status&payment_status&page&page_size.
func (h *OrderHandler) List(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	page, err := h.orders.ListAll(ctx, model.OrderFilter{
		Status:        c.QueryParam("status"),
		PaymentStatus: c.QueryParam("payment_status"),
		Page:          queryInt(c, "page"),
		PageSize:      queryInt(c, "page_size"),
	})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, page)
}

type orderPatchReq struct {
	Status        *string `json:"status"`
	PaymentStatus *string `json:"payment_status"`
}

// Update handles PATCH /api/orders/:id.  Absent fields are left alone.
func (h *OrderHandler) Update(c echo.Context) error {
	id, valid := pathID(c, "id")
	if !valid {
		return c.JSON(http.StatusNotFound, echo.Map{"message": "Order not found"})
	}
	var req orderPatchReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	err := h.orders.Update(ctx, id, model.OrderUpdate{Status: req.Status, PaymentStatus: req.PaymentStatus})
	if err != nil {
		return fail(c, err)
	}
	return ok(c)
}
