package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cliora-storefront/internal/middleware"
	"github.com/iliyamo/cliora-storefront/internal/model"
	"github.com/iliyamo/cliora-storefront/internal/service"
)

const maxWebhookBody = 64 << 10

// PaymentVerifier turns a signed processor callback into a confirmation.
// A nil confirmation means the event needs no action.
type PaymentVerifier interface {
	Parse(payload []byte, signature string) (*model.PaymentConfirmation, error)
}

type CheckoutHandler struct {
	checkout *service.CheckoutService
	orders   *service.OrderService
	verifier PaymentVerifier
}

func NewCheckoutHandler(checkout *service.CheckoutService, orders *service.OrderService, verifier PaymentVerifier) *CheckoutHandler {
	return &CheckoutHandler{checkout: checkout, orders: orders, verifier: verifier}
}

type checkoutItemReq struct {
	ID  flexID  `json:"id"`
	Qty flexInt `json:"qty"`
}

type checkoutReq struct {
	Address model.Address     `json:"address"`
	Items   []checkoutItemReq `json:"items"`
}

// Session handles POST /api/checkout/session.  A valid bearer token, when
// present, attaches the order to the caller.
func (h *CheckoutHandler) Session(c echo.Context) error {
	var req checkoutReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	in := service.CheckoutRequest{Address: req.Address, Items: make([]service.CheckoutItem, 0, len(req.Items))}
	for _, it := range req.Items {
		in.Items = append(in.Items, service.CheckoutItem{ProductID: uint64(it.ID), Qty: int(it.Qty)})
	}
	if id, ok := middleware.IdentityFrom(c); ok {
		uid := id.UserID
		in.UserID = &uid
	}

	ctx, cancel := reqCtx(c)
	defer cancel()
	res, err := h.checkout.CreateSession(ctx, in)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"url": res.URL})
}

var errBodyTooLarge = errors.New("payload too large")

// Webhook handles POST /api/stripe/webhook.  The body is read raw because
// the signature covers the exact bytes.
func (h *CheckoutHandler) Webhook(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody+1))
	if err == nil && len(body) > maxWebhookBody {
		err = errBodyTooLarge
	}
	if err != nil {
		return c.String(http.StatusBadRequest, fmt.Sprintf("Webhook Error: %v", err))
	}

	conf, err := h.verifier.Parse(body, c.Request().Header.Get("Stripe-Signature"))
	if err != nil {
		return c.String(http.StatusBadRequest, "Webhook Error: signature verification failed")
	}
	if conf != nil {
		ctx, cancel := reqCtx(c)
		defer cancel()
		if err := h.orders.ConfirmPayment(ctx, *conf); err != nil {
			logInternal(c, asServiceError(err))
			return c.JSON(http.StatusInternalServerError, echo.Map{"received": false})
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"received": true})
}
