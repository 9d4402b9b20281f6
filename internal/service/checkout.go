package service

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/iliyamo/cliora-storefront/internal/model"
	"github.com/iliyamo/cliora-storefront/internal/repository"
)

var tracer = otel.Tracer("github.com/iliyamo/cliora-storefront/internal/service")

// CheckoutItem is a requested line.  Any price the client sends is ignored.
type CheckoutItem struct {
	ProductID uint64
	Qty       int
}

// CheckoutRequest is a buyer's checkout.  UserID is nil for guests.
type CheckoutRequest struct {
	UserID  *uint64
	Address model.Address
	Items   []CheckoutItem
}

// CheckoutResult carries the created order and the hosted payment URL.
type CheckoutResult struct {
	OrderID uint64
	URL     string
}

// CheckoutService turns a list of items into a pending order and a hosted
// payment session.
type CheckoutService struct {
	orders   OrderStore
	gateway  PaymentGateway
	currency string
	vatRate  decimal.Decimal
}

func NewCheckoutService(orders OrderStore, gateway PaymentGateway, currency string, vatRate decimal.Decimal) *CheckoutService {
	return &CheckoutService{orders: orders, gateway: gateway, currency: currency, vatRate: vatRate}
}

var errInvalidItem = validation("Invalid item in cart")

// CreateSession prices every item from the catalogue, writes the order and
// its lines in one transaction and then asks the payment processor for a
// hosted page.  An unknown product id rejects the whole request and nothing
// is written.  A processor failure leaves the committed order pending.
func (s *CheckoutService) CreateSession(ctx context.Context, req CheckoutRequest) (CheckoutResult, error) {
	if len(req.Items) == 0 {
		return CheckoutResult{}, validation("No items")
	}
	ctx, span := tracer.Start(ctx, "checkout.create_session")
	defer span.End()

	ids := make([]uint64, 0, len(req.Items))
	seen := make(map[uint64]bool, len(req.Items))
	for _, it := range req.Items {
		if !seen[it.ProductID] {
			seen[it.ProductID] = true
			ids = append(ids, it.ProductID)
		}
	}

	var (
		orderID uint64
		session = model.PaymentSession{Lines: make([]model.PaymentLine, 0, len(req.Items))}
	)
	err := s.orders.OrderTx(ctx, func(w repository.OrderWriter) error {
		prices, err := w.ProductPrices(ctx, ids)
		if err != nil {
			return err
		}
		order := model.NewOrder{
			UserID:   req.UserID,
			Currency: s.currency,
			VATRate:  s.vatRate,
			Address:  req.Address,
			Items:    make([]model.NewOrderItem, 0, len(req.Items)),
		}
		for _, it := range req.Items {
			p, ok := prices[it.ProductID]
			if !ok {
				return errInvalidItem
			}
			qty := max(1, it.Qty)
			order.TotalCents += p.PriceCents * int64(qty)
			order.Items = append(order.Items, model.NewOrderItem{ProductID: p.ID, Quantity: qty, PriceCents: p.PriceCents})
			session.Lines = append(session.Lines, model.PaymentLine{
				Name: p.Name, UnitAmount: p.PriceCents, Currency: p.Currency, Quantity: qty,
			})
		}
		if orderID, err = w.InsertOrder(ctx, order); err != nil {
			return err
		}
		return w.InsertOrderItems(ctx, orderID, order.Items)
	})
	if err != nil {
		var se *Error
		if errors.As(err, &se) {
			return CheckoutResult{}, err
		}
		span.SetStatus(codes.Error, "create order")
		return CheckoutResult{}, internal("Could not start checkout", err)
	}
	span.SetAttributes(attribute.Int64("order.id", int64(orderID)))

	session.OrderID = orderID
	url, err := s.gateway.CreateCheckoutSession(ctx, session)
	if err != nil {
		span.SetStatus(codes.Error, "payment session")
		return CheckoutResult{OrderID: orderID}, internal("Could not start checkout", err)
	}
	return CheckoutResult{OrderID: orderID, URL: url}, nil
}
