package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/iliyamo/cliora-storefront/internal/model"
	"github.com/iliyamo/cliora-storefront/internal/queue"
	"github.com/iliyamo/cliora-storefront/internal/repository"
	"github.com/iliyamo/cliora-storefront/internal/utils"
)

const (
	defaultOrderPageSize = 20
	maxOrderPageSize     = 100
)

// OrderService covers the order read paths, admin updates, payment
// confirmation and the expiry of abandoned orders.
type OrderService struct {
	orders     OrderStore
	events     EventPublisher
	pendingTTL time.Duration
	now        func() time.Time
}

// NewOrderService wires the service.  events may be nil, in which case no
// order.paid events are published.  A pendingTTL of zero disables expiry.
func NewOrderService(orders OrderStore, events EventPublisher, pendingTTL time.Duration) *OrderService {
	return &OrderService{
		orders:     orders,
		events:     events,
		pendingTTL: pendingTTL,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// ListMine returns the user's orders newest first with their lines.
func (s *OrderService) ListMine(ctx context.Context, userID uint64) ([]model.Order, error) {
	orders, err := s.orders.OrdersByUser(ctx, userID)
	if err != nil {
		return nil, internal("Error fetching orders", err)
	}
	for i := range orders {
		orders[i].VATCents = utils.VATPortion(orders[i].TotalCents, orders[i].VATRate)
	}
	return orders, nil
}

// ListAll returns one page of every order for admins.
func (s *OrderService) ListAll(ctx context.Context, f model.OrderFilter) (model.OrderPage, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 {
		f.PageSize = defaultOrderPageSize
	}
	if f.PageSize > maxOrderPageSize {
		f.PageSize = maxOrderPageSize
	}
	page, err := s.orders.ListOrders(ctx, f)
	if err != nil {
		return model.OrderPage{}, internal("Error fetching orders", err)
	}
	return page, nil
}

// Update writes the supplied status fields without checking transitions.
func (s *OrderService) Update(ctx context.Context, id uint64, u model.OrderUpdate) error {
	if u.Empty() {
		return validation("No fields to update")
	}
	err := s.orders.UpdateOrderStatus(ctx, id, u)
	if errors.Is(err, repository.ErrNotFound) {
		return notFound("Order not found")
	}
	if err != nil {
		return internal("Error updating order", err)
	}
	return nil
}

// ConfirmPayment marks the order paid.  Unknown and already paid orders are
// left untouched without error so the processor stops retrying.  The first
// transition publishes an order.paid event; publish failures are logged.
func (s *OrderService) ConfirmPayment(ctx context.Context, c model.PaymentConfirmation) error {
	if c.OrderID == 0 {
		return nil
	}
	ctx, span := tracer.Start(ctx, "order.confirm_payment")
	defer span.End()
	span.SetAttributes(attribute.Int64("order.id", int64(c.OrderID)))

	changed, err := s.orders.MarkOrderPaid(ctx, c.OrderID, c.PaymentIntentID)
	if err != nil {
		span.RecordError(err)
		return internal("Webhook handling error", err)
	}
	span.SetAttributes(attribute.Bool("order.transitioned", changed))
	if !changed {
		slog.InfoContext(ctx, "payment confirmation ignored", "order_id", c.OrderID)
		return nil
	}
	slog.InfoContext(ctx, "order paid", "order_id", c.OrderID, "payment_intent", c.PaymentIntentID)
	s.publishPaid(ctx, c)
	return nil
}

func (s *OrderService) publishPaid(ctx context.Context, c model.PaymentConfirmation) {
	if s.events == nil {
		return
	}
	o, err := s.orders.OrderByID(ctx, c.OrderID)
	if err != nil {
		slog.WarnContext(ctx, "order.paid event skipped", "order_id", c.OrderID, "err", err)
		return
	}
	ev := queue.OrderPaidEvent{
		OrderID:         o.ID,
		UserID:          o.UserID,
		TotalCents:      o.TotalCents,
		Currency:        o.Currency,
		PaymentIntentID: c.PaymentIntentID,
		PaidAt:          s.now().Format(time.RFC3339),
	}
	if o.Email != nil {
		ev.Email = *o.Email
	}
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.events.PublishOrderPaid(pctx, ev); err != nil {
		slog.WarnContext(ctx, "order.paid publish failed", "order_id", c.OrderID, "err", err)
	}
}

// ExpireStale cancels orders that have been awaiting payment for longer than
// the pending TTL and returns how many were changed.
func (s *OrderService) ExpireStale(ctx context.Context) (int64, error) {
	if s.pendingTTL <= 0 {
		return 0, nil
	}
	return s.orders.CancelStalePending(ctx, s.now().Add(-s.pendingTTL))
}

// RunSweeper calls ExpireStale immediately and then on every tick until ctx
// is cancelled.
func (s *OrderService) RunSweeper(ctx context.Context, every time.Duration) {
	if s.pendingTTL <= 0 || every <= 0 {
		return
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		if n, err := s.ExpireStale(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Error("order sweep failed", "err", err)
		} else if n > 0 {
			slog.Info("expired abandoned orders", "count", n)
		}
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}
