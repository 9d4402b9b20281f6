package service

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"github.com/iliyamo/cliora-storefront/internal/model"
	"github.com/iliyamo/cliora-storefront/internal/repository"
)

// CartService reads and batch-writes per-user carts.
type CartService struct {
	store CartStore
}

func NewCartService(store CartStore) *CartService { return &CartService{store: store} }

// Get returns the user's cart lines with their stored snapshots.
func (s *CartService) Get(ctx context.Context, userID uint64) ([]model.CartItem, error) {
	items, err := s.store.CartLines(ctx, userID)
	if err != nil {
		return nil, internal("Failed to fetch cart", err)
	}
	return items, nil
}

// Upsert applies a batch of line changes in one transaction.  Only the first
// MaxCartBatch lines are honoured.  Per line: a zero product id is ignored,
// quantity <= 0 removes the line, an unknown product is skipped, and any
// other line is written with a fresh snapshot of the product.  Unknown
// products never fail the batch; storage errors roll all of it back.
func (s *CartService) Upsert(ctx context.Context, userID uint64, lines []model.CartLine) error {
	if len(lines) > model.MaxCartBatch {
		lines = lines[:model.MaxCartBatch]
	}
	ctx, span := tracer.Start(ctx, "cart.upsert")
	defer span.End()
	span.SetAttributes(attribute.Int("cart.lines", len(lines)))

	err := s.store.CartTx(ctx, func(w repository.CartWriter) error {
		for _, l := range lines {
			if l.ProductID == 0 {
				continue
			}
			if l.Quantity <= 0 {
				if err := w.RemoveLine(ctx, userID, l.ProductID); err != nil {
					return err
				}
				continue
			}
			snap, ok, err := w.ProductSnapshot(ctx, l.ProductID)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			if err := w.UpsertLine(ctx, userID, l.Quantity, snap); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return internal("Failed to update cart", err)
	}
	return nil
}
