package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/iliyamo/cliora-storefront/internal/model"
)

// CartWriter is the set of statements a cart batch may run inside its
// transaction.
type CartWriter interface {
	RemoveLine(ctx context.Context, userID, productID uint64) error
	ProductSnapshot(ctx context.Context, productID uint64) (model.ProductSnapshot, bool, error)
	UpsertLine(ctx context.Context, userID uint64, quantity int, snap model.ProductSnapshot) error
}

// CartRepo stores per-user carts in cart_items.  Currency is the fallback
// used when neither the snapshot nor the live product has one.
type CartRepo struct {
	DB       *sql.DB
	Currency string
}

func NewCartRepo(db *sql.DB, currency string) *CartRepo {
	return &CartRepo{DB: db, Currency: currency}
}

// primaryImageSQL selects a product's primary image, falling back to the
// oldest one.  It expects the product row aliased as p.
const primaryImageSQL = `(SELECT i.path FROM product_images i
	WHERE i.product_id = p.id ORDER BY i.is_primary DESC, i.id ASC LIMIT 1)`

// CartLines returns every line of the user's cart in insertion order.  The
// stored snapshot wins over the live product; the product only fills fields
// the snapshot lacks.
func (r *CartRepo) CartLines(ctx context.Context, userID uint64) ([]model.CartItem, error) {
	q := `SELECT ci.product_id, ci.quantity,
		COALESCE(ci.unit_price_cents, p.price_cents, 0),
		COALESCE(ci.currency, p.currency, ?),
		COALESCE(ci.name, p.name, 'Unknown'),
		COALESCE(ci.image, ` + primaryImageSQL + `, '')
	FROM cart_items ci
	LEFT JOIN products p ON p.id = ci.product_id
	WHERE ci.user_id = ?
	ORDER BY ci.id ASC`
	rows, err := r.DB.QueryContext(ctx, q, r.Currency, userID)
	if err != nil {
		return nil, fmt.Errorf("cart lines: %w", err)
	}
	defer rows.Close()

	items := make([]model.CartItem, 0)
	for rows.Next() {
		var it model.CartItem
		if err := rows.Scan(&it.ProductID, &it.Quantity, &it.UnitPriceCents, &it.Currency, &it.Name, &it.Image); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// CartTx runs fn against one transaction; all of its writes commit together
// or not at all.
func (r *CartRepo) CartTx(ctx context.Context, fn func(CartWriter) error) error {
	return inTx(ctx, r.DB, func(tx *sql.Tx) error {
		return fn(cartTx{tx: tx, currency: r.Currency})
	})
}

type cartTx struct {
	tx       *sql.Tx
	currency string
}

func (c cartTx) RemoveLine(ctx context.Context, userID, productID uint64) error {
	_, err := c.tx.ExecContext(ctx, "DELETE FROM cart_items WHERE user_id = ? AND product_id = ?", userID, productID)
	return err
}

func (c cartTx) ProductSnapshot(ctx context.Context, productID uint64) (model.ProductSnapshot, bool, error) {
	q := `SELECT p.id, p.name, p.price_cents, p.currency, COALESCE(` + primaryImageSQL + `, '')
	FROM products p WHERE p.id = ? LIMIT 1`
	var s model.ProductSnapshot
	err := c.tx.QueryRowContext(ctx, q, productID).Scan(&s.ProductID, &s.Name, &s.PriceCents, &s.Currency, &s.Image)
	if errors.Is(err, sql.ErrNoRows) {
		return model.ProductSnapshot{}, false, nil
	}
	if err != nil {
		return model.ProductSnapshot{}, false, err
	}
	return s, true, nil
}

// UpsertLine writes quantity and a fresh snapshot in one statement under the
// (user_id, product_id) unique key, so two concurrent writers of the same
// line cannot both insert.
func (c cartTx) UpsertLine(ctx context.Context, userID uint64, quantity int, snap model.ProductSnapshot) error {
	currency := snap.Currency
	if currency == "" {
		currency = c.currency
	}
	_, err := c.tx.ExecContext(ctx, `INSERT INTO cart_items
		(user_id, product_id, quantity, unit_price_cents, currency, name, image)
		VALUES (?,?,?,?,?,?,?)
		ON DUPLICATE KEY UPDATE
			quantity = VALUES(quantity),
			unit_price_cents = VALUES(unit_price_cents),
			currency = VALUES(currency),
			name = VALUES(name),
			image = VALUES(image),
			updated_at = CURRENT_TIMESTAMP`,
		userID, snap.ProductID, quantity, snap.PriceCents, currency, snap.Name, snap.Image)
	return err
}
