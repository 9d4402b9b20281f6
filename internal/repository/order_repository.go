package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/cliora-storefront/internal/model"
)

// OrderWriter is the set of statements order creation runs inside its
// transaction.
type OrderWriter interface {
	ProductPrices(ctx context.Context, ids []uint64) (map[uint64]model.PricedProduct, error)
	InsertOrder(ctx context.Context, o model.NewOrder) (uint64, error)
	InsertOrderItems(ctx context.Context, orderID uint64, items []model.NewOrderItem) error
}

// OrderRepo provides access to orders and order_items.  Order items are
// written once, in the same transaction as their order, and never updated.
type OrderRepo struct {
	db *sql.DB
}

// NewOrderRepo returns a new OrderRepo bound to the given database.
func NewOrderRepo(db *sql.DB) *OrderRepo { return &OrderRepo{db: db} }

// OrderTx runs fn against one transaction.
func (r *OrderRepo) OrderTx(ctx context.Context, fn func(OrderWriter) error) error {
	return inTx(ctx, r.db, func(tx *sql.Tx) error { return fn(orderTx{tx: tx}) })
}

type orderTx struct{ tx *sql.Tx }

// ProductPrices reads the current price of each product id that exists.
// Missing ids are simply absent from the map.
func (o orderTx) ProductPrices(ctx context.Context, ids []uint64) (map[uint64]model.PricedProduct, error) {
	out := make(map[uint64]model.PricedProduct, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := o.tx.QueryContext(ctx,
		"SELECT id, name, price_cents, currency FROM products WHERE id IN ("+placeholders(len(ids))+")", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var p model.PricedProduct
		if err := rows.Scan(&p.ID, &p.Name, &p.PriceCents, &p.Currency); err != nil {
			return nil, err
		}
		out[p.ID] = p
	}
	return out, rows.Err()
}

// InsertOrder creates the order row in pending/pending and returns its id.
// Empty address fields are stored as NULL.
func (o orderTx) InsertOrder(ctx context.Context, ord model.NewOrder) (uint64, error) {
	const q = `INSERT INTO orders
		(user_id, status, payment_status, total_cents, currency, vat_rate, name, email, address_line1, city, postal_code)
		VALUES (?, 'pending', 'pending', ?, ?, ?, ?, ?, ?, ?, ?)`
	var userID interface{}
	if ord.UserID != nil {
		userID = *ord.UserID
	}
	a := ord.Address
	res, err := o.tx.ExecContext(ctx, q, userID, ord.TotalCents, ord.Currency, ord.VATRate,
		nullable(a.Name), nullable(a.Email), nullable(a.Line1), nullable(a.City), nullable(a.PostalCode))
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// InsertOrderItems inserts every line in a single statement.  Passing an
// empty slice has no effect and returns nil.
func (o orderTx) InsertOrderItems(ctx context.Context, orderID uint64, items []model.NewOrderItem) error {
	if len(items) == 0 {
		return nil
	}
	query := `INSERT INTO order_items (order_id, product_id, quantity, price_cents) VALUES `
	args := make([]interface{}, 0, len(items)*4)
	for i, it := range items {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?, ?)"
		args = append(args, orderID, it.ProductID, it.Quantity, it.PriceCents)
	}
	_, err := o.tx.ExecContext(ctx, query, args...)
	return err
}

const orderColumns = `id, user_id, status, payment_status, total_cents, currency, vat_rate,
	name, email, address_line1, city, postal_code, stripe_payment_intent_id, created_at`

func scanOrder(sc interface{ Scan(...any) error }) (model.Order, error) {
	var (
		o      model.Order
		userID sql.NullInt64
		ns     [6]sql.NullString // name, email, line1, city, postal code, payment intent
	)
	err := sc.Scan(&o.ID, &userID, &o.Status, &o.PaymentStatus, &o.TotalCents, &o.Currency, &o.VATRate,
		&ns[0], &ns[1], &ns[2], &ns[3], &ns[4], &ns[5], &o.CreatedAt)
	if err != nil {
		return model.Order{}, err
	}
	if userID.Valid {
		id := uint64(userID.Int64)
		o.UserID = &id
	}
	o.Name, o.Email, o.AddressLine1 = strPtr(ns[0]), strPtr(ns[1]), strPtr(ns[2])
	o.City, o.PostalCode, o.StripePaymentIntentID = strPtr(ns[3]), strPtr(ns[4]), strPtr(ns[5])
	return o, nil
}

// OrderByID loads a single order without its items.
func (r *OrderRepo) OrderByID(ctx context.Context, id uint64) (model.Order, error) {
	o, err := scanOrder(r.db.QueryRowContext(ctx, "SELECT "+orderColumns+" FROM orders WHERE id = ?", id))
	if err != nil {
		return model.Order{}, classify(err)
	}
	return o, nil
}

// OrdersByUser returns the user's orders newest first with their items.
// Item prices are the captured ones; name, slug and image come from the live
// product and are NULL when it no longer exists.
func (r *OrderRepo) OrdersByUser(ctx context.Context, userID uint64) ([]model.Order, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+orderColumns+" FROM orders WHERE user_id = ? ORDER BY created_at DESC, id DESC", userID)
	if err != nil {
		return nil, fmt.Errorf("orders by user: %w", err)
	}
	orders := make([]model.Order, 0)
	index := map[uint64]int{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		o.Items = []model.OrderItem{}
		index[o.ID] = len(orders)
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()
	if len(orders) == 0 {
		return orders, nil
	}

	args := make([]interface{}, len(orders))
	for i, o := range orders {
		args[i] = o.ID
	}
	itemRows, err := r.db.QueryContext(ctx, `SELECT oi.order_id, oi.product_id, oi.quantity, oi.price_cents,
		p.name, p.slug, `+primaryImageSQL+`
	FROM order_items oi
	LEFT JOIN products p ON p.id = oi.product_id
	WHERE oi.order_id IN (`+placeholders(len(args))+`)
	ORDER BY oi.order_id, oi.id`, args...)
	if err != nil {
		return nil, fmt.Errorf("order items: %w", err)
	}
	defer itemRows.Close()
	for itemRows.Next() {
		var (
			orderID           uint64
			it                model.OrderItem
			name, slug, image sql.NullString
		)
		if err := itemRows.Scan(&orderID, &it.ProductID, &it.Quantity, &it.PriceCents, &name, &slug, &image); err != nil {
			return nil, err
		}
		it.Name, it.Slug, it.Image = strPtr(name), strPtr(slug), strPtr(image)
		if i, ok := index[orderID]; ok {
			orders[i].Items = append(orders[i].Items, it)
		}
	}
	return orders, itemRows.Err()
}

// ListOrders returns one page of all orders, guest orders included.  The
// email shown is the account's when the order has one, else the checkout
// contact email.
func (r *OrderRepo) ListOrders(ctx context.Context, f model.OrderFilter) (model.OrderPage, error) {
	var (
		where []string
		args  []interface{}
	)
	if f.Status != "" {
		where = append(where, "o.status = ?")
		args = append(args, f.Status)
	}
	if f.PaymentStatus != "" {
		where = append(where, "o.payment_status = ?")
		args = append(args, f.PaymentStatus)
	}
	whereSQL := ""
	if len(where) > 0 {
		whereSQL = " WHERE " + strings.Join(where, " AND ")
	}

	page := model.OrderPage{Orders: []model.OrderSummary{}, Page: f.Page, PageSize: f.PageSize}
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM orders o"+whereSQL, args...).Scan(&page.Total); err != nil {
		return model.OrderPage{}, fmt.Errorf("count orders: %w", err)
	}

	q := `SELECT o.id, o.user_id, o.status, o.payment_status, o.total_cents, o.currency,
		COALESCE(u.email, o.email), o.created_at
	FROM orders o LEFT JOIN users u ON u.id = o.user_id` + whereSQL + `
	ORDER BY o.created_at DESC, o.id DESC LIMIT ? OFFSET ?`
	rows, err := r.db.QueryContext(ctx, q, append(args, f.PageSize, (f.Page-1)*f.PageSize)...)
	if err != nil {
		return model.OrderPage{}, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			s      model.OrderSummary
			userID sql.NullInt64
			email  sql.NullString
		)
		if err := rows.Scan(&s.ID, &userID, &s.Status, &s.PaymentStatus, &s.TotalCents, &s.Currency, &email, &s.CreatedAt); err != nil {
			return model.OrderPage{}, err
		}
		if userID.Valid {
			id := uint64(userID.Int64)
			s.UserID = &id
		}
		s.Email = strPtr(email)
		page.Orders = append(page.Orders, s)
	}
	return page, rows.Err()
}

// UpdateOrderStatus writes the supplied fields verbatim.  ErrNotFound is
// returned when no order has that id.
func (r *OrderRepo) UpdateOrderStatus(ctx context.Context, id uint64, u model.OrderUpdate) error {
	var (
		sets []string
		args []interface{}
	)
	if u.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, *u.Status)
	}
	if u.PaymentStatus != nil {
		sets = append(sets, "payment_status = ?")
		args = append(args, *u.PaymentStatus)
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, id)
	res, err := r.db.ExecContext(ctx, "UPDATE orders SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkOrderPaid moves an order to paid/paid and records the payment intent.
// It reports false when the order does not exist or was already paid, which
// makes repeated confirmations harmless.
func (r *OrderRepo) MarkOrderPaid(ctx context.Context, id uint64, paymentIntentID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE orders
		SET payment_status = 'paid', status = 'paid', stripe_payment_intent_id = ?
		WHERE id = ? AND payment_status <> 'paid'`,
		nullable(paymentIntentID), id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// CancelStalePending cancels orders still awaiting payment that were created
// before the cutoff and returns how many were changed.
func (r *OrderRepo) CancelStalePending(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE orders
		SET status = 'cancelled', payment_status = 'expired'
		WHERE status = 'pending' AND payment_status = 'pending' AND created_at < ?`,
		before.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func strPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
