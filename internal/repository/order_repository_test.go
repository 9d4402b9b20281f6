package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cliora-storefront/internal/model"
)

func TestOrderTxCreatesOrderAndItems(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewOrderRepo(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, name, price_cents, currency FROM products WHERE id IN \\(\\?,\\?\\)").
		WithArgs(uint64(1), uint64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "price_cents", "currency"}).
			AddRow(1, "A", 500, "GBP").AddRow(2, "B", 1000, "GBP"))
	mock.ExpectExec("INSERT INTO orders").
		WithArgs(nil, int64(2000), "GBP", decimal.RequireFromString("0.2"), "Ann", nil, nil, nil, nil).
		WillReturnResult(sqlmock.NewResult(77, 1))
	mock.ExpectExec("INSERT INTO order_items \\(order_id, product_id, quantity, price_cents\\) VALUES \\(\\?, \\?, \\?, \\?\\),\\(\\?, \\?, \\?, \\?\\)").
		WithArgs(uint64(77), uint64(1), 2, int64(500), uint64(77), uint64(2), 1, int64(1000)).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	var orderID uint64
	err = repo.OrderTx(context.Background(), func(w OrderWriter) error {
		ctx := context.Background()
		prices, err := w.ProductPrices(ctx, []uint64{1, 2})
		if err != nil {
			return err
		}
		total := prices[1].PriceCents*2 + prices[2].PriceCents
		orderID, err = w.InsertOrder(ctx, model.NewOrder{
			TotalCents: total, Currency: "GBP", VATRate: decimal.RequireFromString("0.2"),
			Address: model.Address{Name: "Ann"},
		})
		if err != nil {
			return err
		}
		return w.InsertOrderItems(ctx, orderID, []model.NewOrderItem{
			{ProductID: 1, Quantity: 2, PriceCents: 500},
			{ProductID: 2, Quantity: 1, PriceCents: 1000},
		})
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(77), orderID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderTxRollsBackWhenItemsFail(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewOrderRepo(db)

	boom := errors.New("disk full")
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO orders").WillReturnResult(sqlmock.NewResult(5, 1))
	mock.ExpectExec("INSERT INTO order_items").WillReturnError(boom)
	mock.ExpectRollback()

	err = repo.OrderTx(context.Background(), func(w OrderWriter) error {
		id, err := w.InsertOrder(context.Background(), model.NewOrder{Currency: "GBP"})
		if err != nil {
			return err
		}
		return w.InsertOrderItems(context.Background(), id, []model.NewOrderItem{{ProductID: 1, Quantity: 1}})
	})
	assert.ErrorIs(t, err, boom)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkOrderPaidOnlyTransitionsOnce(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewOrderRepo(db)

	mock.ExpectExec("UPDATE orders SET payment_status = 'paid', status = 'paid', stripe_payment_intent_id = \\? WHERE id = \\? AND payment_status <> 'paid'").
		WithArgs("pi_1", uint64(9)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE orders SET payment_status = 'paid'").
		WithArgs("pi_1", uint64(9)).WillReturnResult(sqlmock.NewResult(0, 0))

	first, err := repo.MarkOrderPaid(context.Background(), 9, "pi_1")
	require.NoError(t, err)
	assert.True(t, first)
	second, err := repo.MarkOrderPaid(context.Background(), 9, "pi_1")
	require.NoError(t, err)
	assert.False(t, second)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateOrderStatus(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewOrderRepo(db)

	shipped := "shipped"
	mock.ExpectExec("UPDATE orders SET status = \\? WHERE id = \\?").
		WithArgs("shipped", uint64(3)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE orders SET status = \\? WHERE id = \\?").
		WithArgs("shipped", uint64(4)).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.UpdateOrderStatus(context.Background(), 3, model.OrderUpdate{Status: &shipped}))
	err = repo.UpdateOrderStatus(context.Background(), 4, model.OrderUpdate{Status: &shipped})
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCancelStalePending(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewOrderRepo(db)

	cutoff := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec("SET status = 'cancelled', payment_status = 'expired' WHERE status = 'pending' AND payment_status = 'pending' AND created_at < \\?").
		WithArgs(cutoff).WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := repo.CancelStalePending(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOrdersByUserKeepsItemsWithDeletedProducts(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewOrderRepo(db)

	created := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	cols := []string{"id", "user_id", "status", "payment_status", "total_cents", "currency", "vat_rate",
		"name", "email", "address_line1", "city", "postal_code", "stripe_payment_intent_id", "created_at"}
	mock.ExpectQuery("FROM orders WHERE user_id = \\? ORDER BY created_at DESC").
		WithArgs(uint64(8)).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(2, 8, "paid", "paid", 2000, "GBP", "0.2000", "Ann", nil, nil, nil, nil, "pi_1", created))
	mock.ExpectQuery("FROM order_items oi\\s+LEFT JOIN products p").
		WithArgs(uint64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"order_id", "product_id", "quantity", "price_cents", "name", "slug", "image"}).
			AddRow(2, 1, 2, 500, "A", "a", "/uploads/a.jpg").
			AddRow(2, 99, 1, 1000, nil, nil, nil))

	orders, err := repo.OrdersByUser(context.Background(), 8)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	require.Len(t, orders[0].Items, 2)
	assert.Equal(t, "A", *orders[0].Items[0].Name)
	assert.Nil(t, orders[0].Items[1].Name)
	assert.Equal(t, int64(1000), orders[0].Items[1].PriceCents)
	assert.True(t, orders[0].VATRate.Equal(decimal.RequireFromString("0.2")))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClassifyMySQLErrors(t *testing.T) {
	assert.ErrorIs(t, classify(&mysql.MySQLError{Number: 1062}), ErrConflict)
	assert.ErrorIs(t, classify(&mysql.MySQLError{Number: 1452}), ErrInvalidReference)
	other := &mysql.MySQLError{Number: 1213}
	assert.Equal(t, error(other), classify(other))
	assert.NoError(t, classify(nil))
}
