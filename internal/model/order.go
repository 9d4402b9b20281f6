package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order and payment states written by the application.  Admins may write any
// other string through the order update endpoint.
const (
	OrderPending   = "pending"
	OrderPaid      = "paid"
	OrderCancelled = "cancelled"

	PaymentPending = "pending"
	PaymentPaid    = "paid"
	PaymentExpired = "expired"
)

// Address is the shipping contact captured at checkout.  Every field is
// optional.
type Address struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Line1      string `json:"line1"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
}

// Order mirrors an `orders` row.  UserID is nil for guest checkouts.
type Order struct {
	ID                    uint64          `json:"id"`
	UserID                *uint64         `json:"user_id"`
	Status                string          `json:"status"`
	PaymentStatus         string          `json:"payment_status"`
	TotalCents            int64           `json:"total_cents"`
	Currency              string          `json:"currency"`
	VATRate               decimal.Decimal `json:"vat_rate"`
	VATCents              int64           `json:"vat_cents"`
	Name                  *string         `json:"name"`
	Email                 *string         `json:"email"`
	AddressLine1          *string         `json:"address_line1"`
	City                  *string         `json:"city"`
	PostalCode            *string         `json:"postal_code"`
	StripePaymentIntentID *string         `json:"stripe_payment_intent_id,omitempty"`
	CreatedAt             time.Time       `json:"created_at"`
	Items                 []OrderItem     `json:"items,omitempty"`
}

// OrderItem is an immutable order line.  PriceCents and Quantity are the
// values captured at checkout; Name, Slug and Image are read from the live
// product and are nil once the product is gone.
type OrderItem struct {
	ProductID  uint64  `json:"product_id"`
	Quantity   int     `json:"quantity"`
	PriceCents int64   `json:"price_cents"`
	Name       *string `json:"name"`
	Slug       *string `json:"slug"`
	Image      *string `json:"image"`
}

// NewOrder is what checkout persists.
type NewOrder struct {
	UserID     *uint64
	TotalCents int64
	Currency   string
	VATRate    decimal.Decimal
	Address    Address
	Items      []NewOrderItem
}

// PricedProduct is the live catalogue price of a product read at checkout.
type PricedProduct struct {
	ID         uint64
	Name       string
	PriceCents int64
	Currency   string
}

// NewOrderItem is a priced checkout line.
type NewOrderItem struct {
	ProductID  uint64
	Quantity   int
	PriceCents int64
}

// OrderSummary is a row of the admin order list.
type OrderSummary struct {
	ID            uint64    `json:"id"`
	UserID        *uint64   `json:"user_id"`
	Status        string    `json:"status"`
	PaymentStatus string    `json:"payment_status"`
	TotalCents    int64     `json:"total_cents"`
	Currency      string    `json:"currency"`
	Email         *string   `json:"email"`
	CreatedAt     time.Time `json:"created_at"`
}

// OrderFilter narrows the admin order list.  Empty strings match anything.
type OrderFilter struct {
	Status        string
	PaymentStatus string
	Page          int
	PageSize      int
}

// OrderPage is one page of the admin order list.
type OrderPage struct {
	Orders   []OrderSummary `json:"orders"`
	Total    int            `json:"total"`
	Page     int            `json:"page"`
	PageSize int            `json:"pageSize"`
}

// OrderUpdate is a partial admin update; nil fields are left unchanged.
type OrderUpdate struct {
	Status        *string
	PaymentStatus *string
}

// Empty reports whether the update carries no fields.
func (u OrderUpdate) Empty() bool { return u.Status == nil && u.PaymentStatus == nil }

// PaymentSession describes the hosted payment page requested for an order.
type PaymentSession struct {
	OrderID uint64
	Lines   []PaymentLine
}

// PaymentLine is one priced line shown on the hosted payment page.
type PaymentLine struct {
	Name       string
	UnitAmount int64
	Currency   string
	Quantity   int
}

// PaymentConfirmation is the verified outcome of a completed hosted payment.
type PaymentConfirmation struct {
	OrderID         uint64
	PaymentIntentID string
}
