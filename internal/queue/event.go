// Package queue defines message payloads exchanged over the message broker
// together with the publisher and consumer that move them.
package queue

// OrderPaidQueue is the durable queue carrying OrderPaidEvent messages.
const OrderPaidQueue = "order.paid"

// OrderPaidEvent is published the first time an order transitions to paid.
// It contains enough information for downstream consumers to log, notify, or
// trigger fulfilment without querying the primary database.
type OrderPaidEvent struct {
	OrderID         uint64  `json:"order_id"`
	UserID          *uint64 `json:"user_id"`
	Email           string  `json:"email"`
	TotalCents      int64   `json:"total_cents"`
	Currency        string  `json:"currency"`
	PaymentIntentID string  `json:"payment_intent_id"`
	PaidAt          string  `json:"paid_at"`
}
