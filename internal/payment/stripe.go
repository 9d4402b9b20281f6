// Package payment talks to Stripe: it opens hosted Checkout sessions and
// verifies the signed callbacks Stripe sends when a session completes.
package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
	"github.com/stripe/stripe-go/v79/webhook"

	"github.com/iliyamo/cliora-storefront/internal/model"
)

// Gateway creates Stripe Checkout sessions.
type Gateway struct {
	api         *client.API
	frontendURL string
}

// NewGateway returns a gateway for the secret key.  backends may be nil to
// use Stripe's live endpoints; tests pass backends pointing at a local server.
func NewGateway(secretKey, frontendURL string, backends *stripe.Backends) *Gateway {
	return &Gateway{
		api:         client.New(secretKey, backends),
		frontendURL: strings.TrimRight(frontendURL, "/"),
	}
}

// CreateCheckoutSession opens a card payment session for the order's lines
// and returns the hosted page URL.  The order id travels in the session
// metadata so the completion callback can find the order again.
func (g *Gateway) CreateCheckoutSession(ctx context.Context, s model.PaymentSession) (string, error) {
	id := strconv.FormatUint(s.OrderID, 10)
	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		SuccessURL:         stripe.String(g.frontendURL + "/checkout?success=1&order=" + id),
		CancelURL:          stripe.String(g.frontendURL + "/checkout?canceled=1&order=" + id),
	}
	params.Context = ctx
	params.AddMetadata("order_id", id)
	for _, l := range s.Lines {
		params.LineItems = append(params.LineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency: stripe.String(strings.ToLower(l.Currency)),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(l.Name),
				},
				UnitAmount: stripe.Int64(l.UnitAmount),
			},
			Quantity: stripe.Int64(int64(l.Quantity)),
		})
	}

	sess, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe checkout session: %w", err)
	}
	return sess.URL, nil
}

// ErrSignature is returned for callbacks whose signature does not verify.
var ErrSignature = errors.New("webhook signature verification failed")

// Webhook verifies Stripe callbacks with the endpoint's signing secret.
type Webhook struct {
	secret string
}

func NewWebhook(secret string) *Webhook { return &Webhook{secret: secret} }

// Parse verifies the payload against the Stripe-Signature header.  It
// returns a confirmation for checkout.session.completed events and nil for
// every other event type.  A session without a usable order_id yields a
// confirmation with OrderID zero.
func (w *Webhook) Parse(payload []byte, signature string) (*model.PaymentConfirmation, error) {
	ev, err := webhook.ConstructEventWithOptions(payload, signature, w.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, errors.Join(ErrSignature, err)
	}
	if ev.Type != stripe.EventTypeCheckoutSessionCompleted {
		return nil, nil
	}

	var sess stripe.CheckoutSession
	if err := json.Unmarshal(ev.Data.Raw, &sess); err != nil {
		return nil, fmt.Errorf("decode checkout session: %w", err)
	}
	c := &model.PaymentConfirmation{}
	if v, ok := sess.Metadata["order_id"]; ok {
		c.OrderID, _ = strconv.ParseUint(v, 10, 64)
	}
	if sess.PaymentIntent != nil {
		c.PaymentIntentID = sess.PaymentIntent.ID
	}
	return c, nil
}
