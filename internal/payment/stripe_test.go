package payment

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"

	"github.com/iliyamo/cliora-storefront/internal/model"
)

func TestCreateCheckoutSession(t *testing.T) {
	var form map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/checkout/sessions", r.URL.Path)
		assert.NoError(t, r.ParseForm())
		form = r.PostForm
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"cs_test_1","object":"checkout.session","url":"https://checkout.stripe.test/cs_test_1"}`))
	}))
	defer srv.Close()

	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL:               stripe.String(srv.URL),
		HTTPClient:        srv.Client(),
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelNull},
	})
	gw := NewGateway("sk_test_x", "https://shop.test/", &stripe.Backends{API: backend, Connect: backend, Uploads: backend})

	url, err := gw.CreateCheckoutSession(context.Background(), model.PaymentSession{
		OrderID: 42,
		Lines: []model.PaymentLine{
			{Name: "Wrap Dress", UnitAmount: 4999, Currency: "GBP", Quantity: 2},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.stripe.test/cs_test_1", url)

	get := func(k string) string {
		if v := form[k]; len(v) > 0 {
			return v[0]
		}
		return ""
	}
	assert.Equal(t, "payment", get("mode"))
	assert.Equal(t, "42", get("metadata[order_id]"))
	assert.Equal(t, "https://shop.test/checkout?success=1&order=42", get("success_url"))
	assert.Equal(t, "https://shop.test/checkout?canceled=1&order=42", get("cancel_url"))
	assert.Equal(t, "gbp", get("line_items[0][price_data][currency]"))
	assert.Equal(t, "Wrap Dress", get("line_items[0][price_data][product_data][name]"))
	assert.Equal(t, "4999", get("line_items[0][price_data][unit_amount]"))
	assert.Equal(t, "2", get("line_items[0][quantity]"))
}

func TestCreateCheckoutSessionError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"type":"invalid_request_error","message":"bad currency"}}`))
	}))
	defer srv.Close()

	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL:               stripe.String(srv.URL),
		HTTPClient:        srv.Client(),
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelNull},
	})
	gw := NewGateway("sk_test_x", "https://shop.test", &stripe.Backends{API: backend, Connect: backend, Uploads: backend})
	_, err := gw.CreateCheckoutSession(context.Background(), model.PaymentSession{OrderID: 1})
	assert.Error(t, err)
}

const secret = "whsec_test"

func signed(t *testing.T, payload string) (string, []byte) {
	t.Helper()
	sp := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{Payload: []byte(payload), Secret: secret})
	return sp.Header, sp.Payload
}

func TestWebhookCompletedSession(t *testing.T) {
	header, body := signed(t, `{
		"id": "evt_1", "object": "event", "type": "checkout.session.completed",
		"data": {"object": {"id": "cs_1", "object": "checkout.session",
			"metadata": {"order_id": "17"}, "payment_intent": "pi_123"}}
	}`)

	c, err := NewWebhook(secret).Parse(body, header)
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, uint64(17), c.OrderID)
	assert.Equal(t, "pi_123", c.PaymentIntentID)
}

func TestWebhookMissingOrderID(t *testing.T) {
	header, body := signed(t, `{"id":"evt_2","object":"event","type":"checkout.session.completed",
		"data":{"object":{"id":"cs_2","object":"checkout.session","metadata":{}}}}`)

	c, err := NewWebhook(secret).Parse(body, header)
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Zero(t, c.OrderID)
}

func TestWebhookOtherEventsIgnored(t *testing.T) {
	header, body := signed(t, `{"id":"evt_3","object":"event","type":"payment_intent.created","data":{"object":{"id":"pi_1"}}}`)
	c, err := NewWebhook(secret).Parse(body, header)
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestWebhookBadSignature(t *testing.T) {
	header, body := signed(t, `{"id":"evt_4","object":"event","type":"checkout.session.completed","data":{"object":{}}}`)

	_, err := NewWebhook("whsec_other").Parse(body, header)
	assert.ErrorIs(t, err, ErrSignature)

	_, err = NewWebhook(secret).Parse(body, "t=1,v1=deadbeef")
	assert.ErrorIs(t, err, ErrSignature)
}
