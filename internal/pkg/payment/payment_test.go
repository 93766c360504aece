package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76"

	"github.com/applysmartuk/statement_server/config"
)

const testWebhookSecret = "whsec_test_secret"

func sign(payload []byte, secret string, ts time.Time) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(fmt.Sprintf("%d.%s", ts.Unix(), payload)))
	return fmt.Sprintf("t=%d,v1=%s", ts.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL:               stripe.String(srv.URL),
		MaxNetworkRetries: stripe.Int64(0),
	})

	return NewClient(&config.StripeConfig{
		SecretKey:     "sk_test_123",
		WebhookSecret: testWebhookSecret,
	}, &stripe.Backends{API: backend, Connect: backend, Uploads: backend})
}

func TestClient_ParseWebhook(t *testing.T) {
	client := NewClient(&config.StripeConfig{SecretKey: "sk_test", WebhookSecret: testWebhookSecret}, nil)
	payload := []byte(`{
		"id": "evt_1",
		"object": "event",
		"type": "checkout.session.completed",
		"data": {"object": {"id": "cs_1", "customer_email": "a@x.com", "metadata": {"email": "meta@x.com"}}}
	}`)

	t.Run("valid signature", func(t *testing.T) {
		event, err := client.ParseWebhook(payload, sign(payload, testWebhookSecret, time.Now()))
		require.NoError(t, err)
		assert.Equal(t, "evt_1", event.ID)
		assert.Equal(t, EventCheckoutCompleted, event.Type)
		assert.Equal(t, "cs_1", event.Str("id"))
		assert.Equal(t, "a@x.com", event.CustomerEmail())
		assert.Equal(t, "meta@x.com", event.Metadata("email"))
	})

	t.Run("wrong secret", func(t *testing.T) {
		_, err := client.ParseWebhook(payload, sign(payload, "whsec_other", time.Now()))
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})

	t.Run("tampered payload", func(t *testing.T) {
		header := sign(payload, testWebhookSecret, time.Now())
		tampered := append([]byte{}, payload...)
		tampered[len(tampered)-2] = ' '
		_, err := client.ParseWebhook(tampered, header)
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})

	t.Run("stale timestamp", func(t *testing.T) {
		_, err := client.ParseWebhook(payload, sign(payload, testWebhookSecret, time.Now().Add(-time.Hour)))
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})

	t.Run("missing header", func(t *testing.T) {
		_, err := client.ParseWebhook(payload, "")
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})
}

func TestEvent_CustomerEmailFallbacks(t *testing.T) {
	tests := []struct {
		name   string
		object map[string]interface{}
		want   string
	}{
		{"customer_email", map[string]interface{}{"customer_email": "a@x.com"}, "a@x.com"},
		{"customer_details", map[string]interface{}{"customer_details": map[string]interface{}{"email": "b@x.com"}}, "b@x.com"},
		{"metadata", map[string]interface{}{"metadata": map[string]interface{}{"email": "c@x.com"}}, "c@x.com"},
		{"none", map[string]interface{}{"id": "sub_1"}, ""},
		{"nil object", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := &Event{Object: tt.object}
			assert.Equal(t, tt.want, e.CustomerEmail())
		})
	}
}

func TestClient_CreateCheckoutSession(t *testing.T) {
	var form map[string]string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/checkout/sessions", r.URL.Path)
		require.NoError(t, r.ParseForm())
		form = map[string]string{
			"mode":                        r.PostForm.Get("mode"),
			"customer_email":              r.PostForm.Get("customer_email"),
			"price":                       r.PostForm.Get("line_items[0][price]"),
			"metadata_email":              r.PostForm.Get("metadata[email]"),
			"subscription_metadata_email": r.PostForm.Get("subscription_data[metadata][email]"),
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"cs_test_1","object":"checkout.session","url":"https://checkout.stripe.com/c/pay/cs_test_1"}`))
	})

	session, err := client.CreateCheckoutSession(context.Background(), CheckoutParams{
		Email:      "a@x.com",
		PriceID:    "price_1",
		Mode:       ModeSubscription,
		SuccessURL: "http://localhost:3000/success",
		CancelURL:  "http://localhost:3000/cancelled",
		Metadata:   map[string]string{"email": "a@x.com"},
	})
	require.NoError(t, err)
	assert.Equal(t, "cs_test_1", session.ID)
	assert.Equal(t, "https://checkout.stripe.com/c/pay/cs_test_1", session.URL)

	assert.Equal(t, "subscription", form["mode"])
	assert.Equal(t, "a@x.com", form["customer_email"])
	assert.Equal(t, "price_1", form["price"])
	assert.Equal(t, "a@x.com", form["metadata_email"])
	assert.Equal(t, "a@x.com", form["subscription_metadata_email"])
}

func TestClient_CreateProductPrice(t *testing.T) {
	var unitAmount, interval string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/v1/products":
			w.Write([]byte(`{"id":"prod_1","object":"product"}`))
		case "/v1/prices":
			require.NoError(t, r.ParseForm())
			unitAmount = r.PostForm.Get("unit_amount")
			interval = r.PostForm.Get("recurring[interval]")
			w.Write([]byte(`{"id":"price_1","object":"price"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	priceID, err := client.CreateProductPrice(context.Background(), ProductParams{
		Name:      "Unlimited",
		PriceGBP:  29.99,
		Recurring: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "price_1", priceID)
	assert.Equal(t, "2999", unitAmount)
	assert.Equal(t, "month", interval)
}

func TestClient_CreateCheckoutSession_APIError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"type":"invalid_request_error","message":"No such price"}}`))
	})

	_, err := client.CreateCheckoutSession(context.Background(), CheckoutParams{
		Email:   "a@x.com",
		PriceID: "price_missing",
		Mode:    ModePayment,
	})
	assert.Error(t, err)
}

func TestToMinorUnits(t *testing.T) {
	assert.Equal(t, int64(1999), ToMinorUnits(19.99))
	assert.Equal(t, int64(2999), ToMinorUnits(29.99))
	assert.Equal(t, int64(500), ToMinorUnits(5))
}
