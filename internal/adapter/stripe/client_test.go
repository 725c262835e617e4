package stripe

import (
	"context"
	"errors"
	"testing"
	"time"

	"donation-payments/config"
	"donation-payments/internal/core/domain"
	"donation-payments/internal/core/ports"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"
)

const testSecret = "whsec_test_secret"

func newTestClient(t *testing.T) *Client {
	t.Helper()
	c, err := NewClient(config.StripeConfig{
		SecretKey:      "sk_test_123",
		PublishableKey: "pk_test_123",
		WebhookSecret:  testSecret,
		Environment:    "test",
	}, zerolog.Nop())
	require.NoError(t, err)
	return c
}

func signPayload(payload []byte, secret string, at time.Time) string {
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    secret,
		Timestamp: at,
		Scheme:    "v1",
	})
	return signed.Header
}

func TestNewClient_Validation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.StripeConfig
		wantErr bool
	}{
		{"valid test", config.StripeConfig{SecretKey: "sk_test_1", WebhookSecret: "whsec"}, false},
		{"valid live", config.StripeConfig{SecretKey: "sk_live_1", WebhookSecret: "whsec", Environment: "LIVE"}, false},
		{"restricted test key", config.StripeConfig{SecretKey: "rk_test_1", WebhookSecret: "whsec"}, false},
		{"missing key", config.StripeConfig{WebhookSecret: "whsec"}, true},
		{"missing webhook secret", config.StripeConfig{SecretKey: "sk_test_1"}, true},
		{"live key in test env", config.StripeConfig{SecretKey: "sk_live_1", WebhookSecret: "whsec"}, true},
		{"unknown env", config.StripeConfig{SecretKey: "sk_test_1", WebhookSecret: "whsec", Environment: "staging"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewClient(tt.cfg, zerolog.Nop())
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestClient_PublishableKey(t *testing.T) {
	c := newTestClient(t)
	assert.Equal(t, "pk_test_123", c.PublishableKey())
	assert.Equal(t, "test", c.Environment())
}

func TestClient_Verify(t *testing.T) {
	c := newTestClient(t)
	payload := []byte(`{"id":"evt_1","object":"event","type":"payment_intent.succeeded",` +
		`"data":{"object":{"id":"pi_123","object":"payment_intent","status":"succeeded"}}}`)

	event, err := c.Verify(payload, signPayload(payload, testSecret, time.Now()))
	require.NoError(t, err)
	assert.Equal(t, "evt_1", event.ID)
	assert.Equal(t, "payment_intent.succeeded", event.Type)
	require.NotNil(t, event.ResolvePaymentIntentID())
	assert.Equal(t, "pi_123", *event.ResolvePaymentIntentID())
}

func TestClient_Verify_ChargeEvent(t *testing.T) {
	c := newTestClient(t)
	payload := []byte(`{"id":"evt_2","object":"event","type":"charge.refunded",` +
		`"data":{"object":{"id":"ch_9","object":"charge","payment_intent":"pi_456"}}}`)

	event, err := c.Verify(payload, signPayload(payload, testSecret, time.Now()))
	require.NoError(t, err)
	assert.Equal(t, "pi_456", *event.ResolvePaymentIntentID())
}

func TestClient_Verify_Rejects(t *testing.T) {
	c := newTestClient(t)
	payload := []byte(`{"id":"evt_3","object":"event","type":"payment_intent.succeeded","data":{"object":{"id":"pi_1","object":"payment_intent"}}}`)

	t.Run("wrong secret", func(t *testing.T) {
		_, err := c.Verify(payload, signPayload(payload, "whsec_other", time.Now()))
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrInvalidSignature)
	})

	t.Run("tampered payload", func(t *testing.T) {
		header := signPayload(payload, testSecret, time.Now())
		tampered := append([]byte{}, payload...)
		tampered[len(tampered)-3] = ' '
		_, err := c.Verify(tampered, header)
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrInvalidSignature)
	})

	t.Run("stale timestamp", func(t *testing.T) {
		_, err := c.Verify(payload, signPayload(payload, testSecret, time.Now().Add(-time.Hour)))
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrInvalidSignature)
	})

	t.Run("garbage header", func(t *testing.T) {
		_, err := c.Verify(payload, "not-a-signature")
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrInvalidSignature)
	})

	t.Run("signed but not json", func(t *testing.T) {
		body := []byte("not json")
		_, err := c.Verify(body, signPayload(body, testSecret, time.Now()))
		require.Error(t, err)
		assert.NotErrorIs(t, err, domain.ErrInvalidSignature)
	})
}

func TestClient_CreatePaymentIntent(t *testing.T) {
	c := newTestClient(t)
	var captured *stripe.PaymentIntentParams
	c.newIntent = func(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
		captured = params
		return &stripe.PaymentIntent{ID: "pi_new", ClientSecret: "pi_new_secret_abc"}, nil
	}

	ctx := context.Background()
	intent, err := c.CreatePaymentIntent(ctx, ports.ProviderIntentRequest{
		AmountMinor:    25000,
		Currency:       "INR",
		Metadata:       map[string]string{"payment_id": "p-1", "donation_id": "d-1"},
		IdempotencyKey: "p-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "pi_new", intent.IntentID)
	assert.Equal(t, "pi_new_secret_abc", intent.ClientSecret)

	require.NotNil(t, captured)
	assert.Equal(t, int64(25000), *captured.Amount)
	assert.Equal(t, "inr", *captured.Currency)
	assert.True(t, *captured.AutomaticPaymentMethods.Enabled)
	assert.Equal(t, "p-1", captured.Metadata["payment_id"])
	assert.Equal(t, "p-1", *captured.IdempotencyKey)
}

func TestClient_CreatePaymentIntent_ProviderError(t *testing.T) {
	c := newTestClient(t)
	c.newIntent = func(*stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
		return nil, errors.New("card_declined")
	}

	_, err := c.CreatePaymentIntent(context.Background(), ports.ProviderIntentRequest{AmountMinor: 100, Currency: "inr"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "card_declined")
}
