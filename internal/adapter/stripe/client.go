package stripe

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"donation-payments/config"
	"donation-payments/internal/core/domain"
	"donation-payments/internal/core/ports"

	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/paymentintent"
	"github.com/stripe/stripe-go/v84/webhook"
)

const (
	testEnv = "test"
	liveEnv = "live"

	defaultTolerance = webhook.DefaultTolerance
)

var (
	errAPIKeyRequired   = errors.New("stripe api key is required")
	errSecretRequired   = errors.New("stripe webhook secret is required")
	errInvalidStripeEnv = fmt.Errorf("stripe environment must be %q or %q", testEnv, liveEnv)

	// ErrEventMissingObject is returned for a signed event that carries no data object.
	ErrEventMissingObject = errors.New("stripe event has no data object")
)

type intentCreator func(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)

// Client implements ports.PaymentProvider and ports.EventVerifier against Stripe.
type Client struct {
	environment    string
	signingSecret  string
	publishableKey string
	tolerance      time.Duration
	newIntent      intentCreator
	log            zerolog.Logger
}

// NewClient initializes Stripe once with the configured secrets and env.
func NewClient(cfg config.StripeConfig, log zerolog.Logger) (*Client, error) {
	env, err := normalizeEnv(cfg.Environment)
	if err != nil {
		return nil, err
	}

	apiKey := strings.TrimSpace(cfg.SecretKey)
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}

	signingSecret := strings.TrimSpace(cfg.WebhookSecret)
	if signingSecret == "" {
		return nil, errSecretRequired
	}

	if err := validateAPIKey(env, apiKey); err != nil {
		return nil, err
	}

	stripe.Key = apiKey

	tolerance := cfg.WebhookTolerance
	if tolerance <= 0 {
		tolerance = defaultTolerance
	}

	log.Info().Str("environment", env).Msg("stripe client initialized")

	return &Client{
		environment:    env,
		signingSecret:  signingSecret,
		publishableKey: strings.TrimSpace(cfg.PublishableKey),
		tolerance:      tolerance,
		newIntent:      paymentintent.New,
		log:            log,
	}, nil
}

// Environment reports the normalized Stripe environment in use.
func (c *Client) Environment() string {
	return c.environment
}

// PublishableKey returns the client-side key handed to the browser.
func (c *Client) PublishableKey() string {
	return c.publishableKey
}

// CreatePaymentIntent creates a PaymentIntent with automatic payment methods.
// The idempotency key makes a retried call for the same payment return the same intent.
func (c *Client) CreatePaymentIntent(ctx context.Context, req ports.ProviderIntentRequest) (*ports.ProviderIntent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(req.AmountMinor),
		Currency: stripe.String(strings.ToLower(req.Currency)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}

	pi, err := c.newIntent(params)
	if err != nil {
		return nil, fmt.Errorf("stripe create payment intent: %w", err)
	}
	if pi == nil || pi.ID == "" || pi.ClientSecret == "" {
		return nil, errors.New("stripe create payment intent: empty response")
	}

	c.log.Debug().Str("intent_id", pi.ID).Int64("amount_minor", req.AmountMinor).Msg("payment intent created")

	return &ports.ProviderIntent{
		IntentID:     pi.ID,
		ClientSecret: pi.ClientSecret,
	}, nil
}

// Verify checks the Stripe-Signature header against the raw payload and decodes the event.
func (c *Client) Verify(payload []byte, signatureHeader string) (*domain.ProviderEvent, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signatureHeader, c.signingSecret,
		webhook.ConstructEventOptions{
			Tolerance:                c.tolerance,
			IgnoreAPIVersionMismatch: true,
		})
	if err != nil {
		if isSignatureError(err) {
			return nil, fmt.Errorf("%w: %v", domain.ErrInvalidSignature, err)
		}
		return nil, fmt.Errorf("decode stripe event: %w", err)
	}
	if event.Data == nil || event.Data.Object == nil {
		return nil, ErrEventMissingObject
	}
	return &domain.ProviderEvent{
		ID:     event.ID,
		Type:   string(event.Type),
		Object: event.Data.Object,
	}, nil
}

func isSignatureError(err error) bool {
	return errors.Is(err, webhook.ErrNotSigned) ||
		errors.Is(err, webhook.ErrInvalidHeader) ||
		errors.Is(err, webhook.ErrNoValidSignature) ||
		errors.Is(err, webhook.ErrTooOld)
}

func normalizeEnv(raw string) (string, error) {
	env := strings.TrimSpace(strings.ToLower(raw))
	if env == "" {
		env = testEnv
	}
	switch env {
	case testEnv, liveEnv:
		return env, nil
	default:
		return "", errInvalidStripeEnv
	}
}

func validateAPIKey(env, key string) error {
	switch env {
	case testEnv:
		if strings.HasPrefix(key, "sk_test") || strings.HasPrefix(key, "rk_test") {
			return nil
		}
		return fmt.Errorf("stripe environment %q requires a test secret key (sk_test/rk_test)", testEnv)
	case liveEnv:
		if strings.HasPrefix(key, "sk_live") || strings.HasPrefix(key, "rk_live") {
			return nil
		}
		return fmt.Errorf("stripe environment %q requires a live secret key (sk_live/rk_live)", liveEnv)
	default:
		return errInvalidStripeEnv
	}
}
