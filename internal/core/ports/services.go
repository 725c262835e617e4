package ports

import (
	"context"
	"time"

	"donation-payments/internal/core/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// HashService handles password hashing (Argon2id).
type HashService interface {
	Hash(password string) (string, error)
	Verify(password string, hash string) (bool, error)
}

// TokenService handles JWT token operations.
type TokenService interface {
	Generate(user *domain.User) (string, time.Time, error)
	Validate(tokenString string) (*Principal, error)
}

// Principal is the authenticated caller injected into the request context.
type Principal struct {
	UserID    uuid.UUID
	Username  string
	Email     string
	IsStaff   bool
	TokenID   string
	ExpiresAt time.Time
}

// TokenDenylist tracks revoked tokens until they expire.
type TokenDenylist interface {
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// AppliedEventCache is the Redis fast path in front of the event ledger.
// It is advisory; the ledger's unique key remains authoritative.
type AppliedEventCache interface {
	WasHandled(ctx context.Context, eventID string) (bool, error)
	MarkHandled(ctx context.Context, eventID string, ttl time.Duration) error
}

// --- Provider Ports ---

// PaymentProvider creates provider-side payment intents.
type PaymentProvider interface {
	CreatePaymentIntent(ctx context.Context, req ProviderIntentRequest) (*ProviderIntent, error)
}

// ProviderIntentRequest is the outbound intent creation call.
type ProviderIntentRequest struct {
	AmountMinor    int64
	Currency       string
	Metadata       map[string]string
	IdempotencyKey string
}

// ProviderIntent is the provider's answer to an intent creation.
type ProviderIntent struct {
	IntentID     string
	ClientSecret string
}

// EventVerifier authenticates a raw webhook body against its signature header.
type EventVerifier interface {
	Verify(payload []byte, signatureHeader string) (*domain.ProviderEvent, error)
}

// ObjectStore deletes stored catalog images.
type ObjectStore interface {
	Delete(ctx context.Context, key string) error
}

// DonationHook runs after a committed donation mutation.
type DonationHook interface {
	AfterImageReplaced(ctx context.Context, donation *domain.Donation, oldKey string) error
}

// --- Service Ports (Business Logic) ---

// PaymentService covers intent initiation and the donor-facing status query.
type PaymentService interface {
	CreateIntent(ctx context.Context, req CreateIntentRequest) (*CreateIntentResult, error)
	ListMyDonations(ctx context.Context, userID uuid.UUID) ([]domain.PaymentSummary, error)
	MarkRefunded(ctx context.Context, ids []uuid.UUID) (int64, error)
}

// CreateIntentRequest holds validated input for intent creation.
type CreateIntentRequest struct {
	UserID     *uuid.UUID
	DonationID uuid.UUID
}

// CreateIntentResult is returned to the client to complete payment out-of-band.
type CreateIntentResult struct {
	PaymentID    uuid.UUID
	ClientSecret string
	Amount       decimal.Decimal
	Currency     string
}

// ReconcilerService verifies, deduplicates and applies provider events.
type ReconcilerService interface {
	HandleWebhook(ctx context.Context, payload []byte, signatureHeader string) (*WebhookResult, error)
	SweepUnapplied(ctx context.Context) (*SweepResult, error)
	ListEvents(ctx context.Context, filter StripeEventFilter) ([]domain.StripeEvent, error)
}

// WebhookOutcome describes how an accepted webhook was handled.
type WebhookOutcome string

const (
	WebhookOutcomeApplied   WebhookOutcome = "applied"
	WebhookOutcomeIgnored   WebhookOutcome = "ignored"
	WebhookOutcomeDuplicate WebhookOutcome = "duplicate"
	WebhookOutcomeCacheHit  WebhookOutcome = "cache_hit"
)

// WebhookResult is the reconciler's verdict for one delivery.
type WebhookResult struct {
	EventID      string
	EventType    string
	Outcome      WebhookOutcome
	RowsAffected int64
}

// SweepResult summarises a reconciliation sweep.
type SweepResult struct {
	Scanned    int
	Applied    int
	Ignored    int
	Superseded int
	Failed     int
}

// AuthService defines account business logic.
type AuthService interface {
	Register(ctx context.Context, req RegisterRequest) (*domain.User, error)
	Login(ctx context.Context, username, password string) (*LoginResult, error)
	Logout(ctx context.Context, principal *Principal) error
	Me(ctx context.Context, userID uuid.UUID) (*domain.User, error)
}

// RegisterRequest holds input for user registration.
type RegisterRequest struct {
	Username  string
	Email     string
	Password  string
	Password2 string
}

// LoginResult carries the issued token and the logged-in user.
type LoginResult struct {
	Token  string
	Expiry time.Time
	User   *domain.User
}

// CatalogService exposes the catalog reads and image lifecycle.
type CatalogService interface {
	ListCategories(ctx context.Context) ([]domain.Category, error)
	GetDonation(ctx context.Context, id uuid.UUID) (*domain.Donation, error)
	ReplaceDonationImage(ctx context.Context, id uuid.UUID, imageKey *string) (*domain.Donation, error)
}

// AuditService records audit entries.
type AuditService interface {
	Log(ctx context.Context, entry *domain.AuditLog)
}
