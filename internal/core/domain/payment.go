package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentStatus represents the lifecycle state of a donation payment.
type PaymentStatus string

const (
	PaymentStatusCreated        PaymentStatus = "created"
	PaymentStatusRequiresAction PaymentStatus = "requires_action"
	PaymentStatusProcessing     PaymentStatus = "processing"
	PaymentStatusSucceeded      PaymentStatus = "succeeded"
	PaymentStatusFailed         PaymentStatus = "failed"
	PaymentStatusRefunded       PaymentStatus = "refunded"
)

// pendingIntentPrefix marks a payment whose provider intent has not been backfilled yet.
const pendingIntentPrefix = "pending_"

var (
	ErrNegativeAmount  = errors.New("payment amount must not be negative")
	ErrDuplicateIntent = errors.New("provider intent id already exists")
)

// DonationPayment is a single attempt to pay for a donation.
type DonationPayment struct {
	ID               uuid.UUID       `json:"id"`
	DonationID       uuid.UUID       `json:"donation_id"`
	UserID           *uuid.UUID      `json:"user_id,omitempty"`
	Amount           decimal.Decimal `json:"amount"`
	Currency         string          `json:"currency"`
	ProviderIntentID string          `json:"provider_intent_id"`
	Status           PaymentStatus   `json:"status"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// NewDonationPayment builds a payment in the created state with a placeholder intent id.
func NewDonationPayment(donationID uuid.UUID, userID *uuid.UUID, amount decimal.Decimal, currency string, now time.Time) (*DonationPayment, error) {
	if amount.IsNegative() {
		return nil, ErrNegativeAmount
	}
	id := uuid.New()
	return &DonationPayment{
		ID:               id,
		DonationID:       donationID,
		UserID:           userID,
		Amount:           amount,
		Currency:         currency,
		ProviderIntentID: PendingIntentID(id),
		Status:           PaymentStatusCreated,
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

// PendingIntentID returns the placeholder intent id for a payment.
// It is unique per payment so concurrent initiations never contend on the intent index.
func PendingIntentID(paymentID uuid.UUID) string {
	return pendingIntentPrefix + paymentID.String()
}

// HasPendingIntent reports whether the provider intent id is still a placeholder.
func (p *DonationPayment) HasPendingIntent() bool {
	return strings.HasPrefix(p.ProviderIntentID, pendingIntentPrefix)
}

// AmountMinorUnits converts the decimal amount to the provider's smallest currency unit.
func (p *DonationPayment) AmountMinorUnits() int64 {
	return p.Amount.Shift(2).IntPart()
}

// IsTerminal returns true if no further provider event is expected to move the payment.
func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentStatusFailed || s == PaymentStatusRefunded
}

// IsValid reports whether s is a known status.
func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentStatusCreated, PaymentStatusRequiresAction, PaymentStatusProcessing,
		PaymentStatusSucceeded, PaymentStatusFailed, PaymentStatusRefunded:
		return true
	}
	return false
}

// PaymentSummary is the read projection returned to a donor.
type PaymentSummary struct {
	ID            uuid.UUID
	DonationTitle string
	Amount        decimal.Decimal
	Currency      string
	Status        PaymentStatus
	CreatedAt     time.Time
}
