package domain

import (
	"errors"
	"time"
)

// Provider event types the reconciler acts on.
const (
	EventPaymentIntentSucceeded  = "payment_intent.succeeded"
	EventPaymentIntentFailed     = "payment_intent.payment_failed"
	EventPaymentIntentProcessing = "payment_intent.processing"
	EventChargeRefunded          = "charge.refunded"
)

// Provider object kinds that carry a payment intent reference.
const (
	ObjectPaymentIntent = "payment_intent"
	ObjectCharge        = "charge"
)

var (
	// ErrDuplicateEvent is returned when the ledger already holds an event id.
	ErrDuplicateEvent   = errors.New("stripe event already recorded")
	// ErrInvalidSignature marks a webhook whose signature or timestamp failed verification.
	ErrInvalidSignature = errors.New("invalid event signature")
)

var eventStatusMap = map[string]PaymentStatus{
	EventPaymentIntentSucceeded:  PaymentStatusSucceeded,
	EventPaymentIntentFailed:     PaymentStatusFailed,
	EventPaymentIntentProcessing: PaymentStatusProcessing,
	EventChargeRefunded:          PaymentStatusRefunded,
}

// StripeEvent is an immutable ledger entry for a received provider event.
type StripeEvent struct {
	EventID         string    `json:"event_id"`
	EventType       string    `json:"event_type"`
	PaymentIntentID *string   `json:"payment_intent_id,omitempty"`
	ReceivedAt      time.Time `json:"received_at"`
}

// ProviderEvent is a verified inbound event with its payload object decoded.
type ProviderEvent struct {
	ID     string
	Type   string
	Object map[string]any
}

// EventOutcome records what the reconciler did with a ledger entry.
type EventOutcome string

const (
	EventOutcomeApplied    EventOutcome = "applied"
	EventOutcomeIgnored    EventOutcome = "ignored"
	EventOutcomeSuperseded EventOutcome = "superseded"
)

// ResolvePaymentIntentID extracts the target intent id from the event's payload object.
// Object kinds other than payment_intent and charge yield no target.
func (e *ProviderEvent) ResolvePaymentIntentID() *string {
	kind, _ := e.Object["object"].(string)
	var key string
	switch kind {
	case ObjectPaymentIntent:
		key = "id"
	case ObjectCharge:
		key = "payment_intent"
	default:
		return nil
	}
	id, ok := e.Object[key].(string)
	if !ok || id == "" {
		return nil
	}
	return &id
}

// LedgerEntry builds the ledger row for the event.
func (e *ProviderEvent) LedgerEntry(receivedAt time.Time) *StripeEvent {
	return &StripeEvent{
		EventID:         e.ID,
		EventType:       e.Type,
		PaymentIntentID: e.ResolvePaymentIntentID(),
		ReceivedAt:      receivedAt,
	}
}

// TargetStatusForEvent maps an event type to the status it drives a payment to.
func TargetStatusForEvent(eventType string) (PaymentStatus, bool) {
	s, ok := eventStatusMap[eventType]
	return s, ok
}
