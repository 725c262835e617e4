package postgres

import (
	"context"
	"fmt"
	"time"

	"donation-payments/internal/core/domain"
	"donation-payments/internal/core/ports"

	"github.com/jackc/pgx/v5"
)

const defaultEventListLimit = 100

// StripeEventRepo implements ports.StripeEventRepository.
// stripe_events rows are insert-only; outcomes live in stripe_event_applications.
type StripeEventRepo struct {
	pool Pool
}

// NewStripeEventRepo creates a new StripeEventRepo.
func NewStripeEventRepo(pool Pool) *StripeEventRepo {
	return &StripeEventRepo{pool: pool}
}

// Insert records a provider event. The primary key on event_id is the dedup gate.
func (r *StripeEventRepo) Insert(ctx context.Context, tx pgx.Tx, e *domain.StripeEvent) error {
	query := `INSERT INTO stripe_events (event_id, event_type, payment_intent_id, received_at)
		VALUES ($1, $2, $3, $4)`

	_, err := tx.Exec(ctx, query, e.EventID, e.EventType, e.PaymentIntentID, e.ReceivedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateEvent
		}
		return fmt.Errorf("insert stripe event: %w", err)
	}
	return nil
}

// RecordOutcome marks a ledger event as handled. Re-recording is a no-op.
func (r *StripeEventRepo) RecordOutcome(ctx context.Context, tx pgx.Tx, eventID string, outcome domain.EventOutcome, at time.Time) error {
	query := `INSERT INTO stripe_event_applications (event_id, outcome, applied_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (event_id) DO NOTHING`

	if _, err := tx.Exec(ctx, query, eventID, outcome, at); err != nil {
		return fmt.Errorf("record stripe event outcome: %w", err)
	}
	return nil
}

// ListUnapplied returns ledger events with no recorded outcome received before the cutoff, oldest first.
func (r *StripeEventRepo) ListUnapplied(ctx context.Context, receivedBefore time.Time, limit int) ([]domain.StripeEvent, error) {
	if limit <= 0 {
		limit = defaultEventListLimit
	}
	query := `SELECT e.event_id, e.event_type, e.payment_intent_id, e.received_at
		FROM stripe_events e
		WHERE NOT EXISTS (SELECT 1 FROM stripe_event_applications a WHERE a.event_id = e.event_id)
		AND e.received_at < $1
		ORDER BY e.received_at ASC
		LIMIT $2`

	return r.queryEvents(ctx, query, receivedBefore, limit)
}

// HasLaterApplied reports whether a newer event for the intent has already moved the payment.
func (r *StripeEventRepo) HasLaterApplied(ctx context.Context, tx pgx.Tx, intentID string, receivedAt time.Time) (bool, error) {
	query := `SELECT EXISTS(
		SELECT 1 FROM stripe_events e
		JOIN stripe_event_applications a ON a.event_id = e.event_id
		WHERE e.payment_intent_id = $1 AND e.received_at > $2 AND a.outcome = $3)`

	var exists bool
	if err := tx.QueryRow(ctx, query, intentID, receivedAt, domain.EventOutcomeApplied).Scan(&exists); err != nil {
		return false, fmt.Errorf("check later applied event: %w", err)
	}
	return exists, nil
}

// List returns ledger rows newest first, optionally filtered by event type.
func (r *StripeEventRepo) List(ctx context.Context, filter ports.StripeEventFilter) ([]domain.StripeEvent, error) {
	limit := filter.Limit
	if limit <= 0 || limit > defaultEventListLimit {
		limit = defaultEventListLimit
	}
	query := `SELECT event_id, event_type, payment_intent_id, received_at
		FROM stripe_events
		WHERE ($1 = '' OR event_type = $1)
		ORDER BY received_at DESC
		LIMIT $2`

	return r.queryEvents(ctx, query, filter.EventType, limit)
}

func (r *StripeEventRepo) queryEvents(ctx context.Context, query string, args ...any) ([]domain.StripeEvent, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query stripe events: %w", err)
	}
	defer rows.Close()

	events := []domain.StripeEvent{}
	for rows.Next() {
		var e domain.StripeEvent
		if err := rows.Scan(&e.EventID, &e.EventType, &e.PaymentIntentID, &e.ReceivedAt); err != nil {
			return nil, fmt.Errorf("scan stripe event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
