package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"donation-payments/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// PaymentRepo implements ports.PaymentRepository.
type PaymentRepo struct {
	pool Pool
}

// NewPaymentRepo creates a new PaymentRepo.
func NewPaymentRepo(pool Pool) *PaymentRepo {
	return &PaymentRepo{pool: pool}
}

// Create inserts a new payment within a database transaction.
func (r *PaymentRepo) Create(ctx context.Context, tx pgx.Tx, p *domain.DonationPayment) error {
	if p.Amount.IsNegative() {
		return domain.ErrNegativeAmount
	}
	query := `INSERT INTO donation_payments (id, donation_id, user_id, amount, currency,
		stripe_payment_intent_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := tx.Exec(ctx, query,
		p.ID, p.DonationID, p.UserID, p.Amount.String(), p.Currency,
		p.ProviderIntentID, p.Status, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateIntent
		}
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

// UpdateProviderIntentID backfills the provider intent id. No other column changes.
func (r *PaymentRepo) UpdateProviderIntentID(ctx context.Context, tx pgx.Tx, id uuid.UUID, intentID string) error {
	query := `UPDATE donation_payments SET stripe_payment_intent_id = $1, updated_at = $2 WHERE id = $3`

	tag, err := tx.Exec(ctx, query, intentID, time.Now().UTC(), id)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateIntent
		}
		return fmt.Errorf("update payment intent id: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("payment not found: %s", id)
	}
	return nil
}

// UpdateStatusByIntentID moves payments for the intent to status, skipping rows already there.
func (r *PaymentRepo) UpdateStatusByIntentID(ctx context.Context, tx pgx.Tx, intentID string, status domain.PaymentStatus) (int64, error) {
	query := `UPDATE donation_payments SET status = $1, updated_at = $2
		WHERE stripe_payment_intent_id = $3 AND status <> $1`

	tag, err := tx.Exec(ctx, query, status, time.Now().UTC(), intentID)
	if err != nil {
		return 0, fmt.Errorf("update payment status: %w", err)
	}
	return tag.RowsAffected(), nil
}

// GetByIntentID fetches a payment by provider intent id.
func (r *PaymentRepo) GetByIntentID(ctx context.Context, intentID string) (*domain.DonationPayment, error) {
	query := `SELECT id, donation_id, user_id, amount::text, currency, stripe_payment_intent_id,
		status, created_at, updated_at
		FROM donation_payments WHERE stripe_payment_intent_id = $1`

	var (
		p      domain.DonationPayment
		amount string
	)
	err := r.pool.QueryRow(ctx, query, intentID).Scan(
		&p.ID, &p.DonationID, &p.UserID, &amount, &p.Currency,
		&p.ProviderIntentID, &p.Status, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get payment by intent id: %w", err)
	}
	if p.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("parse payment amount: %w", err)
	}
	return &p, nil
}

// ListByUser returns the user's payments newest first, joined with the donation title.
func (r *PaymentRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.PaymentSummary, error) {
	query := `SELECT p.id, d.title, p.amount::text, p.currency, p.status, p.created_at
		FROM donation_payments p
		JOIN donations d ON d.id = p.donation_id
		WHERE p.user_id = $1
		ORDER BY p.created_at DESC`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()

	items := []domain.PaymentSummary{}
	for rows.Next() {
		var (
			s      domain.PaymentSummary
			amount string
		)
		if err := rows.Scan(&s.ID, &s.DonationTitle, &amount, &s.Currency, &s.Status, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan payment summary: %w", err)
		}
		if s.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("parse payment amount: %w", err)
		}
		items = append(items, s)
	}
	return items, rows.Err()
}

// MarkRefunded sets refunded on the given payments that are not refunded yet.
func (r *PaymentRepo) MarkRefunded(ctx context.Context, ids []uuid.UUID) (int64, error) {
	query := `UPDATE donation_payments SET status = $1, updated_at = $2
		WHERE id = ANY($3) AND status <> $1`

	tag, err := r.pool.Exec(ctx, query, domain.PaymentStatusRefunded, time.Now().UTC(), ids)
	if err != nil {
		return 0, fmt.Errorf("mark payments refunded: %w", err)
	}
	return tag.RowsAffected(), nil
}
