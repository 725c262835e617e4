package ports

import (
	"context"
	"time"

	"donation-payments/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	// Create returns domain.ErrUsernameTaken when the username is already registered.
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
}

// CategoryRepository defines read operations for the catalog.
type CategoryRepository interface {
	// ListWithActiveDonations returns every category with its active donations attached.
	ListWithActiveDonations(ctx context.Context) ([]domain.Category, error)
}

// DonationRepository defines persistence operations for donations.
type DonationRepository interface {
	GetActiveByID(ctx context.Context, id uuid.UUID) (*domain.Donation, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Donation, error)
	UpdateImageKey(ctx context.Context, tx pgx.Tx, id uuid.UUID, imageKey *string) error
}

// PaymentRepository defines persistence operations for donation payments.
// Payments are never deleted.
type PaymentRepository interface {
	// Create returns domain.ErrDuplicateIntent when the provider intent id is taken.
	Create(ctx context.Context, tx pgx.Tx, payment *domain.DonationPayment) error
	UpdateProviderIntentID(ctx context.Context, tx pgx.Tx, id uuid.UUID, intentID string) error
	// UpdateStatusByIntentID moves every payment with the intent id whose status differs from status.
	UpdateStatusByIntentID(ctx context.Context, tx pgx.Tx, intentID string, status domain.PaymentStatus) (int64, error)
	GetByIntentID(ctx context.Context, intentID string) (*domain.DonationPayment, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.PaymentSummary, error)
	MarkRefunded(ctx context.Context, ids []uuid.UUID) (int64, error)
}

// StripeEventRepository is the append-only ledger of received provider events.
type StripeEventRepository interface {
	// Insert returns domain.ErrDuplicateEvent when the event id is already recorded.
	Insert(ctx context.Context, tx pgx.Tx, event *domain.StripeEvent) error
	RecordOutcome(ctx context.Context, tx pgx.Tx, eventID string, outcome domain.EventOutcome, at time.Time) error
	ListUnapplied(ctx context.Context, receivedBefore time.Time, limit int) ([]domain.StripeEvent, error)
	// HasLaterApplied reports whether an event for the intent received after receivedAt was applied.
	HasLaterApplied(ctx context.Context, tx pgx.Tx, intentID string, receivedAt time.Time) (bool, error)
	List(ctx context.Context, filter StripeEventFilter) ([]domain.StripeEvent, error)
}

// StripeEventFilter narrows the read-only ledger listing.
type StripeEventFilter struct {
	EventType string
	Limit     int
}

// AuditRepository persists audit entries.
type AuditRepository interface {
	Create(ctx context.Context, log *domain.AuditLog) error
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
