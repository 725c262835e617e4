package postgres

import (
	"context"
	"testing"
	"time"

	"donation-payments/internal/core/domain"
	"donation-payments/internal/core/ports"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func eventColumns() []string {
	return []string{"event_id", "event_type", "payment_intent_id", "received_at"}
}

func TestStripeEventRepo_Insert(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewStripeEventRepo(mock)
	e := &domain.StripeEvent{
		EventID:         "evt_1",
		EventType:       domain.EventPaymentIntentSucceeded,
		PaymentIntentID: strPtr("pi_1"),
		ReceivedAt:      time.Now().UTC(),
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO stripe_events").
		WithArgs(e.EventID, e.EventType, e.PaymentIntentID, e.ReceivedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO stripe_events").
		WithArgs(e.EventID, e.EventType, e.PaymentIntentID, e.ReceivedAt).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	assert.NoError(t, repo.Insert(context.Background(), tx, e))
	assert.ErrorIs(t, repo.Insert(context.Background(), tx, e), domain.ErrDuplicateEvent)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStripeEventRepo_RecordOutcome(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewStripeEventRepo(mock)
	at := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO stripe_event_applications").
		WithArgs("evt_1", domain.EventOutcomeIgnored, at).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	assert.NoError(t, repo.RecordOutcome(context.Background(), tx, "evt_1", domain.EventOutcomeIgnored, at))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStripeEventRepo_ListUnapplied(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewStripeEventRepo(mock)
	cutoff := time.Now().UTC().Add(-10 * time.Minute)
	received := cutoff.Add(-time.Minute)

	mock.ExpectQuery("SELECT e.event_id").
		WithArgs(cutoff, defaultEventListLimit).
		WillReturnRows(pgxmock.NewRows(eventColumns()).
			AddRow("evt_1", domain.EventPaymentIntentSucceeded, strPtr("pi_1"), received).
			AddRow("evt_2", "customer.created", (*string)(nil), received))

	events, err := repo.ListUnapplied(context.Background(), cutoff, 0)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "pi_1", *events[0].PaymentIntentID)
	assert.Nil(t, events[1].PaymentIntentID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStripeEventRepo_HasLaterApplied(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewStripeEventRepo(mock)
	received := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("pi_1", received, domain.EventOutcomeApplied).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	later, err := repo.HasLaterApplied(context.Background(), tx, "pi_1", received)
	require.NoError(t, err)
	assert.True(t, later)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStripeEventRepo_List(t *testing.T) {
	tests := []struct {
		name      string
		filter    ports.StripeEventFilter
		wantLimit int
	}{
		{"default limit", ports.StripeEventFilter{}, 100},
		{"explicit limit", ports.StripeEventFilter{EventType: domain.EventChargeRefunded, Limit: 5}, 5},
		{"limit capped", ports.StripeEventFilter{Limit: 5000}, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err)
			defer mock.Close()

			repo := NewStripeEventRepo(mock)
			mock.ExpectQuery("SELECT event_id, event_type").
				WithArgs(tt.filter.EventType, tt.wantLimit).
				WillReturnRows(pgxmock.NewRows(eventColumns()).
					AddRow("evt_9", domain.EventChargeRefunded, strPtr("pi_9"), time.Now().UTC()))

			events, err := repo.List(context.Background(), tt.filter)
			require.NoError(t, err)
			assert.Len(t, events, 1)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}
