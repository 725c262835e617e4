package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"donation-payments/internal/core/domain"
	"donation-payments/internal/core/ports"
	"donation-payments/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const defaultProviderTimeout = 15 * time.Second

// PaymentServiceImpl implements ports.PaymentService.
type PaymentServiceImpl struct {
	paymentRepo     ports.PaymentRepository
	donationRepo    ports.DonationRepository
	provider        ports.PaymentProvider
	transactor      ports.DBTransactor
	currency        string
	providerTimeout time.Duration
	log             zerolog.Logger
}

// NewPaymentService creates a new PaymentServiceImpl.
func NewPaymentService(
	paymentRepo ports.PaymentRepository,
	donationRepo ports.DonationRepository,
	provider ports.PaymentProvider,
	transactor ports.DBTransactor,
	currency string,
	providerTimeout time.Duration,
	log zerolog.Logger,
) *PaymentServiceImpl {
	if providerTimeout <= 0 {
		providerTimeout = defaultProviderTimeout
	}
	return &PaymentServiceImpl{
		paymentRepo:     paymentRepo,
		donationRepo:    donationRepo,
		provider:        provider,
		transactor:      transactor,
		currency:        currency,
		providerTimeout: providerTimeout,
		log:             log,
	}
}

// CreateIntent records a payment attempt and opens a provider intent for it.
// The row insert, provider call and intent backfill share one DB transaction;
// any failure rolls the row back.
func (s *PaymentServiceImpl) CreateIntent(ctx context.Context, req ports.CreateIntentRequest) (*ports.CreateIntentResult, error) {
	if req.DonationID == uuid.Nil {
		return nil, apperror.Validation("donation_id is required")
	}

	donation, err := s.donationRepo.GetActiveByID(ctx, req.DonationID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("load donation: %w", err))
	}
	if donation == nil {
		return nil, apperror.ErrNotFound("Donation")
	}

	payment, err := domain.NewDonationPayment(donation.ID, req.UserID, donation.Amount, s.currency, time.Now().UTC())
	if err != nil {
		if errors.Is(err, domain.ErrNegativeAmount) {
			return nil, apperror.ErrInvalidAmount()
		}
		return nil, apperror.InternalError(err)
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if err := s.paymentRepo.Create(ctx, dbTx, payment); err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("create payment: %w", err))
	}

	metadata := map[string]string{
		"payment_id":  payment.ID.String(),
		"donation_id": donation.ID.String(),
	}
	if req.UserID != nil {
		metadata["user_id"] = req.UserID.String()
	}

	providerCtx, cancel := context.WithTimeout(ctx, s.providerTimeout)
	intent, err := s.provider.CreatePaymentIntent(providerCtx, ports.ProviderIntentRequest{
		AmountMinor:    payment.AmountMinorUnits(),
		Currency:       payment.Currency,
		Metadata:       metadata,
		IdempotencyKey: payment.ID.String(),
	})
	cancel()
	if err != nil {
		s.log.Warn().Err(err).
			Str("payment_id", payment.ID.String()).
			Str("donation_id", donation.ID.String()).
			Msg("provider intent creation failed")
		return nil, apperror.ErrProvider(err)
	}

	if err := s.paymentRepo.UpdateProviderIntentID(ctx, dbTx, payment.ID, intent.IntentID); err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("store intent id: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("payment_id", payment.ID.String()).
		Str("donation_id", donation.ID.String()).
		Str("intent_id", intent.IntentID).
		Str("amount", payment.Amount.StringFixed(2)).
		Msg("payment intent created")

	return &ports.CreateIntentResult{
		PaymentID:    payment.ID,
		ClientSecret: intent.ClientSecret,
		Amount:       payment.Amount,
		Currency:     payment.Currency,
	}, nil
}

// ListMyDonations returns the user's payment history, newest first.
func (s *PaymentServiceImpl) ListMyDonations(ctx context.Context, userID uuid.UUID) ([]domain.PaymentSummary, error) {
	items, err := s.paymentRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("list payments: %w", err))
	}
	return items, nil
}

// MarkRefunded sets refunded on the given payments and returns how many changed.
func (s *PaymentServiceImpl) MarkRefunded(ctx context.Context, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, apperror.Validation("ids must not be empty")
	}
	for _, id := range ids {
		if id == uuid.Nil {
			return 0, apperror.Validation("ids must be valid payment ids")
		}
	}

	n, err := s.paymentRepo.MarkRefunded(ctx, ids)
	if err != nil {
		return 0, apperror.ErrDatabaseError(fmt.Errorf("mark refunded: %w", err))
	}

	s.log.Info().Int("requested", len(ids)).Int64("updated", n).Msg("payments marked refunded")
	return n, nil
}
