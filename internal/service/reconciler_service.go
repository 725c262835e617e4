package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"donation-payments/internal/core/domain"
	"donation-payments/internal/core/ports"
	"donation-payments/pkg/apperror"
	"donation-payments/pkg/metrics"

	"github.com/rs/zerolog"
	"go.uber.org/multierr"
)

const (
	defaultEventCacheTTL = 72 * time.Hour
	defaultGracePeriod   = 10 * time.Minute
	defaultSweepBatch    = 100
)

// ReconcilerOptions tunes the cache and the sweep.
type ReconcilerOptions struct {
	EventCacheTTL time.Duration
	GracePeriod   time.Duration
	BatchSize     int
}

// ReconcilerServiceImpl implements ports.ReconcilerService.
type ReconcilerServiceImpl struct {
	verifier    ports.EventVerifier
	eventRepo   ports.StripeEventRepository
	paymentRepo ports.PaymentRepository
	transactor  ports.DBTransactor
	cache       ports.AppliedEventCache
	metrics     *metrics.WebhookMetrics
	opts        ReconcilerOptions
	now         func() time.Time
	log         zerolog.Logger
}

// NewReconcilerService creates a new ReconcilerServiceImpl. cache and m may be nil.
func NewReconcilerService(
	verifier ports.EventVerifier,
	eventRepo ports.StripeEventRepository,
	paymentRepo ports.PaymentRepository,
	transactor ports.DBTransactor,
	cache ports.AppliedEventCache,
	m *metrics.WebhookMetrics,
	opts ReconcilerOptions,
	log zerolog.Logger,
) *ReconcilerServiceImpl {
	if opts.EventCacheTTL <= 0 {
		opts.EventCacheTTL = defaultEventCacheTTL
	}
	if opts.GracePeriod <= 0 {
		opts.GracePeriod = defaultGracePeriod
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultSweepBatch
	}
	return &ReconcilerServiceImpl{
		verifier:    verifier,
		eventRepo:   eventRepo,
		paymentRepo: paymentRepo,
		transactor:  transactor,
		cache:       cache,
		metrics:     m,
		opts:        opts,
		now:         func() time.Time { return time.Now().UTC() },
		log:         log,
	}
}

// HandleWebhook authenticates a delivery, admits it to the ledger once and applies it.
// Only authenticity failures and infrastructure errors are returned; business outcomes are results.
func (s *ReconcilerServiceImpl) HandleWebhook(ctx context.Context, payload []byte, signatureHeader string) (*ports.WebhookResult, error) {
	s.metrics.Inc(metrics.OutcomeReceived)

	if signatureHeader == "" {
		s.metrics.Inc(metrics.OutcomeRejected)
		return nil, apperror.ErrMissingSignature()
	}

	event, err := s.verifier.Verify(payload, signatureHeader)
	if err != nil {
		s.metrics.Inc(metrics.OutcomeRejected)
		s.log.Warn().Err(err).Msg("webhook rejected")
		if errors.Is(err, domain.ErrInvalidSignature) {
			return nil, apperror.ErrInvalidSignature(err)
		}
		return nil, apperror.ErrMalformedEvent(err)
	}

	result := &ports.WebhookResult{EventID: event.ID, EventType: event.Type}

	if s.cache != nil {
		handled, err := s.cache.WasHandled(ctx, event.ID)
		if err != nil {
			s.log.Warn().Err(err).Str("event_id", event.ID).Msg("event cache lookup failed, falling through to ledger")
		}
		if handled {
			s.metrics.Inc(metrics.OutcomeCacheHit)
			result.Outcome = ports.WebhookOutcomeCacheHit
			return result, nil
		}
	}

	entry := event.LedgerEntry(s.now())
	if err := s.admit(ctx, entry); err != nil {
		if errors.Is(err, domain.ErrDuplicateEvent) {
			s.metrics.Inc(metrics.OutcomeDuplicate)
			s.log.Info().Str("event_id", event.ID).Msg("duplicate webhook delivery")
			s.markHandled(ctx, event.ID)
			result.Outcome = ports.WebhookOutcomeDuplicate
			return result, nil
		}
		return nil, apperror.ErrDatabaseError(err)
	}

	outcome, rows, err := s.apply(ctx, entry, false)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	s.markHandled(ctx, event.ID)
	s.metrics.Inc(string(outcome))

	result.RowsAffected = rows
	if outcome == domain.EventOutcomeApplied {
		result.Outcome = ports.WebhookOutcomeApplied
	} else {
		result.Outcome = ports.WebhookOutcomeIgnored
	}
	return result, nil
}

// SweepUnapplied applies ledger events that were admitted but never applied.
// Events newer than the grace period are left for their in-flight delivery.
func (s *ReconcilerServiceImpl) SweepUnapplied(ctx context.Context) (*ports.SweepResult, error) {
	cutoff := s.now().Add(-s.opts.GracePeriod)
	events, err := s.eventRepo.ListUnapplied(ctx, cutoff, s.opts.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("list unapplied events: %w", err)
	}

	result := &ports.SweepResult{Scanned: len(events)}
	var errs error
	for i := range events {
		if err := ctx.Err(); err != nil {
			errs = multierr.Append(errs, err)
			break
		}
		e := &events[i]
		outcome, _, err := s.apply(ctx, e, true)
		if err != nil {
			result.Failed++
			errs = multierr.Append(errs, fmt.Errorf("event %s: %w", e.EventID, err))
			continue
		}
		switch outcome {
		case domain.EventOutcomeApplied:
			result.Applied++
		case domain.EventOutcomeSuperseded:
			result.Superseded++
		default:
			result.Ignored++
		}
		s.metrics.Inc(string(outcome))
	}

	s.log.Info().
		Int("scanned", result.Scanned).
		Int("applied", result.Applied).
		Int("ignored", result.Ignored).
		Int("superseded", result.Superseded).
		Int("failed", result.Failed).
		Msg("reconciliation sweep finished")

	return result, errs
}

// ListEvents returns ledger entries for the admin listing.
func (s *ReconcilerServiceImpl) ListEvents(ctx context.Context, filter ports.StripeEventFilter) ([]domain.StripeEvent, error) {
	events, err := s.eventRepo.List(ctx, filter)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("list events: %w", err))
	}
	return events, nil
}

// admit inserts the ledger row in its own transaction.
func (s *ReconcilerServiceImpl) admit(ctx context.Context, entry *domain.StripeEvent) error {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin admission tx: %w", err)
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if err := s.eventRepo.Insert(ctx, dbTx, entry); err != nil {
		return err
	}
	if err := dbTx.Commit(ctx); err != nil {
		return fmt.Errorf("commit admission tx: %w", err)
	}
	return nil
}

// apply moves the target payment and records the outcome in one transaction.
// With checkSuperseded set, an event older than an already-applied event for the
// same intent is recorded as superseded and leaves the payment alone.
func (s *ReconcilerServiceImpl) apply(ctx context.Context, entry *domain.StripeEvent, checkSuperseded bool) (domain.EventOutcome, int64, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return "", 0, fmt.Errorf("begin apply tx: %w", err)
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	outcome := domain.EventOutcomeIgnored
	var rows int64

	target, mapped := domain.TargetStatusForEvent(entry.EventType)
	switch {
	case entry.PaymentIntentID == nil:
		s.log.Warn().Str("event_id", entry.EventID).Str("event_type", entry.EventType).
			Msg("event carries no payment intent id")
	case !mapped:
		s.log.Info().Str("event_id", entry.EventID).Str("event_type", entry.EventType).
			Msg("unhandled event type")
	default:
		intentID := *entry.PaymentIntentID
		if checkSuperseded {
			later, err := s.eventRepo.HasLaterApplied(ctx, dbTx, intentID, entry.ReceivedAt)
			if err != nil {
				return "", 0, err
			}
			if later {
				outcome = domain.EventOutcomeSuperseded
				break
			}
		}
		rows, err = s.paymentRepo.UpdateStatusByIntentID(ctx, dbTx, intentID, target)
		if err != nil {
			return "", 0, err
		}
		outcome = domain.EventOutcomeApplied
		s.log.Info().
			Str("event_id", entry.EventID).
			Str("intent_id", intentID).
			Str("status", string(target)).
			Int64("rows", rows).
			Msg("payment status reconciled")
	}

	if err := s.eventRepo.RecordOutcome(ctx, dbTx, entry.EventID, outcome, s.now()); err != nil {
		return "", 0, err
	}
	if err := dbTx.Commit(ctx); err != nil {
		return "", 0, fmt.Errorf("commit apply tx: %w", err)
	}
	return outcome, rows, nil
}

func (s *ReconcilerServiceImpl) markHandled(ctx context.Context, eventID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.MarkHandled(ctx, eventID, s.opts.EventCacheTTL); err != nil {
		s.log.Warn().Err(err).Str("event_id", eventID).Msg("failed to cache handled event")
	}
}
