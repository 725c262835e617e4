package service

import (
	"context"
	"fmt"
	"strings"

	"donation-payments/internal/core/domain"
	"donation-payments/internal/core/ports"
	"donation-payments/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.uber.org/multierr"
)

// CatalogServiceImpl implements ports.CatalogService.
type CatalogServiceImpl struct {
	categoryRepo ports.CategoryRepository
	donationRepo ports.DonationRepository
	transactor   ports.DBTransactor
	hooks        []ports.DonationHook
	log          zerolog.Logger
}

// NewCatalogService creates a new CatalogServiceImpl. hooks run after image changes commit.
func NewCatalogService(
	categoryRepo ports.CategoryRepository,
	donationRepo ports.DonationRepository,
	transactor ports.DBTransactor,
	log zerolog.Logger,
	hooks ...ports.DonationHook,
) *CatalogServiceImpl {
	return &CatalogServiceImpl{
		categoryRepo: categoryRepo,
		donationRepo: donationRepo,
		transactor:   transactor,
		hooks:        hooks,
		log:          log,
	}
}

// ListCategories returns every category with its active donations.
func (s *CatalogServiceImpl) ListCategories(ctx context.Context) ([]domain.Category, error) {
	categories, err := s.categoryRepo.ListWithActiveDonations(ctx)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("list categories: %w", err))
	}
	return categories, nil
}

// GetDonation returns an active donation.
func (s *CatalogServiceImpl) GetDonation(ctx context.Context, id uuid.UUID) (*domain.Donation, error) {
	donation, err := s.donationRepo.GetActiveByID(ctx, id)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("get donation: %w", err))
	}
	if donation == nil {
		return nil, apperror.ErrNotFound("Donation")
	}
	return donation, nil
}

// ReplaceDonationImage swaps the stored image key. A nil or blank key clears it.
// Hooks see the committed donation and the previous key; their failures are logged only.
func (s *CatalogServiceImpl) ReplaceDonationImage(ctx context.Context, id uuid.UUID, imageKey *string) (*domain.Donation, error) {
	if imageKey != nil {
		trimmed := strings.TrimSpace(*imageKey)
		if trimmed == "" {
			imageKey = nil
		} else {
			imageKey = &trimmed
		}
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	donation, err := s.donationRepo.GetByIDForUpdate(ctx, dbTx, id)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("lock donation: %w", err))
	}
	if donation == nil {
		return nil, apperror.ErrNotFound("Donation")
	}

	var oldKey string
	if donation.ImageKey != nil {
		oldKey = *donation.ImageKey
	}

	if err := s.donationRepo.UpdateImageKey(ctx, dbTx, id, imageKey); err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("update image key: %w", err))
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("commit tx: %w", err))
	}
	donation.ImageKey = imageKey

	if oldKey != "" && (imageKey == nil || *imageKey != oldKey) {
		if err := s.runImageHooks(ctx, donation, oldKey); err != nil {
			s.log.Warn().Err(err).
				Str("donation_id", id.String()).
				Str("old_key", oldKey).
				Msg("donation image hooks failed")
		}
	}

	return donation, nil
}

func (s *CatalogServiceImpl) runImageHooks(ctx context.Context, donation *domain.Donation, oldKey string) error {
	var errs error
	for _, h := range s.hooks {
		errs = multierr.Append(errs, h.AfterImageReplaced(ctx, donation, oldKey))
	}
	return errs
}

// ImageCleanupHook deletes a donation's previous image from object storage.
type ImageCleanupHook struct {
	store ports.ObjectStore
	log   zerolog.Logger
}

// NewImageCleanupHook creates a hook backed by store.
func NewImageCleanupHook(store ports.ObjectStore, log zerolog.Logger) *ImageCleanupHook {
	return &ImageCleanupHook{store: store, log: log}
}

// AfterImageReplaced removes oldKey from storage.
func (h *ImageCleanupHook) AfterImageReplaced(ctx context.Context, donation *domain.Donation, oldKey string) error {
	if err := h.store.Delete(ctx, oldKey); err != nil {
		return fmt.Errorf("delete old image %s: %w", oldKey, err)
	}
	h.log.Info().Str("donation_id", donation.ID.String()).Str("key", oldKey).Msg("old donation image removed")
	return nil
}
