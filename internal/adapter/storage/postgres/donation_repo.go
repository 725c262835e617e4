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

const donationColumns = `id, category_id, title, description, amount::text, image_key, is_active, created_at, updated_at`

// DonationRepo implements ports.DonationRepository and ports.CategoryRepository.
type DonationRepo struct {
	pool Pool
}

// NewDonationRepo creates a new DonationRepo.
func NewDonationRepo(pool Pool) *DonationRepo {
	return &DonationRepo{pool: pool}
}

// GetActiveByID fetches an active donation. Inactive or unknown ids return nil, nil.
func (r *DonationRepo) GetActiveByID(ctx context.Context, id uuid.UUID) (*domain.Donation, error) {
	query := `SELECT ` + donationColumns + ` FROM donations WHERE id = $1 AND is_active = TRUE`
	return scanDonation(r.pool.QueryRow(ctx, query, id))
}

// GetByIDForUpdate locks a donation row regardless of its active flag.
func (r *DonationRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Donation, error) {
	query := `SELECT ` + donationColumns + ` FROM donations WHERE id = $1 FOR UPDATE`
	return scanDonation(tx.QueryRow(ctx, query, id))
}

// UpdateImageKey replaces the stored image key.
func (r *DonationRepo) UpdateImageKey(ctx context.Context, tx pgx.Tx, id uuid.UUID, imageKey *string) error {
	tag, err := tx.Exec(ctx, `UPDATE donations SET image_key = $1, updated_at = $2 WHERE id = $3`,
		imageKey, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update donation image: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("donation not found: %s", id)
	}
	return nil
}

// ListWithActiveDonations returns all categories ordered by name with their active donations.
func (r *DonationRepo) ListWithActiveDonations(ctx context.Context) ([]domain.Category, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, slug, created_at FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	categories := []domain.Category{}
	index := make(map[uuid.UUID]int)
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Slug, &c.CreatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan category: %w", err)
		}
		index[c.ID] = len(categories)
		categories = append(categories, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}

	query := `SELECT ` + donationColumns + ` FROM donations WHERE is_active = TRUE ORDER BY created_at DESC`
	drows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list active donations: %w", err)
	}
	defer drows.Close()

	for drows.Next() {
		d, err := scanDonation(drows)
		if err != nil {
			return nil, err
		}
		if i, ok := index[d.CategoryID]; ok {
			categories[i].Donations = append(categories[i].Donations, *d)
		}
	}
	return categories, drows.Err()
}

func scanDonation(row pgx.Row) (*domain.Donation, error) {
	var (
		d      domain.Donation
		amount string
	)
	err := row.Scan(
		&d.ID, &d.CategoryID, &d.Title, &d.Description, &amount,
		&d.ImageKey, &d.IsActive, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan donation: %w", err)
	}
	if d.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("parse donation amount: %w", err)
	}
	return &d, nil
}
