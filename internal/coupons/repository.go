package coupon

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/namnamchicken/shop-backend/pkg/db/models"
)

// Repository wires together coupon persistence helpers.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// FindByCode loads a coupon by its code, case-insensitively.
func (r *Repository) FindByCode(ctx context.Context, code string) (*models.Coupon, error) {
	var coupon models.Coupon
	if err := r.db.WithContext(ctx).
		First(&coupon, "LOWER(code) = ?", strings.ToLower(strings.TrimSpace(code))).Error; err != nil {
		return nil, err
	}
	return &coupon, nil
}

// FindByID loads a coupon by ID.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Coupon, error) {
	var coupon models.Coupon
	if err := r.db.WithContext(ctx).First(&coupon, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &coupon, nil
}

// Consume increments the coupon usage counter with a single conditional
// update. The row only moves when the coupon is active, inside its validity
// window, and under its usage limit, so concurrent redemptions at the cap
// cannot both succeed. It reports whether the redemption was applied.
func (r *Repository) Consume(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Coupon{}).
		Where("id = ? AND active = ? AND valid_from <= ? AND valid_to >= ? AND (usage_limit = 0 OR used_count < usage_limit)",
			id, true, now, now).
		Update("used_count", gorm.Expr("used_count + 1"))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
