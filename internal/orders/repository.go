package order

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/namnamchicken/shop-backend/pkg/db/models"
	"github.com/namnamchicken/shop-backend/pkg/enums"
)

// Repository wires together order persistence helpers.
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

// Create persists the order together with its line snapshots.
func (r *Repository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

// FindByID loads an order with its lines.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).
		Preload("Items").
		First(&order, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// FindBySession loads an order only when it belongs to the given session.
func (r *Repository) FindBySession(ctx context.Context, id uuid.UUID, sessionID string) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).
		Preload("Items").
		First(&order, "id = ? AND session_id = ?", id, sessionID).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// ClaimPaid flips the order to paid with a single conditional update. Only
// one caller can win the claim; every later confirmation sees zero rows.
func (r *Repository) ClaimPaid(ctx context.Context, id uuid.UUID, paymentID *string) (bool, error) {
	updates := map[string]any{
		"paid":   true,
		"status": enums.OrderStatusPaid,
	}
	if paymentID != nil {
		updates["payment_id"] = *paymentID
	}
	result := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND paid = ?", id, false).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// MarkFailed moves a pending order to failed. Paid orders never move
// backwards, so a late failure signal after a successful payment is ignored.
func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND paid = ? AND status = ?", id, false, enums.OrderStatusPending).
		Update("status", enums.OrderStatusFailed)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// SetPreferenceID records the checkout preference created for the order.
func (r *Repository) SetPreferenceID(ctx context.Context, id uuid.UUID, preferenceID string) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", id).
		Update("preference_id", preferenceID).Error
}

// MarkStockShortfall flags the order for manual stock review.
func (r *Repository) MarkStockShortfall(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", id).
		Update("stock_shortfall", true).Error
}
