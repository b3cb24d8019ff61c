package models

import (
	"time"

	"github.com/google/uuid"
)

// Coupon is a percentage discount code with a validity window and an
// optional global usage cap. UsedCount only moves through the conditional
// consume statement in the coupons repository.
type Coupon struct {
	ID              uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Code            string    `gorm:"column:code;not null;uniqueIndex:idx_coupons_code"`
	DiscountPercent int       `gorm:"column:discount_percent;not null"`
	ValidFrom       time.Time `gorm:"column:valid_from;not null"`
	ValidTo         time.Time `gorm:"column:valid_to;not null"`
	Active          bool      `gorm:"column:active;not null;default:true"`
	UsageLimit      int       `gorm:"column:usage_limit;not null;default:0"`
	UsedCount       int       `gorm:"column:used_count;not null;default:0"`
	CreatedAt       time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// InWindow reports whether the coupon is active and inside its validity
// window. Usage accounting is not checked here; an already-redeemed coupon
// attached to a cart keeps honoring its discount until the window closes.
func (c Coupon) InWindow(now time.Time) bool {
	if !c.Active {
		return false
	}
	if now.Before(c.ValidFrom) || now.After(c.ValidTo) {
		return false
	}
	return true
}

// Valid reports whether the coupon can be redeemed at the given instant.
// A zero UsageLimit means unlimited redemptions.
func (c Coupon) Valid(now time.Time) bool {
	if !c.InWindow(now) {
		return false
	}
	if c.UsageLimit > 0 && c.UsedCount >= c.UsageLimit {
		return false
	}
	return true
}
