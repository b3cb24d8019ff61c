package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/namnamchicken/shop-backend/pkg/enums"
)

// Order is the durable record assembled from a cart at checkout. Paid flips
// exactly once through the conditional claim in the orders repository; Status
// never moves backwards from paid.
type Order struct {
	ID              uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SessionID       string            `gorm:"column:session_id;not null;index:idx_orders_session_id"`
	FirstName       string            `gorm:"column:first_name;not null"`
	LastName        string            `gorm:"column:last_name;not null"`
	Email           string            `gorm:"column:email;not null"`
	Address         string            `gorm:"column:address;not null"`
	Phone           string            `gorm:"column:phone;not null"`
	Notes           string            `gorm:"column:notes;not null;default:''"`
	CouponCode      *string           `gorm:"column:coupon_code"`
	DiscountPercent int               `gorm:"column:discount_percent;not null;default:0"`
	Paid            bool              `gorm:"column:paid;not null;default:false"`
	Status          enums.OrderStatus `gorm:"column:status;not null;default:'pending'"`
	PaymentID       *string           `gorm:"column:payment_id"`
	PreferenceID    *string           `gorm:"column:preference_id"`
	StockShortfall  bool              `gorm:"column:stock_shortfall;not null;default:false"`
	Items           []OrderLine       `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt       time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

// TotalCost sums the line snapshots before any discount.
func (o Order) TotalCost() decimal.Decimal {
	total := decimal.Zero
	for _, line := range o.Items {
		total = total.Add(line.Price.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}
	return total
}

// PayableTotal applies the order-level discount to the line total.
func (o Order) PayableTotal() decimal.Decimal {
	total := o.TotalCost()
	if o.DiscountPercent <= 0 {
		return total
	}
	factor := decimal.NewFromInt(int64(100 - o.DiscountPercent)).Div(decimal.NewFromInt(100))
	return total.Mul(factor).Round(2)
}
