package orders

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/namnamchicken/shop-backend/pkg/db/models"
	"github.com/namnamchicken/shop-backend/pkg/enums"
)

type orderLineResponse struct {
	ProductID   *uuid.UUID      `json:"product_id,omitempty"`
	ProductName string          `json:"product_name"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

type orderResponse struct {
	ID              uuid.UUID           `json:"id"`
	Status          enums.OrderStatus   `json:"status"`
	Paid            bool                `json:"paid"`
	FirstName       string              `json:"first_name"`
	LastName        string              `json:"last_name"`
	Email           string              `json:"email"`
	Address         string              `json:"address"`
	Phone           string              `json:"phone"`
	Notes           string              `json:"notes,omitempty"`
	CouponCode      *string             `json:"coupon_code,omitempty"`
	DiscountPercent int                 `json:"discount_percent"`
	StockShortfall  bool                `json:"stock_shortfall"`
	Items           []orderLineResponse `json:"items"`
	Total           decimal.Decimal     `json:"total"`
	PayableTotal    decimal.Decimal     `json:"payable_total"`
}

type checkoutResponse struct {
	Order         orderResponse `json:"order"`
	PaymentURL    string        `json:"payment_url,omitempty"`
	PaymentStatus string        `json:"payment_status"`
}

func newOrderResponse(order *models.Order) orderResponse {
	items := make([]orderLineResponse, 0, len(order.Items))
	for _, line := range order.Items {
		items = append(items, orderLineResponse{
			ProductID:   line.ProductID,
			ProductName: line.ProductName,
			Price:       line.Price,
			Quantity:    line.Quantity,
			Subtotal:    line.Subtotal(),
		})
	}

	return orderResponse{
		ID:              order.ID,
		Status:          order.Status,
		Paid:            order.Paid,
		FirstName:       order.FirstName,
		LastName:        order.LastName,
		Email:           order.Email,
		Address:         order.Address,
		Phone:           order.Phone,
		Notes:           order.Notes,
		CouponCode:      order.CouponCode,
		DiscountPercent: order.DiscountPercent,
		StockShortfall:  order.StockShortfall,
		Items:           items,
		Total:           order.TotalCost(),
		PayableTotal:    order.PayableTotal(),
	}
}
