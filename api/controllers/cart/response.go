package cart

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	cartsvc "github.com/namnamchicken/shop-backend/internal/cart"
)

type lineResponse struct {
	ProductID uuid.UUID       `json:"product_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

type couponResponse struct {
	Code            string `json:"code"`
	DiscountPercent int    `json:"discount_percent"`
}

type cartResponse struct {
	Lines              []lineResponse  `json:"lines"`
	Coupon             *couponResponse `json:"coupon,omitempty"`
	ItemCount          int             `json:"item_count"`
	Total              decimal.Decimal `json:"total"`
	Discount           decimal.Decimal `json:"discount"`
	TotalAfterDiscount decimal.Decimal `json:"total_after_discount"`
}

func newCartResponse(summary *cartsvc.Summary) cartResponse {
	lines := make([]lineResponse, 0, len(summary.Lines))
	for _, line := range summary.Lines {
		lines = append(lines, lineResponse{
			ProductID: line.ProductID,
			Name:      line.Name,
			UnitPrice: line.UnitPrice,
			Quantity:  line.Quantity,
			Subtotal:  line.Subtotal,
		})
	}

	var coupon *couponResponse
	if summary.Coupon != nil {
		coupon = &couponResponse{
			Code:            summary.Coupon.Code,
			DiscountPercent: summary.Coupon.DiscountPercent,
		}
	}

	return cartResponse{
		Lines:              lines,
		Coupon:             coupon,
		ItemCount:          summary.ItemCount,
		Total:              summary.Total,
		Discount:           summary.Discount,
		TotalAfterDiscount: summary.TotalAfterDiscount,
	}
}
