package cart

// upsertItemRequest adds or updates a cart line. With update the quantity
// replaces the stored one instead of accumulating.
type upsertItemRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	Quantity  int    `json:"quantity" validate:"required"`
	Update    bool   `json:"update"`
}

type applyCouponRequest struct {
	Code string `json:"code" validate:"required,min=1,max=64"`
}
