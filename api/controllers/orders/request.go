package orders

type checkoutRequest struct {
	FirstName string `json:"first_name" validate:"required,min=1,max=120"`
	LastName  string `json:"last_name" validate:"required,min=1,max=120"`
	Email     string `json:"email" validate:"required,email"`
	Address   string `json:"address" validate:"required,min=1,max=500"`
	Phone     string `json:"phone" validate:"required,min=5,max=40"`
	Notes     string `json:"notes" validate:"max=1000"`
}
