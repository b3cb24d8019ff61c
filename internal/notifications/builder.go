package notification

import (
	"fmt"
	"strings"

	"github.com/namnamchicken/shop-backend/pkg/db/models"
)

// BuildOrderConfirmation renders the confirmation subject and body for a paid
// order from its immutable line snapshots.
func BuildOrderConfirmation(order *models.Order) (subject, body string) {
	subject = fmt.Sprintf("NamNam Chicken - Order %s", order.ID)

	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\n", order.FirstName)
	fmt.Fprintf(&b, "Your payment was received and order %s is confirmed.\n\n", order.ID)

	for _, line := range order.Items {
		fmt.Fprintf(&b, "  %d x %s @ %s = %s\n",
			line.Quantity, line.ProductName, line.Price.StringFixed(2), line.Subtotal().StringFixed(2))
	}

	b.WriteString("\n")
	if order.DiscountPercent > 0 {
		fmt.Fprintf(&b, "Subtotal: %s\n", order.TotalCost().StringFixed(2))
		code := ""
		if order.CouponCode != nil {
			code = " (" + *order.CouponCode + ")"
		}
		fmt.Fprintf(&b, "Discount%s: %d%%\n", code, order.DiscountPercent)
	}
	fmt.Fprintf(&b, "Total: %s\n\n", order.PayableTotal().StringFixed(2))
	fmt.Fprintf(&b, "Delivery to: %s\n", order.Address)
	if order.Notes != "" {
		fmt.Fprintf(&b, "Notes: %s\n", order.Notes)
	}
	b.WriteString("\nThanks for your order!\n")

	return subject, b.String()
}
