package notification

import (
	"context"
	"fmt"

	"github.com/namnamchicken/shop-backend/pkg/db/models"
	"github.com/namnamchicken/shop-backend/pkg/logger"
)

// Service dispatches customer-facing order notifications.
type Service interface {
	SendOrderConfirmation(ctx context.Context, order *models.Order) error
}

type service struct {
	sender Sender
	logg   *logger.Logger
}

// NewService constructs a notification service instance.
func NewService(sender Sender, logg *logger.Logger) (Service, error) {
	if sender == nil {
		return nil, fmt.Errorf("sender required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{sender: sender, logg: logg}, nil
}

// SendOrderConfirmation renders and delivers the confirmation for a paid
// order.
func (s *service) SendOrderConfirmation(ctx context.Context, order *models.Order) error {
	subject, body := BuildOrderConfirmation(order)

	ctx = s.logg.WithOrderID(ctx, order.ID.String())
	if err := s.sender.Send(ctx, order.Email, subject, body); err != nil {
		s.logg.Error(ctx, "order confirmation delivery failed", err)
		return err
	}
	s.logg.Info(ctx, "order confirmation sent")
	return nil
}
