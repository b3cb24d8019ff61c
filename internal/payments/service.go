package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	order "github.com/namnamchicken/shop-backend/internal/orders"
	product "github.com/namnamchicken/shop-backend/internal/products"
	"github.com/namnamchicken/shop-backend/pkg/db/models"
	pkgerrors "github.com/namnamchicken/shop-backend/pkg/errors"
	"github.com/namnamchicken/shop-backend/pkg/logger"
	"github.com/namnamchicken/shop-backend/pkg/mercadopago"
	"github.com/namnamchicken/shop-backend/pkg/metrics"
)

// Notification channels feeding the reconciliation path.
const (
	ChannelRedirect = "redirect"
	ChannelWebhook  = "webhook"
	ChannelIPN      = "ipn"
	ChannelDev      = "dev"
)

// Service reconciles asynchronous payment outcomes onto orders.
type Service interface {
	Confirm(ctx context.Context, orderID uuid.UUID, channel string) error
	ConfirmWithPayment(ctx context.Context, orderID uuid.UUID, paymentID *string, channel string) error
	Fail(ctx context.Context, orderID uuid.UUID, channel string) error
	HandleWebhook(ctx context.Context, eventType, paymentID string) error
	HandleIPN(ctx context.Context, topic, resourceID string) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type cartClearer interface {
	Clear(ctx context.Context, sessionID string) error
}

type confirmationSender interface {
	SendOrderConfirmation(ctx context.Context, order *models.Order) error
}

// GatewayReader fetches authoritative payment state from the provider.
type GatewayReader interface {
	GetPayment(ctx context.Context, paymentID string) (*mercadopago.Payment, error)
	GetMerchantOrder(ctx context.Context, merchantOrderID string) (*mercadopago.MerchantOrder, error)
}

type service struct {
	orders        *order.Repository
	products      *product.Repository
	tx            txRunner
	carts         cartClearer
	notifications confirmationSender
	gateway       GatewayReader
	metrics       *metrics.PaymentMetrics
	logg          *logger.Logger
}

// NewService constructs a payment service. The gateway may be nil when no
// real payment provider is configured; webhook and IPN handling then degrade
// to logged no-ops.
func NewService(
	orders *order.Repository,
	products *product.Repository,
	tx txRunner,
	carts cartClearer,
	notifications confirmationSender,
	gateway GatewayReader,
	paymentMetrics *metrics.PaymentMetrics,
	logg *logger.Logger,
) (Service, error) {
	if orders == nil {
		return nil, fmt.Errorf("order repository required")
	}
	if products == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if carts == nil {
		return nil, fmt.Errorf("cart clearer required")
	}
	if notifications == nil {
		return nil, fmt.Errorf("notification sender required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		orders:        orders,
		products:      products,
		tx:            tx,
		carts:         carts,
		notifications: notifications,
		gateway:       gateway,
		metrics:       paymentMetrics,
		logg:          logg,
	}, nil
}

// Confirm finalizes the order without a gateway payment reference.
func (s *service) Confirm(ctx context.Context, orderID uuid.UUID, channel string) error {
	return s.ConfirmWithPayment(ctx, orderID, nil, channel)
}

// ConfirmWithPayment transitions the order to paid exactly once. The claim,
// the stock decrements, and the shortfall flag commit in one transaction;
// losing the claim means another confirmation already did the side effects,
// so the call degrades to a counted no-op.
func (s *service) ConfirmWithPayment(ctx context.Context, orderID uuid.UUID, paymentID *string, channel string) error {
	ctx = s.logg.WithOrderID(ctx, orderID.String())
	ctx = s.logg.WithChannel(ctx, channel)

	var (
		claimed    bool
		confirmed  *models.Order
		shortfalls int
	)

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		orderRepo := s.orders.WithTx(tx)
		productRepo := s.products.WithTx(tx)

		won, err := orderRepo.ClaimPaid(ctx, orderID, paymentID)
		if err != nil {
			return err
		}
		if !won {
			if _, err := orderRepo.FindByID(ctx, orderID); err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
				}
				return err
			}
			return nil
		}
		claimed = true

		loaded, err := orderRepo.FindByID(ctx, orderID)
		if err != nil {
			return err
		}
		confirmed = loaded

		for _, line := range loaded.Items {
			if line.ProductID == nil {
				continue
			}
			applied, err := productRepo.DecrementStock(ctx, *line.ProductID, line.Quantity)
			if err != nil {
				return err
			}
			if !applied {
				if err := productRepo.ZeroStock(ctx, *line.ProductID); err != nil {
					return err
				}
				shortfalls++
			}
		}
		if shortfalls > 0 {
			return orderRepo.MarkStockShortfall(ctx, orderID)
		}
		return nil
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			return typed
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "confirm payment")
	}

	if !claimed {
		s.metrics.IncDuplicate(channel)
		s.logg.Info(ctx, "payment confirmation ignored, order already paid")
		return nil
	}

	s.metrics.IncConfirmed(channel)
	for i := 0; i < shortfalls; i++ {
		s.metrics.IncStockShortfall()
	}
	if shortfalls > 0 {
		s.logg.Warn(ctx, "paid quantity exceeded remaining stock, clamped to zero")
	}
	s.logg.Info(ctx, "payment confirmed")

	if err := s.carts.Clear(ctx, confirmed.SessionID); err != nil {
		s.logg.Error(ctx, "clearing cart after payment failed", err)
	}
	if err := s.notifications.SendOrderConfirmation(ctx, confirmed); err != nil {
		s.logg.Error(ctx, "sending order confirmation failed", err)
	} else {
		s.metrics.IncConfirmationSent()
	}
	return nil
}

// Fail moves a pending order to failed. A failure signal for an order that
// already got paid is dropped; paid never moves backwards.
func (s *service) Fail(ctx context.Context, orderID uuid.UUID, channel string) error {
	ctx = s.logg.WithOrderID(ctx, orderID.String())
	ctx = s.logg.WithChannel(ctx, channel)

	moved, err := s.orders.MarkFailed(ctx, orderID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark order failed")
	}
	if moved {
		s.logg.Info(ctx, "order marked failed")
	} else {
		s.logg.Info(ctx, "failure signal ignored")
	}
	return nil
}

// HandleWebhook processes a gateway webhook event. The payment state is
// re-fetched from the gateway; the notification payload is treated as a hint
// only.
func (s *service) HandleWebhook(ctx context.Context, eventType, paymentID string) error {
	ctx = s.logg.WithChannel(ctx, ChannelWebhook)

	if eventType != "payment" {
		s.logg.Info(ctx, "ignoring webhook event type "+eventType)
		return nil
	}
	return s.reconcilePayment(ctx, paymentID, ChannelWebhook)
}

// HandleIPN processes a legacy IPN notification.
func (s *service) HandleIPN(ctx context.Context, topic, resourceID string) error {
	ctx = s.logg.WithChannel(ctx, ChannelIPN)

	switch topic {
	case "payment":
		return s.reconcilePayment(ctx, resourceID, ChannelIPN)
	case "merchant_order":
		return s.reconcileMerchantOrder(ctx, resourceID)
	default:
		s.logg.Info(ctx, "ignoring ipn topic "+topic)
		return nil
	}
}

func (s *service) reconcilePayment(ctx context.Context, paymentID, channel string) error {
	if s.gateway == nil {
		s.logg.Warn(ctx, "payment notification received without a configured gateway")
		return nil
	}

	payment, err := s.gateway.GetPayment(ctx, paymentID)
	if err != nil {
		return err
	}
	return s.applyPayment(ctx, payment, channel)
}

func (s *service) reconcileMerchantOrder(ctx context.Context, merchantOrderID string) error {
	if s.gateway == nil {
		s.logg.Warn(ctx, "merchant order notification received without a configured gateway")
		return nil
	}

	merchantOrder, err := s.gateway.GetMerchantOrder(ctx, merchantOrderID)
	if err != nil {
		return err
	}
	for _, payment := range merchantOrder.Payments {
		if err := s.applyPayment(ctx, &payment, ChannelIPN); err != nil {
			return err
		}
	}
	return nil
}

func (s *service) applyPayment(ctx context.Context, payment *mercadopago.Payment, channel string) error {
	orderID, err := uuid.Parse(payment.ExternalReference)
	if err != nil {
		s.logg.Warn(ctx, "payment carries no usable order reference")
		return nil
	}

	switch payment.Status {
	case mercadopago.PaymentStatusApproved:
		return s.ConfirmWithPayment(ctx, orderID, &payment.ID, channel)
	case mercadopago.PaymentStatusRejected:
		return s.Fail(ctx, orderID, channel)
	default:
		s.logg.Info(ctx, "payment still "+payment.Status+", nothing to reconcile")
		return nil
	}
}
