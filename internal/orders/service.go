package order

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/namnamchicken/shop-backend/internal/cart"
	"github.com/namnamchicken/shop-backend/pkg/config"
	"github.com/namnamchicken/shop-backend/pkg/db/models"
	"github.com/namnamchicken/shop-backend/pkg/enums"
	pkgerrors "github.com/namnamchicken/shop-backend/pkg/errors"
	"github.com/namnamchicken/shop-backend/pkg/logger"
	"github.com/namnamchicken/shop-backend/pkg/mercadopago"
)

// Payment statuses surfaced to checkout callers.
const (
	PaymentStatusPaid        = "paid"
	PaymentStatusPending     = "pending"
	PaymentStatusUnavailable = "unavailable"
)

// Service exposes order assembly and retrieval.
type Service interface {
	Checkout(ctx context.Context, sessionID string, input CheckoutInput) (*CheckoutResult, error)
	RetryPayment(ctx context.Context, sessionID string, orderID uuid.UUID) (*CheckoutResult, error)
	Get(ctx context.Context, sessionID string, orderID uuid.UUID) (*models.Order, error)
}

// CheckoutInput holds the validated customer payload for a new order.
type CheckoutInput struct {
	FirstName string
	LastName  string
	Email     string
	Address   string
	Phone     string
	Notes     string
}

// CheckoutResult is the assembled order plus how payment proceeds next.
type CheckoutResult struct {
	Order         *models.Order
	PaymentURL    string
	PaymentStatus string
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type cartReader interface {
	Get(ctx context.Context, sessionID string) (*cart.Summary, error)
}

// PaymentGateway registers checkout preferences with the payment provider.
type PaymentGateway interface {
	CreatePreference(ctx context.Context, req mercadopago.PreferenceRequest) (*mercadopago.Preference, error)
}

// Confirmer finalizes a paid order. Implemented by the payments service and
// injected to keep the dev checkout path synchronous.
type Confirmer interface {
	Confirm(ctx context.Context, orderID uuid.UUID, channel string) error
}

type service struct {
	repo      *Repository
	tx        txRunner
	carts     cartReader
	gateway   PaymentGateway
	confirmer Confirmer
	cfg       config.MercadoPagoConfig
	logg      *logger.Logger
}

// NewService constructs an order service. The gateway may be nil, in which
// case checkout confirms payment synchronously (local/dev setups).
func NewService(
	repo *Repository,
	tx txRunner,
	carts cartReader,
	gateway PaymentGateway,
	confirmer Confirmer,
	cfg config.MercadoPagoConfig,
	logg *logger.Logger,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("order repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if carts == nil {
		return nil, fmt.Errorf("cart reader required")
	}
	if confirmer == nil {
		return nil, fmt.Errorf("payment confirmer required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:      repo,
		tx:        tx,
		carts:     carts,
		gateway:   gateway,
		confirmer: confirmer,
		cfg:       cfg,
		logg:      logg,
	}, nil
}

// Checkout snapshots the cart into a durable order and kicks off payment.
// Any coupon was already redeemed when it was applied to the cart, so the
// order just records the code and percentage; the cart is only cleared once
// a payment is actually confirmed.
func (s *service) Checkout(ctx context.Context, sessionID string, input CheckoutInput) (*CheckoutResult, error) {
	summary, err := s.carts.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if len(summary.Lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}

	order := &models.Order{
		ID:        uuid.New(),
		SessionID: sessionID,
		FirstName: strings.TrimSpace(input.FirstName),
		LastName:  strings.TrimSpace(input.LastName),
		Email:     strings.TrimSpace(input.Email),
		Address:   strings.TrimSpace(input.Address),
		Phone:     strings.TrimSpace(input.Phone),
		Notes:     strings.TrimSpace(input.Notes),
		Status:    enums.OrderStatusPending,
	}
	for _, line := range summary.Lines {
		productID := line.ProductID
		order.Items = append(order.Items, models.OrderLine{
			ID:          uuid.New(),
			OrderID:     order.ID,
			ProductID:   &productID,
			ProductName: line.Name,
			Price:       line.UnitPrice,
			Quantity:    line.Quantity,
		})
	}

	if summary.Coupon != nil {
		code := summary.Coupon.Code
		order.CouponCode = &code
		order.DiscountPercent = summary.Coupon.DiscountPercent
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.repo.WithTx(tx).Create(ctx, order)
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			return nil, typed
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create order")
	}

	ctx = s.logg.WithOrderID(ctx, order.ID.String())
	s.logg.Info(ctx, "order created")

	return s.startPayment(ctx, order)
}

// RetryPayment creates a fresh checkout preference for an unpaid order.
func (s *service) RetryPayment(ctx context.Context, sessionID string, orderID uuid.UUID) (*CheckoutResult, error) {
	order, err := s.Get(ctx, sessionID, orderID)
	if err != nil {
		return nil, err
	}
	if order.Paid {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is already paid")
	}
	return s.startPayment(s.logg.WithOrderID(ctx, order.ID.String()), order)
}

// Get loads an order scoped to its owning session.
func (s *service) Get(ctx context.Context, sessionID string, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindBySession(ctx, orderID, sessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
	}
	return order, nil
}

// startPayment either registers a gateway preference or, without a gateway,
// confirms the payment synchronously. A gateway fault leaves the order
// standing; payment can be retried later.
func (s *service) startPayment(ctx context.Context, order *models.Order) (*CheckoutResult, error) {
	if s.gateway == nil {
		if err := s.confirmer.Confirm(ctx, order.ID, "dev"); err != nil {
			return nil, err
		}
		confirmed, err := s.repo.FindByID(ctx, order.ID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload order")
		}
		return &CheckoutResult{Order: confirmed, PaymentStatus: PaymentStatusPaid}, nil
	}

	preference, err := s.gateway.CreatePreference(ctx, s.buildPreference(order))
	if err != nil {
		s.logg.Error(ctx, "checkout preference creation failed", err)
		return &CheckoutResult{Order: order, PaymentStatus: PaymentStatusUnavailable}, nil
	}

	if err := s.repo.SetPreferenceID(ctx, order.ID, preference.ID); err != nil {
		s.logg.Error(ctx, "storing preference id failed", err)
	}
	order.PreferenceID = &preference.ID

	return &CheckoutResult{
		Order:         order,
		PaymentURL:    preference.InitPoint,
		PaymentStatus: PaymentStatusPending,
	}, nil
}

func (s *service) buildPreference(order *models.Order) mercadopago.PreferenceRequest {
	base := strings.TrimRight(s.cfg.PublicURL, "/")

	// With a coupon the per-line prices no longer add up to what the
	// customer owes, so the preference collapses to one item at the
	// discounted total.
	var items []mercadopago.PreferenceItem
	if order.DiscountPercent > 0 {
		items = []mercadopago.PreferenceItem{{
			Title:     fmt.Sprintf("Order %s", order.ID),
			Quantity:  1,
			UnitPrice: order.PayableTotal().InexactFloat64(),
		}}
	} else {
		items = make([]mercadopago.PreferenceItem, 0, len(order.Items))
		for _, line := range order.Items {
			items = append(items, mercadopago.PreferenceItem{
				Title:     line.ProductName,
				Quantity:  line.Quantity,
				UnitPrice: line.Price.InexactFloat64(),
			})
		}
	}

	return mercadopago.PreferenceRequest{
		Items: items,
		BackURLs: mercadopago.BackURLs{
			Success: fmt.Sprintf("%s/api/v1/payments/success/%s", base, order.ID),
			Failure: fmt.Sprintf("%s/api/v1/payments/failure/%s", base, order.ID),
			Pending: fmt.Sprintf("%s/api/v1/payments/pending/%s", base, order.ID),
		},
		AutoReturn:        "approved",
		NotificationURL:   fmt.Sprintf("%s/api/v1/webhooks/mercadopago", base),
		ExternalReference: order.ID.String(),
	}
}
