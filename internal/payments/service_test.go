package payment

import (
	"context"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	order "github.com/namnamchicken/shop-backend/internal/orders"
	product "github.com/namnamchicken/shop-backend/internal/products"
	"github.com/namnamchicken/shop-backend/pkg/db/models"
	"github.com/namnamchicken/shop-backend/pkg/enums"
	pkgerrors "github.com/namnamchicken/shop-backend/pkg/errors"
	"github.com/namnamchicken/shop-backend/pkg/logger"
	"github.com/namnamchicken/shop-backend/pkg/mercadopago"
	"github.com/namnamchicken/shop-backend/pkg/metrics"
)

func setupPaymentsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	statements := []string{`
CREATE TABLE IF NOT EXISTS products (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  slug TEXT NOT NULL,
  description TEXT NOT NULL DEFAULT '',
  price NUMERIC NOT NULL,
  stock INTEGER NOT NULL DEFAULT 0,
  available INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  session_id TEXT NOT NULL,
  first_name TEXT NOT NULL,
  last_name TEXT NOT NULL,
  email TEXT NOT NULL,
  address TEXT NOT NULL,
  phone TEXT NOT NULL,
  notes TEXT NOT NULL DEFAULT '',
  coupon_code TEXT,
  discount_percent INTEGER NOT NULL DEFAULT 0,
  paid INTEGER NOT NULL DEFAULT 0,
  status TEXT NOT NULL DEFAULT 'pending',
  payment_id TEXT,
  preference_id TEXT,
  stock_shortfall INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS order_lines (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  product_id TEXT,
  product_name TEXT NOT NULL,
  price NUMERIC NOT NULL,
  quantity INTEGER NOT NULL,
  created_at DATETIME
);`}
	for _, stmt := range statements {
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}

type gormTxRunner struct {
	db *gorm.DB
}

func (r gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	tx := r.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return tx.Error
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit().Error
}

type stubCartClearer struct {
	cleared []string
}

func (s *stubCartClearer) Clear(_ context.Context, sessionID string) error {
	s.cleared = append(s.cleared, sessionID)
	return nil
}

type stubNotifier struct {
	sent []uuid.UUID
	err  error
}

func (s *stubNotifier) SendOrderConfirmation(_ context.Context, order *models.Order) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, order.ID)
	return nil
}

type stubGateway struct {
	payments       map[string]*mercadopago.Payment
	merchantOrders map[string]*mercadopago.MerchantOrder
}

func (s *stubGateway) GetPayment(_ context.Context, id string) (*mercadopago.Payment, error) {
	payment, ok := s.payments[id]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
	}
	return payment, nil
}

func (s *stubGateway) GetMerchantOrder(_ context.Context, id string) (*mercadopago.MerchantOrder, error) {
	merchantOrder, ok := s.merchantOrders[id]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "merchant order not found")
	}
	return merchantOrder, nil
}

type fixture struct {
	db       *gorm.DB
	orders   *order.Repository
	products *product.Repository
	carts    *stubCartClearer
	notifier *stubNotifier
	gateway  *stubGateway
	svc      Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := setupPaymentsTestDB(t)
	orderRepo := order.NewRepository(db)
	productRepo := product.NewRepository(db)
	carts := &stubCartClearer{}
	notifier := &stubNotifier{}
	gateway := &stubGateway{
		payments:       map[string]*mercadopago.Payment{},
		merchantOrders: map[string]*mercadopago.MerchantOrder{},
	}

	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	svc, err := NewService(orderRepo, productRepo, gormTxRunner{db}, carts, notifier, gateway,
		metrics.NewPaymentMetrics(nil), logg)
	require.NoError(t, err)

	return &fixture{
		db:       db,
		orders:   orderRepo,
		products: productRepo,
		carts:    carts,
		notifier: notifier,
		gateway:  gateway,
		svc:      svc,
	}
}

func (f *fixture) createProduct(t *testing.T, name string, stock int) *models.Product {
	t.Helper()
	p := &models.Product{
		ID:        uuid.New(),
		Name:      name,
		Slug:      name,
		Price:     decimal.RequireFromString("19.99"),
		Stock:     stock,
		Available: true,
	}
	require.NoError(t, f.db.Create(p).Error)
	return p
}

func (f *fixture) createOrder(t *testing.T, sessionID string, lines ...models.OrderLine) *models.Order {
	t.Helper()
	o := &models.Order{
		ID:        uuid.New(),
		SessionID: sessionID,
		FirstName: "John",
		LastName:  "Doe",
		Email:     "john@example.com",
		Address:   "123 Test Street",
		Phone:     "1234567890",
		Status:    enums.OrderStatusPending,
	}
	for i := range lines {
		lines[i].ID = uuid.New()
		lines[i].OrderID = o.ID
	}
	o.Items = lines
	require.NoError(t, f.orders.Create(context.Background(), o))
	return o
}

func line(productID uuid.UUID, name string, qty int) models.OrderLine {
	return models.OrderLine{
		ProductID:   &productID,
		ProductName: name,
		Price:       decimal.RequireFromString("19.99"),
		Quantity:    qty,
	}
}

func TestServiceConfirmDecrementsStockOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	wings := f.createProduct(t, "Spicy Wings", 10)
	created := f.createOrder(t, "sess-1", line(wings.ID, "Spicy Wings", 2))

	require.NoError(t, f.svc.Confirm(ctx, created.ID, ChannelRedirect))
	require.NoError(t, f.svc.Confirm(ctx, created.ID, ChannelWebhook), "duplicate confirmation is a no-op")

	reloaded, err := f.products.FindByID(ctx, wings.ID)
	require.NoError(t, err)
	assert.Equal(t, 8, reloaded.Stock, "stock decremented exactly once")

	confirmed, err := f.orders.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, confirmed.Paid)
	assert.Equal(t, enums.OrderStatusPaid, confirmed.Status)

	assert.Equal(t, []string{"sess-1"}, f.carts.cleared, "cart cleared exactly once")
	assert.Equal(t, []uuid.UUID{created.ID}, f.notifier.sent, "one confirmation dispatched")
}

func TestServiceConfirmSurvivesNotifierFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	wings := f.createProduct(t, "Spicy Wings", 10)
	created := f.createOrder(t, "sess-1", line(wings.ID, "Spicy Wings", 2))

	f.notifier.err = assert.AnError

	require.NoError(t, f.svc.Confirm(ctx, created.ID, ChannelWebhook), "a lost email must not fail the confirmation")

	confirmed, err := f.orders.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, confirmed.Paid)
	assert.Equal(t, []string{"sess-1"}, f.carts.cleared)
	assert.Empty(t, f.notifier.sent)
}

func TestServiceConfirmUnknownOrder(t *testing.T) {
	f := newFixture(t)

	err := f.svc.Confirm(context.Background(), uuid.New(), ChannelRedirect)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())
}

func TestServiceConfirmClampsStockShortfall(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	wings := f.createProduct(t, "Spicy Wings", 1)
	created := f.createOrder(t, "sess-1", line(wings.ID, "Spicy Wings", 3))

	require.NoError(t, f.svc.Confirm(ctx, created.ID, ChannelWebhook), "shortfall must not block the payment")

	reloaded, err := f.products.FindByID(ctx, wings.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, reloaded.Stock, "stock clamps to zero, never negative")

	confirmed, err := f.orders.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, confirmed.Paid)
	assert.True(t, confirmed.StockShortfall)
	assert.Equal(t, []uuid.UUID{created.ID}, f.notifier.sent)
}

func TestServiceConfirmSurvivesDeletedProduct(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created := f.createOrder(t, "sess-1", models.OrderLine{
		ProductName: "Retired Combo",
		Price:       decimal.RequireFromString("25.00"),
		Quantity:    1,
	})

	require.NoError(t, f.svc.Confirm(ctx, created.ID, ChannelRedirect))

	confirmed, err := f.orders.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, confirmed.Paid)
}

func TestServiceFailNeverRevertsPaid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	wings := f.createProduct(t, "Spicy Wings", 5)
	created := f.createOrder(t, "sess-1", line(wings.ID, "Spicy Wings", 1))

	require.NoError(t, f.svc.Confirm(ctx, created.ID, ChannelWebhook))
	require.NoError(t, f.svc.Fail(ctx, created.ID, ChannelIPN))

	reloaded, err := f.orders.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.Paid)
	assert.Equal(t, enums.OrderStatusPaid, reloaded.Status)
}

func TestServiceFailMovesPendingOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created := f.createOrder(t, "sess-1", models.OrderLine{ProductName: "Fries", Price: decimal.RequireFromString("5.50"), Quantity: 1})

	require.NoError(t, f.svc.Fail(ctx, created.ID, ChannelWebhook))

	reloaded, err := f.orders.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusFailed, reloaded.Status)
	assert.False(t, reloaded.Paid)
}

func TestServiceHandleWebhookApprovedPayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	wings := f.createProduct(t, "Spicy Wings", 10)
	created := f.createOrder(t, "sess-1", line(wings.ID, "Spicy Wings", 2))

	f.gateway.payments["12345"] = &mercadopago.Payment{
		ID:                "12345",
		Status:            mercadopago.PaymentStatusApproved,
		ExternalReference: created.ID.String(),
	}

	require.NoError(t, f.svc.HandleWebhook(ctx, "payment", "12345"))

	reloaded, err := f.orders.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.Paid)
	require.NotNil(t, reloaded.PaymentID)
	assert.Equal(t, "12345", *reloaded.PaymentID)
}

func TestServiceHandleWebhookIgnoresOtherEvents(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.svc.HandleWebhook(context.Background(), "plan", "12345"))
	assert.Empty(t, f.notifier.sent)
}

func TestServiceHandleWebhookPendingAfterPaidNoRevert(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	wings := f.createProduct(t, "Spicy Wings", 10)
	created := f.createOrder(t, "sess-1", line(wings.ID, "Spicy Wings", 1))

	require.NoError(t, f.svc.Confirm(ctx, created.ID, ChannelRedirect))

	f.gateway.payments["999"] = &mercadopago.Payment{
		ID:                "999",
		Status:            mercadopago.PaymentStatusPending,
		ExternalReference: created.ID.String(),
	}
	require.NoError(t, f.svc.HandleWebhook(ctx, "payment", "999"))

	reloaded, err := f.orders.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.Paid)
	assert.Equal(t, enums.OrderStatusPaid, reloaded.Status)
}

func TestServiceHandleIPNMerchantOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	wings := f.createProduct(t, "Spicy Wings", 10)
	created := f.createOrder(t, "sess-1", line(wings.ID, "Spicy Wings", 2))

	f.gateway.merchantOrders["777"] = &mercadopago.MerchantOrder{
		ID:                "777",
		ExternalReference: created.ID.String(),
		Payments: []mercadopago.Payment{
			{ID: "12345", Status: mercadopago.PaymentStatusApproved, ExternalReference: created.ID.String()},
		},
	}

	require.NoError(t, f.svc.HandleIPN(ctx, "merchant_order", "777"))

	reloaded, err := f.orders.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.Paid)
}

func TestServiceHandleIPNRejectedPayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created := f.createOrder(t, "sess-1", models.OrderLine{ProductName: "Fries", Price: decimal.RequireFromString("5.50"), Quantity: 1})

	f.gateway.payments["555"] = &mercadopago.Payment{
		ID:                "555",
		Status:            mercadopago.PaymentStatusRejected,
		ExternalReference: created.ID.String(),
	}

	require.NoError(t, f.svc.HandleIPN(ctx, "payment", "555"))

	reloaded, err := f.orders.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusFailed, reloaded.Status)
}
