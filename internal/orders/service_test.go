package order

import (
	"context"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/namnamchicken/shop-backend/internal/cart"
	"github.com/namnamchicken/shop-backend/pkg/config"
	pkgerrors "github.com/namnamchicken/shop-backend/pkg/errors"
	"github.com/namnamchicken/shop-backend/pkg/logger"
	"github.com/namnamchicken/shop-backend/pkg/mercadopago"
)

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

type stubCartReader struct {
	summary *cart.Summary
	err     error
}

func (s *stubCartReader) Get(context.Context, string) (*cart.Summary, error) {
	return s.summary, s.err
}

type stubGateway struct {
	preference *mercadopago.Preference
	err        error
	lastReq    mercadopago.PreferenceRequest
}

func (s *stubGateway) CreatePreference(_ context.Context, req mercadopago.PreferenceRequest) (*mercadopago.Preference, error) {
	s.lastReq = req
	if s.err != nil {
		return nil, s.err
	}
	return s.preference, nil
}

type stubConfirmer struct {
	confirmed []uuid.UUID
	repo      *Repository
}

func (s *stubConfirmer) Confirm(ctx context.Context, orderID uuid.UUID, _ string) error {
	s.confirmed = append(s.confirmed, orderID)
	if s.repo != nil {
		_, err := s.repo.ClaimPaid(ctx, orderID, nil)
		return err
	}
	return nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func testSummary() *cart.Summary {
	wingsID := uuid.New()
	friesID := uuid.New()
	return &cart.Summary{
		Lines: []cart.SummaryLine{
			{ProductID: wingsID, Name: "Spicy Wings", UnitPrice: decimal.RequireFromString("19.99"), Quantity: 2, Subtotal: decimal.RequireFromString("39.98")},
			{ProductID: friesID, Name: "Fries", UnitPrice: decimal.RequireFromString("25.00"), Quantity: 1, Subtotal: decimal.RequireFromString("25.00")},
		},
		ItemCount:          3,
		Total:              decimal.RequireFromString("64.98"),
		TotalAfterDiscount: decimal.RequireFromString("64.98"),
	}
}

func testCheckoutInput() CheckoutInput {
	return CheckoutInput{
		FirstName: "John",
		LastName:  "Doe",
		Email:     "john@example.com",
		Address:   "123 Test Street",
		Phone:     "1234567890",
		Notes:     "Please deliver fast",
	}
}

func TestServiceCheckoutEmptyCart(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)

	svc, err := NewService(repo, gormTxRunner{db}, &stubCartReader{summary: &cart.Summary{}},
		nil, &stubConfirmer{repo: repo}, config.MercadoPagoConfig{}, testLogger())
	require.NoError(t, err)

	_, err = svc.Checkout(context.Background(), "sess-1", testCheckoutInput())
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
}

func TestServiceCheckoutDevPathConfirmsSynchronously(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	confirmer := &stubConfirmer{repo: repo}

	svc, err := NewService(repo, gormTxRunner{db}, &stubCartReader{summary: testSummary()},
		nil, confirmer, config.MercadoPagoConfig{}, testLogger())
	require.NoError(t, err)

	result, err := svc.Checkout(context.Background(), "sess-1", testCheckoutInput())
	require.NoError(t, err)

	assert.Equal(t, PaymentStatusPaid, result.PaymentStatus)
	assert.True(t, result.Order.Paid)
	require.Len(t, confirmer.confirmed, 1)
	assert.Equal(t, result.Order.ID, confirmer.confirmed[0])
	require.Len(t, result.Order.Items, 2)
}

func TestServiceCheckoutGatewayCreatesPreference(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	gateway := &stubGateway{preference: &mercadopago.Preference{ID: "pref_123", InitPoint: "https://mp.test/redirect?pref_id=pref_123"}}

	svc, err := NewService(repo, gormTxRunner{db}, &stubCartReader{summary: testSummary()},
		gateway, &stubConfirmer{}, config.MercadoPagoConfig{PublicURL: "http://shop.test"}, testLogger())
	require.NoError(t, err)

	result, err := svc.Checkout(context.Background(), "sess-1", testCheckoutInput())
	require.NoError(t, err)

	assert.Equal(t, PaymentStatusPending, result.PaymentStatus)
	assert.Equal(t, "https://mp.test/redirect?pref_id=pref_123", result.PaymentURL)
	assert.False(t, result.Order.Paid, "gateway path leaves the order pending")

	assert.Equal(t, result.Order.ID.String(), gateway.lastReq.ExternalReference)
	require.Len(t, gateway.lastReq.Items, 2)
	assert.Equal(t, "http://shop.test/api/v1/payments/success/"+result.Order.ID.String(), gateway.lastReq.BackURLs.Success)
	assert.Equal(t, "http://shop.test/api/v1/webhooks/mercadopago", gateway.lastReq.NotificationURL)

	reloaded, err := repo.FindByID(context.Background(), result.Order.ID)
	require.NoError(t, err)
	require.NotNil(t, reloaded.PreferenceID)
	assert.Equal(t, "pref_123", *reloaded.PreferenceID)
}

func TestServiceCheckoutGatewayFaultKeepsOrder(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	gateway := &stubGateway{err: pkgerrors.New(pkgerrors.CodeDependency, "gateway down")}

	svc, err := NewService(repo, gormTxRunner{db}, &stubCartReader{summary: testSummary()},
		gateway, &stubConfirmer{}, config.MercadoPagoConfig{PublicURL: "http://shop.test"}, testLogger())
	require.NoError(t, err)

	result, err := svc.Checkout(context.Background(), "sess-1", testCheckoutInput())
	require.NoError(t, err, "gateway faults must not fail checkout")

	assert.Equal(t, PaymentStatusUnavailable, result.PaymentStatus)
	assert.Empty(t, result.PaymentURL)

	reloaded, err := repo.FindByID(context.Background(), result.Order.ID)
	require.NoError(t, err)
	assert.False(t, reloaded.Paid)
}

func TestServiceCheckoutSnapshotsCoupon(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)

	summary := testSummary()
	summary.Coupon = &cart.CouponInfo{ID: uuid.New(), Code: "TESTCODE", DiscountPercent: 20}
	summary.Discount = decimal.RequireFromString("13.00")
	summary.TotalAfterDiscount = decimal.RequireFromString("51.98")

	svc, err := NewService(repo, gormTxRunner{db}, &stubCartReader{summary: summary},
		nil, &stubConfirmer{repo: repo}, config.MercadoPagoConfig{}, testLogger())
	require.NoError(t, err)

	result, err := svc.Checkout(context.Background(), "sess-1", testCheckoutInput())
	require.NoError(t, err)

	require.NotNil(t, result.Order.CouponCode)
	assert.Equal(t, "TESTCODE", *result.Order.CouponCode)
	assert.Equal(t, 20, result.Order.DiscountPercent)

	reloaded, err := repo.FindByID(context.Background(), result.Order.ID)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("51.98").Equal(reloaded.PayableTotal()))
}

func TestServiceCheckoutCouponChargesDiscountedTotal(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	gateway := &stubGateway{preference: &mercadopago.Preference{ID: "pref_789", InitPoint: "https://mp.test/redirect?pref_id=pref_789"}}

	summary := testSummary()
	summary.Coupon = &cart.CouponInfo{ID: uuid.New(), Code: "TESTCODE", DiscountPercent: 20}
	summary.Discount = decimal.RequireFromString("13.00")
	summary.TotalAfterDiscount = decimal.RequireFromString("51.98")

	svc, err := NewService(repo, gormTxRunner{db}, &stubCartReader{summary: summary},
		gateway, &stubConfirmer{}, config.MercadoPagoConfig{PublicURL: "http://shop.test"}, testLogger())
	require.NoError(t, err)

	result, err := svc.Checkout(context.Background(), "sess-1", testCheckoutInput())
	require.NoError(t, err)
	assert.Equal(t, PaymentStatusPending, result.PaymentStatus)

	// the gateway must collect the discounted total, not the line sum
	require.Len(t, gateway.lastReq.Items, 1)
	assert.Equal(t, 1, gateway.lastReq.Items[0].Quantity)
	assert.InDelta(t, result.Order.PayableTotal().InexactFloat64(), gateway.lastReq.Items[0].UnitPrice, 0.001)
	assert.InDelta(t, 51.98, gateway.lastReq.Items[0].UnitPrice, 0.001)
}

func TestServiceRetryPayment(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	gateway := &stubGateway{preference: &mercadopago.Preference{ID: "pref_456", InitPoint: "https://mp.test/redirect?pref_id=pref_456"}}

	svc, err := NewService(repo, gormTxRunner{db}, &stubCartReader{summary: testSummary()},
		gateway, &stubConfirmer{}, config.MercadoPagoConfig{PublicURL: "http://shop.test"}, testLogger())
	require.NoError(t, err)

	created := mustCreateOrder(t, repo, "sess-1")

	result, err := svc.RetryPayment(context.Background(), "sess-1", created.ID)
	require.NoError(t, err)
	assert.Equal(t, PaymentStatusPending, result.PaymentStatus)
	assert.Equal(t, "https://mp.test/redirect?pref_id=pref_456", result.PaymentURL)

	_, err = repo.ClaimPaid(context.Background(), created.ID, nil)
	require.NoError(t, err)

	_, err = svc.RetryPayment(context.Background(), "sess-1", created.ID)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeStateConflict, typed.Code())
}

func TestServiceGetScopedToSession(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)

	svc, err := NewService(repo, gormTxRunner{db}, &stubCartReader{summary: testSummary()},
		nil, &stubConfirmer{repo: repo}, config.MercadoPagoConfig{}, testLogger())
	require.NoError(t, err)

	created := mustCreateOrder(t, repo, "sess-1")

	found, err := svc.Get(context.Background(), "sess-1", created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)

	_, err = svc.Get(context.Background(), "other-session", created.ID)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())
}
