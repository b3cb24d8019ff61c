package webhooks

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	payment "github.com/namnamchicken/shop-backend/internal/payments"
	"github.com/namnamchicken/shop-backend/pkg/logger"
)

type stubPaymentService struct {
	payment.Service

	webhookCalls []string
	ipnCalls     []string
	err          error
}

func (s *stubPaymentService) HandleWebhook(ctx context.Context, eventType, paymentID string) error {
	s.webhookCalls = append(s.webhookCalls, eventType+"/"+paymentID)
	return s.err
}

func (s *stubPaymentService) HandleIPN(ctx context.Context, topic, resourceID string) error {
	s.ipnCalls = append(s.ipnCalls, topic+"/"+resourceID)
	return s.err
}

type fakeIdempotencyStore struct {
	seen map[string]bool
}

func newFakeIdempotencyStore() *fakeIdempotencyStore {
	return &fakeIdempotencyStore{seen: map[string]bool{}}
}

func (f *fakeIdempotencyStore) Get(ctx context.Context, key string) (string, error) {
	if f.seen[key] {
		return "1", nil
	}
	return "", nil
}

func (f *fakeIdempotencyStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if f.seen[key] {
		return false, nil
	}
	f.seen[key] = true
	return true, nil
}

func (f *fakeIdempotencyStore) IdempotencyKey(scope, id string) string {
	return "shop:idempotency:" + scope + ":" + id
}

func (f *fakeIdempotencyStore) Del(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.seen, key)
	}
	return nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func newGuard(t *testing.T, store *fakeIdempotencyStore) *payment.IdempotencyGuard {
	t.Helper()
	guard, err := payment.NewIdempotencyGuard(store, time.Hour, "mercadopago")
	require.NoError(t, err)
	return guard
}

func TestMercadoPagoDispatchesPaymentEvent(t *testing.T) {
	t.Parallel()

	svc := &stubPaymentService{}
	handler := MercadoPago(svc, newGuard(t, newFakeIdempotencyStore()), testLogger())

	body := `{"type":"payment","action":"payment.updated","data":{"id":12345}}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/mercadopago", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"payment/12345"}, svc.webhookCalls)
}

func TestMercadoPagoReplayIsDropped(t *testing.T) {
	t.Parallel()

	svc := &stubPaymentService{}
	guard := newGuard(t, newFakeIdempotencyStore())
	handler := MercadoPago(svc, guard, testLogger())

	body := `{"type":"payment","data":{"id":"777"}}`
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/mercadopago", strings.NewReader(body))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	}

	assert.Len(t, svc.webhookCalls, 1)
}

func TestMercadoPagoAcksHandlerFailureAndReleasesMark(t *testing.T) {
	t.Parallel()

	svc := &stubPaymentService{err: assert.AnError}
	store := newFakeIdempotencyStore()
	handler := MercadoPago(svc, newGuard(t, store), testLogger())

	body := `{"type":"payment","data":{"id":"888"}}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/mercadopago", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, store.seen)

	svc.err = nil
	req = httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/mercadopago", strings.NewReader(body))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Len(t, svc.webhookCalls, 2)
}

func TestMercadoPagoAcksMalformedPayloads(t *testing.T) {
	t.Parallel()

	svc := &stubPaymentService{}
	handler := MercadoPago(svc, newGuard(t, newFakeIdempotencyStore()), testLogger())

	// A non-2xx would only trigger gateway retries, so bad payloads are
	// acked without dispatching anything.
	for _, body := range []string{`{"type":"payment"}`, `not json at all`} {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/mercadopago", strings.NewReader(body))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	}
	assert.Empty(t, svc.webhookCalls)
}

func TestMercadoPagoIPNDispatchesTopic(t *testing.T) {
	t.Parallel()

	svc := &stubPaymentService{}
	handler := MercadoPagoIPN(svc, newGuard(t, newFakeIdempotencyStore()), testLogger())

	target := "/api/v1/payments/ipn?topic=merchant_order&id=" + uuid.NewString()
	req := httptest.NewRequest(http.MethodPost, target, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, svc.ipnCalls, 1)
	assert.True(t, strings.HasPrefix(svc.ipnCalls[0], "merchant_order/"))
}

func TestMercadoPagoIPNAcksMissingParams(t *testing.T) {
	t.Parallel()

	svc := &stubPaymentService{}
	handler := MercadoPagoIPN(svc, newGuard(t, newFakeIdempotencyStore()), testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/payments/ipn?topic=payment", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, svc.ipnCalls)
}
