package mercadopago

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
)

func TestClientCreatePreferenceRequest(t *testing.T) {
	const expectedURL = "http://mp.test/checkout/preferences"
	respBody := `{"id":"pref_123","init_point":"https://mp.test/checkout/v1/redirect?pref_id=pref_123"}`

	var capturedURL string
	var capturedHeaders http.Header

	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		capturedURL = req.URL.String()
		capturedHeaders = req.Header.Clone()

		bodyBytes, err := io.ReadAll(req.Body)
		if err != nil {
			t.Fatalf("read request body: %v", err)
		}
		var payload map[string]any
		if err := json.Unmarshal(bodyBytes, &payload); err != nil {
			t.Fatalf("unmarshal request body: %v", err)
		}
		if payload["external_reference"] != "order_42" {
			t.Fatalf("unexpected external reference %q", payload["external_reference"])
		}
		items, ok := payload["items"].([]any)
		if !ok || len(items) != 1 {
			t.Fatalf("unexpected items %+v", payload["items"])
		}
		item := items[0].(map[string]any)
		if item["unit_price"] != 19.99 {
			t.Fatalf("unexpected unit price %v", item["unit_price"])
		}
		if item["currency_id"] != "ARS" {
			t.Fatalf("unexpected currency %v", item["currency_id"])
		}

		return &http.Response{
			StatusCode: http.StatusCreated,
			Body:       io.NopCloser(strings.NewReader(respBody)),
			Header:     http.Header{},
		}, nil
	})

	httpClient := &http.Client{Transport: rt}
	client, err := NewClient("test-token", WithBaseURL("http://mp.test"), WithHTTPClient(httpClient))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	pref, err := client.CreatePreference(context.Background(), PreferenceRequest{
		Items: []PreferenceItem{{
			Title:     "Spicy Wings",
			Quantity:  2,
			UnitPrice: 19.99,
		}},
		BackURLs: BackURLs{
			Success: "http://shop.test/api/v1/payments/success/order_42",
			Failure: "http://shop.test/api/v1/payments/failure/order_42",
			Pending: "http://shop.test/api/v1/payments/pending/order_42",
		},
		ExternalReference: "order_42",
	})
	if err != nil {
		t.Fatalf("create preference: %v", err)
	}
	if capturedURL != expectedURL {
		t.Fatalf("unexpected URL %q", capturedURL)
	}
	if capturedHeaders.Get("Authorization") != "Bearer test-token" {
		t.Fatalf("authorization header missing")
	}
	if pref.ID != "pref_123" {
		t.Fatalf("unexpected preference %+v", pref)
	}
	if !strings.Contains(pref.InitPoint, "pref_id=pref_123") {
		t.Fatalf("unexpected init point %q", pref.InitPoint)
	}
}

func TestClientGetPaymentRequest(t *testing.T) {
	const expectedURL = "http://mp.test/v1/payments/12345"
	respBody := `{"id":12345,"status":"approved","external_reference":"order_42"}`

	var capturedURL string
	var capturedHeaders http.Header

	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		capturedURL = req.URL.String()
		capturedHeaders = req.Header.Clone()
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(strings.NewReader(respBody)),
			Header:     http.Header{},
		}, nil
	})

	httpClient := &http.Client{Transport: rt}
	client, err := NewClient("test-token", WithBaseURL("http://mp.test"), WithHTTPClient(httpClient))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	payment, err := client.GetPayment(context.Background(), "12345")
	if err != nil {
		t.Fatalf("get payment: %v", err)
	}
	if capturedURL != expectedURL {
		t.Fatalf("unexpected URL %q", capturedURL)
	}
	if capturedHeaders.Get("Authorization") != "Bearer test-token" {
		t.Fatalf("authorization header missing")
	}
	if payment.ID != "12345" || payment.Status != PaymentStatusApproved {
		t.Fatalf("unexpected payment %+v", payment)
	}
	if payment.ExternalReference != "order_42" {
		t.Fatalf("unexpected external reference %q", payment.ExternalReference)
	}
}

func TestClientGetMerchantOrderRequest(t *testing.T) {
	const expectedURL = "http://mp.test/merchant_orders/777"
	respBody := `{"id":777,"external_reference":"order_42","payments":[{"id":12345,"status":"approved"},{"id":12346,"status":"rejected"}]}`

	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		if req.URL.String() != expectedURL {
			t.Fatalf("unexpected URL %q", req.URL.String())
		}
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(strings.NewReader(respBody)),
			Header:     http.Header{},
		}, nil
	})

	httpClient := &http.Client{Transport: rt}
	client, err := NewClient("test-token", WithBaseURL("http://mp.test"), WithHTTPClient(httpClient))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	merchantOrder, err := client.GetMerchantOrder(context.Background(), "777")
	if err != nil {
		t.Fatalf("get merchant order: %v", err)
	}
	if merchantOrder.ExternalReference != "order_42" {
		t.Fatalf("unexpected external reference %q", merchantOrder.ExternalReference)
	}
	if len(merchantOrder.Payments) != 2 {
		t.Fatalf("unexpected payments %+v", merchantOrder.Payments)
	}
	if merchantOrder.Payments[0].ID != "12345" || merchantOrder.Payments[0].Status != PaymentStatusApproved {
		t.Fatalf("unexpected first payment %+v", merchantOrder.Payments[0])
	}
	if merchantOrder.Payments[1].ExternalReference != "order_42" {
		t.Fatalf("payments should inherit the order external reference")
	}
}

func TestClientGetPaymentNotFound(t *testing.T) {
	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusNotFound,
			Body:       io.NopCloser(strings.NewReader(`{"message":"not found"}`)),
			Header:     http.Header{},
		}, nil
	})

	client, err := NewClient("test-token", WithBaseURL("http://mp.test"), WithHTTPClient(&http.Client{Transport: rt}))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	_, err = client.GetPayment(context.Background(), "missing")
	if err == nil {
		t.Fatal("expected error for missing payment")
	}
}

func TestNewClientRequiresToken(t *testing.T) {
	if _, err := NewClient("   "); err == nil {
		t.Fatal("expected error for blank token")
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}
