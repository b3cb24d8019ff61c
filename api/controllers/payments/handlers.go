package payments

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/namnamchicken/shop-backend/api/responses"
	payment "github.com/namnamchicken/shop-backend/internal/payments"
	pkgerrors "github.com/namnamchicken/shop-backend/pkg/errors"
	"github.com/namnamchicken/shop-backend/pkg/logger"
)

func orderID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "orderID"))
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order id")
	}
	return id, nil
}

// redirectPaymentID pulls the gateway payment reference from the return URL.
// MercadoPago sends it as payment_id on newer integrations and collection_id
// on older ones.
func redirectPaymentID(r *http.Request) *string {
	for _, key := range []string{"payment_id", "collection_id"} {
		if v := r.URL.Query().Get(key); v != "" && v != "null" {
			return &v
		}
	}
	return nil
}

// Success lands the buyer back after an approved payment and confirms the
// order. The later webhook for the same payment becomes a no-op.
func Success(svc payment.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}
		id, err := orderID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.ConfirmWithPayment(r.Context(), id, redirectPaymentID(r), payment.ChannelRedirect); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "paid"})
	}
}

// Failure lands the buyer back after a rejected payment.
func Failure(svc payment.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}
		id, err := orderID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Fail(r.Context(), id, payment.ChannelRedirect); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "failed"})
	}
}

// Pending lands the buyer back while the payment is still in flight. The
// order stays pending until the gateway notifies a final state.
func Pending(svc payment.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}
		if _, err := orderID(r); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "pending"})
	}
}
