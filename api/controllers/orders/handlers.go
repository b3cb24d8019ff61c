package orders

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/namnamchicken/shop-backend/api/middleware"
	"github.com/namnamchicken/shop-backend/api/responses"
	"github.com/namnamchicken/shop-backend/api/validators"
	order "github.com/namnamchicken/shop-backend/internal/orders"
	pkgerrors "github.com/namnamchicken/shop-backend/pkg/errors"
	"github.com/namnamchicken/shop-backend/pkg/logger"
)

func sessionID(r *http.Request) (string, error) {
	id, ok := middleware.SessionID(r.Context())
	if !ok {
		return "", pkgerrors.New(pkgerrors.CodeInternal, "session not resolved")
	}
	return id, nil
}

func orderID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "orderID"))
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order id")
	}
	return id, nil
}

// Checkout turns the session cart into an order and starts payment.
func Checkout(svc order.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
			return
		}
		session, err := sessionID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req checkoutRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Checkout(r.Context(), session, order.CheckoutInput{
			FirstName: req.FirstName,
			LastName:  req.LastName,
			Email:     req.Email,
			Address:   req.Address,
			Phone:     req.Phone,
			Notes:     req.Notes,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, checkoutResponse{
			Order:         newOrderResponse(result.Order),
			PaymentURL:    result.PaymentURL,
			PaymentStatus: result.PaymentStatus,
		})
	}
}

// Get returns an order owned by the caller's session.
func Get(svc order.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
			return
		}
		session, err := sessionID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := orderID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		found, err := svc.Get(r.Context(), session, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newOrderResponse(found))
	}
}

// RetryPayment creates a fresh payment preference for an unpaid order.
func RetryPayment(svc order.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
			return
		}
		session, err := sessionID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := orderID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.RetryPayment(r.Context(), session, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, checkoutResponse{
			Order:         newOrderResponse(result.Order),
			PaymentURL:    result.PaymentURL,
			PaymentStatus: result.PaymentStatus,
		})
	}
}
