package webhooks

import (
	"encoding/json"
	"net/http"

	"github.com/namnamchicken/shop-backend/api/responses"
	payment "github.com/namnamchicken/shop-backend/internal/payments"
	pkgerrors "github.com/namnamchicken/shop-backend/pkg/errors"
	"github.com/namnamchicken/shop-backend/pkg/logger"
)

type mercadoPagoEvent struct {
	ID     json.Number `json:"id"`
	Type   string      `json:"type"`
	Action string      `json:"action"`
	Data   struct {
		ID json.Number `json:"id"`
	} `json:"data"`
}

// MercadoPago handles gateway webhook notifications. The gateway retries
// until it sees a 2xx, so handler failures are logged and acked anyway; the
// idempotency mark is dropped so the retry gets another attempt.
func MercadoPago(svc payment.Service, guard *payment.IdempotencyGuard, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil || guard == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook handling unavailable"))
			return
		}

		// Malformed payloads are acked: a non-2xx would only make the
		// gateway resend the same garbage.
		var event mercadoPagoEvent
		if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
			logg.Error(ctx, "invalid webhook payload", err)
			responses.WriteSuccess(w, nil)
			return
		}
		paymentID := event.Data.ID.String()
		if paymentID == "" {
			logg.Warn(ctx, "webhook payload missing data.id")
			responses.WriteSuccess(w, nil)
			return
		}

		eventID := event.Type + ":" + paymentID
		alreadySeen, err := guard.CheckAndMark(ctx, eventID)
		if err != nil {
			logg.Error(ctx, "webhook idempotency check failed", err)
		} else if alreadySeen {
			logg.Info(ctx, "webhook already processed")
			responses.WriteSuccess(w, nil)
			return
		}

		if err := svc.HandleWebhook(ctx, event.Type, paymentID); err != nil {
			if delErr := guard.Delete(ctx, eventID); delErr != nil {
				logg.Error(ctx, "releasing webhook idempotency mark failed", delErr)
			}
			logg.Error(ctx, "webhook handling failed", err)
		}
		responses.WriteSuccess(w, nil)
	}
}

// MercadoPagoIPN handles legacy IPN notifications, which arrive as query
// parameters instead of a JSON body.
func MercadoPagoIPN(svc payment.Service, guard *payment.IdempotencyGuard, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil || guard == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ipn handling unavailable"))
			return
		}

		topic := r.URL.Query().Get("topic")
		resourceID := r.URL.Query().Get("id")
		if topic == "" || resourceID == "" {
			logg.Warn(ctx, "ipn notification missing topic or id")
			responses.WriteSuccess(w, nil)
			return
		}

		eventID := "ipn:" + topic + ":" + resourceID
		alreadySeen, err := guard.CheckAndMark(ctx, eventID)
		if err != nil {
			logg.Error(ctx, "ipn idempotency check failed", err)
		} else if alreadySeen {
			logg.Info(ctx, "ipn already processed")
			responses.WriteSuccess(w, nil)
			return
		}

		if err := svc.HandleIPN(ctx, topic, resourceID); err != nil {
			if delErr := guard.Delete(ctx, eventID); delErr != nil {
				logg.Error(ctx, "releasing ipn idempotency mark failed", delErr)
			}
			logg.Error(ctx, "ipn handling failed", err)
		}
		responses.WriteSuccess(w, nil)
	}
}
