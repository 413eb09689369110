package controllers

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/transcribefree/backend/api/responses"
	"github.com/transcribefree/backend/api/validators"
	"github.com/transcribefree/backend/internal/payments"
	"github.com/transcribefree/backend/pkg/logger"
)

type paymentIntentRequest struct {
	Amount   float64           `json:"amount" validate:"required,gt=0"`
	Currency string            `json:"currency"`
	Metadata map[string]string `json:"metadata"`
}

// CreatePaymentIntent charges for a transcription job ahead of processing.
func CreatePaymentIntent(svc *payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req paymentIntentRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		intent, err := svc.CreateIntent(r.Context(), payments.IntentInput{
			Amount:   decimal.NewFromFloat(req.Amount),
			Currency: req.Currency,
			Metadata: req.Metadata,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, intent)
	}
}
