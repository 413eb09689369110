package payments

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v84"

	"github.com/transcribefree/backend/pkg/config"
	errs "github.com/transcribefree/backend/pkg/errors"
	"github.com/transcribefree/backend/pkg/logger"
)

// IntentInput describes a payment-intent request.
type IntentInput struct {
	Amount   decimal.Decimal
	Currency string
	Metadata map[string]string
}

// Intent is the client-facing result of creating a payment intent.
type Intent struct {
	ClientSecret    string `json:"clientSecret"`
	PaymentIntentID string `json:"paymentIntentId"`
}

// Service creates Stripe payment intents for transcription jobs.
type Service struct {
	stripe       StripePaymentIntentClient
	logg         *logger.Logger
	minimumCents int64
}

// NewService builds the payment service. The minimum charge comes from
// pricing configuration and mirrors Stripe's own floor.
func NewService(client StripePaymentIntentClient, logg *logger.Logger, cfg config.PricingConfig) *Service {
	if logg == nil {
		logg = logger.New(logger.Options{ServiceName: "payments"})
	}
	return &Service{
		stripe:       client,
		logg:         logg,
		minimumCents: cfg.MinimumChargeCents,
	}
}

// CreateIntent validates the amount against the processor minimum and
// creates the intent. Metadata defaults mirror what the download flow
// expects.
func (s *Service) CreateIntent(ctx context.Context, input IntentInput) (*Intent, error) {
	cents := input.Amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
	if cents < s.minimumCents {
		minimum := decimal.NewFromInt(s.minimumCents).Div(decimal.NewFromInt(100))
		return nil, errs.New(errs.CodeValidation,
			fmt.Sprintf("Invalid amount. Minimum charge is $%s.", minimum.StringFixed(2)))
	}
	if s.stripe == nil {
		return nil, errs.New(errs.CodeDependency, "payments are not configured")
	}

	currency := input.Currency
	if currency == "" {
		currency = "usd"
	}

	metadata := map[string]string{
		"fileName": "unknown",
		"duration": "0",
		"fileSize": "0",
	}
	for key, value := range input.Metadata {
		metadata[key] = value
	}

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(cents),
		Currency: stripe.String(currency),
		Metadata: metadata,
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}

	intent, err := s.stripe.Create(ctx, params)
	if err != nil {
		s.logg.Error(ctx, "stripe payment intent creation failed", err)
		return nil, errs.Wrap(errs.CodeDependency, err, "Payment setup failed")
	}

	return &Intent{
		ClientSecret:    intent.ClientSecret,
		PaymentIntentID: intent.ID,
	}, nil
}
