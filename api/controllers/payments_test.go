package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stripe/stripe-go/v84"

	"github.com/transcribefree/backend/internal/payments"
	"github.com/transcribefree/backend/pkg/config"
	pkgerrors "github.com/transcribefree/backend/pkg/errors"
	"github.com/transcribefree/backend/pkg/types"
)

type stubStripe struct {
	params *stripe.PaymentIntentParams
}

func (s *stubStripe) Create(_ context.Context, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	s.params = params
	return &stripe.PaymentIntent{ID: "pi_123", ClientSecret: "pi_123_secret"}, nil
}

func newPaymentsHandler(client payments.StripePaymentIntentClient) http.HandlerFunc {
	svc := payments.NewService(client, nil, config.PricingConfig{RatePerMinuteCents: 18, MinimumChargeCents: 50})
	return CreatePaymentIntent(svc, nil)
}

func TestCreatePaymentIntentSuccess(t *testing.T) {
	t.Parallel()
	client := &stubStripe{}
	handler := newPaymentsHandler(client)

	body := `{"amount":7.20,"currency":"usd","metadata":{"fileName":"meeting.mp3"}}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payment-intents", strings.NewReader(body))
	resp := httptest.NewRecorder()
	handler(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", resp.Code, resp.Body.String())
	}
	if client.params == nil || *client.params.Amount != 720 {
		t.Fatalf("unexpected stripe params %+v", client.params)
	}

	var envelope types.SuccessEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	data := envelope.Data.(map[string]any)
	if data["clientSecret"] != "pi_123_secret" {
		t.Fatalf("unexpected data %v", data)
	}
}

func TestCreatePaymentIntentRejectsBelowMinimum(t *testing.T) {
	t.Parallel()
	client := &stubStripe{}
	handler := newPaymentsHandler(client)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/payment-intents", strings.NewReader(`{"amount":0.25}`))
	resp := httptest.NewRecorder()
	handler(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.Code)
	}
	if client.params != nil {
		t.Fatal("stripe should not be called for rejected amounts")
	}

	var envelope types.ErrorEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if envelope.Error.Code != string(pkgerrors.CodeValidation) {
		t.Fatalf("unexpected code %s", envelope.Error.Code)
	}
	if !strings.Contains(envelope.Error.Message, "$0.50") {
		t.Fatalf("unexpected message %q", envelope.Error.Message)
	}
}

func TestCreatePaymentIntentRejectsMalformedBody(t *testing.T) {
	t.Parallel()
	handler := newPaymentsHandler(&stubStripe{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/payment-intents", strings.NewReader(`{"amount":"not-a-number"}`))
	resp := httptest.NewRecorder()
	handler(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.Code)
	}
}
