package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/transcribefree/backend/pkg/config"
)

// Calculator prices transcription jobs from estimated duration. Billing is in
// 0.1-minute increments, rounded up, with a processor-driven minimum charge.
type Calculator struct {
	ratePerMinute decimal.Decimal
	minimumCharge decimal.Decimal
}

// NewCalculator builds a Calculator from pricing configuration (cents).
func NewCalculator(cfg config.PricingConfig) *Calculator {
	return &Calculator{
		ratePerMinute: decimal.NewFromInt(cfg.RatePerMinuteCents).Div(decimal.NewFromInt(100)),
		minimumCharge: decimal.NewFromInt(cfg.MinimumChargeCents).Div(decimal.NewFromInt(100)),
	}
}

// Cost returns the price in dollars for the given duration in minutes:
// max(minimum, ceil(minutes*10)/10 * rate). Negative duration is a caller
// precondition violation and prices as zero minutes.
func (c *Calculator) Cost(minutes float64) decimal.Decimal {
	if minutes < 0 {
		minutes = 0
	}
	billed := decimal.NewFromFloat(minutes).
		Mul(decimal.NewFromInt(10)).
		Ceil().
		Div(decimal.NewFromInt(10))
	cost := billed.Mul(c.ratePerMinute)
	if cost.LessThan(c.minimumCharge) {
		return c.minimumCharge
	}
	return cost.Round(2)
}

// CostCents returns the price in integer cents, as charged by the payment
// processor.
func (c *Calculator) CostCents(minutes float64) int64 {
	return c.Cost(minutes).Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// MinimumChargeCents exposes the configured floor in cents.
func (c *Calculator) MinimumChargeCents() int64 {
	return c.minimumCharge.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}
