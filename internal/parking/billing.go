package parking

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Rates configures the billing policy.
type Rates struct {
	HourlyRate         decimal.Decimal
	VIPDiscountPercent decimal.Decimal
	// MinimumHours is charged even when the stay is shorter. At least 1.
	MinimumHours int64
	// Precision is the number of decimal places the amount is rounded to.
	Precision int32
}

func DefaultRates() Rates {
	return Rates{
		HourlyRate:         decimal.NewFromInt(20),
		VIPDiscountPercent: decimal.NewFromInt(25),
		MinimumHours:       1,
		Precision:          2,
	}
}

// NewRates converts plain configuration values. Use ValidateRates or
// NewBillingCalculator to reject out-of-range values.
func NewRates(hourlyRate, vipDiscountPercent float64, minimumHours, precision int) Rates {
	return Rates{
		HourlyRate:         decimal.NewFromFloat(hourlyRate),
		VIPDiscountPercent: decimal.NewFromFloat(vipDiscountPercent),
		MinimumHours:       int64(minimumHours),
		Precision:          int32(precision),
	}
}

func ValidateRates(r Rates) error {
	switch {
	case r.HourlyRate.IsNegative():
		return fmt.Errorf("%w: hourly rate %s is negative", ErrInvalidRates, r.HourlyRate)
	case r.VIPDiscountPercent.IsNegative() || r.VIPDiscountPercent.GreaterThan(decimal.NewFromInt(100)):
		return fmt.Errorf("%w: vip discount %s%% outside 0..100", ErrInvalidRates, r.VIPDiscountPercent)
	case r.MinimumHours < 1:
		return fmt.Errorf("%w: minimum hours %d is below 1", ErrInvalidRates, r.MinimumHours)
	case r.Precision < 0:
		return fmt.Errorf("%w: precision %d is negative", ErrInvalidRates, r.Precision)
	}
	return nil
}

// Fee is the outcome of one billing computation.
type Fee struct {
	Duration time.Duration
	Hours    int64
	Amount   decimal.Decimal
}

type BillingCalculator struct {
	rates Rates
}

func NewBillingCalculator(rates Rates) (*BillingCalculator, error) {
	if err := ValidateRates(rates); err != nil {
		return nil, err
	}
	return &BillingCalculator{rates: rates}, nil
}

func (c *BillingCalculator) Rates() Rates {
	return c.rates
}

// ComputeFee bills every started hour at the hourly rate, with at least
// MinimumHours charged. A departure before the arrival counts as zero
// duration.
func (c *BillingCalculator) ComputeFee(arrival, departure time.Time, vip bool) Fee {
	duration := departure.Sub(arrival)
	if duration < 0 {
		duration = 0
	}

	hours := int64(duration / time.Hour)
	if duration%time.Hour != 0 {
		hours++
	}
	if hours < c.rates.MinimumHours {
		hours = c.rates.MinimumHours
	}

	amount := c.rates.HourlyRate.Mul(decimal.NewFromInt(hours))
	if vip {
		hundred := decimal.NewFromInt(100)
		amount = amount.Mul(hundred.Sub(c.rates.VIPDiscountPercent)).Div(hundred)
	}

	amount = amount.Round(c.rates.Precision)
	if amount.IsNegative() {
		amount = decimal.Zero
	}

	return Fee{
		Duration: duration,
		Hours:    hours,
		Amount:   amount,
	}
}
