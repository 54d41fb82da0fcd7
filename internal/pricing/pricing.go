// Package pricing turns an hourly rate and a whole number of hours into the
// amount charged, applying the long-stay discount tiers.
package pricing

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	ErrNonPositiveRate     = errors.New("hourly rate must be positive")
	ErrNonPositiveDuration = errors.New("duration must be at least one hour")
)

// Tier gives Rate off the base price for stays of at least MinHours.
type Tier struct {
	MinHours int
	Rate     decimal.Decimal
}

// DefaultTiers is ordered highest first. Only the first matching tier applies.
var DefaultTiers = []Tier{
	{MinHours: 24, Rate: decimal.RequireFromString("0.20")},
	{MinHours: 12, Rate: decimal.RequireFromString("0.15")},
	{MinHours: 8, Rate: decimal.RequireFromString("0.10")},
}

type Quote struct {
	HourlyRate   decimal.Decimal `json:"hourly_rate"`
	Hours        int             `json:"hours"`
	Base         decimal.Decimal `json:"base_amount"`
	DiscountRate decimal.Decimal `json:"discount_rate"`
	Discount     decimal.Decimal `json:"discount"`
	Total        decimal.Decimal `json:"total"`
}

type Calculator struct {
	tiers []Tier
}

func NewCalculator() *Calculator {
	return &Calculator{tiers: DefaultTiers}
}

func (c *Calculator) discountRate(hours int) decimal.Decimal {
	for _, t := range c.tiers {
		if hours >= t.MinHours {
			return t.Rate
		}
	}
	return decimal.Zero
}

func (c *Calculator) Quote(rate decimal.Decimal, hours int) (Quote, error) {
	if !rate.IsPositive() {
		return Quote{}, ErrNonPositiveRate
	}
	if hours <= 0 {
		return Quote{}, ErrNonPositiveDuration
	}

	base := rate.Mul(decimal.NewFromInt(int64(hours)))
	discountRate := c.discountRate(hours)
	total := base.Mul(decimal.NewFromInt(1).Sub(discountRate)).Round(2)

	return Quote{
		HourlyRate:   rate,
		Hours:        hours,
		Base:         base.Round(2),
		DiscountRate: discountRate,
		Discount:     base.Round(2).Sub(total),
		Total:        total,
	}, nil
}

// Price is the total charged for hours at rate, rounded to cents.
func (c *Calculator) Price(rate decimal.Decimal, hours int) (decimal.Decimal, error) {
	q, err := c.Quote(rate, hours)
	if err != nil {
		return decimal.Zero, err
	}
	return q.Total, nil
}
