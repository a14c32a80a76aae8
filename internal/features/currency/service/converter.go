package service

import (
	"math"

	"budget-bubble-backend/internal/features/currency/models"

	"github.com/shopspring/decimal"
)

// Converter maps amounts between currencies through a fixed rate table.
// It is read-only after construction and safe for concurrent use.
type Converter struct {
	canonical models.Code
	rates     models.RateTable
}

func NewConverter(canonical models.Code, rates models.RateTable) *Converter {
	table := make(models.RateTable, len(rates))
	for code, rate := range rates {
		table[code] = rate
	}
	return &Converter{canonical: canonical, rates: table}
}

func (c *Converter) Canonical() models.Code {
	return c.canonical
}

// Rates returns a copy of the table.
func (c *Converter) Rates() models.RateTable {
	out := make(models.RateTable, len(c.rates))
	for code, rate := range c.rates {
		out[code] = rate
	}
	return out
}

// Convert returns amount / rate[from] * rate[to]. Unknown currencies use a
// rate of 1, and same-currency conversion returns amount untouched.
func (c *Converter) Convert(amount float64, from, to models.Code) float64 {
	if from == to {
		return amount
	}
	return amount / c.rate(from) * c.rate(to)
}

func (c *Converter) ToCanonical(amount float64, from models.Code) float64 {
	return c.Convert(amount, from, c.canonical)
}

func (c *Converter) FromCanonical(amount float64, to models.Code) float64 {
	return c.Convert(amount, c.canonical, to)
}

// Display converts a canonical amount into the target currency rounded to
// cents. A conversion that overflows is capped at the largest float64 and NaN
// shows as zero.
func (c *Converter) Display(amount float64, to models.Code) decimal.Decimal {
	v := c.FromCanonical(amount, to)
	switch {
	case math.IsNaN(v):
		return decimal.Zero
	case math.IsInf(v, 1):
		v = math.MaxFloat64
	case math.IsInf(v, -1):
		v = -math.MaxFloat64
	}
	return decimal.NewFromFloat(v).Round(2)
}

func (c *Converter) rate(code models.Code) float64 {
	if r, ok := c.rates[code]; ok && r > 0 {
		return r
	}
	return 1
}
