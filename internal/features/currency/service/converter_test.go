package service

import (
	"context"
	"math"
	"testing"

	"budget-bubble-backend/internal/features/currency/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDefaultConverter() *Converter {
	return NewConverter(models.USD, models.DefaultRates())
}

func TestConvertSameCurrencyIsExact(t *testing.T) {
	c := newDefaultConverter()
	for _, code := range models.Supported {
		for _, amount := range []float64{0, 0.1, 1.0 / 3.0, 123456.789} {
			assert.Equal(t, amount, c.Convert(amount, code, code))
		}
	}
}

func TestConvertRoundTrip(t *testing.T) {
	c := newDefaultConverter()
	for _, from := range models.Supported {
		for _, to := range models.Supported {
			for _, amount := range []float64{0, 1, 250, 999.99, 1e6} {
				back := c.Convert(c.Convert(amount, from, to), to, from)
				assert.InDelta(t, amount, back, 1e-9*(1+amount), "%s->%s", from, to)
			}
		}
	}
}

func TestConvertUsesRates(t *testing.T) {
	c := newDefaultConverter()
	assert.InDelta(t, 92.0, c.Convert(100, models.USD, models.EUR), 1e-9)
	assert.InDelta(t, 367.0, c.Convert(100, models.USD, models.AED), 1e-9)
	assert.InDelta(t, 100.0, c.Convert(367, models.AED, models.USD), 1e-9)
}

func TestConvertUnknownCurrencyFallsBackToRateOne(t *testing.T) {
	c := newDefaultConverter()
	assert.Equal(t, 50.0, c.Convert(50, models.Code("GBP"), models.USD))
	assert.InDelta(t, 46.0, c.Convert(50, models.Code("GBP"), models.EUR), 1e-9)
}

func TestDisplayRoundsToCents(t *testing.T) {
	c := newDefaultConverter()
	assert.Equal(t, "30.67", c.Display(33.333, models.EUR).StringFixed(2))
}

func TestParseRates(t *testing.T) {
	table, err := ParseRates([]string{"USD=1", " eur = 0.9 ", "AED=3.67"})
	require.NoError(t, err)
	assert.Equal(t, models.RateTable{models.USD: 1, models.EUR: 0.9, models.AED: 3.67}, table)

	_, err = ParseRates([]string{"EUR"})
	assert.Error(t, err)
	_, err = ParseRates([]string{"GBP=1.2"})
	assert.Error(t, err)
	_, err = ParseRates([]string{"EUR=-1"})
	assert.Error(t, err)
}

func TestLoadConverter(t *testing.T) {
	c, err := LoadConverter(context.Background(), models.USD, NewStaticSource(models.RateTable{models.EUR: 0.5}))
	require.NoError(t, err)
	assert.Equal(t, 1.0, c.Rates()[models.USD])
	assert.InDelta(t, 5.0, c.FromCanonical(10, models.EUR), 1e-9)
	assert.InDelta(t, 20.0, c.ToCanonical(10, models.EUR), 1e-9)

	_, err = LoadConverter(context.Background(), models.USD, NewStaticSource(models.RateTable{models.USD: 2}))
	assert.Error(t, err)
}

func TestDisplayCapsOverflow(t *testing.T) {
	c := newDefaultConverter()
	capped := decimal.NewFromFloat(math.MaxFloat64).Round(2)

	var got decimal.Decimal
	require.NotPanics(t, func() { got = c.Display(1e308, models.AED) })
	assert.True(t, got.Equal(capped), got.String())

	require.NotPanics(t, func() { got = c.Display(math.Inf(1), models.USD) })
	assert.True(t, got.Equal(capped))

	require.NotPanics(t, func() { got = c.Display(math.NaN(), models.EUR) })
	assert.True(t, got.IsZero())
}
