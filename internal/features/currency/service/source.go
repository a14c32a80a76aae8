package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"budget-bubble-backend/internal/features/currency/models"
)

// RateSource feeds the converter's table once at startup.
type RateSource interface {
	Rates(ctx context.Context) (models.RateTable, error)
}

// StaticSource serves a table parsed from configuration.
type StaticSource struct {
	table models.RateTable
}

func NewStaticSource(table models.RateTable) *StaticSource {
	return &StaticSource{table: table}
}

func (s *StaticSource) Rates(_ context.Context) (models.RateTable, error) {
	out := make(models.RateTable, len(s.table))
	for code, rate := range s.table {
		out[code] = rate
	}
	return out, nil
}

// ParseRates reads CODE=rate pairs such as "EUR=0.92".
func ParseRates(pairs []string) (models.RateTable, error) {
	table := make(models.RateTable, len(pairs))
	for i, pair := range pairs {
		parts := strings.Split(strings.TrimSpace(pair), "=")
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid rate at index %d: %q (expected CODE=rate)", i, pair)
		}

		code, ok := models.ParseCode(parts[0])
		if !ok {
			return nil, fmt.Errorf("unsupported currency at index %d: %q", i, parts[0])
		}

		rate, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil || rate <= 0 {
			return nil, fmt.Errorf("invalid rate for %s: %q", code, parts[1])
		}
		table[code] = rate
	}
	return table, nil
}

// LoadConverter builds a converter from a source. The canonical currency
// always gets rate 1.
func LoadConverter(ctx context.Context, canonical models.Code, source RateSource) (*Converter, error) {
	if !canonical.IsSupported() {
		return nil, fmt.Errorf("unsupported canonical currency %q", canonical)
	}
	table, err := source.Rates(ctx)
	if err != nil {
		return nil, fmt.Errorf("load rates: %w", err)
	}
	if rate, ok := table[canonical]; ok && rate != 1 {
		return nil, fmt.Errorf("canonical currency %s must have rate 1, got %v", canonical, rate)
	}
	table[canonical] = 1
	return NewConverter(canonical, table), nil
}
