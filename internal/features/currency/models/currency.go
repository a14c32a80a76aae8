package models

import "strings"

// Code is an ISO currency code
type Code string

const (
	USD Code = "USD"
	EUR Code = "EUR"
	AED Code = "AED"
)

// Supported lists the currencies a profile may display or set goals in.
var Supported = []Code{USD, EUR, AED}

// RateTable maps a currency to its rate relative to the canonical currency.
type RateTable map[Code]float64

// DefaultRates is the built-in table with USD as the canonical currency.
func DefaultRates() RateTable {
	return RateTable{USD: 1, EUR: 0.92, AED: 3.67}
}

func (c Code) IsSupported() bool {
	for _, s := range Supported {
		if s == c {
			return true
		}
	}
	return false
}

// ParseCode normalizes user input and reports whether it is supported.
func ParseCode(raw string) (Code, bool) {
	c := Code(strings.ToUpper(strings.TrimSpace(raw)))
	return c, c.IsSupported()
}

func (c Code) String() string {
	return string(c)
}
