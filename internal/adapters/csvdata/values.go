package csvdata

import (
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// missingSentinel is what the broker export writes for an unpublished value.
const missingSentinel = -9999999.0

var nan = math.NaN()

// parseFloat reads a numeric cell; empty, "nan" or malformed cells are NaN.
func parseFloat(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nan
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nan
	}
	return f
}

func scrub(f float64) float64 {
	if f == missingSentinel {
		return nan
	}
	return f
}

func parseDecimal(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(strings.TrimSpace(s))
}

// priceOrZero reads a premium. Missing prices become zero, which the chain
// treats as untradable.
func priceOrZero(s string) decimal.Decimal {
	f := scrub(parseFloat(s))
	if math.IsNaN(f) || f < 0 {
		return decimal.Zero
	}
	d, err := parseDecimal(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
