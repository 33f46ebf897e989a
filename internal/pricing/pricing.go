package pricing

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
)

// numericInputRe matches what the cost, shipping and margin fields accept while
// the user is typing: optional digits, at most one dot, optional digits.
var numericInputRe = regexp.MustCompile(`^\d*\.?\d*$`)

// Inputs holds the free-text pricing fields as the user entered them.
type Inputs struct {
	Cost     string `json:"costPrice"`
	Shipping string `json:"shippingFee"`
	Margin   string `json:"margin"`
}

// OptimalPrice returns cost + shipping + margin.
func (in Inputs) OptimalPrice() float64 {
	return Optimal(in.Cost, in.Shipping, in.Margin)
}

// IsNumericInput reports whether s is an acceptable value for a pricing field.
// The empty string and a trailing dot ("12.") are accepted.
func IsNumericInput(s string) bool {
	return numericInputRe.MatchString(s)
}

// ParseAmount parses s leniently. Anything that is not a finite, non-negative
// number is treated as 0.
func ParseAmount(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}

// Optimal combines the three pricing fields into a sale price. There is no
// upper bound on the result.
func Optimal(cost, shipping, margin string) float64 {
	return ParseAmount(cost) + ParseAmount(shipping) + ParseAmount(margin)
}

// FormatWon formats a price with thousands separators and the won suffix,
// e.g. 18000 -> "18,000원". Fractions are kept up to two decimals.
func FormatWon(v float64) string {
	if v <= 0 {
		return "0원"
	}
	return humanize.CommafWithDigits(v, 2) + "원"
}
