package parser

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var ErrInvalidAmount = errors.New("invalid amount")

// amountShape accepts plain digits or properly grouped thousands, with an
// optional fractional part.
var amountShape = regexp.MustCompile(`^(?:\d{1,3}(?:,\d{3})+|\d+)(?:\.\d+)?$`)

var maxMinor = decimal.NewFromInt(math.MaxInt64)

// ParseAmount converts a message amount such as "1,234.56" into minor units.
// Fractions beyond two places are rounded half-up. Anything that is not a
// non-negative decimal number is rejected.
func ParseAmount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if !amountShape.MatchString(s) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}

	d, err := decimal.NewFromString(strings.ReplaceAll(s, ",", ""))
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %v", ErrInvalidAmount, s, err)
	}

	minor := d.Shift(2).Round(0)
	if minor.GreaterThan(maxMinor) {
		return 0, fmt.Errorf("%w: %q overflows", ErrInvalidAmount, s)
	}
	return minor.IntPart(), nil
}

// FormatMinor renders minor units as a fixed two-place decimal string.
func FormatMinor(minor int64) string {
	return decimal.New(minor, -2).StringFixed(2)
}
