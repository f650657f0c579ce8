package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrInvalidNumericValue is returned when a value cannot be represented as a finite decimal.
var ErrInvalidNumericValue = errors.New("invalid numeric value")

// ToDecimal converts a number or numeric string into a high-precision decimal.
// Strings are parsed as numbers first. The decimal is built from the shortest canonical
// string form of the float, not from its binary value, so 0.1 becomes exactly 0.1.
// NaN, ±Inf and unparseable input fail with ErrInvalidNumericValue.
func ToDecimal(value any) (decimal.Decimal, error) {
	var f float64
	switch v := value.(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int32:
		f = float64(v)
	case int64:
		f = float64(v)
	case json.Number:
		return ToDecimal(string(v))
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return decimal.Zero, fmt.Errorf("%w: empty string", ErrInvalidNumericValue)
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidNumericValue, v)
		}
		f = parsed
	default:
		return decimal.Zero, fmt.Errorf("%w: unsupported type %T", ErrInvalidNumericValue, value)
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero, fmt.Errorf("%w: %v", ErrInvalidNumericValue, f)
	}

	d, err := decimal.NewFromString(strconv.FormatFloat(f, 'f', -1, 64))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %v", ErrInvalidNumericValue, err)
	}
	return d, nil
}

// DecimalToNumber widens a decimal, numeric string or number to float64.
// The conversion loses precision: use it for display and rough sums only,
// never for ledger-accurate accumulation. Unparseable input yields NaN.
func DecimalToNumber(value any) float64 {
	switch v := value.(type) {
	case decimal.Decimal:
		return v.InexactFloat64()
	case *decimal.Decimal:
		if v == nil {
			return math.NaN()
		}
		return v.InexactFloat64()
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case json.Number:
		return DecimalToNumber(string(v))
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}

// RoundToman rounds to whole Toman for display.
func RoundToman(d decimal.Decimal) float64 {
	return d.Round(0).InexactFloat64()
}
