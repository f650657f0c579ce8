package domain

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/shopspring/decimal"
)

func TestToDecimal(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  string
	}{
		{"integer", 100, "100"},
		{"float", 0.1, "0.1"},
		{"float sum keeps float repr", 0.1 + 0.2, "0.30000000000000004"},
		{"numeric string", "500000", "500000"},
		{"string with spaces", "  12.5 ", "12.5"},
		{"negative", -3.25, "-3.25"},
		{"exponent string", "1e3", "1000"},
		{"json number", json.Number("42.42"), "42.42"},
		{"int64", int64(9007199254740991), "9007199254740991"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToDecimal(tt.input)
			if err != nil {
				t.Fatalf("ToDecimal(%v) unexpected error: %v", tt.input, err)
			}
			want := decimal.RequireFromString(tt.want)
			if !got.Equal(want) {
				t.Errorf("ToDecimal(%v) = %s, want %s", tt.input, got, want)
			}
		})
	}
}

func TestToDecimalInvalid(t *testing.T) {
	tests := []struct {
		name  string
		input any
	}{
		{"NaN", math.NaN()},
		{"positive infinity", math.Inf(1)},
		{"negative infinity", math.Inf(-1)},
		{"not a number", "not-a-number"},
		{"NaN string", "NaN"},
		{"Infinity string", "Infinity"},
		{"empty string", ""},
		{"unsupported type", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ToDecimal(tt.input)
			if !errors.Is(err, ErrInvalidNumericValue) {
				t.Errorf("ToDecimal(%v) error = %v, want ErrInvalidNumericValue", tt.input, err)
			}
		})
	}
}

func TestToDecimalRoundTrip(t *testing.T) {
	d, err := ToDecimal(100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := DecimalToNumber(d); got != 100 {
		t.Errorf("DecimalToNumber(ToDecimal(100)) = %v, want 100", got)
	}
}

func TestDecimalToNumber(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  float64
	}{
		{"decimal", decimal.RequireFromString("1234.5"), 1234.5},
		{"string", "99.25", 99.25},
		{"number", 7.0, 7},
		{"int", 3, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DecimalToNumber(tt.input); got != tt.want {
				t.Errorf("DecimalToNumber(%v) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}

	if got := DecimalToNumber("abc"); !math.IsNaN(got) {
		t.Errorf("DecimalToNumber(\"abc\") = %v, want NaN", got)
	}
}

func TestRoundToman(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"500000", 500000},
		{"499999.5", 500000},
		{"12.4", 12},
		{"-0.4", 0},
	}
	for _, tt := range tests {
		if got := RoundToman(decimal.RequireFromString(tt.in)); got != tt.want {
			t.Errorf("RoundToman(%s) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
