package utils

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestNearlyEqualAmount_SymmetricBoundary(t *testing.T) {
	cases := []struct {
		a, b string
		want bool
	}{
		{"100.00", "100.00", true},
		{"100.00", "100.02", true},
		{"100.02", "100.00", true},
		{"100.00", "99.98", true},
		{"100.00", "100.021", false},
		{"100.00", "99.97", false},
	}
	for _, tc := range cases {
		a := decimal.RequireFromString(tc.a)
		b := decimal.RequireFromString(tc.b)
		if got := NearlyEqualAmount(a, b); got != tc.want {
			t.Fatalf("NearlyEqualAmount(%s, %s) = %v, want %v", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestPercentage(t *testing.T) {
	cases := []struct {
		amount, rate, want string
	}{
		{"1000", "8", "80"},
		{"950", "2", "19"},
		{"100", "0", "0"},
		{"333.33", "3", "9.9999"},
	}
	for _, tc := range cases {
		got := Percentage(decimal.RequireFromString(tc.amount), decimal.RequireFromString(tc.rate))
		if !got.Equal(decimal.RequireFromString(tc.want)) {
			t.Fatalf("Percentage(%s, %s) = %s, want %s", tc.amount, tc.rate, got, tc.want)
		}
	}
}

func TestParseDecimal(t *testing.T) {
	if _, err := ParseDecimal("not-a-number"); err == nil {
		t.Fatalf("expected error for invalid input")
	}
	d, err := ParseDecimal("12.3456")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !d.Equal(decimal.RequireFromString("12.3456")) {
		t.Fatalf("expected 12.3456, got %s", d)
	}
}
