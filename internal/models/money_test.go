package models

import (
	"strings"
	"testing"
	"time"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{"49.90", 4990},
		{"49.9", 4990},
		{"0", 0},
		{"0.005", 1},
		{"10.004", 1000},
		{" 12 ", 1200},
		{"99999999.99", MaxCents},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if err != nil {
			t.Errorf("ParseAmount(%q) error: %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseAmount(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestParseAmount_Rejects(t *testing.T) {
	for _, in := range []string{
		"", "-5", "-0.01", "-0.001", "-0.0049", "abc", "1,5", "100000000.00",
		"1e9", "1e-9", "1E2", "+5", ".5", "5.", "0x10", "NaN",
		strings.Repeat("9", 40), "0." + strings.Repeat("1", 40),
	} {
		if _, err := ParseAmount(in); err == nil {
			t.Errorf("ParseAmount(%q) expected error", in)
		}
	}
}

func TestParseAmount_NegativeSubCent(t *testing.T) {
	for _, in := range []string{"-0.001", "-0.004", "-0.0049"} {
		_, err := ParseAmount(in)
		if err == nil || err.Error() != "amount must be >= 0" {
			t.Errorf("ParseAmount(%q) err = %v, want sign error", in, err)
		}
	}
}

func TestParseAmount_ExponentIsCheap(t *testing.T) {
	start := time.Now()
	for _, in := range []string{"1e20000000", "1e-20000000", "9e999999999"} {
		if _, err := ParseAmount(in); err == nil {
			t.Errorf("ParseAmount(%q) expected error", in)
		}
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("rejecting exponent input took %v", elapsed)
	}
}

func TestFormatCents(t *testing.T) {
	if got := FormatCents(4990); got != "49.90" {
		t.Errorf("FormatCents(4990) = %q, want 49.90", got)
	}
	if got := FormatCents(0); got != "0.00" {
		t.Errorf("FormatCents(0) = %q, want 0.00", got)
	}
}
