package core

import "testing"

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out float64
		ok  bool
	}{
		{"1", 1, true},
		{"200", 200, true},
		{"1.23", 1.23, true},
		{"1,23", 1.23, true},
		{"1.234,56", 1234.56, true},
		{"1,234.56", 1234.56, true},
		{" R$ 99,90 ", 99.9, true},
		{"0", 0, true},
		{"-15.5", -15.5, true},
		{"abc", 0, false},
		{"1.2.3", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			if err != nil || got != tc.out {
				t.Fatalf("%q expected %v, got %v (err=%v)", tc.in, tc.out, got, err)
			}
		} else if err == nil {
			t.Fatalf("%q expected error", tc.in)
		}
	}
}

func TestFormatBRL(t *testing.T) {
	cases := []struct {
		in  float64
		out string
	}{
		{0, "R$ 0,00"},
		{5, "R$ 5,00"},
		{4050, "R$ 4.050,00"},
		{1234567.891, "R$ 1.234.567,89"},
		{-750.5, "-R$ 750,50"},
		{999.995, "R$ 1.000,00"},
	}
	for _, tc := range cases {
		if got := FormatBRL(tc.in); got != tc.out {
			t.Fatalf("FormatBRL(%v) = %q, want %q", tc.in, got, tc.out)
		}
	}
}

func TestRoundCurrency(t *testing.T) {
	if got := RoundCurrency(2.675); got != 2.68 {
		t.Fatalf("RoundCurrency(2.675) = %v", got)
	}
	if got := RoundCurrency(-1.005); got != -1.01 {
		t.Fatalf("RoundCurrency(-1.005) = %v", got)
	}
}
