package domain

import "testing"

func TestCentsFromFloat(t *testing.T) {
	cases := []struct {
		in   float64
		want Cents
	}{
		{5.99, 599},
		{0, 0},
		{50, 5000},
		{17.97, 1797},
		{0.005, 1},
	}
	for _, tc := range cases {
		if got := CentsFromFloat(tc.in); got != tc.want {
			t.Errorf("CentsFromFloat(%v) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestCentsString(t *testing.T) {
	cases := []struct {
		in   Cents
		want string
	}{
		{1797, "17.97"},
		{599, "5.99"},
		{5000, "50.00"},
		{5, "0.05"},
		{0, "0.00"},
		{-1250, "-12.50"},
	}
	for _, tc := range cases {
		if got := tc.in.String(); got != tc.want {
			t.Errorf("Cents(%d).String() = %q, want %q", tc.in, got, tc.want)
		}
	}
}
