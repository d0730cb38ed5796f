package repository

import "testing"

func TestNormalizeTimeframe(t *testing.T) {
	cases := []struct {
		in   string
		want Timeframe
	}{
		{"", TF1d},
		{"1m", TF1m},
		{"1h", TF1h},
		{"1d", TF1d},
		{"5m", TF1d},
		{"bogus", TF1d},
	}
	for _, c := range cases {
		if got := NormalizeTimeframe(c.in); got != c.want {
			t.Fatalf("NormalizeTimeframe(%q) = %s, want %s", c.in, got, c.want)
		}
	}
}

func TestIsValidTimeframe(t *testing.T) {
	if !IsValidTimeframe(TF1h) {
		t.Fatalf("1h should be valid")
	}
	if IsValidTimeframe(Timeframe("2h")) {
		t.Fatalf("2h should be invalid")
	}
}
