package ratelimit

import "testing"

func TestAllowWithinCapacity(t *testing.T) {
	l := New()
	for i := 0; i < 5; i++ {
		if !l.Allow("AAPL", 5, 1) {
			t.Fatalf("request %d should be allowed", i)
		}
	}
	if l.Allow("AAPL", 5, 1) {
		t.Fatalf("expected bucket exhausted")
	}
}

func TestKeysIndependent(t *testing.T) {
	l := New()
	for i := 0; i < 3; i++ {
		l.Allow("AAPL", 3, 1)
	}
	if l.Allow("AAPL", 3, 1) {
		t.Fatalf("AAPL bucket should be empty")
	}
	if !l.Allow("MSFT", 3, 1) {
		t.Fatalf("MSFT bucket should be fresh")
	}
}
