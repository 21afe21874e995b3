package panel

import (
	"testing"
	"time"
)

func TestRateLimiter_BurstThenRefill(t *testing.T) {
	clock := time.Unix(1000, 0)
	rl := newRateLimiter(3, 2)
	rl.now = func() time.Time { return clock }
	rl.last = clock

	for i := 0; i < 3; i++ {
		if !rl.Allow() {
			t.Fatalf("request %d denied within burst", i)
		}
	}
	if rl.Allow() {
		t.Fatal("request allowed past burst")
	}

	clock = clock.Add(500 * time.Millisecond)
	if !rl.Allow() {
		t.Fatal("expected one token after 500ms at 2/s")
	}
	if rl.Allow() {
		t.Fatal("only one token should have refilled")
	}

	clock = clock.Add(time.Hour)
	for i := 0; i < 3; i++ {
		if !rl.Allow() {
			t.Fatalf("refill should cap at burst, denied at %d", i)
		}
	}
	if rl.Allow() {
		t.Fatal("tokens exceeded burst after long idle")
	}
}

func TestRateLimiter_Defaults(t *testing.T) {
	rl := newRateLimiter(0, 0)
	if rl.max != 20 || rl.rate != 10 {
		t.Errorf("defaults = burst %v rate %v", rl.max, rl.rate)
	}
}
