package outbox

import (
	"math/rand"
	"testing"
	"time"
)

func TestBackoff(t *testing.T) {
	t.Parallel()

	maxBackoff := 60 * time.Second
	cases := []struct {
		attempts int
		base     time.Duration
		want     time.Duration
	}{
		{attempts: 0, base: time.Second, want: 0},
		{attempts: 1, base: time.Second, want: 1 * time.Second},
		{attempts: 3, base: time.Second, want: 4 * time.Second},
		{attempts: 2, base: 500 * time.Millisecond, want: 1 * time.Second},
		{attempts: 7, base: time.Second, want: 60 * time.Second},
		{attempts: 80, base: time.Second, want: 60 * time.Second},
		{attempts: 3, base: 0, want: 0},
	}

	for _, tc := range cases {
		if got := backoff(tc.attempts, tc.base, maxBackoff); got != tc.want {
			t.Fatalf("attempts=%d base=%s: want %s got %s", tc.attempts, tc.base, tc.want, got)
		}
	}
}

func TestJitterDeterministic(t *testing.T) {
	t.Parallel()

	maxJitter := 200 * time.Millisecond
	got := jitter(rand.New(rand.NewSource(1)), maxJitter)
	if got < 0 || got > maxJitter {
		t.Fatalf("jitter out of range: %s", got)
	}
	if got2 := jitter(rand.New(rand.NewSource(1)), maxJitter); got2 != got {
		t.Fatalf("expected deterministic jitter; got %s and %s", got, got2)
	}
	if jitter(nil, maxJitter) != 0 {
		t.Fatal("nil rand must not jitter")
	}
}
