package ratelimit

import (
	"context"
	"math/rand"
	"testing"
	"time"
)

func TestWaitFirstActionIsImmediate(t *testing.T) {
	l := New(50*time.Millisecond, 100*time.Millisecond, rand.New(rand.NewSource(1)))

	start := time.Now()
	if err := l.Wait(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// lastAction starts at the zero time, so the first wait returns
	// without delay.
	if elapsed := time.Since(start); elapsed > 20*time.Millisecond {
		t.Errorf("first wait should be immediate, took %v", elapsed)
	}
}

func TestWaitEnforcesSpacing(t *testing.T) {
	l := New(30*time.Millisecond, 30*time.Millisecond, rand.New(rand.NewSource(1)))

	if err := l.Wait(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	start := time.Now()
	if err := l.Wait(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if elapsed := time.Since(start); elapsed < 25*time.Millisecond {
		t.Errorf("expected at least ~30ms spacing, got %v", elapsed)
	}
}

func TestWaitRespectsCancellation(t *testing.T) {
	l := New(time.Hour, time.Hour, rand.New(rand.NewSource(1)))

	if err := l.Wait(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if err := l.Wait(ctx); err != context.DeadlineExceeded {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestJitterStaysInRange(t *testing.T) {
	l := New(10*time.Millisecond, 40*time.Millisecond, rand.New(rand.NewSource(9)))

	for i := 0; i < 100; i++ {
		d := l.nextDelay()
		if d < 10*time.Millisecond || d >= 40*time.Millisecond {
			t.Fatalf("delay %v outside [10ms, 40ms)", d)
		}
	}
}
