package scheduler

import (
	"testing"
	"time"
)

func TestNextTickAlignsToEpochBoundary(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 7, 250_000_000, time.UTC)
	got := nextTick(now, 5*time.Second)
	want := time.Date(2026, 1, 1, 0, 0, 10, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("nextTick = %v, want %v", got, want)
	}
}

func TestNextTickOnExactBoundaryAdvances(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 10, 0, time.UTC)
	got := nextTick(now, 5*time.Second)
	want := time.Date(2026, 1, 1, 0, 0, 15, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("nextTick = %v, want %v", got, want)
	}
}

func TestNextTickDeterministicAcrossStartTimes(t *testing.T) {
	a := nextTick(time.Date(2026, 1, 1, 0, 0, 1, 0, time.UTC), 5*time.Second)
	b := nextTick(time.Date(2026, 1, 1, 0, 0, 4, 999_000_000, time.UTC), 5*time.Second)
	if !a.Equal(b) {
		t.Fatalf("expected both starts to align to the same boundary, got %v and %v", a, b)
	}
}
