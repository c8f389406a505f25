package statestore

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func dec(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }

func at(seconds int) time.Time {
	return time.Date(2026, 1, 1, 0, 0, seconds, 0, time.UTC)
}

func TestWriteAndWindow(t *testing.T) {
	s := New(time.Hour)
	for i := 0; i <= 10; i++ {
		if !s.Write("btc", "trade_price", at(i), dec(float64(i))) {
			t.Fatalf("Write(%d) rejected", i)
		}
	}
	got := s.Window("btc", "trade_price", at(10), 5*time.Second)
	if len(got) != 5 {
		t.Fatalf("expected 5 samples in (5,10], got %d", len(got))
	}
	if got[0].EventTime != at(6) {
		t.Errorf("expected window to start at t=6 (exclusive lower bound), got %v", got[0].EventTime)
	}
	if got[len(got)-1].EventTime != at(10) {
		t.Errorf("expected window to end at t=10 (inclusive), got %v", got[len(got)-1].EventTime)
	}
}

func TestInterval(t *testing.T) {
	s := New(time.Hour)
	for i := 0; i < 5; i++ {
		s.Write("btc", "sma_20", at(i), dec(float64(i)))
	}
	got := s.Interval("btc", "sma_20", at(4), 3)
	if len(got) != 3 {
		t.Fatalf("expected 3 samples, got %d", len(got))
	}
	for i, want := range []int{2, 3, 4} {
		if !got[i].Value.Equal(dec(float64(want))) {
			t.Errorf("got[%d] = %v, want %d", i, got[i].Value, want)
		}
	}
}

func TestIntervalFewerSamplesThanRequested(t *testing.T) {
	s := New(time.Hour)
	s.Write("btc", "sma_20", at(0), dec(1))
	got := s.Interval("btc", "sma_20", at(0), 20)
	if len(got) != 1 {
		t.Fatalf("expected 1 sample when fewer than requested exist, got %d", len(got))
	}
}

func TestWriteDropsOutOfOrder(t *testing.T) {
	s := New(time.Hour)
	s.Write("btc", "trade_price", at(10), dec(10))
	if s.Write("btc", "trade_price", at(5), dec(5)) {
		t.Fatal("expected out-of-order write to be rejected")
	}
	if got := s.DroppedOutOfOrder("btc", "trade_price"); got != 1 {
		t.Errorf("DroppedOutOfOrder() = %d, want 1", got)
	}
	if s.Len("btc", "trade_price") != 1 {
		t.Errorf("expected out-of-order write to leave series untouched, got len=%d", s.Len("btc", "trade_price"))
	}
}

func TestWriteEvictsPastTTL(t *testing.T) {
	s := New(5 * time.Second)
	for i := 0; i <= 20; i++ {
		s.Write("btc", "trade_price", at(i), dec(float64(i)))
	}
	// latest event time is t=20; ttl=5s, so only [15,20] should remain.
	if got := s.Len("btc", "trade_price"); got != 6 {
		t.Errorf("Len() = %d, want 6 after TTL eviction", got)
	}
}

func TestSetTTLOverridesDefault(t *testing.T) {
	s := New(time.Hour)
	s.SetTTL("btc", "sma_20", 2*time.Second)
	for i := 0; i <= 10; i++ {
		s.Write("btc", "sma_20", at(i), dec(float64(i)))
	}
	if got := s.Len("btc", "sma_20"); got != 3 {
		t.Errorf("Len() = %d, want 3 after overridden TTL eviction", got)
	}
}

func TestLatest(t *testing.T) {
	s := New(time.Hour)
	s.Write("btc", "trade_price", at(1), dec(1))
	s.Write("btc", "trade_price", at(2), dec(2))
	got, ok := s.Latest("btc", "trade_price", at(5))
	if !ok {
		t.Fatal("expected a latest sample")
	}
	if !got.Value.Equal(dec(2)) {
		t.Errorf("Latest() = %v, want 2", got.Value)
	}
	if _, ok := s.Latest("eth", "trade_price", at(5)); ok {
		t.Error("expected no latest sample for unknown series")
	}
}

func TestSeriesAreIndependent(t *testing.T) {
	s := New(time.Hour)
	s.Write("btc", "trade_price", at(1), dec(100))
	s.Write("eth", "trade_price", at(1), dec(50))
	if s.SeriesCount() != 2 {
		t.Errorf("SeriesCount() = %d, want 2", s.SeriesCount())
	}
	got, _ := s.Latest("btc", "trade_price", at(1))
	if !got.Value.Equal(dec(100)) {
		t.Errorf("btc series polluted by eth write: %v", got.Value)
	}
}

func TestRunEvictionSweeperStopsOnCancel(t *testing.T) {
	s := New(time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.RunEvictionSweeper(ctx, time.Millisecond)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunEvictionSweeper did not return after context cancellation")
	}
}
