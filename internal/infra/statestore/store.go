// Package statestore implements the concurrent, per-(instrument_id, feature_id) time series
// the feature pipeline reads from and writes to on every tick, per spec §4.3.
package statestore

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
)

// Sample is one (event_time, value) observation in a series. Raw event fields and node
// outputs share this representation; decimal precision is preserved through the store so
// that downstream notional/VWAP computations never lose it, per §3's numeric policy.
type Sample struct {
	EventTime time.Time
	Value     decimal.Decimal
}

type seriesKey struct {
	instrumentID string
	featureID    string
}

// series is a single (instrument_id, feature_id) ring: samples sorted ascending by
// event_time, trimmed to the configured TTL relative to the series' own latest event_time.
// Reads take the read lock only; writes take the write lock for the duration of the
// append+evict, per §4.3/§5's "short-lived write lock, lock-free reads" requirement.
type series struct {
	mu                sync.RWMutex
	samples           []Sample
	ttl               time.Duration
	latestEventTime   time.Time
	droppedOutOfOrder atomic.Uint64
}

// Store is the shared mutable structure of the pipeline: every node executor and the raw
// ingestion path read and write through it. The Instrument Registry and DAG are immutable
// after startup; this is the only structure that mutates during a run, per §5.
type Store struct {
	mu         sync.RWMutex // guards seriesM only; each series has its own lock for sample access
	seriesM    map[seriesKey]*series
	defaultTTL time.Duration
}

// New constructs an empty Store. defaultTTL is the eviction window of every series that
// SetTTL has not overridden; the Resolver's build-time validation (§3) guarantees no
// node ever needs a longer lookback than the pipeline's configured state_ttl.
func New(defaultTTL time.Duration) *Store {
	return &Store{
		seriesM:    make(map[seriesKey]*series),
		defaultTTL: defaultTTL,
	}
}

func (s *Store) getOrCreate(key seriesKey) *series {
	s.mu.RLock()
	sr, ok := s.seriesM[key]
	s.mu.RUnlock()
	if ok {
		return sr
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sr, ok = s.seriesM[key]; ok {
		return sr
	}
	sr = &series{ttl: s.defaultTTL}
	s.seriesM[key] = sr
	return sr
}

// Write appends a sample to the (instrumentID, featureID) series. It reports false and
// increments the series' dropped-out-of-order counter when eventTime is strictly earlier
// than the series' current latest event_time, per §5's monotonicity guarantee.
func (s *Store) Write(instrumentID, featureID string, eventTime time.Time, value decimal.Decimal) bool {
	sr := s.getOrCreate(seriesKey{instrumentID, featureID})

	sr.mu.Lock()
	defer sr.mu.Unlock()

	if len(sr.samples) > 0 && eventTime.Before(sr.latestEventTime) {
		sr.droppedOutOfOrder.Add(1)
		return false
	}

	sr.samples = append(sr.samples, Sample{EventTime: eventTime, Value: value})
	sr.latestEventTime = eventTime
	sr.evictLocked()
	return true
}

// evictLocked drops every leading sample older than the series' TTL relative to its
// latest event_time. Called under sr.mu.
func (sr *series) evictLocked() {
	if sr.ttl <= 0 {
		return
	}
	cutoff := sr.latestEventTime.Add(-sr.ttl)
	idx := sort.Search(len(sr.samples), func(i int) bool {
		return !sr.samples[i].EventTime.Before(cutoff)
	})
	if idx == 0 {
		return
	}
	remaining := len(sr.samples) - idx
	copy(sr.samples, sr.samples[idx:])
	sr.samples = sr.samples[:remaining]
}

// SetTTL overrides one series' eviction window, replacing the store's default TTL for that
// (instrument, feature) only.
func (s *Store) SetTTL(instrumentID, featureID string, ttl time.Duration) {
	sr := s.getOrCreate(seriesKey{instrumentID, featureID})
	sr.mu.Lock()
	sr.ttl = ttl
	sr.mu.Unlock()
}

// Window returns every sample with event_time in (asOf-window, asOf], oldest-first, per §4.3.
func (s *Store) Window(instrumentID, featureID string, asOf time.Time, window time.Duration) []Sample {
	sr := s.lookup(seriesKey{instrumentID, featureID})
	if sr == nil {
		return nil
	}
	lower := asOf.Add(-window)

	sr.mu.RLock()
	defer sr.mu.RUnlock()

	start := sort.Search(len(sr.samples), func(i int) bool {
		return sr.samples[i].EventTime.After(lower)
	})
	end := sort.Search(len(sr.samples), func(i int) bool {
		return sr.samples[i].EventTime.After(asOf)
	})
	if start >= end {
		return nil
	}
	out := make([]Sample, end-start)
	copy(out, sr.samples[start:end])
	return out
}

// Interval returns the most recent count samples with event_time <= asOf, oldest-first,
// per §4.3.
func (s *Store) Interval(instrumentID, featureID string, asOf time.Time, count int) []Sample {
	sr := s.lookup(seriesKey{instrumentID, featureID})
	if sr == nil || count <= 0 {
		return nil
	}

	sr.mu.RLock()
	defer sr.mu.RUnlock()

	end := sort.Search(len(sr.samples), func(i int) bool {
		return sr.samples[i].EventTime.After(asOf)
	})
	start := end - count
	if start < 0 {
		start = 0
	}
	if start >= end {
		return nil
	}
	out := make([]Sample, end-start)
	copy(out, sr.samples[start:end])
	return out
}

// Latest returns the most recent sample at or before asOf, if any.
func (s *Store) Latest(instrumentID, featureID string, asOf time.Time) (Sample, bool) {
	samples := s.Interval(instrumentID, featureID, asOf, 1)
	if len(samples) == 0 {
		return Sample{}, false
	}
	return samples[len(samples)-1], true
}

func (s *Store) lookup(key seriesKey) *series {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.seriesM[key]
}

// DroppedOutOfOrder returns the number of writes rejected for violating monotonicity on the
// given series, for telemetry per §5 expansion.
func (s *Store) DroppedOutOfOrder(instrumentID, featureID string) uint64 {
	sr := s.lookup(seriesKey{instrumentID, featureID})
	if sr == nil {
		return 0
	}
	return sr.droppedOutOfOrder.Load()
}

// Len reports the current sample count for one series, for tests and telemetry.
func (s *Store) Len(instrumentID, featureID string) int {
	sr := s.lookup(seriesKey{instrumentID, featureID})
	if sr == nil {
		return 0
	}
	sr.mu.RLock()
	defer sr.mu.RUnlock()
	return len(sr.samples)
}

// SeriesCount returns the number of distinct (instrument_id, feature_id) series currently
// tracked, for telemetry.
func (s *Store) SeriesCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.seriesM)
}
