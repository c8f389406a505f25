package statestore

import (
	"context"
	"time"
)

// RunEvictionSweeper periodically revisits every series and trims samples that have fallen
// out of TTL, as a defensive background pass alongside the inline eviction each Write already
// performs; per §4.3's "background sweeper removes entries whose event_time < latest_event_time
// - state_ttl". It returns when ctx is cancelled.
func (s *Store) RunEvictionSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *Store) sweep() {
	s.mu.RLock()
	targets := make([]*series, 0, len(s.seriesM))
	for _, sr := range s.seriesM {
		targets = append(targets, sr)
	}
	s.mu.RUnlock()

	for _, sr := range targets {
		sr.mu.Lock()
		sr.evictLocked()
		sr.mu.Unlock()
	}
}
