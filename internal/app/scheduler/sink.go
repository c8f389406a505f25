package scheduler

import (
	"context"

	"github.com/coachpo/meltica/internal/domain/model"
)

// Sink is the bounded output queue of Insight records from spec §6: "the core exposes a
// bounded output queue of Insight records... when full, the scheduler blocks until the
// consumer catches up." It is a plain buffered channel, matching the teacher's own
// bounded-channel-as-backpressure idiom (internal/pool.BoundedPool's semaphore) rather than
// a richer queue abstraction — the contract here is exactly "bounded, blocking, FIFO".
type Sink struct {
	ch chan model.Insight
}

// NewSink constructs a Sink with the given queue capacity.
func NewSink(capacity int) *Sink {
	if capacity <= 0 {
		capacity = 1
	}
	return &Sink{ch: make(chan model.Insight, capacity)}
}

// Publish enqueues an insight, blocking while the queue is full until the consumer drains it
// or ctx is cancelled. A cancelled ctx is the only way Publish returns without delivering,
// per §7's "SinkBackpressure... never raised to the caller" — callers observe blocking, not
// an error, except on shutdown.
func (s *Sink) Publish(ctx context.Context, insight model.Insight) error {
	select {
	case s.ch <- insight:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Depth reports the current queue occupancy, for telemetry (SinkBackpressure metrics, §7).
func (s *Sink) Depth() int {
	return len(s.ch)
}

// Capacity reports the configured queue capacity.
func (s *Sink) Capacity() int {
	return cap(s.ch)
}

// Consume returns the receive-only channel downstream consumers drain, per §6's "Consumers
// (persistence writers, strategy modules) drain it."
func (s *Sink) Consume() <-chan model.Insight {
	return s.ch
}

// Close closes the underlying channel once the producer side is done. Consumers observe the
// channel close after draining any buffered insights.
func (s *Sink) Close() {
	close(s.ch)
}
