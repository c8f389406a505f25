package scheduler

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics instruments the Scheduler the way the teacher's dispatcher instruments fan-out
// (core/dispatcher/fanout.go's FanoutMetrics): per-tick duration, per-level fan-out size, and
// the fault/backpressure counters spec §5/§7 call out as telemetry-only signals rather than
// tick-aborting errors.
type Metrics struct {
	tickDuration   metric.Float64Histogram
	levelSize      metric.Int64Histogram
	sinkDepth      metric.Int64Gauge
	nodeFaults     metric.Int64Counter
	droppedEvents  metric.Int64Counter
	evictionPasses metric.Int64Counter
	pipelineAttr   attribute.KeyValue
}

// NewMetrics builds a Metrics instrumentation set from meter, labeling every instrument with
// pipelineID so a single meter can serve multiple concurrent pipelines.
func NewMetrics(meter metric.Meter, pipelineID string) (*Metrics, error) {
	m := &Metrics{pipelineAttr: attribute.String("pipeline.id", pipelineID)}

	var err error
	if m.tickDuration, err = meter.Float64Histogram(
		"insights.tick.duration",
		metric.WithDescription("wall-clock duration of one scheduler tick"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	if m.levelSize, err = meter.Int64Histogram(
		"insights.tick.level_size",
		metric.WithDescription("number of nodes fanned out in one DAG level"),
	); err != nil {
		return nil, err
	}
	if m.sinkDepth, err = meter.Int64Gauge(
		"insights.sink.depth",
		metric.WithDescription("current occupancy of the bounded insight sink queue"),
	); err != nil {
		return nil, err
	}
	if m.nodeFaults, err = meter.Int64Counter(
		"insights.node.faults",
		metric.WithDescription("node executor panics/errors absorbed without aborting the tick"),
	); err != nil {
		return nil, err
	}
	if m.droppedEvents, err = meter.Int64Counter(
		"insights.ingress.dropped_out_of_order",
		metric.WithDescription("raw events rejected for violating per-series event_time monotonicity"),
	); err != nil {
		return nil, err
	}
	if m.evictionPasses, err = meter.Int64Counter(
		"insights.statestore.eviction_passes",
		metric.WithDescription("background TTL eviction sweeps performed"),
	); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Metrics) observeTick(ctx context.Context, seconds float64) {
	if m == nil {
		return
	}
	m.tickDuration.Record(ctx, seconds, metric.WithAttributes(m.pipelineAttr))
}

func (m *Metrics) observeLevel(ctx context.Context, size int) {
	if m == nil {
		return
	}
	m.levelSize.Record(ctx, int64(size), metric.WithAttributes(m.pipelineAttr))
}

func (m *Metrics) observeSinkDepth(ctx context.Context, depth int) {
	if m == nil {
		return
	}
	m.sinkDepth.Record(ctx, int64(depth), metric.WithAttributes(m.pipelineAttr))
}

func (m *Metrics) incNodeFault(ctx context.Context, nodeID string) {
	if m == nil {
		return
	}
	m.nodeFaults.Add(ctx, 1, metric.WithAttributes(m.pipelineAttr, attribute.String("node.id", nodeID)))
}

func (m *Metrics) incDroppedEvent(ctx context.Context, instrumentID string) {
	if m == nil {
		return
	}
	m.droppedEvents.Add(ctx, 1, metric.WithAttributes(m.pipelineAttr, attribute.String("instrument.id", instrumentID)))
}

func (m *Metrics) incEvictionPass(ctx context.Context) {
	if m == nil {
		return
	}
	m.evictionPasses.Add(ctx, 1, metric.WithAttributes(m.pipelineAttr))
}
