package scheduler

import (
	"context"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/coachpo/meltica/internal/domain/feature"
	"github.com/coachpo/meltica/internal/domain/model"
)

// Driver is the Tick Clock & Scheduler component from spec §4.4: a single-threaded tick
// driver that fires at nextTick's epoch-aligned cadence, fans each DAG level out across a
// worker pool when the pipeline is configured for parallel evaluation, and gates sink
// emission behind a warmup period while state writes continue every tick.
//
// Warmup convention: tick_count counts the current tick inclusively (the first tick run is
// tick_count=1); the gate opens once tick_count >= WarmupSteps, matching §4.4's literal "at
// tick_count == warmup_steps the gate opens" and spec §8 scenario 1 (SMA emits at tick 5 of
// a warmup_steps=5 pipeline). Scenario 6's prose ("ticks 1,2,3 update only; tick 4 emits")
// restates the same rule off by one; the operational definition in the component's own
// prose is followed here since it is the more precise of the two.
type Driver struct {
	PipelineID  string
	DAG         *feature.DAG
	Store       SeriesStore
	Sink        *Sink
	Metrics     *Metrics
	MinInterval time.Duration
	WarmupSteps uint64
	Parallel    bool
	MaxWorkers  int

	tickCount uint64
}

// NewDriver constructs a Driver over an already-planned DAG.
func NewDriver(pipelineID string, dag *feature.DAG, store SeriesStore, sink *Sink, metrics *Metrics, minInterval time.Duration, warmupSteps uint64, parallel bool) *Driver {
	return &Driver{
		PipelineID:  pipelineID,
		DAG:         dag,
		Store:       store,
		Sink:        sink,
		Metrics:     metrics,
		MinInterval: minInterval,
		WarmupSteps: warmupSteps,
		Parallel:    parallel,
		MaxWorkers:  runtime.GOMAXPROCS(0),
	}
}

// Run drives ticks until ctx is cancelled. A cancellation observed mid-tick abandons that
// tick atomically per §5: no partial level commit and no sink emission for the abandoned
// tick, and pending (not yet started) ticks are simply never scheduled.
func (d *Driver) Run(ctx context.Context) error {
	for {
		next := nextTick(time.Now(), d.MinInterval)
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		if err := d.runTick(ctx, next); err != nil {
			return err
		}
	}
}

// runTick evaluates every DAG level in order for one tick_time, committing each level's
// outputs to the State Store before the next level's nodes read them (§5's "outputs become
// visible to later levels only after their producing level completes"), then publishes the
// tick's outputs to the sink once the warmup gate is open.
func (d *Driver) runTick(ctx context.Context, tickTime time.Time) error {
	start := time.Now()
	d.tickCount++
	emit := d.tickCount >= d.WarmupSteps

	committed := make(map[feature.NodeID]Result, len(d.DAG.Nodes))
	for _, level := range d.DAG.Levels {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		results := d.evalLevel(ctx, level, tickTime)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		d.commitLevel(level, results, tickTime)
		for id, res := range results {
			committed[id] = res
		}
		if d.Metrics != nil {
			d.Metrics.observeLevel(ctx, len(level))
		}
	}

	if emit {
		if err := d.publish(ctx, committed, tickTime); err != nil {
			return err
		}
	}

	if d.Metrics != nil {
		d.Metrics.observeTick(ctx, time.Since(start).Seconds())
		if d.Sink != nil {
			d.Metrics.observeSinkDepth(ctx, d.Sink.Depth())
		}
	}
	return nil
}

// evalLevel dispatches every node in one DAG level, sequentially or fanned out across a
// bounded worker pool per Parallel, per §4.4's "if parallel = true, each level... fans its
// nodes out across a worker pool." Within a level, evaluation order is unspecified and
// output is unaffected by interleaving since every node writes to a distinct
// (instrument, feature_id) key, per §9's determinism note.
func (d *Driver) evalLevel(ctx context.Context, level []feature.NodeID, tickTime time.Time) map[feature.NodeID]Result {
	results := make(map[feature.NodeID]Result, len(level))
	if !d.Parallel || len(level) <= 1 {
		for _, id := range level {
			if ctx.Err() != nil {
				return results
			}
			if res, ok := d.evalNode(ctx, id, tickTime); ok {
				results[id] = res
			}
		}
		return results
	}

	var mu sync.Mutex
	p := pool.New().WithMaxGoroutines(workerLimit(d.MaxWorkers, len(level)))
	for _, id := range level {
		nodeID := id
		p.Go(func() {
			if ctx.Err() != nil {
				return
			}
			res, ok := d.evalNode(ctx, nodeID, tickTime)
			if !ok {
				return
			}
			mu.Lock()
			results[nodeID] = res
			mu.Unlock()
		})
	}
	p.Wait()
	return results
}

func workerLimit(max, n int) int {
	if max <= 0 {
		max = runtime.GOMAXPROCS(0)
	}
	if n < max {
		return n
	}
	return max
}

// evalNode dispatches one node, recovering from a panic so that a single faulty node cannot
// abort the tick: its outputs for this tick are dropped and a fault counter increments,
// subsequent ticks proceed normally, per §7's "any uncaught runtime panic in a node aborts
// only that node's outputs for the current tick."
func (d *Driver) evalNode(ctx context.Context, id feature.NodeID, tickTime time.Time) (res Result, ok bool) {
	node := d.DAG.Nodes[id]
	if node == nil {
		return nil, false
	}
	defer func() {
		if r := recover(); r != nil {
			res, ok = nil, false
			if d.Metrics != nil {
				d.Metrics.incNodeFault(ctx, string(id))
			}
		}
	}()
	return Dispatch(d.DAG, node, d.Store, tickTime), true
}

// commitLevel writes one level's computed outputs to the State Store, keyed by each
// producing node's own instrument, before the next level runs.
func (d *Driver) commitLevel(level []feature.NodeID, results map[feature.NodeID]Result, tickTime time.Time) {
	for _, id := range level {
		res, ok := results[id]
		if !ok {
			continue
		}
		node := d.DAG.Nodes[id]
		for out, value := range res {
			d.Store.Write(node.Instrument, out, tickTime, value)
		}
	}
}

// publish emits one tick's committed outputs to the sink in deterministic (node id, output
// name) order, so that two runs over the same event log produce byte-identical sequences
// per series regardless of map iteration order, per §8's determinism property. Cross-series
// order is unspecified per §5, so a single deterministic total order satisfies it.
func (d *Driver) publish(ctx context.Context, committed map[feature.NodeID]Result, tickTime time.Time) error {
	if d.Sink == nil {
		return nil
	}
	ids := make([]string, 0, len(committed))
	for id := range committed {
		ids = append(ids, string(id))
	}
	sort.Strings(ids)

	for _, idStr := range ids {
		id := feature.NodeID(idStr)
		node := d.DAG.Nodes[id]
		res := committed[id]
		outs := make([]string, 0, len(res))
		for out := range res {
			outs = append(outs, out)
		}
		sort.Strings(outs)
		for _, out := range outs {
			value, _ := res[out].Float64()
			insight := model.Insight{
				PipelineID:   d.PipelineID,
				InstrumentID: node.Instrument,
				FeatureID:    out,
				EventTime:    tickTime,
				Value:        value,
				InsightType:  model.InsightTypeContinuous,
			}
			if err := d.Sink.Publish(ctx, insight); err != nil {
				return err
			}
		}
	}
	return nil
}
