// Package postgres persists pipeline output to the database described by db/migrations.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/coachpo/meltica/internal/domain/model"
	"go.opentelemetry.io/otel/metric"
)

const insertInsightSQL = `
INSERT INTO insights (pipeline_id, instrument_id, feature_id, event_time, value, insight_type)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (pipeline_id, instrument_id, feature_id, event_time) DO NOTHING
`

// InsightWriter persists batches of model.Insight to Postgres. It is the consumer-side
// contract the Scheduler's sink queue feeds; the pipeline core never depends on it directly.
type InsightWriter struct {
	pool         *pgxpool.Pool
	flushedTotal metric.Int64Counter
	failedTotal  metric.Int64Counter
}

// NewInsightWriter constructs an InsightWriter backed by pool. meter may be nil, in which
// case flush counters are skipped.
func NewInsightWriter(pool *pgxpool.Pool, meter metric.Meter) (*InsightWriter, error) {
	w := &InsightWriter{pool: pool}
	if meter == nil {
		return w, nil
	}
	var err error
	w.flushedTotal, err = meter.Int64Counter("insights_writer_flushed_total",
		metric.WithDescription("insight rows successfully written to postgres"))
	if err != nil {
		return nil, fmt.Errorf("create flushed counter: %w", err)
	}
	w.failedTotal, err = meter.Int64Counter("insights_writer_failed_total",
		metric.WithDescription("insight batches that failed to write after retry"))
	if err != nil {
		return nil, fmt.Errorf("create failed counter: %w", err)
	}
	return w, nil
}

// WriteBatch inserts one batch of insights, retrying failures with an exponential backoff
// until a 30s elapsed budget runs out.
func (w *InsightWriter) WriteBatch(ctx context.Context, insights []model.Insight) error {
	if len(insights) == 0 {
		return nil
	}

	boff := backoff.NewExponentialBackOff()
	deadline := time.Now().Add(30 * time.Second)
	var lastErr error
	for {
		if err := w.flushOnce(ctx, insights); err != nil {
			lastErr = err
			sleep := boff.NextBackOff()
			if sleep == backoff.Stop || time.Now().Add(sleep).After(deadline) {
				break
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(sleep):
			}
			continue
		}
		if w.flushedTotal != nil {
			w.flushedTotal.Add(ctx, int64(len(insights)))
		}
		return nil
	}
	if w.failedTotal != nil {
		w.failedTotal.Add(ctx, 1)
	}
	return fmt.Errorf("write insight batch: %w", lastErr)
}

func (w *InsightWriter) flushOnce(ctx context.Context, insights []model.Insight) error {
	batch := &pgx.Batch{}
	for _, in := range insights {
		batch.Queue(insertInsightSQL, in.PipelineID, in.InstrumentID, in.FeatureID, in.EventTime, in.Value, string(in.InsightType))
	}
	br := w.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range insights {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// Run drains sink until it is closed or ctx is cancelled, flushing accumulated insights
// every flushInterval or once batchSize insights have accumulated, whichever comes first.
func (w *InsightWriter) Run(ctx context.Context, sink <-chan model.Insight, batchSize int, flushInterval time.Duration) error {
	if batchSize <= 0 {
		batchSize = 256
	}
	buf := make([]model.Insight, 0, batchSize)
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	flush := func() error {
		if len(buf) == 0 {
			return nil
		}
		if err := w.WriteBatch(ctx, buf); err != nil {
			return err
		}
		buf = buf[:0]
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			_ = flush()
			return ctx.Err()
		case insight, ok := <-sink:
			if !ok {
				return flush()
			}
			buf = append(buf, insight)
			if len(buf) >= batchSize {
				if err := flush(); err != nil {
					return err
				}
			}
		case <-ticker.C:
			if err := flush(); err != nil {
				return err
			}
		}
	}
}
