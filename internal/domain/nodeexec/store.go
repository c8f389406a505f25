package nodeexec

import (
	"time"

	"github.com/coachpo/meltica/internal/infra/statestore"
	"github.com/shopspring/decimal"
)

// SeriesStore is the subset of statestore.Store the executors needing recurrence state
// (EMA, MACD's signal line, RSI's Wilder averages, CumSum) depend on: they read their own
// prior output (or a private scratch series) to carry state between ticks, rather than the
// State Store exposing a separate stateful-indicator API.
type SeriesStore interface {
	Window(instrumentID, featureID string, asOf time.Time, window time.Duration) []statestore.Sample
	Interval(instrumentID, featureID string, asOf time.Time, count int) []statestore.Sample
	Latest(instrumentID, featureID string, asOf time.Time) (statestore.Sample, bool)
	Write(instrumentID, featureID string, eventTime time.Time, value decimal.Decimal) bool
}

var _ SeriesStore = (*statestore.Store)(nil)
