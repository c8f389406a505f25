package nodeexec

import (
	"math"
	"time"

	"github.com/coachpo/meltica/internal/domain/feature"
	"github.com/coachpo/meltica/internal/infra/statestore"
)

// StdDev, Sum, and Count are the standalone named-primitive forms of Range's corresponding
// aggregations, per §4.5.
func StdDev(samples []statestore.Sample) Outcome { return Range(samples, feature.RangeStdDev) }
func Sum(samples []statestore.Sample) Outcome    { return Range(samples, feature.RangeSum) }
func Count(samples []statestore.Sample) Outcome  { return Range(samples, feature.RangeCount) }

// Spread is the bid/ask spread from a single tick's quote, per §4.5.
func Spread(bid, ask float64) Outcome {
	return ok(ask - bid)
}

// HistVol is the annualized historical volatility of returns, per §4.5:
// stddev(returns) · sqrt(trading_days_per_year · 86400 / timeframe_seconds).
func HistVol(samples []statestore.Sample, tradingDaysPerYear, timeframeSeconds int) Outcome {
	if len(samples) < 2 || timeframeSeconds <= 0 {
		return fail()
	}
	values := floats(samples)
	returns := make([]float64, 0, len(values)-1)
	for i := 1; i < len(values); i++ {
		if values[i-1] == 0 {
			continue
		}
		returns = append(returns, (values[i]-values[i-1])/values[i-1])
	}
	if len(returns) == 0 {
		return fail()
	}
	annualize := math.Sqrt(float64(tradingDaysPerYear) * 86400 / float64(timeframeSeconds))
	return ok(stddev(returns) * annualize)
}

// CumSum accumulates an input series' latest value into the node's own running total,
// reading its own prior output as the accumulator, per §4.5.
func CumSum(store SeriesStore, instrumentID, inputFeatureID, outputFeatureID string, asOf time.Time) Outcome {
	latest, had := store.Latest(instrumentID, inputFeatureID, asOf)
	if !had {
		return fail()
	}
	prev, hadPrev := store.Latest(instrumentID, outputFeatureID, asOf)
	if !hadPrev {
		return okDecimal(latest.Value)
	}
	return okDecimal(prev.Value.Add(latest.Value))
}

// PctChange is the percent change between a series' two most recent samples, per §4.5.
func PctChange(samples []statestore.Sample) Outcome {
	if len(samples) < 2 {
		return fail()
	}
	prev := decFloat(samples[len(samples)-2].Value)
	cur := decFloat(samples[len(samples)-1].Value)
	if prev == 0 {
		return fail()
	}
	return ok((cur - prev) / prev)
}

// VWAP is the standalone volume-weighted average price primitive: the same weighted-mean
// computation DualRange performs for arbitrary series pairs, specialized to price/quantity.
func VWAP(prices, quantities []statestore.Sample) Outcome {
	return DualRange(prices, quantities, feature.DualRangeWeightedMean)
}
