package nodeexec

import "time"

// EMA computes the exponential moving average recurrence from §4.5:
// EMA_t = α/(1+periods)·x_t + (1-α/(1+periods))·EMA_{t-1}, bootstrapping EMA_0 to the first
// sample. The recurrence's previous value is read from the node's own prior output in
// outputFeatureID, so no separate internal state series is needed.
func EMA(store SeriesStore, instrumentID, inputFeatureID, outputFeatureID string, asOf time.Time, periods int, smoothing float64) Outcome {
	latest, had := store.Latest(instrumentID, inputFeatureID, asOf)
	if !had {
		return fail()
	}
	x := decFloat(latest.Value)

	prev, hadPrev := store.Latest(instrumentID, outputFeatureID, asOf)
	if !hadPrev {
		return ok(x)
	}
	alpha := smoothing / (1 + float64(periods))
	return ok(alpha*x + (1-alpha)*decFloat(prev.Value))
}
