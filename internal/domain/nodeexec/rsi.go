package nodeexec

import (
	"time"

	"github.com/shopspring/decimal"
)

// RSI computes Wilder's smoothed relative strength index over an input price series, per
// §4.5. Average gain/loss are carried in private scratch series derived from
// outputFeatureID, since RSI's recurrence needs both averages, not just its own output value.
func RSI(store SeriesStore, instrumentID, priceFeatureID, outputFeatureID string, asOf time.Time, periods int) Outcome {
	recent := store.Interval(instrumentID, priceFeatureID, asOf, 2)
	if len(recent) < 2 {
		return fail()
	}
	change := decFloat(recent[1].Value) - decFloat(recent[0].Value)
	var gain, loss float64
	if change > 0 {
		gain = change
	} else {
		loss = -change
	}

	gainKey := outputFeatureID + "#avg_gain"
	lossKey := outputFeatureID + "#avg_loss"
	prevGain, hadGain := store.Latest(instrumentID, gainKey, asOf)
	prevLoss, hadLoss := store.Latest(instrumentID, lossKey, asOf)

	var avgGain, avgLoss float64
	if !hadGain || !hadLoss {
		avgGain, avgLoss = gain, loss
	} else {
		n := float64(periods)
		avgGain = (decFloat(prevGain.Value)*(n-1) + gain) / n
		avgLoss = (decFloat(prevLoss.Value)*(n-1) + loss) / n
	}
	store.Write(instrumentID, gainKey, asOf, decimal.NewFromFloat(avgGain))
	store.Write(instrumentID, lossKey, asOf, decimal.NewFromFloat(avgLoss))

	if avgLoss == 0 {
		if avgGain == 0 {
			return fail()
		}
		return ok(100)
	}
	rs := avgGain / avgLoss
	return ok(100 - 100/(1+rs))
}
