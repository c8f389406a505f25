package nodeexec

// BBResult holds Bollinger Band outputs, per §4.5.
type BBResult struct {
	Upper, Lower      float64
	Oscillator, Width float64
}

// BB computes Bollinger Bands from an already-resolved price, SMA, and standard deviation,
// per §4.5: upper = sma + σ·stddev, lower = sma - σ·stddev,
// oscillator = (price - lower) / (upper - lower), width = (upper - lower) / sma.
func BB(price, sma, stddevVal, sigma float64) (BBResult, bool) {
	upper := sma + sigma*stddevVal
	lower := sma - sigma*stddevVal
	band := upper - lower
	if band == 0 || sma == 0 {
		return BBResult{}, false
	}
	return BBResult{
		Upper:      upper,
		Lower:      lower,
		Oscillator: (price - lower) / band,
		Width:      band / sma,
	}, true
}
