package nodeexec

// MACDResult holds the three values MACD emits, per §4.5.
type MACDResult struct {
	MACD      float64
	Signal    float64
	Histogram float64
}

// MACD computes the MACD line from two already-resolved EMA inputs (fast, slow) and its
// signal line as an EMA of the MACD line, bootstrapped from prevSignal (the node's own prior
// "signal" output, or hadPrevSignal=false on the first tick).
func MACD(fastEMA, slowEMA float64, prevSignal float64, hadPrevSignal bool, signalPeriods int, smoothing float64) MACDResult {
	macd := fastEMA - slowEMA
	var signal float64
	if !hadPrevSignal {
		signal = macd
	} else {
		alpha := smoothing / (1 + float64(signalPeriods))
		signal = alpha*macd + (1-alpha)*prevSignal
	}
	return MACDResult{MACD: macd, Signal: signal, Histogram: macd - signal}
}
