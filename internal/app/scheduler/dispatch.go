package scheduler

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/coachpo/meltica/internal/domain/feature"
	"github.com/coachpo/meltica/internal/domain/model"
	"github.com/coachpo/meltica/internal/domain/nodeexec"
	"github.com/coachpo/meltica/internal/infra/statestore"
)

// SeriesStore is the State Store surface a tick evaluates nodes against. It is exactly
// nodeexec's own contract: every executor and the scheduler read and write the same store,
// so there is no separate scheduler-side abstraction over it.
type SeriesStore = nodeexec.SeriesStore

// Result is one node's computed outputs for a single tick, keyed by output name. An output
// absent from the map was suppressed for this tick by fill_strategy: skip, per §4.5.
type Result map[string]decimal.Decimal

// ohlcvOutputOrder is the canonical positional mapping of OHLCV's named outputs, per §4.5.
// A node declares a prefix of this list; outputs beyond len(node.Outputs) are not emitted.
var ohlcvOutputOrder = []string{
	"open", "high", "low", "close",
	"typical_price", "vwap",
	"volume", "buy_volume", "sell_volume",
	"notional_volume", "buy_notional_volume", "sell_notional_volume",
	"trade_count", "buy_trade_count", "sell_trade_count",
}

// macdOutputOrder is MACD's fixed 3-output layout, per §4.5.
var macdOutputOrder = []string{"macd", "signal", "histogram"}

// bbOutputOrder is Bollinger Bands' fixed 4-output layout, per §4.5.
var bbOutputOrder = []string{"upper", "lower", "oscillator", "width"}

// Dispatch evaluates one DAG node for the current tick, routing to the nodeexec primitive
// matching its Config.Kind and applying the node's fill_strategy to every output, per spec
// §4.2 step 3 and §4.5. The returned Result omits any output fill_strategy: skip suppressed.
func Dispatch(dag *feature.DAG, node *feature.Node, store SeriesStore, asOf time.Time) Result {
	switch node.Config.Kind {
	case feature.KindRange:
		return dispatchRange(dag, node, store, asOf)
	case feature.KindDualRange:
		return dispatchDualRange(dag, node, store, asOf)
	case feature.KindTwoValue:
		return dispatchTwoValue(dag, node, store, asOf)
	case feature.KindLag:
		return dispatchLag(dag, node, store, asOf)
	case feature.KindOHLCV:
		return dispatchOHLCV(dag, node, store, asOf)
	case feature.KindSMA:
		smaNode := node
		if node.Config.Periods > 0 {
			// SMA averages the last Periods samples, whatever lookback Data declares.
			withPeriods := *node
			withPeriods.Config.Data = feature.DataSpec{Kind: feature.DataKindInterval, IntervalCount: uint(node.Config.Periods)}
			smaNode = &withPeriods
		}
		return dispatchUnarySeries(dag, smaNode, store, asOf, nodeexec.SMA)
	case feature.KindStdDev:
		return dispatchUnarySeries(dag, node, store, asOf, nodeexec.StdDev)
	case feature.KindSum:
		return dispatchUnarySeries(dag, node, store, asOf, nodeexec.Sum)
	case feature.KindCount:
		return dispatchUnarySeries(dag, node, store, asOf, nodeexec.Count)
	case feature.KindPctChange:
		return dispatchPctChange(dag, node, store, asOf)
	case feature.KindEMA:
		return dispatchEMA(dag, node, store, asOf)
	case feature.KindMACD:
		return dispatchMACD(dag, node, store, asOf)
	case feature.KindBB:
		return dispatchBB(dag, node, store, asOf)
	case feature.KindRSI:
		return dispatchRSI(dag, node, store, asOf)
	case feature.KindSpread:
		return dispatchSpread(node, store, asOf)
	case feature.KindHistVol:
		return dispatchHistVol(dag, node, store, asOf)
	case feature.KindCumSum:
		return dispatchCumSum(dag, node, store, asOf)
	case feature.KindVWAP:
		return dispatchVWAP(node, store, asOf)
	default:
		return nil
	}
}

// seriesRef resolves one input edge to the concrete (instrument_id, feature_id) series it
// reads from: a raw field lives under the consuming node's own instrument (node.Instrument
// for Inputs, node.Instrument2 for Inputs2), while a producer edge lives under the producing
// node's own Instrument field, per catalog.go's findProducer ("same instrument, or failing
// that, same group-key") — the producer always writes its outputs keyed by its own identity.
func seriesRef(dag *feature.DAG, edge feature.InputEdge, rawInstrument string) (instrumentID, featureID string) {
	if edge.Raw {
		return rawInstrument, edge.Name
	}
	producer := dag.Nodes[edge.Producer]
	return producer.Instrument, edge.Name
}

func fetchSamples(store SeriesStore, instrumentID, featureID string, asOf time.Time, data feature.DataSpec) []statestore.Sample {
	switch data.Kind {
	case feature.DataKindWindow:
		return store.Window(instrumentID, featureID, asOf, time.Duration(data.WindowSeconds)*time.Second)
	case feature.DataKindInterval:
		return store.Interval(instrumentID, featureID, asOf, int(data.IntervalCount))
	default:
		return nil
	}
}

func latestFloat(store SeriesStore, instrumentID, featureID string, asOf time.Time) (float64, bool) {
	s, had := store.Latest(instrumentID, featureID, asOf)
	if !had {
		return 0, false
	}
	return toFloat(s.Value), true
}

func toFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}

// prevValueFunc builds the "own prior output" accessor ApplyFill needs for ForwardFill,
// reading the node's own output series at the instrument it publishes under.
func prevValueFunc(store SeriesStore, instrumentID, featureID string, asOf time.Time) func() (decimal.Decimal, bool) {
	return func() (decimal.Decimal, bool) {
		s, had := store.Latest(instrumentID, featureID, asOf)
		return s.Value, had
	}
}

// alignTail trims two sample slices to their shared most-recent length, for DualRange/VWAP
// inputs drawn from independently-evicted series that may not hold identical counts.
func alignTail(a, b []statestore.Sample) ([]statestore.Sample, []statestore.Sample) {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	return a[len(a)-n:], b[len(b)-n:]
}

func dispatchRange(dag *feature.DAG, node *feature.Node, store SeriesStore, asOf time.Time) Result {
	res := make(Result, len(node.Outputs))
	fill := node.Config.EffectiveFillStrategy()
	for i, out := range node.Outputs {
		instrumentID, featureID := seriesRef(dag, node.Inputs[i], node.Instrument)
		samples := fetchSamples(store, instrumentID, featureID, asOf, node.Config.Data)
		algo := feature.RangeAlgo(node.Config.Method[i])
		o := nodeexec.Range(samples, algo)
		value, skip := nodeexec.ApplyFill(o, fill, prevValueFunc(store, node.Instrument, out, asOf))
		if !skip {
			res[out] = value
		}
	}
	return res
}

func dispatchDualRange(dag *feature.DAG, node *feature.Node, store SeriesStore, asOf time.Time) Result {
	res := make(Result, len(node.Outputs))
	fill := node.Config.EffectiveFillStrategy()
	for i, out := range node.Outputs {
		instrumentA, featureA := seriesRef(dag, node.Inputs[i], node.Instrument)
		instrumentB, featureB := seriesRef(dag, node.Inputs2[i], node.Instrument2)
		samplesA := fetchSamples(store, instrumentA, featureA, asOf, node.Config.Data)
		samplesB := fetchSamples(store, instrumentB, featureB, asOf, node.Config.Data)
		a, b := alignTail(samplesA, samplesB)
		method := feature.DualRangeMethod(node.Config.Method[i])
		o := nodeexec.DualRange(a, b, method)
		value, skip := nodeexec.ApplyFill(o, fill, prevValueFunc(store, node.Instrument, out, asOf))
		if !skip {
			res[out] = value
		}
	}
	return res
}

func dispatchTwoValue(dag *feature.DAG, node *feature.Node, store SeriesStore, asOf time.Time) Result {
	res := make(Result, len(node.Outputs))
	fill := node.Config.EffectiveFillStrategy()
	for i, out := range node.Outputs {
		instrumentA, featureA := seriesRef(dag, node.Inputs[i], node.Instrument)
		instrumentB, featureB := seriesRef(dag, node.Inputs2[i], node.Instrument2)
		af, hadA := latestFloat(store, instrumentA, featureA, asOf)
		bf, hadB := latestFloat(store, instrumentB, featureB, asOf)
		var o nodeexec.Outcome
		if !hadA || !hadB {
			o = nodeexec.Fail()
		} else {
			o = nodeexec.TwoValue(af, bf, feature.TwoValueMethod(node.Config.Method[i]))
		}
		value, skip := nodeexec.ApplyFill(o, fill, prevValueFunc(store, node.Instrument, out, asOf))
		if !skip {
			res[out] = value
		}
	}
	return res
}

func dispatchLag(dag *feature.DAG, node *feature.Node, store SeriesStore, asOf time.Time) Result {
	res := make(Result, len(node.Outputs))
	fill := node.Config.EffectiveFillStrategy()
	// Lag's method is a single shared value across every output, since config.go's arity
	// validation enforces |lag| = |outputs| but never |method| = |outputs| for KindLag: the
	// spec presents the comparison method as a per-node setting, not a per-output one.
	var method feature.LagMethod
	if len(node.Config.Method) > 0 {
		method = feature.LagMethod(node.Config.Method[0])
	}
	for i, out := range node.Outputs {
		instrumentID, featureID := seriesRef(dag, node.Inputs[i], node.Instrument)
		k := int(node.Config.Lag[i])
		samples := store.Interval(instrumentID, featureID, asOf, k+1)
		var o nodeexec.Outcome
		if len(samples) < k+1 {
			o = nodeexec.Fail()
		} else {
			current := toFloat(samples[len(samples)-1].Value)
			past := toFloat(samples[0].Value)
			o = nodeexec.Lag(current, past, method)
		}
		value, skip := nodeexec.ApplyFill(o, fill, prevValueFunc(store, node.Instrument, out, asOf))
		if !skip {
			res[out] = value
		}
	}
	return res
}

// dispatchOHLCV zips the instrument's trade_price/trade_quantity/trade_side raw series
// position-by-position into nodeexec.TradeSample values. The three series are written
// together by a single ingress.Ingestor.ingestTrade call per trade event, so they stay
// index-aligned barring an out-of-order drop racing between fields; trimming all three to
// their shared most-recent length below guards the residual case where they still differ.
func dispatchOHLCV(dag *feature.DAG, node *feature.Node, store SeriesStore, asOf time.Time) Result {
	res := make(Result, len(node.Outputs))
	fill := node.Config.EffectiveFillStrategy()

	prices := fetchSamples(store, node.Instrument, fieldOrInput(dag, node, 0, "trade_price"), asOf, node.Config.Data)
	quantities := fetchSamples(store, node.Instrument, fieldOrInput(dag, node, 1, "trade_quantity"), asOf, node.Config.Data)
	sides := fetchSamples(store, node.Instrument, fieldOrInput(dag, node, 2, "trade_side"), asOf, node.Config.Data)

	n := len(prices)
	if len(quantities) < n {
		n = len(quantities)
	}
	if len(sides) < n {
		n = len(sides)
	}
	prices = prices[len(prices)-n:]
	quantities = quantities[len(quantities)-n:]
	sides = sides[len(sides)-n:]

	trades := make([]nodeexec.TradeSample, n)
	for i := 0; i < n; i++ {
		side := model.TradeSide("")
		switch {
		case sides[i].Value.IsPositive():
			side = model.TradeSideBuy
		case sides[i].Value.IsNegative():
			side = model.TradeSideSell
		}
		trades[i] = nodeexec.TradeSample{Price: prices[i].Value, Quantity: quantities[i].Value, Side: side}
	}

	result, had := nodeexec.OHLCV(trades)
	values := []decimal.Decimal{
		result.Open, result.High, result.Low, result.Close,
		result.TypicalPrice, result.VWAP,
		result.Volume, result.BuyVolume, result.SellVolume,
		result.NotionalVolume, result.BuyNotionalVolume, result.SellNotionalVolume,
		decimal.NewFromInt(int64(result.TradeCount)),
		decimal.NewFromInt(int64(result.BuyTradeCount)),
		decimal.NewFromInt(int64(result.SellTradeCount)),
	}
	for i, out := range node.Outputs {
		if i >= len(ohlcvOutputOrder) {
			break
		}
		var o nodeexec.Outcome
		if had {
			o = nodeexec.OkDecimal(values[i])
		} else {
			o = nodeexec.Fail()
		}
		value, skip := nodeexec.ApplyFill(o, fill, prevValueFunc(store, node.Instrument, out, asOf))
		if !skip {
			res[out] = value
		}
	}
	return res
}

// fieldOrInput picks node.Inputs[idx]'s resolved raw-field name if the config supplied one
// at that position, defaulting to fallback — letting an OHLCV node omit inputs entirely and
// read its instrument's canonical trade fields, per §3's raw-field catalogue.
func fieldOrInput(dag *feature.DAG, node *feature.Node, idx int, fallback string) string {
	if idx >= len(node.Inputs) {
		return fallback
	}
	_, featureID := seriesRef(dag, node.Inputs[idx], node.Instrument)
	return featureID
}

func dispatchUnarySeries(dag *feature.DAG, node *feature.Node, store SeriesStore, asOf time.Time, compute func([]statestore.Sample) nodeexec.Outcome) Result {
	if len(node.Outputs) == 0 || len(node.Inputs) == 0 {
		return nil
	}
	out := node.Outputs[0]
	instrumentID, featureID := seriesRef(dag, node.Inputs[0], node.Instrument)
	samples := fetchSamples(store, instrumentID, featureID, asOf, node.Config.Data)
	o := compute(samples)
	fill := node.Config.EffectiveFillStrategy()
	value, skip := nodeexec.ApplyFill(o, fill, prevValueFunc(store, node.Instrument, out, asOf))
	if skip {
		return Result{}
	}
	return Result{out: value}
}

// dispatchPctChange always reads the two most recent samples directly, bypassing the node's
// configured Data lookback: §4.5 defines PctChange over "a series' two most recent samples",
// not an N-sample window.
func dispatchPctChange(dag *feature.DAG, node *feature.Node, store SeriesStore, asOf time.Time) Result {
	if len(node.Outputs) == 0 || len(node.Inputs) == 0 {
		return nil
	}
	out := node.Outputs[0]
	instrumentID, featureID := seriesRef(dag, node.Inputs[0], node.Instrument)
	samples := store.Interval(instrumentID, featureID, asOf, 2)
	o := nodeexec.PctChange(samples)
	fill := node.Config.EffectiveFillStrategy()
	value, skip := nodeexec.ApplyFill(o, fill, prevValueFunc(store, node.Instrument, out, asOf))
	if skip {
		return Result{}
	}
	return Result{out: value}
}

func dispatchEMA(dag *feature.DAG, node *feature.Node, store SeriesStore, asOf time.Time) Result {
	if len(node.Outputs) == 0 || len(node.Inputs) == 0 {
		return nil
	}
	out := node.Outputs[0]
	_, featureID := seriesRef(dag, node.Inputs[0], node.Instrument)
	o := nodeexec.EMA(store, node.Instrument, featureID, out, asOf, node.Config.Periods, node.Config.Smoothing)
	fill := node.Config.EffectiveFillStrategy()
	value, skip := nodeexec.ApplyFill(o, fill, prevValueFunc(store, node.Instrument, out, asOf))
	if skip {
		return Result{}
	}
	return Result{out: value}
}

// dispatchMACD reads its fast and slow EMA inputs' most recent values (Inputs[0], Inputs[1] —
// earlier EMA nodes in the feature list) and recurs its own signal line off its own prior
// "signal" output, per §4.5.
func dispatchMACD(dag *feature.DAG, node *feature.Node, store SeriesStore, asOf time.Time) Result {
	res := make(Result, len(node.Outputs))
	fill := node.Config.EffectiveFillStrategy()
	if len(node.Inputs) < 2 {
		return res
	}
	instrumentFast, featureFast := seriesRef(dag, node.Inputs[0], node.Instrument)
	instrumentSlow, featureSlow := seriesRef(dag, node.Inputs[1], node.Instrument)
	fastV, hadFast := latestFloat(store, instrumentFast, featureFast, asOf)
	slowV, hadSlow := latestFloat(store, instrumentSlow, featureSlow, asOf)

	var outcomes [3]nodeexec.Outcome
	if !hadFast || !hadSlow {
		outcomes = [3]nodeexec.Outcome{nodeexec.Fail(), nodeexec.Fail(), nodeexec.Fail()}
	} else {
		signalOut := outputAt(node, 1)
		prevSignal, hadPrevSignal := latestFloat(store, node.Instrument, signalOut, asOf)
		m := nodeexec.MACD(fastV, slowV, prevSignal, hadPrevSignal, node.Config.SignalPeriods, node.Config.Smoothing)
		outcomes = [3]nodeexec.Outcome{nodeexec.Ok(m.MACD), nodeexec.Ok(m.Signal), nodeexec.Ok(m.Histogram)}
	}
	for i, out := range node.Outputs {
		if i >= len(macdOutputOrder) {
			break
		}
		value, skip := nodeexec.ApplyFill(outcomes[i], fill, prevValueFunc(store, node.Instrument, out, asOf))
		if !skip {
			res[out] = value
		}
	}
	return res
}

// dispatchBB reads price, sma, and stddev positionally from Inputs[0..2] — the price series
// plus two earlier feature-list nodes producing this instrument's SMA and standard deviation.
func dispatchBB(dag *feature.DAG, node *feature.Node, store SeriesStore, asOf time.Time) Result {
	res := make(Result, len(node.Outputs))
	fill := node.Config.EffectiveFillStrategy()
	if len(node.Inputs) < 3 {
		return res
	}
	instrumentP, featureP := seriesRef(dag, node.Inputs[0], node.Instrument)
	instrumentS, featureS := seriesRef(dag, node.Inputs[1], node.Instrument)
	instrumentD, featureD := seriesRef(dag, node.Inputs[2], node.Instrument)
	price, hadPrice := latestFloat(store, instrumentP, featureP, asOf)
	sma, hadSMA := latestFloat(store, instrumentS, featureS, asOf)
	stddevVal, hadStdDev := latestFloat(store, instrumentD, featureD, asOf)

	var outcomes [4]nodeexec.Outcome
	if !hadPrice || !hadSMA || !hadStdDev {
		outcomes = [4]nodeexec.Outcome{nodeexec.Fail(), nodeexec.Fail(), nodeexec.Fail(), nodeexec.Fail()}
	} else if bb, ok := nodeexec.BB(price, sma, stddevVal, node.Config.Sigma); ok {
		outcomes = [4]nodeexec.Outcome{nodeexec.Ok(bb.Upper), nodeexec.Ok(bb.Lower), nodeexec.Ok(bb.Oscillator), nodeexec.Ok(bb.Width)}
	} else {
		outcomes = [4]nodeexec.Outcome{nodeexec.Fail(), nodeexec.Fail(), nodeexec.Fail(), nodeexec.Fail()}
	}
	for i, out := range node.Outputs {
		if i >= len(bbOutputOrder) {
			break
		}
		value, skip := nodeexec.ApplyFill(outcomes[i], fill, prevValueFunc(store, node.Instrument, out, asOf))
		if !skip {
			res[out] = value
		}
	}
	return res
}

func dispatchRSI(dag *feature.DAG, node *feature.Node, store SeriesStore, asOf time.Time) Result {
	if len(node.Outputs) == 0 || len(node.Inputs) == 0 {
		return nil
	}
	out := node.Outputs[0]
	_, featureID := seriesRef(dag, node.Inputs[0], node.Instrument)
	o := nodeexec.RSI(store, node.Instrument, featureID, out, asOf, node.Config.Periods)
	fill := node.Config.EffectiveFillStrategy()
	value, skip := nodeexec.ApplyFill(o, fill, prevValueFunc(store, node.Instrument, out, asOf))
	if skip {
		return Result{}
	}
	return Result{out: value}
}

// dispatchSpread always reads the instrument's own canonical bid_price/ask_price raw fields
// directly: spread is defined over the instrument's current quote, not an arbitrary
// configured pair, so a Spread node need not (and does not) declare inputs.
func dispatchSpread(node *feature.Node, store SeriesStore, asOf time.Time) Result {
	if len(node.Outputs) == 0 {
		return nil
	}
	out := node.Outputs[0]
	bid, hadBid := latestFloat(store, node.Instrument, "bid_price", asOf)
	ask, hadAsk := latestFloat(store, node.Instrument, "ask_price", asOf)
	var o nodeexec.Outcome
	if !hadBid || !hadAsk {
		o = nodeexec.Fail()
	} else {
		o = nodeexec.Spread(bid, ask)
	}
	fill := node.Config.EffectiveFillStrategy()
	value, skip := nodeexec.ApplyFill(o, fill, prevValueFunc(store, node.Instrument, out, asOf))
	if skip {
		return Result{}
	}
	return Result{out: value}
}

func dispatchHistVol(dag *feature.DAG, node *feature.Node, store SeriesStore, asOf time.Time) Result {
	if len(node.Outputs) == 0 || len(node.Inputs) == 0 {
		return nil
	}
	out := node.Outputs[0]
	instrumentID, featureID := seriesRef(dag, node.Inputs[0], node.Instrument)
	samples := fetchSamples(store, instrumentID, featureID, asOf, node.Config.Data)
	o := nodeexec.HistVol(samples, node.Config.TradingDaysPerYear, node.Config.TimeframeSeconds)
	fill := node.Config.EffectiveFillStrategy()
	value, skip := nodeexec.ApplyFill(o, fill, prevValueFunc(store, node.Instrument, out, asOf))
	if skip {
		return Result{}
	}
	return Result{out: value}
}

func dispatchCumSum(dag *feature.DAG, node *feature.Node, store SeriesStore, asOf time.Time) Result {
	if len(node.Outputs) == 0 || len(node.Inputs) == 0 {
		return nil
	}
	out := node.Outputs[0]
	_, featureID := seriesRef(dag, node.Inputs[0], node.Instrument)
	o := nodeexec.CumSum(store, node.Instrument, featureID, out, asOf)
	fill := node.Config.EffectiveFillStrategy()
	value, skip := nodeexec.ApplyFill(o, fill, prevValueFunc(store, node.Instrument, out, asOf))
	if skip {
		return Result{}
	}
	return Result{out: value}
}

// dispatchVWAP reads the instrument's canonical trade_price/trade_quantity raw series
// directly, the same specialization relationship nodeexec.VWAP has to DualRange.
func dispatchVWAP(node *feature.Node, store SeriesStore, asOf time.Time) Result {
	if len(node.Outputs) == 0 {
		return nil
	}
	out := node.Outputs[0]
	prices := fetchSamples(store, node.Instrument, "trade_price", asOf, node.Config.Data)
	quantities := fetchSamples(store, node.Instrument, "trade_quantity", asOf, node.Config.Data)
	a, b := alignTail(prices, quantities)
	o := nodeexec.VWAP(a, b)
	fill := node.Config.EffectiveFillStrategy()
	value, skip := nodeexec.ApplyFill(o, fill, prevValueFunc(store, node.Instrument, out, asOf))
	if skip {
		return Result{}
	}
	return Result{out: value}
}

// outputAt returns node.Outputs[idx] or "" when the node did not declare that many outputs.
func outputAt(node *feature.Node, idx int) string {
	if idx >= len(node.Outputs) {
		return ""
	}
	return node.Outputs[idx]
}
