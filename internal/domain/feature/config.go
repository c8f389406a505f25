// Package feature parses declarative feature-pipeline configuration and builds the
// dependency-ordered computation graph described in spec §4.2.
package feature

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/coachpo/meltica/internal/domain/model"
	"github.com/coachpo/meltica/internal/errs"
	"gopkg.in/yaml.v3"
)

// Kind identifies one of the FeatureConfig variants enumerated in spec §3.
type Kind string

const (
	KindRange     Kind = "range"
	KindDualRange Kind = "dual_range"
	KindTwoValue  Kind = "two_value"
	KindLag       Kind = "lag"
	KindOHLCV     Kind = "ohlcv"
	KindSMA       Kind = "sma"
	KindEMA       Kind = "ema"
	KindMACD      Kind = "macd"
	KindBB        Kind = "bb"
	KindRSI       Kind = "rsi"
	KindStdDev    Kind = "stddev"
	KindSum       Kind = "sum"
	KindCount     Kind = "count"
	KindSpread    Kind = "spread"
	KindHistVol   Kind = "hist_vol"
	KindCumSum    Kind = "cumsum"
	KindPctChange Kind = "pct_change"
	KindVWAP      Kind = "vwap"
)

func (k Kind) valid() bool {
	switch k {
	case KindRange, KindDualRange, KindTwoValue, KindLag, KindOHLCV, KindSMA, KindEMA, KindMACD,
		KindBB, KindRSI, KindStdDev, KindSum, KindCount, KindSpread, KindHistVol, KindCumSum,
		KindPctChange, KindVWAP:
		return true
	default:
		return false
	}
}

// multiInput reports whether the variant requires |inputs| = |outputs| = |method| arity
// agreement, per spec §3's invariant for "multi-input variants"; for KindLag the third
// vector checked is |lag| rather than |method|.
func (k Kind) multiInput() bool {
	switch k {
	case KindRange, KindLag, KindDualRange, KindTwoValue:
		return true
	default:
		return false
	}
}

// FillStrategy governs how a node handles missing input samples, per spec §4.5.
type FillStrategy string

const (
	// FillForwardFill propagates the last known value.
	FillForwardFill FillStrategy = "forward_fill"
	// FillZero substitutes zero.
	FillZero FillStrategy = "zero_fill"
	// FillSkip emits no output for the tick.
	FillSkip FillStrategy = "skip"
)

func (f FillStrategy) valid() bool {
	switch f {
	case FillForwardFill, FillZero, FillSkip:
		return true
	default:
		return false
	}
}

// RangeAlgo enumerates the Range node's aggregation methods, per spec §4.5.
type RangeAlgo string

const (
	RangeMax             RangeAlgo = "max"
	RangeMin             RangeAlgo = "min"
	RangeLast            RangeAlgo = "last"
	RangeFirst           RangeAlgo = "first"
	RangeSum             RangeAlgo = "sum"
	RangeMean            RangeAlgo = "mean"
	RangeMedian          RangeAlgo = "median"
	RangeAbsSum          RangeAlgo = "abs_sum"
	RangeAbsSumPositive  RangeAlgo = "abs_sum_positive"
	RangeAbsSumNegative  RangeAlgo = "abs_sum_negative"
	RangeCount           RangeAlgo = "count"
	RangeStdDev          RangeAlgo = "stddev"
	RangeVar             RangeAlgo = "var"
)

// DualRangeMethod enumerates the DualRange node's weighted-statistic methods, per spec §4.5.
type DualRangeMethod string

const (
	DualRangeWeightedMean DualRangeMethod = "weighted_mean"
	DualRangeCovariance   DualRangeMethod = "covariance"
	DualRangeCorrelation  DualRangeMethod = "correlation"
)

// TwoValueMethod enumerates the TwoValue node's pairwise methods, per spec §4.5.
type TwoValueMethod string

const (
	TwoValueRatio      TwoValueMethod = "ratio"
	TwoValueImbalance  TwoValueMethod = "imbalance"
	TwoValueSpread     TwoValueMethod = "spread"
	TwoValueDifference TwoValueMethod = "difference"
)

// LagMethod enumerates the Lag node's comparison methods, per spec §4.5.
type LagMethod string

const (
	LagDifference    LagMethod = "difference"
	LagPercentChange LagMethod = "percent_change"
	LagLogReturn     LagMethod = "log_return"
)

// DataKind discriminates a node's lookback mode: a fixed time window, or a fixed sample count.
type DataKind string

const (
	DataKindWindow   DataKind = "window"
	DataKindInterval DataKind = "interval"
)

// DataSpec is the tagged Window(secs)|Interval(count) lookback specifier from spec §3.
// It unmarshals from YAML shaped as either `{window: <seconds>}` or `{interval: <count>}`.
type DataSpec struct {
	Kind          DataKind
	WindowSeconds uint
	IntervalCount uint
}

// UnmarshalYAML accepts `{window: N}` or `{interval: N}`, mirroring the symbolic-or-numeric
// scalar parsing idiom used elsewhere in this codebase for tagged configuration fields.
func (d *DataSpec) UnmarshalYAML(node *yaml.Node) error {
	var raw struct {
		Window   *uint `yaml:"window"`
		Interval *uint `yaml:"interval"`
	}
	if err := node.Decode(&raw); err != nil {
		return fmt.Errorf("data: %w", err)
	}
	switch {
	case raw.Window != nil && raw.Interval != nil:
		return fmt.Errorf("data: exactly one of window or interval must be set")
	case raw.Window != nil:
		d.Kind = DataKindWindow
		d.WindowSeconds = *raw.Window
	case raw.Interval != nil:
		d.Kind = DataKindInterval
		d.IntervalCount = *raw.Interval
	default:
		return fmt.Errorf("data: exactly one of window or interval must be set")
	}
	return nil
}

// RequiredTTLSeconds returns the minimum state TTL this data spec requires, per spec §3's
// "State TTL ≥ max window required by any node" invariant.
func (d DataSpec) RequiredTTLSeconds(minIntervalSeconds uint) uint {
	switch d.Kind {
	case DataKindWindow:
		return d.WindowSeconds
	case DataKindInterval:
		return d.IntervalCount * minIntervalSeconds
	default:
		return 0
	}
}

// selectorYAML mirrors model.Selector with plain string pointers so it can be decoded
// directly from YAML before being normalized into model.Selector.
type selectorYAML struct {
	BaseAsset      *string `yaml:"base_asset,omitempty"`
	QuoteAsset     *string `yaml:"quote_asset,omitempty"`
	Venue          *string `yaml:"venue,omitempty"`
	InstrumentType *string `yaml:"instrument_type,omitempty"`
	Synthetic      *bool   `yaml:"synthetic,omitempty"`
}

func (s selectorYAML) toSelector() model.Selector {
	sel := model.Selector{
		BaseAsset:  s.BaseAsset,
		QuoteAsset: s.QuoteAsset,
		Venue:      s.Venue,
		Synthetic:  s.Synthetic,
	}
	if s.InstrumentType != nil {
		kind := model.InstrumentKind(*s.InstrumentType)
		sel.InstrumentKind = &kind
	}
	return sel
}

// groupByYAML decodes the group_by mask from a list of attribute names, e.g.
// `group_by: [base_asset, quote_asset]`.
type groupByYAML []string

func (g groupByYAML) toGroupBy() model.GroupBy {
	mask := model.GroupBy{}
	for _, attr := range g {
		switch strings.TrimSpace(attr) {
		case "base_asset":
			mask.BaseAsset = true
		case "quote_asset":
			mask.QuoteAsset = true
		case "instrument_type":
			mask.InstrumentKind = true
		case "venue":
			mask.Venue = true
		}
	}
	return mask
}

// Config is a single feature-node declaration as it appears in a pipeline's feature list.
// It covers every FeatureConfig variant from spec §3; only the fields relevant to Kind are
// populated per node, matching how the original YAML declares one variant at a time.
type Config struct {
	Name string `yaml:"name"`
	Kind Kind   `yaml:"type"`

	Selector  selectorYAML  `yaml:"selector"`
	Selector2 *selectorYAML `yaml:"selector_2,omitempty"`
	GroupBy   groupByYAML   `yaml:"group_by,omitempty"`

	Inputs  []string `yaml:"inputs,omitempty"`
	Inputs2 []string `yaml:"inputs_2,omitempty"`
	Outputs []string `yaml:"outputs"`

	Data DataSpec `yaml:"data,omitempty"`

	Method []string `yaml:"method,omitempty"`
	Lag    []uint   `yaml:"lag,omitempty"`

	FillStrategy FillStrategy `yaml:"fill_strategy"`

	// Named-primitive parameters; only the subset relevant to Kind is populated.
	Periods            int     `yaml:"periods,omitempty"`
	FastPeriods        int     `yaml:"fast_periods,omitempty"`
	SlowPeriods        int     `yaml:"slow_periods,omitempty"`
	SignalPeriods      int     `yaml:"signal_periods,omitempty"`
	Smoothing          float64 `yaml:"smoothing,omitempty"`
	Sigma              float64 `yaml:"sigma,omitempty"`
	TimeframeSeconds   int     `yaml:"timeframe_seconds,omitempty"`
	TradingDaysPerYear int     `yaml:"trading_days_per_year,omitempty"`
}

// Validate checks per-kind structural invariants that can be verified without the registry:
// arity agreement, non-empty selector, and fill-strategy well-formedness. TTL agreement is
// checked separately once the owning PipelineConfig's TTL/min_interval are known.
func (c Config) Validate() error {
	op := "feature.validate:" + c.nodeLabel()
	if !c.Kind.valid() {
		return errs.ConfigInvalid(op, "unknown feature kind: "+string(c.Kind))
	}
	if c.Selector.toSelector().Empty() {
		return errs.ConfigInvalid(op, "selector must not be empty")
	}
	if len(c.Outputs) == 0 {
		return errs.ConfigInvalid(op, "outputs must not be empty")
	}
	if c.Kind == KindDualRange || c.Kind == KindTwoValue {
		if c.Selector2 == nil || c.Selector2.toSelector().Empty() {
			return errs.ConfigInvalid(op, "selector_2 must not be empty for "+string(c.Kind))
		}
		if len(c.Inputs2) != len(c.Outputs) {
			return errs.ConfigInvalid(op, "|inputs_2| must equal |outputs|")
		}
	}
	if c.Kind.multiInput() {
		if len(c.Inputs) != len(c.Outputs) {
			return errs.ConfigInvalid(op, "|inputs| must equal |outputs|")
		}
		switch c.Kind {
		case KindRange, KindDualRange, KindTwoValue:
			if len(c.Method) != len(c.Outputs) {
				return errs.ConfigInvalid(op, "|method| must equal |outputs|")
			}
		case KindLag:
			if len(c.Lag) != len(c.Outputs) {
				return errs.ConfigInvalid(op, "|lag| must equal |outputs|")
			}
		}
	}
	if c.FillStrategy != "" && !c.FillStrategy.valid() {
		return errs.ConfigInvalid(op, "unknown fill_strategy: "+string(c.FillStrategy))
	}
	return nil
}

func (c Config) nodeLabel() string {
	if c.Name != "" {
		return c.Name
	}
	return string(c.Kind) + "#" + strconv.Itoa(len(c.Outputs))
}

// EffectiveFillStrategy returns the configured fill strategy, defaulting to ForwardFill when
// unset (the spec's own scenarios assume forward-fill as the default absent an explicit
// override).
func (c Config) EffectiveFillStrategy() FillStrategy {
	if c.FillStrategy == "" {
		return FillForwardFill
	}
	return c.FillStrategy
}

// PipelineConfig is the static configuration for one feature pipeline, per spec §3.
type PipelineConfig struct {
	Name               string       `yaml:"name"`
	Version            string       `yaml:"version"`
	ReferenceCurrency  string       `yaml:"reference_currency"`
	WarmupSteps        uint         `yaml:"warmup_steps"`
	StateTTLSeconds    uint         `yaml:"state_ttl"`
	MinIntervalSeconds uint         `yaml:"min_interval"`
	Parallel           bool         `yaml:"parallel"`
	GlobalSelector     selectorYAML `yaml:"global_instrument_selector"`
	Features           []Config     `yaml:"features"`
}

// Validate enforces the pipeline-level invariants from spec §3/§4.2: non-empty identity,
// positive cadence, unique output names, and state TTL sufficient for every node's lookback.
func (p PipelineConfig) Validate() error {
	op := "pipeline.validate:" + p.Name
	if strings.TrimSpace(p.Name) == "" {
		return errs.ConfigInvalid("pipeline.validate", "pipeline name required")
	}
	if p.MinIntervalSeconds == 0 {
		return errs.ConfigInvalid(op, "min_interval must be > 0")
	}
	if p.StateTTLSeconds == 0 {
		return errs.ConfigInvalid(op, "state_ttl must be > 0")
	}

	seen := make(map[string]struct{}, len(p.Features))
	for _, f := range p.Features {
		if err := f.Validate(); err != nil {
			return err
		}
		for _, out := range f.Outputs {
			if _, dup := seen[out]; dup {
				return errs.ConfigInvalid(op, "duplicate output name: "+out)
			}
			seen[out] = struct{}{}
		}
		required := f.Data.RequiredTTLSeconds(p.MinIntervalSeconds)
		if required > p.StateTTLSeconds {
			return errs.ConfigInvalid(op, fmt.Sprintf(
				"state_ttl (%ds) shorter than feature %q's required lookback (%ds)",
				p.StateTTLSeconds, f.nodeLabel(), required))
		}
	}
	return nil
}
