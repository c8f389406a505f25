// Package nodeexec implements the pure computational primitives behind every FeatureConfig
// variant, per spec §4.5: each is a function of (as-of time, input series, parameters) to
// outputs, with no side effects beyond the caller writing the result back to the State Store.
// The one exception is RSI, which also writes its running average gain/loss to private
// scratch series in the store.
package nodeexec

import (
	"math"

	"github.com/coachpo/meltica/internal/domain/feature"
	"github.com/shopspring/decimal"
)

// Outcome is the result of one executor computation before fill-strategy resolution.
type Outcome struct {
	value decimal.Decimal
	ok    bool // false: the raw computation hit a numerical anomaly (empty window, div by
	// zero, log of non-positive, insufficient samples) and fill must be applied.
}

func ok(v float64) Outcome {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Outcome{ok: false}
	}
	return Outcome{value: decimal.NewFromFloat(v), ok: true}
}

func okDecimal(v decimal.Decimal) Outcome {
	return Outcome{value: v, ok: true}
}

func fail() Outcome {
	return Outcome{ok: false}
}

// Ok builds a successful outcome from a float64 result, for dispatch logic outside this
// package that computes a node's raw value without going through one of its primitives
// (e.g. MACD/BB's positional multi-output assembly).
func Ok(v float64) Outcome { return ok(v) }

// OkDecimal builds a successful outcome from an already-decimal result.
func OkDecimal(v decimal.Decimal) Outcome { return okDecimal(v) }

// Fail builds a failed outcome, routing the caller through the node's FillStrategy in
// ApplyFill rather than each call site re-implementing fill semantics.
func Fail() Outcome { return fail() }

// ApplyFill applies the node's FillStrategy when a computation could not produce a value,
// never failing the tick, per §4.5's failure semantics. prev supplies the series' own last
// published value for ForwardFill; skip reports whether the caller should suppress emission
// entirely for this tick. Every Dispatch in the scheduler package calls this after computing
// a node's raw outcome, centralizing fill-strategy policy in one place, per the teacher's
// shared-helper pattern (errs.New, observability.AggregateErrors).
func ApplyFill(o Outcome, fillStrategy feature.FillStrategy, prev func() (decimal.Decimal, bool)) (value decimal.Decimal, skip bool) {
	if o.ok {
		return o.value, false
	}
	switch fillStrategy {
	case feature.FillZero:
		return decimal.Zero, false
	case feature.FillSkip:
		return decimal.Zero, true
	case feature.FillForwardFill:
		fallthrough
	default:
		if prev == nil {
			return decimal.Zero, true
		}
		last, had := prev()
		if !had {
			return decimal.Zero, true
		}
		return last, false
	}
}
