package nodeexec

import (
	"github.com/coachpo/meltica/internal/domain/feature"
	"github.com/coachpo/meltica/internal/infra/statestore"
)

// Range computes one of the §4.5 Range aggregations over samples in a window or interval.
// An empty input set is a numerical anomaly (fill applies); the caller supplies samples
// already filtered to the node's Window(secs) or Interval(count) lookback.
func Range(samples []statestore.Sample, algo feature.RangeAlgo) Outcome {
	if len(samples) == 0 {
		return fail()
	}
	values := floats(samples)
	switch algo {
	case feature.RangeMax:
		m := values[0]
		for _, v := range values[1:] {
			if v > m {
				m = v
			}
		}
		return ok(m)
	case feature.RangeMin:
		m := values[0]
		for _, v := range values[1:] {
			if v < m {
				m = v
			}
		}
		return ok(m)
	case feature.RangeLast:
		return ok(values[len(values)-1])
	case feature.RangeFirst:
		return ok(values[0])
	case feature.RangeSum:
		return ok(sum(values))
	case feature.RangeMean:
		return ok(mean(values))
	case feature.RangeMedian:
		return ok(median(values))
	case feature.RangeAbsSum:
		return ok(absSum(values, nil))
	case feature.RangeAbsSumPositive:
		return ok(absSum(values, func(v float64) bool { return v > 0 }))
	case feature.RangeAbsSumNegative:
		return ok(absSum(values, func(v float64) bool { return v < 0 }))
	case feature.RangeCount:
		return ok(float64(len(values)))
	case feature.RangeStdDev:
		return ok(stddev(values))
	case feature.RangeVar:
		return ok(variance(values))
	default:
		return fail()
	}
}
