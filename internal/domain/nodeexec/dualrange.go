package nodeexec

import (
	"math"

	"github.com/coachpo/meltica/internal/domain/feature"
	"github.com/coachpo/meltica/internal/infra/statestore"
)

// DualRange computes a weighted statistic over two aligned input series, per §4.5. a and b
// must be the same length and index-aligned (the caller zips them from their own windows).
func DualRange(a, b []statestore.Sample, method feature.DualRangeMethod) Outcome {
	if len(a) == 0 || len(a) != len(b) {
		return fail()
	}
	av, bv := floats(a), floats(b)
	switch method {
	case feature.DualRangeWeightedMean:
		var num, den float64
		for i := range av {
			num += av[i] * bv[i]
			den += bv[i]
		}
		if den <= 0 {
			return fail()
		}
		return ok(num / den)
	case feature.DualRangeCovariance:
		return ok(covariance(av, bv))
	case feature.DualRangeCorrelation:
		sa, sb := stddev(av), stddev(bv)
		if sa == 0 || sb == 0 {
			return fail()
		}
		return ok(covariance(av, bv) / (sa * sb))
	default:
		return fail()
	}
}

func covariance(a, b []float64) float64 {
	if len(a) == 0 {
		return math.NaN()
	}
	ma, mb := mean(a), mean(b)
	var acc float64
	for i := range a {
		acc += (a[i] - ma) * (b[i] - mb)
	}
	return acc / float64(len(a))
}
