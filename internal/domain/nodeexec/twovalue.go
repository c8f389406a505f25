package nodeexec

import "github.com/coachpo/meltica/internal/domain/feature"

// TwoValue computes a pairwise comparison between the most recent values of two series,
// per §4.5.
func TwoValue(a, b float64, method feature.TwoValueMethod) Outcome {
	switch method {
	case feature.TwoValueRatio:
		if b == 0 {
			return fail()
		}
		return ok(a / b)
	case feature.TwoValueImbalance:
		denom := a + b
		if denom == 0 {
			return fail()
		}
		return ok((a - b) / denom)
	case feature.TwoValueSpread, feature.TwoValueDifference:
		return ok(a - b)
	default:
		return fail()
	}
}
