package nodeexec

import (
	"math"

	"github.com/coachpo/meltica/internal/domain/feature"
)

// Lag compares a series' current value against its value k steps back, per §4.5. current
// is the value at now; past is the value at now - k*min_interval (the caller resolves the
// index via Interval lookback).
func Lag(current, past float64, method feature.LagMethod) Outcome {
	switch method {
	case feature.LagDifference:
		return ok(current - past)
	case feature.LagPercentChange:
		if past == 0 {
			return fail()
		}
		return ok((current - past) / past)
	case feature.LagLogReturn:
		if past <= 0 || current <= 0 {
			return fail()
		}
		return ok(math.Log(current / past))
	default:
		return fail()
	}
}
