package nodeexec

import "github.com/coachpo/meltica/internal/infra/statestore"

// SMA is the arithmetic mean of the last N samples, per §4.5. Callers supply samples already
// resolved via Interval(periods).
func SMA(samples []statestore.Sample) Outcome {
	if len(samples) == 0 {
		return fail()
	}
	return ok(mean(floats(samples)))
}
