package nodeexec

import (
	"math"
	"sort"

	"github.com/coachpo/meltica/internal/infra/statestore"
	"github.com/shopspring/decimal"
)

func floats(samples []statestore.Sample) []float64 {
	out := make([]float64, len(samples))
	for i, s := range samples {
		f, _ := s.Value.Float64()
		out[i] = f
	}
	return out
}

func sum(values []float64) float64 {
	var total float64
	for _, v := range values {
		total += v
	}
	return total
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	return sum(values) / float64(len(values))
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

// variance returns the population variance (divides by N, matching the pipeline's
// within-window statistics rather than a sample estimator over an external population).
func variance(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	m := mean(values)
	var acc float64
	for _, v := range values {
		d := v - m
		acc += d * d
	}
	return acc / float64(len(values))
}

func stddev(values []float64) float64 {
	return math.Sqrt(variance(values))
}

func absSum(values []float64, only func(v float64) bool) float64 {
	var total float64
	for _, v := range values {
		if only != nil && !only(v) {
			continue
		}
		total += math.Abs(v)
	}
	return total
}

func decFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}
