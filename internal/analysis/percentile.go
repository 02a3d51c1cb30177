// Package analysis holds the pure statistics behind price bands, surges and trends.
package analysis

import "math"

// Percentile returns the p-th quantile (0 <= p <= 1) of an ascending slice using linear
// interpolation between order statistics: h = (n-1)p, result = x[floor h] + frac(h)·(x[floor h + 1] - x[floor h]).
func Percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	idx := p * float64(len(sorted)-1)
	i := int(idx)
	if i >= len(sorted)-1 {
		return sorted[len(sorted)-1]
	}
	frac := idx - float64(i)
	return sorted[i] + frac*(sorted[i+1]-sorted[i])
}

// Median is Percentile(sorted, 0.5).
func Median(sorted []float64) float64 {
	return Percentile(sorted, 0.5)
}

// Mean returns the arithmetic mean, or 0 for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func round(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}
