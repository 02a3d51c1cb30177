package analysis

import (
	"fmt"
	"math"
	"sort"

	"github.com/user/market-intel-service/internal/entity"
)

// DefaultFenceK is the Tukey fence multiplier applied to the interquartile range.
const DefaultFenceK = 1.5

// TrimOutliers drops non-positive prices and everything outside [Q1 - k·IQR, Q3 + k·IQR].
// The result is sorted ascending. A k <= 0 falls back to DefaultFenceK.
func TrimOutliers(prices []float64, k float64) (kept []float64, dropped int) {
	if k <= 0 {
		k = DefaultFenceK
	}
	valid := make([]float64, 0, len(prices))
	for _, p := range prices {
		if p > 0 && !math.IsInf(p, 0) && !math.IsNaN(p) {
			valid = append(valid, p)
		}
	}
	if len(valid) == 0 {
		return nil, len(prices)
	}
	sort.Float64s(valid)

	q1 := Percentile(valid, 0.25)
	q3 := Percentile(valid, 0.75)
	iqr := q3 - q1
	lo, hi := q1-k*iqr, q3+k*iqr

	kept = valid[:0:0]
	for _, p := range valid {
		if p >= lo && p <= hi {
			kept = append(kept, p)
		}
	}
	return kept, len(prices) - len(kept)
}

// PriceBands computes fast-sale (P25), safe (P50) and aggressive (P75) prices from
// comparable sold prices after outlier trimming.
func PriceBands(prices []float64, k float64) (*entity.PriceBand, error) {
	kept, dropped := TrimOutliers(prices, k)
	if len(kept) == 0 {
		return nil, fmt.Errorf("%w: no usable comparable prices (%d supplied)", entity.ErrInsufficientData, len(prices))
	}
	return &entity.PriceBand{
		FastSale:   round(Percentile(kept, 0.25), 2),
		Safe:       round(Percentile(kept, 0.50), 2),
		Aggressive: round(Percentile(kept, 0.75), 2),
		SampleSize: len(kept),
		Trimmed:    dropped,
	}, nil
}
