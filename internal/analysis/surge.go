package analysis

import (
	"math"
	"sort"

	"github.com/user/market-intel-service/internal/entity"
)

// SurgePolicy weights the price and watcher components of surge intensity.
//
// For a drop from snapshot i to i+1, d = (p[i]-p[i+1])/p[i] and r = w/max(watchers[i],1)
// where w is the largest watcher gain seen at or after i+1. A drop counts as a surge when
// w > 0 and r > d. Intensity = 1 - exp(-(PriceWeight·d + WatcherWeight·ln(1+r))), which is
// in [0,1) and increases with both d and r for positive weights.
type SurgePolicy struct {
	PriceWeight   float64
	WatcherWeight float64
}

func DefaultSurgePolicy() SurgePolicy {
	return SurgePolicy{PriceWeight: 4, WatcherWeight: 1}
}

// Intensity scores a relative price drop d and relative watcher gain r.
func (p SurgePolicy) Intensity(d, r float64) float64 {
	x := p.PriceWeight*d + p.WatcherWeight*math.Log1p(r)
	return round(1-math.Exp(-x), 4)
}

// DetectSurge returns the strongest surge in one listing's series, or nil when there is none.
func DetectSurge(series []entity.PriceSnapshot, policy SurgePolicy) *entity.PriceSurge {
	if len(series) < 2 {
		return nil
	}
	s := make([]entity.PriceSnapshot, len(series))
	copy(s, series)
	sort.SliceStable(s, func(i, j int) bool { return s[i].CapturedAt.Before(s[j].CapturedAt) })

	// laterMax[i] is the highest watcher count at or after i.
	laterMax := make([]int, len(s))
	laterMax[len(s)-1] = s[len(s)-1].Watchers
	for i := len(s) - 2; i >= 0; i-- {
		laterMax[i] = max(s[i].Watchers, laterMax[i+1])
	}

	var best *entity.PriceSurge
	for i := 0; i+1 < len(s); i++ {
		prev, next := s[i], s[i+1]
		if prev.Price <= 0 || next.Price >= prev.Price {
			continue
		}
		gain := laterMax[i+1] - prev.Watchers
		if gain <= 0 {
			continue
		}
		d := (prev.Price - next.Price) / prev.Price
		r := float64(gain) / float64(max(prev.Watchers, 1))
		if r <= d {
			continue
		}
		intensity := policy.Intensity(d, r)
		if best == nil || intensity > best.Intensity {
			best = &entity.PriceSurge{
				ListingID:       prev.ListingID,
				OldPrice:        prev.Price,
				NewPrice:        next.Price,
				WatcherIncrease: gain,
				Intensity:       intensity,
				DetectedAt:      next.CapturedAt,
			}
		}
	}
	return best
}

// DetectSurges runs DetectSurge over every series and orders the surges by intensity,
// strongest first.
func DetectSurges(series map[string][]entity.PriceSnapshot, policy SurgePolicy) []entity.PriceSurge {
	surges := make([]entity.PriceSurge, 0)
	for id, s := range series {
		if surge := DetectSurge(s, policy); surge != nil {
			surge.ListingID = id
			surges = append(surges, *surge)
		}
	}
	sort.Slice(surges, func(i, j int) bool {
		if surges[i].Intensity != surges[j].Intensity {
			return surges[i].Intensity > surges[j].Intensity
		}
		return surges[i].ListingID < surges[j].ListingID
	})
	return surges
}
