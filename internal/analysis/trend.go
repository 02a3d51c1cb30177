package analysis

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/user/market-intel-service/internal/entity"
)

// TrendWindow configures the recent and baseline periods compared by RankTrends.
type TrendWindow struct {
	RecentDays      int
	BaselineDays    int
	MinRecentVolume int
}

func DefaultTrendWindow() TrendWindow {
	return TrendWindow{RecentDays: 7, BaselineDays: 28, MinRecentVolume: 2}
}

const (
	priceVelocityWeight = 0.5
	momentumWeight      = 0.1
)

type trendBucket struct {
	style, subject, medium *string
	recent, baseline       int
	recentPrices           []float64
	baselinePrices         []float64
	recentWatchers         int
	sources                map[entity.ListingMode]struct{}
}

// RankTrends scores every style/subject/medium combination seen in the windows ending at now:
//
//	volumeGrowth  = ln((recentPerDay + ε) / (baselinePerDay + ε)), ε = 1/BaselineDays
//	priceVelocity = (recentAvg - baselineAvg) / baselineAvg, 0 when either side is empty
//	momentum      = ln(1 + avg recent watchers)
//	score         = volumeGrowth + 0.5·priceVelocity + 0.1·momentum
//
// Combinations with fewer than MinRecentVolume recent observations are omitted. Entries are
// ordered by score descending, then by combination.
func RankTrends(obs []entity.TrendObservation, now time.Time, w TrendWindow) []entity.TrendEntry {
	if w.RecentDays <= 0 || w.BaselineDays <= 0 {
		w = DefaultTrendWindow()
	}
	recentStart := now.Add(-time.Duration(w.RecentDays) * 24 * time.Hour)
	baselineStart := recentStart.Add(-time.Duration(w.BaselineDays) * 24 * time.Hour)

	buckets := make(map[string]*trendBucket)
	for _, o := range obs {
		if o.Style == nil && o.Subject == nil && o.Medium == nil {
			continue
		}
		if !o.ObservedAt.After(baselineStart) {
			continue
		}
		key := comboKey(o.Style, o.Subject, o.Medium)
		b, ok := buckets[key]
		if !ok {
			b = &trendBucket{style: o.Style, subject: o.Subject, medium: o.Medium, sources: map[entity.ListingMode]struct{}{}}
			buckets[key] = b
		}
		b.sources[o.Mode] = struct{}{}
		if o.ObservedAt.After(recentStart) {
			b.recent++
			b.recentWatchers += o.Watchers
			if o.Price > 0 {
				b.recentPrices = append(b.recentPrices, o.Price)
			}
		} else {
			b.baseline++
			if o.Price > 0 {
				b.baselinePrices = append(b.baselinePrices, o.Price)
			}
		}
	}

	eps := 1 / float64(w.BaselineDays)
	type keyed struct {
		key   string
		entry entity.TrendEntry
	}
	ranked := make([]keyed, 0, len(buckets))
	for key, b := range buckets {
		if b.recent < w.MinRecentVolume {
			continue
		}
		recentPerDay := float64(b.recent) / float64(w.RecentDays)
		baselinePerDay := float64(b.baseline) / float64(w.BaselineDays)
		growth := math.Log((recentPerDay + eps) / (baselinePerDay + eps))

		var velocity float64
		if len(b.recentPrices) > 0 && len(b.baselinePrices) > 0 {
			base := Mean(b.baselinePrices)
			velocity = (Mean(b.recentPrices) - base) / base
		}
		momentum := math.Log1p(float64(b.recentWatchers) / float64(b.recent))

		ranked = append(ranked, keyed{key: key, entry: entity.TrendEntry{
			Style:          b.style,
			Subject:        b.subject,
			Medium:         b.medium,
			Score:          round(growth+priceVelocityWeight*velocity+momentumWeight*momentum, 4),
			RecentVolume:   b.recent,
			BaselineVolume: b.baseline,
			PriceVelocity:  round(velocity, 4),
			Sources:        sourceTags(b.sources),
		}})
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].entry.Score != ranked[j].entry.Score {
			return ranked[i].entry.Score > ranked[j].entry.Score
		}
		return ranked[i].key < ranked[j].key
	})
	entries := make([]entity.TrendEntry, len(ranked))
	for i, k := range ranked {
		entries[i] = k.entry
	}
	return entries
}

func comboKey(parts ...*string) string {
	s := make([]string, len(parts))
	for i, p := range parts {
		if p != nil {
			s[i] = *p
		}
	}
	return strings.Join(s, "|")
}

func sourceTags(modes map[entity.ListingMode]struct{}) []string {
	tags := make([]string, 0, len(modes))
	for m := range modes {
		tags = append(tags, string(m))
	}
	sort.Strings(tags)
	return tags
}
