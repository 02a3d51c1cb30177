package entity

import "time"

// PriceBand is a triple of suggested prices derived from comparable sold prices.
type PriceBand struct {
	FastSale   float64 `json:"fast_sale"`
	Safe       float64 `json:"safe"`
	Aggressive float64 `json:"aggressive"`
	SampleSize int     `json:"sample_size"`
	Trimmed    int     `json:"trimmed"`
}

// TrendEntry ranks one style/subject/medium combination.
type TrendEntry struct {
	Style          *string  `json:"style"`
	Subject        *string  `json:"subject"`
	Medium         *string  `json:"medium"`
	Score          float64  `json:"score"`
	RecentVolume   int      `json:"recent_volume"`
	BaselineVolume int      `json:"baseline_volume"`
	PriceVelocity  float64  `json:"price_velocity"`
	Sources        []string `json:"sources"`
}

// KeywordInsight summarises the sold market for one of a user's keywords.
type KeywordInsight struct {
	Keyword string     `json:"keyword"`
	Count   int        `json:"count"`
	Band    *PriceBand `json:"band,omitempty"`
}

// JobSummary is the dashboard view of a recent job.
type JobSummary struct {
	ID          string     `json:"id"`
	Mode        string     `json:"mode"`
	Term        string     `json:"term"`
	Status      string     `json:"status"`
	ItemsFound  int        `json:"items_found"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// DashboardStats is the per-user payload held in `dashboard_cache`.
type DashboardStats struct {
	TotalListings   int              `json:"total_listings"`
	SoldListings    int              `json:"sold_listings"`
	ActiveListings  int              `json:"active_listings"`
	SellThrough     float64          `json:"sell_through"`
	AvgSoldPrice    float64          `json:"avg_sold_price"`
	MedianSoldPrice float64          `json:"median_sold_price"`
	Band            *PriceBand       `json:"band,omitempty"`
	TopKeywords     []KeywordInsight `json:"top_keywords"`
	RecentJobs      []JobSummary     `json:"recent_jobs"`
	Surges          []PriceSurge     `json:"surges"`
	GeneratedAt     time.Time        `json:"generated_at"`
}

// GlobalBenchmark is the cross-user payload held in `global_benchmark_cache`.
type GlobalBenchmark struct {
	Users           int          `json:"users"`
	TotalListings   int          `json:"total_listings"`
	SoldListings    int          `json:"sold_listings"`
	ActiveListings  int          `json:"active_listings"`
	SellThrough     float64      `json:"sell_through"`
	MedianSoldPrice float64      `json:"median_sold_price"`
	Band            *PriceBand   `json:"band,omitempty"`
	TopTrends       []TrendEntry `json:"top_trends"`
	GeneratedAt     time.Time    `json:"generated_at"`
}
