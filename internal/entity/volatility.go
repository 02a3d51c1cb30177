package entity

import "time"

// PriceSnapshot mirrors the `price_snapshots` PostgreSQL table schema.
// ListingID is the marketplace item id so a series spans collection runs.
type PriceSnapshot struct {
	ID         int64
	ListingID  string
	Price      float64
	Watchers   int
	CapturedAt time.Time
}

// PriceSurge is a derived view over a snapshot series and is never stored.
type PriceSurge struct {
	ListingID       string    `json:"listing_id"`
	OldPrice        float64   `json:"old_price"`
	NewPrice        float64   `json:"new_price"`
	WatcherIncrease int       `json:"watcher_increase"`
	Intensity       float64   `json:"intensity"`
	DetectedAt      time.Time `json:"detected_at"`
}
