package entity

import "time"

// RawListing mirrors the `raw_listings` PostgreSQL table schema.
// Rows are append-only; (JobID, ExternalID) is unique.
type RawListing struct {
	ID          int64
	JobID       string
	ExternalID  string
	Title       string
	Description string
	Price       float64
	Currency    string
	ListedAt    *time.Time // sold date in sold mode, listing date in active mode
	ItemURL     string
	ImageURL    string
	Watchers    *int // active mode only
	UserID      string
	SearchTerm  string
	Mode        ListingMode
	CreatedAt   time.Time
}

// ParsedSignal mirrors the `parsed_signals` PostgreSQL table schema.
type ParsedSignal struct {
	ListingID int64
	Style     *string
	Subject   *string
	Medium    *string
	WidthIn   *float64
	HeightIn  *float64
	ParsedAt  time.Time
}

// ParsedListing pairs a listing with the signal extracted from it, ready to persist together.
type ParsedListing struct {
	Listing *RawListing
	Signal  *ParsedSignal
}

// KeywordCount is the number of sold listings collected for a search term.
type KeywordCount struct {
	Keyword string
	Count   int
}

// ModeCounts tallies listings per mode.
type ModeCounts struct {
	Sold   int
	Active int
}

// SellThrough is the fraction of listings that sold. Zero when nothing was collected.
func (c ModeCounts) SellThrough() float64 {
	total := c.Sold + c.Active
	if total == 0 {
		return 0
	}
	return float64(c.Sold) / float64(total)
}

// TrendObservation is one listing's contribution to trend ranking.
type TrendObservation struct {
	Style      *string
	Subject    *string
	Medium     *string
	Mode       ListingMode
	Price      float64
	Watchers   int
	ObservedAt time.Time
}
