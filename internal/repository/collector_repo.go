package repository

import (
	"context"

	"github.com/user/market-intel-service/internal/entity"
)

// SearchQuery selects one page of marketplace results.
type SearchQuery struct {
	Mode     entity.ListingMode
	Term     string // keyword in sold mode, seller name in active mode
	Page     int    // 1-based
	PageSize int
}

// SearchPage is one page of marketplace results.
type SearchPage struct {
	// Listings holds the usable items. They only carry marketplace fields; job, user and
	// mode are filled in by the caller.
	Listings []*entity.RawListing
	// Received is the number of items the marketplace returned, including the ones
	// dropped as malformed. Paging decisions are made on this count.
	Received int
}

// MarketplaceCollector defines the contract for querying the external marketplace.
type MarketplaceCollector interface {
	// Search returns one result page.
	Search(ctx context.Context, q SearchQuery) (*SearchPage, error)
}

// TokenSource hands out a valid marketplace access token.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// DescriptionFetcher loads the description of a listing from its item page.
type DescriptionFetcher interface {
	FetchDescription(ctx context.Context, itemURL string) (string, error)
}
