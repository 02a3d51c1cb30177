package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/user/market-intel-service/internal/entity"
)

// ListingRepoImpl implements repository.ListingRepository on raw_listings and parsed_signals.
type ListingRepoImpl struct {
	db *pgxpool.Pool
}

// NewListingRepo creates a new ListingRepoImpl.
func NewListingRepo(db *pgxpool.Pool) *ListingRepoImpl {
	return &ListingRepoImpl{db: db}
}

// SavePage stores a page of listings and their signals in one transaction. Listings already
// stored for the same job are skipped together with their signal.
func (r *ListingRepoImpl) SavePage(ctx context.Context, items []entity.ParsedListing) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	insertListing := `
		INSERT INTO raw_listings (job_id, external_id, title, description, price, currency, listed_at,
			item_url, image_url, watchers, user_id, search_term, mode)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (job_id, external_id) DO NOTHING
		RETURNING id, created_at
	`
	insertSignal := `
		INSERT INTO parsed_signals (listing_id, style, subject, medium, width_in, height_in, parsed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (listing_id) DO NOTHING
	`

	batch := &pgx.Batch{}
	inserted := 0
	for _, item := range items {
		l := item.Listing
		err := tx.QueryRow(ctx, insertListing,
			l.JobID, l.ExternalID, l.Title, l.Description, l.Price, l.Currency, l.ListedAt,
			l.ItemURL, l.ImageURL, l.Watchers, l.UserID, l.SearchTerm, string(l.Mode),
		).Scan(&l.ID, &l.CreatedAt)
		if errors.Is(err, pgx.ErrNoRows) {
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("failed to insert listing %s: %w", l.ExternalID, err)
		}
		inserted++

		if s := item.Signal; s != nil {
			s.ListingID = l.ID
			if s.ParsedAt.IsZero() {
				s.ParsedAt = time.Now().UTC()
			}
			batch.Queue(insertSignal, s.ListingID, s.Style, s.Subject, s.Medium, s.WidthIn, s.HeightIn, s.ParsedAt)
		}
	}

	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return 0, fmt.Errorf("failed to insert parsed signals: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit listing page: %w", err)
	}
	return inserted, nil
}

// CountByJob returns the number of listing rows produced by a job.
func (r *ListingRepoImpl) CountByJob(ctx context.Context, jobID string) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM raw_listings WHERE job_id = $1`, jobID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count listings of job %s: %w", jobID, err)
	}
	return n, nil
}

// SoldPrices returns sold prices. Empty userID or keyword disables that filter; keywords
// match case-insensitively.
func (r *ListingRepoImpl) SoldPrices(ctx context.Context, userID, keyword string) ([]float64, error) {
	query := `
		SELECT price FROM raw_listings
		WHERE mode = 'sold'
			AND ($1 = '' OR user_id = $1)
			AND ($2 = '' OR lower(search_term) = $2)
	`
	rows, err := r.db.Query(ctx, query, userID, strings.ToLower(strings.TrimSpace(keyword)))
	if err != nil {
		return nil, fmt.Errorf("failed to query sold prices: %w", err)
	}
	prices, err := pgx.CollectRows(rows, pgx.RowTo[float64])
	if err != nil {
		return nil, fmt.Errorf("failed to scan sold prices: %w", err)
	}
	return prices, nil
}

// LatestActive returns the newest row of every active listing, ordered by external id.
func (r *ListingRepoImpl) LatestActive(ctx context.Context, userID string) ([]*entity.RawListing, error) {
	query := `
		SELECT DISTINCT ON (external_id)
			id, job_id::text, external_id, title, description, price, currency, listed_at,
			item_url, image_url, watchers, user_id, search_term, mode, created_at
		FROM raw_listings
		WHERE mode = 'active' AND ($1 = '' OR user_id = $1)
		ORDER BY external_id, id DESC
	`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query active listings: %w", err)
	}
	defer rows.Close()

	var listings []*entity.RawListing
	for rows.Next() {
		var (
			l    entity.RawListing
			mode string
		)
		err := rows.Scan(&l.ID, &l.JobID, &l.ExternalID, &l.Title, &l.Description, &l.Price, &l.Currency,
			&l.ListedAt, &l.ItemURL, &l.ImageURL, &l.Watchers, &l.UserID, &l.SearchTerm, &mode, &l.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan active listing: %w", err)
		}
		l.Mode = entity.ListingMode(mode)
		listings = append(listings, &l)
	}
	return listings, rows.Err()
}

// CountByMode tallies listing rows per mode.
func (r *ListingRepoImpl) CountByMode(ctx context.Context, userID string) (entity.ModeCounts, error) {
	query := `
		SELECT
			COUNT(*) FILTER (WHERE mode = 'sold'),
			COUNT(*) FILTER (WHERE mode = 'active')
		FROM raw_listings
		WHERE $1 = '' OR user_id = $1
	`
	var c entity.ModeCounts
	if err := r.db.QueryRow(ctx, query, userID).Scan(&c.Sold, &c.Active); err != nil {
		return entity.ModeCounts{}, fmt.Errorf("failed to count listings by mode: %w", err)
	}
	return c, nil
}

// TopKeywords returns the keywords with the most sold listings, ties broken alphabetically.
func (r *ListingRepoImpl) TopKeywords(ctx context.Context, userID string, limit int) ([]entity.KeywordCount, error) {
	query := `
		SELECT search_term, COUNT(*) AS n
		FROM raw_listings
		WHERE mode = 'sold' AND ($1 = '' OR user_id = $1)
		GROUP BY search_term
		ORDER BY n DESC, search_term
		LIMIT $2
	`
	rows, err := r.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query top keywords: %w", err)
	}
	counts, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (entity.KeywordCount, error) {
		var kc entity.KeywordCount
		err := row.Scan(&kc.Keyword, &kc.Count)
		return kc, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan top keywords: %w", err)
	}
	return counts, nil
}

// TrendObservations returns parsed listings observed after since. A listing is observed at
// its marketplace date, or at collection time when the marketplace gave none.
func (r *ListingRepoImpl) TrendObservations(ctx context.Context, since time.Time) ([]entity.TrendObservation, error) {
	query := `
		SELECT s.style, s.subject, s.medium, l.mode, l.price, COALESCE(l.watchers, 0),
			COALESCE(l.listed_at, l.created_at) AS observed_at
		FROM raw_listings l
		JOIN parsed_signals s ON s.listing_id = l.id
		WHERE COALESCE(l.listed_at, l.created_at) > $1
	`
	rows, err := r.db.Query(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query trend observations: %w", err)
	}
	obs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (entity.TrendObservation, error) {
		var (
			o    entity.TrendObservation
			mode string
		)
		err := row.Scan(&o.Style, &o.Subject, &o.Medium, &mode, &o.Price, &o.Watchers, &o.ObservedAt)
		o.Mode = entity.ListingMode(mode)
		return o, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan trend observations: %w", err)
	}
	return obs, nil
}

// CountUsers returns the number of distinct users with listings.
func (r *ListingRepoImpl) CountUsers(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(DISTINCT user_id) FROM raw_listings`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return n, nil
}
