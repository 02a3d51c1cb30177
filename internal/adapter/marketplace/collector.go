// Package marketplace talks to the external listing search and identity endpoints.
package marketplace

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/user/market-intel-service/internal/entity"
	"github.com/user/market-intel-service/internal/repository"
	"github.com/user/market-intel-service/pkg/metrics"
	"github.com/user/market-intel-service/pkg/utils"
)

const (
	soldSearchPath   = "/buy/marketplace_insights/v1_beta/item_sales/search"
	activeSearchPath = "/buy/browse/v1/item_summary/search"
	userAgent        = "market-intel-service/1.0"
	maxBodyBytes     = 8 << 20
)

// Collector implements repository.MarketplaceCollector over the marketplace's JSON search API.
type Collector struct {
	baseURL string
	base    *url.URL
	tokens  repository.TokenSource
	client  *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

func NewCollector(baseURL string, tokens repository.TokenSource, timeout time.Duration, requestsPerSecond float64, logger *zap.Logger) (*Collector, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("MARKETPLACE_BASE_URL is required")
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid MARKETPLACE_BASE_URL: %w", err)
	}
	limit := rate.Inf
	if requestsPerSecond > 0 {
		limit = rate.Limit(requestsPerSecond)
	}

	tr := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          64,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		DialContext:           (&net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
	}
	return &Collector{
		baseURL: baseURL,
		base:    base,
		tokens:  tokens,
		client:  &http.Client{Timeout: timeout, Transport: tr},
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger,
	}, nil
}

// invalidator is implemented by token sources that cache.
type invalidator interface {
	Invalidate()
}

type searchResponse struct {
	Total         int          `json:"total"`
	ItemSales     []searchItem `json:"itemSales"`
	ItemSummaries []searchItem `json:"itemSummaries"`
}

type searchItem struct {
	ItemID           string `json:"itemId"`
	Title            string `json:"title"`
	ShortDescription string `json:"shortDescription"`
	Price            struct {
		Value    string `json:"value"`
		Currency string `json:"currency"`
	} `json:"price"`
	ItemWebURL string `json:"itemWebUrl"`
	Image      struct {
		ImageURL string `json:"imageUrl"`
	} `json:"image"`
	LastSoldDate     string `json:"lastSoldDate"`
	ItemCreationDate string `json:"itemCreationDate"`
	WatchCount       *int   `json:"watchCount"`
}

// Search fetches one page of sold or active listings.
func (c *Collector) Search(ctx context.Context, q repository.SearchQuery) (*repository.SearchPage, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: rate limiter: %v", entity.ErrExternalService, err)
	}

	endpoint := c.searchURL(q)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Authorization", "Bearer "+token)

	start := time.Now()
	resp, err := c.client.Do(req)
	metrics.CollectorDuration.WithLabelValues(string(q.Mode)).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("%w: search %s page %d: %v", entity.ErrExternalService, q.Mode, q.Page, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read search response: %v", entity.ErrExternalService, err)
	}
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		// A revoked token must not be served again until it expires.
		if inv, ok := c.tokens.(invalidator); ok {
			inv.Invalidate()
		}
		return nil, fmt.Errorf("%w: search rejected token (status %d)", entity.ErrUnauthorized, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("%w: search returned status %d: %s", entity.ErrExternalService, resp.StatusCode, snippet(body))
	}

	var payload searchResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: decode search response: %v", entity.ErrExternalService, err)
	}
	metrics.CollectorPagesTotal.WithLabelValues(string(q.Mode)).Inc()

	items := payload.ItemSales
	if q.Mode == entity.ModeActive {
		items = payload.ItemSummaries
	}
	listings := make([]*entity.RawListing, 0, len(items))
	for _, it := range items {
		l, ok := c.toListing(it, q.Mode)
		if !ok {
			continue
		}
		listings = append(listings, l)
	}
	return &repository.SearchPage{Listings: listings, Received: len(items)}, nil
}

func (c *Collector) searchURL(q repository.SearchQuery) string {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(q.PageSize))
	params.Set("offset", strconv.Itoa((max(q.Page, 1)-1)*q.PageSize))

	path := soldSearchPath
	if q.Mode == entity.ModeActive {
		path = activeSearchPath
		params.Set("filter", "sellers:{"+q.Term+"}")
	} else {
		params.Set("q", q.Term)
	}
	return c.baseURL + path + "?" + params.Encode()
}

func (c *Collector) toListing(it searchItem, mode entity.ListingMode) (*entity.RawListing, bool) {
	if it.ItemID == "" {
		return nil, false
	}
	price, err := strconv.ParseFloat(strings.TrimSpace(it.Price.Value), 64)
	if err != nil {
		c.logger.Debug("skipping item with unreadable price", zap.String("item_id", it.ItemID), zap.String("price", it.Price.Value))
		return nil, false
	}

	l := &entity.RawListing{
		ExternalID:  it.ItemID,
		Title:       it.Title,
		Description: it.ShortDescription,
		Price:       price,
		Currency:    it.Price.Currency,
		ItemURL:     c.absolute(it.ItemWebURL),
		ImageURL:    c.absolute(it.Image.ImageURL),
		Mode:        mode,
	}
	date := it.LastSoldDate
	if mode == entity.ModeActive {
		date = it.ItemCreationDate
		if it.WatchCount != nil {
			w := *it.WatchCount
			l.Watchers = &w
		} else {
			zero := 0
			l.Watchers = &zero
		}
	}
	if ts, err := time.Parse(time.RFC3339, date); err == nil {
		ts = ts.UTC()
		l.ListedAt = &ts
	}
	return l, true
}

// absolute resolves links some marketplace sandboxes return relative to the API host.
func (c *Collector) absolute(ref string) string {
	if ref == "" {
		return ""
	}
	abs, err := utils.ToAbsoluteURL(c.base, ref)
	if err != nil {
		return ref
	}
	return abs
}

const snippetBytes = 200

// snippet shortens an error body for messages without splitting a UTF-8 sequence.
func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) <= snippetBytes {
		return s
	}
	n := snippetBytes
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
