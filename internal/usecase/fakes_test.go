package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/user/market-intel-service/internal/entity"
	"github.com/user/market-intel-service/internal/repository"
)

// memJobRepo mimics the conditional updates of the Postgres job repository.
type memJobRepo struct {
	mu   sync.Mutex
	jobs map[string]*entity.ScrapeJob
}

func newMemJobRepo() *memJobRepo {
	return &memJobRepo{jobs: map[string]*entity.ScrapeJob{}}
}

func (r *memJobRepo) Create(ctx context.Context, job *entity.ScrapeJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *job
	r.jobs[job.ID] = &cp
	return nil
}

func (r *memJobRepo) FindByID(ctx context.Context, id string) (*entity.ScrapeJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return nil, entity.ErrNotFound
	}
	cp := *j
	return &cp, nil
}

func (r *memJobRepo) MarkRunning(ctx context.Context, id string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok || !j.CanTransition(entity.JobRunning) {
		return false, nil
	}
	j.Status = entity.JobRunning
	j.StartedAt = &at
	return true, nil
}

func (r *memJobRepo) UpdateProgress(ctx context.Context, id string, pages, items int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok || j.Status != entity.JobRunning || pages < j.PagesScraped || items < j.ItemsFound {
		return false, nil
	}
	j.PagesScraped, j.ItemsFound = pages, items
	return true, nil
}

func (r *memJobRepo) Finish(ctx context.Context, id string, status entity.JobStatus, items *int, errMsg *string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok || !j.CanTransition(status) {
		return false, nil
	}
	j.Status = status
	j.CompletedAt = &at
	if items != nil {
		j.ItemsFound = *items
	}
	j.ErrorMessage = errMsg
	return true, nil
}

func (r *memJobRepo) ListRecent(ctx context.Context, userID string, limit int) ([]*entity.ScrapeJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.ScrapeJob
	for _, j := range r.jobs {
		if j.UserID == userID {
			cp := *j
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].CreatedAt.After(out[b].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// memListingRepo keeps listings and signals in memory.
type memListingRepo struct {
	mu       sync.Mutex
	nextID   int64
	rows     []*entity.RawListing
	signals  map[int64]*entity.ParsedSignal
	saveErr  error
	saveCall int
	failOn   int // fail the n-th SavePage call when > 0
	obs      []entity.TrendObservation
}

func newMemListingRepo() *memListingRepo {
	return &memListingRepo{signals: map[int64]*entity.ParsedSignal{}}
}

func (r *memListingRepo) SavePage(ctx context.Context, items []entity.ParsedListing) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saveCall++
	if r.failOn > 0 && r.saveCall == r.failOn {
		return 0, r.saveErr
	}
	inserted := 0
	for _, it := range items {
		dup := false
		for _, row := range r.rows {
			if row.JobID == it.Listing.JobID && row.ExternalID == it.Listing.ExternalID {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		r.nextID++
		cp := *it.Listing
		cp.ID = r.nextID
		if cp.CreatedAt.IsZero() {
			cp.CreatedAt = time.Now()
		}
		r.rows = append(r.rows, &cp)
		sig := *it.Signal
		sig.ListingID = cp.ID
		r.signals[cp.ID] = &sig
		inserted++
	}
	return inserted, nil
}

func (r *memListingRepo) CountByJob(ctx context.Context, jobID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, row := range r.rows {
		if row.JobID == jobID {
			n++
		}
	}
	return n, nil
}

func (r *memListingRepo) SoldPrices(ctx context.Context, userID, keyword string) ([]float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []float64
	for _, row := range r.rows {
		if row.Mode != entity.ModeSold || (userID != "" && row.UserID != userID) {
			continue
		}
		if keyword != "" && !strings.EqualFold(row.SearchTerm, keyword) {
			continue
		}
		out = append(out, row.Price)
	}
	return out, nil
}

func (r *memListingRepo) LatestActive(ctx context.Context, userID string) ([]*entity.RawListing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	latest := map[string]*entity.RawListing{}
	for _, row := range r.rows {
		if row.Mode != entity.ModeActive || (userID != "" && row.UserID != userID) {
			continue
		}
		if cur, ok := latest[row.ExternalID]; !ok || row.ID > cur.ID {
			latest[row.ExternalID] = row
		}
	}
	out := make([]*entity.RawListing, 0, len(latest))
	for _, row := range latest {
		out = append(out, row)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ExternalID < out[b].ExternalID })
	return out, nil
}

func (r *memListingRepo) CountByMode(ctx context.Context, userID string) (entity.ModeCounts, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var c entity.ModeCounts
	for _, row := range r.rows {
		if userID != "" && row.UserID != userID {
			continue
		}
		if row.Mode == entity.ModeSold {
			c.Sold++
		} else {
			c.Active++
		}
	}
	return c, nil
}

func (r *memListingRepo) TopKeywords(ctx context.Context, userID string, limit int) ([]entity.KeywordCount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := map[string]int{}
	for _, row := range r.rows {
		if row.Mode == entity.ModeSold && (userID == "" || row.UserID == userID) {
			counts[row.SearchTerm]++
		}
	}
	out := make([]entity.KeywordCount, 0, len(counts))
	for k, n := range counts {
		out = append(out, entity.KeywordCount{Keyword: k, Count: n})
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].Count != out[b].Count {
			return out[a].Count > out[b].Count
		}
		return out[a].Keyword < out[b].Keyword
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memListingRepo) TrendObservations(ctx context.Context, since time.Time) ([]entity.TrendObservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []entity.TrendObservation
	for _, o := range r.obs {
		if o.ObservedAt.After(since) {
			out = append(out, o)
		}
	}
	return out, nil
}

func (r *memListingRepo) CountUsers(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	users := map[string]struct{}{}
	for _, row := range r.rows {
		users[row.UserID] = struct{}{}
	}
	return len(users), nil
}

// add inserts a listing directly, bypassing the orchestrator.
func (r *memListingRepo) add(l entity.RawListing) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	l.ID = r.nextID
	r.rows = append(r.rows, &l)
}

type memSnapshotRepo struct {
	mu    sync.Mutex
	snaps []entity.PriceSnapshot
}

func (r *memSnapshotRepo) Append(ctx context.Context, snaps []*entity.PriceSnapshot) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range snaps {
		r.snaps = append(r.snaps, *s)
	}
	return len(snaps), nil
}

func (r *memSnapshotRepo) Series(ctx context.Context, ids []string) (map[string][]entity.PriceSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	want := map[string]bool{}
	for _, id := range ids {
		want[id] = true
	}
	out := map[string][]entity.PriceSnapshot{}
	for _, s := range r.snaps {
		if ids != nil && !want[s.ListingID] {
			continue
		}
		out[s.ListingID] = append(out[s.ListingID], s)
	}
	return out, nil
}

type memCacheRepo struct {
	mu   sync.Mutex
	rows map[string]entity.CacheRow
	puts int
}

func newMemCacheRepo() *memCacheRepo {
	return &memCacheRepo{rows: map[string]entity.CacheRow{}}
}

func (r *memCacheRepo) Get(ctx context.Context, scope string) (*entity.CacheRow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[scope]
	if !ok {
		return nil, entity.ErrNotFound
	}
	return &row, nil
}

func (r *memCacheRepo) Put(ctx context.Context, row *entity.CacheRow) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[row.Scope] = *row
	r.puts++
	return nil
}

func (r *memCacheRepo) putCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.puts
}

type memRunLock struct {
	mu   sync.Mutex
	held map[string]string
	seq  int
}

func newMemRunLock() *memRunLock { return &memRunLock{held: map[string]string{}} }

func (l *memRunLock) Acquire(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[key]; ok {
		return "", false, nil
	}
	l.seq++
	token := fmt.Sprintf("lease-%d", l.seq)
	l.held[key] = token
	return token, true, nil
}

func (l *memRunLock) Release(ctx context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] == token {
		delete(l.held, key)
	}
	return nil
}

// expire drops a key as if its TTL had elapsed.
func (l *memRunLock) expire(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, key)
}

func (l *memRunLock) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.held)
}

// fakeCollector serves canned pages; errAt fails that page. dropped[p] items of page p are
// counted as received but left out of the listings, as the marketplace collector does with
// malformed items.
type fakeCollector struct {
	mu      sync.Mutex
	pages   map[int][]*entity.RawListing
	dropped map[int]int
	errAt   int
	err     error
	queries []repository.SearchQuery
}

func (c *fakeCollector) Search(ctx context.Context, q repository.SearchQuery) (*repository.SearchPage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queries = append(c.queries, q)
	if c.errAt == q.Page {
		return nil, c.err
	}
	var out []*entity.RawListing
	for _, l := range c.pages[q.Page] {
		cp := *l
		out = append(out, &cp)
	}
	return &repository.SearchPage{Listings: out, Received: len(out) + c.dropped[q.Page]}, nil
}

func (c *fakeCollector) calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queries)
}

type fakeTokens struct{ err error }

func (f fakeTokens) Token(ctx context.Context) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "token", nil
}

type fakeEnricher struct {
	calls   int
	desc    string
	err     error
	onFetch func()
}

func (f *fakeEnricher) FetchDescription(ctx context.Context, itemURL string) (string, error) {
	f.calls++
	if f.onFetch != nil {
		f.onFetch()
	}
	return f.desc, f.err
}

var errStorage = errors.New("connection reset by peer")
