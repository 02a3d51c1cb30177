package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/user/market-intel-service/internal/delivery/http/middleware"
	"github.com/user/market-intel-service/internal/delivery/http/request"
	"github.com/user/market-intel-service/internal/delivery/http/response"
	"github.com/user/market-intel-service/internal/entity"
	"github.com/user/market-intel-service/internal/usecase"
	"go.uber.org/zap"
)

const (
	defaultTrendLimit = 20
	maxTrendLimit     = 100
)

// RunStarter triggers collection runs.
type RunStarter interface {
	Start(ctx context.Context, userID string, run entity.Run) (*entity.ScrapeJob, error)
	RunSync(ctx context.Context, userID string, run entity.Run) (*entity.ScrapeJob, error)
}

// JobReader loads jobs on behalf of their owner.
type JobReader interface {
	GetForUser(ctx context.Context, jobID, userID string) (*entity.ScrapeJob, error)
}

// PriceAdvisor suggests price bands.
type PriceAdvisor interface {
	Suggest(ctx context.Context, userID, keyword string) (*entity.PriceBand, error)
}

// TrendRanker ranks attribute combinations.
type TrendRanker interface {
	Rank(ctx context.Context, limit int) ([]entity.TrendEntry, error)
}

// VolatilityTracker snapshots active listings and detects surges.
type VolatilityTracker interface {
	SnapshotState(ctx context.Context) (int, error)
	DetectSurges(ctx context.Context, userID string) ([]entity.PriceSurge, error)
}

// PayloadCache serves precomputed aggregates.
type PayloadCache interface {
	Read(ctx context.Context, scope string) (*usecase.CachedPayload, error)
	Refresh(ctx context.Context, scope string) (*entity.CacheRow, error)
}

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	runs       RunStarter
	jobs       JobReader
	pricing    PriceAdvisor
	trends     TrendRanker
	volatility VolatilityTracker
	dashboards PayloadCache
	benchmarks PayloadCache
	stores     map[string]Pinger
	logger     *zap.Logger
}

func NewHandler(
	runs RunStarter,
	jobs JobReader,
	pricing PriceAdvisor,
	trends TrendRanker,
	volatility VolatilityTracker,
	dashboards PayloadCache,
	benchmarks PayloadCache,
	stores map[string]Pinger,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		runs:       runs,
		jobs:       jobs,
		pricing:    pricing,
		trends:     trends,
		volatility: volatility,
		dashboards: dashboards,
		benchmarks: benchmarks,
		stores:     stores,
		logger:     logger,
	}
}

// HandleCreateJob starts a keyword run in the background or runs a seller scan inline.
func (h *Handler) HandleCreateJob(w http.ResponseWriter, r *http.Request) {
	var req request.CreateJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	run, err := entity.NewRun(req.Keyword, req.SellerName)
	if err != nil {
		h.writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	userID := middleware.UserID(r.Context())

	switch run := run.(type) {
	case entity.KeywordRun:
		job, err := h.runs.Start(r.Context(), userID, run)
		if err != nil {
			h.writeUseCaseError(w, r, "failed to start run", err)
			return
		}
		h.writeJSON(w, http.StatusAccepted, response.CreateJobResponse{
			JobID:        job.ID,
			Status:       string(job.Status),
			ErrorMessage: job.ErrorMessage,
		})
	case entity.SellerRun:
		job, err := h.runs.RunSync(r.Context(), userID, run)
		if err != nil {
			h.writeUseCaseError(w, r, "failed to run seller scan", err)
			return
		}
		h.writeJSON(w, http.StatusOK, response.RunSummaryResponse{
			JobID:        job.ID,
			Status:       string(job.Status),
			PagesScraped: job.PagesScraped,
			ItemsFound:   job.ItemsFound,
			ErrorMessage: job.ErrorMessage,
		})
	}
}

// HandleGetJob returns one of the caller's jobs.
func (h *Handler) HandleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.jobs.GetForUser(r.Context(), chi.URLParam(r, "id"), middleware.UserID(r.Context()))
	if err != nil {
		h.writeUseCaseError(w, r, "failed to load job", err)
		return
	}
	h.writeJSON(w, http.StatusOK, response.NewJobResponse(job))
}

// HandleDashboard returns the caller's cached dashboard.
func (h *Handler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	h.writeCached(w, r, h.dashboards, middleware.UserID(r.Context()))
}

// HandleBenchmarks returns the cached cross-user benchmark.
func (h *Handler) HandleBenchmarks(w http.ResponseWriter, r *http.Request) {
	h.writeCached(w, r, h.benchmarks, entity.GlobalScope)
}

// HandlePricing suggests a price band for a keyword. scope=global widens comparables to every user.
func (h *Handler) HandlePricing(w http.ResponseWriter, r *http.Request) {
	keyword := r.URL.Query().Get("keyword")
	if keyword == "" {
		h.writeJSONError(w, "keyword query parameter is required", http.StatusBadRequest)
		return
	}
	userID := middleware.UserID(r.Context())
	if r.URL.Query().Get("scope") == entity.GlobalScope {
		userID = ""
	}

	band, err := h.pricing.Suggest(r.Context(), userID, keyword)
	if err != nil {
		h.writeUseCaseError(w, r, "failed to suggest price", err)
		return
	}
	h.writeJSON(w, http.StatusOK, band)
}

// HandleTrends returns the top trending attribute combinations.
func (h *Handler) HandleTrends(w http.ResponseWriter, r *http.Request) {
	limit := defaultTrendLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			h.writeJSONError(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = min(n, maxTrendLimit)
	}

	trends, err := h.trends.Rank(r.Context(), limit)
	if err != nil {
		h.writeUseCaseError(w, r, "failed to rank trends", err)
		return
	}
	h.writeJSON(w, http.StatusOK, trends)
}

// HandleSurges returns price surges on the caller's active listings.
func (h *Handler) HandleSurges(w http.ResponseWriter, r *http.Request) {
	surges, err := h.volatility.DetectSurges(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		h.writeUseCaseError(w, r, "failed to detect surges", err)
		return
	}
	h.writeJSON(w, http.StatusOK, surges)
}

// HandleSnapshot records a price snapshot of every active listing.
func (h *Handler) HandleSnapshot(w http.ResponseWriter, r *http.Request) {
	n, err := h.volatility.SnapshotState(r.Context())
	if err != nil {
		h.writeUseCaseError(w, r, "failed to snapshot listings", err)
		return
	}
	h.writeJSON(w, http.StatusOK, response.TriggerResponse{Status: "ok", Snapshots: &n})
}

// HandleRefreshBenchmarks recomputes the global benchmark row.
func (h *Handler) HandleRefreshBenchmarks(w http.ResponseWriter, r *http.Request) {
	row, err := h.benchmarks.Refresh(r.Context(), entity.GlobalScope)
	if err != nil {
		h.writeUseCaseError(w, r, "failed to refresh benchmarks", err)
		return
	}
	h.writeJSON(w, http.StatusOK, response.TriggerResponse{Status: "ok", LastUpdatedAt: &row.LastUpdatedAt})
}

// HandleHealthCheck pings every backing store.
func (h *Handler) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := make(map[string]string, len(h.stores))
	healthy := true
	for name, store := range h.stores {
		if err := store.Ping(ctx); err != nil {
			h.logger.Error("health check failed", zap.String("store", name), zap.Error(err))
			status[name] = "unhealthy"
			healthy = false
			continue
		}
		status[name] = "healthy"
	}

	if !healthy {
		h.writeJSON(w, http.StatusServiceUnavailable, status)
		return
	}
	h.writeJSON(w, http.StatusOK, status)
}

func (h *Handler) writeCached(w http.ResponseWriter, r *http.Request, cache PayloadCache, scope string) {
	cached, err := cache.Read(r.Context(), scope)
	if err != nil {
		h.writeUseCaseError(w, r, "failed to read cached aggregate", err)
		return
	}
	h.writeJSON(w, http.StatusOK, response.CachedResponse{
		Stats:         json.RawMessage(cached.Payload),
		LastUpdatedAt: cached.LastUpdatedAt,
		Stale:         cached.Stale,
	})
}

// writeUseCaseError maps error kinds to status codes. Unclassified errors are logged and hidden.
func (h *Handler) writeUseCaseError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	switch {
	case errors.Is(err, entity.ErrUnauthorized):
		h.writeJSONError(w, err.Error(), http.StatusUnauthorized)
	case errors.Is(err, entity.ErrNotFound):
		h.writeJSONError(w, "Not found", http.StatusNotFound)
	case errors.Is(err, entity.ErrRunInProgress), errors.Is(err, entity.ErrInvalidTransition):
		h.writeJSONError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, entity.ErrInsufficientData):
		h.writeJSONError(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, entity.ErrExternalService):
		h.logger.Warn(msg, zap.String("path", r.URL.Path), zap.Error(err))
		h.writeJSONError(w, "Upstream marketplace error", http.StatusBadGateway)
	default:
		h.logger.Error(msg, zap.String("path", r.URL.Path), zap.Error(err))
		h.writeJSONError(w, "Internal server error", http.StatusInternalServerError)
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write JSON response", zap.Error(err))
	}
}

func (h *Handler) writeJSONError(w http.ResponseWriter, message string, status int) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
