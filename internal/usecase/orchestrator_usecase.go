package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/user/market-intel-service/internal/entity"
	"github.com/user/market-intel-service/internal/repository"
	"github.com/user/market-intel-service/internal/signal"
	"github.com/user/market-intel-service/internal/worker"
	"github.com/user/market-intel-service/pkg/metrics"
)

// OrchestratorConfig bounds a single collection run.
type OrchestratorConfig struct {
	PageSize           int
	MaxPages           int
	RunTimeout         time.Duration
	EnrichDescriptions bool
}

// OrchestratorUseCase drives collector -> signal parser -> persistence for one run and keeps
// the job record in step.
type OrchestratorUseCase struct {
	jobs      *JobManagerUseCase
	collector repository.MarketplaceCollector
	tokens    repository.TokenSource
	parser    *signal.Parser
	listings  repository.ListingRepository
	enricher  repository.DescriptionFetcher
	lock      repository.RunLock
	pool      *worker.Pool
	cfg       OrchestratorConfig
	logger    *zap.Logger
}

// NewOrchestratorUseCase wires the run pipeline. enricher may be nil.
func NewOrchestratorUseCase(
	jobs *JobManagerUseCase,
	collector repository.MarketplaceCollector,
	tokens repository.TokenSource,
	parser *signal.Parser,
	listings repository.ListingRepository,
	enricher repository.DescriptionFetcher,
	lock repository.RunLock,
	pool *worker.Pool,
	cfg OrchestratorConfig,
	logger *zap.Logger,
) *OrchestratorUseCase {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 50
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 10
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = 10 * time.Minute
	}
	return &OrchestratorUseCase{
		jobs:      jobs,
		collector: collector,
		tokens:    tokens,
		parser:    parser,
		listings:  listings,
		enricher:  enricher,
		lock:      lock,
		pool:      pool,
		cfg:       cfg,
		logger:    logger,
	}
}

// Start creates a job and runs it in the background. The returned job is pending, or failed
// when the run queue had no room.
func (uc *OrchestratorUseCase) Start(ctx context.Context, userID string, run entity.Run) (*entity.ScrapeJob, error) {
	job, lease, err := uc.prepare(ctx, userID, run)
	if err != nil {
		return nil, err
	}

	submitted := uc.pool.Submit(job.ID, func(poolCtx context.Context) {
		defer uc.releaseLock(lease)
		runCtx, cancel := context.WithTimeout(poolCtx, uc.cfg.RunTimeout)
		defer cancel()
		_ = uc.Execute(runCtx, job, run)
	})
	if submitted {
		return job, nil
	}

	uc.releaseLock(lease)
	uc.logger.Warn("run queue full, failing job", zap.String("job_id", job.ID))
	if err := uc.jobs.MarkRunning(ctx, job.ID); err == nil {
		_ = uc.jobs.Fail(ctx, job.ID, "run queue is full, try again later")
		metrics.JobsTotal.WithLabelValues(string(job.Mode), string(entity.JobFailed)).Inc()
	}
	return uc.jobs.GetByID(ctx, job.ID)
}

// RunSync creates a job, runs it inline and returns its final state.
func (uc *OrchestratorUseCase) RunSync(ctx context.Context, userID string, run entity.Run) (*entity.ScrapeJob, error) {
	job, lease, err := uc.prepare(ctx, userID, run)
	if err != nil {
		return nil, err
	}
	defer uc.releaseLock(lease)

	runCtx, cancel := context.WithTimeout(ctx, uc.cfg.RunTimeout)
	defer cancel()
	// A failed run is reported through the job record.
	_ = uc.Execute(runCtx, job, run)

	return uc.jobs.GetByID(context.WithoutCancel(ctx), job.ID)
}

// runLease is a held run lock.
type runLease struct {
	key   string
	token string
}

// prepare takes the run lock and creates the pending job.
func (uc *OrchestratorUseCase) prepare(ctx context.Context, userID string, run entity.Run) (*entity.ScrapeJob, runLease, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, runLease{}, fmt.Errorf("%w: missing user id", entity.ErrUnauthorized)
	}
	lease := runLease{key: runLockKey(userID, run)}
	token, acquired, err := uc.lock.Acquire(ctx, lease.key, uc.cfg.RunTimeout)
	if err != nil {
		return nil, runLease{}, fmt.Errorf("failed to acquire run lock: %w", err)
	}
	if !acquired {
		return nil, runLease{}, fmt.Errorf("%w: %s %q", entity.ErrRunInProgress, run.Mode(), run.Term())
	}
	lease.token = token

	job, err := uc.jobs.Create(ctx, userID, run)
	if err != nil {
		uc.releaseLock(lease)
		return nil, runLease{}, err
	}
	return job, lease, nil
}

// Execute performs the run for an already created job. Any collector or storage error fails
// the job; pages persisted before the error are kept.
func (uc *OrchestratorUseCase) Execute(ctx context.Context, job *entity.ScrapeJob, run entity.Run) error {
	log := uc.logger.With(zap.String("job_id", job.ID), zap.String("mode", string(run.Mode())), zap.String("term", run.Term()))

	if err := uc.jobs.MarkRunning(ctx, job.ID); err != nil {
		log.Error("failed to start job", zap.Error(err))
		return err
	}
	log.Info("run started")

	// Credentials are checked before any listing is requested.
	if _, err := uc.tokens.Token(ctx); err != nil {
		return uc.fail(ctx, job, log, err)
	}

	total := 0
	for page := 1; page <= uc.cfg.MaxPages; page++ {
		res, err := uc.collector.Search(ctx, repository.SearchQuery{
			Mode:     run.Mode(),
			Term:     run.Term(),
			Page:     page,
			PageSize: uc.cfg.PageSize,
		})
		if err != nil {
			return uc.fail(ctx, job, log, err)
		}

		parsed := uc.parsePage(ctx, job, run, res.Listings, log)
		inserted, err := uc.listings.SavePage(ctx, parsed)
		if err != nil {
			return uc.fail(ctx, job, log, fmt.Errorf("failed to persist page %d: %w", page, err))
		}
		total += inserted
		metrics.ListingsPersistedTotal.WithLabelValues(string(run.Mode())).Add(float64(inserted))

		if err := uc.jobs.UpdateProgress(ctx, job.ID, page, total); err != nil {
			return uc.fail(ctx, job, log, err)
		}
		log.Debug("page processed", zap.Int("page", page), zap.Int("received", res.Received),
			zap.Int("usable", len(res.Listings)), zap.Int("inserted", inserted))

		// Items dropped as malformed still count towards a full page.
		if res.Received < uc.cfg.PageSize {
			break
		}
	}

	found, err := uc.listings.CountByJob(ctx, job.ID)
	if err != nil {
		return uc.fail(ctx, job, log, fmt.Errorf("failed to count listings: %w", err))
	}
	if err := uc.jobs.Complete(ctx, job.ID, found); err != nil {
		log.Error("failed to complete job", zap.Error(err))
		return err
	}
	metrics.JobsTotal.WithLabelValues(string(run.Mode()), string(entity.JobCompleted)).Inc()
	log.Info("run completed", zap.Int("items_found", found))
	return nil
}

// parsePage stamps ownership on each listing and extracts its signal. Items whose signal
// cannot be parsed are skipped.
func (uc *OrchestratorUseCase) parsePage(ctx context.Context, job *entity.ScrapeJob, run entity.Run, items []*entity.RawListing, log *zap.Logger) []entity.ParsedListing {
	out := make([]entity.ParsedListing, 0, len(items))
	for _, l := range items {
		l.JobID = job.ID
		l.UserID = job.UserID
		l.SearchTerm = run.Term()
		l.Mode = run.Mode()

		if uc.cfg.EnrichDescriptions && uc.enricher != nil && strings.TrimSpace(l.Description) == "" && l.ItemURL != "" {
			desc, err := uc.enricher.FetchDescription(ctx, l.ItemURL)
			if err != nil {
				log.Warn("description enrichment failed", zap.String("external_id", l.ExternalID), zap.Error(err))
			} else {
				l.Description = desc
			}
		}

		sig, err := uc.parser.Parse(signal.Input{Title: l.Title, Description: l.Description, ImageURL: l.ImageURL})
		if err != nil {
			metrics.SignalParseFailuresTotal.Inc()
			log.Debug("skipping unparseable listing", zap.String("external_id", l.ExternalID), zap.Error(err))
			continue
		}
		l.Description = signal.CleanDescription(l.Description)
		out = append(out, entity.ParsedListing{Listing: l, Signal: sig})
	}
	return out
}

func (uc *OrchestratorUseCase) fail(ctx context.Context, job *entity.ScrapeJob, log *zap.Logger, cause error) error {
	log.Error("run failed", zap.Error(cause))
	// The run context may already be expired; recording the outcome must still happen.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := uc.jobs.Fail(ctx, job.ID, cause.Error()); err != nil {
		log.Error("failed to mark job failed", zap.Error(err))
	}
	metrics.JobsTotal.WithLabelValues(string(job.Mode), string(entity.JobFailed)).Inc()
	return cause
}

func (uc *OrchestratorUseCase) releaseLock(lease runLease) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := uc.lock.Release(ctx, lease.key, lease.token); err != nil {
		uc.logger.Warn("failed to release run lock", zap.String("key", lease.key), zap.Error(err))
	}
}

// runLockKey identifies "one active run per user, mode and term".
func runLockKey(userID string, run entity.Run) string {
	return userID + "|" + string(run.Mode()) + "|" + strings.ToLower(run.Term())
}
