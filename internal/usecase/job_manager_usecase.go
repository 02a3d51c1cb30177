package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/user/market-intel-service/internal/entity"
	"github.com/user/market-intel-service/internal/repository"
)

// JobManagerUseCase owns the scrape job state machine: pending -> running -> completed|failed.
type JobManagerUseCase struct {
	repo   repository.JobRepository
	logger *zap.Logger
	now    func() time.Time
}

// NewJobManagerUseCase creates a new instance of the job manager.
func NewJobManagerUseCase(repo repository.JobRepository, logger *zap.Logger) *JobManagerUseCase {
	return &JobManagerUseCase{repo: repo, logger: logger, now: time.Now}
}

// Create inserts a pending job for the run.
func (uc *JobManagerUseCase) Create(ctx context.Context, userID string, run entity.Run) (*entity.ScrapeJob, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: missing user id", entity.ErrUnauthorized)
	}
	job := &entity.ScrapeJob{
		ID:        uuid.NewString(),
		UserID:    userID,
		Mode:      run.Mode(),
		Status:    entity.JobPending,
		CreatedAt: uc.now().UTC(),
	}
	switch r := run.(type) {
	case entity.KeywordRun:
		job.Keyword = &r.Keyword
	case entity.SellerRun:
		job.SellerName = &r.SellerName
	}

	if err := uc.repo.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}
	uc.logger.Info("job created",
		zap.String("job_id", job.ID),
		zap.String("user_id", userID),
		zap.String("mode", string(job.Mode)),
		zap.String("term", run.Term()))
	return job, nil
}

// MarkRunning moves a pending job to running and stamps started_at.
func (uc *JobManagerUseCase) MarkRunning(ctx context.Context, jobID string) error {
	applied, err := uc.repo.MarkRunning(ctx, jobID, uc.now().UTC())
	if err != nil {
		return fmt.Errorf("failed to mark job %s running: %w", jobID, err)
	}
	if !applied {
		return uc.rejected(ctx, jobID, entity.JobRunning)
	}
	return nil
}

// UpdateProgress overwrites the counters of a running job. Counters may not go down.
func (uc *JobManagerUseCase) UpdateProgress(ctx context.Context, jobID string, pages, items int) error {
	applied, err := uc.repo.UpdateProgress(ctx, jobID, pages, items)
	if err != nil {
		return fmt.Errorf("failed to update progress of job %s: %w", jobID, err)
	}
	if applied {
		return nil
	}
	job, err := uc.repo.FindByID(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status != entity.JobRunning {
		return fmt.Errorf("%w: cannot update progress of %s job %s", entity.ErrInvalidTransition, job.Status, jobID)
	}
	return fmt.Errorf("%w: progress of job %s would decrease (%d/%d -> %d/%d)",
		entity.ErrInvalidTransition, jobID, job.PagesScraped, job.ItemsFound, pages, items)
}

// Complete moves a running job to completed with its final item count.
func (uc *JobManagerUseCase) Complete(ctx context.Context, jobID string, items int) error {
	applied, err := uc.repo.Finish(ctx, jobID, entity.JobCompleted, &items, nil, uc.now().UTC())
	if err != nil {
		return fmt.Errorf("failed to complete job %s: %w", jobID, err)
	}
	if !applied {
		return uc.rejected(ctx, jobID, entity.JobCompleted)
	}
	return nil
}

// Fail moves a running job to failed and records the reason.
func (uc *JobManagerUseCase) Fail(ctx context.Context, jobID, message string) error {
	if strings.TrimSpace(message) == "" {
		message = "unknown error"
	}
	applied, err := uc.repo.Finish(ctx, jobID, entity.JobFailed, nil, &message, uc.now().UTC())
	if err != nil {
		return fmt.Errorf("failed to mark job %s failed: %w", jobID, err)
	}
	if !applied {
		return uc.rejected(ctx, jobID, entity.JobFailed)
	}
	return nil
}

// GetByID returns the job or entity.ErrNotFound.
func (uc *JobManagerUseCase) GetByID(ctx context.Context, jobID string) (*entity.ScrapeJob, error) {
	if _, err := uuid.Parse(jobID); err != nil {
		return nil, fmt.Errorf("%w: job %s", entity.ErrNotFound, jobID)
	}
	return uc.repo.FindByID(ctx, jobID)
}

// GetForUser returns the job only when userID owns it; other owners see entity.ErrNotFound.
func (uc *JobManagerUseCase) GetForUser(ctx context.Context, jobID, userID string) (*entity.ScrapeJob, error) {
	job, err := uc.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.UserID != userID {
		return nil, fmt.Errorf("%w: job %s", entity.ErrNotFound, jobID)
	}
	return job, nil
}

// ListRecent returns the newest jobs of a user.
func (uc *JobManagerUseCase) ListRecent(ctx context.Context, userID string, limit int) ([]*entity.ScrapeJob, error) {
	jobs, err := uc.repo.ListRecent(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs for %s: %w", userID, err)
	}
	return jobs, nil
}

// rejected explains why a conditional update did not apply.
func (uc *JobManagerUseCase) rejected(ctx context.Context, jobID string, next entity.JobStatus) error {
	job, err := uc.repo.FindByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, entity.ErrNotFound) {
			return err
		}
		return fmt.Errorf("failed to load job %s: %w", jobID, err)
	}
	uc.logger.Warn("rejected job transition",
		zap.String("job_id", jobID),
		zap.String("from", string(job.Status)),
		zap.String("to", string(next)))
	return fmt.Errorf("%w: job %s is %s, cannot become %s", entity.ErrInvalidTransition, jobID, job.Status, next)
}
