package repository

import (
	"context"
	"time"

	"github.com/user/market-intel-service/internal/entity"
)

// JobRepository defines persistence for scrape jobs. State-changing methods are conditional
// on the current status and report whether the row was changed.
type JobRepository interface {
	// Create inserts a new job.
	Create(ctx context.Context, job *entity.ScrapeJob) error
	// FindByID returns entity.ErrNotFound when no job has the id.
	FindByID(ctx context.Context, id string) (*entity.ScrapeJob, error)
	// MarkRunning moves a pending job to running.
	MarkRunning(ctx context.Context, id string, at time.Time) (bool, error)
	// UpdateProgress overwrites the counters of a running job; counters never decrease.
	UpdateProgress(ctx context.Context, id string, pages, items int) (bool, error)
	// Finish moves a running job to a terminal status.
	Finish(ctx context.Context, id string, status entity.JobStatus, items *int, errMsg *string, at time.Time) (bool, error)
	// ListRecent returns the newest jobs of a user.
	ListRecent(ctx context.Context, userID string, limit int) ([]*entity.ScrapeJob, error)
}
