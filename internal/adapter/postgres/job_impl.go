package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/user/market-intel-service/internal/entity"
)

// JobRepoImpl implements repository.JobRepository on the scrape_jobs table.
type JobRepoImpl struct {
	db *pgxpool.Pool
}

// NewJobRepo creates a new JobRepoImpl.
func NewJobRepo(db *pgxpool.Pool) *JobRepoImpl {
	return &JobRepoImpl{db: db}
}

const jobColumns = `id::text, user_id, mode, keyword, seller_name, status, pages_scraped, items_found,
	error_message, created_at, started_at, completed_at`

// Create inserts a new job.
func (r *JobRepoImpl) Create(ctx context.Context, job *entity.ScrapeJob) error {
	query := `
		INSERT INTO scrape_jobs (id, user_id, mode, keyword, seller_name, status, pages_scraped, items_found, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.db.Exec(ctx, query,
		job.ID,
		job.UserID,
		string(job.Mode),
		job.Keyword,
		job.SellerName,
		string(job.Status),
		job.PagesScraped,
		job.ItemsFound,
		job.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert scrape job: %w", err)
	}
	return nil
}

// FindByID returns entity.ErrNotFound when no job has the id.
func (r *JobRepoImpl) FindByID(ctx context.Context, id string) (*entity.ScrapeJob, error) {
	query := `SELECT ` + jobColumns + ` FROM scrape_jobs WHERE id = $1`
	job, err := scanJob(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, entity.ErrNotFound
		}
		return nil, fmt.Errorf("failed to load scrape job %s: %w", id, err)
	}
	return job, nil
}

// MarkRunning moves a pending job to running.
func (r *JobRepoImpl) MarkRunning(ctx context.Context, id string, at time.Time) (bool, error) {
	query := `
		UPDATE scrape_jobs SET status = 'running', started_at = $2
		WHERE id = $1 AND status = 'pending'
	`
	return r.exec(ctx, "mark scrape job running", query, id, at)
}

// UpdateProgress overwrites the counters of a running job. The update is rejected when
// either counter would decrease.
func (r *JobRepoImpl) UpdateProgress(ctx context.Context, id string, pages, items int) (bool, error) {
	query := `
		UPDATE scrape_jobs SET pages_scraped = $2, items_found = $3
		WHERE id = $1 AND status = 'running' AND pages_scraped <= $2 AND items_found <= $3
	`
	return r.exec(ctx, "update scrape job progress", query, id, pages, items)
}

// Finish moves a running job to completed or failed. A nil items leaves the counter as is.
func (r *JobRepoImpl) Finish(ctx context.Context, id string, status entity.JobStatus, items *int, errMsg *string, at time.Time) (bool, error) {
	query := `
		UPDATE scrape_jobs
		SET status = $2,
			items_found = COALESCE($3, items_found),
			error_message = $4,
			completed_at = $5
		WHERE id = $1 AND status = 'running'
	`
	return r.exec(ctx, "finish scrape job", query, id, string(status), items, errMsg, at)
}

// ListRecent returns the newest jobs of a user.
func (r *JobRepoImpl) ListRecent(ctx context.Context, userID string, limit int) ([]*entity.ScrapeJob, error) {
	query := `SELECT ` + jobColumns + ` FROM scrape_jobs WHERE user_id = $1 ORDER BY created_at DESC, id LIMIT $2`
	rows, err := r.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list scrape jobs: %w", err)
	}
	defer rows.Close()

	jobs := make([]*entity.ScrapeJob, 0, limit)
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan scrape job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func (r *JobRepoImpl) exec(ctx context.Context, op, query string, args ...any) (bool, error) {
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to %s: %w", op, err)
	}
	return tag.RowsAffected() == 1, nil
}

func scanJob(row pgx.Row) (*entity.ScrapeJob, error) {
	var (
		job          entity.ScrapeJob
		mode, status string
	)
	err := row.Scan(
		&job.ID,
		&job.UserID,
		&mode,
		&job.Keyword,
		&job.SellerName,
		&status,
		&job.PagesScraped,
		&job.ItemsFound,
		&job.ErrorMessage,
		&job.CreatedAt,
		&job.StartedAt,
		&job.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	job.Mode = entity.ListingMode(mode)
	job.Status = entity.JobStatus(status)
	return &job, nil
}
