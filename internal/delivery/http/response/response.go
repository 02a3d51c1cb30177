package response

import (
	"encoding/json"
	"time"

	"github.com/user/market-intel-service/internal/entity"
)

// CreateJobResponse is returned when a keyword run is accepted.
type CreateJobResponse struct {
	JobID        string  `json:"job_id"`
	Status       string  `json:"status"`
	ErrorMessage *string `json:"error_message,omitempty"`
}

// RunSummaryResponse is returned by a synchronous seller run.
type RunSummaryResponse struct {
	JobID        string  `json:"job_id"`
	Status       string  `json:"status"`
	PagesScraped int     `json:"pages_scraped"`
	ItemsFound   int     `json:"items_found"`
	ErrorMessage *string `json:"error_message"`
}

// JobResponse is a DTO for a scrape job, mirroring entity.ScrapeJob.
type JobResponse struct {
	ID           string     `json:"id"`
	Mode         string     `json:"mode"`
	Keyword      *string    `json:"keyword"`
	SellerName   *string    `json:"seller_name"`
	Status       string     `json:"status"`
	PagesScraped int        `json:"pages_scraped"`
	ItemsFound   int        `json:"items_found"`
	ErrorMessage *string    `json:"error_message"`
	CreatedAt    time.Time  `json:"created_at"`
	StartedAt    *time.Time `json:"started_at"`
	CompletedAt  *time.Time `json:"completed_at"`
}

// NewJobResponse converts a job for the wire.
func NewJobResponse(job *entity.ScrapeJob) JobResponse {
	return JobResponse{
		ID:           job.ID,
		Mode:         string(job.Mode),
		Keyword:      job.Keyword,
		SellerName:   job.SellerName,
		Status:       string(job.Status),
		PagesScraped: job.PagesScraped,
		ItemsFound:   job.ItemsFound,
		ErrorMessage: job.ErrorMessage,
		CreatedAt:    job.CreatedAt,
		StartedAt:    job.StartedAt,
		CompletedAt:  job.CompletedAt,
	}
}

// CachedResponse wraps a cached aggregate with its freshness.
type CachedResponse struct {
	Stats         json.RawMessage `json:"stats"`
	LastUpdatedAt time.Time       `json:"last_updated_at"`
	Stale         bool            `json:"stale"`
}

// TriggerResponse acknowledges a scheduler call.
type TriggerResponse struct {
	Status        string     `json:"status"`
	Snapshots     *int       `json:"snapshots,omitempty"`
	LastUpdatedAt *time.Time `json:"last_updated_at,omitempty"`
}
