package entity

import "time"

// JobStatus is the state of a ScrapeJob.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// Terminal reports whether no further transition may leave this status.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// ScrapeJob mirrors the `scrape_jobs` PostgreSQL table schema.
type ScrapeJob struct {
	ID           string
	UserID       string
	Mode         ListingMode
	Keyword      *string // nil for seller runs
	SellerName   *string // nil for keyword runs
	Status       JobStatus
	PagesScraped int
	ItemsFound   int
	ErrorMessage *string
	CreatedAt    time.Time
	StartedAt    *time.Time
	CompletedAt  *time.Time
}

// CanTransition reports whether the job may move from its current status to next.
func (j *ScrapeJob) CanTransition(next JobStatus) bool {
	switch j.Status {
	case JobPending:
		return next == JobRunning
	case JobRunning:
		return next == JobCompleted || next == JobFailed
	default:
		return false
	}
}

// SearchTerm returns the keyword or seller name the job was created for.
func (j *ScrapeJob) SearchTerm() string {
	if j.Keyword != nil {
		return *j.Keyword
	}
	if j.SellerName != nil {
		return *j.SellerName
	}
	return ""
}
