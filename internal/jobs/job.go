// Package jobs tracks the lifecycle of asynchronous enrichment and scraping
// runs so pollers can observe progress and request cancellation.
package jobs

import (
	"math"
	"time"

	"github.com/rotisserie/eris"
)

// Type identifies the shape of a run.
type Type string

const (
	TypeEnrichment Type = "enrichment"
	TypeScraping   Type = "scraping"
)

// Status is a job lifecycle state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// IsTerminal reports whether no further transitions are allowed.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// IsActive reports whether the job is pending or running.
func (s Status) IsActive() bool {
	return s == StatusPending || s == StatusRunning
}

var (
	// ErrNotFound is returned when a job id has no record.
	ErrNotFound = eris.New("jobs: job not found")
	// ErrTerminal is returned when transitioning a job that already finished.
	ErrTerminal = eris.New("jobs: job already finished")
)

// Progress counts processed items. Percentage is always
// round(Current/Total*100).
type Progress struct {
	Current    int `json:"current"`
	Total      int `json:"total"`
	Percentage int `json:"percentage"`
}

// NewProgress clamps current into [0, total] and computes the percentage.
func NewProgress(current, total int) Progress {
	if total < 0 {
		total = 0
	}
	if current < 0 {
		current = 0
	}
	if current > total {
		current = total
	}
	p := Progress{Current: current, Total: total}
	if total > 0 {
		p.Percentage = int(math.Round(float64(current) / float64(total) * 100))
	}
	return p
}

// Job is the durable record of one run.
type Job struct {
	ID          string         `json:"id"`
	Type        Type           `json:"type"`
	Status      Status         `json:"status"`
	Progress    Progress       `json:"progress"`
	StartedAt   time.Time      `json:"started_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	Error       string         `json:"error,omitempty"`
}

// Duration is the elapsed run time, measured to now for active jobs.
func (j *Job) Duration(now time.Time) time.Duration {
	if j.CompletedAt != nil {
		return j.CompletedAt.Sub(j.StartedAt)
	}
	return now.Sub(j.StartedAt)
}

func (j *Job) mergeMetadata(md map[string]any) {
	if len(md) == 0 {
		return
	}
	if j.Metadata == nil {
		j.Metadata = make(map[string]any, len(md))
	}
	for k, v := range md {
		j.Metadata[k] = v
	}
}
