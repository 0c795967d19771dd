package model

import "time"

// JobStatus represents the state of a harvest job.
type JobStatus string

const (
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// Terminal reports whether the status admits no further transitions.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// Job is one harvesting run over a source listing. At most one Job per
// source type may be running at any instant.
type Job struct {
	ID         string     `json:"id"`
	SourceType SourceType `json:"source_type"`
	Status     JobStatus  `json:"status"`

	CurrentPage int `json:"current_page"`
	TotalPages  int `json:"total_pages"`

	RecordsSeen    int `json:"records_seen"`
	RecordsCreated int `json:"records_created"`
	RecordsUpdated int `json:"records_updated"`

	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// JobProgress is a checkpoint written after each harvested page batch.
type JobProgress struct {
	CurrentPage    int
	TotalPages     int
	RecordsSeen    int
	RecordsCreated int
	RecordsUpdated int
}
