// Package store provides relational persistence for harvested case records,
// resolved parties, and harvest jobs.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/tribunal-cli/internal/model"
)

// ErrJobRunning is returned by CreateJob when a job for the same source type
// is already running. Exclusion is enforced by a partial unique index, so
// there is no window between check and insert.
var ErrJobRunning = eris.New("store: a job for this source type is already running")

// ErrConflict is returned when an insert violates a unique constraint.
// Callers that tolerate insert races re-query on this error.
var ErrConflict = eris.New("store: unique constraint violation")

// ErrNotFound is returned by point updates targeting a missing row.
var ErrNotFound = eris.New("store: not found")

// JobFilter specifies criteria for listing jobs.
type JobFilter struct {
	SourceType model.SourceType `json:"source_type,omitempty"`
	Status     model.JobStatus  `json:"status,omitempty"`
	Limit      int              `json:"limit,omitempty"`
}

// EnrichmentUpdate carries the AI-derived fields written back onto a case.
// A nil CompensationAmount with a set ProcessedAt records "amount withheld".
type EnrichmentUpdate struct {
	Summary            string
	Outcome            model.Outcome
	CompensationAmount *float64
	CostAmount         *float64
	PropertyAddress    string
	Category           string
	ProcessedAt        time.Time
	Error              string
}

// PartyCaseLink is a case_parties row joined with the fields of its case
// that aggregate recomputation needs.
type PartyCaseLink struct {
	LinkID             string
	CaseID             string
	PartyID            string
	Role               model.CaseRole
	SourceType         model.SourceType
	Reference          string
	Date               time.Time
	CompensationAmount *float64
	Processed          bool
}

// PartyAggregates is the derived counter set recomputed by the resolver.
type PartyAggregates struct {
	TotalCases        int
	CasesAsApplicant  int
	CasesAsRespondent int
	EnforcementCases  int
	AwardedFor        float64
	AwardedAgainst    float64
}

// Store defines the persistence interface for the acquisition and
// enrichment pipeline.
type Store interface {
	// Cases
	UpsertCase(ctx context.Context, c *model.CaseRecord) (created bool, err error)
	GetCase(ctx context.Context, id string) (*model.CaseRecord, error)
	GetCaseByReference(ctx context.Context, source model.SourceType, reference string) (*model.CaseRecord, error)
	ListUnprocessedCases(ctx context.Context, limit int) ([]model.CaseRecord, error)
	UpdateCaseEnrichment(ctx context.Context, caseID string, upd EnrichmentUpdate) error

	// Parties
	CreateParty(ctx context.Context, p *model.Party) error
	GetPartyByNormalizedName(ctx context.Context, normalized string) (*model.Party, error)
	GetParty(ctx context.Context, id string) (*model.Party, error)
	ListParties(ctx context.Context) ([]model.Party, error)
	UpdatePartyAggregates(ctx context.Context, partyID string, agg PartyAggregates) error
	DeleteParty(ctx context.Context, partyID string) error

	// Case-party links
	CreateCaseParty(ctx context.Context, cp *model.CaseParty) error
	ListPartyCaseLinks(ctx context.Context, partyID string) ([]PartyCaseLink, error)
	RepointCaseParty(ctx context.Context, linkID, newPartyID string) error
	DeleteCaseParty(ctx context.Context, linkID string) error

	// Jobs
	CreateJob(ctx context.Context, source model.SourceType) (*model.Job, error)
	GetJob(ctx context.Context, id string) (*model.Job, error)
	GetJobStatus(ctx context.Context, id string) (model.JobStatus, error)
	GetRunningJob(ctx context.Context, source model.SourceType) (*model.Job, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]model.Job, error)
	UpdateJobProgress(ctx context.Context, id string, progress model.JobProgress) error
	FinishJob(ctx context.Context, id string, status model.JobStatus, errMsg string) error
	CancelJob(ctx context.Context, id string) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
