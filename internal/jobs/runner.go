// Package jobs runs harvest jobs: one state machine per run, single-flight
// per source type, with progress checkpoints persisted after every page.
package jobs

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/tribunal-cli/internal/harvester"
	"github.com/sells-group/tribunal-cli/internal/model"
	"github.com/sells-group/tribunal-cli/internal/store"
)

// Store is the subset of the document store the runner needs.
type Store interface {
	CreateJob(ctx context.Context, source model.SourceType) (*model.Job, error)
	GetJobStatus(ctx context.Context, id string) (model.JobStatus, error)
	UpdateJobProgress(ctx context.Context, id string, progress model.JobProgress) error
	FinishJob(ctx context.Context, id string, status model.JobStatus, errMsg string) error
	UpsertCase(ctx context.Context, c *model.CaseRecord) (bool, error)
}

// Resolver consolidates the parties of a freshly stored case record.
type Resolver interface {
	ResolveCase(ctx context.Context, rec *model.CaseRecord) error
}

// Harvester is the page sequence the runner drives.
type Harvester interface {
	Run(ctx context.Context, startPage, endPage int, fn func(harvester.Page) error) error
}

// HarvesterFactory builds a harvester for one source type.
type HarvesterFactory func(source model.SourceType) (Harvester, error)

// Options tunes checkpointing.
type Options struct {
	// CheckpointPages is the page-window size between cooldown pauses. The
	// window exists as a checkpoint discipline: progress is durable after
	// every page, so a crashed run can resume from the last persisted page.
	CheckpointPages int
	// Cooldown is the pause between page windows.
	Cooldown time.Duration
}

// Runner owns the running → completed|failed|cancelled state machine.
type Runner struct {
	store Store
	res   Resolver
	newH  HarvesterFactory
	opts  Options

	// AutoVerify, when set, is invoked after a completed run that created at
	// least one new record.
	AutoVerify func(ctx context.Context, source model.SourceType, created int)
}

// New creates a Runner.
func New(store Store, res Resolver, newH HarvesterFactory, opts Options) *Runner {
	if opts.CheckpointPages <= 0 {
		opts.CheckpointPages = 20
	}
	return &Runner{store: store, res: res, newH: newH, opts: opts}
}

// errCancelled stops the harvester loop when the job row has been cancelled
// externally. It never escapes Run.
var errCancelled = eris.New("jobs: cancelled externally")

// Run creates a Job for the source and drives it to a terminal state. It
// returns store.ErrJobRunning unchanged when a run for the same source is
// already in flight. Page numbering is 1-based; endPage <= 0 means all pages.
func (r *Runner) Run(ctx context.Context, source model.SourceType, startPage, endPage int) (*model.Job, error) {
	job, err := r.store.CreateJob(ctx, source)
	if err != nil {
		return nil, err
	}

	log := zap.L().With(
		zap.String("job_id", job.ID),
		zap.String("source", string(source)),
	)
	log.Info("job started", zap.Int("start_page", startPage), zap.Int("end_page", endPage))

	h, err := r.newH(source)
	if err != nil {
		r.finish(job, model.JobStatusFailed, err.Error())
		return job, err
	}

	progress := model.JobProgress{}
	pagesInWindow := 0

	runErr := h.Run(ctx, startPage, endPage, func(p harvester.Page) error {
		created, updated, seen := r.ingestPage(ctx, source, p)

		progress.CurrentPage = p.Number
		progress.TotalPages = p.TotalPages
		progress.RecordsSeen += seen
		progress.RecordsCreated += created
		progress.RecordsUpdated += updated

		if err := r.store.UpdateJobProgress(ctx, job.ID, progress); err != nil {
			// the status guard rejects the write when the row left the
			// running state between polls; a cancel is not a failure
			if eris.Is(err, store.ErrNotFound) {
				status, serr := r.store.GetJobStatus(ctx, job.ID)
				if serr == nil && status == model.JobStatusCancelled {
					return errCancelled
				}
			}
			return eris.Wrap(err, "jobs: persist checkpoint")
		}

		// cooperative cancellation, once per page
		status, err := r.store.GetJobStatus(ctx, job.ID)
		if err != nil {
			return eris.Wrap(err, "jobs: read status")
		}
		if status == model.JobStatusCancelled {
			return errCancelled
		}

		pagesInWindow++
		if r.opts.Cooldown > 0 && pagesInWindow >= r.opts.CheckpointPages {
			pagesInWindow = 0
			log.Debug("job window cooldown", zap.Int("page", p.Number))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(r.opts.Cooldown):
			}
		}
		return nil
	})

	job.CurrentPage = progress.CurrentPage
	job.TotalPages = progress.TotalPages
	job.RecordsSeen = progress.RecordsSeen
	job.RecordsCreated = progress.RecordsCreated
	job.RecordsUpdated = progress.RecordsUpdated

	switch {
	case runErr == nil:
		r.finish(job, model.JobStatusCompleted, "")
		log.Info("job completed",
			zap.Int("seen", progress.RecordsSeen),
			zap.Int("created", progress.RecordsCreated),
			zap.Int("updated", progress.RecordsUpdated),
		)
		if r.AutoVerify != nil && progress.RecordsCreated > 0 {
			r.AutoVerify(ctx, source, progress.RecordsCreated)
		}
		return job, nil
	case eris.Is(runErr, errCancelled):
		// the cancel operation already moved the row to cancelled; the last
		// persisted counts are those of the final completed page
		job.Status = model.JobStatusCancelled
		log.Info("job cancelled", zap.Int("last_page", progress.CurrentPage))
		return job, nil
	default:
		r.finish(job, model.JobStatusFailed, runErr.Error())
		log.Error("job failed", zap.Error(runErr))
		return job, runErr
	}
}

// ingestPage upserts every record of a page and resolves its parties. A bad
// record is logged and skipped; one row never sinks a page.
func (r *Runner) ingestPage(ctx context.Context, source model.SourceType, p harvester.Page) (created, updated, seen int) {
	for i := range p.Records {
		rec := &p.Records[i]
		seen++
		if rec.Reference == "" {
			zap.L().Warn("skipping record without reference",
				zap.String("source", string(source)),
				zap.Int("page", p.Number),
			)
			continue
		}
		wasCreated, err := r.store.UpsertCase(ctx, rec)
		if err != nil {
			zap.L().Error("upsert failed",
				zap.String("reference", rec.Reference),
				zap.Error(err),
			)
			continue
		}
		if wasCreated {
			created++
		} else {
			updated++
		}
		if r.res != nil {
			if err := r.res.ResolveCase(ctx, rec); err != nil {
				zap.L().Error("party resolution failed",
					zap.String("reference", rec.Reference),
					zap.Error(err),
				)
			}
		}
	}
	return created, updated, seen
}

// finish moves the job to a terminal state. A failed finalize is logged, not
// propagated: the run outcome itself matters more than the bookkeeping row.
func (r *Runner) finish(job *model.Job, status model.JobStatus, errMsg string) {
	job.Status = status
	job.Error = errMsg
	// finalization must survive the run context being cancelled
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := r.store.FinishJob(ctx, job.ID, status, errMsg); err != nil {
		zap.L().Error("job finalize failed",
			zap.String("job_id", job.ID),
			zap.String("status", string(status)),
			zap.Error(err),
		)
	}
}
