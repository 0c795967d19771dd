package verifier

import (
	"context"
	"sync/atomic"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// BatchResult summarizes one enrichment batch.
type BatchResult struct {
	Selected  int
	Succeeded int
	Failed    int
}

// Batch selects up to limit unprocessed cases and enriches them with bounded
// concurrency. A failing case is logged and skipped; it never aborts the
// batch. Missing model credentials abort immediately without touching any
// case rows.
func (v *Verifier) Batch(ctx context.Context, limit int) (*BatchResult, error) {
	if v.primary == nil {
		return nil, eris.New("verifier: no extraction model credentials configured")
	}

	cases, err := v.store.ListUnprocessedCases(ctx, limit)
	if err != nil {
		return nil, eris.Wrap(err, "verifier: select batch")
	}
	result := &BatchResult{Selected: len(cases)}
	if len(cases) == 0 {
		return result, nil
	}

	zap.L().Info("enrichment batch started",
		zap.Int("cases", len(cases)),
		zap.Int("concurrency", v.opts.Concurrency),
	)

	var succeeded, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(v.opts.Concurrency)

	for i := range cases {
		rec := &cases[i]
		g.Go(func() error {
			if err := v.ProcessCase(gctx, rec); err != nil {
				failed.Add(1)
				zap.L().Error("case enrichment failed",
					zap.String("reference", rec.Reference),
					zap.Error(err),
				)
				return nil // per-case isolation
			}
			succeeded.Add(1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return result, eris.Wrap(err, "verifier: batch")
	}

	result.Succeeded = int(succeeded.Load())
	result.Failed = int(failed.Load())
	zap.L().Info("enrichment batch finished",
		zap.Int("succeeded", result.Succeeded),
		zap.Int("failed", result.Failed),
	)

	if result.Succeeded > 0 && v.Recompute != nil {
		if err := v.Recompute(ctx); err != nil {
			return result, eris.Wrap(err, "verifier: recompute aggregates")
		}
	}
	return result, nil
}
