package harvester

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/tribunal-cli/internal/resilience"
)

// Options tunes the page loop.
type Options struct {
	// PageDelay is the minimum wait before each listing request. The source
	// is a third-party service with unspecified rate tolerance; requests are
	// strictly sequential.
	PageDelay time.Duration
	// PageRetries is how many times a failed page is retried before it is
	// skipped, with exponential backoff (base, 2x, 4x).
	PageRetries int
	// MaxConsecutiveFailures aborts the whole run once this many pages in a
	// row have exhausted their retries.
	MaxConsecutiveFailures int
	// RetryBackoff is the base backoff between page retries.
	RetryBackoff time.Duration
}

// Harvester drives the sequential page loop over one source listing.
type Harvester struct {
	client *Client
	opts   Options
}

// New creates a Harvester over the given listing client.
func New(client *Client, opts Options) *Harvester {
	if opts.PageRetries <= 0 {
		opts.PageRetries = 3
	}
	if opts.MaxConsecutiveFailures <= 0 {
		opts.MaxConsecutiveFailures = 5
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 2 * time.Second
	}
	return &Harvester{client: client, opts: opts}
}

// Run walks pages [startPage, endPage] and hands each successful page to fn
// in source order. endPage <= 0 means "through the last page". The token and
// total page count are always read fresh, via page 1, regardless of the
// requested start. Cancellation is checked once per page; fn returning an
// error stops the run immediately.
func (h *Harvester) Run(ctx context.Context, startPage, endPage int, fn func(Page) error) error {
	token, err := h.client.Token(ctx)
	if err != nil {
		return err
	}

	first, err := h.fetchWithRetry(ctx, token, 1)
	if err != nil {
		return eris.Wrap(err, "harvester: initial page probe")
	}
	totalPages := first.TotalPages

	zap.L().Info("harvester: run started",
		zap.String("source", string(h.client.source)),
		zap.Int("total_pages", totalPages),
		zap.Int("total_rows", first.TotalRows),
	)

	if startPage < 1 {
		startPage = 1
	}
	if endPage <= 0 || endPage > totalPages {
		endPage = totalPages
	}

	consecutiveFailures := 0
	for page := startPage; page <= endPage; page++ {
		if err := ctx.Err(); err != nil {
			return eris.Wrap(err, "harvester: run cancelled")
		}

		var p *Page
		if page == 1 {
			// the probe already fetched it
			p = first
		} else {
			if err := sleepCtx(ctx, h.opts.PageDelay); err != nil {
				return eris.Wrap(err, "harvester: run cancelled")
			}
			p, err = h.fetchWithRetry(ctx, token, page)
			if err != nil {
				if ctx.Err() != nil {
					return eris.Wrap(ctx.Err(), "harvester: run cancelled")
				}
				consecutiveFailures++
				zap.L().Warn("harvester: page skipped after retries",
					zap.Int("page", page),
					zap.Int("consecutive_failures", consecutiveFailures),
					zap.Error(err),
				)
				if consecutiveFailures >= h.opts.MaxConsecutiveFailures {
					return eris.Errorf("harvester: aborting after %d consecutive page failures (last: page %d)",
						consecutiveFailures, page)
				}
				continue
			}
		}

		consecutiveFailures = 0
		p.TotalPages = totalPages
		if err := fn(*p); err != nil {
			return err
		}
	}
	return nil
}

// fetchWithRetry wraps one page fetch in the page-level retry policy. A page
// with zero parsed records is a success; only fetch/decode errors count.
func (h *Harvester) fetchWithRetry(ctx context.Context, token string, page int) (*Page, error) {
	cfg := resilience.RetryConfig{
		MaxAttempts: h.opts.PageRetries + 1,
		BaseBackoff: h.opts.RetryBackoff,
		OnRetry:     resilience.RetryLogger("harvester", "fetch page"),
	}
	return resilience.DoVal(ctx, cfg, func(ctx context.Context) (*Page, error) {
		return h.client.FetchPage(ctx, token, page)
	})
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
