// Package fetcher provides a rate-limited, retrying HTTP client used for the
// tribunal landing page, listing refresh calls, and source document downloads.
package fetcher

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/tribunal-cli/internal/resilience"
)

// Options configures the HTTP fetcher.
type Options struct {
	UserAgent string
	Timeout   time.Duration
	// MaxRetries is the attempt count per request (including the first).
	MaxRetries int
	// RetryBackoff is the base delay before the first retry.
	RetryBackoff time.Duration
	// RateLimiters maps host to a dedicated limiter. Hosts without an entry
	// share a permissive default. The tribunal host should be limited to one
	// request at a time; its cadence is unspecified by the provider.
	RateLimiters map[string]*rate.Limiter
}

// Fetcher retrieves remote resources as byte slices.
type Fetcher interface {
	Get(ctx context.Context, rawURL string) ([]byte, error)
	PostForm(ctx context.Context, rawURL string, form url.Values) ([]byte, error)
}

// HTTPFetcher implements Fetcher using net/http with retry and rate limiting.
type HTTPFetcher struct {
	client   *http.Client
	opts     Options
	limiters map[string]*rate.Limiter
	fallback *rate.Limiter
}

// New creates an HTTPFetcher with the given options. Redirects are followed,
// which the landing-page token fetch relies on.
func New(opts Options) *HTTPFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 3
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "tribunal-cli/1.0"
	}
	if opts.RetryBackoff == 0 {
		opts.RetryBackoff = time.Second
	}
	limiters := make(map[string]*rate.Limiter, len(opts.RateLimiters))
	for k, v := range opts.RateLimiters {
		limiters[k] = v
	}
	transport := &http.Transport{
		MaxIdleConnsPerHost: 10,
		MaxConnsPerHost:     20,
		IdleConnTimeout:     90 * time.Second,
	}
	return &HTTPFetcher{
		client: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
		},
		opts:     opts,
		limiters: limiters,
		fallback: rate.NewLimiter(10, 10),
	}
}

// HostOf returns the host component of a raw URL, for limiter configuration.
func HostOf(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", eris.Wrapf(err, "fetcher: parse url %s", rawURL)
	}
	return u.Host, nil
}

func (f *HTTPFetcher) limiterFor(rawURL string) *rate.Limiter {
	u, err := url.Parse(rawURL)
	if err != nil {
		return f.fallback
	}
	if lim, ok := f.limiters[u.Host]; ok {
		return lim
	}
	return f.fallback
}

// Get fetches the URL and returns the response body.
func (f *HTTPFetcher) Get(ctx context.Context, rawURL string) ([]byte, error) {
	return f.do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, eris.Wrap(err, "fetcher: create request")
		}
		return req, nil
	})
}

// PostForm posts form-encoded values and returns the response body.
func (f *HTTPFetcher) PostForm(ctx context.Context, rawURL string, form url.Values) ([]byte, error) {
	encoded := form.Encode()
	return f.do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(encoded))
		if err != nil {
			return nil, eris.Wrap(err, "fetcher: create request")
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req, nil
	})
}

// do builds a fresh request per attempt (the body reader cannot be reused),
// waits on the host limiter, and retries transient failures with backoff.
func (f *HTTPFetcher) do(ctx context.Context, build func(ctx context.Context) (*http.Request, error)) ([]byte, error) {
	cfg := resilience.RetryConfig{
		MaxAttempts: f.opts.MaxRetries,
		BaseBackoff: f.opts.RetryBackoff,
		ShouldRetry: resilience.IsTransient,
	}

	return resilience.DoVal(ctx, cfg, func(ctx context.Context) ([]byte, error) {
		req, err := build(ctx)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", f.opts.UserAgent)

		if err := f.limiterFor(req.URL.String()).Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "fetcher: rate limiter wait")
		}

		resp, err := f.client.Do(req)
		if err != nil {
			return nil, resilience.NewTransientError(err, 0)
		}
		defer resp.Body.Close() //nolint:errcheck

		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			zap.L().Warn("fetcher: transient response",
				zap.String("url", req.URL.String()),
				zap.Int("status", resp.StatusCode),
			)
			return nil, resilience.NewTransientError(
				eris.Errorf("fetcher: http %d from %s", resp.StatusCode, req.URL.String()),
				resp.StatusCode,
			)
		}
		if resp.StatusCode != http.StatusOK {
			return nil, eris.Errorf("fetcher: unexpected status %d from %s", resp.StatusCode, req.URL.String())
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, resilience.NewTransientError(eris.Wrap(err, "fetcher: read body"), 0)
		}
		return body, nil
	})
}
