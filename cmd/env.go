package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/tribunal-cli/internal/config"
	"github.com/sells-group/tribunal-cli/internal/fetcher"
	"github.com/sells-group/tribunal-cli/internal/harvester"
	"github.com/sells-group/tribunal-cli/internal/jobs"
	"github.com/sells-group/tribunal-cli/internal/model"
	"github.com/sells-group/tribunal-cli/internal/resolver"
	"github.com/sells-group/tribunal-cli/internal/store"
	"github.com/sells-group/tribunal-cli/internal/verifier"
	anthropicpkg "github.com/sells-group/tribunal-cli/pkg/anthropic"
	openaipkg "github.com/sells-group/tribunal-cli/pkg/openai"
)

// appEnv holds the initialized store, resolver, runner, and verifier shared
// by the harvest/verify/merge/serve commands.
type appEnv struct {
	Store    store.Store
	Resolver *resolver.Resolver
	Runner   *jobs.Runner
	Verifier *verifier.Verifier
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "tribunal.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// listingFetcher builds the HTTP client used against the tribunal site: one
// request in flight at a time, paced to the configured inter-page delay, and
// no internal retries (the harvester owns page-level retry policy).
func listingFetcher(src config.SourceConfig, harvest config.HarvestConfig) (*fetcher.HTTPFetcher, error) {
	limiters := map[string]*rate.Limiter{}
	for _, raw := range []string{src.LandingURL, src.RefreshURL} {
		host, err := fetcher.HostOf(raw)
		if err != nil {
			return nil, eris.Wrapf(err, "parse source url %s", raw)
		}
		limiters[host] = rate.NewLimiter(rate.Every(harvest.PageDelay()), 1)
	}
	return fetcher.New(fetcher.Options{
		UserAgent:    src.UserAgent,
		Timeout:      time.Duration(harvest.TimeoutSecs) * time.Second,
		MaxRetries:   1,
		RateLimiters: limiters,
	}), nil
}

// initEnv sets up the store and every component the given mode needs.
// Callers should defer env.Close().
func initEnv(ctx context.Context, mode string) (*appEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	env := &appEnv{
		Store:    st,
		Resolver: resolver.New(st),
	}

	if mode == "harvest" || mode == "serve" {
		lf, err := listingFetcher(cfg.Source, cfg.Harvest)
		if err != nil {
			env.Close()
			return nil, err
		}
		factory := func(source model.SourceType) (jobs.Harvester, error) {
			client, err := harvester.NewClient(lf, cfg.Source, source)
			if err != nil {
				return nil, err
			}
			return harvester.New(client, harvester.Options{
				PageDelay:              cfg.Harvest.PageDelay(),
				PageRetries:            cfg.Harvest.PageRetries,
				MaxConsecutiveFailures: cfg.Harvest.MaxConsecutiveFailures,
			}), nil
		}
		env.Runner = jobs.New(st, env.Resolver, factory, jobs.Options{
			CheckpointPages: cfg.Harvest.CheckpointPages,
			Cooldown:        time.Duration(cfg.Harvest.CooldownSecs) * time.Second,
		})
	}

	if mode == "verify" || mode == "serve" || cfg.Verify.Auto {
		v, err := initVerifier(st)
		if err != nil {
			if mode == "verify" {
				env.Close()
				return nil, err
			}
			zap.L().Warn("verifier unavailable", zap.Error(err))
		} else {
			v.Recompute = env.Resolver.RecomputeAll
			env.Verifier = v
			if env.Runner != nil && cfg.Verify.Auto {
				env.Runner.AutoVerify = func(ctx context.Context, source model.SourceType, created int) {
					zap.L().Info("auto-verify after harvest",
						zap.String("source", string(source)),
						zap.Int("created", created),
					)
					if _, err := v.Batch(ctx, cfg.Verify.BatchSize); err != nil {
						zap.L().Error("auto-verify failed", zap.Error(err))
					}
				}
			}
		}
	}

	return env, nil
}

func initVerifier(st store.Store) (*verifier.Verifier, error) {
	if cfg.Anthropic.Key == "" {
		return nil, eris.New("anthropic key is required for enrichment (TRIBUNAL_ANTHROPIC_KEY)")
	}
	primary := anthropicpkg.NewClient(cfg.Anthropic.Key)

	var arbiter openaipkg.Client
	if cfg.OpenAI.Key != "" {
		arbiter = openaipkg.NewClient(cfg.OpenAI.Key)
	} else {
		zap.L().Warn("TRIBUNAL_OPENAI_KEY not set, high-value arbitration disabled")
	}

	docFetcher := fetcher.New(fetcher.Options{
		UserAgent: cfg.Source.UserAgent,
		Timeout:   60 * time.Second,
	})
	docs := verifier.NewDocuments(docFetcher, cfg.Verify.ArchiveBaseURL, cfg.Verify.MinDocumentBytes)

	v := verifier.New(st, docs, primary, arbiter, verifier.Options{
		PrimaryModel:       cfg.Anthropic.Model,
		PrimaryTokens:      cfg.Anthropic.MaxTokens,
		ArbiterModel:       cfg.OpenAI.Model,
		ArbiterTokens:      cfg.OpenAI.MaxTokens,
		HighValueThreshold: cfg.Verify.HighValueThreshold,
		SumTolerance:       cfg.Verify.SumTolerance,
		Concurrency:        cfg.Verify.Concurrency,
	})
	return v, nil
}
