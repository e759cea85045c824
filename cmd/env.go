package main

import (
	"context"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/fiberscope/coverage-cli/internal/model"
	"github.com/fiberscope/coverage-cli/internal/pipeline"
	"github.com/fiberscope/coverage-cli/internal/store"
	"github.com/fiberscope/coverage-cli/internal/tabular"
	"github.com/fiberscope/coverage-cli/pkg/geocode"
)

// pipelineEnv bundles the shared dependencies of the geocoding commands.
type pipelineEnv struct {
	Store    store.Store
	Cache    *geocode.Cache
	Resolver *geocode.Resolver
	Aliases  tabular.Aliases
}

func initStore(ctx context.Context) (store.Store, error) {
	st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.Path, cfg.Store.DatabaseURL)
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}
	return st, nil
}

// initEnv opens the store, seeds the in-memory cache from it, and builds the
// resolver over the configured provider chain.
func initEnv(ctx context.Context) (*pipelineEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	cache := geocode.NewCache()
	if _, err := pipeline.SeedCache(ctx, st, cache); err != nil {
		st.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "seed cache")
	}

	aliases, err := tabular.LoadAliases(cfg.Tabular.AliasesFile)
	if err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}

	providers, err := geocode.NewChain(geocode.ChainConfig{
		Provider:     cfg.Geocode.Provider,
		GoogleAPIKey: cfg.Geocode.GoogleAPIKey,
		RPS:          cfg.Geocode.RPS,
		Timeout:      time.Duration(cfg.Geocode.TimeoutSecs) * time.Second,
	})
	if err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}

	resolver := geocode.NewResolver(cache, providers, geocode.LocaleHints{
		Country:  cfg.Geocode.Country,
		Language: cfg.Geocode.Language,
	}, geocode.WithMaxAttempts(cfg.Geocode.MaxRetries))

	return &pipelineEnv{
		Store:    st,
		Cache:    cache,
		Resolver: resolver,
		Aliases:  aliases,
	}, nil
}

func (e *pipelineEnv) Close() {
	if err := e.Store.Close(); err != nil {
		zap.L().Warn("store close failed", zap.Error(err))
	}
}

// finishRun persists the cache and records the run outcome. Failures here are
// logged, not fatal: the output files were already written.
func (e *pipelineEnv) finishRun(ctx context.Context, runID string, res *pipeline.Result) {
	if saved := pipeline.PersistCache(ctx, e.Store, e.Cache); saved > 0 {
		zap.L().Info("cache persisted", zap.Int("entries", saved))
	}
	if err := e.Store.CompleteRun(ctx, runID, &res.Summary); err != nil {
		zap.L().Warn("record run failed", zap.Error(err))
	}
}

func (e *pipelineEnv) failRun(ctx context.Context, runID string, cause error) {
	if err := e.Store.FailRun(ctx, runID, cause.Error()); err != nil {
		zap.L().Warn("record failed run", zap.Error(err))
	}
}

func httpClientWithTimeout(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

// summarizeDiscovery counts discovered records; registry entries always carry
// coordinates, so resolved equals the total.
func summarizeDiscovery(records []model.BusinessRecord) *model.RunSummary {
	s := &model.RunSummary{TotalRecords: len(records)}
	for i := range records {
		if records[i].HasCoordinate() {
			s.Resolved++
		}
	}
	return s
}
