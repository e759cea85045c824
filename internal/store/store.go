// Package store persists the geocode cache and run history across pipeline
// executions.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/fiberscope/coverage-cli/internal/model"
)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Kind   string          `json:"kind,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Store defines the persistence interface shared by the sqlite and postgres
// backends.
type Store interface {
	// Geocode cache. SaveCacheEntry never overwrites an existing address;
	// the first stored coordinate wins, matching the in-memory cache.
	SaveCacheEntry(ctx context.Context, address string, coord model.Coordinate) error
	LoadCacheEntries(ctx context.Context) (map[string]model.Coordinate, error)
	CacheSize(ctx context.Context) (int, error)

	// Runs
	CreateRun(ctx context.Context, kind string) (*model.Run, error)
	CompleteRun(ctx context.Context, runID string, summary *model.RunSummary) error
	FailRun(ctx context.Context, runID string, message string) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open creates a migrated store for the configured driver.
func Open(ctx context.Context, driver, path, databaseURL string) (Store, error) {
	var (
		s   Store
		err error
	)
	switch driver {
	case "sqlite":
		s, err = NewSQLite(path)
	case "postgres":
		s, err = NewPostgres(ctx, databaseURL)
	default:
		return nil, eris.Errorf("store: unknown driver %q", driver)
	}
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		s.Close() //nolint:errcheck
		return nil, err
	}
	return s, nil
}
