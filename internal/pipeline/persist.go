package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/fiberscope/coverage-cli/internal/address"
	"github.com/fiberscope/coverage-cli/internal/model"
	"github.com/fiberscope/coverage-cli/internal/store"
	"github.com/fiberscope/coverage-cli/pkg/geocode"
)

// SeedCache loads every persisted resolution into the in-memory cache before
// a run, so re-runs skip live geocoding for known addresses.
func SeedCache(ctx context.Context, st store.Store, cache *geocode.Cache) (int, error) {
	entries, err := st.LoadCacheEntries(ctx)
	if err != nil {
		return 0, err
	}
	for addr, coord := range entries {
		cache.Insert(addr, coord)
	}
	if len(entries) > 0 {
		zap.L().Info("seeded geocode cache from store", zap.Int("entries", len(entries)))
	}
	return len(entries), nil
}

// PersistCache writes the run's resolutions back to the store and returns the
// number saved. Addresses are stored under their case-folded key; existing
// entries are never overwritten. Per-entry write failures are logged and
// counted, not fatal.
func PersistCache(ctx context.Context, st store.Store, cache *geocode.Cache) int {
	saved, failed := 0, 0
	var lastErr error
	cache.Each(func(canonical string, coord model.Coordinate) {
		if err := st.SaveCacheEntry(ctx, address.Key(canonical), coord); err != nil {
			failed++
			lastErr = err
			return
		}
		saved++
	})
	if failed > 0 {
		zap.L().Warn("some cache entries failed to persist",
			zap.Int("failed", failed),
			zap.Error(lastErr),
		)
	}
	return saved
}
