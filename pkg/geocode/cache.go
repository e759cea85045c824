package geocode

import (
	"sort"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"github.com/fiberscope/coverage-cli/internal/address"
	"github.com/fiberscope/coverage-cli/internal/model"
	"github.com/fiberscope/coverage-cli/internal/tabular"
)

// Cache maps canonical addresses to resolved coordinates for the lifetime of
// one run. Entries are first-writer-wins: canonicalization guarantees a
// stable key, so a second insert for the same address can only carry the same
// resolution and is dropped.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	canonical string // original casing, for snapshot export
	coord     model.Coordinate
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]cacheEntry)}
}

// Lookup returns the cached coordinate for a canonical address.
func (c *Cache) Lookup(canonical string) (model.Coordinate, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[address.Key(canonical)]
	return e.coord, ok
}

// Insert stores a resolution. The first writer for a key wins; later inserts
// are no-ops.
func (c *Cache) Insert(canonical string, coord model.Coordinate) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := address.Key(canonical)
	if _, exists := c.entries[key]; exists {
		return
	}
	c.entries[key] = cacheEntry{canonical: canonical, coord: coord}
}

// Len returns the number of cached resolutions.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Each calls fn for every cached resolution. Iteration order is unspecified.
func (c *Cache) Each(fn func(canonical string, coord model.Coordinate)) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, e := range c.entries {
		fn(e.canonical, e.coord)
	}
}

// Snapshot table layout, shared by export and resume import.
var snapshotHeaders = []string{"address", "latitude", "longitude"}

// SnapshotHeaders returns the column layout of an exported cache table.
func SnapshotHeaders() []string {
	return append([]string(nil), snapshotHeaders...)
}

// ExportSnapshot emits all resolved pairs as a table, sorted by address so
// exports are stable across runs.
func (c *Cache) ExportSnapshot() ([]string, [][]string) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	rows := make([][]string, 0, len(c.entries))
	for _, e := range c.entries {
		rows = append(rows, []string{
			e.canonical,
			strconv.FormatFloat(e.coord.Lat, 'f', -1, 64),
			strconv.FormatFloat(e.coord.Lon, 'f', -1, 64),
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i][0] < rows[j][0] })
	return SnapshotHeaders(), rows
}

// ImportSnapshot seeds the cache from a previously exported address table.
// Rows with unparseable coordinates are skipped and counted; a malformed
// table never fails the run. Returns how many entries were imported.
func (c *Cache) ImportSnapshot(table *tabular.Table, aliases tabular.Aliases) int {
	if table == nil || table.Empty() {
		return 0
	}

	resolver := tabular.NewFieldResolver(table.Headers, aliases)
	if !resolver.Has(tabular.FieldAddress) || !resolver.Has(tabular.FieldLat) || !resolver.Has(tabular.FieldLon) {
		zap.L().Warn("resume table missing address or coordinate columns, ignoring")
		return 0
	}

	imported, skipped := 0, 0
	for _, row := range table.Rows {
		canonical := resolver.Value(row, tabular.FieldAddress)
		if canonical == "" {
			skipped++
			continue
		}
		coord, err := model.ParseCoordinate(
			resolver.Value(row, tabular.FieldLat),
			resolver.Value(row, tabular.FieldLon),
		)
		if err != nil {
			skipped++
			continue
		}
		c.Insert(canonical, coord)
		imported++
	}

	if skipped > 0 {
		zap.L().Warn("skipped malformed resume rows", zap.Int("skipped", skipped))
	}
	return imported
}
