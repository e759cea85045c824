// Package pipeline orchestrates the run: resolve fields, canonicalize and
// deduplicate addresses, geocode through the cache and provider chain, then
// match resolved coordinates against the coverage set.
package pipeline

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fiberscope/coverage-cli/internal/address"
	"github.com/fiberscope/coverage-cli/internal/model"
	"github.com/fiberscope/coverage-cli/internal/spatial"
	"github.com/fiberscope/coverage-cli/pkg/geocode"
)

// Fatal run conditions. Per-record problems are counted in the summary
// instead.
var (
	ErrNoRecords        = eris.New("pipeline: no input records")
	ErrNoCoveragePoints = eris.New("pipeline: no coverage points loaded")
	ErrNoAddressColumn  = eris.New("pipeline: no address column resolvable in input")
)

const defaultWorkers = 4

// Pipeline runs geocoding and spatial matching over a record set.
type Pipeline struct {
	resolver *geocode.Resolver
	matcher  *spatial.Matcher
	workers  int
}

// Option configures the pipeline.
type Option func(*Pipeline)

// WithWorkers sets the geocode and match worker pool size.
func WithWorkers(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithMatcher attaches the coverage matcher. Without one only geocoding runs.
func WithMatcher(m *spatial.Matcher) Option {
	return func(p *Pipeline) { p.matcher = m }
}

// New builds a pipeline around a geocode resolver.
func New(resolver *geocode.Resolver, opts ...Option) *Pipeline {
	p := &Pipeline{resolver: resolver, workers: defaultWorkers}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Result is the outcome of one run: the input records in their original
// order, coordinates and matches attached where found, plus counters.
type Result struct {
	Records []model.BusinessRecord
	Summary model.RunSummary
}

// Run geocodes the records and matches them against the coverage set.
func (p *Pipeline) Run(ctx context.Context, records []model.BusinessRecord) (*Result, error) {
	if p.matcher == nil || p.matcher.Size() == 0 {
		return nil, ErrNoCoveragePoints
	}

	res, err := p.Geocode(ctx, records)
	if err != nil {
		return nil, err
	}

	matches, err := p.match(ctx, res.Records)
	if err != nil {
		return nil, err
	}
	res.Summary.Matches = matches

	zap.L().Info("run complete",
		zap.Int("records", res.Summary.TotalRecords),
		zap.Int("unique_addresses", res.Summary.UniqueAddresses),
		zap.Int("cache_hits", res.Summary.CacheHits),
		zap.Int("resolved", res.Summary.Resolved),
		zap.Int("failures", res.Summary.Failures),
		zap.Int("matches", matches),
	)
	return res, nil
}

// Geocode canonicalizes and deduplicates the record addresses, then resolves
// each unique address once through the cache and provider chain. Every record
// sharing an address receives the same coordinate.
func (p *Pipeline) Geocode(ctx context.Context, records []model.BusinessRecord) (*Result, error) {
	if len(records) == 0 {
		return nil, ErrNoRecords
	}

	res := &Result{Records: records}
	res.Summary.TotalRecords = len(records)

	for i := range records {
		rec := &records[i]
		rec.CanonicalAddress = address.Canonical(rec.Address, rec.City)
	}

	// Unique addresses still needing resolution, keyed case-insensitively.
	// The first record's casing is what providers see.
	need := make(map[string]string)
	for i := range records {
		rec := &records[i]
		if rec.HasCoordinate() {
			continue
		}
		if !address.Resolvable(rec.CanonicalAddress) {
			res.Summary.Dropped++
			continue
		}
		key := address.Key(rec.CanonicalAddress)
		if _, seen := need[key]; !seen {
			need[key] = rec.CanonicalAddress
		}
	}
	res.Summary.UniqueAddresses = len(need)

	resolved := make(map[string]model.Coordinate, len(need))
	var toResolve []string
	for key, canonical := range need {
		if coord, ok := p.resolver.Cache().Lookup(canonical); ok {
			resolved[key] = coord
			res.Summary.CacheHits++
			continue
		}
		toResolve = append(toResolve, canonical)
	}
	sort.Strings(toResolve)

	var mu sync.Mutex
	var resolvedN, failedN atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for _, canonical := range toResolve {
		canonical := canonical
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			coord, ok := p.resolver.Resolve(gctx, canonical)
			if !ok {
				if err := gctx.Err(); err != nil {
					return err
				}
				failedN.Add(1)
				zap.L().Debug("address unresolved", zap.String("address", canonical))
				return nil
			}
			resolvedN.Add(1)
			mu.Lock()
			resolved[address.Key(canonical)] = coord
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "pipeline: geocode")
	}
	res.Summary.Resolved = int(resolvedN.Load())
	res.Summary.Failures = int(failedN.Load())

	for i := range records {
		rec := &records[i]
		if rec.HasCoordinate() {
			continue
		}
		if coord, ok := resolved[address.Key(rec.CanonicalAddress)]; ok {
			c := coord
			rec.Coordinate = &c
		}
	}

	return res, nil
}

// match runs the spatial matcher over every record with a coordinate. Each
// goroutine writes only its own record, so no lock is needed.
func (p *Pipeline) match(ctx context.Context, records []model.BusinessRecord) (int, error) {
	var matched atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i := range records {
		rec := &records[i]
		if !rec.HasCoordinate() {
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if m := p.matcher.Match(*rec.Coordinate); m != nil {
				rec.Match = m
				matched.Add(1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, eris.Wrap(err, "pipeline: match")
	}
	return int(matched.Load()), nil
}
