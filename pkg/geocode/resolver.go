package geocode

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/fiberscope/coverage-cli/internal/model"
	"github.com/fiberscope/coverage-cli/internal/resilience"
)

// Resolver resolves canonical addresses through the cache and an ordered
// provider chain. A keyed provider placed ahead of the free one takes
// precedence whenever its credentials are present; unavailable providers are
// skipped.
type Resolver struct {
	cache     *Cache
	providers []Provider
	hints     LocaleHints
	retry     resilience.RetryConfig
}

// ResolverOption configures the resolver.
type ResolverOption func(*Resolver)

// WithRetry overrides the bounded backoff applied to rate-limited calls.
func WithRetry(cfg resilience.RetryConfig) ResolverOption {
	return func(r *Resolver) { r.retry = cfg }
}

// WithMaxAttempts bounds the attempts per rate-limited provider call without
// touching the rest of the retry policy. Non-positive values are ignored.
func WithMaxAttempts(n int) ResolverOption {
	return func(r *Resolver) {
		if n > 0 {
			r.retry.MaxAttempts = n
		}
	}
}

// NewResolver builds a resolver over the given cache and provider chain.
func NewResolver(cache *Cache, providers []Provider, hints LocaleHints, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		cache:     cache,
		providers: providers,
		hints:     hints,
		retry: resilience.RetryConfig{
			MaxAttempts: 3,
			ShouldRetry: func(err error) bool { return errors.Is(err, ErrRateLimited) },
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Cache exposes the resolver's cache for snapshot export.
func (r *Resolver) Cache() *Cache { return r.cache }

// Resolve maps one canonical address to a coordinate. A cache hit returns
// immediately with no provider call and no throttle delay. On a miss, each
// available provider is tried with the address as-is and, when the address
// does not already mention the configured country, once more with the country
// suffixed. The first successful resolution is cached and returned; when
// every attempt misses or fails the second return is false and the record
// proceeds without coordinates.
func (r *Resolver) Resolve(ctx context.Context, canonical string) (model.Coordinate, bool) {
	if coord, ok := r.cache.Lookup(canonical); ok {
		return coord, true
	}

	for _, p := range r.providers {
		if !p.Available() {
			continue
		}
		for _, query := range r.queryVariants(canonical) {
			res, err := r.geocodeWithRetry(ctx, p, query)
			if err != nil {
				zap.L().Debug("provider attempt failed",
					zap.String("provider", p.Name()),
					zap.String("query", query),
					zap.Error(err),
				)
				if ctx.Err() != nil {
					return model.Coordinate{}, false
				}
				continue
			}
			if res != nil && res.Matched {
				r.cache.Insert(canonical, res.Coordinate)
				return res.Coordinate, true
			}
		}
	}

	return model.Coordinate{}, false
}

// queryVariants returns the address as-is, plus the country-suffixed form
// when the configured country is not already mentioned.
func (r *Resolver) queryVariants(canonical string) []string {
	variants := []string{canonical}
	country := strings.TrimSpace(r.hints.Country)
	if country == "" {
		return variants
	}
	if strings.Contains(strings.ToLower(canonical), strings.ToLower(country)) {
		return variants
	}
	return append(variants, canonical+", "+country)
}

// geocodeWithRetry wraps one live provider call in the bounded rate-limit
// backoff. Timeouts and transport failures surface as plain errors and are
// not retried; the address simply fails over to the next attempt.
func (r *Resolver) geocodeWithRetry(ctx context.Context, p Provider, query string) (*Result, error) {
	cfg := r.retry
	if cfg.OnRetry == nil {
		cfg.OnRetry = resilience.RetryLogger(p.Name(), "geocode")
	}
	return resilience.DoVal(ctx, cfg, func(ctx context.Context) (*Result, error) {
		return p.Geocode(ctx, query, r.hints)
	})
}
