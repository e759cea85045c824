package geocode

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fiberscope/coverage-cli/internal/model"
	"github.com/fiberscope/coverage-cli/internal/resilience"
)

// stubProvider records queries and replays scripted results.
type stubProvider struct {
	name      string
	available bool
	queries   []string
	respond   func(query string) (*Result, error)
}

func (s *stubProvider) Name() string    { return s.name }
func (s *stubProvider) Available() bool { return s.available }

func (s *stubProvider) Geocode(_ context.Context, query string, _ LocaleHints) (*Result, error) {
	s.queries = append(s.queries, query)
	return s.respond(query)
}

func matched(lat, lon float64) *Result {
	return &Result{Coordinate: model.Coordinate{Lat: lat, Lon: lon}, Matched: true, Source: "stub"}
}

func miss() *Result { return &Result{Matched: false, Source: "stub"} }

func greekHints() LocaleHints { return LocaleHints{Country: "Greece", Language: "el,en"} }

func fastRetry() resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		ShouldRetry:    func(err error) bool { return errors.Is(err, ErrRateLimited) },
	}
}

func TestResolve_CacheHitSkipsProviders(t *testing.T) {
	p := &stubProvider{name: "free", available: true, respond: func(string) (*Result, error) {
		t.Fatal("provider must not be called on a cache hit")
		return nil, nil
	}}

	cache := NewCache()
	cache.Insert("12 Main St, Athens", model.Coordinate{Lat: 37.98, Lon: 23.72})
	r := NewResolver(cache, []Provider{p}, greekHints())

	coord, ok := r.Resolve(context.Background(), "12 Main St, Athens")
	require.True(t, ok)
	assert.InDelta(t, 37.98, coord.Lat, 1e-9)
	assert.Empty(t, p.queries)
}

func TestResolve_CountrySuffixFallback(t *testing.T) {
	p := &stubProvider{name: "free", available: true, respond: func(query string) (*Result, error) {
		if query == "12 Main St, Athens, Greece" {
			return matched(37.98, 23.72), nil
		}
		return miss(), nil
	}}

	r := NewResolver(NewCache(), []Provider{p}, greekHints())
	coord, ok := r.Resolve(context.Background(), "12 Main St, Athens")
	require.True(t, ok)
	assert.InDelta(t, 37.98, coord.Lat, 1e-9)
	assert.Equal(t, []string{"12 Main St, Athens", "12 Main St, Athens, Greece"}, p.queries)
}

func TestResolve_NoSuffixWhenCountryMentioned(t *testing.T) {
	p := &stubProvider{name: "free", available: true, respond: func(string) (*Result, error) {
		return miss(), nil
	}}

	r := NewResolver(NewCache(), []Provider{p}, greekHints())
	_, ok := r.Resolve(context.Background(), "12 Main St, Athens, greece")
	assert.False(t, ok)
	assert.Equal(t, []string{"12 Main St, Athens, greece"}, p.queries)
}

func TestResolve_KeyedProviderPreferred(t *testing.T) {
	keyed := &stubProvider{name: "keyed", available: true, respond: func(string) (*Result, error) {
		return matched(35.33, 25.13), nil
	}}
	free := &stubProvider{name: "free", available: true, respond: func(string) (*Result, error) {
		t.Fatal("free provider must not be called when the keyed one matches")
		return nil, nil
	}}

	r := NewResolver(NewCache(), []Provider{keyed, free}, greekHints())
	_, ok := r.Resolve(context.Background(), "Λεωφ. Κνωσού 10, Ηράκλειο")
	assert.True(t, ok)
	assert.Len(t, keyed.queries, 1)
}

func TestResolve_UnavailableProviderSkipped(t *testing.T) {
	keyed := &stubProvider{name: "keyed", available: false, respond: func(string) (*Result, error) {
		t.Fatal("unavailable provider must be skipped")
		return nil, nil
	}}
	free := &stubProvider{name: "free", available: true, respond: func(string) (*Result, error) {
		return matched(35.33, 25.13), nil
	}}

	r := NewResolver(NewCache(), []Provider{keyed, free}, greekHints())
	_, ok := r.Resolve(context.Background(), "Λεωφ. Κνωσού 10, Ηράκλειο")
	assert.True(t, ok)
	assert.Empty(t, keyed.queries)
	assert.Len(t, free.queries, 1)
}

func TestResolve_RateLimitRetriesThenFails(t *testing.T) {
	calls := 0
	p := &stubProvider{name: "free", available: true, respond: func(string) (*Result, error) {
		calls++
		return nil, ErrRateLimited
	}}

	r := NewResolver(NewCache(), []Provider{p}, LocaleHints{}, WithRetry(fastRetry()))
	_, ok := r.Resolve(context.Background(), "12 Main St, Athens")
	assert.False(t, ok)
	// Bounded retries per live attempt; no country hint, so one variant only.
	assert.Equal(t, 3, calls)
}

func TestResolve_MaxAttemptsBoundsRateLimitRetries(t *testing.T) {
	for _, attempts := range []int{1, 5} {
		calls := 0
		p := &stubProvider{name: "free", available: true, respond: func(string) (*Result, error) {
			calls++
			return nil, ErrRateLimited
		}}

		r := NewResolver(NewCache(), []Provider{p}, LocaleHints{},
			WithRetry(fastRetry()), WithMaxAttempts(attempts))
		_, ok := r.Resolve(context.Background(), "12 Main St, Athens")
		assert.False(t, ok)
		assert.Equal(t, attempts, calls)
	}
}

func TestResolve_MaxAttemptsIgnoresNonPositive(t *testing.T) {
	calls := 0
	p := &stubProvider{name: "free", available: true, respond: func(string) (*Result, error) {
		calls++
		return nil, ErrRateLimited
	}}

	r := NewResolver(NewCache(), []Provider{p}, LocaleHints{},
		WithRetry(fastRetry()), WithMaxAttempts(0))
	_, ok := r.Resolve(context.Background(), "12 Main St, Athens")
	assert.False(t, ok)
	assert.Equal(t, 3, calls)
}

func TestResolve_RateLimitRecovers(t *testing.T) {
	calls := 0
	p := &stubProvider{name: "free", available: true, respond: func(string) (*Result, error) {
		calls++
		if calls < 3 {
			return nil, ErrRateLimited
		}
		return matched(37.98, 23.72), nil
	}}

	r := NewResolver(NewCache(), []Provider{p}, LocaleHints{}, WithRetry(fastRetry()))
	_, ok := r.Resolve(context.Background(), "12 Main St, Athens")
	assert.True(t, ok)
	assert.Equal(t, 3, calls)
}

func TestResolve_FailureIsNotAnError(t *testing.T) {
	p := &stubProvider{name: "free", available: true, respond: func(string) (*Result, error) {
		return nil, eris.New("connection refused")
	}}

	r := NewResolver(NewCache(), []Provider{p}, greekHints())
	coord, ok := r.Resolve(context.Background(), "12 Main St, Athens")
	assert.False(t, ok)
	assert.Zero(t, coord)
	// Nothing was cached for the failed address.
	assert.Zero(t, r.Cache().Len())
}

func TestResolve_SuccessPopulatesCache(t *testing.T) {
	p := &stubProvider{name: "free", available: true, respond: func(string) (*Result, error) {
		return matched(35.3387, 25.1442), nil
	}}

	r := NewResolver(NewCache(), []Provider{p}, greekHints())
	_, ok := r.Resolve(context.Background(), "Λεωφ. Κνωσού 10, Ηράκλειο")
	require.True(t, ok)

	// Second resolve is served from cache: no new provider call.
	_, ok = r.Resolve(context.Background(), "Λεωφ. Κνωσού 10, Ηράκλειο")
	require.True(t, ok)
	assert.Len(t, p.queries, 1)
}
