package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fiberscope/coverage-cli/internal/address"
	"github.com/fiberscope/coverage-cli/internal/model"
	"github.com/fiberscope/coverage-cli/internal/spatial"
	"github.com/fiberscope/coverage-cli/internal/store"
	"github.com/fiberscope/coverage-cli/pkg/geocode"
)

func newTestRouter(t *testing.T, matcher *spatial.Matcher) (http.Handler, store.Store) {
	t.Helper()

	st, err := store.Open(context.Background(), "sqlite", filepath.Join(t.TempDir(), "serve.db"), "")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	cache := geocode.NewCache()
	cache.Insert(address.Canonical("Leoforos Knossou 100", "Heraklion"), model.Coordinate{Lat: 35.3387, Lon: 25.1442})

	resolver := geocode.NewResolver(cache, nil, geocode.LocaleHints{})
	return newRouter(st, resolver, matcher), st
}

func postJSON(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRouter_Health(t *testing.T) {
	h, _ := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestRouter_GeocodeCacheHit(t *testing.T) {
	h, _ := newTestRouter(t, nil)

	rec := postJSON(t, h, "/api/geocode", `{"address":"Leoforos Knossou 100","city":"Heraklion"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Address   string  `json:"address"`
		Resolved  bool    `json:"resolved"`
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Resolved)
	assert.InDelta(t, 35.3387, resp.Latitude, 1e-9)
	assert.InDelta(t, 25.1442, resp.Longitude, 1e-9)
}

type fixedProvider struct {
	coord model.Coordinate
}

func (p *fixedProvider) Name() string    { return "fixed" }
func (p *fixedProvider) Available() bool { return true }

func (p *fixedProvider) Geocode(context.Context, string, geocode.LocaleHints) (*geocode.Result, error) {
	return &geocode.Result{Coordinate: p.coord, Matched: true, Source: "fixed"}, nil
}

func TestRouter_GeocodePersistsLiveResolution(t *testing.T) {
	ctx := context.Background()
	st, err := store.Open(ctx, "sqlite", filepath.Join(t.TempDir(), "serve.db"), "")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	provider := &fixedProvider{coord: model.Coordinate{Lat: 35.3387, Lon: 25.1442}}
	resolver := geocode.NewResolver(geocode.NewCache(), []geocode.Provider{provider}, geocode.LocaleHints{})
	h := newRouter(st, resolver, nil)

	rec := postJSON(t, h, "/api/geocode", `{"address":"Odos Dedalou 12","city":"Heraklion"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	n, err := st.CacheSize(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// A restarted server seeds its cache from the store and serves the same
	// address without another provider call.
	seeded := geocode.NewCache()
	entries, err := st.LoadCacheEntries(ctx)
	require.NoError(t, err)
	for addr, coord := range entries {
		seeded.Insert(addr, coord)
	}
	coord, ok := seeded.Lookup(address.Canonical("Odos Dedalou 12", "Heraklion"))
	require.True(t, ok)
	assert.InDelta(t, 35.3387, coord.Lat, 1e-9)
}

func TestRouter_GeocodeMiss(t *testing.T) {
	h, _ := newTestRouter(t, nil)

	rec := postJSON(t, h, "/api/geocode", `{"address":"Unknown Street 99","city":"Nowhere"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Resolved bool `json:"resolved"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Resolved)
}

func TestRouter_GeocodeTooShort(t *testing.T) {
	h, _ := newTestRouter(t, nil)

	rec := postJSON(t, h, "/api/geocode", `{"address":"ab","city":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_GeocodeBadBody(t *testing.T) {
	h, _ := newTestRouter(t, nil)

	rec := postJSON(t, h, "/api/geocode", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_MatchWithinThreshold(t *testing.T) {
	matcher := spatial.NewMatcher([]model.CoveragePoint{
		{Coordinate: model.Coordinate{Lat: 35.3388, Lon: 25.1443}},
	}, 20, spatial.ModeFirst)
	h, _ := newTestRouter(t, matcher)

	rec := postJSON(t, h, "/api/match", `{"latitude":35.3387,"longitude":25.1442}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Matched  bool    `json:"matched"`
		Distance float64 `json:"distance_m"`
		Exact    bool    `json:"exact"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Matched)
	assert.False(t, resp.Exact)
	assert.InDelta(t, 14.34, resp.Distance, 0.05)
}

func TestRouter_MatchExact(t *testing.T) {
	matcher := spatial.NewMatcher([]model.CoveragePoint{
		{Coordinate: model.Coordinate{Lat: 35.3387, Lon: 25.1442}},
	}, 20, spatial.ModeFirst)
	h, _ := newTestRouter(t, matcher)

	rec := postJSON(t, h, "/api/match", `{"latitude":35.3387,"longitude":25.1442}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Matched bool `json:"matched"`
		Exact   bool `json:"exact"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Matched)
	assert.True(t, resp.Exact)
}

func TestRouter_MatchNoCoverageLoaded(t *testing.T) {
	h, _ := newTestRouter(t, nil)

	rec := postJSON(t, h, "/api/match", `{"latitude":35.3387,"longitude":25.1442}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRouter_MatchInvalidCoordinate(t *testing.T) {
	matcher := spatial.NewMatcher([]model.CoveragePoint{
		{Coordinate: model.Coordinate{Lat: 35.3387, Lon: 25.1442}},
	}, 20, spatial.ModeFirst)
	h, _ := newTestRouter(t, matcher)

	rec := postJSON(t, h, "/api/match", `{"latitude":123.0,"longitude":25.1442}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_RunsEmpty(t *testing.T) {
	h, _ := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/runs", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestRouter_RunLifecycle(t *testing.T) {
	h, st := newTestRouter(t, nil)

	run, err := st.CreateRun(context.Background(), "match")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/runs/"+run.ID, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var got model.Run
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, run.ID, got.ID)
	assert.Equal(t, "match", got.Kind)
	assert.Equal(t, model.RunStatusRunning, got.Status)

	req = httptest.NewRequest(http.MethodGet, "/api/runs", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var runs []model.Run
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, run.ID, runs[0].ID)
}

func TestRouter_RunNotFound(t *testing.T) {
	h, _ := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/runs/00000000-0000-0000-0000-000000000000", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
