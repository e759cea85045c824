// Package geocode resolves canonical addresses to WGS84 coordinates through
// an ordered provider chain with caching, throttling, and locale fallback.
package geocode

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/fiberscope/coverage-cli/internal/model"
)

// LocaleHints steer providers toward the right country and language.
type LocaleHints struct {
	// Country is appended to queries that a provider could not resolve and
	// that do not already mention it (e.g. "Greece" or "Ελλάδα").
	Country string
	// Language is the Accept-Language preference, e.g. "el,en".
	Language string
}

// Result is the outcome of one provider lookup. A miss is not an error.
type Result struct {
	Coordinate model.Coordinate
	Matched    bool
	Source     string
}

// ErrRateLimited marks a provider response that asked us to slow down. It is
// the only provider error worth retrying.
var ErrRateLimited = eris.New("geocode: provider rate limited")

// Provider is a single geocoding backend.
type Provider interface {
	Name() string
	// Available reports whether the provider can be used at all (e.g. the
	// keyed provider without credentials is not).
	Available() bool
	Geocode(ctx context.Context, query string, hints LocaleHints) (*Result, error)
}
