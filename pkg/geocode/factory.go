package geocode

import (
	"net/http"
	"time"

	"github.com/rotisserie/eris"
)

// ChainConfig selects and tunes the provider chain.
type ChainConfig struct {
	// Provider is "nominatim" to force the free provider, or "google" to
	// require the keyed one. Empty picks automatically: the keyed provider
	// leads whenever an API key is present, with the free provider behind it.
	Provider     string
	GoogleAPIKey string
	// RPS throttles live calls per provider. Zero keeps each provider's
	// fair-use default.
	RPS float64
	// Timeout bounds every provider HTTP call. Zero means 10s.
	Timeout time.Duration
}

// NewChain builds the ordered provider chain from configuration.
func NewChain(cfg ChainConfig) ([]Provider, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	hc := &http.Client{Timeout: timeout}

	var nominatimOpts []NominatimOption
	var googleOpts []GoogleOption
	nominatimOpts = append(nominatimOpts, WithNominatimHTTPClient(hc))
	googleOpts = append(googleOpts, WithGoogleHTTPClient(hc))
	if cfg.RPS > 0 {
		nominatimOpts = append(nominatimOpts, WithNominatimRateLimit(cfg.RPS))
		googleOpts = append(googleOpts, WithGoogleRateLimit(cfg.RPS))
	}

	free := NewNominatimProvider(nominatimOpts...)
	keyed := NewGoogleProvider(cfg.GoogleAPIKey, googleOpts...)

	switch cfg.Provider {
	case "", "auto":
		// Keyed first when credentials exist; Available() skips it otherwise.
		return []Provider{keyed, free}, nil
	case "nominatim":
		return []Provider{free}, nil
	case "google":
		if !keyed.Available() {
			return nil, eris.New("geocode: provider google selected but no API key configured")
		}
		return []Provider{keyed, free}, nil
	default:
		return nil, eris.Errorf("geocode: unknown provider %q", cfg.Provider)
	}
}
