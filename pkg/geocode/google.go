package geocode

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/fiberscope/coverage-cli/internal/model"
)

const googleGeocodeURL = "https://maps.googleapis.com/maps/api/geocode/json"

// GoogleProvider is the API-keyed geocoder. When credentials are configured
// it takes precedence over the free provider in the resolver chain.
type GoogleProvider struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	limiter    *rate.Limiter
}

// GoogleOption configures the provider.
type GoogleOption func(*GoogleProvider)

// WithGoogleBaseURL overrides the API endpoint (tests).
func WithGoogleBaseURL(u string) GoogleOption {
	return func(p *GoogleProvider) { p.baseURL = u }
}

// WithGoogleHTTPClient sets a custom HTTP client.
func WithGoogleHTTPClient(hc *http.Client) GoogleOption {
	return func(p *GoogleProvider) { p.httpClient = hc }
}

// WithGoogleRateLimit sets the requests-per-second limit for live calls.
func WithGoogleRateLimit(rps float64) GoogleOption {
	return func(p *GoogleProvider) { p.limiter = rate.NewLimiter(rate.Limit(rps), 1) }
}

// NewGoogleProvider creates the keyed provider. An empty key leaves the
// provider unavailable rather than failing construction.
func NewGoogleProvider(apiKey string, opts ...GoogleOption) *GoogleProvider {
	p := &GoogleProvider{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    googleGeocodeURL,
		apiKey:     apiKey,
		limiter:    rate.NewLimiter(10, 1),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name implements Provider.
func (p *GoogleProvider) Name() string { return "google" }

// Available implements Provider.
func (p *GoogleProvider) Available() bool { return p.apiKey != "" }

// googleResponse is the JSON response from the Google Geocoding API.
type googleResponse struct {
	Status  string `json:"status"`
	Results []struct {
		Geometry struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
}

// Geocode implements Provider against the Google Geocoding API.
func (p *GoogleProvider) Geocode(ctx context.Context, query string, hints LocaleHints) (*Result, error) {
	if !p.Available() {
		return nil, eris.New("geocode: google api key not configured")
	}
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "geocode: google rate limit wait")
	}

	params := url.Values{
		"address": {query},
		"key":     {p.apiKey},
	}
	if hints.Language != "" {
		params.Set("language", hints.Language)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: google build request")
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: google request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, eris.Wrapf(ErrRateLimited, "google status %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("geocode: google returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: google read body")
	}

	var gr googleResponse
	if err := json.Unmarshal(body, &gr); err != nil {
		return nil, eris.Wrap(err, "geocode: google parse response")
	}

	switch gr.Status {
	case "OK":
	case "ZERO_RESULTS":
		return &Result{Matched: false, Source: p.Name()}, nil
	case "OVER_QUERY_LIMIT", "RESOURCE_EXHAUSTED":
		return nil, eris.Wrapf(ErrRateLimited, "google status %s", gr.Status)
	default:
		return nil, eris.Errorf("geocode: google returned status %s", gr.Status)
	}
	if len(gr.Results) == 0 {
		return &Result{Matched: false, Source: p.Name()}, nil
	}

	coord := model.Coordinate{
		Lat: gr.Results[0].Geometry.Location.Lat,
		Lon: gr.Results[0].Geometry.Location.Lng,
	}
	if !coord.Valid() {
		return &Result{Matched: false, Source: p.Name()}, nil
	}
	return &Result{Coordinate: coord, Matched: true, Source: p.Name()}, nil
}
