package geocode

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fiberscope/coverage-cli/internal/model"
)

const nominatimBaseURL = "https://nominatim.openstreetmap.org/search"

// NominatimProvider is the free OpenStreetMap geocoder. Fair-use policy caps
// it at one request per second, enforced with a rate limiter before every
// live call.
type NominatimProvider struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	limiter    *rate.Limiter
}

// NominatimOption configures the provider.
type NominatimOption func(*NominatimProvider)

// WithNominatimBaseURL overrides the API endpoint (self-hosted instances,
// tests).
func WithNominatimBaseURL(u string) NominatimOption {
	return func(p *NominatimProvider) { p.baseURL = u }
}

// WithNominatimHTTPClient sets a custom HTTP client.
func WithNominatimHTTPClient(hc *http.Client) NominatimOption {
	return func(p *NominatimProvider) { p.httpClient = hc }
}

// WithNominatimRateLimit sets the requests-per-second limit for live calls.
func WithNominatimRateLimit(rps float64) NominatimOption {
	return func(p *NominatimProvider) { p.limiter = rate.NewLimiter(rate.Limit(rps), 1) }
}

// NewNominatimProvider creates the free provider with fair-use defaults.
func NewNominatimProvider(opts ...NominatimOption) *NominatimProvider {
	p := &NominatimProvider{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    nominatimBaseURL,
		// Nominatim usage policy requires an identifying User-Agent.
		userAgent: "coverage-cli/1.0 (https://github.com/fiberscope/coverage-cli)",
		limiter:   rate.NewLimiter(1, 1),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name implements Provider.
func (p *NominatimProvider) Name() string { return "nominatim" }

// Available implements Provider. The free endpoint needs no credentials.
func (p *NominatimProvider) Available() bool { return true }

// nominatimResult is one entry of the search response; coordinates arrive as
// strings.
type nominatimResult struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}

// Geocode implements Provider against the Nominatim search API.
func (p *NominatimProvider) Geocode(ctx context.Context, query string, hints LocaleHints) (*Result, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim rate limit wait")
	}

	params := url.Values{
		"q":      {query},
		"format": {"json"},
		"limit":  {"1"},
	}
	if hints.Language != "" {
		params.Set("accept-language", hints.Language)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim build request")
	}
	req.Header.Set("User-Agent", p.userAgent)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim request")
	}
	defer resp.Body.Close() //nolint:errcheck

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusTooManyRequests, http.StatusForbidden:
		// 403 is how the public endpoint signals fair-use violations.
		return nil, eris.Wrapf(ErrRateLimited, "nominatim status %d", resp.StatusCode)
	default:
		return nil, eris.Errorf("geocode: nominatim returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim read body")
	}

	var results []nominatimResult
	if err := json.Unmarshal(body, &results); err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim parse response")
	}
	if len(results) == 0 {
		return &Result{Matched: false, Source: p.Name()}, nil
	}

	coord, err := model.ParseCoordinate(results[0].Lat, results[0].Lon)
	if err != nil {
		zap.L().Debug("nominatim returned unparseable coordinates",
			zap.String("lat", results[0].Lat),
			zap.String("lon", results[0].Lon),
		)
		return &Result{Matched: false, Source: p.Name()}, nil
	}

	return &Result{Coordinate: coord, Matched: true, Source: p.Name()}, nil
}
