// Package registry discovers businesses through the OpenStreetMap Nominatim
// search API, one category and city pair at a time.
package registry

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fiberscope/coverage-cli/internal/model"
)

const defaultBaseURL = "https://nominatim.openstreetmap.org/search"

// Client searches a business registry.
type Client interface {
	Search(ctx context.Context, category, city string) ([]model.BusinessRecord, error)
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) { c.baseURL = u }
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) { c.http = hc }
}

// WithPaging sets the page size and page cap per search.
func WithPaging(pageSize, maxPages int) Option {
	return func(c *httpClient) {
		if pageSize > 0 {
			c.pageSize = pageSize
		}
		if maxPages > 0 {
			c.maxPages = maxPages
		}
	}
}

// WithRateLimit sets the requests-per-second limit for live calls.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) { c.limiter = rate.NewLimiter(rate.Limit(rps), 1) }
}

type httpClient struct {
	baseURL   string
	userAgent string
	http      *http.Client
	limiter   *rate.Limiter
	pageSize  int
	maxPages  int
}

// NewClient creates a registry client with fair-use defaults.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL:   defaultBaseURL,
		userAgent: "coverage-cli/1.0 (https://github.com/fiberscope/coverage-cli)",
		http:      &http.Client{Timeout: 30 * time.Second},
		limiter:   rate.NewLimiter(1, 1),
		pageSize:  50,
		maxPages:  5,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// searchResult is one entry of the Nominatim search response.
type searchResult struct {
	PlaceID     int64  `json:"place_id"`
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	Address     struct {
		HouseNumber string `json:"house_number"`
		Road        string `json:"road"`
		City        string `json:"city"`
		Town        string `json:"town"`
		Village     string `json:"village"`
	} `json:"address"`
}

// Search pages through all results for one category in one city. Paging uses
// exclude_place_ids, which is how Nominatim continues a query past its result
// cap. Entries without parseable coordinates are skipped.
func (c *httpClient) Search(ctx context.Context, category, city string) ([]model.BusinessRecord, error) {
	var records []model.BusinessRecord
	var exclude []string

	for page := 0; page < c.maxPages; page++ {
		results, err := c.searchPage(ctx, category+" in "+city, exclude)
		if err != nil {
			return nil, err
		}
		if len(results) == 0 {
			break
		}

		for _, res := range results {
			exclude = append(exclude, strconv.FormatInt(res.PlaceID, 10))
			rec, ok := c.toRecord(res, category, city)
			if !ok {
				continue
			}
			records = append(records, rec)
		}
		if len(results) < c.pageSize {
			break
		}
	}

	zap.L().Debug("registry search finished",
		zap.String("category", category),
		zap.String("city", city),
		zap.Int("records", len(records)),
	)
	return records, nil
}

func (c *httpClient) searchPage(ctx context.Context, query string, exclude []string) ([]searchResult, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "registry: rate limit wait")
	}

	params := url.Values{
		"q":              {query},
		"format":         {"json"},
		"addressdetails": {"1"},
		"limit":          {strconv.Itoa(c.pageSize)},
	}
	if len(exclude) > 0 {
		params.Set("exclude_place_ids", strings.Join(exclude, ","))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "registry: build request")
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "registry: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("registry: returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "registry: read body")
	}

	var results []searchResult
	if err := json.Unmarshal(body, &results); err != nil {
		return nil, eris.Wrap(err, "registry: parse response")
	}
	return results, nil
}

func (c *httpClient) toRecord(res searchResult, category, city string) (model.BusinessRecord, bool) {
	coord, err := model.ParseCoordinate(res.Lat, res.Lon)
	if err != nil {
		zap.L().Debug("registry entry without coordinates skipped",
			zap.String("name", res.Name),
			zap.Error(err),
		)
		return model.BusinessRecord{}, false
	}

	name := res.Name
	if name == "" {
		name = firstSegment(res.DisplayName)
	}

	street := strings.TrimSpace(res.Address.Road + " " + res.Address.HouseNumber)
	if street == "" {
		street = firstSegment(res.DisplayName)
	}

	town := res.Address.City
	if town == "" {
		town = res.Address.Town
	}
	if town == "" {
		town = res.Address.Village
	}
	if town == "" {
		town = city
	}

	return model.BusinessRecord{
		Name:       name,
		Address:    street,
		City:       town,
		Category:   category,
		Coordinate: &coord,
	}, true
}

func firstSegment(displayName string) string {
	if i := strings.Index(displayName, ","); i >= 0 {
		return strings.TrimSpace(displayName[:i])
	}
	return strings.TrimSpace(displayName)
}
