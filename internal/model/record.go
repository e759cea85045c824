// Package model holds the core domain entities shared across the pipeline.
package model

import (
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// Coordinate is a WGS84 point in decimal degrees.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Valid reports whether the coordinate is finite and inside the WGS84 range.
func (c Coordinate) Valid() bool {
	if math.IsNaN(c.Lat) || math.IsInf(c.Lat, 0) || math.IsNaN(c.Lon) || math.IsInf(c.Lon, 0) {
		return false
	}
	return c.Lat >= -90 && c.Lat <= 90 && c.Lon >= -180 && c.Lon <= 180
}

// EqualAtPrecision reports whether both coordinates coincide when rounded to
// the given number of decimal places. Five places is roughly 1.1 m at the
// equator, which is what the exact-match flag uses.
func (c Coordinate) EqualAtPrecision(other Coordinate, places int) bool {
	scale := math.Pow10(places)
	return math.Round(c.Lat*scale) == math.Round(other.Lat*scale) &&
		math.Round(c.Lon*scale) == math.Round(other.Lon*scale)
}

// ParseCoordinateValue parses a single latitude or longitude cell. Locale
// inputs using a decimal comma ("38,0") are folded to a decimal point before
// parsing. Non-finite values are rejected rather than coerced to zero.
func ParseCoordinateValue(raw string) (float64, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, eris.New("model: empty coordinate value")
	}
	// Decimal comma, but only when it is the sole separator: "25,1442" is a
	// locale decimal, "1,234.5" is a thousands separator.
	if strings.Count(s, ",") == 1 && !strings.Contains(s, ".") {
		s = strings.Replace(s, ",", ".", 1)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, eris.Wrapf(err, "model: parse coordinate %q", raw)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, eris.Errorf("model: coordinate %q is not finite", raw)
	}
	return v, nil
}

// ParseCoordinate parses a lat/lon cell pair into a validated Coordinate.
func ParseCoordinate(rawLat, rawLon string) (Coordinate, error) {
	lat, err := ParseCoordinateValue(rawLat)
	if err != nil {
		return Coordinate{}, err
	}
	lon, err := ParseCoordinateValue(rawLon)
	if err != nil {
		return Coordinate{}, err
	}
	c := Coordinate{Lat: lat, Lon: lon}
	if !c.Valid() {
		return Coordinate{}, eris.Errorf("model: coordinate (%s, %s) out of WGS84 range", rawLat, rawLon)
	}
	return c, nil
}

// BusinessRecord is one input row after field resolution. The coordinate is
// set at most once, either from the input row itself or by the geocode
// resolver, and never mutated afterwards.
type BusinessRecord struct {
	Name             string
	Address          string
	City             string
	Category         string
	CanonicalAddress string
	Coordinate       *Coordinate
	Match            *MatchResult
}

// HasCoordinate reports whether the record carries a resolved coordinate.
func (r *BusinessRecord) HasCoordinate() bool {
	return r.Coordinate != nil
}

// CoveragePoint is one immutable infrastructure reference coordinate.
type CoveragePoint struct {
	Coordinate
}

// MatchResult links a record to the coverage point that qualified it.
type MatchResult struct {
	Point          CoveragePoint
	DistanceMeters float64
	Exact          bool
}

// RunSummary aggregates per-record outcomes for one pipeline run. Per-record
// failures are counted here instead of aborting the run.
type RunSummary struct {
	TotalRecords    int `json:"total_records"`
	Dropped         int `json:"dropped"` // canonical address below minimum length
	UniqueAddresses int `json:"unique_addresses"`
	CacheHits       int `json:"cache_hits"`
	Resolved        int `json:"resolved"`
	Failures        int `json:"failures"` // addresses no provider could resolve
	MalformedCoords int `json:"malformed_coords"` // unparseable coordinate cells, any source
	Matches         int `json:"matches"`
}
