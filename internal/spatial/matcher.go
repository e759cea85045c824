package spatial

import (
	"math"

	"github.com/rotisserie/eris"
	geom "github.com/twpayne/go-geom"

	"github.com/fiberscope/coverage-cli/internal/model"
)

// Mode selects how a qualifying coverage point is chosen.
type Mode string

const (
	// ModeBest scans all coverage points and keeps the minimum distance.
	ModeBest Mode = "best"
	// ModeFirst returns the first point within threshold in input order.
	ModeFirst Mode = "first"

	// exactPlaces is the decimal precision at which a record coordinate and a
	// coverage point are considered the same rooftop (~1.1 m).
	exactPlaces = 5

	// prefilterMinPoints is the coverage-set size above which the bounding-box
	// prefilter is engaged. Below it the brute-force scan is already cheap.
	prefilterMinPoints = 256
)

// ParseMode validates a configured matching mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeBest, ModeFirst:
		return Mode(s), nil
	default:
		return "", eris.Errorf("spatial: unknown match mode %q (want best or first)", s)
	}
}

// Matcher finds qualifying coverage points for resolved records. The coverage
// set is read-only for the Matcher's lifetime.
type Matcher struct {
	points    []model.CoveragePoint
	threshold float64
	mode      Mode
	bounds    *geom.Bounds
}

// NewMatcher builds a Matcher over an immutable coverage set with the given
// distance threshold in meters.
func NewMatcher(points []model.CoveragePoint, thresholdMeters float64, mode Mode) *Matcher {
	m := &Matcher{points: points, threshold: thresholdMeters, mode: mode}
	if len(points) >= prefilterMinPoints {
		m.bounds = coverageBounds(points)
	}
	return m
}

// Size returns the number of coverage points the matcher scans.
func (m *Matcher) Size() int { return len(m.points) }

// Match returns the qualifying coverage point for the coordinate, or nil when
// no point lies within the threshold.
func (m *Matcher) Match(c model.Coordinate) *model.MatchResult {
	if len(m.points) == 0 {
		return nil
	}

	query := queryBounds(c, m.threshold)
	if m.bounds != nil && !boundsOverlap(m.bounds, query) {
		return nil
	}

	switch m.mode {
	case ModeFirst:
		return m.matchFirst(c, query)
	default:
		return m.matchBest(c, query)
	}
}

func (m *Matcher) matchFirst(c model.Coordinate, query *geom.Bounds) *model.MatchResult {
	for _, p := range m.points {
		if m.bounds != nil && !query.OverlapsPoint(geom.XY, geom.Coord{p.Lon, p.Lat}) {
			continue
		}
		d := Distance(c.Lat, c.Lon, p.Lat, p.Lon)
		if d <= m.threshold {
			return &model.MatchResult{
				Point:          p,
				DistanceMeters: d,
				Exact:          c.EqualAtPrecision(p.Coordinate, exactPlaces),
			}
		}
	}
	return nil
}

func (m *Matcher) matchBest(c model.Coordinate, query *geom.Bounds) *model.MatchResult {
	best := -1
	bestDist := math.Inf(1)
	for i, p := range m.points {
		if m.bounds != nil && !query.OverlapsPoint(geom.XY, geom.Coord{p.Lon, p.Lat}) {
			continue
		}
		d := Distance(c.Lat, c.Lon, p.Lat, p.Lon)
		if d < bestDist {
			best, bestDist = i, d
		}
	}
	if best < 0 || bestDist > m.threshold {
		return nil
	}
	p := m.points[best]
	return &model.MatchResult{
		Point:          p,
		DistanceMeters: bestDist,
		Exact:          c.EqualAtPrecision(p.Coordinate, exactPlaces),
	}
}

// coverageBounds computes the bounding box of the whole coverage set.
func coverageBounds(points []model.CoveragePoint) *geom.Bounds {
	minLon, minLat := math.Inf(1), math.Inf(1)
	maxLon, maxLat := math.Inf(-1), math.Inf(-1)
	for _, p := range points {
		minLon = math.Min(minLon, p.Lon)
		minLat = math.Min(minLat, p.Lat)
		maxLon = math.Max(maxLon, p.Lon)
		maxLat = math.Max(maxLat, p.Lat)
	}
	return geom.NewBounds(geom.XY).SetCoords(
		geom.Coord{minLon, minLat},
		geom.Coord{maxLon, maxLat},
	)
}

// queryBounds expands a record coordinate by a conservative degree delta for
// the threshold, so the box never excludes a point within range.
func queryBounds(c model.Coordinate, meters float64) *geom.Bounds {
	// Shortest meridian degree is ~110.57 km; divide by less to over-cover.
	latDelta := meters / 110000

	cosLat := math.Cos(radians(c.Lat))
	lonDelta := 180.0
	if cosLat > 1e-6 {
		lonDelta = meters / (110000 * cosLat)
		if lonDelta > 180 {
			lonDelta = 180
		}
	}

	return geom.NewBounds(geom.XY).SetCoords(
		geom.Coord{c.Lon - lonDelta, c.Lat - latDelta},
		geom.Coord{c.Lon + lonDelta, c.Lat + latDelta},
	)
}

func boundsOverlap(a, b *geom.Bounds) bool {
	return a.Min(0) <= b.Max(0) && b.Min(0) <= a.Max(0) &&
		a.Min(1) <= b.Max(1) && b.Min(1) <= a.Max(1)
}
