package spatial

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fiberscope/coverage-cli/internal/model"
)

func point(lat, lon float64) model.CoveragePoint {
	return model.CoveragePoint{Coordinate: model.Coordinate{Lat: lat, Lon: lon}}
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("best")
	require.NoError(t, err)
	assert.Equal(t, ModeBest, m)

	m, err = ParseMode("first")
	require.NoError(t, err)
	assert.Equal(t, ModeFirst, m)

	_, err = ParseMode("nearest")
	assert.Error(t, err)
}

func TestMatch_WithinThreshold(t *testing.T) {
	matcher := NewMatcher([]model.CoveragePoint{point(35.3387, 25.1442)}, 20, ModeBest)

	res := matcher.Match(model.Coordinate{Lat: 35.3388, Lon: 25.1443})
	require.NotNil(t, res)
	assert.InDelta(t, 14.34, res.DistanceMeters, 0.05)
	assert.False(t, res.Exact, "difference exceeds the 5-decimal tolerance")
	assert.LessOrEqual(t, res.DistanceMeters, 20.0)
}

func TestMatch_OutsideThreshold(t *testing.T) {
	matcher := NewMatcher([]model.CoveragePoint{point(35.3387, 25.1442)}, 10, ModeBest)
	assert.Nil(t, matcher.Match(model.Coordinate{Lat: 35.3388, Lon: 25.1443}))
}

func TestMatch_BestPicksMinimum(t *testing.T) {
	points := []model.CoveragePoint{
		point(35.33930, 25.13380), // ~41.6 m away
		point(35.33908, 25.13400), // farther in input order but listed second
		point(35.33910, 25.13345), // ~2.8 m away
	}
	matcher := NewMatcher(points, 100, ModeBest)

	res := matcher.Match(model.Coordinate{Lat: 35.33908, Lon: 25.13343})
	require.NotNil(t, res)
	assert.Equal(t, points[2], res.Point)

	// No other point is closer than the reported distance.
	for _, p := range points {
		d := Distance(35.33908, 25.13343, p.Lat, p.Lon)
		assert.GreaterOrEqual(t, d, res.DistanceMeters)
	}
}

func TestMatch_FirstShortCircuits(t *testing.T) {
	points := []model.CoveragePoint{
		point(35.33930, 25.13380), // ~41.6 m, first in order
		point(35.33910, 25.13345), // nearer, but never reached
	}
	matcher := NewMatcher(points, 100, ModeFirst)

	res := matcher.Match(model.Coordinate{Lat: 35.33908, Lon: 25.13343})
	require.NotNil(t, res)
	assert.Equal(t, points[0], res.Point)
	assert.InDelta(t, 41.56, res.DistanceMeters, 0.05)
}

func TestMatch_ZeroThreshold(t *testing.T) {
	points := []model.CoveragePoint{point(35.3387, 25.1442)}
	matcher := NewMatcher(points, 0, ModeBest)

	// Exact float equality qualifies.
	res := matcher.Match(model.Coordinate{Lat: 35.3387, Lon: 25.1442})
	require.NotNil(t, res)
	assert.Zero(t, res.DistanceMeters)
	assert.True(t, res.Exact)

	// Anything else is excluded.
	assert.Nil(t, matcher.Match(model.Coordinate{Lat: 35.33871, Lon: 25.1442}))
}

func TestMatch_ExactFlagAtFiveDecimals(t *testing.T) {
	points := []model.CoveragePoint{point(35.33871, 25.14422)}
	matcher := NewMatcher(points, 20, ModeBest)

	res := matcher.Match(model.Coordinate{Lat: 35.338711, Lon: 25.144221})
	require.NotNil(t, res)
	assert.True(t, res.Exact)
}

func TestMatch_EmptyCoverage(t *testing.T) {
	matcher := NewMatcher(nil, 100, ModeBest)
	assert.Nil(t, matcher.Match(model.Coordinate{Lat: 35.3387, Lon: 25.1442}))
}

func TestMatch_PrefilterKeepsResults(t *testing.T) {
	// Enough points to engage the bounding-box prefilter; the qualifying point
	// must still be found among the far-away bulk.
	points := make([]model.CoveragePoint, 0, prefilterMinPoints+1)
	for i := 0; i < prefilterMinPoints; i++ {
		points = append(points, point(40.0+float64(i)*0.001, 22.0))
	}
	points = append(points, point(35.33910, 25.13345))

	matcher := NewMatcher(points, 50, ModeBest)
	res := matcher.Match(model.Coordinate{Lat: 35.33908, Lon: 25.13343})
	require.NotNil(t, res)
	assert.Equal(t, points[len(points)-1], res.Point)

	// A record far from every point stays unmatched.
	assert.Nil(t, matcher.Match(model.Coordinate{Lat: 10.0, Lon: 10.0}))
}
