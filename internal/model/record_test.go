package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCoordinateValue_DecimalComma(t *testing.T) {
	comma, err := ParseCoordinateValue("38,0")
	require.NoError(t, err)

	point, err := ParseCoordinateValue("38.0")
	require.NoError(t, err)

	assert.Equal(t, point, comma)
	assert.InDelta(t, 38.0, comma, 0)
}

func TestParseCoordinateValue_Whitespace(t *testing.T) {
	v, err := ParseCoordinateValue("  25,1442 ")
	require.NoError(t, err)
	assert.InDelta(t, 25.1442, v, 1e-9)
}

func TestParseCoordinateValue_Rejects(t *testing.T) {
	for _, raw := range []string{"", "abc", "NaN", "+Inf", "-Inf", "38,0,5"} {
		_, err := ParseCoordinateValue(raw)
		assert.Error(t, err, "input %q should not parse", raw)
	}
}

func TestParseCoordinate_RangeCheck(t *testing.T) {
	_, err := ParseCoordinate("91.0", "25.0")
	assert.Error(t, err)

	_, err = ParseCoordinate("35.0", "181.0")
	assert.Error(t, err)

	c, err := ParseCoordinate("35,3387", "25,1442")
	require.NoError(t, err)
	assert.InDelta(t, 35.3387, c.Lat, 1e-9)
	assert.InDelta(t, 25.1442, c.Lon, 1e-9)
}

func TestEqualAtPrecision(t *testing.T) {
	a := Coordinate{Lat: 35.33871, Lon: 25.14422}
	b := Coordinate{Lat: 35.338711, Lon: 25.144222}
	c := Coordinate{Lat: 35.33881, Lon: 25.14432}

	assert.True(t, a.EqualAtPrecision(b, 5))
	assert.False(t, a.EqualAtPrecision(c, 5))
	assert.True(t, a.EqualAtPrecision(c, 3))
}
