package pipeline

import (
	"sort"
	"strconv"

	"github.com/fiberscope/coverage-cli/internal/model"
)

// geocodedHeaders is the column layout of the full geocoded output. Every
// input record appears, with empty coordinate cells when resolution failed.
var geocodedHeaders = []string{"name", "address", "city", "category", "latitude", "longitude"}

// matchHeaders is the column layout of the coverage match output.
var matchHeaders = []string{"name", "address", "city", "category", "latitude", "longitude", "matched_latitude", "matched_longitude", "distance_m", "exact"}

// GeocodedRows renders all records as the full geocoded table, preserving
// input order.
func GeocodedRows(records []model.BusinessRecord) ([]string, [][]string) {
	rows := make([][]string, 0, len(records))
	for i := range records {
		rec := &records[i]
		lat, lon := "", ""
		if rec.HasCoordinate() {
			lat = formatCoord(rec.Coordinate.Lat)
			lon = formatCoord(rec.Coordinate.Lon)
		}
		rows = append(rows, []string{rec.Name, rec.Address, rec.City, rec.Category, lat, lon})
	}
	return append([]string(nil), geocodedHeaders...), rows
}

// MatchRows renders only the matched records, exact matches first and then by
// ascending distance.
func MatchRows(records []model.BusinessRecord) ([]string, [][]string) {
	var matched []*model.BusinessRecord
	for i := range records {
		if records[i].Match != nil {
			matched = append(matched, &records[i])
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		a, b := matched[i].Match, matched[j].Match
		if a.Exact != b.Exact {
			return a.Exact
		}
		return a.DistanceMeters < b.DistanceMeters
	})

	rows := make([][]string, 0, len(matched))
	for _, rec := range matched {
		m := rec.Match
		rows = append(rows, []string{
			rec.Name,
			rec.Address,
			rec.City,
			rec.Category,
			formatCoord(rec.Coordinate.Lat),
			formatCoord(rec.Coordinate.Lon),
			formatCoord(m.Point.Lat),
			formatCoord(m.Point.Lon),
			strconv.FormatFloat(m.DistanceMeters, 'f', 2, 64),
			strconv.FormatBool(m.Exact),
		})
	}
	return append([]string(nil), matchHeaders...), rows
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
