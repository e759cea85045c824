package tabular

import (
	"path/filepath"
	"strings"

	shp "github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/fiberscope/coverage-cli/internal/model"
)

// ErrNoCoordinateColumns is returned when neither latitude nor longitude can
// be resolved on any sheet of a coverage table.
var ErrNoCoordinateColumns = eris.New("tabular: no latitude/longitude columns resolvable")

// LoadCoveragePoints reads the coverage reference set from a CSV, XLSX, or
// point shapefile. Rows whose coordinates fail to parse as finite floats are
// dropped and counted, never coerced to zero.
func LoadCoveragePoints(path string, aliases Aliases) ([]model.CoveragePoint, int, error) {
	if strings.EqualFold(filepath.Ext(path), ".shp") {
		return readShapefilePoints(path)
	}

	table, err := ReadTable(path, aliases, FieldLat, FieldLon)
	if err != nil {
		return nil, 0, err
	}

	resolver := NewFieldResolver(table.Headers, aliases)
	if !resolver.Has(FieldLat) || !resolver.Has(FieldLon) {
		return nil, 0, ErrNoCoordinateColumns
	}

	var points []model.CoveragePoint
	dropped := 0
	for _, row := range table.Rows {
		c, parseErr := model.ParseCoordinate(
			resolver.Value(row, FieldLat),
			resolver.Value(row, FieldLon),
		)
		if parseErr != nil {
			dropped++
			continue
		}
		points = append(points, model.CoveragePoint{Coordinate: c})
	}

	if dropped > 0 {
		zap.L().Warn("dropped coverage rows with malformed coordinates",
			zap.String("path", path),
			zap.Int("dropped", dropped),
		)
	}
	return points, dropped, nil
}

// readShapefilePoints loads point geometries from an ESRI shapefile, the
// format infrastructure teams hand over cabinet locations in.
func readShapefilePoints(path string) ([]model.CoveragePoint, int, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, 0, eris.Wrapf(err, "tabular: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	var points []model.CoveragePoint
	dropped := 0
	for reader.Next() {
		_, shape := reader.Shape()
		p, ok := shape.(*shp.Point)
		if !ok {
			dropped++
			continue
		}
		c := model.Coordinate{Lat: p.Y, Lon: p.X}
		if !c.Valid() {
			dropped++
			continue
		}
		points = append(points, model.CoveragePoint{Coordinate: c})
	}
	if err := reader.Err(); err != nil {
		return nil, dropped, eris.Wrapf(err, "tabular: read shapefile %s", path)
	}
	return points, dropped, nil
}
