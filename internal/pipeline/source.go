package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/fiberscope/coverage-cli/internal/model"
	"github.com/fiberscope/coverage-cli/internal/tabular"
)

// RecordSource produces the business records a run operates on. The second
// return is the count of coordinate cells that were present but unparseable.
type RecordSource interface {
	Load(ctx context.Context) ([]model.BusinessRecord, int, error)
}

// FileSource reads business records from a CSV or XLSX table, resolving
// localized headers through the alias map.
type FileSource struct {
	Path    string
	Aliases tabular.Aliases
}

// Load implements RecordSource. Rows that already carry parseable coordinates
// keep them and skip geocoding later; rows whose coordinate cells are present
// but malformed are counted and fall back to geocoding.
func (s *FileSource) Load(_ context.Context) ([]model.BusinessRecord, int, error) {
	table, err := tabular.ReadTable(s.Path, s.Aliases, tabular.FieldAddress)
	if err != nil {
		return nil, 0, err
	}

	resolver := tabular.NewFieldResolver(table.Headers, s.Aliases)
	if !resolver.Has(tabular.FieldAddress) {
		return nil, 0, ErrNoAddressColumn
	}
	hasCoords := resolver.Has(tabular.FieldLat) && resolver.Has(tabular.FieldLon)

	records := make([]model.BusinessRecord, 0, len(table.Rows))
	malformed := 0
	for _, row := range table.Rows {
		rec := model.BusinessRecord{
			Name:     resolver.Value(row, tabular.FieldName),
			Address:  resolver.Value(row, tabular.FieldAddress),
			City:     resolver.Value(row, tabular.FieldCity),
			Category: resolver.Value(row, tabular.FieldCategory),
		}
		if hasCoords {
			rawLat := resolver.Value(row, tabular.FieldLat)
			rawLon := resolver.Value(row, tabular.FieldLon)
			if rawLat != "" || rawLon != "" {
				coord, parseErr := model.ParseCoordinate(rawLat, rawLon)
				if parseErr != nil {
					malformed++
				} else {
					rec.Coordinate = &coord
				}
			}
		}
		records = append(records, rec)
	}

	if malformed > 0 {
		zap.L().Warn("input rows with malformed coordinates fall back to geocoding",
			zap.String("path", s.Path),
			zap.Int("rows", malformed),
		)
	}
	return records, malformed, nil
}

// BusinessFinder searches a business registry for one category in one city.
type BusinessFinder interface {
	Search(ctx context.Context, category, city string) ([]model.BusinessRecord, error)
}

// RegistrySource discovers business records from a registry instead of a file,
// one search per category and city pair.
type RegistrySource struct {
	Finder     BusinessFinder
	Categories []string
	Cities     []string
}

// Load implements RecordSource. A failed search logs and skips the pair so a
// single flaky query does not abort discovery.
func (s *RegistrySource) Load(ctx context.Context) ([]model.BusinessRecord, int, error) {
	var records []model.BusinessRecord
	for _, city := range s.Cities {
		for _, category := range s.Categories {
			if err := ctx.Err(); err != nil {
				return nil, 0, err
			}
			found, err := s.Finder.Search(ctx, category, city)
			if err != nil {
				zap.L().Warn("registry search failed",
					zap.String("category", category),
					zap.String("city", city),
					zap.Error(err),
				)
				continue
			}
			records = append(records, found...)
		}
	}
	return records, 0, nil
}
