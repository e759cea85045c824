// Package tabular reads flexible business and coverage tables (CSV, XLSX,
// point shapefiles) and resolves their localized column headers to canonical
// fields.
package tabular

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Field is a canonical column the pipeline understands.
type Field string

const (
	FieldName     Field = "name"
	FieldAddress  Field = "address"
	FieldCity     Field = "city"
	FieldCategory Field = "category"
	FieldLat      Field = "latitude"
	FieldLon      Field = "longitude"
)

// Aliases maps each canonical field to an ordered candidate list of header
// names. Earlier entries win; matching is case- and diacritic-insensitive.
type Aliases map[Field][]string

// DefaultAliases covers the English and Greek headers seen in the source
// spreadsheets and registry exports.
func DefaultAliases() Aliases {
	return Aliases{
		FieldName: {
			"name", "business", "company",
			"όνομα", "επωνυμία", "επιχείρηση",
		},
		FieldAddress: {
			"address", "street",
			"διεύθυνση", "οδός",
		},
		FieldCity: {
			"city", "town", "municipality",
			"πόλη", "περιοχή", "δήμος",
		},
		FieldCategory: {
			"category", "type", "activity",
			"κατηγορία", "δραστηριότητα",
		},
		FieldLat: {
			"latitude", "lat",
			"γεωγραφικό πλάτος", "πλάτος",
		},
		FieldLon: {
			"longitude", "lon", "lng", "long",
			"γεωγραφικό μήκος", "μήκος",
		},
	}
}

// LoadAliases reads a YAML override file mapping canonical field names to
// candidate header lists and merges it over the defaults. Overridden fields
// replace the default list entirely; untouched fields keep the defaults.
func LoadAliases(path string) (Aliases, error) {
	aliases := DefaultAliases()
	if path == "" {
		return aliases, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "tabular: read aliases file %s", path)
	}

	var override map[string][]string
	if err := yaml.Unmarshal(data, &override); err != nil {
		return nil, eris.Wrapf(err, "tabular: parse aliases file %s", path)
	}

	for field, candidates := range override {
		f := Field(field)
		if _, known := aliases[f]; !known {
			return nil, eris.Errorf("tabular: unknown field %q in aliases file", field)
		}
		if len(candidates) > 0 {
			aliases[f] = candidates
		}
	}
	return aliases, nil
}
