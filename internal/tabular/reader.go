package tabular

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// Table is one sheet of tabular input: a header row plus data rows.
type Table struct {
	Headers []string
	Rows    [][]string
}

// Empty reports whether the table has no data rows.
func (t *Table) Empty() bool { return len(t.Rows) == 0 }

// ReadTable loads a CSV or XLSX file by extension. For XLSX files with more
// than one sheet, the first sheet whose headers resolve the wanted fields is
// chosen (coverage exports often carry extra legend sheets).
func ReadTable(path string, aliases Aliases, wanted ...Field) (*Table, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return readCSV(path)
	case ".xlsx":
		return readXLSX(path, aliases, wanted)
	default:
		return nil, eris.Errorf("tabular: unsupported file type %q", filepath.Ext(path))
	}
}

// readCSV reads a comma- or semicolon-delimited file. Greek spreadsheet
// exports commonly use semicolons because the comma is the decimal separator.
func readCSV(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "tabular: read %s", path)
	}

	records, err := parseCSV(string(data), ',')
	if err != nil || len(records) == 0 || len(records[0]) <= 1 {
		if semi, semiErr := parseCSV(string(data), ';'); semiErr == nil && len(semi) > 0 && len(semi[0]) > 1 {
			records, err = semi, nil
		}
	}
	if err != nil {
		return nil, eris.Wrapf(err, "tabular: parse csv %s", path)
	}
	if len(records) == 0 {
		return &Table{}, nil
	}
	return &Table{Headers: records[0], Rows: records[1:]}, nil
}

func parseCSV(data string, delim rune) ([][]string, error) {
	r := csv.NewReader(strings.NewReader(data))
	r.Comma = delim
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	return r.ReadAll()
}

func readXLSX(path string, aliases Aliases, wanted []Field) (*Table, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "tabular: open xlsx %s", path)
	}
	if len(f.Sheets) == 0 {
		return nil, eris.Errorf("tabular: %s has no sheets", path)
	}

	if len(f.Sheets) > 1 && len(wanted) > 0 {
		for _, sheet := range f.Sheets {
			t := sheetToTable(sheet)
			if t.Empty() && len(t.Headers) == 0 {
				continue
			}
			if resolvesAll(t.Headers, aliases, wanted) {
				return t, nil
			}
		}
	}
	return sheetToTable(f.Sheets[0]), nil
}

func resolvesAll(headers []string, aliases Aliases, wanted []Field) bool {
	r := NewFieldResolver(headers, aliases)
	for _, f := range wanted {
		if !r.Has(f) {
			return false
		}
	}
	return true
}

func sheetToTable(sheet *xlsx.Sheet) *Table {
	t := &Table{}
	for i, row := range sheet.Rows {
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = cell.String()
		}
		if i == 0 {
			t.Headers = cells
			continue
		}
		t.Rows = append(t.Rows, cells)
	}
	return t
}
