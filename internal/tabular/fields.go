package tabular

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// headerFold lowercases, trims, collapses whitespace, and strips combining
// marks so that "Διεύθυνση", "διευθυνση " and "ΔΙΕΥΘΥΝΣΗ" all compare equal.
var headerFold = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

func foldHeader(h string) string {
	folded, _, err := transform.String(headerFold, h)
	if err != nil {
		folded = h
	}
	folded = strings.ToLower(folded)
	// Greek final sigma: ToLower("ΠΛΑΤΟΣ") yields σ, while dictionary forms
	// end in ς. Normalize to the medial form so both compare equal.
	folded = strings.ReplaceAll(folded, "ς", "σ")
	return strings.Join(strings.Fields(folded), " ")
}

// FieldResolver maps the unknown headers of one input table to canonical
// fields. It is built once per table and has no side effects.
type FieldResolver struct {
	headers []string
	folded  []string
	indexes map[Field]int
}

// NewFieldResolver resolves each canonical field against the table headers.
// For every field the ordered candidate list is tried twice: first for an
// exact (folded) header match, then for a substring match. A field with no
// matching column resolves to an empty-valued column so downstream stages can
// degrade instead of failing.
func NewFieldResolver(headers []string, aliases Aliases) *FieldResolver {
	r := &FieldResolver{
		headers: headers,
		folded:  make([]string, len(headers)),
		indexes: make(map[Field]int, len(aliases)),
	}
	for i, h := range headers {
		r.folded[i] = foldHeader(h)
	}
	for field, candidates := range aliases {
		r.indexes[field] = r.resolve(candidates)
	}
	return r
}

func (r *FieldResolver) resolve(candidates []string) int {
	for _, cand := range candidates {
		fc := foldHeader(cand)
		for i, h := range r.folded {
			if h == fc {
				return i
			}
		}
	}
	// Fuzzy pass: candidate contained in a longer header ("lat" matches
	// "lat (wgs84)"), still in candidate priority order.
	for _, cand := range candidates {
		fc := foldHeader(cand)
		if fc == "" {
			continue
		}
		for i, h := range r.folded {
			if strings.Contains(h, fc) {
				return i
			}
		}
	}
	return -1
}

// Has reports whether the field resolved to a real column.
func (r *FieldResolver) Has(field Field) bool {
	return r.indexes[field] >= 0
}

// Value returns the trimmed cell for the field in the given row, or "" when
// the field did not resolve or the row is short.
func (r *FieldResolver) Value(row []string, field Field) string {
	idx, ok := r.indexes[field]
	if !ok || idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}
