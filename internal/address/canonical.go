// Package address builds the deterministic query string used as the geocode
// cache key.
package address

import "strings"

// MinLength is the shortest canonical address considered resolvable. Anything
// at or below this is dropped before resolution.
const MinLength = 3

// Canonical produces one normalized query string from the resolved address and
// city fields: trim, collapse internal whitespace runs to single spaces, and
// join address and city with ", " only when the city is non-empty. The
// function is pure — identical inputs always yield the identical string.
func Canonical(addr, city string) string {
	addr = collapse(addr)
	city = collapse(city)

	switch {
	case addr == "":
		return city
	case city == "":
		return addr
	default:
		return addr + ", " + city
	}
}

// Resolvable reports whether a canonical address is long enough to be worth
// sending to a provider.
func Resolvable(canonical string) bool {
	return len([]rune(canonical)) > MinLength
}

// Key folds a canonical address into its cache key. Casing differences in the
// raw input must not trigger separate provider calls.
func Key(canonical string) string {
	return strings.ToLower(canonical)
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
