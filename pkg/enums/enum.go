// Package enums holds the closed string sets stored in Postgres and sent over
// the wire. Each set parses exact, lower-case values only.
package enums

import (
	"fmt"
	"slices"
)

func known[T ~string](set []T, v T) bool {
	return slices.Contains(set, v)
}

func parse[T ~string](kind string, set []T, raw string) (T, error) {
	if v := T(raw); known(set, v) {
		return v, nil
	}
	var zero T
	return zero, fmt.Errorf("invalid %s %q", kind, raw)
}
