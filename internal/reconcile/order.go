package reconcile

import (
	"cmp"
	"slices"
)

// SortStable orders records by normalized timestamp, ascending. Equal
// timestamps keep their input order so a message and its near-simultaneous
// echo never swap between passes.
func SortStable(in []Classified) []Classified {
	out := slices.Clone(in)
	slices.SortStableFunc(out, func(a, b Classified) int {
		return cmp.Compare(a.TimestampMs, b.TimestampMs)
	})
	return out
}
