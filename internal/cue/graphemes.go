package cue

import "github.com/rivo/uniseg"

// graphemeCount returns the number of user-perceived characters in s,
// counting grapheme clusters rather than bytes or runes so multi-byte and
// combining-mark text doesn't inflate the density metric.
func graphemeCount(s string) int {
	count := 0
	g := uniseg.NewGraphemes(s)
	for g.Next() {
		count++
	}
	return count
}
