package main

import (
	"fmt"
	"io"
	"slices"
	"strings"
)

// Report is a JSON-serializable, possibly nested, set of named values.
type Report map[string]any

// MergeOther merges another report into this one.
func (r Report) MergeOther(other Report) {
	for k, v := range other {
		if _, ok := r[k]; ok {
			panic(fmt.Sprintf("duplicate key in report: %s", k))
		}
		r[k] = v
	}
}

// PrintWithDepth prints a report indented to the given depth, keys sorted.
// Recursively prints sub-reports.
func (r Report) PrintWithDepth(w io.Writer, depth int) {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, k := range keys {
		v := r[k]
		if sub, ok := v.(Report); ok {
			fmt.Fprintf(w, "%s%s:\n", strings.Repeat("  ", depth), k)
			sub.PrintWithDepth(w, depth+1)
		} else {
			fmt.Fprintf(w, "%s%s: %v\n", strings.Repeat("  ", depth), k, v)
		}
	}
}
