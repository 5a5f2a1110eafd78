package model

import "strings"

// RowDiff describes how the rows of two runs differ.
type RowDiff struct {
	// Added are rows present only in the newer run.
	Added []ResultRow

	// Removed are rows present only in the older run.
	Removed []ResultRow

	// Unchanged counts rows present in both.
	Unchanged int
}

// Identical reports whether both runs produced the same rows.
func (d RowDiff) Identical() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0
}

// DiffRows compares two row sequences as multisets.
// Order is ignored, so a parallel crawl compares equal to a sequential one.
func DiffRows(older, newer []ResultRow) RowDiff {
	counts := make(map[string]int, len(older))
	for _, row := range older {
		counts[rowKey(row)]++
	}

	diff := RowDiff{
		Added:   make([]ResultRow, 0),
		Removed: make([]ResultRow, 0),
	}
	for _, row := range newer {
		key := rowKey(row)
		if counts[key] > 0 {
			counts[key]--
			diff.Unchanged++
			continue
		}
		diff.Added = append(diff.Added, row)
	}

	for _, row := range older {
		key := rowKey(row)
		if counts[key] > 0 {
			counts[key]--
			diff.Removed = append(diff.Removed, row)
		}
	}
	return diff
}

func rowKey(row ResultRow) string {
	return strings.Join(row.Strings(), "\x1f")
}
