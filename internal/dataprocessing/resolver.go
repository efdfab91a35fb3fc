package dataprocessing

import (
	"sort"

	"enrolldash/pkg/contracts/domain"
)

// ResolveOptions computes the dropdown options of every dimension.
//
// Dimensions are walked in cascade order over a shrinking working set:
// each dimension's options are the sorted distinct values of the current
// set, and its own selection then narrows the set for the dimensions that
// follow. Options therefore never depend on downstream selections.
// A nil dataset yields ten empty lists. The selection is not modified.
func ResolveOptions(ds *domain.Dataset, sel *domain.FilterSelection) domain.Options {
	opts := domain.EmptyOptions()
	if ds == nil {
		return opts
	}
	if sel == nil {
		sel = &domain.FilterSelection{}
	}

	working := ds.Records
	for _, dim := range domain.Dimensions() {
		idx, ok := ds.ColumnIndex(dim.Column())
		if !ok {
			// Absent column: no options, and an active selection matches nothing.
			if sel.IsActive(dim) {
				working = nil
			}
			continue
		}

		opts[dim] = distinctSorted(working, idx)

		if selected := sel.Lookup(dim); selected != nil {
			narrowed := make([]domain.Record, 0, len(working))
			for _, r := range working {
				if _, keep := selected[r.Cells[idx]]; keep {
					narrowed = append(narrowed, r)
				}
			}
			working = narrowed
		}
	}
	return opts
}

func distinctSorted(records []domain.Record, idx int) []string {
	seen := make(map[string]struct{})
	out := []string{}
	for _, r := range records {
		v := r.Cells[idx]
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
