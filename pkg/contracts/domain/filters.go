package domain

import (
	"encoding/json"
)

// FilterSelection holds the multi-select values of every dimension.
// An empty slice leaves the dimension unconstrained.
type FilterSelection struct {
	values [DimensionCount][]string
}

// Get returns a copy of the selected values for d.
func (f *FilterSelection) Get(d Dimension) []string {
	if !d.Valid() || len(f.values[d]) == 0 {
		return nil
	}
	out := make([]string, len(f.values[d]))
	copy(out, f.values[d])
	return out
}

// Set replaces the selection for d. Duplicates and blanks are dropped;
// first-seen order is kept.
func (f *FilterSelection) Set(d Dimension, values []string) {
	if !d.Valid() {
		return
	}
	seen := make(map[string]struct{}, len(values))
	kept := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		kept = append(kept, v)
	}
	if len(kept) == 0 {
		f.values[d] = nil
		return
	}
	f.values[d] = kept
}

// Clear resets every dimension to unconstrained.
func (f *FilterSelection) Clear() {
	f.values = [DimensionCount][]string{}
}

// IsActive reports whether d restricts rows.
func (f *FilterSelection) IsActive(d Dimension) bool {
	return d.Valid() && len(f.values[d]) > 0
}

// IsEmpty reports whether no dimension is restricted.
func (f *FilterSelection) IsEmpty() bool {
	for _, v := range f.values {
		if len(v) > 0 {
			return false
		}
	}
	return true
}

// Active lists restricted dimensions in cascade order.
func (f *FilterSelection) Active() []Dimension {
	var dims []Dimension
	for i, v := range f.values {
		if len(v) > 0 {
			dims = append(dims, Dimension(i))
		}
	}
	return dims
}

// Lookup returns the selection for d as a set, or nil when unconstrained.
func (f *FilterSelection) Lookup(d Dimension) map[string]struct{} {
	if !f.IsActive(d) {
		return nil
	}
	set := make(map[string]struct{}, len(f.values[d]))
	for _, v := range f.values[d] {
		set[v] = struct{}{}
	}
	return set
}

// Clone returns an independent copy.
func (f FilterSelection) Clone() FilterSelection {
	var out FilterSelection
	for i, v := range f.values {
		if len(v) > 0 {
			out.values[i] = append([]string(nil), v...)
		}
	}
	return out
}

// MarshalJSON emits every dimension key, with [] for unconstrained ones.
func (f FilterSelection) MarshalJSON() ([]byte, error) {
	m := make(map[Dimension][]string, DimensionCount)
	for _, d := range Dimensions() {
		v := f.values[d]
		if v == nil {
			v = []string{}
		}
		m[d] = v
	}
	return json.Marshal(m)
}

// UnmarshalJSON accepts a map keyed by dimension key or column header.
func (f *FilterSelection) UnmarshalJSON(data []byte) error {
	var m map[Dimension][]string
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	f.Clear()
	for d, v := range m {
		f.Set(d, v)
	}
	return nil
}
