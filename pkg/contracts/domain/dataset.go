package domain

import (
	"math"
	"strconv"
	"strings"
	"time"
)

const (
	// NotApplicable replaces every missing cell at load time.
	NotApplicable = "Not Applicable"

	// SchoolIDColumn identifies a school for distinct counting.
	SchoolIDColumn = "BEIS School ID"

	// GenderMale and GenderFemale are the header suffixes of enrollment columns.
	GenderMale   = "Male"
	GenderFemale = "Female"
)

// Genders lists the genders in display order.
var Genders = []string{GenderMale, GenderFemale}

// Record is one school's row. Cells is aligned with Dataset.Columns and
// Counts with Dataset.EnrollmentColumns.
type Record struct {
	Cells  []string
	Counts []float64
}

// Dataset is an immutable, fully loaded upload.
type Dataset struct {
	Filename          string
	Columns           []string
	EnrollmentColumns []string
	Records           []Record
	LoadedAt          time.Time

	columnIndex map[string]int
	countIndex  map[string]int
}

// IsEnrollmentColumn reports whether a header names an enrollment count.
// Every header that mentions a gender is numeric.
func IsEnrollmentColumn(header string) bool {
	return strings.Contains(header, GenderMale) || strings.Contains(header, GenderFemale)
}

// NewDataset indexes rows by header and coerces every enrollment cell.
// Rows shorter than the header are padded with NotApplicable.
func NewDataset(filename string, columns []string, rows [][]string) *Dataset {
	ds := &Dataset{
		Filename:    filename,
		Columns:     columns,
		LoadedAt:    time.Now(),
		columnIndex: make(map[string]int, len(columns)),
		countIndex:  make(map[string]int),
	}

	var countCols []int
	for i, col := range columns {
		if _, dup := ds.columnIndex[col]; dup {
			continue
		}
		ds.columnIndex[col] = i
		if IsEnrollmentColumn(col) {
			ds.countIndex[col] = len(ds.EnrollmentColumns)
			ds.EnrollmentColumns = append(ds.EnrollmentColumns, col)
			countCols = append(countCols, i)
		}
	}

	ds.Records = make([]Record, 0, len(rows))
	for _, row := range rows {
		cells := make([]string, len(columns))
		for i := range cells {
			if i < len(row) && row[i] != "" {
				cells[i] = row[i]
			} else {
				cells[i] = NotApplicable
			}
		}
		counts := make([]float64, len(countCols))
		for j, ci := range countCols {
			counts[j] = ParseCount(cells[ci])
		}
		ds.Records = append(ds.Records, Record{Cells: cells, Counts: counts})
	}

	return ds
}

// Len returns the number of records, tolerating a nil dataset.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Records)
}

// ColumnIndex returns the cell position of a header.
func (d *Dataset) ColumnIndex(column string) (int, bool) {
	if d == nil {
		return 0, false
	}
	i, ok := d.columnIndex[column]
	return i, ok
}

// CountIndex returns the position of an enrollment column inside Record.Counts.
func (d *Dataset) CountIndex(column string) (int, bool) {
	if d == nil {
		return 0, false
	}
	i, ok := d.countIndex[column]
	return i, ok
}

// Value returns the raw cell, or "" when the column is absent.
func (d *Dataset) Value(r Record, column string) string {
	i, ok := d.ColumnIndex(column)
	if !ok {
		return ""
	}
	return r.Cells[i]
}

// Count returns the coerced enrollment value, or 0 when the column is absent.
func (d *Dataset) Count(r Record, column string) float64 {
	i, ok := d.CountIndex(column)
	if !ok {
		return 0
	}
	return r.Counts[i]
}

// ParseCount coerces a cell to a non-negative count. Blank, sentinel,
// non-numeric, non-finite and negative values all become 0. Thousands
// separators are accepted.
func ParseCount(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" || s == NotApplicable {
		return 0
	}
	s = strings.ReplaceAll(s, ",", "")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}
