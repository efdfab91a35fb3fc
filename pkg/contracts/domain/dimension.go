package domain

import (
	"fmt"
	"strings"
)

// Dimension identifies one of the ten categorical filter columns.
// The numeric value is the cascade position: a dimension's options only
// depend on selections made at lower positions.
type Dimension int

const (
	DimensionRegion Dimension = iota
	DimensionProvince
	DimensionDistrict
	DimensionDivision
	DimensionMunicipality
	DimensionLegislativeDistrict
	DimensionSector
	DimensionSchoolType
	DimensionModifiedCOC
	DimensionSchoolSubclass
)

// DimensionCount is the number of filter dimensions.
const DimensionCount = 10

var dimensionColumns = [DimensionCount]string{
	"Region",
	"Province",
	"District",
	"Division",
	"Municipality",
	"Legislative District",
	"Sector",
	"School Type",
	"Modified COC",
	"School Subclassification",
}

var dimensionKeys = [DimensionCount]string{
	"region",
	"province",
	"district",
	"division",
	"municipality",
	"legislative_district",
	"sector",
	"school_type",
	"modified_coc",
	"school_subclass",
}

// Dimensions returns every dimension in cascade order.
func Dimensions() []Dimension {
	dims := make([]Dimension, DimensionCount)
	for i := range dims {
		dims[i] = Dimension(i)
	}
	return dims
}

// Valid reports whether d is one of the ten known dimensions.
func (d Dimension) Valid() bool {
	return d >= 0 && d < DimensionCount
}

// Column returns the normalized CSV header the dimension reads from.
func (d Dimension) Column() string {
	if !d.Valid() {
		return ""
	}
	return dimensionColumns[d]
}

// Key returns the URL/JSON key for the dimension.
func (d Dimension) Key() string {
	if !d.Valid() {
		return ""
	}
	return dimensionKeys[d]
}

func (d Dimension) String() string {
	if !d.Valid() {
		return fmt.Sprintf("Dimension(%d)", int(d))
	}
	return dimensionKeys[d]
}

// MarshalText encodes the dimension as its key so it can be used as a JSON map key.
func (d Dimension) MarshalText() ([]byte, error) {
	if !d.Valid() {
		return nil, fmt.Errorf("invalid dimension %d", int(d))
	}
	return []byte(d.Key()), nil
}

// UnmarshalText accepts either the key or the column header.
func (d *Dimension) UnmarshalText(text []byte) error {
	parsed, err := ParseDimension(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// ParseDimension resolves a dimension from its key ("school_type") or its
// column header ("School Type"), case-insensitively.
func ParseDimension(s string) (Dimension, error) {
	needle := strings.ToLower(strings.TrimSpace(s))
	for i := 0; i < DimensionCount; i++ {
		if needle == dimensionKeys[i] || needle == strings.ToLower(dimensionColumns[i]) {
			return Dimension(i), nil
		}
	}
	return 0, fmt.Errorf("unknown filter dimension %q", s)
}
