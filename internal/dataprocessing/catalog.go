package dataprocessing

import (
	"fmt"

	"enrolldash/pkg/contracts/domain"
)

// BandID identifies an education level.
type BandID string

const (
	BandElementary BandID = "Elementary"
	BandJuniorHigh BandID = "Junior High School"
	BandSeniorHigh BandID = "Senior High School"
)

// Grade is one grade token of the elementary or junior-high bands.
type Grade struct {
	// Key prefixes the enrollment headers: "G7" -> "G7 Male".
	Key string
	// Tick is the short axis label.
	Tick string
	// AverageKey is the label used by the per-grade average chart.
	AverageKey string
}

// Column returns the enrollment header for this grade and gender.
func (g Grade) Column(gender string) string {
	return g.Key + " " + gender
}

// Track is a senior-high specialization spanning G11 and G12.
type Track struct {
	// Name as it appears in headers, e.g. "ACAD STEM".
	Name string
	// Label drops the "ACAD " prefix.
	Label string
}

// Column returns the enrollment header for this track, senior grade and gender.
func (t Track) Column(grade, gender string) string {
	return grade + " " + t.Name + " " + gender
}

// Band groups the enrollment headers of one education level.
type Band struct {
	ID    BandID
	Label string
}

var (
	// Bands in chart order.
	Bands = []Band{
		{ID: BandElementary, Label: "Elementary"},
		{ID: BandJuniorHigh, Label: "Junior HS"},
		{ID: BandSeniorHigh, Label: "Senior HS"},
	}

	ElementaryGrades = []Grade{
		{Key: "K", Tick: "K", AverageKey: "K"},
		{Key: "G1", Tick: "G1", AverageKey: "G1"},
		{Key: "G2", Tick: "G2", AverageKey: "G2"},
		{Key: "G3", Tick: "G3", AverageKey: "G3"},
		{Key: "G4", Tick: "G4", AverageKey: "G4"},
		{Key: "G5", Tick: "G5", AverageKey: "G5"},
		{Key: "G6", Tick: "G6", AverageKey: "G6"},
		{Key: "Elem NG", Tick: "NG", AverageKey: "E-NG"},
	}

	JuniorHighGrades = []Grade{
		{Key: "G7", Tick: "G7", AverageKey: "G7"},
		{Key: "G8", Tick: "G8", AverageKey: "G8"},
		{Key: "G9", Tick: "G9", AverageKey: "G9"},
		{Key: "G10", Tick: "G10", AverageKey: "G10"},
		{Key: "JHS NG", Tick: "NG", AverageKey: "J-NG"},
	}

	SeniorGrades = []string{"G11", "G12"}

	SeniorTracks = []Track{
		{Name: "ACAD ABM", Label: "ABM"},
		{Name: "ACAD HUMSS", Label: "HUMSS"},
		{Name: "ACAD STEM", Label: "STEM"},
		{Name: "ACAD GAS", Label: "GAS"},
		{Name: "ACAD PBM", Label: "PBM"},
		{Name: "TVL", Label: "TVL"},
		{Name: "SPORTS", Label: "SPORTS"},
		{Name: "ARTS", Label: "ARTS"},
	}

	// AverageGrades is the per-grade average chart order: K=0 ... J-NG=12.
	AverageGrades []Grade

	catalogBand    map[string]BandID
	catalogColumns []string
)

func init() {
	graded := func(gs []Grade) []Grade {
		out := make([]Grade, 0, len(gs))
		for _, g := range gs {
			if g.Tick != "NG" {
				out = append(out, g)
			}
		}
		return out
	}
	AverageGrades = append(AverageGrades, graded(ElementaryGrades)...)
	AverageGrades = append(AverageGrades, graded(JuniorHighGrades)...)
	AverageGrades = append(AverageGrades, ElementaryGrades[len(ElementaryGrades)-1], JuniorHighGrades[len(JuniorHighGrades)-1])

	catalogBand = make(map[string]BandID)
	add := func(col string, band BandID) {
		if prev, dup := catalogBand[col]; dup {
			panic(fmt.Sprintf("enrollment column %q assigned to both %s and %s", col, prev, band))
		}
		catalogBand[col] = band
		catalogColumns = append(catalogColumns, col)
	}
	for _, gender := range domain.Genders {
		for _, g := range ElementaryGrades {
			add(g.Column(gender), BandElementary)
		}
		for _, g := range JuniorHighGrades {
			add(g.Column(gender), BandJuniorHigh)
		}
		for _, grade := range SeniorGrades {
			for _, t := range SeniorTracks {
				add(t.Column(grade, gender), BandSeniorHigh)
			}
		}
	}
}

// CatalogColumns returns every enrollment header the dashboard reads.
func CatalogColumns() []string {
	out := make([]string, len(catalogColumns))
	copy(out, catalogColumns)
	return out
}

// BandOf returns the education level an enrollment header belongs to.
func BandOf(column string) (BandID, bool) {
	b, ok := catalogBand[column]
	return b, ok
}

// BandColumns returns the headers of one band and gender.
func BandColumns(band BandID, gender string) []string {
	var cols []string
	switch band {
	case BandElementary:
		for _, g := range ElementaryGrades {
			cols = append(cols, g.Column(gender))
		}
	case BandJuniorHigh:
		for _, g := range JuniorHighGrades {
			cols = append(cols, g.Column(gender))
		}
	case BandSeniorHigh:
		for _, grade := range SeniorGrades {
			for _, t := range SeniorTracks {
				cols = append(cols, t.Column(grade, gender))
			}
		}
	}
	return cols
}

// UncataloguedColumns lists enrollment headers of ds that no band claims.
// They still count toward the nationwide enrollee baseline.
func UncataloguedColumns(ds *domain.Dataset) []string {
	if ds == nil {
		return nil
	}
	var out []string
	for _, col := range ds.EnrollmentColumns {
		if _, ok := catalogBand[col]; !ok {
			out = append(out, col)
		}
	}
	return out
}

// MissingCatalogColumns lists catalog headers absent from ds; they read as zero.
func MissingCatalogColumns(ds *domain.Dataset) []string {
	if ds == nil {
		return nil
	}
	var out []string
	for _, col := range catalogColumns {
		if _, ok := ds.CountIndex(col); !ok {
			out = append(out, col)
		}
	}
	return out
}
