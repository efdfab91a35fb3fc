package dataprocessing

import (
	"sort"
	"strconv"

	"golang.org/x/crypto/blake2b"

	"enrolldash/pkg/contracts/domain"
)

// PlaceholderTitle is the title of every chart when nothing is uploaded.
const PlaceholderTitle = "No data available"

// Baselines are the nationwide figures of the unfiltered dataset.
type Baselines struct {
	EnrolleeSum  int64 `json:"enrollee_sum"`
	DistinctRows int64 `json:"distinct_rows"`
}

// ComputeBaselines sums every enrollment column and counts distinct rows
// by full-row identity. Filters never affect the result.
func ComputeBaselines(ds *domain.Dataset) Baselines {
	if ds == nil {
		return Baselines{}
	}

	countAt := make([]int, len(ds.Columns))
	for i, col := range ds.Columns {
		countAt[i] = -1
		if ci, ok := ds.CountIndex(col); ok {
			if first, _ := ds.ColumnIndex(col); first == i {
				countAt[i] = ci
			}
		}
	}

	var sum float64
	seen := make(map[[blake2b.Size256]byte]struct{}, len(ds.Records))
	buf := make([]byte, 0, 512)
	for _, r := range ds.Records {
		for _, c := range r.Counts {
			sum += c
		}

		buf = buf[:0]
		for i, cell := range r.Cells {
			if ci := countAt[i]; ci >= 0 {
				buf = strconv.AppendFloat(buf, r.Counts[ci], 'g', -1, 64)
			} else {
				buf = append(buf, cell...)
			}
			buf = append(buf, 0x1f)
		}
		seen[blake2b.Sum256(buf)] = struct{}{}
	}

	return Baselines{
		EnrolleeSum:  int64(sum),
		DistinctRows: int64(len(seen)),
	}
}

// ApplyFilters keeps the records matching every active dimension. Each
// dimension is tested independently against the full record set, in
// contrast to the chained walk of ResolveOptions.
func ApplyFilters(ds *domain.Dataset, sel *domain.FilterSelection) []domain.Record {
	if ds == nil {
		return nil
	}
	if sel == nil || sel.IsEmpty() {
		return ds.Records
	}

	type restriction struct {
		idx     int
		present bool
		allowed map[string]struct{}
	}
	var rs []restriction
	for _, dim := range sel.Active() {
		idx, ok := ds.ColumnIndex(dim.Column())
		rs = append(rs, restriction{idx: idx, present: ok, allowed: sel.Lookup(dim)})
	}

	out := make([]domain.Record, 0, len(ds.Records))
rows:
	for _, r := range ds.Records {
		for _, rr := range rs {
			if !rr.present {
				continue rows
			}
			if _, ok := rr.allowed[r.Cells[rr.idx]]; !ok {
				continue rows
			}
		}
		out = append(out, r)
	}
	return out
}

// columnRefs resolves headers to Record.Counts positions; -1 marks an absent column.
func columnRefs(ds *domain.Dataset, cols []string) []int {
	refs := make([]int, len(cols))
	for i, c := range cols {
		if ci, ok := ds.CountIndex(c); ok {
			refs[i] = ci
		} else {
			refs[i] = -1
		}
	}
	return refs
}

func rowSum(r domain.Record, refs []int) float64 {
	var s float64
	for _, ci := range refs {
		if ci >= 0 {
			s += r.Counts[ci]
		}
	}
	return s
}

func subsetSum(records []domain.Record, refs []int) float64 {
	var s float64
	for _, r := range records {
		s += rowSum(r, refs)
	}
	return s
}

func subsetMean(records []domain.Record, refs []int) float64 {
	if len(records) == 0 {
		return 0
	}
	return subsetSum(records, refs) / float64(len(records))
}

// Aggregate produces the summary cards and the six chart tables for one
// selection. A nil dataset yields EmptyDashboard.
func Aggregate(ds *domain.Dataset, base Baselines, sel *domain.FilterSelection) domain.Dashboard {
	if ds == nil {
		return EmptyDashboard()
	}

	subset := ApplyFilters(ds, sel)

	var (
		education = make([]bandTotal, 0, len(Bands))
		male      float64
		female    float64
	)
	for _, b := range Bands {
		m := subsetSum(subset, columnRefs(ds, BandColumns(b.ID, domain.GenderMale)))
		f := subsetSum(subset, columnRefs(ds, BandColumns(b.ID, domain.GenderFemale)))
		education = append(education, bandTotal{label: b.Label, male: m, female: f})
		male += m
		female += f
	}

	return domain.Dashboard{
		Summary: buildSummary(male, female, countSchools(ds, subset), base),
		Tables: []domain.ChartTable{
			educationTable(education),
			gradeTable(domain.TableElementary, "Elementary Enrollment by Grade Level", ElementaryGrades, ds, subset),
			gradeTable(domain.TableJuniorHigh, "Junior High School Enrollment by Grade Level", JuniorHighGrades, ds, subset),
			trackTable(ds, subset),
			gradeAverageTable(ds, subset),
			trackAverageTable(ds, subset),
		},
		MatchedRows: len(subset),
		TotalRows:   ds.Len(),
		HasData:     true,
	}
}

func countSchools(ds *domain.Dataset, subset []domain.Record) int64 {
	idx, ok := ds.ColumnIndex(domain.SchoolIDColumn)
	if !ok {
		return 0
	}
	ids := make(map[string]struct{}, len(subset))
	for _, r := range subset {
		if v := r.Cells[idx]; v != "" {
			ids[v] = struct{}{}
		}
	}
	return int64(len(ids))
}

func buildSummary(male, female float64, schools int64, base Baselines) domain.Summary {
	m, f := roundHalfEven(male), roundHalfEven(female)
	total := m + f

	share := func(part int64) *float64 {
		p := RoundPercent(Percent(part, total))
		return &p
	}

	return domain.Summary{
		Male: domain.Metric{
			Label:             "Male",
			Value:             m,
			Display:           FormatCount(m),
			NationwidePercent: RoundPercent(Percent(m, base.EnrolleeSum)),
			SharePercent:      share(m),
			Annotation:        PercentCaption(m, total, "Total"),
		},
		Female: domain.Metric{
			Label:             "Female",
			Value:             f,
			Display:           FormatCount(f),
			NationwidePercent: RoundPercent(Percent(f, base.EnrolleeSum)),
			SharePercent:      share(f),
			Annotation:        PercentCaption(f, total, "Total"),
		},
		Enrollees: domain.Metric{
			Label:             "Enrollees",
			Value:             total,
			Display:           FormatCount(total),
			NationwidePercent: RoundPercent(Percent(total, base.EnrolleeSum)),
			Annotation:        PercentCaption(total, base.EnrolleeSum, "Nationwide"),
		},
		Schools: domain.Metric{
			Label:             "Schools",
			Value:             schools,
			Display:           FormatCount(schools),
			NationwidePercent: RoundPercent(Percent(schools, base.DistinctRows)),
			Annotation:        PercentCaption(schools, base.DistinctRows, "Nationwide"),
		},
		FixedEnrolleeSum:  base.EnrolleeSum,
		FixedTotalSchools: base.DistinctRows,
	}
}

type bandTotal struct {
	label        string
	male, female float64
}

// pairRows emits the Male and Female segments of one category.
func pairRows(category string, male, female int64) []domain.ChartRow {
	total := male + female
	return []domain.ChartRow{
		{Category: category, Gender: domain.GenderMale, Value: male, Total: total},
		{Category: category, Gender: domain.GenderFemale, Value: female, Total: total},
	}
}

func educationTable(bands []bandTotal) domain.ChartTable {
	t := domain.ChartTable{
		ID:          domain.TableEducationLevel,
		Title:       "Enrollment by Education Level",
		XLabel:      "Education Level",
		YLabel:      "Enrollment",
		Orientation: domain.OrientationVertical,
	}
	for _, b := range bands {
		t.Categories = append(t.Categories, b.label)
		t.Rows = append(t.Rows, pairRows(b.label, roundHalfEven(b.male), roundHalfEven(b.female))...)
	}
	return t
}

func gradeTable(id domain.TableID, title string, grades []Grade, ds *domain.Dataset, subset []domain.Record) domain.ChartTable {
	t := domain.ChartTable{
		ID:          id,
		Title:       title,
		XLabel:      "Grade Level",
		YLabel:      "Enrollment",
		Orientation: domain.OrientationVertical,
		TickLabels:  map[string]string{},
	}
	for _, g := range grades {
		m := subsetSum(subset, columnRefs(ds, []string{g.Column(domain.GenderMale)}))
		f := subsetSum(subset, columnRefs(ds, []string{g.Column(domain.GenderFemale)}))
		t.Categories = append(t.Categories, g.Key)
		t.Rows = append(t.Rows, pairRows(g.Key, roundHalfEven(m), roundHalfEven(f))...)
		if g.Tick != g.Key {
			t.TickLabels[g.Key] = g.Tick
		}
	}
	return t
}

type rankedTrack struct {
	label        string
	male, female int64
}

// rankTracks orders tracks by combined total, largest first; ties keep catalog order.
func rankTracks(tracks []rankedTrack) {
	sort.SliceStable(tracks, func(i, j int) bool {
		return tracks[i].male+tracks[i].female > tracks[j].male+tracks[j].female
	})
}

func trackColumns(t Track, gender string) []string {
	cols := make([]string, 0, len(SeniorGrades))
	for _, grade := range SeniorGrades {
		cols = append(cols, t.Column(grade, gender))
	}
	return cols
}

func rankedTable(id domain.TableID, title, valueLabel string, tracks []rankedTrack) domain.ChartTable {
	rankTracks(tracks)
	t := domain.ChartTable{
		ID:          id,
		Title:       title,
		XLabel:      valueLabel,
		YLabel:      "Track",
		Orientation: domain.OrientationHorizontal,
		ReverseAxis: true,
	}
	for _, tr := range tracks {
		t.Categories = append(t.Categories, tr.label)
		t.Rows = append(t.Rows, pairRows(tr.label, tr.male, tr.female)...)
	}
	return t
}

func trackTable(ds *domain.Dataset, subset []domain.Record) domain.ChartTable {
	tracks := make([]rankedTrack, 0, len(SeniorTracks))
	for _, tr := range SeniorTracks {
		tracks = append(tracks, rankedTrack{
			label:  tr.Label,
			male:   roundHalfEven(subsetSum(subset, columnRefs(ds, trackColumns(tr, domain.GenderMale)))),
			female: roundHalfEven(subsetSum(subset, columnRefs(ds, trackColumns(tr, domain.GenderFemale)))),
		})
	}
	return rankedTable(domain.TableSeniorTracks, "Senior High School Enrollment by Track", "Enrollment", tracks)
}

func gradeAverageTable(ds *domain.Dataset, subset []domain.Record) domain.ChartTable {
	t := domain.ChartTable{
		ID:          domain.TableGradeAverages,
		Title:       "Average Enrollees per Grade Level",
		XLabel:      "Grade Level",
		YLabel:      "Average Enrollees",
		Orientation: domain.OrientationVertical,
	}
	for _, g := range AverageGrades {
		m := roundHalfEven(subsetMean(subset, columnRefs(ds, []string{g.Column(domain.GenderMale)})))
		f := roundHalfEven(subsetMean(subset, columnRefs(ds, []string{g.Column(domain.GenderFemale)})))
		t.Categories = append(t.Categories, g.AverageKey)
		t.Rows = append(t.Rows, pairRows(g.AverageKey, m, f)...)
	}
	return t
}

// trackAverage is the subset mean of the per-row G11/G12 average.
func trackAverage(subset []domain.Record, refs []int) int64 {
	if len(subset) == 0 {
		return 0
	}
	var acc float64
	for _, r := range subset {
		acc += rowSum(r, refs) / float64(len(refs))
	}
	return roundHalfEven(acc / float64(len(subset)))
}

func trackAverageTable(ds *domain.Dataset, subset []domain.Record) domain.ChartTable {
	tracks := make([]rankedTrack, 0, len(SeniorTracks))
	for _, tr := range SeniorTracks {
		tracks = append(tracks, rankedTrack{
			label:  tr.Label,
			male:   trackAverage(subset, columnRefs(ds, trackColumns(tr, domain.GenderMale))),
			female: trackAverage(subset, columnRefs(ds, trackColumns(tr, domain.GenderFemale))),
		})
	}
	return rankedTable(domain.TableTrackAverages, "Average Enrollees per SHS Track", "Average Enrollees", tracks)
}

// EmptyDashboard is the output when no dataset is loaded: zero cards and
// zero-valued placeholder charts.
func EmptyDashboard() domain.Dashboard {
	zero := func(label string) domain.Metric {
		return domain.Metric{Label: label, Display: "0", Annotation: "0%"}
	}
	gender := func(label string) domain.Metric {
		m := zero(label)
		var p float64
		m.SharePercent = &p
		return m
	}

	levels := []string{string(BandElementary), string(BandJuniorHigh), string(BandSeniorHigh)}
	tables := make([]domain.ChartTable, 0, len(domain.TableIDs))
	for _, id := range domain.TableIDs {
		t := domain.ChartTable{
			ID:          id,
			Title:       PlaceholderTitle,
			XLabel:      "Education Level",
			YLabel:      "Enrollment",
			Orientation: domain.OrientationVertical,
			Categories:  append([]string(nil), levels...),
			Placeholder: true,
		}
		for _, l := range levels {
			t.Rows = append(t.Rows, pairRows(l, 0, 0)...)
		}
		tables = append(tables, t)
	}

	return domain.Dashboard{
		Summary: domain.Summary{
			Male:      gender("Male"),
			Female:    gender("Female"),
			Enrollees: zero("Enrollees"),
			Schools:   zero("Schools"),
		},
		Tables: tables,
	}
}
