package domain

// TableID names one of the six chart tables.
type TableID string

const (
	TableEducationLevel TableID = "education_level"
	TableElementary     TableID = "elementary"
	TableJuniorHigh     TableID = "junior_high"
	TableSeniorTracks   TableID = "senior_high_tracks"
	TableGradeAverages  TableID = "grade_averages"
	TableTrackAverages  TableID = "track_averages"
)

// TableIDs lists the tables in dashboard order.
var TableIDs = []TableID{
	TableEducationLevel,
	TableElementary,
	TableJuniorHigh,
	TableSeniorTracks,
	TableGradeAverages,
	TableTrackAverages,
}

// Orientation of a bar chart.
type Orientation string

const (
	OrientationVertical   Orientation = "v"
	OrientationHorizontal Orientation = "h"
)

// Metric is one summary card.
type Metric struct {
	Label   string `json:"label"`
	Value   int64  `json:"value"`
	Display string `json:"display"`

	// NationwidePercent compares Value with its unfiltered baseline.
	NationwidePercent float64 `json:"nationwide_percent"`

	// SharePercent is set on the gender cards: share of total enrollees.
	SharePercent *float64 `json:"share_percent,omitempty"`

	// Annotation is the caption shown under the number, e.g. "52.3% of Total".
	Annotation string `json:"annotation"`
}

// Summary holds the four cards and the two nationwide baselines.
type Summary struct {
	Male      Metric `json:"male"`
	Female    Metric `json:"female"`
	Enrollees Metric `json:"enrollees"`
	Schools   Metric `json:"schools"`

	FixedEnrolleeSum  int64 `json:"fixed_enrollee_sum"`
	FixedTotalSchools int64 `json:"fixed_total_schools"`
}

// ChartRow is one stacked-bar segment.
type ChartRow struct {
	Category string `json:"category"`
	Gender   string `json:"gender"`
	Value    int64  `json:"value"`
	Total    int64  `json:"total"`
}

// ChartTable is a chart-ready aggregate with its rendering hints.
type ChartTable struct {
	ID          TableID     `json:"id"`
	Title       string      `json:"title"`
	XLabel      string      `json:"x_label"`
	YLabel      string      `json:"y_label"`
	Orientation Orientation `json:"orientation"`

	// Categories is the category order, largest first for ranked tables.
	Categories []string `json:"categories"`

	// TickLabels maps a category to a shorter axis label ("Elem NG" -> "NG").
	TickLabels map[string]string `json:"tick_labels,omitempty"`

	// ReverseAxis asks a renderer that draws the first category at the
	// origin to flip the axis so the first category ends up on top.
	ReverseAxis bool `json:"reverse_axis,omitempty"`

	Rows        []ChartRow `json:"rows"`
	Placeholder bool       `json:"placeholder,omitempty"`
}

// Dashboard is the full aggregation output for one selection.
type Dashboard struct {
	Summary     Summary      `json:"summary"`
	Tables      []ChartTable `json:"tables"`
	MatchedRows int          `json:"matched_rows"`
	TotalRows   int          `json:"total_rows"`
	HasData     bool         `json:"has_data"`
}

// Table returns the table with the given id.
func (d *Dashboard) Table(id TableID) (ChartTable, bool) {
	for _, t := range d.Tables {
		if t.ID == id {
			return t, true
		}
	}
	return ChartTable{}, false
}

// Value returns the row value for category/gender.
func (t ChartTable) Value(category, gender string) (int64, bool) {
	for _, r := range t.Rows {
		if r.Category == category && r.Gender == gender {
			return r.Value, true
		}
	}
	return 0, false
}

// Options holds the dropdown options of every dimension.
type Options map[Dimension][]string

// EmptyOptions returns ten empty option lists.
func EmptyOptions() Options {
	opts := make(Options, DimensionCount)
	for _, d := range Dimensions() {
		opts[d] = []string{}
	}
	return opts
}
