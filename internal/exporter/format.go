package exporter

import (
	"strconv"

	"enrolldash/pkg/contracts/domain"
)

// tableHeaders are the pivoted columns of every exported table
var tableHeaders = []string{"Category", "Label", domain.GenderMale, domain.GenderFemale, "Total"}

// TableRow is one category of a chart table with both genders side by side
type TableRow struct {
	Category string
	Label    string
	Male     int64
	Female   int64
	Total    int64
}

// Pivot folds the per-gender chart rows into one row per category, in the
// table's category order.
func Pivot(table domain.ChartTable) []TableRow {
	rows := make([]TableRow, 0, len(table.Categories))
	for _, cat := range table.Categories {
		label := cat
		if short, ok := table.TickLabels[cat]; ok {
			label = short
		}
		row := TableRow{Category: cat, Label: label}
		for _, r := range table.Rows {
			if r.Category != cat {
				continue
			}
			switch r.Gender {
			case domain.GenderMale:
				row.Male = r.Value
			case domain.GenderFemale:
				row.Female = r.Value
			}
			row.Total = r.Total
		}
		rows = append(rows, row)
	}
	return rows
}

// TableRecords renders a table as CSV headers and string records
func TableRecords(table domain.ChartTable) ([]string, [][]string) {
	pivot := Pivot(table)
	records := make([][]string, 0, len(pivot))
	for _, r := range pivot {
		records = append(records, []string{
			r.Category,
			r.Label,
			formatInt(r.Male),
			formatInt(r.Female),
			formatInt(r.Total),
		})
	}
	return tableHeaders, records
}

func formatInt(i int64) string {
	return strconv.FormatInt(i, 10)
}
