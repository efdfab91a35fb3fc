package exporter

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"enrolldash/pkg/contracts/domain"
)

const summarySheet = "Summary"

// sheetNames keeps every sheet under Excel's 31 character limit.
var sheetNames = map[domain.TableID]string{
	domain.TableEducationLevel: "Education Level",
	domain.TableElementary:     "Elementary",
	domain.TableJuniorHigh:     "Junior High",
	domain.TableSeniorTracks:   "Senior High Tracks",
	domain.TableGradeAverages:  "Grade Averages",
	domain.TableTrackAverages:  "Track Averages",
}

// SheetName returns the worksheet name used for a table
func SheetName(id domain.TableID) string {
	if name, ok := sheetNames[id]; ok {
		return name
	}
	return string(id)
}

// WriteWorkbook writes the snapshot's dashboard as an Excel workbook: a
// summary sheet with the cards and active filters, then one sheet per table.
func WriteWorkbook(w io.Writer, snap domain.SessionSnapshot) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), summarySheet); err != nil {
		return fmt.Errorf("failed to name summary sheet: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	if err := writeSummary(f, bold, snap); err != nil {
		return err
	}
	for _, table := range snap.Dashboard.Tables {
		if err := writeTable(f, bold, table); err != nil {
			return err
		}
	}

	f.SetActiveSheet(0)
	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func writeSummary(f *excelize.File, bold int, snap domain.SessionSnapshot) error {
	s := snap.Dashboard.Summary
	rows := [][]interface{}{
		{"Source", snap.Filename},
		{"Status", snap.Status},
		{"Matched rows", snap.Dashboard.MatchedRows, "of", snap.Dashboard.TotalRows},
		{},
		{"Metric", "Value", "Nationwide %", "Note"},
	}
	for _, m := range []domain.Metric{s.Male, s.Female, s.Enrollees, s.Schools} {
		rows = append(rows, []interface{}{m.Label, m.Value, m.NationwidePercent, m.Annotation})
	}
	rows = append(rows,
		[]interface{}{"Nationwide enrollees", s.FixedEnrolleeSum},
		[]interface{}{"Nationwide schools", s.FixedTotalSchools},
		[]interface{}{},
		[]interface{}{"Filter", "Values"},
	)
	filterHeader := len(rows)
	for _, d := range snap.Selection.Active() {
		rows = append(rows, []interface{}{d.Column(), strings.Join(snap.Selection.Get(d), ", ")})
	}

	if err := setRows(f, summarySheet, rows); err != nil {
		return err
	}
	for _, r := range []int{5, filterHeader} {
		if err := f.SetCellStyle(summarySheet, cellName(1, r), cellName(4, r), bold); err != nil {
			return err
		}
	}
	return f.SetColWidth(summarySheet, "A", "A", 26)
}

func writeTable(f *excelize.File, bold int, table domain.ChartTable) error {
	sheet := SheetName(table.ID)
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("failed to add sheet %q: %w", sheet, err)
	}

	rows := [][]interface{}{{table.Title}, {}}
	header := make([]interface{}, len(tableHeaders))
	for i, h := range tableHeaders {
		header[i] = h
	}
	rows = append(rows, header)
	for _, r := range Pivot(table) {
		rows = append(rows, []interface{}{r.Category, r.Label, r.Male, r.Female, r.Total})
	}

	if err := setRows(f, sheet, rows); err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", "A1", bold); err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A3", cellName(len(tableHeaders), 3), bold); err != nil {
		return err
	}
	return f.SetColWidth(sheet, "A", "A", 22)
}

func setRows(f *excelize.File, sheet string, rows [][]interface{}) error {
	for i := range rows {
		if len(rows[i]) == 0 {
			continue
		}
		if err := f.SetSheetRow(sheet, cellName(1, i+1), &rows[i]); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

func cellName(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}
