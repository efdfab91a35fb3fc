package exporter

import (
	"bytes"
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"enrolldash/internal/dataprocessing"
	"enrolldash/internal/shared/testutil"
	"enrolldash/pkg/contracts/domain"
)

func elementaryTable() domain.ChartTable {
	return domain.ChartTable{
		ID:         domain.TableElementary,
		Title:      "Elementary Enrollment by Grade Level",
		Categories: []string{"K", "Elem NG"},
		TickLabels: map[string]string{"Elem NG": "NG"},
		Rows: []domain.ChartRow{
			{Category: "K", Gender: domain.GenderMale, Value: 1200, Total: 2300},
			{Category: "K", Gender: domain.GenderFemale, Value: 1100, Total: 2300},
			{Category: "Elem NG", Gender: domain.GenderMale, Value: 3, Total: 7},
			{Category: "Elem NG", Gender: domain.GenderFemale, Value: 4, Total: 7},
		},
	}
}

func sampleSnapshot(t *testing.T, sel domain.FilterSelection) domain.SessionSnapshot {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)
	ds, err := dataprocessing.NewLoader(logger, dataprocessing.DefaultLoaderConfig()).
		LoadBytes(context.Background(), "sample.csv", []byte(testutil.SampleCSV()))
	require.NoError(t, err)

	return domain.SessionSnapshot{
		SessionID: "s-1",
		State:     domain.UploadStateLoaded,
		Status:    "Uploaded: sample.csv",
		Filename:  "sample.csv",
		Selection: sel,
		Dashboard: dataprocessing.Aggregate(ds, dataprocessing.ComputeBaselines(ds), &sel),
	}
}

func TestPivot(t *testing.T) {
	rows := Pivot(elementaryTable())
	assert.Equal(t, []TableRow{
		{Category: "K", Label: "K", Male: 1200, Female: 1100, Total: 2300},
		{Category: "Elem NG", Label: "NG", Male: 3, Female: 4, Total: 7},
	}, rows)

	assert.Empty(t, Pivot(domain.ChartTable{}))
}

func TestWriteTableCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTableCSV(&buf, elementaryTable()))

	data := buf.Bytes()
	require.True(t, bytes.HasPrefix(data, utf8BOM), "csv starts with a BOM")

	records, err := csv.NewReader(bytes.NewReader(data[len(utf8BOM):])).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"Category", "Label", "Male", "Female", "Total"},
		{"K", "K", "1200", "1100", "2300"},
		{"Elem NG", "NG", "3", "4", "7"},
	}, records)
}

func TestWriteTableFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "elementary.csv")
	require.NoError(t, WriteTableFile(path, elementaryTable()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Elem NG,NG,3,4,7")
}

func TestWriteWorkbook(t *testing.T) {
	var sel domain.FilterSelection
	sel.Set(domain.DimensionRegion, []string{"NCR"})
	snap := sampleSnapshot(t, sel)

	var buf bytes.Buffer
	require.NoError(t, WriteWorkbook(&buf, snap))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	want := []string{summarySheet}
	for _, id := range domain.TableIDs {
		want = append(want, SheetName(id))
	}
	assert.Equal(t, want, f.GetSheetList())

	cell := func(sheet, axis string) string {
		v, err := f.GetCellValue(sheet, axis)
		require.NoError(t, err)
		return v
	}

	assert.Equal(t, "sample.csv", cell(summarySheet, "B1"))
	assert.Equal(t, "2", cell(summarySheet, "B3"), "matched rows")
	assert.Equal(t, "3", cell(summarySheet, "D3"), "total rows")
	assert.Equal(t, "Male", cell(summarySheet, "A6"))
	assert.Equal(t, "28", cell(summarySheet, "B6"))
	assert.Equal(t, "36", cell(summarySheet, "B7"))
	assert.Equal(t, "64", cell(summarySheet, "B8"))
	assert.Equal(t, "88", cell(summarySheet, "B10"), "nationwide enrollees ignore the filter")
	assert.Equal(t, "Filter", cell(summarySheet, "A13"))
	assert.Equal(t, "Region", cell(summarySheet, "A14"))
	assert.Equal(t, "NCR", cell(summarySheet, "B14"))

	edu := SheetName(domain.TableEducationLevel)
	assert.Equal(t, "Enrollment by Education Level", cell(edu, "A1"))
	rows, err := f.GetRows(edu)
	require.NoError(t, err)
	require.Len(t, rows, 6)
	assert.Equal(t, []string{"Category", "Label", "Male", "Female", "Total"}, rows[2])
	assert.Equal(t, []string{"Elementary", "Elementary", "12", "14", "26"}, rows[3])
	assert.Equal(t, []string{"Junior HS", "Junior HS", "12", "14", "26"}, rows[4])
	assert.Equal(t, []string{"Senior HS", "Senior HS", "4", "8", "12"}, rows[5])
}

func TestWriteWorkbookWithoutData(t *testing.T) {
	snap := domain.SessionSnapshot{
		Status:    domain.StatusNoFile,
		Dashboard: dataprocessing.EmptyDashboard(),
	}

	var buf bytes.Buffer
	require.NoError(t, WriteWorkbook(&buf, snap))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Len(t, f.GetSheetList(), 1+len(domain.TableIDs))
	v, err := f.GetCellValue(summarySheet, "B2")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusNoFile, v)
}
