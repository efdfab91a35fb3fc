package testutil

import (
	"encoding/base64"
	"strings"

	"enrolldash/pkg/contracts/domain"
)

// UploadPreamble is the four report lines that precede the header row of
// every enrollment export.
var UploadPreamble = []string{
	"Learner Information System",
	"Enrollment Summary per School",
	"School Year 2023-2024",
	"As of: End of SY",
}

// Row is one school keyed by column header.
type Row map[string]string

// DimensionHeader returns the ten filter columns followed by the school id.
func DimensionHeader() []string {
	h := make([]string, 0, domain.DimensionCount+1)
	for _, d := range domain.Dimensions() {
		h = append(h, d.Column())
	}
	return append(h, domain.SchoolIDColumn)
}

// EnrollmentCSV renders rows under header with the standard preamble.
// Cells missing from a row are left blank.
func EnrollmentCSV(header []string, rows ...Row) string {
	var b strings.Builder
	for _, l := range UploadPreamble {
		b.WriteString(l)
		b.WriteByte('\n')
	}
	b.WriteString(strings.Join(header, ","))
	b.WriteByte('\n')
	for _, row := range rows {
		cells := make([]string, len(header))
		for i, col := range header {
			cells[i] = row[col]
		}
		b.WriteString(strings.Join(cells, ","))
		b.WriteByte('\n')
	}
	return b.String()
}

// DataURL wraps contents the way a browser upload component delivers them.
func DataURL(contents string) string {
	return "data:text/csv;base64," + base64.StdEncoding.EncodeToString([]byte(contents))
}

// SampleHeader is a small but complete-enough header for service and
// transport tests.
func SampleHeader() []string {
	return append(DimensionHeader(),
		"K Male", "K Female",
		"G7 Male", "G7 Female",
		"G11 ACAD STEM Male", "G11 ACAD STEM Female",
		"G12 ACAD STEM Male", "G12 ACAD STEM Female",
	)
}

// SampleRows is three schools across two regions.
func SampleRows() []Row {
	return []Row{
		{"Region": "NCR", "Province": "Metro Manila", "Sector": "Public", domain.SchoolIDColumn: "100",
			"K Male": "10", "K Female": "12", "G7 Male": "4", "G7 Female": "6",
			"G11 ACAD STEM Male": "3", "G11 ACAD STEM Female": "5", "G12 ACAD STEM Male": "1", "G12 ACAD STEM Female": "3"},
		{"Region": "NCR", "Province": "Metro Manila", "Sector": "Private", domain.SchoolIDColumn: "101",
			"K Male": "2", "K Female": "2", "G7 Male": "8", "G7 Female": "8"},
		{"Region": "CAR", "Province": "Benguet", "Sector": "Public", domain.SchoolIDColumn: "200",
			"K Male": "5", "K Female": "3", "G11 ACAD STEM Male": "7", "G12 ACAD STEM Male": "9"},
	}
}

// SampleCSV is EnrollmentCSV(SampleHeader(), SampleRows()...).
func SampleCSV() string {
	return EnrollmentCSV(SampleHeader(), SampleRows()...)
}
