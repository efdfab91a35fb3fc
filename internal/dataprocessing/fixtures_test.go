package dataprocessing

import (
	"context"
	"encoding/base64"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"enrolldash/pkg/contracts/domain"
)

var testPreamble = []string{
	"Learner Information System",
	"Enrollment Summary per School",
	"School Year 2023-2024",
	"As of: End of SY",
}

// fullHeader is the dimensions, the school id, then every catalog column.
func fullHeader() []string {
	h := make([]string, 0, domain.DimensionCount+1+len(catalogColumns))
	for _, d := range domain.Dimensions() {
		h = append(h, d.Column())
	}
	h = append(h, domain.SchoolIDColumn)
	return append(h, CatalogColumns()...)
}

// csvFrom renders rows keyed by header into an upload with the standard preamble.
func csvFrom(rows []map[string]string) string {
	header := fullHeader()
	var b strings.Builder
	for _, l := range testPreamble {
		b.WriteString(l + "\n")
	}
	b.WriteString(strings.Join(header, ",") + "\n")
	for _, row := range rows {
		cells := make([]string, len(header))
		for i, col := range header {
			cells[i] = row[col]
		}
		b.WriteString(strings.Join(cells, ",") + "\n")
	}
	return b.String()
}

func dataURL(csv string) string {
	return "data:text/csv;base64," + base64.StdEncoding.EncodeToString([]byte(csv))
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func mustLoad(t *testing.T, rows []map[string]string) *domain.Dataset {
	t.Helper()
	ds, err := NewLoader(quietLogger(), DefaultLoaderConfig()).
		LoadBytes(context.Background(), "fixture.csv", []byte(csvFrom(rows)))
	require.NoError(t, err)
	return ds
}

// geography fixture used by the resolver and filter tests.
func geographyRows() []map[string]string {
	return []map[string]string{
		{"Region": "NCR", "Province": "Metro Manila", "Division": "Manila", "Sector": "Public", "BEIS School ID": "1", "K Male": "5"},
		{"Region": "NCR", "Province": "Metro Manila", "Division": "Quezon City", "Sector": "Private", "BEIS School ID": "2", "K Male": "7"},
		{"Region": "CAR", "Province": "Benguet", "Division": "Baguio City", "Sector": "Public", "BEIS School ID": "3", "K Male": "11"},
		{"Region": "CAR", "Province": "Abra", "Division": "Abra", "Sector": "Public", "BEIS School ID": "4", "K Male": "13"},
		{"Region": "Region I", "Province": "Ilocos Norte", "Division": "Laoag City", "Sector": "SUCs/LUCs", "BEIS School ID": "5", "K Male": "17"},
	}
}
