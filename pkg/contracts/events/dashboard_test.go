package events

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"enrolldash/pkg/contracts/domain"
)

func TestEventValidate(t *testing.T) {
	tests := []struct {
		name    string
		event   Event
		wantErr bool
	}{
		{name: "raw upload", event: DatasetChanged("a.csv", []byte("x"))},
		{name: "data url upload", event: DataURLUploaded("a.csv", "data:text/csv;base64,eA==")},
		{name: "empty upload", event: DatasetChanged("a.csv", nil), wantErr: true},
		{name: "filter", event: FilterChanged(domain.DimensionSector, []string{"Public"})},
		{name: "bad dimension", event: FilterChanged(domain.Dimension(42), nil), wantErr: true},
		{name: "clear filters", event: ClearFilters()},
		{name: "clear dataset", event: ClearDataset()},
		{name: "unknown", event: Event{Type: "rename"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.event.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestEventJSONOmitsUpload(t *testing.T) {
	out, err := json.Marshal(DatasetChanged("schools.csv", []byte("secret,bytes")))
	require.NoError(t, err)
	assert.NotContains(t, string(out), "secret")
	assert.Contains(t, string(out), `"filename":"schools.csv"`)
	assert.Contains(t, string(out), `"type":"dataset_changed"`)
}
