// Package events contains the dashboard event enumeration and the
// WebSocket message contracts used to push session snapshots.
package events

import (
	"fmt"

	"enrolldash/pkg/contracts/domain"
)

// EventType enumerates the state changes a session reacts to.
type EventType string

const (
	EventDatasetChanged EventType = "dataset_changed"
	EventFilterChanged  EventType = "filter_changed"
	EventClearFilters   EventType = "clear_filters"
	EventClearDataset   EventType = "clear_dataset"
)

// Event is one trigger dispatched to a session.
type Event struct {
	Type      EventType        `json:"type"`
	Dimension domain.Dimension `json:"dimension,omitempty"`
	Values    []string         `json:"values,omitempty"`
	Filename  string           `json:"filename,omitempty"`

	// Contents is the raw upload and DataURL the browser-encoded one.
	// At most one is set; neither is serialized.
	Contents []byte `json:"-"`
	DataURL  string `json:"-"`
}

// DatasetChanged is raised by an upload.
func DatasetChanged(filename string, contents []byte) Event {
	return Event{Type: EventDatasetChanged, Filename: filename, Contents: contents}
}

// DataURLUploaded is raised by a browser upload that still carries its
// data URL encoding. Decoding failures surface as the upload status.
func DataURLUploaded(filename, dataURL string) Event {
	return Event{Type: EventDatasetChanged, Filename: filename, DataURL: dataURL}
}

// FilterChanged is raised when one dropdown's selection changes.
func FilterChanged(dim domain.Dimension, values []string) Event {
	return Event{Type: EventFilterChanged, Dimension: dim, Values: values}
}

// ClearFilters resets every dropdown.
func ClearFilters() Event {
	return Event{Type: EventClearFilters}
}

// ClearDataset drops the uploaded data.
func ClearDataset() Event {
	return Event{Type: EventClearDataset}
}

// Validate checks that the event is well formed.
func (e Event) Validate() error {
	switch e.Type {
	case EventDatasetChanged:
		if len(e.Contents) == 0 && e.DataURL == "" {
			return fmt.Errorf("upload event has no contents")
		}
		return nil
	case EventClearFilters, EventClearDataset:
		return nil
	case EventFilterChanged:
		if !e.Dimension.Valid() {
			return fmt.Errorf("filter event has invalid dimension %d", int(e.Dimension))
		}
		return nil
	default:
		return fmt.Errorf("unknown event type %q", e.Type)
	}
}
