package domain

import "time"

// UploadState describes what the session currently holds.
type UploadState string

const (
	UploadStateEmpty  UploadState = "empty"
	UploadStateLoaded UploadState = "loaded"
	UploadStateFailed UploadState = "failed"
)

// Upload status captions.
const (
	StatusNoFile  = "No file uploaded yet."
	StatusCleared = "Upload cleared. Please upload a new file."
)

// SessionSnapshot is the state pushed to the presentation layer after every event.
type SessionSnapshot struct {
	SessionID string          `json:"session_id"`
	Revision  int64           `json:"revision"`
	State     UploadState     `json:"state"`
	Status    string          `json:"status"`
	Filename  string          `json:"filename,omitempty"`
	Selection FilterSelection `json:"selection"`
	Options   Options         `json:"options"`
	Dashboard Dashboard       `json:"dashboard"`
	UpdatedAt time.Time       `json:"updated_at"`
}
