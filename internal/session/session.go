package session

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"enrolldash/internal/dataprocessing"
	"enrolldash/internal/errors"
	"enrolldash/pkg/contracts/domain"
	"enrolldash/pkg/contracts/events"
)

// DatasetLoader reads an upload into a dataset.
type DatasetLoader interface {
	LoadBytes(ctx context.Context, filename string, data []byte) (*domain.Dataset, error)
	LoadDataURL(ctx context.Context, filename, contents string) (*domain.Dataset, error)
}

// Session is one viewer's dashboard state. Events are applied one at a
// time under mu and the derived options and dashboard are recomputed
// before the next event is accepted.
type Session struct {
	id        string
	createdAt time.Time

	mu         sync.Mutex
	revision   int64
	state      domain.UploadState
	status     string
	filename   string
	dataset    *domain.Dataset
	baselines  dataprocessing.Baselines
	selection  domain.FilterSelection
	options    domain.Options
	dashboard  domain.Dashboard
	updatedAt  time.Time
	lastActive time.Time
}

func newSession(id string, now time.Time) *Session {
	s := &Session{
		id:         id,
		createdAt:  now,
		state:      domain.UploadStateEmpty,
		status:     domain.StatusNoFile,
		updatedAt:  now,
		lastActive: now,
	}
	s.recompute()
	return s
}

// ID returns the session identifier
func (s *Session) ID() string {
	return s.id
}

// Apply runs one event to completion. The returned error is non-nil only
// for malformed events; an unreadable upload is reported through the
// snapshot status.
func (s *Session) Apply(ctx context.Context, loader DatasetLoader, ev events.Event, now time.Time, logger *slog.Logger) (domain.SessionSnapshot, error) {
	if err := ev.Validate(); err != nil {
		return domain.SessionSnapshot{}, errors.NewAppValidationError(err.Error())
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch ev.Type {
	case events.EventDatasetChanged:
		if err := s.load(ctx, loader, ev); err != nil {
			logger.WarnContext(ctx, "upload unreadable",
				slog.String("filename", ev.Filename),
				slog.String("error", err.Error()))
		}
	case events.EventFilterChanged:
		s.selection.Set(ev.Dimension, ev.Values)
	case events.EventClearFilters:
		s.selection.Clear()
	case events.EventClearDataset:
		s.dataset = nil
		s.baselines = dataprocessing.Baselines{}
		s.filename = ""
		s.state = domain.UploadStateEmpty
		s.status = domain.StatusCleared
		s.selection.Clear()
	}

	s.recompute()
	s.revision++
	s.updatedAt = now
	s.lastActive = now
	return s.snapshotLocked(), nil
}

func (s *Session) load(ctx context.Context, loader DatasetLoader, ev events.Event) error {
	var (
		ds  *domain.Dataset
		err error
	)
	if ev.DataURL != "" {
		ds, err = loader.LoadDataURL(ctx, ev.Filename, ev.DataURL)
	} else {
		ds, err = loader.LoadBytes(ctx, ev.Filename, ev.Contents)
	}
	if err != nil {
		s.dataset = nil
		s.baselines = dataprocessing.Baselines{}
		s.filename = ev.Filename
		s.state = domain.UploadStateFailed
		s.status = UploadErrorStatus(err)
		return err
	}

	s.dataset = ds
	s.baselines = dataprocessing.ComputeBaselines(ds)
	s.filename = ev.Filename
	s.state = domain.UploadStateLoaded
	s.status = "Uploaded: " + ev.Filename
	return nil
}

// UploadErrorStatus renders the status caption for a failed upload.
func UploadErrorStatus(err error) string {
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		return "Error reading file: " + appErr.Detail()
	}
	return fmt.Sprintf("Error reading file: %v", err)
}

func (s *Session) recompute() {
	s.options = dataprocessing.ResolveOptions(s.dataset, &s.selection)
	s.dashboard = dataprocessing.Aggregate(s.dataset, s.baselines, &s.selection)
}

// Snapshot returns the current state
func (s *Session) Snapshot() domain.SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() domain.SessionSnapshot {
	return domain.SessionSnapshot{
		SessionID: s.id,
		Revision:  s.revision,
		State:     s.state,
		Status:    s.status,
		Filename:  s.filename,
		Selection: s.selection.Clone(),
		Options:   s.options,
		Dashboard: s.dashboard,
		UpdatedAt: s.updatedAt,
	}
}

// Dataset returns the loaded dataset and the selection it is filtered by.
// The dataset is immutable once loaded and safe to share.
func (s *Session) Dataset() (*domain.Dataset, domain.FilterSelection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dataset, s.selection.Clone()
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastActive = now
	s.mu.Unlock()
}

func (s *Session) idleSince(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastActive)
}
