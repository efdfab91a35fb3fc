package services

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"enrolldash/internal/errors"
	"enrolldash/internal/exporter"
	"enrolldash/internal/infrastructure"
	"enrolldash/pkg/contracts/domain"
	"enrolldash/pkg/contracts/events"
)

// TracerName is the instrumentation scope of dashboard spans
const TracerName = "enrolldash.dashboard"

// SessionStore is the part of session.Store the service needs
type SessionStore interface {
	Create(ctx context.Context) domain.SessionSnapshot
	Snapshot(id string) (domain.SessionSnapshot, error)
	Dispatch(ctx context.Context, id string, ev events.Event) (domain.SessionSnapshot, error)
	Delete(ctx context.Context, id string) error
	Len() int
}

// SnapshotPublisher pushes post-event snapshots to live clients
type SnapshotPublisher interface {
	Publish(ctx context.Context, event events.EventType, snap domain.SessionSnapshot) error
}

var errUploadRejected = stderrors.New("upload rejected")

// DashboardService turns transport requests into session events and
// records what happened.
type DashboardService struct {
	store     SessionStore
	publisher SnapshotPublisher
	metrics   *infrastructure.BusinessMetrics
	tracer    trace.Tracer
	logger    *slog.Logger
}

// NewDashboardService wires the service. publisher may be nil.
func NewDashboardService(store SessionStore, publisher SnapshotPublisher, metrics *infrastructure.BusinessMetrics, logger *slog.Logger) *DashboardService {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	if metrics == nil {
		metrics = infrastructure.NoopBusinessMetrics()
	}
	return &DashboardService{
		store:     store,
		publisher: publisher,
		metrics:   metrics,
		tracer:    otel.Tracer(TracerName),
		logger:    logger.With(slog.String("component", "dashboard_service")),
	}
}

// CreateSession starts an empty session
func (s *DashboardService) CreateSession(ctx context.Context) domain.SessionSnapshot {
	return s.store.Create(ctx)
}

// Snapshot returns the session's current state
func (s *DashboardService) Snapshot(ctx context.Context, id string) (domain.SessionSnapshot, error) {
	return s.store.Snapshot(id)
}

// DeleteSession drops a session and disconnects its live clients
func (s *DashboardService) DeleteSession(ctx context.Context, id string) error {
	return s.store.Delete(ctx, id)
}

// Upload replaces the session's dataset with raw file contents. A file that
// cannot be read is not an error here: the returned snapshot carries the
// failure in its status.
func (s *DashboardService) Upload(ctx context.Context, id, filename string, contents []byte) (domain.SessionSnapshot, error) {
	snap, err := s.dispatch(ctx, id, events.DatasetChanged(filename, contents))
	if err != nil {
		return snap, err
	}
	s.recordUpload(ctx, int64(len(contents)), snap)
	return snap, nil
}

// UploadDataURL is Upload for browser data URLs
func (s *DashboardService) UploadDataURL(ctx context.Context, id, filename, dataURL string) (domain.SessionSnapshot, error) {
	snap, err := s.dispatch(ctx, id, events.DataURLUploaded(filename, dataURL))
	if err != nil {
		return snap, err
	}
	s.recordUpload(ctx, int64(len(dataURL)), snap)
	return snap, nil
}

// SetFilter replaces one dimension's selection
func (s *DashboardService) SetFilter(ctx context.Context, id string, dim domain.Dimension, values []string) (domain.SessionSnapshot, error) {
	return s.dispatch(ctx, id, events.FilterChanged(dim, values))
}

// ClearFilters resets every dimension
func (s *DashboardService) ClearFilters(ctx context.Context, id string) (domain.SessionSnapshot, error) {
	return s.dispatch(ctx, id, events.ClearFilters())
}

// ClearDataset drops the uploaded data
func (s *DashboardService) ClearDataset(ctx context.Context, id string) (domain.SessionSnapshot, error) {
	return s.dispatch(ctx, id, events.ClearDataset())
}

// Options returns the cascading option lists of a session
func (s *DashboardService) Options(ctx context.Context, id string) (domain.Options, error) {
	snap, err := s.store.Snapshot(id)
	if err != nil {
		return nil, err
	}
	return snap.Options, nil
}

// Dashboard returns the summary cards and chart tables of a session
func (s *DashboardService) Dashboard(ctx context.Context, id string) (domain.Dashboard, error) {
	snap, err := s.store.Snapshot(id)
	if err != nil {
		return domain.Dashboard{}, err
	}
	return snap.Dashboard, nil
}

// ExportWorkbook writes the session's dashboard as an Excel workbook
func (s *DashboardService) ExportWorkbook(ctx context.Context, id string, w io.Writer) error {
	snap, err := s.exportable(id)
	if err != nil {
		return err
	}

	ctx, span := s.tracer.Start(ctx, "dashboard.export.xlsx",
		trace.WithAttributes(attribute.String("session.id", id)))
	defer span.End()

	if err := exporter.WriteWorkbook(w, snap); err != nil {
		infrastructure.RecordError(ctx, err)
		return errors.NewExportError("could not build workbook", err).WithContext("format", "xlsx")
	}
	s.recordExport(ctx, "xlsx")
	return nil
}

// ExportTable writes one chart table as CSV
func (s *DashboardService) ExportTable(ctx context.Context, id string, table domain.TableID, w io.Writer) error {
	snap, err := s.exportable(id)
	if err != nil {
		return err
	}
	t, ok := snap.Dashboard.Table(table)
	if !ok {
		return errors.NewNotFoundError("table").WithContext("table", string(table))
	}

	ctx, span := s.tracer.Start(ctx, "dashboard.export.csv",
		trace.WithAttributes(
			attribute.String("session.id", id),
			attribute.String("table", string(table)),
		))
	defer span.End()

	if err := exporter.WriteTableCSV(w, t); err != nil {
		infrastructure.RecordError(ctx, err)
		return errors.NewExportError("could not write table", err).WithContext("format", "csv")
	}
	s.recordExport(ctx, "csv")
	return nil
}

// ActiveSessions returns the number of live sessions
func (s *DashboardService) ActiveSessions() int {
	return s.store.Len()
}

func (s *DashboardService) exportable(id string) (domain.SessionSnapshot, error) {
	snap, err := s.store.Snapshot(id)
	if err != nil {
		return snap, err
	}
	if snap.State != domain.UploadStateLoaded {
		return snap, errors.ErrNoDataset
	}
	return snap, nil
}

func (s *DashboardService) dispatch(ctx context.Context, id string, ev events.Event) (domain.SessionSnapshot, error) {
	ctx, span := s.tracer.Start(ctx, fmt.Sprintf("dashboard.%s", ev.Type),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("session.id", id),
			attribute.String("event.type", string(ev.Type)),
		))
	defer span.End()

	start := time.Now()
	snap, err := s.store.Dispatch(ctx, id, ev)
	infrastructure.RecordDashboardEvent(ctx, s.metrics, string(ev.Type), time.Since(start), err)
	if err != nil {
		infrastructure.RecordError(ctx, err)
		return snap, err
	}

	span.SetAttributes(
		attribute.Int64("session.revision", snap.Revision),
		attribute.String("session.state", string(snap.State)),
		attribute.Int("dashboard.matched_rows", snap.Dashboard.MatchedRows),
	)

	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, ev.Type, snap); err != nil {
			s.logger.WarnContext(ctx, "snapshot not published",
				slog.String("session_id", id),
				slog.String("error", err.Error()))
		}
	}
	return snap, nil
}

func (s *DashboardService) recordUpload(ctx context.Context, size int64, snap domain.SessionSnapshot) {
	var err error
	if snap.State == domain.UploadStateFailed {
		err = errUploadRejected
		s.logger.WarnContext(ctx, "upload could not be read",
			slog.String("session_id", snap.SessionID),
			slog.String("filename", snap.Filename),
			slog.String("status", snap.Status))
	}
	infrastructure.RecordUpload(ctx, s.metrics, size, snap.Dashboard.TotalRows, err)
}

func (s *DashboardService) recordExport(ctx context.Context, format string) {
	s.metrics.ExportsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("format", format)))
}

// SessionMetrics keeps the active session gauge in step with the store.
// It implements session.Listener.
type SessionMetrics struct {
	metrics *infrastructure.BusinessMetrics
}

// NewSessionMetrics returns a listener recording into metrics
func NewSessionMetrics(metrics *infrastructure.BusinessMetrics) *SessionMetrics {
	return &SessionMetrics{metrics: metrics}
}

func (m *SessionMetrics) SessionCreated(string) {
	m.metrics.ActiveSessions.Add(context.Background(), 1)
}

func (m *SessionMetrics) SessionRemoved(string) {
	m.metrics.ActiveSessions.Add(context.Background(), -1)
}
