package http

import (
	"context"
	"io"

	"enrolldash/pkg/contracts/domain"
)

// DashboardServiceInterface defines the dashboard operations the handlers need
type DashboardServiceInterface interface {
	CreateSession(ctx context.Context) domain.SessionSnapshot
	Snapshot(ctx context.Context, id string) (domain.SessionSnapshot, error)
	DeleteSession(ctx context.Context, id string) error

	Upload(ctx context.Context, id, filename string, contents []byte) (domain.SessionSnapshot, error)
	UploadDataURL(ctx context.Context, id, filename, dataURL string) (domain.SessionSnapshot, error)
	SetFilter(ctx context.Context, id string, dim domain.Dimension, values []string) (domain.SessionSnapshot, error)
	ClearFilters(ctx context.Context, id string) (domain.SessionSnapshot, error)
	ClearDataset(ctx context.Context, id string) (domain.SessionSnapshot, error)

	Options(ctx context.Context, id string) (domain.Options, error)
	Dashboard(ctx context.Context, id string) (domain.Dashboard, error)

	ExportWorkbook(ctx context.Context, id string, w io.Writer) error
	ExportTable(ctx context.Context, id string, table domain.TableID, w io.Writer) error
}
