package session

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"enrolldash/internal/dataprocessing"
	"enrolldash/internal/errors"
	"enrolldash/internal/shared/testutil"
	"enrolldash/pkg/contracts/domain"
	"enrolldash/pkg/contracts/events"
)

type recordingListener struct {
	mu      sync.Mutex
	created []string
	removed []string
}

func (l *recordingListener) SessionCreated(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.created = append(l.created, id)
}

func (l *recordingListener) SessionRemoved(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.removed = append(l.removed, id)
}

func newTestStore(t *testing.T) (*Store, *testutil.BufferedSlogHandler) {
	t.Helper()
	logger, logs := testutil.NewTestLogger(t)
	loader := dataprocessing.NewLoader(logger, dataprocessing.DefaultLoaderConfig())
	return NewStore(loader, Config{IdleTTL: time.Hour, SweepInterval: time.Minute}, logger), logs
}

func TestNewSessionIsEmpty(t *testing.T) {
	store, _ := newTestStore(t)
	snap := store.Create(context.Background())

	assert.NotEmpty(t, snap.SessionID)
	assert.Equal(t, domain.UploadStateEmpty, snap.State)
	assert.Equal(t, domain.StatusNoFile, snap.Status)
	assert.Zero(t, snap.Revision)
	assert.False(t, snap.Dashboard.HasData)
	assert.Zero(t, snap.Dashboard.Summary.Enrollees.Value)
	assert.Len(t, snap.Options, domain.DimensionCount)
	for _, opts := range snap.Options {
		assert.Empty(t, opts)
	}
}

func TestDispatchLifecycle(t *testing.T) {
	store, logs := newTestStore(t)
	ctx := context.Background()
	id := store.Create(ctx).SessionID

	snap, err := store.Dispatch(ctx, id, events.DataURLUploaded("schools.csv", testutil.DataURL(testutil.SampleCSV())))
	require.NoError(t, err)
	assert.Equal(t, int64(1), snap.Revision)
	assert.Equal(t, domain.UploadStateLoaded, snap.State)
	assert.Equal(t, "Uploaded: schools.csv", snap.Status)
	assert.Equal(t, []string{"CAR", "NCR"}, snap.Options[domain.DimensionRegion])
	assert.Equal(t, int64(49), snap.Dashboard.Summary.Male.Value)
	assert.Equal(t, int64(39), snap.Dashboard.Summary.Female.Value)
	assert.Equal(t, int64(88), snap.Dashboard.Summary.FixedEnrolleeSum)
	assert.Equal(t, int64(3), snap.Dashboard.Summary.Schools.Value)

	snap, err = store.Dispatch(ctx, id, events.FilterChanged(domain.DimensionRegion, []string{"NCR"}))
	require.NoError(t, err)
	assert.Equal(t, int64(2), snap.Revision)
	assert.Equal(t, []string{"NCR"}, snap.Selection.Get(domain.DimensionRegion))
	assert.Equal(t, []string{"CAR", "NCR"}, snap.Options[domain.DimensionRegion], "upstream options unaffected")
	assert.Equal(t, []string{"Metro Manila"}, snap.Options[domain.DimensionProvince])
	assert.Equal(t, int64(28), snap.Dashboard.Summary.Male.Value)
	assert.Equal(t, int64(36), snap.Dashboard.Summary.Female.Value)
	assert.Equal(t, int64(2), snap.Dashboard.Summary.Schools.Value)
	assert.Equal(t, int64(88), snap.Dashboard.Summary.FixedEnrolleeSum, "baseline ignores filters")

	snap, err = store.Dispatch(ctx, id, events.ClearFilters())
	require.NoError(t, err)
	assert.True(t, snap.Selection.IsEmpty())
	assert.Equal(t, int64(49), snap.Dashboard.Summary.Male.Value)
	assert.Equal(t, domain.UploadStateLoaded, snap.State)

	_, err = store.Dispatch(ctx, id, events.FilterChanged(domain.DimensionSector, []string{"Public"}))
	require.NoError(t, err)
	snap, err = store.Dispatch(ctx, id, events.ClearDataset())
	require.NoError(t, err)
	assert.Equal(t, domain.UploadStateEmpty, snap.State)
	assert.Equal(t, domain.StatusCleared, snap.Status)
	assert.True(t, snap.Selection.IsEmpty(), "clearing data resets filters")
	assert.False(t, snap.Dashboard.HasData)
	assert.Empty(t, snap.Options[domain.DimensionRegion])
	assert.Equal(t, int64(5), snap.Revision)

	testutil.AssertLogContains(t, logs, slog.LevelInfo, "event applied")
	testutil.AssertLogAttr(t, logs, "session_id", id)
}

func TestUnreadableUploadReportsStatus(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	id := store.Create(ctx).SessionID

	_, err := store.Dispatch(ctx, id, events.DatasetChanged("good.csv", []byte(testutil.SampleCSV())))
	require.NoError(t, err)

	tests := []struct {
		name   string
		event  events.Event
		status string
	}{
		{
			name:   "preamble only",
			event:  events.DatasetChanged("short.csv", []byte("a\nb\nc\n")),
			status: "Error reading file: could not parse file: no columns to parse from file",
		},
		{
			name:   "undecodable data url",
			event:  events.DataURLUploaded("broken.csv", "data:text/csv;base64,@@@"),
			status: "Error reading file: could not decode upload",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap, err := store.Dispatch(ctx, id, tt.event)
			require.NoError(t, err, "a bad file is not a failed event")
			assert.Equal(t, domain.UploadStateFailed, snap.State)
			assert.Contains(t, snap.Status, tt.status)
			assert.False(t, snap.Dashboard.HasData, "previous dataset is dropped")
			assert.Empty(t, snap.Options[domain.DimensionRegion])
		})
	}
}

func TestDispatchErrors(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	_, err := store.Dispatch(ctx, "missing", events.ClearFilters())
	assert.ErrorIs(t, err, errors.ErrSessionNotFound)

	id := store.Create(ctx).SessionID
	_, err = store.Dispatch(ctx, id, events.FilterChanged(domain.Dimension(99), []string{"x"}))
	var appErr *errors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, errors.ErrTypeValidation, appErr.Type)

	snap, err := store.Snapshot(id)
	require.NoError(t, err)
	assert.Zero(t, snap.Revision, "rejected events do not advance the revision")
}

func TestFilterWithoutDatasetIsKept(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	id := store.Create(ctx).SessionID

	snap, err := store.Dispatch(ctx, id, events.FilterChanged(domain.DimensionRegion, []string{"NCR"}))
	require.NoError(t, err)
	assert.Equal(t, []string{"NCR"}, snap.Selection.Get(domain.DimensionRegion))
	assert.False(t, snap.Dashboard.HasData)

	snap, err = store.Dispatch(ctx, id, events.DatasetChanged("schools.csv", []byte(testutil.SampleCSV())))
	require.NoError(t, err)
	assert.Equal(t, int64(28), snap.Dashboard.Summary.Male.Value, "selection applies to the new upload")
}

func TestConcurrentDispatchIsSerialized(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	id := store.Create(ctx).SessionID
	_, err := store.Dispatch(ctx, id, events.DatasetChanged("schools.csv", []byte(testutil.SampleCSV())))
	require.NoError(t, err)

	const workers = 20
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			values := []string{"NCR"}
			if i%2 == 0 {
				values = []string{"CAR"}
			}
			_, err := store.Dispatch(ctx, id, events.FilterChanged(domain.DimensionRegion, values))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	snap, err := store.Snapshot(id)
	require.NoError(t, err)
	assert.Equal(t, int64(workers+1), snap.Revision)
	assert.Equal(t, snap.Dashboard.Summary.Male.Value+snap.Dashboard.Summary.Female.Value, snap.Dashboard.Summary.Enrollees.Value)
}

func TestSweepExpiresIdleSessions(t *testing.T) {
	store, _ := newTestStore(t)
	listener := &recordingListener{}
	store.AddListener(listener)
	ctx := context.Background()

	clock := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return clock }

	stale := store.Create(ctx).SessionID
	clock = clock.Add(90 * time.Minute)
	fresh := store.Create(ctx).SessionID

	clock = clock.Add(45 * time.Minute)
	expired := store.Sweep(ctx)

	assert.Equal(t, []string{stale}, expired)
	assert.Equal(t, []string{fresh}, store.IDs())
	assert.ElementsMatch(t, []string{stale, fresh}, listener.created)
	assert.Equal(t, []string{stale}, listener.removed)

	_, err := store.Get(stale)
	assert.ErrorIs(t, err, errors.ErrSessionNotFound)
}

func TestDelete(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	id := store.Create(ctx).SessionID

	require.NoError(t, store.Delete(ctx, id))
	assert.Zero(t, store.Len())
	assert.ErrorIs(t, store.Delete(ctx, id), errors.ErrSessionNotFound)
}

func TestRunStopsOnCancel(t *testing.T) {
	store, _ := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, store.Run(ctx))
}
