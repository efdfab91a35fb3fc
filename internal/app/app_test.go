package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"enrolldash/internal/config"
	"enrolldash/internal/shared/testutil"
	"enrolldash/pkg/contracts/domain"
	"enrolldash/pkg/contracts/events"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 0
	cfg.Server.ShutdownTimeout = 5 * time.Second
	cfg.Security.RateLimit.Enabled = false
	cfg.Logging.Level = "debug"
	return cfg
}

func newTestApp(t *testing.T, cfg *config.Config) (*Application, *httptest.Server) {
	t.Helper()

	logger, _ := testutil.NewTestLogger(t)
	a, err := NewApplication(cfg, logger)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	g, gctx := errgroup.WithContext(ctx)
	a.startBackground(gctx, g)

	srv := httptest.NewServer(a.Router)
	t.Cleanup(func() {
		srv.Close()
		cancel()
		assert.NoError(t, g.Wait())
	})
	return a, srv
}

type envelope struct {
	Status string                 `json:"status"`
	Data   domain.SessionSnapshot `json:"data"`
}

func decodeSnapshot(t *testing.T, resp *http.Response) domain.SessionSnapshot {
	t.Helper()
	defer resp.Body.Close()
	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	require.Equal(t, "success", env.Status)
	return env.Data
}

func readSnapshotMessage(t *testing.T, conn *websocket.Conn) (events.EventType, domain.SessionSnapshot) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var msg struct {
		Type  events.MessageType     `json:"type"`
		Event events.EventType       `json:"event"`
		Data  domain.SessionSnapshot `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&msg))
	require.Equal(t, events.MessageTypeSessionSnapshot, msg.Type)
	return msg.Event, msg.Data
}

func TestNewApplicationRequiresConfig(t *testing.T) {
	_, err := NewApplication(nil, nil)
	assert.Error(t, err)
}

func TestUploadBodyLimit(t *testing.T) {
	tests := []struct {
		name    string
		maxFile int64
		want    int64
	}{
		{name: "default", maxFile: config.DefaultUploadMaxBytes, want: config.DefaultUploadMaxBytes + config.DefaultUploadMaxBytes/3 + 64<<10},
		{name: "small", maxFile: 300, want: 300 + 100 + 64<<10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, uploadBodyLimit(tt.maxFile))
		})
	}
}

func TestDashboardFlowOverHTTPAndWebSocket(t *testing.T) {
	a, srv := newTestApp(t, testConfig())

	resp, err := http.Post(srv.URL+"/api/sessions", "application/json", nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decodeSnapshot(t, resp)
	require.NotEmpty(t, created.SessionID)
	assert.Equal(t, domain.StatusNoFile, created.Status)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?session=" + created.SessionID
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	event, initial := readSnapshotMessage(t, conn)
	assert.Empty(t, event)
	assert.Equal(t, created.SessionID, initial.SessionID)

	require.Eventually(t, func() bool {
		return a.WebSocketHub.SessionClients(created.SessionID) == 1
	}, 2*time.Second, 10*time.Millisecond)

	body, err := json.Marshal(map[string]string{
		"filename": "enrollment.csv",
		"contents": testutil.DataURL(testutil.SampleCSV()),
	})
	require.NoError(t, err)

	resp, err = http.Post(srv.URL+"/api/sessions/"+created.SessionID+"/dataset", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	uploaded := decodeSnapshot(t, resp)
	assert.Equal(t, domain.UploadStateLoaded, uploaded.State)
	assert.Equal(t, int64(88), uploaded.Dashboard.Summary.Enrollees.Value)

	event, pushed := readSnapshotMessage(t, conn)
	assert.Equal(t, events.EventDatasetChanged, event)
	assert.Equal(t, uploaded.Revision, pushed.Revision)

	req, err := http.NewRequest(http.MethodPut, srv.URL+"/api/sessions/"+created.SessionID+"/filters/region",
		strings.NewReader(`{"values":["NCR"]}`))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	filtered := decodeSnapshot(t, resp)
	assert.Equal(t, int64(28), filtered.Dashboard.Summary.Male.Value)
	assert.Equal(t, int64(36), filtered.Dashboard.Summary.Female.Value)

	event, pushed = readSnapshotMessage(t, conn)
	assert.Equal(t, events.EventFilterChanged, event)
	assert.Equal(t, int64(64), pushed.Dashboard.Summary.Enrollees.Value)

	resp, err = http.Get(srv.URL + "/api/sessions/" + created.SessionID + "/export/junior_high.csv")
	require.NoError(t, err)
	csvBody, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(csvBody), "G7,G7,12,14,26")

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	metrics, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(metrics), "dashboard_events_total")
	assert.Contains(t, string(metrics), "http_requests_total")
}

func TestConcurrentEventsReachWebSocketInOrder(t *testing.T) {
	_, srv := newTestApp(t, testConfig())

	resp, err := http.Post(srv.URL+"/api/sessions", "application/json", nil)
	require.NoError(t, err)
	id := decodeSnapshot(t, resp).SessionID
	base := srv.URL + "/api/sessions/" + id

	body, err := json.Marshal(map[string]string{
		"filename": "enrollment.csv",
		"contents": testutil.DataURL(testutil.SampleCSV()),
	})
	require.NoError(t, err)
	resp, err = http.Post(base+"/dataset", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	decodeSnapshot(t, resp)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws?session="+id, nil)
	require.NoError(t, err)
	defer conn.Close()
	_, initial := readSnapshotMessage(t, conn)

	send := func(method, path, payload string) error {
		var rdr io.Reader
		if payload != "" {
			rdr = strings.NewReader(payload)
		}
		req, err := http.NewRequest(method, base+path, rdr)
		if err != nil {
			return err
		}
		if payload != "" {
			req.Header.Set("Content-Type", "application/json")
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return err
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("%s %s: %d", method, path, resp.StatusCode)
		}
		return nil
	}

	var g errgroup.Group
	const rounds = 6
	for i := 0; i < rounds; i++ {
		g.Go(func() error { return send(http.MethodPut, "/filters/region", `{"values":["NCR"]}`) })
		g.Go(func() error { return send(http.MethodDelete, "/filters", "") })
	}
	require.NoError(t, g.Wait())

	resp, err = http.Get(base)
	require.NoError(t, err)
	final := decodeSnapshot(t, resp)
	require.Equal(t, initial.Revision+2*rounds, final.Revision)

	prev := initial.Revision
	var last domain.SessionSnapshot
	for last.Revision != final.Revision {
		_, last = readSnapshotMessage(t, conn)
		require.Greater(t, last.Revision, prev)
		prev = last.Revision
	}
	assert.Equal(t, final.Selection, last.Selection)
	assert.Equal(t, final.Dashboard.Summary, last.Dashboard.Summary)
}

func TestRouterProblemResponses(t *testing.T) {
	_, srv := newTestApp(t, testConfig())

	tests := []struct {
		name        string
		method      string
		path        string
		contentType string
		status      int
	}{
		{name: "unknown route", method: http.MethodGet, path: "/api/nope", status: http.StatusNotFound},
		{name: "unknown session", method: http.MethodGet, path: "/api/sessions/missing", status: http.StatusNotFound},
		{name: "unsupported media type", method: http.MethodPost, path: "/api/logs", contentType: "text/plain", status: http.StatusUnsupportedMediaType},
		{name: "websocket without session", method: http.MethodGet, path: "/ws", status: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body io.Reader
			if tt.contentType != "" {
				body = strings.NewReader("hello")
			}
			req, err := http.NewRequest(tt.method, srv.URL+tt.path, body)
			require.NoError(t, err)
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}

			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Contains(t, resp.Header.Get("Content-Type"), "application/problem+json")
			assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
		})
	}
}

func TestHealthEndpoints(t *testing.T) {
	_, srv := newTestApp(t, testConfig())

	for _, path := range []string{"/api/health", "/api/health/ready", "/api/health/live", "/api/version", "/metrics/summary"} {
		t.Run(path, func(t *testing.T) {
			resp, err := http.Get(srv.URL + path)
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, http.StatusOK, resp.StatusCode)
		})
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	logger, logs := testutil.NewTestLogger(t)
	a, err := NewApplication(testConfig(), logger)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	require.Eventually(t, func() bool {
		return logs.ContainsMessage("Starting HTTP server")
	}, 2*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.True(t, logs.ContainsMessage("Application shutdown complete"))
}
