package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

// SessionStats reports the number of live sessions
type SessionStats interface {
	ActiveSessions() int
}

// ClientStats reports the number of connected websocket clients
type ClientStats interface {
	ClientCount() int
}

// MetricsHandler serves the Prometheus scrape endpoint and a JSON summary
type MetricsHandler struct {
	scrape   http.Handler
	sessions SessionStats
	clients  ClientStats
}

// NewMetricsHandler creates a new metrics handler. scrape may be nil when
// the Prometheus exporter is disabled.
func NewMetricsHandler(scrape http.Handler, sessions SessionStats, clients ClientStats) *MetricsHandler {
	return &MetricsHandler{scrape: scrape, sessions: sessions, clients: clients}
}

// Routes sets up the metrics routes
func (h *MetricsHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.Scrape)
	r.Get("/summary", h.Summary)
	return r
}

// Scrape handles GET /metrics
func (h *MetricsHandler) Scrape(w http.ResponseWriter, r *http.Request) {
	if h.scrape == nil {
		http.Error(w, "metrics exporter disabled", http.StatusNotFound)
		return
	}
	h.scrape.ServeHTTP(w, r)
}

// Summary handles GET /metrics/summary
func (h *MetricsHandler) Summary(w http.ResponseWriter, r *http.Request) {
	summary := map[string]interface{}{"status": "ok"}
	if h.sessions != nil {
		summary["active_sessions"] = h.sessions.ActiveSessions()
	}
	if h.clients != nil {
		summary["websocket_clients"] = h.clients.ClientCount()
	}
	render.JSON(w, r, summary)
}
