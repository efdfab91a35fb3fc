package http

import (
	"context"
	"log/slog"
	"net/http"

	apierrors "enrolldash/internal/errors"
	"enrolldash/internal/middleware"
	"enrolldash/internal/websocket"
	"enrolldash/pkg/contracts/domain"
)

// SnapshotSource looks up a session's current state
type SnapshotSource interface {
	Snapshot(ctx context.Context, id string) (domain.SessionSnapshot, error)
}

// SnapshotStreamer upgrades a request and streams a session's snapshots
type SnapshotStreamer interface {
	Serve(w http.ResponseWriter, r *http.Request, sessionID string, current websocket.SnapshotFunc) error
}

// WebSocketHandler handles GET /ws?session={id}
type WebSocketHandler struct {
	sessions     SnapshotSource
	streamer     SnapshotStreamer
	cookieName   string
	errorHandler *apierrors.ErrorHandler
	logger       *slog.Logger
}

// NewWebSocketHandler creates a new websocket handler
func NewWebSocketHandler(sessions SnapshotSource, streamer SnapshotStreamer, cookieName string, errorHandler *apierrors.ErrorHandler, logger *slog.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		sessions:     sessions,
		streamer:     streamer,
		cookieName:   cookieName,
		errorHandler: errorHandler,
		logger:       logger.With(slog.String("handler", "websocket")),
	}
}

// ServeHTTP resolves the session from the query string, falling back to the
// session cookie, and hands the connection to the hub.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("session")
	if id == "" {
		if c, err := r.Cookie(h.cookieName); err == nil {
			id = c.Value
		}
	}
	if id == "" {
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("session", "A session id is required"))
		return
	}

	ctx := r.Context()
	if _, err := h.sessions.Snapshot(ctx, id); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	current := func() (domain.SessionSnapshot, error) {
		return h.sessions.Snapshot(ctx, id)
	}
	// The upgrader has already answered the request when Serve fails
	if err := h.streamer.Serve(w, r, id, current); err != nil {
		h.logger.WarnContext(r.Context(), "websocket attach failed",
			slog.String("session_id", id),
			slog.String("origin", r.Header.Get("Origin")),
			slog.String("request_id", middleware.GetRequestID(r.Context())),
			slog.String("error", err.Error()),
		)
		return
	}

	h.logger.InfoContext(r.Context(), "websocket client connected",
		slog.String("session_id", id),
		slog.String("remote_addr", r.RemoteAddr),
	)
}
