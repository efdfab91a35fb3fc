package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"enrolldash/internal/config"
	"enrolldash/internal/infrastructure"
	"enrolldash/pkg/contracts/domain"
	"enrolldash/pkg/contracts/events"
)

// ErrHubStopped is returned once Run has exited.
var ErrHubStopped = errors.New("websocket hub stopped")

// Options tunes the hub and its clients
type Options struct {
	AllowedOrigins  []string
	ReadBufferSize  int
	WriteBufferSize int
	SendQueueSize   int
	PingPeriod      time.Duration
	PongWait        time.Duration
	WriteWait       time.Duration
}

// OptionsFrom builds hub options from the loaded configuration
func OptionsFrom(ws config.WebSocketConfig, origins []string) Options {
	return Options{
		AllowedOrigins:  origins,
		ReadBufferSize:  ws.ReadBufferSize,
		WriteBufferSize: ws.WriteBufferSize,
		SendQueueSize:   ws.SendQueueSize,
		PingPeriod:      ws.PingPeriod,
		PongWait:        ws.PongWait,
		WriteWait:       10 * time.Second,
	}
}

func (o Options) withDefaults() Options {
	if o.SendQueueSize <= 0 {
		o.SendQueueSize = config.WebSocketSendQueueSize
	}
	if o.PongWait <= 0 {
		o.PongWait = config.WebSocketPongWait
	}
	if o.PingPeriod <= 0 || o.PingPeriod >= o.PongWait {
		o.PingPeriod = (o.PongWait * 9) / 10
	}
	if o.WriteWait <= 0 {
		o.WriteWait = 10 * time.Second
	}
	return o
}

// outbound is one snapshot frame. A nil client addresses every client of
// the session.
type outbound struct {
	sessionID string
	revision  int64
	payload   []byte
	client    *Client
}

// SnapshotFunc reads a session's current snapshot
type SnapshotFunc func() (domain.SessionSnapshot, error)

// Hub fans session snapshots out to the websocket clients watching that
// session. All membership changes happen on the Run goroutine.
type Hub struct {
	sessions map[string]map[*Client]struct{}
	count    int
	mu       sync.RWMutex

	register   chan *Client
	unregister chan *Client
	publish    chan outbound
	drop       chan string
	done       chan struct{}

	opts     Options
	upgrader websocket.Upgrader
	logger   *slog.Logger
	metrics  *infrastructure.BusinessMetrics
}

// NewHub creates a hub. Call Run to start it.
func NewHub(opts Options, metrics *infrastructure.BusinessMetrics, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	if metrics == nil {
		metrics = infrastructure.NoopBusinessMetrics()
	}
	opts = opts.withDefaults()

	h := &Hub{
		sessions:   make(map[string]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		publish:    make(chan outbound),
		drop:       make(chan string),
		done:       make(chan struct{}),
		opts:       opts,
		logger:     logger.With(slog.String("component", "websocket.hub")),
		metrics:    metrics,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  opts.ReadBufferSize,
		WriteBufferSize: opts.WriteBufferSize,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// Run owns the client registry until ctx is cancelled. Remaining clients
// are closed on exit.
func (h *Hub) Run(ctx context.Context) error {
	defer h.shutdown(ctx)

	for {
		select {
		case <-ctx.Done():
			h.logger.InfoContext(ctx, "hub shutting down", slog.Int("clients", h.ClientCount()))
			return nil

		case c := <-h.register:
			h.add(ctx, c)

		case c := <-h.unregister:
			h.mu.Lock()
			removed := h.removeLocked(c)
			h.mu.Unlock()
			if removed {
				h.logger.InfoContext(ctx, "client unregistered",
					slog.String("client_id", c.id),
					slog.String("session_id", c.sessionID),
					slog.Duration("connection_duration", time.Since(c.connectedAt)))
			}

		case msg := <-h.publish:
			h.fanOut(ctx, msg)

		case id := <-h.drop:
			h.dropSession(ctx, id)
		}
	}
}

func (h *Hub) add(ctx context.Context, c *Client) {
	h.mu.Lock()
	set, ok := h.sessions[c.sessionID]
	if !ok {
		set = make(map[*Client]struct{})
		h.sessions[c.sessionID] = set
	}
	set[c] = struct{}{}
	h.count++
	total := h.count
	h.mu.Unlock()
	close(c.registered)

	h.metrics.WebSocketClients.Add(ctx, 1)
	h.logger.InfoContext(ctx, "client registered",
		slog.String("client_id", c.id),
		slog.String("session_id", c.sessionID),
		slog.String("remote_addr", c.remoteAddr),
		slog.Int("total_clients", total))
}

// removeLocked drops c and closes its queue. Caller holds mu.
func (h *Hub) removeLocked(c *Client) bool {
	set, ok := h.sessions[c.sessionID]
	if !ok {
		return false
	}
	if _, ok := set[c]; !ok {
		return false
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.sessions, c.sessionID)
	}
	close(c.send)
	h.count--
	h.metrics.WebSocketClients.Add(context.Background(), -1)
	return true
}

// fanOut queues msg for its clients. A client never receives a revision
// older than one already queued to it.
func (h *Hub) fanOut(ctx context.Context, msg outbound) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set := h.sessions[msg.sessionID]
	for c := range set {
		if msg.client != nil && msg.client != c {
			continue
		}
		if msg.revision <= c.revision {
			h.logger.DebugContext(ctx, "stale snapshot skipped",
				slog.String("client_id", c.id),
				slog.String("session_id", c.sessionID),
				slog.Int64("revision", msg.revision),
				slog.Int64("queued_revision", c.revision))
			continue
		}
		select {
		case c.send <- msg.payload:
			c.revision = msg.revision
		default:
			h.removeLocked(c)
			h.logger.WarnContext(ctx, "client send queue full, disconnecting",
				slog.String("client_id", c.id),
				slog.String("session_id", c.sessionID))
		}
	}
	h.logger.DebugContext(ctx, "snapshot published",
		slog.String("session_id", msg.sessionID),
		slog.Int64("revision", msg.revision),
		slog.Int("clients", len(h.sessions[msg.sessionID])),
		slog.Int("payload_size", len(msg.payload)))
}

func (h *Hub) dropSession(ctx context.Context, id string) {
	h.mu.Lock()
	var n int
	for c := range h.sessions[id] {
		if h.removeLocked(c) {
			n++
		}
	}
	h.mu.Unlock()

	if n > 0 {
		h.logger.InfoContext(ctx, "session removed, clients closed",
			slog.String("session_id", id),
			slog.Int("clients", n))
	}
}

func (h *Hub) shutdown(ctx context.Context) {
	close(h.done)

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, set := range h.sessions {
		for c := range set {
			h.removeLocked(c)
		}
	}
	h.logger.DebugContext(ctx, "hub stopped")
}

// Register hands c to the hub and returns once publishes can reach it.
// It returns false once the hub has stopped.
func (h *Hub) Register(c *Client) bool {
	select {
	case h.register <- c:
		<-c.registered
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes c. Safe to call more than once.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Publish pushes snap to every client watching its session. Sessions with
// no clients are skipped without touching the hub loop.
func (h *Hub) Publish(ctx context.Context, event events.EventType, snap domain.SessionSnapshot) error {
	if h.SessionClients(snap.SessionID) == 0 {
		return nil
	}
	payload, err := json.Marshal(SnapshotMessage(ctx, event, snap))
	if err != nil {
		return err
	}

	return h.enqueue(ctx, outbound{sessionID: snap.SessionID, revision: snap.Revision, payload: payload})
}

func (h *Hub) enqueue(ctx context.Context, msg outbound) error {
	select {
	case h.publish <- msg:
		return nil
	case <-h.done:
		return ErrHubStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SessionCreated implements session.Listener
func (h *Hub) SessionCreated(string) {}

// SessionRemoved implements session.Listener by closing the session's clients
func (h *Hub) SessionRemoved(id string) {
	select {
	case h.drop <- id:
	case <-h.done:
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}

// SessionClients returns the number of clients watching id
func (h *Hub) SessionClients(id string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[id])
}

// Serve upgrades the request and attaches the connection to sessionID.
// current is read after the client is registered, so later events arrive
// as publishes and a session removed meanwhile fails here.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, sessionID string, current SnapshotFunc) error {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	ctx := r.Context()
	c := newClient(h, WrapConn(ws), sessionID, infrastructure.GetTraceID(ctx))
	if !h.Register(c) {
		ws.Close()
		return ErrHubStopped
	}

	if err := h.sendInitial(ctx, c, current); err != nil {
		h.Unregister(c)
		ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "session unavailable"),
			time.Now().Add(h.opts.WriteWait))
		ws.Close()
		return err
	}
	go c.WritePump()
	go c.ReadPump()
	return nil
}

func (h *Hub) sendInitial(ctx context.Context, c *Client, current SnapshotFunc) error {
	snap, err := current()
	if err != nil {
		return err
	}
	payload, err := json.Marshal(SnapshotMessage(ctx, "", snap))
	if err != nil {
		return err
	}
	return h.enqueue(ctx, outbound{sessionID: c.sessionID, revision: snap.Revision, payload: payload, client: c})
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(h.opts.AllowedOrigins) == 0 {
		return true
	}
	for _, allowed := range h.opts.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// SnapshotMessage wraps snap in the websocket envelope. event is empty for
// the snapshot sent on connect.
func SnapshotMessage(ctx context.Context, event events.EventType, snap domain.SessionSnapshot) events.WebSocketMessage {
	return events.WebSocketMessage{
		BaseMessage: events.BaseMessage{
			ID:        uuid.New().String(),
			Type:      events.MessageTypeSessionSnapshot,
			Timestamp: time.Now().UTC(),
			TraceID:   infrastructure.GetTraceID(ctx),
		},
		SessionID: snap.SessionID,
		Event:     event,
		Data:      snap,
	}
}
