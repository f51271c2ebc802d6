// Package serverws accepts capture connections, decodes the tagged wire
// stream, and feeds the per-session ingestion window.
package serverws

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/hubenschmidt/stream-context/internal/audio"
	"github.com/hubenschmidt/stream-context/internal/ingest"
	"github.com/hubenschmidt/stream-context/internal/metrics"
	"github.com/hubenschmidt/stream-context/internal/pipeline"
	"github.com/hubenschmidt/stream-context/internal/store"
	"github.com/hubenschmidt/stream-context/internal/wire"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  16384,
	WriteBufferSize: 16384,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// HandlerConfig holds the shared backends for all capture sessions.
type HandlerConfig struct {
	Aggregator    *ingest.Aggregator
	Transcriber   pipeline.Transcriber
	Analyzer      pipeline.FrameAnalyzer
	Store         *store.Store
	VADConfig     audio.VADConfig
	MaxConcurrent int
}

// Handler manages WebSocket capture sessions with admission control.
type Handler struct {
	cfg HandlerConfig
	sem chan struct{}
}

// NewHandler creates a WebSocket handler with shared backends and a concurrency limit.
func NewHandler(cfg HandlerConfig) *Handler {
	maxConc := cfg.MaxConcurrent
	if maxConc <= 0 {
		maxConc = 100
	}
	return &Handler{
		cfg: cfg,
		sem: make(chan struct{}, maxConc),
	}
}

// captureMetadata is the first text frame sent by the client.
type captureMetadata struct {
	SessionID  string `json:"session_id"`
	SampleRate int    `json:"sample_rate"`
	Format     string `json:"format"`
}

// ServeHTTP upgrades the connection and runs the capture session.
// Returns 503 at max concurrent session capacity.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	select {
	case h.sem <- struct{}{}:
		defer func() { <-h.sem }()
	default:
		http.Error(w, "at capacity", http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	metrics.SessionsActive.Inc()
	metrics.SessionsTotal.Inc()
	defer metrics.SessionsActive.Dec()

	h.runSession(conn)
}

func (h *Handler) runSession(conn *websocket.Conn) {
	meta, err := readMetadata(conn)
	if err != nil {
		slog.Error("read metadata", "error", err)
		return
	}

	sessionID := meta.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	sampleRate := meta.SampleRate
	if sampleRate <= 0 {
		sampleRate = 16000
	}

	slog.Info("session started", "session_id", sessionID, "sample_rate", sampleRate, "format", meta.Format)

	if h.cfg.Store != nil {
		if err := h.cfg.Store.CreateSession(sessionID); err != nil {
			slog.Warn("create session row", "session_id", sessionID, "error", err)
		}
	}

	sess := newSession(sessionID, conn, sampleRate, h.cfg)
	sess.run()
	ended := sess.finish()

	// ended_at is stamped only when the last connection for this id goes;
	// a reconnected client keeps the session row open.
	if ended && h.cfg.Store != nil {
		if err := h.cfg.Store.EndSession(sessionID); err != nil {
			slog.Warn("end session row", "session_id", sessionID, "error", err)
		}
	}

	slog.Info("session ended", "session_id", sessionID, "last_connection", ended)
}

func readMetadata(conn *websocket.Conn) (*captureMetadata, error) {
	_, data, err := conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	var meta captureMetadata
	if err = json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// newEventSender returns a mutex-guarded function that pushes a JSON event
// frame to the client; the websocket allows one concurrent writer only.
func newEventSender(conn *websocket.Conn) func(wire.Event) {
	var mu sync.Mutex
	return func(ev wire.Event) {
		mu.Lock()
		defer mu.Unlock()

		jsonBytes, err := json.Marshal(ev)
		if err != nil {
			return
		}
		if err = conn.WriteMessage(websocket.TextMessage, jsonBytes); err != nil {
			slog.Debug("write event", "error", err)
		}
	}
}
