package ingest

import (
	"sync"
	"time"
)

// Config controls window flushing.
type Config struct {
	// WindowDuration is the wall-clock flush interval, measured on the
	// server, not from client timestamps.
	WindowDuration time.Duration
	// MaxEvents forces an early flush when a window has accumulated this
	// many events, bounding memory under bursty input.
	MaxEvents int
	// EventBuffer sizes each session's append channel.
	EventBuffer int
	// SubmitTimeout caps each sink submission.
	SubmitTimeout time.Duration
}

// DefaultConfig returns the production windowing defaults.
func DefaultConfig() Config {
	return Config{
		WindowDuration: 10 * time.Second,
		MaxEvents:      256,
		EventBuffer:    64,
		SubmitTimeout:  30 * time.Second,
	}
}

// Aggregator maintains one active SessionWindow per session id. A session
// id may be attached by more than one connection over its life (a client
// reconnecting while the previous connection is still being torn down);
// the window is flushed and removed only when the last attachment ends.
type Aggregator struct {
	mu       sync.Mutex
	sessions map[string]*sessionEntry
	sink     ChunkSink
	cfg      Config
}

type sessionEntry struct {
	window *SessionWindow
	refs   int
}

// New creates an aggregator that emits chunks to sink.
func New(sink ChunkSink, cfg Config) *Aggregator {
	if cfg.WindowDuration <= 0 {
		cfg.WindowDuration = 10 * time.Second
	}
	if cfg.MaxEvents <= 0 {
		cfg.MaxEvents = 256
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = 64
	}
	if cfg.SubmitTimeout <= 0 {
		cfg.SubmitTimeout = 30 * time.Second
	}
	return &Aggregator{
		sessions: make(map[string]*sessionEntry),
		sink:     sink,
		cfg:      cfg,
	}
}

// Session attaches one connection to the window for the given session id,
// starting its owner goroutine on first use. Every call must be balanced
// by one EndSession with the same id.
func (a *Aggregator) Session(id string) *SessionWindow {
	a.mu.Lock()
	defer a.mu.Unlock()
	if e, ok := a.sessions[id]; ok {
		e.refs++
		return e.window
	}
	e := &sessionEntry{window: newSessionWindow(id, a.sink, a.cfg), refs: 1}
	a.sessions[id] = e
	return e.window
}

// EndSession releases one connection's attachment. When the last
// attachment goes, the partial window is flushed immediately and the
// session removed. Reports whether the session actually ended; false
// while other connections still hold it, and for unknown ids.
func (a *Aggregator) EndSession(id string) bool {
	a.mu.Lock()
	e, ok := a.sessions[id]
	if !ok {
		a.mu.Unlock()
		return false
	}
	e.refs--
	if e.refs > 0 {
		a.mu.Unlock()
		return false
	}
	delete(a.sessions, id)
	a.mu.Unlock()
	e.window.Close()
	return true
}

// Shutdown ends every active session, flushing trailing windows.
func (a *Aggregator) Shutdown() {
	a.mu.Lock()
	sessions := a.sessions
	a.sessions = make(map[string]*sessionEntry)
	a.mu.Unlock()
	for _, e := range sessions {
		e.window.Close()
	}
}
