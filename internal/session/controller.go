// Package session coordinates the client-side capture lifecycle: one
// controller drives the transport and capture sources through an
// explicit state machine.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hubenschmidt/stream-context/internal/capture"
	"github.com/hubenschmidt/stream-context/internal/wire"
)

// State is the controller's lifecycle position.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateCapturing
	StateStopping
	StateStopped
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateCapturing:
		return "capturing"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Session describes one capture run.
type Session struct {
	ID        string
	StartedAt time.Time
	EndedAt   *time.Time
}

// Transport is the connection the controller owns. The concrete
// implementation lives in internal/transport; the interface keeps the
// state machine testable without a server.
type Transport interface {
	capture.Sender
	Open(ctx context.Context) error
	Close() error
}

// Config wires the controller's collaborators. NewTransport is called
// per session with a fresh session id and a callback for irrecoverable
// connection loss; NewSources builds the capture sources in setup order;
// they are stopped in reverse on teardown.
type Config struct {
	NewTransport func(sessionID string, onDown func(error)) Transport
	NewSources   func(sender capture.Sender, onFatal func(error)) []capture.Source
}

// Controller is the client-side session state machine.
type Controller struct {
	cfg Config

	mu        sync.Mutex
	state     State
	session   *Session
	transport Transport
	sources   []capture.Source
}

// New creates a controller in the Idle state.
func New(cfg Config) *Controller {
	return &Controller{cfg: cfg}
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Session returns the current (or most recent) session, nil before the
// first Start.
func (c *Controller) Session() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// Start opens the transport and starts every capture source. It is valid
// from Idle and Stopped only; each call creates a fresh session. Any
// setup failure tears down whatever was started and leaves the
// controller Failed; recovery requires an explicit Reset.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateIdle && c.state != StateStopped {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("start from %s state", state)
	}

	sess := &Session{ID: uuid.NewString(), StartedAt: time.Now()}
	c.session = sess
	c.state = StateConnecting
	c.mu.Unlock()

	slog.Info("session starting", "session_id", sess.ID)

	tr := c.cfg.NewTransport(sess.ID, c.onFatal)
	if err := tr.Open(ctx); err != nil {
		c.fail()
		return fmt.Errorf("open transport: %w", err)
	}

	sources := c.cfg.NewSources(tr, c.onFatal)
	for i, src := range sources {
		if err := src.Start(ctx); err != nil {
			// A single denied permission fails the whole session: stop
			// the sources that did start, newest first.
			for j := i - 1; j >= 0; j-- {
				sources[j].Stop()
			}
			tr.Close()
			c.fail()
			return fmt.Errorf("start capture source: %w", err)
		}
	}

	c.mu.Lock()
	c.transport = tr
	c.sources = sources
	c.state = StateCapturing
	c.mu.Unlock()

	slog.Info("session capturing", "session_id", sess.ID, "sources", len(sources))
	return nil
}

// Stop releases capture sources in reverse setup order, signals session
// end to the server, and closes the transport. Synchronous up to local
// resource release; the trailing control send is best-effort and never
// blocks on a dead network. Valid from Capturing; a no-op when already
// Stopping or Stopped.
func (c *Controller) Stop() error {
	c.mu.Lock()
	switch c.state {
	case StateStopping, StateStopped:
		c.mu.Unlock()
		return nil
	case StateCapturing:
	default:
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("stop from %s state", state)
	}
	c.state = StateStopping
	tr := c.transport
	sources := c.sources
	sess := c.session
	c.mu.Unlock()

	slog.Info("session stopping", "session_id", sess.ID)

	var firstErr error
	for i := len(sources) - 1; i >= 0; i-- {
		if err := sources[i].Stop(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	// Best-effort: flushed with a bounded deadline inside Close.
	tr.Send(wire.Control(wire.ControlStop))
	if err := tr.Close(); err != nil && firstErr == nil {
		firstErr = err
	}

	now := time.Now()
	c.mu.Lock()
	c.transport = nil
	c.sources = nil
	c.state = StateStopped
	c.session.EndedAt = &now
	c.mu.Unlock()

	slog.Info("session stopped", "session_id", sess.ID)
	return firstErr
}

// Reset returns a Failed controller to Idle. Valid only from Failed.
func (c *Controller) Reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateFailed {
		return fmt.Errorf("reset from %s state", c.state)
	}
	c.state = StateIdle
	return nil
}

// onFatal handles a source dying mid-capture (device unplugged, share
// revoked) or the transport abandoning reconnection: it drives the same
// stop path as an explicit Stop.
func (c *Controller) onFatal(err error) {
	slog.Error("capture source failed", "error", err)
	go c.Stop()
}

func (c *Controller) fail() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = StateFailed
}
