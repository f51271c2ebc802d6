// Package transport maintains the client's persistent connection to the
// ingestion server: one WebSocket per session, a bounded outbound queue
// so capture callbacks never block on the network, and reconnection with
// capped exponential backoff. Delivery is best-effort: units queued
// while the link is down are dropped, never corrupted.
package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hubenschmidt/stream-context/internal/wire"
)

// Config holds transport settings.
type Config struct {
	// URL is the ws:// or wss:// endpoint of the ingestion server.
	URL string
	// SessionID is sent in the metadata handshake after every (re)connect.
	SessionID string
	// SampleRate declared in the handshake.
	SampleRate int
	// QueueSize bounds the outbound queue; the oldest unit is dropped on
	// overflow. Defaults to 256.
	QueueSize int
	// WriteTimeout caps each socket write. Defaults to 5s.
	WriteTimeout time.Duration
	// InitialBackoff/MaxBackoff shape the reconnect schedule.
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// MaxReconnectAttempts caps consecutive failed redials before the
	// transport gives up and reports OnDown. 0 retries forever.
	MaxReconnectAttempts int
	// OnDown is invoked once when reconnection is abandoned.
	OnDown func(error)
	// OnEvent is invoked for each decoded inbound event, in arrival order.
	OnEvent func(wire.Event)
}

// metadata is the first text frame after every (re)connect.
type metadata struct {
	SessionID  string `json:"session_id"`
	SampleRate int    `json:"sample_rate"`
	Format     string `json:"format"`
}

// Transport is one logical connection for one capture session.
type Transport struct {
	cfg     Config
	queue   chan []byte
	closed  chan struct{}
	done    chan struct{}
	errCh   chan error
	dropped atomic.Uint64

	closeOnce sync.Once
}

// New creates a transport. Call Open before handing it to capture sources.
func New(cfg Config) *Transport {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 500 * time.Millisecond
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 15 * time.Second
	}
	return &Transport{
		cfg:    cfg,
		queue:  make(chan []byte, cfg.QueueSize),
		closed: make(chan struct{}),
		done:   make(chan struct{}),
		errCh:  make(chan error, 1),
	}
}

// Open dials the server and starts the writer. It blocks until the first
// connection (and metadata handshake) succeeds or ctx expires; capture
// must not start before Open returns nil.
func (t *Transport) Open(ctx context.Context) error {
	conn, err := t.dial(ctx)
	if err != nil {
		return fmt.Errorf("transport open: %w", err)
	}
	go t.run(conn)
	return nil
}

// Send enqueues one wire message for transmission. It never blocks: when
// the queue is full the oldest queued unit is dropped to make room.
// Safe for concurrent use by multiple capture sources.
func (t *Transport) Send(msg wire.Message) {
	data := wire.Encode(msg)
	for {
		select {
		case t.queue <- data:
			return
		case <-t.closed:
			t.drop()
			return
		default:
		}
		// Queue full: evict the oldest unit and retry.
		select {
		case <-t.queue:
			t.drop()
		default:
		}
	}
}

// Dropped returns how many outbound units were discarded.
func (t *Transport) Dropped() uint64 {
	return t.dropped.Load()
}

// Close tears the connection down. Idempotent; safe to call multiple
// times. Pending queued units are flushed best-effort with a short
// deadline, never waiting indefinitely on the network.
func (t *Transport) Close() error {
	t.closeOnce.Do(func() {
		close(t.closed)
	})
	<-t.done
	return nil
}

func (t *Transport) drop() {
	n := t.dropped.Add(1)
	if n%100 == 1 {
		slog.Warn("outbound queue dropping units", "session_id", t.cfg.SessionID, "dropped", n)
	}
}

// dial connects, performs the metadata handshake, and starts a read loop
// for the new connection.
func (t *Transport) dial(ctx context.Context) (*websocket.Conn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, t.cfg.URL, nil)
	if err != nil {
		return nil, err
	}

	meta, err := json.Marshal(metadata{
		SessionID:  t.cfg.SessionID,
		SampleRate: t.cfg.SampleRate,
		Format:     "pcm16",
	})
	if err != nil {
		conn.Close()
		return nil, err
	}
	conn.SetWriteDeadline(time.Now().Add(t.cfg.WriteTimeout))
	if err = conn.WriteMessage(websocket.TextMessage, meta); err != nil {
		conn.Close()
		return nil, err
	}

	go t.readLoop(conn)
	return conn, nil
}

// run owns the connection: it is the only goroutine that writes to or
// replaces it. On write or read failure it drops the link and redials
// with backoff, discarding outbound units while disconnected.
func (t *Transport) run(conn *websocket.Conn) {
	defer close(t.done)

	backoff := t.cfg.InitialBackoff
	attempts := 0

	for {
		if conn == nil {
			select {
			case <-t.closed:
				return
			case <-t.queue:
				t.drop() // lossy while disconnected
			case <-time.After(backoff):
				ctx, cancel := context.WithTimeout(context.Background(), t.cfg.WriteTimeout)
				c, err := t.dial(ctx)
				cancel()
				if err != nil {
					attempts++
					slog.Warn("reconnect failed", "session_id", t.cfg.SessionID, "attempt", attempts, "backoff", backoff, "error", err)
					if t.cfg.MaxReconnectAttempts > 0 && attempts >= t.cfg.MaxReconnectAttempts {
						slog.Error("reconnect abandoned", "session_id", t.cfg.SessionID, "attempts", attempts)
						if t.cfg.OnDown != nil {
							// From a goroutine: OnDown typically drives the
							// session stop path, which calls Close and waits
							// on done.
							go t.cfg.OnDown(fmt.Errorf("reconnect failed after %d attempts: %w", attempts, err))
						}
						return
					}
					backoff = min(backoff*2, t.cfg.MaxBackoff)
					continue
				}
				slog.Info("reconnected", "session_id", t.cfg.SessionID)
				// Discard any error the previous connection's read loop
				// reported while we were redialing.
				select {
				case <-t.errCh:
				default:
				}
				conn = c
				backoff = t.cfg.InitialBackoff
				attempts = 0
			}
			continue
		}

		select {
		case <-t.closed:
			t.flush(conn)
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			conn.Close()
			return
		case err := <-t.errCh:
			slog.Warn("connection lost", "session_id", t.cfg.SessionID, "error", err)
			conn.Close()
			conn = nil
		case data := <-t.queue:
			conn.SetWriteDeadline(time.Now().Add(t.cfg.WriteTimeout))
			if err := conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
				slog.Warn("write failed", "session_id", t.cfg.SessionID, "error", err)
				t.drop()
				conn.Close()
				conn = nil
			}
		}
	}
}

// flush drains queued units best-effort under one overall deadline so a
// session stop never hangs on a dead link.
func (t *Transport) flush(conn *websocket.Conn) {
	deadline := time.Now().Add(2 * time.Second)
	for {
		select {
		case data := <-t.queue:
			conn.SetWriteDeadline(deadline)
			if err := conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
				t.drop()
				return
			}
		default:
			return
		}
	}
}

// readLoop decodes inbound JSON events and dispatches them in arrival
// order. It exits when its connection dies; run() then redials.
func (t *Transport) readLoop(conn *websocket.Conn) {
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case t.errCh <- err:
			default:
			}
			return
		}
		if msgType != websocket.TextMessage || t.cfg.OnEvent == nil {
			continue
		}
		var ev wire.Event
		if err := json.Unmarshal(data, &ev); err != nil {
			slog.Debug("event decode", "error", err)
			continue
		}
		t.cfg.OnEvent(ev)
	}
}
