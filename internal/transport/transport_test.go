package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hubenschmidt/stream-context/internal/wire"
)

func TestSendEvictsOldestWhenQueueFull(t *testing.T) {
	// Unopened transport: nothing drains the queue.
	tr := New(Config{URL: "ws://unused", SessionID: "s1", QueueSize: 4})

	for i := range 6 {
		tr.Send(wire.Transcript(strings.Repeat("x", i+1)))
	}

	assert.Equal(t, uint64(2), tr.Dropped())

	// The queue holds the newest four units.
	var kept []string
	for range 4 {
		data := <-tr.queue
		msg, err := wire.Decode(data)
		require.NoError(t, err)
		kept = append(kept, msg.Text)
	}
	assert.Equal(t, []string{"xxx", "xxxx", "xxxxx", "xxxxxx"}, kept)
}

// testServer accepts one WebSocket connection and records what arrives.
type testServer struct {
	srv *httptest.Server

	mu       sync.Mutex
	metadata []metadata
	binary   [][]byte

	connCh chan *websocket.Conn
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ts := &testServer{connCh: make(chan *websocket.Conn, 4)}
	upgrader := websocket.Upgrader{}
	ts.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		ts.connCh <- conn
		for {
			msgType, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			ts.mu.Lock()
			switch msgType {
			case websocket.TextMessage:
				var meta metadata
				if json.Unmarshal(data, &meta) == nil {
					ts.metadata = append(ts.metadata, meta)
				}
			case websocket.BinaryMessage:
				ts.binary = append(ts.binary, data)
			}
			ts.mu.Unlock()
		}
	}))
	t.Cleanup(ts.srv.Close)
	return ts
}

func (ts *testServer) wsURL() string {
	return "ws" + strings.TrimPrefix(ts.srv.URL, "http")
}

func (ts *testServer) handshakes() []metadata {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	out := make([]metadata, len(ts.metadata))
	copy(out, ts.metadata)
	return out
}

func (ts *testServer) binaryMessages() [][]byte {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	out := make([][]byte, len(ts.binary))
	copy(out, ts.binary)
	return out
}

func TestOpenPerformsMetadataHandshake(t *testing.T) {
	ts := newTestServer(t)
	tr := New(Config{URL: ts.wsURL(), SessionID: "sess-42", SampleRate: 16000})

	require.NoError(t, tr.Open(context.Background()))
	defer tr.Close()

	require.Eventually(t, func() bool {
		return len(ts.handshakes()) == 1
	}, time.Second, 10*time.Millisecond)

	meta := ts.handshakes()[0]
	assert.Equal(t, "sess-42", meta.SessionID)
	assert.Equal(t, 16000, meta.SampleRate)
	assert.Equal(t, "pcm16", meta.Format)
}

func TestSendDeliversTaggedMessages(t *testing.T) {
	ts := newTestServer(t)
	tr := New(Config{URL: ts.wsURL(), SessionID: "s1", SampleRate: 16000})
	require.NoError(t, tr.Open(context.Background()))

	tr.Send(wire.Audio([]byte{0x01, 0x02}))
	tr.Send(wire.Transcript("spoken words"))

	require.Eventually(t, func() bool {
		return len(ts.binaryMessages()) == 2
	}, time.Second, 10*time.Millisecond)
	require.NoError(t, tr.Close())

	msgs := ts.binaryMessages()
	audio, err := wire.Decode(msgs[0])
	require.NoError(t, err)
	assert.Equal(t, wire.TypeAudio, audio.Type)
	assert.Equal(t, []byte{0x01, 0x02}, audio.Binary)

	transcript, err := wire.Decode(msgs[1])
	require.NoError(t, err)
	assert.Equal(t, wire.TypeTranscript, transcript.Type)
	assert.Equal(t, "spoken words", transcript.Text)
}

func TestCloseFlushesQueuedUnits(t *testing.T) {
	ts := newTestServer(t)
	tr := New(Config{URL: ts.wsURL(), SessionID: "s1"})
	require.NoError(t, tr.Open(context.Background()))

	for i := range 5 {
		tr.Send(wire.Transcript(strings.Repeat("y", i+1)))
	}
	require.NoError(t, tr.Close())

	require.Eventually(t, func() bool {
		return len(ts.binaryMessages()) == 5
	}, time.Second, 10*time.Millisecond)
}

func TestCloseIsIdempotent(t *testing.T) {
	ts := newTestServer(t)
	tr := New(Config{URL: ts.wsURL(), SessionID: "s1"})
	require.NoError(t, tr.Open(context.Background()))

	require.NoError(t, tr.Close())
	require.NoError(t, tr.Close())
}

func TestOpenFailsWhenServerUnreachable(t *testing.T) {
	tr := New(Config{URL: "ws://127.0.0.1:1", SessionID: "s1"})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.Error(t, tr.Open(ctx))
}

func TestInboundEventsDispatchedInOrder(t *testing.T) {
	ts := newTestServer(t)

	var mu sync.Mutex
	var events []wire.Event
	tr := New(Config{
		URL:       ts.wsURL(),
		SessionID: "s1",
		OnEvent: func(ev wire.Event) {
			mu.Lock()
			events = append(events, ev)
			mu.Unlock()
		},
	})
	require.NoError(t, tr.Open(context.Background()))
	defer tr.Close()

	conn := <-ts.connCh
	for _, text := range []string{"one", "two", "three"} {
		data, err := json.Marshal(wire.Event{Type: wire.EventResult, Text: text})
		require.NoError(t, err)
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, data))
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(events) == 3
	}, time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "one", events[0].Text)
	assert.Equal(t, "two", events[1].Text)
	assert.Equal(t, "three", events[2].Text)
}

func TestAbandonsReconnectAfterMaxAttempts(t *testing.T) {
	ts := newTestServer(t)

	downCh := make(chan error, 1)
	tr := New(Config{
		URL:                  ts.wsURL(),
		SessionID:            "s1",
		InitialBackoff:       10 * time.Millisecond,
		MaxReconnectAttempts: 3,
		OnDown:               func(err error) { downCh <- err },
	})
	require.NoError(t, tr.Open(context.Background()))
	defer tr.Close()

	// Take the server away entirely so every redial fails.
	first := <-ts.connCh
	ts.srv.Close()
	first.Close()

	select {
	case err := <-downCh:
		require.Error(t, err)
		assert.Contains(t, err.Error(), "after 3 attempts")
	case <-time.After(3 * time.Second):
		t.Fatal("transport never reported abandoning reconnection")
	}
}

func TestReconnectAfterConnectionDrop(t *testing.T) {
	ts := newTestServer(t)
	tr := New(Config{
		URL:            ts.wsURL(),
		SessionID:      "s1",
		InitialBackoff: 10 * time.Millisecond,
	})
	require.NoError(t, tr.Open(context.Background()))
	defer tr.Close()

	// Kill the first connection server-side; the transport should redial
	// and repeat the handshake. Wait for the server to record the first
	// handshake before closing, or the close discards it unread.
	first := <-ts.connCh
	require.Eventually(t, func() bool {
		return len(ts.handshakes()) == 1
	}, time.Second, 10*time.Millisecond)
	first.Close()

	require.Eventually(t, func() bool {
		return len(ts.handshakes()) >= 2
	}, 3*time.Second, 20*time.Millisecond)
}
