package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingSink captures submitted chunks for inspection.
type recordingSink struct {
	mu     sync.Mutex
	chunks []ContextChunk
	err    error
}

func (s *recordingSink) Submit(_ context.Context, chunk ContextChunk) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	s.chunks = append(s.chunks, chunk)
	return fmt.Sprintf("chunk-%d", len(s.chunks)), nil
}

func (s *recordingSink) all() []ContextChunk {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ContextChunk, len(s.chunks))
	copy(out, s.chunks)
	return out
}

func testConfig() Config {
	return Config{
		WindowDuration: time.Minute, // never fires during a test
		MaxEvents:      256,
		EventBuffer:    64,
		SubmitTimeout:  time.Second,
	}
}

func TestEndSessionFlushesPartialWindow(t *testing.T) {
	sink := &recordingSink{}
	agg := New(sink, testConfig())

	w := agg.Session("s1")
	w.AddTranscript("hello world")
	w.AddFrameText("a code editor")
	w.AddTranscript("second segment")
	agg.EndSession("s1")

	chunks := sink.all()
	require.Len(t, chunks, 1)
	c := chunks[0]
	assert.Equal(t, "s1", c.SessionID)
	assert.Equal(t, 2, c.TranscriptCount)
	assert.Equal(t, 1, c.FrameCount)
	assert.Equal(t, "Visual Context:\na code editor\nAudio Transcript:\nhello world second segment", c.CombinedText)
	assert.False(t, c.EndTime.Before(c.StartTime))
}

func TestEmptyWindowIsSkipped(t *testing.T) {
	sink := &recordingSink{}
	agg := New(sink, testConfig())

	agg.Session("s1")
	agg.EndSession("s1")

	assert.Empty(t, sink.all())
}

func TestIntervalFlush(t *testing.T) {
	sink := &recordingSink{}
	cfg := testConfig()
	cfg.WindowDuration = 50 * time.Millisecond
	agg := New(sink, cfg)

	w := agg.Session("s1")
	w.AddTranscript("first window")

	require.Eventually(t, func() bool {
		return len(sink.all()) == 1
	}, time.Second, 10*time.Millisecond)

	// Later windows accumulate independently.
	w.AddTranscript("second window")
	require.Eventually(t, func() bool {
		return len(sink.all()) == 2
	}, time.Second, 10*time.Millisecond)

	w.AddTranscript("third window")
	require.Eventually(t, func() bool {
		return len(sink.all()) == 3
	}, time.Second, 10*time.Millisecond)

	chunks := sink.all()
	assert.Contains(t, chunks[0].CombinedText, "first window")
	assert.Contains(t, chunks[1].CombinedText, "second window")
	assert.Contains(t, chunks[2].CombinedText, "third window")
	agg.EndSession("s1")
}

func TestSizeBoundForcesEarlyFlush(t *testing.T) {
	sink := &recordingSink{}
	cfg := testConfig()
	cfg.MaxEvents = 3
	agg := New(sink, cfg)

	w := agg.Session("s1")
	w.AddTranscript("one")
	w.AddTranscript("two")
	w.AddTranscript("three")

	require.Eventually(t, func() bool {
		return len(sink.all()) == 1
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, 3, sink.all()[0].TranscriptCount)
	agg.EndSession("s1")
}

func TestTranscriptOrderPreserved(t *testing.T) {
	sink := &recordingSink{}
	agg := New(sink, testConfig())

	w := agg.Session("s1")
	for i := range 10 {
		w.AddTranscript(fmt.Sprintf("seg%d", i))
	}
	agg.EndSession("s1")

	chunks := sink.all()
	require.Len(t, chunks, 1)
	assert.Equal(t,
		"Audio Transcript:\nseg0 seg1 seg2 seg3 seg4 seg5 seg6 seg7 seg8 seg9",
		chunks[0].CombinedText)
}

func TestReattachedSessionKeepsWindowAlive(t *testing.T) {
	sink := &recordingSink{}
	agg := New(sink, testConfig())

	w1 := agg.Session("s1")
	w1.AddTranscript("before drop")

	// A second connection attaches with the same id before the first has
	// finished tearing down.
	w2 := agg.Session("s1")
	assert.Same(t, w1, w2)

	// The first connection's release must not close the shared window.
	assert.False(t, agg.EndSession("s1"))
	w2.AddTranscript("after reconnect")
	assert.True(t, agg.EndSession("s1"))

	chunks := sink.all()
	require.Len(t, chunks, 1)
	assert.Equal(t, 2, chunks[0].TranscriptCount)
	assert.Equal(t, "Audio Transcript:\nbefore drop after reconnect", chunks[0].CombinedText)
}

func TestEndSessionUnknownID(t *testing.T) {
	agg := New(&recordingSink{}, testConfig())
	assert.False(t, agg.EndSession("never-seen"))
}

func TestSessionsAreIndependent(t *testing.T) {
	sink := &recordingSink{}
	agg := New(sink, testConfig())

	agg.Session("a").AddTranscript("from a")
	agg.Session("b").AddTranscript("from b")
	agg.EndSession("a")

	chunks := sink.all()
	require.Len(t, chunks, 1)
	assert.Equal(t, "a", chunks[0].SessionID)

	agg.EndSession("b")
	assert.Len(t, sink.all(), 2)
}

func TestShutdownFlushesAllSessions(t *testing.T) {
	sink := &recordingSink{}
	agg := New(sink, testConfig())

	agg.Session("a").AddTranscript("alpha")
	agg.Session("b").AddTranscript("beta")
	agg.Shutdown()

	assert.Len(t, sink.all(), 2)
}

func TestSinkErrorDoesNotStopWindow(t *testing.T) {
	sink := &recordingSink{err: errors.New("sink down")}
	cfg := testConfig()
	cfg.MaxEvents = 1
	agg := New(sink, cfg)

	w := agg.Session("s1")
	w.AddTranscript("lost")
	time.Sleep(50 * time.Millisecond)

	// Sink recovers; later windows still flush.
	sink.mu.Lock()
	sink.err = nil
	sink.mu.Unlock()
	w.AddTranscript("kept")
	agg.EndSession("s1")

	chunks := sink.all()
	require.Len(t, chunks, 1)
	assert.Contains(t, chunks[0].CombinedText, "kept")
}

func TestCombineText(t *testing.T) {
	assert.Equal(t, "", combineText(nil, nil))
	assert.Equal(t, "Visual Context:\nf1 f2", combineText([]string{"f1", "f2"}, nil))
	assert.Equal(t, "Audio Transcript:\nt1", combineText(nil, []string{"t1"}))
	assert.Equal(t,
		"Visual Context:\nf1\nAudio Transcript:\nt1 t2",
		combineText([]string{"f1"}, []string{"t1", "t2"}))
}
