package ingest

import (
	"context"
	"log/slog"
	"time"

	"github.com/hubenschmidt/stream-context/internal/metrics"
)

type eventKind int

const (
	kindTranscript eventKind = iota
	kindFrameText
)

type windowEvent struct {
	kind eventKind
	text string
}

// SessionWindow owns the aggregation state for one session. All appends
// and flushes run on a single owner goroutine, so concurrent decode
// callbacks for the same session are serialized while separate sessions
// proceed in parallel.
type SessionWindow struct {
	sessionID string
	cfg       Config
	sink      ChunkSink

	events chan windowEvent
	stop   chan struct{}
	done   chan struct{}

	// owner-goroutine state, untouched from outside run()
	windowStart time.Time
	frameTexts  []string
	transcripts []string
}

func newSessionWindow(sessionID string, sink ChunkSink, cfg Config) *SessionWindow {
	w := &SessionWindow{
		sessionID: sessionID,
		cfg:       cfg,
		sink:      sink,
		events:    make(chan windowEvent, cfg.EventBuffer),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	go w.run()
	return w
}

// AddTranscript appends a transcript segment to the current window.
// Safe to call from any goroutine; dropped if the session has ended.
func (w *SessionWindow) AddTranscript(text string) {
	w.add(windowEvent{kind: kindTranscript, text: text})
}

// AddFrameText appends frame-derived text to the current window.
// Safe to call from any goroutine; dropped if the session has ended.
func (w *SessionWindow) AddFrameText(text string) {
	w.add(windowEvent{kind: kindFrameText, text: text})
}

func (w *SessionWindow) add(ev windowEvent) {
	select {
	case w.events <- ev:
	case <-w.done:
	}
}

// Close flushes the partial window immediately and stops the flush timer.
// It blocks until the final flush has completed; no flush fires afterward.
// Idempotent-unsafe: callers close each session exactly once.
func (w *SessionWindow) Close() {
	close(w.stop)
	<-w.done
}

func (w *SessionWindow) run() {
	defer close(w.done)

	w.reset(time.Now())
	ticker := time.NewTicker(w.cfg.WindowDuration)
	defer ticker.Stop()

	for {
		select {
		case ev := <-w.events:
			w.append(ev)
			if w.eventCount() >= w.cfg.MaxEvents {
				w.flush("size")
				ticker.Reset(w.cfg.WindowDuration)
			}
		case <-ticker.C:
			w.flush("interval")
		case <-w.stop:
			w.drain()
			w.flush("final")
			return
		}
	}
}

// drain pulls any events that were enqueued before stop was observed, so
// trailing data lands in the final flush instead of being dropped.
func (w *SessionWindow) drain() {
	for {
		select {
		case ev := <-w.events:
			w.append(ev)
		default:
			return
		}
	}
}

func (w *SessionWindow) append(ev windowEvent) {
	switch ev.kind {
	case kindTranscript:
		w.transcripts = append(w.transcripts, ev.text)
	case kindFrameText:
		w.frameTexts = append(w.frameTexts, ev.text)
	}
}

func (w *SessionWindow) eventCount() int {
	return len(w.transcripts) + len(w.frameTexts)
}

func (w *SessionWindow) reset(start time.Time) {
	w.windowStart = start
	w.frameTexts = nil
	w.transcripts = nil
}

// flush emits exactly one ContextChunk for the elapsed window and resets
// the accumulation state. Empty windows are skipped, not emitted.
func (w *SessionWindow) flush(reason string) {
	now := time.Now()
	frameTexts, transcripts, start := w.frameTexts, w.transcripts, w.windowStart
	w.reset(now)

	if len(frameTexts) == 0 && len(transcripts) == 0 {
		metrics.ChunksSkippedEmpty.Inc()
		return
	}

	chunk := ContextChunk{
		SessionID:       w.sessionID,
		StartTime:       start,
		EndTime:         now,
		CombinedText:    combineText(frameTexts, transcripts),
		FrameCount:      len(frameTexts),
		TranscriptCount: len(transcripts),
		DurationSec:     now.Sub(start).Seconds(),
	}

	flushStart := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), w.cfg.SubmitTimeout)
	defer cancel()

	id, err := w.sink.Submit(ctx, chunk)
	metrics.FlushDuration.Observe(time.Since(flushStart).Seconds())
	if err != nil {
		metrics.Errors.WithLabelValues("sink").Inc()
		slog.Error("chunk submit", "session_id", w.sessionID, "reason", reason, "error", err)
		return
	}

	metrics.ChunksEmitted.Inc()
	slog.Info("chunk emitted",
		"session_id", w.sessionID,
		"chunk_id", id,
		"reason", reason,
		"frames", chunk.FrameCount,
		"transcripts", chunk.TranscriptCount,
		"duration_sec", chunk.DurationSec)
}
