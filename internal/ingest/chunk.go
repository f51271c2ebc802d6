// Package ingest aggregates the per-session event stream (frame analysis
// text, speech transcripts) into fixed-duration context windows and emits
// one ContextChunk per window to a sink.
package ingest

import (
	"context"
	"strings"
	"time"
)

// ContextChunk is one aggregated context window, immutable once emitted.
// Ownership transfers to the ChunkSink on emission.
type ContextChunk struct {
	SessionID       string
	StartTime       time.Time
	EndTime         time.Time
	CombinedText    string
	FrameCount      int
	TranscriptCount int
	DurationSec     float64
}

// ChunkSink consumes flushed context chunks, typically embedding the
// combined text and persisting it to a vector store. Submit returns the
// id the chunk was stored under.
type ChunkSink interface {
	Submit(ctx context.Context, chunk ContextChunk) (string, error)
}

// combineText renders the window's accumulated text in the layout the
// embedding side expects: a visual-context block followed by an audio
// transcript block, each preserving arrival order.
func combineText(frameTexts, transcripts []string) string {
	var parts []string
	if len(frameTexts) > 0 {
		parts = append(parts, "Visual Context:", strings.Join(frameTexts, " "))
	}
	if len(transcripts) > 0 {
		parts = append(parts, "Audio Transcript:", strings.Join(transcripts, " "))
	}
	return strings.Join(parts, "\n")
}
