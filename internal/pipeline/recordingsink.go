package pipeline

import (
	"context"
	"log/slog"

	"github.com/hubenschmidt/stream-context/internal/ingest"
	"github.com/hubenschmidt/stream-context/internal/store"
)

// RecordingSink wraps a ChunkSink and records each submitted chunk's
// metadata in the session store. Store failures are logged, not
// propagated: the chunk already made it into the vector store.
type RecordingSink struct {
	next  ingest.ChunkSink
	store *store.Store
}

// NewRecordingSink wraps next with store metadata recording.
func NewRecordingSink(next ingest.ChunkSink, st *store.Store) *RecordingSink {
	return &RecordingSink{next: next, store: st}
}

// Submit forwards the chunk and records its metadata row.
func (s *RecordingSink) Submit(ctx context.Context, chunk ingest.ContextChunk) (string, error) {
	id, err := s.next.Submit(ctx, chunk)
	if err != nil {
		return "", err
	}

	err = s.store.RecordChunk(store.Chunk{
		ID:              id,
		SessionID:       chunk.SessionID,
		StartTime:       chunk.StartTime,
		EndTime:         chunk.EndTime,
		FrameCount:      chunk.FrameCount,
		TranscriptCount: chunk.TranscriptCount,
		DurationSec:     chunk.DurationSec,
		TextChars:       len(chunk.CombinedText),
	})
	if err != nil {
		slog.Warn("record chunk metadata", "chunk_id", id, "error", err)
	}
	return id, nil
}
