package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hubenschmidt/stream-context/internal/ingest"
)

// EmbeddingSink embeds each context chunk's combined text and upserts it
// into a Qdrant collection with the window metadata as payload.
type EmbeddingSink struct {
	embedder   *EmbeddingClient
	qdrant     *QdrantClient
	collection string
}

// NewEmbeddingSink creates the production chunk sink.
func NewEmbeddingSink(embedder *EmbeddingClient, qdrant *QdrantClient, collection string) *EmbeddingSink {
	return &EmbeddingSink{
		embedder:   embedder,
		qdrant:     qdrant,
		collection: collection,
	}
}

// Submit embeds and stores one chunk, returning the point id.
func (s *EmbeddingSink) Submit(ctx context.Context, chunk ingest.ContextChunk) (string, error) {
	vector, err := s.embedder.Embed(ctx, chunk.CombinedText)
	if err != nil {
		return "", fmt.Errorf("embed chunk: %w", err)
	}

	point := QdrantPoint{
		ID:     uuid.NewString(),
		Vector: vector,
		Payload: map[string]interface{}{
			"text":             chunk.CombinedText,
			"session_id":       chunk.SessionID,
			"start_time":       chunk.StartTime.UTC().Format(time.RFC3339),
			"end_time":         chunk.EndTime.UTC().Format(time.RFC3339),
			"content_type":     "mixed",
			"transcript_count": chunk.TranscriptCount,
			"frame_count":      chunk.FrameCount,
			"duration_sec":     chunk.DurationSec,
		},
	}

	if err := s.qdrant.Upsert(ctx, s.collection, []QdrantPoint{point}); err != nil {
		return "", fmt.Errorf("upsert chunk: %w", err)
	}
	return point.ID, nil
}
