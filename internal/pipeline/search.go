package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/hubenschmidt/stream-context/internal/metrics"
)

// ContextSearcher answers similarity queries over stored context chunks.
type ContextSearcher struct {
	embedder       *EmbeddingClient
	qdrant         *QdrantClient
	collection     string
	topK           int
	scoreThreshold float64
}

// SearchConfig holds configuration for the context searcher.
type SearchConfig struct {
	Embedder       *EmbeddingClient
	Qdrant         *QdrantClient
	Collection     string
	TopK           int
	ScoreThreshold float64
}

// NewContextSearcher creates a similarity search client over the chunk store.
func NewContextSearcher(cfg SearchConfig) *ContextSearcher {
	return &ContextSearcher{
		embedder:       cfg.Embedder,
		qdrant:         cfg.Qdrant,
		collection:     cfg.Collection,
		topK:           cfg.TopK,
		scoreThreshold: cfg.ScoreThreshold,
	}
}

// Search embeds the query and returns the nearest stored chunks. A limit
// of 0 uses the configured default.
func (s *ContextSearcher) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	start := time.Now()

	if limit <= 0 {
		limit = s.topK
	}

	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	results, err := s.qdrant.Search(ctx, s.collection, vector, limit, s.scoreThreshold)
	if err != nil {
		return nil, fmt.Errorf("qdrant search: %w", err)
	}

	metrics.SearchDuration.Observe(time.Since(start).Seconds())
	return results, nil
}

// PointCount returns the number of stored chunks.
func (s *ContextSearcher) PointCount(ctx context.Context) (int, error) {
	return s.qdrant.CollectionPointCount(ctx, s.collection)
}
