package pipeline

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hubenschmidt/stream-context/internal/ingest"
)

// fakeBackend serves both the Ollama embed endpoint and the Qdrant REST
// surface from one httptest server.
type fakeBackend struct {
	srv *httptest.Server

	embedVector []float64
	embedStatus int

	upserted []QdrantPoint

	searchResults []SearchResult
	pointsCount   int
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()
	b := &fakeBackend{
		embedVector: []float64{0.1, 0.2, 0.3},
		embedStatus: http.StatusOK,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/embed", func(w http.ResponseWriter, r *http.Request) {
		if b.embedStatus != http.StatusOK {
			w.WriteHeader(b.embedStatus)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"embeddings": [][]float64{b.embedVector}})
	})
	mux.HandleFunc("PUT /collections/{name}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("GET /collections/{name}", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"result": map[string]any{"points_count": b.pointsCount},
		})
	})
	mux.HandleFunc("PUT /collections/{name}/points", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Points []QdrantPoint `json:"points"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		b.upserted = append(b.upserted, req.Points...)
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("POST /collections/{name}/points/search", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"result": b.searchResults})
	})
	b.srv = httptest.NewServer(mux)
	t.Cleanup(b.srv.Close)
	return b
}

func testChunk() ingest.ContextChunk {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return ingest.ContextChunk{
		SessionID:       "sess-1",
		StartTime:       start,
		EndTime:         start.Add(10 * time.Second),
		CombinedText:    "Visual Context:\neditor\nAudio Transcript:\nhello",
		FrameCount:      1,
		TranscriptCount: 1,
		DurationSec:     10,
	}
}

func TestEmbeddingSinkSubmit(t *testing.T) {
	b := newFakeBackend(t)
	sink := NewEmbeddingSink(
		NewEmbeddingClient(b.srv.URL, "nomic-embed-text", 2),
		NewQdrantClient(b.srv.URL, 2),
		"stream_context",
	)

	id, err := sink.Submit(context.Background(), testChunk())
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	require.Len(t, b.upserted, 1)
	p := b.upserted[0]
	assert.Equal(t, id, p.ID)
	assert.Equal(t, []float64{0.1, 0.2, 0.3}, p.Vector)
	assert.Equal(t, "Visual Context:\neditor\nAudio Transcript:\nhello", p.Payload["text"])
	assert.Equal(t, "sess-1", p.Payload["session_id"])
	assert.Equal(t, "mixed", p.Payload["content_type"])
	assert.Equal(t, "2026-03-01T12:00:00Z", p.Payload["start_time"])
	assert.Equal(t, "2026-03-01T12:00:10Z", p.Payload["end_time"])
	assert.EqualValues(t, 1, p.Payload["transcript_count"])
	assert.EqualValues(t, 1, p.Payload["frame_count"])
	assert.EqualValues(t, 10, p.Payload["duration_sec"])
}

func TestEmbeddingSinkEmbedFailure(t *testing.T) {
	b := newFakeBackend(t)
	b.embedStatus = http.StatusInternalServerError
	sink := NewEmbeddingSink(
		NewEmbeddingClient(b.srv.URL, "nomic-embed-text", 2),
		NewQdrantClient(b.srv.URL, 2),
		"stream_context",
	)

	_, err := sink.Submit(context.Background(), testChunk())
	require.Error(t, err)
	assert.Empty(t, b.upserted)
}

func TestContextSearcher(t *testing.T) {
	b := newFakeBackend(t)
	b.searchResults = []SearchResult{
		{ID: "p1", Score: 0.91, Payload: map[string]interface{}{"text": "hit one"}},
		{ID: "p2", Score: 0.74, Payload: map[string]interface{}{"text": "hit two"}},
	}
	b.pointsCount = 12

	searcher := NewContextSearcher(SearchConfig{
		Embedder:   NewEmbeddingClient(b.srv.URL, "nomic-embed-text", 2),
		Qdrant:     NewQdrantClient(b.srv.URL, 2),
		Collection: "stream_context",
		TopK:       5,
	})

	results, err := searcher.Search(context.Background(), "what was on screen", 0)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "p1", results[0].ID)
	assert.InDelta(t, 0.91, results[0].Score, 1e-9)

	count, err := searcher.PointCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 12, count)
}

func TestEnsureCollectionAcceptsConflict(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))
	defer srv.Close()

	q := NewQdrantClient(srv.URL, 2)
	assert.NoError(t, q.EnsureCollection(context.Background(), "stream_context", 768))
}
