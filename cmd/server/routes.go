package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hubenschmidt/stream-context/internal/pipeline"
	"github.com/hubenschmidt/stream-context/internal/store"
)

// defaultSessionLimit is how many sessions are returned when the caller
// omits the ?limit= query parameter.
const defaultSessionLimit = 20

type deps struct {
	searcher  *pipeline.ContextSearcher
	store     *store.Store
	wsHandler http.Handler
}

// registerRoutes wires all HTTP endpoints to the shared mux.
func registerRoutes(mux *http.ServeMux, d deps) {
	mux.Handle("/ws/stream", d.wsHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", handleHealth)
	mux.HandleFunc("POST /api/search", d.handleSearch)
	mux.HandleFunc("GET /api/stats", d.handleStats)
	mux.HandleFunc("GET /api/sessions", d.handleSessions)
	mux.HandleFunc("GET /api/sessions/{id}", d.handleSession)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (d deps) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query string `json:"query"`
		Limit int    `json:"limit"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Query == "" {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	results, err := d.searcher.Search(r.Context(), req.Query, req.Limit)
	if err != nil {
		slog.Error("search", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if results == nil {
		results = []pipeline.SearchResult{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"results": results})
}

func (d deps) handleStats(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{}

	points, err := d.searcher.PointCount(r.Context())
	if err != nil {
		slog.Warn("point count", "error", err)
	}
	resp["chunks_stored"] = points

	if d.store != nil {
		stats, err := d.store.GetStats()
		if err != nil {
			slog.Error("store stats", "error", err)
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		resp["sessions"] = stats.Sessions
		resp["active_sessions"] = stats.ActiveSessions
		resp["chunks_recorded"] = stats.Chunks
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (d deps) handleSessions(w http.ResponseWriter, r *http.Request) {
	if d.store == nil {
		http.Error(w, "session store disabled", http.StatusNotFound)
		return
	}
	limit := queryInt(r, "limit", defaultSessionLimit)
	offset := queryInt(r, "offset", 0)

	sessions, total, err := d.store.ListSessions(limit, offset)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if sessions == nil {
		sessions = []store.Session{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"sessions": sessions, "total": total})
}

func (d deps) handleSession(w http.ResponseWriter, r *http.Request) {
	if d.store == nil {
		http.Error(w, "session store disabled", http.StatusNotFound)
		return
	}
	sess, chunks, err := d.store.GetSession(r.PathValue("id"))
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	if chunks == nil {
		chunks = []store.Chunk{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"session": sess, "chunks": chunks})
}

func queryInt(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
