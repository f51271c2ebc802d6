package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hubenschmidt/stream-context/internal/ingest"
	"github.com/hubenschmidt/stream-context/internal/pipeline"
	"github.com/hubenschmidt/stream-context/internal/serverws"
	"github.com/hubenschmidt/stream-context/internal/store"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))

	cfg := loadConfig()

	embedClient := pipeline.NewEmbeddingClient(cfg.ollamaURL, cfg.embeddingModel, cfg.embedPoolSize)
	qdrantClient := pipeline.NewQdrantClient(cfg.qdrantURL, cfg.qdrantPoolSize)

	initCtx, initCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := qdrantClient.EnsureCollection(initCtx, cfg.collection, cfg.vectorSize); err != nil {
		slog.Warn("qdrant collection", "collection", cfg.collection, "error", err)
	}
	initCancel()

	var st *store.Store
	if cfg.databaseURL != "" {
		var err error
		st, err = store.Open(cfg.databaseURL)
		if err != nil {
			slog.Error("store open", "error", err)
			os.Exit(1)
		}
		defer st.Close()
		slog.Info("session store enabled")
	}

	var sink ingest.ChunkSink = pipeline.NewEmbeddingSink(embedClient, qdrantClient, cfg.collection)
	if st != nil {
		sink = pipeline.NewRecordingSink(sink, st)
	}

	aggregator := ingest.New(sink, cfg.windowCfg)

	var transcriber pipeline.Transcriber
	if cfg.whisperServerURL != "" {
		whisper := pipeline.NewWhisperClient(cfg.whisperServerURL, cfg.sttPoolSize)
		warmCtx, warmCancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := whisper.Warmup(warmCtx); err != nil {
			slog.Warn("whisper warmup", "error", err)
		}
		warmCancel()
		transcriber = whisper
		slog.Info("server-side transcription enabled", "whisper", cfg.whisperServerURL)
	}

	analyzer := pipeline.NewVisionClient(cfg.ollamaURL, cfg.visionModel, cfg.visionPrompt, cfg.visionPoolSize)

	searcher := pipeline.NewContextSearcher(pipeline.SearchConfig{
		Embedder:       embedClient,
		Qdrant:         qdrantClient,
		Collection:     cfg.collection,
		TopK:           cfg.searchTopK,
		ScoreThreshold: cfg.searchScoreThreshold,
	})

	wsHandler := serverws.NewHandler(serverws.HandlerConfig{
		Aggregator:    aggregator,
		Transcriber:   transcriber,
		Analyzer:      analyzer,
		Store:         st,
		VADConfig:     cfg.vadConfig,
		MaxConcurrent: cfg.maxConcurrentSessions,
	})

	mux := http.NewServeMux()
	registerRoutes(mux, deps{
		searcher:  searcher,
		store:     st,
		wsHandler: wsHandler,
	})

	addr := ":" + cfg.port
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		slog.Info("shutting down", "signal", sig)

		// Flush trailing windows before the listener goes away.
		aggregator.Shutdown()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}()

	slog.Info("server starting", "addr", addr, "collection", cfg.collection, "window", cfg.windowCfg.WindowDuration)

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}

	slog.Info("server stopped")
}
