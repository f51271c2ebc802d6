package main

import (
	"time"

	"github.com/hubenschmidt/stream-context/internal/audio"
	"github.com/hubenschmidt/stream-context/internal/env"
	"github.com/hubenschmidt/stream-context/internal/ingest"
)

type config struct {
	port                  string
	ollamaURL             string
	embeddingModel        string
	visionModel           string
	visionPrompt          string
	vectorSize            int
	qdrantURL             string
	collection            string
	whisperServerURL      string
	databaseURL           string
	maxConcurrentSessions int
	embedPoolSize         int
	qdrantPoolSize        int
	sttPoolSize           int
	visionPoolSize        int
	searchTopK            int
	searchScoreThreshold  float64
	windowCfg             ingest.Config
	vadConfig             audio.VADConfig
}

func loadConfig() config {
	vad := audio.DefaultVADConfig()
	vad.SpeechThresholdDB = env.Float("VAD_SPEECH_THRESHOLD_DB", vad.SpeechThresholdDB)

	return config{
		port:                  env.Str("SERVER_PORT", "8000"),
		ollamaURL:             env.Str("OLLAMA_URL", "http://localhost:11434"),
		embeddingModel:        env.Str("EMBEDDING_MODEL", "nomic-embed-text"),
		visionModel:           env.Str("VISION_MODEL", "moondream"),
		visionPrompt:          env.Str("VISION_PROMPT", ""),
		vectorSize:            env.Int("VECTOR_SIZE", 768),
		qdrantURL:             env.Str("QDRANT_URL", "http://localhost:6333"),
		collection:            env.Str("QDRANT_COLLECTION", "stream_context"),
		whisperServerURL:      env.Str("WHISPER_SERVER_URL", ""),
		databaseURL:           env.Str("DATABASE_URL", ""),
		maxConcurrentSessions: env.Int("MAX_CONCURRENT_SESSIONS", 100),
		embedPoolSize:         env.Int("EMBED_POOL_SIZE", 10),
		qdrantPoolSize:        env.Int("QDRANT_POOL_SIZE", 10),
		sttPoolSize:           env.Int("STT_POOL_SIZE", 10),
		visionPoolSize:        env.Int("VISION_POOL_SIZE", 4),
		searchTopK:            env.Int("SEARCH_TOP_K", 10),
		searchScoreThreshold:  env.Float("SEARCH_SCORE_THRESHOLD", 0.0),
		windowCfg: ingest.Config{
			WindowDuration: env.Duration("WINDOW_DURATION", 10*time.Second),
			MaxEvents:      env.Int("WINDOW_MAX_EVENTS", 256),
			EventBuffer:    env.Int("WINDOW_EVENT_BUFFER", 64),
			SubmitTimeout:  env.Duration("WINDOW_SUBMIT_TIMEOUT", 30*time.Second),
		},
		vadConfig: vad,
	}
}
