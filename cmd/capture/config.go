package main

import (
	"time"

	"github.com/hubenschmidt/stream-context/internal/env"
)

type config struct {
	ServerURL string

	NativeRate      int
	DisplayIndex    int
	FrameInterval   time.Duration
	ChangeThreshold float64
	FlushInterval   time.Duration

	QueueSize            int
	MaxReconnectAttempts int
}

func loadConfig() config {
	return config{
		ServerURL:       env.Str("SERVER_URL", "ws://localhost:8000/ws/stream"),
		NativeRate:      env.Int("AUDIO_NATIVE_RATE", 48000),
		DisplayIndex:    env.Int("DISPLAY_INDEX", 0),
		FrameInterval:   env.Duration("FRAME_INTERVAL", 10*time.Second),
		ChangeThreshold: env.Float("FRAME_CHANGE_THRESHOLD", 0.02),
		FlushInterval:   env.Duration("TRANSCRIPT_FLUSH_INTERVAL", 10*time.Second),
		QueueSize:            env.Int("OUTBOUND_QUEUE_SIZE", 256),
		MaxReconnectAttempts: env.Int("MAX_RECONNECT_ATTEMPTS", 10),
	}
}
