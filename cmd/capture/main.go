package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/hubenschmidt/stream-context/internal/capture"
	"github.com/hubenschmidt/stream-context/internal/session"
	"github.com/hubenschmidt/stream-context/internal/transport"
	"github.com/hubenschmidt/stream-context/internal/wire"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found")
	}
	cfg := loadConfig()

	grabber, err := capture.NewScreenGrabber(cfg.DisplayIndex)
	if err != nil {
		slog.Error("screen grabber", "error", err)
		os.Exit(1)
	}

	ctrl := session.New(session.Config{
		NewTransport: func(sessionID string, onDown func(error)) session.Transport {
			return transport.New(transport.Config{
				URL:                  cfg.ServerURL,
				SessionID:            sessionID,
				SampleRate:           capture.TargetSampleRate,
				QueueSize:            cfg.QueueSize,
				MaxReconnectAttempts: cfg.MaxReconnectAttempts,
				OnDown:               onDown,
				OnEvent:              logEvent,
			})
		},
		NewSources: func(sender capture.Sender, onFatal func(error)) []capture.Source {
			return []capture.Source{
				capture.NewAudioSource(sender, capture.AudioConfig{
					NativeRate: cfg.NativeRate,
					OnFatal:    onFatal,
				}),
				capture.NewFrameSource(sender, grabber, capture.FrameConfig{
					Interval:        cfg.FrameInterval,
					ChangeThreshold: cfg.ChangeThreshold,
					OnFatal:         onFatal,
				}),
				capture.NewTranscriptBuffer(sender, cfg.FlushInterval),
			}
		},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	err = ctrl.Start(ctx)
	cancel()
	if err != nil {
		slog.Error("session start", "error", err)
		os.Exit(1)
	}
	slog.Info("capture session started", "session_id", ctrl.Session().ID, "server", cfg.ServerURL)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs

	slog.Info("stopping capture session")
	if err := ctrl.Stop(); err != nil {
		slog.Error("session stop", "error", err)
		os.Exit(1)
	}
	slog.Info("capture session stopped", "session_id", ctrl.Session().ID)
}

// logEvent surfaces server-side transcription and frame analysis results
// as they arrive.
func logEvent(ev wire.Event) {
	switch ev.Type {
	case wire.EventResult:
		slog.Info("transcript", "text", ev.Text)
	case wire.EventFrameAnalysis:
		slog.Info("frame analysis", "text", ev.Text)
	case wire.EventFrameAnalysisError:
		slog.Warn("frame analysis failed", "error", ev.Error)
	default:
		slog.Debug("server event", "type", ev.Type)
	}
}
