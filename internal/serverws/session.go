package serverws

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hubenschmidt/stream-context/internal/audio"
	"github.com/hubenschmidt/stream-context/internal/ingest"
	"github.com/hubenschmidt/stream-context/internal/metrics"
	"github.com/hubenschmidt/stream-context/internal/wire"
)

const (
	// targetRate is the sample rate every audio block is normalized to
	// before voice activity detection and transcription.
	targetRate = 16000

	transcribeTimeout = 30 * time.Second

	// frameQueue bounds the per-session backlog of frames awaiting
	// analysis; excess frames are dropped, not queued without limit.
	frameQueue = 4
)

// session processes one connection's decoded wire messages. Audio is
// VAD-segmented and transcribed inline on the read loop (transcript order
// follows speech order); frames go to a single analysis worker so a slow
// vision model never stalls audio.
type session struct {
	id         string
	conn       *websocket.Conn
	cfg        HandlerConfig
	sampleRate int
	window     *ingest.SessionWindow
	vad        *audio.VAD
	sendEvent  func(wire.Event)

	frames     chan []byte
	analyzerWG chan struct{}
}

func newSession(id string, conn *websocket.Conn, sampleRate int, cfg HandlerConfig) *session {
	s := &session{
		id:         id,
		conn:       conn,
		cfg:        cfg,
		sampleRate: sampleRate,
		window:     cfg.Aggregator.Session(id),
		vad:        audio.NewVAD(cfg.VADConfig),
		sendEvent:  newEventSender(conn),
		frames:     make(chan []byte, frameQueue),
		analyzerWG: make(chan struct{}),
	}
	go s.analyzeLoop()
	return s
}

// run reads wire messages until the connection closes or the client sends
// a stop control message.
func (s *session) run() {
	for {
		msgType, data, err := s.conn.ReadMessage()
		if err != nil {
			slog.Info("connection closed", "session_id", s.id, "error", err)
			return
		}

		if msgType != websocket.BinaryMessage {
			// Text frames after the metadata handshake are ignored.
			continue
		}

		msg, err := wire.Decode(data)
		if err != nil {
			// Malformed units are dropped; the connection stays open.
			metrics.DecodeErrors.Inc()
			slog.Warn("wire decode", "session_id", s.id, "error", err)
			continue
		}

		if stop := s.dispatch(msg); stop {
			return
		}
	}
}

// dispatch routes one decoded message. Returns true when the client
// requested session stop.
func (s *session) dispatch(msg wire.Message) bool {
	switch msg.Type {
	case wire.TypeAudio:
		metrics.AudioBlocks.Inc()
		s.handleAudio(msg.Binary)
	case wire.TypeFrame:
		metrics.FramesReceived.Inc()
		// Decode aliases the read buffer; copy before handing off.
		jpeg := make([]byte, len(msg.Binary))
		copy(jpeg, msg.Binary)
		s.enqueueFrame(jpeg)
	case wire.TypeTranscript:
		metrics.TranscriptsReceived.Inc()
		if text := strings.TrimSpace(msg.Text); text != "" {
			s.window.AddTranscript(text)
		}
	case wire.TypeControl:
		return s.handleControl(msg.Text)
	}
	return false
}

func (s *session) handleAudio(pcm []byte) {
	samples := audio.DecodePCM16(pcm)
	// Clients normally send 16kHz already; renormalize if one declared a
	// different rate in the handshake.
	samples = audio.Resample(samples, s.sampleRate, targetRate)
	result := s.vad.Process(samples)
	if !result.SpeechEnded {
		return
	}
	s.transcribe(result.Audio)
}

func (s *session) transcribe(samples []float32) {
	if s.cfg.Transcriber == nil || len(samples) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), transcribeTimeout)
	defer cancel()

	text, err := s.cfg.Transcriber.Transcribe(ctx, samples)
	if err != nil {
		slog.Error("transcribe", "session_id", s.id, "error", err)
		return
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	s.window.AddTranscript(text)
	s.sendEvent(wire.Event{Type: wire.EventResult, Text: text})
}

func (s *session) enqueueFrame(jpeg []byte) {
	select {
	case s.frames <- jpeg:
	default:
		slog.Warn("frame analysis backlog full, dropping frame", "session_id", s.id)
	}
}

func (s *session) analyzeLoop() {
	defer close(s.analyzerWG)
	for jpeg := range s.frames {
		s.analyzeFrame(jpeg)
	}
}

func (s *session) analyzeFrame(jpeg []byte) {
	if s.cfg.Analyzer == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	text, err := s.cfg.Analyzer.Analyze(ctx, jpeg)
	if err != nil {
		slog.Error("frame analysis", "session_id", s.id, "error", err)
		s.sendEvent(wire.Event{Type: wire.EventFrameAnalysisError, Error: err.Error()})
		return
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	s.window.AddFrameText(text)
	s.sendEvent(wire.Event{Type: wire.EventFrameAnalysis, Text: text})
}

func (s *session) handleControl(raw string) bool {
	var ctl struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal([]byte(raw), &ctl); err != nil {
		metrics.DecodeErrors.Inc()
		slog.Warn("control decode", "session_id", s.id, "error", err)
		return false
	}
	if ctl.Type == "stop" {
		slog.Info("stop requested", "session_id", s.id)
		return true
	}
	return false
}

// finish drains trailing state: any speech still buffered in the VAD is
// transcribed, pending frames are analyzed, and the connection's hold on
// the window is released. Reports whether this was the session's last
// connection; a client that reconnected with the same id keeps the
// window alive, so the partial flush happens at its end instead.
func (s *session) finish() bool {
	if trailing := s.vad.Flush(); len(trailing) > 0 {
		s.transcribe(trailing)
	}

	close(s.frames)
	<-s.analyzerWG

	return s.cfg.Aggregator.EndSession(s.id)
}
