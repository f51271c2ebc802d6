package capture

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gordonklaus/portaudio"

	"github.com/hubenschmidt/stream-context/internal/audio"
	"github.com/hubenschmidt/stream-context/internal/wire"
)

// TargetSampleRate is the rate every audio block is normalized to before
// it goes on the wire.
const TargetSampleRate = 16000

// bufferSizeFor picks the capture buffer size from the native rate: a
// larger buffer at high rates keeps the callback period roughly constant.
func bufferSizeFor(nativeRate int) int {
	if nativeRate >= 48000 {
		return 8192
	}
	return 4096
}

// AudioConfig holds microphone capture settings.
type AudioConfig struct {
	// NativeRate is the device capture rate. 0 selects 48kHz.
	NativeRate int
	// OnFatal is invoked when the device fails mid-capture.
	OnFatal func(error)
}

// AudioSource captures microphone audio via PortAudio. The stream
// callback runs on PortAudio's audio thread: it resamples, converts to
// PCM16, and enqueues; no allocation-heavy work, no blocking I/O.
type AudioSource struct {
	sender Sender
	cfg    AudioConfig

	mu      sync.Mutex
	stream  *portaudio.Stream
	running bool
}

// NewAudioSource creates a microphone source emitting to sender.
func NewAudioSource(sender Sender, cfg AudioConfig) *AudioSource {
	if cfg.NativeRate <= 0 {
		cfg.NativeRate = 48000
	}
	return &AudioSource{sender: sender, cfg: cfg}
}

// Start opens the default input device. Permission denial or a missing
// device fails here; there is no retry.
func (s *AudioSource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("portaudio init: %w", err)
	}

	frames := bufferSizeFor(s.cfg.NativeRate)
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(s.cfg.NativeRate), frames, s.process)
	if err != nil {
		portaudio.Terminate()
		return fmt.Errorf("open input stream: %w", err)
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return fmt.Errorf("start input stream: %w", err)
	}

	s.stream = stream
	s.running = true
	slog.Info("audio capture started", "native_rate", s.cfg.NativeRate, "buffer", frames)
	return nil
}

// process is the PortAudio stream callback.
func (s *AudioSource) process(in []float32) {
	resampled := audio.Resample(in, s.cfg.NativeRate, TargetSampleRate)
	s.sender.Send(wire.Audio(audio.FloatToPCM16(resampled)))
}

// Stop stops and closes the input stream and releases PortAudio.
func (s *AudioSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return nil
	}
	s.running = false

	var firstErr error
	if err := s.stream.Stop(); err != nil {
		firstErr = fmt.Errorf("stop input stream: %w", err)
	}
	if err := s.stream.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("close input stream: %w", err)
	}
	s.stream = nil
	portaudio.Terminate()

	slog.Info("audio capture stopped")
	return firstErr
}
