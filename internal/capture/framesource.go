package capture

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/hubenschmidt/stream-context/internal/vision"
	"github.com/hubenschmidt/stream-context/internal/wire"
)

// Grabber captures the current display contents as a raster.
type Grabber interface {
	Grab() (*image.RGBA, error)
}

// FrameConfig holds screen capture settings.
type FrameConfig struct {
	// Interval between captures. Defaults to 10s.
	Interval time.Duration
	// InitialDelay before the first capture, so the first window is not
	// empty. Defaults to 1s.
	InitialDelay time.Duration
	// ChangeThreshold is the diff ratio above which a frame is sent.
	// Defaults to 0.02.
	ChangeThreshold float64
	// Stride for pixel sampling during diffing.
	Stride int
	// OnFatal is invoked when the display becomes uncapturable mid-run.
	OnFatal func(error)
}

// FrameSource captures the screen on a wall-clock timer and sends a JPEG
// frame only when the display changed beyond the threshold since the
// previous capture. The comparison baseline advances on every tick,
// sent or not, so change is always measured between consecutive
// captures rather than against the last frame that went out.
type FrameSource struct {
	sender  Sender
	grabber Grabber
	cfg     FrameConfig

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool

	prev *image.RGBA
}

// NewFrameSource creates a screen frame source emitting to sender.
func NewFrameSource(sender Sender, grabber Grabber, cfg FrameConfig) *FrameSource {
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Second
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = time.Second
	}
	if cfg.ChangeThreshold <= 0 {
		cfg.ChangeThreshold = 0.02
	}
	if cfg.Stride <= 0 {
		cfg.Stride = vision.DefaultStride
	}
	return &FrameSource{sender: sender, grabber: grabber, cfg: cfg}
}

// Start verifies the display is capturable and begins the timer loop.
func (s *FrameSource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	// Probe once so permission/display errors surface at start, not on
	// the first tick.
	if _, err := s.grabber.Grab(); err != nil {
		return fmt.Errorf("screen capture unavailable: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true
	s.prev = nil

	go s.loop(runCtx)
	slog.Info("frame capture started", "interval", s.cfg.Interval, "threshold", s.cfg.ChangeThreshold)
	return nil
}

func (s *FrameSource) loop(ctx context.Context) {
	defer close(s.done)

	initial := time.NewTimer(s.cfg.InitialDelay)
	defer initial.Stop()
	select {
	case <-ctx.Done():
		return
	case <-initial.C:
		s.tick()
	}

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

// tick captures one raster, updates the comparison baseline, and sends a
// frame when the change ratio exceeds the threshold. The first capture
// is always sent.
func (s *FrameSource) tick() {
	img, err := s.grabber.Grab()
	if err != nil {
		slog.Error("frame grab", "error", err)
		if s.cfg.OnFatal != nil {
			s.cfg.OnFatal(fmt.Errorf("frame grab: %w", err))
		}
		return
	}

	ratio := vision.DiffRatio(s.prev, img, s.cfg.Stride)
	first := s.prev == nil
	s.prev = img // baseline advances every tick

	if !first && ratio <= s.cfg.ChangeThreshold {
		return
	}

	jpegBytes, err := vision.EncodeJPEG(img)
	if err != nil {
		slog.Error("frame encode", "error", err)
		return
	}

	s.sender.Send(wire.Frame(jpegBytes))
	slog.Debug("frame sent", "ratio", ratio, "bytes", len(jpegBytes))
}

// Stop cancels the timer loop and waits for it to exit.
func (s *FrameSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return nil
	}
	s.running = false
	s.cancel()
	<-s.done
	s.prev = nil
	slog.Info("frame capture stopped")
	return nil
}
