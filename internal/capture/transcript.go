package capture

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/hubenschmidt/stream-context/internal/wire"
)

// TranscriptBuffer collects transcript segments from an external speech
// source and flushes them as one concatenated Transcript message on a
// fixed interval, or immediately on stop. It satisfies Source so the
// session controller manages it like the device-backed inputs.
type TranscriptBuffer struct {
	sender   Sender
	interval time.Duration

	mu       sync.Mutex
	segments []string
	cancel   context.CancelFunc
	done     chan struct{}
	running  bool
}

// NewTranscriptBuffer creates a buffer flushing every interval; interval
// <= 0 selects 10s.
func NewTranscriptBuffer(sender Sender, interval time.Duration) *TranscriptBuffer {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &TranscriptBuffer{sender: sender, interval: interval}
}

// Add appends a transcript segment. Safe from any goroutine; segments
// arriving after Stop are discarded.
func (b *TranscriptBuffer) Add(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.running {
		return
	}
	b.segments = append(b.segments, text)
}

// Start begins the periodic flush loop.
func (b *TranscriptBuffer) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.running {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	b.cancel = cancel
	b.done = make(chan struct{})
	b.running = true

	go b.loop(runCtx)
	return nil
}

func (b *TranscriptBuffer) loop(ctx context.Context) {
	defer close(b.done)
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.flush()
		}
	}
}

// flush sends the buffered segments as one message and clears the buffer.
func (b *TranscriptBuffer) flush() {
	b.mu.Lock()
	segments := b.segments
	b.segments = nil
	b.mu.Unlock()

	if len(segments) == 0 {
		return
	}
	text := strings.Join(segments, " ")
	b.sender.Send(wire.Transcript(text))
	slog.Debug("transcript flushed", "segments", len(segments), "chars", len(text))
}

// Stop flushes any remaining segments and halts the loop.
func (b *TranscriptBuffer) Stop() error {
	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		return nil
	}
	b.running = false
	b.mu.Unlock()

	b.cancel()
	<-b.done
	b.flush()
	return nil
}
