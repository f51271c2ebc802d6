// Package capture owns the client-side input devices: microphone audio,
// screen frames, and externally supplied speech transcripts. Each source
// normalizes its signal and hands wire messages to the transport without
// ever blocking on the network.
package capture

import (
	"context"

	"github.com/hubenschmidt/stream-context/internal/wire"
)

// Sender is where sources hand their outbound units. Send must be
// non-blocking and safe for concurrent use; the transport satisfies it.
type Sender interface {
	Send(msg wire.Message)
}

// Source is one capture input. Start acquires the device and begins
// emitting; a permission or device error fails Start outright, sources
// never retry acquisition silently. Stop releases the device and returns
// once all local resources are freed.
type Source interface {
	Start(ctx context.Context) error
	Stop() error
}
