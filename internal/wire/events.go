package wire

// Event is a JSON text frame pushed from the server back to the client:
// transcription results and per-frame analysis outcomes.
type Event struct {
	Type  string `json:"type"`
	Text  string `json:"text,omitempty"`
	Error string `json:"error,omitempty"`
}

// Event type discriminators.
const (
	EventResult             = "result"
	EventFrameAnalysis      = "frame_analysis"
	EventFrameAnalysisError = "frame_analysis_error"
)

// ControlStop is the Control-message body a client sends to end the
// session cleanly before closing the connection; the server flushes the
// partial window immediately instead of waiting for the interval.
const ControlStop = `{"type":"stop"}`
