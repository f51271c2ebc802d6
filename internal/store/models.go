package store

import "time"

// Session represents one capture session.
type Session struct {
	ID         string     `json:"id"`
	StartedAt  time.Time  `json:"started_at"`
	EndedAt    *time.Time `json:"ended_at,omitempty"`
	ChunkCount int        `json:"chunk_count,omitempty"`
}

// Chunk holds the metadata of one emitted context chunk. The combined
// text itself lives in the vector store; only its size is recorded here.
type Chunk struct {
	ID              string    `json:"id"`
	SessionID       string    `json:"session_id"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	FrameCount      int       `json:"frame_count"`
	TranscriptCount int       `json:"transcript_count"`
	DurationSec     float64   `json:"duration_sec"`
	TextChars       int       `json:"text_chars"`
}

// Stats summarizes the store contents.
type Stats struct {
	Sessions       int `json:"sessions"`
	ActiveSessions int `json:"active_sessions"`
	Chunks         int `json:"chunks"`
}
