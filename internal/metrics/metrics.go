package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ingest_sessions_active",
		Help: "Currently active capture sessions",
	})

	SessionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ingest_sessions_total",
		Help: "Total capture sessions accepted",
	})

	AudioBlocks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ingest_audio_blocks_total",
		Help: "Audio blocks received over the wire",
	})

	FramesReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ingest_frames_total",
		Help: "Screen frames received over the wire",
	})

	TranscriptsReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ingest_transcripts_total",
		Help: "Transcript segments received over the wire",
	})

	DecodeErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ingest_decode_errors_total",
		Help: "Malformed wire messages dropped",
	})

	ChunksEmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ingest_chunks_emitted_total",
		Help: "Context chunks flushed to the sink",
	})

	ChunksSkippedEmpty = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ingest_chunks_skipped_empty_total",
		Help: "Windows skipped because no events arrived",
	})

	FlushDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ingest_flush_duration_seconds",
		Help:    "Window flush latency including sink submission",
		Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.2, 0.5, 1.0, 2.0, 5.0},
	})

	EmbeddingDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pipeline_embedding_duration_seconds",
		Help:    "Embedding generation latency",
		Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.2, 0.5},
	})

	SearchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pipeline_search_duration_seconds",
		Help:    "Context search latency (embed + vector search)",
		Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.2, 0.5},
	})

	TranscribeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pipeline_transcribe_duration_seconds",
		Help:    "Speech-to-text latency per segment",
		Buckets: []float64{0.05, 0.1, 0.2, 0.3, 0.5, 0.8, 1.0, 2.0, 5.0},
	})

	FrameAnalysisDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pipeline_frame_analysis_duration_seconds",
		Help:    "Vision analysis latency per frame",
		Buckets: []float64{0.1, 0.2, 0.5, 1.0, 2.0, 5.0, 10.0},
	})

	Errors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeline_errors_total",
		Help: "Error counts by stage",
	}, []string{"stage"})
)
