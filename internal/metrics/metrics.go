package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/normanking/facerig/internal/avatar3d"
)

var (
	FramesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "facerig_frames_total",
			Help: "Total number of animation frames ticked",
		},
	)

	ClampedFrames = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "facerig_clamped_frames_total",
			Help: "Frames whose time step was clamped after a stall",
		},
	)

	TickDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "facerig_tick_duration_seconds",
			Help:    "Time spent composing one frame",
			Buckets: prometheus.ExponentialBuckets(0.00001, 2, 14),
		},
	)

	Utterances = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "facerig_utterances_total",
			Help: "Utterances by outcome",
		},
		[]string{"outcome"},
	)

	MalformedCues = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "facerig_malformed_cue_tracks_total",
			Help: "Cue tracks rejected as malformed",
		},
	)

	SynthesisLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "facerig_synthesis_latency_seconds",
			Help: "Text-to-speech latency in seconds",
		},
		[]string{"provider"},
	)

	ViewerClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "facerig_viewer_clients",
			Help: "Number of connected remote viewers",
		},
	)
)

// Utterance outcomes
const (
	OutcomeStarted     = "started"
	OutcomeCompleted   = "completed"
	OutcomeInterrupted = "interrupted"
	OutcomeFailed      = "failed"
)

// ObserveFrame records one tick.
func ObserveFrame(f avatar3d.Frame, took time.Duration) {
	FramesTotal.Inc()
	if f.Clamped {
		ClampedFrames.Inc()
	}
	TickDuration.Observe(took.Seconds())
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
