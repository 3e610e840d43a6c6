package session

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "navi"

// Pipeline stages timed by Metrics.
const (
	StageCapture  = "capture"
	StageExtract  = "extract"
	StageClassify = "classify"
)

// Metrics holds the controller's Prometheus collectors.
type Metrics struct {
	// Sessions counts finished cycles by outcome and failure kind.
	Sessions *prometheus.CounterVec
	// Rejected counts presses refused while busy.
	Rejected prometheus.Counter
	// StageLatency times each pipeline stage.
	StageLatency *prometheus.HistogramVec
	// RecordingDuration observes captured audio length.
	RecordingDuration prometheus.Histogram
	// Active is 1 while a cycle is in Recording or Processing.
	Active prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg. A nil
// reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Sessions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Finished press/release cycles by outcome",
		}, []string{"backend", "outcome", "kind"}),
		Rejected: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "presses_rejected_total",
			Help:      "Presses rejected because a cycle was in flight",
		}),
		StageLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of each pipeline stage",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"stage"}),
		RecordingDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "recording_duration_seconds",
			Help:      "Length of captured recordings",
			Buckets:   []float64{0.25, 0.5, 1, 2, 3, 5, 10, 30, 60},
		}),
		Active: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "session_active",
			Help:      "Whether a cycle is recording or processing",
		}),
	}
}
