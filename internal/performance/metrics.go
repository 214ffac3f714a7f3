package performance

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for a diarization run
type Metrics struct {
	StageSeconds       *prometheus.HistogramVec
	StageFailuresTotal *prometheus.CounterVec
	SegmentsTotal      prometheus.Counter
	SegmentSeconds     prometheus.Histogram
	AudioSeconds       prometheus.Gauge
	Speakers           prometheus.Gauge
	Turns              prometheus.Gauge
}

// NewMetrics registers the diarizer collectors with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		StageSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "diarizer_stage_seconds",
				Help:    "Wall time spent in each pipeline stage",
				Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
			},
			[]string{"stage"},
		),
		StageFailuresTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "diarizer_stage_failures_total",
				Help: "Pipeline stage failures by error kind",
			},
			[]string{"stage", "kind"},
		),
		SegmentsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "diarizer_segments_processed_total",
				Help: "Segments whose features were extracted",
			},
		),
		SegmentSeconds: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "diarizer_segment_extraction_seconds",
				Help:    "Feature extraction latency per segment",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
		),
		AudioSeconds: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "diarizer_audio_seconds",
				Help: "Duration of the decoded audio",
			},
		),
		Speakers: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "diarizer_speakers",
				Help: "Speaker count used for clustering",
			},
		),
		Turns: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "diarizer_turns",
				Help: "Speaker turns in the assembled result",
			},
		),
	}
}
