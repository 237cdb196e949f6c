package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Decode session metrics
	sessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "decode_sessions_active",
		Help: "Number of active decode sessions",
	})

	accessUnitsSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "decode_access_units_submitted_total",
		Help: "Total access units submitted to the decode engine",
	}, []string{"codec"})

	accessUnitsCorrupt = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "decode_access_units_corrupt_total",
		Help: "Total corrupt access units skipped",
	}, []string{"codec"})

	framesDecoded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "decode_frames_total",
		Help: "Total frames decoded",
	}, []string{"codec"})

	framesReordered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "decode_frames_reordered_total",
		Help: "Total frames held back for presentation reordering",
	}, []string{"codec"})

	bytesDecoded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "decode_bytes_total",
		Help: "Total compressed bytes consumed",
	}, []string{"codec"})

	stepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "decode_step_duration_seconds",
		Help:    "Duration of a single decode step",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 16), // 100µs to ~3.2s
	})

	// Frame sink metrics
	sinkFramesWritten = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sink_frames_written_total",
		Help: "Total frames written to the output sink",
	}, []string{"format"})

	sinkBytesWritten = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sink_bytes_written_total",
		Help: "Total pixel bytes written to the output sink",
	}, []string{"format"})

	// Stream source metrics
	sourceAccessUnits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "source_access_units_total",
		Help: "Total access units produced by the stream source",
	}, []string{"container"})
)

// SetSessionActive marks a decode session as started or stopped.
func SetSessionActive(active bool) {
	if active {
		sessionsActive.Inc()
	} else {
		sessionsActive.Dec()
	}
}

// IncrementAccessUnitsSubmitted increments the submitted access unit counter.
func IncrementAccessUnitsSubmitted(codec string) {
	accessUnitsSubmitted.WithLabelValues(codec).Inc()
}

// IncrementAccessUnitsCorrupt increments the corrupt access unit counter.
func IncrementAccessUnitsCorrupt(codec string) {
	accessUnitsCorrupt.WithLabelValues(codec).Inc()
}

// IncrementFramesDecoded increments the decoded frame counter.
func IncrementFramesDecoded(codec string) {
	framesDecoded.WithLabelValues(codec).Inc()
}

// IncrementFramesReordered increments the reordered frame counter.
func IncrementFramesReordered(codec string) {
	framesReordered.WithLabelValues(codec).Inc()
}

// AddBytesDecoded adds to the compressed byte counter.
func AddBytesDecoded(codec string, n int) {
	bytesDecoded.WithLabelValues(codec).Add(float64(n))
}

// ObserveStepDuration records the duration of one decode step in seconds.
func ObserveStepDuration(seconds float64) {
	stepDuration.Observe(seconds)
}

// IncrementSinkFramesWritten increments the sink frame counter.
func IncrementSinkFramesWritten(format string) {
	sinkFramesWritten.WithLabelValues(format).Inc()
}

// AddSinkBytesWritten adds to the sink byte counter.
func AddSinkBytesWritten(format string, n int) {
	sinkBytesWritten.WithLabelValues(format).Add(float64(n))
}

// IncrementSourceAccessUnits increments the source access unit counter.
func IncrementSourceAccessUnits(container string) {
	sourceAccessUnits.WithLabelValues(container).Inc()
}
