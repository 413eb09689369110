package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// TranscriptionMetrics records outcomes of transcription requests.
type TranscriptionMetrics struct {
	duration *prometheus.HistogramVec
	success  *prometheus.CounterVec
	failure  *prometheus.CounterVec
	demo     *prometheus.CounterVec
}

// NewTranscriptionMetrics registers the transcription metrics on the provided
// registerer.
func NewTranscriptionMetrics(reg prometheus.Registerer) *TranscriptionMetrics {
	if reg == nil {
		return &TranscriptionMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "transcription_duration_seconds",
		Help:    "Duration of transcription requests in seconds.",
		Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	}, []string{"mode"})
	success := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "transcription_success",
		Help: "Successful transcription requests.",
	}, []string{"mode"})
	failure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "transcription_failure",
		Help: "Failed transcription requests by failure kind.",
	}, []string{"mode", "kind"})
	demo := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "transcription_demo_fallback",
		Help: "Transcription requests served by the demo generator.",
	}, []string{"mode"})
	reg.MustRegister(duration, success, failure, demo)
	return &TranscriptionMetrics{
		duration: duration,
		success:  success,
		failure:  failure,
		demo:     demo,
	}
}

// ObserveDuration records the duration for a request in the given mode.
func (t *TranscriptionMetrics) ObserveDuration(mode string, duration time.Duration) {
	if t == nil || t.duration == nil {
		return
	}
	t.duration.WithLabelValues(normalizeLabel(mode)).Observe(duration.Seconds())
}

// IncSuccess increments the success counter for the given mode.
func (t *TranscriptionMetrics) IncSuccess(mode string) {
	if t == nil || t.success == nil {
		return
	}
	t.success.WithLabelValues(normalizeLabel(mode)).Inc()
}

// IncFailure increments the failure counter for the given mode and kind.
func (t *TranscriptionMetrics) IncFailure(mode, kind string) {
	if t == nil || t.failure == nil {
		return
	}
	t.failure.WithLabelValues(normalizeLabel(mode), normalizeLabel(kind)).Inc()
}

// IncDemoFallback increments the demo fallback counter for the given mode.
func (t *TranscriptionMetrics) IncDemoFallback(mode string) {
	if t == nil || t.demo == nil {
		return
	}
	t.demo.WithLabelValues(normalizeLabel(mode)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
