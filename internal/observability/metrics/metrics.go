// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "watvision"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Session metrics
	SessionsTotal  prometheus.Counter
	SessionsActive prometheus.Gauge

	// Step metrics
	StepsTotal    prometheus.Counter
	StepsSkipped  prometheus.Counter
	StepsFailed   prometheus.Counter
	StepsStale    prometheus.Counter
	StepDuration  prometheus.Histogram
	TextHitsTotal prometheus.Counter

	// Vision collaborator metrics
	VisionCallLatency   *prometheus.HistogramVec
	VisionCallErrors    *prometheus.CounterVec
	AlignmentsRejected  prometheus.Counter
	FingertipsDetected  prometheus.Counter

	// Speech metrics
	SpeakEvents       prometheus.Counter
	VoiceCommands     *prometheus.CounterVec
	AudioBytesIn      prometheus.Counter
	AudioChunksIn     prometheus.Counter

	// Kafka publish metrics
	KafkaPublishTotal   *prometheus.CounterVec
	KafkaPublishErrors  *prometheus.CounterVec
	KafkaPublishLatency *prometheus.HistogramVec
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics = NewMetrics()

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		SessionsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Total number of client sessions started",
		}),
		SessionsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of currently connected sessions",
		}),

		StepsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "steps_total",
			Help:      "Total number of frame steps processed",
		}),
		StepsSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "steps_skipped_total",
			Help:      "Total number of frames dropped because a step was already in flight",
		}),
		StepsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "steps_failed_total",
			Help:      "Total number of steps that failed with a collaborator error",
		}),
		StepsStale: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "steps_stale_total",
			Help:      "Total number of step results discarded because the session was reset mid-flight",
		}),
		StepDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "step_duration_seconds",
			Help:      "Duration of one full step computation in seconds",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		}),
		TextHitsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "text_hits_total",
			Help:      "Total number of steps where the fingertip was over a text element",
		}),

		VisionCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "vision_call_latency_seconds",
			Help:      "Vision collaborator call latency in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		}, []string{"operation"}),
		VisionCallErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "vision_call_errors_total",
			Help:      "Total number of vision collaborator call errors",
		}, []string{"operation"}),
		AlignmentsRejected: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alignments_rejected_total",
			Help:      "Total number of alignments rejected for low confidence",
		}),
		FingertipsDetected: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fingertips_detected_total",
			Help:      "Total number of frames with a detected fingertip",
		}),

		SpeakEvents: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "speak_events_total",
			Help:      "Total number of speak-text events emitted to clients",
		}),
		VoiceCommands: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "voice_commands_total",
			Help:      "Total number of recognized voice commands",
		}, []string{"intent"}),
		AudioBytesIn: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_bytes_in_total",
			Help:      "Total microphone audio bytes received",
		}),
		AudioChunksIn: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_chunks_in_total",
			Help:      "Total microphone audio chunks received",
		}),

		KafkaPublishTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_total",
			Help:      "Total number of Kafka messages published",
		}, []string{"topic", "event_type"}),
		KafkaPublishErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_errors_total",
			Help:      "Total number of Kafka publish errors",
		}, []string{"topic", "event_type"}),
		KafkaPublishLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "kafka_publish_latency_seconds",
			Help:      "Kafka publish latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"topic"}),
	}
}

// RecordSessionStart records a new session starting.
func (m *Metrics) RecordSessionStart() {
	m.SessionsTotal.Inc()
	m.SessionsActive.Inc()
}

// RecordSessionEnd records a session ending.
func (m *Metrics) RecordSessionEnd() {
	m.SessionsActive.Dec()
}

// RecordStep records a completed step with its outcome.
func (m *Metrics) RecordStep(err error, durationSeconds float64, textHit bool) {
	m.StepsTotal.Inc()
	m.StepDuration.Observe(durationSeconds)
	if err != nil {
		m.StepsFailed.Inc()
	}
	if textHit {
		m.TextHitsTotal.Inc()
	}
}

// RecordStepSkipped records a frame dropped by the in-flight guard.
func (m *Metrics) RecordStepSkipped() {
	m.StepsSkipped.Inc()
}

// RecordStepStale records a step result discarded after a session reset.
func (m *Metrics) RecordStepStale() {
	m.StepsStale.Inc()
}

// RecordVisionCall records latency and outcome of one vision collaborator call.
func (m *Metrics) RecordVisionCall(operation string, err error, latencySeconds float64) {
	m.VisionCallLatency.WithLabelValues(operation).Observe(latencySeconds)
	if err != nil {
		m.VisionCallErrors.WithLabelValues(operation).Inc()
	}
}

// RecordAlignmentRejected records an alignment rejected for low confidence.
func (m *Metrics) RecordAlignmentRejected() {
	m.AlignmentsRejected.Inc()
}

// RecordFingertip records a frame with a detected fingertip.
func (m *Metrics) RecordFingertip() {
	m.FingertipsDetected.Inc()
}

// RecordSpeak records a speak-text event.
func (m *Metrics) RecordSpeak() {
	m.SpeakEvents.Inc()
}

// RecordVoiceCommand records a recognized voice command intent.
func (m *Metrics) RecordVoiceCommand(intent string) {
	m.VoiceCommands.WithLabelValues(intent).Inc()
}

// RecordAudioReceived records microphone audio received.
func (m *Metrics) RecordAudioReceived(bytes int) {
	m.AudioBytesIn.Add(float64(bytes))
	m.AudioChunksIn.Inc()
}

// RecordKafkaPublish records a Kafka publish attempt.
func (m *Metrics) RecordKafkaPublish(topic, eventType string, err error, latencySeconds float64) {
	m.KafkaPublishTotal.WithLabelValues(topic, eventType).Inc()
	m.KafkaPublishLatency.WithLabelValues(topic).Observe(latencySeconds)
	if err != nil {
		m.KafkaPublishErrors.WithLabelValues(topic, eventType).Inc()
	}
}
