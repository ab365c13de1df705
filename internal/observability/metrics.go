package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Session metrics
	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "interview_assistant_active_sessions",
		Help: "Number of live transcription sessions currently streaming",
	})

	sessionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "interview_assistant_sessions_total",
		Help: "Transcription sessions by speaker and outcome",
	}, []string{"speaker", "outcome"}) // outcome: stopped, failed, rejected

	sessionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "interview_assistant_session_duration_seconds",
		Help:    "Duration of transcription sessions in seconds",
		Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
	})

	connectLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "interview_assistant_stt_connect_latency_seconds",
		Help:    "Time from capture grant to an open recognition socket",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.0, 5.0},
	})

	// Chunk metrics
	chunksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "interview_assistant_chunks_total",
		Help: "Audio chunks handled by live sessions",
	}, []string{"result"}) // result: sent, send_error

	audioBytesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "interview_assistant_audio_bytes_total",
		Help: "Total audio bytes processed",
	}, []string{"direction"}) // direction: "captured" or "sent"

	captureOverflowBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "interview_assistant_capture_overflow_bytes_total",
		Help: "Captured bytes dropped because the capture buffer was full",
	})

	// Transcript metrics
	transcriptEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "interview_assistant_transcript_events_total",
		Help: "Transcript events received from the recognition service",
	}, []string{"kind"}) // kind: interim, final

	malformedMessages = promauto.NewCounter(prometheus.CounterOpts{
		Name: "interview_assistant_malformed_messages_total",
		Help: "Inbound recognition messages dropped as malformed",
	})

	// Collaborator metrics
	evaluationRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "interview_assistant_evaluation_requests_total",
		Help: "Total number of evaluation requests",
	}, []string{"status"})

	evaluationLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "interview_assistant_evaluation_latency_seconds",
		Help:    "Evaluation latency in seconds",
		Buckets: []float64{0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
	})

	batchRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "interview_assistant_batch_transcriptions_total",
		Help: "Total number of batch transcription requests",
	}, []string{"status"})

	batchLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "interview_assistant_batch_transcription_latency_seconds",
		Help:    "Batch transcription latency in seconds",
		Buckets: []float64{0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
	})

	// Error metrics
	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "interview_assistant_errors_total",
		Help: "Total number of errors",
	}, []string{"type", "component"})

	// Circuit breaker metrics
	circuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "interview_assistant_circuit_breaker_state",
		Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
	}, []string{"service"})

	circuitBreakerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "interview_assistant_circuit_breaker_failures_total",
		Help: "Total circuit breaker failures",
	}, []string{"service"})
)

// SessionMetrics tracks metrics for a single transcription session
type SessionMetrics struct {
	speaker   string
	startTime time.Time
	mu        sync.Mutex
	streaming bool
}

// NewSessionMetrics creates a new metrics tracker for a session
func NewSessionMetrics(speaker string) *SessionMetrics {
	return &SessionMetrics{
		speaker:   speaker,
		startTime: time.Now(),
	}
}

// RecordStreaming records that the session reached the streaming state
func (m *SessionMetrics) RecordStreaming(connectStarted time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.streaming {
		return
	}
	m.streaming = true
	activeSessions.Inc()
	connectLatency.Observe(time.Since(connectStarted).Seconds())
}

// RecordEnd records the end of a session with the given outcome
func (m *SessionMetrics) RecordEnd(outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.streaming {
		activeSessions.Dec()
		m.streaming = false
		sessionDuration.Observe(time.Since(m.startTime).Seconds())
	}
	sessionsTotal.WithLabelValues(m.speaker, outcome).Inc()
}

// RecordChunk records one forwarded chunk
func (m *SessionMetrics) RecordChunk(bytes int, sent bool) {
	if sent {
		chunksTotal.WithLabelValues("sent").Inc()
		audioBytesProcessed.WithLabelValues("sent").Add(float64(bytes))
		return
	}
	chunksTotal.WithLabelValues("send_error").Inc()
}

// RecordTranscript records one transcript event
func (m *SessionMetrics) RecordTranscript(final bool) {
	if final {
		transcriptEvents.WithLabelValues("final").Inc()
	} else {
		transcriptEvents.WithLabelValues("interim").Inc()
	}
}

// RecordMalformed records a dropped inbound message
func (m *SessionMetrics) RecordMalformed() {
	malformedMessages.Inc()
}

// RecordSessionRejected records a start request that failed before streaming
func RecordSessionRejected(speaker string) {
	sessionsTotal.WithLabelValues(speaker, "rejected").Inc()
}

// RecordCapturedBytes records audio bytes received from a capture device
func RecordCapturedBytes(bytes int, dropped int) {
	audioBytesProcessed.WithLabelValues("captured").Add(float64(bytes))
	if dropped > 0 {
		captureOverflowBytes.Add(float64(dropped))
	}
}

// RecordEvaluation records the outcome and latency of an evaluation call
func RecordEvaluation(started time.Time, success bool) {
	evaluationLatency.Observe(time.Since(started).Seconds())
	evaluationRequests.WithLabelValues(statusLabel(success)).Inc()
}

// RecordBatchTranscription records the outcome and latency of a batch transcription
func RecordBatchTranscription(started time.Time, success bool) {
	batchLatency.Observe(time.Since(started).Seconds())
	batchRequests.WithLabelValues(statusLabel(success)).Inc()
}

// RecordError records an error
func RecordError(errorType, component string) {
	errorsTotal.WithLabelValues(errorType, component).Inc()
}

// UpdateCircuitBreakerState updates circuit breaker state metric
func UpdateCircuitBreakerState(service string, state int) {
	circuitBreakerState.WithLabelValues(service).Set(float64(state))
}

// IncrementCircuitBreakerFailures increments circuit breaker failure counter
func IncrementCircuitBreakerFailures(service string) {
	circuitBreakerFailures.WithLabelValues(service).Inc()
}

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}
