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
		Name: "voice_assistant_active_sessions",
		Help: "Number of open assistant sessions",
	})

	totalSessions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voice_assistant_sessions_total",
		Help: "Total number of sessions opened",
	})

	sessionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "voice_assistant_session_duration_seconds",
		Help:    "Duration of assistant sessions in seconds",
		Buckets: []float64{10, 30, 60, 120, 300, 600, 1800, 3600},
	})

	// Pipeline metrics
	pipelineRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voice_assistant_pipeline_runs_total",
		Help: "Recording pipelines by outcome (spoken, no_speech, failed, canceled)",
	}, []string{"outcome"})

	stageRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voice_assistant_stage_requests_total",
		Help: "Total number of pipeline stage calls",
	}, []string{"stage", "status"})

	stageLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "voice_assistant_stage_latency_seconds",
		Help:    "Pipeline stage latency in seconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0},
	}, []string{"stage"})

	stateTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voice_assistant_state_transitions_total",
		Help: "Session state machine transitions",
	}, []string{"from", "to"})

	// Error metrics
	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voice_assistant_errors_total",
		Help: "Total number of errors",
	}, []string{"type", "component"})

	// Circuit breaker metrics
	circuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "voice_assistant_circuit_breaker_state",
		Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
	}, []string{"service"})

	circuitBreakerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voice_assistant_circuit_breaker_failures_total",
		Help: "Total circuit breaker failures",
	}, []string{"service"})

	// Audio metrics
	audioBytesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voice_assistant_audio_bytes_total",
		Help: "Total audio bytes processed",
	}, []string{"direction"}) // direction: "in" (recorded) or "out" (synthesized)
)

// Metrics tracks metrics for a single session
type Metrics struct {
	sessionID   string
	startTime   time.Time
	stageStarts map[string]time.Time
	mu          sync.Mutex
}

// NewSessionMetrics creates a new metrics tracker for a session
func NewSessionMetrics(sessionID string) *Metrics {
	return &Metrics{
		sessionID:   sessionID,
		startTime:   time.Now(),
		stageStarts: make(map[string]time.Time),
	}
}

// SessionID returns the session the tracker belongs to
func (m *Metrics) SessionID() string {
	return m.sessionID
}

// RecordSessionStart records the start of a session
func (m *Metrics) RecordSessionStart() {
	activeSessions.Inc()
	totalSessions.Inc()
}

// RecordSessionEnd records the end of a session
func (m *Metrics) RecordSessionEnd() {
	activeSessions.Dec()
	sessionDuration.Observe(time.Since(m.startTime).Seconds())
}

// RecordStageStart records the start of a pipeline stage
func (m *Metrics) RecordStageStart(stage string) {
	m.mu.Lock()
	m.stageStarts[stage] = time.Now()
	m.mu.Unlock()
}

// RecordStageEnd records the end of a pipeline stage
func (m *Metrics) RecordStageEnd(stage string, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if started, ok := m.stageStarts[stage]; ok {
		stageLatency.WithLabelValues(stage).Observe(time.Since(started).Seconds())
		delete(m.stageStarts, stage)
	}

	status := "success"
	if !success {
		status = "error"
	}
	stageRequests.WithLabelValues(stage, status).Inc()
}

// RecordPipelineOutcome counts a finished recording pipeline
func (m *Metrics) RecordPipelineOutcome(outcome string) {
	pipelineRuns.WithLabelValues(outcome).Inc()
}

// RecordTransition counts a state machine transition
func (m *Metrics) RecordTransition(from, to string) {
	stateTransitions.WithLabelValues(from, to).Inc()
}

// RecordError records an error
func (m *Metrics) RecordError(errorType, component string) {
	errorsTotal.WithLabelValues(errorType, component).Inc()
}

// RecordAudioBytes records audio bytes processed
func (m *Metrics) RecordAudioBytes(direction string, bytes int64) {
	audioBytesProcessed.WithLabelValues(direction).Add(float64(bytes))
}

// UpdateCircuitBreakerState updates circuit breaker state metric
func UpdateCircuitBreakerState(service string, state int) {
	circuitBreakerState.WithLabelValues(service).Set(float64(state))
}

// IncrementCircuitBreakerFailures increments circuit breaker failure counter
func IncrementCircuitBreakerFailures(service string) {
	circuitBreakerFailures.WithLabelValues(service).Inc()
}
