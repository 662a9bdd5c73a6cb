package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Pipeline stages, used as metric labels
const (
	StageCapture    = "capture"
	StageTranscribe = "transcribe"
	StageRespond    = "respond"
	StageSpeak      = "speak"
)

var (
	// Interaction metrics
	activeInteractions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "voice_character_active_interactions",
		Help: "Number of interactions currently in flight",
	})

	interactionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voice_character_interactions_total",
		Help: "Total number of finished interactions",
	}, []string{"variant", "outcome"}) // outcome: "spoken", "no_speech", "apology", "failed"

	interactionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "voice_character_interaction_duration_seconds",
		Help:    "Duration of interactions from trigger to terminal state",
		Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
	})

	rejectedTriggers = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voice_character_rejected_triggers_total",
		Help: "Triggers rejected because an interaction was already in flight",
	})

	// Stage metrics
	stageRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voice_character_stage_requests_total",
		Help: "Total number of stage executions",
	}, []string{"stage", "status"})

	stageLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "voice_character_stage_latency_seconds",
		Help:    "Stage processing latency in seconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 15.0},
	}, []string{"stage"})

	// Capture metrics
	captureDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "voice_character_capture_duration_seconds",
		Help:    "Length of captured recordings",
		Buckets: []float64{0.5, 1, 2, 3, 4, 5},
	})

	silentCaptures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voice_character_silent_captures_total",
		Help: "Captures whose energy never crossed the speech threshold",
	})

	// Error metrics
	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voice_character_errors_total",
		Help: "Total number of errors",
	}, []string{"kind", "component"})

	// Circuit breaker metrics
	circuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "voice_character_circuit_breaker_state",
		Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
	}, []string{"service"})

	circuitBreakerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voice_character_circuit_breaker_failures_total",
		Help: "Total circuit breaker failures",
	}, []string{"service"})

	// Audio metrics
	audioBytesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voice_character_audio_bytes_total",
		Help: "Total audio bytes processed",
	}, []string{"direction"}) // direction: "in" or "out"
)

// Metrics tracks metrics for a single interaction
type Metrics struct {
	interactionID string
	variant       string
	startTime     time.Time

	mu          sync.Mutex
	stageStarts map[string]time.Time
}

// NewInteractionMetrics creates a new metrics tracker for an interaction.
// variant is "http", "ws" or "interactive".
func NewInteractionMetrics(interactionID, variant string) *Metrics {
	return &Metrics{
		interactionID: interactionID,
		variant:       variant,
		startTime:     time.Now(),
		stageStarts:   make(map[string]time.Time),
	}
}

// RecordInteractionStart records the start of an interaction
func (m *Metrics) RecordInteractionStart() {
	activeInteractions.Inc()
}

// RecordInteractionEnd records the terminal outcome of an interaction
func (m *Metrics) RecordInteractionEnd(outcome string) {
	activeInteractions.Dec()
	interactionsTotal.WithLabelValues(m.variant, outcome).Inc()
	interactionDuration.Observe(time.Since(m.startTime).Seconds())
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

	if start, ok := m.stageStarts[stage]; ok {
		stageLatency.WithLabelValues(stage).Observe(time.Since(start).Seconds())
		delete(m.stageStarts, stage)
	}

	status := "success"
	if !success {
		status = "error"
	}
	stageRequests.WithLabelValues(stage, status).Inc()
}

// RecordError records an error
func (m *Metrics) RecordError(kind, component string) {
	RecordError(kind, component)
}

// RecordAudioBytes records audio bytes processed
func (m *Metrics) RecordAudioBytes(direction string, bytes int64) {
	RecordAudioBytes(direction, bytes)
}

// RecordError records an error outside of an interaction
func RecordError(kind, component string) {
	errorsTotal.WithLabelValues(kind, component).Inc()
}

// RecordAudioBytes records audio bytes outside of an interaction
func RecordAudioBytes(direction string, bytes int64) {
	audioBytesProcessed.WithLabelValues(direction).Add(float64(bytes))
}

// RecordCapture records a finished capture and whether it held speech
func RecordCapture(length time.Duration, speech bool) {
	captureDuration.Observe(length.Seconds())
	if !speech {
		silentCaptures.Inc()
	}
}

// RecordRejectedTrigger counts a trigger refused while busy
func RecordRejectedTrigger() {
	rejectedTriggers.Inc()
}

// UpdateCircuitBreakerState updates circuit breaker state metric
func UpdateCircuitBreakerState(service string, state int) {
	circuitBreakerState.WithLabelValues(service).Set(float64(state))
}

// IncrementCircuitBreakerFailures increments circuit breaker failure counter
func IncrementCircuitBreakerFailures(service string) {
	circuitBreakerFailures.WithLabelValues(service).Inc()
}
