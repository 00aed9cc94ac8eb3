package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides a centralized interface for collecting compiler metrics.
//
// The metrics system is built on Prometheus and tracks:
//   - Tick duration and recompile-iteration counts
//   - Reconcile, collect, and annotate phase latency
//   - Suspension (data-fetch throw/retry) frequency
//   - Effect errors by phase
//   - Live fiber counts for capacity/leak tracking
//
// Usage:
//
//	metrics := observability.NewMetrics()
//	metrics.TickDurationSeconds.Observe(time.Since(start).Seconds())
//	metrics.RecordRecompile("needs_data")
type Metrics struct {
	// TickDurationSeconds measures full tick (compileUntilStable) latency.
	// Buckets: 0.001s, 0.005s, 0.01s, 0.05s, 0.1s, 0.5s, 1s, 5s
	TickDurationSeconds prometheus.Histogram

	// PhaseDuration measures latency of a single compile phase.
	// Labels: phase (reconcile|collect|annotate)
	PhaseDuration *prometheus.HistogramVec

	// RecompileCounter counts recompile requests by reason.
	// Labels: reason
	RecompileCounter *prometheus.CounterVec

	// IterationsHistogram tracks how many iterations compileUntilStable took.
	IterationsHistogram prometheus.Histogram

	// ForcedStableCounter counts ticks that hit maxIterations without stabilizing.
	ForcedStableCounter prometheus.Counter

	// SuspensionCounter counts render suspensions (data-fetch throws).
	// Labels: component
	SuspensionCounter *prometheus.CounterVec

	// SuspensionRetries tracks retries-to-resolution per suspension.
	SuspensionRetries prometheus.Histogram

	// EffectErrorCounter counts effect create errors by phase.
	// Labels: phase
	EffectErrorCounter *prometheus.CounterVec

	// RenderErrorCounter counts composite render errors (non-suspension).
	// Labels: component
	RenderErrorCounter *prometheus.CounterVec

	// ActiveFibers is a gauge tracking live fibers in the current buffer.
	ActiveFibers prometheus.Gauge

	// TokensAnnotated tracks total annotated tokens per compile.
	TokensAnnotated prometheus.Histogram

	// ToolRegistrations counts tool registrations/replacements by name collision.
	ToolRegistrations *prometheus.CounterVec
}

// NewMetrics creates all Prometheus metrics and registers them with
// prometheus.DefaultRegisterer via promauto. A second call against the same
// registerer panics on duplicate registration, so one Metrics value is built
// per process and shared across compilers.
func NewMetrics() *Metrics {
	return &Metrics{
		TickDurationSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "promptc_tick_duration_seconds",
			Help:    "Duration of a full compileUntilStable tick in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),

		PhaseDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "promptc_phase_duration_seconds",
				Help:    "Duration of a single compile phase in seconds",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
			},
			[]string{"phase"},
		),

		RecompileCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "promptc_recompile_requests_total",
				Help: "Total number of recompile requests by reason",
			},
			[]string{"reason"},
		),

		IterationsHistogram: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "promptc_tick_iterations",
			Help:    "Number of stability-loop iterations per tick",
			Buckets: []float64{1, 2, 3, 4, 5, 10},
		}),

		ForcedStableCounter: promauto.NewCounter(prometheus.CounterOpts{
			Name: "promptc_forced_stable_total",
			Help: "Total number of ticks that hit maxIterations without stabilizing",
		}),

		SuspensionCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "promptc_suspensions_total",
				Help: "Total number of render suspensions by component",
			},
			[]string{"component"},
		),

		SuspensionRetries: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "promptc_suspension_retries",
			Help:    "Number of retries until a suspended render resolved",
			Buckets: []float64{1, 2, 3, 5, 10},
		}),

		EffectErrorCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "promptc_effect_errors_total",
				Help: "Total number of effect create errors by phase",
			},
			[]string{"phase"},
		),

		RenderErrorCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "promptc_render_errors_total",
				Help: "Total number of composite render errors by component",
			},
			[]string{"component"},
		),

		ActiveFibers: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "promptc_active_fibers",
			Help: "Current number of live fibers in the committed buffer",
		}),

		TokensAnnotated: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "promptc_tokens_annotated",
			Help:    "Total annotated tokens per compiled structure",
			Buckets: []float64{100, 500, 1000, 2000, 4000, 8000, 16000, 32000, 64000, 128000},
		}),

		ToolRegistrations: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "promptc_tool_registrations_total",
				Help: "Total number of tool registrations, labeled by whether a prior entry was replaced",
			},
			[]string{"outcome"},
		),
	}
}

// RecordTick records the duration and iteration count of a completed tick.
func (m *Metrics) RecordTick(durationSeconds float64, iterations int, forcedStable bool) {
	m.TickDurationSeconds.Observe(durationSeconds)
	m.IterationsHistogram.Observe(float64(iterations))
	if forcedStable {
		m.ForcedStableCounter.Inc()
	}
}

// RecordPhase records the duration of a single compile phase.
func (m *Metrics) RecordPhase(phase string, durationSeconds float64) {
	m.PhaseDuration.WithLabelValues(phase).Observe(durationSeconds)
}

// RecordRecompile increments the recompile counter for a given reason.
func (m *Metrics) RecordRecompile(reason string) {
	m.RecompileCounter.WithLabelValues(reason).Inc()
}

// RecordSuspension records a render suspension for a component and, once
// resolved, how many retries it took.
func (m *Metrics) RecordSuspension(component string, retries int) {
	m.SuspensionCounter.WithLabelValues(component).Inc()
	m.SuspensionRetries.Observe(float64(retries))
}

// RecordEffectError increments the effect error counter for a phase.
func (m *Metrics) RecordEffectError(phase string) {
	m.EffectErrorCounter.WithLabelValues(phase).Inc()
}

// RecordRenderError increments the render error counter for a component.
func (m *Metrics) RecordRenderError(component string) {
	m.RenderErrorCounter.WithLabelValues(component).Inc()
}

// SetActiveFibers sets the current live-fiber gauge.
func (m *Metrics) SetActiveFibers(count int) {
	m.ActiveFibers.Set(float64(count))
}

// RecordTokensAnnotated records the total tokens stamped on a compiled structure.
func (m *Metrics) RecordTokensAnnotated(total int) {
	m.TokensAnnotated.Observe(float64(total))
}

// RecordToolRegistration records whether registering a tool replaced an
// existing entry with the same name.
func (m *Metrics) RecordToolRegistration(replaced bool) {
	outcome := "new"
	if replaced {
		outcome = "replaced"
	}
	m.ToolRegistrations.WithLabelValues(outcome).Inc()
}
