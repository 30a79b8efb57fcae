package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/arloliu/slotindex/types"
)

// PrometheusCollector implements types.MetricsCollector backed by Prometheus.
//
// Collectors are created and registered lazily on first use, so constructing a
// PrometheusCollector never touches the registry.
type PrometheusCollector struct {
	reg       prometheus.Registerer
	namespace string
	once      sync.Once

	// Index metrics
	admissions           *prometheus.CounterVec
	watermarkRegressions *prometheus.CounterVec
	fenceRegressions     *prometheus.CounterVec
	oldestPossibleInput  prometheus.Gauge
	oldestPossibleOutput prometheus.Gauge
	slotsInvalidated     prometheus.Counter
	occupiedSlots        prometheus.Gauge

	// Relay metrics
	stateTransitions     *prometheus.CounterVec
	stateDuration        *prometheus.HistogramVec
	waitRetries          prometheus.Counter
	waitDuration         prometheus.Histogram
	fenceSubscriberDrops prometheus.Counter
}

// Compile-time assertion that PrometheusCollector implements MetricsCollector.
var _ types.MetricsCollector = (*PrometheusCollector)(nil)

// NewPrometheus creates a new Prometheus-backed metrics collector.
//
// Parameters:
//   - reg: Prometheus registerer interface (uses prometheus.DefaultRegisterer if nil)
//   - namespace: Prometheus metrics namespace (defaults to "slotindex" if empty)
//
// Returns:
//   - *PrometheusCollector: A MetricsCollector implementation using Prometheus
func NewPrometheus(reg prometheus.Registerer, namespace string) *PrometheusCollector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "slotindex"
	}

	return &PrometheusCollector{reg: reg, namespace: namespace}
}

func (p *PrometheusCollector) ensureRegistered() {
	p.once.Do(func() {
		p.admissions = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "index",
			Name:      "admissions_total",
			Help:      "Total admission attempts by outcome.",
		}, []string{"action"})

		p.watermarkRegressions = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "index",
			Name:      "watermark_regressions_total",
			Help:      "Channel watermark reports rejected because they went backwards.",
		}, []string{"channel"})

		p.fenceRegressions = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "index",
			Name:      "fence_regressions_total",
			Help:      "Recomputed fences that would have decreased, by kind (input,output).",
		}, []string{"kind"})

		p.oldestPossibleInput = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "index",
			Name:      "oldest_possible_input",
			Help:      "Current input fence (-1 when undefined).",
		})

		p.oldestPossibleOutput = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "index",
			Name:      "oldest_possible_output",
			Help:      "Current output fence (-1 when undefined).",
		})

		p.slotsInvalidated = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "index",
			Name:      "slots_invalidated_total",
			Help:      "Slots invalidated because their timeslice fell below the input fence.",
		})

		p.occupiedSlots = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "index",
			Name:      "occupied_slots",
			Help:      "Current number of slots holding a valid timeslice.",
		})

		p.stateTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "relay",
			Name:      "state_transitions_total",
			Help:      "Total relay state transitions.",
		}, []string{"from", "to"})

		p.stateDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "relay",
			Name:      "state_duration_seconds",
			Help:      "Time spent in a state before leaving it, in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8), // 10ms .. ~164s
		}, []string{"state"})

		p.waitRetries = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "relay",
			Name:      "wait_retries_total",
			Help:      "Total re-driven admissions that were parked by the wait policy.",
		})

		p.waitDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "relay",
			Name:      "wait_duration_seconds",
			Help:      "Time an admission stayed parked before it resolved, in seconds.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		})

		p.fenceSubscriberDrops = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "relay",
			Name:      "fence_subscriber_dropped_total",
			Help:      "Fence updates skipped because a subscriber was not keeping up.",
		})

		p.reg.MustRegister(
			p.admissions,
			p.watermarkRegressions,
			p.fenceRegressions,
			p.oldestPossibleInput,
			p.oldestPossibleOutput,
			p.slotsInvalidated,
			p.occupiedSlots,
			p.stateTransitions,
			p.stateDuration,
			p.waitRetries,
			p.waitDuration,
			p.fenceSubscriberDrops,
		)
	})
}

func timesliceGauge(ts types.TimesliceID) float64 {
	if !ts.IsValid() {
		return -1
	}

	return float64(ts)
}

// IndexMetrics implementation

// RecordAdmission increments the admission counter for the given outcome.
func (p *PrometheusCollector) RecordAdmission(action types.ActionTaken) {
	p.ensureRegistered()
	p.admissions.WithLabelValues(action.String()).Inc()
}

// RecordWatermarkRegression increments the regression counter for a channel.
func (p *PrometheusCollector) RecordWatermarkRegression(channel string) {
	p.ensureRegistered()
	p.watermarkRegressions.WithLabelValues(channel).Inc()
}

// RecordFenceRegression increments the fence regression counter.
func (p *PrometheusCollector) RecordFenceRegression(kind string) {
	p.ensureRegistered()
	p.fenceRegressions.WithLabelValues(kind).Inc()
}

// RecordOldestPossibleInput sets the input fence gauge.
func (p *PrometheusCollector) RecordOldestPossibleInput(ts types.TimesliceID) {
	p.ensureRegistered()
	p.oldestPossibleInput.Set(timesliceGauge(ts))
}

// RecordOldestPossibleOutput sets the output fence gauge.
func (p *PrometheusCollector) RecordOldestPossibleOutput(ts types.TimesliceID) {
	p.ensureRegistered()
	p.oldestPossibleOutput.Set(timesliceGauge(ts))
}

// RecordSlotInvalidated increments the invalidation counter.
func (p *PrometheusCollector) RecordSlotInvalidated() {
	p.ensureRegistered()
	p.slotsInvalidated.Inc()
}

// RecordOccupiedSlots sets the occupied slot gauge.
func (p *PrometheusCollector) RecordOccupiedSlots(count int) {
	p.ensureRegistered()
	p.occupiedSlots.Set(float64(count))
}

// RelayMetrics implementation

// RecordStateTransition counts the transition and observes the time spent in from.
func (p *PrometheusCollector) RecordStateTransition(from, to types.State, duration float64) {
	p.ensureRegistered()
	p.stateTransitions.WithLabelValues(from.String(), to.String()).Inc()
	p.stateDuration.WithLabelValues(from.String()).Observe(duration)
}

// RecordWaitRetry increments the wait retry counter.
func (p *PrometheusCollector) RecordWaitRetry() {
	p.ensureRegistered()
	p.waitRetries.Inc()
}

// RecordWaitDuration observes how long an admission stayed parked.
func (p *PrometheusCollector) RecordWaitDuration(seconds float64) {
	p.ensureRegistered()
	p.waitDuration.Observe(seconds)
}

// RecordFenceSubscriberDropped increments the dropped fence update counter.
func (p *PrometheusCollector) RecordFenceSubscriberDropped() {
	p.ensureRegistered()
	p.fenceSubscriberDrops.Inc()
}
