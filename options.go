package slotindex

import (
	"github.com/arloliu/slotindex/internal/hooks"
	"github.com/arloliu/slotindex/internal/logging"
	"github.com/arloliu/slotindex/internal/metrics"
)

// Option configures an Index or a Relay with optional dependencies.
type Option func(*options)

// options holds optional Index and Relay configuration.
type options struct {
	hooks   *Hooks
	metrics MetricsCollector
	logger  Logger
}

// WithHooks sets observer hooks.
//
// Parameters:
//   - hooks: Hooks structure with callback functions; nil callbacks are ignored
//
// Returns:
//   - Option: Functional option for NewIndex and NewRelay
//
// Example:
//
//	hooks := &slotindex.Hooks{
//	    OnWatermarkRegression: func(ch slotindex.ChannelIndex, reported, stored slotindex.TimesliceID) {
//	        alert(ch, reported, stored)
//	    },
//	}
//	relay, err := slotindex.NewRelay(&cfg, src, slotindex.WithHooks(hooks))
func WithHooks(hooks *Hooks) Option {
	return func(o *options) {
		o.hooks = hooks
	}
}

// WithMetrics sets a metrics collector.
//
// Parameters:
//   - metrics: MetricsCollector implementation
//
// Returns:
//   - Option: Functional option for NewIndex and NewRelay
//
// Example:
//
//	collector := metrics.NewPrometheus(prometheus.DefaultRegisterer, "pipeline")
//	relay, err := slotindex.NewRelay(&cfg, src, slotindex.WithMetrics(collector))
func WithMetrics(metrics MetricsCollector) Option {
	return func(o *options) {
		o.metrics = metrics
	}
}

// WithLogger sets a logger.
//
// Parameters:
//   - logger: Logger implementation (compatible with zap.SugaredLogger)
//
// Returns:
//   - Option: Functional option for NewIndex and NewRelay
//
// Example:
//
//	relay, err := slotindex.NewRelay(&cfg, src, slotindex.WithLogger(logging.NewSlogDefault()))
func WithLogger(logger Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// applyOptions resolves opts and fills every unset dependency with a no-op.
func applyOptions(opts []Option) options {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	if o.logger == nil {
		o.logger = logging.NewNop()
	}
	if o.metrics == nil {
		o.metrics = metrics.NewNop()
	}
	filled := hooks.Fill(o.hooks)
	o.hooks = &filled

	return o
}
