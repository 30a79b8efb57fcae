package natsbus

import (
	"github.com/arloliu/slotindex/internal/logging"
	"github.com/arloliu/slotindex/types"
)

// Option configures a Subscriber or a FencePublisher.
type Option func(*options)

type options struct {
	logger   types.Logger
	onResult func(arrival Result)
}

// Result is the outcome of an arrival handed to the Sink.
type Result struct {
	Channel   string
	Timeslice types.TimesliceID
	Admission types.Admission
	Err       error
}

// WithLogger sets a logger.
func WithLogger(logger types.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithResultHandler registers a callback invoked with the outcome of every arrival.
//
// The callback runs on the goroutine that submitted the arrival and must not block.
func WithResultHandler(fn func(Result)) Option {
	return func(o *options) {
		o.onResult = fn
	}
}

func applyOptions(opts []Option) options {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logging.NewNop()
	}
	if o.onResult == nil {
		o.onResult = func(Result) {}
	}

	return o
}
