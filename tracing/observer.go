package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/arloliu/slotindex/internal/hooks"
	"github.com/arloliu/slotindex/types"
)

// InstrumentationName identifies the tracer obtained from the global provider.
const InstrumentationName = "github.com/arloliu/slotindex"

// Span names.
const (
	SpanAdmit               = "slotindex.admit"
	SpanWatermark           = "slotindex.watermark"
	SpanWatermarkRegression = "slotindex.watermark_regression"
	SpanFenceRegression     = "slotindex.fence_regression"
	SpanOutputFence         = "slotindex.output_fence"
	SpanSlotInvalidated     = "slotindex.slot_invalidated"
	SpanStateChanged        = "slotindex.state_changed"
)

// Observer emits one span per index decision.
type Observer struct {
	tracer trace.Tracer
	parent context.Context //nolint:containedctx // hooks carry no context of their own
}

// NewObserver creates an observer emitting spans with tracer.
//
// A nil tracer uses the global tracer provider.
func NewObserver(tracer trace.Tracer) *Observer {
	if tracer == nil {
		tracer = otel.Tracer(InstrumentationName)
	}

	return &Observer{tracer: tracer, parent: context.Background()}
}

// WithParent returns an observer whose decision spans are children of the span in ctx.
func (o *Observer) WithParent(ctx context.Context) *Observer {
	return &Observer{tracer: o.tracer, parent: ctx}
}

// Hooks returns hooks that trace every event, then forward it to next.
//
// Parameters:
//   - next: Hooks to chain after tracing (may be nil)
//
// Returns:
//   - *types.Hooks: Hooks for slotindex.WithHooks
//
// Example:
//
//	observer := tracing.NewObserver(provider.Tracer("reco"))
//	relay, err := slotindex.NewRelay(&cfg, src, slotindex.WithHooks(observer.Hooks(nil)))
func (o *Observer) Hooks(next *types.Hooks) *types.Hooks {
	n := hooks.Fill(next)

	return &types.Hooks{
		OnAdmission: func(ts types.TimesliceID, a types.Admission) {
			o.emit(SpanAdmit, nil,
				attribute.Int64("timeslice", timeslice(ts)),
				attribute.String("action", a.Action.String()),
				attribute.Int("slot", int(a.Slot)),
				attribute.Bool("admitted", a.Admitted()),
			)
			n.OnAdmission(ts, a)
		},
		OnWatermark: func(ch types.ChannelIndex, oldest types.OldestInputInfo) {
			o.emit(SpanWatermark, nil,
				attribute.Int("channel", int(ch)),
				attribute.Int64("oldest_possible_input", timeslice(oldest.Timeslice)),
				attribute.Int("limited_by_channel", int(oldest.Channel)),
			)
			n.OnWatermark(ch, oldest)
		},
		OnWatermarkRegression: func(ch types.ChannelIndex, reported, stored types.TimesliceID) {
			o.emit(SpanWatermarkRegression,
				fmt.Errorf("channel %d reported %d below %d", ch, reported, stored),
				attribute.Int("channel", int(ch)),
				attribute.Int64("reported", timeslice(reported)),
				attribute.Int64("stored", timeslice(stored)),
			)
			n.OnWatermarkRegression(ch, reported, stored)
		},
		OnFenceRegression: func(kind string, previous, computed types.TimesliceID) {
			o.emit(SpanFenceRegression,
				fmt.Errorf("%s fence would decrease from %d to %d", kind, previous, computed),
				attribute.String("fence", kind),
				attribute.Int64("previous", timeslice(previous)),
				attribute.Int64("computed", timeslice(computed)),
			)
			n.OnFenceRegression(kind, previous, computed)
		},
		OnOutputFence: func(oldest types.OldestOutputInfo) {
			o.emit(SpanOutputFence, nil,
				attribute.Int64("oldest_possible_output", timeslice(oldest.Timeslice)),
				attribute.Int("limited_by_channel", int(oldest.Channel)),
				attribute.Int("limited_by_slot", int(oldest.Slot)),
			)
			n.OnOutputFence(oldest)
		},
		OnSlotInvalidated: func(s types.SlotIndex, ts types.TimesliceID) {
			o.emit(SpanSlotInvalidated, nil,
				attribute.Int("slot", int(s)),
				attribute.Int64("timeslice", timeslice(ts)),
			)
			n.OnSlotInvalidated(s, ts)
		},
		OnStateChanged: func(ctx context.Context, from, to types.State) error {
			_, span := o.tracer.Start(ctx, SpanStateChanged, trace.WithAttributes(
				attribute.String("from", from.String()),
				attribute.String("to", to.String()),
			))
			err := n.OnStateChanged(ctx, from, to)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			}
			span.End()

			return err
		},
	}
}

func (o *Observer) emit(name string, fault error, attrs ...attribute.KeyValue) {
	_, span := o.tracer.Start(o.parent, name, trace.WithAttributes(attrs...))
	if fault != nil {
		span.AddEvent("regression", trace.WithAttributes(attribute.String("detail", fault.Error())))
		span.SetStatus(codes.Error, fault.Error())
	}
	span.End()
}

// timeslice maps the invalid sentinel to -1 so it survives the int64 attribute.
func timeslice(ts types.TimesliceID) int64 {
	if !ts.IsValid() {
		return -1
	}

	return int64(ts) //nolint:gosec // identifiers stay far below 2^63
}
