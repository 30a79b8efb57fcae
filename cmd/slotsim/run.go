package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/arloliu/slotindex/internal/logging"
	"github.com/arloliu/slotindex/internal/metrics"
	"github.com/arloliu/slotindex/tracing"
	"github.com/arloliu/slotindex/types"
)

func newRunCmd(flags *rootFlags) *cobra.Command {
	opts := defaultSimOptions()
	var (
		metricsAddr string
		trace       bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Produce synthetic timeslices and report admission outcomes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := flags.loadConfig()
			if err != nil {
				return err
			}
			level, err := flags.level()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			deps := simDeps{logger: logging.NewSlogText(cmd.ErrOrStderr(), level)}

			reg := prometheus.NewRegistry()
			deps.metrics = metrics.NewPrometheus(reg, "slotsim")
			if metricsAddr != "" {
				stop := serveMetrics(metricsAddr, reg, deps.logger)
				defer stop()
			}

			if trace {
				tp, err := tracing.NewStdoutProvider(ctx, "slotsim", cmd.ErrOrStderr())
				if err != nil {
					return err
				}
				defer func() { _ = tp.Shutdown(context.Background()) }()
				deps.observer = tracing.NewObserver(tp.Tracer(tracing.InstrumentationName))
			}

			sum, err := runSimulation(ctx, &cfg, opts, deps)
			if err != nil {
				return err
			}

			return sum.print(cmd.OutOrStdout())
		},
	}

	f := cmd.Flags()
	f.DurationVar(&opts.Duration, "duration", opts.Duration, "how long to produce timeslices")
	f.DurationVar(&opts.Interval, "interval", opts.Interval, "delay between timeslices")
	f.IntVar(&opts.Channels, "channels", opts.Channels, "data channels to synthesize when the config declares none")
	f.DurationVar(&opts.MaxLatency, "latency", opts.MaxLatency, "maximum processing time of a slot")
	f.StringVar(&opts.Transport, "transport", opts.Transport, "direct, or nats for an embedded NATS server")
	f.StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	f.BoolVar(&trace, "trace", false, "write OpenTelemetry spans to stderr")

	return cmd
}

func serveMetrics(addr string, reg *prometheus.Registry, logger types.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "addr", addr, "error", err)
		}
	}()
	logger.Info("serving metrics", "addr", addr)

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

func (s *summary) print(out io.Writer) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "run\t%s\n", s.RunID)
	fmt.Fprintf(w, "transport\t%s\n", s.Transport)
	fmt.Fprintf(w, "produced\t%d\n", s.Produced)
	for _, action := range []types.ActionTaken{
		types.ActionReplaceUnused,
		types.ActionReplaceObsolete,
		types.ActionDropObsolete,
		types.ActionDropInvalid,
		types.ActionWait,
	} {
		fmt.Fprintf(w, "%s\t%d\n", action, s.Outcomes[action])
	}
	fmt.Fprintf(w, "not submitted\t%d\n", s.Errors)
	fmt.Fprintf(w, "released\t%d\n", s.Released)
	fmt.Fprintf(w, "invalidated\t%d\n", s.Invalidated)
	fmt.Fprintf(w, "oldest possible input\t%s\n", s.Input.Timeslice)
	fmt.Fprintf(w, "oldest possible output\t%s\n", s.Output.Timeslice)

	return w.Flush()
}
