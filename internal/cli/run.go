package cli

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/spf13/cobra"

	"github.com/roach88/lifetimes/internal/harness"
	"github.com/roach88/lifetimes/internal/logging"
	"github.com/roach88/lifetimes/internal/metrics"
	"github.com/roach88/lifetimes/internal/refgraph"
	"github.com/roach88/lifetimes/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string // persist the run when set
	Metrics  bool   // print collected metrics after the trace
}

// RunOutput is the JSON payload of the run command.
type RunOutput struct {
	Scenario string             `json:"scenario"`
	Result   *harness.Result    `json:"result"`
	Metrics  map[string]float64 `json:"metrics,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>",
		Short: "Run one scenario and print its trace",
		Long: `Run a scenario against the reference graph simulator and print the
resulting event trace, the destruction order and any leaked objects.

With --db the run and its events are stored in a SQLite database and can be
inspected later with the trace command.

Exit codes:
  0 - Scenario passed
  1 - A step expectation or assertion failed
  2 - Command error (unreadable scenario, database error, etc.)

Examples:
  lifetimes run testdata/scenarios/weak_auto_nil.yaml
  lifetimes run testdata/scenarios/no_cascade.yaml --db ./lifetimes.db
  lifetimes run testdata/scenarios/strong_cycle_leak.yaml --metrics --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarioCommand(cmd.Context(), opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database for storing the run")
	cmd.Flags().BoolVar(&opts.Metrics, "metrics", false, "print collected metrics")

	return cmd
}

func runScenarioCommand(ctx context.Context, opts *RunOptions, path string, cmd *cobra.Command) error {
	ctx = orBackground(ctx)
	logger := opts.logger()

	scenario, err := harness.LoadScenario(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load scenario", err)
	}

	reg := prometheus.NewRegistry()
	collector, err := metrics.NewCollector(reg)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to register metrics", err)
	}
	traceLog := refgraph.ObserverFunc(func(e refgraph.Event) {
		logger.Log(ctx, logging.LevelTrace, "event",
			"seq", e.Seq, "type", e.Type, "object", e.Object, "ref", e.Ref)
	})

	result, err := harness.Run(scenario,
		harness.WithLogger(logger),
		harness.WithObserver(collector),
		harness.WithObserver(traceLog))
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to run scenario", err)
	}
	logger.Debug("scenario finished", "scenario", scenario.Name, "events", len(result.Events), "pass", result.Pass)

	if opts.Database != "" {
		if err := persistRun(ctx, opts.Database, scenario.Name, result); err != nil {
			return WrapExitError(ExitCommandError, "failed to store run", err)
		}
		logger.Info("run stored", "db", opts.Database, "run", result.RunToken)
	}

	var values map[string]float64
	if opts.Metrics {
		if values, err = gatherMetrics(reg); err != nil {
			return WrapExitError(ExitCommandError, "failed to gather metrics", err)
		}
	}

	f := opts.formatter(cmd)
	if f.Format == "json" {
		resp := CLIResponse{Status: "ok", Data: RunOutput{Scenario: scenario.Name, Result: result, Metrics: values}}
		if !result.Pass {
			resp.Status = "error"
			resp.Error = &CLIError{Code: "E_SCENARIO_FAILED", Message: fmt.Sprintf("%d error(s)", len(result.Errors))}
		}
		if err := f.JSON(resp); err != nil {
			return err
		}
	} else {
		writeRunText(f.Writer, scenario.Name, result, values)
	}

	if !result.Pass {
		return NewExitError(ExitFailure, fmt.Sprintf("scenario %s failed", scenario.Name))
	}
	return nil
}

func persistRun(ctx context.Context, path, name string, result *harness.Result) error {
	st, err := store.Open(path)
	if err != nil {
		return err
	}
	defer st.Close()

	return st.WriteRun(ctx, store.Run{
		Token:  result.RunToken,
		Name:   name,
		Digest: result.Digest,
	}, result.Events)
}

func writeRunText(w io.Writer, name string, result *harness.Result, values map[string]float64) {
	mark := "✓"
	if !result.Pass {
		mark = "✗"
	}
	fmt.Fprintf(w, "%s %s (run %s)\n\n", mark, name, result.RunToken)

	for _, e := range result.Trace {
		fmt.Fprintf(w, "  %3d  %s\n", e.Seq, describeTraceEvent(e))
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "destroyed: %s\n", strings.Join(result.Destroyed, ", "))
	fmt.Fprintf(w, "live:      %s\n", strings.Join(result.Live, ", "))
	if len(result.Leaked) > 0 {
		fmt.Fprintf(w, "leaked:    %s\n", strings.Join(result.Leaked, ", "))
	}
	if result.Halted {
		fmt.Fprintln(w, "halted:    fatal runtime error")
	}
	fmt.Fprintf(w, "digest:    %s\n", result.Digest)

	for _, e := range result.Errors {
		fmt.Fprintf(w, "  %s\n", e)
	}

	if len(values) > 0 {
		fmt.Fprintln(w)
		names := make([]string, 0, len(values))
		for n := range values {
			names = append(names, n)
		}
		sort.Strings(names)
		for _, n := range names {
			fmt.Fprintf(w, "%s %g\n", n, values[n])
		}
	}
}

// describeTraceEvent renders one event as a short line.
func describeTraceEvent(e harness.TraceEvent) string {
	holder := "root"
	switch {
	case e.Holder != "":
		holder = e.Holder
	case e.Scope != "":
		holder = "scope " + e.Scope
	}
	if e.Field != "" {
		holder += "." + e.Field
	}

	switch refgraph.EventType(e.Type) {
	case refgraph.EventScopeOpened, refgraph.EventScopeClosed:
		return fmt.Sprintf("%-18s %s", e.Type, e.Scope)
	case refgraph.EventObjectCreated, refgraph.EventObjectDestroyed:
		return fmt.Sprintf("%-18s %s (%s)", e.Type, e.Object, e.Label)
	default:
		return fmt.Sprintf("%-18s %s -%s-> %s [ref %d]", e.Type, holder, e.Kind, e.Object, e.Ref)
	}
}

// gatherMetrics flattens counters and gauges into name{labels} -> value.
func gatherMetrics(g prometheus.Gatherer) (map[string]float64, error) {
	families, err := g.Gather()
	if err != nil {
		return nil, err
	}
	out := make(map[string]float64)
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			out[metricKey(mf.GetName(), m.GetLabel())] = metricValue(m)
		}
	}
	return out, nil
}

func metricKey(name string, labels []*dto.LabelPair) string {
	if len(labels) == 0 {
		return name
	}
	parts := make([]string, len(labels))
	for i, l := range labels {
		parts[i] = fmt.Sprintf("%s=%q", l.GetName(), l.GetValue())
	}
	return name + "{" + strings.Join(parts, ",") + "}"
}

func metricValue(m *dto.Metric) float64 {
	switch {
	case m.GetCounter() != nil:
		return m.GetCounter().GetValue()
	case m.GetGauge() != nil:
		return m.GetGauge().GetValue()
	}
	return 0
}
