package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/lifetimes/internal/refgraph"
	"github.com/roach88/lifetimes/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	Run      string // run token; lists runs when empty
	Object   int64  // restrict events to one object when non-zero
}

// TraceOutput is the JSON payload of the trace command for a single run.
type TraceOutput struct {
	Run    store.Run        `json:"run"`
	Events []refgraph.Event `json:"events"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Inspect stored runs",
		Long: `List runs stored by "lifetimes run --db", or print the events of one run.

Exit codes:
  0 - Success
  1 - Run not found
  2 - Command error (missing database, etc.)

Examples:
  lifetimes trace --db ./lifetimes.db
  lifetimes trace --db ./lifetimes.db --run test-run-default
  lifetimes trace --db ./lifetimes.db --run test-run-default --object 3`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default from LIFETIMES_DB)")
	cmd.Flags().StringVar(&opts.Run, "run", "", "run token to show")
	cmd.Flags().Int64Var(&opts.Object, "object", 0, "only show events for this object ID")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := orBackground(cmd.Context())
	path := opts.Database
	if path == "" {
		path = opts.settings().DB
	}
	if _, err := os.Stat(path); err != nil {
		return NewExitError(ExitCommandError, fmt.Sprintf("database not found: %s", path))
	}
	if opts.Object != 0 && opts.Run == "" {
		return NewExitError(ExitCommandError, "--object requires --run")
	}

	st, err := store.Open(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	f := opts.formatter(cmd)

	if opts.Run == "" {
		runs, err := st.ListRuns(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list runs", err)
		}
		if f.Format == "json" {
			return f.JSON(CLIResponse{Status: "ok", Data: runs})
		}
		writeRunList(f.Writer, runs)
		return nil
	}

	run, err := st.ReadRun(ctx, opts.Run)
	if errors.Is(err, store.ErrRunNotFound) {
		if f.Format == "json" {
			_ = f.Error("E_RUN_NOT_FOUND", "run not found", opts.Run)
		}
		return NewExitError(ExitFailure, fmt.Sprintf("run not found: %s", opts.Run))
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read run", err)
	}

	var events []refgraph.Event
	if opts.Object != 0 {
		events, err = st.ReadObjectEvents(ctx, opts.Run, refgraph.ObjectID(opts.Object))
	} else {
		events, err = st.ReadEvents(ctx, opts.Run)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read events", err)
	}

	if f.Format == "json" {
		return f.JSON(CLIResponse{Status: "ok", Data: TraceOutput{Run: run, Events: events}})
	}
	writeEventList(f.Writer, run, events)
	return nil
}

func writeRunList(w io.Writer, runs []store.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs stored.")
		return
	}
	for _, r := range runs {
		fmt.Fprintf(w, "%s  %-28s %4d events  %s\n", r.Token, r.Name, r.EventCount, r.Digest)
	}
}

func writeEventList(w io.Writer, run store.Run, events []refgraph.Event) {
	fmt.Fprintf(w, "%s (run %s)\n\n", run.Name, run.Token)
	for _, e := range events {
		fmt.Fprintf(w, "  %3d  %s\n", e.Seq, describeEvent(e))
	}
}

// describeEvent renders a stored event using raw object IDs, since aliases
// are not persisted.
func describeEvent(e refgraph.Event) string {
	holder := "root"
	switch {
	case e.Holder != 0:
		holder = fmt.Sprintf("#%d", e.Holder)
	case e.Scope != "":
		holder = "scope " + e.Scope
	}
	if e.Field != "" {
		holder += "." + e.Field
	}

	switch e.Type {
	case refgraph.EventScopeOpened, refgraph.EventScopeClosed:
		return fmt.Sprintf("%-18s %s", e.Type, e.Scope)
	case refgraph.EventObjectCreated, refgraph.EventObjectDestroyed:
		return fmt.Sprintf("%-18s #%d (%s)", e.Type, e.Object, e.Label)
	default:
		return fmt.Sprintf("%-18s %s -%s-> #%d [ref %d]", e.Type, holder, e.Kind, e.Object, e.Ref)
	}
}
