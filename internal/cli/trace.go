package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/reactor/internal/journal"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	Reactor  string // optional; lists reactors when empty
	Kind     string // optional signal filter: "event" or "error"
}

// TraceResult is the recorded history of one reactor.
type TraceResult struct {
	Reactor journal.ReactorRecord  `json:"reactor"`
	States  []journal.StateRecord  `json:"states"`
	Signals []journal.SignalRecord `json:"signals"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show what a journal recorded",
		Long: `Show the states, events and errors recorded in a journal.

Without --reactor, lists every recorded reactor with its counts.
With --reactor, prints that reactor's states in commit order followed
by its events and errors in arrival order.

Examples:
  reactor trace --db ./reactor.db
  reactor trace --db ./reactor.db --reactor scenario-typing
  reactor trace --db ./reactor.db --reactor scenario-crash --kind error --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to journal database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Reactor, "reactor", "", "reactor ID to show")
	cmd.Flags().StringVar(&opts.Kind, "kind", "", "filter signals by kind (event|error)")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	kind := journal.SignalKind(opts.Kind)
	if kind != "" && kind != journal.KindEvent && kind != journal.KindError {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid kind %q: must be 'event' or 'error'", opts.Kind))
	}

	// Opening creates a missing file, so check first.
	if _, err := os.Stat(opts.Database); err != nil {
		return WrapExitError(ExitCommandError, "journal not found", err)
	}

	j, err := journal.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	defer j.Close()

	reactors, err := j.ListReactors(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list reactors", err)
	}

	if opts.Reactor == "" {
		if opts.Format == "json" {
			return outputTraceJSON(cmd.OutOrStdout(), reactors)
		}
		return outputReactorsText(cmd.OutOrStdout(), reactors)
	}

	var rec *journal.ReactorRecord
	for i := range reactors {
		if reactors[i].ID == opts.Reactor {
			rec = &reactors[i]
			break
		}
	}
	if rec == nil {
		return NewExitError(ExitCommandError, fmt.Sprintf("reactor not found: %s", opts.Reactor))
	}

	states, err := j.ReadStates(ctx, rec.ID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read states", err)
	}
	signals, err := j.ReadSignals(ctx, rec.ID, kind)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read signals", err)
	}

	result := TraceResult{Reactor: *rec, States: states, Signals: signals}
	if opts.Format == "json" {
		return outputTraceJSON(cmd.OutOrStdout(), result)
	}
	return outputTraceText(cmd.OutOrStdout(), result, opts.Verbose)
}

func outputTraceJSON(w io.Writer, data any) error {
	f := &OutputFormatter{Format: "json", Writer: w}
	return f.Respond(CLIResponse{Status: "ok", Data: data})
}

func outputReactorsText(w io.Writer, reactors []journal.ReactorRecord) error {
	if len(reactors) == 0 {
		fmt.Fprintln(w, "No reactors recorded.")
		return nil
	}
	for _, r := range reactors {
		fmt.Fprintf(w, "%s  %s  states=%d signals=%d\n", r.ID, r.Name, r.States, r.Signals)
	}
	return nil
}

func outputTraceText(w io.Writer, result TraceResult, verbose bool) error {
	fmt.Fprintf(w, "Reactor: %s (%s)\n", result.Reactor.ID, result.Reactor.Name)

	fmt.Fprintf(w, "\nStates (%d):\n", len(result.States))
	for _, s := range result.States {
		fmt.Fprintf(w, "  [%d] %s\n", s.Position, compactJSON(s.State))
	}

	fmt.Fprintf(w, "\nSignals (%d):\n", len(result.Signals))
	for _, sig := range result.Signals {
		switch sig.Kind {
		case journal.KindError:
			label := "unhandled"
			if sig.Expected {
				label = "expected"
			}
			fmt.Fprintf(w, "  error (%s): %s\n", label, sig.Message())
		default:
			fmt.Fprintf(w, "  event: %s\n", compactJSON(sig.Payload))
		}
		if verbose {
			fmt.Fprintf(w, "    id=%d\n", sig.ID)
		}
	}
	return nil
}

func compactJSON(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}
