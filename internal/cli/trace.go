package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/pullgraph/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	Graph    string // optional - filter to one graph
	Root     string // optional - history of one root, requires Graph
}

// RootHistory is the payload of trace --root.
type RootHistory struct {
	Graph   string               `json:"graph"`
	Root    string               `json:"root"`
	History []store.HistoryEntry `json:"history"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show recorded passes",
		Long: `Show the passes recorded by "pullgraph run --db".

Without --root, every pass is listed in the order it was recorded, with
the value or error of each root. With --root, one root's value is shown
for every cycle it was evaluated in.

Examples:
  pullgraph trace --db ./trace.db
  pullgraph trace --db ./trace.db --graph counter
  pullgraph trace --db ./trace.db --graph counter --root value --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Graph, "graph", "", "only show passes of this graph")
	cmd.Flags().StringVar(&opts.Root, "root", "", "show the history of one root (requires --graph)")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if opts.Root != "" && opts.Graph == "" {
		return NewExitError(ExitCommandError, "--root requires --graph")
	}

	if _, err := os.Stat(opts.Database); err != nil {
		return reportFailure(formatter, ExitCommandError, ErrCodeStore, fmt.Sprintf("database not found: %s", opts.Database), err)
	}
	st, err := store.Open(opts.Database)
	if err != nil {
		return reportFailure(formatter, ExitCommandError, ErrCodeStore, "failed to open database", err)
	}
	defer st.Close()

	if opts.Root != "" {
		history, err := st.ReadRootHistory(ctx, opts.Graph, opts.Root)
		if err != nil {
			return reportFailure(formatter, ExitCommandError, ErrCodeStore, "failed to read history", err)
		}
		if opts.Format == "json" {
			return formatter.Success(RootHistory{Graph: opts.Graph, Root: opts.Root, History: history})
		}
		out := cmd.OutOrStdout()
		if len(history) == 0 {
			fmt.Fprintf(out, "No results found for %s.%s\n", opts.Graph, opts.Root)
			return nil
		}
		for _, h := range history {
			if h.Error != "" {
				fmt.Fprintf(out, "cycle %d: error: %s\n", h.Cycle, h.Error)
				continue
			}
			fmt.Fprintf(out, "cycle %d: %s\n", h.Cycle, renderValue(h.Value))
		}
		return nil
	}

	passes, err := st.ReadPasses(ctx, opts.Graph)
	if err != nil {
		return reportFailure(formatter, ExitCommandError, ErrCodeStore, "failed to read passes", err)
	}
	if opts.Format == "json" {
		return formatter.Success(passes)
	}

	out := cmd.OutOrStdout()
	if len(passes) == 0 {
		fmt.Fprintln(out, "No passes recorded.")
		return nil
	}
	for _, p := range passes {
		status := ""
		if p.Kind == "mutating" {
			status = " (not applied)"
			if p.Applied {
				status = " (applied)"
			}
		}
		fmt.Fprintf(out, "#%d %s cycle %d %s%s [%s]\n", p.Seq, p.Graph, p.Cycle, p.Kind, status, p.ID)
		if p.ApplyError != "" {
			fmt.Fprintf(out, "  apply error: %s\n", p.ApplyError)
		}
		for _, r := range p.Results {
			switch {
			case r.Error != "":
				fmt.Fprintf(out, "  %s: error: %s\n", r.Root, r.Error)
			case p.Kind == "mutating":
				fmt.Fprintf(out, "  %s: %d command(s)\n", r.Root, r.Commands)
			default:
				fmt.Fprintf(out, "  %s = %s\n", r.Root, renderValue(r.Value))
			}
		}
	}
	return nil
}
