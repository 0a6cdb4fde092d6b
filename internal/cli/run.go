package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/roach88/pullgraph/internal/graph"
	"github.com/roach88/pullgraph/internal/graphdoc"
	"github.com/roach88/pullgraph/internal/harness"
	"github.com/roach88/pullgraph/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string
	Cycles   int
	Workers  int
	Metrics  bool

	// PassIDs overrides the pass ID generator (for testing).
	PassIDs graph.PassIDGenerator
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <file>",
		Short: "Build a graph and drive its cycles",
		Long: `Build the graph described by a YAML or CUE document and drive it.

A document with a cycles list runs exactly those cycles, assigning vars
and checking expectations as it goes. Otherwise --cycles cycles are run.
With --db every pass is recorded in a SQLite database for later tracing.

Exit codes:
  0 - Every root succeeded and every expectation held
  1 - A root failed or an expectation did not hold
  2 - Command error (unreadable document, database error, etc.)

Examples:
  pullgraph run counter.yaml
  pullgraph run counter.yaml --cycles 5 --workers 4
  pullgraph run counter.cue --db ./trace.db --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGraph(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default: in-memory)")
	cmd.Flags().IntVar(&opts.Cycles, "cycles", harness.DefaultCycles, "cycles to run when the document lists none")
	cmd.Flags().IntVar(&opts.Workers, "workers", 1, "pure roots evaluated in parallel")
	cmd.Flags().BoolVar(&opts.Metrics, "metrics", false, "print evaluation metrics to stderr when done")

	return cmd
}

func runGraph(opts *RunOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	logger := newLogger(opts.RootOptions, cmd)

	if opts.Cycles < 1 {
		return NewExitError(ExitCommandError, fmt.Sprintf("--cycles must be at least 1, got %d", opts.Cycles))
	}
	if opts.Workers < 1 {
		return NewExitError(ExitCommandError, fmt.Sprintf("--workers must be at least 1, got %d", opts.Workers))
	}

	doc, err := graphdoc.Load(path)
	if err != nil {
		return reportLoadFailure(formatter, path, err)
	}
	formatter.VerboseLog("Loaded graph %s: %d vertices, %d roots", doc.Name, len(doc.Vertices), len(doc.Roots))

	runOpts := []harness.Option{
		harness.WithLogger(logger),
		harness.WithCycles(opts.Cycles),
		harness.WithWorkers(opts.Workers),
	}
	var reg *prometheus.Registry
	if opts.Metrics {
		reg = prometheus.NewRegistry()
		m, err := graph.NewMetrics(reg)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to register metrics", err)
		}
		runOpts = append(runOpts, harness.WithMetrics(m))
	}
	if opts.PassIDs != nil {
		runOpts = append(runOpts, harness.WithPassIDGenerator(opts.PassIDs))
	}
	if opts.Database != "" {
		st, err := store.Open(opts.Database)
		if err != nil {
			return reportFailure(formatter, ExitCommandError, ErrCodeStore, "failed to open database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Error("error closing database", "error", closeErr)
			}
		}()
		runOpts = append(runOpts, harness.WithStore(st))
	}

	ctx, stop := signalContext(cmd, logger)
	defer stop()

	result, err := harness.Run(ctx, doc, runOpts...)
	if reg != nil {
		if mErr := writeMetrics(cmd.ErrOrStderr(), reg); mErr != nil {
			logger.Error("error writing metrics", "error", mErr)
		}
	}
	if err != nil {
		return reportRunError(formatter, doc.Name, err)
	}

	if !result.Pass {
		msg := fmt.Sprintf("%s: %d failure(s)", doc.Name, len(result.Errors))
		if opts.Format == "json" {
			if err := formatter.Error(ErrCodeRun, msg, result); err != nil {
				return err
			}
		} else {
			writeTraceText(cmd, result)
			for _, e := range result.Errors {
				fmt.Fprintf(cmd.OutOrStdout(), "✗ %s\n", e)
			}
		}
		return NewExitError(ExitFailure, msg)
	}

	if opts.Format == "json" {
		return formatter.Success(result)
	}
	writeTraceText(cmd, result)
	return nil
}

// reportRunError reports an error that stopped harness.Run. Documents
// that do not build exit 1; store failures and cancellation exit 2.
func reportRunError(f *OutputFormatter, name string, err error) error {
	var buildErr *harness.BuildError
	switch {
	case errors.As(err, &buildErr):
		return reportFailure(f, ExitFailure, ErrCodeBuild, fmt.Sprintf("%s does not build", name), err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return reportFailure(f, ExitCommandError, ErrCodeRun, fmt.Sprintf("run of %s was interrupted", name), err)
	default:
		return reportFailure(f, ExitCommandError, ErrCodeStore, fmt.Sprintf("failed to record %s", name), err)
	}
}

// signalContext derives a context from the command that is canceled on
// SIGINT or SIGTERM.
func signalContext(cmd *cobra.Command, logger *slog.Logger) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, stopping", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigChan)
		cancel()
	}
}

func writeTraceText(cmd *cobra.Command, result *harness.Result) {
	w := cmd.OutOrStdout()
	for _, e := range result.Trace {
		switch {
		case e.Error != "":
			fmt.Fprintf(w, "cycle %d %-8s %s: error: %s\n", e.Cycle, e.Pass, e.Root, e.Error)
		case e.Pass == string(graph.PassMutating):
			fmt.Fprintf(w, "cycle %d %-8s %s: %d command(s)\n", e.Cycle, e.Pass, e.Root, e.Commands)
		default:
			fmt.Fprintf(w, "cycle %d %-8s %s = %s\n", e.Cycle, e.Pass, e.Root, renderValue(e.Value))
		}
	}
	fmt.Fprintf(w, "%d cycle(s)\n", result.Cycles)
}
