package cli

import (
	"bytes"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/pullgraph/internal/graph"
	"github.com/roach88/pullgraph/internal/graphdoc"
	"github.com/roach88/pullgraph/internal/substrate"
)

// NewDotCommand creates the dot command.
func NewDotCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "dot <file>",
		Short: "Render a graph as Graphviz DOT",
		Long: `Build a graph document and render its vertices and arcs as a
Graphviz digraph. Arcs point from producer to consumer.

Examples:
  pullgraph dot counter.yaml | dot -Tsvg > counter.svg`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDot(rootOpts, args[0], cmd)
		},
	}
}

func runDot(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	doc, err := graphdoc.Load(path)
	if err != nil {
		return reportLoadFailure(formatter, path, err)
	}

	w := substrate.NewWorld()
	if _, err := graphdoc.Build(doc, w, graphdoc.WithLogger(newLogger(opts, cmd))); err != nil {
		return reportFailure(formatter, ExitFailure, ErrCodeBuild, fmt.Sprintf("%s does not build", doc.Name), err)
	}

	var buf bytes.Buffer
	if err := graph.WriteDOT(&buf, w, doc.Name); err != nil {
		return WrapExitError(ExitCommandError, "failed to render graph", err)
	}

	if opts.Format == "json" {
		return formatter.Success(map[string]string{"graph": doc.Name, "dot": buf.String()})
	}
	_, err = cmd.OutOrStdout().Write(buf.Bytes())
	return err
}
