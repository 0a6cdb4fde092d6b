package cli

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/spf13/cobra"

	"github.com/roach88/pullgraph/internal/graphdoc"
	"github.com/roach88/pullgraph/internal/substrate"
	"github.com/roach88/pullgraph/internal/value"
)

// ValidateResult is the payload of a successful validate.
type ValidateResult struct {
	Graph    string   `json:"graph"`
	Vertices int      `json:"vertices"`
	Arcs     int      `json:"arcs"`
	Roots    int      `json:"roots"`
	Warnings []string `json:"warnings,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <file>",
		Short: "Check a graph document without running it",
		Long: `Check a graph document without running it.

The document is parsed, checked against its schema and built into a
fresh world. Every problem found is reported, not just the first. Static
cycles are reported as warnings: a loop through a cache's changed port
terminates at runtime.

Examples:
  pullgraph validate counter.yaml
  pullgraph validate counter.cue --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	doc, err := graphdoc.Load(path)
	if err != nil {
		return reportLoadFailure(formatter, path, err)
	}

	formatter.VerboseLog("Building graph: %s", doc.Name)
	g, err := graphdoc.Build(doc, substrate.NewWorld(), graphdoc.WithLogger(newLogger(opts, cmd)))
	if err != nil {
		return reportFailure(formatter, ExitFailure, ErrCodeBuild, fmt.Sprintf("%s does not build", doc.Name), err)
	}

	result := ValidateResult{
		Graph:    doc.Name,
		Vertices: len(doc.Vertices),
		Arcs:     len(doc.Arcs),
		Roots:    len(doc.Roots),
	}
	for _, w := range g.Warnings {
		result.Warnings = append(result.Warnings, w.Message)
	}

	if opts.Format == "json" {
		return formatter.Success(result)
	}
	out := cmd.OutOrStdout()
	for _, w := range result.Warnings {
		fmt.Fprintf(out, "warning: %s\n", w)
	}
	fmt.Fprintf(out, "✓ %s valid (%d vertices, %d arcs, %d roots)\n",
		result.Graph, result.Vertices, result.Arcs, result.Roots)
	return nil
}

// reportLoadFailure classifies a graphdoc.Load error. Missing files are
// command errors; documents that were read but rejected are failures.
func reportLoadFailure(f *OutputFormatter, path string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return reportFailure(f, ExitCommandError, ErrCodeLoad, fmt.Sprintf("document not found: %s", path), err)
	}
	var docErr *graphdoc.DocError
	if errors.As(err, &docErr) {
		return reportFailure(f, ExitFailure, ErrCodeDocument, fmt.Sprintf("invalid document: %s", path), err)
	}
	return reportFailure(f, ExitFailure, ErrCodeLoad, fmt.Sprintf("failed to load %s", path), err)
}

func renderValue(v value.Value) string {
	if v == nil {
		return "null"
	}
	data, err := value.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
