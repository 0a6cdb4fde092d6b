package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/pullgraph/internal/graphdoc"
)

// NewKindsCommand creates the kinds command.
func NewKindsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "kinds",
		Short:         "List the vertex kinds a document may use",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			kinds := graphdoc.Kinds()
			if rootOpts.Format == "json" {
				return newFormatter(rootOpts, cmd).Success(kinds)
			}
			out := cmd.OutOrStdout()
			for _, k := range kinds {
				typed := ""
				if k.Typed {
					typed = " (typed)"
				}
				fmt.Fprintf(out, "%-8s in: [%s] out: [%s]%s\n",
					k.Name, strings.Join(k.Inputs, ", "), strings.Join(k.Outputs, ", "), typed)
			}
			return nil
		},
	}
}
