package graph

import (
	"bufio"
	"fmt"
	"io"

	"github.com/roach88/pullgraph/internal/substrate"
)

// WriteDOT renders the vertices and arcs of w as a Graphviz digraph named
// name. Arcs point from producer to consumer. Output is ordered by ID, so
// the same world always renders the same text.
func WriteDOT(out io.Writer, w *substrate.World, name string) error {
	if name == "" {
		name = "pullgraph"
	}
	bw := bufio.NewWriter(out)
	fmt.Fprintf(bw, "digraph %q {\n", name)
	fmt.Fprintln(bw, "  rankdir=LR;")
	fmt.Fprintln(bw, "  node [shape=box];")

	substrate.Each(w, func(id substrate.ID, v *Vertex) {
		label := v.Kind
		if v.Label != "" {
			label = v.Label + "\n" + v.Kind
		}
		fmt.Fprintf(bw, "  v%d [label=%q];\n", uint64(id), label)
	})
	substrate.Each(w, func(_ substrate.ID, a *Arc) {
		fmt.Fprintf(bw, "  v%d -> v%d [label=%q];\n",
			uint64(a.Producer), uint64(a.Consumer),
			fmt.Sprintf("out[%d] -> in[%d] : %s", a.Output, a.Input, typeName(a.Spec.Type)))
	})

	fmt.Fprintln(bw, "}")
	return bw.Flush()
}
