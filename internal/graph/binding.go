package graph

import (
	"github.com/roach88/pullgraph/internal/substrate"
)

// evalFunc computes a port's value for vertex v. Values are type-erased to
// any; every evalFunc is produced by a constructor instantiated for the
// port's concrete value type, so the dynamic type always matches the
// port's PortSpec.Type.
type evalFunc func(c *Context, v substrate.ID) any

// Vertex is the attachment identifying a record as a graph vertex.
type Vertex struct {
	// Kind names the vertex type, e.g. "cache[int64]".
	Kind string

	// Label is an optional human-readable name.
	Label string
}

// InputBinding records which arc feeds one input port.
type InputBinding struct {
	Spec PortSpec

	// Arc is the arc wired to this port; zero while unwired.
	Arc substrate.ID

	evaluate evalFunc
}

// Wired reports whether an arc feeds the port.
func (b *InputBinding) Wired() bool {
	return b.Arc.Valid()
}

// OutputBinding records the arcs fed by one output port together with
// the functions that produce its value.
type OutputBinding struct {
	Spec PortSpec

	// Arcs lists every arc fed by this output, in wiring order.
	Arcs []substrate.ID

	// evaluate wraps compute with cycle tracking and metrics. Arcs store
	// this function.
	evaluate evalFunc

	// compute is the vertex-defined function producing the value.
	compute evalFunc
}

// Wired reports whether the output feeds at least one arc.
func (b *OutputBinding) Wired() bool {
	return len(b.Arcs) > 0
}

// Ports is the attachment holding one binding record per declared port.
type Ports struct {
	Inputs  []*InputBinding
	Outputs []*OutputBinding
}

// Input returns the binding for input index.
func (p *Ports) Input(index int) (*InputBinding, bool) {
	for _, b := range p.Inputs {
		if b.Spec.Index == index {
			return b, true
		}
	}
	return nil, false
}

// Output returns the binding for output index.
func (p *Ports) Output(index int) (*OutputBinding, bool) {
	for _, b := range p.Outputs {
		if b.Spec.Index == index {
			return b, true
		}
	}
	return nil, false
}

// Arc is the attachment of an arc record: a wire from a producer's output
// port to a consumer's input port. Arcs are immutable once created.
type Arc struct {
	Producer substrate.ID
	Output   int
	Consumer substrate.ID
	Input    int
	Spec     PortSpec

	evaluate evalFunc
}

// From returns the producing endpoint.
func (a *Arc) From() Endpoint { return OutputOf(a.Producer, a.Output) }

// To returns the consuming endpoint.
func (a *Arc) To() Endpoint { return InputOf(a.Consumer, a.Input) }

// Evaluate pulls the arc's value from its producer.
func (a *Arc) Evaluate(c *Context) any {
	return a.evaluate(c, a.Producer)
}
