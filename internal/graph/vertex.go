package graph

import (
	"fmt"
	"reflect"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/pullgraph/internal/substrate"
)

// Definition describes a vertex type: its kind, its ports, how each output
// is computed and which state attachments a new vertex starts with.
//
// Ports are fixed at creation. Order among sibling ports is insignificant;
// indices must be unique per direction.
type Definition struct {
	Kind    string
	Label   string
	Inputs  []InputDecl
	Outputs []OutputDecl
	State   []StateFunc
}

// StateFunc attaches vertex-specific state to a freshly spawned vertex.
type StateFunc func(w *substrate.World, v substrate.ID)

// WithState returns a StateFunc attaching s.
func WithState[S any](s S) StateFunc {
	return func(w *substrate.World, v substrate.ID) {
		substrate.Attach(w, v, s)
	}
}

// InputDecl declares one input port.
type InputDecl struct {
	spec PortSpec
}

// Spec returns the declared port.
func (d InputDecl) Spec() PortSpec { return d.spec }

// DeclareIn declares input port p.
func DeclareIn[T any](p In[T]) InputDecl {
	return InputDecl{spec: p.Spec()}
}

// declareInType declares an input port from a runtime type. Used by the
// reflective function vertex.
func declareInType(index int, t reflect.Type) InputDecl {
	return InputDecl{spec: PortSpec{Direction: DirIn, Index: index, Type: t}}
}

// OutputDecl declares one output port and the function computing it.
type OutputDecl struct {
	spec    PortSpec
	compute evalFunc
}

// Spec returns the declared port.
func (d OutputDecl) Spec() PortSpec { return d.spec }

// DeclareOut declares output port p computed by compute.
func DeclareOut[T any](p Out[T], compute func(c *Context, v substrate.ID) T) OutputDecl {
	return OutputDecl{
		spec: p.Spec(),
		compute: func(c *Context, v substrate.ID) any {
			return compute(c, v)
		},
	}
}

// declareOutType declares an output from a runtime type and an erased
// compute function whose results must have dynamic type t.
func declareOutType(index int, t reflect.Type, compute evalFunc) OutputDecl {
	return OutputDecl{
		spec:    PortSpec{Direction: DirOut, Index: index, Type: t},
		compute: compute,
	}
}

// Validate checks the definition is well formed.
func (d Definition) Validate() error {
	if d.Kind == "" {
		return &GraphError{Code: ErrCodeInvalidDefinition, Message: "definition has no kind"}
	}
	seen := make(map[int]bool, len(d.Inputs))
	for _, in := range d.Inputs {
		if in.spec.Direction != DirIn || in.spec.Type == nil {
			return &GraphError{Code: ErrCodeInvalidDefinition,
				Message: fmt.Sprintf("%s: malformed input declaration %s", d.Kind, in.spec)}
		}
		if seen[in.spec.Index] {
			return &GraphError{Code: ErrCodeInvalidDefinition,
				Message: fmt.Sprintf("%s: duplicate input index %d", d.Kind, in.spec.Index)}
		}
		seen[in.spec.Index] = true
	}
	seen = make(map[int]bool, len(d.Outputs))
	for _, out := range d.Outputs {
		if out.spec.Direction != DirOut || out.spec.Type == nil || out.compute == nil {
			return &GraphError{Code: ErrCodeInvalidDefinition,
				Message: fmt.Sprintf("%s: malformed output declaration %s", d.Kind, out.spec)}
		}
		if seen[out.spec.Index] {
			return &GraphError{Code: ErrCodeInvalidDefinition,
				Message: fmt.Sprintf("%s: duplicate output index %d", d.Kind, out.spec.Index)}
		}
		seen[out.spec.Index] = true
	}
	return nil
}

// ports builds the unwired binding records for a new vertex.
func (d Definition) ports() *Ports {
	p := &Ports{
		Inputs:  make([]*InputBinding, 0, len(d.Inputs)),
		Outputs: make([]*OutputBinding, 0, len(d.Outputs)),
	}
	for _, in := range d.Inputs {
		p.Inputs = append(p.Inputs, &InputBinding{
			Spec:     in.spec,
			evaluate: evalIn(in.spec),
		})
	}
	for _, out := range d.Outputs {
		p.Outputs = append(p.Outputs, &OutputBinding{
			Spec:     out.spec,
			evaluate: evalOut(d.Kind, out.spec, out.compute),
			compute:  out.compute,
		})
	}
	return p
}

// State reads the S attachment of v during evaluation. A missing
// attachment is a fatal configuration error.
func State[S any](c *Context, v substrate.ID) *S {
	s, ok := substrate.Get[S](c.world, v)
	if !ok {
		fatal(ErrCodeMissingState, v, nil, "vertex has no %s state", typeOf[S]())
	}
	return s
}

// normalizeLabel trims and NFC-normalizes a vertex label so labels that
// render the same compare equal.
func normalizeLabel(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}
