package graph

import (
	"github.com/roach88/pullgraph/internal/substrate"
)

// evalIn builds the evaluate-in function of an input port: find the
// binding, follow its arc and evaluate the producer.
func evalIn(spec PortSpec) evalFunc {
	return func(c *Context, v substrate.ID) any {
		b, ok := c.ports(v).Input(spec.Index)
		if !ok {
			fatal(ErrCodeMissingBinding, v, &spec, "input binding not found")
		}
		if !b.Wired() {
			fatal(ErrCodeUnwiredInput, v, &spec, "input port evaluated before it was wired")
		}
		arc, ok := substrate.Get[Arc](c.world, b.Arc)
		if !ok {
			fatal(ErrCodeMissingBinding, v, &spec, "arc %s not found", b.Arc)
		}
		return arc.Evaluate(c)
	}
}

// evalOut builds the evaluate-out function of an output port: track the
// frame for cycle detection, count the call, run the vertex's compute.
func evalOut(kind string, spec PortSpec, compute evalFunc) evalFunc {
	return func(c *Context, v substrate.ID) any {
		c.enter(Frame{Vertex: v, Port: spec.Index})
		defer c.leave()

		c.metrics.observeCompute(kind)
		return compute(c, v)
	}
}

// pullInput evaluates input index of v.
func (c *Context) pullInput(v substrate.ID, index int) any {
	b, ok := c.ports(v).Input(index)
	if !ok {
		fatal(ErrCodeMissingBinding, v, nil, "input %d not declared", index)
	}
	return b.evaluate(c, v)
}

// pullOutput evaluates output index of v.
func (c *Context) pullOutput(v substrate.ID, index int) any {
	b, ok := c.ports(v).Output(index)
	if !ok {
		fatal(ErrCodeMissingBinding, v, nil, "output %d not declared", index)
	}
	return b.evaluate(c, v)
}

// cast converts an erased port value back to T.
func cast[T any](x any, v substrate.ID, spec PortSpec) T {
	if x == nil {
		var zero T
		return zero
	}
	t, ok := x.(T)
	if !ok {
		fatal(ErrCodeTypeMismatch, v, &spec, "port produced %T", x)
	}
	return t
}

// Pull evaluates input p of vertex v. It is the evaluate-in entry point
// for compute functions: an unwired input is a fatal configuration error,
// never a zero value.
func Pull[T any](c *Context, v substrate.ID, p In[T]) T {
	return cast[T](c.pullInput(v, p.index), v, p.Spec())
}

// MustEvaluate evaluates src and panics with a *GraphError if the graph is
// misassembled or cyclic.
func MustEvaluate[T any](c *Context, src Source[T]) T {
	return cast[T](c.pullOutput(src.Vertex, src.Port.index), src.Vertex, src.Port.Spec())
}

// Evaluate evaluates src, returning configuration and cycle errors instead
// of panicking. On error the result is the zero value and must not be used.
func Evaluate[T any](c *Context, src Source[T]) (result T, err error) {
	defer func() { recoverGraphError(recover(), &err) }()
	return MustEvaluate(c, src), nil
}

// EvaluateEndpoint evaluates an output endpoint without static typing.
func EvaluateEndpoint(c *Context, e Endpoint) (result any, err error) {
	defer func() { recoverGraphError(recover(), &err) }()
	if e.Direction != DirOut {
		return nil, &GraphError{
			Code:    ErrCodeUnknownPort,
			Message: "only output endpoints can be evaluated",
			Vertex:  e.Vertex,
		}
	}
	return c.pullOutput(e.Vertex, e.Index), nil
}

// EvaluateMutating evaluates a mutating root: the result is a batch of
// substrate mutations the caller applies once every root of the pass has
// finished reading.
func EvaluateMutating(c *Context, root Source[substrate.Batch]) (substrate.Batch, error) {
	return Evaluate(c, root)
}
