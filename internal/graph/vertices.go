package graph

import (
	"fmt"
	"reflect"

	"github.com/roach88/pullgraph/internal/substrate"
)

// Port layout shared by the single-input, single-output vertices below.
const (
	primaryIn  = 0
	primaryOut = 0
)

// SourceOut is the output of Const and Var vertices.
func SourceOut[T any]() Out[T] { return OutPort[T](primaryOut) }

// PassIn is the input of Log, Map and Assign vertices.
func PassIn[T any]() In[T] { return InPort[T](primaryIn) }

// PassOut is the output of Log and Map vertices.
func PassOut[T any]() Out[T] { return OutPort[T](primaryOut) }

// ConstState holds a Const vertex's value.
type ConstState[T any] struct {
	Value T
}

// Const returns the definition of a source that always produces value.
func Const[T any](value T) Definition {
	return Definition{
		Kind: kindName("const", typeOf[T]()),
		Outputs: []OutputDecl{
			DeclareOut(SourceOut[T](), func(c *Context, v substrate.ID) T {
				return State[ConstState[T]](c, v).Value
			}),
		},
		State: []StateFunc{WithState(ConstState[T]{Value: value})},
	}
}

// SpawnConst spawns a Const vertex and returns its output.
func SpawnConst[T any](b *Builder, value T) Source[T] {
	return SourceOut[T]().Of(b.MustSpawn(Const(value)))
}

// VarState holds a Var vertex's current value. Evaluation only reads it;
// it changes through mutation batches (see Assign) or SetVar between
// cycles.
type VarState[T any] struct {
	Value T
}

// Var returns the definition of a source producing its stored value.
func Var[T any](initial T) Definition {
	return Definition{
		Kind: kindName("var", typeOf[T]()),
		Outputs: []OutputDecl{
			DeclareOut(SourceOut[T](), func(c *Context, v substrate.ID) T {
				return State[VarState[T]](c, v).Value
			}),
		},
		State: []StateFunc{WithState(VarState[T]{Value: initial})},
	}
}

// VarHandle is a spawned Var vertex.
type VarHandle[T any] struct {
	Vertex substrate.ID
	Out    Source[T]
}

// SpawnVar spawns a Var vertex.
func SpawnVar[T any](b *Builder, initial T) VarHandle[T] {
	v := b.MustSpawn(Var(initial))
	return VarHandle[T]{Vertex: v, Out: SourceOut[T]().Of(v)}
}

// SetVar overwrites the value of Var vertex v. It must not run while the
// world is being evaluated.
func SetVar[T any](w *substrate.World, v substrate.ID, value T) error {
	st, ok := substrate.Get[VarState[T]](w, v)
	if !ok {
		return &GraphError{
			Code:    ErrCodeMissingState,
			Message: fmt.Sprintf("vertex is not a var of %s", typeOf[T]()),
			Vertex:  v,
		}
	}
	st.Value = value
	return nil
}

// Log returns the definition of a pass-through vertex that logs every
// value it forwards.
func Log[T any](label string) Definition {
	in := PassIn[T]()
	return Definition{
		Kind:   kindName("log", typeOf[T]()),
		Label:  label,
		Inputs: []InputDecl{DeclareIn(in)},
		Outputs: []OutputDecl{
			DeclareOut(PassOut[T](), func(c *Context, v substrate.ID) T {
				x := Pull(c, v, in)
				attrs := []any{"vertex", v, "cycle", c.Cycle(), "value", x}
				if vx, ok := substrate.Get[Vertex](c.world, v); ok && vx.Label != "" {
					attrs = append(attrs, "label", vx.Label)
				}
				c.Logger().Info("vertex value", attrs...)
				return x
			}),
		},
	}
}

// SpawnLog spawns a Log vertex as a pass-through segment.
func SpawnLog[T any](b *Builder, label string) Through[T] {
	return ThroughOf(b.MustSpawn(Log[T](label)), PassIn[T](), PassOut[T]())
}

// Unary is a spawned vertex with one input and one output.
type Unary[A, R any] struct {
	Vertex substrate.ID
	In     Sink[A]
	Out    Source[R]
}

type mapState[A, R any] struct {
	fn func(A) R
}

// Map returns the definition of a vertex applying fn to its input.
// Vertices sharing a kind must share input and output types.
func Map[A, R any](kind string, fn func(A) R) Definition {
	in := PassIn[A]()
	return Definition{
		Kind:   kind,
		Inputs: []InputDecl{DeclareIn(in)},
		Outputs: []OutputDecl{
			DeclareOut(PassOut[R](), func(c *Context, v substrate.ID) R {
				return State[mapState[A, R]](c, v).fn(Pull(c, v, in))
			}),
		},
		State: []StateFunc{WithState(mapState[A, R]{fn: fn})},
	}
}

// SpawnMap spawns a Map vertex.
func SpawnMap[A, R any](b *Builder, kind string, fn func(A) R) Unary[A, R] {
	v := b.MustSpawn(Map(kind, fn))
	return Unary[A, R]{Vertex: v, In: PassIn[A]().Of(v), Out: PassOut[R]().Of(v)}
}

type zipState[A, B, R any] struct {
	fn func(A, B) R
}

// Zip returns the definition of a vertex combining two inputs with fn.
// Inputs are in[0]:A and in[1]:B; the result is out[0]:R.
func Zip[A, B, R any](kind string, fn func(A, B) R) Definition {
	a, bIn := InPort[A](0), InPort[B](1)
	return Definition{
		Kind:   kind,
		Inputs: []InputDecl{DeclareIn(a), DeclareIn(bIn)},
		Outputs: []OutputDecl{
			DeclareOut(OutPort[R](0), func(c *Context, v substrate.ID) R {
				return State[zipState[A, B, R]](c, v).fn(Pull(c, v, a), Pull(c, v, bIn))
			}),
		},
		State: []StateFunc{WithState(zipState[A, B, R]{fn: fn})},
	}
}

type funcState struct {
	fn reflect.Value
}

// Func returns the definition of a vertex computing fn over its inputs.
//
// fn must be a non-variadic function with exactly one result. Parameter i
// becomes input port i, typed as the parameter; the result is output 0.
// This single definition covers every arity.
func Func(kind string, fn any) (Definition, error) {
	fv := reflect.ValueOf(fn)
	if !fv.IsValid() || fv.Kind() != reflect.Func || fv.IsNil() {
		return Definition{}, &GraphError{Code: ErrCodeInvalidDefinition,
			Message: fmt.Sprintf("%s: %T is not a function", kind, fn)}
	}
	ft := fv.Type()
	if ft.IsVariadic() || ft.NumOut() != 1 {
		return Definition{}, &GraphError{Code: ErrCodeInvalidDefinition,
			Message: fmt.Sprintf("%s: function must be non-variadic with one result, got %s", kind, ft)}
	}

	params := make([]reflect.Type, ft.NumIn())
	inputs := make([]InputDecl, ft.NumIn())
	for i := range params {
		params[i] = ft.In(i)
		inputs[i] = declareInType(i, params[i])
	}

	compute := func(c *Context, v substrate.ID) any {
		args := make([]reflect.Value, len(params))
		for i, t := range params {
			x := c.pullInput(v, i)
			if x == nil {
				args[i] = reflect.Zero(t)
				continue
			}
			args[i] = reflect.ValueOf(x)
		}
		return State[funcState](c, v).fn.Call(args)[0].Interface()
	}

	return Definition{
		Kind:    kind,
		Inputs:  inputs,
		Outputs: []OutputDecl{declareOutType(0, ft.Out(0), compute)},
		State:   []StateFunc{WithState(funcState{fn: fv})},
	}, nil
}

type assignState struct {
	target substrate.ID
}

// Assign returns the definition of a mutating vertex. Its output is a
// batch that writes the input value into Var vertex target when applied.
func Assign[T any](target substrate.ID) Definition {
	in := PassIn[T]()
	return Definition{
		Kind:   kindName("assign", typeOf[T]()),
		Inputs: []InputDecl{DeclareIn(in)},
		Outputs: []OutputDecl{
			DeclareOut(OutPort[substrate.Batch](primaryOut), func(c *Context, v substrate.ID) substrate.Batch {
				target := State[assignState](c, v).target
				value := Pull(c, v, in)
				return substrate.NewBatch(func(w *substrate.World) {
					st, ok := substrate.Get[VarState[T]](w, target)
					if !ok {
						fatal(ErrCodeMissingState, target, nil, "assign target is not a var of %s", typeOf[T]())
					}
					st.Value = value
				})
			}),
		},
		State: []StateFunc{WithState(assignState{target: target})},
	}
}

// AssignHandle is a spawned Assign vertex.
type AssignHandle[T any] struct {
	Vertex substrate.ID
	In     Sink[T]
	Batch  Source[substrate.Batch]
}

// SpawnAssign spawns an Assign vertex writing into target.
func SpawnAssign[T any](b *Builder, target VarHandle[T]) AssignHandle[T] {
	v := b.MustSpawn(Assign[T](target.Vertex))
	return AssignHandle[T]{
		Vertex: v,
		In:     PassIn[T]().Of(v),
		Batch:  OutPort[substrate.Batch](primaryOut).Of(v),
	}
}
