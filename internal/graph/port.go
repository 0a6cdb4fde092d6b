package graph

import (
	"fmt"
	"reflect"

	"github.com/roach88/pullgraph/internal/substrate"
)

// Direction tells input ports from output ports.
type Direction uint8

const (
	// DirIn marks an input port.
	DirIn Direction = iota + 1
	// DirOut marks an output port.
	DirOut
)

func (d Direction) String() string {
	switch d {
	case DirIn:
		return "in"
	case DirOut:
		return "out"
	default:
		return fmt.Sprintf("direction(%d)", uint8(d))
	}
}

// PortSpec is the runtime rendering of a port tag: direction, index and
// value type.
type PortSpec struct {
	Direction Direction
	Index     int
	Type      reflect.Type
}

// String renders the port as "in[0]:int64".
func (p PortSpec) String() string {
	return fmt.Sprintf("%s[%d]:%s", p.Direction, p.Index, typeName(p.Type))
}

func typeName(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	return t.String()
}

// typeOf returns the reflect.Type of T, including interface types.
func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// In tags input port Index carrying values of type T.
//
// Tags are plain values; two tags with the same index and type are the
// same port. Wiring an Out[T] to an In[T] type-checks at compile time.
type In[T any] struct {
	index int
}

// InPort returns the tag for input port index.
func InPort[T any](index int) In[T] {
	return In[T]{index: index}
}

// Index returns the port's position among the vertex's inputs.
func (p In[T]) Index() int { return p.index }

// Spec returns the runtime description of the port.
func (p In[T]) Spec() PortSpec {
	return PortSpec{Direction: DirIn, Index: p.index, Type: typeOf[T]()}
}

// Of binds the port to vertex v.
func (p In[T]) Of(v substrate.ID) Sink[T] {
	return Sink[T]{Vertex: v, Port: p}
}

// Out tags output port Index carrying values of type T.
type Out[T any] struct {
	index int
}

// OutPort returns the tag for output port index.
func OutPort[T any](index int) Out[T] {
	return Out[T]{index: index}
}

// Index returns the port's position among the vertex's outputs.
func (p Out[T]) Index() int { return p.index }

// Spec returns the runtime description of the port.
func (p Out[T]) Spec() PortSpec {
	return PortSpec{Direction: DirOut, Index: p.index, Type: typeOf[T]()}
}

// Of binds the port to vertex v.
func (p Out[T]) Of(v substrate.ID) Source[T] {
	return Source[T]{Vertex: v, Port: p}
}

// Source is an output port of a specific vertex.
type Source[T any] struct {
	Vertex substrate.ID
	Port   Out[T]
}

// Endpoint returns the untyped form of s.
func (s Source[T]) Endpoint() Endpoint {
	return Endpoint{Vertex: s.Vertex, Direction: DirOut, Index: s.Port.index}
}

// Sink is an input port of a specific vertex.
type Sink[T any] struct {
	Vertex substrate.ID
	Port   In[T]
}

// Endpoint returns the untyped form of s.
func (s Sink[T]) Endpoint() Endpoint {
	return Endpoint{Vertex: s.Vertex, Direction: DirIn, Index: s.Port.index}
}

// Endpoint names a port of a vertex without its value type. It is what
// runtime wiring (ConnectDynamic) and the driver's untyped roots use.
type Endpoint struct {
	Vertex    substrate.ID
	Direction Direction
	Index     int
}

// String renders the endpoint as "#3.out[0]".
func (e Endpoint) String() string {
	return fmt.Sprintf("%s.%s[%d]", e.Vertex, e.Direction, e.Index)
}

// OutputOf returns the endpoint for output index of v.
func OutputOf(v substrate.ID, index int) Endpoint {
	return Endpoint{Vertex: v, Direction: DirOut, Index: index}
}

// InputOf returns the endpoint for input index of v.
func InputOf(v substrate.ID, index int) Endpoint {
	return Endpoint{Vertex: v, Direction: DirIn, Index: index}
}
