package graph

import (
	"fmt"
	"reflect"
	"slices"
	"sync"
)

// portKey identifies a port of a vertex kind.
type portKey struct {
	kind  string
	dir   Direction
	index int
}

// TypeRegistry maps (kind, direction, index) to the port's value type.
//
// Generic wiring (Connect) is checked by the compiler; the registry backs
// runtime wiring (ConnectDynamic), where ports are named by index only.
// Both reject mismatched value types before any arc exists.
//
// Thread-safety: safe for concurrent use.
type TypeRegistry struct {
	mu      sync.RWMutex
	ports   map[portKey]reflect.Type
	layouts map[string][]PortSpec
}

// NewTypeRegistry creates an empty registry.
func NewTypeRegistry() *TypeRegistry {
	return &TypeRegistry{
		ports:   make(map[portKey]reflect.Type),
		layouts: make(map[string][]PortSpec),
	}
}

// layoutOf lists every port of def, inputs first, each group by index.
func layoutOf(def Definition) []PortSpec {
	specs := make([]PortSpec, 0, len(def.Inputs)+len(def.Outputs))
	for _, in := range def.Inputs {
		specs = append(specs, in.spec)
	}
	for _, out := range def.Outputs {
		specs = append(specs, out.spec)
	}
	slices.SortFunc(specs, func(a, b PortSpec) int {
		if a.Direction != b.Direction {
			return int(a.Direction) - int(b.Direction)
		}
		return a.Index - b.Index
	})
	return specs
}

// Register records def's port layout under def.Kind. Registering a kind
// again with an identical layout is a no-op; a different layout is a
// KIND_CONFLICT error.
func (r *TypeRegistry) Register(def Definition) error {
	layout := layoutOf(def)

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.layouts[def.Kind]; ok {
		if !slices.Equal(existing, layout) {
			return &GraphError{
				Code:    ErrCodeKindConflict,
				Message: fmt.Sprintf("kind %q already registered with a different port layout", def.Kind),
			}
		}
		return nil
	}

	r.layouts[def.Kind] = layout
	for _, p := range layout {
		r.ports[portKey{kind: def.Kind, dir: p.Direction, index: p.Index}] = p.Type
	}
	return nil
}

// Lookup returns the value type of a kind's port.
func (r *TypeRegistry) Lookup(kind string, dir Direction, index int) (reflect.Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.ports[portKey{kind: kind, dir: dir, index: index}]
	return t, ok
}

// Layout returns the registered ports of kind.
func (r *TypeRegistry) Layout(kind string) ([]PortSpec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	l, ok := r.layouts[kind]
	return slices.Clone(l), ok
}

// Kinds returns every registered kind, sorted.
func (r *TypeRegistry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]string, 0, len(r.layouts))
	for k := range r.layouts {
		kinds = append(kinds, k)
	}
	slices.Sort(kinds)
	return kinds
}

// Check verifies that output from (of kind fromKind) may be wired to input
// to (of kind toKind).
func (r *TypeRegistry) Check(fromKind string, from Endpoint, toKind string, to Endpoint) error {
	if from.Direction != DirOut || to.Direction != DirIn {
		return &GraphError{
			Code:    ErrCodeUnknownPort,
			Message: fmt.Sprintf("wiring must go from an output to an input, got %s -> %s", from, to),
			Vertex:  from.Vertex,
		}
	}
	ft, ok := r.Lookup(fromKind, DirOut, from.Index)
	if !ok {
		return &GraphError{
			Code:    ErrCodeUnknownPort,
			Message: fmt.Sprintf("kind %q has no output %d", fromKind, from.Index),
			Vertex:  from.Vertex,
		}
	}
	tt, ok := r.Lookup(toKind, DirIn, to.Index)
	if !ok {
		return &GraphError{
			Code:    ErrCodeUnknownPort,
			Message: fmt.Sprintf("kind %q has no input %d", toKind, to.Index),
			Vertex:  to.Vertex,
		}
	}
	if ft != tt {
		return &TypeMismatchError{From: from, To: to, FromType: ft, ToType: tt}
	}
	return nil
}
