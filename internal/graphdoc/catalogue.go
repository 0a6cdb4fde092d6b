package graphdoc

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/roach88/pullgraph/internal/graph"
	"github.com/roach88/pullgraph/internal/substrate"
	"github.com/roach88/pullgraph/internal/value"
)

// typeSpec binds a document type name to its Go type by closing over the
// generic graph constructors.
type typeSpec struct {
	name string
	zero any

	// decode converts a document value into the Go type.
	decode func(raw any) (any, error)

	constant func(x any) graph.Definition
	variable func(x any) graph.Definition
	log      func(label string) graph.Definition
	cache    func() graph.Definition
	choose   func() (graph.Definition, error)
	format   func() graph.Definition
	assign   func(target substrate.ID) graph.Definition
	set      func(w *substrate.World, v substrate.ID, x any) error
}

func newTypeSpec[T any](name string, decode func(value.Value) (T, error), cache func() graph.Definition, format func(T) string) *typeSpec {
	var zero T
	return &typeSpec{
		name: name,
		zero: zero,
		decode: func(raw any) (any, error) {
			v, err := value.FromAny(raw)
			if err != nil {
				return nil, err
			}
			return decode(v)
		},
		constant: func(x any) graph.Definition { return graph.Const(x.(T)) },
		variable: func(x any) graph.Definition { return graph.Var(x.(T)) },
		log:      graph.Log[T],
		cache:    cache,
		choose: func() (graph.Definition, error) {
			return graph.Func("select["+name+"]", func(cond bool, then, otherwise T) T {
				if cond {
					return then
				}
				return otherwise
			})
		},
		format: func() graph.Definition { return graph.Map("format["+name+"]", format) },
		assign: graph.Assign[T],
		set: func(w *substrate.World, v substrate.ID, x any) error {
			return graph.SetVar(w, v, x.(T))
		},
	}
}

func expect[T value.Value](v value.Value) (T, error) {
	x, ok := v.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("expected %s, got %s", value.Kind(zero), value.Kind(v))
	}
	return x, nil
}

var types = map[string]*typeSpec{
	"int": newTypeSpec("int",
		func(v value.Value) (int64, error) { x, err := expect[value.Int](v); return int64(x), err },
		graph.NewCache[int64],
		func(x int64) string { return strconv.FormatInt(x, 10) }),
	"string": newTypeSpec("string",
		func(v value.Value) (string, error) { x, err := expect[value.String](v); return string(x), err },
		graph.NewCache[string],
		func(x string) string { return x }),
	"bool": newTypeSpec("bool",
		func(v value.Value) (bool, error) { x, err := expect[value.Bool](v); return bool(x), err },
		graph.NewCache[bool],
		strconv.FormatBool),
	"value": newTypeSpec("value",
		func(v value.Value) (value.Value, error) { return v, nil },
		func() graph.Definition { return graph.NewCacheFunc(value.Equal) },
		formatValue),
}

func formatValue(v value.Value) string {
	data, err := value.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprintf("<%v>", err)
	}
	return string(data)
}

func typeNames() string {
	names := make([]string, 0, len(types))
	for name := range types {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

// kindSpec describes a document kind: its port names, in index order, and
// how to define a vertex of it.
type kindSpec struct {
	inputs  []string
	outputs []string
	typed   bool
	define  func(v VertexDoc, t *typeSpec) (graph.Definition, error)
}

func (k kindSpec) port(names []string, name string) (int, bool) {
	if name == "" {
		return 0, len(names) > 0
	}
	for i, n := range names {
		if n == name {
			return i, true
		}
	}
	return 0, false
}

func fixed(def graph.Definition) func(VertexDoc, *typeSpec) (graph.Definition, error) {
	return func(VertexDoc, *typeSpec) (graph.Definition, error) { return def, nil }
}

var (
	binary = []string{"a", "b"}
	unary  = []string{"in"}
	single = []string{"out"}
)

var kinds = map[string]kindSpec{
	"const": {outputs: single, typed: true, define: func(v VertexDoc, t *typeSpec) (graph.Definition, error) {
		if v.Value == nil && t.name != "value" {
			return graph.Definition{}, fmt.Errorf("const needs a value")
		}
		x, err := t.decode(v.Value)
		if err != nil {
			return graph.Definition{}, err
		}
		return t.constant(x), nil
	}},
	"var": {outputs: single, typed: true, define: func(v VertexDoc, t *typeSpec) (graph.Definition, error) {
		x := t.zero
		if v.Value != nil || t.name == "value" {
			var err error
			if x, err = t.decode(v.Value); err != nil {
				return graph.Definition{}, err
			}
		}
		return t.variable(x), nil
	}},
	"log": {inputs: unary, outputs: single, typed: true, define: func(v VertexDoc, t *typeSpec) (graph.Definition, error) {
		return t.log(v.Label), nil
	}},
	"cache": {inputs: unary, outputs: []string{"value", "changed"}, typed: true, define: func(_ VertexDoc, t *typeSpec) (graph.Definition, error) {
		return t.cache(), nil
	}},
	"add":    {inputs: binary, outputs: single, define: fixed(graph.Zip("add", func(a, b int64) int64 { return a + b }))},
	"sub":    {inputs: binary, outputs: single, define: fixed(graph.Zip("sub", func(a, b int64) int64 { return a - b }))},
	"mul":    {inputs: binary, outputs: single, define: fixed(graph.Zip("mul", func(a, b int64) int64 { return a * b }))},
	"concat": {inputs: binary, outputs: single, define: fixed(graph.Zip("concat", func(a, b string) string { return a + b }))},
	"gt":     {inputs: binary, outputs: single, define: fixed(graph.Zip("gt", func(a, b int64) bool { return a > b }))},
	"lt":     {inputs: binary, outputs: single, define: fixed(graph.Zip("lt", func(a, b int64) bool { return a < b }))},
	"eq":     {inputs: binary, outputs: single, define: fixed(graph.Zip("eq", func(a, b int64) bool { return a == b }))},
	"not":    {inputs: unary, outputs: single, define: fixed(graph.Map("not", func(b bool) bool { return !b }))},
	"select": {inputs: []string{"cond", "then", "else"}, outputs: single, typed: true, define: func(_ VertexDoc, t *typeSpec) (graph.Definition, error) {
		return t.choose()
	}},
	"format": {inputs: unary, outputs: single, typed: true, define: func(_ VertexDoc, t *typeSpec) (graph.Definition, error) {
		return t.format(), nil
	}},
	// assign is defined in Build once its target has an ID.
	"assign": {inputs: unary, outputs: []string{"batch"}, typed: true},
}

// Kinds returns the document kinds with their port names, sorted by kind.
func Kinds() []KindInfo {
	out := make([]KindInfo, 0, len(kinds))
	for name, k := range kinds {
		out = append(out, KindInfo{Name: name, Inputs: k.inputs, Outputs: k.outputs, Typed: k.typed})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// KindInfo describes a document kind.
type KindInfo struct {
	Name    string   `json:"name"`
	Inputs  []string `json:"inputs,omitempty"`
	Outputs []string `json:"outputs"`
	Typed   bool     `json:"typed"`
}
