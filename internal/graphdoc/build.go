package graphdoc

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/hashicorp/go-multierror"

	"github.com/roach88/pullgraph/internal/graph"
	"github.com/roach88/pullgraph/internal/substrate"
)

// Graph is a document built into a world.
type Graph struct {
	Doc      *Document
	World    *substrate.World
	Vertices map[string]substrate.ID

	// Warnings are static cycles. They are not errors: a loop through a
	// cache's changed output terminates at runtime.
	Warnings []graph.CycleWarning
}

// BuildOption configures Build.
type BuildOption func(*buildConfig)

type buildConfig struct {
	logger *slog.Logger
	types  *graph.TypeRegistry
}

// WithLogger sets the logger handed to the graph builder.
func WithLogger(l *slog.Logger) BuildOption {
	return func(c *buildConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithTypeRegistry shares a type registry with other builders.
func WithTypeRegistry(r *graph.TypeRegistry) BuildOption {
	return func(c *buildConfig) {
		if r != nil {
			c.types = r
		}
	}
}

// Build spawns every vertex of doc into w, wires every arc and applies the
// result. All definition and wiring errors are collected and returned
// together; nothing is applied if any occurred, and w should be
// discarded. After applying, unwired inputs are reported as errors and
// static cycles as warnings.
func Build(doc *Document, w *substrate.World, opts ...BuildOption) (*Graph, error) {
	cfg := buildConfig{logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := doc.Check(); err != nil {
		return nil, err
	}

	b := graph.NewBuilder(w, graph.WithBuilderLogger(cfg.logger), graph.WithTypeRegistry(cfg.types))
	g := &Graph{Doc: doc, World: w, Vertices: make(map[string]substrate.ID, len(doc.Vertices))}
	var result *multierror.Error

	// Assign vertices need their target's ID, so they are spawned last.
	ordered := make([]int, 0, len(doc.Vertices))
	for i, v := range doc.Vertices {
		if v.Kind != "assign" {
			ordered = append(ordered, i)
		}
	}
	for i, v := range doc.Vertices {
		if v.Kind == "assign" {
			ordered = append(ordered, i)
		}
	}

	for _, i := range ordered {
		v := doc.Vertices[i]
		def, err := g.define(v)
		if err == nil {
			def.Label = v.Label
			var id substrate.ID
			if id, err = b.Spawn(def); err == nil {
				g.Vertices[v.ID] = id
				continue
			}
		}
		result = multierror.Append(result, fmt.Errorf("vertices[%d] (%s): %w", i, v.ID, err))
	}

	for i, a := range doc.Arcs {
		from, err := g.Endpoint(a.From, graph.DirOut)
		if err == nil {
			var to graph.Endpoint
			if to, err = g.Endpoint(a.To, graph.DirIn); err == nil {
				err = b.ConnectDynamic(from, to)
			}
		}
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("arcs[%d] %s -> %s: %w", i, a.From, a.To, err))
		}
	}

	if err := result.ErrorOrNil(); err != nil {
		return nil, err
	}
	if err := b.Apply(); err != nil {
		return nil, err
	}

	if err := graph.Validate(w); err != nil {
		var merr *multierror.Error
		if errors.As(err, &merr) {
			for _, e := range merr.Errors {
				if graph.CodeOf(e) != graph.ErrCodeCycleDetected {
					result = multierror.Append(result, g.describe(e))
				}
			}
		}
	}
	g.Warnings = graph.AnalyzeCycles(w)
	for _, cw := range g.Warnings {
		cfg.logger.Warn("static cycle", "graph", doc.Name, "path", cw.Message)
	}
	if err := result.ErrorOrNil(); err != nil {
		return nil, err
	}

	cfg.logger.Debug("graph built",
		"graph", doc.Name,
		"vertices", len(g.Vertices),
		"arcs", len(doc.Arcs),
	)
	return g, nil
}

func (g *Graph) define(v VertexDoc) (graph.Definition, error) {
	kind := kinds[v.Kind]
	t := types[v.Type]
	if v.Kind == "assign" {
		target, ok := g.Vertices[v.Target]
		if !ok {
			return graph.Definition{}, fmt.Errorf("target %q was not built", v.Target)
		}
		return t.assign(target), nil
	}
	return kind.define(v, t)
}

// describe names the document vertex behind a graph error.
func (g *Graph) describe(err error) error {
	var ge *graph.GraphError
	if !errors.As(err, &ge) {
		return err
	}
	if name, ok := g.Name(ge.Vertex); ok {
		return fmt.Errorf("vertex %s: %w", name, err)
	}
	return err
}

// Name returns the document ID of a built vertex.
func (g *Graph) Name(id substrate.ID) (string, bool) {
	for name, v := range g.Vertices {
		if v == id {
			return name, true
		}
	}
	return "", false
}

// Endpoint resolves a "vertex.port" reference. A reference without a port
// names the first port in direction dir.
func (g *Graph) Endpoint(ref string, dir graph.Direction) (graph.Endpoint, error) {
	name, port := splitRef(ref)
	id, ok := g.Vertices[name]
	if !ok {
		return graph.Endpoint{}, fmt.Errorf("unknown vertex %q", name)
	}
	v, _ := g.Doc.Vertex(name)
	kind := kinds[v.Kind]

	names := kind.outputs
	if dir == graph.DirIn {
		names = kind.inputs
	}
	index, ok := kind.port(names, port)
	if !ok {
		return graph.Endpoint{}, &graph.GraphError{
			Code:    graph.ErrCodeUnknownPort,
			Message: fmt.Sprintf("%s has no %s port %q (have %v)", v.Kind, dir, port, names),
			Vertex:  id,
		}
	}
	if dir == graph.DirIn {
		return graph.InputOf(id, index), nil
	}
	return graph.OutputOf(id, index), nil
}

// Register adds every document root to d. All registration errors are
// returned together.
func (g *Graph) Register(d *graph.Driver) error {
	var result *multierror.Error
	for i, r := range g.Doc.Roots {
		mode := graph.PassPure
		if r.Mode == "mutating" {
			mode = graph.PassMutating
		}
		e, err := g.Endpoint(r.From, graph.DirOut)
		if err == nil {
			err = d.AddRoot(r.Name, e, mode)
		}
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("roots[%d] %s: %w", i, r.Name, err))
		}
	}
	return result.ErrorOrNil()
}

// Set assigns raw to the var vertex named name.
func (g *Graph) Set(name string, raw any) error {
	v, ok := g.Doc.Vertex(name)
	if !ok || v.Kind != "var" {
		return fmt.Errorf("%q is not a var", name)
	}
	t := types[v.Type]
	x, err := t.decode(raw)
	if err != nil {
		return fmt.Errorf("set %s: %w", name, err)
	}
	return t.set(g.World, g.Vertices[name], x)
}

// SetAll assigns every entry of values in name order.
func (g *Graph) SetAll(values map[string]any) error {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	var result *multierror.Error
	for _, name := range names {
		if err := g.Set(name, values[name]); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}
