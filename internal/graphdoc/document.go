package graphdoc

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"
)

// Document is a declarative graph.
type Document struct {
	Name     string      `yaml:"name" json:"name"`
	Vertices []VertexDoc `yaml:"vertices" json:"vertices"`
	Arcs     []ArcDoc    `yaml:"arcs,omitempty" json:"arcs,omitempty"`
	Roots    []RootDoc   `yaml:"roots,omitempty" json:"roots,omitempty"`
	Cycles   []CycleDoc  `yaml:"cycles,omitempty" json:"cycles,omitempty"`
}

// VertexDoc declares one vertex.
type VertexDoc struct {
	ID    string `yaml:"id" json:"id"`
	Kind  string `yaml:"kind" json:"kind"`
	Type  string `yaml:"type,omitempty" json:"type,omitempty"`
	Label string `yaml:"label,omitempty" json:"label,omitempty"`

	// Value is the constant of a const vertex or the initial value of a
	// var vertex.
	Value any `yaml:"value,omitempty" json:"value,omitempty"`

	// Target is the var an assign vertex writes into.
	Target string `yaml:"target,omitempty" json:"target,omitempty"`
}

// ArcDoc wires an output reference to an input reference.
type ArcDoc struct {
	From string `yaml:"from" json:"from"`
	To   string `yaml:"to" json:"to"`
}

// RootDoc names an output the driver evaluates every cycle.
type RootDoc struct {
	Name string `yaml:"name" json:"name"`
	From string `yaml:"from" json:"from"`
	Mode string `yaml:"mode,omitempty" json:"mode,omitempty"`
}

// CycleDoc is one driver cycle: var assignments made before the tick and
// the root values expected after it.
type CycleDoc struct {
	Set    map[string]any `yaml:"set,omitempty" json:"set,omitempty"`
	Expect map[string]any `yaml:"expect,omitempty" json:"expect,omitempty"`
}

// Vertex returns the vertex declared with id.
func (d *Document) Vertex(id string) (VertexDoc, bool) {
	for _, v := range d.Vertices {
		if v.ID == id {
			return v, true
		}
	}
	return VertexDoc{}, false
}

// Root returns the root declared with name.
func (d *Document) Root(name string) (RootDoc, bool) {
	for _, r := range d.Roots {
		if r.Name == name {
			return r, true
		}
	}
	return RootDoc{}, false
}

// DocError reports a problem with one field of a document.
type DocError struct {
	Field   string
	Message string
	Pos     token.Pos // set for CUE documents when known
}

func (e *DocError) Error() string {
	var b strings.Builder
	if e.Pos.IsValid() {
		fmt.Fprintf(&b, "%s:%d:%d: ", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column())
	}
	if e.Field != "" {
		b.WriteString(e.Field)
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	return b.String()
}

func fieldErrorf(field, format string, args ...any) *DocError {
	return &DocError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// Load reads a document from path. ".cue" files are parsed as CUE,
// everything else as YAML.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read graph document: %w", err)
	}
	if filepath.Ext(path) == ".cue" {
		return ParseCUE(path, data)
	}
	return ParseYAML(data)
}

// ParseYAML decodes a YAML document. Unknown fields are rejected.
func ParseYAML(data []byte) (*Document, error) {
	var doc Document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}
	if err := doc.Check(); err != nil {
		return nil, err
	}
	return &doc, nil
}

//go:embed schema.cue
var schemaSource []byte

// ParseCUE compiles a CUE document, unifies it with the graph schema and
// decodes it. filename is used in error positions only.
func ParseCUE(filename string, data []byte) (*Document, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileBytes(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile graph schema: %w", err)
	}

	v := ctx.CompileBytes(data, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, cueError(err)
	}

	v = schema.LookupPath(cue.ParsePath("#Graph")).Unify(v)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, cueError(err)
	}

	var doc Document
	if err := v.Decode(&doc); err != nil {
		return nil, cueError(err)
	}
	if err := doc.Check(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// cueError converts CUE's error list into DocErrors carrying positions.
func cueError(err error) error {
	var result *multierror.Error
	for _, e := range cueerrors.Errors(err) {
		de := &DocError{Message: e.Error()}
		if path := e.Path(); len(path) > 0 {
			de.Field = strings.Join(path, ".")
		}
		if pos := e.Position(); pos.IsValid() {
			de.Pos = pos
		}
		result = multierror.Append(result, de)
	}
	if result == nil {
		return fmt.Errorf("parse CUE: %w", err)
	}
	return result.ErrorOrNil()
}

// Check validates the document's structure: required fields, known kinds
// and types, unique names and references that resolve. It does not build
// anything, so type agreement between ports is left to Build.
func (d *Document) Check() error {
	var result *multierror.Error
	add := func(err *DocError) { result = multierror.Append(result, err) }

	if strings.TrimSpace(d.Name) == "" {
		add(fieldErrorf("name", "is required"))
	}
	if len(d.Vertices) == 0 {
		add(fieldErrorf("vertices", "at least one vertex is required"))
	}

	seen := make(map[string]bool, len(d.Vertices))
	for i, v := range d.Vertices {
		field := fmt.Sprintf("vertices[%d]", i)
		if v.ID == "" {
			add(fieldErrorf(field+".id", "is required"))
		} else if strings.Contains(v.ID, ".") {
			add(fieldErrorf(field+".id", "%q must not contain '.'", v.ID))
		} else if seen[v.ID] {
			add(fieldErrorf(field+".id", "duplicate vertex %q", v.ID))
		}
		seen[v.ID] = true

		kind, ok := kinds[v.Kind]
		if !ok {
			add(fieldErrorf(field+".kind", "unknown kind %q", v.Kind))
			continue
		}
		if kind.typed {
			if _, ok := types[v.Type]; !ok {
				add(fieldErrorf(field+".type", "kind %s needs one of %s, got %q", v.Kind, typeNames(), v.Type))
			}
		} else if v.Type != "" {
			add(fieldErrorf(field+".type", "kind %s has a fixed type", v.Kind))
		}
		if v.Kind == "assign" {
			target, ok := d.Vertex(v.Target)
			switch {
			case v.Target == "":
				add(fieldErrorf(field+".target", "is required for assign"))
			case !ok || target.Kind != "var":
				add(fieldErrorf(field+".target", "%q is not a var", v.Target))
			case target.Type != v.Type:
				add(fieldErrorf(field+".target", "var %q is %s, assign is %s", v.Target, target.Type, v.Type))
			}
		} else if v.Target != "" {
			add(fieldErrorf(field+".target", "only assign vertices have a target"))
		}
	}

	for i, a := range d.Arcs {
		field := fmt.Sprintf("arcs[%d]", i)
		for _, ref := range []struct{ name, value string }{{"from", a.From}, {"to", a.To}} {
			if id, _ := splitRef(ref.value); !seen[id] {
				add(fieldErrorf(field+"."+ref.name, "unknown vertex in %q", ref.value))
			}
		}
	}

	roots := make(map[string]bool, len(d.Roots))
	for i, r := range d.Roots {
		field := fmt.Sprintf("roots[%d]", i)
		if r.Name == "" {
			add(fieldErrorf(field+".name", "is required"))
		} else if roots[r.Name] {
			add(fieldErrorf(field+".name", "duplicate root %q", r.Name))
		}
		roots[r.Name] = true
		if id, _ := splitRef(r.From); !seen[id] {
			add(fieldErrorf(field+".from", "unknown vertex in %q", r.From))
		}
		switch r.Mode {
		case "", "pure", "mutating":
		default:
			add(fieldErrorf(field+".mode", "must be pure or mutating, got %q", r.Mode))
		}
	}

	for i, c := range d.Cycles {
		field := fmt.Sprintf("cycles[%d]", i)
		for name := range c.Set {
			if v, ok := d.Vertex(name); !ok || v.Kind != "var" {
				add(fieldErrorf(field+".set", "%q is not a var", name))
			}
		}
		for name := range c.Expect {
			if !roots[name] {
				add(fieldErrorf(field+".expect", "%q is not a root", name))
			}
		}
	}

	return result.ErrorOrNil()
}

// splitRef splits "vertex.port". A reference without a port names the
// vertex's primary port.
func splitRef(ref string) (vertex, port string) {
	vertex, port, _ = strings.Cut(ref, ".")
	return vertex, port
}
