package graphdoc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pullgraph/internal/value"
)

func TestLoad_YAML(t *testing.T) {
	doc, err := Load("testdata/counter.yaml")
	require.NoError(t, err)

	assert.Equal(t, "counter", doc.Name)
	require.Len(t, doc.Vertices, 6)
	assert.Equal(t, VertexDoc{ID: "store", Kind: "assign", Type: "int", Target: "count"}, doc.Vertices[3])
	assert.Equal(t, ArcDoc{From: "one", To: "next.b"}, doc.Arcs[1])
	assert.Equal(t, RootDoc{Name: "increment", From: "store.batch", Mode: "mutating"}, doc.Roots[2])
	require.Len(t, doc.Cycles, 3)
	assert.Equal(t, 10, doc.Cycles[2].Set["count"])
}

func TestLoad_CUEMatchesYAML(t *testing.T) {
	fromYAML, err := Load("testdata/counter.yaml")
	require.NoError(t, err)
	fromCUE, err := Load("testdata/counter.cue")
	require.NoError(t, err)

	assert.Equal(t, fromYAML.Name, fromCUE.Name)
	assert.Equal(t, fromYAML.Arcs, fromCUE.Arcs)
	assert.Equal(t, fromYAML.Roots, fromCUE.Roots)
	require.Len(t, fromCUE.Vertices, len(fromYAML.Vertices))
	for i := range fromYAML.Vertices {
		y, c := fromYAML.Vertices[i], fromCUE.Vertices[i]
		assert.Equal(t, y.ID, c.ID)
		assert.Equal(t, y.Kind, c.Kind)
		assert.Equal(t, y.Type, c.Type)
		assert.True(t, value.Equal(value.MustFromAny(y.Value), value.MustFromAny(c.Value)), y.ID)
	}
	require.Len(t, fromCUE.Cycles, 3)
	assert.True(t, value.Equal(
		value.MustFromAny(fromYAML.Cycles[2].Expect),
		value.MustFromAny(fromCUE.Cycles[2].Expect)))
}

func TestLoad_YAMLRejectsUnknownFields(t *testing.T) {
	_, err := Load("testdata/typo.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "arc")
}

func TestLoad_CUEEnforcesSchema(t *testing.T) {
	_, err := Load("testdata/bad_kind.cue")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad_kind.cue")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("testdata/nope.yaml")
	require.Error(t, err)
}

func TestParseCUE_RejectsUnknownFields(t *testing.T) {
	_, err := ParseCUE("inline.cue", []byte(`
name: "x"
vertices: [{id: "a", kind: "const", type: "int", value: 1, colour: "red"}]
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "colour")
}

func TestCheck(t *testing.T) {
	base := func() *Document {
		return &Document{
			Name: "g",
			Vertices: []VertexDoc{
				{ID: "v", Kind: "var", Type: "int"},
				{ID: "s", Kind: "assign", Type: "int", Target: "v"},
			},
			Roots: []RootDoc{{Name: "r", From: "v.out"}},
		}
	}
	require.NoError(t, base().Check())

	tests := []struct {
		name   string
		mutate func(d *Document)
		want   string
	}{
		{name: "no name", mutate: func(d *Document) { d.Name = " " }, want: "name: is required"},
		{name: "duplicate id", mutate: func(d *Document) { d.Vertices[1].ID = "v" }, want: `duplicate vertex "v"`},
		{name: "dotted id", mutate: func(d *Document) { d.Vertices[0].ID = "a.b" }, want: "must not contain"},
		{name: "unknown kind", mutate: func(d *Document) { d.Vertices[0].Kind = "warp" }, want: `unknown kind "warp"`},
		{name: "missing type", mutate: func(d *Document) { d.Vertices[0].Type = "" }, want: "vertices[0].type"},
		{name: "type on fixed kind", mutate: func(d *Document) {
			d.Vertices = append(d.Vertices, VertexDoc{ID: "n", Kind: "not", Type: "bool"})
		}, want: "has a fixed type"},
		{name: "assign to non-var", mutate: func(d *Document) {
			d.Vertices[1].Target = "r"
		}, want: `"r" is not a var`},
		{name: "assign type mismatch", mutate: func(d *Document) { d.Vertices[1].Type = "string" }, want: "var \"v\" is int"},
		{name: "unknown arc vertex", mutate: func(d *Document) {
			d.Arcs = []ArcDoc{{From: "ghost.out", To: "s.in"}}
		}, want: "arcs[0].from"},
		{name: "duplicate root", mutate: func(d *Document) {
			d.Roots = append(d.Roots, RootDoc{Name: "r", From: "v"})
		}, want: `duplicate root "r"`},
		{name: "bad mode", mutate: func(d *Document) { d.Roots[0].Mode = "eager" }, want: "must be pure or mutating"},
		{name: "set non-var", mutate: func(d *Document) {
			d.Cycles = []CycleDoc{{Set: map[string]any{"s": 1}}}
		}, want: `"s" is not a var`},
		{name: "expect unknown root", mutate: func(d *Document) {
			d.Cycles = []CycleDoc{{Expect: map[string]any{"nope": 1}}}
		}, want: `"nope" is not a root`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := base()
			tt.mutate(d)
			err := d.Check()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestDocError_Error(t *testing.T) {
	assert.Equal(t, "roots[0].name: is required", fieldErrorf("roots[0].name", "is required").Error())
	assert.Equal(t, "bare", (&DocError{Message: "bare"}).Error())
}
