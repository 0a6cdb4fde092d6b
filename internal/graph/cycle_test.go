package graph

import (
	"testing"

	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pullgraph/internal/substrate"
)

func TestAnalyzeCycles_Empty(t *testing.T) {
	assert.Empty(t, AnalyzeCycles(substrate.NewWorld()))
}

func TestAnalyzeCycles_DAG(t *testing.T) {
	w, b := setupTestBuilder(t)
	src := SpawnConst(b, 1)
	left := SpawnLog[int](b, "")
	right := SpawnLog[int](b, "")
	Connect(b, src, left.In)
	Connect(b, src, right.In)
	applyBuilder(t, b)

	assert.Empty(t, AnalyzeCycles(w), "fan-out is not a cycle")
}

func TestAnalyzeCycles_TwoVertexLoop(t *testing.T) {
	w, b := setupTestBuilder(t)
	a := SpawnMap(b, "inc", func(x int) int { return x + 1 })
	c := SpawnMap(b, "inc", func(x int) int { return x + 1 })
	Connect(b, a.Out, c.In)
	Connect(b, c.Out, a.In)
	applyBuilder(t, b)

	warnings := AnalyzeCycles(w)
	require.Len(t, warnings, 1)
	assert.Equal(t, []substrate.ID{a.Vertex, c.Vertex, a.Vertex}, warnings[0].Path)
	assert.Contains(t, warnings[0].Message, a.Vertex.String()+" -> "+c.Vertex.String())
}

func TestAnalyzeCycles_SelfLoop(t *testing.T) {
	w, b := setupTestBuilder(t)
	m := SpawnMap(b, "inc", func(x int) int { return x + 1 })
	Connect(b, m.Out, m.In)
	applyBuilder(t, b)

	warnings := AnalyzeCycles(w)
	require.Len(t, warnings, 1)
	assert.Equal(t, []substrate.ID{m.Vertex, m.Vertex}, warnings[0].Path)
}

func TestAnalyzeCycles_CacheFeedbackIsReported(t *testing.T) {
	w, b := setupTestBuilder(t)
	cache := SpawnCache[bool](b)
	not := SpawnMap(b, "not", func(x bool) bool { return !x })
	Connect(b, cache.Changed, not.In)
	Connect(b, not.Out, cache.In)
	applyBuilder(t, b)

	// Statically a loop...
	require.Len(t, AnalyzeCycles(w), 1)

	// ...but evaluating Changed never pulls, so it terminates.
	_, err := Evaluate(testContext(w, WithCycle(1)), cache.Changed)
	assert.NoError(t, err)

	// Value pulls through not into Changed, which stops there.
	v, err := Evaluate(testContext(w, WithCycle(1)), cache.Value)
	require.NoError(t, err)
	assert.True(t, v)
}

func TestValidate(t *testing.T) {
	w, b := setupTestBuilder(t)
	src := SpawnConst(b, 1)
	wired := SpawnLog[int](b, "")
	unwired := SpawnLog[int](b, "")
	a := SpawnMap(b, "inc", func(x int) int { return x + 1 })
	Connect(b, src, wired.In)
	Connect(b, a.Out, a.In)
	applyBuilder(t, b)

	err := Validate(w)
	require.Error(t, err)

	var merr *multierror.Error
	require.ErrorAs(t, err, &merr)
	require.Len(t, merr.Errors, 2)
	assert.Equal(t, ErrCodeUnwiredInput, CodeOf(merr.Errors[0]))
	assert.Equal(t, ErrCodeCycleDetected, CodeOf(merr.Errors[1]))

	var ge *GraphError
	require.ErrorAs(t, merr.Errors[0], &ge)
	assert.Equal(t, unwired.In.Vertex, ge.Vertex)
}

func TestValidate_Clean(t *testing.T) {
	w, b := setupTestBuilder(t)
	From(b, SpawnConst(b, 1)).Into(SpawnLog[int](b, "").In)
	applyBuilder(t, b)

	assert.NoError(t, Validate(w))
}
