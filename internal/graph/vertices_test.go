package graph

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pullgraph/internal/substrate"
)

func TestFunc_NAry(t *testing.T) {
	w, b := setupTestBuilder(t)

	def, err := Func("sum3", func(a, b, c int) int { return a + b + c })
	require.NoError(t, err)
	require.Len(t, def.Inputs, 3)
	sum := b.MustSpawn(def)

	for i, v := range []int{1, 2, 3} {
		src := SpawnConst(b, v)
		require.NoError(t, b.ConnectDynamic(src.Endpoint(), InputOf(sum, i)))
	}
	applyBuilder(t, b)

	got, err := Evaluate(testContext(w), OutPort[int](0).Of(sum))
	require.NoError(t, err)
	assert.Equal(t, 6, got)
}

func TestFunc_ZeroArity(t *testing.T) {
	w, b := setupTestBuilder(t)

	def, err := Func("greeting", func() string { return "hello" })
	require.NoError(t, err)
	v := b.MustSpawn(def)
	applyBuilder(t, b)

	got, err := EvaluateEndpoint(testContext(w), OutputOf(v, 0))
	require.NoError(t, err)
	assert.Equal(t, "hello", got)
}

func TestFunc_MixedTypes(t *testing.T) {
	w, b := setupTestBuilder(t)

	def, err := Func("repeat", strings.Repeat)
	require.NoError(t, err)
	v := b.MustSpawn(def)
	Connect(b, SpawnConst(b, "ab"), InPort[string](0).Of(v))
	Connect(b, SpawnConst(b, 3), InPort[int](1).Of(v))
	applyBuilder(t, b)

	got, err := Evaluate(testContext(w), OutPort[string](0).Of(v))
	require.NoError(t, err)
	assert.Equal(t, "ababab", got)
}

func TestFunc_RejectsNonFunctions(t *testing.T) {
	var nilFunc func() int
	tests := []struct {
		name string
		fn   any
	}{
		{name: "nil", fn: nil},
		{name: "nil func", fn: nilFunc},
		{name: "not a func", fn: 42},
		{name: "no result", fn: func(int) {}},
		{name: "two results", fn: func(int) (int, error) { return 0, nil }},
		{name: "variadic", fn: func(xs ...int) int { return len(xs) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Func("bad", tt.fn)
			require.Error(t, err)
			assert.Equal(t, ErrCodeInvalidDefinition, CodeOf(err))
		})
	}
}

func TestZip(t *testing.T) {
	w, b := setupTestBuilder(t)

	v := b.MustSpawn(Zip("label", func(name string, n int) string {
		return name + "#" + strings.Repeat("!", n)
	}))
	Connect(b, SpawnConst(b, "x"), InPort[string](0).Of(v))
	Connect(b, SpawnConst(b, 2), InPort[int](1).Of(v))
	applyBuilder(t, b)

	got, err := Evaluate(testContext(w), OutPort[string](0).Of(v))
	require.NoError(t, err)
	assert.Equal(t, "x#!!", got)
}

func TestVar_SetVar(t *testing.T) {
	w, b := setupTestBuilder(t)
	v := SpawnVar(b, 1)
	c := SpawnConst(b, 1)
	applyBuilder(t, b)

	require.NoError(t, SetVar(w, v.Vertex, 9))
	got, err := Evaluate(testContext(w), v.Out)
	require.NoError(t, err)
	assert.Equal(t, 9, got)

	err = SetVar(w, c.Vertex, 2)
	require.Error(t, err)
	assert.Equal(t, ErrCodeMissingState, CodeOf(err))

	err = SetVar(w, v.Vertex, "wrong type")
	assert.Error(t, err)
}

func TestAssign_BatchAppliesOnlyWhenApplied(t *testing.T) {
	w, b := setupTestBuilder(t)
	target := SpawnVar(b, 1)
	assign := SpawnAssign(b, target)
	Connect(b, SpawnConst(b, 9), assign.In)
	applyBuilder(t, b)

	batch, err := EvaluateMutating(testContext(w), assign.Batch)
	require.NoError(t, err)
	assert.Equal(t, 1, batch.Len())

	before, err := Evaluate(testContext(w), target.Out)
	require.NoError(t, err)
	assert.Equal(t, 1, before, "evaluation never mutates")

	batch.Apply(w)
	after, err := Evaluate(testContext(w), target.Out)
	require.NoError(t, err)
	assert.Equal(t, 9, after)
}

func TestAssign_MissingTargetPanicsOnApply(t *testing.T) {
	w, b := setupTestBuilder(t)
	notVar := SpawnConst(b, 0)
	v := b.MustSpawn(Assign[int](notVar.Vertex))
	Connect(b, SpawnConst(b, 3), PassIn[int]().Of(v))
	applyBuilder(t, b)

	batch, err := EvaluateMutating(testContext(w), OutPort[substrate.Batch](0).Of(v))
	require.NoError(t, err)

	assert.PanicsWithError(t,
		"MISSING_STATE: assign target is not a var of int (vertex="+notVar.Vertex.String()+")",
		func() { batch.Apply(w) })
}
