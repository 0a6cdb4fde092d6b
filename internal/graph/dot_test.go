package graph

import (
	"bytes"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"
)

func TestWriteDOT_Golden(t *testing.T) {
	w, b := setupTestBuilder(t)
	src := SpawnConst(b, 5)
	log := SpawnLog[int](b, "echo")
	cache := SpawnCache[int](b)
	From(b, src).Through(log).Into(cache.In)
	applyBuilder(t, b)

	var buf bytes.Buffer
	require.NoError(t, WriteDOT(&buf, w, "scenario"))

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "dot_scenario", buf.Bytes())
}
