package store

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/roach88/pullgraph/internal/graph"
	"github.com/roach88/pullgraph/internal/substrate"
	"github.com/roach88/pullgraph/internal/value"
)

// createTestStore creates a new store in a temporary directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestPureReport creates a pure pass with one good and one failed root.
func createTestPureReport(id string, cycle int64) *graph.PassReport {
	return &graph.PassReport{
		ID:    id,
		Graph: "demo",
		Cycle: cycle,
		Kind:  graph.PassPure,
		Results: []graph.RootResult{
			{Root: "total", Endpoint: graph.OutputOf(substrate.ID(3), 0), Value: int64(cycle * 10)},
			{Root: "label", Endpoint: graph.OutputOf(substrate.ID(4), 0), Value: value.Map{"n": value.Int(cycle)}},
			{
				Root:     "broken",
				Endpoint: graph.OutputOf(substrate.ID(5), 1),
				Err:      &graph.GraphError{Code: graph.ErrCodeUnwiredInput, Message: "input is not wired"},
			},
		},
	}
}

// createTestMutatingReport creates a mutating pass with one root.
func createTestMutatingReport(id string, cycle int64, applied bool) *graph.PassReport {
	r := &graph.PassReport{
		ID:      id,
		Graph:   "demo",
		Cycle:   cycle,
		Kind:    graph.PassMutating,
		Applied: applied,
		Results: []graph.RootResult{
			{Root: "store", Endpoint: graph.OutputOf(substrate.ID(6), 0), Commands: 2},
		},
	}
	if !applied {
		r.ApplyErr = errors.New("target vanished")
	}
	return r
}
