package graph

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func TestMetrics_NilIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.observeCompute("const[int]")
		m.observePass(PassPure, false, time.Millisecond)
		m.observeRootError(&GraphError{Code: ErrCodeUnwiredInput})
	})
}

func TestMetrics_RegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	require.NoError(t, err)

	m.observePass(PassMutating, true, 2*time.Millisecond)
	m.observeRootError(&GraphError{Code: ErrCodeUnwiredInput})

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "pullgraph_passes_total")
	assert.Contains(t, names, "pullgraph_pass_duration_seconds")
	assert.Contains(t, names, "pullgraph_root_errors_total")
	assert.Equal(t, 1.0, counterValue(t, m.Passes(PassMutating, "error")))

	// A second set of collectors cannot share the registry.
	_, err = NewMetrics(reg)
	assert.Error(t, err)
}
