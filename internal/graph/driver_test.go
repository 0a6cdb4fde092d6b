package graph

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pullgraph/internal/substrate"
	"github.com/roach88/pullgraph/internal/testutil"
)

func newTestDriver(w *substrate.World, opts ...DriverOption) *Driver {
	base := []DriverOption{
		WithLogger(discardLogger()),
		WithPassIDGenerator(&SequenceGenerator{Prefix: "pass"}),
	}
	return NewDriver(w, append(base, opts...)...)
}

type memoryRecorder struct {
	mu      sync.Mutex
	reports []*PassReport
	err     error
}

func (r *memoryRecorder) RecordPass(_ context.Context, report *PassReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, report)
	return r.err
}

func TestDriver_MutationBatchesApplyAfterAllPulls(t *testing.T) {
	w, b := setupTestBuilder(t)

	x := SpawnVar(b, 1)
	y := SpawnVar(b, 0)

	// R1 writes 100 into x; R2 copies x into y. If R1's mutation were
	// visible to R2's pull, y would end up 100.
	r1 := SpawnAssign(b, x)
	Connect(b, SpawnConst(b, 100), r1.In)
	r2 := SpawnAssign(b, y)
	Connect(b, x.Out, r2.In)
	applyBuilder(t, b)

	d := newTestDriver(w)
	require.NoError(t, AutoMutate(d, "r1", r1.Batch))
	require.NoError(t, AutoMutate(d, "r2", r2.Batch))

	report, err := d.Tick(context.Background())
	require.NoError(t, err)
	require.NotNil(t, report.Mutating)
	assert.True(t, report.Mutating.Applied)
	assert.Equal(t, int64(1), report.Cycle)

	xs, _ := substrate.Get[VarState[int]](w, x.Vertex)
	ys, _ := substrate.Get[VarState[int]](w, y.Vertex)
	assert.Equal(t, 100, xs.Value)
	assert.Equal(t, 1, ys.Value, "r2 pulled x before r1's batch was applied")

	res, ok := report.Mutating.Result("r2")
	require.True(t, ok)
	assert.Equal(t, 1, res.Commands)
	assert.Nil(t, res.Value)

	// Next cycle, r2 sees the applied mutation.
	_, err = d.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 100, ys.Value)
}

func TestDriver_FailedMutatingRootAppliesNothing(t *testing.T) {
	w, b := setupTestBuilder(t)

	x := SpawnVar(b, 1)
	ok := SpawnAssign(b, x)
	Connect(b, SpawnConst(b, 50), ok.In)
	broken := SpawnAssign(b, x) // input never wired
	applyBuilder(t, b)

	d := newTestDriver(w)
	require.NoError(t, AutoMutate(d, "ok", ok.Batch))
	require.NoError(t, AutoMutate(d, "broken", broken.Batch))

	report, err := d.Tick(context.Background())
	require.Error(t, err)
	assert.Equal(t, ErrCodeUnwiredInput, CodeOf(err))
	assert.False(t, report.Mutating.Applied)

	xs, _ := substrate.Get[VarState[int]](w, x.Vertex)
	assert.Equal(t, 1, xs.Value)
}

func TestDriver_PureRootsRunInParallel(t *testing.T) {
	w, b := setupTestBuilder(t)
	calls := testutil.NewCallCounter()

	d := newTestDriver(w, WithWorkers(4))
	var outs []Source[int]
	for i := 0; i < 8; i++ {
		m := SpawnMap(b, "times10", testutil.Wrap(calls, func(x int) int { return x * 10 }))
		Connect(b, SpawnConst(b, i), m.In)
		outs = append(outs, m.Out)
	}
	applyBuilder(t, b)
	for i, out := range outs {
		require.NoError(t, AutoEvaluate(d, rootName(i), out))
	}

	report, err := d.Tick(context.Background())
	require.NoError(t, err)

	require.Len(t, report.Pure.Results, 8)
	for i, res := range report.Pure.Results {
		assert.Equal(t, rootName(i), res.Root, "results keep registration order")
		assert.Equal(t, i*10, res.Value)
		assert.NoError(t, res.Err)
	}
	assert.Equal(t, 8, calls.Count())
	assert.Empty(t, report.Mutating.Results)
	assert.False(t, report.Mutating.Applied)
}

func rootName(i int) string {
	return string(rune('a' + i))
}

func TestDriver_CacheAcrossTicks(t *testing.T) {
	w, b := setupTestBuilder(t)
	in := SpawnVar(b, 5)
	cache := SpawnCache[int](b)
	Connect(b, in.Out, cache.In)
	applyBuilder(t, b)

	d := newTestDriver(w)
	require.NoError(t, AutoEvaluate(d, "value", cache.Value))
	require.NoError(t, AutoEvaluate(d, "changed", cache.Changed))

	tick := func() (any, any) {
		report, err := d.Tick(context.Background())
		require.NoError(t, err)
		v, _ := report.Pure.Result("value")
		c, _ := report.Pure.Result("changed")
		return v.Value, c.Value
	}

	v, c := tick()
	assert.Equal(t, 5, v)
	assert.Equal(t, true, c)

	v, c = tick()
	assert.Equal(t, 5, v)
	assert.Equal(t, false, c)

	require.NoError(t, SetVar(w, in.Vertex, 7))
	v, c = tick()
	assert.Equal(t, 7, v)
	assert.Equal(t, true, c)
	assert.Equal(t, int64(3), d.Cycle())
}

func TestDriver_FailingPureRootDoesNotStopOthers(t *testing.T) {
	w, b := setupTestBuilder(t)
	good := SpawnConst(b, 1)
	bad := SpawnLog[int](b, "")
	applyBuilder(t, b)

	d := newTestDriver(w, WithWorkers(2))
	require.NoError(t, AutoEvaluate(d, "bad", bad.Out))
	require.NoError(t, AutoEvaluate(d, "good", good))

	report, err := d.Tick(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `root "bad"`)

	res, _ := report.Pure.Result("good")
	assert.NoError(t, res.Err)
	assert.Equal(t, 1, res.Value)

	res, _ = report.Pure.Result("bad")
	assert.Equal(t, ErrCodeUnwiredInput, CodeOf(res.Err))
}

func TestDriver_CacheLoopAcrossWorkersIsReported(t *testing.T) {
	w, b := setupTestBuilder(t)

	// The first two arrivals wait for each other, so each root holds its
	// own cache before pulling the other one.
	var arrived sync.WaitGroup
	arrived.Add(2)
	var n atomic.Int32
	meet := func(x int) int {
		if n.Add(1) <= 2 {
			arrived.Done()
			arrived.Wait()
		}
		return x
	}

	c1 := SpawnCache[int](b)
	c2 := SpawnCache[int](b)
	for _, pair := range [][2]CacheHandle[int]{{c1, c2}, {c2, c1}} {
		m := SpawnMap(b, "meet", meet)
		Connect(b, SpawnConst(b, 1), m.In)
		z := b.MustSpawn(Zip("add", func(x, y int) int { return x + y }))
		Connect(b, m.Out, InPort[int](0).Of(z))
		Connect(b, pair[1].Value, InPort[int](1).Of(z))
		Connect(b, OutPort[int](0).Of(z), pair[0].In)
	}
	applyBuilder(t, b)

	d := newTestDriver(w, WithWorkers(2))
	require.NoError(t, AutoEvaluate(d, "a", c1.Value))
	require.NoError(t, AutoEvaluate(d, "b", c2.Value))

	done := make(chan *TickReport, 1)
	go func() {
		report, _ := d.Tick(context.Background())
		done <- report
	}()

	var report *TickReport
	select {
	case report = <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("tick deadlocked on the cache loop")
	}

	for _, root := range []string{"a", "b"} {
		res, ok := report.Pure.Result(root)
		require.True(t, ok)
		assert.Equal(t, ErrCodeCycleDetected, CodeOf(res.Err), "root %s", root)
	}
}

func TestDriver_AddRootValidation(t *testing.T) {
	w, b := setupTestBuilder(t)
	src := SpawnConst(b, 1)
	x := SpawnVar(b, 0)
	assign := SpawnAssign(b, x)
	Connect(b, src, assign.In)
	applyBuilder(t, b)
	d := newTestDriver(w)
	require.NoError(t, AutoEvaluate(d, "src", src))

	tests := []struct {
		name string
		root string
		e    Endpoint
		mode PassKind
		code ErrorCode
	}{
		{name: "empty name", root: "", e: src.Endpoint(), mode: PassPure, code: ErrCodeInvalidDefinition},
		{name: "duplicate", root: "src", e: src.Endpoint(), mode: PassPure, code: ErrCodeInvalidDefinition},
		{name: "bad mode", root: "m", e: src.Endpoint(), mode: "later", code: ErrCodeInvalidDefinition},
		{name: "input endpoint", root: "in", e: assign.In.Endpoint(), mode: PassPure, code: ErrCodeUnknownPort},
		{name: "missing output", root: "out9", e: OutputOf(src.Vertex, 9), mode: PassPure, code: ErrCodeUnknownPort},
		{name: "raw record", root: "raw", e: OutputOf(w.Spawn(), 0), mode: PassPure, code: ErrCodeMissingBinding},
		{name: "mutating non-batch", root: "mut", e: src.Endpoint(), mode: PassMutating, code: ErrCodeTypeMismatch},
		{name: "pure batch", root: "pure", e: assign.Batch.Endpoint(), mode: PassPure, code: ErrCodeTypeMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := d.AddRoot(tt.root, tt.e, tt.mode)
			require.Error(t, err)
			assert.Equal(t, tt.code, CodeOf(err))
		})
	}

	assert.Len(t, d.Roots(), 1)
}

func TestDriver_RecordsEveryPass(t *testing.T) {
	w, b := setupTestBuilder(t)
	src := SpawnConst(b, "v")
	applyBuilder(t, b)

	rec := &memoryRecorder{}
	d := newTestDriver(w,
		WithRecorder(rec),
		WithGraphName("demo"),
		WithPassIDGenerator(NewFixedGenerator("p1", "p2", "p3", "p4")),
	)
	require.NoError(t, AutoEvaluate(d, "src", src))

	for i := 0; i < 2; i++ {
		_, err := d.Tick(context.Background())
		require.NoError(t, err)
	}

	require.Len(t, rec.reports, 4)
	assert.Equal(t, "p1", rec.reports[0].ID)
	assert.Equal(t, PassPure, rec.reports[0].Kind)
	assert.Equal(t, "demo", rec.reports[0].Graph)
	assert.Equal(t, int64(1), rec.reports[0].Cycle)
	assert.Equal(t, PassMutating, rec.reports[1].Kind)
	assert.Equal(t, "p3", rec.reports[2].ID)
	assert.Equal(t, int64(2), rec.reports[2].Cycle)
}

func TestDriver_RecorderFailureIsReturned(t *testing.T) {
	w, b := setupTestBuilder(t)
	src := SpawnConst(b, 1)
	applyBuilder(t, b)

	rec := &memoryRecorder{err: errors.New("disk full")}
	d := newTestDriver(w, WithRecorder(rec))
	require.NoError(t, AutoEvaluate(d, "src", src))

	_, err := d.Tick(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestDriver_CanceledContext(t *testing.T) {
	w, b := setupTestBuilder(t)
	src := SpawnConst(b, 1)
	applyBuilder(t, b)

	d := newTestDriver(w)
	require.NoError(t, AutoEvaluate(d, "src", src))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := d.Tick(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, report.Mutating)
}

func TestDriver_Metrics(t *testing.T) {
	w, b := setupTestBuilder(t)
	src := SpawnConst(b, 1)
	bad := SpawnLog[int](b, "")
	applyBuilder(t, b)

	m, err := NewMetrics(nil)
	require.NoError(t, err)
	d := newTestDriver(w, WithMetrics(m))
	require.NoError(t, AutoEvaluate(d, "src", src))
	require.NoError(t, AutoEvaluate(d, "bad", bad.Out))

	_, err = d.Tick(context.Background())
	require.Error(t, err)

	assert.Equal(t, 1.0, counterValue(t, m.ComputeCalls("const[int]")))
	assert.Equal(t, 1.0, counterValue(t, m.Passes(PassPure, "error")))
	assert.Equal(t, 1.0, counterValue(t, m.Passes(PassMutating, "ok")))
}

func TestPassReport_Err(t *testing.T) {
	r := &PassReport{Results: []RootResult{{Root: "a"}, {Root: "b"}}}
	assert.NoError(t, r.Err())

	r.Results[1].Err = &GraphError{Code: ErrCodeUnwiredInput, Message: "x"}
	r.ApplyErr = &GraphError{Code: ErrCodeMissingState, Message: "y"}
	err := r.Err()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `root "b"`)
	assert.Contains(t, err.Error(), "apply:")
}
