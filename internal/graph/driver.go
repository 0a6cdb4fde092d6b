package graph

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/pullgraph/internal/substrate"
)

// PassKind distinguishes the two evaluation passes of a cycle.
type PassKind string

const (
	// PassPure evaluates roots that only read the world.
	PassPure PassKind = "pure"
	// PassMutating evaluates roots producing mutation batches, then applies
	// the batches.
	PassMutating PassKind = "mutating"
)

// Valid reports whether k names a pass.
func (k PassKind) Valid() bool {
	return k == PassPure || k == PassMutating
}

// Root is an output registered for automatic evaluation every cycle.
type Root struct {
	Name     string
	Endpoint Endpoint
	Mode     PassKind
}

// RootResult is the outcome of evaluating one root.
type RootResult struct {
	Root     string
	Endpoint Endpoint

	// Value is the evaluated value of a pure root. Mutating roots leave it
	// nil and report the size of their batch in Commands.
	Value    any
	Commands int

	Err error
}

// PassReport describes one evaluation pass.
type PassReport struct {
	ID      string
	Graph   string
	Cycle   int64
	Kind    PassKind
	Results []RootResult

	// Applied is set on mutating passes whose batches were all applied.
	Applied bool

	// ApplyErr holds a failure raised while applying batches.
	ApplyErr error
}

// Err combines every root failure and the apply failure, or returns nil.
func (r *PassReport) Err() error {
	var result *multierror.Error
	for _, res := range r.Results {
		if res.Err != nil {
			result = multierror.Append(result, fmt.Errorf("root %q: %w", res.Root, res.Err))
		}
	}
	if r.ApplyErr != nil {
		result = multierror.Append(result, fmt.Errorf("apply: %w", r.ApplyErr))
	}
	return result.ErrorOrNil()
}

// Result returns the result for the named root.
func (r *PassReport) Result(root string) (RootResult, bool) {
	for _, res := range r.Results {
		if res.Root == root {
			return res, true
		}
	}
	return RootResult{}, false
}

// TickReport pairs the two passes of one cycle.
type TickReport struct {
	Cycle    int64
	Pure     *PassReport
	Mutating *PassReport
}

// Recorder receives every pass report, e.g. to persist a trace.
type Recorder interface {
	RecordPass(ctx context.Context, report *PassReport) error
}

// Driver runs evaluation cycles over a world.
//
// Each cycle evaluates every pure root, possibly in parallel, then every
// mutating root in registration order, and finally applies the collected
// batches in that same order. The passes of one driver never overlap, so
// mutating evaluation never races pure evaluation of the same graph.
type Driver struct {
	world    *substrate.World
	clock    *Clock
	logger   *slog.Logger
	metrics  *Metrics
	recorder Recorder
	ids      PassIDGenerator
	workers  int
	maxDepth int
	graph    string

	passMu sync.Mutex // serializes passes

	mu    sync.Mutex
	roots []Root
	names map[string]struct{}
}

// DriverOption configures a Driver.
type DriverOption func(*Driver)

// WithLogger sets the driver's logger. Contexts created by the driver log
// through it too.
func WithLogger(l *slog.Logger) DriverOption {
	return func(d *Driver) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithMetrics records passes, root errors and compute calls into m.
func WithMetrics(m *Metrics) DriverOption {
	return func(d *Driver) {
		d.metrics = m
	}
}

// WithWorkers bounds how many pure roots evaluate concurrently.
// Values <= 0 keep the default of 1.
func WithWorkers(n int) DriverOption {
	return func(d *Driver) {
		if n > 0 {
			d.workers = n
		}
	}
}

// WithRecorder hands every pass report to r.
func WithRecorder(r Recorder) DriverOption {
	return func(d *Driver) {
		d.recorder = r
	}
}

// WithPassIDGenerator sets how pass IDs are produced.
func WithPassIDGenerator(g PassIDGenerator) DriverOption {
	return func(d *Driver) {
		if g != nil {
			d.ids = g
		}
	}
}

// WithDriverMaxDepth bounds the pull depth of every root evaluation.
func WithDriverMaxDepth(depth int) DriverOption {
	return func(d *Driver) {
		if depth > 0 {
			d.maxDepth = depth
		}
	}
}

// WithGraphName labels pass reports with name.
func WithGraphName(name string) DriverOption {
	return func(d *Driver) {
		d.graph = name
	}
}

// WithClock sets the cycle clock, e.g. to resume numbering.
func WithClock(c *Clock) DriverOption {
	return func(d *Driver) {
		if c != nil {
			d.clock = c
		}
	}
}

// NewDriver creates a driver over w.
func NewDriver(w *substrate.World, opts ...DriverOption) *Driver {
	d := &Driver{
		world:    w,
		clock:    NewClock(),
		logger:   slog.Default(),
		ids:      UUIDv7Generator{},
		workers:  1,
		maxDepth: DefaultMaxDepth,
		names:    make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Cycle returns the number of the last cycle started.
func (d *Driver) Cycle() int64 { return d.clock.Current() }

// Roots returns the registered roots in registration order.
func (d *Driver) Roots() []Root {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Root, len(d.roots))
	copy(out, d.roots)
	return out
}

// AddRoot registers output e for automatic evaluation.
//
// The vertex must already be built (Builder.Apply has run). A mutating
// root must produce a substrate.Batch.
func (d *Driver) AddRoot(name string, e Endpoint, mode PassKind) error {
	if name == "" {
		return &GraphError{Code: ErrCodeInvalidDefinition, Message: "root name is empty", Vertex: e.Vertex}
	}
	if !mode.Valid() {
		return &GraphError{Code: ErrCodeInvalidDefinition, Message: fmt.Sprintf("root %q: unknown mode %q", name, mode), Vertex: e.Vertex}
	}
	if e.Direction != DirOut {
		return &GraphError{Code: ErrCodeUnknownPort, Message: fmt.Sprintf("root %q: %s is not an output", name, e), Vertex: e.Vertex}
	}
	ports, ok := substrate.Get[Ports](d.world, e.Vertex)
	if !ok {
		return &GraphError{Code: ErrCodeMissingBinding, Message: fmt.Sprintf("root %q: vertex has no port bindings", name), Vertex: e.Vertex}
	}
	out, ok := ports.Output(e.Index)
	if !ok {
		return &GraphError{Code: ErrCodeUnknownPort, Message: fmt.Sprintf("root %q: no output %d", name, e.Index), Vertex: e.Vertex}
	}
	if batch := typeOf[substrate.Batch](); (mode == PassMutating) != (out.Spec.Type == batch) {
		return &TypeMismatchError{From: e, FromType: out.Spec.Type, ToType: rootType(mode)}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, dup := d.names[name]; dup {
		return &GraphError{Code: ErrCodeInvalidDefinition, Message: fmt.Sprintf("root %q registered twice", name), Vertex: e.Vertex}
	}
	d.names[name] = struct{}{}
	d.roots = append(d.roots, Root{Name: name, Endpoint: e, Mode: mode})
	return nil
}

// rootType is what a root of mode must produce: a batch for mutating
// roots, anything else for pure ones.
func rootType(mode PassKind) reflect.Type {
	if mode == PassMutating {
		return typeOf[substrate.Batch]()
	}
	return typeOf[any]()
}

// AutoEvaluate registers src as a pure root.
func AutoEvaluate[T any](d *Driver, name string, src Source[T]) error {
	return d.AddRoot(name, src.Endpoint(), PassPure)
}

// AutoMutate registers src as a mutating root.
func AutoMutate(d *Driver, name string, src Source[substrate.Batch]) error {
	return d.AddRoot(name, src.Endpoint(), PassMutating)
}

func (d *Driver) rootsOf(mode PassKind) []Root {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []Root
	for _, r := range d.roots {
		if r.Mode == mode {
			out = append(out, r)
		}
	}
	return out
}

func (d *Driver) newContext(cycle int64) *Context {
	return NewContext(d.world,
		WithCycle(cycle),
		WithContextLogger(d.logger),
		WithContextMetrics(d.metrics),
		WithMaxDepth(d.maxDepth),
	)
}

// Tick runs one cycle: the pure pass, then the mutating pass.
//
// The returned error combines root failures of both passes, recorder
// failures and cancellation. The report is returned either way.
func (d *Driver) Tick(ctx context.Context) (*TickReport, error) {
	cycle := d.clock.Advance()
	report := &TickReport{Cycle: cycle}

	var result *multierror.Error
	pure, err := d.RunPure(ctx, cycle)
	report.Pure = pure
	if err != nil {
		return report, err
	}
	result = multierror.Append(result, pure.Err())

	mut, err := d.RunMutating(ctx, cycle)
	report.Mutating = mut
	if err != nil {
		return report, err
	}
	result = multierror.Append(result, mut.Err())

	if err := result.ErrorOrNil(); err != nil {
		return report, fmt.Errorf("cycle %d: %w", cycle, err)
	}
	return report, nil
}

// RunPure evaluates every pure root for cycle. Roots run in parallel, up
// to the configured number of workers, each with its own Context. A
// failing root does not stop the others; its error lands in the report.
// The returned error is only set for cancellation or recorder failures.
func (d *Driver) RunPure(ctx context.Context, cycle int64) (*PassReport, error) {
	d.passMu.Lock()
	defer d.passMu.Unlock()

	start := time.Now()
	roots := d.rootsOf(PassPure)
	report := d.newReport(cycle, PassPure, len(roots))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(d.workers)
	for i, r := range roots {
		i, r := i, r
		report.Results[i] = RootResult{Root: r.Name, Endpoint: r.Endpoint}
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				report.Results[i].Err = err
				return err
			}
			v, err := EvaluateEndpoint(d.newContext(cycle), r.Endpoint)
			report.Results[i].Value = v
			report.Results[i].Err = err
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report, fmt.Errorf("pure pass %s: %w", report.ID, err)
	}

	d.finish(report, time.Since(start))
	return report, d.record(ctx, report)
}

// RunMutating evaluates every mutating root for cycle in registration
// order, then applies their batches in the same order. Batches are applied
// only when every root evaluated successfully, so no root's pull phase can
// observe another root's mutation and a failed cycle leaves the world
// untouched.
func (d *Driver) RunMutating(ctx context.Context, cycle int64) (*PassReport, error) {
	d.passMu.Lock()
	defer d.passMu.Unlock()

	start := time.Now()
	roots := d.rootsOf(PassMutating)
	report := d.newReport(cycle, PassMutating, len(roots))

	batches := make([]substrate.Batch, len(roots))
	failed := false
	for i, r := range roots {
		if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("mutating pass %s: %w", report.ID, err)
		}
		batch, err := EvaluateMutating(d.newContext(cycle), Source[substrate.Batch]{
			Vertex: r.Endpoint.Vertex,
			Port:   OutPort[substrate.Batch](r.Endpoint.Index),
		})
		report.Results[i] = RootResult{Root: r.Name, Endpoint: r.Endpoint, Commands: batch.Len(), Err: err}
		batches[i] = batch
		failed = failed || err != nil
	}

	if !failed && len(batches) > 0 {
		report.ApplyErr = d.apply(batches)
		report.Applied = report.ApplyErr == nil
	}

	d.finish(report, time.Since(start))
	return report, d.record(ctx, report)
}

// apply runs batches in order, converting a configuration panic into an
// error. Batches before the failing one stay applied.
func (d *Driver) apply(batches []substrate.Batch) (err error) {
	defer func() { recoverGraphError(recover(), &err) }()
	for _, b := range batches {
		b.Apply(d.world)
	}
	return nil
}

func (d *Driver) newReport(cycle int64, kind PassKind, n int) *PassReport {
	return &PassReport{
		ID:      d.ids.Generate(),
		Graph:   d.graph,
		Cycle:   cycle,
		Kind:    kind,
		Results: make([]RootResult, n),
	}
}

// finish logs the pass and updates metrics.
func (d *Driver) finish(report *PassReport, elapsed time.Duration) {
	failed := 0
	for _, res := range report.Results {
		if res.Err == nil {
			continue
		}
		failed++
		d.metrics.observeRootError(res.Err)
		d.logger.Error("root evaluation failed",
			"pass", report.ID,
			"cycle", report.Cycle,
			"root", res.Root,
			"endpoint", res.Endpoint,
			"error", res.Err,
		)
	}
	if report.ApplyErr != nil {
		d.logger.Error("applying batches failed", "pass", report.ID, "error", report.ApplyErr)
	}
	d.metrics.observePass(report.Kind, failed > 0 || report.ApplyErr != nil, elapsed)

	d.logger.Info("pass finished",
		"pass", report.ID,
		"kind", report.Kind,
		"cycle", report.Cycle,
		"roots", len(report.Results),
		"failed", failed,
		"applied", report.Applied,
	)
}

func (d *Driver) record(ctx context.Context, report *PassReport) error {
	if d.recorder == nil {
		return nil
	}
	if err := d.recorder.RecordPass(ctx, report); err != nil {
		return fmt.Errorf("record pass %s: %w", report.ID, err)
	}
	return nil
}
