package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/pullgraph/internal/graph"
	"github.com/roach88/pullgraph/internal/graphdoc"
	"github.com/roach88/pullgraph/internal/store"
	"github.com/roach88/pullgraph/internal/substrate"
)

// BuildError is returned by Run when a document does not build or its
// roots cannot be registered. Other Run errors come from the store or the
// context.
type BuildError struct {
	Graph string
	Stage string // "build" or "register roots of"
	Err   error
}

// Error implements the error interface.
func (e *BuildError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Stage, e.Graph, e.Err)
}

func (e *BuildError) Unwrap() error { return e.Err }

// DefaultCycles is the number of cycles driven for documents without a
// cycles list.
const DefaultCycles = 1

// Option configures Run.
type Option func(*config)

type config struct {
	logger  *slog.Logger
	workers int
	cycles  int
	store   *store.Store
	metrics *graph.Metrics
	ids     graph.PassIDGenerator
}

// WithLogger sets the logger for building and driving. Logs are
// discarded by default.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithWorkers sets the number of pure roots evaluated in parallel.
func WithWorkers(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.workers = n
		}
	}
}

// WithCycles sets how many cycles to drive when the document has no
// cycles list. Documents with cycles always run exactly those.
func WithCycles(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.cycles = n
		}
	}
}

// WithStore records into st instead of a fresh in-memory store. Pass IDs
// then default to UUIDv7 so repeated runs never collide.
func WithStore(st *store.Store) Option {
	return func(c *config) {
		c.store = st
	}
}

// WithMetrics reports driver metrics to m.
func WithMetrics(m *graph.Metrics) Option {
	return func(c *config) {
		c.metrics = m
	}
}

// WithPassIDGenerator overrides the pass ID generator.
func WithPassIDGenerator(g graph.PassIDGenerator) Option {
	return func(c *config) {
		c.ids = g
	}
}

// Run builds doc into a fresh world and drives its cycles.
//
// Execution flow:
// 1. Open a fresh in-memory store (unless WithStore was given)
// 2. Build the document and register its roots
// 3. For each cycle: assign vars, tick, check expectations
// 4. Read the trace back from the store
//
// Root failures and expectation mismatches are reported in the Result.
// The returned error is reserved for failures that stop the run: invalid
// documents, store errors and cancellation.
func Run(ctx context.Context, doc *graphdoc.Document, opts ...Option) (*Result, error) {
	cfg := config{
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		workers: 1,
		cycles:  DefaultCycles,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	st := cfg.store
	if st == nil {
		var err error
		if st, err = store.Open(":memory:"); err != nil {
			return nil, fmt.Errorf("failed to create in-memory store: %w", err)
		}
		defer st.Close()
		if cfg.ids == nil {
			cfg.ids = &graph.SequenceGenerator{Prefix: doc.Name}
		}
	}

	w := substrate.NewWorld()
	g, err := graphdoc.Build(doc, w, graphdoc.WithLogger(cfg.logger))
	if err != nil {
		return nil, &BuildError{Graph: doc.Name, Stage: "build", Err: err}
	}

	driverOpts := []graph.DriverOption{
		graph.WithLogger(cfg.logger),
		graph.WithWorkers(cfg.workers),
		graph.WithRecorder(st),
		graph.WithGraphName(doc.Name),
		graph.WithMetrics(cfg.metrics),
	}
	if cfg.ids != nil {
		driverOpts = append(driverOpts, graph.WithPassIDGenerator(cfg.ids))
	}
	d := graph.NewDriver(w, driverOpts...)
	if err := g.Register(d); err != nil {
		return nil, &BuildError{Graph: doc.Name, Stage: "register roots of", Err: err}
	}

	cycles := doc.Cycles
	if len(cycles) == 0 {
		cycles = make([]graphdoc.CycleDoc, cfg.cycles)
	}

	result := NewResult()
	var passes []string
	for i, c := range cycles {
		if err := g.SetAll(c.Set); err != nil {
			result.AddError(fmt.Sprintf("cycle %d: %v", i+1, err))
		}

		report, err := d.Tick(ctx)
		if err != nil && !rootFailure(report) {
			return nil, err
		}
		if err != nil {
			result.AddError(err.Error())
		}
		passes = append(passes, report.Pure.ID, report.Mutating.ID)

		for _, e := range checkExpectations(report, c.Expect) {
			result.AddError(e.Error())
		}
	}
	result.Cycles = len(cycles)

	if err := readTrace(ctx, st, passes, result); err != nil {
		return nil, err
	}

	cfg.logger.Info("scenario finished",
		"graph", doc.Name,
		"cycles", result.Cycles,
		"pass", result.Pass,
		"errors", len(result.Errors),
	)
	return result, nil
}

// rootFailure reports whether a tick completed both passes and failed
// only because roots did. Cancellation and recorder failures are not
// root failures.
func rootFailure(report *graph.TickReport) bool {
	if report == nil || report.Pure == nil || report.Mutating == nil {
		return false
	}
	return report.Pure.Err() != nil || report.Mutating.Err() != nil
}

func readTrace(ctx context.Context, st *store.Store, passes []string, result *Result) error {
	for _, id := range passes {
		p, err := st.ReadPass(ctx, id)
		if err != nil {
			return fmt.Errorf("read trace: %w", err)
		}
		for _, r := range p.Results {
			result.Trace = append(result.Trace, TraceEntry{
				Seq:      p.Seq,
				Cycle:    p.Cycle,
				Pass:     p.Kind,
				Root:     r.Root,
				Value:    r.Value,
				Commands: r.Commands,
				Error:    r.Error,
			})
		}
	}
	return nil
}
