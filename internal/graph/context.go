package graph

import (
	"fmt"
	"log/slog"

	"github.com/roach88/pullgraph/internal/substrate"
)

// DefaultMaxDepth bounds how deep a single pull may recurse.
const DefaultMaxDepth = 10000

// Frame is one output port being evaluated: an entry of the pull stack.
type Frame struct {
	Vertex substrate.ID
	Port   int
}

// String renders the frame as "#3.out[0]".
func (f Frame) String() string {
	return fmt.Sprintf("%s.out[%d]", f.Vertex, f.Port)
}

// Context carries everything a pull needs: the world being read, the
// logical cycle, the logger and the pull stack used for cycle detection.
//
// A Context belongs to one root evaluation at a time and is not safe for
// concurrent use. Independent roots get independent contexts.
type Context struct {
	world    *substrate.World
	cycle    int64
	logger   *slog.Logger
	metrics  *Metrics
	maxDepth int

	stack  []Frame
	active map[Frame]struct{}
}

// ContextOption configures a Context.
type ContextOption func(*Context)

// WithCycle sets the logical cycle the evaluation belongs to.
// Cache vertices use it to tell one cycle from the next.
func WithCycle(cycle int64) ContextOption {
	return func(c *Context) {
		c.cycle = cycle
	}
}

// WithContextLogger sets the logger vertices log through.
func WithContextLogger(l *slog.Logger) ContextOption {
	return func(c *Context) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithContextMetrics records compute calls into m.
func WithContextMetrics(m *Metrics) ContextOption {
	return func(c *Context) {
		c.metrics = m
	}
}

// WithMaxDepth bounds the pull recursion depth.
// Values <= 0 select DefaultMaxDepth.
func WithMaxDepth(depth int) ContextOption {
	return func(c *Context) {
		if depth > 0 {
			c.maxDepth = depth
		}
	}
}

// NewContext creates an evaluation context over w.
func NewContext(w *substrate.World, opts ...ContextOption) *Context {
	c := &Context{
		world:    w,
		logger:   slog.Default(),
		maxDepth: DefaultMaxDepth,
		active:   make(map[Frame]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// World returns the world being evaluated.
func (c *Context) World() *substrate.World { return c.world }

// Cycle returns the logical cycle of this evaluation.
func (c *Context) Cycle() int64 { return c.cycle }

// Logger returns the logger vertices should log through.
func (c *Context) Logger() *slog.Logger { return c.logger }

// Depth returns the number of output ports currently being evaluated.
func (c *Context) Depth() int { return len(c.stack) }

// enter pushes f on the pull stack. Re-entering a frame that is already
// on the stack means the graph is cyclic.
func (c *Context) enter(f Frame) {
	if _, ok := c.active[f]; ok {
		path := make([]Frame, 0, len(c.stack)+1)
		start := 0
		for i, s := range c.stack {
			if s == f {
				start = i
				break
			}
		}
		path = append(path, c.stack[start:]...)
		path = append(path, f)
		panic(&GraphError{
			Code:    ErrCodeCycleDetected,
			Message: "evaluation re-entered a port it is still computing",
			Vertex:  f.Vertex,
			Path:    path,
		})
	}
	if len(c.stack) >= c.maxDepth {
		panic(&GraphError{
			Code:    ErrCodeCycleDetected,
			Message: fmt.Sprintf("pull depth exceeded %d", c.maxDepth),
			Vertex:  f.Vertex,
		})
	}
	c.stack = append(c.stack, f)
	c.active[f] = struct{}{}
}

// leave pops the top frame.
func (c *Context) leave() {
	top := c.stack[len(c.stack)-1]
	c.stack = c.stack[:len(c.stack)-1]
	delete(c.active, top)
}

// ports returns the Ports attachment of v or fails fatally.
func (c *Context) ports(v substrate.ID) *Ports {
	p, ok := substrate.Get[Ports](c.world, v)
	if !ok {
		fatal(ErrCodeMissingBinding, v, nil, "vertex has no port bindings")
	}
	return p
}
