package graph

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/pullgraph/internal/substrate"
)

// Builder assembles a graph inside a world through deferred commands.
//
// Spawn and Connect only queue work; Apply flushes the world's command
// queue, which attaches port bindings and creates arcs in enqueue order.
// Every vertex's bindings are therefore in place before any arc that
// references them, as long as the vertex was spawned first.
//
// Thread Safety:
//
//	Builder methods may be called from several goroutines, but the graph
//	must not be evaluated while Apply runs.
type Builder struct {
	world  *substrate.World
	types  *TypeRegistry
	logger *slog.Logger

	mu    sync.Mutex
	kinds map[substrate.ID]string
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithTypeRegistry shares a type registry between builders.
func WithTypeRegistry(r *TypeRegistry) BuilderOption {
	return func(b *Builder) {
		if r != nil {
			b.types = r
		}
	}
}

// WithBuilderLogger sets the builder's logger.
func WithBuilderLogger(l *slog.Logger) BuilderOption {
	return func(b *Builder) {
		if l != nil {
			b.logger = l
		}
	}
}

// NewBuilder creates a builder writing into w.
func NewBuilder(w *substrate.World, opts ...BuilderOption) *Builder {
	b := &Builder{
		world:  w,
		types:  NewTypeRegistry(),
		logger: slog.Default(),
		kinds:  make(map[substrate.ID]string),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// World returns the world the builder writes into.
func (b *Builder) World() *substrate.World { return b.world }

// Types returns the builder's type registry.
func (b *Builder) Types() *TypeRegistry { return b.types }

// Spawn reserves a vertex record for def and queues its construction:
// first the Vertex attachment and state, then one binding per port.
func (b *Builder) Spawn(def Definition) (substrate.ID, error) {
	if err := def.Validate(); err != nil {
		return 0, err
	}
	if err := b.types.Register(def); err != nil {
		return 0, err
	}

	id := b.world.Spawn()

	b.mu.Lock()
	b.kinds[id] = def.Kind
	b.mu.Unlock()

	vertex := Vertex{Kind: def.Kind, Label: normalizeLabel(def.Label)}
	state := def.State
	b.world.Defer(func(w *substrate.World) {
		substrate.Attach(w, id, vertex)
		for _, s := range state {
			s(w, id)
		}
	})
	ports := def.ports()
	b.world.Defer(func(w *substrate.World) {
		substrate.Attach(w, id, *ports)
	})

	b.logger.Debug("vertex spawned",
		"vertex", id,
		"kind", def.Kind,
		"inputs", len(def.Inputs),
		"outputs", len(def.Outputs),
	)
	return id, nil
}

// MustSpawn is Spawn for definitions known to be valid. It panics on
// error.
func (b *Builder) MustSpawn(def Definition) substrate.ID {
	id, err := b.Spawn(def)
	if err != nil {
		panic(err)
	}
	return id
}

// KindOf returns the kind a vertex was spawned with.
func (b *Builder) KindOf(v substrate.ID) (string, bool) {
	b.mu.Lock()
	kind, ok := b.kinds[v]
	b.mu.Unlock()
	if ok {
		return kind, true
	}
	if vx, found := substrate.Get[Vertex](b.world, v); found {
		return vx.Kind, true
	}
	return "", false
}

// Connect queues an arc from an output to an input of the same value type.
// Type agreement is enforced by the compiler.
func Connect[T any](b *Builder, from Source[T], to Sink[T]) {
	b.queueWire(from.Endpoint(), to.Endpoint())
}

// ConnectDynamic queues an arc between two untyped endpoints after
// checking the type registry. A mismatch returns *TypeMismatchError and
// queues nothing.
func (b *Builder) ConnectDynamic(from, to Endpoint) error {
	fromKind, ok := b.KindOf(from.Vertex)
	if !ok {
		return &GraphError{Code: ErrCodeUnknownPort, Message: "producer is not a vertex", Vertex: from.Vertex}
	}
	toKind, ok := b.KindOf(to.Vertex)
	if !ok {
		return &GraphError{Code: ErrCodeUnknownPort, Message: "consumer is not a vertex", Vertex: to.Vertex}
	}
	if err := b.types.Check(fromKind, from, toKind, to); err != nil {
		return err
	}
	b.queueWire(from, to)
	return nil
}

func (b *Builder) queueWire(from, to Endpoint) {
	b.world.Defer(func(w *substrate.World) {
		arc := wire(w, from, to)
		b.logger.Debug("arc created", "arc", arc, "from", from, "to", to)
	})
}

// Apply runs every queued construction and wiring command. A missing
// binding or a double-wired input aborts the flush and is returned; the
// world is then partially assembled and should be discarded.
func (b *Builder) Apply() (err error) {
	defer func() { recoverGraphError(recover(), &err) }()
	n := b.world.Flush()
	b.logger.Debug("builder applied", "commands", n)
	return nil
}

// wire creates the arc record for from -> to and updates both bindings.
// Missing bindings and already-wired inputs are fatal.
func wire(w *substrate.World, from, to Endpoint) substrate.ID {
	producer, ok := substrate.Get[Ports](w, from.Vertex)
	if !ok {
		fatal(ErrCodeMissingBinding, from.Vertex, nil, "producer has no port bindings")
	}
	out, ok := producer.Output(from.Index)
	if !ok {
		fatal(ErrCodeMissingBinding, from.Vertex, nil, "producer has no output %d", from.Index)
	}
	consumer, ok := substrate.Get[Ports](w, to.Vertex)
	if !ok {
		fatal(ErrCodeMissingBinding, to.Vertex, nil, "consumer has no port bindings")
	}
	in, ok := consumer.Input(to.Index)
	if !ok {
		fatal(ErrCodeMissingBinding, to.Vertex, nil, "consumer has no input %d", to.Index)
	}
	if in.Wired() {
		spec := in.Spec
		fatal(ErrCodeAlreadyWired, to.Vertex, &spec, "input already wired to arc %s", in.Arc)
	}
	if out.Spec.Type != in.Spec.Type {
		spec := in.Spec
		fatal(ErrCodeTypeMismatch, to.Vertex, &spec, "producer output is %s", typeName(out.Spec.Type))
	}

	id := w.Spawn()
	substrate.Attach(w, id, Arc{
		Producer: from.Vertex,
		Output:   from.Index,
		Consumer: to.Vertex,
		Input:    to.Index,
		Spec:     out.Spec,
		evaluate: out.evaluate,
	})
	out.Arcs = append(out.Arcs, id)
	in.Arc = id
	return id
}

// Through is a pass-through segment of a graph: an input and an output of
// the same value type, possibly on different vertices.
type Through[T any] struct {
	In  Sink[T]
	Out Source[T]
}

// ThroughOf returns the segment made of input in and output out of v.
func ThroughOf[T any](v substrate.ID, in In[T], out Out[T]) Through[T] {
	return Through[T]{In: in.Of(v), Out: out.Of(v)}
}

// Compose wires first's output into second's input and returns the
// combined segment.
func Compose[T any](b *Builder, first, second Through[T]) Through[T] {
	Connect(b, first.Out, second.In)
	return Through[T]{In: first.In, Out: second.Out}
}

// Chain wires graphs left to right:
//
//	graph.From(b, source).Through(step).Through(log).Into(sink)
//
// Each step queues one Connect, so chaining is associative with Compose.
type Chain[T any] struct {
	b   *Builder
	src Source[T]
}

// From starts a chain at src.
func From[T any](b *Builder, src Source[T]) Chain[T] {
	return Chain[T]{b: b, src: src}
}

// Through wires the chain into t and continues from t's output.
func (c Chain[T]) Through(t Through[T]) Chain[T] {
	Connect(c.b, c.src, t.In)
	return Chain[T]{b: c.b, src: t.Out}
}

// Into ends the chain at sink.
func (c Chain[T]) Into(sink Sink[T]) {
	Connect(c.b, c.src, sink)
}

// Source returns the chain's current output.
func (c Chain[T]) Source() Source[T] {
	return c.src
}

// String renders the chain's current output endpoint.
func (c Chain[T]) String() string {
	return fmt.Sprintf("chain@%s", c.src.Endpoint())
}
