// Package graph implements demand-driven dataflow graphs over a substrate
// world.
//
// A graph is a set of vertices, each a substrate record with typed input
// and output ports, and arcs, each a record wiring one output to one
// input. Nothing is computed until an output is evaluated; evaluating it
// pulls its inputs, which evaluates their producers, recursively, walking
// the arcs backward.
//
// # Building
//
// Builder.Spawn and Connect queue substrate commands; Builder.Apply runs
// them. Port tags (In[T], Out[T]) carry the value type, so Connect only
// compiles when both ends agree. ConnectDynamic checks the same agreement
// at runtime through a TypeRegistry for graphs assembled from documents.
// Wiring an input twice is rejected.
//
// # Evaluating
//
// Evaluate pulls one output inside a Context. There is no implicit
// memoization: an output feeding two consumers is computed once per path.
// A Cache vertex stores its last value, reports whether it changed, and
// pulls its producer at most once per driver cycle.
//
// A Driver evaluates registered roots once per cycle: pure roots first,
// possibly in parallel, then mutating roots, whose substrate.Batch results
// are applied in root order after every mutating root has been pulled.
//
// # Errors
//
// A graph assembled wrongly (missing bindings, unwired inputs, missing
// state) or wired in a loop is a programming error. Internally these
// surface as panics carrying *GraphError; Builder.Apply, Evaluate and the
// Driver recover them and return them as errors. Cyclic pulls are stopped
// by the Context's pull stack before they exhaust the goroutine stack.
package graph
