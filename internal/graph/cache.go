package graph

import (
	"fmt"
	"sync"

	"github.com/roach88/pullgraph/internal/substrate"
)

// Cache ports. A cache has one input and two outputs: the (possibly
// unchanged) value and whether it changed this cycle.
const (
	cacheInIndex      = 0
	cacheValueIndex   = 0
	cacheChangedIndex = 1
)

// CacheIn is the input port of a Cache[T].
func CacheIn[T any]() In[T] { return InPort[T](cacheInIndex) }

// CacheValue is the Value output of a Cache[T].
func CacheValue[T any]() Out[T] { return OutPort[T](cacheValueIndex) }

// CacheChanged is the Changed output of every cache.
func CacheChanged() Out[bool] { return OutPort[bool](cacheChangedIndex) }

// CacheState is the state attachment of a cache vertex.
//
// gate serializes Value evaluations, including the upstream pull, so
// concurrent roots sharing a cache observe one transition per cycle. A
// root that would block on a gate forever, because caches pull each other
// in a loop from different roots, fails with CYCLE_DETECTED. mu guards
// the fields and is only held briefly, which lets Changed be read while a
// Value evaluation is pulling.
type CacheState[T any] struct {
	gate    *gate
	mu      *sync.Mutex
	equal   func(a, b T) bool
	value   T
	present bool
	changed bool
	cycle   int64
	fresh   bool // value was evaluated during cycle
}

// Snapshot returns the stored value, whether one exists and the most
// recent changed flag.
func (s *CacheState[T]) Snapshot() (value T, present, changed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value, s.present, s.changed
}

// memo returns the value stored during cycle. Cycle 0 is never memoized:
// contexts created without a cycle stamp pull on every evaluation.
func (s *CacheState[T]) memo(cycle int64) (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cycle != 0 && s.fresh && s.cycle == cycle {
		return s.value, true
	}
	var zero T
	return zero, false
}

// store records next as the cycle's value and sets the changed flag.
func (s *CacheState[T]) store(cycle int64, next T) T {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.present || !s.equal(s.value, next) {
		s.value = next
		s.present = true
		s.changed = true
	} else {
		s.changed = false
	}
	s.cycle = cycle
	s.fresh = true
	return s.value
}

// NewCache returns the definition of a cache comparing values with ==.
func NewCache[T comparable]() Definition {
	return NewCacheFunc[T](func(a, b T) bool { return a == b })
}

// NewCacheFunc returns the definition of a cache comparing values with
// equal.
//
// Evaluating Value pulls the input, compares it with the stored value
// (no stored value counts as different), stores it and sets the changed
// flag. The first Value evaluation of a driver cycle is memoized: later Value
// evaluations in the same cycle return the stored value without pulling,
// so a cache shared by several consumers pulls its producer once per cycle
// and every consumer sees the same changed flag.
//
// Evaluating Changed never pulls and never compares. It reports the flag
// set by the most recent Value evaluation, so callers that need a
// consistent value/changed pair must evaluate Value first in the same
// cycle.
func NewCacheFunc[T any](equal func(a, b T) bool) Definition {
	in := CacheIn[T]()
	return Definition{
		Kind: kindName("cache", typeOf[T]()),
		Inputs: []InputDecl{
			DeclareIn(in),
		},
		Outputs: []OutputDecl{
			DeclareOut(CacheValue[T](), func(c *Context, v substrate.ID) T {
				st := State[CacheState[T]](c, v)
				st.gate.lock(c)
				defer st.gate.unlock()

				if value, ok := st.memo(c.Cycle()); ok {
					return value
				}
				return st.store(c.Cycle(), Pull(c, v, in))
			}),
			DeclareOut(CacheChanged(), func(c *Context, v substrate.ID) bool {
				st := State[CacheState[T]](c, v)
				st.mu.Lock()
				defer st.mu.Unlock()
				return st.changed
			}),
		},
		State: []StateFunc{
			func(w *substrate.World, v substrate.ID) {
				substrate.Attach(w, v, CacheState[T]{
					gate:  newGate(Frame{Vertex: v, Port: cacheValueIndex}),
					mu:    &sync.Mutex{},
					equal: equal,
				})
			},
		},
	}
}

// CacheHandle bundles the ports of a spawned cache.
type CacheHandle[T any] struct {
	Vertex  substrate.ID
	In      Sink[T]
	Value   Source[T]
	Changed Source[bool]
}

// Through returns the cache as a pass-through segment.
func (h CacheHandle[T]) Through() Through[T] {
	return Through[T]{In: h.In, Out: h.Value}
}

// SpawnCache spawns a cache comparing with ==.
func SpawnCache[T comparable](b *Builder) CacheHandle[T] {
	return cacheHandle[T](b.MustSpawn(NewCache[T]()))
}

// SpawnCacheFunc spawns a cache comparing with equal.
func SpawnCacheFunc[T any](b *Builder, equal func(a, b T) bool) CacheHandle[T] {
	return cacheHandle[T](b.MustSpawn(NewCacheFunc(equal)))
}

func cacheHandle[T any](v substrate.ID) CacheHandle[T] {
	return CacheHandle[T]{
		Vertex:  v,
		In:      CacheIn[T]().Of(v),
		Value:   CacheValue[T]().Of(v),
		Changed: CacheChanged().Of(v),
	}
}

// kindName builds a kind name for a generic vertex, e.g. "cache[int64]".
func kindName(base string, t fmt.Stringer) string {
	return fmt.Sprintf("%s[%s]", base, t)
}
