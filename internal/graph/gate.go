package graph

import (
	"sync"
)

// gate serializes Value evaluations of one cache and records which
// context holds it. Contexts blocked on a gate are tracked in waiting, so
// a context about to block can see whether the holder is, through a chain
// of other holders, waiting on a gate it holds itself. Each context runs
// on one goroutine, so that chain is a deadlock: it is reported as a cycle
// instead.
type gate struct {
	frame Frame
	owner *Context
}

var (
	gateMu   sync.Mutex
	gateCond = sync.NewCond(&gateMu)
	waiting  = make(map[*Context]*gate)
)

func newGate(f Frame) *gate {
	return &gate{frame: f}
}

// lock acquires g for c, blocking while another context holds it.
// Fails with CYCLE_DETECTED when blocking would never end.
func (g *gate) lock(c *Context) {
	gateMu.Lock()
	defer gateMu.Unlock()

	for g.owner != nil {
		if path, ok := g.waitCycle(c); ok {
			panic(&GraphError{
				Code:    ErrCodeCycleDetected,
				Message: "evaluation waits on a cache held by a root that is waiting on this one",
				Vertex:  g.frame.Vertex,
				Path:    path,
			})
		}
		waiting[c] = g
		gateCond.Wait()
		delete(waiting, c)
	}
	g.owner = c
}

func (g *gate) unlock() {
	gateMu.Lock()
	g.owner = nil
	gateMu.Unlock()
	gateCond.Broadcast()
}

// waitCycle follows holder -> awaited gate -> holder from g. It reports
// the frames of the gates on the way if the chain ends at c.
// gateMu must be held.
func (g *gate) waitCycle(c *Context) ([]Frame, bool) {
	path := []Frame{g.frame}
	h := g
	for n := len(waiting) + 1; n > 0; n-- {
		if h.owner == c {
			return append(path, g.frame), true
		}
		next, ok := waiting[h.owner]
		if !ok {
			return nil, false
		}
		path = append(path, next.frame)
		h = next
	}
	return nil, false
}
