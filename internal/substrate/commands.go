package substrate

import "slices"

// Command is a deferred mutation of a World.
type Command func(*World)

// Defer queues cmd for the next Flush.
// Safe for concurrent use; commands keep their enqueue order.
func (w *World) Defer(cmd Command) {
	if cmd == nil {
		return
	}
	w.cmdMu.Lock()
	w.pending = append(w.pending, cmd)
	w.cmdMu.Unlock()
}

// Pending returns the number of queued commands.
func (w *World) Pending() int {
	w.cmdMu.Lock()
	defer w.cmdMu.Unlock()
	return len(w.pending)
}

// Flush applies queued commands in order and returns how many ran.
//
// Commands deferred while flushing run in the same Flush, after the ones
// already queued. If a command panics the panic propagates and nothing
// queued at that point runs, including commands deferred during this
// Flush; the world is left as the earlier commands made it.
func (w *World) Flush() int {
	applied := 0
	drained := false
	defer func() {
		if drained {
			return
		}
		w.cmdMu.Lock()
		w.pending = nil
		w.cmdMu.Unlock()
	}()

	for {
		w.cmdMu.Lock()
		batch := w.pending
		w.pending = nil
		w.cmdMu.Unlock()

		if len(batch) == 0 {
			drained = true
			return applied
		}
		for i, cmd := range batch {
			// Nil out the slot so applied commands can be collected.
			batch[i] = nil
			cmd(w)
			applied++
		}
	}
}

// Batch is an ordered set of commands produced during evaluation and
// applied exactly once, after evaluation has finished reading the world.
type Batch struct {
	cmds []Command
}

// NewBatch creates a batch holding cmds in order.
func NewBatch(cmds ...Command) Batch {
	b := Batch{}
	for _, c := range cmds {
		b.Add(c)
	}
	return b
}

// Add appends cmd to the batch. Nil commands are ignored.
func (b *Batch) Add(cmd Command) {
	if cmd == nil {
		return
	}
	// Clip so a copy of b sharing the backing array is never overwritten.
	b.cmds = append(slices.Clip(b.cmds), cmd)
}

// Merge appends every command of other after the ones already in b.
func (b *Batch) Merge(other Batch) {
	b.cmds = append(slices.Clip(b.cmds), other.cmds...)
}

// Len returns the number of commands in the batch.
func (b Batch) Len() int {
	return len(b.cmds)
}

// Apply runs every command against w, in order.
func (b Batch) Apply(w *World) {
	for _, cmd := range b.cmds {
		cmd(w)
	}
}
