// Package substrate is the entity-component store the dataflow graph lives in.
//
// A World hands out record identifiers (Spawn) and holds typed attachments
// per record (Attach, Get). Structural changes that must not race with
// readers are queued with Defer and applied in order by Flush.
//
// # Concurrency
//
// Attachment stores are guarded by a single RWMutex, so concurrent readers
// (Get, Has, Each) are safe. Get returns a pointer into the store; writing
// through that pointer is the caller's responsibility. Graph code only does
// so from commands applied by Flush, or under the attachment's own lock.
//
// # Ordering
//
// Commands run in the order they were deferred. A command may defer further
// commands; Flush keeps draining until the queue is empty.
package substrate
