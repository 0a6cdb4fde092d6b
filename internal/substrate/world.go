package substrate

import (
	"fmt"
	"reflect"
	"slices"
	"sync"
	"sync/atomic"
)

// ID identifies a record in a World. The zero ID is never handed out.
type ID uint64

// Valid reports whether id could have been returned by Spawn.
func (id ID) Valid() bool {
	return id != 0
}

// String renders the id as "#n".
func (id ID) String() string {
	return fmt.Sprintf("#%d", uint64(id))
}

// erasedStore is the type-independent view of a store[T].
type erasedStore interface {
	remove(id ID) bool
	has(id ID) bool
}

// store holds every attachment of one Go type.
type store[T any] struct {
	items map[ID]*T
}

func (s *store[T]) remove(id ID) bool {
	if _, ok := s.items[id]; !ok {
		return false
	}
	delete(s.items, id)
	return true
}

func (s *store[T]) has(id ID) bool {
	_, ok := s.items[id]
	return ok
}

// World owns records, their attachments and the deferred command queue.
type World struct {
	next atomic.Uint64

	mu     sync.RWMutex
	alive  map[ID]struct{}
	stores map[reflect.Type]erasedStore

	cmdMu   sync.Mutex
	pending []Command
}

// NewWorld creates an empty world.
func NewWorld() *World {
	return &World{
		alive:  make(map[ID]struct{}),
		stores: make(map[reflect.Type]erasedStore),
	}
}

// Spawn allocates a new record and returns its id.
// Safe for concurrent use.
func (w *World) Spawn() ID {
	id := ID(w.next.Add(1))

	w.mu.Lock()
	w.alive[id] = struct{}{}
	w.mu.Unlock()

	return id
}

// Alive reports whether id was spawned and not despawned.
func (w *World) Alive(id ID) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()

	_, ok := w.alive[id]
	return ok
}

// Len returns the number of live records.
func (w *World) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.alive)
}

// Despawn removes a record and every attachment it carries.
// Returns false if the record was not alive.
func (w *World) Despawn(id ID) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.alive[id]; !ok {
		return false
	}
	delete(w.alive, id)
	for _, s := range w.stores {
		s.remove(id)
	}
	return true
}

// typeKey returns the store key for attachment type T.
func typeKey[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// storeFor returns the store for T, creating it when create is set.
// Caller must hold w.mu (write lock when create is true).
func storeFor[T any](w *World, create bool) *store[T] {
	key := typeKey[T]()
	if s, ok := w.stores[key]; ok {
		return s.(*store[T])
	}
	if !create {
		return nil
	}
	s := &store[T]{items: make(map[ID]*T)}
	w.stores[key] = s
	return s
}

// Attach sets the T attachment of id, replacing any previous one.
//
// Panics if id is not alive: attaching to an unknown record is a
// programming error, not a runtime condition.
func Attach[T any](w *World, id ID, value T) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.alive[id]; !ok {
		panic(fmt.Sprintf("substrate: attach %s to unknown record %s", typeKey[T](), id))
	}
	v := value
	storeFor[T](w, true).items[id] = &v
}

// Get returns the T attachment of id. The pointer stays valid until the
// attachment is replaced or removed.
func Get[T any](w *World, id ID) (*T, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	s := storeFor[T](w, false)
	if s == nil {
		return nil, false
	}
	v, ok := s.items[id]
	return v, ok
}

// Has reports whether id carries a T attachment.
func Has[T any](w *World, id ID) bool {
	_, ok := Get[T](w, id)
	return ok
}

// Remove deletes the T attachment of id. Returns false if there was none.
func Remove[T any](w *World, id ID) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	s := storeFor[T](w, false)
	if s == nil {
		return false
	}
	return s.remove(id)
}

// Each calls fn for every record carrying a T attachment, in ascending id
// order. The store lock is not held while fn runs, so fn may attach,
// remove or defer.
func Each[T any](w *World, fn func(ID, *T)) {
	w.mu.RLock()
	s := storeFor[T](w, false)
	if s == nil {
		w.mu.RUnlock()
		return
	}
	ids := make([]ID, 0, len(s.items))
	ptrs := make(map[ID]*T, len(s.items))
	for id, v := range s.items {
		ids = append(ids, id)
		ptrs[id] = v
	}
	w.mu.RUnlock()

	slices.Sort(ids)
	for _, id := range ids {
		fn(id, ptrs[id])
	}
}

// Count returns the number of records carrying a T attachment.
func Count[T any](w *World) int {
	w.mu.RLock()
	defer w.mu.RUnlock()

	s := storeFor[T](w, false)
	if s == nil {
		return 0
	}
	return len(s.items)
}
