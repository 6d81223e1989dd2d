package worker

import (
	"sync"

	"github.com/woxQAQ/skwasm-bridge/internal/handle"
)

type associated[T any] struct {
	owner ThreadID
	value T
	ref   handle.Handle
}

// Associated is a registry of resources handed from one thread to another.
// Each entry records the thread that owns it; only the owner can read it.
//
// Entries are written by the owner's event loop when the
// setAssociatedObject message arrives, so a Get issued before that message
// is processed reports an unknown object.
type Associated[T any] struct {
	mu      sync.Mutex
	entries map[uint32]*associated[T]
}

// NewAssociated creates an empty registry.
func NewAssociated[T any]() *Associated[T] {
	return &Associated[T]{entries: make(map[uint32]*associated[T])}
}

// store records v under id for owner and returns the entry it replaced.
func (a *Associated[T]) store(owner ThreadID, id uint32, v T, ref handle.Handle) (*associated[T], bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	old, ok := a.entries[id]
	a.entries[id] = &associated[T]{owner: owner, value: v, ref: ref}
	return old, ok
}

func (a *Associated[T]) lookup(caller ThreadID, id uint32) (*associated[T], error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	e, ok := a.entries[id]
	if !ok {
		return nil, &UnknownObjectError{ID: id}
	}
	if e.owner != caller {
		return nil, &WrongThreadError{ID: id, Owner: e.owner, Caller: caller}
	}
	return e, nil
}

// Get returns the resource stored under id. It fails with *WrongThreadError
// when caller does not own the entry.
func (a *Associated[T]) Get(caller ThreadID, id uint32) (T, error) {
	e, err := a.lookup(caller, id)
	if err != nil {
		var zero T
		return zero, err
	}
	return e.value, nil
}

// Ref returns the handle the owner's engine code uses for the resource.
func (a *Associated[T]) Ref(caller ThreadID, id uint32) (handle.Handle, error) {
	e, err := a.lookup(caller, id)
	if err != nil {
		return handle.Null, err
	}
	return e.ref, nil
}

// Owner reports which thread holds id.
func (a *Associated[T]) Owner(id uint32) (ThreadID, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if e, ok := a.entries[id]; ok {
		return e.owner, true
	}
	return 0, false
}

// remove deletes the entry if caller owns it.
func (a *Associated[T]) remove(caller ThreadID, id uint32) (*associated[T], error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	e, ok := a.entries[id]
	if !ok {
		return nil, &UnknownObjectError{ID: id}
	}
	if e.owner != caller {
		return nil, &WrongThreadError{ID: id, Owner: e.owner, Caller: caller}
	}
	delete(a.entries, id)
	return e, nil
}

// removeOwned deletes and returns every entry owned by owner.
func (a *Associated[T]) removeOwned(owner ThreadID) []*associated[T] {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []*associated[T]
	for id, e := range a.entries {
		if e.owner == owner {
			out = append(out, e)
			delete(a.entries, id)
		}
	}
	return out
}

// Len returns the number of live entries.
func (a *Associated[T]) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.entries)
}
