// Package handle maps small integer handles to host-side objects.
//
// Tables are growable slot arrays. Handle 0 is reserved as the null handle and
// is never issued. Handles are issued in increasing order and are not reused:
// deleting a handle clears its slot, and the integer stays retired for the life
// of the table.
package handle

import (
	"fmt"
	"sync"
)

// Handle is an opaque reference into a Table.
type Handle uint32

// Null is the reserved null handle.
const Null Handle = 0

// Kind names the resource kind a table holds.
type Kind uint8

const (
	KindBuffer Kind = iota + 1
	KindTexture
	KindProgram
	KindShader
	KindFramebuffer
	KindRenderbuffer
	KindSampler
	KindSync
	KindVertexArray
	KindContext
	KindObject
)

var kindNames = map[Kind]string{
	KindBuffer:       "buffer",
	KindTexture:      "texture",
	KindProgram:      "program",
	KindShader:       "shader",
	KindFramebuffer:  "framebuffer",
	KindRenderbuffer: "renderbuffer",
	KindSampler:      "sampler",
	KindSync:         "sync",
	KindVertexArray:  "vertex-array",
	KindContext:      "context",
	KindObject:       "object",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

type slot[T any] struct {
	value T
	live  bool
}

// Table is a per-kind handle table.
type Table[T any] struct {
	mu    sync.RWMutex
	kind  Kind
	slots []slot[T]
	live  int
}

// New creates an empty table. Slot 0 is pre-filled so it can never be issued.
func New[T any](kind Kind) *Table[T] {
	return &Table[T]{
		kind:  kind,
		slots: make([]slot[T], 1, 8),
	}
}

// Kind returns the resource kind held by the table.
func (t *Table[T]) Kind() Kind {
	return t.kind
}

// Allocate reserves the next handle with an empty (zero) value.
func (t *Table[T]) Allocate() Handle {
	var zero T
	return t.Insert(zero)
}

// Insert stores v in a fresh slot and returns its handle.
func (t *Table[T]) Insert(v T) Handle {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.slots = append(t.slots, slot[T]{value: v, live: true})
	t.live++
	return Handle(len(t.slots) - 1)
}

// Set replaces the value of a live handle. It reports false for the null
// handle, for out-of-range handles and for deleted handles.
func (t *Table[T]) Set(h Handle, v T) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.validLocked(h) {
		return false
	}
	t.slots[h].value = v
	return true
}

// Get looks up a handle. Out-of-range, null and deleted handles report false.
func (t *Table[T]) Get(h Handle) (T, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if !t.validLocked(h) {
		var zero T
		return zero, false
	}
	return t.slots[h].value, true
}

// Contains reports whether h refers to a live slot.
func (t *Table[T]) Contains(h Handle) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.validLocked(h)
}

// Delete clears the slot of h and returns the value it held.
func (t *Table[T]) Delete(h Handle) (T, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var zero T
	if !t.validLocked(h) {
		return zero, false
	}
	v := t.slots[h].value
	t.slots[h] = slot[T]{}
	t.live--
	return v, true
}

// Live returns the number of live handles.
func (t *Table[T]) Live() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.live
}

// Cap returns the number of slots ever issued, including the reserved slot.
func (t *Table[T]) Cap() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.slots)
}

// Issued reports whether h was ever handed out by this table, live or not.
func (t *Table[T]) Issued(h Handle) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return h != Null && int(h) < len(t.slots)
}

// Each calls fn for every live handle in increasing order until fn returns false.
func (t *Table[T]) Each(fn func(Handle, T) bool) {
	t.mu.RLock()
	entries := make([]slot[T], len(t.slots))
	copy(entries, t.slots)
	t.mu.RUnlock()

	for i, s := range entries {
		if !s.live {
			continue
		}
		if !fn(Handle(i), s.value) {
			return
		}
	}
}

func (t *Table[T]) validLocked(h Handle) bool {
	return h != Null && int(h) < len(t.slots) && t.slots[h].live
}
