package marshal

import (
	"context"
)

// Source is a host array handed to a native call.
//
// Slice values are copied into scratch memory and freed with the arena.
// A *Pinned array already lives in guest memory and is passed by pointer,
// with no copy and no free, so callers can reuse one allocation across many
// draw calls.
type Source[T Element] interface {
	Len() int
	place(s *Scratch) (uint32, error)
}

// Slice is a host-owned array that is copied on every call.
type Slice[T Element] []T

// Len returns the element count.
func (d Slice[T]) Len() int {
	return len(d)
}

func (d Slice[T]) place(s *Scratch) (uint32, error) {
	return Copy(s, []T(d))
}

// Place stages src for a native call. Empty or nil input yields the null pointer.
func Place[T Element](s *Scratch, src Source[T]) (uint32, error) {
	if src == nil || src.Len() == 0 {
		return 0, nil
	}
	return src.place(s)
}

// Copy allocates scratch memory sized len(data)*sizeof(T) and copies data into it.
func Copy[T Element](s *Scratch, data []T) (uint32, error) {
	if len(data) == 0 {
		return 0, nil
	}
	size, err := byteLen[T](len(data))
	if err != nil {
		return 0, err
	}
	ptr, err := s.Alloc(size)
	if err != nil {
		return 0, err
	}
	if err := Store(s.heap, ptr, data); err != nil {
		return 0, err
	}
	return ptr, nil
}

// Pinned is a long-lived guest array owned by the caller.
type Pinned[T Element] struct {
	heap *Heap
	ptr  uint32
	n    int
}

// Pin allocates room for n elements of T.
func Pin[T Element](ctx context.Context, h *Heap, n int) (*Pinned[T], error) {
	size, err := byteLen[T](n)
	if err != nil {
		return nil, err
	}
	ptr, err := h.Malloc(ctx, size)
	if err != nil {
		return nil, err
	}
	return &Pinned[T]{heap: h, ptr: ptr, n: n}, nil
}

// Ptr returns the guest address of the array.
func (p *Pinned[T]) Ptr() uint32 {
	if p == nil {
		return 0
	}
	return p.ptr
}

// Len returns the pinned element count.
func (p *Pinned[T]) Len() int {
	if p == nil {
		return 0
	}
	return p.n
}

func (p *Pinned[T]) place(_ *Scratch) (uint32, error) {
	return p.ptr, nil
}

// Store writes data into the pinned array.
func (p *Pinned[T]) Store(data []T) error {
	if len(data) > p.n {
		return &CapacityError{Cap: p.n, Len: len(data)}
	}
	return Store(p.heap, p.ptr, data)
}

// Load reads the array through a fresh view.
func (p *Pinned[T]) Load() ([]T, error) {
	return Load[T](p.heap, p.ptr, p.n)
}

// Free releases the array. The Pinned value must not be used afterwards.
func (p *Pinned[T]) Free(ctx context.Context) error {
	if p.ptr == 0 {
		return nil
	}
	err := p.heap.Free(ctx, p.ptr)
	p.ptr, p.n = 0, 0
	return err
}
