package marshal

import (
	"context"

	"go.uber.org/multierr"
)

// Scratch is a scoped arena of guest allocations staged for one native call.
// Release frees everything it allocated.
type Scratch struct {
	ctx      context.Context
	heap     *Heap
	ptrs     []uint32
	released bool
}

// Scope opens a scratch arena on the heap.
func (h *Heap) Scope(ctx context.Context) *Scratch {
	return &Scratch{ctx: ctx, heap: h}
}

// With runs fn with a scratch arena and releases it on every exit path,
// including panics.
func (h *Heap) With(ctx context.Context, fn func(s *Scratch) error) (err error) {
	s := h.Scope(ctx)
	defer func() {
		if rerr := s.Release(); rerr != nil {
			err = multierr.Append(err, rerr)
		}
	}()
	return fn(s)
}

// Heap returns the heap the arena allocates from.
func (s *Scratch) Heap() *Heap {
	return s.heap
}

// Alloc allocates size bytes owned by the arena. Zero bytes yields the null pointer.
func (s *Scratch) Alloc(size uint32) (uint32, error) {
	if s.released {
		return 0, ErrReleased
	}
	ptr, err := s.heap.Malloc(s.ctx, size)
	if err != nil || ptr == 0 {
		return ptr, err
	}
	s.ptrs = append(s.ptrs, ptr)
	return ptr, nil
}

// Bytes copies data into the arena.
func (s *Scratch) Bytes(data []byte) (uint32, error) {
	return Copy(s, data)
}

// String stages a terminated string.
func (s *Scratch) String(enc Encoding, str string) (uint32, error) {
	b, err := Encode(enc, str)
	if err != nil {
		return 0, err
	}
	return Copy(s, b)
}

// StringN stages a string without terminator and returns its byte length.
// Embedded NULs survive.
func (s *Scratch) StringN(enc Encoding, str string) (uint32, uint32, error) {
	b, err := encodeRaw(enc, str)
	if err != nil {
		return 0, 0, err
	}
	ptr, err := Copy(s, b)
	return ptr, uint32(len(b)), err
}

// Len returns the number of live allocations in the arena.
func (s *Scratch) Len() int {
	return len(s.ptrs)
}

// Release frees every allocation in reverse order. It is idempotent.
func (s *Scratch) Release() error {
	if s.released {
		return nil
	}
	s.released = true

	ctx := context.WithoutCancel(s.ctx)
	var err error
	for i := len(s.ptrs) - 1; i >= 0; i-- {
		err = multierr.Append(err, s.heap.Free(ctx, s.ptrs[i]))
	}
	s.ptrs = nil
	return err
}
