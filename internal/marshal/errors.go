package marshal

import (
	"errors"
	"fmt"
)

var (
	// ErrNoAllocator is returned when a heap without an allocator is asked to allocate.
	ErrNoAllocator = errors.New("heap has no allocator")

	// ErrOutOfMemory is returned when the guest allocator returns the null pointer.
	ErrOutOfMemory = errors.New("guest allocator returned null")

	// ErrNoHeap is the panic value of MustHeap when the call context carries no heap.
	ErrNoHeap = errors.New("no guest heap bound to call context")

	// ErrReleased is returned when a released scratch arena is used again.
	ErrReleased = errors.New("scratch arena already released")
)

// AccessError occurs when a guest memory access falls outside the heap.
type AccessError struct {
	Op   string
	Ptr  uint32
	Len  uint32
	Size uint32
}

func (e *AccessError) Error() string {
	return fmt.Sprintf("memory access out of bounds (op=%s, addr=%d, len=%d, heap=%d)",
		e.Op, e.Ptr, e.Len, e.Size)
}

// AllocError occurs when the guest allocator fails.
type AllocError struct {
	Size uint32
	Err  error
}

func (e *AllocError) Error() string {
	return fmt.Sprintf("failed to allocate %d bytes: %v", e.Size, e.Err)
}

func (e *AllocError) Unwrap() error {
	return e.Err
}

// MatrixSizeError occurs when a matrix is built from a slice of the wrong length.
type MatrixSizeError struct {
	Len int
}

func (e *MatrixSizeError) Error() string {
	return fmt.Sprintf("invalid matrix size %d (must be 6, 9 or 16 elements)", e.Len)
}

// LengthError occurs when an element count cannot describe a guest array.
type LengthError struct {
	Len      int
	ElemSize uint32
}

func (e *LengthError) Error() string {
	return fmt.Sprintf("invalid array length %d of %d-byte elements", e.Len, e.ElemSize)
}

// CapacityError occurs when a pinned array is asked to hold more than it was pinned for.
type CapacityError struct {
	Cap int
	Len int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("pinned array holds %d elements, got %d", e.Cap, e.Len)
}
