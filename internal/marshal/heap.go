// Package marshal moves values between Go and a guest's linear memory.
//
// The guest heap can grow at any allocation. Growth replaces the backing
// buffer, so any byte view taken before the growth reads and writes the old
// buffer. Heap therefore never hands out a long-lived view: every accessor
// checks the memory size and re-acquires its view when it changed.
package marshal

import (
	"context"
	"encoding/binary"
	"math"
	"sync"
	"unsafe"
)

// Memory is the subset of wazero's api.Memory the heap needs.
type Memory interface {
	Size() uint32
	Read(offset, byteCount uint32) ([]byte, bool)
	Grow(deltaPages uint32) (previousPages uint32, ok bool)
}

// Allocator is the guest allocator (malloc/free exports).
type Allocator interface {
	Malloc(ctx context.Context, size uint32) (uint32, error)
	Free(ctx context.Context, ptr uint32) error
}

// PageSize is the WebAssembly page size.
const PageSize = 65536

// Element is a fixed-width value that can be laid out in guest memory.
type Element interface {
	uint8 | uint16 | int32 | uint32 | float32
}

func sizeOf[T Element]() uint32 {
	var zero T
	return uint32(unsafe.Sizeof(zero))
}

// byteLen returns the byte size of n elements of T. It fails when n is
// negative or the size does not fit the 32-bit address space.
func byteLen[T Element](n int) (uint32, error) {
	size := uint64(sizeOf[T]()) * uint64(n)
	if n < 0 || size > math.MaxUint32 {
		return 0, &LengthError{Len: n, ElemSize: sizeOf[T]()}
	}
	return uint32(size), nil
}

// Heap is a view-caching accessor over guest memory plus its allocator.
type Heap struct {
	mem   Memory
	alloc Allocator

	mu   sync.Mutex
	view []byte
	gen  uint64
}

// NewHeap creates a heap accessor. alloc may be nil for read/write-only use.
func NewHeap(mem Memory, alloc Allocator) *Heap {
	h := &Heap{mem: mem, alloc: alloc}
	h.view, _ = mem.Read(0, mem.Size())
	return h
}

// View is a snapshot of the heap bytes taken at one point in time.
type View struct {
	heap *Heap
	buf  []byte
	gen  uint64
}

// Bytes returns the viewed bytes. They alias guest memory until the next growth.
func (v View) Bytes() []byte {
	return v.buf
}

// Generation returns the growth generation the view was taken at.
func (v View) Generation() uint64 {
	return v.gen
}

// Stale reports whether the heap grew after the view was taken.
func (v View) Stale() bool {
	v.heap.current()
	v.heap.mu.Lock()
	defer v.heap.mu.Unlock()
	return v.heap.gen != v.gen
}

// View returns the current view, re-acquiring it if memory grew.
func (h *Heap) View() View {
	buf := h.current()
	h.mu.Lock()
	defer h.mu.Unlock()
	return View{heap: h, buf: buf, gen: h.gen}
}

// Generation returns how many growths the heap has observed.
func (h *Heap) Generation() uint64 {
	h.current()
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.gen
}

// Refresh re-acquires the view. Called from the memory-growth notification.
func (h *Heap) Refresh() {
	h.current()
}

// Grow grows guest memory by deltaPages and re-acquires the view.
func (h *Heap) Grow(deltaPages uint32) (uint32, bool) {
	prev, ok := h.mem.Grow(deltaPages)
	h.current()
	return prev, ok
}

// Size returns the current memory size in bytes.
func (h *Heap) Size() uint32 {
	return uint32(len(h.current()))
}

func (h *Heap) current() []byte {
	h.mu.Lock()
	defer h.mu.Unlock()

	size := h.mem.Size()
	if uint32(len(h.view)) != size {
		h.view, _ = h.mem.Read(0, size)
		h.gen++
	}
	return h.view
}

func (h *Heap) slice(op string, ptr, n uint32) ([]byte, error) {
	buf := h.current()
	end := uint64(ptr) + uint64(n)
	if end > uint64(len(buf)) {
		return nil, &AccessError{Op: op, Ptr: ptr, Len: n, Size: uint32(len(buf))}
	}
	return buf[ptr:end], nil
}

// Slice returns guest bytes in place. The slice is invalidated by growth.
func (h *Heap) Slice(ptr, n uint32) ([]byte, error) {
	return h.slice("slice", ptr, n)
}

// Read copies n bytes out of guest memory.
func (h *Heap) Read(ptr, n uint32) ([]byte, error) {
	b, err := h.slice("read", ptr, n)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, b)
	return out, nil
}

// Write copies data into guest memory at ptr.
func (h *Heap) Write(ptr uint32, data []byte) error {
	b, err := h.slice("write", ptr, uint32(len(data)))
	if err != nil {
		return err
	}
	copy(b, data)
	return nil
}

// Uint32 reads a little-endian uint32.
func (h *Heap) Uint32(ptr uint32) (uint32, error) {
	b, err := h.slice("read", ptr, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// PutUint32 writes a little-endian uint32.
func (h *Heap) PutUint32(ptr, v uint32) error {
	b, err := h.slice("write", ptr, 4)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(b, v)
	return nil
}

// Int32 reads a little-endian int32.
func (h *Heap) Int32(ptr uint32) (int32, error) {
	v, err := h.Uint32(ptr)
	return int32(v), err
}

// PutInt32 writes a little-endian int32.
func (h *Heap) PutInt32(ptr uint32, v int32) error {
	return h.PutUint32(ptr, uint32(v))
}

// Float32 reads a little-endian float32.
func (h *Heap) Float32(ptr uint32) (float32, error) {
	v, err := h.Uint32(ptr)
	return math.Float32frombits(v), err
}

// PutFloat32 writes a little-endian float32.
func (h *Heap) PutFloat32(ptr uint32, v float32) error {
	return h.PutUint32(ptr, math.Float32bits(v))
}

// Float64 reads a little-endian float64.
func (h *Heap) Float64(ptr uint32) (float64, error) {
	b, err := h.slice("read", ptr, 8)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(b)), nil
}

// Load reads n elements of T starting at ptr.
func Load[T Element](h *Heap, ptr uint32, n int) ([]T, error) {
	size, err := byteLen[T](n)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return []T{}, nil
	}
	b, err := h.slice("read", ptr, size)
	if err != nil {
		return nil, err
	}
	out := make([]T, n)
	if _, err := binary.Decode(b, binary.LittleEndian, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Store writes data at ptr.
func Store[T Element](h *Heap, ptr uint32, data []T) error {
	if len(data) == 0 {
		return nil
	}
	size, err := byteLen[T](len(data))
	if err != nil {
		return err
	}
	b, err := h.slice("write", ptr, size)
	if err != nil {
		return err
	}
	_, err = binary.Encode(b, binary.LittleEndian, data)
	return err
}

// Malloc allocates size bytes through the guest allocator. A zero-byte request
// returns the null pointer without calling the allocator.
func (h *Heap) Malloc(ctx context.Context, size uint32) (uint32, error) {
	if size == 0 {
		return 0, nil
	}
	if h.alloc == nil {
		return 0, &AllocError{Size: size, Err: ErrNoAllocator}
	}
	ptr, err := h.alloc.Malloc(ctx, size)
	// malloc may have grown memory.
	h.current()
	if err != nil {
		return 0, &AllocError{Size: size, Err: err}
	}
	if ptr == 0 {
		return 0, &AllocError{Size: size, Err: ErrOutOfMemory}
	}
	return ptr, nil
}

// Free releases a pointer obtained from Malloc. Freeing the null pointer is a no-op.
func (h *Heap) Free(ctx context.Context, ptr uint32) error {
	if ptr == 0 || h.alloc == nil {
		return nil
	}
	return h.alloc.Free(ctx, ptr)
}

// AllocString stores s in a long-lived allocation owned by the caller.
func (h *Heap) AllocString(ctx context.Context, enc Encoding, s string) (uint32, error) {
	b, err := Encode(enc, s)
	if err != nil {
		return 0, err
	}
	ptr, err := h.Malloc(ctx, uint32(len(b)))
	if err != nil {
		return 0, err
	}
	if err := h.Write(ptr, b); err != nil {
		_ = h.Free(ctx, ptr)
		return 0, err
	}
	return ptr, nil
}

// ReadString decodes a terminated string. maxBytes bounds the scan; zero
// means up to the end of memory.
func (h *Heap) ReadString(enc Encoding, ptr, maxBytes uint32) (string, error) {
	buf := h.current()
	if uint64(ptr) > uint64(len(buf)) {
		return "", &AccessError{Op: "read", Ptr: ptr, Len: maxBytes, Size: uint32(len(buf))}
	}
	end := uint64(len(buf))
	if maxBytes != 0 && uint64(ptr)+uint64(maxBytes) < end {
		end = uint64(ptr) + uint64(maxBytes)
	}
	return Decode(enc, buf[ptr:end])
}

// ReadStringN decodes exactly byteLen bytes without looking for a terminator.
func (h *Heap) ReadStringN(enc Encoding, ptr, byteLen uint32) (string, error) {
	b, err := h.slice("read", ptr, byteLen)
	if err != nil {
		return "", err
	}
	return decodeRaw(enc, b)
}

type heapKey struct{}

// WithHeap binds a heap to ctx for host functions.
func WithHeap(ctx context.Context, h *Heap) context.Context {
	return context.WithValue(ctx, heapKey{}, h)
}

// HeapFrom returns the heap bound to ctx.
func HeapFrom(ctx context.Context) (*Heap, bool) {
	h, ok := ctx.Value(heapKey{}).(*Heap)
	return h, ok && h != nil
}

// MustHeap returns the heap bound to ctx and panics when there is none.
func MustHeap(ctx context.Context) *Heap {
	h, ok := HeapFrom(ctx)
	if !ok {
		panic(ErrNoHeap)
	}
	return h
}
