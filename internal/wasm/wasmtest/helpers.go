package wasmtest

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

// Instantiate runs bin in a fresh wazero runtime closed at test cleanup.
func Instantiate(t testing.TB, bin []byte) api.Module {
	t.Helper()

	ctx := context.Background()
	r := wazero.NewRuntime(ctx)
	t.Cleanup(func() {
		_ = r.Close(ctx)
	})

	mod, err := r.Instantiate(ctx, bin)
	if err != nil {
		t.Fatalf("Failed to instantiate test module: %v", err)
	}
	return mod
}

// NewMemory returns the exported memory of a fresh Memory(pages) module.
func NewMemory(t testing.TB, pages uint32) api.Memory {
	t.Helper()
	return Instantiate(t, Memory(pages)).Memory()
}

// Bump is a host-side bump allocator over a guest memory. It grows the
// memory page by page and tracks live allocations so tests can detect leaks.
type Bump struct {
	mem api.Memory

	mu      sync.Mutex
	next    uint32
	live    map[uint32]uint32
	mallocs int
	frees   int
}

// NewBump creates an allocator handing out addresses from 1024.
func NewBump(mem api.Memory) *Bump {
	return &Bump{mem: mem, next: 1024, live: make(map[uint32]uint32)}
}

// Malloc returns 0 when the memory cannot grow.
func (b *Bump) Malloc(_ context.Context, size uint32) (uint32, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ptr := b.next
	end := (ptr + size + 7) &^ 7
	for end > b.mem.Size() {
		if _, ok := b.mem.Grow(1); !ok {
			return 0, nil
		}
	}
	b.next = end
	b.live[ptr] = size
	b.mallocs++
	return ptr, nil
}

func (b *Bump) Free(_ context.Context, ptr uint32) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.live[ptr]; !ok {
		return fmt.Errorf("free of unallocated pointer %d", ptr)
	}
	delete(b.live, ptr)
	b.frees++
	return nil
}

// Live returns the number of allocations not yet freed.
func (b *Bump) Live() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.live)
}

// Counts returns the total malloc and free calls.
func (b *Bump) Counts() (mallocs, frees int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.mallocs, b.frees
}

// CallHost invokes the host function exported by mod as name, the way a
// guest import call would. Host modules refuse ExportedFunction, so the Go
// function is taken from the export definition. A panic in the function is
// returned as an error, as wazero does for guest calls.
func CallHost(ctx context.Context, mod api.Module, name string, params ...uint64) (results []uint64, err error) {
	def, ok := mod.ExportedFunctionDefinitions()[name]
	if !ok {
		return nil, fmt.Errorf("%s does not export %s", mod.Name(), name)
	}
	if len(params) != len(def.ParamTypes()) {
		return nil, fmt.Errorf("%s expects %d params, got %d", name, len(def.ParamTypes()), len(params))
	}

	stack := make([]uint64, max(len(params), len(def.ResultTypes())))
	copy(stack, params)

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s panicked: %v", name, r)
		}
	}()
	switch fn := def.GoFunction().(type) {
	case api.GoModuleFunction:
		fn.Call(ctx, mod, stack)
	case api.GoFunction:
		fn.Call(ctx, stack)
	default:
		return nil, fmt.Errorf("%s is not a host function", name)
	}
	return stack[:len(def.ResultTypes())], nil
}

// Exports reports whether mod exports a function called name.
func Exports(mod api.Module, name string) bool {
	_, ok := mod.ExportedFunctionDefinitions()[name]
	return ok
}
