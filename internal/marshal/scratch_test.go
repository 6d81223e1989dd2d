package marshal

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/woxQAQ/skwasm-bridge/internal/wasm/wasmtest"
)

func newTestHeap(t *testing.T) (*Heap, *wasmtest.Bump) {
	t.Helper()
	mem := wasmtest.NewMemory(t, 1)
	bump := wasmtest.NewBump(mem)
	return NewHeap(mem, bump), bump
}

func TestWithReleasesOnSuccessAndError(t *testing.T) {
	h, bump := newTestHeap(t)
	ctx := context.Background()

	for i := 0; i < 100; i++ {
		err := h.With(ctx, func(s *Scratch) error {
			if _, err := Copy(s, []float32{1, 2, 3}); err != nil {
				return err
			}
			if _, err := s.String(UTF8, "glyphs"); err != nil {
				return err
			}
			return nil
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	failure := errors.New("draw failed")
	err := h.With(ctx, func(s *Scratch) error {
		if _, err := s.Alloc(32); err != nil {
			return err
		}
		return failure
	})
	if !errors.Is(err, failure) {
		t.Errorf("With error = %v, want %v", err, failure)
	}

	if bump.Live() != 0 {
		t.Errorf("Leaked %d allocations", bump.Live())
	}
}

func TestWithReleasesOnPanic(t *testing.T) {
	h, bump := newTestHeap(t)

	func() {
		defer func() {
			if recover() == nil {
				t.Fatal("Expected panic to propagate")
			}
		}()
		_ = h.With(context.Background(), func(s *Scratch) error {
			if _, err := s.Alloc(64); err != nil {
				return err
			}
			panic("native call aborted")
		})
	}()

	if bump.Live() != 0 {
		t.Errorf("Leaked %d allocations after panic", bump.Live())
	}
}

func TestScratchReleaseIdempotent(t *testing.T) {
	h, _ := newTestHeap(t)
	s := h.Scope(context.Background())

	if _, err := s.Alloc(16); err != nil {
		t.Fatal(err)
	}
	if err := s.Release(); err != nil {
		t.Fatal(err)
	}
	if err := s.Release(); err != nil {
		t.Errorf("Second release failed: %v", err)
	}
	if _, err := s.Alloc(16); !errors.Is(err, ErrReleased) {
		t.Errorf("Alloc after release = %v, want ErrReleased", err)
	}
}

func TestPlaceEmptyIsNull(t *testing.T) {
	h, bump := newTestHeap(t)
	s := h.Scope(context.Background())
	defer s.Release()

	ptr, err := Place[float32](s, Slice[float32](nil))
	if err != nil || ptr != 0 {
		t.Errorf("Place(nil) = %d, %v", ptr, err)
	}
	ptr, err = Place[uint16](s, nil)
	if err != nil || ptr != 0 {
		t.Errorf("Place(nil source) = %d, %v", ptr, err)
	}
	if mallocs, _ := bump.Counts(); mallocs != 0 {
		t.Errorf("Empty input allocated %d blocks", mallocs)
	}
}

func TestPlacePinnedPassesThrough(t *testing.T) {
	h, bump := newTestHeap(t)
	ctx := context.Background()

	pinned, err := Pin[uint32](ctx, h, 4)
	if err != nil {
		t.Fatal(err)
	}
	if err := pinned.Store([]uint32{7, 8, 9, 10}); err != nil {
		t.Fatal(err)
	}

	err = h.With(ctx, func(s *Scratch) error {
		ptr, err := Place[uint32](s, pinned)
		if err != nil {
			return err
		}
		if ptr != pinned.Ptr() {
			t.Errorf("Pinned pointer = %d, want %d", ptr, pinned.Ptr())
		}
		if s.Len() != 0 {
			t.Errorf("Scratch owns %d allocations for a pinned array", s.Len())
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	if bump.Live() != 1 {
		t.Errorf("Live = %d, want only the pinned array", bump.Live())
	}
	got, err := pinned.Load()
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]uint32{7, 8, 9, 10}, got); diff != "" {
		t.Errorf("Pinned contents (-want +got):\n%s", diff)
	}

	if err := pinned.Free(ctx); err != nil {
		t.Fatal(err)
	}
	if bump.Live() != 0 {
		t.Errorf("Live after Free = %d", bump.Live())
	}
}

func TestPinnedStoreCapacity(t *testing.T) {
	h, _ := newTestHeap(t)

	pinned, err := Pin[float32](context.Background(), h, 2)
	if err != nil {
		t.Fatal(err)
	}
	var capErr *CapacityError
	if err := pinned.Store([]float32{1, 2, 3}); !errors.As(err, &capErr) {
		t.Errorf("Expected *CapacityError, got %v", err)
	}
}

func TestSliceCopiedIntoScratch(t *testing.T) {
	h, _ := newTestHeap(t)

	err := h.With(context.Background(), func(s *Scratch) error {
		ptr, err := Place[int32](s, Slice[int32]{-1, 2, -3})
		if err != nil {
			return err
		}
		got, err := Load[int32](h, ptr, 3)
		if err != nil {
			return err
		}
		if diff := cmp.Diff([]int32{-1, 2, -3}, got); diff != "" {
			t.Errorf("Staged slice (-want +got):\n%s", diff)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}
