package marshal

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseMatrix(t *testing.T) {
	for _, n := range []int{6, 9, 16} {
		m, err := ParseMatrix(make([]float32, n))
		if err != nil {
			t.Errorf("ParseMatrix(%d) failed: %v", n, err)
			continue
		}
		want := map[int]MatrixKind{6: KindAffine2D, 9: KindMatrix3x3, 16: KindMatrix4x4}[n]
		if m.Kind() != want {
			t.Errorf("ParseMatrix(%d).Kind() = %d, want %d", n, m.Kind(), want)
		}
	}

	_, err := ParseMatrix(make([]float32, 5))
	var sizeErr *MatrixSizeError
	if !errors.As(err, &sizeErr) {
		t.Fatalf("Expected *MatrixSizeError, got %v", err)
	}
	if sizeErr.Len != 5 {
		t.Errorf("MatrixSizeError.Len = %d, want 5", sizeErr.Len)
	}
	expected := "invalid matrix size 5 (must be 6, 9 or 16 elements)"
	if err.Error() != expected {
		t.Errorf("Error message = %s, want %s", err.Error(), expected)
	}
}

func TestMatrixConversions(t *testing.T) {
	a := Affine2D{1, 2, 3, 4, 5, 6}
	if diff := cmp.Diff(Matrix3x3{1, 2, 3, 4, 5, 6, 0, 0, 1}, a.To3x3()); diff != "" {
		t.Errorf("Affine2D.To3x3 (-want +got):\n%s", diff)
	}

	m := Matrix3x3{1, 2, 3, 4, 5, 6, 7, 8, 9}
	want4 := Matrix4x4{
		1, 2, 0, 3,
		4, 5, 0, 6,
		0, 0, 1, 0,
		7, 8, 0, 9,
	}
	if diff := cmp.Diff(want4, m.To4x4()); diff != "" {
		t.Errorf("Matrix3x3.To4x4 (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(m, m.To4x4().To3x3()); diff != "" {
		t.Errorf("3x3 round trip (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(Identity3x3, Affine2D{1, 0, 0, 0, 1, 0}.To3x3()); diff != "" {
		t.Errorf("Identity affine (-want +got):\n%s", diff)
	}
}

func TestScratchMatrix(t *testing.T) {
	h, _ := newTestHeap(t)

	err := h.With(context.Background(), func(s *Scratch) error {
		ptr, err := s.Matrix3x3(nil)
		if err != nil || ptr != 0 {
			t.Errorf("Matrix3x3(nil) = %d, %v", ptr, err)
		}

		ptr, err = s.Matrix4x4(Affine2D{2, 0, 10, 0, 2, 20})
		if err != nil {
			return err
		}
		got, err := Load[float32](h, ptr, 16)
		if err != nil {
			return err
		}
		want := []float32{2, 0, 0, 10, 0, 2, 0, 20, 0, 0, 1, 0, 0, 0, 0, 1}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("Staged 4x4 (-want +got):\n%s", diff)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestColorPack(t *testing.T) {
	tests := []struct {
		in   Color4f
		want uint32
	}{
		{Color4f{1, 0, 0, 1}, 0xffff0000},
		{Color4f{0, 0, 0, 0}, 0x00000000},
		{Color4f{2, -1, 0.5, 0.5}, 0x80ff0080},
	}
	for _, tt := range tests {
		if got := tt.in.Pack(); got != tt.want {
			t.Errorf("Pack(%v) = %#08x, want %#08x", tt.in, got, tt.want)
		}
	}

	if diff := cmp.Diff([]uint32{0xffff0000}, PackColors([]Color4f{{1, 0, 0, 1}})); diff != "" {
		t.Errorf("PackColors (-want +got):\n%s", diff)
	}
}
