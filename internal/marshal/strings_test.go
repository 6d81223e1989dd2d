package marshal

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestStringRoundTrip(t *testing.T) {
	h, bump := newTestHeap(t)
	ctx := context.Background()

	tests := []struct {
		name string
		enc  Encoding
		in   string
	}{
		{"utf8 ascii", UTF8, "hello"},
		{"utf8 empty", UTF8, ""},
		{"utf8 multibyte", UTF8, "héllo wörld"},
		{"utf16 bmp", UTF16, "Ārabic ع"},
		{"utf16 astral", UTF16, "emoji 😀 pair"},
		{"utf32 astral", UTF32, "𝄞 clef"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := h.With(ctx, func(s *Scratch) error {
				ptr, err := s.String(tt.enc, tt.in)
				if err != nil {
					return err
				}
				got, err := h.ReadString(tt.enc, ptr, 0)
				if err != nil {
					return err
				}
				if got != tt.in {
					t.Errorf("ReadString = %q, want %q", got, tt.in)
				}
				return nil
			})
			if err != nil {
				t.Fatal(err)
			}
		})
	}

	if bump.Live() != 0 {
		t.Errorf("Leaked %d allocations", bump.Live())
	}
}

func TestEncodeUTF16SurrogatePair(t *testing.T) {
	b, err := Encode(UTF16, "😀")
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{0x3d, 0xd8, 0x00, 0xde, 0x00, 0x00}
	if diff := cmp.Diff(want, b); diff != "" {
		t.Errorf("Encode mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeAlignedTerminator(t *testing.T) {
	// U+0100 is 00 01 in UTF-16LE: the zero byte is not a terminator.
	got, err := Decode(UTF16, []byte{0x00, 0x01, 0x41, 0x00, 0x00, 0x00, 0x42, 0x00})
	if err != nil {
		t.Fatal(err)
	}
	if got != "ĀA" {
		t.Errorf("Decode = %q, want %q", got, "ĀA")
	}
}

func TestStringNPreservesEmbeddedNUL(t *testing.T) {
	h, _ := newTestHeap(t)

	for _, enc := range []Encoding{UTF8, UTF16, UTF32} {
		err := h.With(context.Background(), func(s *Scratch) error {
			in := "a\x00b"
			ptr, n, err := s.StringN(enc, in)
			if err != nil {
				return err
			}
			if want := uint32(3 * enc.UnitSize()); n != want {
				t.Errorf("%s: byte length = %d, want %d", enc, n, want)
			}
			got, err := h.ReadStringN(enc, ptr, n)
			if err != nil {
				return err
			}
			if got != in {
				t.Errorf("%s: ReadStringN = %q, want %q", enc, got, in)
			}
			return nil
		})
		if err != nil {
			t.Fatal(err)
		}
	}
}

func TestReadStringMaxBytes(t *testing.T) {
	h, _ := newTestHeap(t)
	ptr, err := h.AllocString(context.Background(), UTF8, "hello")
	if err != nil {
		t.Fatal(err)
	}

	got, err := h.ReadString(UTF8, ptr, 3)
	if err != nil {
		t.Fatal(err)
	}
	if got != "hel" {
		t.Errorf("ReadString = %q, want %q", got, "hel")
	}
}
