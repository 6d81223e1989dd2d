package canvas

import (
	"image"
	"sync/atomic"

	xdraw "golang.org/x/image/draw"
)

// Bitmap is an immutable image snapshot, the analogue of an ImageBitmap. It
// travels between threads by transfer and is released with Close.
type Bitmap struct {
	img    *image.NRGBA
	closed atomic.Bool
}

// NewBitmap wraps straight-alpha RGBA rows of the given size. pix is copied.
func NewBitmap(width, height int, pix []byte) *Bitmap {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	copy(img.Pix, pix)
	return &Bitmap{img: img}
}

// Width returns the bitmap width, or 0 after Close.
func (b *Bitmap) Width() int {
	if b.closed.Load() {
		return 0
	}
	return b.img.Rect.Dx()
}

// Height returns the bitmap height, or 0 after Close.
func (b *Bitmap) Height() int {
	if b.closed.Load() {
		return 0
	}
	return b.img.Rect.Dy()
}

// Pixels returns the straight-alpha RGBA rows. The slice must not be modified.
func (b *Bitmap) Pixels() ([]byte, error) {
	if b.closed.Load() {
		return nil, ErrClosed
	}
	return b.img.Pix, nil
}

// Premultiplied returns the pixels with color channels scaled by alpha, the
// layout a texture upload with UNPACK_PREMULTIPLY_ALPHA expects.
func (b *Bitmap) Premultiplied() ([]byte, error) {
	if b.closed.Load() {
		return nil, ErrClosed
	}
	dst := image.NewRGBA(b.img.Rect)
	xdraw.Draw(dst, dst.Rect, b.img, image.Point{}, xdraw.Src)
	return dst.Pix, nil
}

// Close releases the bitmap. It is safe to call more than once.
func (b *Bitmap) Close() {
	b.closed.Store(true)
}

// Closed reports whether Close was called.
func (b *Bitmap) Closed() bool {
	return b.closed.Load()
}
