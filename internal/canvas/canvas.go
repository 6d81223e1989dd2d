// Package canvas provides the pixel surfaces GL contexts render into and the
// immutable bitmaps captured from them.
//
// A Canvas belongs to one thread. Control of a canvas can be transferred to
// another thread exactly once; after that the origin thread can no longer use
// it.
package canvas

import (
	"image"
	"image/color"
	"sync"

	xdraw "golang.org/x/image/draw"
)

// MaxDimension is the largest canvas width or height.
const MaxDimension = 16384

// CheckSize reports whether a width x height canvas can be created.
func CheckSize(width, height int) error {
	if width < 0 || height < 0 || width > MaxDimension || height > MaxDimension {
		return &SizeError{Width: width, Height: height}
	}
	return nil
}

func surface(width, height int) *image.NRGBA {
	return image.NewNRGBA(image.Rect(0, 0, min(max(width, 0), MaxDimension), min(max(height, 0), MaxDimension)))
}

// Canvas is an RGBA pixel surface owned by one thread.
type Canvas struct {
	ID uint32

	mu          sync.Mutex
	img         *image.NRGBA
	owner       uint32
	origin      uint32
	transferred bool
}

// New creates a canvas owned by thread owner. Sizes are clamped to
// [0, MaxDimension]; use CheckSize to reject them instead.
func New(id uint32, width, height int, owner uint32) *Canvas {
	return &Canvas{
		ID:     id,
		img:    surface(width, height),
		owner:  owner,
		origin: owner,
	}
}

// Width returns the surface width.
func (c *Canvas) Width() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.img.Rect.Dx()
}

// Height returns the surface height.
func (c *Canvas) Height() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.img.Rect.Dy()
}

// Owner returns the thread currently controlling the canvas.
func (c *Canvas) Owner() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.owner
}

// Transferred reports whether control was moved off the origin thread.
func (c *Canvas) Transferred() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transferred
}

// Check reports whether caller may use the canvas.
func (c *Canvas) Check(caller uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.checkLocked(caller)
}

func (c *Canvas) checkLocked(caller uint32) error {
	if caller == c.owner {
		return nil
	}
	return &TransferredError{Canvas: c.ID, Owner: c.owner, Caller: caller, Transferred: c.transferred}
}

// TransferControlToOffscreen hands the canvas to thread to. It can happen once.
func (c *Canvas) TransferControlToOffscreen(to uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.transferred {
		return &TransferredError{Canvas: c.ID, Owner: c.owner, Caller: to, Transferred: true}
	}
	c.owner = to
	c.transferred = true
	return nil
}

// Resize changes the surface size. As with an HTML canvas, resizing clears
// the contents even when the size is unchanged.
func (c *Canvas) Resize(width, height int) error {
	if err := CheckSize(width, height); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.img = surface(width, height)
	return nil
}

// Fill paints r with col, clipped to the surface.
func (c *Canvas) Fill(r image.Rectangle, col color.NRGBA) {
	c.mu.Lock()
	defer c.mu.Unlock()
	xdraw.Draw(c.img, r.Intersect(c.img.Rect), image.NewUniform(col), image.Point{}, xdraw.Src)
}

// ReadPixels copies the RGBA bytes of r into a fresh buffer with tightly
// packed rows. Pixels outside the surface read as zero.
func (c *Canvas) ReadPixels(r image.Rectangle) []byte {
	c.mu.Lock()
	defer c.mu.Unlock()

	dst := image.NewNRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	xdraw.Copy(dst, image.Point{}, c.img, r, xdraw.Src, nil)
	return dst.Pix
}

// WritePixels stores tightly packed RGBA rows at r.
func (c *Canvas) WritePixels(r image.Rectangle, pix []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	src := &image.NRGBA{Pix: pix, Stride: 4 * r.Dx(), Rect: image.Rect(0, 0, r.Dx(), r.Dy())}
	xdraw.Copy(c.img, r.Min, src, src.Rect, xdraw.Src, nil)
}

// Capture copies the top-left width x height region into a new bitmap.
// Areas beyond the surface are transparent.
func (c *Canvas) Capture(width, height int) *Bitmap {
	c.mu.Lock()
	defer c.mu.Unlock()

	dst := image.NewNRGBA(image.Rect(0, 0, max(width, 0), max(height, 0)))
	xdraw.Copy(dst, image.Point{}, c.img, dst.Rect, xdraw.Src, nil)
	return &Bitmap{img: dst}
}
