package memdevice

import (
	"image"
	"image/color"

	"github.com/woxQAQ/skwasm-bridge/internal/gl"
	"github.com/woxQAQ/skwasm-bridge/internal/handle"
)

type buffer struct {
	data  []byte
	usage gl.Enum
}

// texture stores level 0 as tightly packed RGBA8 rows. Compressed uploads
// keep their raw bytes.
type texture struct {
	width, height int
	format        gl.Enum
	pix           []byte
	compressed    []byte
}

func (t *texture) allocate(width, height int, format gl.Enum) {
	t.width, t.height, t.format = max(width, 0), max(height, 0), format
	t.pix = make([]byte, 4*t.width*t.height)
	t.compressed = nil
}

func (t *texture) fill(c color.NRGBA) {
	for i := 0; i+3 < len(t.pix); i += 4 {
		t.pix[i], t.pix[i+1], t.pix[i+2], t.pix[i+3] = c.R, c.G, c.B, c.A
	}
}

// write copies tightly packed RGBA rows into the region at x, y.
func (t *texture) write(x, y, width, height int, src []byte) {
	for row := 0; row < height; row++ {
		ty := y + row
		if ty < 0 || ty >= t.height {
			continue
		}
		for col := 0; col < width; col++ {
			tx := x + col
			s := 4 * (row*width + col)
			if tx < 0 || tx >= t.width || s+4 > len(src) {
				continue
			}
			copy(t.pix[4*(ty*t.width+tx):], src[s:s+4])
		}
	}
}

func (t *texture) read(r image.Rectangle) []byte {
	out := make([]byte, 4*r.Dx()*r.Dy())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			if x < 0 || y < 0 || x >= t.width || y >= t.height {
				continue
			}
			d := 4 * ((y-r.Min.Y)*r.Dx() + (x - r.Min.X))
			copy(out[d:d+4], t.pix[4*(y*t.width+x):])
		}
	}
	return out
}

type framebuffer struct {
	kind     handle.Kind
	attached gl.Object
	level    int32
}

type renderbuffer struct {
	format        gl.Enum
	width, height int32
}

// BufferData implements gl.Device.
func (d *Device) BufferData(target gl.Enum, size int, data []byte, usage gl.Enum) {
	b := d.bound(handle.KindBuffer, target)
	if b == nil {
		d.setError(gl.InvalidOperation)
		return
	}
	if size < 0 {
		d.setError(gl.InvalidValue)
		return
	}
	store := make([]byte, size)
	copy(store, data)
	b.buffer.data, b.buffer.usage = store, usage
}

// BufferSubData implements gl.Device.
func (d *Device) BufferSubData(target gl.Enum, offset int, data []byte) {
	b := d.bound(handle.KindBuffer, target)
	if b == nil {
		d.setError(gl.InvalidOperation)
		return
	}
	if offset < 0 || offset+len(data) > len(b.buffer.data) {
		d.setError(gl.InvalidValue)
		return
	}
	copy(b.buffer.data[offset:], data)
}

// BufferParameter implements gl.Device.
func (d *Device) BufferParameter(target, pname gl.Enum) int32 {
	b := d.bound(handle.KindBuffer, target)
	if b == nil {
		d.setError(gl.InvalidOperation)
		return 0
	}
	switch pname {
	case gl.BufferSize:
		return int32(len(b.buffer.data))
	case gl.BufferUsage:
		return int32(b.buffer.usage)
	}
	d.setError(gl.InvalidEnum)
	return 0
}

// BufferContents returns the store of a buffer.
func (d *Device) BufferContents(o gl.Object) []byte {
	if b := d.lookup(handle.KindBuffer, o); b != nil {
		return b.buffer.data
	}
	return nil
}

func (d *Device) texSource(img *gl.TexImage) ([]byte, bool) {
	switch {
	case img.Source != nil:
		var (
			pix []byte
			err error
		)
		if d.pixelStore[gl.UnpackPremultiplyAlphaWebGL] != 0 {
			pix, err = img.Source.Premultiplied()
		} else {
			pix, err = img.Source.Pixels()
		}
		if err != nil {
			d.setError(gl.InvalidValue)
			return nil, false
		}
		return pix, true
	case img.FromBuffer:
		b := d.bound(handle.KindBuffer, gl.PixelUnpackBuffer)
		if b == nil || int(img.Offset) > len(b.buffer.data) {
			d.setError(gl.InvalidOperation)
			return nil, false
		}
		return b.buffer.data[img.Offset:], true
	}
	return img.Data, true
}

// TexImage implements gl.Device. Uncompressed data is kept only for
// RGBA/UNSIGNED_BYTE uploads; other formats allocate storage.
func (d *Device) TexImage(img *gl.TexImage) {
	tex := d.bound(handle.KindTexture, img.Target)
	if tex == nil {
		d.setError(gl.InvalidOperation)
		return
	}
	t := tex.texture
	src, ok := d.texSource(img)
	if !ok {
		return
	}

	if img.Compressed {
		if !img.Sub {
			t.allocate(int(img.Width), int(img.Height), img.InternalFormat)
		}
		t.compressed = append([]byte(nil), src...)
		return
	}
	if !img.Sub {
		if img.Level != 0 {
			return
		}
		t.allocate(int(img.Width), int(img.Height), img.InternalFormat)
	}
	if len(src) == 0 || img.Format != gl.RGBA || img.Type != gl.UnsignedByte {
		return
	}
	t.write(int(img.X), int(img.Y), int(img.Width), int(img.Height), src)
}

// TexturePixels returns the RGBA rows and size of a texture.
func (d *Device) TexturePixels(o gl.Object) (pix []byte, width, height int) {
	if tex := d.lookup(handle.KindTexture, o); tex != nil {
		return tex.texture.pix, tex.texture.width, tex.texture.height
	}
	return nil, 0, 0
}

// ReadPixels implements gl.Device for RGBA/UNSIGNED_BYTE reads of the bound
// color target. Rows are written top-down with PACK_ALIGNMENT padding.
func (d *Device) ReadPixels(x, y, width, height int32, format, typ gl.Enum, dst []byte, offset uint32) {
	if format != gl.RGBA || typ != gl.UnsignedByte {
		d.setError(gl.InvalidOperation)
		return
	}
	r := image.Rect(int(x), int(y), int(x+width), int(y+height))

	var pix []byte
	if fb := d.bound(handle.KindFramebuffer, gl.Framebuffer); fb != nil {
		tex := d.lookup(handle.KindTexture, fb.framebuffer.attached)
		if tex == nil || fb.framebuffer.kind != handle.KindTexture {
			d.setError(gl.InvalidFramebufferOperation)
			return
		}
		pix = tex.texture.read(r)
	} else {
		pix = d.Canvas.ReadPixels(r)
	}

	if dst == nil {
		b := d.bound(handle.KindBuffer, gl.PixelPackBuffer)
		if b == nil {
			d.setError(gl.InvalidOperation)
			return
		}
		if int(offset) > len(b.buffer.data) {
			d.setError(gl.InvalidValue)
			return
		}
		dst = b.buffer.data[offset:]
	}

	align := int(max(d.pixelStore[gl.PackAlignment], 1))
	rowLen := 4 * int(width)
	stride := (rowLen + align - 1) / align * align
	for row := 0; row < int(height); row++ {
		start := row * stride
		if start >= len(dst) {
			break
		}
		copy(dst[start:], pix[row*rowLen:(row+1)*rowLen])
	}
}

// FramebufferTexture2D implements gl.Device.
func (d *Device) FramebufferTexture2D(target, attachment, textarget gl.Enum, texture gl.Object, level int32) {
	fb := d.bound(handle.KindFramebuffer, target)
	if fb == nil {
		d.setError(gl.InvalidOperation)
		return
	}
	if texture != 0 && d.lookup(handle.KindTexture, texture) == nil {
		d.setError(gl.InvalidOperation)
		return
	}
	if attachment != gl.ColorAttachment0 {
		return
	}
	fb.framebuffer.kind, fb.framebuffer.attached, fb.framebuffer.level = handle.KindTexture, texture, level
	if texture == 0 {
		fb.framebuffer.kind = 0
	}
}

// FramebufferRenderbuffer implements gl.Device.
func (d *Device) FramebufferRenderbuffer(target, attachment, rbtarget gl.Enum, rb gl.Object) {
	fb := d.bound(handle.KindFramebuffer, target)
	if fb == nil {
		d.setError(gl.InvalidOperation)
		return
	}
	if rb != 0 && d.lookup(handle.KindRenderbuffer, rb) == nil {
		d.setError(gl.InvalidOperation)
		return
	}
	if attachment != gl.ColorAttachment0 {
		return
	}
	fb.framebuffer.kind, fb.framebuffer.attached = handle.KindRenderbuffer, rb
	if rb == 0 {
		fb.framebuffer.kind = 0
	}
}

// CheckFramebufferStatus implements gl.Device. The default framebuffer is
// always complete.
func (d *Device) CheckFramebufferStatus(target gl.Enum) gl.Enum {
	fb := d.bound(handle.KindFramebuffer, target)
	if fb == nil {
		return gl.FramebufferComplete
	}
	if fb.framebuffer.attached == 0 {
		return gl.FramebufferIncompleteMissingAttachment
	}
	return gl.FramebufferComplete
}

// FramebufferAttachmentParameter implements gl.Device.
func (d *Device) FramebufferAttachmentParameter(target, attachment, pname gl.Enum) any {
	fb := d.bound(handle.KindFramebuffer, target)
	if fb == nil || attachment != gl.ColorAttachment0 {
		d.setError(gl.InvalidOperation)
		return nil
	}
	switch pname {
	case gl.FramebufferAttachmentObjectType:
		switch fb.framebuffer.kind {
		case handle.KindTexture:
			return gl.Texture
		case handle.KindRenderbuffer:
			return gl.Renderbuffer
		}
		return gl.None
	case gl.FramebufferAttachmentObjectName:
		if fb.framebuffer.attached == 0 {
			return nil
		}
		return gl.Ref{Kind: fb.framebuffer.kind, Object: fb.framebuffer.attached}
	}
	d.setError(gl.InvalidEnum)
	return nil
}

// RenderbufferParameter implements gl.Device.
func (d *Device) RenderbufferParameter(target, pname gl.Enum) int32 {
	rb := d.bound(handle.KindRenderbuffer, target)
	if rb == nil {
		d.setError(gl.InvalidOperation)
		return 0
	}
	switch pname {
	case gl.RenderbufferWidth:
		return rb.renderbuffer.width
	case gl.RenderbufferHeight:
		return rb.renderbuffer.height
	case gl.RenderbufferInternalFormat:
		return int32(rb.renderbuffer.format)
	}
	d.setError(gl.InvalidEnum)
	return 0
}
