package gl

import (
	"context"
	"math"

	"github.com/woxQAQ/skwasm-bridge/internal/canvas"
	"github.com/woxQAQ/skwasm-bridge/internal/handle"
	"github.com/woxQAQ/skwasm-bridge/internal/marshal"
)

// components returns the number of channels of a pixel format.
func components(format Enum) uint64 {
	switch format {
	case RGB, SRGB, RGBInteger:
		return 3
	case RGBA, SRGBAlpha, RGBAInteger:
		return 4
	case LuminanceAlpha, RG, RGInteger:
		return 2
	}
	return 1
}

// typeSize returns the width of the array element type backing typ. Packed
// types still count one element per channel.
func typeSize(typ Enum) uint64 {
	switch typ {
	case Byte, UnsignedByte:
		return 1
	case Int, UnsignedInt, Float, UnsignedInt248, UnsignedInt2101010Rev,
		UnsignedInt10F11F11FRev, UnsignedInt5999Rev:
		return 4
	}
	return 2
}

// ImageSize returns the byte size of a width x height image whose rows are
// padded to align bytes. It reports false when the size does not fit in
// guest memory addresses.
func ImageSize(format, typ Enum, width, height, align int32) (uint32, bool) {
	if width <= 0 || height <= 0 {
		return 0, true
	}
	if align <= 0 {
		align = 1
	}
	a := uint64(align)
	row := uint64(width) * components(format) * typeSize(typ)
	row = (row + a - 1) / a * a
	size := uint64(height) * row
	if size > math.MaxUint32 {
		return 0, false
	}
	return uint32(size), true
}

// imageSize is ImageSize recording INVALID_VALUE on overflow.
func (t *Thread) imageSize(format, typ Enum, width, height, align int32) (uint32, bool) {
	size, ok := ImageSize(format, typ, width, height, align)
	if !ok {
		t.SetError(InvalidValue)
	}
	return size, ok
}

// texSource fills the source of img from ptr: an offset into the bound
// PIXEL_UNPACK buffer on version 2 contexts, otherwise size bytes of guest
// memory. A null pointer outside the buffer path leaves the source empty.
func (t *Thread) texSource(ctx context.Context, c *Context, img *TexImage, ptr, size uint32) bool {
	if c.Version >= 2 && c.unpackBuffer != handle.Null {
		img.FromBuffer = true
		img.Offset = ptr
		return true
	}
	if ptr == 0 {
		return true
	}
	data, err := marshal.MustHeap(ctx).Slice(ptr, size)
	if err != nil {
		t.SetError(InvalidValue)
		return false
	}
	img.Data = data
	return true
}

// TexImage2D specifies a texture image from guest memory.
func (t *Thread) TexImage2D(ctx context.Context, target Enum, level int32, internalFormat Enum, width, height, border int32, format, typ Enum, ptr uint32) {
	c := t.require()
	if c == nil {
		return
	}
	img := &TexImage{
		Target:         target,
		Level:          level,
		InternalFormat: internalFormat,
		Width:          width,
		Height:         height,
		Format:         format,
		Type:           typ,
	}
	size, ok := t.imageSize(format, typ, width, height, c.unpackAlignment)
	if ok && t.texSource(ctx, c, img, ptr, size) {
		c.Device.TexImage(img)
	}
}

// TexSubImage2D updates a region of a texture image.
func (t *Thread) TexSubImage2D(ctx context.Context, target Enum, level, x, y, width, height int32, format, typ Enum, ptr uint32) {
	c := t.require()
	if c == nil {
		return
	}
	img := &TexImage{
		Target: target,
		Level:  level,
		X:      x,
		Y:      y,
		Width:  width,
		Height: height,
		Format: format,
		Type:   typ,
		Sub:    true,
	}
	size, ok := t.imageSize(format, typ, width, height, c.unpackAlignment)
	if ok && t.texSource(ctx, c, img, ptr, size) {
		c.Device.TexImage(img)
	}
}

// CompressedTexImage2D specifies a compressed texture image of imageSize bytes.
func (t *Thread) CompressedTexImage2D(ctx context.Context, target Enum, level int32, internalFormat Enum, width, height, border int32, imageSize, ptr uint32) {
	c := t.require()
	if c == nil {
		return
	}
	img := &TexImage{
		Target:         target,
		Level:          level,
		InternalFormat: internalFormat,
		Width:          width,
		Height:         height,
		Compressed:     true,
	}
	if t.texSource(ctx, c, img, ptr, imageSize) {
		c.Device.TexImage(img)
	}
}

// CompressedTexSubImage2D updates a region of a compressed texture image.
func (t *Thread) CompressedTexSubImage2D(ctx context.Context, target Enum, level, x, y, width, height int32, format Enum, imageSize, ptr uint32) {
	c := t.require()
	if c == nil {
		return
	}
	img := &TexImage{
		Target:     target,
		Level:      level,
		X:          x,
		Y:          y,
		Width:      width,
		Height:     height,
		Format:     format,
		Sub:        true,
		Compressed: true,
	}
	if t.texSource(ctx, c, img, ptr, imageSize) {
		c.Device.TexImage(img)
	}
}

// ReadPixels reads a framebuffer region into guest memory, or into the bound
// PIXEL_PACK buffer at offset ptr on version 2 contexts.
func (t *Thread) ReadPixels(ctx context.Context, x, y, width, height int32, format, typ Enum, ptr uint32) {
	c := t.require()
	if c == nil {
		return
	}
	if c.Version >= 2 && c.packBuffer != handle.Null {
		c.Device.ReadPixels(x, y, width, height, format, typ, nil, ptr)
		return
	}
	size, ok := t.imageSize(format, typ, width, height, c.packAlignment)
	if !ok {
		return
	}
	dst, err := marshal.MustHeap(ctx).Slice(ptr, size)
	if err != nil {
		t.SetError(InvalidValue)
		return
	}
	c.Device.ReadPixels(x, y, width, height, format, typ, dst, 0)
}

// BufferData creates the store of the buffer bound to target from size bytes
// at ptr, or zero-filled when ptr is null.
func (t *Thread) BufferData(ctx context.Context, target Enum, size, ptr uint32, usage Enum) {
	c := t.require()
	if c == nil {
		return
	}
	var data []byte
	if ptr != 0 && size != 0 {
		var err error
		if data, err = marshal.MustHeap(ctx).Slice(ptr, size); err != nil {
			t.SetError(InvalidValue)
			return
		}
	}
	c.Device.BufferData(target, int(size), data, usage)
}

// BufferSubData copies size bytes at ptr into the bound buffer at offset.
// A null pointer is a no-op.
func (t *Thread) BufferSubData(ctx context.Context, target Enum, offset, size, ptr uint32) {
	c := t.require()
	if c == nil || ptr == 0 {
		return
	}
	data, err := marshal.MustHeap(ctx).Slice(ptr, size)
	if err != nil {
		t.SetError(InvalidValue)
		return
	}
	c.Device.BufferSubData(target, int(offset), data)
}

// PixelStorei sets a pixel storage parameter. Pack and unpack alignment are
// tracked because they size guest pixel buffers.
func (t *Thread) PixelStorei(pname Enum, param int32) {
	c := t.require()
	if c == nil {
		return
	}
	switch pname {
	case UnpackAlignment:
		c.unpackAlignment = param
	case PackAlignment:
		c.packAlignment = param
	}
	c.Device.Call("pixelStorei", float64(pname), float64(param))
}

// CreateTextureFromSource uploads a bitmap into a new RGBA texture with
// premultiplied alpha and returns its handle, or 0. The TEXTURE_2D binding is
// left empty.
func (t *Thread) CreateTextureFromSource(src *canvas.Bitmap, width, height int32) handle.Handle {
	c := t.require()
	if c == nil {
		return handle.Null
	}
	dev := c.Device
	o := dev.Create(handle.KindTexture, 0)
	if o == 0 {
		t.SetError(InvalidOperation)
		return handle.Null
	}

	dev.Bind(handle.KindTexture, Texture2D, o)
	dev.Call("pixelStorei", float64(UnpackPremultiplyAlphaWebGL), 1)
	dev.TexImage(&TexImage{
		Target:         Texture2D,
		InternalFormat: RGBA,
		Width:          width,
		Height:         height,
		Format:         RGBA,
		Type:           UnsignedByte,
		Source:         src,
	})
	dev.Call("pixelStorei", float64(UnpackPremultiplyAlphaWebGL), 0)
	dev.Bind(handle.KindTexture, Texture2D, 0)

	return c.register(handle.KindTexture, o)
}
