package gl

import (
	"github.com/woxQAQ/skwasm-bridge/internal/handle"
)

// GenObjects creates n objects of kind. A failed creation records
// INVALID_OPERATION and yields the null handle in its place.
func (t *Thread) GenObjects(kind handle.Kind, n int) []handle.Handle {
	c := t.require()
	out := make([]handle.Handle, n)
	if c == nil {
		return out
	}
	for i := range out {
		o := c.Device.Create(kind, 0)
		if o == 0 {
			t.SetError(InvalidOperation)
			continue
		}
		out[i] = c.register(kind, o)
	}
	return out
}

// DeleteObjects deletes the live handles in hs; others are ignored. Deleting
// a buffer also clears every binding the shim tracks for it.
func (t *Thread) DeleteObjects(kind handle.Kind, hs []handle.Handle) {
	c := t.require()
	if c == nil {
		return
	}
	for _, h := range hs {
		o, ok := c.unregister(kind, h)
		if !ok {
			continue
		}
		c.Device.Delete(kind, o)

		switch kind {
		case handle.KindBuffer:
			for _, b := range []*handle.Handle{&c.packBuffer, &c.unpackBuffer, &c.arrayBuffer, &c.elementBuffer} {
				if *b == h {
					*b = handle.Null
				}
			}
		case handle.KindProgram:
			delete(c.programs, h)
			if c.currentProgram == h {
				c.currentProgram = handle.Null
			}
		}
	}
}

// Bind binds the object behind h to target. Unknown and deleted handles bind
// the null object.
func (t *Thread) Bind(kind handle.Kind, target Enum, h handle.Handle) {
	c := t.require()
	if c == nil {
		return
	}
	o := c.Lookup(kind, h)
	if o == 0 {
		h = handle.Null
	}

	if kind == handle.KindBuffer {
		switch target {
		case PixelPackBuffer:
			c.packBuffer = h
		case PixelUnpackBuffer:
			c.unpackBuffer = h
		case ArrayBuffer:
			c.arrayBuffer = h
		case ElementArrayBuffer:
			c.elementBuffer = h
		}
	}
	c.Device.Bind(kind, target, o)
}

// BoundBuffer returns the handle the shim tracks for a buffer target.
func (t *Thread) BoundBuffer(target Enum) handle.Handle {
	c := t.current
	if c == nil {
		return handle.Null
	}
	switch target {
	case PixelPackBuffer:
		return c.packBuffer
	case PixelUnpackBuffer:
		return c.unpackBuffer
	case ArrayBuffer:
		return c.arrayBuffer
	case ElementArrayBuffer:
		return c.elementBuffer
	}
	return handle.Null
}

// CreateProgram creates a program and returns its handle, or 0.
func (t *Thread) CreateProgram() handle.Handle {
	c := t.require()
	if c == nil {
		return handle.Null
	}
	o := c.Device.Create(handle.KindProgram, 0)
	if o == 0 {
		return handle.Null
	}
	h := c.register(handle.KindProgram, o)
	c.programs[h] = newProgramInfo()
	return h
}

// CreateShader creates a shader of the given type and returns its handle, or 0.
func (t *Thread) CreateShader(shaderType Enum) handle.Handle {
	c := t.require()
	if c == nil {
		return handle.Null
	}
	o := c.Device.Create(handle.KindShader, shaderType)
	if o == 0 {
		return handle.Null
	}
	return c.register(handle.KindShader, o)
}

// deleteOne deletes a single program, shader or sync. The null handle is a
// no-op; an unknown handle records INVALID_VALUE.
func (t *Thread) deleteOne(kind handle.Kind, h handle.Handle) {
	if h == handle.Null {
		return
	}
	c := t.require()
	if c == nil {
		return
	}
	if !c.Table(kind).Contains(h) {
		t.SetError(InvalidValue)
		return
	}
	t.DeleteObjects(kind, []handle.Handle{h})
}

// DeleteProgram deletes a program.
func (t *Thread) DeleteProgram(h handle.Handle) { t.deleteOne(handle.KindProgram, h) }

// DeleteShader deletes a shader.
func (t *Thread) DeleteShader(h handle.Handle) { t.deleteOne(handle.KindShader, h) }

// DeleteSync deletes a sync object.
func (t *Thread) DeleteSync(h handle.Handle) { t.deleteOne(handle.KindSync, h) }

// FenceSync inserts a fence and returns its handle, or 0 when the device
// could not create one.
func (t *Thread) FenceSync(condition Enum, flags uint32) handle.Handle {
	c := t.require()
	if c == nil {
		return handle.Null
	}
	o := c.Device.FenceSync(condition, flags)
	if o == 0 {
		return handle.Null
	}
	return c.register(handle.KindSync, o)
}

// ClientWaitSync waits on a fence. The guest passes the 64-bit timeout as two
// 32-bit halves.
func (t *Thread) ClientWaitSync(h handle.Handle, flags uint32, timeoutLo, timeoutHi uint32) Enum {
	c := t.require()
	if c == nil {
		return WaitFailed
	}
	return c.Device.ClientWaitSync(c.Lookup(handle.KindSync, h), flags, uint64(timeoutHi)<<32|uint64(timeoutLo))
}

// WaitSync makes the device wait on a fence.
func (t *Thread) WaitSync(h handle.Handle, flags uint32, timeoutLo, timeoutHi uint32) {
	c := t.require()
	if c == nil {
		return
	}
	c.Device.WaitSync(c.Lookup(handle.KindSync, h), flags, uint64(timeoutHi)<<32|uint64(timeoutLo))
}

// IsObject reports whether h names a live object the device recognizes.
func (t *Thread) IsObject(kind handle.Kind, h handle.Handle) bool {
	c := t.require()
	if c == nil {
		return false
	}
	o := c.Lookup(kind, h)
	if o == 0 {
		return false
	}
	return c.Device.Is(kind, o)
}

// UseProgram makes h the current program. An unknown handle uses none.
func (t *Thread) UseProgram(h handle.Handle) {
	c := t.require()
	if c == nil {
		return
	}
	o := c.Lookup(handle.KindProgram, h)
	if o == 0 {
		h = handle.Null
	}
	c.Device.UseProgram(o)
	c.currentProgram = h
}

// AttachShader attaches a shader to a program.
func (t *Thread) AttachShader(program, shader handle.Handle) {
	c := t.require()
	if c == nil {
		return
	}
	c.Device.AttachShader(c.Lookup(handle.KindProgram, program), c.Lookup(handle.KindShader, shader))
}

// BindAttribLocation binds an attribute name to index.
func (t *Thread) BindAttribLocation(program handle.Handle, index uint32, name string) {
	c := t.require()
	if c == nil {
		return
	}
	c.Device.BindAttribLocation(c.Lookup(handle.KindProgram, program), index, name)
}

// ShaderSource replaces a shader's source.
func (t *Thread) ShaderSource(shader handle.Handle, src string) {
	c := t.require()
	if c == nil {
		return
	}
	c.Device.ShaderSource(c.Lookup(handle.KindShader, shader), src)
}

// CompileShader compiles a shader.
func (t *Thread) CompileShader(shader handle.Handle) {
	c := t.require()
	if c == nil {
		return
	}
	c.Device.CompileShader(c.Lookup(handle.KindShader, shader))
}

// LinkProgram links a program and drops its cached uniform locations.
func (t *Thread) LinkProgram(program handle.Handle) {
	c := t.require()
	if c == nil {
		return
	}
	c.Device.LinkProgram(c.Lookup(handle.KindProgram, program))
	if info, ok := c.programs[program]; ok {
		info.reset()
	}
}

// FramebufferTexture2D attaches a texture level to the bound framebuffer.
func (t *Thread) FramebufferTexture2D(target, attachment, textarget Enum, texture handle.Handle, level int32) {
	c := t.require()
	if c == nil {
		return
	}
	c.Device.FramebufferTexture2D(target, attachment, textarget, c.Lookup(handle.KindTexture, texture), level)
}

// FramebufferRenderbuffer attaches a renderbuffer to the bound framebuffer.
func (t *Thread) FramebufferRenderbuffer(target, attachment, rbtarget Enum, rb handle.Handle) {
	c := t.require()
	if c == nil {
		return
	}
	c.Device.FramebufferRenderbuffer(target, attachment, rbtarget, c.Lookup(handle.KindRenderbuffer, rb))
}

// CheckFramebufferStatus returns the completeness of the bound framebuffer.
func (t *Thread) CheckFramebufferStatus(target Enum) Enum {
	c := t.require()
	if c == nil {
		return 0
	}
	return c.Device.CheckFramebufferStatus(target)
}

// SamplerParameter sets a sampler parameter. name is the WebGL method,
// samplerParameteri or samplerParameterf.
func (t *Thread) SamplerParameter(name string, sampler handle.Handle, pname Enum, value float64) {
	c := t.require()
	if c == nil {
		return
	}
	c.Device.Call(name, float64(c.Lookup(handle.KindSampler, sampler)), float64(pname), value)
}

// Call forwards a numeric-only command to the current device.
func (t *Thread) Call(name string, args ...float64) {
	c := t.require()
	if c == nil {
		return
	}
	c.Device.Call(name, args...)
}
