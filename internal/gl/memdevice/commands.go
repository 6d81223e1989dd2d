package memdevice

import (
	"image"
	"image/color"

	"go.uber.org/zap"

	"github.com/woxQAQ/skwasm-bridge/internal/gl"
	"github.com/woxQAQ/skwasm-bridge/internal/handle"
)

func arg(args []float64, i int) float64 {
	if i < len(args) {
		return args[i]
	}
	return 0
}

func channel(v float32) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 1:
		return 255
	}
	return uint8(v*255 + 0.5)
}

// Call implements gl.Device. Every command is recorded; the ones that change
// state the device tracks are applied.
func (d *Device) Call(name string, args ...float64) {
	d.calls = append(d.calls, Call{Name: name, Args: args})

	switch name {
	case "clearColor":
		for i := range d.clearColor {
			d.clearColor[i] = float32(arg(args, i))
		}
	case "clear":
		if uint32(arg(args, 0))&gl.ColorBufferBit != 0 {
			d.clear()
		}
	case "viewport":
		for i := range d.viewport {
			d.viewport[i] = int32(arg(args, i))
		}
	case "enable":
		d.enabled[gl.Enum(arg(args, 0))] = true
	case "disable":
		delete(d.enabled, gl.Enum(arg(args, 0)))
	case "pixelStorei":
		d.pixelStore[gl.Enum(arg(args, 0))] = int32(arg(args, 1))
	case "flush", "finish":
		for _, obj := range d.objects {
			if obj.kind == handle.KindSync {
				obj.signaled = true
			}
		}
	case "texStorage2D":
		tex := d.bound(handle.KindTexture, gl.Enum(arg(args, 0)))
		if tex == nil {
			d.setError(gl.InvalidOperation)
			return
		}
		tex.texture.allocate(int(arg(args, 3)), int(arg(args, 4)), gl.Enum(arg(args, 2)))
	case "renderbufferStorage", "renderbufferStorageMultisample":
		rb := d.bound(handle.KindRenderbuffer, gl.Enum(arg(args, 0)))
		if rb == nil {
			d.setError(gl.InvalidOperation)
			return
		}
		i := 1
		if name == "renderbufferStorageMultisample" {
			i = 2
		}
		rb.renderbuffer.format = gl.Enum(arg(args, i))
		rb.renderbuffer.width = int32(arg(args, i+1))
		rb.renderbuffer.height = int32(arg(args, i+2))
	case "drawArrays", "drawElements", "drawArraysInstanced", "drawElementsInstanced",
		"drawArraysInstancedBaseInstanceWEBGL", "drawElementsInstancedBaseVertexBaseInstanceWEBGL":
		if d.current == 0 {
			d.setError(gl.InvalidOperation)
		}
	default:
		d.logger.Debug("Recorded GL command", zap.String("name", name), zap.Float64s("args", args))
	}
}

// clear paints the clear color over the bound color target, clipped to the
// scissor box when the scissor test is on.
func (d *Device) clear() {
	col := color.NRGBA{
		R: channel(d.clearColor[0]),
		G: channel(d.clearColor[1]),
		B: channel(d.clearColor[2]),
		A: channel(d.clearColor[3]),
	}

	if fb := d.bound(handle.KindFramebuffer, gl.Framebuffer); fb != nil {
		if fb.framebuffer.kind != handle.KindTexture {
			return
		}
		if tex := d.lookup(handle.KindTexture, fb.framebuffer.attached); tex != nil {
			tex.texture.fill(col)
		}
		return
	}

	r := image.Rect(0, 0, d.Canvas.Width(), d.Canvas.Height())
	if d.enabled[gl.ScissorTest] {
		if box := d.CallsNamed("scissor"); len(box) > 0 {
			a := box[len(box)-1].Args
			x, y := int(arg(a, 0)), int(arg(a, 1))
			r = r.Intersect(image.Rect(x, y, x+int(arg(a, 2)), y+int(arg(a, 3))))
		}
	}
	d.Canvas.Fill(r, col)
}

// FenceSync implements gl.Device.
func (d *Device) FenceSync(condition gl.Enum, flags uint32) gl.Object {
	if condition != gl.SyncGPUCommandsComplete || flags != 0 {
		d.setError(gl.InvalidEnum)
		return 0
	}
	return d.Create(handle.KindSync, 0)
}

// ClientWaitSync implements gl.Device. Fences signal on flush and finish; the
// flush bit signals the waited fence immediately.
func (d *Device) ClientWaitSync(sync gl.Object, flags uint32, timeout uint64) gl.Enum {
	obj := d.lookup(handle.KindSync, sync)
	if obj == nil {
		d.setError(gl.InvalidValue)
		return gl.WaitFailed
	}
	switch {
	case obj.signaled:
		return gl.AlreadySignaled
	case flags&gl.SyncFlushCommandsBit != 0:
		obj.signaled = true
		return gl.ConditionSatisfied
	}
	return gl.TimeoutExpired
}

// WaitSync implements gl.Device.
func (d *Device) WaitSync(sync gl.Object, flags uint32, timeout uint64) {
	if d.lookup(handle.KindSync, sync) == nil {
		d.setError(gl.InvalidValue)
	}
}

// Signaled reports whether a fence has signaled.
func (d *Device) Signaled(sync gl.Object) bool {
	obj := d.lookup(handle.KindSync, sync)
	return obj != nil && obj.signaled
}
