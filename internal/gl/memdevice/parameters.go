package memdevice

import (
	"github.com/woxQAQ/skwasm-bridge/internal/gl"
	"github.com/woxQAQ/skwasm-bridge/internal/handle"
)

// Strings reported by getParameter.
const (
	VendorString   = "Skwasm Bridge"
	RendererString = "Software Surface"
)

var bindingParameters = map[gl.Enum]bindingKey{
	gl.ArrayBufferBinding:        {handle.KindBuffer, gl.ArrayBuffer},
	gl.ElementArrayBufferBinding: {handle.KindBuffer, gl.ElementArrayBuffer},
	gl.PixelPackBufferBinding:    {handle.KindBuffer, gl.PixelPackBuffer},
	gl.PixelUnpackBufferBinding:  {handle.KindBuffer, gl.PixelUnpackBuffer},
	gl.TextureBinding2D:          {handle.KindTexture, gl.Texture2D},
	gl.FramebufferBinding:        {handle.KindFramebuffer, gl.Framebuffer},
	gl.RenderbufferBinding:       {handle.KindRenderbuffer, gl.Renderbuffer},
	gl.VertexArrayBinding:        {handle.KindVertexArray, 0},
}

func ref(kind handle.Kind, o gl.Object) any {
	if o == 0 {
		return nil
	}
	return gl.Ref{Kind: kind, Object: o}
}

// Parameter implements gl.Device. Unknown names return nil.
func (d *Device) Parameter(pname gl.Enum) any {
	if v, ok := d.parameters[pname]; ok {
		return v
	}
	if k, ok := bindingParameters[pname]; ok {
		return ref(k.kind, d.bindings[k])
	}

	switch pname {
	case gl.Vendor, gl.UnmaskedVendor:
		return VendorString
	case gl.Renderer, gl.UnmaskedRenderer:
		return RendererString
	case gl.Version:
		if d.Version >= 2 {
			return "WebGL 2.0"
		}
		return "WebGL 1.0"
	case gl.ShadingLanguageVersion:
		if d.Version >= 2 {
			return "WebGL GLSL ES 3.00"
		}
		return "WebGL GLSL ES 1.0"
	case gl.CurrentProgram:
		return ref(handle.KindProgram, d.current)
	case gl.Viewport:
		return []int32{d.viewport[0], d.viewport[1], d.viewport[2], d.viewport[3]}
	case gl.ColorClearValue:
		return []float32{d.clearColor[0], d.clearColor[1], d.clearColor[2], d.clearColor[3]}
	case gl.CompressedTextureFormats:
		return []uint32{}
	case gl.MaxTextureSize, gl.MaxRenderbuffer:
		return int32(4096)
	case gl.Samples:
		return int32(0)
	case gl.StencilBits:
		if d.Attributes.Stencil {
			return int32(8)
		}
		return int32(0)
	case gl.UnpackAlignment, gl.PackAlignment:
		return d.pixelStore[pname]
	case gl.ScissorTest, gl.Blend:
		return d.enabled[pname]
	}
	return nil
}
