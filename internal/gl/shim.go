package gl

import (
	"context"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/woxQAQ/skwasm-bridge/internal/handle"
	"github.com/woxQAQ/skwasm-bridge/internal/marshal"
)

var (
	i32 = api.ValueTypeI32
	f32 = api.ValueTypeF32
)

// Shim exports the GL entry points an engine build imports from env. Each
// function resolves the calling thread with MustThread and guest memory with
// marshal.MustHeap.
type Shim struct {
	logger *zap.Logger
}

// NewShim creates the GL host function exporter.
func NewShim(logger *zap.Logger) *Shim {
	return &Shim{logger: logger.With(zap.String("component", "gl-shim"))}
}

// ExportFunctions registers every GL entry point on builder.
func (s *Shim) ExportFunctions(builder wazero.HostModuleBuilder) {
	s.register(&exports{builder: builder})
}

// ExportedNames lists the functions ExportFunctions registers.
func (s *Shim) ExportedNames() []string {
	e := &exports{}
	s.register(e)
	return e.names
}

type exports struct {
	builder wazero.HostModuleBuilder
	names   []string
}

func (e *exports) fn(name string, f any) {
	e.names = append(e.names, name)
	if e.builder != nil {
		e.builder.NewFunctionBuilder().WithFunc(f).Export(name)
	}
}

// call exports name as a forward of method with numeric arguments.
func (e *exports) call(name, method string, params ...api.ValueType) {
	e.names = append(e.names, name)
	if e.builder == nil {
		return
	}
	e.builder.NewFunctionBuilder().WithGoFunction(api.GoFunc(func(ctx context.Context, stack []uint64) {
		args := make([]float64, len(params))
		for i, p := range params {
			if p == f32 {
				args[i] = float64(api.DecodeF32(stack[i]))
			} else {
				args[i] = float64(api.DecodeI32(stack[i]))
			}
		}
		MustThread(ctx, name).Call(method, args...)
	}), params, nil).Export(name)
}

func repeat(k int, t api.ValueType) []api.ValueType {
	out := make([]api.ValueType, k)
	for i := range out {
		out[i] = t
	}
	return out
}

func loadHandles(ctx context.Context, t *Thread, count int32, ptr uint32) []handle.Handle {
	if count <= 0 {
		return nil
	}
	raw, err := marshal.Load[uint32](marshal.MustHeap(ctx), ptr, int(count))
	if err != nil {
		t.SetError(InvalidValue)
		return nil
	}
	hs := make([]handle.Handle, len(raw))
	for i, v := range raw {
		hs[i] = handle.Handle(v)
	}
	return hs
}

func loadFloat64s[T marshal.Element](ctx context.Context, t *Thread, count int32, ptr uint32) ([]float64, bool) {
	if count <= 0 {
		return nil, true
	}
	raw, err := marshal.Load[T](marshal.MustHeap(ctx), ptr, int(count))
	if err != nil {
		t.SetError(InvalidValue)
		return nil, false
	}
	out := make([]float64, len(raw))
	for i, v := range raw {
		out[i] = float64(v)
	}
	return out, true
}

func b2u(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

func (s *Shim) register(e *exports) {
	s.registerContext(e)
	s.registerObjects(e)
	s.registerState(e)
	s.registerQueries(e)
	s.registerPixels(e)
	s.registerShaders(e)
	s.registerUniforms(e)
	s.registerDraws(e)
}

func (s *Shim) registerContext(e *exports) {
	e.fn("emscripten_webgl_make_context_current", func(ctx context.Context, h uint32) int32 {
		return MustThread(ctx, "emscripten_webgl_make_context_current").MakeCurrent(handle.Handle(h))
	})
	e.fn("emscripten_webgl_get_current_context", func(ctx context.Context) uint32 {
		return uint32(MustThread(ctx, "emscripten_webgl_get_current_context").CurrentHandle())
	})
	e.fn("emscripten_webgl_enable_extension", func(ctx context.Context, h, namePtr uint32) uint32 {
		t := MustThread(ctx, "emscripten_webgl_enable_extension")
		name, err := marshal.MustHeap(ctx).ReadString(marshal.UTF8, namePtr, 0)
		if err != nil {
			s.logger.Error("Failed to read extension name", zap.Error(err))
			return 0
		}
		return b2u(t.EnableExtension(handle.Handle(h), name))
	})
	e.fn("glGetError", func(ctx context.Context) uint32 {
		return uint32(MustThread(ctx, "glGetError").GetError())
	})
}

func (s *Shim) registerObjects(e *exports) {
	gen := func(name string, kind handle.Kind) {
		e.fn(name, func(ctx context.Context, count int32, ptr uint32) {
			t := MustThread(ctx, name)
			hs := t.GenObjects(kind, int(max(count, 0)))
			raw := make([]uint32, len(hs))
			for i, h := range hs {
				raw[i] = uint32(h)
			}
			if err := marshal.Store(marshal.MustHeap(ctx), ptr, raw); err != nil {
				t.SetError(InvalidValue)
			}
		})
	}
	del := func(name string, kind handle.Kind) {
		e.fn(name, func(ctx context.Context, count int32, ptr uint32) {
			t := MustThread(ctx, name)
			t.DeleteObjects(kind, loadHandles(ctx, t, count, ptr))
		})
	}
	bind := func(name string, kind handle.Kind) {
		e.fn(name, func(ctx context.Context, target, h uint32) {
			MustThread(ctx, name).Bind(kind, Enum(target), handle.Handle(h))
		})
	}

	gen("glGenBuffers", handle.KindBuffer)
	gen("glGenFramebuffers", handle.KindFramebuffer)
	gen("glGenRenderbuffers", handle.KindRenderbuffer)
	gen("glGenSamplers", handle.KindSampler)
	gen("glGenTextures", handle.KindTexture)
	gen("glGenVertexArrays", handle.KindVertexArray)
	gen("glGenVertexArraysOES", handle.KindVertexArray)

	del("glDeleteBuffers", handle.KindBuffer)
	del("glDeleteFramebuffers", handle.KindFramebuffer)
	del("glDeleteRenderbuffers", handle.KindRenderbuffer)
	del("glDeleteSamplers", handle.KindSampler)
	del("glDeleteTextures", handle.KindTexture)
	del("glDeleteVertexArrays", handle.KindVertexArray)
	del("glDeleteVertexArraysOES", handle.KindVertexArray)

	bind("glBindBuffer", handle.KindBuffer)
	bind("glBindFramebuffer", handle.KindFramebuffer)
	bind("glBindRenderbuffer", handle.KindRenderbuffer)
	bind("glBindSampler", handle.KindSampler)
	bind("glBindTexture", handle.KindTexture)
	for _, name := range []string{"glBindVertexArray", "glBindVertexArrayOES"} {
		e.fn(name, func(ctx context.Context, h uint32) {
			MustThread(ctx, name).Bind(handle.KindVertexArray, 0, handle.Handle(h))
		})
	}

	e.fn("glCreateProgram", func(ctx context.Context) uint32 {
		return uint32(MustThread(ctx, "glCreateProgram").CreateProgram())
	})
	e.fn("glCreateShader", func(ctx context.Context, shaderType uint32) uint32 {
		return uint32(MustThread(ctx, "glCreateShader").CreateShader(Enum(shaderType)))
	})
	e.fn("glDeleteProgram", func(ctx context.Context, h uint32) {
		MustThread(ctx, "glDeleteProgram").DeleteProgram(handle.Handle(h))
	})
	e.fn("glDeleteShader", func(ctx context.Context, h uint32) {
		MustThread(ctx, "glDeleteShader").DeleteShader(handle.Handle(h))
	})
	e.fn("glDeleteSync", func(ctx context.Context, h uint32) {
		MustThread(ctx, "glDeleteSync").DeleteSync(handle.Handle(h))
	})
	e.fn("glIsTexture", func(ctx context.Context, h uint32) uint32 {
		return b2u(MustThread(ctx, "glIsTexture").IsObject(handle.KindTexture, handle.Handle(h)))
	})
	e.fn("glIsSync", func(ctx context.Context, h uint32) uint32 {
		return b2u(MustThread(ctx, "glIsSync").IsObject(handle.KindSync, handle.Handle(h)))
	})

	e.fn("glFenceSync", func(ctx context.Context, condition, flags uint32) uint32 {
		return uint32(MustThread(ctx, "glFenceSync").FenceSync(Enum(condition), flags))
	})
	e.fn("glClientWaitSync", func(ctx context.Context, h, flags, lo, hi uint32) uint32 {
		return uint32(MustThread(ctx, "glClientWaitSync").ClientWaitSync(handle.Handle(h), flags, lo, hi))
	})
	e.fn("glWaitSync", func(ctx context.Context, h, flags, lo, hi uint32) {
		MustThread(ctx, "glWaitSync").WaitSync(handle.Handle(h), flags, lo, hi)
	})

	e.fn("glFramebufferTexture2D", func(ctx context.Context, target, attachment, textarget, tex uint32, level int32) {
		MustThread(ctx, "glFramebufferTexture2D").FramebufferTexture2D(Enum(target), Enum(attachment), Enum(textarget), handle.Handle(tex), level)
	})
	e.fn("glFramebufferRenderbuffer", func(ctx context.Context, target, attachment, rbtarget, rb uint32) {
		MustThread(ctx, "glFramebufferRenderbuffer").FramebufferRenderbuffer(Enum(target), Enum(attachment), Enum(rbtarget), handle.Handle(rb))
	})
	e.fn("glCheckFramebufferStatus", func(ctx context.Context, target uint32) uint32 {
		return uint32(MustThread(ctx, "glCheckFramebufferStatus").CheckFramebufferStatus(Enum(target)))
	})

	e.fn("glSamplerParameterf", func(ctx context.Context, sampler, pname uint32, v float32) {
		MustThread(ctx, "glSamplerParameterf").SamplerParameter("samplerParameterf", handle.Handle(sampler), Enum(pname), float64(v))
	})
	e.fn("glSamplerParameteri", func(ctx context.Context, sampler, pname uint32, v int32) {
		MustThread(ctx, "glSamplerParameteri").SamplerParameter("samplerParameteri", handle.Handle(sampler), Enum(pname), float64(v))
	})
	e.fn("glSamplerParameteriv", func(ctx context.Context, sampler, pname, ptr uint32) {
		t := MustThread(ctx, "glSamplerParameteriv")
		v, err := marshal.MustHeap(ctx).Int32(ptr)
		if err != nil {
			t.SetError(InvalidValue)
			return
		}
		t.SamplerParameter("samplerParameteri", handle.Handle(sampler), Enum(pname), float64(v))
	})
}

func (s *Shim) registerState(e *exports) {
	e.call("glActiveTexture", "activeTexture", i32)
	e.call("glBlendColor", "blendColor", repeat(4, f32)...)
	e.call("glBlendEquation", "blendEquation", i32)
	e.call("glBlendFunc", "blendFunc", i32, i32)
	e.call("glBlitFramebuffer", "blitFramebuffer", repeat(10, i32)...)
	e.call("glClear", "clear", i32)
	e.call("glClearColor", "clearColor", repeat(4, f32)...)
	e.call("glClearStencil", "clearStencil", i32)
	e.call("glColorMask", "colorMask", repeat(4, i32)...)
	e.call("glCopyBufferSubData", "copyBufferSubData", repeat(5, i32)...)
	e.call("glCopyTexSubImage2D", "copyTexSubImage2D", repeat(8, i32)...)
	e.call("glCullFace", "cullFace", i32)
	e.call("glDepthMask", "depthMask", i32)
	e.call("glDisable", "disable", i32)
	e.call("glDisableVertexAttribArray", "disableVertexAttribArray", i32)
	e.call("glEnable", "enable", i32)
	e.call("glEnableVertexAttribArray", "enableVertexAttribArray", i32)
	e.call("glFinish", "finish")
	e.call("glFlush", "flush")
	e.call("glFrontFace", "frontFace", i32)
	e.call("glGenerateMipmap", "generateMipmap", i32)
	e.call("glLineWidth", "lineWidth", f32)
	e.call("glReadBuffer", "readBuffer", i32)
	e.call("glRenderbufferStorage", "renderbufferStorage", repeat(4, i32)...)
	e.call("glRenderbufferStorageMultisample", "renderbufferStorageMultisample", repeat(5, i32)...)
	e.call("glScissor", "scissor", repeat(4, i32)...)
	e.call("glStencilFunc", "stencilFunc", repeat(3, i32)...)
	e.call("glStencilFuncSeparate", "stencilFuncSeparate", repeat(4, i32)...)
	e.call("glStencilMask", "stencilMask", i32)
	e.call("glStencilMaskSeparate", "stencilMaskSeparate", i32, i32)
	e.call("glStencilOp", "stencilOp", repeat(3, i32)...)
	e.call("glStencilOpSeparate", "stencilOpSeparate", repeat(4, i32)...)
	e.call("glTexParameterf", "texParameterf", i32, i32, f32)
	e.call("glTexParameteri", "texParameteri", repeat(3, i32)...)
	e.call("glTexStorage2D", "texStorage2D", repeat(5, i32)...)
	e.call("glVertexAttrib1f", "vertexAttrib1f", i32, f32)
	e.call("glVertexAttribDivisor", "vertexAttribDivisor", i32, i32)
	e.call("glVertexAttribIPointer", "vertexAttribIPointer", repeat(5, i32)...)
	e.call("glVertexAttribPointer", "vertexAttribPointer", repeat(6, i32)...)
	e.call("glViewport", "viewport", repeat(4, i32)...)

	e.fn("glPixelStorei", func(ctx context.Context, pname uint32, param int32) {
		MustThread(ctx, "glPixelStorei").PixelStorei(Enum(pname), param)
	})
	e.fn("glTexParameterfv", func(ctx context.Context, target, pname, ptr uint32) {
		t := MustThread(ctx, "glTexParameterfv")
		v, err := marshal.MustHeap(ctx).Float32(ptr)
		if err != nil {
			t.SetError(InvalidValue)
			return
		}
		t.Call("texParameterf", float64(target), float64(pname), float64(v))
	})
	e.fn("glTexParameteriv", func(ctx context.Context, target, pname, ptr uint32) {
		t := MustThread(ctx, "glTexParameteriv")
		v, err := marshal.MustHeap(ctx).Int32(ptr)
		if err != nil {
			t.SetError(InvalidValue)
			return
		}
		t.Call("texParameteri", float64(target), float64(pname), float64(v))
	})
	for size, name := range map[int]string{2: "glVertexAttrib2fv", 3: "glVertexAttrib3fv", 4: "glVertexAttrib4fv"} {
		method := "vertexAttrib" + string(rune('0'+size)) + "f"
		e.fn(name, func(ctx context.Context, index, ptr uint32) {
			t := MustThread(ctx, name)
			v, ok := loadFloat64s[float32](ctx, t, int32(size), ptr)
			if !ok {
				return
			}
			t.Call(method, append([]float64{float64(index)}, v...)...)
		})
	}
	e.fn("glDrawBuffers", func(ctx context.Context, count int32, ptr uint32) {
		t := MustThread(ctx, "glDrawBuffers")
		if v, ok := loadFloat64s[uint32](ctx, t, count, ptr); ok {
			t.Call("drawBuffers", v...)
		}
	})
	e.fn("glInvalidateFramebuffer", func(ctx context.Context, target uint32, count int32, ptr uint32) {
		t := MustThread(ctx, "glInvalidateFramebuffer")
		if v, ok := loadFloat64s[uint32](ctx, t, count, ptr); ok {
			t.Call("invalidateFramebuffer", append([]float64{float64(target)}, v...)...)
		}
	})
	e.fn("glInvalidateSubFramebuffer", func(ctx context.Context, target uint32, count int32, ptr uint32, x, y, w, h int32) {
		t := MustThread(ctx, "glInvalidateSubFramebuffer")
		if v, ok := loadFloat64s[uint32](ctx, t, count, ptr); ok {
			args := append([]float64{float64(target)}, v...)
			t.Call("invalidateSubFramebuffer", append(args, float64(x), float64(y), float64(w), float64(h))...)
		}
	})
}

func (s *Shim) registerQueries(e *exports) {
	e.fn("glGetString", func(ctx context.Context, name uint32) uint32 {
		return MustThread(ctx, "glGetString").GetString(ctx, Enum(name))
	})
	e.fn("glGetStringi", func(ctx context.Context, name uint32, index int32) uint32 {
		return MustThread(ctx, "glGetStringi").GetStringi(ctx, Enum(name), index)
	})
	e.fn("glGetIntegerv", func(ctx context.Context, pname, ptr uint32) {
		MustThread(ctx, "glGetIntegerv").GetIntegerv(ctx, Enum(pname), ptr)
	})
	e.fn("glGetFloatv", func(ctx context.Context, pname, ptr uint32) {
		MustThread(ctx, "glGetFloatv").GetFloatv(ctx, Enum(pname), ptr)
	})
	e.fn("glGetBufferParameteriv", func(ctx context.Context, target, pname, ptr uint32) {
		MustThread(ctx, "glGetBufferParameteriv").GetBufferParameteriv(ctx, Enum(target), Enum(pname), ptr)
	})
	e.fn("glGetRenderbufferParameteriv", func(ctx context.Context, target, pname, ptr uint32) {
		MustThread(ctx, "glGetRenderbufferParameteriv").GetRenderbufferParameteriv(ctx, Enum(target), Enum(pname), ptr)
	})
	e.fn("glGetFramebufferAttachmentParameteriv", func(ctx context.Context, target, attachment, pname, ptr uint32) {
		MustThread(ctx, "glGetFramebufferAttachmentParameteriv").GetFramebufferAttachmentParameteriv(ctx, Enum(target), Enum(attachment), Enum(pname), ptr)
	})
	e.fn("glGetProgramiv", func(ctx context.Context, program, pname, ptr uint32) {
		MustThread(ctx, "glGetProgramiv").GetProgramiv(ctx, handle.Handle(program), Enum(pname), ptr)
	})
	e.fn("glGetShaderiv", func(ctx context.Context, shader, pname, ptr uint32) {
		MustThread(ctx, "glGetShaderiv").GetShaderiv(ctx, handle.Handle(shader), Enum(pname), ptr)
	})
	e.fn("glGetProgramInfoLog", func(ctx context.Context, program uint32, bufSize int32, lengthPtr, logPtr uint32) {
		MustThread(ctx, "glGetProgramInfoLog").GetProgramInfoLog(ctx, handle.Handle(program), bufSize, lengthPtr, logPtr)
	})
	e.fn("glGetShaderInfoLog", func(ctx context.Context, shader uint32, bufSize int32, lengthPtr, logPtr uint32) {
		MustThread(ctx, "glGetShaderInfoLog").GetShaderInfoLog(ctx, handle.Handle(shader), bufSize, lengthPtr, logPtr)
	})
	e.fn("glGetShaderPrecisionFormat", func(ctx context.Context, shaderType, precisionType, rangePtr, precisionPtr uint32) {
		MustThread(ctx, "glGetShaderPrecisionFormat").GetShaderPrecisionFormat(ctx, Enum(shaderType), Enum(precisionType), rangePtr, precisionPtr)
	})
	e.fn("glGetUniformLocation", func(ctx context.Context, program, namePtr uint32) int32 {
		t := MustThread(ctx, "glGetUniformLocation")
		name, err := marshal.MustHeap(ctx).ReadString(marshal.UTF8, namePtr, 0)
		if err != nil {
			t.SetError(InvalidValue)
			return -1
		}
		return t.GetUniformLocation(handle.Handle(program), name)
	})
}

func (s *Shim) registerPixels(e *exports) {
	e.fn("glTexImage2D", func(ctx context.Context, target uint32, level int32, internalFormat uint32, w, h, border int32, format, typ, ptr uint32) {
		MustThread(ctx, "glTexImage2D").TexImage2D(ctx, Enum(target), level, Enum(internalFormat), w, h, border, Enum(format), Enum(typ), ptr)
	})
	e.fn("glTexSubImage2D", func(ctx context.Context, target uint32, level, x, y, w, h int32, format, typ, ptr uint32) {
		MustThread(ctx, "glTexSubImage2D").TexSubImage2D(ctx, Enum(target), level, x, y, w, h, Enum(format), Enum(typ), ptr)
	})
	e.fn("glCompressedTexImage2D", func(ctx context.Context, target uint32, level int32, internalFormat uint32, w, h, border int32, imageSize, ptr uint32) {
		MustThread(ctx, "glCompressedTexImage2D").CompressedTexImage2D(ctx, Enum(target), level, Enum(internalFormat), w, h, border, imageSize, ptr)
	})
	e.fn("glCompressedTexSubImage2D", func(ctx context.Context, target uint32, level, x, y, w, h int32, format, imageSize, ptr uint32) {
		MustThread(ctx, "glCompressedTexSubImage2D").CompressedTexSubImage2D(ctx, Enum(target), level, x, y, w, h, Enum(format), imageSize, ptr)
	})
	for _, name := range []string{"glReadPixels", "emscripten_glReadPixels"} {
		e.fn(name, func(ctx context.Context, x, y, w, h int32, format, typ, ptr uint32) {
			MustThread(ctx, name).ReadPixels(ctx, x, y, w, h, Enum(format), Enum(typ), ptr)
		})
	}
	e.fn("glBufferData", func(ctx context.Context, target, size, ptr, usage uint32) {
		MustThread(ctx, "glBufferData").BufferData(ctx, Enum(target), size, ptr, Enum(usage))
	})
	e.fn("glBufferSubData", func(ctx context.Context, target, offset, size, ptr uint32) {
		MustThread(ctx, "glBufferSubData").BufferSubData(ctx, Enum(target), offset, size, ptr)
	})
}

func (s *Shim) registerShaders(e *exports) {
	e.fn("glAttachShader", func(ctx context.Context, program, shader uint32) {
		MustThread(ctx, "glAttachShader").AttachShader(handle.Handle(program), handle.Handle(shader))
	})
	e.fn("glBindAttribLocation", func(ctx context.Context, program, index, namePtr uint32) {
		t := MustThread(ctx, "glBindAttribLocation")
		name, err := marshal.MustHeap(ctx).ReadString(marshal.UTF8, namePtr, 0)
		if err != nil {
			t.SetError(InvalidValue)
			return
		}
		t.BindAttribLocation(handle.Handle(program), index, name)
	})
	e.fn("glCompileShader", func(ctx context.Context, shader uint32) {
		MustThread(ctx, "glCompileShader").CompileShader(handle.Handle(shader))
	})
	e.fn("glLinkProgram", func(ctx context.Context, program uint32) {
		MustThread(ctx, "glLinkProgram").LinkProgram(handle.Handle(program))
	})
	e.fn("glUseProgram", func(ctx context.Context, program uint32) {
		MustThread(ctx, "glUseProgram").UseProgram(handle.Handle(program))
	})
	// glShaderSource(shader, count, char** strings, int* lengths). A null
	// lengths array or a negative length means NUL-terminated.
	e.fn("glShaderSource", func(ctx context.Context, shader uint32, count int32, stringsPtr, lengthsPtr uint32) {
		t := MustThread(ctx, "glShaderSource")
		heap := marshal.MustHeap(ctx)
		var src []byte
		for i := uint32(0); i < uint32(max(count, 0)); i++ {
			ptr, err := heap.Uint32(stringsPtr + 4*i)
			if err != nil {
				t.SetError(InvalidValue)
				return
			}
			length := int32(-1)
			if lengthsPtr != 0 {
				if length, err = heap.Int32(lengthsPtr + 4*i); err != nil {
					t.SetError(InvalidValue)
					return
				}
			}
			var part string
			if length < 0 {
				part, err = heap.ReadString(marshal.UTF8, ptr, 0)
			} else {
				part, err = heap.ReadStringN(marshal.UTF8, ptr, uint32(length))
			}
			if err != nil {
				t.SetError(InvalidValue)
				return
			}
			src = append(src, part...)
		}
		t.ShaderSource(handle.Handle(shader), string(src))
	})
}

func (s *Shim) registerUniforms(e *exports) {
	for size := 1; size <= 4; size++ {
		suffix := string(rune('0' + size))

		e.fn("glUniform"+suffix+"fv", func(ctx context.Context, loc, count int32, ptr uint32) {
			t := MustThread(ctx, "glUniform"+suffix+"fv")
			if count <= 0 {
				return
			}
			v, err := marshal.Load[float32](marshal.MustHeap(ctx), ptr, int(count)*size)
			if err != nil {
				t.SetError(InvalidValue)
				return
			}
			t.UniformF(loc, size, v)
		})
		e.fn("glUniform"+suffix+"iv", func(ctx context.Context, loc, count int32, ptr uint32) {
			t := MustThread(ctx, "glUniform"+suffix+"iv")
			if count <= 0 {
				return
			}
			v, err := marshal.Load[int32](marshal.MustHeap(ctx), ptr, int(count)*size)
			if err != nil {
				t.SetError(InvalidValue)
				return
			}
			t.UniformI(loc, size, v)
		})
	}

	e.fn("glUniform1f", func(ctx context.Context, loc int32, x float32) {
		MustThread(ctx, "glUniform1f").UniformF(loc, 1, []float32{x})
	})
	e.fn("glUniform2f", func(ctx context.Context, loc int32, x, y float32) {
		MustThread(ctx, "glUniform2f").UniformF(loc, 2, []float32{x, y})
	})
	e.fn("glUniform3f", func(ctx context.Context, loc int32, x, y, z float32) {
		MustThread(ctx, "glUniform3f").UniformF(loc, 3, []float32{x, y, z})
	})
	e.fn("glUniform4f", func(ctx context.Context, loc int32, x, y, z, w float32) {
		MustThread(ctx, "glUniform4f").UniformF(loc, 4, []float32{x, y, z, w})
	})
	e.fn("glUniform1i", func(ctx context.Context, loc, x int32) {
		MustThread(ctx, "glUniform1i").UniformI(loc, 1, []int32{x})
	})
	e.fn("glUniform2i", func(ctx context.Context, loc, x, y int32) {
		MustThread(ctx, "glUniform2i").UniformI(loc, 2, []int32{x, y})
	})
	e.fn("glUniform3i", func(ctx context.Context, loc, x, y, z int32) {
		MustThread(ctx, "glUniform3i").UniformI(loc, 3, []int32{x, y, z})
	})
	e.fn("glUniform4i", func(ctx context.Context, loc, x, y, z, w int32) {
		MustThread(ctx, "glUniform4i").UniformI(loc, 4, []int32{x, y, z, w})
	})

	for dim := 2; dim <= 4; dim++ {
		name := "glUniformMatrix" + string(rune('0'+dim)) + "fv"
		e.fn(name, func(ctx context.Context, loc, count int32, transpose, ptr uint32) {
			t := MustThread(ctx, name)
			if count <= 0 {
				return
			}
			v, err := marshal.Load[float32](marshal.MustHeap(ctx), ptr, int(count)*dim*dim)
			if err != nil {
				t.SetError(InvalidValue)
				return
			}
			t.UniformMatrix(loc, dim, transpose != 0, v)
		})
	}
}

func (s *Shim) registerDraws(e *exports) {
	e.call("glDrawArrays", "drawArrays", repeat(3, i32)...)
	e.call("glDrawArraysInstanced", "drawArraysInstanced", repeat(4, i32)...)
	e.call("glDrawArraysInstancedBaseInstanceWEBGL", "drawArraysInstancedBaseInstanceWEBGL", repeat(5, i32)...)
	e.call("glDrawElements", "drawElements", repeat(4, i32)...)
	e.call("glDrawElementsInstanced", "drawElementsInstanced", repeat(5, i32)...)
	e.call("glDrawElementsInstancedBaseVertexBaseInstanceWEBGL", "drawElementsInstancedBaseVertexBaseInstanceWEBGL", repeat(7, i32)...)

	// The range hint is dropped; WebGL validates indices itself.
	e.fn("glDrawRangeElements", func(ctx context.Context, mode, start, end uint32, count int32, typ, offset uint32) {
		MustThread(ctx, "glDrawRangeElements").Call("drawElements", float64(mode), float64(count), float64(typ), float64(offset))
	})

	e.fn("glMultiDrawArraysInstancedBaseInstanceWEBGL", func(ctx context.Context, mode, firstsPtr, countsPtr, instancesPtr, baseInstancesPtr uint32, drawCount int32) {
		t := MustThread(ctx, "glMultiDrawArraysInstancedBaseInstanceWEBGL")
		firsts, ok1 := loadFloat64s[int32](ctx, t, drawCount, firstsPtr)
		counts, ok2 := loadFloat64s[int32](ctx, t, drawCount, countsPtr)
		instances, ok3 := loadFloat64s[int32](ctx, t, drawCount, instancesPtr)
		bases, ok4 := loadFloat64s[uint32](ctx, t, drawCount, baseInstancesPtr)
		if !ok1 || !ok2 || !ok3 || !ok4 {
			return
		}
		for i := range firsts {
			t.Call("drawArraysInstancedBaseInstanceWEBGL", float64(mode), firsts[i], counts[i], instances[i], bases[i])
		}
	})
	e.fn("glMultiDrawElementsInstancedBaseVertexBaseInstanceWEBGL", func(ctx context.Context, mode, countsPtr, typ, offsetsPtr, instancesPtr, baseVerticesPtr, baseInstancesPtr uint32, drawCount int32) {
		t := MustThread(ctx, "glMultiDrawElementsInstancedBaseVertexBaseInstanceWEBGL")
		counts, ok1 := loadFloat64s[int32](ctx, t, drawCount, countsPtr)
		offsets, ok2 := loadFloat64s[int32](ctx, t, drawCount, offsetsPtr)
		instances, ok3 := loadFloat64s[int32](ctx, t, drawCount, instancesPtr)
		baseVertices, ok4 := loadFloat64s[int32](ctx, t, drawCount, baseVerticesPtr)
		bases, ok5 := loadFloat64s[uint32](ctx, t, drawCount, baseInstancesPtr)
		if !ok1 || !ok2 || !ok3 || !ok4 || !ok5 {
			return
		}
		for i := range counts {
			t.Call("drawElementsInstancedBaseVertexBaseInstanceWEBGL",
				float64(mode), counts[i], float64(typ), offsets[i], instances[i], baseVertices[i], bases[i])
		}
	})
}
