package gl

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/woxQAQ/skwasm-bridge/internal/handle"
	"github.com/woxQAQ/skwasm-bridge/internal/marshal"
)

var glslVersion = regexp.MustCompile(`^WebGL GLSL ES ([0-9]\.[0-9][0-9]?)(?:$| .*)`)

// unknownLog stands in for a null info log.
const unknownLog = "(unknown error)"

func (c *Context) stringParameter(pname Enum) string {
	s, _ := c.Device.Parameter(pname).(string)
	return s
}

func (c *Context) extensionNames() []string {
	exts := c.Device.SupportedExtensions()
	names := make([]string, 0, 2*len(exts))
	names = append(names, exts...)
	for _, e := range exts {
		names = append(names, "GL_"+e)
	}
	return names
}

// GetString returns a guest pointer to the NUL-terminated value of name.
// Results are allocated once per context and name; repeated calls return the
// same pointer. Unknown names record INVALID_ENUM and return 0.
func (t *Thread) GetString(ctx context.Context, name Enum) uint32 {
	c := t.require()
	if c == nil {
		return 0
	}
	if ptr, ok := c.strings[name]; ok {
		return ptr
	}

	var s string
	switch name {
	case Extensions:
		s = strings.Join(c.extensionNames(), " ")
	case Vendor, Renderer, UnmaskedVendor, UnmaskedRenderer:
		s = c.stringParameter(name)
		if s == "" {
			t.SetError(InvalidEnum)
			return 0
		}
	case Version:
		v := c.stringParameter(Version)
		if c.Version >= 2 {
			s = "OpenGL ES 3.0 (" + v + ")"
		} else {
			s = "OpenGL ES 2.0 (" + v + ")"
		}
	case ShadingLanguageVersion:
		s = c.stringParameter(ShadingLanguageVersion)
		if m := glslVersion.FindStringSubmatch(s); m != nil {
			v := m[1]
			if len(v) == 3 {
				v += "0"
			}
			s = "OpenGL ES GLSL ES " + v + " (" + s + ")"
		}
	default:
		t.SetError(InvalidEnum)
		return 0
	}

	ptr, err := marshal.MustHeap(ctx).AllocString(ctx, marshal.UTF8, s)
	if err != nil {
		t.logger.Error("Failed to allocate GL string", zap.Uint32("name", uint32(name)), zap.Error(err))
		t.SetError(OutOfMemory)
		return 0
	}
	c.strings[name] = ptr
	return ptr
}

// GetStringi returns a guest pointer to element index of an indexed string.
// Only EXTENSIONS is indexed and only version 2 contexts support it.
func (t *Thread) GetStringi(ctx context.Context, name Enum, index int32) uint32 {
	c := t.require()
	if c == nil {
		return 0
	}
	if c.Version < 2 {
		t.SetError(InvalidOperation)
		return 0
	}

	ptrs, ok := c.stringsi[name]
	if !ok {
		if name != Extensions {
			t.SetError(InvalidEnum)
			return 0
		}
		heap := marshal.MustHeap(ctx)
		for _, e := range c.extensionNames() {
			ptr, err := heap.AllocString(ctx, marshal.UTF8, e)
			if err != nil {
				t.logger.Error("Failed to allocate GL extension name", zap.String("extension", e), zap.Error(err))
				t.SetError(OutOfMemory)
				return 0
			}
			ptrs = append(ptrs, ptr)
		}
		c.stringsi[name] = ptrs
	}

	if index < 0 || int(index) >= len(ptrs) {
		t.SetError(InvalidValue)
		return 0
	}
	return ptrs[index]
}

type getType int

const (
	getInteger getType = iota
	getFloat
)

// GetIntegerv writes the integer value of pname at ptr.
func (t *Thread) GetIntegerv(ctx context.Context, pname Enum, ptr uint32) {
	t.get(ctx, pname, ptr, getInteger)
}

// GetFloatv writes the float value of pname at ptr.
func (t *Thread) GetFloatv(ctx context.Context, pname Enum, ptr uint32) {
	t.get(ctx, pname, ptr, getFloat)
}

func (t *Thread) get(ctx context.Context, pname Enum, ptr uint32, typ getType) {
	if ptr == 0 {
		t.SetError(InvalidValue)
		return
	}
	c := t.require()
	if c == nil {
		return
	}
	heap := marshal.MustHeap(ctx)

	var value float64
	switch pname {
	case ShaderCompiler:
		value = 1
	case ShaderBinaryFormats:
		if typ != getInteger {
			t.SetError(InvalidEnum)
		}
		return
	case NumProgramBinaryFormats, NumShaderBinaryFormats:
		value = 0
	case NumCompressedTextureFormats:
		value = float64(arrayLen(c.Device.Parameter(CompressedTextureFormats)))
	case NumExtensions:
		if c.Version < 2 {
			t.SetError(InvalidOperation)
			return
		}
		value = float64(2 * len(c.Device.SupportedExtensions()))
	case MajorVersion, MinorVersion:
		if c.Version < 2 {
			t.SetError(InvalidEnum)
			return
		}
		if pname == MajorVersion {
			value = 3
		}
	default:
		switch v := c.Device.Parameter(pname).(type) {
		case nil:
			if !nullBindings[pname] {
				t.SetError(InvalidEnum)
				return
			}
		case bool:
			if v {
				value = 1
			}
		case int32:
			value = float64(v)
		case uint32:
			value = float64(v)
		case float32:
			value = float64(v)
		case float64:
			value = v
		case Ref:
			value = float64(c.name(v.Kind, v.Object))
		case []int32:
			t.writeArray(heap, ptr, typ, len(v), func(i int) float64 { return float64(v[i]) })
			return
		case []uint32:
			t.writeArray(heap, ptr, typ, len(v), func(i int) float64 { return float64(v[i]) })
			return
		case []float32:
			t.writeArray(heap, ptr, typ, len(v), func(i int) float64 { return float64(v[i]) })
			return
		case []bool:
			t.writeArray(heap, ptr, typ, len(v), func(i int) float64 {
				if v[i] {
					return 1
				}
				return 0
			})
			return
		default:
			t.logger.Debug("getParameter returned an unsupported value",
				zap.Uint32("pname", uint32(pname)),
				zap.String("type", fmt.Sprintf("%T", v)),
			)
			t.SetError(InvalidEnum)
			return
		}
	}

	t.writeValue(heap, ptr, typ, value)
}

func (t *Thread) writeValue(heap *marshal.Heap, ptr uint32, typ getType, v float64) {
	var err error
	if typ == getFloat {
		err = heap.PutFloat32(ptr, float32(v))
	} else {
		err = heap.PutInt32(ptr, int32(int64(v)))
	}
	if err != nil {
		t.SetError(InvalidValue)
	}
}

func (t *Thread) writeArray(heap *marshal.Heap, ptr uint32, typ getType, n int, at func(int) float64) {
	for i := 0; i < n; i++ {
		t.writeValue(heap, ptr+uint32(4*i), typ, at(i))
	}
}

func arrayLen(v any) int {
	switch a := v.(type) {
	case []int32:
		return len(a)
	case []uint32:
		return len(a)
	case []float32:
		return len(a)
	}
	return 0
}

func (t *Thread) putInt(ctx context.Context, ptr uint32, v int32) {
	if err := marshal.MustHeap(ctx).PutInt32(ptr, v); err != nil {
		t.SetError(InvalidValue)
	}
}

func (c *Context) program(h handle.Handle) *programInfo {
	info, ok := c.programs[h]
	if !ok {
		info = newProgramInfo()
		c.programs[h] = info
	}
	return info
}

// GetProgramiv writes a program parameter at ptr. Name-length queries are
// computed from the active uniforms, attributes and blocks and cached until
// the next link.
func (t *Thread) GetProgramiv(ctx context.Context, program handle.Handle, pname Enum, ptr uint32) {
	if ptr == 0 {
		t.SetError(InvalidValue)
		return
	}
	c := t.require()
	if c == nil {
		return
	}
	if !c.Table(handle.KindProgram).Issued(program) {
		t.SetError(InvalidValue)
		return
	}
	o := c.Lookup(handle.KindProgram, program)
	dev := c.Device

	var v int32
	switch pname {
	case InfoLogLength:
		log, ok := dev.ProgramInfoLog(o)
		if !ok {
			log = unknownLog
		}
		v = int32(len(log) + 1)
	case ActiveUniformMax:
		info := c.program(program)
		if info.maxUniformLen == 0 {
			for i := 0; i < int(dev.ProgramParameter(o, ActiveUniforms)); i++ {
				name, _ := dev.ActiveUniform(o, i)
				info.maxUniformLen = max(info.maxUniformLen, int32(len(name)+1))
			}
		}
		v = info.maxUniformLen
	case ActiveAttribMax:
		info := c.program(program)
		if info.maxAttribLen == 0 {
			for i := 0; i < int(dev.ProgramParameter(o, ActiveAttributes)); i++ {
				info.maxAttribLen = max(info.maxAttribLen, int32(len(dev.ActiveAttrib(o, i))+1))
			}
		}
		v = info.maxAttribLen
	case ActiveBlockMax:
		info := c.program(program)
		if info.maxBlockLen == 0 {
			for i := 0; i < int(dev.ProgramParameter(o, ActiveBlocks)); i++ {
				info.maxBlockLen = max(info.maxBlockLen, int32(len(dev.ActiveUniformBlockName(o, i))+1))
			}
		}
		v = info.maxBlockLen
	default:
		v = dev.ProgramParameter(o, pname)
	}
	t.putInt(ctx, ptr, v)
}

// GetShaderiv writes a shader parameter at ptr.
func (t *Thread) GetShaderiv(ctx context.Context, shader handle.Handle, pname Enum, ptr uint32) {
	if ptr == 0 {
		t.SetError(InvalidValue)
		return
	}
	c := t.require()
	if c == nil {
		return
	}
	o := c.Lookup(handle.KindShader, shader)

	var v int32
	switch pname {
	case InfoLogLength:
		log, ok := c.Device.ShaderInfoLog(o)
		if !ok {
			log = unknownLog
		}
		if log != "" {
			v = int32(len(log) + 1)
		}
	case ShaderSourceLen:
		if src, ok := c.Device.ShaderSourceText(o); ok && src != "" {
			v = int32(len(src) + 1)
		}
	default:
		v = c.Device.ShaderParameter(o, pname)
	}
	t.putInt(ctx, ptr, v)
}

// GetProgramInfoLog copies at most bufSize-1 bytes of the program log to
// logPtr and stores the copied length at lengthPtr when it is not null.
func (t *Thread) GetProgramInfoLog(ctx context.Context, program handle.Handle, bufSize int32, lengthPtr, logPtr uint32) {
	c := t.require()
	if c == nil {
		return
	}
	log, ok := c.Device.ProgramInfoLog(c.Lookup(handle.KindProgram, program))
	if !ok {
		log = unknownLog
	}
	t.copyLog(ctx, log, bufSize, lengthPtr, logPtr)
}

// GetShaderInfoLog is GetProgramInfoLog for shaders.
func (t *Thread) GetShaderInfoLog(ctx context.Context, shader handle.Handle, bufSize int32, lengthPtr, logPtr uint32) {
	c := t.require()
	if c == nil {
		return
	}
	log, ok := c.Device.ShaderInfoLog(c.Lookup(handle.KindShader, shader))
	if !ok {
		log = unknownLog
	}
	t.copyLog(ctx, log, bufSize, lengthPtr, logPtr)
}

func (t *Thread) copyLog(ctx context.Context, log string, bufSize int32, lengthPtr, logPtr uint32) {
	var n int32
	if bufSize > 0 && logPtr != 0 {
		written, err := writeCString(marshal.MustHeap(ctx), logPtr, log, int(bufSize))
		if err != nil {
			t.SetError(InvalidValue)
			return
		}
		n = int32(written)
	}
	if lengthPtr != 0 {
		t.putInt(ctx, lengthPtr, n)
	}
}

// writeCString writes s as UTF-8 plus a terminator into at most limit bytes
// and never splits a character. It returns the bytes written before the
// terminator.
func writeCString(heap *marshal.Heap, ptr uint32, s string, limit int) (int, error) {
	n := 0
	for n < len(s) {
		_, size := utf8.DecodeRuneInString(s[n:])
		if n+size > limit-1 {
			break
		}
		n += size
	}
	buf := make([]byte, n+1)
	copy(buf, s[:n])
	if err := heap.Write(ptr, buf); err != nil {
		return 0, err
	}
	return n, nil
}

// GetShaderPrecisionFormat writes the range pair at rangePtr and the
// precision at precisionPtr.
func (t *Thread) GetShaderPrecisionFormat(ctx context.Context, shaderType, precisionType Enum, rangePtr, precisionPtr uint32) {
	c := t.require()
	if c == nil {
		return
	}
	lo, hi, precision := c.Device.ShaderPrecisionFormat(shaderType, precisionType)
	t.putInt(ctx, rangePtr, lo)
	t.putInt(ctx, rangePtr+4, hi)
	t.putInt(ctx, precisionPtr, precision)
}

// GetBufferParameteriv writes a parameter of the buffer bound to target.
func (t *Thread) GetBufferParameteriv(ctx context.Context, target, pname Enum, ptr uint32) {
	if ptr == 0 {
		t.SetError(InvalidValue)
		return
	}
	c := t.require()
	if c == nil {
		return
	}
	t.putInt(ctx, ptr, c.Device.BufferParameter(target, pname))
}

// GetRenderbufferParameteriv writes a parameter of the bound renderbuffer.
func (t *Thread) GetRenderbufferParameteriv(ctx context.Context, target, pname Enum, ptr uint32) {
	if ptr == 0 {
		t.SetError(InvalidValue)
		return
	}
	c := t.require()
	if c == nil {
		return
	}
	t.putInt(ctx, ptr, c.Device.RenderbufferParameter(target, pname))
}

// GetFramebufferAttachmentParameteriv writes an attachment parameter.
// Attached objects are reported by handle.
func (t *Thread) GetFramebufferAttachmentParameteriv(ctx context.Context, target, attachment, pname Enum, ptr uint32) {
	c := t.require()
	if c == nil {
		return
	}
	var v int32
	switch p := c.Device.FramebufferAttachmentParameter(target, attachment, pname).(type) {
	case Ref:
		v = int32(c.name(p.Kind, p.Object))
	case int32:
		v = p
	case Enum:
		v = int32(p)
	}
	t.putInt(ctx, ptr, v)
}

// arrayBracket returns the index of the last '[' when name ends in ']',
// otherwise -1.
func arrayBracket(name string) int {
	if !strings.HasSuffix(name, "]") {
		return -1
	}
	return strings.LastIndexByte(name, '[')
}

func (c *Context) buildLocations(o Object, info *programInfo) {
	info.bases = make(map[string]uniformRange)
	info.slots = make(map[int32]*uniformSlot)
	for i := 0; i < int(c.Device.ProgramParameter(o, ActiveUniforms)); i++ {
		name, size := c.Device.ActiveUniform(o, i)
		if b := arrayBracket(name); b > 0 {
			name = name[:b]
		}
		first := info.next
		info.next += size
		info.bases[name] = uniformRange{size: size, first: first}
		for j := int32(0); j < size; j++ {
			info.slots[first+j] = &uniformSlot{base: name, index: j}
		}
	}
	info.built = true
}

// GetUniformLocation returns the shim location of name in program, or -1.
// "name[i]" addresses element i of an array uniform.
func (t *Thread) GetUniformLocation(program handle.Handle, name string) int32 {
	c := t.require()
	if c == nil {
		return -1
	}
	o := c.Lookup(handle.KindProgram, program)
	if o == 0 {
		t.SetError(InvalidValue)
		return -1
	}
	info := c.program(program)
	if !info.built {
		c.buildLocations(o, info)
	}

	base, index := name, int32(0)
	if b := arrayBracket(name); b > 0 {
		if n, err := strconv.ParseUint(name[b+1:len(name)-1], 10, 31); err == nil {
			index = int32(n)
		}
		base = name[:b]
	}

	r, ok := info.bases[base]
	if !ok || index >= r.size {
		return -1
	}
	loc := r.first + index
	slot := info.slots[loc]
	if !slot.resolved {
		l, ok := c.Device.UniformLocation(o, name)
		if !ok {
			return -1
		}
		slot.loc, slot.resolved = l, true
	}
	return loc
}

// uniformLocation resolves a shim location against the current program.
func (t *Thread) uniformLocation(c *Context, loc int32) (Location, bool) {
	if c.currentProgram == handle.Null {
		t.SetError(InvalidOperation)
		return 0, false
	}
	info, ok := c.programs[c.currentProgram]
	if !ok || info.slots == nil {
		return 0, false
	}
	slot, ok := info.slots[loc]
	if !ok {
		return 0, false
	}
	if !slot.resolved {
		name := slot.base
		if slot.index > 0 {
			name += "[" + strconv.Itoa(int(slot.index)) + "]"
		}
		l, ok := c.Device.UniformLocation(c.Lookup(handle.KindProgram, c.currentProgram), name)
		if !ok {
			return 0, false
		}
		slot.loc, slot.resolved = l, true
	}
	return slot.loc, true
}

// UniformF sets a float vector uniform with size components per element.
func (t *Thread) UniformF(loc int32, size int, v []float32) {
	c := t.require()
	if c == nil {
		return
	}
	if l, ok := t.uniformLocation(c, loc); ok {
		c.Device.UniformF(l, size, v)
	}
}

// UniformI sets an integer vector uniform.
func (t *Thread) UniformI(loc int32, size int, v []int32) {
	c := t.require()
	if c == nil {
		return
	}
	if l, ok := t.uniformLocation(c, loc); ok {
		c.Device.UniformI(l, size, v)
	}
}

// UniformMatrix sets dim x dim matrix uniforms.
func (t *Thread) UniformMatrix(loc int32, dim int, transpose bool, v []float32) {
	c := t.require()
	if c == nil {
		return
	}
	if l, ok := t.uniformLocation(c, loc); ok {
		c.Device.UniformMatrix(l, dim, transpose, v)
	}
}
