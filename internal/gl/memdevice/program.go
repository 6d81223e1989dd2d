package memdevice

import (
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/woxQAQ/skwasm-bridge/internal/gl"
	"github.com/woxQAQ/skwasm-bridge/internal/handle"
)

var (
	uniformDecl   = regexp.MustCompile(`\buniform\s+(?:(?:lowp|mediump|highp)\s+)?(\w+)\s+(\w+)\s*(?:\[\s*(\d+)\s*\])?\s*;`)
	attributeDecl = regexp.MustCompile(`(?m)^\s*(?:layout\s*\([^)]*\)\s*)?(?:in|attribute)\s+(?:(?:lowp|mediump|highp)\s+)?\w+\s+(\w+)\s*;`)
)

type shader struct {
	typ      gl.Enum
	src      string
	hasSrc   bool
	compiled bool
	log      string
}

type uniformDef struct {
	name string
	size int32
}

type program struct {
	shaders    []gl.Object
	linked     bool
	log        string
	active     []uniformDef
	attributes []string
	bound      map[string]uint32
	uniforms   map[string][]float32
}

func (p *program) uniform(name string) (uniformDef, bool) {
	for _, u := range p.active {
		if u.name == name {
			return u, true
		}
	}
	return uniformDef{}, false
}

type uniformRef struct {
	program gl.Object
	name    string
	index   int32
}

func (r uniformRef) key(i int32) string {
	return r.name + "[" + strconv.Itoa(int(i)) + "]"
}

// ShaderSource implements gl.Device.
func (d *Device) ShaderSource(o gl.Object, src string) {
	s := d.lookup(handle.KindShader, o)
	if s == nil {
		d.setError(gl.InvalidValue)
		return
	}
	s.shader.src, s.shader.hasSrc = src, true
}

// CompileShader implements gl.Device. A source containing an #error
// directive fails to compile.
func (d *Device) CompileShader(o gl.Object) {
	s := d.lookup(handle.KindShader, o)
	if s == nil {
		d.setError(gl.InvalidValue)
		return
	}
	if i := strings.Index(s.shader.src, "#error"); i >= 0 {
		msg := strings.TrimSpace(strings.SplitN(s.shader.src[i+len("#error"):], "\n", 2)[0])
		s.shader.compiled = false
		s.shader.log = "ERROR: 0:1: '#error' : " + msg + "\n"
		return
	}
	s.shader.compiled, s.shader.log = true, ""
}

// ShaderParameter implements gl.Device.
func (d *Device) ShaderParameter(o gl.Object, pname gl.Enum) int32 {
	s := d.lookup(handle.KindShader, o)
	if s == nil {
		d.setError(gl.InvalidValue)
		return 0
	}
	switch pname {
	case gl.CompileStatus:
		if s.shader.compiled {
			return 1
		}
		return 0
	case gl.ShaderType:
		return int32(s.shader.typ)
	case gl.DeleteStatus:
		return 0
	}
	d.setError(gl.InvalidEnum)
	return 0
}

// ShaderInfoLog implements gl.Device.
func (d *Device) ShaderInfoLog(o gl.Object) (string, bool) {
	s := d.lookup(handle.KindShader, o)
	if s == nil {
		return "", false
	}
	return s.shader.log, true
}

// ShaderSourceText implements gl.Device.
func (d *Device) ShaderSourceText(o gl.Object) (string, bool) {
	s := d.lookup(handle.KindShader, o)
	if s == nil || !s.shader.hasSrc {
		return "", false
	}
	return s.shader.src, true
}

// ShaderPrecisionFormat implements gl.Device with IEEE single precision
// floats and 32-bit integers.
func (d *Device) ShaderPrecisionFormat(shaderType, precisionType gl.Enum) (rangeMin, rangeMax, precision int32) {
	switch precisionType {
	case gl.LowFloat, gl.MediumFloat, gl.HighFloat:
		return 127, 127, 23
	case gl.LowInt, gl.MediumInt, gl.HighInt:
		return 31, 30, 0
	}
	d.setError(gl.InvalidEnum)
	return 0, 0, 0
}

// AttachShader implements gl.Device.
func (d *Device) AttachShader(p, s gl.Object) {
	prog, sh := d.lookup(handle.KindProgram, p), d.lookup(handle.KindShader, s)
	if prog == nil || sh == nil {
		d.setError(gl.InvalidValue)
		return
	}
	if slices.Contains(prog.program.shaders, s) {
		d.setError(gl.InvalidOperation)
		return
	}
	prog.program.shaders = append(prog.program.shaders, s)
}

// BindAttribLocation implements gl.Device.
func (d *Device) BindAttribLocation(p gl.Object, index uint32, name string) {
	prog := d.lookup(handle.KindProgram, p)
	if prog == nil {
		d.setError(gl.InvalidValue)
		return
	}
	if prog.program.bound == nil {
		prog.program.bound = make(map[string]uint32)
	}
	prog.program.bound[name] = index
}

// LinkProgram implements gl.Device. Linking succeeds when a vertex and a
// fragment shader are attached and compiled; active uniforms are the
// declarations of both in order of appearance.
func (d *Device) LinkProgram(p gl.Object) {
	prog := d.lookup(handle.KindProgram, p)
	if prog == nil {
		d.setError(gl.InvalidValue)
		return
	}
	pr := prog.program
	pr.linked, pr.active, pr.attributes = false, nil, nil
	pr.uniforms = make(map[string][]float32)
	for loc, ref := range d.locations {
		if ref.program == p {
			delete(d.locations, loc)
		}
	}

	var haveVertex, haveFragment bool
	for _, o := range pr.shaders {
		s := d.lookup(handle.KindShader, o)
		if s == nil || !s.shader.compiled {
			pr.log = "ERROR: attached shader is not compiled\n"
			return
		}
		switch s.shader.typ {
		case gl.VertexShader:
			haveVertex = true
			for _, m := range attributeDecl.FindAllStringSubmatch(s.shader.src, -1) {
				pr.attributes = append(pr.attributes, m[1])
			}
		case gl.FragmentShader:
			haveFragment = true
		}
		for _, m := range uniformDecl.FindAllStringSubmatch(s.shader.src, -1) {
			if _, dup := pr.uniform(m[2]); dup {
				continue
			}
			size := int32(1)
			if m[3] != "" {
				n, _ := strconv.Atoi(m[3])
				size = int32(max(n, 1))
			}
			pr.active = append(pr.active, uniformDef{name: m[2], size: size})
		}
	}
	if !haveVertex || !haveFragment {
		pr.active, pr.attributes = nil, nil
		pr.log = "ERROR: missing vertex or fragment shader\n"
		return
	}
	pr.linked, pr.log = true, ""
}

// UseProgram implements gl.Device.
func (d *Device) UseProgram(p gl.Object) {
	if p != 0 && d.lookup(handle.KindProgram, p) == nil {
		d.setError(gl.InvalidValue)
		return
	}
	d.current = p
}

// ProgramParameter implements gl.Device.
func (d *Device) ProgramParameter(p gl.Object, pname gl.Enum) int32 {
	prog := d.lookup(handle.KindProgram, p)
	if prog == nil {
		d.setError(gl.InvalidValue)
		return 0
	}
	pr := prog.program
	switch pname {
	case gl.LinkStatus:
		if pr.linked {
			return 1
		}
		return 0
	case gl.ActiveUniforms:
		return int32(len(pr.active))
	case gl.ActiveAttributes:
		return int32(len(pr.attributes))
	case gl.ActiveBlocks:
		return 0
	case gl.AttachedShaders:
		return int32(len(pr.shaders))
	case gl.DeleteStatus:
		return 0
	}
	d.setError(gl.InvalidEnum)
	return 0
}

// ProgramInfoLog implements gl.Device.
func (d *Device) ProgramInfoLog(p gl.Object) (string, bool) {
	prog := d.lookup(handle.KindProgram, p)
	if prog == nil {
		return "", false
	}
	return prog.program.log, true
}

// ActiveUniform implements gl.Device. Array uniforms are reported as
// "name[0]".
func (d *Device) ActiveUniform(p gl.Object, index int) (string, int32) {
	prog := d.lookup(handle.KindProgram, p)
	if prog == nil || index < 0 || index >= len(prog.program.active) {
		d.setError(gl.InvalidValue)
		return "", 0
	}
	u := prog.program.active[index]
	if u.size > 1 {
		return u.name + "[0]", u.size
	}
	return u.name, u.size
}

// ActiveAttrib implements gl.Device.
func (d *Device) ActiveAttrib(p gl.Object, index int) string {
	prog := d.lookup(handle.KindProgram, p)
	if prog == nil || index < 0 || index >= len(prog.program.attributes) {
		d.setError(gl.InvalidValue)
		return ""
	}
	return prog.program.attributes[index]
}

// ActiveUniformBlockName implements gl.Device. Uniform blocks are not
// parsed, so there are none.
func (d *Device) ActiveUniformBlockName(p gl.Object, index int) string {
	d.setError(gl.InvalidValue)
	return ""
}

// UniformLocation implements gl.Device.
func (d *Device) UniformLocation(p gl.Object, name string) (gl.Location, bool) {
	prog := d.lookup(handle.KindProgram, p)
	if prog == nil || !prog.program.linked {
		return 0, false
	}
	base, index := name, int32(0)
	if i := strings.LastIndexByte(name, '['); i > 0 && strings.HasSuffix(name, "]") {
		n, err := strconv.Atoi(name[i+1 : len(name)-1])
		if err != nil {
			return 0, false
		}
		base, index = name[:i], int32(n)
	}
	u, ok := prog.program.uniform(base)
	if !ok || index >= u.size {
		return 0, false
	}

	ref := uniformRef{program: p, name: base, index: index}
	for loc, r := range d.locations {
		if r == ref {
			return loc, true
		}
	}
	d.nextLocation++
	d.locations[d.nextLocation] = ref
	return d.nextLocation, true
}

func (d *Device) setUniform(loc gl.Location, stride int, v []float32) {
	ref, ok := d.locations[loc]
	if !ok {
		d.setError(gl.InvalidOperation)
		return
	}
	if ref.program != d.current {
		d.setError(gl.InvalidOperation)
		return
	}
	pr := d.lookup(handle.KindProgram, ref.program).program
	u, _ := pr.uniform(ref.name)
	for i := 0; i*stride < len(v); i++ {
		idx := ref.index + int32(i)
		if idx >= u.size {
			break
		}
		end := min((i+1)*stride, len(v))
		pr.uniforms[ref.key(idx)] = slices.Clone(v[i*stride : end])
	}
}

// UniformF implements gl.Device.
func (d *Device) UniformF(loc gl.Location, size int, v []float32) {
	d.setUniform(loc, size, v)
}

// UniformI implements gl.Device. Values are stored as floats.
func (d *Device) UniformI(loc gl.Location, size int, v []int32) {
	f := make([]float32, len(v))
	for i, x := range v {
		f[i] = float32(x)
	}
	d.setUniform(loc, size, f)
}

// UniformMatrix implements gl.Device. Transposed input is stored in column
// major order.
func (d *Device) UniformMatrix(loc gl.Location, dim int, transpose bool, v []float32) {
	if transpose {
		t := make([]float32, len(v))
		for m := 0; m+dim*dim <= len(v); m += dim * dim {
			for r := 0; r < dim; r++ {
				for c := 0; c < dim; c++ {
					t[m+c*dim+r] = v[m+r*dim+c]
				}
			}
		}
		v = t
	}
	d.setUniform(loc, dim*dim, v)
}

// Uniform returns the value last set for element index of a uniform.
func (d *Device) Uniform(p gl.Object, name string, index int) ([]float32, bool) {
	prog := d.lookup(handle.KindProgram, p)
	if prog == nil {
		return nil, false
	}
	v, ok := prog.program.uniforms[uniformRef{name: name}.key(int32(index))]
	return v, ok
}
