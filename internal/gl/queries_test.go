package gl_test

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/woxQAQ/skwasm-bridge/internal/gl"
	"github.com/woxQAQ/skwasm-bridge/internal/gl/memdevice"
	"github.com/woxQAQ/skwasm-bridge/internal/handle"
	"github.com/woxQAQ/skwasm-bridge/internal/marshal"
)

func TestGetStringFormats(t *testing.T) {
	tests := []struct {
		name       string
		maxVersion int
		pname      gl.Enum
		want       string
	}{
		{"version2", 2, gl.Version, "OpenGL ES 3.0 (WebGL 2.0)"},
		{"version1", 1, gl.Version, "OpenGL ES 2.0 (WebGL 1.0)"},
		{"glsl3", 2, gl.ShadingLanguageVersion, "OpenGL ES GLSL ES 3.00 (WebGL GLSL ES 3.00)"},
		{"glsl1 padded", 1, gl.ShadingLanguageVersion, "OpenGL ES GLSL ES 1.00 (WebGL GLSL ES 1.0)"},
		{"vendor", 2, gl.Vendor, memdevice.VendorString},
		{"renderer", 2, gl.Renderer, memdevice.RendererString},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, memdevice.Options{MaxVersion: tt.maxVersion})
			if got := f.stringAt(t, f.thread.GetString(f.ctx, tt.pname)); got != tt.want {
				t.Errorf("GetString = %q, want %q", got, tt.want)
			}
			f.expectError(t, gl.NoError)
		})
	}
}

func TestGetStringIsMemoized(t *testing.T) {
	f := newFixture(t, memdevice.Options{Extensions: []string{"EXT_a", "EXT_b"}})

	first := f.thread.GetString(f.ctx, gl.Extensions)
	second := f.thread.GetString(f.ctx, gl.Extensions)
	if first != second {
		t.Errorf("GetString returned %d then %d, want the same pointer", first, second)
	}
	if got := f.stringAt(t, first); got != "EXT_a EXT_b GL_EXT_a GL_EXT_b" {
		t.Errorf("EXTENSIONS = %q", got)
	}
}

func TestGetStringUnknownName(t *testing.T) {
	f := newFixture(t, memdevice.Options{})

	if ptr := f.thread.GetString(f.ctx, 0x1234); ptr != 0 {
		t.Errorf("GetString(unknown) = %d, want 0", ptr)
	}
	f.expectError(t, gl.InvalidEnum)
}

func TestGetStringi(t *testing.T) {
	f := newFixture(t, memdevice.Options{Extensions: []string{"EXT_a", "EXT_b"}})

	want := []string{"EXT_a", "EXT_b", "GL_EXT_a", "GL_EXT_b"}
	for i, w := range want {
		if got := f.stringAt(t, f.thread.GetStringi(f.ctx, gl.Extensions, int32(i))); got != w {
			t.Errorf("GetStringi(%d) = %q, want %q", i, got, w)
		}
	}
	if f.thread.GetStringi(f.ctx, gl.Extensions, 0) != f.thread.GetStringi(f.ctx, gl.Extensions, 0) {
		t.Error("GetStringi should return a stable pointer")
	}
	f.expectError(t, gl.NoError)

	if ptr := f.thread.GetStringi(f.ctx, gl.Extensions, 4); ptr != 0 {
		t.Errorf("GetStringi past the end = %d", ptr)
	}
	f.expectError(t, gl.InvalidValue)

	f.thread.GetStringi(f.ctx, gl.Vendor, 0)
	f.expectError(t, gl.InvalidEnum)
}

func TestGetStringiRequiresVersion2(t *testing.T) {
	f := newFixture(t, memdevice.Options{MaxVersion: 1})

	if ptr := f.thread.GetStringi(f.ctx, gl.Extensions, 0); ptr != 0 {
		t.Errorf("GetStringi = %d on a version 1 context", ptr)
	}
	f.expectError(t, gl.InvalidOperation)
}

func TestGetIntegerv(t *testing.T) {
	f := newFixture(t, memdevice.Options{
		Extensions: []string{"EXT_a", "EXT_b", "EXT_c"},
		Parameters: map[gl.Enum]any{gl.MaxTextureSize: int32(2048)},
	})

	f.thread.GenObjects(handle.KindTexture, 3)
	buf := f.thread.GenObjects(handle.KindBuffer, 1)[0]

	tests := []struct {
		name  string
		setup func()
		pname gl.Enum
		want  int32
	}{
		{name: "major version", pname: gl.MajorVersion, want: 3},
		{name: "minor version", pname: gl.MinorVersion, want: 0},
		{name: "extensions count", pname: gl.NumExtensions, want: 6},
		{name: "shader compiler", pname: gl.ShaderCompiler, want: 1},
		{name: "compressed formats", pname: gl.NumCompressedTextureFormats, want: 0},
		{name: "binary formats", pname: gl.NumShaderBinaryFormats, want: 0},
		{name: "override", pname: gl.MaxTextureSize, want: 2048},
		{name: "null binding", pname: gl.ArrayBufferBinding, want: 0},
		{
			name:  "binding reports handle",
			setup: func() { f.thread.Bind(handle.KindBuffer, gl.ArrayBuffer, buf) },
			pname: gl.ArrayBufferBinding,
			want:  int32(buf),
		},
		{
			name: "bool parameter",
			setup: func() {
				f.thread.Call("enable", float64(gl.ScissorTest))
			},
			pname: gl.ScissorTest,
			want:  1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.setup != nil {
				tt.setup()
			}
			if err := f.heap.PutInt32(scratch, -1); err != nil {
				t.Fatal(err)
			}
			f.thread.GetIntegerv(f.ctx, tt.pname, scratch)
			f.expectError(t, gl.NoError)
			if got := f.int32At(t, scratch); got != tt.want {
				t.Errorf("GetIntegerv(%#x) = %d, want %d", uint32(tt.pname), got, tt.want)
			}
		})
	}
}

func TestGetIntegervArrays(t *testing.T) {
	f := newFixture(t, memdevice.Options{})

	f.thread.GetIntegerv(f.ctx, gl.Viewport, scratch)
	got, err := marshal.Load[int32](f.heap, scratch, 4)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]int32{0, 0, 4, 4}, got); diff != "" {
		t.Errorf("VIEWPORT (-want +got):\n%s", diff)
	}

	f.thread.Call("clearColor", 0.25, 0.5, 0.75, 1)
	f.thread.GetFloatv(f.ctx, gl.ColorClearValue, scratch)
	colors, err := marshal.Load[float32](f.heap, scratch, 4)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]float32{0.25, 0.5, 0.75, 1}, colors); diff != "" {
		t.Errorf("COLOR_CLEAR_VALUE (-want +got):\n%s", diff)
	}
	f.expectError(t, gl.NoError)
}

func TestGetIntegervErrors(t *testing.T) {
	f := newFixture(t, memdevice.Options{})

	f.thread.GetIntegerv(f.ctx, gl.MaxTextureSize, 0)
	f.expectError(t, gl.InvalidValue)

	f.thread.GetIntegerv(f.ctx, 0x1234, scratch)
	f.expectError(t, gl.InvalidEnum)

	f.thread.GetFloatv(f.ctx, gl.ShaderBinaryFormats, scratch)
	f.expectError(t, gl.InvalidEnum)

	f.thread.GetIntegerv(f.ctx, gl.ShaderBinaryFormats, scratch)
	f.expectError(t, gl.NoError)
}

func TestGetIntegervVersion1(t *testing.T) {
	f := newFixture(t, memdevice.Options{MaxVersion: 1})

	f.thread.GetIntegerv(f.ctx, gl.MajorVersion, scratch)
	f.expectError(t, gl.InvalidEnum)

	f.thread.GetIntegerv(f.ctx, gl.NumExtensions, scratch)
	f.expectError(t, gl.InvalidOperation)
}

func TestGetProgramiv(t *testing.T) {
	f := newFixture(t, memdevice.Options{})
	p := f.linkProgram(t)

	tests := []struct {
		pname gl.Enum
		want  int32
	}{
		{gl.LinkStatus, 1},
		{gl.ActiveUniforms, 3},
		{gl.ActiveUniformMax, int32(len("uWeights[0]") + 1)},
		{gl.ActiveAttribMax, int32(len("aPosition") + 1)},
		{gl.InfoLogLength, 1},
		{gl.AttachedShaders, 2},
	}
	for _, tt := range tests {
		f.thread.GetProgramiv(f.ctx, p, tt.pname, scratch)
		if got := f.int32At(t, scratch); got != tt.want {
			t.Errorf("GetProgramiv(%#x) = %d, want %d", uint32(tt.pname), got, tt.want)
		}
	}
	f.expectError(t, gl.NoError)

	f.thread.GetProgramiv(f.ctx, 77, gl.LinkStatus, scratch)
	f.expectError(t, gl.InvalidValue)
}

func TestGetShaderiv(t *testing.T) {
	f := newFixture(t, memdevice.Options{})

	s := f.thread.CreateShader(gl.VertexShader)
	f.thread.GetShaderiv(f.ctx, s, gl.ShaderSourceLen, scratch)
	if got := f.int32At(t, scratch); got != 0 {
		t.Errorf("SHADER_SOURCE_LENGTH without source = %d, want 0", got)
	}

	f.thread.ShaderSource(s, vertexSource)
	f.thread.CompileShader(s)

	f.thread.GetShaderiv(f.ctx, s, gl.ShaderSourceLen, scratch)
	if got := f.int32At(t, scratch); got != int32(len(vertexSource)+1) {
		t.Errorf("SHADER_SOURCE_LENGTH = %d, want %d", got, len(vertexSource)+1)
	}
	f.thread.GetShaderiv(f.ctx, s, gl.InfoLogLength, scratch)
	if got := f.int32At(t, scratch); got != 0 {
		t.Errorf("INFO_LOG_LENGTH of a clean compile = %d, want 0", got)
	}
	f.thread.GetShaderiv(f.ctx, s, gl.CompileStatus, scratch)
	if got := f.int32At(t, scratch); got != 1 {
		t.Errorf("COMPILE_STATUS = %d, want 1", got)
	}
	f.expectError(t, gl.NoError)
}

func TestGetShaderInfoLogTruncates(t *testing.T) {
	f := newFixture(t, memdevice.Options{})

	s := f.thread.CreateShader(gl.FragmentShader)
	f.thread.ShaderSource(s, "#error héllo\n")
	f.thread.CompileShader(s)

	full := "ERROR: 0:1: '#error' : héllo\n"
	f.thread.GetShaderiv(f.ctx, s, gl.InfoLogLength, scratch)
	if got := f.int32At(t, scratch); got != int32(len(full)+1) {
		t.Errorf("INFO_LOG_LENGTH = %d, want %d", got, len(full)+1)
	}

	const lengthPtr, logPtr = scratch, scratch + 64
	tests := []struct {
		bufSize int32
		want    string
	}{
		{8, "ERROR: "},
		// The two-byte é would end at byte 26 and is dropped whole.
		{26, "ERROR: 0:1: '#error' : h"},
		{100, full},
	}
	for _, tt := range tests {
		f.thread.GetShaderInfoLog(f.ctx, s, tt.bufSize, lengthPtr, logPtr)
		if got := f.stringAt(t, logPtr); got != tt.want {
			t.Errorf("bufSize %d: log = %q, want %q", tt.bufSize, got, tt.want)
		}
		if got := f.int32At(t, lengthPtr); got != int32(len(tt.want)) {
			t.Errorf("bufSize %d: length = %d, want %d", tt.bufSize, got, len(tt.want))
		}
	}

	f.thread.GetShaderInfoLog(f.ctx, s, 0, lengthPtr, logPtr)
	if got := f.int32At(t, lengthPtr); got != 0 {
		t.Errorf("bufSize 0: length = %d, want 0", got)
	}
}

func TestGetProgramInfoLogOfUnknownProgram(t *testing.T) {
	f := newFixture(t, memdevice.Options{})

	f.thread.GetProgramInfoLog(f.ctx, 9, 64, scratch, scratch+4)
	if got := f.stringAt(t, scratch+4); got != "(unknown error)" {
		t.Errorf("log = %q", got)
	}
}

func TestUniformLocations(t *testing.T) {
	f := newFixture(t, memdevice.Options{})
	p := f.linkProgram(t)

	tests := []struct {
		name string
		want int32
	}{
		{"uMatrix", 1},
		{"uColor", 2},
		{"uWeights", 3},
		{"uWeights[0]", 3},
		{"uWeights[2]", 5},
		{"uWeights[3]", -1},
		{"uMissing", -1},
	}
	for _, tt := range tests {
		if got := f.thread.GetUniformLocation(p, tt.name); got != tt.want {
			t.Errorf("GetUniformLocation(%q) = %d, want %d", tt.name, got, tt.want)
		}
	}
	f.expectError(t, gl.NoError)

	if got := f.thread.GetUniformLocation(99, "uColor"); got != -1 {
		t.Errorf("GetUniformLocation on an unknown program = %d", got)
	}
	f.expectError(t, gl.InvalidValue)
}

func TestUniformLocationsAfterRelink(t *testing.T) {
	f := newFixture(t, memdevice.Options{})
	p := f.linkProgram(t)

	if got := f.thread.GetUniformLocation(p, "uColor"); got != 2 {
		t.Fatalf("uColor = %d, want 2", got)
	}

	f.thread.LinkProgram(p)
	// Locations keep counting across links.
	if got := f.thread.GetUniformLocation(p, "uMatrix"); got != 6 {
		t.Errorf("uMatrix after relink = %d, want 6", got)
	}
	if got := f.thread.GetUniformLocation(p, "uColor"); got != 7 {
		t.Errorf("uColor after relink = %d, want 7", got)
	}
	if got := f.thread.GetUniformLocation(p, "uWeights[1]"); got != 9 {
		t.Errorf("uWeights[1] after relink = %d, want 9", got)
	}
}

func TestSetUniforms(t *testing.T) {
	f := newFixture(t, memdevice.Options{})
	p := f.linkProgram(t)
	o := f.object(handle.KindProgram, p)
	dev := f.device()

	color := f.thread.GetUniformLocation(p, "uColor")
	weight1 := f.thread.GetUniformLocation(p, "uWeights[1]")
	matrix := f.thread.GetUniformLocation(p, "uMatrix")

	f.thread.UniformF(color, 4, []float32{1, 0, 0, 1})
	f.expectError(t, gl.InvalidOperation)
	if _, ok := dev.Uniform(o, "uColor", 0); ok {
		t.Fatal("uniform set without a current program")
	}

	f.thread.UseProgram(p)
	f.thread.UniformF(color, 4, []float32{1, 0, 0, 1})
	f.thread.UniformF(weight1, 1, []float32{0.5, 0.25})
	f.thread.UniformMatrix(matrix, 3, true, []float32{1, 2, 3, 4, 5, 6, 7, 8, 9})
	f.thread.UniformI(99, 1, []int32{1})
	f.expectError(t, gl.NoError)

	checks := []struct {
		name  string
		index int
		want  []float32
	}{
		{"uColor", 0, []float32{1, 0, 0, 1}},
		{"uWeights", 1, []float32{0.5}},
		{"uWeights", 2, []float32{0.25}},
		{"uMatrix", 0, []float32{1, 4, 7, 2, 5, 8, 3, 6, 9}},
	}
	for _, c := range checks {
		got, ok := dev.Uniform(o, c.name, c.index)
		if !ok {
			t.Errorf("%s[%d] was not set", c.name, c.index)
			continue
		}
		if diff := cmp.Diff(c.want, got); diff != "" {
			t.Errorf("%s[%d] (-want +got):\n%s", c.name, c.index, diff)
		}
	}
	if _, ok := dev.Uniform(o, "uWeights", 0); ok {
		t.Error("uWeights[0] should be untouched")
	}
}

func TestGetShaderPrecisionFormat(t *testing.T) {
	f := newFixture(t, memdevice.Options{})

	f.thread.GetShaderPrecisionFormat(f.ctx, gl.FragmentShader, gl.HighFloat, scratch, scratch+8)
	got, err := marshal.Load[int32](f.heap, scratch, 3)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]int32{127, 127, 23}, got); diff != "" {
		t.Errorf("precision format (-want +got):\n%s", diff)
	}
}

func TestLinkFailureLog(t *testing.T) {
	f := newFixture(t, memdevice.Options{})

	p := f.thread.CreateProgram()
	s := f.thread.CreateShader(gl.VertexShader)
	f.thread.ShaderSource(s, vertexSource)
	f.thread.CompileShader(s)
	f.thread.AttachShader(p, s)
	f.thread.LinkProgram(p)

	f.thread.GetProgramiv(f.ctx, p, gl.LinkStatus, scratch)
	if got := f.int32At(t, scratch); got != 0 {
		t.Errorf("LINK_STATUS = %d, want 0", got)
	}
	f.thread.GetProgramInfoLog(f.ctx, p, 256, 0, scratch)
	if got := f.stringAt(t, scratch); !strings.Contains(got, "missing") {
		t.Errorf("link log = %q", got)
	}
}
