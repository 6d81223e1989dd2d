package gl

import (
	"github.com/woxQAQ/skwasm-bridge/internal/canvas"
	"github.com/woxQAQ/skwasm-bridge/internal/handle"
)

// Object is a device-side GL object. 0 is the null object.
type Object uint32

// Location is a device-side uniform location.
type Location uint32

// Ref is a parameter value that names a device object.
type Ref struct {
	Kind   handle.Kind
	Object Object
}

// Attributes are the context creation attributes.
type Attributes struct {
	MajorVersion                 int    `mapstructure:"major_version"`
	Alpha                        bool   `mapstructure:"alpha"`
	Depth                        bool   `mapstructure:"depth"`
	Stencil                      bool   `mapstructure:"stencil"`
	Antialias                    bool   `mapstructure:"antialias"`
	PremultipliedAlpha           bool   `mapstructure:"premultiplied_alpha"`
	PreserveDrawingBuffer        bool   `mapstructure:"preserve_drawing_buffer"`
	PowerPreference              string `mapstructure:"power_preference"`
	FailIfMajorPerformanceCaveat bool   `mapstructure:"fail_if_major_performance_caveat"`
	EnableExtensionsByDefault    bool   `mapstructure:"enable_extensions_by_default"`
}

// DefaultAttributes returns the attributes offscreen engine canvases use.
func DefaultAttributes() Attributes {
	return Attributes{
		MajorVersion:              2,
		Alpha:                     true,
		Depth:                     true,
		Stencil:                   true,
		PremultipliedAlpha:        true,
		PowerPreference:           "default",
		EnableExtensionsByDefault: true,
	}
}

// TexImage describes a texImage2D, texSubImage2D or compressed upload.
type TexImage struct {
	Target         Enum
	Level          int32
	InternalFormat Enum
	X, Y           int32
	Width, Height  int32
	Format, Type   Enum
	Sub            bool
	Compressed     bool

	// Exactly one source is used: Data, the bound PIXEL_UNPACK buffer at
	// Offset when FromBuffer is set, or Source. All empty allocates storage.
	Data       []byte
	FromBuffer bool
	Offset     uint32
	Source     *canvas.Bitmap
}

// Device executes GL commands for one context. It plays the role of the
// browser's rendering context object. Devices are used from a single thread.
type Device interface {
	Create(kind handle.Kind, arg Enum) Object
	Delete(kind handle.Kind, o Object)
	Is(kind handle.Kind, o Object) bool
	// Bind binds o (possibly null) to target. Vertex arrays ignore target;
	// samplers use it as the texture unit.
	Bind(kind handle.Kind, target Enum, o Object)

	// Call runs a command that only takes numbers: state setters, clears,
	// draws, flush and finish. name is the WebGL method name.
	Call(name string, args ...float64)

	ShaderSource(shader Object, src string)
	CompileShader(shader Object)
	ShaderParameter(shader Object, pname Enum) int32
	ShaderInfoLog(shader Object) (string, bool)
	ShaderSourceText(shader Object) (string, bool)
	ShaderPrecisionFormat(shaderType, precisionType Enum) (rangeMin, rangeMax, precision int32)

	AttachShader(program, shader Object)
	BindAttribLocation(program Object, index uint32, name string)
	LinkProgram(program Object)
	UseProgram(program Object)
	ProgramParameter(program Object, pname Enum) int32
	ProgramInfoLog(program Object) (string, bool)
	ActiveUniform(program Object, index int) (name string, size int32)
	ActiveAttrib(program Object, index int) string
	ActiveUniformBlockName(program Object, index int) string
	UniformLocation(program Object, name string) (Location, bool)

	// UniformF and UniformI set size-component vectors; len(v) is a multiple
	// of size. UniformMatrix sets dim x dim matrices.
	UniformF(loc Location, size int, v []float32)
	UniformI(loc Location, size int, v []int32)
	UniformMatrix(loc Location, dim int, transpose bool, v []float32)

	// BufferData replaces the bound buffer's store with data, or with size
	// zero bytes when data is nil.
	BufferData(target Enum, size int, data []byte, usage Enum)
	BufferSubData(target Enum, offset int, data []byte)
	BufferParameter(target, pname Enum) int32

	TexImage(img *TexImage)

	// ReadPixels reads into dst, or into the bound PIXEL_PACK buffer at
	// offset when dst is nil.
	ReadPixels(x, y, width, height int32, format, typ Enum, dst []byte, offset uint32)

	FramebufferTexture2D(target, attachment, textarget Enum, texture Object, level int32)
	FramebufferRenderbuffer(target, attachment, rbtarget Enum, rb Object)
	CheckFramebufferStatus(target Enum) Enum
	FramebufferAttachmentParameter(target, attachment, pname Enum) any
	RenderbufferParameter(target, pname Enum) int32

	FenceSync(condition Enum, flags uint32) Object
	ClientWaitSync(sync Object, flags uint32, timeout uint64) Enum
	WaitSync(sync Object, flags uint32, timeout uint64)

	// Parameter mirrors getParameter. Results are nil, bool, int32, float32,
	// float64, string, []int32, []uint32, []float32, []bool or Ref.
	Parameter(pname Enum) any

	SupportedExtensions() []string
	Extension(name string) bool

	// Error returns and clears the device's own error.
	Error() Enum
}

// Factory creates devices bound to a canvas. It returns an error when no
// context of the requested major version can be created.
type Factory interface {
	NewDevice(c *canvas.Canvas, version int, attrs Attributes) (Device, error)
}
