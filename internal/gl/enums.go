package gl

// Enum is a GL enumerant.
type Enum uint32

// Error codes.
const (
	NoError                     Enum = 0
	InvalidEnum                 Enum = 0x0500
	InvalidValue                Enum = 0x0501
	InvalidOperation            Enum = 0x0502
	OutOfMemory                 Enum = 0x0505
	InvalidFramebufferOperation Enum = 0x0506
)

// getString names.
const (
	Vendor                 Enum = 0x1F00
	Renderer               Enum = 0x1F01
	Version                Enum = 0x1F02
	Extensions             Enum = 0x1F03
	ShadingLanguageVersion Enum = 0x8B8C
	UnmaskedVendor         Enum = 0x9245
	UnmaskedRenderer       Enum = 0x9246
)

// Buffer targets.
const (
	ArrayBuffer        Enum = 0x8892
	ElementArrayBuffer Enum = 0x8893
	PixelPackBuffer    Enum = 0x88EB
	PixelUnpackBuffer  Enum = 0x88EC
)

// Texture and framebuffer targets.
const (
	Texture2D        Enum = 0x0DE1
	Framebuffer      Enum = 0x8D40
	Renderbuffer     Enum = 0x8D41
	ColorAttachment0 Enum = 0x8CE0

	FramebufferComplete                    Enum = 0x8CD5
	FramebufferIncompleteAttachment        Enum = 0x8CD6
	FramebufferIncompleteMissingAttachment Enum = 0x8CD7
	FramebufferAttachmentObjectType        Enum = 0x8CD0
	FramebufferAttachmentObjectName        Enum = 0x8CD1
)

// Pixel storage.
const (
	UnpackAlignment             Enum = 0x0CF5
	PackAlignment               Enum = 0x0D05
	UnpackFlipY                 Enum = 0x9240
	UnpackPremultiplyAlphaWebGL Enum = 0x9241
)

// Pixel formats.
const (
	Alpha          Enum = 0x1906
	RGB            Enum = 0x1907
	RGBA           Enum = 0x1908
	Luminance      Enum = 0x1909
	LuminanceAlpha Enum = 0x190A
	Red            Enum = 0x1903
	RG             Enum = 0x8227
	RGInteger      Enum = 0x8228
	RGBInteger     Enum = 0x8D98
	RGBAInteger    Enum = 0x8D99
	SRGB           Enum = 0x8C40
	SRGBAlpha      Enum = 0x8C42
	RGBA8          Enum = 0x8058
)

// Pixel types.
const (
	Byte                     Enum = 0x1400
	UnsignedByte             Enum = 0x1401
	Short                    Enum = 0x1402
	UnsignedShort            Enum = 0x1403
	Int                      Enum = 0x1404
	UnsignedInt              Enum = 0x1405
	Float                    Enum = 0x1406
	HalfFloat                Enum = 0x140B
	UnsignedShort565         Enum = 0x8363
	UnsignedInt2101010Rev    Enum = 0x8368
	UnsignedInt248           Enum = 0x84FA
	UnsignedInt10F11F11FRev  Enum = 0x8C3B
	UnsignedInt5999Rev       Enum = 0x8C3E
	Float32UnsignedInt248Rev Enum = 0x8DAD
	UnsignedShort4444        Enum = 0x8033
	UnsignedShort5551        Enum = 0x8034
)

// Shaders and programs.
const (
	FragmentShader Enum = 0x8B30
	VertexShader   Enum = 0x8B31

	CompileStatus    Enum = 0x8B81
	LinkStatus       Enum = 0x8B82
	InfoLogLength    Enum = 0x8B84
	ShaderSourceLen  Enum = 0x8B88
	ActiveUniforms   Enum = 0x8B86
	ActiveUniformMax Enum = 0x8B87
	ActiveAttributes Enum = 0x8B89
	ActiveAttribMax  Enum = 0x8B8A
	ActiveBlocks     Enum = 0x8A36
	ActiveBlockMax   Enum = 0x8A35
	AttachedShaders  Enum = 0x8B85
	ShaderType       Enum = 0x8B4F
	DeleteStatus     Enum = 0x8B80

	LowFloat    Enum = 0x8DF0
	MediumFloat Enum = 0x8DF1
	HighFloat   Enum = 0x8DF2
	LowInt      Enum = 0x8DF3
	MediumInt   Enum = 0x8DF4
	HighInt     Enum = 0x8DF5
)

// Sync objects.
const (
	SyncGPUCommandsComplete Enum = 0x9117
	AlreadySignaled         Enum = 0x911A
	TimeoutExpired          Enum = 0x911B
	ConditionSatisfied      Enum = 0x911C
	WaitFailed              Enum = 0x911D
)

// SyncFlushCommandsBit makes clientWaitSync flush before waiting.
const SyncFlushCommandsBit = 0x00000001

// Buffer usage and parameters.
const (
	StaticDraw  Enum = 0x88E4
	DynamicDraw Enum = 0x88E8
	StreamDraw  Enum = 0x88E0
	BufferSize  Enum = 0x8764
	BufferUsage Enum = 0x8765

	RenderbufferWidth          Enum = 0x8D42
	RenderbufferHeight         Enum = 0x8D43
	RenderbufferInternalFormat Enum = 0x8D44
)

// getParameter names with special handling.
const (
	MajorVersion                Enum = 0x821B
	MinorVersion                Enum = 0x821C
	NumExtensions               Enum = 0x821D
	NumCompressedTextureFormats Enum = 0x86A2
	CompressedTextureFormats    Enum = 0x86A3
	NumProgramBinaryFormats     Enum = 0x87FE
	ShaderBinaryFormats         Enum = 0x8DF8
	NumShaderBinaryFormats      Enum = 0x8DF9
	ShaderCompiler              Enum = 0x8DFA

	Viewport        Enum = 0x0BA2
	MaxTextureSize  Enum = 0x0D33
	MaxRenderbuffer Enum = 0x84E8
	ColorClearValue Enum = 0x0C22
	Samples         Enum = 0x80A9
	StencilBits     Enum = 0x0D57
)

// Binding queries. A null object bound at any of these reads as 0.
const (
	ArrayBufferBinding        Enum = 0x8894
	ElementArrayBufferBinding Enum = 0x8895
	CurrentProgram            Enum = 0x8B8D
	FramebufferBinding        Enum = 0x8CA6
	ReadFramebufferBinding    Enum = 0x8CAA
	RenderbufferBinding       Enum = 0x8CA7
	TextureBinding2D          Enum = 0x8069
	TextureBindingCubeMap     Enum = 0x8514
	TextureBinding2DArray     Enum = 0x8C1D
	TextureBinding3D          Enum = 0x806A
	CopyReadBufferBinding     Enum = 0x8F36
	CopyWriteBufferBinding    Enum = 0x8F37
	PixelPackBufferBinding    Enum = 0x88ED
	PixelUnpackBufferBinding  Enum = 0x88EF
	SamplerBinding            Enum = 0x8919
	TransformFeedbackBinding  Enum = 0x8E25
	TransformFeedbackBuffer   Enum = 0x8C8F
	UniformBufferBinding      Enum = 0x8A28
	VertexArrayBinding        Enum = 0x85B5
)

// Framebuffer attachment object types.
const (
	None    Enum = 0
	Texture Enum = 0x1702
)

// Clear mask bits.
const (
	ColorBufferBit   = 0x00004000
	DepthBufferBit   = 0x00000100
	StencilBufferBit = 0x00000400
)

// Capabilities.
const (
	ScissorTest Enum = 0x0C11
	Blend       Enum = 0x0BE2
)

var nullBindings = map[Enum]bool{
	ArrayBufferBinding:        true,
	CurrentProgram:            true,
	ElementArrayBufferBinding: true,
	FramebufferBinding:        true,
	ReadFramebufferBinding:    true,
	TextureBinding2D:          true,
	TextureBinding2DArray:     true,
	TextureBinding3D:          true,
	CopyReadBufferBinding:     true,
	CopyWriteBufferBinding:    true,
	PixelPackBufferBinding:    true,
	PixelUnpackBufferBinding:  true,
	TransformFeedbackBuffer:   true,
	TransformFeedbackBinding:  true,
	UniformBufferBinding:      true,
	SamplerBinding:            true,
	VertexArrayBinding:        true,
	RenderbufferBinding:       true,
	TextureBindingCubeMap:     true,
}
