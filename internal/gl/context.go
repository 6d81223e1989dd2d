package gl

import (
	"github.com/woxQAQ/skwasm-bridge/internal/canvas"
	"github.com/woxQAQ/skwasm-bridge/internal/handle"
)

var objectKinds = []handle.Kind{
	handle.KindBuffer,
	handle.KindTexture,
	handle.KindProgram,
	handle.KindShader,
	handle.KindFramebuffer,
	handle.KindRenderbuffer,
	handle.KindSampler,
	handle.KindSync,
	handle.KindVertexArray,
}

// Context is the record behind a GL context handle.
type Context struct {
	Handle     handle.Handle
	Version    int
	Attributes Attributes
	Canvas     *canvas.Canvas
	Device     Device

	tables map[handle.Kind]*handle.Table[Object]
	names  map[handle.Kind]map[Object]handle.Handle

	programs map[handle.Handle]*programInfo

	packBuffer     handle.Handle
	unpackBuffer   handle.Handle
	arrayBuffer    handle.Handle
	elementBuffer  handle.Handle
	currentProgram handle.Handle

	unpackAlignment int32
	packAlignment   int32

	extensionsEnabled bool

	strings  map[Enum]uint32
	stringsi map[Enum][]uint32
}

func newContext(h handle.Handle, version int, attrs Attributes, c *canvas.Canvas, dev Device) *Context {
	ctx := &Context{
		Handle:          h,
		Version:         version,
		Attributes:      attrs,
		Canvas:          c,
		Device:          dev,
		tables:          make(map[handle.Kind]*handle.Table[Object], len(objectKinds)),
		names:           make(map[handle.Kind]map[Object]handle.Handle, len(objectKinds)),
		programs:        make(map[handle.Handle]*programInfo),
		unpackAlignment: 4,
		packAlignment:   4,
		strings:         make(map[Enum]uint32),
		stringsi:        make(map[Enum][]uint32),
	}
	for _, k := range objectKinds {
		ctx.tables[k] = handle.New[Object](k)
		ctx.names[k] = make(map[Object]handle.Handle)
	}
	return ctx
}

// Table returns the handle table for kind.
func (c *Context) Table(kind handle.Kind) *handle.Table[Object] {
	return c.tables[kind]
}

// Lookup resolves a handle to its device object. Unknown, deleted and null
// handles resolve to the null object.
func (c *Context) Lookup(kind handle.Kind, h handle.Handle) Object {
	o, _ := c.tables[kind].Get(h)
	return o
}

func (c *Context) register(kind handle.Kind, o Object) handle.Handle {
	h := c.tables[kind].Insert(o)
	c.names[kind][o] = h
	return h
}

func (c *Context) unregister(kind handle.Kind, h handle.Handle) (Object, bool) {
	o, ok := c.tables[kind].Delete(h)
	if ok {
		delete(c.names[kind], o)
	}
	return o, ok
}

// name maps a device object back to its handle, or 0.
func (c *Context) name(kind handle.Kind, o Object) handle.Handle {
	if o == 0 {
		return handle.Null
	}
	return c.names[kind][o]
}

// PixelPackBuffer returns the handle bound to PIXEL_PACK_BUFFER.
func (c *Context) PixelPackBuffer() handle.Handle { return c.packBuffer }

// PixelUnpackBuffer returns the handle bound to PIXEL_UNPACK_BUFFER.
func (c *Context) PixelUnpackBuffer() handle.Handle { return c.unpackBuffer }

// CurrentProgram returns the handle passed to the last useProgram.
func (c *Context) CurrentProgram() handle.Handle { return c.currentProgram }

// UnpackAlignment returns the tracked UNPACK_ALIGNMENT.
func (c *Context) UnpackAlignment() int32 { return c.unpackAlignment }

// programInfo caches what the shim derives from a linked program.
type programInfo struct {
	maxUniformLen int32
	maxAttribLen  int32
	maxBlockLen   int32

	// Uniform location table, built on the first getUniformLocation after a
	// link. Locations are handed out from next and never reused.
	built bool
	next  int32
	bases map[string]uniformRange
	slots map[int32]*uniformSlot
}

type uniformRange struct {
	size  int32
	first int32
}

type uniformSlot struct {
	base     string
	index    int32
	loc      Location
	resolved bool
}

func newProgramInfo() *programInfo {
	return &programInfo{next: 1}
}

func (p *programInfo) reset() {
	p.built = false
	p.bases = nil
	p.slots = nil
	p.maxUniformLen, p.maxAttribLen, p.maxBlockLen = 0, 0, 0
}
