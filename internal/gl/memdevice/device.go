// Package memdevice implements gl.Device in memory on top of a canvas.
//
// It rasterizes nothing beyond clears but keeps enough object and binding
// state for the GL shim to run an engine's context setup, texture uploads,
// shader compilation, uniform traffic and readbacks without a browser.
package memdevice

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/woxQAQ/skwasm-bridge/internal/canvas"
	"github.com/woxQAQ/skwasm-bridge/internal/gl"
	"github.com/woxQAQ/skwasm-bridge/internal/handle"
)

// ErrUnavailable is returned by a factory configured to fail.
var ErrUnavailable = errors.New("memdevice: GL is unavailable")

// VersionError reports a request for an unsupported major version.
type VersionError struct {
	Requested int
	Max       int
}

func (e *VersionError) Error() string {
	return fmt.Sprintf("memdevice: version %d context requested, at most %d is supported", e.Requested, e.Max)
}

// DefaultExtensions is the extension list of a device created without
// explicit extensions.
var DefaultExtensions = []string{
	"ANGLE_instanced_arrays",
	"EXT_color_buffer_float",
	"OES_texture_float_linear",
	"WEBGL_debug_renderer_info",
	"WEBGL_draw_instanced_base_vertex_base_instance",
	"WEBGL_lose_context",
	"WEBGL_multi_draw",
}

// Options configure the devices a Factory creates.
type Options struct {
	// Extensions overrides DefaultExtensions.
	Extensions []string `mapstructure:"extensions"`
	// Parameters override getParameter results.
	Parameters map[gl.Enum]any `mapstructure:"-"`
	// MaxVersion is the highest major version offered; 0 means 2.
	MaxVersion int `mapstructure:"max_version"`
	// Fail makes every NewDevice call fail.
	Fail bool `mapstructure:"fail"`
}

// Factory creates in-memory devices.
type Factory struct {
	Options Options
	Logger  *zap.Logger

	mu      sync.Mutex
	devices []*Device
}

// NewFactory returns a factory with the given options.
func NewFactory(opts Options, logger *zap.Logger) *Factory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Factory{Options: opts, Logger: logger}
}

// NewDevice implements gl.Factory.
func (f *Factory) NewDevice(c *canvas.Canvas, version int, attrs gl.Attributes) (gl.Device, error) {
	if f.Options.Fail {
		return nil, ErrUnavailable
	}
	maxVersion := f.Options.MaxVersion
	if maxVersion == 0 {
		maxVersion = 2
	}
	if version > maxVersion {
		return nil, &VersionError{Requested: version, Max: maxVersion}
	}

	logger := f.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	exts := f.Options.Extensions
	if exts == nil {
		exts = DefaultExtensions
	}
	d := newDevice(c, version, attrs, exts, f.Options.Parameters, logger)

	f.mu.Lock()
	f.devices = append(f.devices, d)
	f.mu.Unlock()
	return d, nil
}

// Devices returns the devices created so far.
func (f *Factory) Devices() []*Device {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.devices)
}

// Call is one recorded numeric command.
type Call struct {
	Name string
	Args []float64
}

type object struct {
	kind handle.Kind

	buffer       *buffer
	texture      *texture
	shader       *shader
	program      *program
	framebuffer  *framebuffer
	renderbuffer *renderbuffer
	signaled     bool
}

type bindingKey struct {
	kind   handle.Kind
	target gl.Enum
}

// Device is an in-memory gl.Device. It is not safe for concurrent use.
type Device struct {
	Canvas     *canvas.Canvas
	Version    int
	Attributes gl.Attributes

	logger *zap.Logger

	next     gl.Object
	objects  map[gl.Object]*object
	bindings map[bindingKey]gl.Object
	current  gl.Object

	calls []Call

	clearColor [4]float32
	viewport   [4]int32
	enabled    map[gl.Enum]bool
	pixelStore map[gl.Enum]int32

	extensions []string
	enabledExt map[string]bool
	parameters map[gl.Enum]any

	locations    map[gl.Location]uniformRef
	nextLocation gl.Location

	err gl.Enum
}

func newDevice(c *canvas.Canvas, version int, attrs gl.Attributes, exts []string, params map[gl.Enum]any, logger *zap.Logger) *Device {
	return &Device{
		Canvas:     c,
		Version:    version,
		Attributes: attrs,
		logger:     logger.With(zap.String("component", "memdevice"), zap.Uint32("canvas", c.ID)),
		objects:    make(map[gl.Object]*object),
		bindings:   make(map[bindingKey]gl.Object),
		viewport:   [4]int32{0, 0, int32(c.Width()), int32(c.Height())},
		enabled:    make(map[gl.Enum]bool),
		pixelStore: map[gl.Enum]int32{gl.UnpackAlignment: 4, gl.PackAlignment: 4},
		extensions: slices.Clone(exts),
		enabledExt: make(map[string]bool),
		parameters: params,
		locations:  make(map[gl.Location]uniformRef),
	}
}

func (d *Device) setError(code gl.Enum) {
	if d.err == gl.NoError {
		d.err = code
	}
}

// Error implements gl.Device.
func (d *Device) Error() gl.Enum {
	code := d.err
	d.err = gl.NoError
	return code
}

// Calls returns the numeric commands recorded so far.
func (d *Device) Calls() []Call {
	return slices.Clone(d.calls)
}

// CallsNamed returns the recorded commands with the given name.
func (d *Device) CallsNamed(name string) []Call {
	var out []Call
	for _, c := range d.calls {
		if c.Name == name {
			out = append(out, c)
		}
	}
	return out
}

// Live returns the number of live objects of kind.
func (d *Device) Live(kind handle.Kind) int {
	n := 0
	for _, o := range d.objects {
		if o.kind == kind {
			n++
		}
	}
	return n
}

func (d *Device) lookup(kind handle.Kind, o gl.Object) *object {
	obj, ok := d.objects[o]
	if !ok || obj.kind != kind {
		return nil
	}
	return obj
}

func (d *Device) bound(kind handle.Kind, target gl.Enum) *object {
	return d.lookup(kind, d.bindings[bindingKey{kind, target}])
}

// Create implements gl.Device.
func (d *Device) Create(kind handle.Kind, arg gl.Enum) gl.Object {
	obj := &object{kind: kind}
	switch kind {
	case handle.KindSampler, handle.KindSync:
		if d.Version < 2 {
			d.setError(gl.InvalidOperation)
			return 0
		}
	case handle.KindShader:
		if arg != gl.VertexShader && arg != gl.FragmentShader {
			d.setError(gl.InvalidEnum)
			return 0
		}
		obj.shader = &shader{typ: arg}
	case handle.KindProgram:
		obj.program = &program{uniforms: make(map[string][]float32)}
	case handle.KindBuffer:
		obj.buffer = &buffer{}
	case handle.KindTexture:
		obj.texture = &texture{}
	case handle.KindFramebuffer:
		obj.framebuffer = &framebuffer{}
	case handle.KindRenderbuffer:
		obj.renderbuffer = &renderbuffer{}
	}
	d.next++
	d.objects[d.next] = obj
	return d.next
}

// Delete implements gl.Device. Deleting a bound object unbinds it.
func (d *Device) Delete(kind handle.Kind, o gl.Object) {
	if d.lookup(kind, o) == nil {
		return
	}
	delete(d.objects, o)
	for k, b := range d.bindings {
		if k.kind == kind && b == o {
			delete(d.bindings, k)
		}
	}
	if kind == handle.KindProgram && d.current == o {
		d.current = 0
	}
	if kind == handle.KindTexture || kind == handle.KindRenderbuffer {
		for _, obj := range d.objects {
			if fb := obj.framebuffer; fb != nil && fb.attached == o && fb.kind == kind {
				fb.attached, fb.kind = 0, 0
			}
		}
	}
}

// Is implements gl.Device.
func (d *Device) Is(kind handle.Kind, o gl.Object) bool {
	return d.lookup(kind, o) != nil
}

// Bind implements gl.Device.
func (d *Device) Bind(kind handle.Kind, target gl.Enum, o gl.Object) {
	if o != 0 && d.lookup(kind, o) == nil {
		d.setError(gl.InvalidOperation)
		return
	}
	if kind == handle.KindVertexArray {
		target = 0
	}
	key := bindingKey{kind, target}
	if o == 0 {
		delete(d.bindings, key)
		return
	}
	d.bindings[key] = o
}

// Extension implements gl.Device.
func (d *Device) Extension(name string) bool {
	if !slices.Contains(d.extensions, name) {
		return false
	}
	d.enabledExt[name] = true
	return true
}

// ExtensionEnabled reports whether name was enabled.
func (d *Device) ExtensionEnabled(name string) bool {
	return d.enabledExt[name]
}

// SupportedExtensions implements gl.Device.
func (d *Device) SupportedExtensions() []string {
	return slices.Clone(d.extensions)
}
