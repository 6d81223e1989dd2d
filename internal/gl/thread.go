// Package gl bridges the GL entry points an engine build imports onto a
// Device.
//
// The guest refers to GL objects by small integer handles. Each context keeps
// one handle table per object kind and translates handles to device objects
// on every call. A Thread holds the contexts created on one thread, the
// current context and the sticky error register that glGetError drains.
package gl

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/woxQAQ/skwasm-bridge/internal/canvas"
	"github.com/woxQAQ/skwasm-bridge/internal/handle"
)

// Results of emscripten_webgl_make_context_current.
const (
	ResultSuccess      = 0
	ResultInvalidParam = -5
)

// ErrNilCanvas is returned when a context is requested without a canvas.
var ErrNilCanvas = errors.New("null canvas passed to context creation")

// Thread is the GL state of one thread. It is not safe for concurrent use;
// every call must come from the owning thread.
type Thread struct {
	ID uint32

	logger   *zap.Logger
	factory  Factory
	contexts *handle.Table[*Context]
	current  *Context

	lastError Enum
}

// NewThread creates the GL state for thread id.
func NewThread(id uint32, factory Factory, logger *zap.Logger) *Thread {
	return &Thread{
		ID:       id,
		logger:   logger.With(zap.String("component", "gl"), zap.Uint32("thread", id)),
		factory:  factory,
		contexts: handle.New[*Context](handle.KindContext),
	}
}

// CreateContext creates a context on c. The requested major version is tried
// first, then version 1. When no device can be created it returns the null
// handle and no error; the caller keeps rendering in software.
func (t *Thread) CreateContext(c *canvas.Canvas, attrs Attributes) (handle.Handle, error) {
	if c == nil {
		return handle.Null, ErrNilCanvas
	}
	if err := c.Check(t.ID); err != nil {
		return handle.Null, err
	}

	version := attrs.MajorVersion
	if version <= 0 {
		version = 2
	}

	dev, err := t.factory.NewDevice(c, version, attrs)
	if err != nil && version > 1 {
		t.logger.Info("Falling back to a version 1 context",
			zap.Int("requested_version", version),
			zap.Error(err),
		)
		version = 1
		dev, err = t.factory.NewDevice(c, version, attrs)
	}
	if err != nil {
		t.logger.Warn("No GL context available for canvas",
			zap.Uint32("canvas", c.ID),
			zap.Error(err),
		)
		return handle.Null, nil
	}

	attrs.MajorVersion = version
	h := t.contexts.Allocate()
	ctx := newContext(h, version, attrs, c, dev)
	t.contexts.Set(h, ctx)

	if attrs.EnableExtensionsByDefault {
		t.enableDefaultExtensions(ctx)
	}

	t.logger.Debug("Created GL context",
		zap.Uint32("handle", uint32(h)),
		zap.Int("version", version),
		zap.Uint32("canvas", c.ID),
	)
	return h, nil
}

func (t *Thread) enableDefaultExtensions(ctx *Context) {
	if ctx.extensionsEnabled {
		return
	}
	ctx.extensionsEnabled = true
	for _, name := range ctx.Device.SupportedExtensions() {
		if strings.Contains(name, "lose_context") || strings.Contains(name, "debug") {
			continue
		}
		ctx.Device.Extension(name)
	}
}

// Context returns the record of h.
func (t *Thread) Context(h handle.Handle) (*Context, bool) {
	return t.contexts.Get(h)
}

// Contexts returns the number of live contexts.
func (t *Thread) Contexts() int {
	return t.contexts.Live()
}

// MakeCurrent makes h the current context. The null handle clears it.
func (t *Thread) MakeCurrent(h handle.Handle) int32 {
	ctx, ok := t.contexts.Get(h)
	t.current = ctx
	if h == handle.Null || ok {
		return ResultSuccess
	}
	return ResultInvalidParam
}

// Current returns the current context, or nil.
func (t *Thread) Current() *Context {
	return t.current
}

// CurrentHandle returns the current context handle, or 0.
func (t *Thread) CurrentHandle() handle.Handle {
	if t.current == nil {
		return handle.Null
	}
	return t.current.Handle
}

// DestroyContext removes the context. Destroying the current context clears
// the current binding.
func (t *Thread) DestroyContext(h handle.Handle) bool {
	ctx, ok := t.contexts.Delete(h)
	if !ok {
		return false
	}
	if t.current == ctx {
		t.current = nil
	}
	return true
}

// EnableExtension enables name on the context h. A "GL_" prefix is ignored.
func (t *Thread) EnableExtension(h handle.Handle, name string) bool {
	ctx, ok := t.contexts.Get(h)
	if !ok {
		return false
	}
	return ctx.Device.Extension(strings.TrimPrefix(name, "GL_"))
}

// SetError records code unless an earlier error is still pending.
func (t *Thread) SetError(code Enum) {
	if t.lastError == NoError {
		t.lastError = code
	}
}

// GetError returns the device's error if it has one, otherwise the sticky
// error. Either way the sticky register is cleared.
func (t *Thread) GetError() Enum {
	code := NoError
	if t.current != nil {
		code = t.current.Device.Error()
	}
	if code == NoError {
		code = t.lastError
	}
	t.lastError = NoError
	return code
}

// require returns the current context, or records INVALID_OPERATION.
func (t *Thread) require() *Context {
	if t.current == nil {
		t.SetError(InvalidOperation)
	}
	return t.current
}

type threadKey struct{}

// WithThread binds t to ctx for host functions.
func WithThread(ctx context.Context, t *Thread) context.Context {
	return context.WithValue(ctx, threadKey{}, t)
}

// ThreadFrom returns the thread bound to ctx.
func ThreadFrom(ctx context.Context) (*Thread, bool) {
	t, ok := ctx.Value(threadKey{}).(*Thread)
	return t, ok
}

// NoThreadError is the panic value of a GL host function called without a
// thread bound to its context.
type NoThreadError struct {
	Function string
}

func (e *NoThreadError) Error() string {
	return "gl: " + e.Function + " called without a GL thread bound to the call context"
}

// MustThread returns the thread bound to ctx and panics with a
// *NoThreadError otherwise.
func MustThread(ctx context.Context, function string) *Thread {
	t, ok := ThreadFrom(ctx)
	if !ok {
		panic(&NoThreadError{Function: function})
	}
	return t
}
