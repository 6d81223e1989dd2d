package gl_test

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/woxQAQ/skwasm-bridge/internal/canvas"
	"github.com/woxQAQ/skwasm-bridge/internal/gl"
	"github.com/woxQAQ/skwasm-bridge/internal/gl/memdevice"
	"github.com/woxQAQ/skwasm-bridge/internal/handle"
)

func TestCreateContextFallsBackToVersion1(t *testing.T) {
	f := newFixture(t, memdevice.Options{MaxVersion: 1})

	ctx := f.thread.Current()
	if ctx.Version != 1 {
		t.Errorf("Version = %d, want 1", ctx.Version)
	}
	if ctx.Attributes.MajorVersion != 1 {
		t.Errorf("Attributes.MajorVersion = %d, want 1", ctx.Attributes.MajorVersion)
	}
}

func TestCreateContextWithoutGL(t *testing.T) {
	logger := zaptest.NewLogger(t)
	thread := gl.NewThread(1, memdevice.NewFactory(memdevice.Options{Fail: true}, logger), logger)

	h, err := thread.CreateContext(canvas.New(1, 4, 4, 1), gl.DefaultAttributes())
	if err != nil {
		t.Fatalf("Unavailable GL should not be an error: %v", err)
	}
	if h != handle.Null {
		t.Errorf("handle = %d, want null", h)
	}
	if thread.Contexts() != 0 {
		t.Errorf("Contexts = %d, want 0", thread.Contexts())
	}
}

func TestCreateContextRejectsNilCanvas(t *testing.T) {
	logger := zaptest.NewLogger(t)
	thread := gl.NewThread(1, memdevice.NewFactory(memdevice.Options{}, logger), logger)

	if _, err := thread.CreateContext(nil, gl.DefaultAttributes()); !errors.Is(err, gl.ErrNilCanvas) {
		t.Errorf("Expected ErrNilCanvas, got %v", err)
	}
}

func TestCreateContextOnTransferredCanvas(t *testing.T) {
	logger := zaptest.NewLogger(t)
	thread := gl.NewThread(1, memdevice.NewFactory(memdevice.Options{}, logger), logger)

	c := canvas.New(7, 4, 4, 1)
	if err := c.TransferControlToOffscreen(2); err != nil {
		t.Fatalf("Transfer failed: %v", err)
	}

	_, err := thread.CreateContext(c, gl.DefaultAttributes())
	var transferred *canvas.TransferredError
	if !errors.As(err, &transferred) {
		t.Fatalf("Expected *canvas.TransferredError, got %v", err)
	}
	if transferred.Caller != 1 || transferred.Owner != 2 {
		t.Errorf("error = %+v", transferred)
	}
}

func TestCreateContextEnablesDefaultExtensions(t *testing.T) {
	f := newFixture(t, memdevice.Options{})
	dev := f.device()

	if !dev.ExtensionEnabled("WEBGL_multi_draw") {
		t.Error("WEBGL_multi_draw should be enabled by default")
	}
	for _, name := range []string{"WEBGL_lose_context", "WEBGL_debug_renderer_info"} {
		if dev.ExtensionEnabled(name) {
			t.Errorf("%s should not be enabled by default", name)
		}
	}

	if !f.thread.EnableExtension(f.handle, "GL_WEBGL_lose_context") {
		t.Error("EnableExtension should strip the GL_ prefix")
	}
	if f.thread.EnableExtension(f.handle, "OES_nonexistent") {
		t.Error("EnableExtension of an unsupported extension should fail")
	}
	if f.thread.EnableExtension(99, "WEBGL_multi_draw") {
		t.Error("EnableExtension on an unknown context should fail")
	}
}

func TestMakeCurrent(t *testing.T) {
	f := newFixture(t, memdevice.Options{})

	if got := f.thread.MakeCurrent(99); got != gl.ResultInvalidParam {
		t.Errorf("MakeCurrent(99) = %d, want %d", got, gl.ResultInvalidParam)
	}
	if f.thread.CurrentHandle() != handle.Null {
		t.Errorf("CurrentHandle = %d after failed MakeCurrent, want null", f.thread.CurrentHandle())
	}

	if got := f.thread.MakeCurrent(f.handle); got != gl.ResultSuccess {
		t.Fatalf("MakeCurrent = %d", got)
	}
	if f.thread.CurrentHandle() != f.handle {
		t.Errorf("CurrentHandle = %d, want %d", f.thread.CurrentHandle(), f.handle)
	}

	if got := f.thread.MakeCurrent(handle.Null); got != gl.ResultSuccess {
		t.Errorf("MakeCurrent(null) = %d, want success", got)
	}
	if f.thread.Current() != nil {
		t.Error("MakeCurrent(null) should clear the current context")
	}
}

func TestDestroyCurrentContext(t *testing.T) {
	f := newFixture(t, memdevice.Options{})

	if !f.thread.DestroyContext(f.handle) {
		t.Fatal("DestroyContext failed")
	}
	if f.thread.Current() != nil {
		t.Error("Destroying the current context should clear it")
	}
	if f.thread.DestroyContext(f.handle) {
		t.Error("Second DestroyContext should fail")
	}
	if got := f.thread.MakeCurrent(f.handle); got != gl.ResultInvalidParam {
		t.Errorf("MakeCurrent on a destroyed context = %d", got)
	}
}

func TestGetErrorKeepsFirstError(t *testing.T) {
	f := newFixture(t, memdevice.Options{})

	f.thread.SetError(gl.InvalidValue)
	f.thread.SetError(gl.InvalidEnum)

	f.expectError(t, gl.InvalidValue)
	f.expectError(t, gl.NoError)
}

func TestGetErrorPrefersDeviceError(t *testing.T) {
	f := newFixture(t, memdevice.Options{})

	f.thread.SetError(gl.InvalidValue)
	// Binding a program object as a buffer is a device-side error.
	f.device().Bind(handle.KindBuffer, gl.ArrayBuffer, 12345)

	f.expectError(t, gl.InvalidOperation)
	f.expectError(t, gl.NoError)
}

func TestCallsWithoutCurrentContext(t *testing.T) {
	f := newFixture(t, memdevice.Options{})
	f.thread.MakeCurrent(handle.Null)

	if h := f.thread.CreateProgram(); h != handle.Null {
		t.Errorf("CreateProgram = %d, want null", h)
	}
	f.expectError(t, gl.InvalidOperation)

	f.thread.Call("clear", gl.ColorBufferBit)
	f.expectError(t, gl.InvalidOperation)
}

func TestMustThreadPanics(t *testing.T) {
	defer func() {
		r := recover()
		err, ok := r.(*gl.NoThreadError)
		if !ok {
			t.Fatalf("Expected *gl.NoThreadError panic, got %v", r)
		}
		if err.Function != "glFlush" {
			t.Errorf("Function = %q", err.Function)
		}
	}()
	gl.MustThread(context.Background(), "glFlush")
}
