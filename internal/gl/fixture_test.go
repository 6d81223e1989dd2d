package gl_test

import (
	"context"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/woxQAQ/skwasm-bridge/internal/canvas"
	"github.com/woxQAQ/skwasm-bridge/internal/gl"
	"github.com/woxQAQ/skwasm-bridge/internal/gl/memdevice"
	"github.com/woxQAQ/skwasm-bridge/internal/handle"
	"github.com/woxQAQ/skwasm-bridge/internal/marshal"
	"github.com/woxQAQ/skwasm-bridge/internal/wasm/wasmtest"
)

// scratch is a guest address well above what the bump allocator hands out
// in these tests.
const scratch = 32 << 10

type fixture struct {
	thread  *gl.Thread
	factory *memdevice.Factory
	canvas  *canvas.Canvas
	heap    *marshal.Heap
	ctx     context.Context
	handle  handle.Handle
}

func newFixture(t *testing.T, opts memdevice.Options) *fixture {
	t.Helper()

	logger := zaptest.NewLogger(t)
	factory := memdevice.NewFactory(opts, logger)
	thread := gl.NewThread(1, factory, logger)
	c := canvas.New(1, 4, 4, 1)

	h, err := thread.CreateContext(c, gl.DefaultAttributes())
	if err != nil {
		t.Fatalf("CreateContext failed: %v", err)
	}
	if h == handle.Null {
		t.Fatal("CreateContext returned the null handle")
	}
	if r := thread.MakeCurrent(h); r != gl.ResultSuccess {
		t.Fatalf("MakeCurrent = %d", r)
	}

	mem := wasmtest.NewMemory(t, 1)
	heap := marshal.NewHeap(mem, wasmtest.NewBump(mem))
	ctx := marshal.WithHeap(gl.WithThread(context.Background(), thread), heap)

	return &fixture{
		thread:  thread,
		factory: factory,
		canvas:  c,
		heap:    heap,
		ctx:     ctx,
		handle:  h,
	}
}

func (f *fixture) device() *memdevice.Device {
	devs := f.factory.Devices()
	return devs[len(devs)-1]
}

func (f *fixture) object(kind handle.Kind, h handle.Handle) gl.Object {
	return f.thread.Current().Lookup(kind, h)
}

func (f *fixture) int32At(t *testing.T, ptr uint32) int32 {
	t.Helper()
	v, err := f.heap.Int32(ptr)
	if err != nil {
		t.Fatalf("Int32(%d) failed: %v", ptr, err)
	}
	return v
}

func (f *fixture) stringAt(t *testing.T, ptr uint32) string {
	t.Helper()
	if ptr == 0 {
		t.Fatal("null string pointer")
	}
	s, err := f.heap.ReadString(marshal.UTF8, ptr, 0)
	if err != nil {
		t.Fatalf("ReadString(%d) failed: %v", ptr, err)
	}
	return s
}

func (f *fixture) expectError(t *testing.T, want gl.Enum) {
	t.Helper()
	if got := f.thread.GetError(); got != want {
		t.Errorf("GetError = %#x, want %#x", uint32(got), uint32(want))
	}
}

const (
	vertexSource = `attribute vec2 aPosition;
uniform mat3 uMatrix;
void main() {}
`
	fragmentSource = `precision mediump float;
uniform vec4 uColor;
uniform float uWeights[3];
void main() {}
`
)

// linkProgram builds and links a program from the test shaders.
func (f *fixture) linkProgram(t *testing.T) handle.Handle {
	t.Helper()
	p := f.thread.CreateProgram()
	shaders := []struct {
		typ gl.Enum
		src string
	}{
		{gl.VertexShader, vertexSource},
		{gl.FragmentShader, fragmentSource},
	}
	for _, sh := range shaders {
		s := f.thread.CreateShader(sh.typ)
		f.thread.ShaderSource(s, sh.src)
		f.thread.CompileShader(s)
		f.thread.AttachShader(p, s)
	}
	f.thread.LinkProgram(p)
	f.expectError(t, gl.NoError)
	return p
}
