package gl_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/woxQAQ/skwasm-bridge/internal/gl"
	"github.com/woxQAQ/skwasm-bridge/internal/gl/memdevice"
	"github.com/woxQAQ/skwasm-bridge/internal/handle"
)

func TestGenObjectsIssuesFreshHandles(t *testing.T) {
	f := newFixture(t, memdevice.Options{})

	first := f.thread.GenObjects(handle.KindTexture, 2)
	if diff := cmp.Diff([]handle.Handle{1, 2}, first); diff != "" {
		t.Errorf("GenObjects (-want +got):\n%s", diff)
	}
	f.thread.DeleteObjects(handle.KindTexture, first[:1])

	second := f.thread.GenObjects(handle.KindTexture, 1)
	if second[0] != 3 {
		t.Errorf("handle after delete = %d, want 3", second[0])
	}
	if got := f.device().Live(handle.KindTexture); got != 2 {
		t.Errorf("device textures = %d, want 2", got)
	}

	// Handles are per kind.
	if b := f.thread.GenObjects(handle.KindBuffer, 1); b[0] != 1 {
		t.Errorf("first buffer handle = %d, want 1", b[0])
	}
}

func TestBindDeletedBufferBindsNull(t *testing.T) {
	f := newFixture(t, memdevice.Options{})

	b := f.thread.GenObjects(handle.KindBuffer, 1)[0]
	f.thread.Bind(handle.KindBuffer, gl.ArrayBuffer, b)
	if f.thread.BoundBuffer(gl.ArrayBuffer) != b {
		t.Fatalf("BoundBuffer = %d, want %d", f.thread.BoundBuffer(gl.ArrayBuffer), b)
	}

	f.thread.DeleteObjects(handle.KindBuffer, []handle.Handle{b})
	if f.thread.BoundBuffer(gl.ArrayBuffer) != handle.Null {
		t.Error("Deleting a bound buffer should clear the tracked binding")
	}

	f.thread.Bind(handle.KindBuffer, gl.ArrayBuffer, b)
	if f.thread.BoundBuffer(gl.ArrayBuffer) != handle.Null {
		t.Error("Binding a deleted handle should bind null")
	}
	if v := f.device().Parameter(gl.ArrayBufferBinding); v != nil {
		t.Errorf("device binding = %v, want nil", v)
	}
	f.expectError(t, gl.NoError)
}

func TestDeleteClearsPixelBufferBindings(t *testing.T) {
	f := newFixture(t, memdevice.Options{})

	bufs := f.thread.GenObjects(handle.KindBuffer, 2)
	f.thread.Bind(handle.KindBuffer, gl.PixelPackBuffer, bufs[0])
	f.thread.Bind(handle.KindBuffer, gl.PixelUnpackBuffer, bufs[1])

	ctx := f.thread.Current()
	if ctx.PixelPackBuffer() != bufs[0] || ctx.PixelUnpackBuffer() != bufs[1] {
		t.Fatalf("pack = %d, unpack = %d", ctx.PixelPackBuffer(), ctx.PixelUnpackBuffer())
	}

	f.thread.DeleteObjects(handle.KindBuffer, bufs)
	if ctx.PixelPackBuffer() != handle.Null || ctx.PixelUnpackBuffer() != handle.Null {
		t.Errorf("after delete pack = %d, unpack = %d", ctx.PixelPackBuffer(), ctx.PixelUnpackBuffer())
	}
}

func TestDeleteOneUnknownHandle(t *testing.T) {
	f := newFixture(t, memdevice.Options{})

	f.thread.DeleteProgram(handle.Null)
	f.expectError(t, gl.NoError)

	f.thread.DeleteShader(42)
	f.expectError(t, gl.InvalidValue)

	p := f.thread.CreateProgram()
	f.thread.UseProgram(p)
	f.thread.DeleteProgram(p)
	f.expectError(t, gl.NoError)
	if f.thread.Current().CurrentProgram() != handle.Null {
		t.Error("Deleting the current program should clear it")
	}
}

func TestFenceSync(t *testing.T) {
	f := newFixture(t, memdevice.Options{})

	s := f.thread.FenceSync(gl.SyncGPUCommandsComplete, 0)
	if s == handle.Null {
		t.Fatal("FenceSync returned null")
	}
	if !f.thread.IsObject(handle.KindSync, s) {
		t.Error("IsObject(sync) = false")
	}

	if got := f.thread.ClientWaitSync(s, 0, 0, 0); got != gl.TimeoutExpired {
		t.Errorf("ClientWaitSync before flush = %#x, want TIMEOUT_EXPIRED", uint32(got))
	}
	if got := f.thread.ClientWaitSync(s, gl.SyncFlushCommandsBit, 0xFFFFFFFF, 0xFFFFFFFF); got != gl.ConditionSatisfied {
		t.Errorf("ClientWaitSync with flush = %#x, want CONDITION_SATISFIED", uint32(got))
	}
	if got := f.thread.ClientWaitSync(s, 0, 0, 0); got != gl.AlreadySignaled {
		t.Errorf("ClientWaitSync after signal = %#x, want ALREADY_SIGNALED", uint32(got))
	}

	f.thread.DeleteSync(s)
	if f.thread.IsObject(handle.KindSync, s) {
		t.Error("deleted sync is still an object")
	}
	if got := f.thread.ClientWaitSync(s, 0, 0, 0); got != gl.WaitFailed {
		t.Errorf("ClientWaitSync on a deleted sync = %#x, want WAIT_FAILED", uint32(got))
	}
	f.expectError(t, gl.InvalidValue)
}

func TestFlushSignalsFences(t *testing.T) {
	f := newFixture(t, memdevice.Options{})

	s := f.thread.FenceSync(gl.SyncGPUCommandsComplete, 0)
	f.thread.Call("flush")
	if !f.device().Signaled(f.object(handle.KindSync, s)) {
		t.Error("flush should signal pending fences")
	}
}

func TestFramebufferAttachmentReportsHandles(t *testing.T) {
	f := newFixture(t, memdevice.Options{})

	// Offset device object ids from texture handles.
	f.thread.GenObjects(handle.KindBuffer, 5)
	tex := f.thread.GenObjects(handle.KindTexture, 3)[2]
	fb := f.thread.GenObjects(handle.KindFramebuffer, 1)[0]
	f.thread.Bind(handle.KindFramebuffer, gl.Framebuffer, fb)

	if got := f.thread.CheckFramebufferStatus(gl.Framebuffer); got != gl.FramebufferIncompleteMissingAttachment {
		t.Errorf("status without attachment = %#x", uint32(got))
	}

	f.thread.FramebufferTexture2D(gl.Framebuffer, gl.ColorAttachment0, gl.Texture2D, tex, 0)
	if got := f.thread.CheckFramebufferStatus(gl.Framebuffer); got != gl.FramebufferComplete {
		t.Errorf("status = %#x, want complete", uint32(got))
	}

	f.thread.GetFramebufferAttachmentParameteriv(f.ctx, gl.Framebuffer, gl.ColorAttachment0, gl.FramebufferAttachmentObjectName, scratch)
	if got := f.int32At(t, scratch); got != int32(tex) {
		t.Errorf("attachment name = %d, want handle %d", got, tex)
	}
	f.thread.GetFramebufferAttachmentParameteriv(f.ctx, gl.Framebuffer, gl.ColorAttachment0, gl.FramebufferAttachmentObjectType, scratch)
	if got := f.int32At(t, scratch); got != int32(gl.Texture) {
		t.Errorf("attachment type = %#x, want TEXTURE", got)
	}
	f.expectError(t, gl.NoError)
}

func TestSamplerParameterUsesDeviceObject(t *testing.T) {
	f := newFixture(t, memdevice.Options{})

	f.thread.GenObjects(handle.KindBuffer, 4)
	s := f.thread.GenObjects(handle.KindSampler, 1)[0]
	f.thread.SamplerParameter("samplerParameteri", s, 0x2801, 0x2601)

	calls := f.device().CallsNamed("samplerParameteri")
	if len(calls) != 1 {
		t.Fatalf("samplerParameteri calls = %d, want 1", len(calls))
	}
	want := []float64{float64(f.object(handle.KindSampler, s)), 0x2801, 0x2601}
	if diff := cmp.Diff(want, calls[0].Args); diff != "" {
		t.Errorf("args (-want +got):\n%s", diff)
	}
}
