package worker_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap/zaptest"

	"github.com/woxQAQ/skwasm-bridge/api/abi"
	"github.com/woxQAQ/skwasm-bridge/internal/canvas"
	"github.com/woxQAQ/skwasm-bridge/internal/gl"
	"github.com/woxQAQ/skwasm-bridge/internal/handle"
	"github.com/woxQAQ/skwasm-bridge/internal/wasm/wasmtest"
	"github.com/woxQAQ/skwasm-bridge/internal/worker"
)

type recordingSink struct {
	renders chan *worker.RenderResult
	rasters chan *worker.RasterResult
}

func newRecordingSink() *recordingSink {
	return &recordingSink{
		renders: make(chan *worker.RenderResult, 4),
		rasters: make(chan *worker.RasterResult, 4),
	}
}

func (s *recordingSink) RenderComplete(ctx context.Context, th *worker.Thread, res *worker.RenderResult) error {
	if th.ID != worker.MainThread {
		return errors.New("completion delivered off the main thread")
	}
	s.renders <- res
	return nil
}

func (s *recordingSink) RasterizeComplete(_ context.Context, _ *worker.Thread, res *worker.RasterResult) error {
	s.rasters <- res
	return nil
}

// hostModule instantiates an env module with the worker and GL imports.
func hostModule(t *testing.T, p *worker.Pool) api.Module {
	t.Helper()

	ctx := context.Background()
	logger := zaptest.NewLogger(t)
	r := wazero.NewRuntime(ctx)
	t.Cleanup(func() { _ = r.Close(ctx) })

	builder := r.NewHostModuleBuilder(abi.EnvModule)
	worker.NewHost(p, logger).ExportFunctions(builder)
	gl.NewShim(logger).ExportFunctions(builder)
	mod, err := builder.Instantiate(ctx)
	if err != nil {
		t.Fatalf("Failed to instantiate host module: %v", err)
	}
	return mod
}

func call(ctx context.Context, mod api.Module, name string, params ...uint64) (uint32, error) {
	res, err := wasmtest.CallHost(ctx, mod, name, params...)
	if err != nil || len(res) == 0 {
		return 0, err
	}
	return api.DecodeU32(res[0]), nil
}

// onThread runs fn on thread id with the thread's call context.
func onThread(t *testing.T, p *worker.Pool, id worker.ThreadID, fn func(ctx context.Context) error) {
	t.Helper()
	if err := p.Call(testContext(t), id, fn); err != nil {
		t.Fatalf("call on thread %d failed: %v", id, err)
	}
}

func TestHostNativeRender(t *testing.T) {
	p := newPool(t, worker.DefaultConfig())
	mod := hostModule(t, p)
	sink := newRecordingSink()
	p.Dispatcher().SetSink(sink)

	p.SetHandler(&funcHandler{
		render: func(ctx context.Context, th *worker.Thread, job worker.RenderJob) error {
			canvasCtx, err := call(ctx, mod, abi.CreateOffscreenCanvas, api.EncodeI32(4), api.EncodeI32(4))
			if err != nil {
				return err
			}
			if canvasCtx == 0 {
				return errors.New("no offscreen canvas")
			}
			if _, err := call(ctx, mod, "emscripten_webgl_make_context_current", api.EncodeU32(canvasCtx)); err != nil {
				return err
			}
			if _, err := call(ctx, mod, "glClearColor",
				api.EncodeF32(1), api.EncodeF32(0), api.EncodeF32(0), api.EncodeF32(1)); err != nil {
				return err
			}
			if _, err := call(ctx, mod, "glClear", api.EncodeU32(gl.ColorBufferBit)); err != nil {
				return err
			}

			list, err := call(ctx, mod, abi.CaptureImageBitmap,
				api.EncodeU32(canvasCtx), api.EncodeI32(4), api.EncodeI32(4), 0)
			if err != nil {
				return err
			}
			again, err := call(ctx, mod, abi.CaptureImageBitmap,
				api.EncodeU32(canvasCtx), api.EncodeI32(4), api.EncodeI32(4), api.EncodeU32(list))
			if err != nil {
				return err
			}
			if again != list {
				return errors.New("capture started a second list")
			}

			_, err = call(ctx, mod, abi.ResolveAndPostImages,
				api.EncodeU32(job.Surface), api.EncodeU32(list), api.EncodeF64(job.RasterStart), api.EncodeU32(job.CallbackID))
			return err
		},
	})
	if err := p.Start(); err != nil {
		t.Fatal(err)
	}

	onThread(t, p, worker.MainThread, func(ctx context.Context) error {
		_, err := call(ctx, mod, abi.DispatchRenderPictures,
			api.EncodeU32(1), api.EncodeU32(5), api.EncodeU32(0), api.EncodeU32(0), api.EncodeU32(42))
		return err
	})

	var res *worker.RenderResult
	select {
	case res = <-sink.renders:
	case <-time.After(5 * time.Second):
		t.Fatal("render completion never reached the sink")
	}
	if res.Surface != 5 || res.CallbackID != 42 {
		t.Errorf("result = surface %d id %d", res.Surface, res.CallbackID)
	}
	if len(res.Bitmaps) != 2 {
		t.Fatalf("got %d bitmaps, want 2", len(res.Bitmaps))
	}
	for _, b := range res.Bitmaps {
		if b.Width() != 4 || b.Height() != 4 {
			t.Errorf("bitmap is %dx%d", b.Width(), b.Height())
		}
		pix, err := b.Pixels()
		if err != nil {
			t.Fatal(err)
		}
		if pix[0] != 255 || pix[1] != 0 || pix[2] != 0 || pix[3] != 255 {
			t.Errorf("first pixel = %v, want opaque red", pix[:4])
		}
	}
	if n := p.Dispatcher().Pending(); n != 0 {
		t.Errorf("Pending = %d after completion", n)
	}
}

func TestHostPostRasterizeResult(t *testing.T) {
	p := newPool(t, worker.DefaultConfig())
	mod := hostModule(t, p)
	sink := newRecordingSink()
	p.Dispatcher().SetSink(sink)

	p.SetHandler(&funcHandler{
		raster: func(ctx context.Context, _ *worker.Thread, job worker.RasterJob) error {
			if job.Format != abi.FormatPNG {
				return errors.New("format not carried to the worker")
			}
			_, err := call(ctx, mod, abi.PostRasterizeResult,
				api.EncodeU32(job.Surface), api.EncodeU32(1234), api.EncodeU32(job.CallbackID))
			return err
		},
	})
	if err := p.Start(); err != nil {
		t.Fatal(err)
	}

	onThread(t, p, worker.MainThread, func(ctx context.Context) error {
		_, err := call(ctx, mod, abi.DispatchRasterizeImage,
			api.EncodeU32(2), api.EncodeU32(3), api.EncodeU32(8), api.EncodeU32(abi.FormatPNG), api.EncodeU32(77))
		return err
	})

	select {
	case res := <-sink.rasters:
		if res.Surface != 3 || res.Data != 1234 || res.CallbackID != 77 {
			t.Errorf("result = %+v", res)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("rasterize completion never reached the sink")
	}
}

func TestHostAssociatedObjects(t *testing.T) {
	p := startPool(t, worker.DefaultConfig(), nil)
	mod := hostModule(t, p)

	b := canvas.NewBitmap(1, 1, []byte{0, 0, 255, 255})
	onThread(t, p, worker.MainThread, func(ctx context.Context) error {
		ref := p.Main().AddObject(b)
		_, err := call(ctx, mod, abi.SetAssociatedObjectOnThread,
			api.EncodeU32(1), api.EncodeU32(9), api.EncodeU32(uint32(ref)))
		if _, held := p.Main().Object(ref); held {
			return errors.New("main thread still holds the transferred bitmap")
		}
		return err
	})
	barrier(t, p, 1)

	onThread(t, p, 1, func(ctx context.Context) error {
		ref, err := call(ctx, mod, abi.GetAssociatedObject, api.EncodeU32(9))
		if err != nil {
			return err
		}
		if ref == 0 {
			return errors.New("owner cannot see its associated object")
		}

		canvasCtx, err := call(ctx, mod, abi.CreateOffscreenCanvas, api.EncodeI32(1), api.EncodeI32(1))
		if err != nil {
			return err
		}
		if _, err := call(ctx, mod, "emscripten_webgl_make_context_current", api.EncodeU32(canvasCtx)); err != nil {
			return err
		}
		tex, err := call(ctx, mod, abi.CreateGlTextureFromTextureSource,
			api.EncodeU32(ref), api.EncodeI32(1), api.EncodeI32(1))
		if err != nil {
			return err
		}
		if tex == 0 {
			return errors.New("no texture created from the associated bitmap")
		}
		return nil
	})

	onThread(t, p, worker.MainThread, func(ctx context.Context) error {
		ref, err := call(ctx, mod, abi.GetAssociatedObject, api.EncodeU32(9))
		if err != nil {
			return err
		}
		if ref != 0 {
			return errors.New("main thread read an object owned by thread 1")
		}
		_, err = call(ctx, mod, abi.DisposeAssociatedObjectOnThread, api.EncodeU32(1), api.EncodeU32(9))
		return err
	})
	barrier(t, p, 1)

	if n := p.Images().Len(); n != 0 {
		t.Errorf("Images().Len() = %d after dispose", n)
	}
	if !b.Closed() {
		t.Error("disposed bitmap was not closed")
	}
}

func TestHostRegisterMessageListener(t *testing.T) {
	p := startPool(t, worker.Config{Count: 1, SerializeMessages: true}, nil)
	mod := hostModule(t, p)

	first := canvas.NewBitmap(1, 1, make([]byte, 4))
	if err := p.SetAssociated(1, 1, first); err != nil {
		t.Fatal(err)
	}
	barrier(t, p, 1)
	if p.Images().Len() != 0 {
		t.Fatal("worker handled a message before registering a listener")
	}
	if !first.Closed() {
		t.Error("dropped message did not release its transfer list")
	}

	onThread(t, p, 1, func(ctx context.Context) error {
		_, err := call(ctx, mod, abi.RegisterMessageListener, api.EncodeU32(uint32(worker.MainThread)))
		return err
	})
	th, err := p.Thread(1)
	if err != nil {
		t.Fatal(err)
	}
	if !th.Listening(worker.MainThread) {
		t.Fatal("listener was not registered")
	}

	if err := p.SetAssociated(1, 2, canvas.NewBitmap(1, 1, make([]byte, 4))); err != nil {
		t.Fatal(err)
	}
	barrier(t, p, 1)
	if owner, ok := p.Images().Owner(2); !ok || owner != 1 {
		t.Errorf("Owner = %d, %v; want thread 1", owner, ok)
	}
}

func TestHostSyncTimeOrigin(t *testing.T) {
	p := startPool(t, worker.Config{SerializeMessages: true, AutoListen: true}, nil)
	mod := hostModule(t, p)

	time.Sleep(40 * time.Millisecond)
	th, err := p.Spawn()
	if err != nil {
		t.Fatal(err)
	}
	onThread(t, p, worker.MainThread, func(ctx context.Context) error {
		_, err := call(ctx, mod, abi.SyncTimeOriginForThread, api.EncodeU32(uint32(th.ID)))
		return err
	})
	barrier(t, p, th.ID)

	if lag := p.Main().Now() - th.Now(); lag > 15 || lag < -15 {
		t.Errorf("worker clock is off by %.1fms after sync", lag)
	}
}

func TestHostCanvasSizeLimit(t *testing.T) {
	p := startPool(t, worker.DefaultConfig(), nil)
	mod := hostModule(t, p)

	onThread(t, p, 1, func(ctx context.Context) error {
		huge := api.EncodeI32(canvas.MaxDimension + 1)
		if got, err := call(ctx, mod, abi.CreateOffscreenCanvas, huge, huge); err != nil || got != 0 {
			return fmt.Errorf("oversized canvas = %d, %v; want 0", got, err)
		}

		ch, err := call(ctx, mod, abi.CreateOffscreenCanvas, api.EncodeI32(2), api.EncodeI32(2))
		if err != nil || ch == 0 {
			return fmt.Errorf("canvas = %d, %v", ch, err)
		}
		if _, err := call(ctx, mod, abi.ResizeCanvas, api.EncodeU32(ch), api.EncodeI32(1<<20), api.EncodeI32(1)); err != nil {
			return err
		}
		th, err := p.Thread(1)
		if err != nil {
			return err
		}
		c, ok := th.Canvas(handle.Handle(ch))
		if !ok || c.Width() != 2 || c.Height() != 2 {
			return errors.New("oversized resize changed the canvas")
		}
		return nil
	})
}

func TestHostRequiresThread(t *testing.T) {
	p := newPool(t, worker.DefaultConfig())
	mod := hostModule(t, p)

	_, err := call(context.Background(), mod, abi.CreateOffscreenCanvas, api.EncodeI32(1), api.EncodeI32(1))
	if err == nil || !strings.Contains(err.Error(), "outside a pool thread") {
		t.Errorf("Expected a missing thread error, got %v", err)
	}
}

func TestHostExportedNames(t *testing.T) {
	names := worker.NewHost(newPool(t, worker.DefaultConfig()), zaptest.NewLogger(t)).ExportedNames()
	if len(names) != 14 {
		t.Errorf("got %d names, want 14", len(names))
	}
	seen := make(map[string]bool)
	for _, name := range names {
		if !strings.HasPrefix(name, abi.SkwasmPrefix) {
			t.Errorf("%s lacks the %s prefix", name, abi.SkwasmPrefix)
		}
		if seen[name] {
			t.Errorf("%s exported twice", name)
		}
		seen[name] = true
	}
}
