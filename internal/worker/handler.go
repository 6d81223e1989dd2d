package worker

import (
	"context"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/woxQAQ/skwasm-bridge/api/abi"
)

// Handler executes engine work on a worker thread. Implementations report a
// finished job with Thread.PostRenderComplete or Thread.PostRasterizeComplete;
// a returned error rejects the job instead.
type Handler interface {
	RenderPictures(ctx context.Context, t *Thread, job RenderJob) error
	RasterizeImage(ctx context.Context, t *Thread, job RasterJob) error
	DisposeSurface(ctx context.Context, t *Thread, surface uint32) error
}

// CompletionSink receives, on the main thread, the results of jobs that
// engine code dispatched.
type CompletionSink interface {
	RenderComplete(ctx context.Context, t *Thread, res *RenderResult) error
	RasterizeComplete(ctx context.Context, t *Thread, res *RasterResult) error
}

type missingHandler struct{}

func (missingHandler) RenderPictures(context.Context, *Thread, RenderJob) error {
	return ErrNoHandler
}

func (missingHandler) RasterizeImage(context.Context, *Thread, RasterJob) error {
	return ErrNoHandler
}

func (missingHandler) DisposeSurface(context.Context, *Thread, uint32) error {
	return ErrNoHandler
}

// Caller invokes guest exports. *wasm.Instance implements it.
type Caller interface {
	Call(ctx context.Context, name string, params ...uint64) ([]uint64, error)
}

// NativeHandler runs jobs through the engine's worker entry points. The
// engine posts the completion itself through the skwasm host imports.
type NativeHandler struct {
	caller Caller
	logger *zap.Logger
}

// NewNativeHandler creates a handler calling caller's exports.
func NewNativeHandler(caller Caller, logger *zap.Logger) *NativeHandler {
	return &NativeHandler{
		caller: caller,
		logger: logger.With(zap.String("component", "native-handler")),
	}
}

func (h *NativeHandler) RenderPictures(ctx context.Context, t *Thread, job RenderJob) error {
	h.logger.Debug("Rendering pictures",
		zap.Uint32("thread", uint32(t.ID)),
		zap.Uint32("surface", job.Surface),
		zap.Uint32("count", job.Count),
		zap.Uint32("id", job.CallbackID),
	)
	_, err := h.caller.Call(ctx, abi.RenderPicturesOnWorker,
		api.EncodeU32(job.Surface),
		api.EncodeU32(job.Pictures),
		api.EncodeU32(job.Count),
		api.EncodeU32(job.CallbackID),
		api.EncodeF64(job.RasterStart),
	)
	return err
}

func (h *NativeHandler) RasterizeImage(ctx context.Context, _ *Thread, job RasterJob) error {
	_, err := h.caller.Call(ctx, abi.RasterizeImageOnWorker,
		api.EncodeU32(job.Surface),
		api.EncodeU32(job.Image),
		api.EncodeU32(job.Format),
		api.EncodeU32(job.CallbackID),
	)
	return err
}

func (h *NativeHandler) DisposeSurface(ctx context.Context, _ *Thread, surface uint32) error {
	_, err := h.caller.Call(ctx, abi.SurfaceDispose, api.EncodeU32(surface))
	return err
}

// NativeSink forwards completions to the engine's main-thread callbacks.
type NativeSink struct {
	caller Caller
}

// NewNativeSink creates a sink calling caller's exports.
func NewNativeSink(caller Caller) *NativeSink {
	return &NativeSink{caller: caller}
}

// RenderComplete passes the result to surface_onRenderComplete as an object
// handle on t. The handle is valid for the duration of the call.
func (s *NativeSink) RenderComplete(ctx context.Context, t *Thread, res *RenderResult) error {
	ref := t.AddObject(res)
	defer t.TakeObject(ref)

	_, err := s.caller.Call(ctx, abi.OnRenderComplete,
		api.EncodeU32(res.Surface),
		api.EncodeU32(res.CallbackID),
		api.EncodeU32(uint32(ref)),
	)
	return err
}

func (s *NativeSink) RasterizeComplete(ctx context.Context, _ *Thread, res *RasterResult) error {
	_, err := s.caller.Call(ctx, abi.OnRasterizeComplete,
		api.EncodeU32(res.Surface),
		api.EncodeU32(res.Data),
		api.EncodeU32(res.CallbackID),
	)
	return err
}
