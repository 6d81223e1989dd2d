package worker

import (
	"context"

	"github.com/tetratelabs/wazero"
	"go.uber.org/zap"

	"github.com/woxQAQ/skwasm-bridge/api/abi"
	"github.com/woxQAQ/skwasm-bridge/internal/canvas"
	"github.com/woxQAQ/skwasm-bridge/internal/handle"
)

// Host exports the skwasm_* imports engine builds use to move work between
// threads. Each function runs on behalf of the thread bound to the call
// context.
type Host struct {
	pool   *Pool
	logger *zap.Logger
}

// NewHost creates the host function exporter for p.
func NewHost(p *Pool, logger *zap.Logger) *Host {
	return &Host{pool: p, logger: logger.With(zap.String("component", "worker-host"))}
}

// ExportFunctions registers the skwasm imports on builder.
func (h *Host) ExportFunctions(builder wazero.HostModuleBuilder) {
	h.register(func(name string, f any) {
		builder.NewFunctionBuilder().WithFunc(f).Export(name)
	})
}

// ExportedNames lists the functions ExportFunctions registers.
func (h *Host) ExportedNames() []string {
	var names []string
	h.register(func(name string, _ any) {
		names = append(names, name)
	})
	return names
}

func (h *Host) register(fn func(name string, f any)) {
	fn(abi.CreateOffscreenCanvas, h.createOffscreenCanvas)
	fn(abi.ResizeCanvas, h.resizeCanvas)
	fn(abi.CaptureImageBitmap, h.captureImageBitmap)
	fn(abi.ResolveAndPostImages, h.resolveAndPostImages)
	fn(abi.CreateGlTextureFromTextureSource, h.createGlTextureFromTextureSource)
	fn(abi.SetAssociatedObjectOnThread, h.setAssociatedObjectOnThread)
	fn(abi.GetAssociatedObject, h.getAssociatedObject)
	fn(abi.DisposeAssociatedObjectOnThread, h.disposeAssociatedObjectOnThread)
	fn(abi.DispatchRenderPictures, h.dispatchRenderPictures)
	fn(abi.DispatchRasterizeImage, h.dispatchRasterizeImage)
	fn(abi.DispatchDisposeSurface, h.dispatchDisposeSurface)
	fn(abi.PostRasterizeResult, h.postRasterizeResult)
	fn(abi.RegisterMessageListener, h.registerMessageListener)
	fn(abi.SyncTimeOriginForThread, h.syncTimeOriginForThread)
}

// createOffscreenCanvas returns the GL context handle of a new canvas, or 0.
func (h *Host) createOffscreenCanvas(ctx context.Context, width, height int32) uint32 {
	t := MustThread(ctx, abi.CreateOffscreenCanvas)
	ch, err := t.CreateCanvas(int(width), int(height))
	if err != nil {
		h.logger.Error("Failed to create offscreen canvas", zap.Uint32("thread", uint32(t.ID)), zap.Error(err))
		return 0
	}
	return uint32(ch)
}

func (h *Host) resizeCanvas(ctx context.Context, contextHandle uint32, width, height int32) {
	t := MustThread(ctx, abi.ResizeCanvas)
	c, ok := t.Canvas(handle.Handle(contextHandle))
	if !ok {
		h.logger.Warn("Resize of an unknown canvas", zap.Uint32("context", contextHandle))
		return
	}
	if err := c.Resize(int(width), int(height)); err != nil {
		h.logger.Error("Failed to resize canvas", zap.Uint32("context", contextHandle), zap.Error(err))
	}
}

// captureImageBitmap appends a snapshot of the canvas to the bitmap list and
// returns the list handle. A null list starts a new one.
func (h *Host) captureImageBitmap(ctx context.Context, contextHandle uint32, width, height int32, list uint32) uint32 {
	t := MustThread(ctx, abi.CaptureImageBitmap)
	out, err := t.Capture(handle.Handle(contextHandle), int(width), int(height), handle.Handle(list))
	if err != nil {
		h.logger.Error("Failed to capture image bitmap", zap.Uint32("context", contextHandle), zap.Error(err))
	}
	return uint32(out)
}

func (h *Host) resolveAndPostImages(ctx context.Context, surface, list uint32, rasterStart float64, callbackID uint32) {
	t := MustThread(ctx, abi.ResolveAndPostImages)
	var bitmaps []*canvas.Bitmap
	if list != 0 {
		v, _ := t.TakeObject(handle.Handle(list))
		if l, ok := v.(*bitmapList); ok {
			bitmaps = l.bitmaps
		} else {
			h.logger.Warn("Posting images from an unknown bitmap list", zap.Uint32("list", list))
		}
	}
	if err := t.PostRenderComplete(surface, callbackID, bitmaps, rasterStart); err != nil {
		h.logger.Error("Failed to post render completion", zap.Uint32("id", callbackID), zap.Error(err))
	}
}

func (h *Host) createGlTextureFromTextureSource(ctx context.Context, source uint32, width, height int32) uint32 {
	t := MustThread(ctx, abi.CreateGlTextureFromTextureSource)
	v, _ := t.Object(handle.Handle(source))
	b, ok := v.(*canvas.Bitmap)
	if !ok {
		h.logger.Error("Texture source is not a bitmap", zap.Uint32("source", source))
		return 0
	}
	return uint32(t.GL.CreateTextureFromSource(b, width, height))
}

// setAssociatedObjectOnThread transfers a bitmap held by the calling thread
// to thread owner.
func (h *Host) setAssociatedObjectOnThread(ctx context.Context, owner, id, object uint32) {
	t := MustThread(ctx, abi.SetAssociatedObjectOnThread)
	v, ok := t.TakeObject(handle.Handle(object))
	b, isBitmap := v.(*canvas.Bitmap)
	if !ok || !isBitmap {
		h.logger.Error("Associated object is not a bitmap held by the calling thread",
			zap.Uint32("object", object),
			zap.Uint32("thread", uint32(t.ID)),
		)
		return
	}
	if err := h.pool.SetAssociated(ThreadID(owner), id, b); err != nil {
		h.logger.Error("Failed to set associated object", zap.Uint32("id", id), zap.Error(err))
		b.Close()
	}
}

func (h *Host) getAssociatedObject(ctx context.Context, id uint32) uint32 {
	t := MustThread(ctx, abi.GetAssociatedObject)
	ref, err := h.pool.images.Ref(t.ID, id)
	if err != nil {
		h.logger.Warn("Failed to get associated object", zap.Uint32("id", id), zap.Error(err))
		return 0
	}
	return uint32(ref)
}

func (h *Host) disposeAssociatedObjectOnThread(ctx context.Context, owner, id uint32) {
	MustThread(ctx, abi.DisposeAssociatedObjectOnThread)
	if err := h.pool.DisposeAssociated(ThreadID(owner), id); err != nil {
		h.logger.Error("Failed to dispose associated object", zap.Uint32("id", id), zap.Error(err))
	}
}

func (h *Host) dispatchRenderPictures(ctx context.Context, thread, surface, pictures, count, callbackID uint32) {
	MustThread(ctx, abi.DispatchRenderPictures)
	_, err := h.pool.dispatcher.render(RenderJob{
		Thread:     ThreadID(thread),
		Surface:    surface,
		Pictures:   pictures,
		Count:      count,
		CallbackID: callbackID,
	}, true)
	if err != nil {
		h.logger.Error("Failed to dispatch render job", zap.Uint32("id", callbackID), zap.Error(err))
	}
}

func (h *Host) dispatchRasterizeImage(ctx context.Context, thread, surface, image, format, callbackID uint32) {
	MustThread(ctx, abi.DispatchRasterizeImage)
	_, err := h.pool.dispatcher.rasterize(RasterJob{
		Thread:     ThreadID(thread),
		Surface:    surface,
		Image:      image,
		Format:     format,
		CallbackID: callbackID,
	}, true)
	if err != nil {
		h.logger.Error("Failed to dispatch rasterize job", zap.Uint32("id", callbackID), zap.Error(err))
	}
}

func (h *Host) dispatchDisposeSurface(ctx context.Context, thread, surface uint32) {
	MustThread(ctx, abi.DispatchDisposeSurface)
	if err := h.pool.DisposeSurface(ThreadID(thread), surface); err != nil {
		h.logger.Error("Failed to dispatch surface disposal", zap.Uint32("surface", surface), zap.Error(err))
	}
}

func (h *Host) postRasterizeResult(ctx context.Context, surface, data, callbackID uint32) {
	t := MustThread(ctx, abi.PostRasterizeResult)
	if err := t.PostRasterizeComplete(surface, callbackID, data); err != nil {
		h.logger.Error("Failed to post rasterize result", zap.Uint32("id", callbackID), zap.Error(err))
	}
}

// registerMessageListener routes engine messages from thread to the calling
// thread. On a worker, 0 names the main thread.
func (h *Host) registerMessageListener(ctx context.Context, thread uint32) {
	t := MustThread(ctx, abi.RegisterMessageListener)
	t.Listen(ThreadID(thread))
}

func (h *Host) syncTimeOriginForThread(ctx context.Context, thread uint32) {
	MustThread(ctx, abi.SyncTimeOriginForThread)
	if err := h.pool.SyncTimeOrigin(ThreadID(thread)); err != nil {
		h.logger.Error("Failed to sync time origin", zap.Uint32("thread", thread), zap.Error(err))
	}
}
