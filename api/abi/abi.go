// Package abi names the functions exchanged between the host and an engine
// build.
//
// Pointers and lengths are uint32 because engine builds use a 32-bit linear
// memory. Handles crossing the boundary are uint32 with 0 meaning "none".
package abi

// EnvModule is the import module engine builds resolve host functions from.
const EnvModule = "env"

// Exports the engine must provide.
const (
	Malloc = "malloc"
	Free   = "free"

	// surface_renderPicturesOnWorker(surface, pictures*, count, callbackId, rasterStart f64)
	RenderPicturesOnWorker = "surface_renderPicturesOnWorker"
	// surface_rasterizeImageOnWorker(surface, image, format, callbackId)
	RasterizeImageOnWorker = "surface_rasterizeImageOnWorker"
	// surface_onRenderComplete(surface, callbackId, imageBitmap)
	OnRenderComplete = "surface_onRenderComplete"
	// surface_onRasterizeComplete(surface, data*, callbackId)
	OnRasterizeComplete = "surface_onRasterizeComplete"
	// surface_dispose(surface)
	SurfaceDispose = "surface_dispose"
)

// Host imports shared by every engine build.
const (
	LogMessage         = "log_message"
	NotifyMemoryGrowth = "emscripten_notify_memory_growth"
	ResizeHeap         = "emscripten_resize_heap"
	GetNow             = "emscripten_get_now"
)

// SkwasmPrefix prefixes the worker-proxy host imports.
const SkwasmPrefix = "skwasm_"

// Worker-proxy host imports.
const (
	CaptureImageBitmap               = "skwasm_captureImageBitmap"
	CreateGlTextureFromTextureSource = "skwasm_createGlTextureFromTextureSource"
	CreateOffscreenCanvas            = "skwasm_createOffscreenCanvas"
	DispatchDisposeSurface           = "skwasm_dispatchDisposeSurface"
	DispatchRasterizeImage           = "skwasm_dispatchRasterizeImage"
	DispatchRenderPictures           = "skwasm_dispatchRenderPictures"
	DisposeAssociatedObjectOnThread  = "skwasm_disposeAssociatedObjectOnThread"
	GetAssociatedObject              = "skwasm_getAssociatedObject"
	PostRasterizeResult              = "skwasm_postRasterizeResult"
	RegisterMessageListener          = "skwasm_registerMessageListener"
	ResizeCanvas                     = "skwasm_resizeCanvas"
	ResolveAndPostImages             = "skwasm_resolveAndPostImages"
	SetAssociatedObjectOnThread      = "skwasm_setAssociatedObjectOnThread"
	SyncTimeOriginForThread          = "skwasm_syncTimeOriginForThread"
)

// Image byte formats accepted by surface_rasterizeImageOnWorker.
const (
	FormatRawRGBA         = 0
	FormatRawStraightRGBA = 1
	FormatRawUnmodified   = 2
	FormatPNG             = 3
)
