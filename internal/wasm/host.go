package wasm

import (
	"context"
	"time"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/woxQAQ/skwasm-bridge/api/abi"
	"github.com/woxQAQ/skwasm-bridge/internal/marshal"
)

// HostExporter contributes functions to the env host module.
// wazero's emscripten function exporter satisfies it.
type HostExporter interface {
	ExportFunctions(builder wazero.HostModuleBuilder)
}

// NameLister is implemented by exporters that can list what they export,
// which lets the instance manager report unresolved imports before
// instantiation.
type NameLister interface {
	ExportedNames() []string
}

const maxHeapBytes = 2 << 30

// HostFunctions implements the runtime-level host functions every engine
// build imports.
type HostFunctions struct {
	logger *zap.Logger
	start  time.Time
}

// NewHostFunctions creates a new host functions implementation.
func NewHostFunctions(logger *zap.Logger) *HostFunctions {
	return &HostFunctions{
		logger: logger.With(zap.String("component", "wasm-host")),
		start:  time.Now(),
	}
}

func heapFor(ctx context.Context, mod api.Module) *marshal.Heap {
	if h, ok := marshal.HeapFrom(ctx); ok {
		return h
	}
	return marshal.NewHeap(mod.Memory(), nil)
}

// logMessage is called by engine modules to log messages.
// Signature: log_message(level, ptr, length)
// level: 0 = debug, 1 = info, 2 = warn, 3 = error
func (h *HostFunctions) logMessage(ctx context.Context, mod api.Module, level uint32, ptr uint32, length uint32) {
	msg, err := heapFor(ctx, mod).ReadStringN(marshal.UTF8, ptr, length)
	if err != nil {
		h.logger.Error("Failed to read log message from engine memory",
			zap.Uint32("ptr", ptr),
			zap.Uint32("length", length),
			zap.Error(err),
		)
		return
	}

	switch level {
	case 0:
		h.logger.Debug(msg)
	case 1:
		h.logger.Info(msg)
	case 2:
		h.logger.Warn(msg)
	case 3:
		h.logger.Error(msg)
	default:
		h.logger.Info(msg)
	}
}

// notifyMemoryGrowth re-acquires heap views after the guest grew memory.
func (h *HostFunctions) notifyMemoryGrowth(ctx context.Context, _ uint32) {
	if heap, ok := marshal.HeapFrom(ctx); ok {
		heap.Refresh()
	}
}

// resizeHeap grows memory to at least requested bytes. It overgrows by up to
// 20% to amortize repeated growth and never exceeds 2GiB.
func (h *HostFunctions) resizeHeap(ctx context.Context, mod api.Module, requested uint32) uint32 {
	heap := heapFor(ctx, mod)
	current := uint64(heap.Size())
	want := uint64(requested)
	if want <= current || want > maxHeapBytes {
		return 0
	}

	for c := 1; c <= 4; c *= 2 {
		target := uint64(float64(current) * (1 + 0.2/float64(c)))
		target = min(target, want+96<<20)
		target = max(want, target)
		target = min(maxHeapBytes, (target+marshal.PageSize-1)/marshal.PageSize*marshal.PageSize)

		delta := (target - current + marshal.PageSize - 1) / marshal.PageSize
		if _, ok := heap.Grow(uint32(delta)); ok {
			h.logger.Debug("Grew engine heap",
				zap.Uint64("from_bytes", current),
				zap.Uint64("to_bytes", uint64(heap.Size())),
			)
			return 1
		}
	}
	h.logger.Warn("Engine heap growth failed", zap.Uint32("requested_bytes", requested))
	return 0
}

// now returns milliseconds since the host started.
func (h *HostFunctions) now() float64 {
	return float64(time.Since(h.start).Microseconds()) / 1000
}

// ExportFunctions registers the host functions on builder.
func (h *HostFunctions) ExportFunctions(builder wazero.HostModuleBuilder) {
	builder.NewFunctionBuilder().
		WithFunc(h.logMessage).
		WithParameterNames("level", "ptr", "length").
		Export(abi.LogMessage)

	builder.NewFunctionBuilder().
		WithFunc(h.notifyMemoryGrowth).
		WithParameterNames("memory_index").
		Export(abi.NotifyMemoryGrowth)

	builder.NewFunctionBuilder().
		WithFunc(h.resizeHeap).
		WithParameterNames("requested_size").
		Export(abi.ResizeHeap)

	builder.NewFunctionBuilder().
		WithFunc(h.now).
		Export(abi.GetNow)
}

// ExportedNames lists the functions ExportFunctions registers.
func (h *HostFunctions) ExportedNames() []string {
	return []string{abi.LogMessage, abi.NotifyMemoryGrowth, abi.ResizeHeap, abi.GetNow}
}
