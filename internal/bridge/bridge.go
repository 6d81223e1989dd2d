// Package bridge wires an engine build to the host: the wasm runtime, the
// host import families, the worker pool and the completion path back into
// the engine.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/spf13/afero"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/woxQAQ/skwasm-bridge/internal/config"
	"github.com/woxQAQ/skwasm-bridge/internal/engine"
	"github.com/woxQAQ/skwasm-bridge/internal/gl"
	"github.com/woxQAQ/skwasm-bridge/internal/gl/memdevice"
	"github.com/woxQAQ/skwasm-bridge/internal/marshal"
	"github.com/woxQAQ/skwasm-bridge/internal/wasm"
	"github.com/woxQAQ/skwasm-bridge/internal/worker"
)

// ErrNotStarted is returned by job operations before Start succeeds.
var ErrNotStarted = errors.New("bridge not started")

// Bridge runs one engine instance on a worker pool.
type Bridge struct {
	cfg    *config.BridgeConfig
	logger *zap.Logger

	runtime   *wasm.Runtime
	instances *wasm.InstanceManager
	engines   *engine.Manager
	pool      *worker.Pool

	mu       sync.RWMutex
	engine   *engine.Engine
	instance *wasm.Instance
}

// New creates a bridge. Engines are discovered on fs, or on the OS
// filesystem when fs is nil.
func New(ctx context.Context, cfg *config.BridgeConfig, fs afero.Fs, logger *zap.Logger) (*Bridge, error) {
	runtime, err := wasm.NewRuntime(ctx, logger, cfg.Wasm.Runtime())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Wasm runtime: %w", err)
	}

	factory := memdevice.NewFactory(cfg.MemDevice, logger)
	pool := worker.NewPool(cfg.Workers, factory, cfg.GL, logger)
	instances := wasm.NewInstanceManager(runtime, logger,
		wasm.NewHostFunctions(logger),
		gl.NewShim(logger),
		worker.NewHost(pool, logger),
	)

	logger.Info("Bridge initialized",
		zap.Uint32("wasm_memory_pages", cfg.Wasm.MemoryPages),
		zap.String("wasm_cache_dir", cfg.Wasm.CacheDir),
		zap.Int("workers", cfg.Workers.Count),
	)

	return &Bridge{
		cfg:       cfg,
		logger:    logger.With(zap.String("component", "bridge")),
		runtime:   runtime,
		instances: instances,
		engines:   engine.NewManager(cfg, runtime, fs, instances, logger),
		pool:      pool,
	}, nil
}

// Engines returns the engine manager.
func (b *Bridge) Engines() *engine.Manager {
	return b.engines
}

// Pool returns the worker pool.
func (b *Bridge) Pool() *worker.Pool {
	return b.pool
}

// Instance returns the running engine instance, or nil before Start.
func (b *Bridge) Instance() *wasm.Instance {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.instance
}

func (b *Bridge) load(ctx context.Context) error {
	if b.engines.IsLoaded() {
		return nil
	}
	return b.engines.LoadAll(ctx)
}

// Start instantiates an engine and starts the pool. name selects the
// engine; empty uses the configured one.
func (b *Bridge) Start(ctx context.Context, name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.instance != nil {
		return fmt.Errorf("engine '%s' already started", b.engine.Name())
	}
	if err := b.load(ctx); err != nil {
		return err
	}

	var (
		e   *engine.Engine
		err error
	)
	if name != "" {
		e, err = b.engines.GetEngine(name)
	} else {
		e, err = b.engines.Select()
	}
	if err != nil {
		return err
	}

	inst, err := b.engines.Instantiate(ctx, e.Name())
	if err != nil {
		return err
	}

	b.pool.SetHandler(worker.NewNativeHandler(inst, b.logger))
	if e.Probed().CompletionCallbacks {
		b.pool.Dispatcher().SetSink(worker.NewNativeSink(inst))
	}
	if err := b.pool.Start(); err != nil {
		return multierr.Append(err, inst.Close(ctx))
	}
	if !e.Threaded() {
		b.logger.Warn("Engine does not declare worker support; jobs still run on pool threads",
			zap.String("engine", e.Name()),
		)
	}

	b.engine = e
	b.instance = inst
	b.logger.Info("Engine started",
		zap.String("engine", e.Name()),
		zap.String("variant", e.Variant()),
		zap.String("instance_id", inst.ID),
	)
	return nil
}

// RenderPictures renders pictures into surface on thread and waits for
// the bitmaps. The picture handle array is staged in engine memory until the
// job settles, which may be after ctx ends.
func (b *Bridge) RenderPictures(ctx context.Context, thread worker.ThreadID, surface uint32, pictures []uint32) (*worker.RenderResult, error) {
	inst := b.Instance()
	if inst == nil {
		return nil, ErrNotStarted
	}
	heap := inst.Heap()
	if heap == nil {
		return nil, fmt.Errorf("engine instance %s has no memory", inst.ID)
	}

	s := heap.Scope(ctx)
	ptr, err := marshal.Copy(s, pictures)
	if err != nil {
		return nil, multierr.Append(err, s.Release())
	}
	future, err := b.pool.Dispatcher().Render(worker.RenderJob{
		Thread:   thread,
		Surface:  surface,
		Pictures: ptr,
		Count:    uint32(len(pictures)),
	})
	if err != nil {
		return nil, multierr.Append(err, s.Release())
	}

	go func() {
		<-future.Done()
		if err := s.Release(); err != nil {
			b.logger.Warn("Failed to release staged pictures",
				zap.Uint32("id", future.ID()),
				zap.Error(err),
			)
		}
	}()
	return future.Await(ctx)
}

// RasterizeImage encodes image on thread in format and waits for the
// result.
func (b *Bridge) RasterizeImage(ctx context.Context, thread worker.ThreadID, surface, image, format uint32) (*worker.RasterResult, error) {
	if b.Instance() == nil {
		return nil, ErrNotStarted
	}
	future, err := b.pool.Dispatcher().Rasterize(worker.RasterJob{
		Thread:  thread,
		Surface: surface,
		Image:   image,
		Format:  format,
	})
	if err != nil {
		return nil, err
	}
	return future.Await(ctx)
}

// DisposeSurface asks thread to release surface.
func (b *Bridge) DisposeSurface(thread worker.ThreadID, surface uint32) error {
	if b.Instance() == nil {
		return ErrNotStarted
	}
	return b.pool.DisposeSurface(thread, surface)
}

// Close stops the pool and shuts the engines down.
func (b *Bridge) Close(ctx context.Context) error {
	b.logger.Info("Shutting down bridge")

	err := multierr.Combine(
		b.pool.Close(ctx),
		b.engines.Shutdown(ctx),
	)
	if err != nil {
		b.logger.Error("Bridge shutdown failed", zap.Error(err))
		return err
	}

	b.logger.Info("Bridge shutdown complete")
	return nil
}
