package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/woxQAQ/skwasm-bridge/api/abi"
	"github.com/woxQAQ/skwasm-bridge/internal/wasm"
)

// Loader handles loading engines from a filesystem.
type Loader struct {
	fs           afero.Fs
	moduleLoader *wasm.ModuleLoader
	logger       *zap.Logger
}

// NewLoader creates a new engine loader reading from fs. A nil fs means the
// OS filesystem.
func NewLoader(runtime *wasm.Runtime, fs afero.Fs, logger *zap.Logger) *Loader {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Loader{
		fs:           fs,
		moduleLoader: wasm.NewModuleLoader(runtime, fs, logger),
		logger:       logger.With(zap.String("component", "engine-loader")),
	}
}

// LoadEngine loads a single engine from a directory.
func (l *Loader) LoadEngine(ctx context.Context, dir string) (*Engine, error) {
	l.logger.Debug("Loading engine", zap.String("dir", dir))

	manifest, err := ParseManifest(l.fs, dir)
	if err != nil {
		return nil, err
	}

	l.logger.Info("Loading engine",
		zap.String("name", manifest.Name),
		zap.String("version", manifest.Version),
		zap.String("variant", manifest.Variant),
	)

	// Compile Wasm module (uses internal caching)
	compiled, err := l.moduleLoader.LoadModuleFromFile(ctx, manifest.WasmPath())
	if err != nil {
		return nil, &EngineLoadError{
			EngineName: manifest.Name,
			Err:        err,
		}
	}

	if err := Check(manifest, compiled.Caps); err != nil {
		return nil, &EngineLoadError{
			EngineName: manifest.Name,
			Err:        err,
		}
	}

	engine := &Engine{
		Manifest: manifest,
		Compiled: compiled,
		LoadedAt: time.Now(),
	}

	l.logger.Info("Engine loaded successfully",
		zap.String("name", manifest.Name),
		zap.Int64("size_bytes", compiled.SizeBytes),
		zap.Int("gl_imports", len(compiled.Caps.GLImports)),
		zap.Int("skwasm_imports", len(compiled.Caps.SkwasmImports)),
	)

	return engine, nil
}

// Check compares what a manifest declares with what the module provides.
func Check(m *Manifest, caps *wasm.Capabilities) error {
	if !caps.ExportedMemory && !caps.ImportedMemory {
		return &ProbeError{EngineName: m.Name, Capability: "memory", Missing: []string{"memory"}}
	}

	if slices.Contains(m.Capabilities, CapabilityThreads) {
		var missing []string
		if !caps.WorkerEntryPoints {
			missing = append(missing, abi.RenderPicturesOnWorker, abi.RasterizeImageOnWorker)
		}
		if !caps.CompletionCallbacks {
			missing = append(missing, abi.OnRenderComplete, abi.OnRasterizeComplete)
		}
		if len(missing) > 0 {
			return &ProbeError{EngineName: m.Name, Capability: CapabilityThreads, Missing: missing}
		}
	}
	return nil
}

// DiscoverEngines scans directories for engines.
func (l *Loader) DiscoverEngines(ctx context.Context, paths []string) ([]*Engine, error) {
	var engines []*Engine
	var errs []error

	for _, basePath := range paths {
		l.logger.Debug("Scanning engine directory", zap.String("path", basePath))

		entries, err := afero.ReadDir(l.fs, basePath)
		if err != nil {
			if os.IsNotExist(err) {
				l.logger.Warn("Engine path does not exist", zap.String("path", basePath))
				continue
			}
			return nil, fmt.Errorf("failed to read directory '%s': %w", basePath, err)
		}

		// Try to load each subdirectory as an engine
		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}

			engineDir := filepath.Join(basePath, entry.Name())

			engine, err := l.LoadEngine(ctx, engineDir)
			if err != nil {
				l.logger.Error("Failed to load engine",
					zap.String("dir", engineDir),
					zap.Error(err),
				)
				errs = append(errs, err)
				continue
			}

			engines = append(engines, engine)
		}
	}

	if len(engines) > 0 && len(errs) > 0 {
		l.logger.Warn("Some engines failed to load",
			zap.Int("loaded", len(engines)),
			zap.Int("failed", len(errs)),
		)
	}

	if len(engines) == 0 {
		return nil, &NoEnginesFoundError{Paths: paths}
	}

	return engines, nil
}
