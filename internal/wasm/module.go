package wasm

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// ModuleLoader compiles engine binaries and probes what they import and
// export. Compiled modules are kept by the runtime under their source name.
type ModuleLoader struct {
	runtime *Runtime
	fs      afero.Fs
	logger  *zap.Logger
}

// NewModuleLoader creates a loader reading engine files from fs. A nil fs
// means the OS filesystem.
func NewModuleLoader(runtime *Runtime, fs afero.Fs, logger *zap.Logger) *ModuleLoader {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &ModuleLoader{
		runtime: runtime,
		fs:      fs,
		logger:  logger.With(zap.String("component", "wasm-loader")),
	}
}

// Source is engine bytecode and the name it is cached under.
type Source struct {
	Name string
	Size int64
	read func() ([]byte, error)
}

// FileSource reads path from fs when the engine is compiled.
func FileSource(fs afero.Fs, path string) Source {
	var size int64
	if info, err := fs.Stat(path); err == nil {
		size = info.Size()
	}
	return Source{
		Name: path,
		Size: size,
		read: func() ([]byte, error) { return afero.ReadFile(fs, path) },
	}
}

// BytesSource wraps bytecode already in memory.
func BytesSource(name string, data []byte) Source {
	return Source{
		Name: name,
		Size: int64(len(data)),
		read: func() ([]byte, error) { return data, nil },
	}
}

// LoadModule returns the compiled engine for src, compiling and probing it
// on first use.
func (l *ModuleLoader) LoadModule(ctx context.Context, src Source) (*CompiledModule, error) {
	if cached, ok := l.runtime.GetCompiledModule(src.Name); ok {
		l.logger.Debug("Engine module already compiled", zap.String("module", src.Name))
		return cached, nil
	}

	bin, err := src.read()
	if err != nil {
		return nil, fmt.Errorf("failed to read engine module %s: %w", src.Name, err)
	}

	l.logger.Info("Compiling engine module",
		zap.String("module", src.Name),
		zap.Int64("size_bytes", src.Size),
	)
	start := time.Now()

	compiled, err := l.runtime.runtime.CompileModule(ctx, bin)
	if err != nil {
		return nil, &CompilationError{ModuleName: src.Name, Err: err}
	}

	module := &CompiledModule{
		Module:     compiled,
		Name:       src.Name,
		Source:     src.Name,
		SizeBytes:  src.Size,
		CompiledAt: time.Now().Unix(),
		Caps:       Probe(compiled),
	}
	l.runtime.StoreCompiledModule(module)

	l.logger.Info("Engine module compiled",
		zap.String("module", src.Name),
		zap.Duration("duration", time.Since(start)),
		zap.Bool("allocator", module.Caps.Allocator),
		zap.Bool("worker_entry_points", module.Caps.WorkerEntryPoints),
		zap.Int("gl_imports", len(module.Caps.GLImports)),
	)
	return module, nil
}

// LoadModuleFromFile compiles the engine at path on the loader filesystem.
func (l *ModuleLoader) LoadModuleFromFile(ctx context.Context, path string) (*CompiledModule, error) {
	return l.LoadModule(ctx, FileSource(l.fs, path))
}

// LoadModuleFromMemory compiles data under name.
func (l *ModuleLoader) LoadModuleFromMemory(ctx context.Context, name string, data []byte) (*CompiledModule, error) {
	return l.LoadModule(ctx, BytesSource(name, data))
}
