package wasm

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/emscripten"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/woxQAQ/skwasm-bridge/api/abi"
	"github.com/woxQAQ/skwasm-bridge/internal/marshal"
)

// InstanceManager creates and manages engine instances.
type InstanceManager struct {
	runtime   *Runtime
	logger    *zap.Logger
	exporters []HostExporter

	envMu sync.Mutex
	env   api.Module
	wasi  api.Closer
}

// NewInstanceManager creates a new instance manager. The exporters make up
// the env host module, which is instantiated once on first use.
func NewInstanceManager(runtime *Runtime, logger *zap.Logger, exporters ...HostExporter) *InstanceManager {
	return &InstanceManager{
		runtime:   runtime,
		exporters: exporters,
		logger:    logger.With(zap.String("component", "wasm-instance")),
	}
}

// InstanceConfig holds configuration for creating instances.
type InstanceConfig struct {
	// Module name to instantiate.
	ModuleName string

	// Instance ID (if empty, one is generated).
	InstanceID string

	// Fail instead of instantiating when env imports are unresolved.
	Strict bool
}

// Instance represents an instantiated engine module.
type Instance struct {
	module api.Module

	ID        string
	Name      string
	CreatedAt int64

	mu      sync.Mutex
	exports map[string]api.Function
	heap    *marshal.Heap
	timeout time.Duration
	onClose func()
}

// Provided returns the env function names the registered exporters list.
func (m *InstanceManager) Provided() map[string]bool {
	provided := make(map[string]bool)
	for _, e := range m.exporters {
		if l, ok := e.(NameLister); ok {
			for _, n := range l.ExportedNames() {
				provided[n] = true
			}
		}
	}
	return provided
}

// ensureHost instantiates wasi and env once per runtime. The emscripten
// invoke_* trampolines are derived from the first module instantiated.
func (m *InstanceManager) ensureHost(ctx context.Context, compiled wazero.CompiledModule) error {
	m.envMu.Lock()
	defer m.envMu.Unlock()

	if m.env != nil {
		return nil
	}

	wasi, err := wasi_snapshot_preview1.Instantiate(ctx, m.runtime.runtime)
	if err != nil {
		return &HostModuleError{Module: wasi_snapshot_preview1.ModuleName, Err: err}
	}

	builder := m.runtime.runtime.NewHostModuleBuilder(abi.EnvModule)

	invokes, err := emscripten.NewFunctionExporterForModule(compiled)
	if err != nil {
		_ = wasi.Close(ctx)
		return &HostModuleError{Module: abi.EnvModule, Err: err}
	}
	invokes.ExportFunctions(builder)

	for _, e := range m.exporters {
		e.ExportFunctions(builder)
	}

	env, err := builder.Instantiate(ctx)
	if err != nil {
		_ = wasi.Close(ctx)
		return &HostModuleError{Module: abi.EnvModule, Err: err}
	}

	m.env = env
	m.wasi = wasi
	return nil
}

// Env returns the instantiated env host module, or nil before the first
// instantiation.
func (m *InstanceManager) Env() api.Module {
	m.envMu.Lock()
	defer m.envMu.Unlock()
	return m.env
}

// Instantiate creates a new instance from a compiled module.
func (m *InstanceManager) Instantiate(ctx context.Context, config *InstanceConfig) (*Instance, error) {
	compiled, ok := m.runtime.GetCompiledModule(config.ModuleName)
	if !ok {
		return nil, &ModuleNotFoundError{ModuleName: config.ModuleName}
	}

	if limit := m.runtime.config.MaxInstances; limit > 0 && m.runtime.InstanceCount() >= limit {
		return nil, &InstanceLimitError{Limit: limit}
	}

	instanceID := config.InstanceID
	if instanceID == "" {
		instanceID = generateID()
	}

	caps := compiled.Caps
	if caps == nil {
		caps = Probe(compiled.Module)
	}
	if unresolved := caps.Unresolved(m.Provided()); len(unresolved) > 0 {
		if config.Strict {
			return nil, &UnresolvedImportsError{ModuleName: config.ModuleName, Imports: unresolved}
		}
		m.logger.Warn("Engine imports not provided by any host exporter",
			zap.String("module", config.ModuleName),
			zap.Strings("imports", unresolved),
		)
	}

	m.logger.Info("Instantiating engine module",
		zap.String("module", config.ModuleName),
		zap.String("instance_id", instanceID),
	)

	if err := m.ensureHost(ctx, compiled.Module); err != nil {
		return nil, err
	}

	moduleConfig := wazero.NewModuleConfig().
		WithName(instanceID).
		WithStartFunctions("_initialize")

	module, err := m.runtime.runtime.InstantiateModule(ctx, compiled.Module, moduleConfig)
	if err != nil {
		return nil, &InstantiationError{
			ModuleName: config.ModuleName,
			InstanceID: instanceID,
			Err:        err,
		}
	}

	instance := &Instance{
		module:    module,
		ID:        instanceID,
		Name:      config.ModuleName,
		CreatedAt: time.Now().Unix(),
		exports:   m.cacheExportedFunctions(module),
		timeout:   m.runtime.config.ExecutionTimeout,
	}
	if module.Memory() != nil {
		var alloc marshal.Allocator
		if caps.Allocator {
			alloc = &ExportAllocator{instance: instance}
		}
		instance.heap = marshal.NewHeap(module.Memory(), alloc)
	}
	instance.onClose = func() { m.runtime.DeleteInstance(instanceID) }

	m.runtime.StoreInstance(instance)

	m.logger.Info("Module instantiated successfully",
		zap.String("instance_id", instanceID),
		zap.Int("exported_functions", len(instance.exports)),
	)

	return instance, nil
}

// Close closes the host modules.
func (m *InstanceManager) Close(ctx context.Context) error {
	m.envMu.Lock()
	defer m.envMu.Unlock()

	var err error
	if m.env != nil {
		err = multierr.Append(err, m.env.Close(ctx))
		m.env = nil
	}
	if m.wasi != nil {
		err = multierr.Append(err, m.wasi.Close(ctx))
		m.wasi = nil
	}
	return err
}

// cacheExportedFunctions caches references to the engine ABI functions.
func (m *InstanceManager) cacheExportedFunctions(module api.Module) map[string]api.Function {
	exports := make(map[string]api.Function)

	for _, name := range []string{
		abi.Malloc, abi.Free,
		abi.RenderPicturesOnWorker, abi.RasterizeImageOnWorker,
		abi.OnRenderComplete, abi.OnRasterizeComplete,
		abi.SurfaceDispose,
	} {
		if fn := module.ExportedFunction(name); fn != nil {
			exports[name] = fn
		}
	}

	return exports
}

type callKey struct{}

// Call invokes an exported function. Calls are serialized per instance;
// a call made from inside a host function of the same instance (such as
// malloc while a GL string is materialized) runs without re-locking.
//
// The instance is shared by every thread, so ctx is only checked before the
// call starts: cancelling it does not interrupt a running call. A call that
// runs past the execution timeout closes the instance.
func (i *Instance) Call(ctx context.Context, name string, params ...uint64) ([]uint64, error) {
	if held, _ := ctx.Value(callKey{}).(*Instance); held != i {
		i.mu.Lock()
		defer i.mu.Unlock()
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ctx = context.WithValue(context.WithoutCancel(ctx), callKey{}, i)
		if i.heap != nil {
			ctx = marshal.WithHeap(ctx, i.heap)
		}
	}

	fn, ok := i.exports[name]
	if !ok {
		if fn = i.module.ExportedFunction(name); fn == nil {
			return nil, &FunctionNotFoundError{ModuleName: i.Name, FunctionName: name}
		}
	}

	if i.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, i.timeout)
		defer cancel()
	}

	results, err := fn.Call(ctx, params...)
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return nil, &TimeoutError{Function: name, Duration: i.timeout}
	}
	return results, err
}

// Has reports whether the instance exports name.
func (i *Instance) Has(name string) bool {
	if _, ok := i.exports[name]; ok {
		return true
	}
	return i.module.ExportedFunction(name) != nil
}

// Heap returns the marshaling heap over the instance memory, or nil when the
// module has no memory.
func (i *Instance) Heap() *marshal.Heap {
	return i.heap
}

// Module returns the underlying wazero module.
func (i *Instance) Module() api.Module {
	return i.module
}

// Close closes the instance and releases resources.
func (i *Instance) Close(ctx context.Context) error {
	if i.onClose != nil {
		i.onClose()
	}
	return i.module.Close(ctx)
}

// ExportAllocator adapts the guest malloc/free exports to marshal.Allocator.
type ExportAllocator struct {
	instance *Instance
}

// NewExportAllocator returns an allocator calling inst's exports.
func NewExportAllocator(inst *Instance) *ExportAllocator {
	return &ExportAllocator{instance: inst}
}

func (a *ExportAllocator) Malloc(ctx context.Context, size uint32) (uint32, error) {
	res, err := a.instance.Call(ctx, abi.Malloc, api.EncodeU32(size))
	if err != nil {
		return 0, err
	}
	if len(res) == 0 {
		return 0, fmt.Errorf("%s returned no result", abi.Malloc)
	}
	return api.DecodeU32(res[0]), nil
}

func (a *ExportAllocator) Free(ctx context.Context, ptr uint32) error {
	_, err := a.instance.Call(ctx, abi.Free, api.EncodeU32(ptr))
	return err
}

var idCounter atomic.Uint64

// generateID generates a unique instance ID.
func generateID() string {
	return fmt.Sprintf("inst-%d-%d", time.Now().UnixNano(), idCounter.Add(1))
}
