package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/spf13/afero"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/woxQAQ/skwasm-bridge/internal/config"
	"github.com/woxQAQ/skwasm-bridge/internal/wasm"
)

// Manager manages the engine lifecycle.
type Manager struct {
	cfg         *config.BridgeConfig
	runtime     *wasm.Runtime
	loader      *Loader
	registry    *Registry
	instanceMgr *wasm.InstanceManager
	logger      *zap.Logger

	mu     sync.RWMutex
	loaded bool
}

// NewManager creates a new engine manager. Engines are read from fs, or
// the OS filesystem when fs is nil, and instantiated through instanceMgr.
func NewManager(
	cfg *config.BridgeConfig,
	runtime *wasm.Runtime,
	fs afero.Fs,
	instanceMgr *wasm.InstanceManager,
	logger *zap.Logger,
) *Manager {
	return &Manager{
		cfg:         cfg,
		runtime:     runtime,
		loader:      NewLoader(runtime, fs, logger),
		registry:    NewRegistry(logger),
		instanceMgr: instanceMgr,
		logger:      logger.With(zap.String("component", "engine-manager")),
	}
}

// LoadAll discovers and loads all engines from configured paths.
func (m *Manager) LoadAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.loaded {
		return fmt.Errorf("engines already loaded")
	}

	m.logger.Info("Loading engines",
		zap.Strings("paths", m.cfg.EnginePaths),
	)

	engines, err := m.loader.DiscoverEngines(ctx, m.cfg.EnginePaths)
	if err != nil {
		var none *NoEnginesFoundError
		if errors.As(err, &none) {
			m.logger.Warn("No engines found in configured paths",
				zap.Strings("paths", m.cfg.EnginePaths),
			)
			m.loaded = true
			return nil
		}
		return err
	}

	for _, engine := range engines {
		if err := m.registry.Register(engine); err != nil {
			m.logger.Error("Failed to register engine",
				zap.String("name", engine.Manifest.Name),
				zap.Error(err),
			)
			continue
		}
	}

	m.loaded = true

	m.logger.Info("Engines loaded successfully",
		zap.Int("count", m.registry.Count()),
	)

	return nil
}

// Load loads the engine in dir and registers it.
func (m *Manager) Load(ctx context.Context, dir string) (*Engine, error) {
	engine, err := m.loader.LoadEngine(ctx, dir)
	if err != nil {
		return nil, err
	}
	if err := m.registry.Register(engine); err != nil {
		return nil, err
	}
	return engine, nil
}

// GetEngine retrieves an engine by name.
func (m *Manager) GetEngine(name string) (*Engine, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	engine, ok := m.registry.Get(name)
	if !ok {
		return nil, &EngineNotFoundError{EngineName: name}
	}

	return engine, nil
}

// FindEngineForVariant returns the first engine of a renderer family.
func (m *Manager) FindEngineForVariant(variant string) (*Engine, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	engines := m.registry.LookupByVariant(variant)
	if len(engines) == 0 {
		return nil, fmt.Errorf("no engine found for variant '%s'", variant)
	}

	return engines[0], nil
}

// Select returns the engine named by the configuration, or the first skwasm
// build when none is named.
func (m *Manager) Select() (*Engine, error) {
	if m.cfg.Engine != "" {
		return m.GetEngine(m.cfg.Engine)
	}
	return m.FindEngineForVariant(VariantSkwasm)
}

// Instantiate creates a new instance of an engine.
func (m *Manager) Instantiate(ctx context.Context, engineName string) (*wasm.Instance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	engine, ok := m.registry.Get(engineName)
	if !ok {
		return nil, &EngineNotFoundError{EngineName: engineName}
	}

	return m.instanceMgr.Instantiate(ctx, &wasm.InstanceConfig{
		ModuleName: engine.Compiled.Name,
		Strict:     m.cfg.Wasm.Strict,
	})
}

// Shutdown closes the host modules and the runtime, which closes every
// instance.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.logger.Info("Shutting down engine manager")

	err := multierr.Combine(
		m.instanceMgr.Close(ctx),
		m.runtime.Close(ctx),
	)
	if err != nil {
		m.logger.Error("Failed to shutdown engines", zap.Error(err))
		return err
	}

	m.logger.Info("Engine manager shutdown complete")
	return nil
}

// Registry returns the engine registry (for testing/inspection).
func (m *Manager) Registry() *Registry {
	return m.registry
}

// IsLoaded returns whether engines have been loaded.
func (m *Manager) IsLoaded() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loaded
}
