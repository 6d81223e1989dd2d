package engine

import (
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Registry manages loaded engines.
type Registry struct {
	sync.RWMutex
	engines   map[string]*Engine   // name -> engine
	byVariant map[string][]*Engine // variant -> engines, in registration order
	logger    *zap.Logger
}

// NewRegistry creates a new engine registry.
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		engines:   make(map[string]*Engine),
		byVariant: make(map[string][]*Engine),
		logger:    logger.With(zap.String("component", "engine-registry")),
	}
}

// Register adds an engine to the registry.
func (r *Registry) Register(engine *Engine) error {
	r.Lock()
	defer r.Unlock()

	name := engine.Manifest.Name

	if _, exists := r.engines[name]; exists {
		return &EngineAlreadyRegisteredError{EngineName: name}
	}

	r.engines[name] = engine

	variant := engine.Manifest.Variant
	r.byVariant[variant] = append(r.byVariant[variant], engine)

	r.logger.Info("Engine registered",
		zap.String("name", name),
		zap.String("variant", variant),
	)

	return nil
}

// Get retrieves an engine by name.
func (r *Registry) Get(name string) (*Engine, bool) {
	r.RLock()
	defer r.RUnlock()

	engine, ok := r.engines[name]
	return engine, ok
}

// LookupByVariant finds engines of a renderer family.
func (r *Registry) LookupByVariant(variant string) []*Engine {
	r.RLock()
	defer r.RUnlock()

	engines := r.byVariant[variant]
	result := make([]*Engine, len(engines))
	copy(result, engines)
	return result
}

// List returns all registered engines sorted by name.
func (r *Registry) List() []*Engine {
	r.RLock()
	defer r.RUnlock()

	result := make([]*Engine, 0, len(r.engines))
	for _, engine := range r.engines {
		result = append(result, engine)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Manifest.Name < result[j].Manifest.Name
	})
	return result
}

// Unregister removes an engine from the registry.
func (r *Registry) Unregister(name string) {
	r.Lock()
	defer r.Unlock()

	engine, ok := r.engines[name]
	if !ok {
		return
	}

	variant := engine.Manifest.Variant
	engines := r.byVariant[variant]
	for i, e := range engines {
		if e.Manifest.Name == name {
			r.byVariant[variant] = append(engines[:i], engines[i+1:]...)
			break
		}
	}

	delete(r.engines, name)

	r.logger.Info("Engine unregistered", zap.String("name", name))
}

// Count returns the number of registered engines.
func (r *Registry) Count() int {
	r.RLock()
	defer r.RUnlock()

	return len(r.engines)
}
