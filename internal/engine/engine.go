package engine

import (
	"slices"
	"time"

	"github.com/woxQAQ/skwasm-bridge/internal/wasm"
)

// Engine is a loaded engine build with its manifest and compiled module.
type Engine struct {
	// Manifest is the parsed engine metadata
	Manifest *Manifest

	// Compiled is the compiled Wasm module
	Compiled *wasm.CompiledModule

	// LoadedAt is the timestamp when the engine was loaded
	LoadedAt time.Time
}

// Name returns the engine name.
func (e *Engine) Name() string {
	return e.Manifest.Name
}

// Variant returns the renderer family of the build.
func (e *Engine) Variant() string {
	return e.Manifest.Variant
}

// Version returns the engine version.
func (e *Engine) Version() string {
	return e.Manifest.Version
}

// Capabilities returns the capabilities the manifest declares.
func (e *Engine) Capabilities() []string {
	return e.Manifest.Capabilities
}

// Has reports whether the manifest declares capability.
func (e *Engine) Has(capability string) bool {
	return slices.Contains(e.Manifest.Capabilities, capability)
}

// Threaded reports whether the engine renders on worker threads.
func (e *Engine) Threaded() bool {
	return e.Has(CapabilityThreads)
}

// Probed returns what the module itself imports and exports.
func (e *Engine) Probed() *wasm.Capabilities {
	return e.Compiled.Caps
}
