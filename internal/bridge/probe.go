package bridge

import (
	"context"

	"gopkg.in/yaml.v3"

	"github.com/woxQAQ/skwasm-bridge/internal/engine"
)

// Report summarizes one engine build for operators.
type Report struct {
	Name         string   `yaml:"name"`
	Version      string   `yaml:"version"`
	Variant      string   `yaml:"variant"`
	Wasm         string   `yaml:"wasm"`
	Capabilities []string `yaml:"capabilities,omitempty"`

	Allocator           bool   `yaml:"allocator"`
	WorkerEntryPoints   bool   `yaml:"worker_entry_points"`
	CompletionCallbacks bool   `yaml:"completion_callbacks"`
	GrowableMemory      bool   `yaml:"growable_memory"`
	MemoryMinPages      uint32 `yaml:"memory_min_pages"`

	GLImports     int      `yaml:"gl_imports"`
	SkwasmImports []string `yaml:"skwasm_imports,omitempty"`
	Unresolved    []string `yaml:"unresolved,omitempty"`
}

// Probe loads the configured engines and reports what each build imports
// and exports, including env imports no host function provides.
func (b *Bridge) Probe(ctx context.Context) ([]Report, error) {
	if err := b.load(ctx); err != nil {
		return nil, err
	}

	provided := b.instances.Provided()
	var reports []Report
	for _, e := range b.engines.Registry().List() {
		reports = append(reports, report(e, provided))
	}
	return reports, nil
}

func report(e *engine.Engine, provided map[string]bool) Report {
	caps := e.Probed()
	return Report{
		Name:                e.Name(),
		Version:             e.Version(),
		Variant:             e.Variant(),
		Wasm:                e.Manifest.WasmPath(),
		Capabilities:        e.Capabilities(),
		Allocator:           caps.Allocator,
		WorkerEntryPoints:   caps.WorkerEntryPoints,
		CompletionCallbacks: caps.CompletionCallbacks,
		GrowableMemory:      caps.Growable(),
		MemoryMinPages:      caps.MemoryMinPages,
		GLImports:           len(caps.GLImports),
		SkwasmImports:       caps.SkwasmImports,
		Unresolved:          caps.Unresolved(provided),
	}
}

// MarshalReports renders reports as YAML.
func MarshalReports(reports []Report) ([]byte, error) {
	return yaml.Marshal(reports)
}
