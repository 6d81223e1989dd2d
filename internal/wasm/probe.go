package wasm

import (
	"sort"
	"strings"

	"github.com/tetratelabs/wazero"

	"github.com/woxQAQ/skwasm-bridge/api/abi"
)

// Capabilities describes what an engine build imports and exports.
type Capabilities struct {
	// Allocator is true when malloc and free are exported.
	Allocator bool

	// WorkerEntryPoints is true when the worker-side render and rasterize
	// entry points are exported.
	WorkerEntryPoints bool

	// CompletionCallbacks is true when the main-thread completion
	// callbacks are exported.
	CompletionCallbacks bool

	ExportedMemory bool
	ImportedMemory bool
	MemoryMinPages uint32
	MemoryMaxPages uint32
	MemoryHasMax   bool

	// Env imports grouped by family, sorted.
	GLImports         []string
	SkwasmImports     []string
	EmscriptenImports []string
	OtherImports      []string
}

// Growable reports whether linear memory may grow past its initial size.
func (c *Capabilities) Growable() bool {
	return !c.MemoryHasMax || c.MemoryMaxPages > c.MemoryMinPages
}

// EnvImports returns every function the module imports from env.
func (c *Capabilities) EnvImports() []string {
	var out []string
	out = append(out, c.GLImports...)
	out = append(out, c.SkwasmImports...)
	out = append(out, c.EmscriptenImports...)
	out = append(out, c.OtherImports...)
	sort.Strings(out)
	return out
}

// Probe inspects a compiled module.
func Probe(compiled wazero.CompiledModule) *Capabilities {
	caps := &Capabilities{}

	exports := compiled.ExportedFunctions()
	has := func(names ...string) bool {
		for _, n := range names {
			if _, ok := exports[n]; !ok {
				return false
			}
		}
		return true
	}
	caps.Allocator = has(abi.Malloc, abi.Free)
	caps.WorkerEntryPoints = has(abi.RenderPicturesOnWorker, abi.RasterizeImageOnWorker)
	caps.CompletionCallbacks = has(abi.OnRenderComplete, abi.OnRasterizeComplete)

	for _, m := range compiled.ExportedMemories() {
		caps.ExportedMemory = true
		caps.MemoryMinPages = m.Min()
		caps.MemoryMaxPages, caps.MemoryHasMax = m.Max()
	}
	for _, m := range compiled.ImportedMemories() {
		caps.ImportedMemory = true
		caps.MemoryMinPages = m.Min()
		caps.MemoryMaxPages, caps.MemoryHasMax = m.Max()
	}

	for _, fn := range compiled.ImportedFunctions() {
		module, name, _ := fn.Import()
		if module != abi.EnvModule {
			continue
		}
		switch {
		case strings.HasPrefix(name, "gl") || strings.HasPrefix(name, "emscripten_webgl_"):
			caps.GLImports = append(caps.GLImports, name)
		case strings.HasPrefix(name, abi.SkwasmPrefix):
			caps.SkwasmImports = append(caps.SkwasmImports, name)
		case strings.HasPrefix(name, "emscripten_") || strings.HasPrefix(name, "invoke_"):
			caps.EmscriptenImports = append(caps.EmscriptenImports, name)
		default:
			caps.OtherImports = append(caps.OtherImports, name)
		}
	}
	sort.Strings(caps.GLImports)
	sort.Strings(caps.SkwasmImports)
	sort.Strings(caps.EmscriptenImports)
	sort.Strings(caps.OtherImports)

	return caps
}

// Unresolved returns env imports that are not in provided. Emscripten
// invoke_* trampolines are always considered provided.
func (c *Capabilities) Unresolved(provided map[string]bool) []string {
	var out []string
	for _, name := range c.EnvImports() {
		if strings.HasPrefix(name, "invoke_") || provided[name] {
			continue
		}
		out = append(out, name)
	}
	return out
}
