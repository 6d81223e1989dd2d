package engine

import (
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
)

const validManifest = `
name: skwasm-mt
version: 3.32.0
variant: skwasm
gl_version: 2
wasm:
  file: skwasm.wasm
  size: 2048
capabilities: [threads, webgl2, text_layout]
author: Engine Team
license: BSD-3-Clause
`

// writeEngine lays out an engine directory on fs.
func writeEngine(t *testing.T, fs afero.Fs, dir, manifest string, module []byte) {
	t.Helper()
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if manifest != "" {
		if err := afero.WriteFile(fs, filepath.Join(dir, ManifestFile), []byte(manifest), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if module != nil {
		if err := afero.WriteFile(fs, filepath.Join(dir, "skwasm.wasm"), module, 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func testEngine(name, variant string) *Engine {
	return &Engine{Manifest: &Manifest{Name: name, Variant: variant, dir: "/engines/" + name}}
}
