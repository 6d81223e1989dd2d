package engine

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/spf13/afero"
)

func TestParseManifest_Valid(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeEngine(t, fs, "/engines/skwasm-mt", validManifest, []byte{0})

	manifest, err := ParseManifest(fs, "/engines/skwasm-mt")
	if err != nil {
		t.Fatalf("ParseManifest() failed: %v", err)
	}

	want := &Manifest{
		Name:         "skwasm-mt",
		Version:      "3.32.0",
		Variant:      VariantSkwasm,
		Wasm:         WasmConfig{File: "skwasm.wasm", Size: 2048},
		GLVersion:    2,
		Capabilities: []string{CapabilityThreads, CapabilityWebGL2, CapabilityTextLayout},
		Author:       "Engine Team",
		License:      "BSD-3-Clause",
	}
	if diff := cmp.Diff(want, manifest, cmpopts.IgnoreUnexported(Manifest{})); diff != "" {
		t.Errorf("manifest (-want +got):\n%s", diff)
	}
	if manifest.Path() != "/engines/skwasm-mt/manifest.yaml" {
		t.Errorf("unexpected Path %s", manifest.Path())
	}
	if manifest.WasmPath() != "/engines/skwasm-mt/skwasm.wasm" {
		t.Errorf("unexpected WasmPath %s", manifest.WasmPath())
	}
	if manifest.Dir() != "/engines/skwasm-mt" {
		t.Errorf("unexpected Dir %s", manifest.Dir())
	}
}

func TestParseManifest_DefaultGLVersion(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeEngine(t, fs, "/e", "name: ck\nversion: '1'\nvariant: canvaskit\nwasm:\n  file: skwasm.wasm\n", []byte{0})

	manifest, err := ParseManifest(fs, "/e")
	if err != nil {
		t.Fatalf("ParseManifest() failed: %v", err)
	}
	if manifest.GLVersion != 2 {
		t.Errorf("expected GLVersion 2, got %d", manifest.GLVersion)
	}
	if len(manifest.Capabilities) != 0 {
		t.Errorf("expected no capabilities, got %v", manifest.Capabilities)
	}
}

func TestParseManifest_NotFound(t *testing.T) {
	_, err := ParseManifest(afero.NewMemMapFs(), "/engines/nonexistent")

	var notFound *ManifestNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected ManifestNotFoundError, got %v", err)
	}
}

func TestParseManifest_InvalidYAML(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeEngine(t, fs, "/e", "name: [unterminated\n", nil)

	_, err := ParseManifest(fs, "/e")
	var parseErr *ManifestParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("expected ManifestParseError, got %v", err)
	}
}

func TestParseManifest_WasmNotFound(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeEngine(t, fs, "/e", validManifest, nil)

	_, err := ParseManifest(fs, "/e")
	var missing *WasmNotFoundError
	if !errors.As(err, &missing) || missing.WasmFile != "skwasm.wasm" {
		t.Fatalf("expected WasmNotFoundError, got %v", err)
	}
}

func TestParseManifest_ValidationErrors(t *testing.T) {
	tests := []struct {
		name     string
		manifest string
		field    string
		message  string
	}{
		{
			name:     "missing name",
			manifest: "version: '1'\nvariant: skwasm\nwasm: {file: skwasm.wasm}\n",
			field:    "name",
		},
		{
			name:     "missing version",
			manifest: "name: e\nvariant: skwasm\nwasm: {file: skwasm.wasm}\n",
			field:    "version",
		},
		{
			name:     "missing variant",
			manifest: "name: e\nversion: '1'\nwasm: {file: skwasm.wasm}\n",
			field:    "variant",
		},
		{
			name:     "bad variant",
			manifest: "name: e\nversion: '1'\nvariant: html\nwasm: {file: skwasm.wasm}\n",
			field:    "variant",
			message:  "unsupported variant: html",
		},
		{
			name:     "missing wasm file",
			manifest: "name: e\nversion: '1'\nvariant: skwasm\n",
			field:    "wasm.file",
		},
		{
			name:     "bad gl version",
			manifest: "name: e\nversion: '1'\nvariant: skwasm\ngl_version: 3\nwasm: {file: skwasm.wasm}\n",
			field:    "gl_version",
		},
		{
			name:     "bad capability",
			manifest: "name: e\nversion: '1'\nvariant: skwasm\nwasm: {file: skwasm.wasm}\ncapabilities: [video]\n",
			field:    "capabilities",
			message:  "unknown capability: video",
		},
		{
			name:     "duplicate capability",
			manifest: "name: e\nversion: '1'\nvariant: skwasm\nwasm: {file: skwasm.wasm}\ncapabilities: [threads, threads]\n",
			field:    "capabilities",
		},
		{
			name:     "webgl2 on gl 1",
			manifest: "name: e\nversion: '1'\nvariant: skwasm\ngl_version: 1\nwasm: {file: skwasm.wasm}\ncapabilities: [webgl2]\n",
			field:    "gl_version",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			writeEngine(t, fs, "/e", tt.manifest, []byte{0})

			_, err := ParseManifest(fs, "/e")
			var invalid *ManifestValidationError
			if !errors.As(err, &invalid) {
				t.Fatalf("expected ManifestValidationError, got %v", err)
			}
			if invalid.Field != tt.field {
				t.Errorf("expected field %q, got %q", tt.field, invalid.Field)
			}
			if tt.message != "" && !strings.Contains(invalid.Message, tt.message) {
				t.Errorf("message %q does not mention %q", invalid.Message, tt.message)
			}
		})
	}
}
