package engine

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// ManifestFile is the name of the manifest in an engine directory.
const ManifestFile = "manifest.yaml"

// Renderer families.
const (
	VariantSkwasm    = "skwasm"
	VariantCanvasKit = "canvaskit"
)

// Capabilities a manifest may declare.
const (
	CapabilityThreads     = "threads"
	CapabilityWebGL2      = "webgl2"
	CapabilityTextLayout  = "text_layout"
	CapabilityImageDecode = "image_decode"
)

var (
	validVariants = []string{VariantSkwasm, VariantCanvasKit}
	validCaps     = []string{CapabilityThreads, CapabilityWebGL2, CapabilityTextLayout, CapabilityImageDecode}
)

// Manifest represents the engine manifest.yaml structure.
type Manifest struct {
	Name         string     `yaml:"name"`
	Version      string     `yaml:"version"`
	Variant      string     `yaml:"variant"`
	Wasm         WasmConfig `yaml:"wasm"`
	GLVersion    int        `yaml:"gl_version"`
	Capabilities []string   `yaml:"capabilities"`
	Author       string     `yaml:"author"`
	License      string     `yaml:"license"`

	// Internal fields
	dir string // Directory containing manifest
	fs  afero.Fs
}

// WasmConfig holds Wasm module configuration.
type WasmConfig struct {
	File string `yaml:"file"`
	Size int    `yaml:"size"` // KB
}

// ParseManifest reads and parses manifest.yaml from a directory on fs.
func ParseManifest(fs afero.Fs, dir string) (*Manifest, error) {
	manifestPath := filepath.Join(dir, ManifestFile)

	data, err := afero.ReadFile(fs, manifestPath)
	if err != nil {
		return nil, &ManifestNotFoundError{
			Path: manifestPath,
			Err:  err,
		}
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, &ManifestParseError{
			Path: manifestPath,
			Err:  err,
		}
	}

	m.dir = dir
	m.fs = fs
	if m.GLVersion == 0 {
		m.GLVersion = 2
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}

	return &m, nil
}

func (m *Manifest) invalid(field, format string, args ...any) error {
	return &ManifestValidationError{
		Path:    m.Path(),
		Field:   field,
		Message: fmt.Sprintf(format, args...),
	}
}

// Validate checks manifest fields.
func (m *Manifest) Validate() error {
	// Check required fields
	if m.Name == "" {
		return m.invalid("name", "name is required")
	}
	if m.Version == "" {
		return m.invalid("version", "version is required")
	}
	if m.Variant == "" {
		return m.invalid("variant", "variant is required")
	}
	if !slices.Contains(validVariants, m.Variant) {
		return m.invalid("variant", "unsupported variant: %s (must be one of: %s)",
			m.Variant, strings.Join(validVariants, ", "))
	}

	if m.Wasm.File == "" {
		return m.invalid("wasm.file", "wasm.file is required")
	}

	if m.GLVersion != 1 && m.GLVersion != 2 {
		return m.invalid("gl_version", "unsupported GL version: %d (must be 1 or 2)", m.GLVersion)
	}

	seen := make(map[string]bool, len(m.Capabilities))
	for _, c := range m.Capabilities {
		if !slices.Contains(validCaps, c) {
			return m.invalid("capabilities", "unknown capability: %s (must be one of: %s)",
				c, strings.Join(validCaps, ", "))
		}
		if seen[c] {
			return m.invalid("capabilities", "duplicate capability: %s", c)
		}
		seen[c] = true
	}
	if seen[CapabilityWebGL2] && m.GLVersion < 2 {
		return m.invalid("gl_version", "capability %s needs gl_version 2", CapabilityWebGL2)
	}

	// Validate Wasm file exists
	if m.fs != nil {
		if ok, _ := afero.Exists(m.fs, m.WasmPath()); !ok {
			return &WasmNotFoundError{
				ManifestPath: m.Path(),
				WasmFile:     m.Wasm.File,
			}
		}
	}

	return nil
}

// Path returns the manifest file path.
func (m *Manifest) Path() string {
	return filepath.Join(m.dir, ManifestFile)
}

// WasmPath returns the path to the Wasm file.
func (m *Manifest) WasmPath() string {
	return filepath.Join(m.dir, m.Wasm.File)
}

// Dir returns the directory containing the manifest.
func (m *Manifest) Dir() string {
	return m.dir
}
