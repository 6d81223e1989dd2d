package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/woxQAQ/skwasm-bridge/internal/gl"
	"github.com/woxQAQ/skwasm-bridge/internal/gl/memdevice"
	"github.com/woxQAQ/skwasm-bridge/internal/wasm"
	"github.com/woxQAQ/skwasm-bridge/internal/worker"
)

// EnvPrefix prefixes environment overrides, e.g. SKBRIDGE_WORKERS_COUNT.
const EnvPrefix = "SKBRIDGE"

type BridgeConfig struct {
	EnginePaths []string `mapstructure:"engine_paths"`
	LogLevel    string   `mapstructure:"log_level"`
	// Engine names the engine to start; empty picks the first skwasm build.
	Engine string `mapstructure:"engine"`

	Wasm      WasmConfig        `mapstructure:"wasm"`
	Workers   worker.Config     `mapstructure:"workers"`
	GL        gl.Attributes     `mapstructure:"gl"`
	MemDevice memdevice.Options `mapstructure:"memdevice"`
}

// WasmConfig holds Wasm runtime configuration.
type WasmConfig struct {
	// Memory limit per module (in pages, 64KB each).
	MemoryPages uint32 `mapstructure:"memory_pages"`
	// Enable debug logging.
	Debug bool `mapstructure:"debug"`
	// Compilation cache directory.
	CacheDir string `mapstructure:"cache_dir"`
	// Maximum concurrent instances.
	MaxInstances int `mapstructure:"max_instances"`
	// Engine call timeout (seconds). 0 disables it.
	ExecutionTimeout int `mapstructure:"execution_timeout"`
	// Refuse engines whose env imports are not all provided.
	Strict bool `mapstructure:"strict"`
}

// Runtime converts the settings to a runtime configuration.
func (c WasmConfig) Runtime() *wasm.RuntimeConfig {
	return &wasm.RuntimeConfig{
		MemoryPages:      c.MemoryPages,
		DebugEnabled:     c.Debug,
		CacheDir:         c.CacheDir,
		MaxInstances:     c.MaxInstances,
		ExecutionTimeout: time.Duration(c.ExecutionTimeout) * time.Second,
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("engine_paths", []string{"./engines"})
	v.SetDefault("log_level", "info")
	v.SetDefault("engine", "")

	// Wasm defaults
	v.SetDefault("wasm.memory_pages", 256) // 16MB
	v.SetDefault("wasm.debug", false)
	v.SetDefault("wasm.cache_dir", "./build/wasm-cache")
	v.SetDefault("wasm.max_instances", 100)
	v.SetDefault("wasm.execution_timeout", 30)
	v.SetDefault("wasm.strict", false)

	workers := worker.DefaultConfig()
	v.SetDefault("workers.count", workers.Count)
	v.SetDefault("workers.serialize_messages", workers.SerializeMessages)
	v.SetDefault("workers.auto_listen", workers.AutoListen)

	attrs := gl.DefaultAttributes()
	v.SetDefault("gl.major_version", attrs.MajorVersion)
	v.SetDefault("gl.alpha", attrs.Alpha)
	v.SetDefault("gl.depth", attrs.Depth)
	v.SetDefault("gl.stencil", attrs.Stencil)
	v.SetDefault("gl.antialias", attrs.Antialias)
	v.SetDefault("gl.premultiplied_alpha", attrs.PremultipliedAlpha)
	v.SetDefault("gl.preserve_drawing_buffer", attrs.PreserveDrawingBuffer)
	v.SetDefault("gl.power_preference", attrs.PowerPreference)
	v.SetDefault("gl.fail_if_major_performance_caveat", attrs.FailIfMajorPerformanceCaveat)
	v.SetDefault("gl.enable_extensions_by_default", attrs.EnableExtensionsByDefault)

	v.SetDefault("memdevice.extensions", memdevice.DefaultExtensions)
	v.SetDefault("memdevice.max_version", 2)
	v.SetDefault("memdevice.fail", false)
}

// LoadBridgeConfig reads configPath, if set, over the defaults and applies
// SKBRIDGE_* environment overrides.
func LoadBridgeConfig(configPath string) (*BridgeConfig, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	var cfg BridgeConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects settings no component can run with.
func (c *BridgeConfig) Validate() error {
	if c.Workers.Count < 0 {
		return fmt.Errorf("workers.count must not be negative, got %d", c.Workers.Count)
	}
	if c.GL.MajorVersion != 1 && c.GL.MajorVersion != 2 {
		return fmt.Errorf("gl.major_version must be 1 or 2, got %d", c.GL.MajorVersion)
	}
	switch c.GL.PowerPreference {
	case "default", "low-power", "high-performance":
	default:
		return fmt.Errorf("gl.power_preference %q is not one of default, low-power, high-performance", c.GL.PowerPreference)
	}
	if c.Wasm.ExecutionTimeout < 0 {
		return fmt.Errorf("wasm.execution_timeout must not be negative, got %d", c.Wasm.ExecutionTimeout)
	}
	return nil
}
