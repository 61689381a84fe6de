// Package config provides configuration types and defaults for datarep.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/zjrosen/datarep/internal/log"
	"github.com/zjrosen/datarep/internal/tracing"
)

// Config holds all configuration options for datarep. The registries and
// caches take no configuration; these settings only affect wiring.
type Config struct {
	Log       LogConfig       `mapstructure:"log" yaml:"log"`
	Tracing   tracing.Config  `mapstructure:"tracing" yaml:"tracing"`
	PathCache PathCacheConfig `mapstructure:"path_cache" yaml:"path_cache"`
	Store     StoreConfig     `mapstructure:"store" yaml:"store"`
	Watch     WatchConfig     `mapstructure:"watch" yaml:"watch"`
	Device    DeviceConfig    `mapstructure:"device" yaml:"device"`
}

// LogConfig controls the file-backed debug log.
type LogConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path" yaml:"path"`
	Level   string `mapstructure:"level" yaml:"level"` // debug, info, warn or error
}

// PathCacheConfig controls memoisation of resolved conversion paths.
type PathCacheConfig struct {
	Enabled bool          `mapstructure:"enabled" yaml:"enabled"`
	TTL     time.Duration `mapstructure:"ttl" yaml:"ttl"`
}

// StoreConfig locates the sqlite database holding disk-backed volumes.
type StoreConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

type WatchConfig struct {
	Debounce time.Duration `mapstructure:"debounce" yaml:"debounce"`
}

// DeviceConfig sizes the emulated gpu device. Zero means unlimited.
type DeviceConfig struct {
	MaxTextures int `mapstructure:"max_textures" yaml:"max_textures"`
}

// Defaults returns a Config with sensible default values.
func Defaults() Config {
	return Config{
		Log: LogConfig{
			Enabled: false,
			Path:    "datarep.log",
			Level:   "info",
		},
		Tracing: tracing.DefaultConfig(),
		PathCache: PathCacheConfig{
			Enabled: true,
			TTL:     10 * time.Minute,
		},
		Store: StoreConfig{
			Path: filepath.Join(".datarep", "volumes.db"),
		},
		Watch: WatchConfig{
			Debounce: 500 * time.Millisecond,
		},
	}
}

// DefaultTracesFilePath returns ~/.config/datarep/traces/traces.jsonl, or
// "" when the home directory is unavailable.
func DefaultTracesFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "datarep", "traces", "traces.jsonl")
}

// SearchPaths lists the config locations tried when no --config flag is
// given, in priority order.
func SearchPaths() []string {
	paths := []string{filepath.Join(".datarep", "config.yaml")}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "datarep", "config.yaml"))
	}
	return paths
}

// Validate checks the whole configuration and joins every problem found.
func Validate(c Config) error {
	var errs []error
	if c.Log.Level != "" {
		if _, err := log.ParseLevel(c.Log.Level); err != nil {
			errs = append(errs, fmt.Errorf("log.level: %w", err))
		}
	}
	if c.Log.Enabled && c.Log.Path == "" {
		errs = append(errs, fmt.Errorf("log.path is required when log.enabled is true"))
	}
	if err := c.Tracing.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.PathCache.TTL < 0 {
		errs = append(errs, fmt.Errorf("path_cache.ttl must not be negative, got %s", c.PathCache.TTL))
	}
	if c.Store.Path == "" {
		errs = append(errs, fmt.Errorf("store.path is required"))
	}
	if c.Watch.Debounce < 0 {
		errs = append(errs, fmt.Errorf("watch.debounce must not be negative, got %s", c.Watch.Debounce))
	}
	if c.Device.MaxTextures < 0 {
		errs = append(errs, fmt.Errorf("device.max_textures must not be negative, got %d", c.Device.MaxTextures))
	}
	return errors.Join(errs...)
}

// DefaultConfigTemplate returns the default config as a YAML string with comments.
func DefaultConfigTemplate() string {
	return `# datarep configuration

# Debug log. Also enabled by the --debug flag.
log:
  enabled: false
  path: datarep.log
  level: info          # debug, info, warn or error

# Resolved conversion paths are memoised per family until the next
# registration or release.
path_cache:
  enabled: true
  ttl: 10m

# SQLite database holding disk-backed volumes.
store:
  path: .datarep/volumes.db

# Quiet period before an external store write is reported.
watch:
  debounce: 500ms

# Emulated gpu device. 0 means no texture limit.
device:
  max_textures: 0

# Conversion tracing (OpenTelemetry). Each conversion hop becomes a span
# named convert.<from>-><to>.
tracing:
  enabled: false
  exporter: file       # none, file, stdout or otlp
  # file_path: ~/.config/datarep/traces/traces.jsonl
  otlp_endpoint: localhost:4317
  sample_rate: 1.0
  service_name: datarep
`
}

// WriteDefaultConfig creates a config file at the given path with default
// settings and comments, creating the parent directory if needed.
func WriteDefaultConfig(configPath string) error {
	log.Debug(log.CatConfig, "Writing default config", "path", configPath)

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to create config directory", err, "dir", dir)
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(configPath, []byte(DefaultConfigTemplate()), 0o600); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to write config file", err, "path", configPath)
		return fmt.Errorf("writing config file: %w", err)
	}

	log.Info(log.CatConfig, "Created default config", "path", configPath)
	return nil
}
