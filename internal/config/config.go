// Package config provides configuration management for soyidx using Viper
// for loading from files, environment variables, and command-line flags.
//
// The configuration names the workspace modules to index, the cache limits,
// the debug switch that enables the change log, the file watcher and change
// watcher timings, and logging. Environment variables override the file with
// the SOYIDX_ prefix.
package config

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"time"

	ierrors "github.com/conneroisu/soyidx/internal/errors"
	"github.com/conneroisu/soyidx/internal/logging"
	"github.com/spf13/viper"
)

// Defaults applied by Load when a key is not set.
const (
	DefaultExtension   = "soy"
	DefaultMaxFileSize = 1_000_000
	DefaultMemoSize    = 512
	DefaultDebounce    = 300 * time.Millisecond
	DefaultTick        = 250 * time.Millisecond
	DefaultSettle      = 1000 * time.Millisecond
)

type Config struct {
	Workspace WorkspaceConfig `mapstructure:"workspace" yaml:"workspace"`
	Cache     CacheConfig     `mapstructure:"cache" yaml:"cache"`
	Watch     WatchConfig     `mapstructure:"watch" yaml:"watch"`
	Log       LogConfig       `mapstructure:"log" yaml:"log"`
}

type WorkspaceConfig struct {
	Root    string         `mapstructure:"root" yaml:"root"`
	Modules []ModuleConfig `mapstructure:"modules" yaml:"modules"`
	Exclude []string       `mapstructure:"exclude" yaml:"exclude"`
}

// ModuleConfig names one module. Path is relative to the workspace root.
type ModuleConfig struct {
	Name string `mapstructure:"name" yaml:"name"`
	Path string `mapstructure:"path" yaml:"path"`
}

type CacheConfig struct {
	// Debug enables the change log.
	Debug       bool   `mapstructure:"debug" yaml:"debug"`
	Extension   string `mapstructure:"extension" yaml:"extension"`
	MaxFileSize int64  `mapstructure:"max_file_size" yaml:"max_file_size"`
	MemoSize    int    `mapstructure:"memo_size" yaml:"memo_size"`
}

type WatchConfig struct {
	Debounce time.Duration `mapstructure:"debounce" yaml:"debounce"`
	Tick     time.Duration `mapstructure:"tick" yaml:"tick"`
	Settle   time.Duration `mapstructure:"settle" yaml:"settle"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// envKeys are the scalar keys that may be set from SOYIDX_* variables.
var envKeys = []string{
	"workspace.root",
	"cache.debug",
	"cache.extension",
	"cache.max_file_size",
	"cache.memo_size",
	"watch.debounce",
	"watch.tick",
	"watch.settle",
	"log.level",
	"log.format",
}

// BindEnv makes v answer every scalar key from the environment with the
// SOYIDX_ prefix, e.g. SOYIDX_CACHE_DEBUG for cache.debug.
func BindEnv(v *viper.Viper) error {
	v.SetEnvPrefix("SOYIDX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range envKeys {
		if err := v.BindEnv(key); err != nil {
			return ierrors.Wrap(err, ierrors.ErrorTypeConfig, "cannot bind environment key "+key)
		}
	}
	return nil
}

// Load reads the configuration from the global viper instance.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom reads the configuration from v, applies defaults and validates
// the result.
func LoadFrom(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, ierrors.Wrap(err, ierrors.ErrorTypeConfig, "cannot decode configuration")
	}

	// Handle exclude set via viper (workaround for viper slice handling)
	if v.IsSet("workspace.exclude") && len(config.Workspace.Exclude) == 0 {
		config.Workspace.Exclude = v.GetStringSlice("workspace.exclude")
	}

	if config.Workspace.Root == "" {
		config.Workspace.Root = "."
	}
	if !v.IsSet("workspace.exclude") {
		config.Workspace.Exclude = []string{".git", "node_modules", "vendor"}
	}
	if len(config.Workspace.Modules) == 0 {
		config.Workspace.Modules = []ModuleConfig{{
			Name: defaultModuleName(config.Workspace.Root),
			Path: ".",
		}}
	}

	if config.Cache.Extension == "" {
		config.Cache.Extension = DefaultExtension
	}
	if !v.IsSet("cache.max_file_size") {
		config.Cache.MaxFileSize = DefaultMaxFileSize
	}
	if !v.IsSet("cache.memo_size") {
		config.Cache.MemoSize = DefaultMemoSize
	}

	if !v.IsSet("watch.debounce") {
		config.Watch.Debounce = DefaultDebounce
	}
	if !v.IsSet("watch.tick") {
		config.Watch.Tick = DefaultTick
	}
	if !v.IsSet("watch.settle") {
		config.Watch.Settle = DefaultSettle
	}

	if config.Log.Level == "" {
		config.Log.Level = "info"
	}
	if config.Log.Format == "" {
		config.Log.Format = "text"
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// ModuleRoot returns the directory of m resolved against the workspace root.
func (c *Config) ModuleRoot(m ModuleConfig) string {
	if filepath.IsAbs(m.Path) {
		return filepath.Clean(m.Path)
	}
	return filepath.Join(c.Workspace.Root, m.Path)
}

func defaultModuleName(root string) string {
	abs, err := filepath.Abs(root)
	if err != nil {
		return "main"
	}
	name := filepath.Base(abs)
	if name == string(filepath.Separator) || name == "." {
		return "main"
	}
	return name
}

// validateConfig validates configuration values for correctness
func validateConfig(config *Config) error {
	if err := validateWorkspaceConfig(&config.Workspace); err != nil {
		return fmt.Errorf("workspace config: %w", err)
	}
	if err := validateCacheConfig(&config.Cache); err != nil {
		return fmt.Errorf("cache config: %w", err)
	}
	if err := validateWatchConfig(&config.Watch); err != nil {
		return fmt.Errorf("watch config: %w", err)
	}
	if err := validateLogConfig(&config.Log); err != nil {
		return fmt.Errorf("log config: %w", err)
	}
	return nil
}

func validateWorkspaceConfig(config *WorkspaceConfig) error {
	names := make([]string, 0, len(config.Modules))
	paths := make([]string, 0, len(config.Modules))
	for _, m := range config.Modules {
		if strings.TrimSpace(m.Name) == "" {
			return invalid("module name is empty")
		}
		if slices.Contains(names, m.Name) {
			return invalid(fmt.Sprintf("duplicate module name '%s'", m.Name))
		}
		if err := validatePath(m.Path); err != nil {
			return invalid(fmt.Sprintf("module '%s': %v", m.Name, err))
		}
		path := filepath.Clean(m.Path)
		if slices.Contains(paths, path) {
			return invalid(fmt.Sprintf("module '%s' shares path '%s' with another module", m.Name, m.Path))
		}
		names = append(names, m.Name)
		paths = append(paths, path)
	}
	return nil
}

func validateCacheConfig(config *CacheConfig) error {
	if strings.HasPrefix(config.Extension, ".") {
		return invalid(fmt.Sprintf("extension '%s' must not start with a dot", config.Extension))
	}
	if strings.ContainsAny(config.Extension, `/\`) {
		return invalid(fmt.Sprintf("extension '%s' contains a path separator", config.Extension))
	}
	if config.MaxFileSize <= 0 {
		return invalid(fmt.Sprintf("max_file_size %d must be positive", config.MaxFileSize))
	}
	return nil
}

func validateWatchConfig(config *WatchConfig) error {
	for name, d := range map[string]time.Duration{
		"debounce": config.Debounce,
		"tick":     config.Tick,
		"settle":   config.Settle,
	} {
		if d <= 0 {
			return invalid(fmt.Sprintf("%s %s must be positive", name, d))
		}
	}
	return nil
}

func validateLogConfig(config *LogConfig) error {
	if _, err := logging.ParseLevel(config.Level); err != nil {
		return invalid(err.Error())
	}
	if config.Format != "text" && config.Format != "json" {
		return invalid(fmt.Sprintf("format '%s' is not one of text, json", config.Format))
	}
	return nil
}

// validatePath validates a module path for security
func validatePath(path string) error {
	if path == "" {
		return fmt.Errorf("empty path")
	}

	cleanPath := filepath.Clean(path)

	// Reject path traversal attempts
	if strings.Contains(cleanPath, "..") {
		return fmt.Errorf("path contains traversal: %s", path)
	}

	// Reject dangerous characters
	dangerousChars := []string{";", "&", "|", "$", "`", "<", ">", "\"", "'"}
	for _, char := range dangerousChars {
		if strings.Contains(cleanPath, char) {
			return fmt.Errorf("path contains dangerous character: %s", char)
		}
	}

	return nil
}

func invalid(message string) error {
	return ierrors.NewConfigError(ierrors.CodeInvalidConfig, message)
}
