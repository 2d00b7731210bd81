// Package config provides configuration management for Stratum using Viper
// for loading from files, environment variables, and command-line flags.
//
// The configuration system supports YAML files, environment variable overrides
// with the STRATUM_ prefix, defaults and validation. It covers module
// discovery, layout loading, template lookup, rendering, the HTTP server,
// the output cache and logging.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/conneroisu/stratum/internal/modules"
)

// Default values applied by Load when a setting is absent.
const (
	DefaultModulesDir     = "app/code"
	DefaultArea           = "frontend"
	DefaultMaxUpdateDepth = 32
	DefaultHost           = "localhost"
	DefaultPort           = 8080
	DefaultTitle          = "Stratum"
	DefaultCacheBackend   = "none"
	DefaultCacheSize      = 256
	DefaultCacheTTL       = 5 * time.Minute
	DefaultCachePrefix    = "stratum:"
	DefaultLogLevel       = "info"
	DefaultLogFormat      = "text"
)

type Config struct {
	Modules   ModulesConfig   `mapstructure:"modules" yaml:"modules"`
	Layout    LayoutConfig    `mapstructure:"layout" yaml:"layout"`
	Templates TemplatesConfig `mapstructure:"templates" yaml:"templates"`
	Render    RenderConfig    `mapstructure:"render" yaml:"render"`
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	Cache     CacheConfig     `mapstructure:"cache" yaml:"cache"`
	Log       LogConfig       `mapstructure:"log" yaml:"log"`
}

type ModulesConfig struct {
	// Dir is scanned for <name>/module.yml manifests.
	Dir      string        `mapstructure:"dir" yaml:"dir"`
	Declared []ModuleEntry `mapstructure:"declared" yaml:"declared"`
}

// ModuleEntry declares a module inline instead of through a manifest.
type ModuleEntry struct {
	Name     string   `mapstructure:"name" yaml:"name"`
	Path     string   `mapstructure:"path" yaml:"path"`
	Sequence []string `mapstructure:"sequence" yaml:"sequence"`
	Disabled bool     `mapstructure:"disabled" yaml:"disabled"`
}

// Module converts the entry into a registry module.
func (e ModuleEntry) Module() modules.Module {
	return modules.Module{
		Name:     e.Name,
		BasePath: e.Path,
		Sequence: e.Sequence,
		Enabled:  !e.Disabled,
	}
}

type LayoutConfig struct {
	Area           string   `mapstructure:"area" yaml:"area"`
	SearchDirs     []string `mapstructure:"search_dirs" yaml:"search_dirs"`
	DefaultHandles []string `mapstructure:"default_handles" yaml:"default_handles"`
	MaxUpdateDepth int      `mapstructure:"max_update_depth" yaml:"max_update_depth"`
}

type TemplatesConfig struct {
	Cache bool `mapstructure:"cache" yaml:"cache"`
}

type RenderConfig struct {
	LiveReload bool   `mapstructure:"live_reload" yaml:"live_reload"`
	Title      string `mapstructure:"title" yaml:"title"`
}

type ServerConfig struct {
	Host           string   `mapstructure:"host" yaml:"host"`
	Port           int      `mapstructure:"port" yaml:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
}

type CacheConfig struct {
	Backend   string        `mapstructure:"backend" yaml:"backend"`
	Size      int           `mapstructure:"size" yaml:"size"`
	TTL       time.Duration `mapstructure:"ttl" yaml:"ttl"`
	RedisAddr string        `mapstructure:"redis_addr" yaml:"redis_addr"`
	Prefix    string        `mapstructure:"prefix" yaml:"prefix"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// Load reads configuration from the global viper instance.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom reads configuration from v, applies defaults and validates.
func LoadFrom(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	// Booleans default to true, so the zero value can't tell "unset" from
	// "false".
	if !v.IsSet("templates.cache") {
		config.Templates.Cache = true
	}
	if !v.IsSet("render.live_reload") {
		config.Render.LiveReload = true
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Default returns a configuration with every default applied.
func Default() *Config {
	config := &Config{
		Templates: TemplatesConfig{Cache: true},
		Render:    RenderConfig{LiveReload: true},
	}
	config.applyDefaults()
	return config
}

func (c *Config) applyDefaults() {
	if c.Modules.Dir == "" && len(c.Modules.Declared) == 0 {
		c.Modules.Dir = DefaultModulesDir
	}

	if c.Layout.Area == "" {
		c.Layout.Area = DefaultArea
	}
	if len(c.Layout.DefaultHandles) == 0 {
		c.Layout.DefaultHandles = []string{"default"}
	}
	if c.Layout.MaxUpdateDepth == 0 {
		c.Layout.MaxUpdateDepth = DefaultMaxUpdateDepth
	}

	if c.Render.Title == "" {
		c.Render.Title = DefaultTitle
	}

	if c.Server.Host == "" {
		c.Server.Host = DefaultHost
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}

	if c.Cache.Backend == "" {
		c.Cache.Backend = DefaultCacheBackend
	}
	if c.Cache.Size == 0 {
		c.Cache.Size = DefaultCacheSize
	}
	if c.Cache.TTL == 0 {
		c.Cache.TTL = DefaultCacheTTL
	}
	if c.Cache.Prefix == "" {
		c.Cache.Prefix = DefaultCachePrefix
	}

	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}
}

// Address returns the host:port the server listens on.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
