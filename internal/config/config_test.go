package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/stratum/internal/errors"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name        string
		setup       func(v *viper.Viper)
		expectError bool
		check       func(t *testing.T, c *Config)
	}{
		{
			name:  "defaults",
			setup: func(v *viper.Viper) {},
			check: func(t *testing.T, c *Config) {
				assert.Equal(t, DefaultModulesDir, c.Modules.Dir)
				assert.Equal(t, DefaultArea, c.Layout.Area)
				assert.Equal(t, []string{"default"}, c.Layout.DefaultHandles)
				assert.Equal(t, DefaultMaxUpdateDepth, c.Layout.MaxUpdateDepth)
				assert.True(t, c.Templates.Cache)
				assert.True(t, c.Render.LiveReload)
				assert.Equal(t, "localhost:8080", c.Address())
				assert.Equal(t, "none", c.Cache.Backend)
				assert.Equal(t, DefaultCacheTTL, c.Cache.TTL)
				assert.Equal(t, "info", c.Log.Level)
			},
		},
		{
			name: "explicit values",
			setup: func(v *viper.Viper) {
				v.Set("layout.area", "adminhtml")
				v.Set("layout.max_update_depth", 8)
				v.Set("templates.cache", false)
				v.Set("render.live_reload", false)
				v.Set("server.port", 3000)
				v.Set("cache.backend", "memory")
				v.Set("cache.ttl", "30s")
				v.Set("log.format", "json")
			},
			check: func(t *testing.T, c *Config) {
				assert.Equal(t, "adminhtml", c.Layout.Area)
				assert.Equal(t, 8, c.Layout.MaxUpdateDepth)
				assert.False(t, c.Templates.Cache)
				assert.False(t, c.Render.LiveReload)
				assert.Equal(t, 3000, c.Server.Port)
				assert.Equal(t, "memory", c.Cache.Backend)
				assert.Equal(t, 30*time.Second, c.Cache.TTL)
				assert.Equal(t, "json", c.Log.Format)
			},
		},
		{
			name: "declared modules skip the default directory",
			setup: func(v *viper.Viper) {
				v.Set("modules.declared", []map[string]interface{}{
					{"name": "Acme_Base", "path": "mods/base"},
					{"name": "Acme_Catalog", "path": "mods/catalog", "sequence": []string{"Acme_Base"}, "disabled": true},
				})
			},
			check: func(t *testing.T, c *Config) {
				assert.Empty(t, c.Modules.Dir)
				require.Len(t, c.Modules.Declared, 2)
				m := c.Modules.Declared[1].Module()
				assert.Equal(t, "Acme_Catalog", m.Name)
				assert.Equal(t, "mods/catalog", m.BasePath)
				assert.Equal(t, []string{"Acme_Base"}, m.Sequence)
				assert.False(t, m.Enabled)
				assert.True(t, c.Modules.Declared[0].Module().Enabled)
			},
		},
		{
			name:        "invalid port type",
			setup:       func(v *viper.Viper) { v.Set("server.port", "invalid_port") },
			expectError: true,
		},
		{
			name:        "unknown cache backend",
			setup:       func(v *viper.Viper) { v.Set("cache.backend", "memcached") },
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := viper.New()
			tt.setup(v)

			config, err := LoadFrom(v)

			if tt.expectError {
				assert.Error(t, err)
				assert.Nil(t, config)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, config)
			tt.check(t, config)
		})
	}
}

func TestLoadUsesGlobalViper(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	viper.Set("layout.area", "adminhtml")

	config, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "adminhtml", config.Layout.Area)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		field  string
	}{
		{"bad port", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
		{"dangerous host", func(c *Config) { c.Server.Host = "localhost;rm" }, "server.host"},
		{"empty area", func(c *Config) { c.Layout.Area = " " }, "layout.area"},
		{"area with separator", func(c *Config) { c.Layout.Area = "front/end" }, "layout.area"},
		{"traversal in modules dir", func(c *Config) { c.Modules.Dir = "../elsewhere" }, "modules.dir"},
		{"negative depth", func(c *Config) { c.Layout.MaxUpdateDepth = -1 }, "layout.max_update_depth"},
		{"redis without address", func(c *Config) { c.Cache.Backend = "redis" }, "cache.redis_addr"},
		{"unknown log level", func(c *Config) { c.Log.Level = "verbose" }, "log.level"},
		{"unknown log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
		{"unnamed module", func(c *Config) { c.Modules.Declared = []ModuleEntry{{Path: "x"}} }, "modules.declared[0].name"},
		{"duplicate module", func(c *Config) {
			c.Modules.Declared = []ModuleEntry{{Name: "A", Path: "a"}, {Name: "A", Path: "b"}}
		}, "modules.declared[1].name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(c)

			result := ValidateConfigWithDetails(c)
			require.True(t, result.HasErrors())
			assert.False(t, result.Valid)
			assert.Equal(t, tt.field, result.Errors[0].Field)

			err := c.Validate()
			require.Error(t, err)
			assert.Equal(t, errors.ErrCodeConfigInvalid, errors.Code(err))
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestValidateWarnings(t *testing.T) {
	c := Default()
	c.Server.Port = 80
	c.Server.AllowedOrigins = []string{"*"}

	result := ValidateConfigWithDetails(c)
	assert.False(t, result.HasErrors())
	assert.True(t, result.HasWarnings())
	assert.Len(t, result.Warnings, 2)
	assert.Contains(t, result.String(), "server.port")
	assert.NoError(t, c.Validate())
}

func TestDefaultIsValid(t *testing.T) {
	assert.NoError(t, Default().Validate())
}
