//go:build property
// +build property

package config

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestConfigurationProperties tests configuration validation properties
func TestConfigurationProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("ports in range validate", prop.ForAll(
		func(port int) bool {
			c := Default()
			c.Server.Port = port
			return !hasFieldError(c, "server.port")
		},
		gen.IntRange(0, 65535),
	))

	properties.Property("ports out of range fail", prop.ForAll(
		func(port int) bool {
			c := Default()
			c.Server.Port = port
			return hasFieldError(c, "server.port")
		},
		gen.OneGenOf(gen.IntRange(-100000, -1), gen.IntRange(65536, 1000000)),
	))

	properties.Property("applying defaults twice changes nothing", prop.ForAll(
		func(area string, depth int) bool {
			c := &Config{Layout: LayoutConfig{Area: area, MaxUpdateDepth: depth}}
			c.applyDefaults()
			once := fmt.Sprintf("%+v", *c)
			c.applyDefaults()
			return once == fmt.Sprintf("%+v", *c)
		},
		gen.AlphaString(),
		gen.IntRange(0, 64),
	))

	properties.TestingRun(t)
}

func hasFieldError(c *Config, field string) bool {
	for _, e := range ValidateConfigWithDetails(c).Errors {
		if e.Field == field {
			return true
		}
	}
	return false
}
