package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/conneroisu/stratum/internal/errors"
	"github.com/conneroisu/stratum/internal/logging"
)

// ValidationError represents a configuration validation error with suggestions
type ValidationError struct {
	Field       string
	Value       interface{}
	Message     string
	Suggestions []string
}

func (ve *ValidationError) Error() string {
	return fmt.Sprintf("validation error in %s: %s", ve.Field, ve.Message)
}

// ValidationResult holds the result of configuration validation
type ValidationResult struct {
	Valid    bool
	Errors   []ValidationError
	Warnings []ValidationError
}

// HasErrors returns true if there are any validation errors
func (vr *ValidationResult) HasErrors() bool {
	return len(vr.Errors) > 0
}

// HasWarnings returns true if there are any validation warnings
func (vr *ValidationResult) HasWarnings() bool {
	return len(vr.Warnings) > 0
}

// String returns a formatted string of all validation issues
func (vr *ValidationResult) String() string {
	var builder strings.Builder

	if len(vr.Errors) > 0 {
		builder.WriteString("❌ Validation Errors:\n")
		for _, err := range vr.Errors {
			builder.WriteString(fmt.Sprintf("  • %s: %s\n", err.Field, err.Message))
			for _, suggestion := range err.Suggestions {
				builder.WriteString(fmt.Sprintf("    💡 %s\n", suggestion))
			}
		}
		builder.WriteString("\n")
	}

	if len(vr.Warnings) > 0 {
		builder.WriteString("⚠️  Validation Warnings:\n")
		for _, warning := range vr.Warnings {
			builder.WriteString(fmt.Sprintf("  • %s: %s\n", warning.Field, warning.Message))
			for _, suggestion := range warning.Suggestions {
				builder.WriteString(fmt.Sprintf("    💡 %s\n", suggestion))
			}
		}
	}

	return builder.String()
}

func (vr *ValidationResult) fail(field string, value interface{}, msg string, suggestions ...string) {
	vr.Errors = append(vr.Errors, ValidationError{Field: field, Value: value, Message: msg, Suggestions: suggestions})
}

func (vr *ValidationResult) warn(field string, value interface{}, msg string, suggestions ...string) {
	vr.Warnings = append(vr.Warnings, ValidationError{Field: field, Value: value, Message: msg, Suggestions: suggestions})
}

// Validate returns the first validation error, wrapped as a config error.
func (c *Config) Validate() error {
	result := ValidateConfigWithDetails(c)
	if !result.HasErrors() {
		return nil
	}
	first := result.Errors[0]
	return errors.ErrConfigInvalid(first.Field + ": " + first.Message)
}

// ValidateConfigWithDetails performs comprehensive validation with detailed feedback
func ValidateConfigWithDetails(config *Config) *ValidationResult {
	result := &ValidationResult{
		Valid:    true,
		Errors:   []ValidationError{},
		Warnings: []ValidationError{},
	}

	validateModulesConfig(&config.Modules, result)
	validateLayoutConfig(&config.Layout, result)
	validateServerConfig(&config.Server, result)
	validateCacheConfig(&config.Cache, result)
	validateLogConfig(&config.Log, result)

	result.Valid = !result.HasErrors()

	return result
}

func validateModulesConfig(config *ModulesConfig, result *ValidationResult) {
	if config.Dir != "" {
		if err := validatePath(config.Dir); err != nil {
			result.fail("modules.dir", config.Dir, err.Error())
		}
	}

	seen := make(map[string]bool, len(config.Declared))
	for i, m := range config.Declared {
		field := fmt.Sprintf("modules.declared[%d]", i)
		if m.Name == "" {
			result.fail(field+".name", m.Name, "module name is required",
				"Use the Vendor_Module form, e.g. Acme_Catalog")
			continue
		}
		if seen[m.Name] {
			result.fail(field+".name", m.Name, fmt.Sprintf("module %q is declared twice", m.Name))
		}
		seen[m.Name] = true
		if m.Path == "" {
			result.fail(field+".path", m.Path, fmt.Sprintf("module %q has no path", m.Name))
		}
	}
}

func validateLayoutConfig(config *LayoutConfig, result *ValidationResult) {
	if strings.TrimSpace(config.Area) == "" {
		result.fail("layout.area", config.Area, "area cannot be empty",
			"Use frontend or adminhtml")
	} else if strings.ContainsAny(config.Area, `/\`) || strings.Contains(config.Area, "..") {
		result.fail("layout.area", config.Area, "area must be a single path segment")
	}

	for _, dir := range config.SearchDirs {
		if err := validatePath(dir); err != nil {
			result.fail("layout.search_dirs", dir, err.Error())
		}
	}

	if config.MaxUpdateDepth < 0 {
		result.fail("layout.max_update_depth", config.MaxUpdateDepth, "depth cannot be negative")
	} else if config.MaxUpdateDepth > 256 {
		result.warn("layout.max_update_depth", config.MaxUpdateDepth,
			"very deep update chains usually indicate a cycle",
			"Values between 16 and 64 are typical")
	}
}

func validateServerConfig(config *ServerConfig, result *ValidationResult) {
	if config.Port < 0 || config.Port > 65535 {
		result.fail("server.port", config.Port,
			fmt.Sprintf("port %d is not in valid range 0-65535", config.Port),
			"Use a port between 1024-65535 for non-privileged access",
			"Port 0 allows system to assign an available port",
		)
	} else if config.Port > 0 && config.Port < 1024 {
		result.warn("server.port", config.Port, "port below 1024 requires elevated privileges")
	}

	if config.Host != "" {
		dangerousChars := []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\"", "'", "\\"}
		for _, char := range dangerousChars {
			if strings.Contains(config.Host, char) {
				result.fail("server.host", config.Host, "host contains dangerous character: "+char)
				break
			}
		}
	}

	for _, origin := range config.AllowedOrigins {
		if origin == "*" {
			result.warn("server.allowed_origins", origin, "wildcard origin accepts live-reload connections from any site")
		}
	}
}

func validateCacheConfig(config *CacheConfig, result *ValidationResult) {
	switch config.Backend {
	case "none", "memory":
	case "redis":
		if config.RedisAddr == "" {
			result.fail("cache.redis_addr", config.RedisAddr, "redis backend requires an address",
				"Set cache.redis_addr, e.g. localhost:6379")
		}
	default:
		result.fail("cache.backend", config.Backend,
			fmt.Sprintf("unknown cache backend %q", config.Backend),
			"Valid backends: none, memory, redis")
	}

	if config.Size < 0 {
		result.fail("cache.size", config.Size, "size cannot be negative")
	}
	if config.TTL < 0 {
		result.fail("cache.ttl", config.TTL, "ttl cannot be negative")
	}
}

func validateLogConfig(config *LogConfig, result *ValidationResult) {
	if _, err := logging.ParseLevel(config.Level); err != nil {
		result.fail("log.level", config.Level, err.Error(),
			"Valid levels: debug, info, warn, error")
	}
	switch config.Format {
	case "text", "json":
	default:
		result.fail("log.format", config.Format,
			fmt.Sprintf("unknown log format %q", config.Format),
			"Valid formats: text, json")
	}
}

// validatePath validates a file path for security
func validatePath(path string) error {
	if path == "" {
		return fmt.Errorf("empty path")
	}

	cleanPath := filepath.Clean(path)

	if strings.Contains(cleanPath, "..") {
		return fmt.Errorf("path contains traversal: %s", path)
	}

	dangerousChars := []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\"", "'"}
	for _, char := range dangerousChars {
		if strings.Contains(cleanPath, char) {
			return fmt.Errorf("path contains dangerous character: %s", char)
		}
	}

	return nil
}
