package pipeline

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/afero"

	"github.com/conneroisu/stratum/internal/cache"
	"github.com/conneroisu/stratum/internal/config"
	"github.com/conneroisu/stratum/internal/logging"
	"github.com/conneroisu/stratum/internal/modules"
	"github.com/conneroisu/stratum/internal/monitoring"
)

// NewRegistry registers the modules declared in cfg, then those discovered
// under cfg.Modules.Dir. A missing modules directory is not an error.
func NewRegistry(fs afero.Fs, cfg *config.Config) (*modules.Registry, error) {
	reg := modules.NewRegistry()
	for _, entry := range cfg.Modules.Declared {
		if err := reg.Register(entry.Module()); err != nil {
			return nil, err
		}
	}

	if cfg.Modules.Dir == "" {
		return reg, nil
	}
	if ok, _ := afero.DirExists(fs, cfg.Modules.Dir); !ok {
		return reg, nil
	}
	if _, err := modules.Discover(fs, cfg.Modules.Dir, reg); err != nil {
		return nil, err
	}
	return reg, nil
}

// FromConfig builds a pipeline, its module registry and its output cache
// from cfg. metrics may be nil.
func FromConfig(ctx context.Context, fs afero.Fs, cfg *config.Config, logger logging.Logger, metrics *monitoring.Metrics) (*Pipeline, error) {
	reg, err := NewRegistry(fs, cfg)
	if err != nil {
		return nil, fmt.Errorf("registering modules: %w", err)
	}

	c, err := cache.New(ctx, cache.Config{
		Backend:   cfg.Cache.Backend,
		Size:      cfg.Cache.Size,
		TTL:       cfg.Cache.TTL,
		RedisAddr: cfg.Cache.RedisAddr,
		Prefix:    cfg.Cache.Prefix,
	})
	if err != nil {
		return nil, fmt.Errorf("creating output cache: %w", err)
	}

	return New(fs, reg, Options{
		Area:           cfg.Layout.Area,
		SearchDirs:     cfg.Layout.SearchDirs,
		MaxUpdateDepth: cfg.Layout.MaxUpdateDepth,
		TemplateCache:  cfg.Templates.Cache,
		DefaultHandles: cfg.Layout.DefaultHandles,
		Title:          cfg.Render.Title,
		LiveReload:     cfg.Render.LiveReload,
		Cache:          c,
		CacheTTL:       cfg.Cache.TTL,
		Metrics:        metrics,
		Logger:         logger,
	}), nil
}

// NewLogger creates the process logger described by cfg.
func NewLogger(cfg *config.Config) (logging.Logger, error) {
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	return logging.NewLogger(&logging.LoggerConfig{
		Level:  level,
		Format: cfg.Log.Format,
		Output: os.Stderr,
	}), nil
}
