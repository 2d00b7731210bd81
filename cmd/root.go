// Package cmd provides the stratum command-line interface.
//
// Configuration is read, in increasing priority, from .stratum.yml in the
// working directory (or the file named by STRATUM_CONFIG_FILE), STRATUM_*
// environment variables such as STRATUM_SERVER_PORT, and command-line flags.
// --config replaces the config file lookup entirely.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/stratum/internal/config"
	"github.com/conneroisu/stratum/internal/logging"
	"github.com/conneroisu/stratum/internal/monitoring"
	"github.com/conneroisu/stratum/internal/pipeline"
)

// envKeys are bound explicitly so STRATUM_* variables apply even when no
// config file mentions the key.
var envKeys = []string{
	"modules.dir",
	"layout.area",
	"layout.default_handles",
	"layout.max_update_depth",
	"templates.cache",
	"render.live_reload",
	"render.title",
	"server.host",
	"server.port",
	"server.allowed_origins",
	"cache.backend",
	"cache.size",
	"cache.ttl",
	"cache.redis_addr",
	"cache.prefix",
	"log.level",
	"log.format",
}

// app carries the state shared by every command of one invocation.
type app struct {
	fs      afero.Fs
	v       *viper.Viper
	cfgFile string
}

// Execute runs the stratum CLI.
func Execute() error {
	return NewRootCommand(afero.NewOsFs()).Execute()
}

// NewRootCommand builds the command tree over fs.
func NewRootCommand(fs afero.Fs) *cobra.Command {
	a := &app{fs: fs, v: viper.New()}
	a.v.SetFs(fs)

	rootCmd := &cobra.Command{
		Use:   "stratum",
		Short: "Merge module layout XML into block trees and render them",
		Long: `Stratum loads layout XML fragments contributed by modules, merges them per
handle, applies move/remove/reference/update directives and renders the
resulting block tree to HTML.

Quick Start:
  stratum new-module Acme_Theme --template theme
  stratum modules                       List modules in load order
  stratum layout default --explain      Show the resolved layout
  stratum render default                Render a handle to stdout
  stratum serve                         Start the development server`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.initConfig(cmd)
		},
	}

	rootCmd.PersistentFlags().StringVar(&a.cfgFile, "config", "",
		"config file (default is .stratum.yml, can also use STRATUM_CONFIG_FILE env var)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("modules-dir", "", "directory scanned for <Vendor_Module>/module.yml")
	_ = a.v.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = a.v.BindPFlag("modules.dir", rootCmd.PersistentFlags().Lookup("modules-dir"))

	rootCmd.AddCommand(
		newRenderCmd(a),
		newLayoutCmd(a),
		newModulesCmd(a),
		newValidateCmd(a),
		newServeCmd(a),
		newNewModuleCmd(a),
		newVersionCmd(),
	)
	return rootCmd
}

// initConfig points viper at the config file and environment.
func (a *app) initConfig(cmd *cobra.Command) error {
	switch {
	case a.cfgFile != "":
		a.v.SetConfigFile(a.cfgFile)
	case os.Getenv("STRATUM_CONFIG_FILE") != "":
		a.v.SetConfigFile(os.Getenv("STRATUM_CONFIG_FILE"))
	default:
		a.v.AddConfigPath(".")
		a.v.SetConfigType("yaml")
		a.v.SetConfigName(".stratum")
	}

	a.v.SetEnvPrefix("STRATUM")
	a.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	a.v.AutomaticEnv()
	for _, key := range envKeys {
		_ = a.v.BindEnv(key)
	}

	if err := a.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("reading config: %w", err)
	}
	fmt.Fprintln(cmd.ErrOrStderr(), "Using config file:", a.v.ConfigFileUsed())
	return nil
}

func (a *app) loadConfig() (*config.Config, error) {
	cfg, err := config.LoadFrom(a.v)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// setup loads the configuration and builds the logger and pipeline.
func (a *app) setup(ctx context.Context, metrics *monitoring.Metrics) (*config.Config, *pipeline.Pipeline, logging.Logger, error) {
	cfg, err := a.loadConfig()
	if err != nil {
		return nil, nil, nil, err
	}
	logger, err := pipeline.NewLogger(cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	p, err := pipeline.FromConfig(ctx, a.fs, cfg, logger, metrics)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, p, logger, nil
}
