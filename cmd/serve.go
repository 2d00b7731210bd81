package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/conneroisu/stratum/internal/config"
	"github.com/conneroisu/stratum/internal/logging"
	"github.com/conneroisu/stratum/internal/modules"
	"github.com/conneroisu/stratum/internal/monitoring"
	"github.com/conneroisu/stratum/internal/server"
	"github.com/conneroisu/stratum/internal/watcher"
)

const watchDebounce = 300 * time.Millisecond

func newServeCmd(a *app) *cobra.Command {
	var (
		flags   *StandardFlags
		noWatch bool
	)

	cmd := &cobra.Command{
		Use:     "serve",
		Aliases: []string{"s"},
		Short:   "Start the development server with live reload",
		Long: `Serve rendered pages over HTTP. Changes to layout files, templates and module
manifests drop cached templates and output and reload connected browsers.

Routes:
  GET /page/{handle}[?with=h1,h2]       full page (default handles prepended)
  GET /page/{handle}/block/{name}       one block and its descendants
  GET /layout/{handle}[?format=json]    resolved layout XML or explanation
  GET /health, /metrics, /ws

Examples:
  stratum serve
  stratum serve --port 3000 --no-watch`,
		Args: cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("port") {
				a.v.Set("server.port", flags.Port)
			}
			if cmd.Flags().Changed("host") {
				a.v.Set("server.host", flags.Host)
			}
			return flags.ValidateFlags()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			metrics := monitoring.NewMetrics()
			cfg, p, logger, err := a.setup(ctx, metrics)
			if err != nil {
				return err
			}
			defer p.Close()

			srv := server.New(cfg, p, logger, metrics)

			if !noWatch {
				mods, err := p.Modules()
				if err != nil {
					return err
				}
				fw, err := startWatcher(ctx, a.fs, cfg, mods, srv, logger, metrics)
				if err != nil {
					return err
				}
				defer fw.Stop()
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Starting Stratum server at http://%s\n", cfg.Address())
			if err := srv.Start(ctx); err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			return nil
		},
	}

	flags = AddStandardFlags(cmd, "server")
	cmd.Flags().BoolVar(&noWatch, "no-watch", false, "do not watch module files for changes")
	return cmd
}

func startWatcher(ctx context.Context, fs afero.Fs, cfg *config.Config, mods []modules.Module, srv *server.Server, logger logging.Logger, metrics *monitoring.Metrics) (*watcher.FileWatcher, error) {
	fw, err := watcher.NewFileWatcher(watchDebounce, logger, metrics)
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}
	fw.AddFilter(watcher.ModuleFileFilter)
	fw.AddFilter(watcher.NoHiddenFilter)
	fw.AddFilter(watcher.NoGitFilter)
	fw.AddHandler(srv.HandleChanges)

	for _, dir := range watchDirs(fs, cfg, mods) {
		if err := fw.AddRecursive(dir); err != nil {
			_ = fw.Stop()
			return nil, fmt.Errorf("watching %s: %w", dir, err)
		}
	}
	if err := fw.Start(ctx); err != nil {
		_ = fw.Stop()
		return nil, err
	}
	return fw, nil
}

// watchDirs returns the existing module roots to watch. Roots nested in
// the modules directory are covered by watching that directory.
func watchDirs(fs afero.Fs, cfg *config.Config, mods []modules.Module) []string {
	seen := make(map[string]bool)
	var dirs []string
	add := func(dir string) {
		if dir == "" || seen[dir] {
			return
		}
		if ok, _ := afero.DirExists(fs, dir); !ok {
			return
		}
		seen[dir] = true
		dirs = append(dirs, dir)
	}

	add(cfg.Modules.Dir)
	for _, m := range mods {
		if cfg.Modules.Dir != "" && isWithin(cfg.Modules.Dir, m.BasePath) {
			continue
		}
		add(m.BasePath)
	}
	sort.Strings(dirs)
	return dirs
}

func isWithin(parent, path string) bool {
	rel, err := filepath.Rel(filepath.Clean(parent), filepath.Clean(path))
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
