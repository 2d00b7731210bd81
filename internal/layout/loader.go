package layout

import (
	"context"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/spf13/afero"

	"github.com/conneroisu/stratum/internal/errors"
	"github.com/conneroisu/stratum/internal/logging"
	"github.com/conneroisu/stratum/internal/modules"
)

// DefaultArea is the view area probed when none is configured.
const DefaultArea = "frontend"

// DefaultSearchDirs are the per-module directories probed for layout files,
// in priority order. {area} is replaced with the configured area.
var DefaultSearchDirs = []string{
	"view/{area}/layout",
	"view/base/layout",
	"etc/layout",
}

// ModuleSource supplies modules in dependency order.
type ModuleSource interface {
	Ordered() ([]modules.Module, error)
}

// Source is one parsed layout file.
type Source struct {
	Module string
	Path   string
	Tree   *Tree
}

// LoaderConfig controls where the loader looks for layout files.
type LoaderConfig struct {
	Area       string
	SearchDirs []string
}

// Loader finds and parses <handle>.xml in every module.
type Loader struct {
	fs          afero.Fs
	modules     ModuleSource
	config      LoaderConfig
	logger      logging.Logger
	diagnostics *errors.Collector

	mu       sync.Mutex
	reported map[string]bool
}

// NewLoader creates a loader over fs. A nil logger discards output.
func NewLoader(fs afero.Fs, mods ModuleSource, config LoaderConfig, logger logging.Logger) *Loader {
	if config.Area == "" {
		config.Area = DefaultArea
	}
	if len(config.SearchDirs) == 0 {
		config.SearchDirs = DefaultSearchDirs
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Loader{
		fs:          fs,
		modules:     mods,
		config:      config,
		logger:      logger.WithComponent("loader"),
		diagnostics: errors.NewCollector(),
		reported:    make(map[string]bool),
	}
}

// Diagnostics returns the collector holding problems found while loading.
// A malformed file is recorded once until Reset.
func (l *Loader) Diagnostics() *errors.Collector {
	return l.diagnostics
}

// Reset forgets recorded diagnostics so changed files are reported again.
func (l *Loader) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reported = make(map[string]bool)
	l.diagnostics.Clear()
}

// reportOnce records d unless path already has a diagnostic.
func (l *Loader) reportOnce(path string, d errors.Diagnostic) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.reported[path] {
		return
	}
	l.reported[path] = true
	l.diagnostics.Add(d)
}

// Candidates returns the directories probed for m, in priority order.
func (l *Loader) Candidates(m modules.Module) []string {
	dirs := make([]string, 0, len(l.config.SearchDirs))
	for _, d := range l.config.SearchDirs {
		d = strings.ReplaceAll(d, "{area}", l.config.Area)
		dirs = append(dirs, filepath.Join(m.BasePath, filepath.FromSlash(d)))
	}
	return dirs
}

// ValidHandle reports whether handle can be used as a layout file name.
func ValidHandle(handle string) bool {
	if handle == "" || handle == "." || handle == ".." {
		return false
	}
	if strings.ContainsAny(handle, `/\`) || strings.Contains(handle, "..") {
		return false
	}
	return !strings.ContainsRune(handle, 0)
}

// Load returns the parsed <handle>.xml of every module that defines it, in
// module order. A module contributes the first file found among its
// candidate directories. Unknown handles yield an empty list. Files that
// fail to parse are skipped with a warning and a diagnostic. Unsafe
// handles are only logged.
func (l *Loader) Load(ctx context.Context, handle string) ([]Source, error) {
	if !ValidHandle(handle) {
		err := errors.ErrUnsafeHandle(handle)
		l.logger.Warn(ctx, err, "Skipping unsafe layout handle", "handle", handle)
		return nil, nil
	}

	mods, err := l.modules.Ordered()
	if err != nil {
		return nil, err
	}

	var sources []Source
	for _, m := range mods {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		path, ok := l.find(m, handle)
		if !ok {
			continue
		}
		tree, err := l.parseFile(path)
		if err != nil {
			e := errors.ErrMalformedLayout(path, err).WithModule(m.Name).WithHandle(handle)
			if line := lineOf(err); line > 0 {
				e.Line = line
			}
			l.logger.Warn(ctx, err, "Skipping malformed layout file",
				"module", m.Name, "handle", handle, "path", path)
			l.reportOnce(path, errors.FromError(errors.SeverityWarning, e))
			continue
		}
		l.logger.Debug(ctx, "Loaded layout file", "module", m.Name, "handle", handle, "path", path)
		sources = append(sources, Source{Module: m.Name, Path: path, Tree: tree})
	}
	return sources, nil
}

// Trees returns the trees of Load's sources.
func (l *Loader) Trees(ctx context.Context, handle string) ([]*Tree, error) {
	sources, err := l.Load(ctx, handle)
	if err != nil {
		return nil, err
	}
	trees := make([]*Tree, len(sources))
	for i, s := range sources {
		trees[i] = s.Tree
	}
	return trees, nil
}

// LoadAll parses every layout file of every module and records each parse
// failure in diags as an error. It returns the number of files checked.
func (l *Loader) LoadAll(ctx context.Context, diags *errors.Collector) (int, error) {
	mods, err := l.modules.Ordered()
	if err != nil {
		return 0, err
	}

	checked := 0
	for _, m := range mods {
		for _, dir := range l.Candidates(m) {
			files, err := afero.Glob(l.fs, filepath.Join(dir, "*.xml"))
			if err != nil {
				return checked, errors.WrapIO(err, dir, "listing layout files")
			}
			for _, path := range files {
				if err := ctx.Err(); err != nil {
					return checked, err
				}
				checked++
				if _, err := l.parseFile(path); err != nil {
					e := errors.ErrMalformedLayout(path, err).WithModule(m.Name).
						WithHandle(strings.TrimSuffix(filepath.Base(path), ".xml"))
					if line := lineOf(err); line > 0 {
						e.Line = line
					}
					diags.AddError(errors.SeverityError, e)
				}
			}
		}
	}
	return checked, nil
}

// Handles lists every handle defined by at least one module, sorted.
func (l *Loader) Handles() ([]string, error) {
	mods, err := l.modules.Ordered()
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var out []string
	for _, m := range mods {
		for _, dir := range l.Candidates(m) {
			files, err := afero.Glob(l.fs, filepath.Join(dir, "*.xml"))
			if err != nil {
				return nil, errors.WrapIO(err, dir, "listing layout files")
			}
			for _, f := range files {
				h := strings.TrimSuffix(filepath.Base(f), ".xml")
				if !seen[h] {
					seen[h] = true
					out = append(out, h)
				}
			}
		}
	}
	sort.Strings(out)
	return out, nil
}

func (l *Loader) find(m modules.Module, handle string) (string, bool) {
	for _, dir := range l.Candidates(m) {
		path := filepath.Join(dir, handle+".xml")
		if ok, _ := afero.Exists(l.fs, path); ok {
			return path, true
		}
	}
	return "", false
}

func (l *Loader) parseFile(path string) (*Tree, error) {
	f, err := l.fs.Open(path)
	if err != nil {
		return nil, errors.WrapIO(err, path, "opening layout file")
	}
	defer f.Close()
	return Parse(f)
}

func lineOf(err error) int {
	var e *errors.Error
	if errors.As(err, &e) {
		return e.Line
	}
	return 0
}
