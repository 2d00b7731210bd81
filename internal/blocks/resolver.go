package blocks

import (
	"html/template"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/afero"

	"github.com/conneroisu/stratum/internal/errors"
	"github.com/conneroisu/stratum/internal/modules"
)

// ModuleSource supplies modules in dependency order.
type ModuleSource interface {
	Ordered() ([]modules.Module, error)
}

// TemplateResolver maps template identifiers to files.
//
// "Vendor_Module::dir/file.phtml" is looked up in that module only; a bare
// "dir/file.phtml" is looked up in every module, last module first, so a
// later module overrides an earlier one. Within a module the area directory
// is tried before view/base. Found paths and parsed templates are memoized
// until Reset.
type TemplateResolver struct {
	fs      afero.Fs
	modules ModuleSource
	area    string
	enabled bool

	mu     sync.RWMutex
	paths  map[string]string
	parsed map[string]*template.Template
}

// NewTemplateResolver creates a resolver for area. When cache is false every
// call goes to the filesystem.
func NewTemplateResolver(fs afero.Fs, mods ModuleSource, area string, cache bool) *TemplateResolver {
	if area == "" {
		area = "frontend"
	}
	return &TemplateResolver{
		fs:      fs,
		modules: mods,
		area:    area,
		enabled: cache,
		paths:   make(map[string]string),
		parsed:  make(map[string]*template.Template),
	}
}

// Resolve returns the file backing id.
func (r *TemplateResolver) Resolve(id string) (string, error) {
	if r.enabled {
		r.mu.RLock()
		p, ok := r.paths[id]
		r.mu.RUnlock()
		if ok {
			return p, nil
		}
	}

	module, rel := SplitTemplateID(id)
	if !safeRelative(rel) {
		return "", errors.New(errors.ErrorTypeTemplate, errors.ErrCodeTemplateInvalid,
			"template id "+id+" is not a relative path")
	}

	mods, err := r.modules.Ordered()
	if err != nil {
		return "", err
	}

	for i := len(mods) - 1; i >= 0; i-- {
		m := mods[i]
		if module != "" && m.Name != module {
			continue
		}
		for _, dir := range r.dirs(m) {
			candidate := filepath.Join(dir, filepath.FromSlash(rel))
			if ok, _ := afero.Exists(r.fs, candidate); ok {
				if r.enabled {
					r.mu.Lock()
					r.paths[id] = candidate
					r.mu.Unlock()
				}
				return candidate, nil
			}
		}
	}

	return "", errors.ErrTemplateNotFound(id)
}

// Parse resolves id and returns the parsed template. funcs declares the
// function names the template may call; callers bind real implementations
// on a clone before executing.
func (r *TemplateResolver) Parse(id string, funcs template.FuncMap) (*template.Template, error) {
	p, err := r.Resolve(id)
	if err != nil {
		return nil, err
	}

	if r.enabled {
		r.mu.RLock()
		t, ok := r.parsed[p]
		r.mu.RUnlock()
		if ok {
			return t, nil
		}
	}

	src, err := afero.ReadFile(r.fs, p)
	if err != nil {
		return nil, errors.WrapIO(err, p, "reading template")
	}
	t, err := template.New(path.Base(filepath.ToSlash(p))).Funcs(funcs).Parse(string(src))
	if err != nil {
		return nil, errors.WrapTemplate(err, id).WithLocation(p, 0)
	}

	if r.enabled {
		r.mu.Lock()
		r.parsed[p] = t
		r.mu.Unlock()
	}
	return t, nil
}

// Reset drops every memoized path and template.
func (r *TemplateResolver) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.paths = make(map[string]string)
	r.parsed = make(map[string]*template.Template)
}

// Cached returns the number of memoized paths.
func (r *TemplateResolver) Cached() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.paths)
}

func (r *TemplateResolver) dirs(m modules.Module) []string {
	return []string{
		filepath.Join(m.BasePath, "view", r.area, "templates"),
		filepath.Join(m.BasePath, "view", "base", "templates"),
	}
}

// SplitTemplateID splits "Module::path" into its parts. Ids without a module
// prefix return an empty module.
func SplitTemplateID(id string) (module, rel string) {
	if i := strings.Index(id, "::"); i >= 0 {
		return id[:i], id[i+2:]
	}
	return "", id
}

func safeRelative(rel string) bool {
	if rel == "" || strings.HasPrefix(rel, "/") || strings.Contains(rel, `\`) {
		return false
	}
	for _, part := range strings.Split(rel, "/") {
		if part == ".." {
			return false
		}
	}
	return true
}
