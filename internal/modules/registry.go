// Package modules keeps the set of registered modules and orders them by
// their declared dependencies.
//
// Ordering is a stable topological sort: among modules whose dependencies
// are all placed, the one declared first goes next. That order is the base
// precedence for layout merging, so it must never depend on map iteration.
package modules

import (
	"sort"
	"sync"

	"github.com/conneroisu/stratum/internal/errors"
)

// Module is one registered module.
type Module struct {
	// Name is the module identifier, e.g. "Acme_Catalog".
	Name string `yaml:"name" json:"name"`
	// BasePath is the module root that layout and template directories are
	// resolved against.
	BasePath string `yaml:"path" json:"path"`
	// Sequence lists modules that must be loaded before this one.
	Sequence []string `yaml:"sequence" json:"sequence,omitempty"`
	// Enabled is false for modules that are registered but skipped.
	Enabled bool `yaml:"enabled" json:"enabled"`
}

// Registry manages registered modules
type Registry struct {
	modules map[string]*entry
	mutex   sync.RWMutex
	seq     int
}

type entry struct {
	module Module
	order  int
}

// NewRegistry creates an empty module registry
func NewRegistry() *Registry {
	return &Registry{
		modules: make(map[string]*entry),
	}
}

// Register adds a module. Registering a name twice is an error; the first
// declaration is kept.
func (r *Registry) Register(m Module) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.modules[m.Name]; exists {
		return errors.ErrDuplicateModule(m.Name)
	}
	m.Sequence = append([]string(nil), m.Sequence...)
	r.modules[m.Name] = &entry{module: m, order: r.seq}
	r.seq++
	return nil
}

// Get retrieves a module by name
func (r *Registry) Get(name string) (Module, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	e, ok := r.modules[name]
	if !ok {
		return Module{}, false
	}
	return e.module, true
}

// Count returns the number of registered modules
func (r *Registry) Count() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return len(r.modules)
}

// Declared returns modules in declaration order.
func (r *Registry) Declared() []Module {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return r.declaredLocked()
}

func (r *Registry) declaredLocked() []Module {
	entries := make([]*entry, 0, len(r.modules))
	for _, e := range r.modules {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].order < entries[j].order })

	out := make([]Module, len(entries))
	for i, e := range entries {
		out[i] = e.module
	}
	return out
}

// Ordered returns enabled modules in dependency order. Ties are broken by
// declaration order. A dependency on a module that is not registered, or a
// dependency cycle, is an error. Dependencies on disabled modules are
// ignored.
func (r *Registry) Ordered() ([]Module, error) {
	r.mutex.RLock()
	declared := r.declaredLocked()
	r.mutex.RUnlock()

	enabled := make(map[string]bool, len(declared))
	known := make(map[string]bool, len(declared))
	for _, m := range declared {
		known[m.Name] = true
		enabled[m.Name] = m.Enabled
	}

	pending := make(map[string]int)
	dependents := make(map[string][]string)
	var active []Module
	for _, m := range declared {
		if !m.Enabled {
			continue
		}
		active = append(active, m)
		for _, dep := range m.Sequence {
			if !known[dep] {
				return nil, errors.ErrUnknownDependency(m.Name, dep)
			}
			if !enabled[dep] {
				continue
			}
			pending[m.Name]++
			dependents[dep] = append(dependents[dep], m.Name)
		}
	}

	placed := make(map[string]bool, len(active))
	out := make([]Module, 0, len(active))
	for len(out) < len(active) {
		next := -1
		for i, m := range active {
			if !placed[m.Name] && pending[m.Name] == 0 {
				next = i
				break
			}
		}
		if next < 0 {
			return nil, errors.ErrModuleCycle(r.findCycle(active))
		}

		m := active[next]
		placed[m.Name] = true
		out = append(out, m)
		for _, d := range dependents[m.Name] {
			pending[d]--
		}
	}

	return out, nil
}

// findCycle returns one dependency cycle among active modules, first module
// repeated at the end.
func (r *Registry) findCycle(active []Module) []string {
	graph := make(map[string][]string, len(active))
	for _, m := range active {
		graph[m.Name] = m.Sequence
	}

	visited := make(map[string]bool)
	recStack := make(map[string]bool)
	for _, m := range active {
		if visited[m.Name] {
			continue
		}
		if cycle := detectCycleDFS(m.Name, graph, visited, recStack, nil); cycle != nil {
			return cycle
		}
	}
	return nil
}

func detectCycleDFS(name string, graph map[string][]string, visited, recStack map[string]bool, path []string) []string {
	visited[name] = true
	recStack[name] = true
	path = append(path, name)

	for _, dep := range graph[name] {
		if _, ok := graph[dep]; !ok {
			continue
		}
		if !visited[dep] {
			if cycle := detectCycleDFS(dep, graph, visited, recStack, path); cycle != nil {
				return cycle
			}
		} else if recStack[dep] {
			for i, p := range path {
				if p == dep {
					cycle := append([]string(nil), path[i:]...)
					return append(cycle, dep)
				}
			}
		}
	}

	recStack[name] = false
	return nil
}
