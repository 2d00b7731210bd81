package modules

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/stratum/internal/errors"
)

// ManifestName is the per-module manifest file looked up by Discover.
const ManifestName = "module.yml"

// Manifest is the on-disk module.yml document.
type Manifest struct {
	Name     string   `yaml:"name"`
	Sequence []string `yaml:"sequence"`
	Enabled  *bool    `yaml:"enabled"`
}

// ReadManifest parses a module.yml file.
func ReadManifest(fs afero.Fs, path string) (Manifest, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return Manifest{}, errors.WrapIO(err, path, "reading module manifest")
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		e := errors.Wrap(err, errors.ErrorTypeModule, errors.ErrCodeInvalidManifest, "invalid module manifest")
		return Manifest{}, e.WithLocation(path, 0)
	}
	if strings.TrimSpace(m.Name) == "" {
		e := errors.New(errors.ErrorTypeModule, errors.ErrCodeInvalidManifest, "manifest has no name")
		return Manifest{}, e.WithLocation(path, 0)
	}
	return m, nil
}

// Module converts the manifest into a Module rooted at basePath.
func (m Manifest) Module(basePath string) Module {
	enabled := true
	if m.Enabled != nil {
		enabled = *m.Enabled
	}
	return Module{
		Name:     m.Name,
		BasePath: basePath,
		Sequence: m.Sequence,
		Enabled:  enabled,
	}
}

// Discover registers every <dir>/*/module.yml found under dir, visiting
// module directories in lexical order so declaration order is stable.
// Modules already registered under the same name are reported as errors and
// skipped; discovery continues.
func Discover(fs afero.Fs, dir string, reg *Registry) ([]Module, error) {
	entries, err := afero.ReadDir(fs, dir)
	if err != nil {
		return nil, errors.WrapIO(err, dir, "reading modules directory")
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var (
		found []Module
		errs  []error
	)
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		base := filepath.Join(dir, e.Name())
		manifestPath := filepath.Join(base, ManifestName)
		if ok, _ := afero.Exists(fs, manifestPath); !ok {
			continue
		}

		manifest, err := ReadManifest(fs, manifestPath)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		m := manifest.Module(base)
		if err := reg.Register(m); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", manifestPath, err))
			continue
		}
		found = append(found, m)
	}

	return found, errors.Join(errs...)
}
