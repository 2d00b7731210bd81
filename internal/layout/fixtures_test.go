package layout

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/stratum/internal/modules"
)

// staticModules returns a fixed module list.
type staticModules []modules.Module

func (s staticModules) Ordered() ([]modules.Module, error) { return s, nil }

// mapLoader serves handles from parsed documents, one per module.
type mapLoader map[string][]string

func (m mapLoader) Trees(_ context.Context, handle string) ([]*Tree, error) {
	var out []*Tree
	for _, doc := range m[handle] {
		out = append(out, MustParse(doc))
	}
	return out, nil
}

func writeFile(t *testing.T, fs afero.Fs, path, content string) {
	t.Helper()
	require.NoError(t, afero.WriteFile(fs, filepath.FromSlash(path), []byte(content), 0o644))
}

// names returns the name attributes of the root's structural children.
func topNames(tr *Tree) []string {
	return tr.ChildNames(tr.Root())
}

func childNames(t *testing.T, tr *Tree, name string) []string {
	t.Helper()
	id, ok := tr.Find(name)
	require.True(t, ok, "node %q not found", name)
	return tr.ChildNames(id)
}

func countNamed(tr *Tree, name string) int {
	return len(tr.Collect(func(id NodeID) bool {
		return tr.Kind(id).IsStructural() && tr.Name(id) == name
	}))
}
