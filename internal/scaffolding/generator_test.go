package scaffolding

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/stratum/internal/config"
	"github.com/conneroisu/stratum/internal/layout"
	"github.com/conneroisu/stratum/internal/modules"
	"github.com/conneroisu/stratum/internal/pipeline"
)

func newGenerator(fs afero.Fs) *ModuleGenerator {
	g := NewModuleGenerator(fs, "app/code", "")
	g.now = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }
	return g
}

func TestValidateModuleName(t *testing.T) {
	valid := []string{"Acme_Blog", "A_B", "Vendor2_Module3"}
	for _, name := range valid {
		assert.NoError(t, ValidateModuleName(name), name)
	}

	invalid := []string{"", "Acme", "_Blog", "Acme_", "1Acme_Blog", "Acme_2Blog", "Acme_Blog-x", "Acme/Blog_x", "../_x"}
	for _, name := range invalid {
		assert.Error(t, ValidateModuleName(name), name)
	}
}

func TestGenerateBasic(t *testing.T) {
	fs := afero.NewMemMapFs()
	created, err := newGenerator(fs).Generate(GenerateOptions{
		Name:     "Acme_ProductReview",
		Sequence: []string{"Acme_Theme"},
	})
	require.NoError(t, err)

	dir := filepath.Join("app/code", "Acme_ProductReview")
	assert.Equal(t, []string{
		filepath.Join(dir, "module.yml"),
		filepath.Join(dir, "view/frontend/layout/default.xml"),
		filepath.Join(dir, "view/frontend/templates/welcome.phtml"),
	}, created)

	m, err := modules.ReadManifest(fs, filepath.Join(dir, modules.ManifestName))
	require.NoError(t, err)
	assert.Equal(t, "Acme_ProductReview", m.Name)
	assert.Equal(t, []string{"Acme_Theme"}, m.Sequence)

	data, err := afero.ReadFile(fs, filepath.Join(dir, "view/frontend/layout/default.xml"))
	require.NoError(t, err)
	tree, err := layout.ParseString(string(data))
	require.NoError(t, err)
	assert.Contains(t, tree.String(), `name="acme_productreview.welcome"`)
	assert.Contains(t, tree.String(), "Acme Product Review")

	tpl, err := afero.ReadFile(fs, filepath.Join(dir, "view/frontend/templates/welcome.phtml"))
	require.NoError(t, err)
	assert.Contains(t, string(tpl), `{{ data "title" }}`)
}

func TestGenerateRefusesExistingModule(t *testing.T) {
	fs := afero.NewMemMapFs()
	g := newGenerator(fs)

	_, err := g.Generate(GenerateOptions{Name: "Acme_Blog", Template: "layout"})
	require.NoError(t, err)

	_, err = g.Generate(GenerateOptions{Name: "Acme_Blog"})
	assert.ErrorContains(t, err, "already exists")

	_, err = g.Generate(GenerateOptions{Name: "Acme_Blog", Force: true})
	assert.NoError(t, err)
}

func TestGenerateErrors(t *testing.T) {
	g := newGenerator(afero.NewMemMapFs())

	_, err := g.Generate(GenerateOptions{Name: "Acme_Blog", Template: "nope"})
	assert.ErrorContains(t, err, `template "nope" not found`)

	_, err = g.Generate(GenerateOptions{Name: "Acme_Blog", Sequence: []string{"bad"}})
	assert.ErrorContains(t, err, "sequence entry")

	_, err = g.Generate(GenerateOptions{Name: "blog"})
	assert.Error(t, err)
}

func TestListTemplates(t *testing.T) {
	list := newGenerator(afero.NewMemMapFs()).ListTemplates()
	require.Len(t, list, 3)
	assert.Equal(t, "basic", list[0].Name)
	assert.Equal(t, "layout", list[1].Name)
	assert.Equal(t, "theme", list[2].Name)
	assert.Equal(t, 4, list[2].Files)
}

func TestGeneratedModulesRender(t *testing.T) {
	fs := afero.NewMemMapFs()
	g := newGenerator(fs)

	_, err := g.Generate(GenerateOptions{Name: "Acme_Theme", Template: "theme"})
	require.NoError(t, err)
	_, err = g.Generate(GenerateOptions{Name: "Acme_Blog", Sequence: []string{"Acme_Theme"}})
	require.NoError(t, err)

	cfg := config.Default()
	cfg.Render.LiveReload = false
	p, err := pipeline.FromConfig(context.Background(), fs, cfg, nil, nil)
	require.NoError(t, err)
	defer p.Close()

	out, err := p.Render(context.Background(), "default")
	require.NoError(t, err)
	assert.Contains(t, out, `<div class="page-wrapper">`)
	assert.Contains(t, out, "<h1>Acme Theme</h1>")
	assert.Contains(t, out, "<h2>Acme Blog</h2>")
	assert.Contains(t, out, "<footer>Acme Theme 2024</footer>")
	assert.NotContains(t, out, "failed")
}
