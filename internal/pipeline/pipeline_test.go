package pipeline

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/stratum/internal/blocks"
	"github.com/conneroisu/stratum/internal/cache"
	"github.com/conneroisu/stratum/internal/config"
	"github.com/conneroisu/stratum/internal/errors"
	"github.com/conneroisu/stratum/internal/modules"
	"github.com/conneroisu/stratum/internal/monitoring"
)

// fixture is a two-module project on an in-memory filesystem. Acme_Theme
// depends on Acme_Base, so its files merge after Acme_Base's.
type fixture struct {
	fs  afero.Fs
	reg *modules.Registry
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{fs: afero.NewMemMapFs(), reg: modules.NewRegistry()}
	require.NoError(t, f.reg.Register(modules.Module{Name: "Acme_Base", BasePath: "/code/Acme/Base", Enabled: true}))
	require.NoError(t, f.reg.Register(modules.Module{
		Name: "Acme_Theme", BasePath: "/code/Acme/Theme", Sequence: []string{"Acme_Base"}, Enabled: true,
	}))
	return f
}

func (f *fixture) layout(t *testing.T, module, handle, body string) {
	t.Helper()
	path := filepath.Join("/code/Acme", module, "view/frontend/layout", handle+".xml")
	require.NoError(t, afero.WriteFile(f.fs, path, []byte("<layout>"+body+"</layout>"), 0o644))
}

func (f *fixture) template(t *testing.T, module, rel, body string) {
	t.Helper()
	path := filepath.Join("/code/Acme", module, "view/frontend/templates", rel)
	require.NoError(t, afero.WriteFile(f.fs, path, []byte(body), 0o644))
}

func (f *fixture) pipeline(opts Options) *Pipeline {
	return New(f.fs, f.reg, opts)
}

func TestRenderRoundTripScenario(t *testing.T) {
	f := newFixture(t)
	f.layout(t, "Base", "page_view",
		`<container name="root"><block name="header" class="Text" text="H"/></container>`)
	f.layout(t, "Theme", "page_view",
		`<referenceContainer name="root"><block name="footer" class="Text" text="F"/></referenceContainer>`)

	p := f.pipeline(Options{})
	res, err := p.Build(context.Background(), "page_view")
	require.NoError(t, err)
	require.NotNil(t, res.Root)
	require.Equal(t, 2, res.Root.ChildCount())
	assert.Equal(t, "header", res.Root.Children()[0].Name)
	assert.Equal(t, "footer", res.Root.Children()[1].Name)

	out, err := p.Render(context.Background(), "page_view")
	require.NoError(t, err)
	assert.Equal(t, "<div>HF</div>", out)
}

func TestRenderNameOverride(t *testing.T) {
	f := newFixture(t)
	f.layout(t, "Base", "default",
		`<container name="root"><block name="x" class="Text" text="base"/></container>`)
	f.layout(t, "Theme", "default",
		`<container name="root"><block name="x" class="Text" text="theme"/></container>`)

	out, err := f.pipeline(Options{}).Render(context.Background(), "default")
	require.NoError(t, err)
	assert.Equal(t, "<div>theme</div>", out)
}

func TestRenderMissingTargetMove(t *testing.T) {
	f := newFixture(t)
	f.layout(t, "Base", "default",
		`<container name="root"><block name="a" class="Text" text="a"/></container><move element="ghost" destination="root"/>`)

	p := f.pipeline(Options{})
	resolved, err := p.Resolve(context.Background(), "default")
	require.NoError(t, err)
	assert.NotContains(t, resolved.Tree.String(), "move")
	require.Len(t, resolved.Report.Skipped(), 1)

	out, err := p.Render(context.Background(), "default")
	require.NoError(t, err)
	assert.Equal(t, "<div>a</div>", out)
}

func TestRenderUnknownTypeFallback(t *testing.T) {
	f := newFixture(t)
	f.layout(t, "Base", "default",
		`<container name="root"><block name="x" class="Nonexistent\Class"><block name="y" class="Text" text="inner"/></block></container>`)

	metrics := monitoring.NewMetrics()
	p := f.pipeline(Options{Metrics: metrics})

	res, err := p.Build(context.Background(), "default")
	require.NoError(t, err)
	x, ok := res.Lookup("x")
	require.True(t, ok)
	assert.IsType(t, blocks.Fallback{}, x.Block)

	out, err := p.Render(context.Background(), "default")
	require.NoError(t, err)
	assert.Equal(t, "<div>inner</div>", out)
	assert.Equal(t, float64(2), metrics.Total("stratum_build_fallback_blocks_total"))
}

func TestRenderBeforePositioning(t *testing.T) {
	f := newFixture(t)
	f.layout(t, "Base", "default", `<container name="root">
		<container name="d">
			<block name="a" class="Text" text="a"/>
			<block name="b" class="Text" text="b"/>
			<block name="c" class="Text" text="c"/>
		</container>
		<block name="e" class="Text" text="e"/>
	</container>`)
	f.layout(t, "Theme", "default", `<move element="e" destination="d" before="b"/>`)

	out, err := f.pipeline(Options{}).Render(context.Background(), "default")
	require.NoError(t, err)
	assert.Equal(t, "<div><div>aebc</div></div>", out)
}

func TestRenderUpdateHandles(t *testing.T) {
	f := newFixture(t)
	f.layout(t, "Base", "default", `<container name="root"><container name="content"/></container>`)
	f.layout(t, "Base", "catalog_product_view",
		`<update handle="product_common"/><referenceContainer name="content"><block name="price" class="Text" text="$9"/></referenceContainer>`)
	f.layout(t, "Base", "product_common",
		`<update handle="catalog_product_view"/><referenceContainer name="content"><block name="title" class="Text" text="Widget"/></referenceContainer>`)

	out, err := f.pipeline(Options{}).Render(context.Background(), "default", "catalog_product_view")
	require.NoError(t, err)
	assert.Equal(t, "<div><div>Widget$9</div></div>", out)
}

func TestRenderMalformedModuleIsContained(t *testing.T) {
	f := newFixture(t)
	f.layout(t, "Base", "default", `<container name="root"><block name="a" class="Text" text="ok"/></container>`)
	f.layout(t, "Theme", "default", `<referenceContainer name="root"><block name="b"`)

	p := f.pipeline(Options{})
	out, err := p.Render(context.Background(), "default")
	require.NoError(t, err)
	assert.Equal(t, "<div>ok</div>", out)

	diags := p.Loader().Diagnostics().ByModule("Acme_Theme")
	require.Len(t, diags, 1)
	assert.Equal(t, errors.SeverityWarning, diags[0].Severity)
}

func TestRenderRedeclaredContainerUsesLaterTag(t *testing.T) {
	f := newFixture(t)
	f.layout(t, "Base", "default",
		`<container name="x" htmlTag="div"><block name="a" class="Text" text="A"/></container>`)
	f.layout(t, "Theme", "default",
		`<referenceContainer name="x"><container name="x" htmlTag="section"/></referenceContainer>`)

	out, err := f.pipeline(Options{}).Render(context.Background(), "default")
	require.NoError(t, err)
	assert.Equal(t, "<section>A</section>", out)
}

func TestRenderMalformedModuleReportedOnce(t *testing.T) {
	f := newFixture(t)
	f.layout(t, "Base", "page_view", `<container name="root"><block name="a" class="Text" text="ok"/></container>`)
	f.layout(t, "Theme", "page_view", `<block name="oops"`)

	p := f.pipeline(Options{})
	ctx := context.Background()
	for i := 0; i < 1000; i++ {
		_, err := p.Render(ctx, "page_view")
		require.NoError(t, err)
	}
	assert.Equal(t, 1, p.Loader().Diagnostics().Len())

	require.NoError(t, p.Invalidate(ctx))
	assert.Zero(t, p.Loader().Diagnostics().Len())

	_, err := p.Render(ctx, "page_view")
	require.NoError(t, err)
	assert.Equal(t, 1, p.Loader().Diagnostics().Len())

	diags, _, err := p.Validate(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, diags.Len())
	diags, _, err = p.Validate(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, diags.Len())
}

func TestRenderTemplateBlock(t *testing.T) {
	f := newFixture(t)
	f.layout(t, "Base", "default", `<container name="root">
		<block name="card" template="Acme_Base::card.phtml">
			<arguments><argument name="title">Hello &amp; welcome</argument></arguments>
			<block name="body" class="Text" text="body"/>
		</block>
	</container>`)
	f.template(t, "Base", "card.phtml", `<h2>{{ data "title" }}</h2>{{ child "body" }}`)
	f.template(t, "Theme", "card.phtml", `ignored`)

	out, err := f.pipeline(Options{TemplateCache: true}).Render(context.Background(), "default")
	require.NoError(t, err)
	assert.Equal(t, "<div><h2>Hello &amp; welcome</h2>body</div>", out)
}

func TestRenderTemplateOverride(t *testing.T) {
	f := newFixture(t)
	f.layout(t, "Base", "default", `<container name="root"><block name="card" template="card.phtml"/></container>`)
	f.template(t, "Base", "card.phtml", `base`)
	f.template(t, "Theme", "card.phtml", `theme`)

	out, err := f.pipeline(Options{}).Render(context.Background(), "default")
	require.NoError(t, err)
	assert.Equal(t, "<div>theme</div>", out)
}

func TestRenderFailingBlockLeavesSiblings(t *testing.T) {
	f := newFixture(t)
	f.layout(t, "Base", "default", `<container name="root">
		<block name="broken" template="missing.phtml"/>
		<block name="fine" class="Text" text="ok"/>
	</container>`)

	metrics := monitoring.NewMetrics()
	out, err := f.pipeline(Options{Metrics: metrics}).Render(context.Background(), "default")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, `<div><!-- block "broken" (Template) failed:`), out)
	assert.True(t, strings.HasSuffix(out, "ok</div>"))
	assert.Equal(t, float64(1), metrics.Total("stratum_render_block_failures_total"))
}

func TestRenderNoRoot(t *testing.T) {
	f := newFixture(t)
	f.layout(t, "Base", "default", `<remove name="root"/>`)

	out, err := f.pipeline(Options{}).Render(context.Background(), "default")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestRenderRequiresHandles(t *testing.T) {
	_, err := newFixture(t).pipeline(Options{}).Render(context.Background())
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeNoHandles, errors.Code(err))
}

func TestRenderCanceled(t *testing.T) {
	f := newFixture(t)
	f.layout(t, "Base", "default", `<container name="root"/>`)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.pipeline(Options{}).Render(ctx, "default")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRenderBlock(t *testing.T) {
	f := newFixture(t)
	f.layout(t, "Base", "default", `<container name="root">
		<container name="sidebar" htmlTag="aside"><block name="cart" class="Text" text="2 items"/></container>
		<block name="main" class="Text" text="main"/>
	</container>`)

	p := f.pipeline(Options{})
	out, err := p.RenderBlock(context.Background(), "sidebar", "default")
	require.NoError(t, err)
	assert.Equal(t, "<aside>2 items</aside>", out)

	_, err = p.RenderBlock(context.Background(), "ghost", "default")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeBlockNotFound, errors.Code(err))
}

func TestRenderPage(t *testing.T) {
	f := newFixture(t)
	f.layout(t, "Base", "default", `<container name="root"/>`)
	f.layout(t, "Base", "cms_index_index",
		`<referenceContainer name="root"><block name="hero" class="Text" text="Welcome"/></referenceContainer>`)

	p := f.pipeline(Options{DefaultHandles: []string{"default"}, Title: "Shop"})
	assert.Equal(t, []string{"default", "cms_index_index"}, p.PageHandles("cms_index_index", "default"))

	page, err := p.RenderPage(context.Background(), "cms_index_index")
	require.NoError(t, err)
	assert.Contains(t, page, "<title>Shop</title>")
	assert.Contains(t, page, "<div>Welcome</div>")
	assert.NotContains(t, page, "WebSocket")
}

func TestRenderUsesOutputCache(t *testing.T) {
	f := newFixture(t)
	f.layout(t, "Base", "default", `<container name="root"><block name="a" class="Text" text="v1"/></container>`)

	metrics := monitoring.NewMetrics()
	p := f.pipeline(Options{Cache: cache.NewMemoryCache(8, 0), Metrics: metrics})
	ctx := context.Background()

	out, err := p.Render(ctx, "default")
	require.NoError(t, err)
	assert.Equal(t, "<div>v1</div>", out)

	f.layout(t, "Base", "default", `<container name="root"><block name="a" class="Text" text="v2"/></container>`)
	out, err = p.Render(ctx, "default")
	require.NoError(t, err)
	assert.Equal(t, "<div>v1</div>", out, "served from cache")

	require.NoError(t, p.Invalidate(ctx))
	out, err = p.Render(ctx, "default")
	require.NoError(t, err)
	assert.Equal(t, "<div>v2</div>", out)

	assert.Equal(t, float64(3), metrics.Total("stratum_cache_operations_total"))
	require.NoError(t, p.Close())
}

func TestRenderDeterministic(t *testing.T) {
	f := newFixture(t)
	f.layout(t, "Base", "default", `<container name="root">
		<block name="a" class="Text" text="a"/><block name="b" class="Text" text="b"/>
	</container>`)
	f.layout(t, "Theme", "default", `<move element="a" destination="root" after="b"/>
		<referenceBlock name="b"><block name="b1" class="Text" text="1"/></referenceBlock>`)

	p := f.pipeline(Options{})
	first, err := p.Resolve(context.Background(), "default")
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := p.Resolve(context.Background(), "default")
		require.NoError(t, err)
		assert.True(t, first.Tree.Equal(again.Tree))
	}
	out, err := p.Render(context.Background(), "default")
	require.NoError(t, err)
	assert.Equal(t, "<div>b1a</div>", out)
}

func TestExplain(t *testing.T) {
	f := newFixture(t)
	f.layout(t, "Base", "default", `<container name="root"><block name="a" class="Text" text="a"/></container>`)
	f.layout(t, "Theme", "default", `<remove name="a"/><remove name="ghost"/>`)

	exp, err := f.pipeline(Options{}).Explain(context.Background(), "default")
	require.NoError(t, err)

	require.Len(t, exp.Sources["default"], 2)
	assert.Equal(t, "Acme_Base", exp.Sources["default"][0].Module)
	assert.Equal(t, "Acme_Theme", exp.Sources["default"][1].Module)
	assert.Contains(t, exp.XML, `<container name="root">`)
	assert.NotContains(t, exp.XML, `name="a"`)
	assert.Equal(t, 1, exp.Report.Applied())
	assert.Equal(t, "root (container)\n", exp.Blocks)
}

func TestValidate(t *testing.T) {
	f := newFixture(t)
	f.layout(t, "Base", "default", `<container name="root"/>`)
	f.layout(t, "Theme", "broken", `<container name="x">`)

	diags, checked, err := f.pipeline(Options{}).Validate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, checked)
	require.True(t, diags.HasErrors())
	all := diags.All()
	require.Len(t, all, 1)
	assert.Equal(t, "Acme_Theme", all[0].Module)
}

func TestValidateReportsModuleCycle(t *testing.T) {
	reg := modules.NewRegistry()
	require.NoError(t, reg.Register(modules.Module{Name: "A", BasePath: "/a", Sequence: []string{"B"}, Enabled: true}))
	require.NoError(t, reg.Register(modules.Module{Name: "B", BasePath: "/b", Sequence: []string{"A"}, Enabled: true}))

	diags, _, err := New(afero.NewMemMapFs(), reg, Options{}).Validate(context.Background())
	require.NoError(t, err)
	require.True(t, diags.HasErrors())
}

func TestFromConfig(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "app/code/Acme_Base/module.yml", []byte("name: Acme_Base\n"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "app/code/Acme_Base/view/frontend/layout/default.xml",
		[]byte(`<layout><container name="root"><block name="a" class="Text" text="hi"/></container></layout>`), 0o644))

	cfg := config.Default()
	cfg.Modules.Declared = []config.ModuleEntry{{Name: "Acme_Extra", Path: "extra"}}
	cfg.Cache.Backend = cache.BackendMemory
	cfg.Render.LiveReload = false

	p, err := FromConfig(context.Background(), fs, cfg, nil, nil)
	require.NoError(t, err)
	defer p.Close()

	mods, err := p.Modules()
	require.NoError(t, err)
	require.Len(t, mods, 2)
	assert.Equal(t, "Acme_Extra", mods[0].Name)
	assert.Equal(t, "Acme_Base", mods[1].Name)

	page, err := p.RenderPage(context.Background())
	require.NoError(t, err)
	assert.Contains(t, page, "<div>hi</div>")
	assert.Contains(t, page, "<title>Stratum</title>")

	handles, err := p.Handles()
	require.NoError(t, err)
	assert.Equal(t, []string{"default"}, handles)
}

func TestNewLogger(t *testing.T) {
	cfg := config.Default()
	logger, err := NewLogger(cfg)
	require.NoError(t, err)
	assert.NotNil(t, logger)

	cfg.Log.Level = "loud"
	_, err = NewLogger(cfg)
	assert.Error(t, err)
}
