package layout

import (
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/stratum/internal/modules"
)

func TestMergeTreesConcatenatesInOrder(t *testing.T) {
	a := MustParse(`<layout><block name="a1"/><block name="a2"/></layout>`)
	b := MustParse(`<page><block name="b1"/></page>`)

	merged := MergeTrees([]*Tree{a, nil, b})
	assert.Equal(t, []string{"a1", "a2", "b1"}, topNames(merged))
	assert.Equal(t, "layout", merged.Tag(merged.Root()))
}

func TestMergeTreesSharesNothing(t *testing.T) {
	a := MustParse(`<layout><container name="c"><block name="x"/></container></layout>`)
	merged := MergeTrees([]*Tree{a})

	c, _ := merged.Find("c")
	merged.SetAttr(c, "htmlTag", "section")
	x, _ := merged.Find("x")
	merged.Detach(x)

	orig, _ := a.Find("c")
	_, has := a.Attr(orig, "htmlTag")
	assert.False(t, has)
	assert.Equal(t, []string{"x"}, a.ChildNames(orig))
}

func TestMergeTreesEmpty(t *testing.T) {
	merged := MergeTrees(nil)
	assert.Zero(t, merged.ChildCount(merged.Root()))
}

func TestMergerHandlesInOrder(t *testing.T) {
	m := NewMerger(mapLoader{
		"default": {`<layout><block name="header"/></layout>`, `<layout><block name="footer"/></layout>`},
		"page":    {`<layout><block name="body"/></layout>`},
	})

	tr, err := m.Merge(context.Background(), "default", "page")
	require.NoError(t, err)
	assert.Equal(t, []string{"header", "footer", "body"}, topNames(tr))
}

func TestMergerSplicesUpdateInPlace(t *testing.T) {
	m := NewMerger(mapLoader{
		"page": {`<layout>
			<block name="before"/>
			<container name="slot"><update handle="shared"/><block name="own"/></container>
			<block name="after"/>
		</layout>`},
		"shared": {`<layout><block name="s1"/></layout>`, `<layout><block name="s2"/></layout>`},
	})

	tr, err := m.Merge(context.Background(), "page")
	require.NoError(t, err)
	assert.Equal(t, []string{"before", "slot", "after"}, topNames(tr))
	assert.Equal(t, []string{"s1", "s2", "own"}, childNames(t, tr, "slot"))
	assert.Empty(t, tr.CollectKind(KindUpdate))
}

func TestMergerUpdateCycleIsNoop(t *testing.T) {
	m := NewMerger(mapLoader{
		"a": {`<layout><block name="from_a"/><update handle="b"/></layout>`},
		"b": {`<layout><block name="from_b"/><update handle="a"/></layout>`},
	})

	tr, err := m.Merge(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"from_a", "from_b"}, topNames(tr))
	assert.Empty(t, tr.CollectKind(KindUpdate))
}

func TestMergerSelfUpdateIsNoop(t *testing.T) {
	m := NewMerger(mapLoader{
		"a": {`<layout><update handle="a"/><block name="x"/></layout>`},
	})
	tr, err := m.Merge(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, topNames(tr))
}

func TestMergerDiamondUpdatesExpandTwice(t *testing.T) {
	m := NewMerger(mapLoader{
		"page":  {`<layout><update handle="left"/><update handle="right"/></layout>`},
		"left":  {`<layout><container name="l"><update handle="base"/></container></layout>`},
		"right": {`<layout><container name="r"><update handle="base"/></container></layout>`},
		"base":  {`<layout><block name="shared"/></layout>`},
	})

	tr, err := m.Merge(context.Background(), "page")
	require.NoError(t, err)
	assert.Equal(t, []string{"shared"}, childNames(t, tr, "l"))
	assert.Equal(t, []string{"shared"}, childNames(t, tr, "r"))
}

func TestMergerDepthLimit(t *testing.T) {
	m := NewMerger(mapLoader{
		"h0": {`<layout><block name="b0"/><update handle="h1"/></layout>`},
		"h1": {`<layout><block name="b1"/><update handle="h2"/></layout>`},
		"h2": {`<layout><block name="b2"/><update handle="h3"/></layout>`},
		"h3": {`<layout><block name="b3"/></layout>`},
	}, WithMaxUpdateDepth(2))

	tr, err := m.Merge(context.Background(), "h0")
	require.NoError(t, err)
	assert.Equal(t, []string{"b0", "b1", "b2"}, topNames(tr))
}

func TestMergerUnknownUpdateHandle(t *testing.T) {
	m := NewMerger(mapLoader{
		"page": {`<layout><update handle="missing"/><update/><block name="x"/></layout>`},
	})
	tr, err := m.Merge(context.Background(), "page")
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, topNames(tr))
	assert.Empty(t, tr.CollectKind(KindUpdate))
}

func TestMergerWithFilesystemLoader(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "theme/view/base/layout/default.xml",
		`<layout><container name="root"><update handle="header"/></container></layout>`)
	writeFile(t, fs, "theme/view/base/layout/header.xml",
		`<layout><block name="logo"/></layout>`)
	writeFile(t, fs, "cms/view/base/layout/header.xml",
		`<layout><block name="menu"/></layout>`)

	loader := newTestLoader(fs,
		modules.Module{Name: "Theme", BasePath: "theme"},
		modules.Module{Name: "Cms", BasePath: "cms"},
	)
	tr, err := NewMerger(loader).Merge(context.Background(), "default")
	require.NoError(t, err)
	assert.Equal(t, []string{"logo", "menu"}, childNames(t, tr, "root"))
}

func TestMergerCancelledContext(t *testing.T) {
	m := NewMerger(mapLoader{"a": {`<layout/>`}})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := m.Merge(ctx, "a")
	assert.ErrorIs(t, err, context.Canceled)
}
