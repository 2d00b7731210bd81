package renderer

import (
	"context"
	"fmt"
	"testing"

	"github.com/conneroisu/stratum/internal/blocks"
)

func wideTree(width, depth int) *blocks.Node {
	root := blocks.NewNode("root", blocks.TypeContainer, blocks.Container{})
	parent := root
	for d := 0; d < depth; d++ {
		next := blocks.NewNode(fmt.Sprintf("level_%d", d), blocks.TypeContainer, blocks.Container{})
		for w := 0; w < width; w++ {
			parent.AddChild(text(fmt.Sprintf("leaf_%d_%d", d, w), "<leaf>"))
		}
		parent.AddChild(next)
		parent = next
	}
	return root
}

func BenchmarkRender_Wide(b *testing.B) {
	r := New()
	root := wideTree(50, 4)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = r.Render(ctx, root)
	}
}

func BenchmarkRender_Deep(b *testing.B) {
	r := New()
	root := wideTree(2, 100)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = r.Render(ctx, root)
	}
}
