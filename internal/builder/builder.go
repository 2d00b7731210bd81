// Package builder turns a resolved layout tree into a tree of blocks.
package builder

import (
	"context"
	"strings"

	"github.com/conneroisu/stratum/internal/blocks"
	"github.com/conneroisu/stratum/internal/layout"
	"github.com/conneroisu/stratum/internal/logging"
)

// Resolver creates blocks from type references.
type Resolver interface {
	Resolve(typeRef string) (blocks.Block, error)
}

// Result is a built block tree. Root is nil when the layout declares no
// container or block.
type Result struct {
	Root  *blocks.Node
	Index map[string]*blocks.Node

	// Fallbacks names blocks that were built with the fallback type.
	Fallbacks []string
}

// Lookup returns the block named name.
func (r *Result) Lookup(name string) (*blocks.Node, bool) {
	if r == nil || r.Index == nil {
		return nil, false
	}
	n, ok := r.Index[name]
	return n, ok
}

// reserved attributes are not copied into the data bag.
var reserved = map[string]bool{"name": true, "class": true, "type": true}

// Builder creates blocks through a factory.
type Builder struct {
	factory Resolver
	logger  logging.Logger
}

// New creates a builder. A nil logger discards output.
func New(factory Resolver, logger logging.Logger) *Builder {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Builder{factory: factory, logger: logger.WithComponent("builder")}
}

// Build instantiates the first top-level container or block of t and its
// structural descendants.
func (b *Builder) Build(ctx context.Context, t *layout.Tree) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res := &Result{Index: make(map[string]*blocks.Node)}
	for _, id := range t.Children(t.Root()) {
		if t.Kind(id).IsStructural() {
			res.Root = b.build(ctx, t, id, res)
			return res, nil
		}
	}

	b.logger.Warn(ctx, nil, "Layout has no container or block root")
	return res, nil
}

func (b *Builder) build(ctx context.Context, t *layout.Tree, id layout.NodeID, res *Result) *blocks.Node {
	name := t.Name(id)
	var n *blocks.Node

	if t.Kind(id) == layout.KindContainer {
		n = blocks.NewNode(name, blocks.TypeContainer, blocks.Container{})
	} else {
		typeRef := t.TypeRef(id)
		if typeRef == "" {
			typeRef = blocks.TypeTemplate
		}
		block, err := b.factory.Resolve(typeRef)
		if err != nil {
			b.logger.Warn(ctx, err, "Using fallback block", "block", name, "type", typeRef)
			block = blocks.Fallback{Reason: err.Error()}
			res.Fallbacks = append(res.Fallbacks, name)
		}
		n = blocks.NewNode(name, typeRef, block)
	}

	for _, a := range t.Attrs(id) {
		if !reserved[a.Name] {
			n.Set(a.Name, a.Value)
		}
	}

	for _, c := range t.Children(id) {
		switch {
		case t.Kind(c).IsStructural():
			n.AddChild(b.build(ctx, t, c, res))
		case t.Tag(c) == "arguments":
			readArguments(t, c, n)
		}
	}

	if name != "" {
		res.Index[name] = n
	}
	return n
}

// readArguments copies <argument name="k">v</argument> entries into the
// data bag.
func readArguments(t *layout.Tree, args layout.NodeID, n *blocks.Node) {
	for _, arg := range t.Children(args) {
		if t.Tag(arg) != "argument" {
			continue
		}
		key := t.Name(arg)
		if key == "" {
			continue
		}
		var sb strings.Builder
		for _, c := range t.Children(arg) {
			if t.Kind(c) == layout.KindText {
				sb.WriteString(t.Text(c))
			}
		}
		n.Set(key, sb.String())
	}
}
