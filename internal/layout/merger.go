package layout

import (
	"context"
	"fmt"
	"strings"

	"github.com/conneroisu/stratum/internal/logging"
)

// DefaultMaxUpdateDepth bounds nested <update> expansion.
const DefaultMaxUpdateDepth = 32

// HandleLoader returns the per-module trees for a handle in module order.
type HandleLoader interface {
	Trees(ctx context.Context, handle string) ([]*Tree, error)
}

// MergeTrees concatenates the top-level children of every tree, in input
// order, under a fresh root. The result shares no nodes with its inputs.
func MergeTrees(trees []*Tree) *Tree {
	out := NewTree()
	for _, t := range trees {
		if t == nil {
			continue
		}
		for _, c := range t.nodes[t.root].Children {
			out.Append(out.root, out.CopySubtree(t, c))
		}
	}
	return out
}

// Merger builds the raw layout tree for a set of handles.
type Merger struct {
	loader   HandleLoader
	maxDepth int
	logger   logging.Logger
}

// MergerOption configures a Merger.
type MergerOption func(*Merger)

// WithMaxUpdateDepth sets how deep <update> directives are followed.
func WithMaxUpdateDepth(depth int) MergerOption {
	return func(m *Merger) {
		if depth > 0 {
			m.maxDepth = depth
		}
	}
}

// WithMergerLogger sets the merger's logger.
func WithMergerLogger(logger logging.Logger) MergerOption {
	return func(m *Merger) {
		if logger != nil {
			m.logger = logger.WithComponent("merger")
		}
	}
}

// NewMerger creates a merger reading layouts through loader.
func NewMerger(loader HandleLoader, opts ...MergerOption) *Merger {
	m := &Merger{
		loader:   loader,
		maxDepth: DefaultMaxUpdateDepth,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Merge loads every handle in order and merges the results into one tree.
// <update handle="x"/> directives are replaced in place by the merged
// contents of x, recursively. An update naming a handle that is already
// being expanded on the current path is dropped, as is any update past the
// depth limit.
func (m *Merger) Merge(ctx context.Context, handles ...string) (*Tree, error) {
	parts := make([]*Tree, 0, len(handles))
	for _, h := range handles {
		t, err := m.resolve(ctx, h, nil)
		if err != nil {
			return nil, err
		}
		parts = append(parts, t)
	}
	if len(parts) == 1 {
		return parts[0], nil
	}
	return MergeTrees(parts), nil
}

func (m *Merger) resolve(ctx context.Context, handle string, stack []string) (*Tree, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	trees, err := m.loader.Trees(ctx, handle)
	if err != nil {
		return nil, fmt.Errorf("loading handle %q: %w", handle, err)
	}
	t := MergeTrees(trees)
	stack = append(stack, handle)

	for _, u := range t.CollectKind(KindUpdate) {
		target := strings.TrimSpace(t.AttrOr(u, "handle", ""))
		switch {
		case target == "":
			m.logger.Debug(ctx, "Dropping update without handle", "in", handle)
		case onStack(stack, target):
			m.logger.Debug(ctx, "Skipping recursive update",
				"handle", target, "path", strings.Join(stack, " -> "))
		case len(stack) > m.maxDepth:
			m.logger.Warn(ctx, nil, "Update nesting too deep, dropping",
				"handle", target, "depth", len(stack), "max", m.maxDepth)
		default:
			frag, err := m.resolve(ctx, target, stack)
			if err != nil {
				return nil, err
			}
			t.splice(u, frag)
		}
		t.Detach(u)
	}
	return t, nil
}

// splice copies the top-level children of frag into t immediately before
// at, keeping their order.
func (t *Tree) splice(at NodeID, frag *Tree) {
	parent := t.nodes[at].Parent
	if parent == NoNode {
		return
	}
	i := t.IndexOf(parent, at)
	for _, c := range frag.nodes[frag.root].Children {
		t.Insert(parent, i, t.CopySubtree(frag, c))
		i++
	}
}

func onStack(stack []string, handle string) bool {
	for _, h := range stack {
		if h == handle {
			return true
		}
	}
	return false
}
