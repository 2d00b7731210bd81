// Package blocks provides the renderable block tree and the block types a
// layout can instantiate.
//
// A Node is one placed block: its layout name, the type reference it was
// built from, a data bag of configuration values and the Block that renders
// it. Blocks are looked up by type reference through a Factory; template
// backed blocks locate their templates through a TemplateResolver.
package blocks

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/a-h/templ"
)

// ChildRenderer renders a single node with failure isolation. Blocks call it
// for their children instead of invoking child blocks directly.
type ChildRenderer interface {
	RenderNode(ctx context.Context, n *Node) string
}

// Block is the rendering capability selected by a node's type reference.
type Block interface {
	Render(ctx context.Context, n *Node, r ChildRenderer) (string, error)
}

// BlockFunc adapts a function to Block.
type BlockFunc func(ctx context.Context, n *Node, r ChildRenderer) (string, error)

// Render calls f.
func (f BlockFunc) Render(ctx context.Context, n *Node, r ChildRenderer) (string, error) {
	return f(ctx, n, r)
}

// Node is one block in the built tree.
type Node struct {
	Name    string
	TypeRef string
	Data    map[string]any
	Block   Block

	parent   *Node
	children []*Node
}

// NewNode creates a detached node.
func NewNode(name, typeRef string, b Block) *Node {
	return &Node{
		Name:    name,
		TypeRef: typeRef,
		Data:    make(map[string]any),
		Block:   b,
	}
}

// Parent returns the node this one is attached to, or nil.
func (n *Node) Parent() *Node { return n.parent }

// Children returns a copy of the child list in render order.
func (n *Node) Children() []*Node {
	out := make([]*Node, len(n.children))
	copy(out, n.children)
	return out
}

// ChildCount returns the number of children.
func (n *Node) ChildCount() int { return len(n.children) }

// AddChild appends c, detaching it from any previous parent.
func (n *Node) AddChild(c *Node) {
	if c == nil || c == n {
		return
	}
	if c.parent != nil {
		c.parent.RemoveChild(c)
	}
	c.parent = n
	n.children = append(n.children, c)
}

// RemoveChild detaches c. It reports false when c is not a child of n.
func (n *Node) RemoveChild(c *Node) bool {
	for i, existing := range n.children {
		if existing == c {
			n.children = append(n.children[:i:i], n.children[i+1:]...)
			c.parent = nil
			return true
		}
	}
	return false
}

// Child returns the direct child named name.
func (n *Node) Child(name string) (*Node, bool) {
	for _, c := range n.children {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}

// Get returns a data value.
func (n *Node) Get(key string) (any, bool) {
	v, ok := n.Data[key]
	return v, ok
}

// GetString returns a data value formatted as a string, or "" when unset.
func (n *Node) GetString(key string) string {
	v, ok := n.Data[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// Set stores a data value.
func (n *Node) Set(key string, value any) {
	if n.Data == nil {
		n.Data = make(map[string]any)
	}
	n.Data[key] = value
}

// Keys returns the data bag keys, sorted.
func (n *Node) Keys() []string {
	keys := make([]string, 0, len(n.Data))
	for k := range n.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Walk visits n and its descendants depth first. Returning false skips the
// visited node's children.
func (n *Node) Walk(fn func(*Node, int) bool) {
	n.walk(0, fn)
}

func (n *Node) walk(depth int, fn func(*Node, int) bool) {
	if !fn(n, depth) {
		return
	}
	for _, c := range n.children {
		c.walk(depth+1, fn)
	}
}

// Tree returns an indented outline of the subtree, one node per line.
func (n *Node) Tree() string {
	var sb strings.Builder
	n.Walk(func(node *Node, depth int) bool {
		sb.WriteString(strings.Repeat("  ", depth))
		sb.WriteString(node.Name)
		if node.TypeRef != "" {
			sb.WriteString(" (" + node.TypeRef + ")")
		}
		sb.WriteByte('\n')
		return true
	})
	return sb.String()
}

// RenderChildren renders every child of n in order and concatenates the
// output.
func RenderChildren(ctx context.Context, n *Node, r ChildRenderer) string {
	var sb strings.Builder
	for _, c := range n.children {
		sb.WriteString(r.RenderNode(ctx, c))
	}
	return sb.String()
}

// renderComponent renders a templ component to a string.
func renderComponent(ctx context.Context, c templ.Component) (string, error) {
	var sb strings.Builder
	if err := c.Render(ctx, &sb); err != nil {
		return "", err
	}
	return sb.String(), nil
}
