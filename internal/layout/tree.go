// Package layout loads, merges and resolves layout XML.
//
// A layout is held in a Tree: an arena of nodes addressed by NodeID. Parent
// and child links are IDs, so detaching and re-attaching a subtree is a
// splice of a child list and never leaves a dangling pointer behind. A
// detached node stays in the arena but is unreachable from the root.
//
// The pipeline stages in this package are:
//
//   - Loader: finds and parses <handle>.xml for every module
//   - Merger: concatenates per-module trees and inlines <update> handles
//   - Processor: applies remove, move and reference directives in place
package layout

import (
	"strings"
)

// NodeID addresses a node inside a Tree.
type NodeID int32

// NoNode is the zero link: the parent of the root and of detached nodes.
const NoNode NodeID = -1

// Kind classifies a node by its element name.
type Kind uint8

const (
	KindRoot Kind = iota
	KindContainer
	KindBlock
	KindRemove
	KindMove
	KindReferenceBlock
	KindReferenceContainer
	KindUpdate
	KindText
	KindElement
)

var kindNames = map[Kind]string{
	KindRoot:               "root",
	KindContainer:          "container",
	KindBlock:              "block",
	KindRemove:             "remove",
	KindMove:               "move",
	KindReferenceBlock:     "referenceBlock",
	KindReferenceContainer: "referenceContainer",
	KindUpdate:             "update",
	KindText:               "#text",
	KindElement:            "element",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// IsDirective reports whether nodes of this kind mutate the tree instead of
// producing output.
func (k Kind) IsDirective() bool {
	switch k {
	case KindRemove, KindMove, KindReferenceBlock, KindReferenceContainer, KindUpdate:
		return true
	}
	return false
}

// IsStructural reports whether the kind becomes a block at build time.
func (k Kind) IsStructural() bool {
	return k == KindContainer || k == KindBlock
}

// KindForTag maps an element name to its Kind. Element names are case
// sensitive, as in the layout file format.
func KindForTag(tag string) Kind {
	switch tag {
	case "container":
		return KindContainer
	case "block":
		return KindBlock
	case "remove":
		return KindRemove
	case "move":
		return KindMove
	case "referenceBlock":
		return KindReferenceBlock
	case "referenceContainer":
		return KindReferenceContainer
	case "update":
		return KindUpdate
	}
	return KindElement
}

// Attr is one element attribute. Attribute order is kept for serialization.
type Attr struct {
	Name  string
	Value string
}

// Node is one arena slot.
type Node struct {
	Kind     Kind
	Tag      string
	Attrs    []Attr
	Text     string
	Parent   NodeID
	Children []NodeID
}

// Tree is an arena-backed layout document. The zero value is not usable;
// call NewTree.
type Tree struct {
	nodes []Node
	root  NodeID
}

// NewTree returns a tree holding only a root element named "layout".
func NewTree() *Tree {
	return NewTreeWithRoot("layout", nil)
}

// NewTreeWithRoot returns a tree whose root element has the given tag and
// attributes.
func NewTreeWithRoot(tag string, attrs []Attr) *Tree {
	t := &Tree{}
	t.root = t.alloc(Node{Kind: KindRoot, Tag: tag, Attrs: cloneAttrs(attrs), Parent: NoNode})
	return t
}

func (t *Tree) alloc(n Node) NodeID {
	t.nodes = append(t.nodes, n)
	return NodeID(len(t.nodes) - 1)
}

func (t *Tree) valid(id NodeID) bool {
	return id >= 0 && int(id) < len(t.nodes)
}

// Root returns the root element.
func (t *Tree) Root() NodeID { return t.root }

// Size returns the number of arena slots, detached nodes included.
func (t *Tree) Size() int { return len(t.nodes) }

// NewElement allocates a detached element node.
func (t *Tree) NewElement(tag string, attrs ...Attr) NodeID {
	return t.alloc(Node{Kind: KindForTag(tag), Tag: tag, Attrs: cloneAttrs(attrs), Parent: NoNode})
}

// NewText allocates a detached text node.
func (t *Tree) NewText(text string) NodeID {
	return t.alloc(Node{Kind: KindText, Text: text, Parent: NoNode})
}

// Kind returns the node kind.
func (t *Tree) Kind(id NodeID) Kind { return t.nodes[id].Kind }

// Tag returns the element name.
func (t *Tree) Tag(id NodeID) string { return t.nodes[id].Tag }

// Text returns the text of a text node.
func (t *Tree) Text(id NodeID) string { return t.nodes[id].Text }

// Parent returns the parent of id, or NoNode.
func (t *Tree) Parent(id NodeID) NodeID { return t.nodes[id].Parent }

// Children returns a copy of id's child list.
func (t *Tree) Children(id NodeID) []NodeID {
	c := t.nodes[id].Children
	out := make([]NodeID, len(c))
	copy(out, c)
	return out
}

// ChildCount returns the number of children of id.
func (t *Tree) ChildCount(id NodeID) int { return len(t.nodes[id].Children) }

// Attrs returns a copy of id's attributes in document order.
func (t *Tree) Attrs(id NodeID) []Attr { return cloneAttrs(t.nodes[id].Attrs) }

// Attr returns the value of attribute name on id.
func (t *Tree) Attr(id NodeID, name string) (string, bool) {
	for _, a := range t.nodes[id].Attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// AttrOr returns attribute name, or def when it is absent.
func (t *Tree) AttrOr(id NodeID, name, def string) string {
	if v, ok := t.Attr(id, name); ok {
		return v
	}
	return def
}

// SetAttr sets or replaces an attribute, keeping its position when present.
func (t *Tree) SetAttr(id NodeID, name, value string) {
	n := &t.nodes[id]
	for i := range n.Attrs {
		if n.Attrs[i].Name == name {
			n.Attrs[i].Value = value
			return
		}
	}
	n.Attrs = append(n.Attrs, Attr{Name: name, Value: value})
}

// ReplaceAttrs swaps in a new attribute list.
func (t *Tree) ReplaceAttrs(id NodeID, attrs []Attr) {
	t.nodes[id].Attrs = cloneAttrs(attrs)
}

// Name returns the node's name attribute.
func (t *Tree) Name(id NodeID) string {
	v, _ := t.Attr(id, "name")
	return v
}

// TypeRef returns the block type identifier from the class attribute, or
// the type attribute when class is absent.
func (t *Tree) TypeRef(id NodeID) string {
	if v, ok := t.Attr(id, "class"); ok {
		return strings.TrimSpace(v)
	}
	v, _ := t.Attr(id, "type")
	return strings.TrimSpace(v)
}

// Append attaches child as the last child of parent, detaching it first.
func (t *Tree) Append(parent, child NodeID) {
	t.Insert(parent, len(t.nodes[parent].Children), child)
}

// Insert attaches child at position index among parent's children. The
// index is clamped to the valid range.
func (t *Tree) Insert(parent NodeID, index int, child NodeID) {
	if t.nodes[child].Parent != NoNode {
		t.Detach(child)
	}
	kids := t.nodes[parent].Children
	if index < 0 {
		index = 0
	}
	if index > len(kids) {
		index = len(kids)
	}
	kids = append(kids, NoNode)
	copy(kids[index+1:], kids[index:])
	kids[index] = child
	t.nodes[parent].Children = kids
	t.nodes[child].Parent = parent
}

// InsertBefore attaches child immediately before sibling under parent. It
// reports false when sibling is not a child of parent; child is then left
// detached.
func (t *Tree) InsertBefore(parent, child, sibling NodeID) bool {
	if child == sibling {
		return false
	}
	t.Detach(child)
	i := t.IndexOf(parent, sibling)
	if i < 0 {
		return false
	}
	t.Insert(parent, i, child)
	return true
}

// InsertAfter attaches child immediately after sibling under parent.
func (t *Tree) InsertAfter(parent, child, sibling NodeID) bool {
	if child == sibling {
		return false
	}
	t.Detach(child)
	i := t.IndexOf(parent, sibling)
	if i < 0 {
		return false
	}
	t.Insert(parent, i+1, child)
	return true
}

// IndexOf returns the position of child in parent's child list, or -1.
func (t *Tree) IndexOf(parent, child NodeID) int {
	for i, c := range t.nodes[parent].Children {
		if c == child {
			return i
		}
	}
	return -1
}

// Detach unlinks id (and its subtree) from its parent. Detaching a node
// that has no parent is a no-op.
func (t *Tree) Detach(id NodeID) {
	p := t.nodes[id].Parent
	if p == NoNode {
		return
	}
	kids := t.nodes[p].Children
	for i, c := range kids {
		if c == id {
			t.nodes[p].Children = append(kids[:i:i], kids[i+1:]...)
			break
		}
	}
	t.nodes[id].Parent = NoNode
}

// Attached reports whether id is reachable from the root.
func (t *Tree) Attached(id NodeID) bool {
	if !t.valid(id) {
		return false
	}
	for id != NoNode {
		if id == t.root {
			return true
		}
		id = t.nodes[id].Parent
	}
	return false
}

// IsAncestor reports whether a is a proper ancestor of b.
func (t *Tree) IsAncestor(a, b NodeID) bool {
	for p := t.nodes[b].Parent; p != NoNode; p = t.nodes[p].Parent {
		if p == a {
			return true
		}
	}
	return false
}

// Walk visits the subtree at id in document order. Returning false from fn
// skips the visited node's children.
func (t *Tree) Walk(id NodeID, fn func(id NodeID, depth int) bool) {
	t.walk(id, 0, fn)
}

func (t *Tree) walk(id NodeID, depth int, fn func(NodeID, int) bool) {
	if !fn(id, depth) {
		return
	}
	for _, c := range t.nodes[id].Children {
		t.walk(c, depth+1, fn)
	}
}

// Collect returns, in document order, every attached node for which keep
// returns true.
func (t *Tree) Collect(keep func(id NodeID) bool) []NodeID {
	var out []NodeID
	t.Walk(t.root, func(id NodeID, _ int) bool {
		if keep(id) {
			out = append(out, id)
		}
		return true
	})
	return out
}

// CollectKind returns every attached node of the given kinds in document
// order.
func (t *Tree) CollectKind(kinds ...Kind) []NodeID {
	return t.Collect(func(id NodeID) bool {
		k := t.nodes[id].Kind
		for _, want := range kinds {
			if k == want {
				return true
			}
		}
		return false
	})
}

// CopySubtree deep-copies the subtree at srcID of src into t and returns the
// new, detached subtree root. src may be t itself.
func (t *Tree) CopySubtree(src *Tree, srcID NodeID) NodeID {
	n := src.nodes[srcID]
	id := t.alloc(Node{
		Kind:   n.Kind,
		Tag:    n.Tag,
		Attrs:  cloneAttrs(n.Attrs),
		Text:   n.Text,
		Parent: NoNode,
	})
	// src.nodes may be t.nodes; copy the child list before allocating more.
	kids := make([]NodeID, len(n.Children))
	copy(kids, n.Children)
	for _, c := range kids {
		t.Append(id, t.CopySubtree(src, c))
	}
	return id
}

// Clone returns a compacted deep copy holding only attached nodes.
func (t *Tree) Clone() *Tree {
	root := t.nodes[t.root]
	out := NewTreeWithRoot(root.Tag, root.Attrs)
	for _, c := range root.Children {
		out.Append(out.root, out.CopySubtree(t, c))
	}
	return out
}

// Equal reports whether the attached parts of t and other are structurally
// identical: same kinds, tags, attributes in order, text and child order.
func (t *Tree) Equal(other *Tree) bool {
	return SubtreeEqual(t, t.root, other, other.root)
}

// SubtreeEqual compares the subtree at a in ta with the subtree at b in tb.
func SubtreeEqual(ta *Tree, a NodeID, tb *Tree, b NodeID) bool {
	na, nb := ta.nodes[a], tb.nodes[b]
	if na.Kind != nb.Kind || na.Tag != nb.Tag || na.Text != nb.Text {
		return false
	}
	if len(na.Attrs) != len(nb.Attrs) || len(na.Children) != len(nb.Children) {
		return false
	}
	for i := range na.Attrs {
		if na.Attrs[i] != nb.Attrs[i] {
			return false
		}
	}
	for i := range na.Children {
		if !SubtreeEqual(ta, na.Children[i], tb, nb.Children[i]) {
			return false
		}
	}
	return true
}

// ChildNames returns the name attributes of id's container and block
// children, in order.
func (t *Tree) ChildNames(id NodeID) []string {
	var names []string
	for _, c := range t.nodes[id].Children {
		if t.nodes[c].Kind.IsStructural() {
			names = append(names, t.Name(c))
		}
	}
	return names
}

// Find returns the first attached container or block named name.
func (t *Tree) Find(name string) (NodeID, bool) {
	found := NoNode
	t.Walk(t.root, func(id NodeID, _ int) bool {
		if found != NoNode {
			return false
		}
		if t.nodes[id].Kind.IsStructural() && t.Name(id) == name {
			found = id
			return false
		}
		return true
	})
	return found, found != NoNode
}

func cloneAttrs(attrs []Attr) []Attr {
	if len(attrs) == 0 {
		return nil
	}
	out := make([]Attr, len(attrs))
	copy(out, attrs)
	return out
}
