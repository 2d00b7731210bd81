package layout

import (
	"fmt"
	"strings"
)

// Directive is the decoded form of a directive node.
type Directive struct {
	Node NodeID
	Kind Kind

	// Target is the name a remove or reference acts on, or the element a
	// move relocates.
	Target string

	Destination string
	Before      string
	After       string

	Handle string

	// Remove is set on a reference carrying remove="true".
	Remove bool
}

// DirectiveOf decodes the directive at id. ok is false when id is not a
// directive node.
func DirectiveOf(t *Tree, id NodeID) (d Directive, ok bool) {
	k := t.Kind(id)
	if !k.IsDirective() {
		return Directive{}, false
	}

	d = Directive{Node: id, Kind: k}
	switch k {
	case KindRemove:
		d.Target = t.Name(id)
		d.Remove = true
	case KindMove:
		d.Target = t.AttrOr(id, "element", "")
		d.Destination = t.AttrOr(id, "destination", "")
		d.Before = t.AttrOr(id, "before", "")
		d.After = t.AttrOr(id, "after", "")
	case KindReferenceBlock, KindReferenceContainer:
		d.Target = t.Name(id)
		d.Remove = isTrue(t.AttrOr(id, "remove", ""))
	case KindUpdate:
		d.Handle = t.AttrOr(id, "handle", "")
	}
	return d, true
}

// String renders the directive the way it reads in layout XML.
func (d Directive) String() string {
	switch d.Kind {
	case KindRemove:
		return fmt.Sprintf(`remove name=%q`, d.Target)
	case KindMove:
		s := fmt.Sprintf(`move element=%q destination=%q`, d.Target, d.Destination)
		if d.Before != "" {
			s += fmt.Sprintf(` before=%q`, d.Before)
		}
		if d.After != "" {
			s += fmt.Sprintf(` after=%q`, d.After)
		}
		return s
	case KindReferenceBlock, KindReferenceContainer:
		s := fmt.Sprintf(`%s name=%q`, d.Kind, d.Target)
		if d.Remove {
			s += ` remove="true"`
		}
		return s
	case KindUpdate:
		return fmt.Sprintf(`update handle=%q`, d.Handle)
	}
	return d.Kind.String()
}

// IsRemoval reports whether applying d detaches its target.
func (d Directive) IsRemoval() bool {
	return d.Remove
}

func isTrue(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "1", "yes":
		return true
	}
	return false
}
