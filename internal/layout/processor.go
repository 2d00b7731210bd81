package layout

import (
	"context"
	"fmt"

	"github.com/conneroisu/stratum/internal/logging"
)

// Skip reasons recorded in a Report.
const (
	ReasonTargetNotFound      = "target not found"
	ReasonDestinationNotFound = "destination not found"
	ReasonSelfMove            = "element is its own destination"
	ReasonDestinationInside   = "destination is inside the moved element"
	ReasonTargetInside        = "target is inside the reference"
	ReasonNoName              = "missing name"
	ReasonUpdateNotExpanded   = "update was not expanded by a merger"
)

// Outcome records what happened to one directive.
type Outcome struct {
	Round     int
	Directive Directive
	Applied   bool
	Reason    string
}

func (o Outcome) String() string {
	if o.Applied {
		return fmt.Sprintf("round %d: applied %s", o.Round, o.Directive)
	}
	return fmt.Sprintf("round %d: skipped %s: %s", o.Round, o.Directive, o.Reason)
}

// Report describes a processing run.
type Report struct {
	Rounds   int
	Outcomes []Outcome
}

// Applied returns the number of directives that changed the tree.
func (r *Report) Applied() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Applied {
			n++
		}
	}
	return n
}

// Skipped returns the outcomes of directives that were no-ops.
func (r *Report) Skipped() []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if !o.Applied {
			out = append(out, o)
		}
	}
	return out
}

func (r *Report) record(round int, d Directive, reason string) {
	r.Outcomes = append(r.Outcomes, Outcome{Round: round, Directive: d, Applied: reason == "", Reason: reason})
}

// Processor applies layout directives with logging.
type Processor struct {
	logger logging.Logger
}

// NewProcessor creates a processor. A nil logger discards output.
func NewProcessor(logger logging.Logger) *Processor {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Processor{logger: logger.WithComponent("processor")}
}

// Process resolves t in place and logs skipped directives at debug level.
func (p *Processor) Process(ctx context.Context, t *Tree) (*Tree, *Report) {
	t, report := ProcessWithReport(t)
	for _, o := range report.Skipped() {
		p.logger.Debug(ctx, "Directive skipped", "directive", o.Directive.String(), "reason", o.Reason)
	}
	p.logger.Debug(ctx, "Directives processed",
		"rounds", report.Rounds, "applied", report.Applied(), "skipped", len(report.Outcomes)-report.Applied())
	return t, report
}

// Process resolves every directive of t in place and returns t.
func Process(t *Tree) *Tree {
	t, _ = ProcessWithReport(t)
	return t
}

// ProcessWithReport resolves every directive of t in place.
//
// Each round collects the directives that are attached and not nested in
// another directive, then runs: index, remove, index, move, reference, and
// drops leftover updates. Every collected directive is detached by the end
// of its round, so directives carried inside a reference are handled in a
// later round once the reference has placed them. Rounds stop when no
// directive is attached; a final index pass merges any remaining duplicate
// names.
func ProcessWithReport(t *Tree) (*Tree, *Report) {
	report := &Report{}
	for {
		active := activeDirectives(t)
		if len(active) == 0 {
			break
		}
		report.Rounds++
		round := report.Rounds

		var removes, moves, refs, updates []Directive
		for _, id := range active {
			d, _ := DirectiveOf(t, id)
			switch {
			case d.IsRemoval():
				removes = append(removes, d)
			case d.Kind == KindMove:
				moves = append(moves, d)
			case d.Kind == KindReferenceBlock || d.Kind == KindReferenceContainer:
				refs = append(refs, d)
			default:
				updates = append(updates, d)
			}
		}

		index := Index(t)
		for _, d := range removes {
			report.record(round, d, applyRemove(t, index, d))
			t.Detach(d.Node)
		}

		index = Index(t)
		for _, d := range moves {
			report.record(round, d, applyMove(t, index, d))
			t.Detach(d.Node)
		}

		for _, d := range refs {
			report.record(round, d, applyReference(t, index, d))
			t.Detach(d.Node)
		}

		for _, d := range updates {
			report.record(round, d, ReasonUpdateNotExpanded)
			t.Detach(d.Node)
		}
	}
	// names injected by the last round may still be declared twice
	Index(t)
	return t, report
}

// activeDirectives returns attached directives that have no directive
// ancestor, in document order.
func activeDirectives(t *Tree) []NodeID {
	var out []NodeID
	t.Walk(t.root, func(id NodeID, _ int) bool {
		if t.nodes[id].Kind.IsDirective() {
			out = append(out, id)
			return false
		}
		return true
	})
	return out
}

func applyRemove(t *Tree, index map[string]NodeID, d Directive) string {
	if d.Target == "" {
		return ReasonNoName
	}
	target, ok := index[d.Target]
	if !ok || !t.Attached(target) {
		return ReasonTargetNotFound
	}
	t.Detach(target)
	return ""
}

func applyMove(t *Tree, index map[string]NodeID, d Directive) string {
	if d.Target == "" {
		return ReasonNoName
	}
	elem, ok := index[d.Target]
	if !ok || !t.Attached(elem) {
		return ReasonTargetNotFound
	}
	dest, ok := index[d.Destination]
	if !ok || !t.Attached(dest) {
		return ReasonDestinationNotFound
	}
	if elem == dest {
		return ReasonSelfMove
	}
	if t.IsAncestor(elem, dest) {
		return ReasonDestinationInside
	}

	t.Detach(elem)
	switch {
	case d.Before == "-":
		t.Insert(dest, 0, elem)
		return ""
	case d.Before != "":
		if sib, ok := t.namedChild(dest, d.Before); ok {
			t.InsertBefore(dest, elem, sib)
			return ""
		}
	}
	if d.After != "" && d.After != "-" {
		if sib, ok := t.namedChild(dest, d.After); ok {
			t.InsertAfter(dest, elem, sib)
			return ""
		}
	}
	t.Append(dest, elem)
	return ""
}

func applyReference(t *Tree, index map[string]NodeID, d Directive) string {
	if d.Target == "" {
		return ReasonNoName
	}
	target, ok := index[d.Target]
	if !ok || !t.Attached(target) {
		return ReasonTargetNotFound
	}
	if t.IsAncestor(d.Node, target) {
		return ReasonTargetInside
	}

	for _, a := range t.nodes[d.Node].Attrs {
		if a.Name == "name" || a.Name == "remove" {
			continue
		}
		t.SetAttr(target, a.Name, a.Value)
	}
	for _, c := range t.Children(d.Node) {
		t.Append(target, c)
	}
	return ""
}

// namedChild returns the container or block child of parent named name.
func (t *Tree) namedChild(parent NodeID, name string) (NodeID, bool) {
	for _, c := range t.nodes[parent].Children {
		if t.nodes[c].Kind.IsStructural() && t.Name(c) == name {
			return c, true
		}
	}
	return NoNode, false
}

// Index maps every container and block name to its node, merging duplicate
// declarations in place.
//
// Among nodes outside directives the later declaration wins: it keeps its
// attributes and position, the earlier node's children move to the front of
// its child list, and the earlier node is detached. A declaration nested in
// an earlier one of the same name lends its tag and attributes to the
// earlier node, and its children take its place. Nodes inside
// directives are indexed only when no node outside directives has the name;
// they are merged in the round after their directive places them.
func Index(t *Tree) map[string]NodeID {
	var outside, inside []NodeID
	var walk func(id NodeID, inDirective bool)
	walk = func(id NodeID, inDirective bool) {
		n := &t.nodes[id]
		if n.Kind.IsDirective() {
			inDirective = true
		} else if n.Kind.IsStructural() && t.Name(id) != "" {
			if inDirective {
				inside = append(inside, id)
			} else {
				outside = append(outside, id)
			}
		}
		for _, c := range n.Children {
			walk(c, inDirective)
		}
	}
	walk(t.root, false)

	index := make(map[string]NodeID, len(outside)+len(inside))
	for _, id := range outside {
		if !t.Attached(id) {
			continue
		}
		name := t.Name(id)
		prev, dup := index[name]
		if !dup || !t.Attached(prev) {
			index[name] = id
			continue
		}
		index[name] = t.mergeDuplicate(prev, id)
	}

	nested := make(map[string]NodeID, len(inside))
	for _, id := range inside {
		if t.Attached(id) {
			nested[t.Name(id)] = id
		}
	}
	for name, id := range nested {
		if _, ok := index[name]; !ok {
			index[name] = id
		}
	}
	return index
}

// mergeDuplicate folds the earlier declaration into the later one and
// returns the survivor.
func (t *Tree) mergeDuplicate(earlier, later NodeID) NodeID {
	if t.IsAncestor(earlier, later) {
		t.nodes[earlier].Kind = t.nodes[later].Kind
		t.nodes[earlier].Tag = t.nodes[later].Tag
		t.ReplaceAttrs(earlier, t.nodes[later].Attrs)
		parent := t.Parent(later)
		at := t.IndexOf(parent, later)
		for i, c := range t.Children(later) {
			t.Insert(parent, at+1+i, c)
		}
		t.Detach(later)
		return earlier
	}
	if t.IsAncestor(later, earlier) {
		t.Detach(earlier)
		return later
	}
	for i, c := range t.Children(earlier) {
		t.Insert(later, i, c)
	}
	t.Detach(earlier)
	return later
}
