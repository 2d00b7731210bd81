package blocks

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"
	"golang.org/x/net/html/atom"

	"github.com/conneroisu/stratum/internal/errors"
)

// Built-in type identifiers.
const (
	TypeContainer = "container"
	TypeText      = "Text"
	TypeHTML      = "Html"
	TypeTemplate  = "Template"
	TypeFallback  = "Fallback"
)

// DefaultContainerTag wraps container children when no htmlTag is set.
const DefaultContainerTag = "div"

// Container wraps its children in an HTML element.
type Container struct{}

// Render writes <htmlTag id=htmlId class=htmlClass>children</htmlTag>.
func (Container) Render(ctx context.Context, n *Node, r ChildRenderer) (string, error) {
	tag := strings.ToLower(strings.TrimSpace(n.GetString("htmlTag")))
	if tag == "" {
		tag = DefaultContainerTag
	}
	if atom.Lookup([]byte(tag)) == 0 {
		return "", errors.New(errors.ErrorTypeBlock, errors.ErrCodeBlockRender,
			fmt.Sprintf("invalid htmlTag %q", tag)).WithBlock(n.Name)
	}

	body := RenderChildren(ctx, n, r)
	c := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var sb strings.Builder
		sb.WriteString("<" + tag)
		if id := n.GetString("htmlId"); id != "" {
			sb.WriteString(` id="` + templ.EscapeString(id) + `"`)
		}
		if class := n.GetString("htmlClass"); class != "" {
			sb.WriteString(` class="` + templ.EscapeString(class) + `"`)
		}
		sb.WriteString(">")
		sb.WriteString(body)
		sb.WriteString("</" + tag + ">")
		_, err := io.WriteString(w, sb.String())
		return err
	})
	return renderComponent(ctx, c)
}

// Text renders its text value escaped, followed by its children.
type Text struct{}

// Render implements Block.
func (Text) Render(ctx context.Context, n *Node, r ChildRenderer) (string, error) {
	c := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := io.WriteString(w, templ.EscapeString(n.GetString("text")))
		return err
	})
	out, err := renderComponent(ctx, c)
	if err != nil {
		return "", err
	}
	return out + RenderChildren(ctx, n, r), nil
}

// HTML renders its html value verbatim, followed by its children. Layout
// files are trusted input.
type HTML struct{}

// Render implements Block.
func (HTML) Render(ctx context.Context, n *Node, r ChildRenderer) (string, error) {
	out, err := renderComponent(ctx, templ.Raw(n.GetString("html")))
	if err != nil {
		return "", err
	}
	return out + RenderChildren(ctx, n, r), nil
}

// Fallback stands in for blocks whose type could not be resolved. It has no
// output of its own and renders its children.
type Fallback struct {
	// Reason is why the requested type was not used.
	Reason string
}

// Render implements Block.
func (f Fallback) Render(ctx context.Context, n *Node, r ChildRenderer) (string, error) {
	return RenderChildren(ctx, n, r), nil
}
