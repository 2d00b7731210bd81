package blocks

import (
	"context"
	"html/template"
	"io"

	"github.com/a-h/templ"

	"github.com/conneroisu/stratum/internal/errors"
)

// TemplateData is the dot value a block template executes with.
type TemplateData struct {
	Name    string
	TypeRef string
	Data    map[string]any
}

// Template renders the file named by its template data value. Without a
// template it renders its children. Inside the template:
//
//	{{ child "name" }}   output of the named child
//	{{ children }}       output of every child in order
//	{{ data "key" }}     a data bag value
//	{{ has "name" }}     whether a child with that name exists
type Template struct {
	Resolver *TemplateResolver
}

// declared lets templates parse before per-render functions are bound.
var declared = template.FuncMap{
	"child":    func(string) template.HTML { return "" },
	"children": func() template.HTML { return "" },
	"data":     func(string) any { return nil },
	"has":      func(string) bool { return false },
}

// Render implements Block.
func (b Template) Render(ctx context.Context, n *Node, r ChildRenderer) (string, error) {
	id := n.GetString("template")
	if id == "" {
		return RenderChildren(ctx, n, r), nil
	}
	if b.Resolver == nil {
		return "", errors.ErrTemplateNotFound(id).WithBlock(n.Name)
	}

	parsed, err := b.Resolver.Parse(id, declared)
	if err != nil {
		return "", err
	}
	t, err := parsed.Clone()
	if err != nil {
		return "", errors.WrapTemplate(err, id)
	}
	t.Funcs(template.FuncMap{
		"child": func(name string) template.HTML {
			c, ok := n.Child(name)
			if !ok {
				return ""
			}
			return template.HTML(r.RenderNode(ctx, c)) //nolint:gosec // block output is already escaped
		},
		"children": func() template.HTML {
			return template.HTML(RenderChildren(ctx, n, r)) //nolint:gosec // block output is already escaped
		},
		"data": func(key string) any {
			v, _ := n.Get(key)
			return v
		},
		"has": func(name string) bool {
			_, ok := n.Child(name)
			return ok
		},
	})

	data := TemplateData{Name: n.Name, TypeRef: n.TypeRef, Data: n.Data}
	c := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		return t.Execute(w, data)
	})
	out, err := renderComponent(ctx, c)
	if err != nil {
		return "", errors.WrapTemplate(err, id).WithBlock(n.Name)
	}
	return out, nil
}
