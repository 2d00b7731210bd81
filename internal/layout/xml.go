package layout

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/conneroisu/stratum/internal/errors"
)

// Parse decodes one layout document. The document element becomes the tree
// root; its name is not significant. Whitespace-only text is dropped,
// comments and processing instructions are ignored, and namespace
// declarations are not kept as attributes.
func Parse(r io.Reader) (*Tree, error) {
	dec := xml.NewDecoder(r)
	dec.Strict = true

	var (
		t     *Tree
		stack []NodeID
	)

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, syntaxError(err)
		}

		switch tok := tok.(type) {
		case xml.StartElement:
			attrs := convertAttrs(tok.Attr)
			if t == nil {
				t = NewTreeWithRoot(tok.Name.Local, attrs)
				stack = append(stack, t.Root())
				continue
			}
			if len(stack) == 0 {
				return nil, errors.New(errors.ErrorTypeLayout, errors.ErrCodeMalformedLayout,
					"more than one document element")
			}
			id := t.NewElement(tok.Name.Local, attrs...)
			t.Append(stack[len(stack)-1], id)
			stack = append(stack, id)

		case xml.EndElement:
			stack = stack[:len(stack)-1]

		case xml.CharData:
			text := strings.TrimSpace(string(tok))
			if text == "" || len(stack) == 0 {
				continue
			}
			t.Append(stack[len(stack)-1], t.NewText(text))
		}
	}

	if t == nil {
		return nil, errors.New(errors.ErrorTypeLayout, errors.ErrCodeMalformedLayout,
			"document has no root element")
	}
	return t, nil
}

// ParseString is Parse over a string.
func ParseString(s string) (*Tree, error) {
	return Parse(strings.NewReader(s))
}

// MustParse parses s and panics on error. For tests and fixtures.
func MustParse(s string) *Tree {
	t, err := ParseString(s)
	if err != nil {
		panic(err)
	}
	return t
}

func syntaxError(err error) error {
	e := errors.Wrap(err, errors.ErrorTypeLayout, errors.ErrCodeMalformedLayout, "malformed layout XML")
	if se, ok := err.(*xml.SyntaxError); ok {
		e.Line = se.Line
	}
	return e
}

func convertAttrs(in []xml.Attr) []Attr {
	out := make([]Attr, 0, len(in))
	for _, a := range in {
		if a.Name.Space == "xmlns" || a.Name.Local == "xmlns" {
			continue
		}
		out = append(out, Attr{Name: a.Name.Local, Value: a.Value})
	}
	return out
}

// WriteXML encodes the subtree at id, indented by two spaces.
func (t *Tree) WriteXML(w io.Writer, id NodeID) error {
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := t.encode(enc, id); err != nil {
		return err
	}
	return enc.Flush()
}

func (t *Tree) encode(enc *xml.Encoder, id NodeID) error {
	n := t.nodes[id]
	if n.Kind == KindText {
		return enc.EncodeToken(xml.CharData(n.Text))
	}

	start := xml.StartElement{Name: xml.Name{Local: n.Tag}}
	for _, a := range n.Attrs {
		start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: a.Name}, Value: a.Value})
	}
	if err := enc.EncodeToken(start); err != nil {
		return err
	}
	for _, c := range n.Children {
		if err := t.encode(enc, c); err != nil {
			return err
		}
	}
	return enc.EncodeToken(start.End())
}

// SubtreeXML returns the encoded subtree at id.
func (t *Tree) SubtreeXML(id NodeID) string {
	var buf bytes.Buffer
	if err := t.WriteXML(&buf, id); err != nil {
		return fmt.Sprintf("<!-- encode error: %v -->", err)
	}
	return buf.String()
}

// String returns the whole document as indented XML.
func (t *Tree) String() string {
	return t.SubtreeXML(t.root)
}
