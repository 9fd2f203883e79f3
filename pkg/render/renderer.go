package render

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"sort"

	"github.com/vango-dev/billform/pkg/dom"
)

// voidElements have no closing tag.
var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"source": true, "track": true, "wbr": true,
}

// Config configures the renderer.
type Config struct {
	// Hydrate adds data-hid attributes and data-on-<event> markers.
	Hydrate bool

	// Pretty indents block elements. Only for debugging: it adds text
	// content the live tree does not have.
	Pretty bool

	// Indent is the string used per level in pretty mode. Defaults to two
	// spaces.
	Indent string
}

// Renderer writes dom trees as HTML. It keeps no per-render state and is
// safe for concurrent use.
type Renderer struct {
	config Config
}

// NewRenderer creates a renderer.
func NewRenderer(config Config) *Renderer {
	if config.Indent == "" {
		config.Indent = "  "
	}
	return &Renderer{config: config}
}

// RenderToString renders node and its subtree.
func (r *Renderer) RenderToString(node *dom.Node) (string, error) {
	var buf bytes.Buffer
	if err := r.Render(&buf, node); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Render streams node and its subtree to w.
func (r *Renderer) Render(w io.Writer, node *dom.Node) error {
	bw := bufio.NewWriter(w)
	if err := r.renderNode(bw, node, 0); err != nil {
		return err
	}
	return bw.Flush()
}

func (r *Renderer) renderNode(w *bufio.Writer, node *dom.Node, depth int) error {
	if node == nil {
		return nil
	}
	switch node.Kind {
	case dom.KindText:
		_, err := w.WriteString(EscapeHTML(node.Text()))
		return err
	case dom.KindElement:
		return r.renderElement(w, node, depth)
	default:
		return fmt.Errorf("render: unknown node kind %d", node.Kind)
	}
}

func (r *Renderer) renderElement(w *bufio.Writer, node *dom.Node, depth int) error {
	if r.config.Pretty && depth > 0 {
		r.indent(w, depth)
	}
	w.WriteByte('<')
	w.WriteString(node.Tag)
	r.renderAttrs(w, node)
	w.WriteByte('>')

	if voidElements[node.Tag] {
		if r.config.Pretty {
			w.WriteByte('\n')
		}
		return nil
	}

	children := node.Children()
	block := r.config.Pretty && hasElementChild(children)
	if block {
		w.WriteByte('\n')
	}
	for _, c := range children {
		if err := r.renderNode(w, c, depth+1); err != nil {
			return err
		}
	}
	if block {
		r.indent(w, depth)
	}
	w.WriteString("</")
	w.WriteString(node.Tag)
	_, err := w.WriteString(">")
	if r.config.Pretty {
		w.WriteByte('\n')
	}
	return err
}

func (r *Renderer) renderAttrs(w *bufio.Writer, node *dom.Node) {
	attrs := append([]dom.Attr(nil), node.Attrs()...)
	sort.SliceStable(attrs, func(i, j int) bool { return attrs[i].Key < attrs[j].Key })
	for _, a := range attrs {
		fmt.Fprintf(w, ` %s="%s"`, a.Key, EscapeAttr(a.Value))
	}
	if !r.config.Hydrate {
		return
	}
	fmt.Fprintf(w, ` data-hid="%s"`, EscapeAttr(node.HID))
	for _, ev := range node.Events() {
		fmt.Fprintf(w, ` data-on-%s="true"`, ev)
	}
}

func (r *Renderer) indent(w *bufio.Writer, depth int) {
	for i := 0; i < depth; i++ {
		w.WriteString(r.config.Indent)
	}
}

func hasElementChild(children []*dom.Node) bool {
	for _, c := range children {
		if c.Kind == dom.KindElement {
			return true
		}
	}
	return false
}
