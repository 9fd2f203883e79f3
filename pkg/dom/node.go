package dom

import (
	"sort"
	"strings"
)

// Kind is the node type discriminator.
type Kind uint8

const (
	KindElement Kind = iota // <div>, <button>, etc.
	KindText                // Plain text node
)

// String returns the string representation of the Kind.
func (k Kind) String() string {
	switch k {
	case KindElement:
		return "Element"
	case KindText:
		return "Text"
	default:
		return "Unknown"
	}
}

// Attr represents a single attribute.
type Attr struct {
	Key   string
	Value string
}

// A is shorthand for building an Attr.
func A(key, value string) Attr {
	return Attr{Key: key, Value: value}
}

// Event is a client event delivered to a node's handler.
type Event struct {
	Type  string // "click", "input", "focus", "blur"
	Value string // textContent of the target for input events
}

// Handler handles an event dispatched to a node.
type Handler func(ev Event)

// Node is a node of the retained tree.
type Node struct {
	Kind Kind
	Tag  string
	HID  string

	text     string
	attrs    []Attr
	handlers map[string]Handler
	parent   *Node
	children []*Node
	doc      *Document
}

// Parent returns the parent node, or nil if detached.
func (n *Node) Parent() *Node {
	return n.parent
}

// Children returns the child nodes. The slice must not be modified.
func (n *Node) Children() []*Node {
	return n.children
}

// Text returns the data of a text node, or the concatenated text content
// of an element.
func (n *Node) Text() string {
	if n.Kind == KindText {
		return n.text
	}
	var b strings.Builder
	n.collectText(&b)
	return b.String()
}

func (n *Node) collectText(b *strings.Builder) {
	for _, c := range n.children {
		if c.Kind == KindText {
			b.WriteString(c.text)
		} else {
			c.collectText(b)
		}
	}
}

// Attr returns the value of the attribute with the given key.
func (n *Node) Attr(key string) (string, bool) {
	for _, a := range n.attrs {
		if a.Key == key {
			return a.Value, true
		}
	}
	return "", false
}

// Attrs returns the attributes in insertion order. The slice must not be modified.
func (n *Node) Attrs() []Attr {
	return n.attrs
}

// Events returns the names of the events this node listens to, sorted.
func (n *Node) Events() []string {
	if len(n.handlers) == 0 {
		return nil
	}
	names := make([]string, 0, len(n.handlers))
	for name := range n.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IndexOf returns the position of child among n's children, or -1.
func (n *Node) IndexOf(child *Node) int {
	for i, c := range n.children {
		if c == child {
			return i
		}
	}
	return -1
}

// Connected reports whether the node is reachable from its document root.
func (n *Node) Connected() bool {
	if n.doc == nil {
		return false
	}
	for p := n; p != nil; p = p.parent {
		if p == n.doc.root {
			return true
		}
	}
	return false
}

// contains reports whether other is n or one of its descendants.
func (n *Node) contains(other *Node) bool {
	for p := other; p != nil; p = p.parent {
		if p == n {
			return true
		}
	}
	return false
}

func (n *Node) removeChild(child *Node) {
	if i := n.IndexOf(child); i >= 0 {
		n.children = append(n.children[:i], n.children[i+1:]...)
	}
	child.parent = nil
}

// Walk calls fn for n and each descendant in document order.
// Returning false from fn skips the node's children.
func Walk(n *Node, fn func(*Node) bool) {
	if n == nil {
		return
	}
	if !fn(n) {
		return
	}
	for _, c := range n.children {
		Walk(c, fn)
	}
}
