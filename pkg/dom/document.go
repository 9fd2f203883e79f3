package dom

import "errors"

// RootHID is the hydration ID of the document root (the #_app container).
const RootHID = "root"

// Tree errors.
var (
	ErrNotChild    = errors.New("dom: anchor is not a child of parent")
	ErrHierarchy   = errors.New("dom: insertion would create a cycle")
	ErrTextParent  = errors.New("dom: text nodes cannot have children")
	ErrForeignNode = errors.New("dom: node belongs to another document")
	ErrUnknownNode = errors.New("dom: no connected node with that HID")
	ErrNoHandler   = errors.New("dom: node has no handler for event")
)

// Document owns a retained tree and its patch journal.
// A Document is not safe for concurrent use; it belongs to the goroutine
// that runs the render loop.
type Document struct {
	root    *Node
	hids    hidSeq
	index   map[string]*Node
	journal []Patch
}

// NewDocument creates a document with an empty root container.
func NewDocument() *Document {
	d := &Document{
		index: make(map[string]*Node),
	}
	d.root = &Node{
		Kind:  KindElement,
		Tag:   "div",
		HID:   RootHID,
		attrs: []Attr{{Key: "id", Value: "_app"}},
		doc:   d,
	}
	d.index[RootHID] = d.root
	return d
}

// Root returns the root container.
func (d *Document) Root() *Node {
	return d.root
}

// Element creates a detached element.
func (d *Document) Element(tag string, attrs ...Attr) *Node {
	n := &Node{
		Kind: KindElement,
		Tag:  tag,
		HID:  d.hids.next(),
		doc:  d,
	}
	for _, a := range attrs {
		if a.Key != "" {
			n.attrs = append(n.attrs, a)
		}
	}
	d.index[n.HID] = n
	return n
}

// Text creates a detached text node.
func (d *Document) Text(s string) *Node {
	n := &Node{
		Kind: KindText,
		HID:  d.hids.next(),
		text: s,
		doc:  d,
	}
	d.index[n.HID] = n
	return n
}

// Space creates a detached single-space text node.
func (d *Document) Space() *Node {
	return d.Text(" ")
}

// Append inserts node as the last child of parent.
func (d *Document) Append(parent, node *Node) error {
	return d.InsertBefore(parent, node, nil)
}

// InsertBefore inserts node into parent before anchor. A nil anchor appends.
// Inserting a node that is already attached moves it.
func (d *Document) InsertBefore(parent, node, anchor *Node) error {
	if parent.doc != d || node.doc != d {
		return ErrForeignNode
	}
	if parent.Kind == KindText {
		return ErrTextParent
	}
	if node.contains(parent) {
		return ErrHierarchy
	}
	if anchor != nil && anchor.parent != parent {
		return ErrNotChild
	}
	if anchor == node {
		return nil
	}

	wasConnected := node.Connected()
	if node.parent != nil {
		node.parent.removeChild(node)
	}

	if anchor == nil {
		parent.children = append(parent.children, node)
	} else {
		i := parent.IndexOf(anchor)
		parent.children = append(parent.children, nil)
		copy(parent.children[i+1:], parent.children[i:])
		parent.children[i] = node
	}
	node.parent = parent

	before := ""
	if anchor != nil {
		before = anchor.HID
	}
	switch parentConnected := parent.Connected(); {
	case parentConnected && wasConnected:
		d.record(Patch{Op: PatchMoveNode, HID: node.HID, ParentID: parent.HID, Before: before})
	case parentConnected:
		d.record(Patch{Op: PatchInsertNode, ParentID: parent.HID, Before: before, Node: node.Snapshot()})
	case wasConnected:
		d.record(Patch{Op: PatchRemoveNode, HID: node.HID})
	}
	return nil
}

// Detach removes node from its parent. It is a no-op for detached nodes.
func (d *Document) Detach(node *Node) {
	if node.parent == nil {
		return
	}
	wasConnected := node.Connected()
	node.parent.removeChild(node)
	if wasConnected {
		d.record(Patch{Op: PatchRemoveNode, HID: node.HID})
	}
}

// Release drops the subtree rooted at node from the HID index and removes
// its handlers. Released nodes can no longer receive events.
func (d *Document) Release(node *Node) {
	Walk(node, func(n *Node) bool {
		if d.index[n.HID] == n {
			delete(d.index, n.HID)
		}
		n.handlers = nil
		return true
	})
}

// SetText sets the data of a text node, or the text content of an element.
// Setting an element's text content replaces its children with a single
// text node.
func (d *Document) SetText(node *Node, s string) {
	if !d.syncText(node, s) {
		return
	}
	if node.Connected() {
		d.record(Patch{Op: PatchSetText, HID: node.HID, Value: s})
	}
}

// SyncText updates the server copy of a node's text without journalling.
// It is used for changes that originate on the client (contenteditable
// input), where the client DOM already holds the new value.
func (d *Document) SyncText(node *Node, s string) {
	d.syncText(node, s)
}

func (d *Document) syncText(node *Node, s string) bool {
	if node.Kind == KindText {
		if node.text == s {
			return false
		}
		node.text = s
		return true
	}
	if len(node.children) == 1 && node.children[0].Kind == KindText {
		if node.children[0].text == s {
			return false
		}
		node.children[0].text = s
		return true
	}
	if len(node.children) == 0 && s == "" {
		return false
	}
	for _, c := range node.children {
		c.parent = nil
		d.Release(c)
	}
	node.children = node.children[:0]
	if s != "" {
		t := d.Text(s)
		t.parent = node
		node.children = append(node.children, t)
	}
	return true
}

// SetAttr sets an attribute, journalling only when the value changes.
func (d *Document) SetAttr(node *Node, key, value string) {
	for i, a := range node.attrs {
		if a.Key == key {
			if a.Value == value {
				return
			}
			node.attrs[i].Value = value
			d.recordAttr(node, key, value)
			return
		}
	}
	node.attrs = append(node.attrs, Attr{Key: key, Value: value})
	d.recordAttr(node, key, value)
}

func (d *Document) recordAttr(node *Node, key, value string) {
	if node.Connected() {
		d.record(Patch{Op: PatchSetAttr, HID: node.HID, Key: key, Value: value})
	}
}

// RemoveAttr removes an attribute if present.
func (d *Document) RemoveAttr(node *Node, key string) {
	for i, a := range node.attrs {
		if a.Key == key {
			node.attrs = append(node.attrs[:i], node.attrs[i+1:]...)
			if node.Connected() {
				d.record(Patch{Op: PatchRemoveAttr, HID: node.HID, Key: key})
			}
			return
		}
	}
}

// On registers the handler for an event on node, replacing any previous one.
// Listeners are part of the node's markup, so they are set before the node
// is connected.
func (d *Document) On(node *Node, event string, h Handler) {
	if node.handlers == nil {
		node.handlers = make(map[string]Handler)
	}
	node.handlers[event] = h
}

// Dispatch delivers a client event to the connected node with the given HID.
func (d *Document) Dispatch(hid string, ev Event) error {
	node := d.index[hid]
	if node == nil || !node.Connected() {
		return ErrUnknownNode
	}
	h := node.handlers[ev.Type]
	if h == nil {
		return ErrNoHandler
	}
	h(ev)
	return nil
}

// FindByHID returns the indexed node with the given HID, or nil.
func (d *Document) FindByHID(hid string) *Node {
	return d.index[hid]
}

// Emit journals a client action such as "print" with an optional argument.
func (d *Document) Emit(action, arg string) {
	d.record(Patch{Op: PatchDispatch, Key: action, Value: arg})
}

// Pending returns the number of journalled patches.
func (d *Document) Pending() int {
	return len(d.journal)
}

// Drain returns the journalled patches and clears the journal.
func (d *Document) Drain() []Patch {
	patches := d.journal
	d.journal = nil
	return patches
}

// Resync discards the journal and returns a single patch that replaces the
// client's root with the current tree.
func (d *Document) Resync() []Patch {
	d.journal = nil
	return []Patch{{Op: PatchReplaceNode, HID: RootHID, Node: d.root.Snapshot()}}
}

// Clear detaches and releases every child of the root without journalling.
// It is used before a full remount, which is followed by Resync.
func (d *Document) Clear() {
	for _, c := range d.root.children {
		c.parent = nil
		d.Release(c)
	}
	d.root.children = nil
	d.journal = nil
}

func (d *Document) record(p Patch) {
	d.journal = append(d.journal, p)
}
