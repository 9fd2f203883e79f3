package dom

// PatchOp is the type of patch operation.
type PatchOp uint8

const (
	PatchSetText     PatchOp = 0x01 // Update text content (text node data or element textContent)
	PatchSetAttr     PatchOp = 0x02 // Set/update attribute
	PatchRemoveAttr  PatchOp = 0x03 // Remove attribute
	PatchInsertNode  PatchOp = 0x04 // Insert new subtree
	PatchRemoveNode  PatchOp = 0x05 // Remove node
	PatchMoveNode    PatchOp = 0x06 // Move an attached node to a new position
	PatchReplaceNode PatchOp = 0x07 // Replace node (used for full remounts)
	PatchDispatch    PatchOp = 0x20 // Ask the client to run a named action (print)
)

// String returns the string representation of the PatchOp.
func (op PatchOp) String() string {
	switch op {
	case PatchSetText:
		return "SetText"
	case PatchSetAttr:
		return "SetAttr"
	case PatchRemoveAttr:
		return "RemoveAttr"
	case PatchInsertNode:
		return "InsertNode"
	case PatchRemoveNode:
		return "RemoveNode"
	case PatchMoveNode:
		return "MoveNode"
	case PatchReplaceNode:
		return "ReplaceNode"
	case PatchDispatch:
		return "Dispatch"
	default:
		return "Unknown"
	}
}

// Patch represents a single DOM operation to apply on the client.
type Patch struct {
	Op       PatchOp   // Operation type
	HID      string    // Target node's hydration ID
	Key      string    // Attribute key (SetAttr/RemoveAttr) or action name (Dispatch)
	Value    string    // New value
	ParentID string    // Parent for InsertNode/MoveNode
	Before   string    // Sibling to insert before; empty appends
	Node     *Snapshot // For InsertNode/ReplaceNode
}

// Snapshot is an immutable copy of a subtree taken when the subtree was
// journalled. Later mutations of the live nodes do not affect it.
type Snapshot struct {
	Kind     Kind
	Tag      string
	Text     string
	HID      string
	Attrs    []Attr
	Events   []string
	Children []*Snapshot
}

// Snapshot copies the subtree rooted at n.
func (n *Node) Snapshot() *Snapshot {
	if n == nil {
		return nil
	}
	s := &Snapshot{
		Kind: n.Kind,
		Tag:  n.Tag,
		Text: n.text,
		HID:  n.HID,
	}
	if len(n.attrs) > 0 {
		s.Attrs = make([]Attr, len(n.attrs))
		copy(s.Attrs, n.attrs)
	}
	s.Events = n.Events()
	if len(n.children) > 0 {
		s.Children = make([]*Snapshot, len(n.children))
		for i, c := range n.children {
			s.Children[i] = c.Snapshot()
		}
	}
	return s
}
