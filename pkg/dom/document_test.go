package dom

import (
	"errors"
	"testing"
)

func childHIDs(n *Node) []string {
	var out []string
	for _, c := range n.Children() {
		out = append(out, c.HID)
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestDetachedMutationsAreNotJournalled(t *testing.T) {
	doc := NewDocument()
	row := doc.Element("tr", A("class", "row"))
	cell := doc.Element("td")
	if err := doc.Append(row, cell); err != nil {
		t.Fatalf("Append: %v", err)
	}
	doc.SetText(cell, "hello")
	doc.SetAttr(row, "class", "other")

	if doc.Pending() != 0 {
		t.Errorf("Pending = %d, want 0", doc.Pending())
	}
}

func TestInsertConnectedJournalsSnapshot(t *testing.T) {
	doc := NewDocument()
	row := doc.Element("tr")
	cell := doc.Element("td")
	doc.Append(row, cell)
	doc.SetText(cell, "before")

	if err := doc.Append(doc.Root(), row); err != nil {
		t.Fatalf("Append: %v", err)
	}
	doc.SetText(cell, "after")

	patches := doc.Drain()
	if len(patches) != 2 {
		t.Fatalf("Expected 2 patches, got %d", len(patches))
	}
	if patches[0].Op != PatchInsertNode {
		t.Fatalf("Op = %v, want InsertNode", patches[0].Op)
	}
	if patches[0].ParentID != RootHID {
		t.Errorf("ParentID = %q, want %q", patches[0].ParentID, RootHID)
	}
	snap := patches[0].Node
	if got := snap.Children[0].Children[0].Text; got != "before" {
		t.Errorf("snapshot text = %q, want %q (snapshot must not follow later edits)", got, "before")
	}
	if patches[1].Op != PatchSetText || patches[1].HID != cell.HID || patches[1].Value != "after" {
		t.Errorf("second patch = %+v, want SetText on cell", patches[1])
	}
	if doc.Pending() != 0 {
		t.Errorf("Pending after Drain = %d, want 0", doc.Pending())
	}
}

func TestInsertBeforeMovesAttachedNode(t *testing.T) {
	doc := NewDocument()
	root := doc.Root()
	a, b, c := doc.Element("li"), doc.Element("li"), doc.Element("li")
	for _, n := range []*Node{a, b, c} {
		doc.Append(root, n)
	}
	doc.Drain()

	if err := doc.InsertBefore(root, c, a); err != nil {
		t.Fatalf("InsertBefore: %v", err)
	}

	want := []string{c.HID, a.HID, b.HID}
	if got := childHIDs(root); !equalStrings(got, want) {
		t.Errorf("children = %v, want %v", got, want)
	}
	patches := doc.Drain()
	if len(patches) != 1 {
		t.Fatalf("Expected 1 patch, got %d", len(patches))
	}
	p := patches[0]
	if p.Op != PatchMoveNode || p.HID != c.HID || p.Before != a.HID || p.ParentID != RootHID {
		t.Errorf("patch = %+v, want MoveNode of c before a", p)
	}
}

func TestInsertBeforeErrors(t *testing.T) {
	doc := NewDocument()
	other := NewDocument()
	parent := doc.Element("div")
	child := doc.Element("span")
	doc.Append(parent, child)
	text := doc.Text("x")
	stranger := doc.Element("p")

	tests := []struct {
		name   string
		parent *Node
		node   *Node
		anchor *Node
		want   error
	}{
		{"foreign node", parent, other.Element("b"), nil, ErrForeignNode},
		{"text parent", text, doc.Element("i"), nil, ErrTextParent},
		{"cycle", child, parent, nil, ErrHierarchy},
		{"anchor not child", parent, doc.Element("i"), stranger, ErrNotChild},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := doc.InsertBefore(tt.parent, tt.node, tt.anchor)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestDetachAndDispatch(t *testing.T) {
	doc := NewDocument()
	btn := doc.Element("button")
	clicks := 0
	doc.On(btn, "click", func(Event) { clicks++ })
	doc.Append(doc.Root(), btn)

	if err := doc.Dispatch(btn.HID, Event{Type: "click"}); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if clicks != 1 {
		t.Errorf("clicks = %d, want 1", clicks)
	}
	if err := doc.Dispatch(btn.HID, Event{Type: "input"}); !errors.Is(err, ErrNoHandler) {
		t.Errorf("err = %v, want ErrNoHandler", err)
	}

	doc.Drain()
	doc.Detach(btn)
	patches := doc.Drain()
	if len(patches) != 1 || patches[0].Op != PatchRemoveNode {
		t.Fatalf("patches = %+v, want one RemoveNode", patches)
	}
	if err := doc.Dispatch(btn.HID, Event{Type: "click"}); !errors.Is(err, ErrUnknownNode) {
		t.Errorf("err = %v, want ErrUnknownNode", err)
	}

	doc.Release(btn)
	if doc.FindByHID(btn.HID) != nil {
		t.Error("released node is still indexed")
	}
	if btn.Events() != nil {
		t.Errorf("Events = %v, want nil after Release", btn.Events())
	}
}

func TestSetTextAndAttrOnlyJournalChanges(t *testing.T) {
	doc := NewDocument()
	p := doc.Element("p")
	doc.Append(doc.Root(), p)
	doc.Drain()

	doc.SetText(p, "a")
	doc.SetText(p, "a")
	doc.SyncText(p, "b")
	doc.SetText(p, "b")
	doc.SetAttr(p, "class", "x")
	doc.SetAttr(p, "class", "x")
	doc.RemoveAttr(p, "class")
	doc.RemoveAttr(p, "class")

	patches := doc.Drain()
	want := []PatchOp{PatchSetText, PatchSetAttr, PatchRemoveAttr}
	if len(patches) != len(want) {
		t.Fatalf("Expected %d patches, got %d: %+v", len(want), len(patches), patches)
	}
	for i, op := range want {
		if patches[i].Op != op {
			t.Errorf("patches[%d].Op = %v, want %v", i, patches[i].Op, op)
		}
	}
	if p.Text() != "b" {
		t.Errorf("Text = %q, want b", p.Text())
	}
}

func TestResyncAndClear(t *testing.T) {
	doc := NewDocument()
	doc.Append(doc.Root(), doc.Element("h1"))
	doc.SetAttr(doc.Root(), "lang", "th")

	patches := doc.Resync()
	if len(patches) != 1 || patches[0].Op != PatchReplaceNode {
		t.Fatalf("Resync = %+v, want one ReplaceNode", patches)
	}
	if len(patches[0].Node.Children) != 1 {
		t.Errorf("snapshot children = %d, want 1", len(patches[0].Node.Children))
	}
	if doc.Pending() != 0 {
		t.Errorf("Pending = %d, want 0 after Resync", doc.Pending())
	}

	doc.Clear()
	if len(doc.Root().Children()) != 0 {
		t.Errorf("root has %d children after Clear", len(doc.Root().Children()))
	}
	if doc.Pending() != 0 {
		t.Errorf("Clear journalled %d patches", doc.Pending())
	}
}
