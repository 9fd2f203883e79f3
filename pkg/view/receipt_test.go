package view

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vango-dev/billform/pkg/dom"
	"github.com/vango-dev/billform/pkg/receipt"
	"github.com/vango-dev/billform/pkg/runtime"
)

type fixture struct {
	t     *testing.T
	doc   *dom.Document
	sched *runtime.Scheduler
	r     *Receipt
}

func mount(t *testing.T, q receipt.Query) *fixture {
	t.Helper()
	doc := dom.NewDocument()
	sched := runtime.NewScheduler(nil)
	r := New(doc, sched, receipt.MustCatalog(), q)
	if err := r.Mount(doc.Root()); err != nil {
		t.Fatalf("Mount: %v", err)
	}
	doc.Drain()
	return &fixture{t: t, doc: doc, sched: sched, r: r}
}

func (f *fixture) fire(n *dom.Node, typ, value string) {
	f.t.Helper()
	if err := f.doc.Dispatch(n.HID, dom.Event{Type: typ, Value: value}); err != nil {
		f.t.Fatalf("Dispatch %s on %s: %v", typ, n.HID, err)
	}
}

func (f *fixture) flush() []dom.Patch {
	f.t.Helper()
	if err := f.sched.Flush(); err != nil {
		f.t.Fatalf("Flush: %v", err)
	}
	return f.doc.Drain()
}

func (f *fixture) toolbar() []*dom.Node {
	var buttons []*dom.Node
	for _, n := range f.doc.Root().Children()[0].Children() {
		if n.Kind == dom.KindElement {
			buttons = append(buttons, n)
		}
	}
	return buttons
}

func patchesFor(patches []dom.Patch, hid string) []dom.Patch {
	var out []dom.Patch
	for _, p := range patches {
		if p.HID == hid {
			out = append(out, p)
		}
	}
	return out
}

func countOps(patches []dom.Patch, op dom.PatchOp) int {
	n := 0
	for _, p := range patches {
		if p.Op == op {
			n++
		}
	}
	return n
}

func TestMountRendersDefaults(t *testing.T) {
	f := mount(t, receipt.NewQuery(receipt.English, ""))

	if got := len(f.doc.Root().Children()); got != 3 {
		t.Fatalf("root children = %d, want 3", got)
	}
	if f.r.Labels().Title != "Cash Sale" {
		t.Errorf("title = %q", f.r.Labels().Title)
	}
	if !strings.Contains(f.doc.Root().Text(), "Cash Sale") {
		t.Error("title text not rendered")
	}
	for i := 0; i < receipt.DefaultRows; i++ {
		if _, _, _, _, ok := f.r.Row(i); !ok {
			t.Errorf("row %d missing", i)
		}
	}
	if _, _, _, _, ok := f.r.Row(receipt.DefaultRows); ok {
		t.Error("unexpected extra row")
	}

	buttons := f.toolbar()
	if len(buttons) != 4 {
		t.Fatalf("toolbar buttons = %d, want 4", len(buttons))
	}
	wantText := []string{"Eng", "ไทย", "Cash Sale", "Receipt"}
	for i, b := range buttons {
		if b.Text() != wantText[i] {
			t.Errorf("button %d = %q, want %q", i, b.Text(), wantText[i])
		}
	}
	if cls, _ := buttons[0].Attr("class"); !strings.Contains(cls, "cursor-default") {
		t.Errorf("selected language class = %q", cls)
	}
	if cls, _ := buttons[1].Attr("class"); !strings.Contains(cls, "cursor-pointer") {
		t.Errorf("idle language class = %q", cls)
	}
}

func TestSwitchLanguagePatchesInPlace(t *testing.T) {
	f := mount(t, receipt.NewQuery(receipt.English, ""))
	before := f.r.Stats()

	f.fire(f.toolbar()[1], "click", "")
	patches := f.flush()

	if got := f.r.Labels().Title; got != "บิลเงินสด" {
		t.Errorf("title = %q, want Thai", got)
	}
	buttons := f.toolbar()
	if buttons[2].Text() != "บิลเงินสด" || buttons[3].Text() != "ใบเสร็จรับเงิน" {
		t.Errorf("doc buttons = %q, %q", buttons[2].Text(), buttons[3].Text())
	}
	if cls, _ := buttons[1].Attr("class"); !strings.Contains(cls, "cursor-default") {
		t.Errorf("Thai button class = %q", cls)
	}

	after := f.r.Stats()
	if after.Created != before.Created || after.Destroyed != before.Destroyed || after.Moved != before.Moved {
		t.Errorf("language switch changed list structure: before %+v after %+v", before, after)
	}
	if n := countOps(patches, dom.PatchInsertNode) + countOps(patches, dom.PatchRemoveNode); n != 0 {
		t.Errorf("language switch journalled %d structural patches", n)
	}
	if countOps(patches, dom.PatchSetText) == 0 || countOps(patches, dom.PatchSetAttr) != 2 {
		t.Errorf("patches = %+v", patches)
	}
}

func TestSwitchDocType(t *testing.T) {
	f := mount(t, receipt.NewQuery(receipt.English, ""))
	f.fire(f.toolbar()[3], "click", "")
	f.flush()

	l := f.r.Labels()
	if l.Title != "Receipt" || l.Name != "Received from" {
		t.Errorf("labels = %+v", l)
	}
	if q := f.r.Query(); q.Doc != receipt.ReceiptDoc {
		t.Errorf("Doc = %q", q.Doc)
	}
}

func TestPriceCellEditing(t *testing.T) {
	f := mount(t, receipt.NewQuery(receipt.English, ""))
	_, price, qty, amt, _ := f.r.Row(0)

	f.fire(price, "focus", "")
	f.fire(price, "input", "1200")
	patches := f.flush()

	if len(patchesFor(patches, price.HID)) != 0 {
		t.Errorf("focused price cell was patched: %+v", patchesFor(patches, price.HID))
	}
	if price.Text() != "1200" {
		t.Errorf("price text = %q, want raw 1200", price.Text())
	}
	if amt.Text() != "" {
		t.Errorf("amount without quantity = %q, want empty", amt.Text())
	}

	f.fire(price, "blur", "")
	if price.Text() != "1,200.00" {
		t.Errorf("blurred price = %q, want 1,200.00", price.Text())
	}

	f.fire(qty, "focus", "")
	f.fire(qty, "input", "2")
	f.fire(qty, "blur", "")
	f.flush()

	if amt.Text() != "2,400.00" {
		t.Errorf("amount = %q, want 2,400.00", amt.Text())
	}
	if f.r.Total().Text() != "2,400.00" {
		t.Errorf("total = %q, want 2,400.00", f.r.Total().Text())
	}
	if q := f.r.Query(); q.Price[0] != "1200" || q.Qty[0] != "2" {
		t.Errorf("query row 0 = %q x %q", q.Price[0], q.Qty[0])
	}

	f.fire(price, "focus", "")
	if price.Text() != "1200" {
		t.Errorf("refocused price = %q, want raw value", price.Text())
	}
}

func TestScalarInputIsNotEchoed(t *testing.T) {
	f := mount(t, receipt.NewQuery(receipt.English, ""))
	name := f.r.Field(receipt.KeyName)
	if name == nil {
		t.Fatal("name field not bound")
	}

	f.fire(name, "input", "Somchai")
	patches := f.flush()

	if len(patchesFor(patches, name.HID)) != 0 {
		t.Errorf("client input echoed back: %+v", patchesFor(patches, name.HID))
	}
	if q := f.r.Query(); q.Name != "Somchai" {
		t.Errorf("Name = %q", q.Name)
	}
}

func TestAddAndRemoveItems(t *testing.T) {
	f := mount(t, receipt.NewQuery(receipt.English, ""))
	buttons := map[string]*dom.Node{}
	dom.Walk(f.doc.Root(), func(n *dom.Node) bool {
		if n.Tag == "button" && (n.Text() == "+" || n.Text() == "-") {
			buttons[n.Text()] = n
		}
		return true
	})

	f.fire(buttons["+"], "click", "")
	patches := f.flush()
	if q := f.r.Query(); q.Rows() != receipt.DefaultRows+1 {
		t.Errorf("Rows = %d", q.Rows())
	}
	if countOps(patches, dom.PatchInsertNode) != 1 {
		t.Errorf("InsertNode patches = %d, want 1", countOps(patches, dom.PatchInsertNode))
	}

	f.fire(buttons["-"], "click", "")
	f.fire(buttons["-"], "click", "")
	patches = f.flush()
	if q := f.r.Query(); q.Rows() != receipt.DefaultRows-1 {
		t.Errorf("Rows = %d", q.Rows())
	}
	if countOps(patches, dom.PatchRemoveNode) != 2 {
		t.Errorf("RemoveNode patches = %d, want 2", countOps(patches, dom.PatchRemoveNode))
	}
	if countOps(patches, dom.PatchMoveNode) != 0 {
		t.Error("removing tail rows moved other rows")
	}
}

func TestPrintAndURLActions(t *testing.T) {
	f := mount(t, receipt.NewQuery(receipt.English, ""))

	var printBtn *dom.Node
	dom.Walk(f.doc.Root(), func(n *dom.Node) bool {
		if n.Tag == "button" && n.Text() == "Print" {
			printBtn = n
		}
		return true
	})
	f.fire(printBtn, "click", "")
	patches := f.doc.Drain()
	if len(patches) != 1 || patches[0].Op != dom.PatchDispatch || patches[0].Key != ActionPrint {
		t.Fatalf("print patches = %+v", patches)
	}

	f.fire(f.r.Field(receipt.KeyNo), "input", "42")
	patches = f.flush()
	var url string
	for _, p := range patches {
		if p.Op == dom.PatchDispatch && p.Key == ActionURL {
			url = p.Value
		}
	}
	if !strings.Contains(url, "no=42") {
		t.Errorf("url action = %q, want no=42", url)
	}

	// No change, no URL action.
	f.r.InvalidateCatalog()
	if n := countOps(f.flush(), dom.PatchDispatch); n != 0 {
		t.Errorf("unchanged state emitted %d actions", n)
	}
}

func TestDestroyDetaches(t *testing.T) {
	f := mount(t, receipt.NewQuery(receipt.Thai, "บาท"))
	if err := f.r.Destroy(true); err != nil {
		t.Fatalf("Destroy: %v", err)
	}
	if n := len(f.doc.Root().Children()); n != 0 {
		t.Errorf("root children after Destroy = %d", n)
	}
	if countOps(f.doc.Drain(), dom.PatchRemoveNode) != 3 {
		t.Error("expected one RemoveNode per root")
	}
	// Updates after Destroy are ignored.
	f.r.AddItem()
	if err := f.sched.Flush(); err != nil {
		t.Errorf("Flush after Destroy: %v", err)
	}
}

const laoLocale = `lang: lo
button: ລາວ
currency: ກີບ
docs:
  - doc: ""
    labels:
      title: ໃບບິນ
      no: ເລກທີ
      date: ວັນທີ
      customer: ລູກຄ້າ
      name: ຊື່
      address: ທີ່ຢູ່
      id: ເລກປະຈຳຕົວ
      desc: ລາຍການ
      price: ລາຄາ
      qty: ຈຳນວນ
      amt: ຈຳນວນເງິນ
      total: ລວມ
      cur: ສະກຸນເງິນ
      rSign: ຜູ້ຮັບເງິນ
      thank: ຂອບໃຈ
`

func TestCatalogShrinksBetweenPasses(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lo.yaml")
	if err := os.WriteFile(path, []byte(laoLocale), 0o644); err != nil {
		t.Fatal(err)
	}
	catalog := receipt.MustCatalog()
	if _, err := catalog.LoadDir(dir); err != nil {
		t.Fatalf("LoadDir: %v", err)
	}

	doc := dom.NewDocument()
	sched := runtime.NewScheduler(nil)
	r := New(doc, sched, catalog, receipt.NewQuery(receipt.English, ""))
	if err := r.Mount(doc.Root()); err != nil {
		t.Fatalf("Mount: %v", err)
	}
	doc.Drain()
	f := &fixture{t: t, doc: doc, sched: sched, r: r}
	if got := len(f.toolbar()); got != 5 {
		t.Fatalf("toolbar buttons = %d, want 5", got)
	}

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	if _, err := catalog.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}

	// Counts and contexts of one pass come from the same catalog read.
	n := r.langCount()
	if n != 3 {
		t.Fatalf("langCount = %d, want 3 until the next pass", n)
	}
	if got := r.langContext(n - 1).Lang; got != receipt.Thai {
		t.Errorf("last language of the pass = %q, want th", got)
	}

	r.InvalidateCatalog()
	f.flush()
	if got := len(f.toolbar()); got != 4 {
		t.Errorf("toolbar buttons after reload = %d, want 4", got)
	}
	if r.langCount() != 2 {
		t.Errorf("langCount = %d, want 2", r.langCount())
	}
}
