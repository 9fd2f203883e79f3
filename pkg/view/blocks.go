package view

import (
	"fmt"

	"github.com/vango-dev/billform/pkg/dom"
	"github.com/vango-dev/billform/pkg/receipt"
	"github.com/vango-dev/billform/pkg/reconcile"
	"github.com/vango-dev/billform/pkg/runtime"
)

// langCtx is the render context of one language button.
type langCtx struct {
	Index    int
	Lang     receipt.Lang
	Caption  string
	Selected bool
}

func langKey(c langCtx) string { return fmt.Sprintf("lang-%d", c.Index) }

type langButton struct {
	r      *Receipt
	key    string
	ctx    langCtx
	button *dom.Node
}

func (r *Receipt) newLangButton(key string, ctx langCtx) reconcile.Block[string] {
	return &langButton{r: r, key: key, ctx: ctx}
}

func (b *langButton) Create() error {
	bld := &builder{doc: b.r.doc}
	b.button = bld.el(nil, "button", tabClass(b.ctx.Selected))
	bld.text(b.button, b.ctx.Caption)
	b.r.doc.On(b.button, "click", func(dom.Event) { b.r.SetLang(b.ctx.Lang) })
	return bld.err
}

func (b *langButton) Mount(target, anchor *dom.Node) error {
	return b.r.doc.InsertBefore(target, b.button, anchor)
}

func (b *langButton) Patch(ctx langCtx, _ runtime.Dirty) error {
	b.ctx = ctx
	b.r.doc.SetText(b.button, ctx.Caption)
	b.r.doc.SetAttr(b.button, "class", tabClass(ctx.Selected))
	return nil
}

func (b *langButton) Destroy(detach bool) error {
	return release(b.r.doc, b.button, detach)
}

func (b *langButton) Key() string      { return b.key }
func (b *langButton) First() *dom.Node { return b.button }

// docCtx is the render context of one document type button.
type docCtx struct {
	Index    int
	Doc      receipt.DocType
	Title    string
	Selected bool
}

func docKey(c docCtx) string { return fmt.Sprintf("doc-%d", c.Index) }

type docButton struct {
	r      *Receipt
	key    string
	ctx    docCtx
	button *dom.Node
}

func (r *Receipt) newDocButton(key string, ctx docCtx) reconcile.Block[string] {
	return &docButton{r: r, key: key, ctx: ctx}
}

func (b *docButton) Create() error {
	bld := &builder{doc: b.r.doc}
	b.button = bld.el(nil, "button", tabClass(b.ctx.Selected))
	bld.text(b.button, b.ctx.Title)
	b.r.doc.On(b.button, "click", func(dom.Event) { b.r.SetDoc(b.ctx.Doc) })
	return bld.err
}

func (b *docButton) Mount(target, anchor *dom.Node) error {
	return b.r.doc.InsertBefore(target, b.button, anchor)
}

func (b *docButton) Patch(ctx docCtx, _ runtime.Dirty) error {
	b.ctx = ctx
	b.r.doc.SetText(b.button, ctx.Title)
	b.r.doc.SetAttr(b.button, "class", tabClass(ctx.Selected))
	return nil
}

func (b *docButton) Destroy(detach bool) error {
	return release(b.r.doc, b.button, detach)
}

func (b *docButton) Key() string      { return b.key }
func (b *docButton) First() *dom.Node { return b.button }

// itemCtx is the render context of one item row.
type itemCtx struct {
	Index  int
	Desc   string
	Price  string
	Qty    string
	Amount float64
	Format receipt.Formatter
}

func itemKey(c itemCtx) string { return fmt.Sprintf("item-%d", c.Index) }

// itemRow is one row of the item table. The price and quantity cells show
// the raw value while focused and the formatted value otherwise.
type itemRow struct {
	r   *Receipt
	key string
	ctx itemCtx

	tr, desc, price, qty, amt *dom.Node

	priceFocused bool
	qtyFocused   bool
}

func (r *Receipt) newItemRow(key string, ctx itemCtx) reconcile.Block[string] {
	return &itemRow{r: r, key: key, ctx: ctx}
}

func (b *itemRow) Create() error {
	doc := b.r.doc
	bld := &builder{doc: doc}
	b.tr = bld.el(nil, "tr", classRow)
	b.desc = bld.editable(b.tr, "td", classCellDesc, b.ctx.Desc)
	bld.space(b.tr)
	b.price = bld.editable(b.tr, "td", classCellNum, b.ctx.Format.Price(b.ctx.Price))
	bld.space(b.tr)
	b.qty = bld.editable(b.tr, "td", classCellNum, b.ctx.Format.Qty(b.ctx.Qty))
	bld.space(b.tr)
	b.amt = bld.el(b.tr, "td", classCellAmt)
	doc.SetText(b.amt, b.ctx.Format.Money(b.ctx.Amount))
	bld.space(b.tr)

	doc.On(b.desc, "input", func(ev dom.Event) {
		doc.SyncText(b.desc, ev.Value)
		b.r.setItem(b.ctx.Index, receipt.KeyDesc, ev.Value)
	})

	doc.On(b.price, "focus", func(dom.Event) {
		b.priceFocused = true
		doc.SetText(b.price, b.r.q.Price[b.ctx.Index])
	})
	doc.On(b.price, "input", func(ev dom.Event) {
		doc.SyncText(b.price, ev.Value)
		b.r.setItem(b.ctx.Index, receipt.KeyPrice, ev.Value)
	})
	doc.On(b.price, "blur", func(dom.Event) {
		b.priceFocused = false
		doc.SetText(b.price, b.r.format.Price(b.r.q.Price[b.ctx.Index]))
	})

	doc.On(b.qty, "focus", func(dom.Event) {
		b.qtyFocused = true
		doc.SetText(b.qty, b.r.q.Qty[b.ctx.Index])
	})
	doc.On(b.qty, "input", func(ev dom.Event) {
		doc.SyncText(b.qty, ev.Value)
		b.r.setItem(b.ctx.Index, receipt.KeyQty, ev.Value)
	})
	doc.On(b.qty, "blur", func(dom.Event) {
		b.qtyFocused = false
		doc.SetText(b.qty, b.r.format.Qty(b.r.q.Qty[b.ctx.Index]))
	})
	return bld.err
}

func (b *itemRow) Mount(target, anchor *dom.Node) error {
	return b.r.doc.InsertBefore(target, b.tr, anchor)
}

func (b *itemRow) Patch(ctx itemCtx, dirty runtime.Dirty) error {
	b.ctx = ctx
	if !dirty.Has(runtime.Bit(slotQuery)) {
		return nil
	}
	doc := b.r.doc
	if ctx.Desc != b.desc.Text() {
		doc.SetText(b.desc, ctx.Desc)
	}
	if !b.priceFocused {
		doc.SetText(b.price, ctx.Format.Price(ctx.Price))
	}
	if !b.qtyFocused {
		doc.SetText(b.qty, ctx.Format.Qty(ctx.Qty))
	}
	doc.SetText(b.amt, ctx.Format.Money(ctx.Amount))
	return nil
}

func (b *itemRow) Destroy(detach bool) error {
	return release(b.r.doc, b.tr, detach)
}

func (b *itemRow) Key() string      { return b.key }
func (b *itemRow) First() *dom.Node { return b.tr }

func release(doc *dom.Document, n *dom.Node, detach bool) error {
	if n == nil {
		return nil
	}
	if detach {
		doc.Detach(n)
	}
	doc.Release(n)
	return nil
}
