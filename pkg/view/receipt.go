package view

import (
	"fmt"
	"log/slog"

	"github.com/vango-dev/billform/pkg/dom"
	"github.com/vango-dev/billform/pkg/receipt"
	"github.com/vango-dev/billform/pkg/reconcile"
	"github.com/vango-dev/billform/pkg/runtime"
)

// State slots of the receipt component.
const (
	slotCatalog = iota // label dictionaries
	slotQuery          // document fields
	slotLabels         // labels derived from catalog, language and doc type
)

// Client actions emitted through Dispatch patches.
const (
	ActionPrint = "print"
	ActionURL   = "url"
)

// Receipt is the editable document component.
type Receipt struct {
	doc     *dom.Document
	sched   *runtime.Scheduler
	catalog *receipt.Catalog
	logger  *slog.Logger

	q      receipt.Query
	labels receipt.Labels
	format receipt.Formatter

	// Catalog lists as of the current pass. The watcher can swap the
	// catalog between two reads, so each pass reads them once.
	langList []receipt.Lang
	docList  []receipt.DocType

	langs *reconcile.List[string, langCtx]
	docs  *reconcile.List[string, docCtx]
	items *reconcile.List[string, itemCtx]

	roots     []*dom.Node
	label     map[string]*dom.Node // text nodes by label key
	labelKeys []string
	fields    map[string]*dom.Node // editable elements by query key
	fieldKeys []string
	total     *dom.Node

	hook    *runtime.Hook
	lastURL string
	updates int
	mounted bool
}

// Option configures a Receipt.
type Option func(*Receipt)

// WithLogger sets the component logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Receipt) {
		if l != nil {
			r.logger = l
		}
	}
}

// New creates a receipt component for q. Nothing is built until Mount.
func New(doc *dom.Document, sched *runtime.Scheduler, catalog *receipt.Catalog, q receipt.Query, opts ...Option) *Receipt {
	q = q.Clone()
	q.Normalize()
	r := &Receipt{
		doc:     doc,
		sched:   sched,
		catalog: catalog,
		logger:  slog.Default().With("component", "receipt"),
		q:       q,
		label:   make(map[string]*dom.Node),
		fields:  make(map[string]*dom.Node),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.langs = reconcile.NewList(langKey, r.newLangButton, true)
	r.docs = reconcile.NewList(docKey, r.newDocButton, true)
	r.items = reconcile.NewList(itemKey, r.newItemRow, true)
	r.hook = runtime.NewHook(r.syncURL)
	return r
}

// Query returns a copy of the current document state.
func (r *Receipt) Query() receipt.Query {
	return r.q.Clone()
}

// Labels returns the labels currently shown.
func (r *Receipt) Labels() receipt.Labels {
	return r.labels
}

// Field returns the editable element bound to a query key, or nil.
func (r *Receipt) Field(key string) *dom.Node {
	return r.fields[key]
}

// Row returns the cells of item row i.
func (r *Receipt) Row(i int) (desc, price, qty, amt *dom.Node, ok bool) {
	b, found := r.items.Lookup(itemKey(itemCtx{Index: i}))
	if !found {
		return nil, nil, nil, nil, false
	}
	row := b.(*itemRow)
	return row.desc, row.price, row.qty, row.amt, true
}

// Total returns the element holding the formatted total.
func (r *Receipt) Total() *dom.Node {
	return r.total
}

// Stats returns the accumulated block operations of the three keyed lists.
func (r *Receipt) Stats() reconcile.Stats {
	var s reconcile.Stats
	s.Add(r.langs.Stats)
	s.Add(r.docs.Stats)
	s.Add(r.items.Stats)
	return s
}

// Mount builds the document and inserts it into target.
func (r *Receipt) Mount(target *dom.Node) error {
	if r.mounted {
		return fmt.Errorf("view: receipt already mounted")
	}
	r.derive()
	r.lastURL = r.url()

	b := &builder{doc: r.doc}

	// Toolbar: language and document type switches.
	toolbar := b.el(nil, "div", classToolbar)
	sep := b.space(toolbar)
	r.snapshot()
	if err := r.langs.Init(r.langCount(), r.langContext); err != nil {
		return err
	}
	if err := r.langs.Mount(toolbar, sep); err != nil {
		return err
	}
	if err := r.docs.Init(r.docCount(), r.docContext); err != nil {
		return err
	}
	if err := r.docs.Mount(toolbar, nil); err != nil {
		return err
	}

	sheet := b.el(nil, "div", classSheet, dom.A("style", styleSheet))

	// Title and issuer.
	head := b.el(sheet, "div", classLine)
	r.addLabel("title", b.text(b.el(head, "h1", classTitle), r.labels.Title))
	b.space(head)
	issuer := b.el(head, "div", classIssuer)
	r.bind(b, issuer, "p", "break-all mb-2", receipt.KeyRName)
	b.space(issuer)
	r.bind(b, issuer, "p", "break-all mb-2", receipt.KeyRAddress)
	b.space(issuer)
	r.bind(b, issuer, "p", "break-all", receipt.KeyRID)

	info := b.el(sheet, "div", "flex")

	// Number and date boxes.
	meta := b.el(info, "div", "mr-4 ml-4 flex-[1]")
	for _, f := range []struct{ label, key string }{{"no", receipt.KeyNo}, {"date", receipt.KeyDate}} {
		box := b.el(meta, "div", classBox)
		r.addLabel(f.label, b.text(b.el(box, "div", classCaption), r.labelText(f.label)))
		b.space(box)
		r.bind(b, box, "p", classBoxValue, f.key)
	}

	// Customer.
	customer := b.el(info, "div", "flex-[2]")
	r.addLabel("customer", b.text(b.el(customer, "h3", "text-center text-lg font-semibold"), r.labels.Customer))
	for _, f := range []struct{ label, key string }{
		{"name", receipt.KeyName},
		{"address", receipt.KeyAddress},
		{"id", receipt.KeyID},
	} {
		line := b.el(customer, "div", classLine)
		r.addLabel(f.label, b.text(b.el(line, "div", classCaption), r.labelText(f.label)))
		b.space(line)
		r.bind(b, line, "p", classField, f.key)
	}

	// Items.
	table := b.el(sheet, "table", "mb-4 w-full")
	headRow := b.el(b.el(table, "thead", ""), "tr", "font-bold")
	descHead := b.el(headRow, "td", classHeadDesc)
	r.addLabel("desc", b.text(descHead, r.labels.Desc))
	b.space(descHead)
	add := b.el(descHead, "button", classRowButton)
	b.text(add, "+")
	r.doc.On(add, "click", func(dom.Event) { r.AddItem() })
	b.space(descHead)
	remove := b.el(descHead, "button", classRowButton)
	b.text(remove, "-")
	r.doc.On(remove, "click", func(dom.Event) { r.RemoveItem() })
	for _, key := range []string{"price", "qty", "amt"} {
		r.addLabel(key, b.text(b.el(headRow, "td", classHeadNum), r.labelText(key)))
	}

	tbody := b.el(table, "tbody", "")
	if err := r.items.Init(r.q.Rows(), r.itemContext); err != nil {
		return err
	}
	if err := r.items.Mount(tbody, nil); err != nil {
		return err
	}

	foot := b.el(table, "tfoot", "")
	totalRow := b.el(foot, "tr", "font-bold")
	b.el(totalRow, "td", "")
	b.el(totalRow, "td", "p-2 border-r-2 border-[#b0a8b9]")
	r.addLabel("total", b.text(b.el(totalRow, "td", "p-2 border-r-2 border-b-2 border-[#b0a8b9] text-right whitespace-nowrap"), r.labels.Total))
	r.total = b.el(totalRow, "td", "p-2 border-b-2 border-[#b0a8b9] text-right whitespace-nowrap")
	r.doc.SetText(r.total, r.format.Money(r.q.Total()))
	curRow := b.el(foot, "tr", "")
	b.el(curRow, "td", "")
	b.el(curRow, "td", "")
	r.addLabel("cur", b.text(b.el(curRow, "td", "p-2 text-right whitespace-nowrap"), r.labels.Cur))
	r.bind(b, curRow, "td", "p-2 text-right whitespace-nowrap", receipt.KeyCur)

	// Signature and thanks.
	bottom := b.el(sheet, "div", "flex")
	sign := b.el(b.el(bottom, "div", "flex-[2] mr-4 ml-4"), "div", classLine)
	r.addLabel("rSign", b.text(b.el(sign, "div", "mr-2 font-bold"), r.labels.RSign))
	b.space(sign)
	b.editable(sign, "p", "break-all flex-grow border-b-2 border-[#b0a8b9]", "")
	r.addLabel("thank", b.text(b.el(bottom, "div", "flex-[1] font-bold text-right"), r.labels.Thank))

	printBar := b.el(nil, "div", classToolbar)
	printBtn := b.el(printBar, "button", classPrint)
	b.text(printBtn, "Print")
	r.doc.On(printBtn, "click", func(dom.Event) { r.Print() })

	if b.err != nil {
		return fmt.Errorf("view: build receipt: %w", b.err)
	}

	r.roots = []*dom.Node{toolbar, sheet, printBar}
	for _, n := range r.roots {
		if err := r.doc.Append(target, n); err != nil {
			return fmt.Errorf("view: mount receipt: %w", err)
		}
	}
	r.mounted = true
	return nil
}

func (r *Receipt) addLabel(key string, n *dom.Node) {
	r.label[key] = n
	r.labelKeys = append(r.labelKeys, key)
}

// bind creates an editable element whose text follows the query field key.
func (r *Receipt) bind(b *builder, parent *dom.Node, tag, class, key string) {
	n := b.editable(parent, tag, class, r.scalar(key))
	r.fields[key] = n
	r.fieldKeys = append(r.fieldKeys, key)
	r.doc.On(n, "input", func(ev dom.Event) {
		r.doc.SyncText(n, ev.Value)
		r.setScalar(key, ev.Value)
	})
}

// Destroy tears the component down. detach removes its nodes from the tree.
func (r *Receipt) Destroy(detach bool) error {
	if !r.mounted {
		return nil
	}
	r.mounted = false
	var first error
	for _, l := range []interface{ Destroy(bool) error }{r.langs, r.docs, r.items} {
		if err := l.Destroy(false); err != nil && first == nil {
			first = err
		}
	}
	for _, n := range r.roots {
		if detach {
			r.doc.Detach(n)
		}
		r.doc.Release(n)
	}
	r.roots = nil
	clear(r.label)
	clear(r.fields)
	r.labelKeys, r.fieldKeys = nil, nil
	return first
}

// Update brings the tree in line with the state marked in dirty.
func (r *Receipt) Update(dirty runtime.Dirty) error {
	if !r.mounted {
		return nil
	}
	if dirty.Has(runtime.Bit(slotCatalog) | runtime.Bit(slotQuery)) {
		before := r.labels
		r.derive()
		if r.labels != before {
			dirty = dirty.Set(slotLabels)
		}
		r.snapshot()
		if err := r.langs.Update(r.langCount(), r.langContext, dirty); err != nil {
			return fmt.Errorf("language buttons: %w", err)
		}
		if err := r.docs.Update(r.docCount(), r.docContext, dirty); err != nil {
			return fmt.Errorf("document buttons: %w", err)
		}
	}

	if dirty.Has(runtime.Bit(slotLabels)) {
		for _, key := range r.labelKeys {
			r.doc.SetText(r.label[key], r.labelText(key))
		}
	}

	if dirty.Has(runtime.Bit(slotQuery)) {
		for _, key := range r.fieldKeys {
			n := r.fields[key]
			if v := r.scalar(key); v != n.Text() {
				r.doc.SetText(n, v)
			}
		}
		if err := r.items.Update(r.q.Rows(), r.itemContext, dirty); err != nil {
			return fmt.Errorf("item rows: %w", err)
		}
		r.doc.SetText(r.total, r.format.Money(r.q.Total()))
	}
	return nil
}

// BeforeUpdate counts updates.
func (r *Receipt) BeforeUpdate() {
	r.updates++
}

// AfterUpdate returns the hook that publishes the shareable URL.
func (r *Receipt) AfterUpdate() *runtime.Hook {
	return r.hook
}

// Updates returns the number of updates since the component was created.
func (r *Receipt) Updates() int {
	return r.updates
}

// InvalidateCatalog marks the label catalog changed, e.g. after a reload.
func (r *Receipt) InvalidateCatalog() {
	r.sched.Invalidate(r, slotCatalog)
}

// SetLang switches the label language.
func (r *Receipt) SetLang(lang receipt.Lang) {
	r.q.Lang = lang
	r.sched.Invalidate(r, slotQuery)
}

// SetDoc switches the document type.
func (r *Receipt) SetDoc(doc receipt.DocType) {
	r.q.Doc = doc
	r.sched.Invalidate(r, slotQuery)
}

// AddItem appends a blank row.
func (r *Receipt) AddItem() {
	r.q.AddItem()
	r.sched.Invalidate(r, slotQuery)
}

// RemoveItem drops the last row.
func (r *Receipt) RemoveItem() {
	r.q.RemoveItem()
	r.sched.Invalidate(r, slotQuery)
}

// Print asks the client to open the print dialog.
func (r *Receipt) Print() {
	r.doc.Emit(ActionPrint, "")
}

func (r *Receipt) setItem(i int, key, value string) {
	if i < 0 || i >= r.q.Rows() {
		r.logger.Warn("input for missing row", "row", i, "field", key)
		return
	}
	switch key {
	case receipt.KeyDesc:
		r.q.Desc[i] = value
	case receipt.KeyPrice:
		r.q.Price[i] = value
	case receipt.KeyQty:
		r.q.Qty[i] = value
	}
	r.sched.Invalidate(r, slotQuery)
}

func (r *Receipt) scalarRef(key string) *string {
	switch key {
	case receipt.KeyCur:
		return &r.q.Cur
	case receipt.KeyRName:
		return &r.q.RName
	case receipt.KeyRAddress:
		return &r.q.RAddress
	case receipt.KeyRID:
		return &r.q.RID
	case receipt.KeyDate:
		return &r.q.Date
	case receipt.KeyNo:
		return &r.q.No
	case receipt.KeyName:
		return &r.q.Name
	case receipt.KeyAddress:
		return &r.q.Address
	case receipt.KeyID:
		return &r.q.ID
	}
	return nil
}

func (r *Receipt) scalar(key string) string {
	if p := r.scalarRef(key); p != nil {
		return *p
	}
	return ""
}

func (r *Receipt) setScalar(key, value string) {
	p := r.scalarRef(key)
	if p == nil {
		return
	}
	*p = value
	r.sched.Invalidate(r, slotQuery)
}

// derive recomputes the labels and formatter from the query.
func (r *Receipt) derive() {
	lang := r.catalog.Resolve(r.q.Lang)
	r.labels = r.catalog.Labels(lang, r.q.Doc)
	r.format = receipt.FormatterFor(lang)
}

func (r *Receipt) labelText(key string) string {
	l := r.labels
	switch key {
	case "title":
		return l.Title
	case "no":
		return l.No
	case "date":
		return l.Date
	case "customer":
		return l.Customer
	case "name":
		return l.Name
	case "address":
		return l.Address
	case "id":
		return l.ID
	case "desc":
		return l.Desc
	case "price":
		return l.Price
	case "qty":
		return l.Qty
	case "amt":
		return l.Amt
	case "total":
		return l.Total
	case "cur":
		return l.Cur
	case "rSign":
		return l.RSign
	case "thank":
		return l.Thank
	}
	return ""
}

func (r *Receipt) snapshot() {
	r.langList = r.catalog.Languages()
	r.docList = r.catalog.DocTypes(r.q.Lang)
}

func (r *Receipt) langCount() int {
	return len(r.langList)
}

func (r *Receipt) langContext(i int) langCtx {
	lang := r.langList[i]
	return langCtx{
		Index:    i,
		Lang:     lang,
		Caption:  r.catalog.Button(lang),
		Selected: r.q.Lang == lang,
	}
}

func (r *Receipt) docCount() int {
	return len(r.docList)
}

func (r *Receipt) docContext(i int) docCtx {
	doc := r.docList[i]
	return docCtx{
		Index:    i,
		Doc:      doc,
		Title:    r.catalog.Labels(r.q.Lang, doc).Title,
		Selected: r.q.Doc == doc,
	}
}

func (r *Receipt) itemContext(i int) itemCtx {
	return itemCtx{
		Index:  i,
		Desc:   r.q.Desc[i],
		Price:  r.q.Price[i],
		Qty:    r.q.Qty[i],
		Amount: r.q.Amount(i),
		Format: r.format,
	}
}

func (r *Receipt) url() string {
	v := r.q.Values()
	return "?" + v.Encode()
}

// syncURL publishes the query string of the current state when it changed.
func (r *Receipt) syncURL() {
	if u := r.url(); u != r.lastURL {
		r.lastURL = u
		r.doc.Emit(ActionURL, u)
	}
}
