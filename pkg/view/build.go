package view

import "github.com/vango-dev/billform/pkg/dom"

// Tailwind classes of the document markup.
const (
	classToolbar   = "flex flex-wrap justify-center items-center my-4 print:hidden"
	classTab       = "font-bold p-2.5 "
	classTabActive = "text-[#c34a36] bg-white cursor-default"
	classTabIdle   = "text-white bg-[#c34a36] cursor-pointer"
	classSheet     = "text-sm text-[#4b4453] bg-white py-6 px-3 max-w-[40rem] mx-auto print:max-w-none print:mx-0"
	styleSheet     = "font-family: 'Lucida Sans', 'Lucida Sans Regular', 'Lucida Grande', 'Lucida Sans Unicode', Geneva, Verdana, sans-serif"
	classTitle     = "mr-4 ml-4 p-4 text-3xl font-bold"
	classIssuer    = "flex-grow text-center border-2 rounded-lg border-[#b0a8b9] p-1.5"
	classBox       = "flex mb-4 border-2 rounded-lg border-[#b0a8b9] p-1.5"
	classLine      = "flex mb-4"
	classCaption   = "mr-2"
	classBoxValue  = "break-all flex-grow"
	classField     = "break-all flex-grow font-bold border-b-2 border-[#b0a8b9]"
	classRowButton = "font-bold text-white bg-[#c34a36] text-[1.375rem] cursor-pointer p-2.5 print:hidden"
	classHeadDesc  = "p-2 break-all border-b-2 border-[#b0a8b9]"
	classHeadNum   = "p-2 text-center border-b-2 border-[#b0a8b9] whitespace-nowrap w-2"
	classCellDesc  = "p-2 border-r-2 border-[#b0a8b9] break-all"
	classCellNum   = "p-2 border-r-2 border-[#b0a8b9] text-center"
	classCellAmt   = "p-2 text-right"
	classRow       = "even:bg-[#f4f4f4]"
	classPrint     = "font-bold text-white bg-[#c34a36] cursor-pointer p-2.5"
)

func tabClass(selected bool) string {
	if selected {
		return classTab + classTabActive
	}
	return classTab + classTabIdle
}

// builder creates detached markup and remembers the first tree error.
type builder struct {
	doc *dom.Document
	err error
}

func (b *builder) el(parent *dom.Node, tag, class string, attrs ...dom.Attr) *dom.Node {
	if class != "" {
		attrs = append([]dom.Attr{dom.A("class", class)}, attrs...)
	}
	n := b.doc.Element(tag, attrs...)
	b.append(parent, n)
	return n
}

func (b *builder) text(parent *dom.Node, s string) *dom.Node {
	n := b.doc.Text(s)
	b.append(parent, n)
	return n
}

func (b *builder) space(parent *dom.Node) *dom.Node {
	n := b.doc.Space()
	b.append(parent, n)
	return n
}

// editable creates a contenteditable element holding s.
func (b *builder) editable(parent *dom.Node, tag, class, s string) *dom.Node {
	n := b.el(parent, tag, class, dom.A("contenteditable", "true"))
	b.doc.SetText(n, s)
	return n
}

func (b *builder) append(parent, n *dom.Node) {
	if parent == nil {
		return
	}
	if err := b.doc.Append(parent, n); err != nil && b.err == nil {
		b.err = err
	}
}
