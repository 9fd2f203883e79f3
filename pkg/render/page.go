package render

import (
	"bufio"
	"fmt"
	"io"

	"github.com/vango-dev/billform/pkg/dom"
)

// PrintCSS hides the toolbars when printing and lays the sheet out on A5.
const PrintCSS = `@page { size: A5; margin: 8mm; }
@media print {
  .print\:hidden { display: none !important; }
  body { -webkit-print-color-adjust: exact; print-color-adjust: exact; }
}
[contenteditable]:focus { outline: 1px dashed #94a3b8; }
`

// Page describes a full HTML document.
type Page struct {
	Title string
	Lang  string
	Body  *dom.Node

	// Styles are inline CSS blocks; StyleSheets are linked by URL.
	Styles      []string
	StyleSheets []string

	// Scripts are loaded before the client script.
	Scripts []string

	// SessionID and ClientScript enable the live client. A page without a
	// client script is static.
	SessionID    string
	ClientScript string
}

// RenderPage writes a complete HTML document for page.
func (r *Renderer) RenderPage(w io.Writer, page Page) error {
	bw := bufio.NewWriter(w)

	bw.WriteString("<!DOCTYPE html>\n")
	lang := page.Lang
	if lang == "" {
		lang = "en"
	}
	fmt.Fprintf(bw, "<html lang=\"%s\">\n<head>\n", EscapeAttr(lang))
	bw.WriteString("<meta charset=\"utf-8\">\n")
	bw.WriteString("<meta name=\"viewport\" content=\"width=device-width, initial-scale=1\">\n")
	if page.Title != "" {
		fmt.Fprintf(bw, "<title>%s</title>\n", EscapeHTML(page.Title))
	}
	for _, href := range page.StyleSheets {
		fmt.Fprintf(bw, "<link rel=\"stylesheet\" href=\"%s\">\n", EscapeAttr(href))
	}
	for _, css := range page.Styles {
		fmt.Fprintf(bw, "<style>%s</style>\n", escapeRawText(css))
	}
	for _, src := range page.Scripts {
		fmt.Fprintf(bw, "<script src=\"%s\"></script>\n", EscapeAttr(src))
	}
	bw.WriteString("</head>\n<body>\n")

	if page.Body != nil {
		if err := r.renderNode(bw, page.Body, 0); err != nil {
			return err
		}
		bw.WriteByte('\n')
	}

	if page.ClientScript != "" {
		fmt.Fprintf(bw, "<script src=\"%s\" data-session=\"%s\" defer></script>\n",
			EscapeAttr(page.ClientScript), EscapeAttr(page.SessionID))
	}
	bw.WriteString("</body>\n</html>\n")
	return bw.Flush()
}
