package render

import "strings"

var (
	textEscaper = strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
		"'", "&#39;",
	)

	// Attribute values also escape white space that would otherwise be
	// normalized by the parser.
	attrEscaper = strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
		"'", "&#39;",
		"\n", "&#10;",
		"\r", "&#13;",
		"\t", "&#9;",
	)

	// Inline scripts and styles only need their closing tag broken up.
	rawTextEscaper = strings.NewReplacer(
		"</script", `<\/script`,
		"</style", `<\/style`,
	)
)

// EscapeHTML escapes s for HTML text content.
func EscapeHTML(s string) string {
	return textEscaper.Replace(s)
}

// EscapeAttr escapes s for a double-quoted attribute value.
func EscapeAttr(s string) string {
	return attrEscaper.Replace(s)
}

func escapeRawText(s string) string {
	return rawTextEscaper.Replace(s)
}
