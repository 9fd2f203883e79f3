package errors

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
)

// ANSI color codes for terminal output.
const (
	colorReset = "\033[0m"
	colorRed   = "\033[31m"
	colorCyan  = "\033[36m"
	colorGray  = "\033[90m"
	colorBold  = "\033[1m"
)

var colorEnabled = true

// DisableColors turns ANSI colors off, e.g. when stderr is not a terminal.
func DisableColors() {
	colorEnabled = false
}

// EnableColors turns ANSI colors on.
func EnableColors() {
	colorEnabled = true
}

func color(code, text string) string {
	if !colorEnabled {
		return text
	}
	return code + text + colorReset
}

// Format renders the error for a terminal.
func (e *Error) Format() string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(color(colorRed+colorBold, "ERROR "))
	if e.Code != "" {
		b.WriteString(color(colorBold, e.Code+": "))
	}
	b.WriteString(e.Message)
	b.WriteString("\n\n")

	if e.Location != nil {
		fmt.Fprintf(&b, "  %s\n\n", color(colorCyan, e.Location.String()))
		start := e.Location.Line - 2
		if start < 1 {
			start = 1
		}
		for i, line := range e.Context {
			n := start + i
			marker := "    "
			if n == e.Location.Line {
				marker = "  " + color(colorRed, "→ ")
			}
			fmt.Fprintf(&b, "%s%4d%s%s\n", marker, n, color(colorGray, " │ "), line)
			if n == e.Location.Line && e.Location.Column > 0 {
				fmt.Fprintf(&b, "        %s%s%s\n", color(colorGray, "│ "),
					strings.Repeat(" ", e.Location.Column-1), color(colorRed, "^"))
			}
		}
		if len(e.Context) > 0 {
			b.WriteString("\n")
		}
	}

	for _, line := range wrapText(e.Detail, 70) {
		fmt.Fprintf(&b, "  %s\n", line)
	}
	if e.Detail != "" {
		b.WriteString("\n")
	}
	if e.Wrapped != nil {
		fmt.Fprintf(&b, "  %s%s\n\n", color(colorGray, "Cause: "), e.Wrapped)
	}
	if e.Suggestion != "" {
		fmt.Fprintf(&b, "  %s%s\n\n", color(colorCyan, "Hint: "), e.Suggestion)
	}
	return b.String()
}

// FormatCompact renders the error on one line.
func (e *Error) FormatCompact() string {
	if e.Location != nil {
		return e.Location.String() + ": " + e.Error()
	}
	return e.Error()
}

type jsonError struct {
	Code       string    `json:"code,omitempty"`
	Category   Category  `json:"category,omitempty"`
	Message    string    `json:"message"`
	Detail     string    `json:"detail,omitempty"`
	Location   *Location `json:"location,omitempty"`
	Suggestion string    `json:"suggestion,omitempty"`
	Cause      string    `json:"cause,omitempty"`
}

// FormatJSON renders the error as a JSON object.
func (e *Error) FormatJSON() string {
	je := jsonError{
		Code:       e.Code,
		Category:   e.Category,
		Message:    e.Message,
		Detail:     e.Detail,
		Location:   e.Location,
		Suggestion: e.Suggestion,
	}
	if e.Wrapped != nil {
		je.Cause = e.Wrapped.Error()
	}
	data, _ := json.Marshal(je)
	return string(data)
}

func wrapText(text string, width int) []string {
	if text == "" {
		return nil
	}
	var lines []string
	var cur strings.Builder
	for _, word := range strings.Fields(text) {
		if cur.Len() > 0 && cur.Len()+len(word)+1 > width {
			lines = append(lines, cur.String())
			cur.Reset()
		}
		if cur.Len() > 0 {
			cur.WriteByte(' ')
		}
		cur.WriteString(word)
	}
	if cur.Len() > 0 {
		lines = append(lines, cur.String())
	}
	return lines
}

// Fprint writes err to w, formatted if it is an *Error.
func Fprint(w io.Writer, err error) {
	if e := FromError(err, ""); e != nil && e.Code != "" {
		fmt.Fprint(w, e.Format())
		return
	}
	fmt.Fprintf(w, "\n%s %s\n\n", color(colorRed+colorBold, "ERROR"), err)
}

// PrintError prints err to stderr.
func PrintError(err error) {
	Fprint(os.Stderr, err)
}
