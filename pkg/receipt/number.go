package receipt

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// ParseNumber converts cell text to a number the way a browser's Number()
// does: surrounding white space is ignored, the empty string is 0 and
// anything unparsable is NaN. Grouping separators are not accepted.
func ParseNumber(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	switch s {
	case "Infinity", "+Infinity":
		return math.Inf(1)
	case "-Infinity":
		return math.Inf(-1)
	}
	lower := strings.ToLower(s)
	if strings.HasPrefix(lower, "0x") || strings.HasPrefix(lower, "0o") || strings.HasPrefix(lower, "0b") {
		n, err := strconv.ParseUint(s[2:], map[byte]int{'x': 16, 'o': 8, 'b': 2}[lower[1]], 64)
		if err != nil {
			return math.NaN()
		}
		return float64(n)
	}
	// strconv accepts spellings Number() rejects (inf, nan, 1_000).
	if strings.ContainsAny(lower, "_in") {
		return math.NaN()
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return math.NaN()
	}
	return f
}

// blank reports whether v renders as an empty cell.
func blank(v float64) bool {
	return v == 0 || math.IsNaN(v)
}

// Formatter formats cell values for one language.
type Formatter struct {
	p *message.Printer
}

var (
	formattersMu sync.Mutex
	formatters   = map[Lang]Formatter{}
)

// FormatterFor returns the formatter of lang.
func FormatterFor(lang Lang) Formatter {
	formattersMu.Lock()
	defer formattersMu.Unlock()
	if f, ok := formatters[lang]; ok {
		return f
	}
	tag, err := language.Parse(lang.Tag())
	if err != nil {
		tag = language.English
	}
	f := Formatter{p: message.NewPrinter(tag)}
	formatters[lang] = f
	return f
}

// Money formats v with two fraction digits and grouping. Zero and NaN
// format as "".
func (f Formatter) Money(v float64) string {
	if blank(v) {
		return ""
	}
	if math.IsInf(v, 0) {
		return infinity(v)
	}
	return f.p.Sprint(number.Decimal(v, number.MinFractionDigits(2), number.MaxFractionDigits(2)))
}

// Quantity formats v with grouping and up to three fraction digits. Zero
// and NaN format as "".
func (f Formatter) Quantity(v float64) string {
	if blank(v) {
		return ""
	}
	if math.IsInf(v, 0) {
		return infinity(v)
	}
	return f.p.Sprint(number.Decimal(v, number.MaxFractionDigits(3)))
}

// Price formats raw price cell text.
func (f Formatter) Price(raw string) string {
	return f.Money(ParseNumber(raw))
}

// Qty formats raw quantity cell text.
func (f Formatter) Qty(raw string) string {
	return f.Quantity(ParseNumber(raw))
}

func infinity(v float64) string {
	if v < 0 {
		return "-∞"
	}
	return "∞"
}
