package receipt

import (
	"math"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestBuiltinCatalog(t *testing.T) {
	c := MustCatalog()

	langs := c.Languages()
	if len(langs) != 2 || langs[0] != English || langs[1] != Thai {
		t.Fatalf("Languages = %q, want [\"\" th]", langs)
	}
	if got := c.Button(Thai); got != "ไทย" {
		t.Errorf("Button(th) = %q", got)
	}
	if got := c.Button(English); got != "Eng" {
		t.Errorf("Button(\"\") = %q", got)
	}

	docs := c.DocTypes(English)
	if len(docs) != 2 || docs[0] != CashSale || docs[1] != ReceiptDoc {
		t.Errorf("DocTypes = %q, want [\"\" receipt]", docs)
	}

	tests := []struct {
		lang      Lang
		doc       DocType
		wantTitle string
		wantName  string
		wantThank string
	}{
		{English, CashSale, "Cash Sale", "Name", "Thank you"},
		{English, ReceiptDoc, "Receipt", "Received from", "Thank you"},
		{Thai, CashSale, "บิลเงินสด", "ชื่อ", "ขอขอบคุณท่านที่อุดหนุน"},
		{Thai, ReceiptDoc, "ใบเสร็จรับเงิน", "รับเงินจาก", "ขอขอบคุณท่านที่อุดหนุน"},
		{English, "invoice", "Cash Sale", "Name", "Thank you"},
		{"fr", CashSale, "Cash Sale", "Name", "Thank you"},
	}
	for _, tt := range tests {
		t.Run(string(tt.lang)+"/"+string(tt.doc), func(t *testing.T) {
			l := c.Labels(tt.lang, tt.doc)
			if l.Title != tt.wantTitle || l.Name != tt.wantName || l.Thank != tt.wantThank {
				t.Errorf("Labels = %+v", l)
			}
		})
	}
}

func TestDefaults(t *testing.T) {
	c := MustCatalog()

	th := c.Defaults(Thai)
	if th.Cur != "บาท" || th.Lang != Thai {
		t.Errorf("Thai defaults = lang %q cur %q", th.Lang, th.Cur)
	}
	if th.Rows() != DefaultRows || len(th.Price) != DefaultRows || len(th.Qty) != DefaultRows {
		t.Errorf("rows = %d/%d/%d, want %d", len(th.Desc), len(th.Price), len(th.Qty), DefaultRows)
	}
	if en := c.Defaults("xx"); en.Lang != English || en.Cur != "" {
		t.Errorf("unknown language defaults = %+v", en)
	}
}

func TestFromValues(t *testing.T) {
	c := MustCatalog()

	t.Run("language defaults under overrides", func(t *testing.T) {
		v, _ := url.ParseQuery("lang=th&name=Somchai&desc=Rice&desc=Tea&price=10&price=2.5&qty=3")
		q := FromValues(v, c)
		if q.Lang != Thai || q.Cur != "บาท" || q.Name != "Somchai" {
			t.Errorf("q = %+v", q)
		}
		if q.Rows() != 2 {
			t.Fatalf("Rows = %d, want 2", q.Rows())
		}
		if q.Qty[1] != "" {
			t.Errorf("padded qty = %q, want empty", q.Qty[1])
		}
	})

	t.Run("explicit currency wins", func(t *testing.T) {
		v := url.Values{"lang": {"th"}, "cur": {"USD"}}
		if q := FromValues(v, c); q.Cur != "USD" {
			t.Errorf("Cur = %q, want USD", q.Cur)
		}
	})

	t.Run("first scalar value", func(t *testing.T) {
		v := url.Values{"no": {"A-1", "A-2"}, "doc": {"receipt"}}
		q := FromValues(v, c)
		if q.No != "A-1" || q.Doc != ReceiptDoc {
			t.Errorf("No = %q Doc = %q", q.No, q.Doc)
		}
		if q.Rows() != DefaultRows {
			t.Errorf("Rows = %d, want %d", q.Rows(), DefaultRows)
		}
	})

	t.Run("unknown language", func(t *testing.T) {
		q := FromValues(url.Values{"lang": {"de"}}, c)
		if q.Lang != English {
			t.Errorf("Lang = %q, want English", q.Lang)
		}
	})
}

func TestValuesRoundTrip(t *testing.T) {
	c := MustCatalog()
	q := c.Defaults(Thai)
	q.Doc = ReceiptDoc
	q.No = "0042"
	q.Desc[0], q.Price[0], q.Qty[0] = "Coffee", "55", "2"
	q.RemoveItem()

	back := FromValues(q.Values(), c)
	if back.Lang != Thai || back.Doc != ReceiptDoc || back.No != "0042" || back.Cur != "บาท" {
		t.Errorf("round trip = %+v", back)
	}
	if back.Rows() != DefaultRows-1 {
		t.Errorf("Rows = %d, want %d", back.Rows(), DefaultRows-1)
	}
	if back.Desc[0] != "Coffee" || back.Price[0] != "55" {
		t.Errorf("row 0 = %q %q", back.Desc[0], back.Price[0])
	}
}

func TestItemsAndTotals(t *testing.T) {
	q := NewQuery(English, "")
	q.Price[0], q.Qty[0] = "10", "3"
	q.Price[1], q.Qty[1] = "2.5", "4"
	q.Price[2], q.Qty[2] = "abc", "1"
	q.Price[3], q.Qty[3] = " 1e2 ", ""

	amounts := q.Amounts()
	want := []float64{30, 10, 0, 0}
	for i, w := range want {
		if amounts[i] != w {
			t.Errorf("Amounts[%d] = %v, want %v", i, amounts[i], w)
		}
	}
	if got := q.Total(); got != 40 {
		t.Errorf("Total = %v, want 40", got)
	}

	q.AddItem()
	if q.Rows() != DefaultRows+1 || len(q.Price) != DefaultRows+1 || len(q.Qty) != DefaultRows+1 {
		t.Errorf("AddItem rows = %d", q.Rows())
	}
	for i := 0; i < DefaultRows+2; i++ {
		q.RemoveItem()
	}
	if q.Rows() != 0 || q.Total() != 0 {
		t.Errorf("after removing all rows: Rows = %d, Total = %v", q.Rows(), q.Total())
	}
}

func TestParseNumber(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"", 0},
		{"   ", 0},
		{"42", 42},
		{" 3.5 ", 3.5},
		{"-2", -2},
		{"1e3", 1000},
		{".5", 0.5},
		{"0x10", 16},
		{"0b101", 5},
	}
	for _, tt := range tests {
		if got := ParseNumber(tt.in); got != tt.want {
			t.Errorf("ParseNumber(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}

	for _, in := range []string{"abc", "1,000", "1_000", "NaN", "inf", "12px", "0xZZ"} {
		if got := ParseNumber(in); !math.IsNaN(got) {
			t.Errorf("ParseNumber(%q) = %v, want NaN", in, got)
		}
	}
	if got := ParseNumber("Infinity"); !math.IsInf(got, 1) {
		t.Errorf("ParseNumber(Infinity) = %v", got)
	}
}

func TestFormatter(t *testing.T) {
	f := FormatterFor(English)

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"price grouped", f.Price("1234.5"), "1,234.50"},
		{"price zero", f.Price("0"), ""},
		{"price empty", f.Price(""), ""},
		{"price invalid", f.Price("abc"), ""},
		{"price padded", f.Price("2.5"), "2.50"},
		{"qty integer", f.Qty("1500"), "1,500"},
		{"qty fraction", f.Qty("1.25"), "1.25"},
		{"qty zero", f.Qty("0"), ""},
		{"money negative", f.Money(-12), "-12.00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}

	if th := FormatterFor(Thai).Money(1000); th != "1,000.00" {
		t.Errorf("Thai Money = %q, want 1,000.00", th)
	}
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	lao := `lang: lo
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
	if err := os.WriteFile(filepath.Join(dir, "lo.yaml"), []byte(lao), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "README.txt"), []byte("ignored"), 0o644); err != nil {
		t.Fatal(err)
	}

	c := MustCatalog()
	n, err := c.LoadDir(dir)
	if err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	if n != 1 {
		t.Errorf("loaded %d files, want 1", n)
	}
	if got := c.Languages(); len(got) != 3 || got[1] != "lo" {
		t.Errorf("Languages = %q", got)
	}
	if got := c.Defaults("lo").Cur; got != "ກີບ" {
		t.Errorf("lo currency = %q", got)
	}

	// A broken file leaves the catalog as it was.
	broken := strings.Replace(lao, "      thank: ຂອບໃຈ\n", "", 1)
	if err := os.WriteFile(filepath.Join(dir, "lo.yaml"), []byte(broken), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Reload(); err == nil {
		t.Fatal("Reload accepted a locale without all base labels")
	}
	if c.Resolve("lo") != "lo" {
		t.Error("failed reload dropped the previous locale")
	}
}

func TestParseLocaleErrors(t *testing.T) {
	tests := map[string]string{
		"unknown field": "lang: xx\nbutton: X\nflag: 1\ndocs:\n  - doc: \"\"\n",
		"no docs":       "lang: xx\nbutton: X\n",
		"no base":       "lang: xx\nbutton: X\ndocs:\n  - doc: receipt\n    labels:\n      title: R\n",
		"not yaml":      "lang: [",
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseLocale([]byte(data)); err == nil {
				t.Error("expected error")
			}
		})
	}
}
