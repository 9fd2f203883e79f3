package receipt

import (
	"net/url"
)

// DefaultRows is the number of item rows of a blank document.
const DefaultRows = 9

// Query parameter names. The item columns repeat once per row.
const (
	KeyLang     = "lang"
	KeyDoc      = "doc"
	KeyCur      = "cur"
	KeyRName    = "rName"
	KeyRAddress = "rAddress"
	KeyRID      = "rId"
	KeyDate     = "date"
	KeyNo       = "no"
	KeyName     = "name"
	KeyAddress  = "address"
	KeyID       = "id"
	KeyDesc     = "desc"
	KeyPrice    = "price"
	KeyQty      = "qty"
)

// Query is the editable state of a document. It round-trips through a URL
// query string, which is how documents are shared.
type Query struct {
	Lang Lang    `json:"lang"`
	Doc  DocType `json:"doc"`
	Cur  string  `json:"cur"`

	// Issuer
	RName    string `json:"rName"`
	RAddress string `json:"rAddress"`
	RID      string `json:"rId"`

	Date string `json:"date"`
	No   string `json:"no"`

	// Customer
	Name    string `json:"name"`
	Address string `json:"address"`
	ID      string `json:"id"`

	Desc  []string `json:"desc"`
	Price []string `json:"price"`
	Qty   []string `json:"qty"`
}

// NewQuery returns a blank document with DefaultRows rows.
func NewQuery(lang Lang, cur string) Query {
	return Query{
		Lang:  lang,
		Cur:   cur,
		Desc:  make([]string, DefaultRows),
		Price: make([]string, DefaultRows),
		Qty:   make([]string, DefaultRows),
	}
}

// FromValues builds a document from query parameters. Present parameters
// override the defaults of the requested language; an unknown language
// falls back to English.
func FromValues(v url.Values, c *Catalog) Query {
	lang := c.Resolve(Lang(first(v, KeyLang)))
	q := c.Defaults(lang)

	scalars := []struct {
		key string
		dst *string
	}{
		{KeyCur, &q.Cur},
		{KeyRName, &q.RName},
		{KeyRAddress, &q.RAddress},
		{KeyRID, &q.RID},
		{KeyDate, &q.Date},
		{KeyNo, &q.No},
		{KeyName, &q.Name},
		{KeyAddress, &q.Address},
		{KeyID, &q.ID},
	}
	for _, s := range scalars {
		if vals, ok := v[s.key]; ok && len(vals) > 0 {
			*s.dst = vals[0]
		}
	}
	if vals, ok := v[KeyDoc]; ok && len(vals) > 0 {
		q.Doc = DocType(vals[0])
	}

	columns := []struct {
		key string
		dst *[]string
	}{
		{KeyDesc, &q.Desc},
		{KeyPrice, &q.Price},
		{KeyQty, &q.Qty},
	}
	for _, col := range columns {
		if vals, ok := v[col.key]; ok && len(vals) > 0 {
			*col.dst = append([]string(nil), vals...)
		}
	}
	q.Normalize()
	return q
}

func first(v url.Values, key string) string {
	if vals := v[key]; len(vals) > 0 {
		return vals[0]
	}
	return ""
}

// Normalize pads the item columns to the length of the longest one so
// every row has a description, price and quantity.
func (q *Query) Normalize() {
	n := max(len(q.Desc), len(q.Price), len(q.Qty))
	q.Desc = pad(q.Desc, n)
	q.Price = pad(q.Price, n)
	q.Qty = pad(q.Qty, n)
}

func pad(s []string, n int) []string {
	for len(s) < n {
		s = append(s, "")
	}
	return s
}

// Rows returns the number of item rows.
func (q *Query) Rows() int {
	return len(q.Desc)
}

// AddItem appends a blank row.
func (q *Query) AddItem() {
	q.Desc = append(q.Desc, "")
	q.Price = append(q.Price, "")
	q.Qty = append(q.Qty, "")
}

// RemoveItem drops the last row. It is a no-op without rows.
func (q *Query) RemoveItem() {
	if len(q.Desc) == 0 {
		return
	}
	q.Desc = q.Desc[:len(q.Desc)-1]
	q.Price = q.Price[:len(q.Price)-1]
	q.Qty = q.Qty[:len(q.Qty)-1]
}

// Amount returns price times quantity of row i. NaN results are 0.
func (q *Query) Amount(i int) float64 {
	if i < 0 || i >= len(q.Price) || i >= len(q.Qty) {
		return 0
	}
	v := ParseNumber(q.Price[i]) * ParseNumber(q.Qty[i])
	if blank(v) {
		return 0
	}
	return v
}

// Amounts returns the amount of every row.
func (q *Query) Amounts() []float64 {
	out := make([]float64, q.Rows())
	for i := range out {
		out[i] = q.Amount(i)
	}
	return out
}

// Total returns the sum of all amounts.
func (q *Query) Total() float64 {
	var total float64
	for i := 0; i < q.Rows(); i++ {
		total += q.Amount(i)
	}
	return total
}

// Clone returns a deep copy of q.
func (q Query) Clone() Query {
	q.Desc = append([]string(nil), q.Desc...)
	q.Price = append([]string(nil), q.Price...)
	q.Qty = append([]string(nil), q.Qty...)
	return q
}

// Values encodes q as query parameters. Empty scalars are omitted; every
// row is kept so the row count survives a round trip.
func (q *Query) Values() url.Values {
	v := url.Values{}
	set := func(key, val string) {
		if val != "" {
			v.Set(key, val)
		}
	}
	set(KeyLang, string(q.Lang))
	set(KeyDoc, string(q.Doc))
	set(KeyCur, q.Cur)
	set(KeyRName, q.RName)
	set(KeyRAddress, q.RAddress)
	set(KeyRID, q.RID)
	set(KeyDate, q.Date)
	set(KeyNo, q.No)
	set(KeyName, q.Name)
	set(KeyAddress, q.Address)
	set(KeyID, q.ID)
	for i := 0; i < q.Rows(); i++ {
		v.Add(KeyDesc, q.Desc[i])
		v.Add(KeyPrice, q.Price[i])
		v.Add(KeyQty, q.Qty[i])
	}
	return v
}
