package receipt

// Lang identifies a label language. The empty string is English.
type Lang string

// DocType identifies a document variant. The empty string is a cash sale.
type DocType string

const (
	English Lang = ""
	Thai    Lang = "th"

	CashSale   DocType = ""
	ReceiptDoc DocType = "receipt"

	baseDocLabels = CashSale
)

// Tag returns the BCP 47 tag used for number formatting.
func (l Lang) Tag() string {
	if l == English {
		return "en"
	}
	return string(l)
}

// Labels holds the static texts of a document.
type Labels struct {
	Title    string `yaml:"title" json:"title" validate:"required"`
	No       string `yaml:"no" json:"no" validate:"required"`
	Date     string `yaml:"date" json:"date" validate:"required"`
	Customer string `yaml:"customer" json:"customer" validate:"required"`
	Name     string `yaml:"name" json:"name" validate:"required"`
	Address  string `yaml:"address" json:"address" validate:"required"`
	ID       string `yaml:"id" json:"id" validate:"required"`
	Desc     string `yaml:"desc" json:"desc" validate:"required"`
	Price    string `yaml:"price" json:"price" validate:"required"`
	Qty      string `yaml:"qty" json:"qty" validate:"required"`
	Amt      string `yaml:"amt" json:"amt" validate:"required"`
	Total    string `yaml:"total" json:"total" validate:"required"`
	Cur      string `yaml:"cur" json:"cur" validate:"required"`
	RSign    string `yaml:"rSign" json:"rSign" validate:"required"`
	Thank    string `yaml:"thank" json:"thank" validate:"required"`
}

// Merge returns l with every non-empty field of o applied over it.
func (l Labels) Merge(o Labels) Labels {
	pick := func(base, over string) string {
		if over != "" {
			return over
		}
		return base
	}
	return Labels{
		Title:    pick(l.Title, o.Title),
		No:       pick(l.No, o.No),
		Date:     pick(l.Date, o.Date),
		Customer: pick(l.Customer, o.Customer),
		Name:     pick(l.Name, o.Name),
		Address:  pick(l.Address, o.Address),
		ID:       pick(l.ID, o.ID),
		Desc:     pick(l.Desc, o.Desc),
		Price:    pick(l.Price, o.Price),
		Qty:      pick(l.Qty, o.Qty),
		Amt:      pick(l.Amt, o.Amt),
		Total:    pick(l.Total, o.Total),
		Cur:      pick(l.Cur, o.Cur),
		RSign:    pick(l.RSign, o.RSign),
		Thank:    pick(l.Thank, o.Thank),
	}
}

// DocLabels are the label overrides of one document type.
type DocLabels struct {
	Doc    DocType `yaml:"doc"`
	Labels Labels  `yaml:"labels"`
}

// Locale is one language of the catalog.
type Locale struct {
	Lang     Lang        `yaml:"lang"`
	Button   string      `yaml:"button" validate:"required"`
	Currency string      `yaml:"currency"`
	Docs     []DocLabels `yaml:"docs" validate:"required,min=1"`
}

// Base returns the labels of the base document type.
func (l *Locale) Base() Labels {
	for _, d := range l.Docs {
		if d.Doc == baseDocLabels {
			return d.Labels
		}
	}
	return Labels{}
}

// Labels returns the base labels with the overrides of doc merged in.
// Unknown document types get the base labels.
func (l *Locale) Labels(doc DocType) Labels {
	base := l.Base()
	if doc == baseDocLabels {
		return base
	}
	for _, d := range l.Docs {
		if d.Doc == doc {
			return base.Merge(d.Labels)
		}
	}
	return base
}

// DocTypes returns the document types in declaration order.
func (l *Locale) DocTypes() []DocType {
	out := make([]DocType, len(l.Docs))
	for i, d := range l.Docs {
		out[i] = d.Doc
	}
	return out
}
