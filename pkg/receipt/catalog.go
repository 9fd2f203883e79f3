package receipt

import (
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

//go:embed locales/*.yaml
var builtin embed.FS

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Catalog holds the label dictionaries of every language. It is safe for
// concurrent use; Reload and LoadDir swap the whole dictionary at once.
type Catalog struct {
	mu      sync.RWMutex
	locales map[Lang]*Locale
	order   []Lang
	dir     string
}

// NewCatalog returns a catalog with the built-in English and Thai locales.
func NewCatalog() (*Catalog, error) {
	locales, err := loadFS(builtin, "locales")
	if err != nil {
		return nil, fmt.Errorf("receipt: built-in locales: %w", err)
	}
	c := &Catalog{}
	c.swap(locales)
	return c, nil
}

// MustCatalog is NewCatalog that panics on error. The built-in locales are
// compiled in, so the error is a programming error.
func MustCatalog() *Catalog {
	c, err := NewCatalog()
	if err != nil {
		panic(err)
	}
	return c
}

// LoadDir layers every *.yaml and *.yml file of dir over the built-in
// locales. A file whose lang matches a built-in locale replaces it.
// On error the catalog is left unchanged. It returns the number of files
// loaded.
func (c *Catalog) LoadDir(dir string) (int, error) {
	locales, err := loadFS(builtin, "locales")
	if err != nil {
		return 0, err
	}
	override, err := loadFS(os.DirFS(dir), ".")
	if err != nil {
		return 0, fmt.Errorf("receipt: locale dir %s: %w", dir, err)
	}
	for lang, l := range override {
		locales[lang] = l
	}
	c.mu.Lock()
	c.dir = dir
	c.mu.Unlock()
	c.swap(locales)
	return len(override), nil
}

// Reload reloads the directory given to the last successful LoadDir.
func (c *Catalog) Reload() (int, error) {
	c.mu.RLock()
	dir := c.dir
	c.mu.RUnlock()
	if dir == "" {
		return 0, nil
	}
	return c.LoadDir(dir)
}

// Dir returns the override directory, or "" if none was loaded.
func (c *Catalog) Dir() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.dir
}

func (c *Catalog) swap(locales map[Lang]*Locale) {
	order := make([]Lang, 0, len(locales))
	for lang := range locales {
		order = append(order, lang)
	}
	// English first, then by code.
	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })

	c.mu.Lock()
	c.locales = locales
	c.order = order
	c.mu.Unlock()
}

// Languages returns the known languages, English first.
func (c *Catalog) Languages() []Lang {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Lang, len(c.order))
	copy(out, c.order)
	return out
}

// Resolve returns lang if the catalog knows it, English otherwise.
func (c *Catalog) Resolve(lang Lang) Lang {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if _, ok := c.locales[lang]; ok {
		return lang
	}
	return English
}

// Locale returns the locale of lang, falling back to English.
func (c *Catalog) Locale(lang Lang) *Locale {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if l, ok := c.locales[lang]; ok {
		return l
	}
	return c.locales[English]
}

// Labels returns the labels of doc in lang.
func (c *Catalog) Labels(lang Lang, doc DocType) Labels {
	return c.Locale(lang).Labels(doc)
}

// DocTypes returns the document types lang defines.
func (c *Catalog) DocTypes(lang Lang) []DocType {
	return c.Locale(lang).DocTypes()
}

// Button returns the language switch caption of lang.
func (c *Catalog) Button(lang Lang) string {
	return c.Locale(lang).Button
}

// Defaults returns a blank document in lang.
func (c *Catalog) Defaults(lang Lang) Query {
	lang = c.Resolve(lang)
	return NewQuery(lang, c.Locale(lang).Currency)
}

func loadFS(fsys fs.FS, dir string) (map[Lang]*Locale, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, err
	}
	locales := make(map[Lang]*Locale)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		data, err := fs.ReadFile(fsys, pathJoin(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		l, err := ParseLocale(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", e.Name(), err)
		}
		if _, dup := locales[l.Lang]; dup {
			return nil, fmt.Errorf("%s: duplicate locale %q", e.Name(), l.Lang)
		}
		locales[l.Lang] = l
	}
	return locales, nil
}

func pathJoin(dir, name string) string {
	if dir == "." || dir == "" {
		return name
	}
	return dir + "/" + name
}

// ParseLocale decodes and validates a YAML locale. The base document type
// must define every label.
func ParseLocale(data []byte) (*Locale, error) {
	var l Locale
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&l); err != nil {
		return nil, fmt.Errorf("decode locale: %w", err)
	}
	if err := validate.Struct(&l); err != nil {
		return nil, fmt.Errorf("invalid locale %q: %w", l.Lang, err)
	}
	seen := make(map[DocType]bool, len(l.Docs))
	hasBase := false
	for _, d := range l.Docs {
		if seen[d.Doc] {
			return nil, fmt.Errorf("locale %q: duplicate doc type %q", l.Lang, d.Doc)
		}
		seen[d.Doc] = true
		if d.Doc == baseDocLabels {
			hasBase = true
			if err := validate.Struct(&d.Labels); err != nil {
				return nil, fmt.Errorf("locale %q: base labels: %w", l.Lang, err)
			}
		}
	}
	if !hasBase {
		return nil, fmt.Errorf("locale %q: missing base doc type", l.Lang)
	}
	return &l, nil
}
