// Package export renders receipts as static printable pages and stores
// them on disk or in S3.
package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/vango-dev/billform/pkg/dom"
	"github.com/vango-dev/billform/pkg/metrics"
	"github.com/vango-dev/billform/pkg/receipt"
	"github.com/vango-dev/billform/pkg/render"
	"github.com/vango-dev/billform/pkg/runtime"
	"github.com/vango-dev/billform/pkg/view"
)

// ContentType of exported documents.
const ContentType = "text/html; charset=utf-8"

// ErrNoStore is returned by Export when the exporter has no Store.
var ErrNoStore = errors.New("export: no store configured")

// Exporter renders documents and hands them to a Store.
type Exporter struct {
	store       Store
	catalog     *receipt.Catalog
	renderer    *render.Renderer
	styleSheets []string
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

// Option configures an Exporter.
type Option func(*Exporter)

// WithStyleSheets links stylesheets from the printable page.
func WithStyleSheets(hrefs ...string) Option {
	return func(e *Exporter) {
		e.styleSheets = append(e.styleSheets, hrefs...)
	}
}

// WithMetrics records export spans.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Exporter) {
		e.metrics = m
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Exporter) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewExporter creates an exporter. store may be nil when only WritePage is
// used.
func NewExporter(store Store, catalog *receipt.Catalog, opts ...Option) *Exporter {
	e := &Exporter{
		store:    store,
		catalog:  catalog,
		renderer: render.NewRenderer(render.Config{}),
		logger:   slog.Default().With("component", "export"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// WritePage renders the static printable page of q to w.
func (e *Exporter) WritePage(ctx context.Context, w io.Writer, q receipt.Query) (err error) {
	_, span := e.metrics.StartRender(ctx, "print")
	defer func() { metrics.End(span, err) }()

	doc := dom.NewDocument()
	r := view.New(doc, runtime.NewScheduler(nil), e.catalog, q, view.WithLogger(e.logger))
	if err := r.Mount(doc.Root()); err != nil {
		return fmt.Errorf("export: mount: %w", err)
	}
	defer r.Destroy(false)

	return e.renderer.RenderPage(w, render.Page{
		Title:       r.Labels().Title,
		Lang:        q.Lang.Tag(),
		Body:        doc.Root(),
		Styles:      []string{render.PrintCSS},
		StyleSheets: e.styleSheets,
	})
}

// Enabled reports whether Export has somewhere to write.
func (e *Exporter) Enabled() bool {
	return e.store != nil
}

// Export renders q and stores it under ObjectName(q).
func (e *Exporter) Export(ctx context.Context, q receipt.Query) (loc Location, err error) {
	if e.store == nil {
		return Location{}, ErrNoStore
	}
	name := ObjectName(q)
	ctx, span := e.metrics.StartExport(ctx, e.store.Kind(), name)
	defer func() { metrics.End(span, err) }()

	var buf bytes.Buffer
	if err := e.WritePage(ctx, &buf, q); err != nil {
		return Location{}, err
	}
	loc, err = e.store.Put(ctx, name, ContentType, &buf)
	if err != nil {
		e.logger.Error("export failed", "store", e.store.Kind(), "name", name, "error", err)
		return Location{}, err
	}
	e.logger.Info("document exported", "store", loc.Store, "url", loc.URL, "bytes", loc.Size)
	return loc, nil
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// ObjectName names the stored file after the document type and number.
// Numbers with nothing usable in a file name get a random name instead.
func ObjectName(q receipt.Query) string {
	kind := string(q.Doc)
	if kind == "" {
		kind = "cash-sale"
	}
	no := strings.Trim(unsafeChars.ReplaceAllString(q.No, "-"), "-.")
	if no == "" {
		no = uuid.NewString()
	}
	return kind + "-" + no + ".html"
}
