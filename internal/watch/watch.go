// Package watch reloads the locale override directory when its files
// change, and pushes the new labels to live sessions.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/vango-dev/billform/pkg/metrics"
)

// ErrNoDir is returned by New when the catalog has no override directory.
var ErrNoDir = errors.New("watch: catalog has no locale directory")

// Catalog is the part of *receipt.Catalog the watcher drives.
type Catalog interface {
	Dir() string
	Reload() (int, error)
}

// Options configures a Watcher.
type Options struct {
	// Debounce is the quiet period after the last change before reloading
	// (default: 250ms).
	Debounce time.Duration

	// OnReload runs after every successful reload and returns the number
	// of sessions that were refreshed.
	OnReload func() int

	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// Watcher reloads a catalog when *.yaml or *.yml files in its directory
// are written, created, removed or renamed.
type Watcher struct {
	catalog  Catalog
	dir      string
	fs       *fsnotify.Watcher
	debounce time.Duration
	onReload func() int
	logger   *slog.Logger
	metrics  *metrics.Metrics

	reloads  atomic.Int64
	failures atomic.Int64
}

// New starts watching the catalog's directory. Run must be called to
// process changes; it closes the underlying watcher when it returns.
func New(catalog Catalog, opts Options) (*Watcher, error) {
	dir := catalog.Dir()
	if dir == "" {
		return nil, ErrNoDir
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: %w", err)
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}
	if opts.Debounce <= 0 {
		opts.Debounce = 250 * time.Millisecond
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Watcher{
		catalog:  catalog,
		dir:      dir,
		fs:       fw,
		debounce: opts.Debounce,
		onReload: opts.OnReload,
		logger:   opts.Logger.With("component", "locale-watch", "dir", dir),
		metrics:  opts.Metrics,
	}, nil
}

// Run processes file events until ctx is done. Bursts of events within
// the debounce window cause a single reload.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fs.Close()

	var (
		timer  *time.Timer
		timerC <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	w.logger.Info("watching locales")
	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if !relevant(ev) {
				continue
			}
			w.logger.Debug("locale file changed", "file", filepath.Base(ev.Name), "op", ev.Op.String())
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			timerC = timer.C

		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", "error", err)

		case <-timerC:
			timerC = nil
			w.reload()
		}
	}
}

func (w *Watcher) reload() {
	n, err := w.catalog.Reload()
	w.metrics.RecordLocaleReload(err)
	if err != nil {
		w.failures.Add(1)
		w.logger.Warn("locale reload failed, keeping previous labels", "error", err)
		return
	}
	sessions := 0
	if w.onReload != nil {
		sessions = w.onReload()
	}
	w.reloads.Add(1)
	w.logger.Info("locales reloaded", "files", n, "sessions", sessions)
}

func relevant(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) &&
		!ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
		return false
	}
	name := filepath.Base(ev.Name)
	if strings.HasPrefix(name, ".") {
		return false
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}
