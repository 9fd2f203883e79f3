package watch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/vango-dev/billform/pkg/receipt"
)

const thaiOverride = `lang: th
button: ไทย
currency: บาท
docs:
  - doc: ""
    labels:
      title: TITLE
      no: เลขที่
      date: วันที่
      customer: ลูกค้า
      name: ชื่อ
      address: ที่อยู่
      id: เลขประจำตัว
      desc: รายการ
      price: หน่วยละ
      qty: จำนวน
      amt: จำนวนเงิน
      total: รวมเงิน
      cur: สกุลเงิน
      rSign: ผู้รับเงิน
      thank: ขอบคุณ
`

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startWatcher(t *testing.T, onReload func() int) (*Watcher, *receipt.Catalog, string) {
	t.Helper()
	dir := t.TempDir()
	catalog := receipt.MustCatalog()
	if _, err := catalog.LoadDir(dir); err != nil {
		t.Fatal(err)
	}
	w, err := New(catalog, Options{Debounce: 20 * time.Millisecond, OnReload: onReload, Logger: quiet()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		if err := <-done; err != nil {
			t.Errorf("Run: %v", err)
		}
	})
	return w, catalog, dir
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestReloadOnWrite(t *testing.T) {
	calls := make(chan struct{}, 10)
	w, catalog, dir := startWatcher(t, func() int {
		calls <- struct{}{}
		return 3
	})

	if err := os.WriteFile(filepath.Join(dir, "th.yaml"), []byte(thaiOverride), 0o644); err != nil {
		t.Fatal(err)
	}
	select {
	case <-calls:
	case <-time.After(5 * time.Second):
		t.Fatal("OnReload not called")
	}
	if got := catalog.Labels(receipt.Thai, receipt.CashSale).Title; got != "TITLE" {
		t.Errorf("title = %q", got)
	}
	if w.reloads.Load() < 1 {
		t.Errorf("reloads = %d", w.reloads.Load())
	}
}

func TestInvalidFileKeepsLabels(t *testing.T) {
	w, catalog, dir := startWatcher(t, nil)
	before := catalog.Labels(receipt.Thai, receipt.CashSale).Title

	bad := strings.Replace(thaiOverride, "title: TITLE\n", "", 1)
	if err := os.WriteFile(filepath.Join(dir, "th.yaml"), []byte(bad), 0o644); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "failed reload", func() bool { return w.failures.Load() > 0 })
	if got := catalog.Labels(receipt.Thai, receipt.CashSale).Title; got != before {
		t.Errorf("title = %q, want %q", got, before)
	}
	if w.reloads.Load() != 0 {
		t.Errorf("reloads = %d, want 0", w.reloads.Load())
	}
}

func TestDebounceCoalesces(t *testing.T) {
	calls := make(chan struct{}, 10)
	_, _, dir := startWatcher(t, func() int {
		calls <- struct{}{}
		return 0
	})

	path := filepath.Join(dir, "th.yaml")
	for i := 0; i < 5; i++ {
		if err := os.WriteFile(path, []byte(thaiOverride), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	select {
	case <-calls:
	case <-time.After(5 * time.Second):
		t.Fatal("OnReload not called")
	}
	time.Sleep(100 * time.Millisecond)
	if n := len(calls); n != 0 {
		t.Errorf("%d extra reloads after a burst", n)
	}
}

func TestNewWithoutDir(t *testing.T) {
	if _, err := New(receipt.MustCatalog(), Options{}); !errors.Is(err, ErrNoDir) {
		t.Errorf("err = %v, want ErrNoDir", err)
	}
}

func TestRelevant(t *testing.T) {
	tests := []struct {
		ev   fsnotify.Event
		want bool
	}{
		{fsnotify.Event{Name: "/l/th.yaml", Op: fsnotify.Write}, true},
		{fsnotify.Event{Name: "/l/de.YML", Op: fsnotify.Create}, true},
		{fsnotify.Event{Name: "/l/th.yaml", Op: fsnotify.Remove}, true},
		{fsnotify.Event{Name: "/l/th.yaml", Op: fsnotify.Chmod}, false},
		{fsnotify.Event{Name: "/l/.th.yaml.swp", Op: fsnotify.Write}, false},
		{fsnotify.Event{Name: "/l/notes.txt", Op: fsnotify.Write}, false},
	}
	for _, tt := range tests {
		if got := relevant(tt.ev); got != tt.want {
			t.Errorf("relevant(%v) = %v, want %v", tt.ev, got, tt.want)
		}
	}
}
