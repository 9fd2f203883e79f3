package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/vango-dev/billform/pkg/dom"
	"github.com/vango-dev/billform/pkg/export"
	"github.com/vango-dev/billform/pkg/metrics"
	"github.com/vango-dev/billform/pkg/protocol"
	"github.com/vango-dev/billform/pkg/receipt"
	"github.com/vango-dev/billform/pkg/runtime"
)

var sessionAttr = regexp.MustCompile(`data-session="([^"]+)"`)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T, cfg *Config, opts ...Option) (*Server, *httptest.Server) {
	t.Helper()
	opts = append([]Option{WithLogger(quietLogger())}, opts...)
	srv := New(cfg, receipt.MustCatalog(), opts...)
	ts := httptest.NewServer(srv)
	t.Cleanup(func() {
		ts.Close()
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Sessions().Shutdown(ctx)
	})
	return srv, ts
}

// openPage loads the live page and returns the session it created.
func openPage(t *testing.T, srv *Server, ts *httptest.Server, query string) *Session {
	t.Helper()
	resp, err := http.Get(ts.URL + "/?" + query)
	if err != nil {
		t.Fatalf("GET /: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET / status = %d", resp.StatusCode)
	}
	m := sessionAttr.FindStringSubmatch(string(body))
	if m == nil {
		t.Fatalf("page has no session attribute:\n%s", body)
	}
	sess, err := srv.Sessions().Get(m[1])
	if err != nil {
		t.Fatalf("session %s: %v", m[1], err)
	}
	return sess
}

func dial(t *testing.T, ts *httptest.Server, id string) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?session=" + url.QueryEscape(id)
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) *protocol.Frame {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	f, err := protocol.DecodeFrame(msg)
	if err != nil {
		t.Fatalf("decode frame: %v", err)
	}
	return f
}

func writeEvent(t *testing.T, conn *websocket.Conn, ev *protocol.Event) {
	t.Helper()
	f := protocol.NewFrame(protocol.FrameEvent, protocol.EncodeEvent(ev))
	if err := conn.WriteMessage(websocket.BinaryMessage, f.Encode()); err != nil {
		t.Fatalf("write event: %v", err)
	}
}

// waitPatch reads patch frames until match returns true.
func waitPatch(t *testing.T, conn *websocket.Conn, match func(dom.Patch) bool) dom.Patch {
	t.Helper()
	for i := 0; i < 20; i++ {
		f := readFrame(t, conn)
		if f.Type != protocol.FramePatches {
			continue
		}
		pf, err := protocol.DecodePatches(f.Payload)
		if err != nil {
			t.Fatalf("decode patches: %v", err)
		}
		for _, p := range pf.Patches {
			if match(p) {
				return p
			}
		}
	}
	t.Fatal("expected patch never arrived")
	return dom.Patch{}
}

func TestLivePage(t *testing.T) {
	srv, ts := newTestServer(t, &Config{StyleSheets: []string{"/static/app.css"}})

	resp, err := http.Get(ts.URL + "/?lang=th&no=12")
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	page := string(body)

	for _, want := range []string{
		`<html lang="th">`,
		"<title>บิลเงินสด</title>",
		`data-hid="root"`,
		`data-on-click="true"`,
		`src="/client.js"`,
		"/static/app.css",
		">12<",
	} {
		if !strings.Contains(page, want) {
			t.Errorf("page missing %q", want)
		}
	}
	if got := resp.Header.Get("Cache-Control"); got != "no-store" {
		t.Errorf("Cache-Control = %q", got)
	}
	if n := srv.Sessions().Count(); n != 1 {
		t.Errorf("sessions = %d, want 1", n)
	}
}

func TestMaxSessions(t *testing.T) {
	_, ts := newTestServer(t, &Config{MaxSessions: 1})

	for i, want := range []int{http.StatusOK, http.StatusServiceUnavailable} {
		resp, err := http.Get(ts.URL + "/")
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != want {
			t.Errorf("request %d status = %d, want %d", i, resp.StatusCode, want)
		}
	}
}

func TestWebSocketEditFlow(t *testing.T) {
	srv, ts := newTestServer(t, nil)
	sess := openPage(t, srv, ts, "lang=en")
	_, price, qty, amt, ok := sess.Receipt().Row(0)
	if !ok {
		t.Fatal("row 0 missing")
	}
	conn := dial(t, ts, sess.ID)

	// The first frame carries the whole tree.
	f := readFrame(t, conn)
	if f.Type != protocol.FramePatches || !f.Flags.Has(protocol.FlagResync) {
		t.Fatalf("first frame = %v flags %v, want resync patches", f.Type, f.Flags)
	}
	pf, err := protocol.DecodePatches(f.Payload)
	if err != nil {
		t.Fatal(err)
	}
	if len(pf.Patches) != 1 || pf.Patches[0].Op != dom.PatchReplaceNode || pf.Patches[0].HID != dom.RootHID {
		t.Fatalf("resync = %+v", pf.Patches)
	}

	writeEvent(t, conn, &protocol.Event{Seq: 1, Type: protocol.EventInput, HID: price.HID, Value: "100"})
	writeEvent(t, conn, &protocol.Event{Seq: 2, Type: protocol.EventInput, HID: qty.HID, Value: "3"})

	waitPatch(t, conn, func(p dom.Patch) bool {
		return p.Op == dom.PatchSetText && p.HID == amt.HID && p.Value == "300.00"
	})
	u := waitPatch(t, conn, func(p dom.Patch) bool {
		return p.Op == dom.PatchDispatch && p.Key == "url" && strings.Contains(p.Value, "qty=3")
	})
	if !strings.HasPrefix(u.Value, "?") {
		t.Errorf("url action = %q", u.Value)
	}
}

func TestWebSocketUnknownHID(t *testing.T) {
	srv, ts := newTestServer(t, nil)
	sess := openPage(t, srv, ts, "")
	conn := dial(t, ts, sess.ID)
	readFrame(t, conn) // resync

	writeEvent(t, conn, &protocol.Event{Seq: 1, Type: protocol.EventClick, HID: "h999999"})
	f := readFrame(t, conn)
	if f.Type != protocol.FrameError {
		t.Fatalf("frame = %v, want error", f.Type)
	}
	em, err := protocol.DecodeErrorMessage(f.Payload)
	if err != nil {
		t.Fatal(err)
	}
	if em.Code != protocol.ErrHandlerNotFound || em.Fatal {
		t.Errorf("error = %+v", em)
	}
}

func TestWebSocketPingAndResync(t *testing.T) {
	srv, ts := newTestServer(t, nil)
	sess := openPage(t, srv, ts, "")
	conn := dial(t, ts, sess.ID)
	readFrame(t, conn)

	ping := protocol.NewFrame(protocol.FrameControl, protocol.EncodeControl(protocol.NewPing(42)))
	conn.WriteMessage(websocket.BinaryMessage, ping.Encode())
	f := readFrame(t, conn)
	c, err := protocol.DecodeControl(f.Payload)
	if err != nil || f.Type != protocol.FrameControl || c.Type != protocol.ControlPong || c.Timestamp != 42 {
		t.Fatalf("pong = %v %+v %v", f.Type, c, err)
	}

	resync := protocol.NewFrame(protocol.FrameControl, protocol.EncodeControl(&protocol.Control{Type: protocol.ControlResync}))
	conn.WriteMessage(websocket.BinaryMessage, resync.Encode())
	f = readFrame(t, conn)
	if f.Type != protocol.FramePatches || !f.Flags.Has(protocol.FlagResync) {
		t.Errorf("resync reply = %v flags %v", f.Type, f.Flags)
	}
}

func TestWebSocketRejections(t *testing.T) {
	srv, ts := newTestServer(t, nil)
	base := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?session="

	_, resp, err := websocket.DefaultDialer.Dial(base+"missing", nil)
	if err == nil || resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown session: err %v resp %v", err, resp)
	}

	sess := openPage(t, srv, ts, "")
	readFrame(t, dial(t, ts, sess.ID))
	_, resp, err = websocket.DefaultDialer.Dial(base+sess.ID, nil)
	if err == nil || resp == nil || resp.StatusCode != http.StatusConflict {
		t.Errorf("second attach: err %v resp %v", err, resp)
	}

	h := http.Header{"Origin": []string{"http://evil.example"}}
	other := openPage(t, srv, ts, "")
	if _, _, err := websocket.DefaultDialer.Dial(base+other.ID, h); err == nil {
		t.Error("cross-origin upgrade accepted")
	}
}

func TestShutdownNotifiesClients(t *testing.T) {
	srv, ts := newTestServer(t, nil)
	sess := openPage(t, srv, ts, "")
	conn := dial(t, ts, sess.ID)
	readFrame(t, conn)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := srv.Sessions().Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	f := readFrame(t, conn)
	c, err := protocol.DecodeControl(f.Payload)
	if err != nil || c.Type != protocol.ControlClose || c.Reason != protocol.CloseServerShutdown {
		t.Errorf("close = %+v %v", c, err)
	}
	if !sess.IsClosed() {
		t.Error("session still open")
	}
}

func TestPrintPage(t *testing.T) {
	_, ts := newTestServer(t, nil)
	resp, err := http.Get(ts.URL + "/print?lang=en&doc=receipt&name=Ada")
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	page := string(body)
	if !strings.Contains(page, "<title>Receipt</title>") || !strings.Contains(page, "Ada") {
		t.Errorf("print page:\n%s", page)
	}
	if strings.Contains(page, "data-hid") || strings.Contains(page, "<script") {
		t.Error("print page carries live markup")
	}
}

func TestExportEndpoint(t *testing.T) {
	_, plain := newTestServer(t, nil)
	resp, err := http.PostForm(plain.URL+"/export", url.Values{"no": {"1"}})
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("export without store status = %d", resp.StatusCode)
	}

	store, err := export.NewDiskStore(t.TempDir(), 0)
	if err != nil {
		t.Fatal(err)
	}
	exp := export.NewExporter(store, receipt.MustCatalog(), export.WithLogger(quietLogger()))
	_, ts := newTestServer(t, nil, WithExporter(exp))
	resp, err = http.PostForm(ts.URL+"/export", url.Values{"lang": {"en"}, "no": {"A-7"}})
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var loc export.Location
	if err := json.NewDecoder(resp.Body).Decode(&loc); err != nil {
		t.Fatal(err)
	}
	if loc.Name != "cash-sale-A-7.html" || loc.Store != "disk" {
		t.Errorf("location = %+v", loc)
	}
}

func TestHealthAndClient(t *testing.T) {
	_, ts := newTestServer(t, nil)

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	var health struct {
		Status   string       `json:"status"`
		Sessions ManagerStats `json:"sessions"`
	}
	json.NewDecoder(resp.Body).Decode(&health)
	resp.Body.Close()
	if health.Status != "ok" {
		t.Errorf("health = %+v", health)
	}

	resp, err = http.Get(ts.URL + ClientPath)
	if err != nil {
		t.Fatal(err)
	}
	js, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	etag := resp.Header.Get("ETag")
	if len(js) == 0 || etag == "" || !strings.HasPrefix(resp.Header.Get("Content-Type"), "application/javascript") {
		t.Fatalf("client: %d bytes, etag %q", len(js), etag)
	}

	req, _ := http.NewRequest(http.MethodGet, ts.URL+ClientPath, nil)
	req.Header.Set("If-None-Match", "W/"+etag)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotModified {
		t.Errorf("revalidation status = %d", resp.StatusCode)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	m := metrics.New(metrics.WithRegistry(prometheus.NewRegistry()))
	_, ts := newTestServer(t, nil, WithMetrics(m))

	resp, err := http.Get(ts.URL + "/?lang=en")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	resp, err = http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	text := string(body)
	for _, want := range []string{"billform_http_requests_total", `route="/"`, "billform_reconcile_ops_total"} {
		if !strings.Contains(text, want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

func TestManagerCleanup(t *testing.T) {
	cfg := DefaultSessionConfig()
	sm := NewSessionManager(receipt.MustCatalog(), cfg, 0, time.Hour, nil, quietLogger())
	defer sm.Shutdown(context.Background())

	pending, err := sm.Create(receipt.NewQuery(receipt.English, ""))
	if err != nil {
		t.Fatal(err)
	}
	closed, _ := sm.Create(receipt.NewQuery(receipt.Thai, ""))
	closed.Close()

	if n := sm.cleanup(time.Now()); n != 1 {
		t.Errorf("first cleanup removed %d, want 1", n)
	}
	if _, err := sm.Get(closed.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("closed session err = %v", err)
	}
	if n := sm.cleanup(time.Now().Add(cfg.AttachTimeout + time.Second)); n != 1 {
		t.Errorf("expired cleanup removed %d, want 1", n)
	}
	if !pending.IsClosed() || sm.Count() != 0 {
		t.Errorf("pending closed %v, count %d", pending.IsClosed(), sm.Count())
	}
}

func TestQueueEventBudget(t *testing.T) {
	cfg := DefaultSessionConfig()
	cfg.EventRate = 0.001
	cfg.EventBurst = 2
	cfg.MaxEventQueue = 1
	sess, err := newSession(receipt.MustCatalog(), receipt.NewQuery(receipt.English, ""), cfg, nil, quietLogger())
	if err != nil {
		t.Fatal(err)
	}
	defer sess.Close()

	ev := &protocol.Event{Type: protocol.EventClick, HID: "h1"}
	if err := sess.QueueEvent(ev); err != nil {
		t.Fatalf("first event: %v", err)
	}
	if err := sess.QueueEvent(ev); !errors.Is(err, ErrEventQueueFull) {
		t.Errorf("second event err = %v, want queue full", err)
	}
	if err := sess.QueueEvent(ev); !errors.Is(err, ErrRateLimited) {
		t.Errorf("third event err = %v, want rate limited", err)
	}
}

func TestRemountRestoresQuery(t *testing.T) {
	sess, err := newSession(receipt.MustCatalog(), receipt.NewQuery(receipt.English, "THB"), DefaultSessionConfig(), nil, quietLogger())
	if err != nil {
		t.Fatal(err)
	}
	defer sess.Close()
	before := sess.Document().Root().Text()

	sess.remount()
	if got := sess.Document().Root().Text(); got != before {
		t.Errorf("remounted text differs:\n%q\n%q", got, before)
	}
	if sess.Receipt().Query().Cur != "THB" {
		t.Errorf("query lost in remount: %+v", sess.Receipt().Query())
	}
	if st := sess.Stats(); st.Remounts != 1 {
		t.Errorf("remounts = %d", st.Remounts)
	}
}

type panicky struct{}

func (panicky) Update(runtime.Dirty) error {
	var langs []receipt.Lang
	_ = langs[len(langs)]
	return nil
}

func TestFlushPanicRemounts(t *testing.T) {
	sess, err := newSession(receipt.MustCatalog(), receipt.NewQuery(receipt.English, "THB"), DefaultSessionConfig(), nil, quietLogger())
	if err != nil {
		t.Fatal(err)
	}
	defer sess.Close()
	before := sess.Document().Root().Text()

	sess.sched.Invalidate(panicky{}, 0)
	sess.flush()

	if st := sess.Stats(); st.Remounts != 1 {
		t.Errorf("remounts = %d, want 1", st.Remounts)
	}
	if got := sess.Document().Root().Text(); got != before {
		t.Errorf("remounted text differs:\n%q\n%q", got, before)
	}

	// The scheduler is not left mid-flush.
	sess.Receipt().SetLang(receipt.Thai)
	sess.flush()
	if sess.Receipt().Labels().Title == "Cash Sale" {
		t.Error("update after the panic was not applied")
	}
	if st := sess.Stats(); st.Remounts != 1 {
		t.Errorf("remounts = %d after a clean flush", st.Remounts)
	}
}

func TestSameOriginCheck(t *testing.T) {
	tests := []struct {
		host, origin string
		want         bool
	}{
		{"example.com", "", true},
		{"example.com", "https://example.com", true},
		{"example.com", "https://evil.com", false},
		{"example.com", "::bad", false},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/ws", nil)
		r.Host = tt.host
		if tt.origin != "" {
			r.Header.Set("Origin", tt.origin)
		}
		if got := SameOriginCheck(r); got != tt.want {
			t.Errorf("SameOriginCheck(%q, %q) = %v", tt.host, tt.origin, got)
		}
	}
}

func TestConfigDefaults(t *testing.T) {
	c := (&Config{Session: &SessionConfig{EventBurst: 7}}).withDefaults()
	if c.Address != ":8080" || c.CheckOrigin == nil || c.Session.EventBurst != 7 || c.Session.EventRate != 50 {
		t.Errorf("config = %+v session %+v", c, c.Session)
	}
	var nilCfg *Config
	if nilCfg.withDefaults().Session == nil {
		t.Error("nil config has no session defaults")
	}
}
