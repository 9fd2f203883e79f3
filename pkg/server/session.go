package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/vango-dev/billform/pkg/dom"
	"github.com/vango-dev/billform/pkg/metrics"
	"github.com/vango-dev/billform/pkg/protocol"
	"github.com/vango-dev/billform/pkg/receipt"
	"github.com/vango-dev/billform/pkg/reconcile"
	"github.com/vango-dev/billform/pkg/runtime"
	"github.com/vango-dev/billform/pkg/view"
)

// Session is one live receipt page: its document, scheduler and component,
// plus the WebSocket that drives them.
//
// The document, scheduler and component are owned by the event loop. Before
// Attach they are touched only by the goroutine that created the session.
type Session struct {
	ID        string
	CreatedAt time.Time

	lastActive atomic.Int64 // unix nanoseconds

	doc     *dom.Document
	sched   *runtime.Scheduler
	view    *view.Receipt
	catalog *receipt.Catalog
	stats   reconcile.Stats // last stats reported to metrics

	// Connection
	conn     *websocket.Conn
	mu       sync.Mutex // protects conn writes
	attached atomic.Bool
	closed   atomic.Bool
	sendSeq  atomic.Uint64

	// Channels
	events     chan *protocol.Event
	dispatchCh chan func()
	wakeCh     chan struct{}
	done       chan struct{}

	limiter *rate.Limiter
	config  *SessionConfig
	metrics *metrics.Metrics
	logger  *slog.Logger

	eventCount atomic.Uint64
	patchCount atomic.Uint64
	remounts   atomic.Uint64
}

func newSession(catalog *receipt.Catalog, q receipt.Query, config *SessionConfig, m *metrics.Metrics, logger *slog.Logger) (*Session, error) {
	now := time.Now()
	id := uuid.NewString()
	s := &Session{
		ID:         id,
		CreatedAt:  now,
		doc:        dom.NewDocument(),
		catalog:    catalog,
		events:     make(chan *protocol.Event, config.MaxEventQueue),
		dispatchCh: make(chan func(), config.MaxEventQueue),
		wakeCh:     make(chan struct{}, 1),
		done:       make(chan struct{}),
		limiter:    rate.NewLimiter(rate.Limit(config.EventRate), config.EventBurst),
		config:     config,
		metrics:    m,
		logger:     logger.With("session_id", id),
	}
	s.lastActive.Store(now.UnixNano())
	s.sched = runtime.NewScheduler(s.wake, runtime.WithLogger(s.logger))
	if err := s.mount(q); err != nil {
		return nil, err
	}
	// The first paint is served as HTML, not patches.
	s.doc.Drain()
	return s, nil
}

func (s *Session) mount(q receipt.Query) error {
	s.view = view.New(s.doc, s.sched, s.catalog, q, view.WithLogger(s.logger))
	if err := s.view.Mount(s.doc.Root()); err != nil {
		return &SessionError{SessionID: s.ID, Op: "mount", Err: err}
	}
	s.stats = s.view.Stats()
	s.metrics.RecordReconcile(s.stats)
	return nil
}

// Document returns the session document. It must only be read on the event
// loop or before Attach.
func (s *Session) Document() *dom.Document {
	return s.doc
}

// Receipt returns the mounted component. Same ownership rules as Document.
func (s *Session) Receipt() *view.Receipt {
	return s.view
}

// wake is the scheduler's wake function. It runs on the event loop, so it
// only signals; the flush happens when the loop comes back around.
func (s *Session) wake() {
	select {
	case s.wakeCh <- struct{}{}:
	default:
	}
}

// Attach binds the WebSocket connection and starts the session loops. The
// client first receives the full tree, which tells it the HIDs of text
// nodes the HTML could not carry.
func (s *Session) Attach(conn *websocket.Conn) error {
	if s.closed.Load() {
		return ErrSessionClosed
	}
	if s.attached.Swap(true) {
		return ErrAlreadyAttached
	}
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
	s.touch()
	s.metrics.SessionOpened()

	s.Dispatch(s.resync)
	go s.ReadLoop()
	go s.WriteLoop()
	go s.EventLoop()
	s.logger.Info("session attached")
	return nil
}

// Attached reports whether a connection has been bound.
func (s *Session) Attached() bool {
	return s.attached.Load()
}

// EventLoop applies events and dispatched functions, flushing the scheduler
// after each. It runs until the session closes.
func (s *Session) EventLoop() {
	for {
		select {
		case ev := <-s.events:
			s.handleEvent(ev)
			s.flush()

		case fn := <-s.dispatchCh:
			s.execute(fn)
			s.flush()

		case <-s.wakeCh:
			s.flush()

		case <-s.done:
			return
		}
	}
}

func (s *Session) handleEvent(ev *protocol.Event) {
	s.eventCount.Add(1)
	status := "ok"
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("event handler panic",
				"panic", r,
				"hid", ev.HID,
				"type", ev.Type.String(),
				"stack", string(debug.Stack()))
			s.sendError(protocol.NewError(protocol.ErrHandlerPanic, "handler failed"))
			s.metrics.RecordEvent(ev.Type.String(), "error")
			s.remount()
			return
		}
		s.metrics.RecordEvent(ev.Type.String(), status)
	}()

	if err := s.doc.Dispatch(ev.HID, ev.DOM()); err != nil {
		// Events can race a remount and target nodes that are gone.
		s.logger.Warn("event not delivered", "hid", ev.HID, "type", ev.Type.String(), "error", err)
		s.sendError(protocol.NewError(protocol.ErrHandlerNotFound, ev.HID))
		status = "error"
	}
}

// execute runs fn on the event loop with panic recovery.
func (s *Session) execute(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("dispatch panic", "panic", r, "stack", string(debug.Stack()))
			s.safeRemount()
		}
	}()
	fn()
}

// flush runs the scheduler and sends whatever the document journalled.
// A failed flush leaves the tree in an unknown state, so the component is
// rebuilt from its current query and the client gets the whole tree.
// Panics in updates come back from the scheduler as errors; the recover
// here covers journal draining and sending.
func (s *Session) flush() {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("flush panic", "panic", r, "stack", string(debug.Stack()))
			s.safeRemount()
		}
	}()

	_, span := s.metrics.StartFlush(context.Background(), s.ID)
	start := time.Now()
	err := s.sched.Flush()
	s.metrics.ObserveFlush(time.Since(start), err)
	metrics.End(span, err)

	if err != nil {
		var pe *runtime.PanicError
		if errors.As(err, &pe) {
			s.logger.Error("flush failed, remounting", "error", err, "stack", string(pe.Stack))
			s.sendError(protocol.NewError(protocol.ErrHandlerPanic, "update failed"))
		} else {
			s.logger.Error("flush failed, remounting", "error", err)
		}
		s.remount()
		return
	}
	s.recordStats()
	if patches := s.doc.Drain(); len(patches) > 0 {
		s.sendPatches(patches, 0)
	}
}

func (s *Session) recordStats() {
	now := s.view.Stats()
	delta := reconcile.Stats{
		Created:   now.Created - s.stats.Created,
		Patched:   now.Patched - s.stats.Patched,
		Inserted:  now.Inserted - s.stats.Inserted,
		Moved:     now.Moved - s.stats.Moved,
		Destroyed: now.Destroyed - s.stats.Destroyed,
	}
	s.stats = now
	s.metrics.RecordReconcile(delta)
}

// remount rebuilds the component from its last query and resyncs the client.
// If that query cannot be mounted either, the session falls back to a blank
// document in the same language.
func (s *Session) remount() {
	s.remounts.Add(1)
	q := s.view.Query()
	if err := s.view.Destroy(false); err != nil {
		s.logger.Warn("destroy before remount", "error", err)
	}
	s.doc.Clear()
	if err := s.mount(q); err != nil {
		s.logger.Error("remount failed, resetting document", "error", err)
		_ = s.view.Destroy(false)
		s.doc.Clear()
		if err := s.mount(s.catalog.Defaults(q.Lang)); err != nil {
			s.logger.Error("blank remount failed", "error", err)
			s.sendError(protocol.NewFatalError(protocol.ErrServerError, "document unavailable"))
			s.Close()
			return
		}
	}
	s.resync()
}

// safeRemount remounts and closes the session if remounting panics too.
func (s *Session) safeRemount() {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("remount panic", "panic", r, "stack", string(debug.Stack()))
			s.sendError(protocol.NewFatalError(protocol.ErrServerError, "document unavailable"))
			s.Close()
		}
	}()
	s.remount()
}

// resync sends the whole tree.
func (s *Session) resync() {
	s.sendPatches(s.doc.Resync(), protocol.FlagResync)
}

// Dispatch queues fn to run on the event loop. It is safe to call from any
// goroutine; the scheduler is flushed after fn returns.
func (s *Session) Dispatch(fn func()) {
	if s.closed.Load() {
		return
	}
	select {
	case s.dispatchCh <- fn:
	case <-s.done:
	default:
		s.logger.Warn("dispatch queue full, dropping function")
	}
}

// QueueEvent queues a client event, enforcing the event rate budget.
func (s *Session) QueueEvent(ev *protocol.Event) error {
	if !s.limiter.Allow() {
		s.metrics.RecordEvent(ev.Type.String(), "dropped")
		return ErrRateLimited
	}
	select {
	case s.events <- ev:
		return nil
	default:
		s.metrics.RecordEvent(ev.Type.String(), "dropped")
		return ErrEventQueueFull
	}
}

func (s *Session) touch() {
	s.lastActive.Store(time.Now().UnixNano())
}

// LastActive returns the time of the last client message.
func (s *Session) LastActive() time.Time {
	return time.Unix(0, s.lastActive.Load())
}

// Close closes the session and its connection. It is idempotent.
func (s *Session) Close() {
	if s.closed.Swap(true) {
		return
	}
	close(s.done)

	s.mu.Lock()
	if s.conn != nil {
		s.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		s.conn.Close()
	}
	s.mu.Unlock()

	if s.attached.Load() {
		s.metrics.SessionClosed()
	}
	s.logger.Info("session closed",
		"events", s.eventCount.Load(),
		"patches", s.patchCount.Load(),
		"remounts", s.remounts.Load())
}

// IsClosed returns whether the session is closed.
func (s *Session) IsClosed() bool {
	return s.closed.Load()
}

// Done returns a channel that is closed when the session is closed.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Stats summarizes a session for logs and health output.
type Stats struct {
	ID       string        `json:"id"`
	Attached bool          `json:"attached"`
	Age      time.Duration `json:"age"`
	Events   uint64        `json:"events"`
	Patches  uint64        `json:"patches"`
	Remounts uint64        `json:"remounts"`
}

// Stats returns a snapshot of the session counters.
func (s *Session) Stats() Stats {
	return Stats{
		ID:       s.ID,
		Attached: s.attached.Load(),
		Age:      time.Since(s.CreatedAt),
		Events:   s.eventCount.Load(),
		Patches:  s.patchCount.Load(),
		Remounts: s.remounts.Load(),
	}
}

func (s *Session) String() string {
	return fmt.Sprintf("session %s", s.ID)
}
