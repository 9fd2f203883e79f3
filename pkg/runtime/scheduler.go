package runtime

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
)

// DefaultMaxPasses bounds the number of update passes in one flush.
const DefaultMaxPasses = 100

// ErrFlushLoop is returned when components keep invalidating each other
// for more than the configured number of passes.
var ErrFlushLoop = errors.New("runtime: components still dirty after max flush passes")

// PanicError is returned by Flush when an update or callback panicked.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("runtime: panic during flush: %v", e.Value)
}

// Component is anything the scheduler can update.
type Component interface {
	// Update brings the component's rendered output in line with its state.
	// dirty holds the slots invalidated since the previous update.
	Update(dirty Dirty) error
}

// Lifecycle is implemented by components that need hooks around updates.
type Lifecycle interface {
	// BeforeUpdate runs before every Update.
	BeforeUpdate()
	// AfterUpdate returns the hook queued as a render callback after every
	// Update, or nil.
	AfterUpdate() *Hook
}

// Hook is a callback that runs at most once per flush, however many times
// it is queued.
type Hook struct {
	fn func()
}

// NewHook wraps fn in a Hook.
func NewHook(fn func()) *Hook {
	return &Hook{fn: fn}
}

// Run invokes the hook.
func (h *Hook) Run() {
	if h != nil && h.fn != nil {
		h.fn()
	}
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithMaxPasses sets the pass limit of a single flush.
func WithMaxPasses(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.maxPasses = n
		}
	}
}

// WithLogger sets the logger used for flush diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// Scheduler batches component invalidations into flushes.
type Scheduler struct {
	wake      func()
	maxPasses int
	logger    *slog.Logger

	queue    []Component
	masks    map[Component]Dirty
	bindings []func()
	renders  []*Hook
	flushes  []func()
	seen     map[*Hook]struct{}

	scheduled  bool
	flushing   bool
	batchDepth int

	// stats of the last flush
	lastUpdates int
	lastPasses  int
}

// NewScheduler creates a scheduler. wake is called once whenever a flush
// becomes necessary; it must not call Flush synchronously from inside
// Invalidate's caller if that caller is itself running inside Flush. A nil
// wake means the owner polls Scheduled.
func NewScheduler(wake func(), opts ...Option) *Scheduler {
	s := &Scheduler{
		wake:      wake,
		maxPasses: DefaultMaxPasses,
		logger:    slog.Default().With("component", "scheduler"),
		masks:     make(map[Component]Dirty),
		seen:      make(map[*Hook]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Invalidate marks slot of c dirty and schedules a flush if none is pending.
func (s *Scheduler) Invalidate(c Component, slot int) {
	s.InvalidateMask(c, Bit(slot))
}

// InvalidateMask marks every slot in mask dirty.
func (s *Scheduler) InvalidateMask(c Component, mask Dirty) {
	if d, ok := s.masks[c]; ok {
		s.masks[c] = d | mask
		return
	}
	s.masks[c] = mask
	s.queue = append(s.queue, c)
	s.schedule()
}

// Dirty returns the pending mask of c.
func (s *Scheduler) Dirty(c Component) Dirty {
	return s.masks[c]
}

// AddRenderCallback queues h to run after the current pass of updates.
func (s *Scheduler) AddRenderCallback(h *Hook) {
	if h == nil {
		return
	}
	s.renders = append(s.renders, h)
	s.schedule()
}

// AddBindingCallback queues fn to run after components update, before
// render callbacks. Binding callbacks run in reverse order.
func (s *Scheduler) AddBindingCallback(fn func()) {
	s.bindings = append(s.bindings, fn)
	s.schedule()
}

// AddFlushCallback queues fn to run once the flush settles.
func (s *Scheduler) AddFlushCallback(fn func()) {
	s.flushes = append(s.flushes, fn)
	s.schedule()
}

// Batch runs fn and defers the wake call until the outermost batch returns.
func (s *Scheduler) Batch(fn func()) {
	s.batchDepth++
	defer func() {
		s.batchDepth--
		if s.batchDepth == 0 && s.scheduled && !s.flushing {
			s.notify()
		}
	}()
	fn()
}

// Scheduled reports whether a flush is pending.
func (s *Scheduler) Scheduled() bool {
	return s.scheduled
}

// Pending returns the number of dirty components.
func (s *Scheduler) Pending() int {
	return len(s.queue)
}

// LastFlush returns the number of component updates and passes performed
// by the most recent flush.
func (s *Scheduler) LastFlush() (updates, passes int) {
	return s.lastUpdates, s.lastPasses
}

func (s *Scheduler) schedule() {
	if s.scheduled {
		return
	}
	s.scheduled = true
	if s.batchDepth > 0 || s.flushing {
		return
	}
	s.notify()
}

func (s *Scheduler) notify() {
	if s.wake != nil {
		s.wake()
	}
}

// Flush updates every dirty component and runs queued callbacks.
//
// An Update error aborts the flush: the remaining queues are discarded and
// the error is returned. A panic is recovered and reported the same way as
// a *PanicError. The component tree must then be treated as
// broken for this pass and remounted by the caller.
//
// Flush called from inside a running flush is a no-op; the running flush
// picks up any new work.
func (s *Scheduler) Flush() error {
	if s.flushing {
		return nil
	}
	s.flushing = true
	s.lastUpdates, s.lastPasses = 0, 0

	err := s.run()

	s.flushing = false
	s.scheduled = false
	clear(s.seen)
	if err != nil {
		s.reset()
		return err
	}
	s.logger.Debug("flush complete", "updates", s.lastUpdates, "passes", s.lastPasses)

	// Flush callbacks may have invalidated components again.
	if len(s.queue) > 0 || len(s.renders) > 0 || len(s.bindings) > 0 {
		s.schedule()
	}
	return nil
}

func (s *Scheduler) run() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	for {
		if s.lastPasses >= s.maxPasses {
			return fmt.Errorf("%w (%d passes, %d components dirty)", ErrFlushLoop, s.lastPasses, len(s.queue))
		}
		s.lastPasses++

		pass := s.queue
		s.queue = nil
		for _, c := range pass {
			dirty := s.masks[c]
			delete(s.masks, c)

			lc, hasLifecycle := c.(Lifecycle)
			if hasLifecycle {
				lc.BeforeUpdate()
			}
			if err := c.Update(dirty); err != nil {
				return fmt.Errorf("runtime: update %T: %w", c, err)
			}
			s.lastUpdates++
			if hasLifecycle {
				if h := lc.AfterUpdate(); h != nil {
					s.renders = append(s.renders, h)
				}
			}
		}

		for len(s.bindings) > 0 {
			last := len(s.bindings) - 1
			fn := s.bindings[last]
			s.bindings = s.bindings[:last]
			fn()
		}

		for i := 0; i < len(s.renders); i++ {
			h := s.renders[i]
			if _, ok := s.seen[h]; ok {
				continue
			}
			s.seen[h] = struct{}{}
			h.Run()
		}
		s.renders = s.renders[:0]

		if len(s.queue) == 0 {
			break
		}
	}

	for len(s.flushes) > 0 {
		last := len(s.flushes) - 1
		fn := s.flushes[last]
		s.flushes = s.flushes[:last]
		fn()
	}
	return nil
}

func (s *Scheduler) reset() {
	s.queue = nil
	clear(s.masks)
	s.bindings = nil
	s.renders = nil
	s.flushes = nil
}
