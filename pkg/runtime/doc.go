// Package runtime provides the component update loop for billform.
//
// A Scheduler replaces process-wide render queues with one value per
// application instance. Components mark themselves dirty through
// Invalidate; the first invalidation after a flush calls the wake function
// supplied by the owner of the render loop, which then calls Flush on its
// own goroutine.
//
// # Flush order
//
// Flush repeats until no component is dirty:
//
//  1. Each dirty component runs its before-update hooks and then
//     Update(dirty), in invalidation order.
//  2. Binding callbacks run in reverse order of registration.
//  3. Render callbacks (after-update hooks) run, each at most once per
//     flush.
//
// Flush callbacks run last, in reverse order.
//
// # Batching
//
// Batch defers the wake call until the outermost batch returns, so all
// invalidations inside it are reflected by a single flush:
//
//	s.Batch(func() {
//	    s.Invalidate(app, BitQuery)
//	    s.Invalidate(app, BitLabels)
//	})
//
// A Scheduler is not safe for concurrent use.
package runtime
