// Package reconcile implements keyed list reconciliation over the retained
// tree in pkg/dom.
//
// A keyed list renders one Block per record. Between passes the reconciler
// reuses blocks whose key persists, creates blocks for new keys, destroys
// blocks whose key disappeared and repositions reused blocks with as few
// moves as it can find.
//
// The walk runs from the tail of both the old and the new sequence:
//
//   - identical blocks at both tails are already in place;
//   - an old block whose key is gone is destroyed;
//   - a new block that is not mounted yet, or whose key was marked to move,
//     is inserted before the current anchor;
//   - an old block that already moved is skipped;
//   - otherwise the side with the larger index delta moves, and equal
//     deltas defer the old block.
//
// Reconcile is not safe for concurrent use with the same lookup map.
package reconcile
