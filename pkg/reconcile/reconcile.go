package reconcile

import (
	"fmt"

	"github.com/vango-dev/billform/pkg/dom"
	"github.com/vango-dev/billform/pkg/runtime"
)

// Creatable builds a block's nodes. Created nodes stay detached until Mount.
type Creatable interface {
	Create() error
}

// Mountable inserts a block's nodes into target before anchor. A nil anchor
// appends. Mounting an already mounted block moves it.
type Mountable interface {
	Mount(target, anchor *dom.Node) error
}

// Destroyable releases a block. When detach is true the block also removes
// its nodes from the tree.
type Destroyable interface {
	Destroy(detach bool) error
}

// Patchable is implemented by blocks whose content follows their record.
// ctx is the block's render context for the current pass.
type Patchable[C any] interface {
	Patch(ctx C, dirty runtime.Dirty) error
}

// Block is a rendered list item.
type Block[K comparable] interface {
	Creatable
	Mountable
	Destroyable

	// Key returns the key the block was created for.
	Key() K
	// First returns the block's leading node, used as the insertion anchor
	// for the block before it.
	First() *dom.Node
}

// Stats counts the block operations of one or more passes.
type Stats struct {
	Created   int // blocks built for new keys
	Patched   int // reused blocks patched in place
	Inserted  int // new blocks mounted
	Moved     int // reused blocks re-mounted at a new position
	Destroyed int // blocks whose key disappeared
}

// Add accumulates o into s.
func (s *Stats) Add(o Stats) {
	s.Created += o.Created
	s.Patched += o.Patched
	s.Inserted += o.Inserted
	s.Moved += o.Moved
	s.Destroyed += o.Destroyed
}

// Ops returns the number of tree operations: inserts, moves and destroys.
func (s Stats) Ops() int {
	return s.Inserted + s.Moved + s.Destroyed
}

// DestroyFunc releases a block and removes it from lookup.
type DestroyFunc[K comparable] func(b Block[K], lookup map[K]Block[K]) error

// DestroyBlock destroys b with detach and drops its key from lookup.
func DestroyBlock[K comparable](b Block[K], lookup map[K]Block[K]) error {
	err := b.Destroy(true)
	delete(lookup, b.Key())
	return err
}

// Pass describes one reconciliation of a keyed list.
type Pass[K comparable, C any] struct {
	// Len is the number of records in the new sequence.
	Len int
	// Context returns the render context of record i.
	Context func(i int) C
	// Key maps a render context to the record's key. Keys must be unique
	// within the pass.
	Key func(ctx C) K

	// Dynamic makes reused blocks implementing Patchable[C] patch with
	// their new context and Dirty.
	Dynamic bool
	Dirty   runtime.Dirty

	// Target is the container and Anchor the node the list ends before.
	// A nil Anchor means the list runs to the end of Target.
	Target *dom.Node
	Anchor *dom.Node

	// Lookup maps every mounted key to its block. It persists across passes
	// and is updated in place.
	Lookup map[K]Block[K]

	// Create builds the block for a key seen for the first time.
	Create func(key K, ctx C) Block[K]
	// Destroy releases a block whose key is gone. Nil means DestroyBlock.
	Destroy DestroyFunc[K]

	// Stats, if set, accumulates the operations of the pass.
	Stats *Stats
}

// Reconcile updates the blocks of old to match the records of p and
// returns the new block sequence.
//
// Reused blocks are patched during the first scan, before anything is
// destroyed or moved, so a failed patch leaves the tree and Lookup as they
// were. Other block errors abort the pass and are returned as is with a nil
// sequence; the list is then partially updated and the caller must remount
// it.
func Reconcile[K comparable, C any](old []Block[K], p Pass[K, C]) ([]Block[K], error) {
	if p.Lookup == nil {
		return nil, fmt.Errorf("reconcile: nil lookup")
	}
	destroy := p.Destroy
	if destroy == nil {
		destroy = DestroyBlock[K]
	}
	var stats Stats

	o := len(old)
	n := p.Len

	oldIndexes := make(map[K]int, o)
	for i := o - 1; i >= 0; i-- {
		oldIndexes[old[i].Key()] = i
	}

	blocks := make([]Block[K], n)
	newLookup := make(map[K]Block[K], n)
	deltas := make(map[K]int)

	for i := n - 1; i >= 0; i-- {
		ctx := p.Context(i)
		key := p.Key(ctx)
		b, ok := p.Lookup[key]
		if !ok {
			b = p.Create(key, ctx)
			if err := b.Create(); err != nil {
				return nil, err
			}
			stats.Created++
		} else if p.Dynamic {
			if pb, ok := b.(Patchable[C]); ok {
				if err := pb.Patch(ctx, p.Dirty); err != nil {
					return nil, err
				}
				stats.Patched++
			}
		}
		blocks[i] = b
		newLookup[key] = b
		if oi, ok := oldIndexes[key]; ok {
			deltas[key] = abs(i - oi)
		}
	}

	willMove := make(map[K]struct{})
	didMove := make(map[K]struct{})
	next := p.Anchor

	insert := func(b Block[K]) error {
		_, mounted := p.Lookup[b.Key()]
		if err := b.Mount(p.Target, next); err != nil {
			return err
		}
		if mounted {
			stats.Moved++
		} else {
			stats.Inserted++
		}
		p.Lookup[b.Key()] = b
		next = b.First()
		n--
		return nil
	}

	for o > 0 && n > 0 {
		newBlock := blocks[n-1]
		oldBlock := old[o-1]
		newKey := newBlock.Key()
		oldKey := oldBlock.Key()

		_, newMounted := p.Lookup[newKey]
		_, newWillMove := willMove[newKey]
		_, oldDidMove := didMove[oldKey]

		switch {
		case newBlock == oldBlock:
			// already in place
			next = newBlock.First()
			o--
			n--
		case !has(newLookup, oldKey):
			if err := destroy(oldBlock, p.Lookup); err != nil {
				return nil, err
			}
			stats.Destroyed++
			o--
		case !newMounted || newWillMove:
			if err := insert(newBlock); err != nil {
				return nil, err
			}
		case oldDidMove:
			o--
		case deltas[newKey] > deltas[oldKey]:
			didMove[newKey] = struct{}{}
			if err := insert(newBlock); err != nil {
				return nil, err
			}
		default:
			willMove[oldKey] = struct{}{}
			o--
		}
	}

	for o > 0 {
		o--
		if b := old[o]; !has(newLookup, b.Key()) {
			if err := destroy(b, p.Lookup); err != nil {
				return nil, err
			}
			stats.Destroyed++
		}
	}

	for n > 0 {
		if err := insert(blocks[n-1]); err != nil {
			return nil, err
		}
	}

	if p.Stats != nil {
		p.Stats.Add(stats)
	}
	return blocks, nil
}

func has[K comparable, V any](m map[K]V, k K) bool {
	_, ok := m[k]
	return ok
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
