package reconcile

import (
	"github.com/vango-dev/billform/pkg/dom"
	"github.com/vango-dev/billform/pkg/runtime"
)

// List owns the blocks of one keyed list and the lookup that persists
// between its passes.
type List[K comparable, C any] struct {
	key     func(C) K
	create  func(K, C) Block[K]
	dynamic bool

	target *dom.Node
	anchor *dom.Node
	blocks []Block[K]
	lookup map[K]Block[K]

	// Stats accumulates the operations of every pass since the list was
	// created.
	Stats Stats
}

// NewList creates an empty list. dynamic makes reused blocks patch on
// every Update.
func NewList[K comparable, C any](key func(C) K, create func(K, C) Block[K], dynamic bool) *List[K, C] {
	return &List[K, C]{
		key:     key,
		create:  create,
		dynamic: dynamic,
		lookup:  make(map[K]Block[K]),
	}
}

// Init creates the blocks for the first n records without mounting them.
func (l *List[K, C]) Init(n int, ctx func(i int) C) error {
	l.blocks = make([]Block[K], 0, n)
	for i := 0; i < n; i++ {
		c := ctx(i)
		key := l.key(c)
		b := l.create(key, c)
		if err := b.Create(); err != nil {
			return err
		}
		l.Stats.Created++
		l.lookup[key] = b
		l.blocks = append(l.blocks, b)
	}
	return nil
}

// Mount inserts every block into target before anchor, in order.
// Later updates reconcile against the same target and anchor.
func (l *List[K, C]) Mount(target, anchor *dom.Node) error {
	l.target, l.anchor = target, anchor
	for _, b := range l.blocks {
		if err := b.Mount(target, anchor); err != nil {
			return err
		}
		l.Stats.Inserted++
	}
	return nil
}

// Update reconciles the list against n records.
func (l *List[K, C]) Update(n int, ctx func(i int) C, dirty runtime.Dirty) error {
	blocks, err := Reconcile(l.blocks, Pass[K, C]{
		Len:     n,
		Context: ctx,
		Key:     l.key,
		Dynamic: l.dynamic,
		Dirty:   dirty,
		Target:  l.target,
		Anchor:  l.anchor,
		Lookup:  l.lookup,
		Create:  l.create,
		Stats:   &l.Stats,
	})
	if err != nil {
		return err
	}
	l.blocks = blocks
	return nil
}

// Destroy destroys every block. detach removes their nodes from the tree.
func (l *List[K, C]) Destroy(detach bool) error {
	var first error
	for _, b := range l.blocks {
		if err := b.Destroy(detach); err != nil && first == nil {
			first = err
		}
	}
	l.blocks = nil
	clear(l.lookup)
	return first
}

// Len returns the number of blocks.
func (l *List[K, C]) Len() int {
	return len(l.blocks)
}

// Blocks returns the current blocks in order. The slice must not be modified.
func (l *List[K, C]) Blocks() []Block[K] {
	return l.blocks
}

// Lookup returns the mounted block for key.
func (l *List[K, C]) Lookup(key K) (Block[K], bool) {
	b, ok := l.lookup[key]
	return b, ok
}
