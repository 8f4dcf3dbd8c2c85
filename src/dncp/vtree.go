package dncp

import (
	iradix "github.com/hashicorp/go-immutable-radix"
)

// vtree is a byte-keyed ordered set. Every insert, replace and delete goes
// through update, which sees the previous and the new element; a missing side
// is the zero value.
//
// The radix tree is immutable, so walks iterate over a snapshot and the set
// may be modified from within the walk callback.
type vtree[V any] struct {
	tree   *iradix.Tree
	update func(old, cur V)
}

func newVtree[V any](update func(old, cur V)) *vtree[V] {
	return &vtree[V]{
		tree:   iradix.New(),
		update: update,
	}
}

func (t *vtree[V]) Get(key []byte) (V, bool) {
	v, ok := t.tree.Get(key)
	if !ok {
		var zero V
		return zero, false
	}
	return v.(V), true
}

// Set inserts v, replacing an element with the same key.
func (t *vtree[V]) Set(key []byte, v V) {
	tree, prev, replaced := t.tree.Insert(key, v)
	t.tree = tree
	var old V
	if replaced {
		old = prev.(V)
	}
	if t.update != nil {
		t.update(old, v)
	}
}

func (t *vtree[V]) Delete(key []byte) (V, bool) {
	tree, prev, ok := t.tree.Delete(key)
	var old V
	if !ok {
		return old, false
	}
	t.tree = tree
	old = prev.(V)
	if t.update != nil {
		var zero V
		t.update(old, zero)
	}
	return old, true
}

func (t *vtree[V]) Len() int {
	return t.tree.Len()
}

// Walk calls fn in key order until it returns false.
func (t *vtree[V]) Walk(fn func(V) bool) {
	t.tree.Root().Walk(func(k []byte, v interface{}) bool {
		return !fn(v.(V))
	})
}

// WalkPrefix is Walk restricted to keys starting with prefix.
func (t *vtree[V]) WalkPrefix(prefix []byte, fn func(V) bool) {
	t.tree.Root().WalkPrefix(prefix, func(k []byte, v interface{}) bool {
		return !fn(v.(V))
	})
}

// Values returns a snapshot of the elements in key order.
func (t *vtree[V]) Values() []V {
	res := make([]V, 0, t.tree.Len())
	t.Walk(func(v V) bool {
		res = append(res, v)
		return true
	})
	return res
}
