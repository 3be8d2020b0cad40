package cache

import (
	"iter"
	"slices"

	"github.com/tidwall/btree"
)

// orderedMap is a string-keyed map with lexicographic key iteration. The
// change log diff is a merge walk over two of these, so iteration order
// must be deterministic.
type orderedMap[V any] struct {
	tree *btree.Map[string, V]
}

func newOrderedMap[V any]() orderedMap[V] {
	return orderedMap[V]{tree: new(btree.Map[string, V])}
}

func (m *orderedMap[V]) get(key string) (V, bool) {
	return m.tree.Get(key)
}

// getOrCreate returns the value for key, inserting create() when absent.
func (m *orderedMap[V]) getOrCreate(key string, create func() V) V {
	if v, ok := m.tree.Get(key); ok {
		return v
	}
	v := create()
	m.tree.Set(key, v)
	return v
}

func (m *orderedMap[V]) delete(key string) bool {
	_, ok := m.tree.Delete(key)
	return ok
}

func (m *orderedMap[V]) len() int {
	return m.tree.Len()
}

func (m *orderedMap[V]) sortedKeys() []string {
	return m.tree.Keys()
}

func (m *orderedMap[V]) all() iter.Seq2[string, V] {
	return func(yield func(string, V) bool) {
		m.tree.Scan(yield)
	}
}

// sameKeys reports whether m and o hold the same keys.
func (m *orderedMap[V]) sameKeys(o *orderedMap[V]) bool {
	return m.tree.Len() == o.tree.Len() && slices.Equal(m.tree.Keys(), o.tree.Keys())
}

func (m *orderedMap[V]) clone(cloneValue func(V) V) orderedMap[V] {
	out := newOrderedMap[V]()
	m.tree.Scan(func(key string, v V) bool {
		out.tree.Set(key, cloneValue(v))
		return true
	})
	return out
}
