// Skip list node topology. A node is either the list's head sentinel or a
// stored entry; both carry one forward pointer per level they participate in,
// so traversal code never special-cases the head beyond its absent key/value.

package storage

import "sync"

// node is a single skip list node guarded by its own reader/writer lock.
// The key is immutable after construction; the value and the forward pointers
// are only mutated under the node's write lock. Lock scopes stay short: a
// field is copied out and the lock released before the next node is touched.
type node[K any, V any] struct {
	mux sync.RWMutex
	key K
	val V
	fwd []*node[K, V] // forward pointers per level (0..level-1)
}

// newHead creates the sentinel node with the given number of empty levels.
// The sentinel holds no key or value; its zero fields are never compared.
func newHead[K any, V any](levels int) *node[K, V] {
	return &node[K, V]{fwd: make([]*node[K, V], levels)}
}

// newEntry creates an entry node participating in exactly `level` levels.
func newEntry[K any, V any](key K, val V, level int) *node[K, V] {
	return &node[K, V]{key: key, val: val, fwd: make([]*node[K, V], level)}
}

// next returns the successor at the given level, or nil when the node does
// not participate in that level. The head grows its forward array over the
// structure's lifetime, hence the bounds check under the read lock.
func (n *node[K, V]) next(level int) *node[K, V] {
	n.mux.RLock()
	defer n.mux.RUnlock()
	if level >= len(n.fwd) {
		return nil
	}
	return n.fwd[level]
}

// value copies the node's value out under a short read lock.
func (n *node[K, V]) value() V {
	n.mux.RLock()
	defer n.mux.RUnlock()
	return n.val
}

// replace swaps the node's value in place and returns the previous one.
// The node's identity, level, and forward pointers are untouched.
func (n *node[K, V]) replace(val V) V {
	n.mux.Lock()
	defer n.mux.Unlock()
	previous := n.val
	n.val = val
	return previous
}
