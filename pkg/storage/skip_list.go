// Package storage provides storage-related data structures and utilities.
//
// This file implements a generic concurrent SkipList. A skip list maintains
// multiple forward-pointer layers over a sorted linked list. Each key may be
// promoted to higher levels with probability p, forming express lanes that
// let searches skip over large ranges. Operations start at the highest level
// and descend when advancing would overshoot the target key.
//
// Properties
//   - Expected time complexity for Get/Insert: O(log n)
//   - Space complexity: O(n)
//   - Probabilistic balancing controlled by promotion probability p
//   - The level count grows with the element count and never shrinks
//   - Keys are never deleted; level 0 holds every entry in ascending order
//
// Concurrency
//
// Every node carries its own reader/writer lock; there is no structure-wide
// lock. Walks hold at most one node's read lock at a time, copying the needed
// pointer out before moving on. Inserts resolve the duplicate-key race at
// level 0: the existence check and the splice happen atomically under the
// level-0 predecessor's write lock, stepping forward (one lock at a time)
// when a concurrent splice has moved the predecessor. Splices at higher
// levels are independent per-level steps, so a reader may observe a new node
// at level 2 before level 0 or vice versa; level 0 is the ground truth, and
// a node is fully constructed before any forward pointer exposes it.
package storage

import (
	"errors"
	"fmt"
	"iter"
	"math"
	"math/rand/v2"
	"sync/atomic"

	"github.com/guavadb/guava/pkg/utils"
)

// SkipList is a probabilistically balanced ordered map over keys ordered by
// the provided comparison function.
type SkipList[K any, V any] struct {
	compare utils.CompareFn[K]
	head    *node[K, V]
	max     atomic.Int32 // Current level count; grows, never shrinks.
	length  atomic.Int64 // Number of distinct keys.
	p       float64      // Probability that a node is promoted to the next level.
}

// NewSkipList creates a new empty skip list.
// `initialLevels` is the starting level count (the structure grows on its own
// as entries accumulate) and `p` is the level promotion probability,
// typically 0.5 or 0.25. Both are validated here rather than producing a
// silently degenerate structure.
func NewSkipList[K any, V any](compare utils.CompareFn[K], initialLevels int, p float64) (*SkipList[K, V], error) {
	if compare == nil {
		return nil, errors.New("expected a non-nil compare function")
	}
	if initialLevels < 1 {
		return nil, fmt.Errorf("expected initialLevels >= 1, got %d", initialLevels)
	}
	if p <= 0 || p >= 1 {
		return nil, fmt.Errorf("expected promotion probability in (0, 1), got %g", p)
	}
	list := &SkipList[K, V]{compare: compare, head: newHead[K, V](initialLevels), p: p}
	list.max.Store(int32(initialLevels))
	return list, nil
}

// Len returns the number of distinct keys in the skip list.
func (s *SkipList[K, V]) Len() int {
	return int(s.length.Load())
}

// IsEmpty reports whether the skip list holds no entries.
func (s *SkipList[K, V]) IsEmpty() bool {
	return s.Len() == 0
}

// Levels returns the current level count. It only ever increases.
func (s *SkipList[K, V]) Levels() int {
	return int(s.max.Load())
}

// randomLevel draws a level from a geometric distribution truncated at the
// current level count: level l keeps roughly p^l of the entries, which is
// what bounds the expected search depth logarithmically.
func (s *SkipList[K, V]) randomLevel() int {
	maxLevel := int(s.max.Load())
	lvl := 1
	for lvl < maxLevel && rand.Float64() < s.p {
		lvl++
	}
	return lvl
}

// Get returns the value for key and whether the key is present. A missing
// key is a normal absent result, not an error. Get never mutates the list.
func (s *SkipList[K, V]) Get(key K) (V, bool) {
	curr := s.head
	for lvl := int(s.max.Load()) - 1; lvl >= 0; lvl-- {
		for next := curr.next(lvl); next != nil && s.compare(next.key, key) < 0; next = curr.next(lvl) {
			curr = next
		}
	}
	// Candidate is the level-0 successor of the tightest predecessor.
	if candidate := curr.next(0); candidate != nil && s.compare(candidate.key, key) == 0 {
		return candidate.value(), true
	}
	var zero V
	return zero, false
}

// Contains reports whether the key is present.
func (s *SkipList[K, V]) Contains(key K) bool {
	_, found := s.Get(key)
	return found
}

// Insert upserts the key. If the key already exists its value is replaced in
// place (the node keeps its identity, level, and forward pointers) and the
// previous value is returned with existed=true. Otherwise a new node is
// spliced in across a randomly drawn set of levels and existed is false.
func (s *SkipList[K, V]) Insert(key K, value V) (previous V, existed bool) {
	maxLevel := int(s.max.Load())
	// Track the last node before the insertion point at each level.
	preds := make([]*node[K, V], maxLevel)
	curr := s.head
	for lvl := maxLevel - 1; lvl >= 0; lvl-- {
		for next := curr.next(lvl); next != nil && s.compare(next.key, key) < 0; next = curr.next(lvl) {
			curr = next
		}
		preds[lvl] = curr
	}

	// The existence check and the level-0 splice must be one atomic step or
	// two racing inserts of the same new key would both splice, breaking the
	// no-duplicates invariant of level 0. The recorded predecessor may be
	// stale by the time its write lock is held, so step forward as needed;
	// keys only ever move closer (nothing is deleted), which bounds the walk.
	pred := preds[0]
	for {
		pred.mux.Lock()
		next := pred.fwd[0]
		if next != nil {
			if diff := s.compare(next.key, key); diff < 0 {
				pred.mux.Unlock()
				pred = next
				continue
			} else if diff == 0 {
				pred.mux.Unlock()
				return next.replace(value), true
			}
		}
		// The level count may have grown since the predecessors were
		// recorded; cap the draw so every level has a splice point.
		lvl := min(s.randomLevel(), maxLevel)
		entry := newEntry(key, value, lvl)
		// The entry is fully built before the predecessor pointer swings to
		// it, so any reader reaching it through level 0 sees a complete node.
		entry.fwd[0] = next
		pred.fwd[0] = entry
		pred.mux.Unlock()

		s.spliceUpper(preds, entry, lvl)
		s.length.Add(1)
		s.resize()
		var zero V
		return zero, false
	}
}

// spliceUpper links the entry into levels 1..level-1. Each level is an
// independent splice under that level's predecessor write lock; concurrent
// readers may briefly see the entry at some levels and not others, which is
// fine because level 0 already holds it.
func (s *SkipList[K, V]) spliceUpper(preds []*node[K, V], entry *node[K, V], level int) {
	for lvl := 1; lvl < level; lvl++ {
		pred := preds[lvl]
		for {
			pred.mux.Lock()
			next := pred.fwd[lvl]
			if next != nil && s.compare(next.key, entry.key) < 0 {
				pred.mux.Unlock()
				pred = next
				continue
			}
			// The entry is only reachable at this level once the predecessor
			// points at it, so its own forward slot is assigned first.
			entry.fwd[lvl] = next
			pred.fwd[lvl] = entry
			pred.mux.Unlock()
			break
		}
	}
}

// optimalLevels computes the target level count for the current length:
// ceil(log2(len)) + 2, with a floor of one level for the empty list.
func (s *SkipList[K, V]) optimalLevels() int {
	length := s.length.Load()
	if length == 0 {
		return 1
	}
	return max(int(math.Ceil(math.Log2(float64(length))))+2, 1)
}

// resize grows the head's forward array when the element count has outgrown
// the current level count. Existing entries are never retrofitted with new
// levels; they simply stay invisible above their own assigned level.
func (s *SkipList[K, V]) resize() {
	if optimal := s.optimalLevels(); optimal > int(s.max.Load()) {
		s.grow(optimal)
	}
}

// grow appends empty slots to the head until it serves `target` levels, then
// publishes the new level count. The count is published after the head can
// serve it and only ever moves up, even when growers race.
func (s *SkipList[K, V]) grow(target int) {
	s.head.mux.Lock()
	for len(s.head.fwd) < target {
		s.head.fwd = append(s.head.fwd, nil)
	}
	s.head.mux.Unlock()
	for {
		curr := s.max.Load()
		if int32(target) <= curr || s.max.CompareAndSwap(curr, int32(target)) {
			return
		}
	}
}

// Items yields every entry in ascending key order by walking level 0, the
// one level that holds the full map. Values are copied out under short read
// locks; a concurrently inserted key may or may not be observed.
func (s *SkipList[K, V]) Items() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		for n := s.head.next(0); n != nil; n = n.next(0) {
			if !yield(n.key, n.value()) {
				return
			}
		}
	}
}

// LevelCounts returns the number of entries linked at each level, level 0
// first. Intended for diagnostics; it walks every chain.
func (s *SkipList[K, V]) LevelCounts() []int {
	counts := make([]int, s.Levels())
	for lvl := range counts {
		for n := s.head.next(lvl); n != nil; n = n.next(lvl) {
			counts[lvl]++
		}
	}
	return counts
}
