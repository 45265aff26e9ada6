// Guava keeps multiple sorted sequences around (memtable shards, and any
// future sorted source), and a full ordered walk has to interleave them
// without materializing everything in memory first.
//
// This module implements a heap-based multi-way iterator that lazily yields
// from multiple underlying iterators. Keys pulled from the sequences come out
// globally sorted; when two sequences produce the same key, the earlier
// sequence wins and the later one's value is discarded.

package scan

import (
	"container/heap"
	"errors"
	"iter"

	"github.com/guavadb/guava/pkg/utils"
)

// headElement is the latest item pulled from one of the merged sequences.
type headElement[K any, V any] struct {
	key    K
	val    V
	seqIdx int // Index of the producing sequence; doubles as its priority.
}

// headHeap orders the pulled items by key, then by sequence priority.
type headHeap[K any, V any] struct { // Implements heap.Interface.
	compare  utils.CompareFn[K]
	elements []*headElement[K, V]
}

var _ heap.Interface = (*headHeap[int, int])(nil)

func (hh *headHeap[K, V]) Len() int {
	return len(hh.elements)
}

// Less returns true when element[i] has a smaller key, or the same key from
// a higher-priority sequence.
func (hh *headHeap[K, V]) Less(i, j int) bool {
	e1, e2 := hh.elements[i], hh.elements[j]
	if diff := hh.compare(e1.key, e2.key); diff == 0 {
		return e1.seqIdx < e2.seqIdx
	} else {
		return diff < 0
	}
}

func (hh *headHeap[K, V]) Swap(i, j int) {
	hh.elements[i], hh.elements[j] = hh.elements[j], hh.elements[i]
}

// Push adds the given element to the heap if it matches the expected type.
func (hh *headHeap[K, V]) Push(x any) {
	if element, ok := x.(*headElement[K, V]); !ok {
		utils.RaiseInvariant("scan", "pushed_invalid_type", "An item with an invalid type was pushed to the heap.")
	} else if element == nil {
		utils.RaiseInvariant("scan", "pushed_nil_element", "A nil element was pushed to the iteration heap.")
	} else if len(hh.elements) == cap(hh.elements) {
		utils.RaiseInvariant("scan", "exceeded_capacity",
			"An element was pushed while the heap capacity was full.", "cap", cap(hh.elements))
	} else {
		hh.elements = append(hh.elements, element)
	}
}

// Pop returns and removes the last element in the heap.
func (hh *headHeap[K, V]) Pop() any {
	lastElement := hh.elements[len(hh.elements)-1]
	hh.elements = hh.elements[:len(hh.elements)-1]
	return lastElement
}

// topKey returns the minimum key without removing it; zero value when empty.
func (hh *headHeap[K, V]) topKey() K {
	if len(hh.elements) > 0 {
		return hh.elements[0].key
	}
	return *new(K)
}

// MultiHead merges a list of increasing sequences into one increasing
// sequence. Earlier sequences take priority: for equal keys, the value from
// the lowest sequence index is yielded and the rest are discarded.
// The given sequences must each be sorted under `cmp`.
func MultiHead[Seq iter.Seq[utils.Pair[K, V]], K any, V any](cmp utils.CompareFn[K], sequences []Seq) (Seq, error) {
	if cmp == nil {
		return nil, errors.New("expected a non-nil comparison function")
	}
	if len(sequences) == 0 {
		return nil, errors.New("expected non-empty sequences")
	}

	// Seed the heap with the first element of every non-empty sequence.
	hh := &headHeap[K, V]{compare: cmp, elements: make([]*headElement[K, V], 0, len(sequences))}
	pull := make([]func() (utils.Pair[K, V], bool), 0)
	stop := make([]func(), 0)
	for _, seq := range sequences {
		pullFn, stopFn := iter.Pull(iter.Seq[utils.Pair[K, V]](seq))
		firstElem, hasAny := pullFn()
		if !hasAny { // Sequence has no elements and is skipped entirely.
			stopFn()
			continue
		}
		heap.Push(hh, &headElement[K, V]{key: firstElem.Key, val: firstElem.Value, seqIdx: len(pull)})
		pull = append(pull, pullFn)
		stop = append(stop, stopFn)
	}

	// next pops the minimum element and refills the heap from its sequence.
	next := func() utils.Pair[K, V] {
		topElement := heap.Pop(hh).(*headElement[K, V])
		nextElement, hasNext := pull[topElement.seqIdx]()
		if hasNext {
			heap.Push(hh, &headElement[K, V]{key: nextElement.Key, val: nextElement.Value, seqIdx: topElement.seqIdx})
		} else { // No elements left in the sequence, stop pulling.
			stop[topElement.seqIdx]()
		}
		return utils.Pair[K, V]{Key: topElement.key, Value: topElement.val}
	}

	return func(yield func(utils.Pair[K, V]) bool) {
		if hh.Len() == 0 {
			return
		}
		// Stop all underlying sequences once iteration is done.
		defer func() {
			for _, stopFn := range stop {
				stopFn()
			}
		}()
		nextElement := next()
		if !yield(nextElement) {
			return
		}
		for hh.Len() > 0 {
			// Discard lower priority values of the same key.
			if diff := hh.compare(hh.topKey(), nextElement.Key); diff == 0 {
				next()
				continue
			}
			nextElement = next()
			if !yield(nextElement) {
				return
			}
		}
	}, nil
}
