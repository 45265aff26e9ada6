package storage

import (
	"bytes"
	"flag"
	"fmt"
	"iter"
	"sync"

	"github.com/guavadb/guava/pkg/utils"
)

var (
	memtableMaxBytes = flag.Int("memtable_max_bytes", 64<<20, /*64 MiB*/
		"Rejects writes once total key+value bytes reach this size.")
	memtableMaxEntries = flag.Int("memtable_max_entries", 1_000_000,
		"Rejects writes once the number of key-value entries reaches this count.")
	memtableInitialLevels = flag.Int("memtable_initial_levels", 4,
		"Starting level count of the underlying skip list; grows with the entry count.")
	memtablePromotionP = flag.Float64("memtable_promotion_p", 0.5,
		"Skip list level promotion probability, in (0, 1).")
)

// MemTable serves key-value pairs from an in-memory skip list index.
// It wraps the skip list in one coarse reader/writer lock, the simplest
// correct deployment for callers that need upsert accounting to be exact:
// the lock serializes writers, so the capacity counters stay consistent
// with the index.
type MemTable struct { // Implements KeyValueHolder.
	// skipList allows fast ordered lookup and insertion of key-value pairs.
	skipList  *SkipList[[]byte /*key*/, []byte /*value*/]
	mux       sync.RWMutex // Serializes writers; accounting relies on it.
	heldBytes int          // Tracked against the capacity flags.
}

var _ KeyValueHolder = (*MemTable)(nil)

// NewMemTable is the constructor for MemTable. It fails when the skip list
// flags are misconfigured.
func NewMemTable() (*MemTable, error) {
	skipList, err := NewSkipList[[]byte /*key*/, []byte /*value*/](
		bytes.Compare, *memtableInitialLevels, *memtablePromotionP)
	if err != nil {
		return nil, fmt.Errorf("failed to create skip list index: %w", err)
	}
	return &MemTable{skipList: skipList}, nil
}

// Get returns the value for a given key, or ErrKeyNotFound.
func (m *MemTable) Get(key []byte) ( /*value*/ []byte, error) {
	m.mux.RLock()
	defer m.mux.RUnlock()

	value, found := m.skipList.Get(key)
	if !found {
		return nil, ErrKeyNotFound
	}
	return value, nil
}

// Has reports whether the key is present.
func (m *MemTable) Has(key []byte) (bool, error) {
	m.mux.RLock()
	defer m.mux.RUnlock()
	return m.skipList.Contains(key), nil
}

// Set inserts or updates the value for a given key. New keys are rejected
// with ErrTableFull once either capacity flag is exhausted; updates are
// always accepted and only adjust the byte accounting by the value delta.
func (m *MemTable) Set(key, value []byte) error {
	m.mux.Lock()
	defer m.mux.Unlock()

	previous, existed := m.skipList.Get(key)
	if !existed {
		if m.skipList.Len() >= *memtableMaxEntries {
			return fmt.Errorf("%w: %d entries", ErrTableFull, m.skipList.Len())
		}
		if m.heldBytes+len(key)+len(value) > *memtableMaxBytes {
			return fmt.Errorf("%w: %d bytes held", ErrTableFull, m.heldBytes)
		}
	}

	if _, updated := m.skipList.Insert(key, value); updated != existed {
		// The coarse lock makes the lookup and the insert one atomic step.
		utils.RaiseInvariant("memtable", "upsert_disagreement",
			"Insert disagreed with the existence check under the write lock.", "key", string(key))
	}
	if existed {
		m.heldBytes += len(value) - len(previous)
	} else {
		m.heldBytes += len(key) + len(value)
	}
	return nil
}

// Len returns the number of distinct keys in the table.
func (m *MemTable) Len() int {
	m.mux.RLock()
	defer m.mux.RUnlock()
	return m.skipList.Len()
}

// HeldBytes returns the total key+value bytes currently accounted for.
func (m *MemTable) HeldBytes() int {
	m.mux.RLock()
	defer m.mux.RUnlock()
	return m.heldBytes
}

// Levels returns the level count of the underlying skip list.
func (m *MemTable) Levels() int {
	return m.skipList.Levels()
}

// Items yields the table's pairs in ascending key order. The skip list is
// safe to walk while writers are active; a concurrent insert may or may not
// be observed.
func (m *MemTable) Items() iter.Seq[utils.BytePair] {
	return func(yield func(utils.BytePair) bool) {
		for key, value := range m.skipList.Items() {
			if !yield(utils.BytePair{Key: key, Value: value}) {
				return
			}
		}
	}
}

func (m *MemTable) Close() error {
	return nil
}
