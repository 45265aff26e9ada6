package storage

import (
	"errors"
	"iter"

	"github.com/guavadb/guava/pkg/utils"
)

var (
	// ErrKeyNotFound is returned by byte-oriented stores for absent keys.
	// The skip list itself reports absence with a boolean; the error form is
	// the boundary contract consumed by ports.
	ErrKeyNotFound = errors.New("key was not found")

	// ErrTableFull is returned when a write would push a table past its
	// configured capacity. Guava tables never shrink, so the caller has to
	// discard and rebuild (or raise the capacity flags).
	ErrTableFull = errors.New("table is at capacity")
)

// KeyValueHolder is the storage backend boundary used by guava's ports.
// Deletion is intentionally absent: the underlying index never removes keys.
type KeyValueHolder interface {
	Get(key []byte) ( /*value*/ []byte, error)
	Set(key, value []byte) error
	Has(key []byte) (bool, error)
	Len() int
	// Items yields every pair in ascending key order.
	Items() iter.Seq[utils.BytePair]
	Close() error
}
