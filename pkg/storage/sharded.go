// This module implements table sharding, which distributes keys uniformly
// across memtable shards. Each shard serializes its own writers, so sharding
// spreads the coarse locks: goroutines touching different shards never
// contend. A per-shard bloom filter answers most negative lookups without
// taking the shard's lock at all, which is sound here because keys are never
// deleted and a filter only ever gains members.

package storage

import (
	"bytes"
	"flag"
	"fmt"
	"iter"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/cespare/xxhash/v2"

	"github.com/guavadb/guava/pkg/scan"
	"github.com/guavadb/guava/pkg/utils"
)

var (
	tableShards = flag.Int("table_shards", 8,
		"Number of memtable shards keys are hashed across.")
	shardBloomCapacity = flag.Int("shard_bloom_capacity", 1<<20,
		"Expected number of keys per shard used to size the negative-lookup bloom filter.")
	shardBloomFPRate = flag.Float64("shard_bloom_fp_rate", 0.01,
		"Target false positive rate of the per-shard bloom filter.")
)

// tableShard pairs a memtable with its negative-lookup filter. The filter
// has its own lock; bloom filters are not safe for concurrent mutation.
type tableShard struct {
	table     *MemTable
	filterMux sync.RWMutex
	filter    *bloom.BloomFilter
}

// mightHave reports whether the shard can possibly hold the key. A false
// result is definitive; a true result still needs a table lookup.
func (s *tableShard) mightHave(key []byte) bool {
	s.filterMux.RLock()
	defer s.filterMux.RUnlock()
	return s.filter.Test(key)
}

func (s *tableShard) remember(key []byte) {
	s.filterMux.Lock()
	defer s.filterMux.Unlock()
	s.filter.Add(key)
}

// ShardedTable distributes keys across multiple MemTable shards by key hash.
type ShardedTable struct { // Implements KeyValueHolder.
	shards []*tableShard
}

var _ KeyValueHolder = (*ShardedTable)(nil)

// NewShardedTable is the constructor for ShardedTable; shard count and bloom
// sizing come from flags.
func NewShardedTable() (*ShardedTable, error) {
	if *tableShards <= 0 {
		return nil, fmt.Errorf("expected a positive --table_shards, got %d", *tableShards)
	}
	shards := make([]*tableShard, *tableShards)
	for i := range shards {
		table, err := NewMemTable()
		if err != nil {
			return nil, fmt.Errorf("failed to create shard %d: %w", i, err)
		}
		shards[i] = &tableShard{
			table:  table,
			filter: bloom.NewWithEstimates(uint(*shardBloomCapacity), *shardBloomFPRate),
		}
	}
	return &ShardedTable{shards: shards}, nil
}

// getShard determines which shard a given key belongs to by hashing the key
// and mapping the hash onto a shard index.
func (t *ShardedTable) getShard(key []byte) *tableShard {
	return t.shards[xxhash.Sum64(key)%uint64(len(t.shards))]
}

// Get looks the key up in its shard, short-circuiting through the bloom
// filter for keys the shard definitely never saw.
func (t *ShardedTable) Get(key []byte) ([]byte, error) {
	shard := t.getShard(key)
	if !shard.mightHave(key) {
		return nil, ErrKeyNotFound
	}
	return shard.table.Get(key)
}

// Has reports whether the key is present in its shard.
func (t *ShardedTable) Has(key []byte) (bool, error) {
	shard := t.getShard(key)
	if !shard.mightHave(key) {
		return false, nil
	}
	return shard.table.Has(key)
}

// Set writes the key to its shard, then registers it with the shard's
// filter. The filter is updated after the table accepts the write so a
// filter hit always has a chance of finding the key.
func (t *ShardedTable) Set(key, value []byte) error {
	shard := t.getShard(key)
	if err := shard.table.Set(key, value); err != nil {
		return err
	}
	shard.remember(key)
	return nil
}

// Len sums the entry counts across all shards.
func (t *ShardedTable) Len() int {
	total := 0
	for _, shard := range t.shards {
		total += shard.table.Len()
	}
	return total
}

// Items yields all pairs in ascending key order by merging the per-shard
// ordered sequences. Shards hold disjoint key sets, so the merge never has
// to discard duplicates, but the merge machinery tolerates them anyway.
func (t *ShardedTable) Items() iter.Seq[utils.BytePair] {
	sequences := make([]iter.Seq[utils.BytePair], len(t.shards))
	for i, shard := range t.shards {
		sequences[i] = shard.table.Items()
	}
	merged, err := scan.MultiHead(bytes.Compare, sequences)
	if err != nil {
		// The constructor guarantees at least one shard, so the merge setup
		// cannot fail in a well-formed table.
		utils.RaiseInvariant("sharded", "merge_setup_failed",
			"Failed to merge shard sequences.", "error", err.Error())
		return func(yield func(utils.BytePair) bool) {}
	}
	return merged
}

// Close closes every shard.
func (t *ShardedTable) Close() error {
	for _, shard := range t.shards {
		if err := shard.table.Close(); err != nil {
			return err
		}
	}
	return nil
}
