package storage

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guavadb/guava/pkg/utils"
)

func newTestShardedTable(t *testing.T, shards int) *ShardedTable {
	t.Helper()
	utils.SetTestFlag(t, "table_shards", fmt.Sprint(shards))
	table, err := NewShardedTable()
	require.NoError(t, err)
	return table
}

func TestShardedTable_GetSetHas(t *testing.T) {
	table := newTestShardedTable(t, 4)
	require.NoError(t, table.Set([]byte("k"), []byte("v")))

	val, err := table.Get([]byte("k"))
	assert.NoError(t, err)
	assert.Equal(t, []byte("v"), val)

	found, err := table.Has([]byte("k"))
	assert.NoError(t, err)
	assert.True(t, found)

	// Never-written keys resolve through the bloom filter fast path.
	_, err = table.Get([]byte("non-existent"))
	assert.ErrorIs(t, err, ErrKeyNotFound)
	found, err = table.Has([]byte("non-existent"))
	assert.NoError(t, err)
	assert.False(t, found)
}

func TestShardedTable_InvalidShardCount(t *testing.T) {
	utils.SetTestFlag(t, "table_shards", "0")
	_, err := NewShardedTable()
	assert.Error(t, err)
}

func TestShardedTable_LenSumsShards(t *testing.T) {
	table := newTestShardedTable(t, 4)
	const numKeys = 200
	for i := 0; i < numKeys; i++ {
		require.NoError(t, table.Set([]byte(fmt.Sprintf("key-%03d", i)), []byte("v")))
	}
	assert.Equal(t, numKeys, table.Len())

	// Keys should land on more than one shard.
	populated := 0
	for _, shard := range table.shards {
		if shard.table.Len() > 0 {
			populated++
		}
	}
	assert.Greater(t, populated, 1)

	// Updates must not change the count.
	require.NoError(t, table.Set([]byte("key-000"), []byte("updated")))
	assert.Equal(t, numKeys, table.Len())
}

func TestShardedTable_ItemsMergedInOrder(t *testing.T) {
	table := newTestShardedTable(t, 4)
	const numKeys = 100
	for i := numKeys - 1; i >= 0; i-- {
		require.NoError(t, table.Set([]byte(fmt.Sprintf("key-%03d", i)), []byte("v")))
	}

	gotKeys := make([]string, 0, numKeys)
	for pair := range table.Items() {
		gotKeys = append(gotKeys, string(pair.Key))
	}
	require.Len(t, gotKeys, numKeys)
	for i, key := range gotKeys {
		assert.Equal(t, fmt.Sprintf("key-%03d", i), key)
	}
}

func TestShardedTable_ConcurrentWriters(t *testing.T) {
	table := newTestShardedTable(t, 8)
	const numWriters = 8
	const keysPerWriter = 500

	var wg sync.WaitGroup
	for w := 0; w < numWriters; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < keysPerWriter; i++ {
				key := []byte(fmt.Sprintf("writer-%d-key-%04d", w, i))
				assert.NoError(t, table.Set(key, []byte("v")))
			}
		}(w)
	}
	wg.Wait()

	assert.Equal(t, numWriters*keysPerWriter, table.Len())
	for w := 0; w < numWriters; w++ {
		val, err := table.Get([]byte(fmt.Sprintf("writer-%d-key-0000", w)))
		assert.NoError(t, err)
		assert.Equal(t, []byte("v"), val)
	}
}
