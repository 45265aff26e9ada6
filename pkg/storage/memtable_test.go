package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guavadb/guava/pkg/utils"
)

func TestMemTable_Get(t *testing.T) {
	memTable, err := NewMemTable()
	require.NoError(t, err)
	require.NoError(t, memTable.Set([]byte("k"), []byte("v")))

	t.Run("existing_key", func(t *testing.T) {
		val, err := memTable.Get([]byte("k"))
		assert.NoError(t, err)
		assert.Equal(t, []byte("v"), val)
	})
	t.Run("non_existent_key", func(t *testing.T) {
		val, err := memTable.Get([]byte("non-existent"))
		assert.ErrorIs(t, err, ErrKeyNotFound)
		assert.Nil(t, val)
	})
	t.Run("has", func(t *testing.T) {
		found, err := memTable.Has([]byte("k"))
		assert.NoError(t, err)
		assert.True(t, found)
		found, err = memTable.Has([]byte("non-existent"))
		assert.NoError(t, err)
		assert.False(t, found)
	})
}

func TestMemTable_SetAccounting(t *testing.T) {
	memTable, err := NewMemTable()
	require.NoError(t, err)

	{ // Set first key.
		require.NoError(t, memTable.Set([]byte("a"), []byte("12")))
		// Held bytes: len("a") + len("12") = 3
		assert.Equal(t, 1, memTable.Len())
		assert.Equal(t, 3, memTable.HeldBytes())
	}
	{ // Set second key.
		require.NoError(t, memTable.Set([]byte("bb"), []byte("123")))
		// Held bytes: 3 + len("bb") + len("123") = 8
		assert.Equal(t, 2, memTable.Len())
		assert.Equal(t, 8, memTable.HeldBytes())
	}
	{ // Update an existing key; only the value delta is accounted.
		require.NoError(t, memTable.Set([]byte("bb"), []byte("12345")))
		// Held bytes: 8 + (len("12345") - len("123")) = 10
		assert.Equal(t, 2, memTable.Len())
		assert.Equal(t, 10, memTable.HeldBytes())
	}
}

func TestMemTable_CapacityLimits(t *testing.T) {
	t.Run("entry_budget", func(t *testing.T) {
		utils.SetTestFlag(t, "memtable_max_entries", "2")
		memTable, err := NewMemTable()
		require.NoError(t, err)
		require.NoError(t, memTable.Set([]byte("a"), []byte("1")))
		require.NoError(t, memTable.Set([]byte("b"), []byte("2")))
		// A third distinct key exceeds the budget.
		assert.ErrorIs(t, memTable.Set([]byte("c"), []byte("3")), ErrTableFull)
		// Updating a resident key is still allowed.
		assert.NoError(t, memTable.Set([]byte("a"), []byte("111")))
		assert.Equal(t, 2, memTable.Len())
	})
	t.Run("byte_budget", func(t *testing.T) {
		utils.SetTestFlag(t, "memtable_max_bytes", "8")
		memTable, err := NewMemTable()
		require.NoError(t, err)
		require.NoError(t, memTable.Set([]byte("aa"), []byte("1234"))) // 6 bytes held.
		assert.ErrorIs(t, memTable.Set([]byte("bb"), []byte("1")), ErrTableFull)
		assert.Equal(t, 1, memTable.Len())
	})
}

func TestMemTable_InvalidSkipListFlags(t *testing.T) {
	utils.SetTestFlag(t, "memtable_promotion_p", "1.5")
	_, err := NewMemTable()
	assert.Error(t, err)
}

func TestMemTable_ItemsOrdered(t *testing.T) {
	memTable, err := NewMemTable()
	require.NoError(t, err)
	require.NoError(t, memTable.Set([]byte("banana"), []byte("2")))
	require.NoError(t, memTable.Set([]byte("apple"), []byte("1")))
	require.NoError(t, memTable.Set([]byte("cherry"), []byte("3")))

	gotKeys := make([]string, 0, 3)
	for pair := range memTable.Items() {
		gotKeys = append(gotKeys, string(pair.Key))
	}
	assert.Equal(t, []string{"apple", "banana", "cherry"}, gotKeys)
}

func TestMemTable_LevelsGrow(t *testing.T) {
	memTable, err := NewMemTable()
	require.NoError(t, err)
	initialLevels := memTable.Levels()
	for i := 0; i < 1000; i++ {
		require.NoError(t, memTable.Set([]byte{byte(i >> 8), byte(i)}, []byte("v")))
	}
	assert.Equal(t, 1000, memTable.Len())
	assert.Greater(t, memTable.Levels(), initialLevels)
}

func TestMemTable_Close(t *testing.T) {
	memTable, err := NewMemTable()
	require.NoError(t, err)
	assert.NoError(t, memTable.Close())
}
