package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func exerciseDatabase(t *testing.T, db Database) {
	t.Helper()

	_, err := db.Get([]byte("missing"))
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, db.Put([]byte("pos/BTC/a"), []byte{1}))
	require.NoError(t, db.Put([]byte("pos/BTC/c"), []byte{3}))
	require.NoError(t, db.Put([]byte("pos/BTC/b"), []byte{2}))
	require.NoError(t, db.Put([]byte("pos/EDF/a"), []byte{9}))

	has, err := db.Has([]byte("pos/BTC/b"))
	require.NoError(t, err)
	require.True(t, has)

	var keys []string
	require.NoError(t, db.Iterate([]byte("pos/BTC/"), nil, func(key, value []byte) bool {
		keys = append(keys, string(key))
		return true
	}))
	require.Equal(t, []string{"pos/BTC/a", "pos/BTC/b", "pos/BTC/c"}, keys)

	keys = keys[:0]
	require.NoError(t, db.Iterate([]byte("pos/BTC/"), []byte("pos/BTC/a\x00"), func(key, value []byte) bool {
		keys = append(keys, string(key))
		return len(keys) < 1
	}))
	require.Equal(t, []string{"pos/BTC/b"}, keys)

	require.NoError(t, db.Delete([]byte("pos/BTC/b")))
	has, err = db.Has([]byte("pos/BTC/b"))
	require.NoError(t, err)
	require.False(t, has)
}

func TestMemDB(t *testing.T) {
	db := NewMemDB()
	defer db.Close()
	exerciseDatabase(t, db)
}

func TestLevelDB(t *testing.T) {
	db, err := NewLevelDB(filepath.Join(t.TempDir(), "state"))
	require.NoError(t, err)
	defer db.Close()
	exerciseDatabase(t, db)
}

func TestBoltDB(t *testing.T) {
	db, err := NewBoltDB(filepath.Join(t.TempDir(), "offchain.db"))
	require.NoError(t, err)
	defer db.Close()
	exerciseDatabase(t, db)
}
