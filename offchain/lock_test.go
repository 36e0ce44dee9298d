package offchain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"ecdpchain/storage"
)

func TestTimeLockExpires(t *testing.T) {
	lock := timeLock{db: storage.NewMemDB(), duration: time.Second}
	start := time.Unix(100, 0)

	require.NoError(t, lock.acquire(start))
	require.ErrorIs(t, lock.acquire(start.Add(500*time.Millisecond)), ErrLocked)

	require.NoError(t, lock.extend(start.Add(900*time.Millisecond)))
	require.ErrorIs(t, lock.acquire(start.Add(1500*time.Millisecond)), ErrLocked)
	require.NoError(t, lock.acquire(start.Add(1900*time.Millisecond)))
}

func TestCursorRoundTripAndReset(t *testing.T) {
	db := storage.NewMemDB()
	_, ok, err := loadCursor(db)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, storeCursor(db, Cursor{Index: 2, LastKey: alice.Bytes()}))
	c, ok, err := loadCursor(db)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(2), c.Index)
	require.Equal(t, alice, *c.After())

	require.NoError(t, clearCursor(db))
	_, ok, err = loadCursor(db)
	require.NoError(t, err)
	require.False(t, ok)
}
