package offchain

import (
	"encoding/binary"
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"

	"ecdpchain/storage"
)

var (
	cursorKey        = []byte("offchain/ecdp/cursor")
	maxIterationsKey = []byte("offchain/ecdp/max-iterations")
)

// Cursor is the resume point of the scan: the collateral index and the last
// owner checked within it.
type Cursor struct {
	Index   uint64
	LastKey []byte
}

// After returns the owner to resume after, or nil at the start of a
// currency.
func (c Cursor) After() *common.Address {
	if len(c.LastKey) != common.AddressLength {
		return nil
	}
	addr := common.BytesToAddress(c.LastKey)
	return &addr
}

func loadCursor(db storage.Database) (Cursor, bool, error) {
	raw, err := db.Get(cursorKey)
	if errors.Is(err, storage.ErrNotFound) {
		return Cursor{}, false, nil
	}
	if err != nil {
		return Cursor{}, false, err
	}
	var c Cursor
	if err := rlp.DecodeBytes(raw, &c); err != nil {
		return Cursor{}, false, err
	}
	return c, true, nil
}

func storeCursor(db storage.Database, c Cursor) error {
	raw, err := rlp.EncodeToBytes(c)
	if err != nil {
		return err
	}
	return db.Put(cursorKey, raw)
}

func clearCursor(db storage.Database) error {
	return db.Delete(cursorKey)
}

// loadMaxIterations returns the persisted override, or ok=false when none
// is set.
func loadMaxIterations(db storage.Database) (uint32, bool, error) {
	raw, err := db.Get(maxIterationsKey)
	if errors.Is(err, storage.ErrNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	if len(raw) != 4 {
		return 0, false, nil
	}
	return binary.BigEndian.Uint32(raw), true, nil
}

func storeMaxIterations(db storage.Database, n uint32) error {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], n)
	return db.Put(maxIterationsKey, buf[:])
}
