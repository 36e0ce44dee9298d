package core

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"ecdpchain/core/types"
	"ecdpchain/storage"
)

var (
	ErrNoGenesis        = errors.New("chain: genesis not initialised")
	ErrGenesisExists    = errors.New("chain: genesis already initialised")
	ErrBlockNotFound    = errors.New("chain: block not found")
	errPrevHashMismatch = errors.New("chain: block prevhash mismatch")

	genesisKey     = []byte("chain/genesis")
	tipKey         = []byte("chain/tip")
	blockPrefix    = []byte("chain/block/")
	heightPrefix   = []byte("chain/height/")
	receiptsPrefix = []byte("chain/receipts/")
)

func heightKey(h uint64) []byte {
	return binary.BigEndian.AppendUint64(append([]byte(nil), heightPrefix...), h)
}

func hashKey(prefix, hash []byte) []byte {
	return append(append([]byte(nil), prefix...), hash...)
}

// Blockchain persists blocks and their receipts, indexed by hash and
// height.
type Blockchain struct {
	db     storage.Database
	mu     sync.RWMutex
	tip    []byte
	height uint64
	ready  bool
}

// NewBlockchain opens the chain stored in db. A fresh database has no
// genesis until InitGenesis is called.
func NewBlockchain(db storage.Database) (*Blockchain, error) {
	bc := &Blockchain{db: db}
	if _, err := db.Get(genesisKey); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return bc, nil
		}
		return nil, err
	}
	tip, err := db.Get(tipKey)
	if err != nil {
		return nil, fmt.Errorf("chain: read tip: %w", err)
	}
	block, err := bc.GetBlockByHash(tip)
	if err != nil {
		return nil, fmt.Errorf("chain: load tip: %w", err)
	}
	bc.tip = tip
	bc.height = block.Header.Height
	bc.ready = true
	return bc, nil
}

// Initialized reports whether a genesis block has been written.
func (bc *Blockchain) Initialized() bool {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return bc.ready
}

// InitGenesis writes the height zero block.
func (bc *Blockchain) InitGenesis(genesis *types.Block) error {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	if bc.ready {
		return ErrGenesisExists
	}
	hash, err := bc.writeBlock(genesis, nil)
	if err != nil {
		return err
	}
	if err := bc.db.Put(genesisKey, hash); err != nil {
		return err
	}
	bc.tip = hash
	bc.height = 0
	bc.ready = true
	return nil
}

// AddBlock appends b on top of the current tip.
func (bc *Blockchain) AddBlock(b *types.Block, receipts []*types.Receipt) error {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	if !bc.ready {
		return ErrNoGenesis
	}
	if !bytes.Equal(b.Header.PrevHash, bc.tip) {
		return errPrevHashMismatch
	}
	if b.Header.Height != bc.height+1 {
		return fmt.Errorf("chain: expected height %d, got %d", bc.height+1, b.Header.Height)
	}
	hash, err := bc.writeBlock(b, receipts)
	if err != nil {
		return err
	}
	bc.tip = hash
	bc.height = b.Header.Height
	return nil
}

func (bc *Blockchain) writeBlock(b *types.Block, receipts []*types.Receipt) ([]byte, error) {
	hash, err := b.Header.Hash()
	if err != nil {
		return nil, err
	}
	blockBytes, err := json.Marshal(b)
	if err != nil {
		return nil, err
	}
	if err := bc.db.Put(hashKey(blockPrefix, hash), blockBytes); err != nil {
		return nil, err
	}
	if len(receipts) > 0 {
		receiptBytes, err := json.Marshal(receipts)
		if err != nil {
			return nil, err
		}
		if err := bc.db.Put(hashKey(receiptsPrefix, hash), receiptBytes); err != nil {
			return nil, err
		}
	}
	if err := bc.db.Put(heightKey(b.Header.Height), hash); err != nil {
		return nil, err
	}
	if err := bc.db.Put(tipKey, hash); err != nil {
		return nil, err
	}
	return hash, nil
}

// GetBlockByHash retrieves a block by its header hash.
func (bc *Blockchain) GetBlockByHash(hash []byte) (*types.Block, error) {
	raw, err := bc.db.Get(hashKey(blockPrefix, hash))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrBlockNotFound
		}
		return nil, err
	}
	var block types.Block
	if err := json.Unmarshal(raw, &block); err != nil {
		return nil, err
	}
	return &block, nil
}

// GetBlockByHeight retrieves a block by its height.
func (bc *Blockchain) GetBlockByHeight(height uint64) (*types.Block, error) {
	hash, err := bc.db.Get(heightKey(height))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrBlockNotFound
		}
		return nil, err
	}
	return bc.GetBlockByHash(hash)
}

// Receipts returns the receipts stored with the block hash.
func (bc *Blockchain) Receipts(hash []byte) ([]*types.Receipt, error) {
	raw, err := bc.db.Get(hashKey(receiptsPrefix, hash))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	var receipts []*types.Receipt
	if err := json.Unmarshal(raw, &receipts); err != nil {
		return nil, err
	}
	return receipts, nil
}

func (bc *Blockchain) GetHeight() uint64 {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return bc.height
}

func (bc *Blockchain) Tip() []byte {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return append([]byte(nil), bc.tip...)
}

// CurrentHeader returns the tip header, or nil before genesis.
func (bc *Blockchain) CurrentHeader() *types.BlockHeader {
	bc.mu.RLock()
	tip, ready := bc.tip, bc.ready
	bc.mu.RUnlock()
	if !ready {
		return nil
	}
	block, err := bc.GetBlockByHash(tip)
	if err != nil {
		return nil
	}
	return block.Header
}
