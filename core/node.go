package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"ecdpchain/config"
	"ecdpchain/core/types"
	"ecdpchain/mempool"
	"ecdpchain/native/cdp"
	"ecdpchain/native/loans"
	"ecdpchain/observability/metrics"
	"ecdpchain/offchain"
	"ecdpchain/storage"
)

// NodeConfig bounds block production.
type NodeConfig struct {
	MaxTxs                  int
	ReservedUnsignedPercent uint32
	MempoolLimit            int
	Clock                   func() time.Time
	Logger                  *slog.Logger
}

// BlockResult is a produced block with its receipts and the events of the
// block hooks.
type BlockResult struct {
	Block    *types.Block
	Hash     []byte
	Receipts []*types.Receipt
	Events   []*types.Event
}

// Node is the central controller, wiring the runtime, the chain and the
// transaction pool together. All state access is serialised on mu.
type Node struct {
	mu        sync.Mutex
	db        storage.Database
	runtime   *Runtime
	chain     *Blockchain
	pool      *mempool.Pool
	proposer  common.Address
	cfg       NodeConfig
	logger    *slog.Logger
	listeners []func(*BlockResult)
}

// NewNode opens the chain in db, applying genesis on first start.
func NewNode(db storage.Database, genesis *config.Genesis, proposer common.Address, cfg NodeConfig) (*Node, error) {
	if genesis == nil {
		return nil, fmt.Errorf("node: genesis required")
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.MaxTxs <= 0 {
		cfg.MaxTxs = config.Default().Blocks.MaxTxs
	}
	rt, err := NewRuntime(db, genesis.Params)
	if err != nil {
		return nil, err
	}
	rt.SetLogger(cfg.Logger)
	chain, err := NewBlockchain(db)
	if err != nil {
		return nil, err
	}
	if !chain.Initialized() {
		if err := ApplyGenesis(rt, genesis); err != nil {
			return nil, err
		}
		block, err := GenesisBlock(genesis)
		if err != nil {
			return nil, err
		}
		if err := chain.InitGenesis(block); err != nil {
			return nil, err
		}
		cfg.Logger.Info("node: genesis applied", "chain_id", genesis.ChainID)
	} else if header := chain.CurrentHeader(); header != nil {
		rt.resume(header.Height, header.Timestamp)
		cfg.Logger.Info("node: resumed chain", "height", header.Height)
	}
	n := &Node{
		db:       db,
		runtime:  rt,
		chain:    chain,
		proposer: proposer,
		cfg:      cfg,
		logger:   cfg.Logger,
	}
	n.pool = mempool.New(rt, cfg.MempoolLimit)
	return n, nil
}

// OnBlock registers fn to run after each produced block.
func (n *Node) OnBlock(fn func(*BlockResult)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.listeners = append(n.listeners, fn)
}

func (n *Node) Chain() *Blockchain { return n.chain }

func (n *Node) GetHeight() uint64 { return n.chain.GetHeight() }

// PendingCount returns the number of pooled transactions.
func (n *Node) PendingCount() int { return n.pool.Len() }

// View runs fn with exclusive access to the runtime.
func (n *Node) View(fn func(rt *Runtime) error) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return fn(n.runtime)
}

// SubmitTx validates tx against the current state and pools it.
func (n *Node) SubmitTx(tx *types.Transaction) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.pool.Add(tx)
}

// Submit pools an unsigned liquidate or settle call.
func (n *Node) Submit(ctx context.Context, call cdp.UnsignedCall) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tx, err := NewUnsignedTx(call)
	if err != nil {
		return err
	}
	_, err = n.SubmitTx(tx)
	if errors.Is(err, mempool.ErrDuplicate) {
		return nil
	}
	return err
}

// ProduceBlock executes the pooled transactions that fit in one block and
// appends the result to the chain. Unsigned calls take the reserved share of
// the block first.
func (n *Node) ProduceBlock(ctx context.Context) (*BlockResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	n.mu.Lock()
	result, err := n.produce()
	listeners := append([]func(*BlockResult){}, n.listeners...)
	n.mu.Unlock()
	if err != nil {
		return nil, err
	}
	for _, fn := range listeners {
		fn(result)
	}
	return result, nil
}

func (n *Node) produce() (*BlockResult, error) {
	started := time.Now()
	height := n.chain.GetHeight() + 1
	now := n.cfg.Clock().Unix()
	if prev := n.runtime.Timestamp(); now < prev {
		now = prev
	}
	selected, usage := n.pool.Select(n.cfg.MaxTxs, n.cfg.ReservedUnsignedPercent)

	var (
		result   = &BlockResult{}
		included []*types.Transaction
		receipts []*types.Receipt
		drop     []string
	)
	err := n.runtime.Atomic(func() error {
		hookEvents, err := n.runtime.BeginBlock(height, now)
		if err != nil {
			return err
		}
		result.Events = append(result.Events, hookEvents...)
		for _, tx := range selected {
			hash, err := mempool.TxHash(tx)
			if err != nil {
				return err
			}
			drop = append(drop, hash)
			receipt, err := n.runtime.ApplyTransaction(tx)
			if err != nil {
				n.logger.Debug("node: dropping transaction", "tx", hash, "error", err)
				continue
			}
			included = append(included, tx)
			receipts = append(receipts, receipt)
		}
		result.Events = append(result.Events, n.runtime.EndBlock(height)...)

		txRoot, err := ComputeTxRoot(included)
		if err != nil {
			return err
		}
		header := &types.BlockHeader{
			Height:    height,
			Timestamp: now,
			PrevHash:  n.chain.Tip(),
			TxRoot:    txRoot,
			Proposer:  n.proposer.Bytes(),
		}
		block := types.NewBlock(header, included)
		if err := n.chain.AddBlock(block, receipts); err != nil {
			return err
		}
		hash, err := header.Hash()
		if err != nil {
			return err
		}
		result.Block = block
		result.Hash = hash
		result.Receipts = receipts
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("node: produce block %d: %w", height, err)
	}
	n.pool.Remove(drop...)
	if stale := n.pool.Advance(height); stale > 0 {
		n.logger.Debug("node: evicted stale transactions", "count", stale)
	}
	var failed int
	for _, r := range receipts {
		if !r.Status {
			failed++
		}
	}
	metrics.Chain().RecordBlock(height, len(receipts)-failed, failed, time.Since(started))
	n.logger.Info("node: block produced",
		"height", height,
		"txs", len(included),
		"unsigned", usage.TotalUnsigned,
		"pending", n.pool.Len())
	return result, nil
}

// ScannerChain is the position view handed to the liquidation scanner. Every
// call takes the node lock.
func (n *Node) ScannerChain() offchain.Chain { return lockedChain{n: n} }

type lockedChain struct {
	n *Node
}

func (c lockedChain) CollateralCurrencyIDs() ([]types.CurrencyID, error) {
	c.n.mu.Lock()
	defer c.n.mu.Unlock()
	return c.n.runtime.CDP.CollateralCurrencyIDs()
}

func (c lockedChain) IteratePositions(currency types.CurrencyID, after *common.Address, fn func(who common.Address, pos loans.Position) bool) error {
	c.n.mu.Lock()
	defer c.n.mu.Unlock()
	return c.n.runtime.Loans.IteratePositions(currency, after, fn)
}

func (c lockedChain) CheckCDPStatus(currency types.CurrencyID, collateral, debit *big.Int) (cdp.Status, error) {
	c.n.mu.Lock()
	defer c.n.mu.Unlock()
	return c.n.runtime.CDP.CheckCDPStatus(currency, collateral, debit)
}

func (c lockedChain) IsShutdown() bool {
	c.n.mu.Lock()
	defer c.n.mu.Unlock()
	return c.n.runtime.CDP.IsShutdown()
}
