package core

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"

	"ecdpchain/config"
	"ecdpchain/core/events"
	"ecdpchain/core/state"
	"ecdpchain/core/types"
	"ecdpchain/mempool"
	"ecdpchain/native/cdp"
	nativecommon "ecdpchain/native/common"
	"ecdpchain/native/dex"
	"ecdpchain/native/ledger"
	"ecdpchain/native/liquidator"
	"ecdpchain/native/loans"
	"ecdpchain/native/oracle"
	"ecdpchain/native/treasury"
	"ecdpchain/storage"
)

var (
	ErrBadNonce      = errors.New("runtime: bad nonce")
	ErrUnknownCall   = errors.New("runtime: unknown call")
	ErrNotSupported  = errors.New("runtime: transaction type not supported")
	errNilDatabase   = errors.New("runtime: database required")
	nonceKeyPrefix   = []byte("runtime/nonce/")
	signedLongevity  = uint64(256)
	signedTxPriority = uint64(1)
)

// Runtime wires the native modules over a single state store and executes
// transactions against them.
type Runtime struct {
	store  *state.Store
	params config.ChainParams

	Ledger   *ledger.Ledger
	Registry *nativecommon.Registry
	Oracle   *oracle.Oracle
	DEX      *dex.Engine
	Swapper  *dex.JointSwap
	Treasury *treasury.Treasury
	Loans    *loans.Loans
	CDP      *cdp.Engine
	Keeper   *liquidator.Keeper

	buffer *eventBuffer
	sink   events.Emitter

	height    uint64
	timestamp int64
	logger    *slog.Logger
}

// NewRuntime constructs the module graph over db.
func NewRuntime(db storage.Database, params config.ChainParams) (*Runtime, error) {
	if db == nil {
		return nil, errNilDatabase
	}
	if err := params.CDP.Validate(); err != nil {
		return nil, err
	}
	if err := params.DEX.Validate(); err != nil {
		return nil, err
	}
	if err := params.Treasury.Validate(); err != nil {
		return nil, err
	}
	if err := params.Liquidator.Validate(); err != nil {
		return nil, err
	}

	store := state.NewStore(db)
	rt := &Runtime{
		store:  store,
		params: params,
		buffer: &eventBuffer{},
		sink:   events.NoopEmitter{},
		logger: slog.Default(),
	}

	rt.Ledger = ledger.New(store)
	rt.Registry = nativecommon.NewRegistry(store)

	rt.DEX = dex.NewEngine(params.DEX)
	rt.DEX.SetState(dex.NewStateStore(store))
	rt.DEX.SetLedger(rt.Ledger)
	rt.DEX.SetAssets(rt.Ledger)
	rt.DEX.SetEmitter(rt.buffer)
	rt.DEX.SetPauses(rt.Registry)
	rt.DEX.SetAdmins(rt.Registry)
	rt.Swapper = dex.NewJointSwap(rt.DEX, params.SwapJoints...)

	rt.Oracle = oracle.New(store, params.CDP.StableCurrency)
	rt.Oracle.SetPoolView(rt.DEX, rt.Ledger)

	rt.Treasury = treasury.New(params.Treasury)
	rt.Treasury.SetState(treasury.NewStateStore(store))
	rt.Treasury.SetLedger(rt.Ledger)
	rt.Treasury.SetSwapper(rt.Swapper)
	rt.Treasury.SetLiquidity(rt.DEX)
	rt.Treasury.SetEmitter(rt.buffer)
	rt.Treasury.SetPauses(rt.Registry)
	rt.Treasury.SetAdmins(rt.Registry)

	rt.Keeper = liquidator.New(params.Liquidator, rt.Ledger, rt.Oracle)

	rt.CDP = cdp.NewEngine(params.CDP)
	rt.Loans = loans.New(loans.DefaultModuleAccount)
	rt.Loans.SetState(loans.NewStateStore(store))
	rt.Loans.SetLedger(rt.Ledger)
	rt.Loans.SetRiskManager(rt.CDP)
	rt.Loans.SetTreasury(rt.Treasury)
	rt.Loans.SetEmitter(rt.buffer)

	rt.CDP.SetState(cdp.NewStateStore(store))
	rt.CDP.SetLedger(rt.Ledger)
	rt.CDP.SetPriceSource(rt.Oracle)
	rt.CDP.SetLoans(rt.Loans)
	rt.CDP.SetTreasury(rt.Treasury)
	rt.CDP.SetSwapper(rt.Swapper)
	rt.CDP.SetLiquidity(rt.DEX)
	rt.CDP.SetLiquidationBridge(rt.Keeper)
	rt.CDP.SetShutdown(rt.Registry)
	rt.CDP.SetEmitter(rt.buffer)
	rt.CDP.SetPauses(rt.Registry)
	rt.CDP.SetAdmins(rt.Registry)
	return rt, nil
}

// SetLogger routes module logs to logger.
func (rt *Runtime) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	rt.logger = logger
	rt.DEX.SetLogger(logger)
	rt.Treasury.SetLogger(logger)
	rt.CDP.SetLogger(logger)
	rt.Keeper.SetLogger(logger)
}

// SetEventSink receives the events of every committed transaction and block
// hook.
func (rt *Runtime) SetEventSink(sink events.Emitter) {
	if sink == nil {
		sink = events.NoopEmitter{}
	}
	rt.sink = sink
}

func (rt *Runtime) Params() config.ChainParams { return rt.params }

func (rt *Runtime) Store() *state.Store { return rt.store }

func (rt *Runtime) Height() uint64 { return rt.height }

func (rt *Runtime) Timestamp() int64 { return rt.timestamp }

// Atomic runs fn against the shared state overlay.
func (rt *Runtime) Atomic(fn func() error) error {
	return rt.store.Atomic(fn)
}

// resume restores the block clock of a reopened chain.
func (rt *Runtime) resume(height uint64, timestamp int64) {
	rt.height = height
	rt.timestamp = timestamp
	rt.CDP.SetBlockHeight(height)
	rt.DEX.SetBlockHeight(height)
	rt.Treasury.SetBlockHeight(height)
}

// BeginBlock advances the module clocks and runs the start-of-block hooks.
// Hook events are returned in rendered form.
func (rt *Runtime) BeginBlock(height uint64, timestamp int64) ([]*types.Event, error) {
	rt.resume(height, timestamp)

	rt.buffer.reset()
	err := rt.store.Atomic(func() error {
		var now uint64
		if timestamp > 0 {
			now = uint64(timestamp)
		}
		if err := rt.CDP.OnInitialize(height, now); err != nil {
			return fmt.Errorf("cdp initialize: %w", err)
		}
		expired, err := rt.DEX.OnInitialize(height)
		if err != nil {
			return fmt.Errorf("dex initialize: %w", err)
		}
		if expired > 0 {
			rt.logger.Info("dex: provisioning expired", "height", height, "pairs", expired)
		}
		return nil
	})
	if err != nil {
		rt.buffer.reset()
		return nil, err
	}
	return rt.buffer.commit(rt.sink), nil
}

// EndBlock runs the end-of-block hooks.
func (rt *Runtime) EndBlock(height uint64) []*types.Event {
	rt.buffer.reset()
	if err := rt.store.Atomic(func() error {
		rt.Treasury.OnFinalize(height)
		return nil
	}); err != nil {
		rt.logger.Warn("runtime: finalize block", "height", height, "error", err)
	}
	return rt.buffer.commit(rt.sink)
}

// ApplyTransaction executes tx and returns its receipt. A failed call leaves
// no state behind except the consumed nonce of a signed sender.
func (rt *Runtime) ApplyTransaction(tx *types.Transaction) (*types.Receipt, error) {
	if tx == nil {
		return nil, fmt.Errorf("runtime: nil transaction")
	}
	hash, err := tx.Hash()
	if err != nil {
		return nil, err
	}
	receipt := &types.Receipt{TxHash: hash}

	var origin nativecommon.Origin
	switch tx.Type {
	case types.TxTypeUnsigned:
		origin = nativecommon.UnsignedOrigin()
	case types.TxTypeSigned:
		from, err := tx.From()
		if err != nil {
			return nil, err
		}
		if err := rt.consumeNonce(from, tx.Nonce); err != nil {
			return nil, err
		}
		origin = nativecommon.Signed(from)
	default:
		return nil, ErrNotSupported
	}

	rt.buffer.reset()
	err = rt.store.Atomic(func() error {
		return rt.dispatch(origin, tx)
	})
	if err != nil {
		rt.buffer.reset()
		receipt.Error = err.Error()
		rt.logger.Debug("runtime: call failed", "module", tx.Module, "method", tx.Method, "error", err)
		return receipt, nil
	}
	receipt.Status = true
	receipt.Events = rt.buffer.commit(rt.sink)
	return receipt, nil
}

// ValidateTransaction checks tx against the current state for pool
// admission.
func (rt *Runtime) ValidateTransaction(tx *types.Transaction) (mempool.Validity, error) {
	if tx == nil {
		return mempool.Validity{}, fmt.Errorf("runtime: nil transaction")
	}
	switch tx.Type {
	case types.TxTypeUnsigned:
		call, err := decodeUnsignedCall(tx)
		if err != nil {
			return mempool.Validity{}, err
		}
		valid, err := rt.CDP.ValidateUnsigned(call)
		if err != nil {
			return mempool.Validity{}, err
		}
		return mempool.Validity{Priority: valid.Priority, Provides: valid.Provides, Longevity: valid.Longevity}, nil
	case types.TxTypeSigned:
		from, err := tx.From()
		if err != nil {
			return mempool.Validity{}, err
		}
		if tx.Nonce < rt.Nonce(from) {
			return mempool.Validity{}, ErrBadNonce
		}
		provides := append(append([]byte("signed/"), from.Bytes()...), binary.BigEndian.AppendUint64(nil, tx.Nonce)...)
		return mempool.Validity{Priority: signedTxPriority, Provides: provides, Longevity: signedLongevity}, nil
	default:
		return mempool.Validity{}, ErrNotSupported
	}
}

// Nonce returns the next nonce expected from who.
func (rt *Runtime) Nonce(who common.Address) uint64 {
	var nonce uint64
	if _, err := rt.store.KVGet(nonceKey(who), &nonce); err != nil {
		rt.logger.Error("runtime: read nonce", "account", who.Hex(), "error", err)
	}
	return nonce
}

func (rt *Runtime) consumeNonce(who common.Address, nonce uint64) error {
	return rt.store.Atomic(func() error {
		expected := rt.Nonce(who)
		if nonce != expected {
			return fmt.Errorf("%w: expected %d, got %d", ErrBadNonce, expected, nonce)
		}
		return rt.store.KVPut(nonceKey(who), expected+1)
	})
}

func nonceKey(who common.Address) []byte {
	return append(append([]byte(nil), nonceKeyPrefix...), who.Bytes()...)
}


// eventBuffer holds the events of the call in flight. They reach the sink
// only once the call commits.
type eventBuffer struct {
	pending []events.Event
}

func (b *eventBuffer) Emit(evt events.Event) {
	if evt == nil {
		return
	}
	b.pending = append(b.pending, evt)
}

func (b *eventBuffer) Mark() int { return len(b.pending) }

func (b *eventBuffer) Rewind(mark int) {
	if mark >= 0 && mark < len(b.pending) {
		b.pending = b.pending[:mark]
	}
}

func (b *eventBuffer) reset() { b.pending = nil }

func (b *eventBuffer) commit(sink events.Emitter) []*types.Event {
	if len(b.pending) == 0 {
		return nil
	}
	out := make([]*types.Event, 0, len(b.pending))
	for _, evt := range b.pending {
		out = append(out, events.Render(evt))
		sink.Emit(evt)
	}
	b.pending = nil
	return out
}
