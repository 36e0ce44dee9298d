package dex

import (
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"ecdpchain/core/events"
	"ecdpchain/core/types"
	"ecdpchain/crypto"
	nativecommon "ecdpchain/native/common"
	"ecdpchain/native/fixedpoint"
	"ecdpchain/observability/metrics"
)

const moduleName = "dex"

// Ledger is the balance store the exchange moves funds through.
type Ledger interface {
	FreeBalance(currency types.CurrencyID, who common.Address) *big.Int
	ReservedBalance(currency types.CurrencyID, who common.Address) *big.Int
	TotalIssuance(currency types.CurrencyID) *big.Int
	Transfer(currency types.CurrencyID, from, to common.Address, amount *big.Int) error
	Deposit(currency types.CurrencyID, who common.Address, amount *big.Int) error
	Withdraw(currency types.CurrencyID, who common.Address, amount *big.Int) error
	Reserve(currency types.CurrencyID, who common.Address, amount *big.Int) error
	Unreserve(currency types.CurrencyID, who common.Address, amount *big.Int) error
	IncConsumers(who common.Address) error
	DecConsumers(who common.Address) error
}

// AssetRegistry reports whether a currency may be listed.
type AssetRegistry interface {
	IsRegistered(currency types.CurrencyID) bool
}

// PoolObserver is notified after every reserve change.
type PoolObserver func(pair TradingPair, reserve0, reserve1 *big.Int)

// Engine implements the constant-product exchange: trading pair lifecycle,
// liquidity and swaps.
type Engine struct {
	state     engineState
	ledger    Ledger
	assets    AssetRegistry
	emitter   events.Emitter
	pauses    nativecommon.PauseView
	admins    nativecommon.AdminView
	params    Params
	account   common.Address
	height    uint64
	logger    *slog.Logger
	observer  PoolObserver
	strict    bool
	telemetry *metrics.DexMetrics
}

// NewEngine constructs an exchange engine. The module account is derived from
// the configured module account name.
func NewEngine(params Params) *Engine {
	if params.ModuleAccount == "" {
		params.ModuleAccount = DefaultParams().ModuleAccount
	}
	return &Engine{
		params:    params,
		account:   crypto.ModuleAccount(params.ModuleAccount),
		emitter:   events.NoopEmitter{},
		telemetry: metrics.DEX(),
	}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) {
	if e == nil {
		return
	}
	e.state = state
}

func (e *Engine) SetLedger(ledger Ledger) {
	if e == nil {
		return
	}
	e.ledger = ledger
}

func (e *Engine) SetAssets(assets AssetRegistry) {
	if e == nil {
		return
	}
	e.assets = assets
}

func (e *Engine) SetEmitter(emitter events.Emitter) {
	if e == nil {
		return
	}
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	e.emitter = emitter
}

func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

func (e *Engine) SetAdmins(admins nativecommon.AdminView) {
	if e == nil {
		return
	}
	e.admins = admins
}

// SetBlockHeight records the height used by provisioning deadlines.
func (e *Engine) SetBlockHeight(height uint64) {
	if e == nil {
		return
	}
	e.height = height
}

func (e *Engine) SetLogger(logger *slog.Logger) {
	if e == nil {
		return
	}
	e.logger = logger
}

func (e *Engine) SetPoolObserver(observer PoolObserver) {
	if e == nil {
		return
	}
	e.observer = observer
}

// SetStrictInvariants makes an invariant failure on engine-computed amounts
// panic instead of failing the call. Intended for devnets and tests.
func (e *Engine) SetStrictInvariants(strict bool) {
	if e == nil {
		return
	}
	e.strict = strict
}

// Account returns the module account that custodies pool reserves.
func (e *Engine) Account() common.Address { return e.account }

func (e *Engine) Params() Params { return e.params }

func (e *Engine) log() *slog.Logger {
	if e.logger != nil {
		return e.logger
	}
	return slog.Default()
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.ledger == nil {
		return errNilLedger
	}
	return nil
}

func (e *Engine) guard() error {
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return ErrModulePaused
	}
	return nil
}

func (e *Engine) ensureAdmin(origin nativecommon.Origin) error {
	if err := nativecommon.EnsureAdmin(origin, e.admins); err != nil {
		return ErrBadOrigin
	}
	return nil
}

func ensureSigned(origin nativecommon.Origin) (common.Address, error) {
	who, err := nativecommon.EnsureSigned(origin)
	if err != nil {
		return common.Address{}, ErrBadOrigin
	}
	return who, nil
}

func (e *Engine) emit(evt events.Event) {
	if e.emitter != nil {
		e.emitter.Emit(evt)
	}
}

// atomic runs fn so that its writes commit together or not at all. Events
// emitted by a failed fn are dropped as well.
func (e *Engine) atomic(fn func() error) error {
	if err := e.ready(); err != nil {
		return err
	}
	journal, ok := e.emitter.(events.Journal)
	if !ok {
		return e.state.Atomic(fn)
	}
	mark := journal.Mark()
	err := e.state.Atomic(fn)
	if err != nil {
		journal.Rewind(mark)
	}
	return err
}

func (e *Engine) pairState(pair TradingPair) (*PairState, error) {
	st, err := e.state.PairState(pair)
	if err != nil {
		return nil, fmt.Errorf("dex: load status %s: %w", pair, err)
	}
	return st, nil
}

func (e *Engine) setPool(pair TradingPair, reserve0, reserve1 *big.Int) error {
	if err := e.state.PutLiquidityPool(pair, reserve0, reserve1); err != nil {
		return err
	}
	e.telemetry.SetReserves(pair.String(), reserve0, reserve1)
	if e.observer != nil {
		e.observer(pair, new(big.Int).Set(reserve0), new(big.Int).Set(reserve1))
	}
	return nil
}

// invariantViolation handles a failed constant-product check on amounts the
// engine computed itself, which can only be a logic bug.
func (e *Engine) invariantViolation(path []types.CurrencyID, amounts []*big.Int, err error) error {
	e.telemetry.IncInvariantFailure()
	e.log().Error("dex invariant check failed on computed swap", "path", path, "amounts", amounts, "error", err)
	if e.strict {
		panic(fmt.Sprintf("dex: invariant violated on computed path %v: %v", path, err))
	}
	return err
}

// Status returns the lifecycle status of the pair formed by a and b.
func (e *Engine) Status(a, b types.CurrencyID) (PairStatus, *ProvisioningParameters, error) {
	if err := e.ready(); err != nil {
		return StatusDisabled, nil, err
	}
	pair, err := NewTradingPair(a, b)
	if err != nil {
		return StatusDisabled, nil, err
	}
	st, err := e.pairState(pair)
	if err != nil {
		return StatusDisabled, nil, err
	}
	if st.Status != StatusProvisioning {
		return st.Status, nil, nil
	}
	params := st.Provisioning
	if !pair.orient(a) {
		params = flipParams(params)
	}
	return st.Status, &params, nil
}

// GetLiquidity returns the reserves of the pair oriented to the argument
// order. Unknown or invalid pairs report zero reserves.
func (e *Engine) GetLiquidity(a, b types.CurrencyID) (*big.Int, *big.Int) {
	if e.ready() != nil {
		return big.NewInt(0), big.NewInt(0)
	}
	pair, err := NewTradingPair(a, b)
	if err != nil {
		return big.NewInt(0), big.NewInt(0)
	}
	r0, r1, err := e.state.LiquidityPool(pair)
	if err != nil {
		return big.NewInt(0), big.NewInt(0)
	}
	if pair.orient(a) {
		return r0, r1
	}
	return r1, r0
}

// ProvisioningPool returns who's outstanding contributions oriented to the
// argument order.
func (e *Engine) ProvisioningPool(a, b types.CurrencyID, who common.Address) (*big.Int, *big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, nil, err
	}
	pair, err := NewTradingPair(a, b)
	if err != nil {
		return nil, nil, err
	}
	c, err := e.state.ProvisioningPool(pair, who)
	if err != nil {
		return nil, nil, err
	}
	if pair.orient(a) {
		return c[0], c[1], nil
	}
	return c[1], c[0], nil
}

// InitialShareExchangeRates returns the share rates recorded when the pair
// left provisioning, oriented to the argument order.
func (e *Engine) InitialShareExchangeRates(a, b types.CurrencyID) (fixedpoint.ExchangeRate, fixedpoint.ExchangeRate, bool, error) {
	if err := e.ready(); err != nil {
		return fixedpoint.Zero(), fixedpoint.Zero(), false, err
	}
	pair, err := NewTradingPair(a, b)
	if err != nil {
		return fixedpoint.Zero(), fixedpoint.Zero(), false, err
	}
	rates, ok, err := e.state.InitialShareExchangeRates(pair)
	if err != nil || !ok {
		return fixedpoint.Zero(), fixedpoint.Zero(), ok, err
	}
	if pair.orient(a) {
		return rates[0], rates[1], true, nil
	}
	return rates[1], rates[0], true, nil
}

// Pools lists every known trading pair with its reserves and share supply.
func (e *Engine) Pools() ([]PoolInfo, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	pairs, err := e.state.TradingPairs()
	if err != nil {
		return nil, err
	}
	out := make([]PoolInfo, 0, len(pairs))
	for _, pair := range pairs {
		st, err := e.pairState(pair)
		if err != nil {
			return nil, err
		}
		r0, r1, err := e.state.LiquidityPool(pair)
		if err != nil {
			return nil, err
		}
		out = append(out, PoolInfo{
			Pair:        pair,
			Status:      st.Status,
			Reserve0:    r0,
			Reserve1:    r1,
			TotalShares: e.ledger.TotalIssuance(pair.DexShareCurrency()),
		})
	}
	return out, nil
}

func flipParams(p ProvisioningParameters) ProvisioningParameters {
	return ProvisioningParameters{
		MinContribution: [2]*big.Int{p.MinContribution[1], p.MinContribution[0]},
		Target:          [2]*big.Int{p.Target[1], p.Target[0]},
		Accumulated:     [2]*big.Int{p.Accumulated[1], p.Accumulated[0]},
		NotBefore:       p.NotBefore,
	}
}

func orientAmounts(pair TradingPair, a types.CurrencyID, amountA, amountB *big.Int) (*big.Int, *big.Int) {
	if pair.orient(a) {
		return orZero(amountA), orZero(amountB)
	}
	return orZero(amountB), orZero(amountA)
}
