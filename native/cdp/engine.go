package cdp

import (
	"log/slog"
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"ecdpchain/core/events"
	"ecdpchain/core/types"
	nativecommon "ecdpchain/native/common"
	"ecdpchain/native/dex"
	"ecdpchain/native/fixedpoint"
	"ecdpchain/native/loans"
	"ecdpchain/observability/metrics"
)

const moduleName = "cdp"

// Ledger moves refunds and leftovers between the module accounts and owners.
type Ledger interface {
	FreeBalance(currency types.CurrencyID, who common.Address) *big.Int
	Transfer(currency types.CurrencyID, from, to common.Address, amount *big.Int) error
}

// PriceSource quotes one currency in terms of another.
type PriceSource interface {
	GetRelativePrice(base, quote types.CurrencyID) (fixedpoint.Price, bool)
}

// Loans is the position store the engine drives.
type Loans interface {
	Account() common.Address
	Positions(currency types.CurrencyID, who common.Address) loans.Position
	TotalPositions(currency types.CurrencyID) loans.Position
	UpdateLoan(who common.Address, currency types.CurrencyID, collateralAdjustment, debitAdjustment *big.Int) error
	AdjustPosition(who common.Address, currency types.CurrencyID, collateralAdjustment, debitAdjustment *big.Int) error
	ConfiscateCollateralAndDebit(who common.Address, currency types.CurrencyID, collateral, debit *big.Int) error
	IteratePositions(currency types.CurrencyID, after *common.Address, fn func(who common.Address, pos loans.Position) bool) error
}

// Treasury custodies confiscated collateral and the system surplus and debit.
type Treasury interface {
	Account() common.Address
	SurplusPool() *big.Int
	IssueDebit(who common.Address, amount *big.Int, backed bool) error
	BurnDebit(who common.Address, amount *big.Int) error
	OnSystemSurplus(amount *big.Int) error
	WithdrawCollateral(to common.Address, currency types.CurrencyID, amount *big.Int) error
	WithdrawSurplus(to common.Address, amount *big.Int) error
	SwapCollateralToStable(currency types.CurrencyID, limit dex.SwapLimit, inAuction bool) (*big.Int, *big.Int, error)
	CreateCollateralAuctions(currency types.CurrencyID, amount, target *big.Int, refundRecipient common.Address, split bool) (int, error)
	RemoveLiquidityForLPCollateral(share types.CurrencyID, amount *big.Int) (*big.Int, *big.Int, error)
}

// Swapper routes leveraged position changes through the exchange.
type Swapper = dex.Swapper

// LiquidityProvider adds and removes liquidity for share collateral.
type LiquidityProvider interface {
	DoAddLiquidity(who common.Address, a, b types.CurrencyID, maxA, maxB, minShare *big.Int, stake bool) (*big.Int, *big.Int, *big.Int, error)
	DoRemoveLiquidity(who common.Address, a, b types.CurrencyID, share, minA, minB *big.Int, unstake bool) (*big.Int, *big.Int, error)
}

// LiquidationBridge calls an external liquidation contract. The contract
// receives amount of currency and must pay at least minRepayment of the
// stable currency to repayDest. The repaid amount is returned.
type LiquidationBridge interface {
	CallLiquidationContract(contract, owner common.Address, currency types.CurrencyID, amount, minRepayment *big.Int, repayDest common.Address) (*big.Int, error)
}

type ShutdownView = nativecommon.ShutdownView

// Engine is the risk and liquidation engine of collateralised debt
// positions.
type Engine struct {
	state      engineState
	ledger     Ledger
	prices     PriceSource
	loans      Loans
	treasury   Treasury
	swapper    Swapper
	liquidity  LiquidityProvider
	bridge     LiquidationBridge
	shutdown   ShutdownView
	emitter    events.Emitter
	pauses     nativecommon.PauseView
	admins     nativecommon.AdminView
	params     Params
	strategies []LiquidationStrategy
	height     uint64
	logger     *slog.Logger
	telemetry  *metrics.CDPMetrics
}

func NewEngine(params Params) *Engine {
	defaults := DefaultParams()
	if params.StableCurrency == "" {
		params.StableCurrency = defaults.StableCurrency
	}
	if params.MinimumDebitValue == nil {
		params.MinimumDebitValue = defaults.MinimumDebitValue
	}
	if params.MinimumCollateralAmount == nil {
		params.MinimumCollateralAmount = defaults.MinimumCollateralAmount
	}
	if params.MaxLiquidationContracts == 0 {
		params.MaxLiquidationContracts = defaults.MaxLiquidationContracts
	}
	if params.UnsignedPriority == 0 {
		params.UnsignedPriority = defaults.UnsignedPriority
	}
	if params.UnsignedLongevity == 0 {
		params.UnsignedLongevity = defaults.UnsignedLongevity
	}
	e := &Engine{
		params:    params,
		emitter:   events.NoopEmitter{},
		telemetry: metrics.CDP(),
	}
	e.strategies = []LiquidationStrategy{contractStrategy{e}, dexStrategy{e}, auctionStrategy{e}}
	return e
}

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

func (e *Engine) SetPriceSource(prices PriceSource) {
	if e == nil {
		return
	}
	e.prices = prices
}

func (e *Engine) SetLoans(l Loans) {
	if e == nil {
		return
	}
	e.loans = l
}

func (e *Engine) SetTreasury(treasury Treasury) {
	if e == nil {
		return
	}
	e.treasury = treasury
}

func (e *Engine) SetSwapper(swapper Swapper) {
	if e == nil {
		return
	}
	e.swapper = swapper
}

func (e *Engine) SetLiquidity(liquidity LiquidityProvider) {
	if e == nil {
		return
	}
	e.liquidity = liquidity
}

// SetLiquidationBridge wires the caller of registered liquidation contracts.
// Without a bridge the contract strategy is skipped.
func (e *Engine) SetLiquidationBridge(bridge LiquidationBridge) {
	if e == nil {
		return
	}
	e.bridge = bridge
}

func (e *Engine) SetShutdown(view ShutdownView) {
	if e == nil {
		return
	}
	e.shutdown = view
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

// SetBlockHeight records the height tagged onto unsigned liquidations.
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

// SetLiquidationStrategies replaces the ordered strategy list tried for
// collateral that is not refunded outright.
func (e *Engine) SetLiquidationStrategies(strategies ...LiquidationStrategy) {
	if e == nil {
		return
	}
	e.strategies = append([]LiquidationStrategy(nil), strategies...)
}

func (e *Engine) Params() Params { return e.params }

func (e *Engine) stable() types.CurrencyID { return e.params.StableCurrency }

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
	if e.loans == nil || e.treasury == nil || e.prices == nil {
		return errNilCollaborators
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

func ensureUnsigned(origin nativecommon.Origin) error {
	if !origin.Unsigned {
		return ErrBadOrigin
	}
	return nil
}

// IsShutdown reports whether emergency shutdown has been triggered.
func (e *Engine) IsShutdown() bool {
	return e != nil && nativecommon.IsShutdown(e.shutdown)
}

func (e *Engine) emit(evt events.Event) {
	if e.emitter != nil {
		e.emitter.Emit(evt)
	}
}

// atomicEvents runs fn atomically and, when fn fails, drops the events it
// emitted along with its state writes.
func (e *Engine) atomicEvents(fn func() error) error {
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

func (e *Engine) recordRate(currency types.CurrencyID, rate fixedpoint.ExchangeRate) {
	value, err := strconv.ParseFloat(rate.String(), 64)
	if err != nil {
		return
	}
	e.telemetry.SetExchangeRate(currency.String(), value)
}

func minInt(a, b *big.Int) *big.Int {
	if a.Cmp(b) <= 0 {
		return new(big.Int).Set(a)
	}
	return new(big.Int).Set(b)
}
