package treasury

import (
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"ecdpchain/core/events"
	"ecdpchain/core/types"
	"ecdpchain/crypto"
	nativecommon "ecdpchain/native/common"
	"ecdpchain/native/dex"
	"ecdpchain/native/fixedpoint"
)

const moduleName = "cdp_treasury"

// Ledger is the balance store the treasury custodies funds in.
type Ledger interface {
	FreeBalance(currency types.CurrencyID, who common.Address) *big.Int
	TotalIssuance(currency types.CurrencyID) *big.Int
	Transfer(currency types.CurrencyID, from, to common.Address, amount *big.Int) error
	Deposit(currency types.CurrencyID, who common.Address, amount *big.Int) error
	Withdraw(currency types.CurrencyID, who common.Address, amount *big.Int) error
}

// LiquidityProvider removes liquidity backing confiscated share collateral.
type LiquidityProvider interface {
	DoRemoveLiquidity(who common.Address, a, b types.CurrencyID, share, minA, minB *big.Int, unstake bool) (*big.Int, *big.Int, error)
}

// Treasury holds system surplus, the system debit pool and confiscated
// collateral. Surplus is the stable balance of the treasury account.
type Treasury struct {
	state     treasuryState
	ledger    Ledger
	swapper   dex.Swapper
	liquidity LiquidityProvider
	emitter   events.Emitter
	pauses    nativecommon.PauseView
	admins    nativecommon.AdminView
	params    Params
	account   common.Address
	recipient common.Address
	height    uint64
	logger    *slog.Logger
}

func New(params Params) *Treasury {
	defaults := DefaultParams()
	if params.ModuleAccount == "" {
		params.ModuleAccount = defaults.ModuleAccount
	}
	if params.SurplusRecipient == "" {
		params.SurplusRecipient = defaults.SurplusRecipient
	}
	if params.StableCurrency == "" {
		params.StableCurrency = defaults.StableCurrency
	}
	return &Treasury{
		params:    params,
		account:   crypto.ModuleAccount(params.ModuleAccount),
		recipient: crypto.ModuleAccount(params.SurplusRecipient),
		emitter:   events.NoopEmitter{},
	}
}

func (t *Treasury) SetState(state treasuryState) {
	if t == nil {
		return
	}
	t.state = state
}

func (t *Treasury) SetLedger(ledger Ledger) {
	if t == nil {
		return
	}
	t.ledger = ledger
}

// SetSwapper wires the router used to sell collateral for stable.
func (t *Treasury) SetSwapper(swapper dex.Swapper) {
	if t == nil {
		return
	}
	t.swapper = swapper
}

func (t *Treasury) SetLiquidity(liquidity LiquidityProvider) {
	if t == nil {
		return
	}
	t.liquidity = liquidity
}

func (t *Treasury) SetEmitter(emitter events.Emitter) {
	if t == nil {
		return
	}
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	t.emitter = emitter
}

func (t *Treasury) SetPauses(p nativecommon.PauseView) {
	if t == nil {
		return
	}
	t.pauses = p
}

func (t *Treasury) SetAdmins(admins nativecommon.AdminView) {
	if t == nil {
		return
	}
	t.admins = admins
}

// SetBlockHeight records the height stamped on new auctions.
func (t *Treasury) SetBlockHeight(height uint64) {
	if t == nil {
		return
	}
	t.height = height
}

func (t *Treasury) SetLogger(logger *slog.Logger) {
	if t == nil {
		return
	}
	t.logger = logger
}

// Account returns the treasury account holding surplus and collateral.
func (t *Treasury) Account() common.Address { return t.account }

// SurplusRecipient returns the account surplus is extracted to.
func (t *Treasury) SurplusRecipient() common.Address { return t.recipient }

func (t *Treasury) Params() Params { return t.params }

func (t *Treasury) stable() types.CurrencyID { return t.params.StableCurrency }

func (t *Treasury) log() *slog.Logger {
	if t.logger != nil {
		return t.logger
	}
	return slog.Default()
}

func (t *Treasury) ready() error {
	if t == nil || t.state == nil {
		return errNilState
	}
	if t.ledger == nil {
		return errNilLedger
	}
	return nil
}

func (t *Treasury) guard() error {
	if err := nativecommon.Guard(t.pauses, moduleName); err != nil {
		return ErrModulePaused
	}
	return nil
}

func (t *Treasury) ensureAdmin(origin nativecommon.Origin) error {
	if err := nativecommon.EnsureAdmin(origin, t.admins); err != nil {
		return ErrBadOrigin
	}
	return nil
}

func (t *Treasury) emit(evt events.Event) {
	if t.emitter != nil {
		t.emitter.Emit(evt)
	}
}

func (t *Treasury) amount(key []byte) *big.Int {
	if t == nil || t.state == nil {
		return big.NewInt(0)
	}
	v, err := t.state.Amount(key)
	if err != nil {
		t.log().Error("treasury: read amount", "key", string(key), "error", err)
		return big.NewInt(0)
	}
	return v
}

// SurplusPool is the stable balance held by the treasury account.
func (t *Treasury) SurplusPool() *big.Int {
	if t == nil || t.ledger == nil {
		return big.NewInt(0)
	}
	return t.ledger.FreeBalance(t.stable(), t.account)
}

// DebitPool is the system debit not yet offset by surplus.
func (t *Treasury) DebitPool() *big.Int { return t.amount(debitPoolKey) }

// DebitOffsetBuffer is the debit kept un-offset at block finalisation.
func (t *Treasury) DebitOffsetBuffer() *big.Int { return t.amount(debitOffsetBufferKey) }

// ExpectedCollateralAuctionSize is the lot size used when splitting
// collateral auctions. Zero disables splitting.
func (t *Treasury) ExpectedCollateralAuctionSize(currency types.CurrencyID) *big.Int {
	return t.amount(currencyKey(auctionSizePrefix, currency))
}

// OnSystemDebit books amount of bad debt.
func (t *Treasury) OnSystemDebit(amount *big.Int) error {
	if err := t.ready(); err != nil {
		return err
	}
	amount = orZero(amount)
	if amount.Sign() == 0 {
		return nil
	}
	updated := new(big.Int).Add(t.DebitPool(), amount)
	if updated.Cmp(fixedpoint.MaxBalance()) > 0 {
		return ErrDebitPoolOverflow
	}
	return t.state.PutAmount(debitPoolKey, updated)
}

// OnSystemSurplus mints amount of stable into the surplus pool.
func (t *Treasury) OnSystemSurplus(amount *big.Int) error {
	if err := t.ready(); err != nil {
		return err
	}
	return t.ledger.Deposit(t.stable(), t.account, orZero(amount))
}

// IssueDebit mints stable to who. Unbacked issuance is booked as system
// debit.
func (t *Treasury) IssueDebit(who common.Address, amount *big.Int, backed bool) error {
	if err := t.ready(); err != nil {
		return err
	}
	amount = orZero(amount)
	return t.state.Atomic(func() error {
		if !backed {
			if err := t.OnSystemDebit(amount); err != nil {
				return err
			}
		}
		return t.ledger.Deposit(t.stable(), who, amount)
	})
}

// BurnDebit burns stable held by who.
func (t *Treasury) BurnDebit(who common.Address, amount *big.Int) error {
	if err := t.ready(); err != nil {
		return err
	}
	return t.ledger.Withdraw(t.stable(), who, orZero(amount))
}

func (t *Treasury) DepositSurplus(from common.Address, amount *big.Int) error {
	if err := t.ready(); err != nil {
		return err
	}
	return t.ledger.Transfer(t.stable(), from, t.account, orZero(amount))
}

func (t *Treasury) WithdrawSurplus(to common.Address, amount *big.Int) error {
	if err := t.ready(); err != nil {
		return err
	}
	amount = orZero(amount)
	if t.SurplusPool().Cmp(amount) < 0 {
		return ErrSurplusNotEnough
	}
	return t.ledger.Transfer(t.stable(), t.account, to, amount)
}

// GetDebitProportion is amount as a share of the stable issuance.
func (t *Treasury) GetDebitProportion(amount *big.Int) fixedpoint.Ratio {
	if t == nil || t.ledger == nil {
		return fixedpoint.Zero()
	}
	return fixedpoint.SaturatingFromRational(orZero(amount), t.ledger.TotalIssuance(t.stable()))
}

// OffsetSurplusAndDebit burns surplus against the debit pool, keeping the
// configured buffer of debit.
func (t *Treasury) OffsetSurplusAndDebit() (*big.Int, error) {
	if err := t.ready(); err != nil {
		return nil, err
	}
	debit := t.DebitPool()
	offsettable := new(big.Int).Sub(debit, t.DebitOffsetBuffer())
	if offsettable.Sign() <= 0 {
		return big.NewInt(0), nil
	}
	offset := offsettable
	if surplus := t.SurplusPool(); surplus.Cmp(offset) < 0 {
		offset = surplus
	}
	if offset.Sign() == 0 {
		return offset, nil
	}
	err := t.state.Atomic(func() error {
		if err := t.ledger.Withdraw(t.stable(), t.account, offset); err != nil {
			return err
		}
		return t.state.PutAmount(debitPoolKey, new(big.Int).Sub(debit, offset))
	})
	if err != nil {
		return nil, err
	}
	return offset, nil
}

// OnFinalize runs the end-of-block offset.
func (t *Treasury) OnFinalize(height uint64) {
	t.SetBlockHeight(height)
	offset, err := t.OffsetSurplusAndDebit()
	if err != nil {
		t.log().Warn("treasury: offset surplus and debit", "height", height, "error", err)
		return
	}
	if offset.Sign() > 0 {
		t.log().Debug("treasury: offset surplus and debit", "height", height, "amount", offset.String())
	}
}
