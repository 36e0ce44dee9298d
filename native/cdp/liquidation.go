package cdp

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"ecdpchain/core/events"
	"ecdpchain/core/types"
	nativecommon "ecdpchain/native/common"
	"ecdpchain/native/dex"
	"ecdpchain/native/fixedpoint"
)

const (
	StrategyContract = "contract"
	StrategyDEX      = "dex"
	StrategyAuction  = "auction"
	StrategyRefund   = "refund"
)

// LiquidationRequest describes confiscated collateral held by the treasury
// that has to raise Target of the stable currency. Collateral left over is
// returned to Owner.
type LiquidationRequest struct {
	Owner    common.Address
	Currency types.CurrencyID
	Amount   *big.Int
	Target   *big.Int
}

// Outcome reports how much collateral a strategy consumed.
type Outcome struct {
	Sold     *big.Int
	Refunded *big.Int
}

// LiquidationStrategy is one way of turning confiscated collateral into
// stable. An error moves the dispatch on to the next strategy.
type LiquidationStrategy interface {
	Name() string
	Attempt(req LiquidationRequest) (Outcome, error)
}

type contractStrategy struct{ e *Engine }

func (contractStrategy) Name() string { return StrategyContract }

func (s contractStrategy) Attempt(req LiquidationRequest) (Outcome, error) {
	if err := s.e.LiquidateViaContracts(req.Owner, req.Currency, req.Amount, req.Target); err != nil {
		return Outcome{}, err
	}
	return Outcome{Sold: new(big.Int).Set(req.Amount), Refunded: big.NewInt(0)}, nil
}

type dexStrategy struct{ e *Engine }

func (dexStrategy) Name() string { return StrategyDEX }

// Attempt sells at most the oracle-implied supply widened by the slippage
// allowance, and only if the swap raises the whole target.
func (s dexStrategy) Attempt(req LiquidationRequest) (Outcome, error) {
	e := s.e
	price, ok := e.prices.GetRelativePrice(e.stable(), req.Currency)
	if !ok {
		return Outcome{}, ErrInvalidFeedPrice
	}
	widen, ok := fixedpoint.One().SaturatingSub(e.params.MaxSwapSlippageCompareToOracle).Reciprocal()
	if !ok {
		return Outcome{}, dex.ErrCannotSwap
	}
	maxSupply := widen.SaturatingMulInt(price.SaturatingMulInt(req.Target))
	sold, _, err := e.treasury.SwapCollateralToStable(req.Currency, dex.ExactTarget(minInt(req.Amount, maxSupply), req.Target), false)
	if err != nil {
		return Outcome{}, err
	}
	refund := new(big.Int).Sub(req.Amount, sold)
	if refund.Sign() > 0 {
		if err := e.treasury.WithdrawCollateral(req.Owner, req.Currency, refund); err != nil {
			return Outcome{}, err
		}
	}
	return Outcome{Sold: sold, Refunded: refund}, nil
}

type auctionStrategy struct{ e *Engine }

func (auctionStrategy) Name() string { return StrategyAuction }

func (s auctionStrategy) Attempt(req LiquidationRequest) (Outcome, error) {
	if _, err := s.e.treasury.CreateCollateralAuctions(req.Currency, req.Amount, req.Target, req.Owner, true); err != nil {
		return Outcome{}, err
	}
	return Outcome{Sold: new(big.Int).Set(req.Amount), Refunded: big.NewInt(0)}, nil
}

// handleLiquidatedCollateral runs the strategies in order until one
// succeeds. Each attempt is atomic, events included; only the last failure
// is returned.
func (e *Engine) handleLiquidatedCollateral(owner common.Address, currency types.CurrencyID, amount, target *big.Int) (string, error) {
	if target.Sign() == 0 {
		if err := e.treasury.WithdrawCollateral(owner, currency, amount); err != nil {
			return "", err
		}
		return StrategyRefund, nil
	}
	req := LiquidationRequest{Owner: owner, Currency: currency, Amount: amount, Target: target}
	lastErr := ErrLiquidationFailed
	for _, strategy := range e.strategies {
		err := e.atomicEvents(func() error {
			_, err := strategy.Attempt(req)
			return err
		})
		if err == nil {
			return strategy.Name(), nil
		}
		e.log().Debug("cdp: liquidation strategy failed",
			"strategy", strategy.Name(),
			"currency", currency,
			"owner", owner.Hex(),
			"error", err)
		e.telemetry.RecordStrategyFailure(currency.String(), strategy.Name())
		lastErr = err
	}
	return "", lastErr
}

// LiquidateUnsafeCDP confiscates an unsafe position and sells its
// collateral for the bad debt value plus the liquidation penalty.
func (e *Engine) LiquidateUnsafeCDP(who common.Address, currency types.CurrencyID) error {
	if err := e.ready(); err != nil {
		return err
	}
	if e.IsShutdown() {
		return ErrAlreadyShutdown
	}
	pos := e.loans.Positions(currency, who)
	status, err := e.CheckCDPStatus(currency, pos.Collateral, pos.Debit)
	if err != nil {
		return err
	}
	if status != StatusUnsafe {
		return ErrMustBeUnsafe
	}

	badDebtValue := e.GetDebitValue(currency, pos.Debit)
	penalty, err := e.GetLiquidationPenalty(currency)
	if err != nil {
		return err
	}
	target := penalty.SaturatingMulAccInt(badDebtValue)

	var strategy string
	err = e.state.Atomic(func() error {
		var err error
		if err = e.loans.ConfiscateCollateralAndDebit(who, currency, pos.Collateral, pos.Debit); err != nil {
			return err
		}
		other, isShare := e.stablePairedSide(currency)
		if !isShare {
			strategy, err = e.handleLiquidatedCollateral(who, currency, pos.Collateral, target)
			return err
		}
		out0, out1, err := e.treasury.RemoveLiquidityForLPCollateral(currency, pos.Collateral)
		if err != nil {
			return err
		}
		stableOut, otherOut := out0, out1
		if token0, _, _ := currency.SplitDexShare(); token0 != e.stable() {
			stableOut, otherOut = out1, out0
		}
		if stableOut.Cmp(target) >= 0 {
			if excess := new(big.Int).Sub(stableOut, target); excess.Sign() > 0 {
				if err := e.treasury.WithdrawSurplus(who, excess); err != nil {
					return err
				}
			}
			if err := e.treasury.WithdrawCollateral(who, other, otherOut); err != nil {
				return err
			}
			strategy = StrategyRefund
			return nil
		}
		strategy, err = e.handleLiquidatedCollateral(who, other, otherOut, new(big.Int).Sub(target, stableOut))
		return err
	})
	if err != nil {
		return err
	}

	e.emit(events.LiquidateUnsafeCDP{
		CollateralType:   currency,
		Owner:            who,
		CollateralAmount: new(big.Int).Set(pos.Collateral),
		BadDebtValue:     badDebtValue,
		TargetAmount:     target,
		Strategy:         strategy,
	})
	e.telemetry.RecordLiquidation(currency.String(), strategy)
	e.log().Info("cdp: liquidated unsafe position",
		"currency", currency,
		"owner", who.Hex(),
		"collateral", pos.Collateral.String(),
		"badDebt", badDebtValue.String(),
		"strategy", strategy)
	return nil
}

// Liquidate is the permissionless entry submitted by the scanner.
func (e *Engine) Liquidate(origin nativecommon.Origin, currency types.CurrencyID, who common.Address) error {
	if err := ensureUnsigned(origin); err != nil {
		return err
	}
	if err := e.guard(); err != nil {
		return err
	}
	if e.IsShutdown() {
		return ErrAlreadyShutdown
	}
	return e.LiquidateUnsafeCDP(who, currency)
}

// SettleCDPHasDebit winds down a position after shutdown: collateral worth
// the debit value at the oracle price moves to the treasury with the debit.
func (e *Engine) SettleCDPHasDebit(who common.Address, currency types.CurrencyID) error {
	if err := e.ready(); err != nil {
		return err
	}
	pos := e.loans.Positions(currency, who)
	if pos.Debit.Sign() == 0 {
		return ErrNoDebitValue
	}
	price, ok := e.prices.GetRelativePrice(e.stable(), currency)
	if !ok {
		return ErrInvalidFeedPrice
	}
	settled := minInt(price.SaturatingMulInt(e.GetDebitValue(currency, pos.Debit)), pos.Collateral)
	if err := e.loans.ConfiscateCollateralAndDebit(who, currency, settled, pos.Debit); err != nil {
		return err
	}
	e.emit(events.SettleCDPInDebit{CollateralType: currency, Owner: who})
	e.telemetry.RecordSettlement(currency.String())
	return nil
}

// Settle is the permissionless settlement entry, valid only after shutdown.
func (e *Engine) Settle(origin nativecommon.Origin, currency types.CurrencyID, who common.Address) error {
	if err := ensureUnsigned(origin); err != nil {
		return err
	}
	if !e.IsShutdown() {
		return ErrMustAfterShutdown
	}
	return e.SettleCDPHasDebit(who, currency)
}

// CloseCDPHasDebitByDex closes a safe position by selling at most
// maxCollateralAmount of its collateral for exactly the debit value and
// returning the rest to the owner.
func (e *Engine) CloseCDPHasDebitByDex(who common.Address, currency types.CurrencyID, maxCollateralAmount *big.Int) error {
	if err := e.ready(); err != nil {
		return err
	}
	pos := e.loans.Positions(currency, who)
	if pos.Debit.Sign() == 0 {
		return ErrNoDebitValue
	}
	status, err := e.CheckCDPStatus(currency, pos.Collateral, pos.Debit)
	if err != nil {
		return err
	}
	if status != StatusSafe {
		return ErrMustBeSafe
	}

	debitValue := e.GetDebitValue(currency, pos.Debit)
	var sold, refund *big.Int
	err = e.state.Atomic(func() error {
		if err := e.loans.ConfiscateCollateralAndDebit(who, currency, pos.Collateral, pos.Debit); err != nil {
			return err
		}
		limit := dex.ExactTarget(minInt(pos.Collateral, orZero(maxCollateralAmount)), debitValue)
		var err error
		sold, _, err = e.treasury.SwapCollateralToStable(currency, limit, false)
		if err != nil {
			return err
		}
		refund = new(big.Int).Sub(pos.Collateral, sold)
		if refund.Sign() > 0 {
			return e.treasury.WithdrawCollateral(who, currency, refund)
		}
		return nil
	})
	if err != nil {
		return err
	}
	e.emit(events.CloseCDPInDebitByDEX{
		CollateralType:   currency,
		Owner:            who,
		SoldCollateral:   sold,
		RefundCollateral: refund,
		DebitValue:       debitValue,
	})
	e.telemetry.RecordClose(currency.String())
	return nil
}
