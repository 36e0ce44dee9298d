package cdp

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"ecdpchain/core/types"
	"ecdpchain/native/dex"
)

// stablePairedSide returns the non-stable token of a share currency paired
// with the stable currency.
func (e *Engine) stablePairedSide(currency types.CurrencyID) (types.CurrencyID, bool) {
	a, b, ok := currency.SplitDexShare()
	if !ok {
		return "", false
	}
	switch e.stable() {
	case a:
		return b, true
	case b:
		return a, true
	}
	return "", false
}

func (e *Engine) refund(currency types.CurrencyID, from, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return nil
	}
	return e.ledger.Transfer(currency, from, to, amount)
}

// ExpandPositionCollateral issues increaseDebitValue of stable against the
// position, buys collateral with it and books both on the position.
func (e *Engine) ExpandPositionCollateral(who common.Address, currency types.CurrencyID, increaseDebitValue, minIncreaseCollateral *big.Int) error {
	if err := e.ready(); err != nil {
		return err
	}
	if e.swapper == nil {
		return errNilSwapper
	}
	if _, err := e.mustCollateralParams(currency); err != nil {
		return err
	}
	increaseDebitValue, minIncreaseCollateral = orZero(increaseDebitValue), orZero(minIncreaseCollateral)
	escrow := e.loans.Account()

	return e.state.Atomic(func() error {
		if err := e.treasury.IssueDebit(escrow, increaseDebitValue, true); err != nil {
			return err
		}

		var increaseCollateral *big.Int
		if other, ok := e.stablePairedSide(currency); ok {
			if e.liquidity == nil {
				return errNilLiquidity
			}
			if e.ledger == nil {
				return errNilLedger
			}
			half := new(big.Int).Rsh(increaseDebitValue, 1)
			_, bought, err := e.swapper.Swap(escrow, e.stable(), other, dex.ExactSupply(half, big.NewInt(0)))
			if err != nil {
				return err
			}
			stableSide := new(big.Int).Sub(increaseDebitValue, half)
			usedStable, usedOther, share, err := e.liquidity.DoAddLiquidity(escrow, e.stable(), other, stableSide, bought, minIncreaseCollateral, false)
			if err != nil {
				return err
			}
			if err := e.refund(e.stable(), escrow, who, new(big.Int).Sub(stableSide, usedStable)); err != nil {
				return err
			}
			if err := e.refund(other, escrow, who, new(big.Int).Sub(bought, usedOther)); err != nil {
				return err
			}
			increaseCollateral = share
		} else {
			_, bought, err := e.swapper.Swap(escrow, e.stable(), currency, dex.ExactSupply(increaseDebitValue, minIncreaseCollateral))
			if err != nil {
				return err
			}
			increaseCollateral = bought
		}

		increaseDebit := e.ConvertToDebitBalance(currency, increaseDebitValue)
		if err := e.loans.UpdateLoan(who, currency, increaseCollateral, increaseDebit); err != nil {
			return err
		}
		pos := e.loans.Positions(currency, who)
		if err := e.CheckPositionValid(currency, pos.Collateral, pos.Debit, false); err != nil {
			return err
		}
		return e.CheckDebitCap(currency, e.loans.TotalPositions(currency).Debit)
	})
}

// ShrinkPositionDebit sells decreaseCollateral of the position for stable
// and repays debit with the proceeds. Proceeds above the outstanding debit
// value are paid to the owner.
func (e *Engine) ShrinkPositionDebit(who common.Address, currency types.CurrencyID, decreaseCollateral, minDecreaseDebitValue *big.Int) error {
	if err := e.ready(); err != nil {
		return err
	}
	if e.swapper == nil {
		return errNilSwapper
	}
	if e.ledger == nil {
		return errNilLedger
	}
	if _, err := e.mustCollateralParams(currency); err != nil {
		return err
	}
	decreaseCollateral, minDecreaseDebitValue = orZero(decreaseCollateral), orZero(minDecreaseDebitValue)
	pos := e.loans.Positions(currency, who)
	if decreaseCollateral.Cmp(pos.Collateral) > 0 {
		return ErrCollateralNotEnough
	}
	escrow := e.loans.Account()

	return e.state.Atomic(func() error {
		var proceeds *big.Int
		if other, ok := e.stablePairedSide(currency); ok {
			if e.liquidity == nil {
				return errNilLiquidity
			}
			stableOut, otherOut, err := e.liquidity.DoRemoveLiquidity(escrow, e.stable(), other, decreaseCollateral, nil, nil, false)
			if err != nil {
				return err
			}
			_, swapped, err := e.swapper.Swap(escrow, other, e.stable(), dex.ExactSupply(otherOut, big.NewInt(0)))
			if err != nil {
				return err
			}
			proceeds = new(big.Int).Add(stableOut, swapped)
			if proceeds.Cmp(minDecreaseDebitValue) < 0 {
				return ErrNotEnoughDebitDecrement
			}
		} else {
			_, swapped, err := e.swapper.Swap(escrow, currency, e.stable(), dex.ExactSupply(decreaseCollateral, minDecreaseDebitValue))
			if err != nil {
				return err
			}
			proceeds = swapped
		}

		decreaseDebitValue := proceeds
		decreaseDebit := minInt(e.ConvertToDebitBalance(currency, proceeds), pos.Debit)
		outstandingValue := e.GetDebitValue(currency, pos.Debit)
		if proceeds.Cmp(outstandingValue) >= 0 {
			if err := e.refund(e.stable(), escrow, who, new(big.Int).Sub(proceeds, outstandingValue)); err != nil {
				return err
			}
			decreaseDebitValue = outstandingValue
			decreaseDebit = new(big.Int).Set(pos.Debit)
		}
		if err := e.treasury.BurnDebit(escrow, decreaseDebitValue); err != nil {
			return err
		}
		if err := e.loans.UpdateLoan(who, currency, new(big.Int).Neg(decreaseCollateral), new(big.Int).Neg(decreaseDebit)); err != nil {
			return err
		}
		after := e.loans.Positions(currency, who)
		return e.CheckPositionValid(currency, after.Collateral, after.Debit, false)
	})
}
