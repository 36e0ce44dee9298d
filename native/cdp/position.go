package cdp

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"ecdpchain/core/types"
	nativecommon "ecdpchain/native/common"
)

// AdjustPosition changes collateral and debit units of a position through
// the loans store. A repayment larger than the outstanding debit repays the
// whole debit.
func (e *Engine) AdjustPosition(who common.Address, currency types.CurrencyID, collateralAdjustment, debitAdjustment *big.Int) error {
	if err := e.ready(); err != nil {
		return err
	}
	if _, err := e.mustCollateralParams(currency); err != nil {
		return err
	}
	collateralAdjustment, debitAdjustment = orZero(collateralAdjustment), orZero(debitAdjustment)
	if debitAdjustment.Sign() < 0 {
		outstanding := e.loans.Positions(currency, who).Debit
		if new(big.Int).Neg(debitAdjustment).Cmp(outstanding) > 0 {
			debitAdjustment = new(big.Int).Neg(outstanding)
		}
	}
	return e.loans.AdjustPosition(who, currency, collateralAdjustment, debitAdjustment)
}

// AdjustPositionByDebitValue is AdjustPosition with the debit change given
// in stable value.
func (e *Engine) AdjustPositionByDebitValue(who common.Address, currency types.CurrencyID, collateralAdjustment, debitValueAdjustment *big.Int) error {
	if err := e.ready(); err != nil {
		return err
	}
	if _, err := e.mustCollateralParams(currency); err != nil {
		return err
	}
	debitValueAdjustment = orZero(debitValueAdjustment)
	units := e.ConvertToDebitBalance(currency, new(big.Int).Abs(debitValueAdjustment))
	if debitValueAdjustment.Sign() < 0 {
		units.Neg(units)
	}
	return e.AdjustPosition(who, currency, collateralAdjustment, units)
}

func (e *Engine) userCall(origin nativecommon.Origin) (common.Address, error) {
	who, err := ensureSigned(origin)
	if err != nil {
		return common.Address{}, err
	}
	if err := e.guard(); err != nil {
		return common.Address{}, err
	}
	if e.IsShutdown() {
		return common.Address{}, ErrAlreadyShutdown
	}
	return who, nil
}

// AdjustLoan is the signed extrinsic form of AdjustPosition.
func (e *Engine) AdjustLoan(origin nativecommon.Origin, currency types.CurrencyID, collateralAdjustment, debitAdjustment *big.Int) error {
	who, err := e.userCall(origin)
	if err != nil {
		return err
	}
	if err := e.AdjustPosition(who, currency, collateralAdjustment, debitAdjustment); err != nil {
		return err
	}
	e.telemetry.RecordAdjustment(currency.String(), "adjust")
	return nil
}

// AdjustLoanByDebitValue is the signed extrinsic form of
// AdjustPositionByDebitValue.
func (e *Engine) AdjustLoanByDebitValue(origin nativecommon.Origin, currency types.CurrencyID, collateralAdjustment, debitValueAdjustment *big.Int) error {
	who, err := e.userCall(origin)
	if err != nil {
		return err
	}
	if err := e.AdjustPositionByDebitValue(who, currency, collateralAdjustment, debitValueAdjustment); err != nil {
		return err
	}
	e.telemetry.RecordAdjustment(currency.String(), "adjust_by_debit_value")
	return nil
}

func (e *Engine) ExpandCollateral(origin nativecommon.Origin, currency types.CurrencyID, increaseDebitValue, minIncreaseCollateral *big.Int) error {
	who, err := e.userCall(origin)
	if err != nil {
		return err
	}
	if err := e.ExpandPositionCollateral(who, currency, increaseDebitValue, minIncreaseCollateral); err != nil {
		return err
	}
	e.telemetry.RecordAdjustment(currency.String(), "expand")
	return nil
}

func (e *Engine) ShrinkDebit(origin nativecommon.Origin, currency types.CurrencyID, decreaseCollateral, minDecreaseDebitValue *big.Int) error {
	who, err := e.userCall(origin)
	if err != nil {
		return err
	}
	if err := e.ShrinkPositionDebit(who, currency, decreaseCollateral, minDecreaseDebitValue); err != nil {
		return err
	}
	e.telemetry.RecordAdjustment(currency.String(), "shrink")
	return nil
}

// CloseLoanHasDebitByDex closes the caller's position by selling at most
// maxCollateralAmount of collateral for its debit value.
func (e *Engine) CloseLoanHasDebitByDex(origin nativecommon.Origin, currency types.CurrencyID, maxCollateralAmount *big.Int) error {
	who, err := e.userCall(origin)
	if err != nil {
		return err
	}
	return e.CloseCDPHasDebitByDex(who, currency, maxCollateralAmount)
}
