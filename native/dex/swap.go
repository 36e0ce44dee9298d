package dex

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"ecdpchain/core/events"
	"ecdpchain/core/types"
	nativecommon "ecdpchain/native/common"
)

// swap moves supplyIncrement into and targetDecrement out of the pool of the
// two currencies. The product of the reserves may not decrease.
func (e *Engine) swap(supplyCurrency, targetCurrency types.CurrencyID, supplyIncrement, targetDecrement *big.Int) error {
	pair, err := NewTradingPair(supplyCurrency, targetCurrency)
	if err != nil {
		return err
	}
	r0, r1, err := e.state.LiquidityPool(pair)
	if err != nil {
		return err
	}
	supplyReserve, targetReserve := r0, r1
	if !pair.orient(supplyCurrency) {
		supplyReserve, targetReserve = r1, r0
	}
	if targetDecrement.Cmp(targetReserve) > 0 {
		return ErrInsufficientLiquidity
	}
	newSupply := new(big.Int).Add(supplyReserve, supplyIncrement)
	newTarget := new(big.Int).Sub(targetReserve, targetDecrement)
	if !productNotDecreased(supplyReserve, targetReserve, newSupply, newTarget) {
		return ErrInvariantCheckFailed
	}
	if pair.orient(supplyCurrency) {
		return e.setPool(pair, newSupply, newTarget)
	}
	return e.setPool(pair, newTarget, newSupply)
}

// swapByPath applies amounts hop by hop along path.
func (e *Engine) swapByPath(path []types.CurrencyID, amounts []*big.Int) error {
	for i := 0; i+1 < len(path); i++ {
		if err := e.swap(path[i], path[i+1], amounts[i], amounts[i+1]); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) settleSwap(who common.Address, path []types.CurrencyID, amounts []*big.Int) error {
	supply, target := amounts[0], amounts[len(amounts)-1]
	if err := e.ledger.Transfer(path[0], who, e.account, supply); err != nil {
		return err
	}
	if err := e.swapByPath(path, amounts); err != nil {
		return e.invariantViolation(path, amounts, err)
	}
	if err := e.ledger.Transfer(path[len(path)-1], e.account, who, target); err != nil {
		return err
	}
	e.emit(events.Swap{Trader: who, Path: append([]types.CurrencyID(nil), path...), LiquidityChanges: amounts})
	e.telemetry.RecordSwap(string(path[0]), string(path[len(path)-1]), len(path)-1)
	return nil
}

func (e *Engine) doSwapWithExactSupply(who common.Address, path []types.CurrencyID, supplyAmount, minTargetAmount *big.Int) (*big.Int, error) {
	amounts, err := e.GetTargetAmounts(path, supplyAmount)
	if err != nil {
		return nil, err
	}
	target := amounts[len(amounts)-1]
	if target.Cmp(orZero(minTargetAmount)) < 0 {
		return nil, ErrInsufficientTargetAmount
	}
	if err := e.settleSwap(who, path, amounts); err != nil {
		return nil, err
	}
	return target, nil
}

func (e *Engine) doSwapWithExactTarget(who common.Address, path []types.CurrencyID, targetAmount, maxSupplyAmount *big.Int) (*big.Int, error) {
	amounts, err := e.GetSupplyAmounts(path, targetAmount)
	if err != nil {
		return nil, err
	}
	supply := amounts[0]
	if supply.Cmp(orZero(maxSupplyAmount)) > 0 {
		return nil, ErrExcessiveSupplyAmount
	}
	if err := e.settleSwap(who, path, amounts); err != nil {
		return nil, err
	}
	return supply, nil
}

// SwapWithExactSupply spends exactly supplyAmount of path[0] and fails unless
// at least minTargetAmount of the last currency is received.
func (e *Engine) SwapWithExactSupply(origin nativecommon.Origin, path []types.CurrencyID, supplyAmount, minTargetAmount *big.Int) error {
	who, err := ensureSigned(origin)
	if err != nil {
		return err
	}
	if err := e.guard(); err != nil {
		return err
	}
	return e.atomic(func() error {
		_, err := e.doSwapWithExactSupply(who, path, supplyAmount, minTargetAmount)
		return err
	})
}

// SwapWithExactTarget receives exactly targetAmount of the last currency and
// fails if that costs more than maxSupplyAmount.
func (e *Engine) SwapWithExactTarget(origin nativecommon.Origin, path []types.CurrencyID, targetAmount, maxSupplyAmount *big.Int) error {
	who, err := ensureSigned(origin)
	if err != nil {
		return err
	}
	if err := e.guard(); err != nil {
		return err
	}
	return e.atomic(func() error {
		_, err := e.doSwapWithExactTarget(who, path, targetAmount, maxSupplyAmount)
		return err
	})
}

// SwapWithSpecificPath swaps on behalf of another module and returns the
// actual supply and target amounts.
func (e *Engine) SwapWithSpecificPath(who common.Address, path []types.CurrencyID, limit SwapLimit) (*big.Int, *big.Int, error) {
	if err := e.guard(); err != nil {
		return nil, nil, err
	}
	var supply, target *big.Int
	err := e.atomic(func() error {
		switch limit.Kind {
		case KindExactSupply:
			out, err := e.doSwapWithExactSupply(who, path, limit.Supply, limit.Target)
			if err != nil {
				return err
			}
			supply, target = new(big.Int).Set(orZero(limit.Supply)), out
		case KindExactTarget:
			in, err := e.doSwapWithExactTarget(who, path, limit.Target, limit.Supply)
			if err != nil {
				return err
			}
			supply, target = in, new(big.Int).Set(orZero(limit.Target))
		default:
			return ErrCannotSwap
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return supply, target, nil
}
