package dex

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"ecdpchain/core/events"
	"ecdpchain/core/types"
	nativecommon "ecdpchain/native/common"
	"ecdpchain/native/fixedpoint"
)

// AddLiquidity deposits up to maxA/maxB into the enabled pool of a and b at
// the current pool ratio and mints liquidity shares to the caller. When stake
// is set the minted shares are reserved on the caller's account.
func (e *Engine) AddLiquidity(origin nativecommon.Origin, a, b types.CurrencyID, maxA, maxB, minShare *big.Int, stake bool) error {
	who, err := ensureSigned(origin)
	if err != nil {
		return err
	}
	if err := e.guard(); err != nil {
		return err
	}
	return e.atomic(func() error {
		_, _, _, err := e.DoAddLiquidity(who, a, b, maxA, maxB, minShare, stake)
		return err
	})
}

// DoAddLiquidity is AddLiquidity for another module acting on who's behalf.
// It returns the amounts taken, oriented to the argument order, and the
// shares minted.
func (e *Engine) DoAddLiquidity(who common.Address, a, b types.CurrencyID, maxA, maxB, minShare *big.Int, stake bool) (*big.Int, *big.Int, *big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, nil, nil, err
	}
	pair, err := NewTradingPair(a, b)
	if err != nil {
		return nil, nil, nil, err
	}
	st, err := e.pairState(pair)
	if err != nil {
		return nil, nil, nil, err
	}
	if st.Status != StatusEnabled {
		return nil, nil, nil, ErrMustBeEnabled
	}
	max0, max1 := orientAmounts(pair, a, maxA, maxB)
	if max0.Sign() <= 0 || max1.Sign() <= 0 {
		return nil, nil, nil, ErrInvalidLiquidityIncrement
	}
	pool0, pool1, err := e.state.LiquidityPool(pair)
	if err != nil {
		return nil, nil, nil, err
	}
	shareCurrency := pair.DexShareCurrency()
	totalShares := e.ledger.TotalIssuance(shareCurrency)

	var in0, in1, share *big.Int
	if totalShares.Sign() == 0 {
		in0, in1 = new(big.Int).Set(max0), new(big.Int).Set(max1)
		share, err = bootstrapShares(max0, max1)
		if err != nil {
			return nil, nil, nil, err
		}
	} else {
		in0, in1, share, err = proportionalIncrement(pool0, pool1, totalShares, max0, max1)
		if err != nil {
			return nil, nil, nil, err
		}
	}
	if in0.Sign() == 0 || in1.Sign() == 0 || share.Sign() == 0 {
		return nil, nil, nil, ErrInvalidLiquidityIncrement
	}
	if share.Cmp(orZero(minShare)) < 0 {
		return nil, nil, nil, ErrUnacceptableShareIncrement
	}

	if err := e.ledger.Transfer(pair.Token0, who, e.account, in0); err != nil {
		return nil, nil, nil, err
	}
	if err := e.ledger.Transfer(pair.Token1, who, e.account, in1); err != nil {
		return nil, nil, nil, err
	}
	if err := e.ledger.Deposit(shareCurrency, who, share); err != nil {
		return nil, nil, nil, err
	}
	if stake {
		if err := e.ledger.Reserve(shareCurrency, who, share); err != nil {
			return nil, nil, nil, err
		}
	}
	if err := e.setPool(pair, new(big.Int).Add(pool0, in0), new(big.Int).Add(pool1, in1)); err != nil {
		return nil, nil, nil, err
	}
	e.emit(events.LiquidityChanged{
		Kind:      events.TypeDexAddLiquidity,
		Who:       who,
		Currency0: pair.Token0,
		Amount0:   in0,
		Currency1: pair.Token1,
		Amount1:   in1,
		Shares:    share,
	})
	e.telemetry.RecordLiquidity(pair.String(), "add")
	inA, inB := in0, in1
	if !pair.orient(a) {
		inA, inB = in1, in0
	}
	return inA, inB, share, nil
}

// bootstrapShares prices the larger side at one share per unit and values
// the smaller side at the ratio between them.
func bootstrapShares(amount0, amount1 *big.Int) (*big.Int, error) {
	rate0, rate1 := fixedpoint.One(), fixedpoint.One()
	var ok bool
	if amount0.Cmp(amount1) > 0 {
		if rate1, ok = fixedpoint.CheckedFromRational(amount0, amount1); !ok {
			return nil, ErrInvalidLiquidityIncrement
		}
	} else {
		if rate0, ok = fixedpoint.CheckedFromRational(amount1, amount0); !ok {
			return nil, ErrInvalidLiquidityIncrement
		}
	}
	return shareValue(rate0, rate1, amount0, amount1)
}

func shareValue(rate0, rate1 fixedpoint.ExchangeRate, amount0, amount1 *big.Int) (*big.Int, error) {
	v0, ok := rate0.CheckedMulInt(amount0)
	if !ok {
		return nil, ErrInvalidLiquidityIncrement
	}
	v1, ok := rate1.CheckedMulInt(amount1)
	if !ok {
		return nil, ErrInvalidLiquidityIncrement
	}
	return new(big.Int).Add(v0, v1), nil
}

// proportionalIncrement takes as much of max0/max1 as fits the pool ratio.
// Shares are minted as max*totalShares/pool on the binding side, so a later
// removal of the same shares returns the deposit less at most one unit.
func proportionalIncrement(pool0, pool1, totalShares, max0, max1 *big.Int) (*big.Int, *big.Int, *big.Int, error) {
	if pool0.Sign() == 0 || pool1.Sign() == 0 {
		return nil, nil, nil, ErrInvalidLiquidityIncrement
	}
	need1, ok := mulDiv(max0, pool1, pool0)
	if !ok {
		return nil, nil, nil, ErrInvalidLiquidityIncrement
	}
	if need1.Cmp(max1) <= 0 {
		share, ok := mulDiv(max0, totalShares, pool0)
		if !ok {
			return nil, nil, nil, ErrInvalidLiquidityIncrement
		}
		return new(big.Int).Set(max0), need1, share, nil
	}
	need0, ok := mulDiv(max1, pool0, pool1)
	if !ok {
		return nil, nil, nil, ErrInvalidLiquidityIncrement
	}
	share, ok := mulDiv(max1, totalShares, pool1)
	if !ok {
		return nil, nil, nil, ErrInvalidLiquidityIncrement
	}
	return need0, new(big.Int).Set(max1), share, nil
}

// RemoveLiquidity burns share liquidity shares and pays out the matching
// fraction of both reserves. With unstake the shares are unreserved first.
func (e *Engine) RemoveLiquidity(origin nativecommon.Origin, a, b types.CurrencyID, share, minA, minB *big.Int, unstake bool) error {
	who, err := ensureSigned(origin)
	if err != nil {
		return err
	}
	if err := e.guard(); err != nil {
		return err
	}
	return e.atomic(func() error {
		_, _, err := e.DoRemoveLiquidity(who, a, b, share, minA, minB, unstake)
		return err
	})
}

// DoRemoveLiquidity is RemoveLiquidity for another module acting on who's
// behalf. The withdrawn amounts are oriented to the argument order.
func (e *Engine) DoRemoveLiquidity(who common.Address, a, b types.CurrencyID, share, minA, minB *big.Int, unstake bool) (*big.Int, *big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, nil, err
	}
	pair, err := NewTradingPair(a, b)
	if err != nil {
		return nil, nil, err
	}
	if orZero(share).Sign() == 0 {
		return big.NewInt(0), big.NewInt(0), nil
	}
	if share.Sign() < 0 {
		return nil, nil, ErrInvalidLiquidityIncrement
	}
	min0, min1 := orientAmounts(pair, a, minA, minB)
	pool0, pool1, err := e.state.LiquidityPool(pair)
	if err != nil {
		return nil, nil, err
	}
	shareCurrency := pair.DexShareCurrency()
	totalShares := e.ledger.TotalIssuance(shareCurrency)
	if share.Cmp(totalShares) > 0 {
		return nil, nil, ErrUnacceptableLiquidityWithdrawn
	}
	out0, ok0 := mulDiv(share, pool0, totalShares)
	out1, ok1 := mulDiv(share, pool1, totalShares)
	if !ok0 || !ok1 {
		return nil, nil, ErrUnacceptableLiquidityWithdrawn
	}
	if out0.Cmp(min0) < 0 || out1.Cmp(min1) < 0 {
		return nil, nil, ErrUnacceptableLiquidityWithdrawn
	}

	if unstake {
		if err := e.ledger.Unreserve(shareCurrency, who, share); err != nil {
			return nil, nil, err
		}
	}
	if err := e.ledger.Withdraw(shareCurrency, who, share); err != nil {
		return nil, nil, err
	}
	if err := e.ledger.Transfer(pair.Token0, e.account, who, out0); err != nil {
		return nil, nil, err
	}
	if err := e.ledger.Transfer(pair.Token1, e.account, who, out1); err != nil {
		return nil, nil, err
	}
	if err := e.setPool(pair, new(big.Int).Sub(pool0, out0), new(big.Int).Sub(pool1, out1)); err != nil {
		return nil, nil, err
	}
	e.emit(events.LiquidityChanged{
		Kind:      events.TypeDexRemoveLiquidity,
		Who:       who,
		Currency0: pair.Token0,
		Amount0:   out0,
		Currency1: pair.Token1,
		Amount1:   out1,
		Shares:    new(big.Int).Set(share),
	})
	e.telemetry.RecordLiquidity(pair.String(), "remove")
	if pair.orient(a) {
		return out0, out1, nil
	}
	return out1, out0, nil
}
