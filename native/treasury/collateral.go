package treasury

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"ecdpchain/core/types"
	"ecdpchain/native/dex"
)

// TotalCollaterals is the treasury balance of currency, in auction or not.
func (t *Treasury) TotalCollaterals(currency types.CurrencyID) *big.Int {
	if t == nil || t.ledger == nil {
		return big.NewInt(0)
	}
	return t.ledger.FreeBalance(currency, t.account)
}

// TotalCollateralInAuction is the collateral locked in open auctions.
func (t *Treasury) TotalCollateralInAuction(currency types.CurrencyID) *big.Int {
	return t.amount(currencyKey(inAuctionPrefix, currency))
}

func (t *Treasury) TotalCollateralsNotInAuction(currency types.CurrencyID) *big.Int {
	free := new(big.Int).Sub(t.TotalCollaterals(currency), t.TotalCollateralInAuction(currency))
	if free.Sign() < 0 {
		return free.SetInt64(0)
	}
	return free
}

func (t *Treasury) DepositCollateral(from common.Address, currency types.CurrencyID, amount *big.Int) error {
	if err := t.ready(); err != nil {
		return err
	}
	return t.ledger.Transfer(currency, from, t.account, orZero(amount))
}

// WithdrawCollateral releases collateral that is not locked in an auction.
func (t *Treasury) WithdrawCollateral(to common.Address, currency types.CurrencyID, amount *big.Int) error {
	if err := t.ready(); err != nil {
		return err
	}
	amount = orZero(amount)
	if t.TotalCollateralsNotInAuction(currency).Cmp(amount) < 0 {
		return ErrCollateralNotEnough
	}
	return t.ledger.Transfer(currency, t.account, to, amount)
}

// SwapCollateralToStable sells treasury collateral through the swap router.
// The supply bound of limit must be covered by collateral outside auctions,
// or by collateral in auction when inAuction is set.
func (t *Treasury) SwapCollateralToStable(currency types.CurrencyID, limit dex.SwapLimit, inAuction bool) (*big.Int, *big.Int, error) {
	if err := t.ready(); err != nil {
		return nil, nil, err
	}
	if t.swapper == nil {
		return nil, nil, errNilSwapper
	}
	supplyLimit := orZero(limit.Supply)
	if inAuction {
		if t.TotalCollaterals(currency).Cmp(supplyLimit) < 0 || t.TotalCollateralInAuction(currency).Cmp(supplyLimit) < 0 {
			return nil, nil, ErrCollateralNotEnough
		}
	} else if t.TotalCollateralsNotInAuction(currency).Cmp(supplyLimit) < 0 {
		return nil, nil, ErrCollateralNotEnough
	}
	var supply, target *big.Int
	err := t.state.Atomic(func() error {
		var err error
		supply, target, err = t.swapper.Swap(t.account, currency, t.stable(), limit)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return supply, target, nil
}

// RemoveLiquidityForLPCollateral redeems confiscated liquidity shares held by
// the treasury. The amounts are returned in the share currency's token order.
func (t *Treasury) RemoveLiquidityForLPCollateral(share types.CurrencyID, amount *big.Int) (*big.Int, *big.Int, error) {
	if err := t.ready(); err != nil {
		return nil, nil, err
	}
	token0, token1, ok := share.SplitDexShare()
	if !ok {
		return nil, nil, ErrNotDexShare
	}
	if t.liquidity == nil {
		return nil, nil, errNilLiquidity
	}
	amount = orZero(amount)
	if t.TotalCollateralsNotInAuction(share).Cmp(amount) < 0 {
		return nil, nil, ErrCollateralNotEnough
	}
	var out0, out1 *big.Int
	err := t.state.Atomic(func() error {
		var err error
		out0, out1, err = t.liquidity.DoRemoveLiquidity(t.account, token0, token1, amount, nil, nil, false)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return out0, out1, nil
}
