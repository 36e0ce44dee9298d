package dex

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"ecdpchain/core/types"
)

// Swapper is the swap surface other modules consume.
type Swapper interface {
	GetSwapAmount(supplyCurrency, targetCurrency types.CurrencyID, limit SwapLimit) (*big.Int, *big.Int, bool)
	Swap(who common.Address, supplyCurrency, targetCurrency types.CurrencyID, limit SwapLimit) (*big.Int, *big.Int, error)
}

// JointSwap routes trades through the best of the direct path and a fixed
// set of joint currency lists.
type JointSwap struct {
	engine *Engine
	joints [][]types.CurrencyID
}

var _ Swapper = (*JointSwap)(nil)

func NewJointSwap(engine *Engine, joints ...[]types.CurrencyID) *JointSwap {
	copied := make([][]types.CurrencyID, 0, len(joints))
	for _, joint := range joints {
		copied = append(copied, append([]types.CurrencyID(nil), joint...))
	}
	return &JointSwap{engine: engine, joints: copied}
}

func (j *JointSwap) GetSwapAmount(supplyCurrency, targetCurrency types.CurrencyID, limit SwapLimit) (*big.Int, *big.Int, bool) {
	if j == nil || j.engine == nil {
		return nil, nil, false
	}
	_, supply, target, ok := j.engine.GetBestPriceSwapPath(supplyCurrency, targetCurrency, limit, j.joints)
	return supply, target, ok
}

// Swap executes along the best path. ErrCannotSwap is returned when no path
// satisfies the limit.
func (j *JointSwap) Swap(who common.Address, supplyCurrency, targetCurrency types.CurrencyID, limit SwapLimit) (*big.Int, *big.Int, error) {
	if j == nil || j.engine == nil {
		return nil, nil, ErrCannotSwap
	}
	path, _, _, ok := j.engine.GetBestPriceSwapPath(supplyCurrency, targetCurrency, limit, j.joints)
	if !ok {
		return nil, nil, ErrCannotSwap
	}
	return j.engine.SwapWithSpecificPath(who, path, limit)
}
