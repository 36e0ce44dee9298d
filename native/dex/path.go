package dex

import (
	"math/big"

	"ecdpchain/core/types"
)

// validatePath checks the path length against the configured limit, rejects
// paths that revisit a currency and requires every hop to be enabled.
func (e *Engine) validatePath(path []types.CurrencyID) error {
	limit := e.params.TradingPathLimit
	if limit < 2 {
		limit = DefaultParams().TradingPathLimit
	}
	if len(path) < 2 || len(path) > limit {
		return ErrInvalidTradingPathLength
	}
	seen := make(map[types.CurrencyID]struct{}, len(path))
	for _, currency := range path {
		if _, dup := seen[currency]; dup {
			return ErrInvalidTradingPath
		}
		seen[currency] = struct{}{}
	}
	for i := 0; i+1 < len(path); i++ {
		pair, err := NewTradingPair(path[i], path[i+1])
		if err != nil {
			return ErrInvalidTradingPath
		}
		st, err := e.pairState(pair)
		if err != nil {
			return err
		}
		if st.Status != StatusEnabled {
			return ErrMustBeEnabled
		}
	}
	return nil
}

// GetTargetAmounts walks path forward from supplyAmount and returns the
// amount at every step, supplyAmount first.
func (e *Engine) GetTargetAmounts(path []types.CurrencyID, supplyAmount *big.Int) ([]*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := e.validatePath(path); err != nil {
		return nil, err
	}
	amounts := make([]*big.Int, len(path))
	amounts[0] = new(big.Int).Set(orZero(supplyAmount))
	for i := 0; i+1 < len(path); i++ {
		supplyReserve, targetReserve := e.GetLiquidity(path[i], path[i+1])
		if supplyReserve.Sign() == 0 || targetReserve.Sign() == 0 {
			return nil, ErrInsufficientLiquidity
		}
		out := TargetAmount(e.params.Fee, supplyReserve, targetReserve, amounts[i])
		if out.Sign() == 0 {
			return nil, ErrZeroTargetAmount
		}
		amounts[i+1] = out
	}
	return amounts, nil
}

// GetSupplyAmounts walks path backward from targetAmount and returns the
// amount at every step, targetAmount last.
func (e *Engine) GetSupplyAmounts(path []types.CurrencyID, targetAmount *big.Int) ([]*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := e.validatePath(path); err != nil {
		return nil, err
	}
	amounts := make([]*big.Int, len(path))
	amounts[len(path)-1] = new(big.Int).Set(orZero(targetAmount))
	for i := len(path) - 1; i > 0; i-- {
		supplyReserve, targetReserve := e.GetLiquidity(path[i-1], path[i])
		if supplyReserve.Sign() == 0 || targetReserve.Sign() == 0 {
			return nil, ErrInsufficientLiquidity
		}
		in := SupplyAmount(e.params.Fee, supplyReserve, targetReserve, amounts[i])
		if in.Sign() == 0 {
			return nil, ErrZeroSupplyAmount
		}
		amounts[i-1] = in
	}
	return amounts, nil
}

// GetSwapAmount quotes a swap along path. ok is false when the path is not
// tradable or the quote violates the limit.
func (e *Engine) GetSwapAmount(path []types.CurrencyID, limit SwapLimit) (supply, target *big.Int, ok bool) {
	switch limit.Kind {
	case KindExactSupply:
		amounts, err := e.GetTargetAmounts(path, limit.Supply)
		if err != nil {
			return nil, nil, false
		}
		out := amounts[len(amounts)-1]
		if out.Cmp(orZero(limit.Target)) < 0 {
			return nil, nil, false
		}
		return amounts[0], out, true
	case KindExactTarget:
		amounts, err := e.GetSupplyAmounts(path, limit.Target)
		if err != nil {
			return nil, nil, false
		}
		in := amounts[0]
		if in.Cmp(orZero(limit.Supply)) > 0 {
			return nil, nil, false
		}
		return in, amounts[len(amounts)-1], true
	default:
		return nil, nil, false
	}
}

// jointPath builds supply -> joint... -> target, without repeating the
// endpoints when the joint list already starts or ends with them.
func jointPath(supply, target types.CurrencyID, joint []types.CurrencyID) []types.CurrencyID {
	path := make([]types.CurrencyID, 0, len(joint)+2)
	if len(joint) == 0 || joint[0] != supply {
		path = append(path, supply)
	}
	path = append(path, joint...)
	if len(joint) == 0 || joint[len(joint)-1] != target {
		path = append(path, target)
	}
	return path
}

// GetBestPriceSwapPath compares the direct path with one path per joint list
// and returns the path with the largest output (ExactSupply) or smallest
// input (ExactTarget). Ties keep the earlier candidate.
func (e *Engine) GetBestPriceSwapPath(supplyCurrency, targetCurrency types.CurrencyID, limit SwapLimit, alternatives [][]types.CurrencyID) ([]types.CurrencyID, *big.Int, *big.Int, bool) {
	candidates := make([][]types.CurrencyID, 0, len(alternatives)+1)
	candidates = append(candidates, jointPath(supplyCurrency, targetCurrency, nil))
	for _, joint := range alternatives {
		candidates = append(candidates, jointPath(supplyCurrency, targetCurrency, joint))
	}

	var (
		bestPath   []types.CurrencyID
		bestSupply *big.Int
		bestTarget *big.Int
	)
	for _, path := range candidates {
		supply, target, ok := e.GetSwapAmount(path, limit)
		if !ok {
			continue
		}
		better := bestPath == nil
		if !better {
			switch limit.Kind {
			case KindExactSupply:
				better = target.Cmp(bestTarget) > 0
			case KindExactTarget:
				better = supply.Cmp(bestSupply) < 0
			}
		}
		if better {
			bestPath, bestSupply, bestTarget = path, supply, target
		}
	}
	if bestPath == nil {
		return nil, nil, nil, false
	}
	return bestPath, bestSupply, bestTarget, true
}
