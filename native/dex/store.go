package dex

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"ecdpchain/core/state"
	"ecdpchain/core/types"
	"ecdpchain/native/fixedpoint"
)

type engineState interface {
	Atomic(fn func() error) error
	PairState(pair TradingPair) (*PairState, error)
	PutPairState(pair TradingPair, st *PairState) error
	LiquidityPool(pair TradingPair) (*big.Int, *big.Int, error)
	PutLiquidityPool(pair TradingPair, reserve0, reserve1 *big.Int) error
	ProvisioningPool(pair TradingPair, who common.Address) ([2]*big.Int, error)
	PutProvisioningPool(pair TradingPair, who common.Address, contribution [2]*big.Int) error
	InitialShareExchangeRates(pair TradingPair) ([2]fixedpoint.ExchangeRate, bool, error)
	PutInitialShareExchangeRates(pair TradingPair, rates [2]fixedpoint.ExchangeRate) error
	DeleteInitialShareExchangeRates(pair TradingPair) error
	TradingPairs() ([]TradingPair, error)
}

// StateStore persists exchange state in the chain state store.
type StateStore struct {
	store *state.Store
}

func NewStateStore(store *state.Store) *StateStore {
	return &StateStore{store: store}
}

func (s *StateStore) Atomic(fn func() error) error { return s.store.Atomic(fn) }

func (s *StateStore) PairState(pair TradingPair) (*PairState, error) {
	st := new(PairState)
	if _, err := s.store.KVGet(pairStatusKey(pair), st); err != nil {
		return nil, err
	}
	st.Provisioning.normalise()
	return st, nil
}

func (s *StateStore) PutPairState(pair TradingPair, st *PairState) error {
	if st == nil {
		return fmt.Errorf("dex: nil pair state")
	}
	st.Provisioning.normalise()
	return s.store.KVPut(pairStatusKey(pair), st)
}

type poolRecord struct {
	Reserve0 *big.Int
	Reserve1 *big.Int
}

func (s *StateStore) LiquidityPool(pair TradingPair) (*big.Int, *big.Int, error) {
	rec := poolRecord{Reserve0: new(big.Int), Reserve1: new(big.Int)}
	if _, err := s.store.KVGet(liquidityPoolKey(pair), &rec); err != nil {
		return nil, nil, err
	}
	return orZero(rec.Reserve0), orZero(rec.Reserve1), nil
}

func (s *StateStore) PutLiquidityPool(pair TradingPair, reserve0, reserve1 *big.Int) error {
	if reserve0.Sign() == 0 && reserve1.Sign() == 0 {
		return s.store.KVDelete(liquidityPoolKey(pair))
	}
	return s.store.KVPut(liquidityPoolKey(pair), &poolRecord{Reserve0: reserve0, Reserve1: reserve1})
}

func (s *StateStore) ProvisioningPool(pair TradingPair, who common.Address) ([2]*big.Int, error) {
	out := zeroPair()
	if _, err := s.store.KVGet(provisioningPoolKey(pair, who), &out); err != nil {
		return zeroPair(), err
	}
	out[0], out[1] = orZero(out[0]), orZero(out[1])
	return out, nil
}

func (s *StateStore) PutProvisioningPool(pair TradingPair, who common.Address, contribution [2]*big.Int) error {
	key := provisioningPoolKey(pair, who)
	if orZero(contribution[0]).Sign() == 0 && orZero(contribution[1]).Sign() == 0 {
		return s.store.KVDelete(key)
	}
	return s.store.KVPut(key, contribution)
}

func (s *StateStore) InitialShareExchangeRates(pair TradingPair) ([2]fixedpoint.ExchangeRate, bool, error) {
	var rates [2]fixedpoint.ExchangeRate
	var inner [2]*big.Int
	ok, err := s.store.KVGet(shareRatesKey(pair), &inner)
	if err != nil || !ok {
		return rates, false, err
	}
	for i := range inner {
		if rates[i], err = fixedpoint.FromInner(inner[i]); err != nil {
			return rates, false, err
		}
	}
	return rates, true, nil
}

func (s *StateStore) PutInitialShareExchangeRates(pair TradingPair, rates [2]fixedpoint.ExchangeRate) error {
	return s.store.KVPut(shareRatesKey(pair), [2]*big.Int{rates[0].Inner(), rates[1].Inner()})
}

func (s *StateStore) DeleteInitialShareExchangeRates(pair TradingPair) error {
	return s.store.KVDelete(shareRatesKey(pair))
}

// TradingPairs lists every pair that has a status record.
func (s *StateStore) TradingPairs() ([]TradingPair, error) {
	var pairs []TradingPair
	err := s.store.KVIterate(pairStatusPrefix, nil, func(key, _ []byte) bool {
		id := string(key[len(pairStatusPrefix):])
		left, right, ok := strings.Cut(id, "/")
		if ok {
			pairs = append(pairs, TradingPair{Token0: types.CurrencyID(left), Token1: types.CurrencyID(right)})
		}
		return true
	})
	return pairs, err
}
