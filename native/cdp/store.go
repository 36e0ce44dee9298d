package cdp

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"ecdpchain/core/state"
	"ecdpchain/core/types"
	"ecdpchain/native/fixedpoint"
)

type engineState interface {
	Atomic(fn func() error) error
	CollateralParams(currency types.CurrencyID) (CollateralParams, bool, error)
	PutCollateralParams(currency types.CurrencyID, params CollateralParams) error
	CollateralCurrencies() ([]types.CurrencyID, error)
	DebitExchangeRate(currency types.CurrencyID) (fixedpoint.ExchangeRate, bool, error)
	PutDebitExchangeRate(currency types.CurrencyID, rate fixedpoint.ExchangeRate) error
	LiquidationContracts() ([]common.Address, error)
	PutLiquidationContracts(contracts []common.Address) error
	LastAccumulation() (uint64, error)
	PutLastAccumulation(secs uint64) error
}

// StateStore persists risk parameters, debit exchange rates and the
// liquidation contract list in the chain state store.
type StateStore struct {
	store *state.Store
}

func NewStateStore(store *state.Store) *StateStore {
	return &StateStore{store: store}
}

func (s *StateStore) Atomic(fn func() error) error { return s.store.Atomic(fn) }

func (s *StateStore) CollateralParams(currency types.CurrencyID) (CollateralParams, bool, error) {
	var stored storedCollateralParams
	ok, err := s.store.KVGet(currencyKey(collateralParamsPrefix, currency), &stored)
	if err != nil || !ok {
		return CollateralParams{}, false, err
	}
	params, err := stored.decode()
	if err != nil {
		return CollateralParams{}, false, err
	}
	return params, true, nil
}

func (s *StateStore) PutCollateralParams(currency types.CurrencyID, params CollateralParams) error {
	stored := params.encode()
	return s.store.KVPut(currencyKey(collateralParamsPrefix, currency), &stored)
}

// CollateralCurrencies lists every currency with risk parameters in
// currency id order.
func (s *StateStore) CollateralCurrencies() ([]types.CurrencyID, error) {
	var out []types.CurrencyID
	err := s.store.KVIterate(collateralParamsPrefix, nil, func(key, _ []byte) bool {
		out = append(out, types.CurrencyID(key[len(collateralParamsPrefix):]))
		return true
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *StateStore) DebitExchangeRate(currency types.CurrencyID) (fixedpoint.ExchangeRate, bool, error) {
	inner := new(big.Int)
	ok, err := s.store.KVGet(currencyKey(debitExchangeRatePrefix, currency), inner)
	if err != nil || !ok {
		return fixedpoint.Zero(), false, err
	}
	rate, err := fixedpoint.FromInner(inner)
	if err != nil {
		return fixedpoint.Zero(), false, err
	}
	return rate, true, nil
}

func (s *StateStore) PutDebitExchangeRate(currency types.CurrencyID, rate fixedpoint.ExchangeRate) error {
	return s.store.KVPut(currencyKey(debitExchangeRatePrefix, currency), rate.Inner())
}

func (s *StateStore) LiquidationContracts() ([]common.Address, error) {
	var out []common.Address
	if err := s.store.KVGetList(liquidationContractsKey, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *StateStore) PutLiquidationContracts(contracts []common.Address) error {
	if len(contracts) == 0 {
		return s.store.KVDelete(liquidationContractsKey)
	}
	return s.store.KVPut(liquidationContractsKey, contracts)
}

func (s *StateStore) LastAccumulation() (uint64, error) {
	var secs uint64
	if _, err := s.store.KVGet(lastAccumulationKey, &secs); err != nil {
		return 0, err
	}
	return secs, nil
}

func (s *StateStore) PutLastAccumulation(secs uint64) error {
	return s.store.KVPut(lastAccumulationKey, secs)
}
