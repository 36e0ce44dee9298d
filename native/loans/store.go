package loans

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"ecdpchain/core/state"
	"ecdpchain/core/types"
)

type loansState interface {
	Atomic(fn func() error) error
	Position(currency types.CurrencyID, who common.Address) (Position, error)
	PutPosition(currency types.CurrencyID, who common.Address, pos Position) error
	Total(currency types.CurrencyID) (Position, error)
	PutTotal(currency types.CurrencyID, pos Position) error
	IteratePositions(currency types.CurrencyID, after *common.Address, fn func(who common.Address, pos Position) bool) error
}

// StateStore persists positions in the chain state store.
type StateStore struct {
	store *state.Store
}

func NewStateStore(store *state.Store) *StateStore {
	return &StateStore{store: store}
}

func (s *StateStore) Atomic(fn func() error) error { return s.store.Atomic(fn) }

func (s *StateStore) Position(currency types.CurrencyID, who common.Address) (Position, error) {
	pos := ZeroPosition()
	if _, err := s.store.KVGet(positionKey(currency, who), &pos); err != nil {
		return ZeroPosition(), err
	}
	return pos.normalise(), nil
}

func (s *StateStore) PutPosition(currency types.CurrencyID, who common.Address, pos Position) error {
	pos = pos.normalise()
	if pos.IsEmpty() {
		return s.store.KVDelete(positionKey(currency, who))
	}
	return s.store.KVPut(positionKey(currency, who), &pos)
}

func (s *StateStore) Total(currency types.CurrencyID) (Position, error) {
	pos := ZeroPosition()
	if _, err := s.store.KVGet(totalKey(currency), &pos); err != nil {
		return ZeroPosition(), err
	}
	return pos.normalise(), nil
}

func (s *StateStore) PutTotal(currency types.CurrencyID, pos Position) error {
	pos = pos.normalise()
	if pos.IsEmpty() {
		return s.store.KVDelete(totalKey(currency))
	}
	return s.store.KVPut(totalKey(currency), &pos)
}

// IteratePositions walks the positions of currency in owner order, starting
// after the given owner when one is supplied.
func (s *StateStore) IteratePositions(currency types.CurrencyID, after *common.Address, fn func(who common.Address, pos Position) bool) error {
	prefix := currencyPrefix(positionPrefix, currency)
	var start []byte
	if after != nil {
		start = append(positionKey(currency, *after), 0)
	}
	var decodeErr error
	err := s.store.KVIterate(prefix, start, func(key, raw []byte) bool {
		if len(key) != len(prefix)+common.AddressLength {
			return true
		}
		pos := ZeroPosition()
		if err := state.Decode(raw, &pos); err != nil {
			decodeErr = err
			return false
		}
		return fn(common.BytesToAddress(key[len(prefix):]), pos.normalise())
	})
	if err != nil {
		return err
	}
	return decodeErr
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return v
}
