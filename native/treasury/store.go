package treasury

import (
	"encoding/binary"
	"math/big"

	"ecdpchain/core/state"
	"ecdpchain/core/types"
)

type treasuryState interface {
	Atomic(fn func() error) error
	Amount(key []byte) (*big.Int, error)
	PutAmount(key []byte, amount *big.Int) error
	NextAuctionSeq() (uint64, error)
	Auction(id string) (*CollateralAuction, bool, error)
	PutAuction(auction *CollateralAuction) error
	DeleteAuction(id string) error
	Auctions(currency types.CurrencyID) ([]CollateralAuction, error)
}

// StateStore persists treasury pools and auction records in the chain state
// store.
type StateStore struct {
	store *state.Store
}

func NewStateStore(store *state.Store) *StateStore {
	return &StateStore{store: store}
}

func (s *StateStore) Atomic(fn func() error) error { return s.store.Atomic(fn) }

func (s *StateStore) Amount(key []byte) (*big.Int, error) {
	out := new(big.Int)
	if _, err := s.store.KVGet(key, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *StateStore) PutAmount(key []byte, amount *big.Int) error {
	if orZero(amount).Sign() == 0 {
		return s.store.KVDelete(key)
	}
	return s.store.KVPut(key, amount)
}

func (s *StateStore) NextAuctionSeq() (uint64, error) {
	var seq uint64
	if _, err := s.store.KVGet(auctionSeqKey, &seq); err != nil {
		return 0, err
	}
	seq++
	if err := s.store.KVPut(auctionSeqKey, seq); err != nil {
		return 0, err
	}
	return seq, nil
}

func (s *StateStore) Auction(id string) (*CollateralAuction, bool, error) {
	auction := new(CollateralAuction)
	ok, err := s.store.KVGet(auctionKey(id), auction)
	if err != nil || !ok {
		return nil, false, err
	}
	return auction, true, nil
}

func (s *StateStore) PutAuction(auction *CollateralAuction) error {
	return s.store.KVPut(auctionKey(auction.ID), auction)
}

func (s *StateStore) DeleteAuction(id string) error {
	return s.store.KVDelete(auctionKey(id))
}

// Auctions lists open auctions, optionally restricted to one currency, in
// id order.
func (s *StateStore) Auctions(currency types.CurrencyID) ([]CollateralAuction, error) {
	var out []CollateralAuction
	var decodeErr error
	err := s.store.KVIterate(auctionPrefix, nil, func(_, raw []byte) bool {
		var auction CollateralAuction
		if err := state.Decode(raw, &auction); err != nil {
			decodeErr = err
			return false
		}
		if currency == "" || auction.Currency == currency {
			out = append(out, auction)
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	return out, decodeErr
}

func seqBytes(seq uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], seq)
	return buf[:]
}
