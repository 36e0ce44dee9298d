// Package ledger is the in-process multi-currency balance store used by the
// native modules. It supports free and reserved balances, issuance tracking
// and consumer reference counts.
package ledger

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"ecdpchain/core/state"
	"ecdpchain/core/types"
)

var (
	ErrInvalidAmount        = errors.New("ledger: amount must not be negative")
	ErrInsufficientBalance  = errors.New("ledger: insufficient balance")
	ErrInsufficientReserved = errors.New("ledger: insufficient reserved balance")
	ErrConsumerUnderflow    = errors.New("ledger: consumer count underflow")
	ErrInvalidCurrency      = errors.New("ledger: invalid currency")
)

var (
	assetPrefix     = []byte("ledger/asset/")
	freePrefix      = []byte("ledger/free/")
	reservedPrefix  = []byte("ledger/reserved/")
	issuancePrefix  = []byte("ledger/issuance/")
	consumersPrefix = []byte("ledger/consumers/")
)

func join(prefix []byte, parts ...[]byte) []byte {
	buf := append([]byte{}, prefix...)
	for i, part := range parts {
		if i > 0 {
			buf = append(buf, '/')
		}
		buf = append(buf, part...)
	}
	return buf
}

func balanceKey(prefix []byte, currency types.CurrencyID, who common.Address) []byte {
	return join(prefix, []byte(currency), who.Bytes())
}

// Asset describes a registered plain token.
type Asset struct {
	Symbol   string
	Name     string
	Decimals uint8
}

// Ledger implements the balance primitives on top of the state store. Calls
// are expected to run inside the caller's atomic section.
type Ledger struct {
	store *state.Store
}

func New(store *state.Store) *Ledger {
	return &Ledger{store: store}
}

func (l *Ledger) readAmount(key []byte) *big.Int {
	out := new(big.Int)
	if l == nil || l.store == nil {
		return out
	}
	if _, err := l.store.KVGet(key, out); err != nil {
		return new(big.Int)
	}
	return out
}

func (l *Ledger) writeAmount(key []byte, amount *big.Int) error {
	if amount.Sign() == 0 {
		return l.store.KVDelete(key)
	}
	return l.store.KVPut(key, amount)
}

func checkAmount(amount *big.Int) (bool, error) {
	if amount == nil || amount.Sign() == 0 {
		return false, nil
	}
	if amount.Sign() < 0 {
		return false, ErrInvalidAmount
	}
	return true, nil
}

// RegisterAsset records a plain token as known to the chain.
func (l *Ledger) RegisterAsset(asset Asset) error {
	currency := types.NormalizeCurrency(asset.Symbol)
	if err := currency.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCurrency, err)
	}
	if currency.IsDexShare() {
		return fmt.Errorf("%w: share currencies are derived", ErrInvalidCurrency)
	}
	asset.Symbol = string(currency)
	return l.store.KVPut(join(assetPrefix, []byte(currency)), &asset)
}

// IsRegistered reports whether currency is a registered plain token or a share
// currency whose underlying tokens are both registered.
func (l *Ledger) IsRegistered(currency types.CurrencyID) bool {
	if a, b, ok := currency.SplitDexShare(); ok {
		return l.IsRegistered(a) && l.IsRegistered(b)
	}
	if l == nil || l.store == nil || currency == "" {
		return false
	}
	ok, err := l.store.KVGet(join(assetPrefix, []byte(currency)), nil)
	return err == nil && ok
}

// Assets lists the registered plain tokens.
func (l *Ledger) Assets() ([]Asset, error) {
	var out []Asset
	var decodeErr error
	err := l.store.KVIterate(assetPrefix, nil, func(_, raw []byte) bool {
		var asset Asset
		if decodeErr = state.Decode(raw, &asset); decodeErr != nil {
			return false
		}
		out = append(out, asset)
		return true
	})
	if err != nil {
		return nil, err
	}
	return out, decodeErr
}

func (l *Ledger) FreeBalance(currency types.CurrencyID, who common.Address) *big.Int {
	return l.readAmount(balanceKey(freePrefix, currency, who))
}

func (l *Ledger) ReservedBalance(currency types.CurrencyID, who common.Address) *big.Int {
	return l.readAmount(balanceKey(reservedPrefix, currency, who))
}

func (l *Ledger) TotalIssuance(currency types.CurrencyID) *big.Int {
	return l.readAmount(join(issuancePrefix, []byte(currency)))
}

// EnsureCanWithdraw checks the free balance covers amount.
func (l *Ledger) EnsureCanWithdraw(currency types.CurrencyID, who common.Address, amount *big.Int) error {
	ok, err := checkAmount(amount)
	if err != nil || !ok {
		return err
	}
	if l.FreeBalance(currency, who).Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	return nil
}

func (l *Ledger) Transfer(currency types.CurrencyID, from, to common.Address, amount *big.Int) error {
	ok, err := checkAmount(amount)
	if err != nil || !ok || from == to {
		return err
	}
	fromKey := balanceKey(freePrefix, currency, from)
	balance := l.readAmount(fromKey)
	if balance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s has %s %s, needs %s", ErrInsufficientBalance, from.Hex(), balance, currency, amount)
	}
	if err := l.writeAmount(fromKey, balance.Sub(balance, amount)); err != nil {
		return err
	}
	toKey := balanceKey(freePrefix, currency, to)
	return l.writeAmount(toKey, new(big.Int).Add(l.readAmount(toKey), amount))
}

// Deposit mints amount into who's free balance.
func (l *Ledger) Deposit(currency types.CurrencyID, who common.Address, amount *big.Int) error {
	ok, err := checkAmount(amount)
	if err != nil || !ok {
		return err
	}
	key := balanceKey(freePrefix, currency, who)
	if err := l.writeAmount(key, new(big.Int).Add(l.readAmount(key), amount)); err != nil {
		return err
	}
	issuanceKey := join(issuancePrefix, []byte(currency))
	return l.writeAmount(issuanceKey, new(big.Int).Add(l.readAmount(issuanceKey), amount))
}

// Withdraw burns amount from who's free balance.
func (l *Ledger) Withdraw(currency types.CurrencyID, who common.Address, amount *big.Int) error {
	ok, err := checkAmount(amount)
	if err != nil || !ok {
		return err
	}
	key := balanceKey(freePrefix, currency, who)
	balance := l.readAmount(key)
	if balance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s has %s %s, needs %s", ErrInsufficientBalance, who.Hex(), balance, currency, amount)
	}
	if err := l.writeAmount(key, balance.Sub(balance, amount)); err != nil {
		return err
	}
	issuanceKey := join(issuancePrefix, []byte(currency))
	issuance := l.readAmount(issuanceKey)
	if issuance.Cmp(amount) < 0 {
		issuance.SetInt64(0)
	} else {
		issuance.Sub(issuance, amount)
	}
	return l.writeAmount(issuanceKey, issuance)
}

// Reserve moves amount from free to reserved.
func (l *Ledger) Reserve(currency types.CurrencyID, who common.Address, amount *big.Int) error {
	ok, err := checkAmount(amount)
	if err != nil || !ok {
		return err
	}
	freeKey := balanceKey(freePrefix, currency, who)
	free := l.readAmount(freeKey)
	if free.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	if err := l.writeAmount(freeKey, free.Sub(free, amount)); err != nil {
		return err
	}
	reservedKey := balanceKey(reservedPrefix, currency, who)
	return l.writeAmount(reservedKey, new(big.Int).Add(l.readAmount(reservedKey), amount))
}

// Unreserve moves amount from reserved back to free.
func (l *Ledger) Unreserve(currency types.CurrencyID, who common.Address, amount *big.Int) error {
	ok, err := checkAmount(amount)
	if err != nil || !ok {
		return err
	}
	reservedKey := balanceKey(reservedPrefix, currency, who)
	reserved := l.readAmount(reservedKey)
	if reserved.Cmp(amount) < 0 {
		return ErrInsufficientReserved
	}
	if err := l.writeAmount(reservedKey, reserved.Sub(reserved, amount)); err != nil {
		return err
	}
	freeKey := balanceKey(freePrefix, currency, who)
	return l.writeAmount(freeKey, new(big.Int).Add(l.readAmount(freeKey), amount))
}

// Consumers returns the reference count that keeps who from being reaped.
func (l *Ledger) Consumers(who common.Address) uint64 {
	var count uint64
	if l == nil || l.store == nil {
		return 0
	}
	if _, err := l.store.KVGet(join(consumersPrefix, who.Bytes()), &count); err != nil {
		return 0
	}
	return count
}

func (l *Ledger) IncConsumers(who common.Address) error {
	return l.store.KVPut(join(consumersPrefix, who.Bytes()), l.Consumers(who)+1)
}

func (l *Ledger) DecConsumers(who common.Address) error {
	count := l.Consumers(who)
	if count == 0 {
		return ErrConsumerUnderflow
	}
	key := join(consumersPrefix, who.Bytes())
	if count == 1 {
		return l.store.KVDelete(key)
	}
	return l.store.KVPut(key, count-1)
}
