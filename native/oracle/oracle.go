// Package oracle stores fed prices and derives prices for the stable currency
// and liquidity share currencies.
package oracle

import (
	"errors"
	"math/big"

	"ecdpchain/core/state"
	"ecdpchain/core/types"
	"ecdpchain/native/fixedpoint"
)

var ErrInvalidPrice = errors.New("oracle: invalid price")

var pricePrefix = []byte("oracle/price/")

func priceKey(currency types.CurrencyID) []byte {
	return append(append([]byte{}, pricePrefix...), currency...)
}

// PoolView exposes the reserves needed to value a share currency.
type PoolView interface {
	GetLiquidity(a, b types.CurrencyID) (*big.Int, *big.Int)
}

// IssuanceView exposes the outstanding supply of a currency.
type IssuanceView interface {
	TotalIssuance(currency types.CurrencyID) *big.Int
}

// Oracle is the price source consumed by the CDP engine.
type Oracle struct {
	store    *state.Store
	stable   types.CurrencyID
	pools    PoolView
	issuance IssuanceView
}

func New(store *state.Store, stable types.CurrencyID) *Oracle {
	return &Oracle{store: store, stable: stable}
}

// SetPoolView wires the share-currency valuation sources.
func (o *Oracle) SetPoolView(pools PoolView, issuance IssuanceView) {
	if o == nil {
		return
	}
	o.pools = pools
	o.issuance = issuance
}

// FeedPrice records the latest price for a plain currency.
func (o *Oracle) FeedPrice(currency types.CurrencyID, price fixedpoint.Price) error {
	if currency == "" || currency.IsDexShare() {
		return ErrInvalidPrice
	}
	return o.store.KVPut(priceKey(currency), price.Inner())
}

// ClearPrice removes the fed price so lookups report it unavailable.
func (o *Oracle) ClearPrice(currency types.CurrencyID) error {
	return o.store.KVDelete(priceKey(currency))
}

func (o *Oracle) fedPrice(currency types.CurrencyID) (fixedpoint.Price, bool) {
	inner := new(big.Int)
	ok, err := o.store.KVGet(priceKey(currency), inner)
	if err != nil || !ok {
		return fixedpoint.Zero(), false
	}
	price, err := fixedpoint.FromInner(inner)
	if err != nil {
		return fixedpoint.Zero(), false
	}
	return price, true
}

// GetPrice returns the price of currency in the common quote unit. The stable
// currency is pegged to one unless a feed overrides it. Share currencies are
// valued as (reserve0*price0 + reserve1*price1) / total shares.
func (o *Oracle) GetPrice(currency types.CurrencyID) (fixedpoint.Price, bool) {
	if o == nil || o.store == nil {
		return fixedpoint.Zero(), false
	}
	if a, b, ok := currency.SplitDexShare(); ok {
		return o.sharePrice(currency, a, b)
	}
	if price, ok := o.fedPrice(currency); ok {
		return price, true
	}
	if currency == o.stable {
		return fixedpoint.One(), true
	}
	return fixedpoint.Zero(), false
}

func (o *Oracle) sharePrice(share, a, b types.CurrencyID) (fixedpoint.Price, bool) {
	if o.pools == nil || o.issuance == nil {
		return fixedpoint.Zero(), false
	}
	total := o.issuance.TotalIssuance(share)
	if total == nil || total.Sign() == 0 {
		return fixedpoint.Zero(), false
	}
	priceA, ok := o.GetPrice(a)
	if !ok {
		return fixedpoint.Zero(), false
	}
	priceB, ok := o.GetPrice(b)
	if !ok {
		return fixedpoint.Zero(), false
	}
	reserveA, reserveB := o.pools.GetLiquidity(a, b)
	valueA, ok := priceA.CheckedMulInt(reserveA)
	if !ok {
		return fixedpoint.Zero(), false
	}
	valueB, ok := priceB.CheckedMulInt(reserveB)
	if !ok {
		return fixedpoint.Zero(), false
	}
	return fixedpoint.CheckedFromRational(new(big.Int).Add(valueA, valueB), total)
}

// GetRelativePrice returns price(base) / price(quote).
func (o *Oracle) GetRelativePrice(base, quote types.CurrencyID) (fixedpoint.Price, bool) {
	basePrice, ok := o.GetPrice(base)
	if !ok {
		return fixedpoint.Zero(), false
	}
	quotePrice, ok := o.GetPrice(quote)
	if !ok {
		return fixedpoint.Zero(), false
	}
	return basePrice.CheckedDiv(quotePrice)
}
