package treasury

import (
	"math/big"

	"ecdpchain/core/events"
	"ecdpchain/core/types"
	nativecommon "ecdpchain/native/common"
	"ecdpchain/native/dex"
)

// SetExpectedCollateralAuctionSize sets the lot size used to split auctions
// of currency.
func (t *Treasury) SetExpectedCollateralAuctionSize(origin nativecommon.Origin, currency types.CurrencyID, size *big.Int) error {
	if err := t.ensureAdmin(origin); err != nil {
		return err
	}
	if err := t.ready(); err != nil {
		return err
	}
	size = orZero(size)
	if err := t.state.PutAmount(currencyKey(auctionSizePrefix, currency), size); err != nil {
		return err
	}
	t.emit(events.ExpectedCollateralAuctionSizeUpdated{Currency: currency, Size: new(big.Int).Set(size)})
	return nil
}

func (t *Treasury) SetDebitOffsetBuffer(origin nativecommon.Origin, amount *big.Int) error {
	if err := t.ensureAdmin(origin); err != nil {
		return err
	}
	if err := t.ready(); err != nil {
		return err
	}
	amount = orZero(amount)
	if err := t.state.PutAmount(debitOffsetBufferKey, amount); err != nil {
		return err
	}
	t.emit(events.DebitOffsetBufferUpdated{Amount: new(big.Int).Set(amount)})
	return nil
}

// ExtractSurplusToTreasury moves surplus stable to the surplus recipient.
func (t *Treasury) ExtractSurplusToTreasury(origin nativecommon.Origin, amount *big.Int) error {
	if err := t.ensureAdmin(origin); err != nil {
		return err
	}
	if err := t.ready(); err != nil {
		return err
	}
	if err := t.guard(); err != nil {
		return err
	}
	amount = orZero(amount)
	if err := t.WithdrawSurplus(t.recipient, amount); err != nil {
		return err
	}
	t.emit(events.SurplusExtracted{Recipient: t.recipient, Amount: new(big.Int).Set(amount)})
	return nil
}

// AuctionCollateral auctions treasury collateral with the treasury as refund
// recipient.
func (t *Treasury) AuctionCollateral(origin nativecommon.Origin, currency types.CurrencyID, amount, target *big.Int, split bool) error {
	if err := t.ensureAdmin(origin); err != nil {
		return err
	}
	if err := t.guard(); err != nil {
		return err
	}
	_, err := t.CreateCollateralAuctions(currency, amount, target, t.account, split)
	return err
}

// ExchangeCollateralToStable sells collateral outside auctions for stable.
func (t *Treasury) ExchangeCollateralToStable(origin nativecommon.Origin, currency types.CurrencyID, limit dex.SwapLimit) error {
	if err := t.ensureAdmin(origin); err != nil {
		return err
	}
	if err := t.guard(); err != nil {
		return err
	}
	_, _, err := t.SwapCollateralToStable(currency, limit, false)
	return err
}

// CancelCollateralAuction closes an open auction and returns its collateral
// to the pool outside auctions.
func (t *Treasury) CancelCollateralAuction(origin nativecommon.Origin, id string) error {
	if err := t.ensureAdmin(origin); err != nil {
		return err
	}
	if err := t.ready(); err != nil {
		return err
	}
	return t.state.Atomic(func() error {
		auction, ok, err := t.state.Auction(id)
		if err != nil {
			return err
		}
		if !ok {
			return ErrAuctionNotFound
		}
		if err := t.releaseAuction(auction); err != nil {
			return err
		}
		t.emit(events.CollateralAuctionCancelled{ID: auction.ID, Currency: auction.Currency, Amount: auction.Amount})
		return nil
	})
}
