package treasury

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"ecdpchain/core/events"
	"ecdpchain/core/types"
)

var auctionNamespace = uuid.NewSHA1(uuid.NameSpaceOID, []byte("ecdpchain/collateral-auction"))

// CreateCollateralAuctions puts amount of collateral up for sale against
// target stable. With split set the amount is cut into lots of the expected
// auction size, at most MaxAuctionsCount of them; the last lot takes the
// remainder. It returns the number of auctions created.
func (t *Treasury) CreateCollateralAuctions(currency types.CurrencyID, amount, target *big.Int, refundRecipient common.Address, split bool) (int, error) {
	if err := t.ready(); err != nil {
		return 0, err
	}
	amount, target = orZero(amount), orZero(target)
	if t.TotalCollateralsNotInAuction(currency).Cmp(amount) < 0 {
		return 0, ErrCollateralNotEnough
	}
	lots := t.lotsCount(currency, amount, split)
	avgAmount := new(big.Int).Quo(amount, lots)
	avgTarget := new(big.Int).Quo(target, lots)

	created := 0
	err := t.state.Atomic(func() error {
		remainAmount := new(big.Int).Set(amount)
		remainTarget := new(big.Int).Set(target)
		for remainAmount.Sign() > 0 {
			created++
			lotAmount, lotTarget := avgAmount, avgTarget
			if int64(created) == lots.Int64() {
				lotAmount, lotTarget = remainAmount, remainTarget
			}
			if err := t.newCollateralAuction(refundRecipient, currency, lotAmount, lotTarget); err != nil {
				return err
			}
			remainAmount = new(big.Int).Sub(remainAmount, lotAmount)
			remainTarget = new(big.Int).Sub(remainTarget, lotTarget)
			if remainTarget.Sign() < 0 {
				remainTarget.SetInt64(0)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return created, nil
}

func (t *Treasury) lotsCount(currency types.CurrencyID, amount *big.Int, split bool) *big.Int {
	size := t.ExpectedCollateralAuctionSize(currency)
	maxCount := new(big.Int).SetUint64(uint64(t.params.MaxAuctionsCount))
	if !split || maxCount.Sign() == 0 || size.Sign() == 0 || amount.Cmp(size) <= 0 {
		return big.NewInt(1)
	}
	count, rem := new(big.Int).QuoRem(amount, size, new(big.Int))
	if rem.Sign() != 0 {
		count.Add(count, big.NewInt(1))
	}
	if count.Cmp(maxCount) > 0 {
		return maxCount
	}
	return count
}

func (t *Treasury) newCollateralAuction(refundRecipient common.Address, currency types.CurrencyID, amount, target *big.Int) error {
	seq, err := t.state.NextAuctionSeq()
	if err != nil {
		return err
	}
	auction := &CollateralAuction{
		ID:              uuid.NewSHA1(auctionNamespace, seqBytes(seq)).String(),
		Currency:        currency,
		Amount:          new(big.Int).Set(amount),
		Target:          new(big.Int).Set(target),
		RefundRecipient: refundRecipient,
		CreatedAt:       t.height,
	}
	if err := t.state.PutAuction(auction); err != nil {
		return err
	}
	key := currencyKey(inAuctionPrefix, currency)
	if err := t.state.PutAmount(key, new(big.Int).Add(t.amount(key), amount)); err != nil {
		return err
	}
	t.emit(events.CollateralAuctionCreated{
		ID:              auction.ID,
		Currency:        currency,
		Amount:          auction.Amount,
		Target:          auction.Target,
		RefundRecipient: refundRecipient,
	})
	return nil
}

// CollateralAuction returns an open auction by id.
func (t *Treasury) CollateralAuction(id string) (*CollateralAuction, bool, error) {
	if err := t.ready(); err != nil {
		return nil, false, err
	}
	return t.state.Auction(id)
}

// CollateralAuctions lists open auctions. An empty currency lists all.
func (t *Treasury) CollateralAuctions(currency types.CurrencyID) ([]CollateralAuction, error) {
	if err := t.ready(); err != nil {
		return nil, err
	}
	return t.state.Auctions(currency)
}

func (t *Treasury) releaseAuction(auction *CollateralAuction) error {
	key := currencyKey(inAuctionPrefix, auction.Currency)
	remaining := new(big.Int).Sub(t.amount(key), auction.Amount)
	if remaining.Sign() < 0 {
		remaining.SetInt64(0)
	}
	if err := t.state.PutAmount(key, remaining); err != nil {
		return err
	}
	return t.state.DeleteAuction(auction.ID)
}
