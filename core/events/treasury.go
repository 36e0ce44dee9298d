package events

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"ecdpchain/core/types"
)

const (
	TypeTreasuryAuctionCreated             = "treasury.collateral_auction_created"
	TypeTreasuryAuctionCancelled           = "treasury.collateral_auction_cancelled"
	TypeTreasuryExpectedAuctionSizeUpdated = "treasury.expected_collateral_auction_size_updated"
	TypeTreasuryDebitOffsetBufferUpdated   = "treasury.debit_offset_buffer_updated"
	TypeTreasurySurplusExtracted           = "treasury.surplus_extracted"
)

type CollateralAuctionCreated struct {
	ID              string
	Currency        types.CurrencyID
	Amount          *big.Int
	Target          *big.Int
	RefundRecipient common.Address
}

func (CollateralAuctionCreated) EventType() string { return TypeTreasuryAuctionCreated }

func (e CollateralAuctionCreated) Event() *types.Event {
	return &types.Event{
		Type: TypeTreasuryAuctionCreated,
		Attributes: map[string]string{
			"id":              e.ID,
			"currency":        string(e.Currency),
			"amount":          formatAmount(e.Amount),
			"target":          formatAmount(e.Target),
			"refundRecipient": formatAccount(e.RefundRecipient),
		},
	}
}

type CollateralAuctionCancelled struct {
	ID       string
	Currency types.CurrencyID
	Amount   *big.Int
}

func (CollateralAuctionCancelled) EventType() string { return TypeTreasuryAuctionCancelled }

func (e CollateralAuctionCancelled) Event() *types.Event {
	return &types.Event{
		Type: TypeTreasuryAuctionCancelled,
		Attributes: map[string]string{
			"id":       e.ID,
			"currency": string(e.Currency),
			"amount":   formatAmount(e.Amount),
		},
	}
}

type ExpectedCollateralAuctionSizeUpdated struct {
	Currency types.CurrencyID
	Size     *big.Int
}

func (ExpectedCollateralAuctionSizeUpdated) EventType() string {
	return TypeTreasuryExpectedAuctionSizeUpdated
}

func (e ExpectedCollateralAuctionSizeUpdated) Event() *types.Event {
	return &types.Event{
		Type: TypeTreasuryExpectedAuctionSizeUpdated,
		Attributes: map[string]string{
			"currency": string(e.Currency),
			"size":     formatAmount(e.Size),
		},
	}
}

type DebitOffsetBufferUpdated struct {
	Amount *big.Int
}

func (DebitOffsetBufferUpdated) EventType() string { return TypeTreasuryDebitOffsetBufferUpdated }

func (e DebitOffsetBufferUpdated) Event() *types.Event {
	return &types.Event{
		Type:       TypeTreasuryDebitOffsetBufferUpdated,
		Attributes: map[string]string{"amount": formatAmount(e.Amount)},
	}
}

type SurplusExtracted struct {
	Recipient common.Address
	Amount    *big.Int
}

func (SurplusExtracted) EventType() string { return TypeTreasurySurplusExtracted }

func (e SurplusExtracted) Event() *types.Event {
	return &types.Event{
		Type: TypeTreasurySurplusExtracted,
		Attributes: map[string]string{
			"recipient": formatAccount(e.Recipient),
			"amount":    formatAmount(e.Amount),
		},
	}
}
