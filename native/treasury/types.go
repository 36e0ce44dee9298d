package treasury

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"ecdpchain/core/types"
)

// CollateralAuction is one lot of collateral put up for sale by the
// treasury. Proceeds up to Target cover system debit; the refund recipient
// receives collateral left over once the target is met.
type CollateralAuction struct {
	ID              string
	Currency        types.CurrencyID
	Amount          *big.Int
	Target          *big.Int
	RefundRecipient common.Address
	CreatedAt       uint64
}

type Params struct {
	ModuleAccount    string           `toml:"module_account" yaml:"module_account"`
	SurplusRecipient string           `toml:"surplus_recipient" yaml:"surplus_recipient"`
	StableCurrency   types.CurrencyID `toml:"stable_currency" yaml:"stable_currency"`
	MaxAuctionsCount uint32           `toml:"max_auctions_count" yaml:"max_auctions_count"`
}

func DefaultParams() Params {
	return Params{
		ModuleAccount:    "ecdp-treasury",
		SurplusRecipient: "treasury",
		StableCurrency:   "USSD",
		MaxAuctionsCount: 100,
	}
}

func (p Params) Validate() error {
	if p.ModuleAccount == "" {
		return fmt.Errorf("treasury: module account must be set")
	}
	if p.SurplusRecipient == "" {
		return fmt.Errorf("treasury: surplus recipient must be set")
	}
	if p.ModuleAccount == p.SurplusRecipient {
		return fmt.Errorf("treasury: surplus recipient must differ from the module account")
	}
	if err := p.StableCurrency.Validate(); err != nil {
		return fmt.Errorf("treasury: stable currency: %w", err)
	}
	if p.StableCurrency.IsDexShare() {
		return fmt.Errorf("treasury: stable currency must not be a dex share")
	}
	return nil
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return v
}
