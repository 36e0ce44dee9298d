package dex

import (
	"fmt"
	"math/big"

	"ecdpchain/core/types"
)

// TradingPair is an order-independent pair of distinct plain currencies.
// Token0 always sorts before Token1.
type TradingPair struct {
	Token0 types.CurrencyID
	Token1 types.CurrencyID
}

// NewTradingPair canonicalises a and b into a trading pair.
func NewTradingPair(a, b types.CurrencyID) (TradingPair, error) {
	if a == "" || b == "" || a == b || a.IsDexShare() || b.IsDexShare() {
		return TradingPair{}, ErrInvalidCurrencyID
	}
	if b < a {
		a, b = b, a
	}
	return TradingPair{Token0: a, Token1: b}, nil
}

// DexShareCurrency returns the liquidity share currency of the pair.
func (p TradingPair) DexShareCurrency() types.CurrencyID {
	return types.DexShareCurrency(p.Token0, p.Token1)
}

func (p TradingPair) String() string {
	return string(p.Token0) + "/" + string(p.Token1)
}

// orient reports whether a is the pair's first token.
func (p TradingPair) orient(a types.CurrencyID) bool { return p.Token0 == a }

// PairStatus is the lifecycle state of a trading pair.
type PairStatus uint8

const (
	StatusDisabled PairStatus = iota
	StatusProvisioning
	StatusEnabled
)

func (s PairStatus) String() string {
	switch s {
	case StatusDisabled:
		return "disabled"
	case StatusProvisioning:
		return "provisioning"
	case StatusEnabled:
		return "enabled"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// ProvisioningParameters tracks a bootstrap round. All pairs are stored in
// the trading pair's canonical order.
type ProvisioningParameters struct {
	MinContribution [2]*big.Int
	Target          [2]*big.Int
	Accumulated     [2]*big.Int
	NotBefore       uint64
}

func zeroPair() [2]*big.Int { return [2]*big.Int{big.NewInt(0), big.NewInt(0)} }

func (p *ProvisioningParameters) normalise() {
	for i := 0; i < 2; i++ {
		if p.MinContribution[i] == nil {
			p.MinContribution[i] = big.NewInt(0)
		}
		if p.Target[i] == nil {
			p.Target[i] = big.NewInt(0)
		}
		if p.Accumulated[i] == nil {
			p.Accumulated[i] = big.NewInt(0)
		}
	}
}

// targetMet reports whether either side reached its provisioning target.
func (p *ProvisioningParameters) targetMet() bool {
	return p.Accumulated[0].Cmp(p.Target[0]) >= 0 || p.Accumulated[1].Cmp(p.Target[1]) >= 0
}

func (p *ProvisioningParameters) hasContributions() bool {
	return p.Accumulated[0].Sign() > 0 || p.Accumulated[1].Sign() > 0
}

// PairState is the persisted status record of a trading pair.
type PairState struct {
	Status       PairStatus
	Provisioning ProvisioningParameters
}

// SwapKind selects which side of a swap is fixed.
type SwapKind uint8

const (
	KindExactSupply SwapKind = iota
	KindExactTarget
)

// SwapLimit fixes one side of a swap and bounds the other. For ExactSupply,
// Supply is spent and Target is the minimum acceptable output; for
// ExactTarget, Target is received and Supply is the maximum acceptable input.
type SwapLimit struct {
	Kind   SwapKind
	Supply *big.Int
	Target *big.Int
}

func ExactSupply(supply, minTarget *big.Int) SwapLimit {
	return SwapLimit{Kind: KindExactSupply, Supply: orZero(supply), Target: orZero(minTarget)}
}

func ExactTarget(maxSupply, target *big.Int) SwapLimit {
	return SwapLimit{Kind: KindExactTarget, Supply: orZero(maxSupply), Target: orZero(target)}
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return v
}

// Fee is the fraction Numerator/Denominator retained by the pool on the
// supply side of every hop.
type Fee struct {
	Numerator   uint64 `toml:"numerator" yaml:"numerator"`
	Denominator uint64 `toml:"denominator" yaml:"denominator"`
}

func (f Fee) Validate() error {
	if f.Denominator == 0 {
		return fmt.Errorf("dex: fee denominator must be positive")
	}
	if f.Numerator >= f.Denominator {
		return fmt.Errorf("dex: fee must be below 100%%")
	}
	return nil
}

// Params holds the static configuration of the exchange.
type Params struct {
	Fee                Fee    `toml:"fee" yaml:"fee"`
	TradingPathLimit   int    `toml:"trading_path_limit" yaml:"trading_path_limit"`
	ProvisioningExpiry uint64 `toml:"provisioning_expiry_blocks" yaml:"provisioning_expiry_blocks"`
	ModuleAccount      string `toml:"module_account" yaml:"module_account"`
}

func DefaultParams() Params {
	return Params{
		Fee:                Fee{Numerator: 3, Denominator: 1000},
		TradingPathLimit:   3,
		ProvisioningExpiry: 2000,
		ModuleAccount:      "dex",
	}
}

func (p Params) Validate() error {
	if err := p.Fee.Validate(); err != nil {
		return err
	}
	if p.TradingPathLimit < 2 {
		return fmt.Errorf("dex: trading path limit must be at least 2")
	}
	if p.ModuleAccount == "" {
		return fmt.Errorf("dex: module account name required")
	}
	return nil
}

// PoolInfo is a read model of a trading pair for APIs.
type PoolInfo struct {
	Pair        TradingPair
	Status      PairStatus
	Reserve0    *big.Int
	Reserve1    *big.Int
	TotalShares *big.Int
}
