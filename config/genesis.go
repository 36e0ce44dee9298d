package config

import (
	"bytes"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"

	"ecdpchain/core/types"
	"ecdpchain/crypto"
	"ecdpchain/native/cdp"
	"ecdpchain/native/dex"
	"ecdpchain/native/fixedpoint"
	"ecdpchain/native/liquidator"
	"ecdpchain/native/treasury"
)

// Genesis is the YAML description of the initial chain state.
type Genesis struct {
	ChainID              string                `yaml:"chain_id"`
	Timestamp            int64                 `yaml:"timestamp"`
	Params               ChainParams           `yaml:"params"`
	Assets               []GenesisAsset        `yaml:"assets"`
	Admins               []string              `yaml:"admins"`
	Balances             []GenesisBalance      `yaml:"balances"`
	Prices               []GenesisPrice        `yaml:"prices"`
	Collaterals          []GenesisCollateral   `yaml:"collaterals"`
	Pools                []GenesisPool         `yaml:"pools"`
	Provisioning         []GenesisProvisioning `yaml:"provisioning"`
	LiquidationContracts []string              `yaml:"liquidation_contracts"`
}

// ChainParams are the consensus parameters of every native module.
// SwapJoints lists the intermediate routes collateral sales may take besides
// the direct pair.
type ChainParams struct {
	CDP        cdp.Params           `yaml:"cdp"`
	DEX        dex.Params           `yaml:"dex"`
	Treasury   treasury.Params      `yaml:"treasury"`
	Liquidator liquidator.Params    `yaml:"liquidator"`
	SwapJoints [][]types.CurrencyID `yaml:"swap_joints"`
}

type GenesisAsset struct {
	Symbol   string `yaml:"symbol"`
	Name     string `yaml:"name"`
	Decimals uint8  `yaml:"decimals"`
}

type GenesisBalance struct {
	Account  string   `yaml:"account"`
	Currency string   `yaml:"currency"`
	Amount   *big.Int `yaml:"amount"`
}

type GenesisPrice struct {
	Currency string           `yaml:"currency"`
	Price    fixedpoint.Price `yaml:"price"`
}

// GenesisCollateral lists a collateral currency with its risk parameters.
// Omitted optional fields fall back to the system defaults.
type GenesisCollateral struct {
	Currency                string            `yaml:"currency"`
	InterestRatePerSec      *fixedpoint.Rate  `yaml:"interest_rate_per_sec"`
	LiquidationRatio        *fixedpoint.Ratio `yaml:"liquidation_ratio"`
	LiquidationPenalty      *fixedpoint.Rate  `yaml:"liquidation_penalty"`
	RequiredCollateralRatio *fixedpoint.Ratio `yaml:"required_collateral_ratio"`
	MaximumTotalDebitValue  *big.Int          `yaml:"maximum_total_debit_value"`
	AuctionSize             *big.Int          `yaml:"auction_size"`
}

// GenesisPool enables a trading pair and optionally seeds it with liquidity
// drawn from Provider.
type GenesisPool struct {
	TokenA   string   `yaml:"token_a"`
	TokenB   string   `yaml:"token_b"`
	Provider string   `yaml:"provider"`
	AmountA  *big.Int `yaml:"amount_a"`
	AmountB  *big.Int `yaml:"amount_b"`
}

type GenesisProvisioning struct {
	TokenA           string   `yaml:"token_a"`
	TokenB           string   `yaml:"token_b"`
	MinContributionA *big.Int `yaml:"min_contribution_a"`
	MinContributionB *big.Int `yaml:"min_contribution_b"`
	TargetA          *big.Int `yaml:"target_a"`
	TargetB          *big.Int `yaml:"target_b"`
	NotBefore        uint64   `yaml:"not_before"`
}

// DefaultChainParams returns each module's default parameters.
func DefaultChainParams() ChainParams {
	return ChainParams{
		CDP:        cdp.DefaultParams(),
		DEX:        dex.DefaultParams(),
		Treasury:   treasury.DefaultParams(),
		Liquidator: liquidator.DefaultParams(),
	}
}

// LoadGenesis reads and validates the genesis file at path. Parameters not
// present in the file keep their defaults.
func LoadGenesis(path string) (*Genesis, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read genesis: %w", err)
	}
	return ParseGenesis(raw)
}

func ParseGenesis(raw []byte) (*Genesis, error) {
	g := &Genesis{Params: DefaultChainParams()}
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(g); err != nil {
		return nil, fmt.Errorf("decode genesis: %w", err)
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

// Marshal renders g as YAML.
func (g *Genesis) Marshal() ([]byte, error) {
	return yaml.Marshal(g)
}

func (g *Genesis) Validate() error {
	if strings.TrimSpace(g.ChainID) == "" {
		return fmt.Errorf("genesis: chain_id required")
	}
	if err := g.Params.CDP.Validate(); err != nil {
		return fmt.Errorf("genesis: %w", err)
	}
	if err := g.Params.DEX.Validate(); err != nil {
		return fmt.Errorf("genesis: %w", err)
	}
	if err := g.Params.Treasury.Validate(); err != nil {
		return fmt.Errorf("genesis: %w", err)
	}
	if err := g.Params.Liquidator.Validate(); err != nil {
		return fmt.Errorf("genesis: %w", err)
	}
	if g.Params.CDP.StableCurrency != g.Params.Treasury.StableCurrency {
		return fmt.Errorf("genesis: cdp and treasury stable currencies differ")
	}
	if g.Params.CDP.StableCurrency != g.Params.Liquidator.StableCurrency {
		return fmt.Errorf("genesis: cdp and liquidator stable currencies differ")
	}

	assets := make(map[types.CurrencyID]bool, len(g.Assets))
	for _, a := range g.Assets {
		id := types.NormalizeCurrency(a.Symbol)
		if err := id.Validate(); err != nil {
			return fmt.Errorf("genesis: asset %q: %w", a.Symbol, err)
		}
		if assets[id] {
			return fmt.Errorf("genesis: duplicate asset %s", id)
		}
		assets[id] = true
	}
	known := func(raw string) error {
		id := types.NormalizeCurrency(raw)
		if assets[id] {
			return nil
		}
		if a, b, ok := id.SplitDexShare(); ok && assets[a] && assets[b] {
			return nil
		}
		return fmt.Errorf("genesis: unknown currency %q", raw)
	}
	if !assets[g.Params.CDP.StableCurrency] {
		return fmt.Errorf("genesis: stable currency %s not listed", g.Params.CDP.StableCurrency)
	}
	for _, raw := range append(append([]string(nil), g.Admins...), g.LiquidationContracts...) {
		if _, err := crypto.ParseAccount(raw); err != nil {
			return fmt.Errorf("genesis: account %q: %w", raw, err)
		}
	}
	for _, b := range g.Balances {
		if _, err := crypto.ParseAccount(b.Account); err != nil {
			return fmt.Errorf("genesis: balance account %q: %w", b.Account, err)
		}
		if err := known(b.Currency); err != nil {
			return err
		}
		if b.Amount == nil || b.Amount.Sign() < 0 {
			return fmt.Errorf("genesis: balance of %s must be non-negative", b.Account)
		}
	}
	for _, joint := range g.Params.SwapJoints {
		if len(joint) == 0 {
			return fmt.Errorf("genesis: empty swap joint")
		}
		for _, c := range joint {
			if err := known(string(c)); err != nil {
				return err
			}
		}
	}
	for _, p := range g.Prices {
		if err := known(p.Currency); err != nil {
			return err
		}
	}
	for _, c := range g.Collaterals {
		if err := known(c.Currency); err != nil {
			return err
		}
	}
	for _, p := range g.Pools {
		if err := known(p.TokenA); err != nil {
			return err
		}
		if err := known(p.TokenB); err != nil {
			return err
		}
		if p.Provider != "" {
			if _, err := crypto.ParseAccount(p.Provider); err != nil {
				return fmt.Errorf("genesis: pool provider %q: %w", p.Provider, err)
			}
		}
	}
	for _, p := range g.Provisioning {
		if err := known(p.TokenA); err != nil {
			return err
		}
		if err := known(p.TokenB); err != nil {
			return err
		}
	}
	return nil
}

// DefaultGenesis describes a single operator devnet. The operator administers
// every module, holds the initial supply and seeds the stable pools.
func DefaultGenesis(chainID string, operator common.Address) *Genesis {
	unit := new(big.Int).Exp(big.NewInt(10), big.NewInt(12), nil)
	units := func(n int64) *big.Int { return new(big.Int).Mul(big.NewInt(n), unit) }
	ratio := func(n, d uint64) *fixedpoint.FixedU128 {
		v := fixedpoint.FromRational(n, d)
		return &v
	}
	op := crypto.FormatAccount(operator)
	keeper := crypto.FormatAccount(crypto.ModuleAccount("devnet-keeper"))
	params := DefaultChainParams()
	params.SwapJoints = [][]types.CurrencyID{{"EDF"}}

	return &Genesis{
		ChainID: chainID,
		Params:  params,
		Assets: []GenesisAsset{
			{Symbol: "USSD", Name: "Setheum USD", Decimals: 12},
			{Symbol: "EDF", Name: "Ethical DeFi", Decimals: 12},
			{Symbol: "BTC", Name: "Bitcoin", Decimals: 12},
			{Symbol: "ETH", Name: "Ether", Decimals: 12},
		},
		Admins: []string{op},
		Balances: []GenesisBalance{
			{Account: op, Currency: "USSD", Amount: units(10_000_000)},
			{Account: op, Currency: "EDF", Amount: units(10_000_000)},
			{Account: op, Currency: "BTC", Amount: units(1_000)},
			{Account: op, Currency: "ETH", Amount: units(10_000)},
			{Account: keeper, Currency: "USSD", Amount: units(1_000_000)},
		},
		Prices: []GenesisPrice{
			{Currency: "EDF", Price: fixedpoint.FromRational(2, 1)},
			{Currency: "BTC", Price: fixedpoint.FromRational(30_000, 1)},
			{Currency: "ETH", Price: fixedpoint.FromRational(2_000, 1)},
		},
		Collaterals: []GenesisCollateral{
			{
				Currency:                "BTC",
				InterestRatePerSec:      ratio(1, 1_000_000_000),
				LiquidationRatio:        ratio(3, 2),
				LiquidationPenalty:      ratio(1, 10),
				RequiredCollateralRatio: ratio(2, 1),
				MaximumTotalDebitValue:  units(5_000_000),
				AuctionSize:             units(10),
			},
			{
				Currency:                "ETH",
				InterestRatePerSec:      ratio(1, 1_000_000_000),
				LiquidationRatio:        ratio(3, 2),
				LiquidationPenalty:      ratio(1, 10),
				RequiredCollateralRatio: ratio(2, 1),
				MaximumTotalDebitValue:  units(5_000_000),
				AuctionSize:             units(100),
			},
		},
		Pools: []GenesisPool{
			{TokenA: "BTC", TokenB: "USSD", Provider: op, AmountA: units(100), AmountB: units(3_000_000)},
			{TokenA: "ETH", TokenB: "USSD", Provider: op, AmountA: units(1_000), AmountB: units(2_000_000)},
			{TokenA: "EDF", TokenB: "USSD", Provider: op, AmountA: units(1_000_000), AmountB: units(2_000_000)},
			{TokenA: "BTC", TokenB: "EDF", Provider: op, AmountA: units(10), AmountB: units(150_000)},
		},
		LiquidationContracts: []string{keeper},
	}
}
