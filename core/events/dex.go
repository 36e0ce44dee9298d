package events

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"ecdpchain/core/types"
)

const (
	TypeDexListProvisioning             = "dex.list_provisioning"
	TypeDexUpdateProvisioningParameters = "dex.update_provisioning_parameters"
	TypeDexAddProvision                 = "dex.add_provision"
	TypeDexProvisioningToEnabled        = "dex.provisioning_to_enabled"
	TypeDexProvisioningAborted          = "dex.provisioning_aborted"
	TypeDexRefundProvision              = "dex.refund_provision"
	TypeDexClaimShare                   = "dex.claim_dex_share"
	TypeDexEnableTradingPair            = "dex.enable_trading_pair"
	TypeDexDisableTradingPair           = "dex.disable_trading_pair"
	TypeDexAddLiquidity                 = "dex.add_liquidity"
	TypeDexRemoveLiquidity              = "dex.remove_liquidity"
	TypeDexSwap                         = "dex.swap"
)

// TradingPairEvent covers the status transitions that only carry the pair.
type TradingPairEvent struct {
	Kind      string
	Currency0 types.CurrencyID
	Currency1 types.CurrencyID
}

func (e TradingPairEvent) EventType() string { return e.Kind }

func (e TradingPairEvent) Event() *types.Event {
	return &types.Event{
		Type: e.Kind,
		Attributes: map[string]string{
			"currency0": string(e.Currency0),
			"currency1": string(e.Currency1),
		},
	}
}

type ProvisioningParametersUpdated struct {
	Currency0       types.CurrencyID
	Currency1       types.CurrencyID
	MinContribution [2]*big.Int
	Target          [2]*big.Int
	NotBefore       uint64
}

func (ProvisioningParametersUpdated) EventType() string {
	return TypeDexUpdateProvisioningParameters
}

func (e ProvisioningParametersUpdated) Event() *types.Event {
	return &types.Event{
		Type: TypeDexUpdateProvisioningParameters,
		Attributes: map[string]string{
			"currency0":        string(e.Currency0),
			"currency1":        string(e.Currency1),
			"minContribution0": formatAmount(e.MinContribution[0]),
			"minContribution1": formatAmount(e.MinContribution[1]),
			"target0":          formatAmount(e.Target[0]),
			"target1":          formatAmount(e.Target[1]),
			"notBefore":        new(big.Int).SetUint64(e.NotBefore).String(),
		},
	}
}

// ProvisionMovement is shared by AddProvision and RefundProvision.
type ProvisionMovement struct {
	Kind      string
	Who       common.Address
	Currency0 types.CurrencyID
	Amount0   *big.Int
	Currency1 types.CurrencyID
	Amount1   *big.Int
}

func (e ProvisionMovement) EventType() string { return e.Kind }

func (e ProvisionMovement) Event() *types.Event {
	return &types.Event{
		Type: e.Kind,
		Attributes: map[string]string{
			"who":       formatAccount(e.Who),
			"currency0": string(e.Currency0),
			"amount0":   formatAmount(e.Amount0),
			"currency1": string(e.Currency1),
			"amount1":   formatAmount(e.Amount1),
		},
	}
}

type ProvisioningToEnabled struct {
	Currency0   types.CurrencyID
	Currency1   types.CurrencyID
	Pool0       *big.Int
	Pool1       *big.Int
	TotalShares *big.Int
}

func (ProvisioningToEnabled) EventType() string { return TypeDexProvisioningToEnabled }

func (e ProvisioningToEnabled) Event() *types.Event {
	return &types.Event{
		Type: TypeDexProvisioningToEnabled,
		Attributes: map[string]string{
			"currency0":   string(e.Currency0),
			"currency1":   string(e.Currency1),
			"pool0":       formatAmount(e.Pool0),
			"pool1":       formatAmount(e.Pool1),
			"totalShares": formatAmount(e.TotalShares),
		},
	}
}

type ProvisioningAborted struct {
	Currency0    types.CurrencyID
	Currency1    types.CurrencyID
	Accumulated0 *big.Int
	Accumulated1 *big.Int
}

func (ProvisioningAborted) EventType() string { return TypeDexProvisioningAborted }

func (e ProvisioningAborted) Event() *types.Event {
	return &types.Event{
		Type: TypeDexProvisioningAborted,
		Attributes: map[string]string{
			"currency0":    string(e.Currency0),
			"currency1":    string(e.Currency1),
			"accumulated0": formatAmount(e.Accumulated0),
			"accumulated1": formatAmount(e.Accumulated1),
		},
	}
}

type DexShareClaimed struct {
	Who           common.Address
	ShareCurrency types.CurrencyID
	Amount        *big.Int
}

func (DexShareClaimed) EventType() string { return TypeDexClaimShare }

func (e DexShareClaimed) Event() *types.Event {
	return &types.Event{
		Type: TypeDexClaimShare,
		Attributes: map[string]string{
			"who":    formatAccount(e.Who),
			"share":  string(e.ShareCurrency),
			"amount": formatAmount(e.Amount),
		},
	}
}

// LiquidityChanged is shared by AddLiquidity and RemoveLiquidity. Shares is
// the increment or decrement of the caller's LP balance.
type LiquidityChanged struct {
	Kind      string
	Who       common.Address
	Currency0 types.CurrencyID
	Amount0   *big.Int
	Currency1 types.CurrencyID
	Amount1   *big.Int
	Shares    *big.Int
}

func (e LiquidityChanged) EventType() string { return e.Kind }

func (e LiquidityChanged) Event() *types.Event {
	return &types.Event{
		Type: e.Kind,
		Attributes: map[string]string{
			"who":       formatAccount(e.Who),
			"currency0": string(e.Currency0),
			"amount0":   formatAmount(e.Amount0),
			"currency1": string(e.Currency1),
			"amount1":   formatAmount(e.Amount1),
			"shares":    formatAmount(e.Shares),
		},
	}
}

// Swap records a trade along Path. LiquidityChanges holds the amount moved
// at each hop: the supply amount first, then each hop's output.
type Swap struct {
	Trader           common.Address
	Path             []types.CurrencyID
	LiquidityChanges []*big.Int
}

func (Swap) EventType() string { return TypeDexSwap }

func (e Swap) Event() *types.Event {
	return &types.Event{
		Type: TypeDexSwap,
		Attributes: map[string]string{
			"trader":           formatAccount(e.Trader),
			"path":             formatPath(e.Path),
			"liquidityChanges": formatAmounts(e.LiquidityChanges),
		},
	}
}
