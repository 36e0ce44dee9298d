package core

import (
	"fmt"
	"math/big"

	"ecdpchain/config"
	"ecdpchain/core/types"
	"ecdpchain/crypto"
	"ecdpchain/native/cdp"
	nativecommon "ecdpchain/native/common"
	"ecdpchain/native/dex"
	"ecdpchain/native/fixedpoint"
	"ecdpchain/native/ledger"
)

// ApplyGenesis seeds the runtime state described by g. Either everything is
// written or nothing is.
func ApplyGenesis(rt *Runtime, g *config.Genesis) error {
	if rt == nil || g == nil {
		return fmt.Errorf("genesis: runtime and genesis required")
	}
	if err := g.Validate(); err != nil {
		return err
	}
	root := nativecommon.RootOrigin()
	return rt.Atomic(func() error {
		for _, a := range g.Assets {
			if err := rt.Ledger.RegisterAsset(ledger.Asset{Symbol: a.Symbol, Name: a.Name, Decimals: a.Decimals}); err != nil {
				return fmt.Errorf("genesis: asset %s: %w", a.Symbol, err)
			}
		}
		for _, raw := range g.Admins {
			addr, err := crypto.ParseAccount(raw)
			if err != nil {
				return err
			}
			if err := rt.Registry.SetAdmin(addr, true); err != nil {
				return fmt.Errorf("genesis: admin %s: %w", raw, err)
			}
		}
		for _, b := range g.Balances {
			addr, err := crypto.ParseAccount(b.Account)
			if err != nil {
				return err
			}
			if err := rt.Ledger.Deposit(types.NormalizeCurrency(b.Currency), addr, b.Amount); err != nil {
				return fmt.Errorf("genesis: balance %s %s: %w", b.Account, b.Currency, err)
			}
		}
		for _, p := range g.Prices {
			if err := rt.Oracle.FeedPrice(types.NormalizeCurrency(p.Currency), p.Price); err != nil {
				return fmt.Errorf("genesis: price %s: %w", p.Currency, err)
			}
		}
		for _, c := range g.Collaterals {
			if err := applyCollateral(rt, root, c); err != nil {
				return err
			}
		}
		for _, p := range g.Pools {
			if err := applyPool(rt, root, p); err != nil {
				return err
			}
		}
		for _, p := range g.Provisioning {
			terms := dex.ProvisioningTerms{
				MinContributionA: p.MinContributionA,
				MinContributionB: p.MinContributionB,
				TargetA:          p.TargetA,
				TargetB:          p.TargetB,
				NotBefore:        p.NotBefore,
			}
			a, b := types.NormalizeCurrency(p.TokenA), types.NormalizeCurrency(p.TokenB)
			if err := rt.DEX.ListProvisioning(root, a, b, terms); err != nil {
				return fmt.Errorf("genesis: provisioning %s/%s: %w", a, b, err)
			}
		}
		for _, raw := range g.LiquidationContracts {
			addr, err := crypto.ParseAccount(raw)
			if err != nil {
				return err
			}
			if err := rt.CDP.RegisterLiquidationContract(root, addr); err != nil {
				return fmt.Errorf("genesis: liquidation contract %s: %w", raw, err)
			}
		}
		return nil
	})
}

func applyCollateral(rt *Runtime, root nativecommon.Origin, c config.GenesisCollateral) error {
	currency := types.NormalizeCurrency(c.Currency)
	interest := c.InterestRatePerSec
	if interest == nil {
		zero := fixedpoint.Zero()
		interest = &zero
	}
	debitCap := c.MaximumTotalDebitValue
	if debitCap == nil {
		debitCap = big.NewInt(0)
	}
	update := cdp.CollateralParamsUpdate{
		InterestRatePerSec:     cdp.NewValue(interest),
		MaximumTotalDebitValue: cdp.NewValue(debitCap),
	}
	if c.LiquidationRatio != nil {
		update.LiquidationRatio = cdp.NewValue(c.LiquidationRatio)
	}
	if c.LiquidationPenalty != nil {
		update.LiquidationPenalty = cdp.NewValue(c.LiquidationPenalty)
	}
	if c.RequiredCollateralRatio != nil {
		update.RequiredCollateralRatio = cdp.NewValue(c.RequiredCollateralRatio)
	}
	if err := rt.CDP.SetCollateralParams(root, currency, update); err != nil {
		return fmt.Errorf("genesis: collateral %s: %w", currency, err)
	}
	if c.AuctionSize != nil {
		if err := rt.Treasury.SetExpectedCollateralAuctionSize(root, currency, c.AuctionSize); err != nil {
			return fmt.Errorf("genesis: auction size %s: %w", currency, err)
		}
	}
	return nil
}

func applyPool(rt *Runtime, root nativecommon.Origin, p config.GenesisPool) error {
	a, b := types.NormalizeCurrency(p.TokenA), types.NormalizeCurrency(p.TokenB)
	if err := rt.DEX.EnableTradingPair(root, a, b); err != nil {
		return fmt.Errorf("genesis: enable %s/%s: %w", a, b, err)
	}
	if p.Provider == "" || p.AmountA == nil || p.AmountB == nil {
		return nil
	}
	provider, err := crypto.ParseAccount(p.Provider)
	if err != nil {
		return err
	}
	if err := rt.DEX.AddLiquidity(nativecommon.Signed(provider), a, b, p.AmountA, p.AmountB, big.NewInt(0), false); err != nil {
		return fmt.Errorf("genesis: seed %s/%s: %w", a, b, err)
	}
	return nil
}

// GenesisBlock is the height zero block anchoring the chain.
func GenesisBlock(g *config.Genesis) (*types.Block, error) {
	root, err := ComputeTxRoot(nil)
	if err != nil {
		return nil, err
	}
	header := &types.BlockHeader{
		Height:    0,
		Timestamp: g.Timestamp,
		PrevHash:  []byte{},
		TxRoot:    root,
		Proposer:  []byte(g.ChainID),
	}
	return types.NewBlock(header, []*types.Transaction{}), nil
}
